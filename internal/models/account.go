package models

// ThirdPartyAccount is a fitness platform account bound to the user
type ThirdPartyAccount struct {
	ID                int64   `json:"id"`
	Name              string  `json:"name"`
	Provider          string  `json:"provider"` // Strava, Garmin or Coros
	ThirdPartyUserID  *string `json:"thirdPartyUserId"`
	Avatar            *string `json:"avatar"`
	SyncedAt          *string `json:"syncedAt"`
	CreatedAt         string  `json:"createdAt"`
	BackfillCompleted bool    `json:"backfillCompleted"`
}

// UserInfo is the profile returned by GET /api/v2/users/me/
type UserInfo struct {
	ID          int64   `json:"id"`
	Username    string  `json:"username"`
	Nickname    string  `json:"nickname"`
	Email       string  `json:"email"`
	AvatarURL   string  `json:"avatar_url"`
	OpenID      *string `json:"openid"`
	UnionID     *string `json:"unionid"`
	HasPassword bool    `json:"has_password"`
	RealName    string  `json:"real_name"`
	Phone       *int64  `json:"phone"`
	Gender      *int    `json:"gender"`
	Birthday    *string `json:"birthday"`

	ThirdPartyAccounts []ThirdPartyAccount `json:"third_party_accounts,omitempty"`
}

// TokenPair is what the WeChat login exchange returns
type TokenPair struct {
	Token   string `json:"token"`
	Refresh string `json:"refresh"`
}
