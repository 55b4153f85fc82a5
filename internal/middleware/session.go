package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/run365/dashboard-go/internal/logging"
	"github.com/run365/dashboard-go/internal/session"
	"github.com/run365/dashboard-go/pkg/response"
)

const sessionIDKey = "session_id"

// TokenSource looks up the backend token of a session
type TokenSource interface {
	Token(ctx context.Context, sid string) (string, bool)
}

// Session resolves the signed session cookie, issuing a new one when it is
// missing or invalid. The session's backend token, if any, is put in the
// request context where the backend client picks it up.
func Session(signer *session.Signer, tokens TokenSource, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sid string
		if value, err := c.Cookie(session.CookieName); err == nil {
			if id, err := signer.Verify(value); err == nil {
				sid = id
			}
		}

		if sid == "" {
			sid = session.NewSessionID()
			value, err := signer.Issue(sid)
			if err != nil {
				logging.Ctx(c.Request.Context()).Error().Err(err).Msg("[Session] failed to issue cookie")
				response.Abort(c, http.StatusInternalServerError, "failed to start session")
				return
			}
			// Lax so the cookie survives the redirect back from an OAuth provider
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(session.CookieName, value, int(signer.TTL().Seconds()), "/", "", secure, true)
		}

		c.Set(sessionIDKey, sid)
		if tok, ok := tokens.Token(c.Request.Context(), sid); ok {
			c.Request = c.Request.WithContext(session.WithToken(c.Request.Context(), tok))
		}
		c.Next()
	}
}

// SessionID returns the session resolved by the Session middleware
func SessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}
