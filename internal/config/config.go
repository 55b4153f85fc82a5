package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/run365/dashboard-go/internal/bind"
	"github.com/run365/dashboard-go/internal/render"
)

// ConfigPathEnvVar 指定 YAML 配置文件路径的环境变量
const ConfigPathEnvVar = "CONFIG_PATH"

// Config 应用配置
type Config struct {
	Port      string `koanf:"port" validate:"required"`
	DBPath    string `koanf:"db_path" validate:"required"`
	JWTSecret string `koanf:"jwt_secret" validate:"required,min=16"`

	Backend BackendConfig    `koanf:"backend"`
	Route   RouteConfig      `koanf:"route"`
	View    ViewConfig       `koanf:"view"`
	Session SessionConfig    `koanf:"session"`
	Log     LogConfig        `koanf:"log"`
	Tiles   render.TileLayer `koanf:"tiles"`
	Bind    bind.Config      `koanf:"bind"`
	CORS    CORSConfig       `koanf:"cors"`
	Limits  RateLimitConfig  `koanf:"limits"`
}

// BackendConfig Run365 后端
type BackendConfig struct {
	BaseURL   string        `koanf:"base_url" validate:"required,url"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
	RateLimit float64       `koanf:"rate_limit" validate:"gte=0"`
	Burst     int           `koanf:"burst" validate:"gte=0"`
}

// RouteConfig 轨迹文件加载
type RouteConfig struct {
	// ProxyBaseURL 为空时直接请求文件地址
	ProxyBaseURL string        `koanf:"proxy_base_url" validate:"omitempty,url"`
	// AllowedHosts 为空时拒绝所有文件地址
	AllowedHosts []string      `koanf:"allowed_hosts"`
	// AllowPrivate 允许直连回环与内网地址，仅用于本地调试
	AllowPrivate bool          `koanf:"allow_private"`
	CacheSize    int           `koanf:"cache_size" validate:"gt=0"`
	RawTTL       time.Duration `koanf:"raw_ttl" validate:"gte=0"`
	FetchTimeout time.Duration `koanf:"fetch_timeout" validate:"gt=0"`
}

// ViewConfig 看板视图
type ViewConfig struct {
	SettleDelay time.Duration `koanf:"settle_delay" validate:"gte=0"`
	Linger      time.Duration `koanf:"linger" validate:"gte=0"`
	MapWait     time.Duration `koanf:"map_wait" validate:"gte=0"`
	TimeZone    string        `koanf:"time_zone" validate:"required"`
}

// SessionConfig 会话
type SessionConfig struct {
	TTL    time.Duration `koanf:"ttl" validate:"gt=0"`
	Secure bool          `koanf:"secure"`
	Store  string        `koanf:"store" validate:"oneof=sqlite memory"`
}

// LogConfig 日志
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// CORSConfig 跨域
type CORSConfig struct {
	Origins []string `koanf:"origins"`
}

// RateLimitConfig 每 IP 限流
type RateLimitConfig struct {
	Requests int           `koanf:"requests" validate:"gt=0"`
	Window   time.Duration `koanf:"window" validate:"gt=0"`
}

// Defaults 默认配置
func Defaults() *Config {
	return &Config{
		Port:      ":8080",
		DBPath:    "./data/dashboard/dashboard.db",
		JWTSecret: "your-secret-key-change-in-production",
		Backend: BackendConfig{
			BaseURL:   "https://api.run365.info",
			Timeout:   10 * time.Second,
			RateLimit: 20,
			Burst:     40,
		},
		Route: RouteConfig{
			AllowedHosts: []string{"run365.info"},
			CacheSize:    64,
			RawTTL:       24 * time.Hour,
			FetchTimeout: 10 * time.Second,
		},
		View: ViewConfig{
			SettleDelay: 100 * time.Millisecond,
			Linger:      2 * time.Minute,
			MapWait:     5 * time.Second,
			TimeZone:    "Asia/Shanghai",
		},
		Session: SessionConfig{
			TTL:   30 * 24 * time.Hour,
			Store: "sqlite",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Tiles: render.DefaultTileLayer(),
		Bind: bind.Config{
			StravaClientID:    "36543",
			StravaRedirectURI: "https://m.run365.info/strava_callback",
			GarminClientID:    "509fd6f7-1992-49b6-a712-b2551e0ea2c3",
			GarminRedirectURI: "https://m.run365.info/garmin_callback",
			CorosClientID:     "ee69bfd79b1e489cbe12ac7cb197e8ae",
			CorosRedirectURI:  "https://m.run365.info/coros_callback",
			WeChatAppID:       "wxaaa01913df6abce5",
			WeChatRedirectURI: "https://m.run365.info/wx_auth_callback",
			PendingTTL:        10 * time.Minute,
			PendingSize:       1024,
		},
		CORS: CORSConfig{
			Origins: []string{"*"},
		},
		Limits: RateLimitConfig{
			Requests: 120,
			Window:   time.Minute,
		},
	}
}

// 环境变量到配置路径的映射，保留原有的 PORT / DB_PATH / JWT_SECRET
var envMappings = map[string]string{
	"PORT":                "port",
	"DB_PATH":             "db_path",
	"JWT_SECRET":          "jwt_secret",
	"BACKEND_BASE_URL":    "backend.base_url",
	"BACKEND_TIMEOUT":     "backend.timeout",
	"BACKEND_RATE_LIMIT":  "backend.rate_limit",
	"PROXY_BASE_URL":      "route.proxy_base_url",
	"ROUTE_ALLOWED_HOSTS": "route.allowed_hosts",
	"ROUTE_ALLOW_PRIVATE": "route.allow_private",
	"ROUTE_CACHE_SIZE":    "route.cache_size",
	"ROUTE_RAW_TTL":       "route.raw_ttl",
	"VIEW_LINGER":         "view.linger",
	"TIME_ZONE":           "view.time_zone",
	"SESSION_TTL":         "session.ttl",
	"SESSION_SECURE":      "session.secure",
	"SESSION_STORE":       "session.store",
	"LOG_LEVEL":           "log.level",
	"LOG_FORMAT":          "log.format",
	"LOG_CALLER":          "log.caller",
	"TILE_URL":            "tiles.url",
	"CORS_ORIGINS":        "cors.origins",
	"STRAVA_CLIENT_ID":    "bind.strava_client_id",
	"GARMIN_CLIENT_ID":    "bind.garmin_client_id",
	"COROS_CLIENT_ID":     "bind.coros_client_id",
	"WECHAT_APP_ID":       "bind.wechat_app_id",
}

// 逗号分隔的列表型变量
var listKeys = map[string]bool{
	"route.allowed_hosts": true,
	"cors.origins":        true,
}

func envTransform(key, value string) (string, any) {
	path, ok := envMappings[key]
	if !ok {
		return "", nil
	}
	if listKeys[path] {
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return path, items
	}
	return path, value
}

// Load 加载配置：默认值 -> YAML 文件 (CONFIG_PATH) -> 环境变量
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.View.TimeZone); err != nil {
		return fmt.Errorf("invalid time zone %q: %w", c.View.TimeZone, err)
	}
	return nil
}

// Location 看板显示时间所用的时区
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.View.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}
