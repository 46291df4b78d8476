package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port    string
	Env     string
	BaseURL string

	StoreDriver string // "mongo" | "memory"
	MongoURI    string
	MongoDB     string
	RedisAddr   string

	RabbitURL      string
	EventsExchange string

	JWTSecret             string
	JWTPrivateKeyPath     string
	JWTKid                string
	// JWTNextKid and JWTNextPrivateKeyPath stage the next signing key: it is
	// published and accepted but does not sign until promoted.
	JWTNextKid            string
	JWTNextPrivateKeyPath string
	SessionTTL            time.Duration
	TokenSealKey          string
	OAuthStateSecret      string

	Google OAuthClient
	GitHub OAuthClient

	SMTP         SMTPConfig
	MagicLinkTTL time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration

	// LinkFailOpen permits sign-in when the account-linking check hits a
	// storage error.
	LinkFailOpen bool
	TraceEnabled bool
}

type OAuthClient struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Enabled is false for missing or placeholder credentials.
func (c OAuthClient) Enabled() bool {
	if c.ClientID == "" || c.ClientSecret == "" {
		return false
	}
	return !strings.HasPrefix(c.ClientID, "your-") && !strings.HasPrefix(c.ClientSecret, "your-")
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func (c Config) Production() bool { return c.Env == "production" }

var bindings = map[string]string{
	"port":              "APP_PORT",
	"env":               "APP_ENV",
	"base_url":          "APP_BASE_URL",
	"store_driver":      "STORE_DRIVER",
	"mongo.uri":         "MONGO_URI",
	"mongo.db":          "MONGO_DB",
	"redis.addr":        "REDIS_ADDR",
	"rabbit.url":        "RABBIT_URL",
	"rabbit.exchange":   "EVENTS_EXCHANGE",
	"jwt.secret":        "JWT_SECRET",
	"jwt.key_path":      "JWT_PRIVATE_KEY_PATH",
	"jwt.kid":           "JWT_KID",
	"jwt.next_kid":      "JWT_NEXT_KID",
	"jwt.next_key_path": "JWT_NEXT_PRIVATE_KEY_PATH",
	"session.ttl_hours": "SESSION_TTL_HOURS",
	"seal.key":          "TOKEN_SEAL_KEY",
	"oauth.state":       "OAUTH_STATE_SECRET",
	"google.id":         "GOOGLE_CLIENT_ID",
	"google.secret":     "GOOGLE_CLIENT_SECRET",
	"google.redirect":   "GOOGLE_REDIRECT_URL",
	"github.id":         "GITHUB_CLIENT_ID",
	"github.secret":     "GITHUB_CLIENT_SECRET",
	"github.redirect":   "GITHUB_REDIRECT_URL",
	"smtp.host":         "EMAIL_SERVER_HOST",
	"smtp.port":         "EMAIL_SERVER_PORT",
	"smtp.user":         "EMAIL_SERVER_USER",
	"smtp.password":     "EMAIL_SERVER_PASSWORD",
	"smtp.from":         "EMAIL_FROM",
	"magic.ttl_minutes": "MAGIC_LINK_TTL_MINUTES",
	"ratelimit.max":     "RATE_LIMIT_MAX",
	"ratelimit.window":  "RATE_LIMIT_WINDOW",
	"link.fail_open":    "LINK_FAIL_OPEN",
	"trace.enabled":     "DD_TRACE_ENABLED",
}

// Load reads the environment and, when path is set, a config file on top of
// the defaults. Environment wins over the file.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("env", "development")
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("store_driver", "mongo")
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.db", "auth_db")
	v.SetDefault("rabbit.exchange", "auth.events")
	v.SetDefault("jwt.kid", "k1")
	v.SetDefault("session.ttl_hours", 30*24)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("magic.ttl_minutes", 15)
	v.SetDefault("ratelimit.max", 100)
	v.SetDefault("ratelimit.window", 15*time.Minute)
	v.SetDefault("link.fail_open", true)

	for key, env := range bindings {
		_ = v.BindEnv(key, env)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		Port:                  v.GetString("port"),
		Env:                   v.GetString("env"),
		BaseURL:               strings.TrimRight(v.GetString("base_url"), "/"),
		StoreDriver:           v.GetString("store_driver"),
		MongoURI:              v.GetString("mongo.uri"),
		MongoDB:               v.GetString("mongo.db"),
		RedisAddr:             v.GetString("redis.addr"),
		RabbitURL:             v.GetString("rabbit.url"),
		EventsExchange:        v.GetString("rabbit.exchange"),
		JWTSecret:             v.GetString("jwt.secret"),
		JWTPrivateKeyPath:     v.GetString("jwt.key_path"),
		JWTKid:                v.GetString("jwt.kid"),
		JWTNextKid:            v.GetString("jwt.next_kid"),
		JWTNextPrivateKeyPath: v.GetString("jwt.next_key_path"),
		SessionTTL:            time.Duration(v.GetInt("session.ttl_hours")) * time.Hour,
		TokenSealKey:          v.GetString("seal.key"),
		OAuthStateSecret:      v.GetString("oauth.state"),
		Google: OAuthClient{
			ClientID:     v.GetString("google.id"),
			ClientSecret: v.GetString("google.secret"),
			RedirectURL:  v.GetString("google.redirect"),
		},
		GitHub: OAuthClient{
			ClientID:     v.GetString("github.id"),
			ClientSecret: v.GetString("github.secret"),
			RedirectURL:  v.GetString("github.redirect"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("smtp.host"),
			Port:     v.GetInt("smtp.port"),
			User:     v.GetString("smtp.user"),
			Password: v.GetString("smtp.password"),
			From:     v.GetString("smtp.from"),
		},
		MagicLinkTTL:    time.Duration(v.GetInt("magic.ttl_minutes")) * time.Minute,
		RateLimitMax:    v.GetInt("ratelimit.max"),
		RateLimitWindow: v.GetDuration("ratelimit.window"),
		LinkFailOpen:    v.GetBool("link.fail_open"),
		TraceEnabled:    v.GetBool("trace.enabled"),
	}
	if cfg.Google.RedirectURL == "" {
		cfg.Google.RedirectURL = cfg.BaseURL + "/api/auth/callback/google"
	}
	if cfg.GitHub.RedirectURL == "" {
		cfg.GitHub.RedirectURL = cfg.BaseURL + "/api/auth/callback/github"
	}
	return cfg, nil
}

// Validate reports every missing or malformed setting at once.
func (c Config) Validate() error {
	var missing, invalid []string

	req := map[string]string{
		"JWT_SECRET":         c.JWTSecret,
		"OAUTH_STATE_SECRET": c.OAuthStateSecret,
		"TOKEN_SEAL_KEY":     c.TokenSealKey,
	}
	if c.StoreDriver == "mongo" {
		req["MONGO_URI"] = c.MongoURI
	}
	for k, val := range req {
		if strings.TrimSpace(val) == "" {
			missing = append(missing, k)
		}
	}

	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		invalid = append(invalid, "JWT_SECRET (must be at least 32 characters)")
	}
	if !strings.HasPrefix(c.BaseURL, "http") {
		invalid = append(invalid, "APP_BASE_URL (must be a valid URL)")
	}
	if c.JWTNextPrivateKeyPath != "" {
		switch {
		case c.JWTPrivateKeyPath == "":
			invalid = append(invalid, "JWT_NEXT_PRIVATE_KEY_PATH (requires JWT_PRIVATE_KEY_PATH)")
		case c.JWTNextKid == "" || c.JWTNextKid == c.JWTKid:
			invalid = append(invalid, "JWT_NEXT_KID (must be set and differ from JWT_KID)")
		}
	}
	if c.SMTP.Host != "" && c.SMTP.Port <= 0 {
		invalid = append(invalid, "EMAIL_SERVER_PORT (must be a valid number)")
	}
	if c.StoreDriver != "mongo" && c.StoreDriver != "memory" {
		invalid = append(invalid, "STORE_DRIVER (mongo|memory)")
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		invalid = append(invalid, "RATE_LIMIT_MAX/RATE_LIMIT_WINDOW (must be positive)")
	}

	if len(missing) == 0 && len(invalid) == 0 {
		return nil
	}
	var errs []error
	if len(missing) > 0 {
		slices.Sort(missing)
		errs = append(errs, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", ")))
	}
	if len(invalid) > 0 {
		errs = append(errs, fmt.Errorf("invalid environment variables: %s", strings.Join(invalid, ", ")))
	}
	return fmt.Errorf("environment validation failed: %w", errors.Join(errs...))
}
