package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tazhibayda/identity-service/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mongo", cfg.StoreDriver)
	assert.Equal(t, 100, cfg.RateLimitMax)
	assert.Equal(t, 15*time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, 30*24*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.LinkFailOpen)
	assert.Equal(t, "http://localhost:8080/api/auth/callback/google", cfg.Google.RedirectURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("LINK_FAIL_OPEN", "false")
	t.Setenv("RATE_LIMIT_WINDOW", "1m")
	t.Setenv("APP_BASE_URL", "https://auth.example.com/")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.LinkFailOpen)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, "https://auth.example.com", cfg.BaseURL)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"7070\"\nmongo:\n  db: from_file\n"), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "from_file", cfg.MongoDB)
}

func TestValidate(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "OAUTH_STATE_SECRET")

	cfg.JWTSecret = "short"
	cfg.OAuthStateSecret = "state"
	cfg.TokenSealKey = "seal"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 32 characters")

	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	assert.NoError(t, cfg.Validate())
}

func TestOAuthClientEnabled(t *testing.T) {
	assert.False(t, config.OAuthClient{}.Enabled())
	assert.False(t, config.OAuthClient{ClientID: "your-github-client-id", ClientSecret: "your-github-client-secret"}.Enabled())
	assert.True(t, config.OAuthClient{ClientID: "id", ClientSecret: "secret"}.Enabled())
}

func TestValidate_NextSigningKey(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("OAUTH_STATE_SECRET", "state")
	t.Setenv("TOKEN_SEAL_KEY", "seal")
	t.Setenv("JWT_NEXT_PRIVATE_KEY_PATH", "/keys/next.pem")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.ErrorContains(t, cfg.Validate(), "requires JWT_PRIVATE_KEY_PATH")

	cfg.JWTPrivateKeyPath = "/keys/current.pem"
	assert.ErrorContains(t, cfg.Validate(), "JWT_NEXT_KID")

	t.Setenv("JWT_NEXT_KID", "k2")
	cfg, err = config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "k2", cfg.JWTNextKid)
	assert.Equal(t, "/keys/next.pem", cfg.JWTNextPrivateKeyPath)
	cfg.JWTPrivateKeyPath = "/keys/current.pem"
	assert.NoError(t, cfg.Validate())
}
