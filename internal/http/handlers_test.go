package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tazhibayda/identity-service/internal/domain"
	api "github.com/tazhibayda/identity-service/internal/http"
	"github.com/tazhibayda/identity-service/internal/linking"
	"github.com/tazhibayda/identity-service/internal/oauth"
	"github.com/tazhibayda/identity-service/internal/repo/memory"
	"github.com/tazhibayda/identity-service/internal/security"
	"github.com/tazhibayda/identity-service/internal/signin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m), string(body))
	return m
}

func TestCheck(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("POST", "/api/auth/check", `{}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do("POST", "/api/auth/check", `{"email":"a@x.com","provider":"google"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	m := decode(t, w.Body.Bytes())
	assert.Equal(t, false, m["exists"])
	assert.Equal(t, false, m["canLink"])

	env.user(t, "a@x.com")
	w = env.do("GET", "/api/auth/check?email=A@x.com&provider=google", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	m = decode(t, w.Body.Bytes())
	assert.Equal(t, true, m["exists"])
	assert.Equal(t, true, m["canLink"])
	assert.Equal(t, "Account exists but no providers are linked yet", m["message"])
}

func TestLink_StatusMapping(t *testing.T) {
	env := newTestEnv(t)
	_, auth := env.user(t, "a@x.com")
	env.user(t, "b@x.com")

	w := env.do("POST", "/api/auth/link", `{"email":"a@x.com","provider":"google","providerAccountId":"g1"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do("POST", "/api/auth/link", `{"email":"a@x.com"}`, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.ElementsMatch(t, []any{"provider", "providerAccountId"}, decode(t, w.Body.Bytes())["missing"])

	w = env.do("POST", "/api/auth/link", `{"email":"nobody@x.com","provider":"google","providerAccountId":"g1"}`, auth)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do("POST", "/api/auth/link", `{"email":"a@x.com","provider":"google","providerAccountId":"g1","refreshToken":"rt","expiresAt":1900000000}`, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	m := decode(t, w.Body.Bytes())
	assert.Equal(t, "link_created", m["outcome"])
	assert.Equal(t, "Account successfully linked", m["message"])

	w = env.do("POST", "/api/auth/link", `{"email":"a@x.com","provider":"google","providerAccountId":"g1"}`, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Account already linked", decode(t, w.Body.Bytes())["message"])

	w = env.do("POST", "/api/auth/link", `{"email":"b@x.com","provider":"google","providerAccountId":"g1"}`, auth)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAccountsAndMe(t *testing.T) {
	env := newTestEnv(t)
	u, auth := env.user(t, "a@x.com")

	w := env.do("POST", "/api/auth/link", `{"email":"a@x.com","provider":"github","providerAccountId":"h1"}`, auth)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do("GET", "/api/auth/accounts", "", auth)
	require.Equal(t, http.StatusOK, w.Code)
	m := decode(t, w.Body.Bytes())
	assert.Equal(t, []any{"github"}, m["linkedProviders"])
	assert.Len(t, m["accounts"], 1)
	assert.NotContains(t, w.Body.String(), "refresh")

	w = env.do("GET", "/api/auth/me", "", auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, u.ID.Hex(), decode(t, w.Body.Bytes())["id"])

	w = env.do("GET", "/api/auth/me", "", map[string]string{"Authorization": "Bearer junk"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOAuthSignIn(t *testing.T) {
	env := newTestEnv(t)
	env.Google.ids["c1"] = &oauth.Identity{Provider: "google", AccountID: "g1", Email: "new@x.com"}

	w := env.do("GET", "/api/auth/signin/google", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	w = env.do("GET", "/api/auth/callback/google?code=c1&state="+url.QueryEscape(state), "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	m := decode(t, w.Body.Bytes())
	assert.Equal(t, true, m["created"])
	token, _ := m["token"].(string)
	require.NotEmpty(t, token)

	w = env.do("GET", "/api/auth/me", "", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do("GET", "/api/auth/callback/google?code=c1&state=forged", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do("GET", "/api/auth/signin/myspace", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOAuthSignIn_ConflictForbidden(t *testing.T) {
	env := newTestEnv(t)
	_, auth := env.user(t, "a@x.com")
	env.user(t, "b@x.com")
	w := env.do("POST", "/api/auth/link", `{"email":"a@x.com","provider":"google","providerAccountId":"g1"}`, auth)
	require.Equal(t, http.StatusOK, w.Code)

	env.Google.ids["c2"] = &oauth.Identity{Provider: "google", AccountID: "g1", Email: "b@x.com"}
	w = env.do("GET", "/api/auth/signin/google", "", nil)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)

	w = env.do("GET", "/api/auth/callback/google?code=c2&state="+url.QueryEscape(loc.Query().Get("state")), "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestEmailSignIn(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("POST", "/api/auth/signin/email", `{"email":"not-an-email"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do("POST", "/api/auth/signin/email", `{"email":"m@x.com"}`, nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	token := env.Outbox.last(t)

	w = env.do("GET", "/api/auth/callback/email?token="+url.QueryEscape(token), "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "email", decode(t, w.Body.Bytes())["provider"])

	w = env.do("GET", "/api/auth/callback/email?token="+url.QueryEscape(token), "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *api.RouterConfig) {
		c.RateLimit = api.RateLimitConfig{Max: 2, Window: 15 * time.Minute}
	})

	for i := 0; i < 2; i++ {
		w := env.do("POST", "/api/auth/check", `{"email":"a@x.com"}`, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := env.do("POST", "/api/auth/check", `{"email":"a@x.com"}`, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// the OAuth round trip is never limited
	for i := 0; i < 3; i++ {
		w = env.do("GET", "/api/auth/providers", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

type failingCounter struct{}

func (failingCounter) Hit(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("redis down")
}

func TestRateLimit_FailOpen(t *testing.T) {
	env := newTestEnv(t, func(c *api.RouterConfig) {
		c.Counter = failingCounter{}
		c.RateLimit = api.RateLimitConfig{Max: 1, Window: time.Minute}
	})
	for i := 0; i < 3; i++ {
		w := env.do("POST", "/api/auth/check", `{"email":"a@x.com"}`, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("GET", "/healthz", "", map[string]string{"X-Request-ID": "req-42"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "off", w.Header().Get("X-DNS-Prefetch-Control"))
	assert.NotContains(t, w.Header().Get("Content-Security-Policy"), "unsafe-eval")

	w = env.do("GET", "/healthz", "", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("connection refused") }

func TestHealthz_Degraded(t *testing.T) {
	env := newTestEnv(t)
	env.Handler.Deps["redis"] = downPinger{}

	w := env.do("GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "degraded", decode(t, w.Body.Bytes())["status"])
}

func TestJWKS_EmptyForHS256(t *testing.T) {
	env := newTestEnv(t)
	w := env.do("GET", "/.well-known/jwks.json", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{}, decode(t, w.Body.Bytes())["keys"])
}

func TestMemoryCounter(t *testing.T) {
	c := api.NewMemoryCounter()
	ctx := context.Background()

	n, ttl, err := c.Hit(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Greater(t, ttl, time.Duration(0))

	n, _, _ = c.Hit(ctx, "k", time.Minute)
	assert.EqualValues(t, 2, n)
	n, _, _ = c.Hit(ctx, "other", time.Minute)
	assert.EqualValues(t, 1, n)
}


type brokenUsers struct{ *memory.Store }

func (brokenUsers) FindUserByEmail(context.Context, string) (*domain.User, error) {
	return nil, errors.New("server selection timeout")
}

func TestLink_StorageErrorIsGeneric(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := memory.New()
	issuer := &security.Issuer{Secret: "0123456789abcdef0123456789abcdef", TTL: time.Hour}
	svc := linking.NewService(brokenUsers{store}, store)
	h := api.NewHandler(svc, signin.New(svc, store, issuer), store, issuer, nil)
	r := api.NewRouter(h, api.RouterConfig{RateLimit: api.RateLimitConfig{Max: 10, Window: time.Minute}})

	tok, err := issuer.Issue(primitive.NewObjectID().Hex(), "a@x.com", "email")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/auth/link",
		strings.NewReader(`{"email":"a@x.com","provider":"google","providerAccountId":"g1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "timeout")
}
