package http_test

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/tazhibayda/identity-service/internal/domain"
	api "github.com/tazhibayda/identity-service/internal/http"
	"github.com/tazhibayda/identity-service/internal/linking"
	"github.com/tazhibayda/identity-service/internal/oauth"
	"github.com/tazhibayda/identity-service/internal/repo/memory"
	"github.com/tazhibayda/identity-service/internal/security"
	"github.com/tazhibayda/identity-service/internal/signin"
)

type fakeProvider struct {
	name string
	ids  map[string]*oauth.Identity
}

func (p *fakeProvider) Name() string { return p.name }
func (p *fakeProvider) AuthURL(state string) string {
	return "https://idp.example/authorize?state=" + url.QueryEscape(state)
}
func (p *fakeProvider) Exchange(_ context.Context, code string) (*oauth.Identity, error) {
	if id, ok := p.ids[code]; ok {
		return id, nil
	}
	return nil, errors.New("bad code")
}

type outbox struct {
	mu    sync.Mutex
	links []string
}

func (o *outbox) SendMagicLink(_ context.Context, _, link string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.links = append(o.links, link)
	return nil
}

func (o *outbox) last(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.links)
	u, err := url.Parse(o.links[len(o.links)-1])
	require.NoError(t, err)
	return u.Query().Get("token")
}

type testEnv struct {
	Store   *memory.Store
	Issuer  *security.Issuer
	Google  *fakeProvider
	Outbox  *outbox
	Handler *api.Handler
	Router  *gin.Engine
}

type envOpt func(*api.RouterConfig)

func newTestEnv(t *testing.T, opts ...envOpt) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	e := &testEnv{
		Store:  memory.New(),
		Issuer: &security.Issuer{Secret: "0123456789abcdef0123456789abcdef", TTL: time.Hour},
		Google: &fakeProvider{name: "google", ids: map[string]*oauth.Identity{}},
		Outbox: &outbox{},
	}
	svc := linking.NewService(e.Store, e.Store)
	flow := signin.New(svc, e.Store, e.Issuer,
		signin.WithProvider(e.Google),
		signin.WithState(oauth.NewStateSigner("state-secret", time.Minute)),
		signin.WithMagicLink(memory.NewTokens(), e.Outbox, "http://localhost:8080", 15*time.Minute),
	)
	e.Handler = api.NewHandler(svc, flow, e.Store, e.Issuer, nil)
	e.Handler.Deps["store"] = e.Store

	cfg := api.RouterConfig{RateLimit: api.RateLimitConfig{Max: 1000, Window: time.Minute}}
	for _, o := range opts {
		o(&cfg)
	}
	e.Router = api.NewRouter(e.Handler, cfg)
	return e
}

func (e *testEnv) do(method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	e.Router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) user(t *testing.T, email string) (*domain.User, map[string]string) {
	t.Helper()
	u := &domain.User{Email: email}
	require.NoError(t, e.Store.CreateUser(context.Background(), u))
	tok, err := e.Issuer.Issue(u.ID.Hex(), u.Email, "email")
	require.NoError(t, err)
	return u, map[string]string{"Authorization": "Bearer " + tok}
}
