package signin_test

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tazhibayda/identity-service/internal/domain"
	"github.com/tazhibayda/identity-service/internal/linking"
	"github.com/tazhibayda/identity-service/internal/oauth"
	"github.com/tazhibayda/identity-service/internal/queue"
	"github.com/tazhibayda/identity-service/internal/repo/memory"
	"github.com/tazhibayda/identity-service/internal/security"
	"github.com/tazhibayda/identity-service/internal/signin"
	"gopkg.in/gomail.v2"
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
	id, ok := p.ids[code]
	if !ok {
		return nil, oauth.ErrNoEmail
	}
	return id, nil
}

type events struct {
	mu   sync.Mutex
	keys []string
}

func (e *events) Emit(_ context.Context, key string, _ any, _ string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keys = append(e.keys, key)
}

func (e *events) has(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, k := range e.keys {
		if k == key {
			return true
		}
	}
	return false
}

type captured struct {
	mu   sync.Mutex
	msgs []*gomail.Message
}

func (c *captured) DialAndSend(m ...*gomail.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m...)
	return nil
}

type links struct {
	mu   sync.Mutex
	to   []string
	sent []string
}

func (l *links) SendMagicLink(_ context.Context, to, link string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.to = append(l.to, to)
	l.sent = append(l.sent, link)
	return nil
}

type env struct {
	store  *memory.Store
	tokens *memory.Tokens
	issuer *security.Issuer
	events *events
	mail   *links
	flow   *signin.Flow
	google *fakeProvider
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:  memory.New(),
		tokens: memory.NewTokens(),
		issuer: &security.Issuer{Secret: "0123456789abcdef0123456789abcdef", TTL: time.Hour},
		events: &events{},
		mail:   &links{},
		google: &fakeProvider{name: "google", ids: map[string]*oauth.Identity{}},
	}
	svc := linking.NewService(e.store, e.store)
	e.flow = signin.New(svc, e.store, e.issuer,
		signin.WithProvider(e.google),
		signin.WithState(oauth.NewStateSigner("state", time.Minute)),
		signin.WithEvents(e.events),
		signin.WithMagicLink(e.tokens, e.mail, "http://localhost:8080/", 15*time.Minute),
	)
	return e
}

func stateFrom(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestFlow_NewUserThenLinked(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.google.ids["c1"] = &oauth.Identity{Provider: "google", AccountID: "g1", Email: "A@X.com", RefreshToken: "rt"}

	authURL, err := e.flow.Begin("google")
	require.NoError(t, err)

	sess, err := e.flow.Complete(ctx, "google", "c1", stateFrom(t, authURL))
	require.NoError(t, err)
	assert.True(t, sess.Created)
	assert.Equal(t, "a@x.com", sess.User.Email)
	assert.Equal(t, "link_created", sess.Outcome)

	claims, err := e.issuer.Parse(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID.Hex(), claims.UID)

	creds, err := e.store.FindCredentials(ctx, domain.CredentialFilter{UserID: sess.User.ID})
	require.NoError(t, err)
	require.Len(t, creds, 1)
	assert.Equal(t, "g1", creds[0].ProviderAccountID)

	// second sign-in reuses the user and the link
	authURL, err = e.flow.Begin("google")
	require.NoError(t, err)
	sess2, err := e.flow.Complete(ctx, "google", "c1", stateFrom(t, authURL))
	require.NoError(t, err)
	assert.False(t, sess2.Created)
	assert.Equal(t, sess.User.ID, sess2.User.ID)
	assert.Equal(t, "already_linked", sess2.Outcome)

	require.Eventually(t, func() bool {
		return e.events.has(queue.KeyUserCreated) && e.events.has(queue.KeyUserSignedIn)
	}, time.Second, 10*time.Millisecond)
}

func TestFlow_ConflictBlocks(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	a := &domain.User{Email: "a@x.com"}
	require.NoError(t, e.store.CreateUser(ctx, a))
	require.NoError(t, e.store.CreateUser(ctx, &domain.User{Email: "b@x.com"}))
	_, err := e.flow.CompleteAssertion(ctx, domain.Assertion{Email: "a@x.com", Provider: "google", ProviderAccountID: "g1"})
	require.NoError(t, err)

	_, err = e.flow.CompleteAssertion(ctx, domain.Assertion{Email: "b@x.com", Provider: "google", ProviderAccountID: "g1"})
	assert.ErrorIs(t, err, signin.ErrBlocked)
}

func TestFlow_BlockedFirstSignInWritesNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.store.CreateUser(ctx, &domain.User{Email: "a@x.com"}))
	_, err := e.flow.CompleteAssertion(ctx, domain.Assertion{Email: "a@x.com", Provider: "google", ProviderAccountID: "g1"})
	require.NoError(t, err)

	_, err = e.flow.CompleteAssertion(ctx, domain.Assertion{Email: "new@x.com", Provider: "google", ProviderAccountID: "g1"})
	assert.ErrorIs(t, err, signin.ErrBlocked)

	u, err := e.store.FindUserByEmail(ctx, "new@x.com")
	require.NoError(t, err)
	assert.Nil(t, u)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, e.events.has(queue.KeyUserCreated))
}

func TestFlow_BadStateAndProvider(t *testing.T) {
	e := newEnv(t)

	_, err := e.flow.Begin("myspace")
	assert.ErrorIs(t, err, signin.ErrUnknownProvider)

	_, err = e.flow.Complete(context.Background(), "google", "c1", "forged.state.1.sig")
	assert.ErrorIs(t, err, oauth.ErrBadState)

	assert.Equal(t, []string{"google"}, e.flow.Providers())
}

func TestFlow_MagicLink(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.flow.StartEmail(ctx, "  C@X.com "))
	require.Len(t, e.mail.sent, 1)
	assert.Equal(t, []string{"c@x.com"}, e.mail.to)

	u, err := url.Parse(e.mail.sent[0])
	require.NoError(t, err)
	assert.Equal(t, "/api/auth/callback/email", u.Path)
	token := u.Query().Get("token")
	require.NotEmpty(t, token)

	sess, err := e.flow.CompleteEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, sess.Created)
	assert.Equal(t, "c@x.com", sess.User.Email)
	assert.Equal(t, signin.OutcomeUserCreated, sess.Outcome)
	assert.False(t, sess.User.CreatedAt.IsZero())

	// magic-link sign-ins never create credential documents
	creds, err := e.store.FindCredentials(ctx, domain.CredentialFilter{UserID: sess.User.ID})
	require.NoError(t, err)
	assert.Empty(t, creds)

	_, err = e.flow.CompleteEmail(ctx, token)
	assert.ErrorIs(t, err, signin.ErrInvalidToken)
}

func TestValidateEmail(t *testing.T) {
	got, err := signin.ValidateEmail(" A@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got)

	for _, bad := range []string{"", "nope", "a@b", strings.Repeat("a", 250) + "@x.com"} {
		_, err := signin.ValidateEmail(bad)
		assert.ErrorIs(t, err, signin.ErrInvalidEmail, bad)
	}
}

func TestFlow_EmailDisabled(t *testing.T) {
	store := memory.New()
	f := signin.New(linking.NewService(store, store), store, &security.Issuer{Secret: "s", TTL: time.Minute})
	assert.ErrorIs(t, f.StartEmail(context.Background(), "a@x.com"), signin.ErrEmailDisabled)
}

func TestSMTPMailer(t *testing.T) {
	c := &captured{}
	m := signin.NewMailerWithSender("noreply@x.com", c)

	require.NoError(t, m.SendMagicLink(context.Background(), "a@x.com", "http://localhost/cb?token=t"))
	require.Len(t, c.msgs, 1)
	assert.Equal(t, []string{"a@x.com"}, c.msgs[0].GetHeader("To"))
	assert.Equal(t, []string{"noreply@x.com"}, c.msgs[0].GetHeader("From"))
	assert.Equal(t, []string{"Your sign-in link"}, c.msgs[0].GetHeader("Subject"))
}
