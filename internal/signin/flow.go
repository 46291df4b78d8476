// Package signin drives a sign-in from the provider round trip to an issued
// session. Every identity goes through linking.Service.SignIn first.
package signin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/tazhibayda/identity-service/internal/domain"
	"github.com/tazhibayda/identity-service/internal/helper"
	"github.com/tazhibayda/identity-service/internal/linking"
	"github.com/tazhibayda/identity-service/internal/oauth"
	"github.com/tazhibayda/identity-service/internal/queue"
	"go.uber.org/zap"
)

var (
	// ErrBlocked means the provider account belongs to another user.
	ErrBlocked         = errors.New("sign-in blocked: this account is linked to another user")
	ErrUnknownProvider = errors.New("unknown provider")
)

// Issuer mints session tokens.
type Issuer interface {
	Issue(uid, email, provider string) (string, error)
}

// Events receives auth events. queue.Notifier implements it.
type Events interface {
	Emit(ctx context.Context, key string, event any, reqID string)
}

type nopEvents struct{}

func (nopEvents) Emit(context.Context, string, any, string) {}

// OutcomeUserCreated is the session outcome of a first sign-in that created
// the user without linking a provider account (magic link, deferred linking).
const OutcomeUserCreated = "user_created"

type Session struct {
	Token    string      `json:"token"`
	User     domain.User `json:"user"`
	Provider string      `json:"provider"`
	Outcome  string      `json:"outcome"`
	Created  bool        `json:"created"`
}

type Flow struct {
	linker    *linking.Service
	users     domain.UserStore
	issuer    Issuer
	providers map[string]oauth.Provider
	state     *oauth.StateSigner
	events    Events
	log       *zap.Logger
	now       func() time.Time

	magic *magicLink
}

type Option func(*Flow)

func WithProvider(p oauth.Provider) Option {
	return func(f *Flow) { f.providers[p.Name()] = p }
}
func WithState(s *oauth.StateSigner) Option { return func(f *Flow) { f.state = s } }
func WithEvents(e Events) Option            { return func(f *Flow) { f.events = e } }
func WithLogger(l *zap.Logger) Option       { return func(f *Flow) { f.log = l } }

func New(linker *linking.Service, users domain.UserStore, issuer Issuer, opts ...Option) *Flow {
	f := &Flow{
		linker:    linker,
		users:     users,
		issuer:    issuer,
		providers: map[string]oauth.Provider{},
		events:    nopEvents{},
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	if f.state == nil {
		f.state = oauth.NewStateSigner("", 0)
	}
	return f
}

// Providers lists the configured OAuth providers by name.
func (f *Flow) Providers() []string {
	out := make([]string, 0, len(f.providers))
	for name := range f.providers {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Begin returns the consent page URL for provider.
func (f *Flow) Begin(provider string) (string, error) {
	p, ok := f.providers[provider]
	if !ok {
		return "", ErrUnknownProvider
	}
	st, err := f.state.Make(provider)
	if err != nil {
		return "", err
	}
	return p.AuthURL(st), nil
}

// Complete finishes the OAuth round trip started by Begin.
func (f *Flow) Complete(ctx context.Context, provider, code, state string) (*Session, error) {
	p, ok := f.providers[provider]
	if !ok {
		return nil, ErrUnknownProvider
	}
	if err := f.state.Verify(state, provider); err != nil {
		return nil, err
	}
	id, err := p.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	return f.CompleteAssertion(ctx, domain.Assertion{
		Email:             domain.NormalizeEmail(id.Email),
		Provider:          id.Provider,
		ProviderAccountID: id.AccountID,
		RefreshToken:      id.RefreshToken,
		ExpiresAt:         id.Expiry,
	})
}

// CompleteAssertion applies the linking decision and, when sign-in is
// permitted, creates the user if needed and issues a session.
func (f *Flow) CompleteAssertion(ctx context.Context, a domain.Assertion) (*Session, error) {
	if a.Email == "" {
		return nil, &linking.ValidationError{Missing: []string{"email"}}
	}
	ok, res := f.linker.SignIn(ctx, a)
	if !ok {
		if res.Outcome == linking.Conflict {
			return nil, ErrBlocked
		}
		return nil, res.Err()
	}

	sess := &Session{Provider: a.Provider}
	user, err := f.users.FindUserByEmail(ctx, a.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: find user: %w", linking.ErrStorage, err)
	}
	if user == nil {
		owner, taken, err := f.linker.AccountOwner(ctx, a)
		if err != nil {
			return nil, err
		}
		if taken {
			f.log.Warn("provider account held by another user, sign-in blocked",
				zap.String("provider", a.Provider),
				zap.String("conflicting_user_id", owner.Hex()))
			return nil, ErrBlocked
		}
		if user, sess.Created, err = f.createUser(ctx, a); err != nil {
			return nil, err
		}
		if res.Outcome == linking.NoSuchUser {
			// attach the credential now that the user exists
			if ok, res = f.linker.SignIn(ctx, a); !ok {
				if res.Outcome == linking.Conflict {
					return nil, ErrBlocked
				}
				return nil, res.Err()
			}
		}
	}
	sess.User = *user
	sess.Outcome = res.Outcome.String()
	if sess.Created && res.Outcome != linking.LinkCreated {
		sess.Outcome = OutcomeUserCreated
	}

	sess.Token, err = f.issuer.Issue(user.ID.Hex(), user.Email, a.Provider)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}

	go f.events.Emit(context.WithoutCancel(ctx), queue.KeyUserSignedIn, queue.UserSignedIn{
		UserID:   user.ID.Hex(),
		Provider: a.Provider,
		Linked:   res.Outcome == linking.LinkCreated,
		At:       f.now().UTC(),
	}, "")
	f.log.Info("signed in",
		zap.String("user_id", user.ID.Hex()),
		zap.String("provider", a.Provider),
		zap.Bool("created", sess.Created),
		zap.String("outcome", sess.Outcome))
	return sess, nil
}

// createUser tolerates losing a race with a concurrent first sign-in for the
// same e-mail; created is false then.
func (f *Flow) createUser(ctx context.Context, a domain.Assertion) (u *domain.User, created bool, err error) {
	u = &domain.User{Email: a.Email}
	err = f.users.CreateUser(ctx, u)
	if errors.Is(err, domain.ErrDuplicate) {
		existing, ferr := f.users.FindUserByEmail(ctx, a.Email)
		if ferr != nil || existing == nil {
			return nil, false, fmt.Errorf("%w: re-read user: %w", linking.ErrStorage, errors.Join(err, ferr))
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: create user: %w", linking.ErrStorage, err)
	}
	go f.events.Emit(context.WithoutCancel(ctx), queue.KeyUserCreated, queue.UserCreated{
		UserID:    u.ID.Hex(),
		EmailHash: helper.Hash8(u.Email),
		Provider:  a.Provider,
		At:        f.now().UTC(),
	}, "")
	return u, true, nil
}
