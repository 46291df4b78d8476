// Package linking decides how an incoming provider identity relates to the
// local users: new user, already linked, link it now, or conflict.
//
// Every entry point (the HTTP link/check endpoints and the sign-in flow)
// goes through Service so the rules cannot drift apart.
package linking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tazhibayda/identity-service/internal/domain"
	"github.com/tazhibayda/identity-service/internal/helper"
	"github.com/tazhibayda/identity-service/internal/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	SourceAPI    = "api"
	SourceSignIn = "signin"
)

// Sealer protects provider refresh tokens before they are stored.
type Sealer interface {
	Seal(plain string) (string, error)
}

type Service struct {
	users    domain.UserStore
	creds    domain.CredentialStore
	notifier Notifier
	sealer   Sealer
	log      *zap.Logger
	failOpen bool
	now      func() time.Time
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }
func WithSealer(sl Sealer) Option    { return func(s *Service) { s.sealer = sl } }
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithFailOpen controls whether sign-in is permitted when the linking check
// cannot reach storage.
func WithFailOpen(v bool) Option { return func(s *Service) { s.failOpen = v } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(users domain.UserStore, creds domain.CredentialStore, opts ...Option) *Service {
	s := &Service{
		users:    users,
		creds:    creds,
		notifier: NopNotifier{},
		log:      zap.NewNop(),
		failOpen: true,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Reconcile runs the linking decision for an explicit API caller.
// The returned error is non-nil only for invalid input (ErrValidation) and
// storage failures (ErrStorage); NoSuchUser and Conflict are outcomes.
func (s *Service) Reconcile(ctx context.Context, a domain.Assertion) (Result, error) {
	if err := validate(a); err != nil {
		return Result{}, err
	}
	res := s.reconcile(ctx, a)
	s.notify(ctx, SourceAPI, a, res)
	if res.Outcome == StorageError {
		s.log.Error("account linking failed",
			zap.String("provider", a.Provider),
			zap.String("email_hash", helper.Hash8(a.Email)),
			zap.Error(res.Cause))
		return res, res.Err()
	}
	return res, nil
}

// SignIn runs the decision on behalf of the sign-in flow and reports whether
// sign-in may proceed. Magic-link sign-ins never need a credential document.
// A storage failure permits sign-in only when the service is fail-open.
func (s *Service) SignIn(ctx context.Context, a domain.Assertion) (bool, Result) {
	if a.Provider == domain.ProviderEmail {
		return true, Result{Outcome: AlreadyLinked}
	}
	if err := validate(a); err != nil {
		s.log.Debug("linking deferred", zap.Error(err))
		return true, Result{Outcome: Undecided}
	}

	res := s.reconcile(ctx, a)
	s.notify(ctx, SourceSignIn, a, res)

	switch res.Outcome {
	case Conflict:
		s.log.Warn("account linking conflict, sign-in blocked",
			zap.String("provider", a.Provider),
			zap.String("email_hash", helper.Hash8(a.Email)),
			zap.String("conflicting_user_id", res.ConflictingUserID.Hex()))
		return false, res
	case StorageError:
		s.log.Error("account linking error in sign-in",
			zap.String("provider", a.Provider),
			zap.Bool("fail_open", s.failOpen),
			zap.Error(res.Cause))
		return s.failOpen, res
	case LinkCreated:
		s.log.Info("account automatically linked",
			zap.String("user_id", res.UserID.Hex()),
			zap.String("provider", a.Provider))
	}
	return true, res
}

func (s *Service) reconcile(ctx context.Context, a domain.Assertion) Result {
	user, err := s.users.FindUserByEmail(ctx, a.Email)
	if err != nil {
		return storageFailure("find user", err)
	}
	if user == nil {
		return Result{Outcome: NoSuchUser}
	}

	own, err := s.creds.FindCredential(ctx, domain.CredentialFilter{
		UserID:            user.ID,
		Provider:          a.Provider,
		ProviderAccountID: a.ProviderAccountID,
	})
	if err != nil {
		return storageFailure("find own credential", err)
	}
	if own != nil {
		return Result{Outcome: AlreadyLinked, UserID: user.ID, Credential: own}
	}

	owner, err := s.ownerOf(ctx, a)
	if err != nil {
		return storageFailure("find credential", err)
	}
	if owner != nil {
		return s.judge(user, owner)
	}

	cred, err := s.newCredential(user, a)
	if err != nil {
		return storageFailure("seal token", err)
	}
	err = s.creds.InsertCredential(ctx, cred)
	if errors.Is(err, domain.ErrDuplicate) {
		// Lost a race against another writer for the same provider account.
		owner, err = s.ownerOf(ctx, a)
		if err != nil {
			return storageFailure("find credential after duplicate", err)
		}
		if owner == nil {
			return storageFailure("insert credential", domain.ErrDuplicate)
		}
		return s.judge(user, owner)
	}
	if err != nil {
		return storageFailure("insert credential", err)
	}
	return Result{Outcome: LinkCreated, UserID: user.ID, Credential: cred}
}

// AccountOwner returns the user holding a's provider account, if any.
// Magic-link assertions have no provider account and never have an owner.
func (s *Service) AccountOwner(ctx context.Context, a domain.Assertion) (primitive.ObjectID, bool, error) {
	if a.Provider == domain.ProviderEmail || a.Provider == "" || a.ProviderAccountID == "" {
		return primitive.NilObjectID, false, nil
	}
	owner, err := s.ownerOf(ctx, a)
	if err != nil {
		return primitive.NilObjectID, false, fmt.Errorf("%w: find credential: %w", ErrStorage, err)
	}
	if owner == nil {
		return primitive.NilObjectID, false, nil
	}
	return owner.UserID, true, nil
}

func (s *Service) ownerOf(ctx context.Context, a domain.Assertion) (*domain.LinkedCredential, error) {
	return s.creds.FindCredential(ctx, domain.CredentialFilter{
		Provider:          a.Provider,
		ProviderAccountID: a.ProviderAccountID,
	})
}

func (s *Service) judge(user *domain.User, owner *domain.LinkedCredential) Result {
	if owner.UserID != user.ID {
		return Result{Outcome: Conflict, UserID: user.ID, ConflictingUserID: owner.UserID}
	}
	return Result{Outcome: AlreadyLinked, UserID: user.ID, Credential: owner}
}

func (s *Service) newCredential(user *domain.User, a domain.Assertion) (*domain.LinkedCredential, error) {
	now := s.now().UTC()
	c := &domain.LinkedCredential{
		UserID:            user.ID,
		Type:              a.Provider,
		Provider:          a.Provider,
		ProviderAccountID: a.ProviderAccountID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if a.RefreshToken != "" {
		tok := a.RefreshToken
		if s.sealer != nil {
			sealed, err := s.sealer.Seal(tok)
			if err != nil {
				return nil, err
			}
			tok = sealed
		}
		c.RefreshToken = &tok
	}
	if a.ExpiresAt != nil {
		exp := a.ExpiresAt.Unix()
		c.ExpiresAt = &exp
	}
	return c, nil
}

func (s *Service) notify(ctx context.Context, source string, a domain.Assertion, res Result) {
	metrics.LinkOutcomes.WithLabelValues(source, res.Outcome.String()).Inc()

	ev := Event{
		Source:            source,
		UserID:            res.UserID,
		EmailHash:         helper.Hash8(a.Email),
		Provider:          a.Provider,
		ProviderAccountID: a.ProviderAccountID,
		Outcome:           res.Outcome,
		ConflictingUserID: res.ConflictingUserID,
	}
	if res.Cause != nil {
		ev.Error = res.Cause.Error()
	}
	go s.notifier.Notify(context.WithoutCancel(ctx), ev)
}
