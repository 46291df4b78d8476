package signin

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tazhibayda/identity-service/internal/domain"
	"github.com/tazhibayda/identity-service/internal/helper"
	"github.com/tazhibayda/identity-service/internal/queue"
	"github.com/tazhibayda/identity-service/internal/security"
	"go.uber.org/zap"
)

var (
	ErrInvalidEmail  = errors.New("invalid email address")
	ErrInvalidToken  = errors.New("sign-in link is invalid or has expired")
	ErrEmailDisabled = errors.New("email sign-in is not configured")
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

const maxEmailLen = 254

// ValidateEmail normalizes s and checks it is a plausible address.
func ValidateEmail(s string) (string, error) {
	email := domain.NormalizeEmail(s)
	switch {
	case email == "":
		return "", fmt.Errorf("%w: email is required", ErrInvalidEmail)
	case len(email) > maxEmailLen:
		return "", fmt.Errorf("%w: email is too long (max %d characters)", ErrInvalidEmail, maxEmailLen)
	case !emailRe.MatchString(email):
		return "", fmt.Errorf("%w: invalid email format", ErrInvalidEmail)
	}
	return email, nil
}

// TokenStore keeps one-time magic-link tokens. UseEmailToken returns "" for
// unknown, used or expired tokens.
type TokenStore interface {
	CreateEmailToken(ctx context.Context, email, plain string, ttl time.Duration) error
	UseEmailToken(ctx context.Context, plain string) (string, error)
}

type magicLink struct {
	tokens  TokenStore
	mailer  Mailer
	baseURL string
	ttl     time.Duration
}

// WithMagicLink enables passwordless e-mail sign-in. Links point at
// baseURL + /api/auth/callback/email.
func WithMagicLink(tokens TokenStore, mailer Mailer, baseURL string, ttl time.Duration) Option {
	return func(f *Flow) {
		f.magic = &magicLink{tokens: tokens, mailer: mailer, baseURL: strings.TrimRight(baseURL, "/"), ttl: ttl}
	}
}

// StartEmail mails a one-time sign-in link to email.
func (f *Flow) StartEmail(ctx context.Context, email string) error {
	if f.magic == nil {
		return ErrEmailDisabled
	}
	email, err := ValidateEmail(email)
	if err != nil {
		return err
	}
	tok, err := security.NewToken()
	if err != nil {
		return err
	}
	if err := f.magic.tokens.CreateEmailToken(ctx, email, tok, f.magic.ttl); err != nil {
		return fmt.Errorf("store email token: %w", err)
	}
	link := f.magic.baseURL + "/api/auth/callback/email?token=" + url.QueryEscape(tok)
	if err := f.magic.mailer.SendMagicLink(ctx, email, link); err != nil {
		f.log.Error("send magic link", zap.String("email_hash", helper.Hash8(email)), zap.Error(err))
		return fmt.Errorf("send magic link: %w", err)
	}

	go f.events.Emit(context.WithoutCancel(ctx), queue.KeyMagicLinkRequested, queue.MagicLinkRequested{
		EmailHash: helper.Hash8(email),
		At:        f.now().UTC(),
	}, "")
	return nil
}

// CompleteEmail consumes a magic-link token and signs its owner in.
func (f *Flow) CompleteEmail(ctx context.Context, token string) (*Session, error) {
	if f.magic == nil {
		return nil, ErrEmailDisabled
	}
	if token == "" {
		return nil, ErrInvalidToken
	}
	email, err := f.magic.tokens.UseEmailToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("use email token: %w", err)
	}
	if email == "" {
		return nil, ErrInvalidToken
	}
	return f.CompleteAssertion(ctx, domain.Assertion{
		Email:             email,
		Provider:          domain.ProviderEmail,
		ProviderAccountID: email,
	})
}

func (f *Flow) EmailEnabled() bool { return f.magic != nil }
