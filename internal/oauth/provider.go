// Package oauth talks to the upstream identity providers. Each provider turns
// an authorization code into an Identity; what happens to that identity is
// decided elsewhere.
package oauth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

var ErrNoEmail = errors.New("provider returned no usable e-mail")

// Identity is what a provider vouches for after a successful exchange.
type Identity struct {
	Provider      string
	AccountID     string
	Email         string
	EmailVerified bool
	Name          string
	RefreshToken  string
	Expiry        *time.Time
}

type Provider interface {
	Name() string
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*Identity, error)
}

type options struct {
	endpoint *oauth2.Endpoint
	apiBase  string
}

type Option func(*options)

// WithEndpoint overrides the provider's OAuth endpoints (tests, GitHub
// Enterprise).
func WithEndpoint(ep oauth2.Endpoint) Option { return func(o *options) { o.endpoint = &ep } }

// WithAPIBase overrides the REST API root used to fetch the profile.
func WithAPIBase(u string) Option { return func(o *options) { o.apiBase = u } }

func collect(opts []Option) options {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func tokenFields(tok *oauth2.Token) (refresh string, expiry *time.Time) {
	if !tok.Expiry.IsZero() {
		e := tok.Expiry
		expiry = &e
	}
	return tok.RefreshToken, expiry
}
