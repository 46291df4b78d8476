package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tazhibayda/identity-service/internal/repo"
)

// Tokens keeps magic-link tokens in memory, keyed by hash like the Mongo store.
// A token is removed when used; expired ones are swept on the next create.
type Tokens struct {
	mu     sync.Mutex
	tokens map[string]emailToken
	now    func() time.Time
}

type emailToken struct {
	email     string
	expiresAt time.Time
}

func NewTokens() *Tokens {
	return &Tokens{tokens: make(map[string]emailToken), now: time.Now}
}

func (t *Tokens) CreateEmailToken(_ context.Context, email, plain string, ttl time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.sweep(now)
	t.tokens[repo.HashToken(plain)] = emailToken{email: email, expiresAt: now.Add(ttl)}
	return nil
}

func (t *Tokens) UseEmailToken(_ context.Context, plain string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	key := repo.HashToken(plain)
	et, ok := t.tokens[key]
	if !ok {
		return "", nil
	}
	delete(t.tokens, key)
	if !t.now().Before(et.expiresAt) {
		return "", nil
	}
	return et.email, nil
}

// Len reports how many tokens are held, expired ones included.
func (t *Tokens) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tokens)
}

func (t *Tokens) sweep(now time.Time) {
	for k, et := range t.tokens {
		if !now.Before(et.expiresAt) {
			delete(t.tokens, k)
		}
	}
}
