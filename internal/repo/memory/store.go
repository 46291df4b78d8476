// Package memory is an in-process user/credential store with the same
// uniqueness rules as the MongoDB indexes. Used by tests and local runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tazhibayda/identity-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Store struct {
	mu    sync.RWMutex
	users []domain.User
	creds []domain.LinkedCredential
}

func New() *Store { return &Store{} }

func (s *Store) FindUserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.users {
		if s.users[i].Email == email {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Store) FindUserByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.users {
		if s.users[i].ID == id {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Store) CreateUser(_ context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.users {
		if s.users[i].Email == u.Email {
			return domain.ErrDuplicate
		}
	}
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users = append(s.users, *u)
	return nil
}

func (s *Store) FindCredential(_ context.Context, f domain.CredentialFilter) (*domain.LinkedCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.creds {
		if f.Match(&s.creds[i]) {
			c := s.creds[i]
			return &c, nil
		}
	}
	return nil, nil
}

func (s *Store) FindCredentials(_ context.Context, f domain.CredentialFilter) ([]domain.LinkedCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.LinkedCredential{}
	for i := range s.creds {
		if f.Match(&s.creds[i]) {
			out = append(out, s.creds[i])
		}
	}
	return out, nil
}

func (s *Store) InsertCredential(_ context.Context, c *domain.LinkedCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.creds {
		if s.creds[i].Provider == c.Provider && s.creds[i].ProviderAccountID == c.ProviderAccountID {
			return domain.ErrDuplicate
		}
	}
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	s.creds = append(s.creds, *c)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
