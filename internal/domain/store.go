package domain

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrDuplicate is returned by stores when a unique constraint rejects a write.
var ErrDuplicate = errors.New("duplicate key")

// UserStore finds and creates users. Lookups return (nil, nil) when nothing matches.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*User, error)
	CreateUser(ctx context.Context, u *User) error
}

// CredentialStore finds and inserts linked credentials.
type CredentialStore interface {
	FindCredential(ctx context.Context, f CredentialFilter) (*LinkedCredential, error)
	FindCredentials(ctx context.Context, f CredentialFilter) ([]LinkedCredential, error)
	InsertCredential(ctx context.Context, c *LinkedCredential) error
}
