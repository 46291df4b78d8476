package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
	ProviderEmail  = "email" // magic link
)

// LinkedCredential ties one external account to a local user.
// (Provider, ProviderAccountID) is unique across the collection.
type LinkedCredential struct {
	ID                primitive.ObjectID `bson:"_id,omitempty"         json:"id"`
	UserID            primitive.ObjectID `bson:"user_id"               json:"user_id"`
	Type              string             `bson:"type"                  json:"type"`
	Provider          string             `bson:"provider"              json:"provider"`
	ProviderAccountID string             `bson:"provider_account_id"   json:"provider_account_id"`
	RefreshToken      *string            `bson:"refresh_token"         json:"-"` // sealed
	ExpiresAt         *int64             `bson:"expires_at"            json:"expires_at,omitempty"`
	CreatedAt         time.Time          `bson:"created_at"            json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at"            json:"updated_at"`
}

// CredentialFilter selects credentials. Zero fields are ignored.
type CredentialFilter struct {
	UserID            primitive.ObjectID
	Provider          string
	ProviderAccountID string
}

func (f CredentialFilter) Match(c *LinkedCredential) bool {
	if !f.UserID.IsZero() && f.UserID != c.UserID {
		return false
	}
	if f.Provider != "" && f.Provider != c.Provider {
		return false
	}
	if f.ProviderAccountID != "" && f.ProviderAccountID != c.ProviderAccountID {
		return false
	}
	return true
}
