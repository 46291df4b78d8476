package linking

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/tazhibayda/identity-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LinkedProvidersOf returns the distinct providers among creds, in the order
// they first appear.
func LinkedProvidersOf(creds []domain.LinkedCredential) []string {
	out := make([]string, 0, len(creds))
	for _, c := range creds {
		if !slices.Contains(out, c.Provider) {
			out = append(out, c.Provider)
		}
	}
	return out
}

// CanLink reports whether provider is still free for a user whose linked
// providers are linked.
func CanLink(linked []string, provider string) bool {
	return !slices.Contains(linked, provider)
}

func otherProviders(linked []string, provider string) []string {
	out := make([]string, 0, len(linked))
	for _, p := range linked {
		if p != provider {
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) Accounts(ctx context.Context, userID primitive.ObjectID) ([]domain.LinkedCredential, error) {
	creds, err := s.creds.FindCredentials(ctx, domain.CredentialFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("%w: list credentials: %w", ErrStorage, err)
	}
	return creds, nil
}

func (s *Service) LinkedProviders(ctx context.Context, userID primitive.ObjectID) ([]string, error) {
	creds, err := s.Accounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return LinkedProvidersOf(creds), nil
}

type CheckQuery struct {
	Email             string
	Provider          string // optional
	ProviderAccountID string // optional, enables the conflict probe
}

// CheckReport is the pre-flight answer shown to the UI before linking.
type CheckReport struct {
	Exists                  bool     `json:"exists"`
	UserID                  string   `json:"userId,omitempty"`
	Email                   string   `json:"email,omitempty"`
	LinkedProviders         []string `json:"linkedProviders"`
	OtherProviders          []string `json:"otherProviders"`
	IsCurrentProviderLinked bool     `json:"isCurrentProviderLinked"`
	CanLink                 bool     `json:"canLink"`
	Conflict                bool     `json:"conflict"`
	ConflictingUserID       string   `json:"conflictingUserId,omitempty"`
	Message                 string   `json:"message"`
}

// Check answers "what would happen if this provider were linked" without
// writing anything.
func (s *Service) Check(ctx context.Context, q CheckQuery) (CheckReport, error) {
	if strings.TrimSpace(q.Email) == "" {
		return CheckReport{}, &ValidationError{Missing: []string{"email"}}
	}

	rep := CheckReport{LinkedProviders: []string{}, OtherProviders: []string{}}

	user, err := s.users.FindUserByEmail(ctx, q.Email)
	if err != nil {
		return CheckReport{}, fmt.Errorf("%w: find user: %w", ErrStorage, err)
	}
	if user == nil {
		rep.Message = ErrNotFound.Error()
		return rep, nil
	}
	rep.Exists = true
	rep.UserID = user.ID.Hex()
	rep.Email = user.Email

	if q.Provider != "" && q.ProviderAccountID != "" {
		owner, err := s.ownerOf(ctx, domain.Assertion{Provider: q.Provider, ProviderAccountID: q.ProviderAccountID})
		if err != nil {
			return CheckReport{}, fmt.Errorf("%w: find credential: %w", ErrStorage, err)
		}
		if owner != nil && owner.UserID != user.ID {
			rep.Conflict = true
			rep.ConflictingUserID = owner.UserID.Hex()
			rep.Message = ErrConflict.Error()
			return rep, nil
		}
	}

	linked, err := s.LinkedProviders(ctx, user.ID)
	if err != nil {
		return CheckReport{}, err
	}
	rep.LinkedProviders = linked
	rep.OtherProviders = linked

	rep.CanLink = true
	if q.Provider != "" {
		rep.IsCurrentProviderLinked = !CanLink(linked, q.Provider)
		rep.CanLink = !rep.IsCurrentProviderLinked
		rep.OtherProviders = otherProviders(linked, q.Provider)
	}

	switch {
	case rep.IsCurrentProviderLinked:
		rep.Message = "This provider is already linked to this account"
	case len(rep.OtherProviders) > 0:
		rep.Message = "Account exists with other providers. You can link this provider."
	default:
		rep.Message = "Account exists but no providers are linked yet"
	}
	return rep, nil
}
