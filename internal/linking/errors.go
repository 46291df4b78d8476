package linking

import (
	"errors"
	"strings"

	"github.com/tazhibayda/identity-service/internal/domain"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("no existing user found with this email")
	ErrConflict   = errors.New("provider account is already linked to a different user")
	ErrStorage    = errors.New("storage failure")
)

// ValidationError lists the required fields that were missing.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func validate(a domain.Assertion) error {
	var missing []string
	if strings.TrimSpace(a.Email) == "" {
		missing = append(missing, "email")
	}
	if strings.TrimSpace(a.Provider) == "" {
		missing = append(missing, "provider")
	}
	if strings.TrimSpace(a.ProviderAccountID) == "" {
		missing = append(missing, "providerAccountId")
	}
	if len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
