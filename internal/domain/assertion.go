package domain

import "time"

// Assertion is what a provider tells us about the person signing in.
type Assertion struct {
	Email             string
	Provider          string
	ProviderAccountID string
	RefreshToken      string     // optional
	ExpiresAt         *time.Time // optional
}
