package linking

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event describes one reconciliation for the audit trail.
type Event struct {
	Source            string // "api" or "signin"
	UserID            primitive.ObjectID
	EmailHash         string
	Provider          string
	ProviderAccountID string
	Outcome           Outcome
	ConflictingUserID primitive.ObjectID
	Error             string
}

// Notifier receives events off the critical path. Implementations must not
// assume the request context is still alive.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Event) {}
