package queue

import (
	"context"
	"time"

	"github.com/tazhibayda/identity-service/internal/linking"
	"github.com/tazhibayda/identity-service/internal/metrics"
	"go.uber.org/zap"
)

// Notifier publishes auth events to one exchange. Publishing is best effort:
// failures are counted and logged, never returned to the request path.
type Notifier struct {
	Pub      Publisher
	Exchange string
	Log      *zap.Logger
	Now      func() time.Time
}

func NewNotifier(pub Publisher, exchange string, log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{Pub: pub, Exchange: exchange, Log: log, Now: time.Now}
}

// Notify implements linking.Notifier.
func (n *Notifier) Notify(ctx context.Context, ev linking.Event) {
	key := RoutingKey(ev.Outcome)
	if key == "" {
		return
	}
	msg := AccountLinkEvent{
		Source:            ev.Source,
		EmailHash:         ev.EmailHash,
		Provider:          ev.Provider,
		ProviderAccountID: ev.ProviderAccountID,
		Outcome:           ev.Outcome.String(),
		Error:             ev.Error,
		At:                n.Now().UTC(),
	}
	if !ev.UserID.IsZero() {
		msg.UserID = ev.UserID.Hex()
	}
	if !ev.ConflictingUserID.IsZero() {
		msg.ConflictingUserID = ev.ConflictingUserID.Hex()
	}
	n.Emit(ctx, key, msg, "")
}

type reqIDKey struct{}

// WithRequestID tags ctx so events published under it carry X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, reqIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(reqIDKey{}).(string)
	return id
}

// Emit publishes one event and records the result. An empty reqID is taken
// from ctx.
func (n *Notifier) Emit(ctx context.Context, key string, event any, reqID string) {
	if reqID == "" {
		reqID = RequestID(ctx)
	}
	if err := n.Pub.Publish(ctx, n.Exchange, key, event, reqID); err != nil {
		metrics.EventsPublished.WithLabelValues(key, "error").Inc()
		n.Log.Warn("publish event failed", zap.String("key", key), zap.Error(err))
		return
	}
	metrics.EventsPublished.WithLabelValues(key, "ok").Inc()
}
