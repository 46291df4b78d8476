package queue

import (
	"context"
	"time"

	"github.com/tazhibayda/identity-service/internal/repo"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	AuditQueue   = "auth.audit"
	AuditBinding = "#"
)

type EventSink interface {
	SaveAuthEvent(ctx context.Context, ev repo.AuthEvent) error
}

// AuditHandler stores every delivery. Bodies that are not JSON objects are
// kept verbatim under "raw" so they are never requeued forever.
func AuditHandler(sink EventSink) func(context.Context, Message) error {
	return func(ctx context.Context, m Message) error {
		var doc bson.D
		if err := bson.UnmarshalExtJSON(m.Body, false, &doc); err != nil {
			doc = bson.D{{Key: "raw", Value: string(m.Body)}}
		}
		payload, err := bson.Marshal(doc)
		if err != nil {
			return err
		}
		return sink.SaveAuthEvent(ctx, repo.AuthEvent{
			MessageID:  m.ID,
			RoutingKey: m.RoutingKey,
			RequestID:  m.RequestID,
			Payload:    payload,
			ReceivedAt: time.Now().UTC(),
		})
	}
}
