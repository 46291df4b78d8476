package repo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuthEvent is one message from the auth.events exchange as kept by the
// audit consumer.
type AuthEvent struct {
	ID         interface{} `bson:"_id,omitempty"`
	MessageID  string      `bson:"message_id,omitempty"`
	RoutingKey string      `bson:"routing_key"`
	RequestID  string      `bson:"request_id,omitempty"`
	Payload    bson.Raw    `bson:"payload"`
	ReceivedAt time.Time   `bson:"received_at"`
}

// SaveAuthEvent is idempotent on MessageID so redeliveries are harmless.
func (s *Store) SaveAuthEvent(ctx context.Context, ev AuthEvent) error {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}
	if ev.MessageID == "" {
		_, err := s.colEvents.InsertOne(ctx, ev)
		return err
	}
	_, err := s.colEvents.UpdateOne(ctx,
		bson.M{"message_id": ev.MessageID},
		bson.M{"$setOnInsert": ev},
		options.Update().SetUpsert(true),
	)
	return err
}
