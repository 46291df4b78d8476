package repo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

// EmailToken is a one-time magic-link token. The token itself is never
// stored, only its hash.
type EmailToken struct {
	ID        interface{} `bson:"_id,omitempty"`
	Email     string      `bson:"email"`
	TokenHash string      `bson:"token_hash"`
	ExpiresAt time.Time   `bson:"expires_at"` // TTL index
	UsedAt    *time.Time  `bson:"used_at,omitempty"`
	CreatedAt time.Time   `bson:"created_at"`
}

func (s *Store) EnsureEmailTokenIndexes(ctx context.Context) error {
	_, err := s.colTokens.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("ttl_expire"),
		},
		{
			Keys:    bson.D{{Key: "token_hash", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_token_hash"),
		},
	})
	return err
}

func (s *Store) CreateEmailToken(ctx context.Context, email, plain string, ttl time.Duration) error {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.email_token.insert")
	defer sp.Finish()

	now := time.Now().UTC()
	_, err := s.colTokens.InsertOne(ctx, EmailToken{
		Email:     email,
		TokenHash: HashToken(plain),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if err != nil {
		sp.SetTag("error", err)
	}
	return err
}

// UseEmailToken marks the token used and returns the e-mail it was issued
// for. Unknown, expired and already used tokens yield ("", nil).
func (s *Store) UseEmailToken(ctx context.Context, plain string) (string, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.email_token.consume")
	defer sp.Finish()

	now := time.Now().UTC()
	res := s.colTokens.FindOneAndUpdate(
		ctx,
		bson.M{"token_hash": HashToken(plain), "used_at": bson.M{"$exists": false}, "expires_at": bson.M{"$gt": now}},
		bson.M{"$set": bson.M{"used_at": now}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var et EmailToken
	if err := res.Decode(&et); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", nil
		}
		sp.SetTag("error", err)
		return "", err
	}
	return et.Email, nil
}
