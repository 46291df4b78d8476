package repo

import (
	"context"
	"errors"

	"github.com/tazhibayda/identity-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

func credentialQuery(f domain.CredentialFilter) bson.M {
	q := bson.M{}
	if !f.UserID.IsZero() {
		q["user_id"] = f.UserID
	}
	if f.Provider != "" {
		q["provider"] = f.Provider
	}
	if f.ProviderAccountID != "" {
		q["provider_account_id"] = f.ProviderAccountID
	}
	return q
}

func (s *Store) FindCredential(ctx context.Context, f domain.CredentialFilter) (*domain.LinkedCredential, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.account.find_one",
		tracer.Tag("provider", f.Provider),
	)
	defer sp.Finish()

	var c domain.LinkedCredential
	err := s.colAccounts.FindOne(ctx, credentialQuery(f)).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		sp.SetTag("error", err)
		return nil, err
	}
	return &c, nil
}

func (s *Store) FindCredentials(ctx context.Context, f domain.CredentialFilter) ([]domain.LinkedCredential, error) {
	cur, err := s.colAccounts.Find(ctx, credentialQuery(f),
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(100),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []domain.LinkedCredential{}
	for cur.Next(ctx) {
		var c domain.LinkedCredential
		if err := cur.Decode(&c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, cur.Err()
}

// InsertCredential relies on the uniq_provider_account index; losing a race
// against another writer yields domain.ErrDuplicate.
func (s *Store) InsertCredential(ctx context.Context, c *domain.LinkedCredential) error {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.account.insert",
		tracer.Tag("provider", c.Provider),
		tracer.Tag("user_id", c.UserID.Hex()),
	)
	defer sp.Finish()

	res, err := s.colAccounts.InsertOne(ctx, c)
	if IsDup(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		sp.SetTag("error", err)
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		c.ID = oid
	}
	return nil
}
