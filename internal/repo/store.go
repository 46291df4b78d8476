package repo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	mongotrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	Client      *mongo.Client
	DB          *mongo.Database
	colUsers    *mongo.Collection
	colAccounts *mongo.Collection
	colTokens   *mongo.Collection
	colEvents   *mongo.Collection
}

func NewStore(ctx context.Context, uri, dbname string) (*Store, error) {
	cli, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetRetryWrites(true).
		SetMaxPoolSize(50).
		SetMonitor(mongotrace.NewMonitor()),
	)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, err
	}
	db := cli.Database(dbname)
	return &Store{
		Client:      cli,
		DB:          db,
		colUsers:    db.Collection("users"),
		colAccounts: db.Collection("accounts"),
		colTokens:   db.Collection("email_tokens"),
		colEvents:   db.Collection("auth_events"),
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.Client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.Client.Disconnect(ctx)
}

// EnsureIndexes creates every index the service relies on. The unique
// indexes are what actually enforce one user per e-mail and one owner per
// provider account; the application checks only report on them.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.colUsers.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_email"),
	}); err != nil {
		return err
	}

	if _, err := s.colAccounts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "provider_account_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_provider_account"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "provider", Value: 1}},
			Options: options.Index().SetName("user_provider"),
		},
	}); err != nil {
		return err
	}

	if err := s.EnsureEmailTokenIndexes(ctx); err != nil {
		return err
	}

	_, err := s.colEvents.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "received_at", Value: -1}},
			Options: options.Index().SetName("received_desc"),
		},
		{
			Keys:    bson.D{{Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_message_id"),
		},
	})
	return err
}

func IsDup(err error) bool {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	return false
}
