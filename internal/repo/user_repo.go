package repo

import (
	"context"
	"errors"
	"time"

	"github.com/tazhibayda/identity-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.user.find_by_email")
	defer sp.Finish()

	var u domain.User
	err := s.colUsers.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		sp.SetTag("error", err)
		return nil, err
	}
	return &u, nil
}

func (s *Store) FindUserByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error) {
	var u domain.User
	err := s.colUsers.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser stores only the e-mail. A duplicate e-mail yields domain.ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	sp, ctx := tracer.StartSpanFromContext(ctx, "mongo.user.insert")
	defer sp.Finish()

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := s.colUsers.InsertOne(ctx, u)
	if IsDup(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		sp.SetTag("error", err)
		return err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = oid
	}
	return nil
}
