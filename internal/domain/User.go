package domain

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is one person, keyed by e-mail. Only the e-mail is stored; profile
// data returned by providers is dropped on purpose.
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email     string             `bson:"email"         json:"email"`
	CreatedAt time.Time          `bson:"created_at"    json:"created_at"`
}

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
