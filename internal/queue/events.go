package queue

import (
	"time"

	"github.com/tazhibayda/identity-service/internal/linking"
)

// Routing keys on the auth.events exchange.
const (
	KeyAccountLinked        = "account.linked"
	KeyAccountAlreadyLinked = "account.already_linked"
	KeyAccountNoUser        = "account.no_user"
	KeyAccountConflict      = "account.conflict"
	KeyAccountLinkFailed    = "account.link_failed"
	KeyUserCreated          = "user.created"
	KeyUserSignedIn         = "user.signed_in"
	KeyMagicLinkRequested   = "user.magic_link_requested"
)

// RoutingKey maps a linking outcome to its routing key. Undecided has none.
func RoutingKey(o linking.Outcome) string {
	switch o {
	case linking.LinkCreated:
		return KeyAccountLinked
	case linking.AlreadyLinked:
		return KeyAccountAlreadyLinked
	case linking.NoSuchUser:
		return KeyAccountNoUser
	case linking.Conflict:
		return KeyAccountConflict
	case linking.StorageError:
		return KeyAccountLinkFailed
	}
	return ""
}

// AccountLinkEvent never carries the raw e-mail.
type AccountLinkEvent struct {
	Source            string    `json:"source"`
	UserID            string    `json:"user_id,omitempty"`
	EmailHash         string    `json:"email_hash"`
	Provider          string    `json:"provider"`
	ProviderAccountID string    `json:"provider_account_id"`
	Outcome           string    `json:"outcome"`
	ConflictingUserID string    `json:"conflicting_user_id,omitempty"`
	Error             string    `json:"error,omitempty"`
	At                time.Time `json:"at"`
}

type UserCreated struct {
	UserID    string    `json:"user_id"`
	EmailHash string    `json:"email_hash"`
	Provider  string    `json:"provider"`
	At        time.Time `json:"at"`
}

type UserSignedIn struct {
	UserID   string    `json:"user_id"`
	Provider string    `json:"provider"`
	Linked   bool      `json:"linked"`
	At       time.Time `json:"at"`
}

type MagicLinkRequested struct {
	EmailHash string    `json:"email_hash"`
	At        time.Time `json:"at"`
}
