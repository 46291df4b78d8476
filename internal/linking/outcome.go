package linking

import (
	"fmt"

	"github.com/tazhibayda/identity-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Outcome is the result kind of a reconciliation.
type Outcome int

const (
	// Undecided means no decision was made: the sign-in path got an
	// assertion without enough data and deferred linking.
	Undecided Outcome = iota
	NoSuchUser
	AlreadyLinked
	Conflict
	LinkCreated
	StorageError
)

func (o Outcome) String() string {
	switch o {
	case NoSuchUser:
		return "no_such_user"
	case AlreadyLinked:
		return "already_linked"
	case Conflict:
		return "conflict"
	case LinkCreated:
		return "link_created"
	case StorageError:
		return "storage_error"
	default:
		return "undecided"
	}
}

// Result carries the outcome and whatever facts the caller needs to act on it.
type Result struct {
	Outcome Outcome

	// UserID is the user matched by e-mail. Zero for NoSuchUser.
	UserID primitive.ObjectID
	// Credential is the linked credential for AlreadyLinked and LinkCreated.
	Credential *domain.LinkedCredential
	// ConflictingUserID owns the provider account when Outcome is Conflict.
	ConflictingUserID primitive.ObjectID
	// Cause is the underlying storage error when Outcome is StorageError.
	Cause error
}

// Err maps the outcome onto the error taxonomy. Successful outcomes return nil.
func (r Result) Err() error {
	switch r.Outcome {
	case NoSuchUser:
		return ErrNotFound
	case Conflict:
		return ErrConflict
	case StorageError:
		return fmt.Errorf("%w: %w", ErrStorage, r.Cause)
	}
	return nil
}

// Linked reports whether the provider account now belongs to the matched user.
func (r Result) Linked() bool {
	return r.Outcome == AlreadyLinked || r.Outcome == LinkCreated
}

func storageFailure(op string, err error) Result {
	return Result{Outcome: StorageError, Cause: fmt.Errorf("%s: %w", op, err)}
}
