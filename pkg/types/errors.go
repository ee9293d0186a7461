package types

import (
	"errors"
	"fmt"
)

// Resolution and mapping errors.
var (
	ErrNotFound         = errors.New("entity not found")
	ErrMapping          = errors.New("data does not match relation shape")
	ErrNoRelationFiller = errors.New("no relation filler for relation kind")
	ErrIdentityConflict = errors.New("identity conflict")
	ErrMissingKey       = errors.New("entity has no primary key")
	ErrFlush            = errors.New("flush failed")
)

// Catalog errors.
var (
	ErrUnknownType     = errors.New("unknown entity type")
	ErrUnknownRelation = errors.New("unknown relation")
	ErrInvalidRelation = errors.New("invalid relation")
	ErrInvalidType     = errors.New("invalid entity type")
)

// Storage lifecycle errors.
var (
	ErrDetached        = errors.New("storage is detached")
	ErrAlreadyAttached = errors.New("storage is already attached")
)

// RelationError reports a failure tied to one relation of one entity type.
// It wraps ErrMapping or ErrNoRelationFiller so callers can match with
// errors.Is and still see which relation failed.
type RelationError struct {
	Type     string
	Relation string
	Kind     RelationKind
	Reason   string
	Err      error
}

func (e *RelationError) Error() string {
	msg := fmt.Sprintf("%s::%s (%s): %v", e.Type, e.Relation, e.Kind, e.Err)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *RelationError) Unwrap() error { return e.Err }
