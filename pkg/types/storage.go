package types

import "context"

// Storage is the persistence engine the fill core reads from and flushes to.
// Lookups return ErrNotFound when no record matches.
type Storage interface {
	// Find loads the record of type t with the given primary key.
	Find(ctx context.Context, t *EntityType, key any) (*Entity, error)

	// FindByField loads the first record of type t whose field equals value.
	FindByField(ctx context.Context, t *EntityType, field string, value any) (*Entity, error)

	// LoadRelation queries the records currently related to e through the
	// named relation. To-one relations yield at most one entity. Returned
	// handles are fresh; callers canonicalize them through an identity map.
	LoadRelation(ctx context.Context, e *Entity, name string) ([]*Entity, error)

	// Transaction runs fn inside one transaction, committing when fn returns
	// nil and rolling back otherwise.
	Transaction(ctx context.Context, fn func(Tx) error) error
}

// Tx is the write surface available inside Storage.Transaction.
type Tx interface {
	// Save inserts e or updates it in place when its key already exists.
	Save(ctx context.Context, e *Entity) error

	// Delete removes e. Deleting a missing record is not an error.
	Delete(ctx context.Context, e *Entity) error

	// Attach inserts one join row.
	Attach(ctx context.Context, table string, row map[string]any) error

	// Detach removes every join row matching all where conditions.
	Detach(ctx context.Context, table string, where map[string]any) error
}
