package types

import "context"

// KeyGenerator produces surrogate keys for new entities.
type KeyGenerator interface {
	Generate(t *EntityType) any
}

// Filler materializes entity graphs from nested data trees. A Filler is one
// session: identities and pending writes accumulate across Fill calls until
// Flush or Clear.
type Filler interface {
	// Fill resolves or creates the root entity of type typeName from data,
	// recursively wiring every relation present in data. A nil data map
	// returns a nil entity.
	Fill(ctx context.Context, typeName string, data map[string]any) (*Entity, error)

	// FillEntity applies data to an entity the caller already holds.
	FillEntity(ctx context.Context, e *Entity, data map[string]any) (*Entity, error)

	// Flush writes every pending change in one transaction.
	Flush(ctx context.Context) error

	// Clear discards the session's identities and pending changes.
	Clear()
}
