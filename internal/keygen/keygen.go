// Package keygen provides surrogate key generators for new entities.
package keygen

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// New returns the generator registered under name. An empty name selects
// UUID.
func New(name string) (types.KeyGenerator, error) {
	switch name {
	case "", types.KeyGeneratorUUID:
		return UUID{}, nil
	case types.KeyGeneratorULID:
		return ULID{}, nil
	case types.KeyGeneratorSequence:
		return NewSequence(), nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrKeyGeneratorUnknown, name)
	}
}

// UUID generates UUID v7 strings.
type UUID struct{}

// Generate returns a new UUID v7, or a v4 if v7 generation fails.
func (UUID) Generate(*types.EntityType) any {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// ULID generates lexically sortable ULID strings.
type ULID struct{}

// Generate returns a new ULID. ulid.Make is safe for concurrent use.
func (ULID) Generate(*types.EntityType) any {
	return ulid.Make().String()
}

// Sequence generates deterministic keys "1", "2", ... per entity type.
// It exists for tests and fixtures where stable keys matter.
type Sequence struct {
	mu       sync.Mutex
	counters map[string]*atomic.Int64
}

// NewSequence returns a Sequence starting at 1 for every type.
func NewSequence() *Sequence {
	return &Sequence{counters: make(map[string]*atomic.Int64)}
}

// Generate returns the next key for t.
func (s *Sequence) Generate(t *types.EntityType) any {
	name := ""
	if t != nil {
		name = t.Name
	}
	s.mu.Lock()
	c, ok := s.counters[name]
	if !ok {
		c = new(atomic.Int64)
		s.counters[name] = c
	}
	s.mu.Unlock()
	return strconv.FormatInt(c.Add(1), 10)
}
