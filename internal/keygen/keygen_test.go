package keygen

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		want    any
		wantErr error
	}{
		{name: "", want: UUID{}},
		{name: types.KeyGeneratorUUID, want: UUID{}},
		{name: types.KeyGeneratorULID, want: ULID{}},
		{name: "snowflake", wantErr: types.ErrKeyGeneratorUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(tt.name)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, g)
		})
	}

	g, err := New(types.KeyGeneratorSequence)
	require.NoError(t, err)
	assert.IsType(t, &Sequence{}, g)
}

func TestUUIDGeneratesV7(t *testing.T) {
	key := UUID{}.Generate(nil).(string)
	id, err := uuid.Parse(key)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
}

func TestULIDParses(t *testing.T) {
	key := ULID{}.Generate(nil).(string)
	_, err := ulid.Parse(key)
	assert.NoError(t, err)
}

func TestSequencePerType(t *testing.T) {
	s := NewSequence()
	user := &types.EntityType{Name: "User"}
	post := &types.EntityType{Name: "Post"}

	assert.Equal(t, "1", s.Generate(user))
	assert.Equal(t, "2", s.Generate(user))
	assert.Equal(t, "1", s.Generate(post))
}

func TestGeneratorsUniqueUnderConcurrency(t *testing.T) {
	gens := map[string]types.KeyGenerator{
		"uuid":     UUID{},
		"ulid":     ULID{},
		"sequence": NewSequence(),
	}
	typ := &types.EntityType{Name: "User"}

	for name, g := range gens {
		t.Run(name, func(t *testing.T) {
			const workers, perWorker = 8, 200
			var mu sync.Mutex
			seen := make(map[any]bool, workers*perWorker)
			var wg sync.WaitGroup
			for w := 0; w < workers; w++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < perWorker; i++ {
						k := g.Generate(typ)
						mu.Lock()
						seen[k] = true
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Len(t, seen, workers*perWorker)
		})
	}
}
