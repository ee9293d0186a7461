// Package uow queues the writes of a fill session and applies them in one
// transaction.
package uow

import (
	"context"
	"fmt"

	"github.com/pingcap/log"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/graphfill/internal/identity"
	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// Callback is deferred work run inside the flush transaction after every
// destroy and persist, e.g. join-row replacement.
type Callback func(ctx context.Context, tx types.Tx) error

// Option configures a UnitOfWork.
type Option func(*UnitOfWork)

// WithLogger sets the logger. The default is the global pingcap logger.
func WithLogger(l *zap.Logger) Option {
	return func(u *UnitOfWork) { u.logger = l }
}

// Stats counts queued operations.
type Stats struct {
	Persists  int
	Destroys  int
	Callbacks int
}

// UnitOfWork collects persist, destroy and callback operations. Queuing is
// O(1) and deduplicated by handle. When an entity is both persisted and
// destroyed in one session, persist wins.
type UnitOfWork struct {
	storage  types.Storage
	identity *identity.Map
	logger   *zap.Logger

	persists   []*types.Entity
	persisting map[*types.Entity]bool
	destroys   []*types.Entity
	destroying map[*types.Entity]bool
	callbacks  []Callback
}

// New returns an empty unit of work flushing to storage. Destroyed handles
// are dropped from ids after a successful flush.
func New(storage types.Storage, ids *identity.Map, opts ...Option) *UnitOfWork {
	u := &UnitOfWork{
		storage:  storage,
		identity: ids,
		logger:   log.L(),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.reset()
	return u
}

func (u *UnitOfWork) reset() {
	u.persists = nil
	u.persisting = make(map[*types.Entity]bool)
	u.destroys = nil
	u.destroying = make(map[*types.Entity]bool)
	u.callbacks = nil
}

// Persist queues e for insert-or-update and cancels a pending destroy of e.
func (u *UnitOfWork) Persist(e *types.Entity) {
	if e == nil || u.persisting[e] {
		return
	}
	u.persisting[e] = true
	u.persists = append(u.persists, e)
	delete(u.destroying, e)
}

// Destroy queues e for deletion. It is ignored when e is pending persist or
// has never been stored.
func (u *UnitOfWork) Destroy(e *types.Entity) {
	if e == nil || !e.Exists() || u.persisting[e] || u.destroying[e] {
		return
	}
	u.destroying[e] = true
	u.destroys = append(u.destroys, e)
}

// OnFlush queues fn to run after every destroy and persist of the next
// flush, in registration order.
func (u *UnitOfWork) OnFlush(fn Callback) {
	if fn != nil {
		u.callbacks = append(u.callbacks, fn)
	}
}

// IsPersisting reports whether e is queued for persist.
func (u *UnitOfWork) IsPersisting(e *types.Entity) bool { return u.persisting[e] }

// IsDestroying reports whether e is queued for deletion.
func (u *UnitOfWork) IsDestroying(e *types.Entity) bool { return u.destroying[e] }

// Pending returns the number of queued operations.
func (u *UnitOfWork) Pending() Stats {
	return Stats{
		Persists:  len(u.persists),
		Destroys:  len(u.pendingDestroys()),
		Callbacks: len(u.callbacks),
	}
}

// pendingDestroys drops destroys cancelled by a later Persist.
func (u *UnitOfWork) pendingDestroys() []*types.Entity {
	out := make([]*types.Entity, 0, len(u.destroys))
	for _, e := range u.destroys {
		if u.destroying[e] {
			out = append(out, e)
		}
	}
	return out
}

// Flush applies destroys, then persists in foreign key order, then
// callbacks, all in one transaction. On failure nothing is committed and
// the queue is kept as it was.
func (u *UnitOfWork) Flush(ctx context.Context) error {
	destroys := u.pendingDestroys()
	if len(destroys) == 0 && len(u.persists) == 0 && len(u.callbacks) == 0 {
		return nil
	}
	persists := u.persistOrder()

	err := u.storage.Transaction(ctx, func(tx types.Tx) error {
		for _, e := range destroys {
			if err := tx.Delete(ctx, e); err != nil {
				return fmt.Errorf("deleting %s: %w", e.Hash(), err)
			}
		}
		for _, e := range persists {
			if err := tx.Save(ctx, e); err != nil {
				return fmt.Errorf("saving %s: %w", e.Hash(), err)
			}
		}
		for i, fn := range u.callbacks {
			if err := fn(ctx, tx); err != nil {
				return fmt.Errorf("flush callback %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		u.logger.Error("flush rolled back", zap.Error(err))
		return fmt.Errorf("%w: %w", types.ErrFlush, err)
	}

	for _, e := range destroys {
		e.MarkExists(false)
		if u.identity != nil {
			u.identity.Forget(e)
		}
	}
	for _, e := range persists {
		e.MarkExists(true)
	}
	u.logger.Debug("flushed",
		zap.Int("destroyed", len(destroys)),
		zap.Int("persisted", len(persists)),
		zap.Int("callbacks", len(u.callbacks)))
	u.reset()
	return nil
}

// Clear discards every queued operation.
func (u *UnitOfWork) Clear() {
	u.reset()
}

// persistOrder sorts the persist queue so that every entity comes after the
// queued entities it depends on. Ties keep registration order. A dependency
// cycle falls back to plain registration order.
func (u *UnitOfWork) persistOrder() []*types.Entity {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[*types.Entity]int, len(u.persists))
	out := make([]*types.Entity, 0, len(u.persists))
	cyclic := false

	var visit func(e *types.Entity)
	visit = func(e *types.Entity) {
		switch state[e] {
		case done:
			return
		case visiting:
			cyclic = true
			return
		}
		state[e] = visiting
		for _, dep := range e.Dependencies() {
			if u.persisting[dep] {
				visit(dep)
			}
		}
		state[e] = done
		out = append(out, e)
	}
	for _, e := range u.persists {
		visit(e)
	}

	if cyclic {
		u.logger.Warn("dependency cycle in persist queue, using registration order",
			zap.Int("persists", len(u.persists)))
		return append([]*types.Entity(nil), u.persists...)
	}
	return out
}
