// Package sqlite implements types.Storage on SQLite. Records are stored as
// plain rows, one table per entity type plus the join tables many-to-many
// relations use; rows are read back into attribute maps generically, so any
// catalog works against a schema that matches it.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pingcap/log"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// DBFile is the database file name created inside Config.DataDir.
const DBFile = "graphfill.db"

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger. The default is the global pingcap logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// WithClock sets the time source used for created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

// Backend implements types.Storage using SQLite.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	owned    bool

	catalog types.Catalog
	tables  []string
	logger  *zap.Logger
	now     func() time.Time
}

// tableLister is implemented by catalogs that can enumerate their tables.
type tableLister interface {
	Tables() []string
}

// NewBackend creates a backend for the entity types in cat. The backend is
// not attached; call Attach or Open before use.
func NewBackend(cat types.Catalog, opts ...Option) *Backend {
	b := &Backend{
		catalog: cat,
		logger:  log.L(),
		now:     time.Now,
	}
	if tl, ok := cat.(tableLister); ok {
		b.tables = tl.Tables()
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Attach opens DataDir/graphfill.db with foreign keys enforced and runs the
// configured schema file, if any. Returns ErrAlreadyAttached if attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	dbPath := filepath.Join(dataDir, DBFile)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return err
	}
	// Pragmas apply per connection.
	db.SetMaxOpenConns(1)

	if config.SchemaFile != "" {
		ddl, err := os.ReadFile(config.SchemaFile)
		if err != nil {
			db.Close()
			return fmt.Errorf("reading schema: %w", err)
		}
		if err := execSchema(context.Background(), db, string(ddl)); err != nil {
			db.Close()
			return err
		}
	}

	b.db = db
	b.owned = true
	b.config = config
	b.attached = true
	b.logger.Debug("sqlite attached", zap.String("path", dbPath))
	return nil
}

// Open attaches the backend to an existing database handle. The caller keeps
// ownership of db; Detach does not close it.
func (b *Backend) Open(db *sql.DB) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return types.ErrAlreadyAttached
	}
	b.db = db
	b.owned = false
	b.attached = true
	return nil
}

// Detach releases the database. After Detach, all operations return
// ErrDetached. Detach is idempotent.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	if b.owned && b.db != nil {
		if err := b.db.Close(); err != nil {
			return err
		}
	}
	b.db = nil
	b.attached = false
	return nil
}

// ExecSchema runs DDL statements against the attached database.
func (b *Backend) ExecSchema(ctx context.Context, ddl string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrDetached
	}
	return execSchema(ctx, b.db, ddl)
}

// Tables returns the tables Export and Import operate on.
func (b *Backend) Tables() []string {
	return append([]string(nil), b.tables...)
}

// Transaction runs fn in one SQLite transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
func (b *Backend) Transaction(ctx context.Context, fn func(types.Tx) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return types.ErrDetached
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer txnRollback(tx)

	if err := fn(&sqlTx{tx: tx, backend: b}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// txnRollback is deferred after BeginTx. It logs a rollback failure unless
// the transaction already finished.
func txnRollback(tx *sql.Tx) {
	err := tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Error("rollback failed", zap.Error(err))
	}
}

var _ types.Storage = (*Backend)(nil)
