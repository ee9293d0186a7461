package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// errEmptyDetach guards against a join-row delete without conditions.
var errEmptyDetach = errors.New("detach requires at least one condition")

// sqlTx implements types.Tx on one database transaction.
type sqlTx struct {
	tx      *sql.Tx
	backend *Backend
}

// Save upserts e. Types with timestamps get updated_at set on every save and
// created_at on the first.
func (s *sqlTx) Save(ctx context.Context, e *types.Entity) error {
	t := e.Type()
	if !e.HasKey() {
		return fmt.Errorf("%w: %s", types.ErrMissingKey, t.Name)
	}
	if t.Timestamps {
		now := s.backend.now().UTC().Format(time.RFC3339)
		if types.KeyString(e.Get(types.CreatedAtField)) == "" {
			e.Set(types.CreatedAtField, now)
		}
		e.Set(types.UpdatedAtField, now)
	}

	attrs := e.Attributes()
	cols := sortedKeys(attrs)
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = bindValue(attrs[c])
	}

	key := t.KeyName()
	var updates []string
	for _, c := range cols {
		if c == key || c == types.CreatedAtField {
			continue
		}
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", quoteIdent(c), quoteIdent(c)))
	}
	conflict := "DO NOTHING"
	if len(updates) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(updates, ", ")
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(%s) %s",
		quoteIdent(t.Table), joinQuoted(cols), placeholders(len(cols)), quoteIdent(key), conflict)
	if _, err := s.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upserting into %s: %w", t.Table, err)
	}
	return nil
}

// Delete removes e by primary key. A missing row is not an error.
func (s *sqlTx) Delete(ctx context.Context, e *types.Entity) error {
	t := e.Type()
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quoteIdent(t.Table), quoteIdent(t.KeyName()))
	if _, err := s.tx.ExecContext(ctx, query, bindValue(e.Key())); err != nil {
		return fmt.Errorf("deleting from %s: %w", t.Table, err)
	}
	return nil
}

// Attach inserts one join row.
func (s *sqlTx) Attach(ctx context.Context, table string, row map[string]any) error {
	cols := sortedKeys(row)
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = bindValue(row[c])
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quoteIdent(table), joinQuoted(cols), placeholders(len(cols)))
	if _, err := s.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("attaching into %s: %w", table, err)
	}
	return nil
}

// Detach deletes the join rows matching every condition in where.
func (s *sqlTx) Detach(ctx context.Context, table string, where map[string]any) error {
	if len(where) == 0 {
		return fmt.Errorf("detaching from %s: %w", table, errEmptyDetach)
	}
	clause, args := whereClause(where)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", quoteIdent(table), clause)
	if _, err := s.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("detaching from %s: %w", table, err)
	}
	return nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
