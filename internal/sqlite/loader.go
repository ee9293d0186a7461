package sqlite

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// ImportStats reports what Import loaded.
type ImportStats struct {
	Rows    int
	Skipped int
}

// Import loads <table>.jsonl files from dir into the catalog tables in one
// transaction: all files load or none do. Foreign key checks are deferred to
// commit so tables may load in any order. Rows upsert by primary key.
// Missing files are skipped, as are malformed lines and rows the database
// rejects. Fields without a matching column are ignored.
func (b *Backend) Import(ctx context.Context, dir string) (ImportStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var stats ImportStats
	if !b.attached {
		return stats, types.ErrDetached
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("beginning import transaction: %w", err)
	}
	defer txnRollback(tx)

	if _, err := tx.ExecContext(ctx, "PRAGMA defer_foreign_keys = ON"); err != nil {
		return stats, fmt.Errorf("deferring foreign keys for import: %w", err)
	}

	for _, table := range b.tables {
		path := filepath.Join(dir, jsonlFile(table))
		records, err := readJSONL(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return stats, err
		}
		if len(records) == 0 {
			continue
		}

		info, err := readTableInfo(ctx, tx, table)
		if err != nil {
			return stats, err
		}
		loaded, skipped := insertRecords(ctx, tx, table, info, records)
		stats.Rows += loaded
		stats.Skipped += skipped
		b.logger.Debug("imported table",
			zap.String("table", table), zap.Int("rows", loaded), zap.Int("skipped", skipped))
	}

	dangling, err := scanRows(ctx, tx, "PRAGMA foreign_key_check")
	if err != nil {
		return stats, err
	}
	if len(dangling) > 0 {
		return stats, fmt.Errorf("import leaves %d dangling references, first in %v", len(dangling), dangling[0]["table"])
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("committing import transaction: %w", err)
	}
	return stats, nil
}

// insertRecords upserts records into table by primary key. A row that
// already exists is updated in place, so rows referencing it survive. Only
// fields present in a record and naming a column are written.
func insertRecords(ctx context.Context, tx queryer, table string, info tableInfo, records []json.RawMessage) (loaded, skipped int) {
	for _, rec := range records {
		obj, err := decodeRecord(rec)
		if err != nil {
			skipped++
			continue
		}
		var (
			cols []string
			args []any
		)
		for _, c := range info.cols {
			if v, ok := obj[c]; ok {
				cols = append(cols, c)
				args = append(args, bindValue(v))
			}
		}
		if len(cols) == 0 {
			skipped++
			continue
		}
		if _, err := tx.ExecContext(ctx, upsertQuery(table, cols, info.keys), args...); err != nil {
			skipped++
			continue
		}
		loaded++
	}
	return loaded, skipped
}

// decodeRecord decodes one JSON object keeping numbers exact.
func decodeRecord(rec json.RawMessage) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(rec))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("record is not an object")
	}
	return obj, nil
}
