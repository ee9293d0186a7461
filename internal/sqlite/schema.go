package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// queryer is the read surface shared by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execSchema runs a DDL script. Statements are separated by semicolons and
// run in order.
func execSchema(ctx context.Context, db queryer, ddl string) error {
	if strings.TrimSpace(ddl) == "" {
		return nil
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// tableInfo describes the columns of one table.
type tableInfo struct {
	cols []string // declaration order
	keys []string // primary key columns in key order
}

// readTableInfo reads the columns and primary key of table.
func readTableInfo(ctx context.Context, q queryer, table string) (tableInfo, error) {
	var info tableInfo
	rows, err := q.QueryContext(ctx, "SELECT name, pk FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return info, fmt.Errorf("reading columns of %s: %w", table, err)
	}
	defer rows.Close()

	pks := map[int]string{}
	for rows.Next() {
		var (
			name string
			pk   int
		)
		if err := rows.Scan(&name, &pk); err != nil {
			return info, err
		}
		info.cols = append(info.cols, name)
		if pk > 0 {
			pks[pk] = name
		}
	}
	if err := rows.Err(); err != nil {
		return info, err
	}
	if len(info.cols) == 0 {
		return info, fmt.Errorf("table %s does not exist", table)
	}
	for i := 1; i <= len(pks); i++ {
		info.keys = append(info.keys, pks[i])
	}
	return info, nil
}

// upsertQuery builds an insert of cols into table that updates the existing
// row when keys collide. With no keys it is a plain insert.
func upsertQuery(table string, cols, keys []string) string {
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(table), joinQuoted(cols), placeholders(len(cols)))
	if len(keys) == 0 {
		return query
	}

	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	var updates []string
	for _, c := range cols {
		if !isKey[c] {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", quoteIdent(c), quoteIdent(c)))
		}
	}
	conflict := "DO NOTHING"
	if len(updates) > 0 {
		conflict = "DO UPDATE SET " + strings.Join(updates, ", ")
	}
	return fmt.Sprintf("%s ON CONFLICT(%s) %s", query, joinQuoted(keys), conflict)
}

// quoteIdent quotes a table or column name for interpolation into SQL.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func joinQuoted(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}
