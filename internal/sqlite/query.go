package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cast"

	"github.com/mesh-intelligence/graphfill/pkg/types"
)

// Find loads the record of type t with the given primary key.
// Returns ErrNotFound if no row matches.
func (b *Backend) Find(ctx context.Context, t *types.EntityType, key any) (*types.Entity, error) {
	return b.FindByField(ctx, t, t.KeyName(), key)
}

// FindByField loads the first record of type t whose field equals value.
// Returns ErrNotFound if no row matches.
func (b *Backend) FindByField(ctx context.Context, t *types.EntityType, field string, value any) (*types.Entity, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrDetached
	}

	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? LIMIT 1", quoteIdent(t.Table), quoteIdent(field))
	found, err := b.selectEntities(ctx, t, query, bindValue(value))
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s where %s = %v", types.ErrNotFound, t.Name, field, value)
	}
	return found[0], nil
}

// LoadRelation queries the records related to e through relation name. The
// returned handles are fresh; many-to-many results carry their join row as
// pivot.
func (b *Backend) LoadRelation(ctx context.Context, e *types.Entity, name string) ([]*types.Entity, error) {
	rel, ok := e.Type().Relation(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s::%s", types.ErrUnknownRelation, e.Type().Name, name)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrDetached
	}

	switch {
	case rel.Kind == types.MorphTo:
		return b.loadMorphTo(ctx, e, rel)
	case rel.Kind.Is(types.BelongsTo):
		return b.loadBelongsTo(ctx, e, rel)
	case rel.Kind.Is(types.HasOne), rel.Kind.Is(types.HasMany):
		return b.loadHasOneOrMany(ctx, e, rel)
	case rel.Kind.Is(types.BelongsToMany):
		return b.loadBelongsToMany(ctx, e, rel)
	case rel.Kind == types.HasOneThrough, rel.Kind == types.HasManyThrough:
		return b.loadThrough(ctx, e, rel)
	default:
		return nil, fmt.Errorf("%w: %s::%s has kind %q", types.ErrInvalidRelation, e.Type().Name, name, rel.Kind)
	}
}

func (b *Backend) relatedType(rel *types.Relation) (*types.EntityType, error) {
	return b.catalog.Type(rel.Related)
}

func (b *Backend) loadBelongsTo(ctx context.Context, e *types.Entity, rel *types.Relation) ([]*types.Entity, error) {
	fk := e.Get(rel.ForeignKey)
	if types.KeyString(fk) == "" {
		return nil, nil
	}
	related, err := b.relatedType(rel)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? LIMIT 1", quoteIdent(related.Table), quoteIdent(rel.OwnerKey))
	return b.selectEntities(ctx, related, query, bindValue(fk))
}

func (b *Backend) loadMorphTo(ctx context.Context, e *types.Entity, rel *types.Relation) ([]*types.Entity, error) {
	fk := e.Get(rel.ForeignKey)
	morph := cast.ToString(e.Get(rel.MorphType))
	if types.KeyString(fk) == "" || morph == "" {
		return nil, nil
	}
	related, err := b.catalog.MorphType(morph)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ? LIMIT 1", quoteIdent(related.Table), quoteIdent(related.KeyName()))
	return b.selectEntities(ctx, related, query, bindValue(fk))
}

func (b *Backend) loadHasOneOrMany(ctx context.Context, e *types.Entity, rel *types.Relation) ([]*types.Entity, error) {
	related, err := b.relatedType(rel)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = ?", quoteIdent(related.Table), quoteIdent(rel.ForeignKey))
	args := []any{bindValue(e.Get(rel.LocalKey))}
	if rel.Kind.IsPolymorphic() {
		query += fmt.Sprintf(" AND %s = ?", quoteIdent(rel.MorphType))
		args = append(args, e.Type().MorphClass())
	}
	if !rel.Kind.IsToMany() {
		query += " LIMIT 1"
	}
	return b.selectEntities(ctx, related, query, args...)
}

// loadBelongsToMany reads the parent's join rows, then the related rows they
// point at, preserving join row order.
func (b *Backend) loadBelongsToMany(ctx context.Context, e *types.Entity, rel *types.Relation) ([]*types.Entity, error) {
	related, err := b.relatedType(rel)
	if err != nil {
		return nil, err
	}

	where := map[string]any{rel.ForeignPivotKey: e.Get(rel.LocalKey)}
	if morph, ok := pivotMorphValue(e.Type(), related, rel); ok {
		where[rel.MorphType] = morph
	}
	clause, args := whereClause(where)
	pivots, err := b.selectRows(ctx, fmt.Sprintf("SELECT * FROM %s WHERE %s", quoteIdent(rel.JoinTable), clause), args...)
	if err != nil {
		return nil, err
	}
	if len(pivots) == 0 {
		return nil, nil
	}

	keys := make([]any, 0, len(pivots))
	for _, p := range pivots {
		keys = append(keys, bindValue(p[rel.RelatedPivotKey]))
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)",
		quoteIdent(related.Table), quoteIdent(rel.RelatedKey), placeholders(len(keys)))
	found, err := b.selectEntities(ctx, related, query, keys...)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*types.Entity, len(found))
	for _, r := range found {
		byKey[types.KeyString(r.Get(rel.RelatedKey))] = r
	}
	out := make([]*types.Entity, 0, len(pivots))
	for _, p := range pivots {
		r, ok := byKey[types.KeyString(p[rel.RelatedPivotKey])]
		if !ok {
			continue
		}
		if r.Pivot() != nil {
			// The same related row attached twice gets its own handle per row.
			r = types.LoadedEntity(related, r.Attributes())
		}
		r.SetPivot(p)
		out = append(out, r)
	}
	return out, nil
}

// pivotMorphValue returns the discriminator a polymorphic join row carries:
// the parent's morph name for morph_to_many, the related type's for
// morphed_by_many.
func pivotMorphValue(parent, related *types.EntityType, rel *types.Relation) (string, bool) {
	switch rel.Kind {
	case types.MorphToMany:
		return parent.MorphClass(), true
	case types.MorphedByMany:
		return related.MorphClass(), true
	}
	return "", false
}

func (b *Backend) loadThrough(ctx context.Context, e *types.Entity, rel *types.Relation) ([]*types.Entity, error) {
	far, err := b.relatedType(rel)
	if err != nil {
		return nil, err
	}
	through, err := b.catalog.Type(rel.Through)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT f.* FROM %s f JOIN %s m ON f.%s = m.%s WHERE m.%s = ?",
		quoteIdent(far.Table), quoteIdent(through.Table),
		quoteIdent(rel.SecondKey), quoteIdent(rel.SecondLocalKey), quoteIdent(rel.FirstKey))
	if !rel.Kind.IsToMany() {
		query += " LIMIT 1"
	}
	return b.selectEntities(ctx, far, query, bindValue(e.Get(rel.LocalKey)))
}

func (b *Backend) selectEntities(ctx context.Context, t *types.EntityType, query string, args ...any) ([]*types.Entity, error) {
	rows, err := b.selectRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Entity, 0, len(rows))
	for _, row := range rows {
		out = append(out, types.LoadedEntity(t, row))
	}
	return out, nil
}

func (b *Backend) selectRows(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	return scanRows(ctx, b.db, query, args...)
}

// scanRows runs query and returns each row as a column -> value map.
func scanRows(ctx context.Context, q queryer, query string, args ...any) ([]map[string]any, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", query, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = scanValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func scanValue(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	}
	return v
}

// bindValue converts an attribute value into something the driver binds
// predictably: integral JSON numbers become int64, so a key decoded as 1.0
// matches a TEXT key "1"; composite values are stored as JSON text.
func bindValue(v any) any {
	switch x := v.(type) {
	case nil, string, int64, bool:
		return v
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case float64:
		if x == float64(int64(x)) {
			return int64(x)
		}
		return x
	case float32:
		return bindValue(float64(x))
	case int, int8, int16, int32, uint, uint8, uint16, uint32, uint64:
		return cast.ToInt64(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case []byte:
		return string(x)
	case map[string]any, []any:
		raw, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(raw)
	}
	return v
}

// whereClause renders an equality conjunction with columns in sorted order.
func whereClause(where map[string]any) (string, []any) {
	cols := sortedKeys(where)
	parts := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		parts[i] = quoteIdent(c) + " = ?"
		args[i] = bindValue(where[c])
	}
	return strings.Join(parts, " AND "), args
}

// selectAll returns every row of table.
func selectAll(ctx context.Context, q queryer, table string) ([]map[string]any, error) {
	return scanRows(ctx, q, fmt.Sprintf("SELECT * FROM %s", quoteIdent(table)))
}
