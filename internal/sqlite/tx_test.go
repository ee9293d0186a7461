package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/graphfill/internal/fixture"
	"github.com/mesh-intelligence/graphfill/pkg/types"
)

func newMockBackend(t *testing.T) (*Backend, sqlmock.Sqlmock, *types.EntityType) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cat := fixture.MustCatalog()
	b := NewBackend(cat, WithLogger(zap.NewNop()))
	require.NoError(t, b.Open(db))
	assert.ErrorIs(t, b.Open(db), types.ErrAlreadyAttached)

	// A bare type without timestamps keeps the expected SQL exact.
	tags := &types.EntityType{Name: "Tag", Table: "tags", Fillable: []string{"name"}}
	return b, mock, tags
}

func TestTransactionDriverFailureRollsBack(t *testing.T) {
	b, mock, tags := newMockBackend(t)
	ctx := context.Background()
	driverErr := errors.New("disk I/O error")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "tags" ("id", "name") VALUES (?, ?) ON CONFLICT("id") DO UPDATE SET "name" = excluded."name"`).
		WithArgs("t1", "go").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`DELETE FROM "post_tag" WHERE "post_id" = ?`).
		WithArgs("p1").
		WillReturnError(driverErr)
	mock.ExpectRollback()

	tag := entity(tags, map[string]any{"id": "t1", "name": "go"})
	err := b.Transaction(ctx, func(tx types.Tx) error {
		if err := tx.Save(ctx, tag); err != nil {
			return err
		}
		return tx.Detach(ctx, "post_tag", map[string]any{"post_id": "p1"})
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, driverErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionCommit(t *testing.T) {
	b, mock, tags := newMockBackend(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "tags" WHERE "id" = ?`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO "post_tag" ("post_id", "tag_id") VALUES (?, ?)`).
		WithArgs("p1", int64(5)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := b.Transaction(ctx, func(tx types.Tx) error {
		if err := tx.Delete(ctx, entity(tags, map[string]any{"id": float64(5)})); err != nil {
			return err
		}
		return tx.Attach(ctx, "post_tag", map[string]any{"post_id": "p1", "tag_id": float64(5)})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionBeginFailure(t *testing.T) {
	b, mock, _ := newMockBackend(t)
	mock.ExpectBegin().WillReturnError(errors.New("locked"))

	called := false
	err := b.Transaction(context.Background(), func(types.Tx) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDetachLeavesBorrowedDBOpen(t *testing.T) {
	b, mock, _ := newMockBackend(t)
	mock.ExpectClose()
	require.NoError(t, b.Detach())

	assert.ErrorIs(t, b.Transaction(context.Background(), func(types.Tx) error { return nil }), types.ErrDetached)
	assert.Error(t, mock.ExpectationsWereMet(), "Detach must not close a borrowed handle")
}
