package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store/sqlite"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store/storetest"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/db"
)

func newStore(t *testing.T) *sqlite.Store {
	conn := openTestDB(t)
	return sqlite.New(conn, newTestWriter(t, conn))
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &storetest.Suite{
		New: func(t *testing.T) store.Store { return newStore(t) },
	})
}

// ── Schema constraints ───────────────────────────────────────────────────────

func TestSQLite_OneIssuedBadgePerEntry(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	rec := types.EntryRecord{
		ID:        "e1",
		Identity:  types.Identity{Key: "V1", Name: "V One", Category: types.CategoryVisitor},
		Category:  types.CategoryVisitor,
		State:     types.StateInPremises,
		EnteredAt: t0,
		Operator:  "op",
		UpdatedAt: t0,
	}
	err := s.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.SaveEntry(ctx, rec); err != nil {
			return err
		}
		return tx.SaveBadge(ctx, types.Badge{Code: "B1", State: types.BadgeIssued, EntryID: "e1", UpdatedAt: t0})
	})
	require.NoError(t, err)

	err = s.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.SaveBadge(ctx, types.Badge{Code: "B2", State: types.BadgeIssued, EntryID: "e1", UpdatedAt: t0})
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStore)

	_, err = s.LoadBadge(ctx, "B2")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSQLite_TxFnErrorSurfacesUnchanged(t *testing.T) {
	s := newStore(t)
	sentinel := errors.New("domain refusal")

	err := s.Atomically(context.Background(), func(context.Context, store.Tx) error { return sentinel })
	assert.Same(t, sentinel, err)
}

func TestSQLite_CancelledContext(t *testing.T) {
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Atomically(ctx, func(context.Context, store.Tx) error { return nil })
	assert.ErrorIs(t, err, store.ErrStore)
	assert.ErrorIs(t, err, context.Canceled)
}

// ── Dev seed ─────────────────────────────────────────────────────────────────

func TestSeedDev_IsIdempotent(t *testing.T) {
	conn := openTestDB(t)
	s := sqlite.New(conn, newTestWriter(t, conn))
	ctx := context.Background()

	require.NoError(t, db.SeedDev(ctx, conn, db.SeedDevOptions{}))
	require.NoError(t, db.SeedDev(ctx, conn, db.SeedDevOptions{BadgeCodes: []string{"B1", " X9 "}}))

	co, err := s.LoadCompany(ctx, "ACME")
	require.NoError(t, err)
	assert.True(t, co.Active)
	assert.Equal(t, 10*time.Hour, co.MaxStay)

	for _, code := range []string{"B1", "B8", "X9"} {
		b, err := s.LoadBadge(ctx, code)
		require.NoError(t, err, code)
		assert.Equal(t, types.BadgeAvailable, b.State)
	}
}
