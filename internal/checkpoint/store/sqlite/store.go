// Package sqlite implements store.Store on modernc.org/sqlite. All writes
// are funnelled through the single-writer db.Worker.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
	dbpkg "github.com/BrandonDHaskell/Portunus/checkpoint/internal/db"
)

type Store struct {
	db     *sqlx.DB
	writer *dbpkg.Worker
}

var _ store.Store = (*Store)(nil)

func New(db *sqlx.DB, writer *dbpkg.Worker) *Store {
	return &Store{db: db, writer: writer}
}

// fnError marks errors returned by the caller's TxFn so they surface
// unchanged instead of being tagged as store failures.
type fnError struct{ err error }

func (e fnError) Error() string { return e.err.Error() }
func (e fnError) Unwrap() error { return e.err }

func (s *Store) Atomically(ctx context.Context, fn store.TxFn) error {
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if err := fn(ctx, &sqlTx{tx: tx}); err != nil {
			return fnError{err: err}
		}
		return nil
	})
	if err == nil {
		return nil
	}
	var fe fnError
	if errors.As(err, &fe) {
		return fe.err
	}
	return store.Wrap("atomically", err)
}

func (s *Store) LoadEntry(ctx context.Context, id string) (types.EntryRecord, error) {
	return loadEntry(ctx, s.db, id)
}

func (s *Store) ListEntries(ctx context.Context, f store.EntryFilter) ([]types.EntryRecord, error) {
	return listEntries(ctx, s.db, f)
}

func (s *Store) LoadBadge(ctx context.Context, code string) (types.Badge, error) {
	return loadBadge(ctx, s.db, code)
}

func (s *Store) ListAlerts(ctx context.Context, f store.AlertFilter) ([]types.Alert, error) {
	return listAlerts(ctx, s.db, f)
}

func (s *Store) RecordEvent(ctx context.Context, ev types.AuditEvent) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		return insertEvent(ctx, tx, ev)
	})
}

// sqlTx adapts a worker transaction to store.Tx.
type sqlTx struct {
	tx *sqlx.Tx
}

func (t *sqlTx) LoadEntry(ctx context.Context, id string) (types.EntryRecord, error) {
	return loadEntry(ctx, t.tx, id)
}

func (t *sqlTx) SaveEntry(ctx context.Context, rec types.EntryRecord) error {
	return saveEntry(ctx, t.tx, rec)
}

func (t *sqlTx) LoadBadge(ctx context.Context, code string) (types.Badge, error) {
	return loadBadge(ctx, t.tx, code)
}

func (t *sqlTx) SaveBadge(ctx context.Context, b types.Badge) error {
	return saveBadge(ctx, t.tx, b)
}

func (t *sqlTx) AppendAlert(ctx context.Context, a types.Alert) error {
	return insertAlert(ctx, t.tx, a)
}

func (t *sqlTx) LoadAlert(ctx context.Context, id string) (types.Alert, error) {
	return loadAlert(ctx, t.tx, id)
}

func (t *sqlTx) UpdateAlert(ctx context.Context, a types.Alert) error {
	return updateAlert(ctx, t.tx, a)
}

func (t *sqlTx) OpenAlertsForIdentity(ctx context.Context, identityKey string) ([]types.Alert, error) {
	return listAlerts(ctx, t.tx, store.AlertFilter{OpenOnly: true, IdentityKey: identityKey})
}

func (t *sqlTx) RecordEvent(ctx context.Context, ev types.AuditEvent) error {
	return insertEvent(ctx, t.tx, ev)
}

// ── column helpers ───────────────────────────────────────────────────────────

func toMs(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMs(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func optMs(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMs(t), Valid: true}
}

func optMsPtr(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return optMs(*t)
}

func timeOrZero(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return fromMs(v.Int64)
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMs(v.Int64)
	return &t
}

func optString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return store.Wrap(op, err)
}
