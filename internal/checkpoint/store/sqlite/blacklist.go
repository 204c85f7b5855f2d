package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

type blacklistRow struct {
	BlacklistID string        `db:"blacklist_id"`
	SubjectKind string        `db:"subject_kind"`
	SubjectKey  string        `db:"subject_key"`
	Reason      string        `db:"reason"`
	Active      int           `db:"active"`
	FromMs      sql.NullInt64 `db:"from_ms"`
	UntilMs     sql.NullInt64 `db:"until_ms"`
}

// QueryBlacklist returns the active rows whose range covers at. Keys are
// compared case-insensitively.
func (s *Store) QueryBlacklist(ctx context.Context, kind types.SubjectKind, key string, at time.Time) ([]types.BlacklistEntry, error) {
	atMs := toMs(at)
	var rows []blacklistRow
	err := sqlx.SelectContext(ctx, s.db, &rows, `
SELECT blacklist_id, subject_kind, subject_key, reason, active, from_ms, until_ms
FROM blacklist_entries
WHERE subject_kind = ?
  AND subject_key = ?
  AND active = 1
  AND (from_ms IS NULL OR from_ms <= ?)
  AND (until_ms IS NULL OR until_ms > ?)
ORDER BY blacklist_id;
`, string(kind), normaliseKey(key), atMs, atMs)
	if err != nil {
		return nil, store.Wrap("query blacklist", err)
	}

	out := make([]types.BlacklistEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, types.BlacklistEntry{
			ID:     r.BlacklistID,
			Kind:   types.SubjectKind(r.SubjectKind),
			Key:    r.SubjectKey,
			Reason: r.Reason,
			Active: r.Active == 1,
			From:   timeOrZero(r.FromMs),
			Until:  timeOrZero(r.UntilMs),
		})
	}
	return out, nil
}

func (s *Store) SaveBlacklistEntry(ctx context.Context, e types.BlacklistEntry) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO blacklist_entries(blacklist_id, subject_kind, subject_key, reason, active, from_ms, until_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(blacklist_id) DO UPDATE SET
  subject_kind = excluded.subject_kind,
  subject_key  = excluded.subject_key,
  reason       = excluded.reason,
  active       = excluded.active,
  from_ms      = excluded.from_ms,
  until_ms     = excluded.until_ms;
`, e.ID, string(e.Kind), normaliseKey(e.Key), e.Reason, boolInt(e.Active), optMs(e.From), optMs(e.Until))
		return store.Wrap("save blacklist entry", err)
	})
}

func normaliseKey(k string) string { return types.CanonicalKey(k) }
