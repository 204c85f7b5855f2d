package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

type badgeRow struct {
	BadgeCode   string         `db:"badge_code"`
	State       string         `db:"state"`
	EntryID     sql.NullString `db:"entry_id"`
	UpdatedAtMs int64          `db:"updated_at_ms"`
}

func loadBadge(ctx context.Context, q sqlx.QueryerContext, code string) (types.Badge, error) {
	var row badgeRow
	err := sqlx.GetContext(ctx, q, &row, `
SELECT badge_code, state, entry_id, updated_at_ms
FROM badges
WHERE badge_code = ?;`, code)
	if err != nil {
		return types.Badge{}, notFoundOr("load badge", err)
	}
	return types.Badge{
		Code:      row.BadgeCode,
		State:     types.BadgeState(row.State),
		EntryID:   row.EntryID.String,
		UpdatedAt: fromMs(row.UpdatedAtMs),
	}, nil
}

func saveBadge(ctx context.Context, tx *sqlx.Tx, b types.Badge) error {
	updated := b.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, `
INSERT INTO badges(badge_code, state, entry_id, updated_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(badge_code) DO UPDATE SET
  state         = excluded.state,
  entry_id      = excluded.entry_id,
  updated_at_ms = excluded.updated_at_ms;
`, b.Code, string(b.State), optString(b.EntryID), toMs(updated))
	return store.Wrap("save badge", err)
}
