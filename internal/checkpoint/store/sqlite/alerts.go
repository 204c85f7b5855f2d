package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

type alertRow struct {
	AlertID        string         `db:"alert_id"`
	Kind           string         `db:"kind"`
	EntryID        string         `db:"entry_id"`
	IdentityKey    string         `db:"identity_key"`
	BadgeCode      string         `db:"badge_code"`
	PresentedCode  sql.NullString `db:"presented_code"`
	CreatedAtMs    int64          `db:"created_at_ms"`
	Resolved       int            `db:"resolved"`
	ResolvedBy     sql.NullString `db:"resolved_by"`
	ResolvedAtMs   sql.NullInt64  `db:"resolved_at_ms"`
	ResolutionNote sql.NullString `db:"resolution_note"`
}

const alertColumns = `alert_id, kind, entry_id, identity_key, badge_code, presented_code,
  created_at_ms, resolved, resolved_by, resolved_at_ms, resolution_note`

func (r alertRow) alert() types.Alert {
	return types.Alert{
		ID:             r.AlertID,
		Kind:           types.AlertKind(r.Kind),
		EntryID:        r.EntryID,
		IdentityKey:    r.IdentityKey,
		BadgeCode:      r.BadgeCode,
		PresentedCode:  r.PresentedCode.String,
		CreatedAt:      fromMs(r.CreatedAtMs),
		Resolved:       r.Resolved == 1,
		ResolvedBy:     r.ResolvedBy.String,
		ResolvedAt:     timePtr(r.ResolvedAtMs),
		ResolutionNote: r.ResolutionNote.String,
	}
}

func insertAlert(ctx context.Context, tx *sqlx.Tx, a types.Alert) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO alerts(`+alertColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
		a.ID, string(a.Kind), a.EntryID, a.IdentityKey, a.BadgeCode, optString(a.PresentedCode),
		toMs(a.CreatedAt), boolInt(a.Resolved), optString(a.ResolvedBy), optMsPtr(a.ResolvedAt),
		optString(a.ResolutionNote),
	)
	return store.Wrap("append alert", err)
}

func loadAlert(ctx context.Context, q sqlx.QueryerContext, id string) (types.Alert, error) {
	var row alertRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+alertColumns+` FROM alerts WHERE alert_id = ?;`, id)
	if err != nil {
		return types.Alert{}, notFoundOr("load alert", err)
	}
	return row.alert(), nil
}

// updateAlert only touches the resolution columns; the rest of an alert is
// immutable once raised.
func updateAlert(ctx context.Context, tx *sqlx.Tx, a types.Alert) error {
	res, err := tx.ExecContext(ctx, `
UPDATE alerts
SET resolved        = ?,
    resolved_by     = ?,
    resolved_at_ms  = ?,
    resolution_note = ?
WHERE alert_id = ?;
`, boolInt(a.Resolved), optString(a.ResolvedBy), optMsPtr(a.ResolvedAt), optString(a.ResolutionNote), a.ID)
	if err != nil {
		return store.Wrap("update alert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return store.Wrap("update alert", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func listAlerts(ctx context.Context, q sqlx.QueryerContext, f store.AlertFilter) ([]types.Alert, error) {
	var (
		where []string
		args  []any
	)
	if f.OpenOnly {
		where = append(where, "resolved = 0")
	}
	if f.IdentityKey != "" {
		where = append(where, "identity_key = ?")
		args = append(args, f.IdentityKey)
	}

	query := `SELECT ` + alertColumns + ` FROM alerts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at_ms, rowid;`

	var rows []alertRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, store.Wrap("list alerts", err)
	}
	out := make([]types.Alert, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.alert())
	}
	return out, nil
}
