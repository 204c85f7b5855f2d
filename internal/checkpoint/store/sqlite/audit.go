package sqlite

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

type eventRow struct {
	EventID      string `db:"event_id"`
	Kind         string `db:"kind"`
	Actor        string `db:"actor"`
	OccurredAtMs int64  `db:"occurred_at_ms"`
	DetailsJSON  string `db:"details_json"`
}

func insertEvent(ctx context.Context, tx *sqlx.Tx, ev types.AuditEvent) error {
	details := []byte("{}")
	if len(ev.Details) > 0 {
		b, err := json.Marshal(ev.Details)
		if err != nil {
			return store.Wrap("encode audit details", err)
		}
		details = b
	}
	_, err := tx.ExecContext(ctx, `
INSERT INTO audit_events(event_id, kind, actor, occurred_at_ms, details_json)
VALUES (?, ?, ?, ?, ?);
`, ev.ID, string(ev.Kind), ev.Actor, toMs(ev.OccurredAt), string(details))
	return store.Wrap("record event", err)
}

// ListEvents returns the audit log in insertion order. An empty kind lists
// every event.
func (s *Store) ListEvents(ctx context.Context, kind types.EventKind) ([]types.AuditEvent, error) {
	query := `SELECT event_id, kind, actor, occurred_at_ms, details_json FROM audit_events`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY rowid;`

	var rows []eventRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, args...); err != nil {
		return nil, store.Wrap("list events", err)
	}

	out := make([]types.AuditEvent, 0, len(rows))
	for _, r := range rows {
		ev := types.AuditEvent{
			ID:         r.EventID,
			Kind:       types.EventKind(r.Kind),
			Actor:      r.Actor,
			OccurredAt: fromMs(r.OccurredAtMs),
		}
		if r.DetailsJSON != "" && r.DetailsJSON != "{}" {
			if err := json.Unmarshal([]byte(r.DetailsJSON), &ev.Details); err != nil {
				return nil, store.Wrap("decode audit details", err)
			}
		}
		out = append(out, ev)
	}
	return out, nil
}
