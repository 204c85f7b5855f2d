package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

type entryRow struct {
	EntryID        string         `db:"entry_id"`
	IdentityKey    string         `db:"identity_key"`
	IdentityName   string         `db:"identity_name"`
	Category       string         `db:"category"`
	State          string         `db:"state"`
	EnteredAtMs    int64          `db:"entered_at_ms"`
	ExitedAtMs     sql.NullInt64  `db:"exited_at_ms"`
	BadgeCode      sql.NullString `db:"badge_code"`
	HostRef        sql.NullString `db:"host_ref"`
	CompanyRef     sql.NullString `db:"company_ref"`
	VehicleRef     sql.NullString `db:"vehicle_ref"`
	ExpectedStayMs int64          `db:"expected_stay_ms"`
	StayLimitMs    int64          `db:"stay_limit_ms"`
	FindingsJSON   string         `db:"findings_json"`
	Operator       string         `db:"operator"`
	UpdatedAtMs    int64          `db:"updated_at_ms"`
}

const entryColumns = `entry_id, identity_key, identity_name, category, state,
  entered_at_ms, exited_at_ms, badge_code, host_ref, company_ref, vehicle_ref,
  expected_stay_ms, stay_limit_ms, findings_json, operator, updated_at_ms`

func (r entryRow) record() (types.EntryRecord, error) {
	rec := types.EntryRecord{
		ID: r.EntryID,
		Identity: types.Identity{
			Key:      r.IdentityKey,
			Name:     r.IdentityName,
			Category: types.Category(r.Category),
		},
		Category:     types.Category(r.Category),
		State:        types.EntryState(r.State),
		EnteredAt:    fromMs(r.EnteredAtMs),
		ExitedAt:     timePtr(r.ExitedAtMs),
		BadgeCode:    r.BadgeCode.String,
		HostRef:      r.HostRef.String,
		CompanyRef:   r.CompanyRef.String,
		VehicleRef:   r.VehicleRef.String,
		ExpectedStay: time.Duration(r.ExpectedStayMs) * time.Millisecond,
		StayLimit:    time.Duration(r.StayLimitMs) * time.Millisecond,
		Operator:     r.Operator,
		UpdatedAt:    fromMs(r.UpdatedAtMs),
	}
	if r.FindingsJSON != "" && r.FindingsJSON != "[]" {
		if err := json.Unmarshal([]byte(r.FindingsJSON), &rec.Findings); err != nil {
			return types.EntryRecord{}, store.Wrap("decode findings", err)
		}
	}
	return rec, nil
}

func loadEntry(ctx context.Context, q sqlx.QueryerContext, id string) (types.EntryRecord, error) {
	var row entryRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+entryColumns+` FROM entries WHERE entry_id = ?;`, id)
	if err != nil {
		return types.EntryRecord{}, notFoundOr("load entry", err)
	}
	return row.record()
}

func listEntries(ctx context.Context, q sqlx.QueryerContext, f store.EntryFilter) ([]types.EntryRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(f.State))
	}
	if f.IdentityKey != "" {
		where = append(where, "identity_key = ?")
		args = append(args, f.IdentityKey)
	}

	query := `SELECT ` + entryColumns + ` FROM entries`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY entered_at_ms, entry_id;`

	var rows []entryRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, store.Wrap("list entries", err)
	}

	out := make([]types.EntryRecord, 0, len(rows))
	for _, r := range rows {
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func saveEntry(ctx context.Context, tx *sqlx.Tx, rec types.EntryRecord) error {
	findings := []byte("[]")
	if len(rec.Findings) > 0 {
		b, err := json.Marshal(rec.Findings)
		if err != nil {
			return store.Wrap("encode findings", err)
		}
		findings = b
	}

	updated := rec.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}

	_, err := tx.ExecContext(ctx, `
INSERT INTO entries(`+entryColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(entry_id) DO UPDATE SET
  state          = excluded.state,
  exited_at_ms   = excluded.exited_at_ms,
  badge_code     = excluded.badge_code,
  findings_json  = excluded.findings_json,
  updated_at_ms  = excluded.updated_at_ms;
`,
		rec.ID, rec.Identity.Key, rec.Identity.Name, string(rec.Category), string(rec.State),
		toMs(rec.EnteredAt), optMsPtr(rec.ExitedAt), optString(rec.BadgeCode),
		optString(rec.HostRef), optString(rec.CompanyRef), optString(rec.VehicleRef),
		rec.ExpectedStay.Milliseconds(), rec.StayLimit.Milliseconds(),
		string(findings), rec.Operator, toMs(updated),
	)
	return store.Wrap("save entry", err)
}
