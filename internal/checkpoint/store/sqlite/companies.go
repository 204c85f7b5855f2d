package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

type companyRow struct {
	CompanyID         string        `db:"company_id"`
	Name              string        `db:"name"`
	Active            int           `db:"active"`
	AuthorizedFromMs  sql.NullInt64 `db:"authorized_from_ms"`
	AuthorizedUntilMs sql.NullInt64 `db:"authorized_until_ms"`
	MaxStayMs         int64         `db:"max_stay_ms"`
}

func (s *Store) LoadCompany(ctx context.Context, id string) (types.Company, error) {
	var row companyRow
	err := sqlx.GetContext(ctx, s.db, &row, `
SELECT company_id, name, active, authorized_from_ms, authorized_until_ms, max_stay_ms
FROM companies
WHERE company_id = ?;`, id)
	if err != nil {
		return types.Company{}, notFoundOr("load company", err)
	}
	return types.Company{
		ID:              row.CompanyID,
		Name:            row.Name,
		Active:          row.Active == 1,
		AuthorizedFrom:  timeOrZero(row.AuthorizedFromMs),
		AuthorizedUntil: timeOrZero(row.AuthorizedUntilMs),
		MaxStay:         time.Duration(row.MaxStayMs) * time.Millisecond,
	}, nil
}

func (s *Store) SaveCompany(ctx context.Context, c types.Company) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO companies(company_id, name, active, authorized_from_ms, authorized_until_ms, max_stay_ms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(company_id) DO UPDATE SET
  name                = excluded.name,
  active              = excluded.active,
  authorized_from_ms  = excluded.authorized_from_ms,
  authorized_until_ms = excluded.authorized_until_ms,
  max_stay_ms         = excluded.max_stay_ms;
`, c.ID, c.Name, boolInt(c.Active), optMs(c.AuthorizedFrom), optMs(c.AuthorizedUntil), c.MaxStay.Milliseconds())
		return store.Wrap("save company", err)
	})
}
