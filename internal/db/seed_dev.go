package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
)

type SeedDevOptions struct {
	// BadgeCodes are registered as available badges if missing.
	BadgeCodes []string
}

// SeedDev inserts a starter company and badge pool so a dev terminal can
// admit contractors right away. Existing rows are left untouched.
func SeedDev(ctx context.Context, conn *sqlx.DB, opt SeedDevOptions) error {
	now := time.Now().UTC().UnixMilli()

	if _, err := conn.ExecContext(ctx, `
INSERT OR IGNORE INTO companies(company_id, name, active, max_stay_ms)
VALUES ('ACME', 'ACME Maintenance', 1, ?);`, (10 * time.Hour).Milliseconds()); err != nil {
		return fmt.Errorf("seed companies: %w", err)
	}

	codes := opt.BadgeCodes
	if len(codes) == 0 {
		codes = []string{"B1", "B2", "B3", "B4", "B5", "B6", "B7", "B8"}
	}
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, err := conn.ExecContext(ctx, `
INSERT OR IGNORE INTO badges(badge_code, state, updated_at_ms)
VALUES (?, 'available', ?);`, code, now); err != nil {
			return fmt.Errorf("seed badge %s: %w", code, err)
		}
	}

	return nil
}
