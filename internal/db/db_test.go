package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
)

func openTemp(t *testing.T) *sqlx.DB {
	t.Helper()
	conn, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "checkpoint.db"), Env: "dev"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// ── Migrations ───────────────────────────────────────────────────────────────

func TestParseVersion(t *testing.T) {
	cases := map[string]int{
		"0001_init.sql":     1,
		"0012_badges.sql":   12,
		"0000_zero.sql":     0,
		"42_no_padding.sql": 42,
	}
	for name, want := range cases {
		got, err := parseVersion(name)
		if err != nil {
			t.Fatalf("parseVersion(%q): %v", name, err)
		}
		if got != want {
			t.Errorf("parseVersion(%q) = %d, want %d", name, got, want)
		}
	}

	for _, bad := range []string{"init.sql", "abc_init.sql"} {
		if _, err := parseVersion(bad); err == nil {
			t.Errorf("parseVersion(%q): expected error", bad)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	conn := openTemp(t)
	ctx := context.Background()

	// Open already migrated once.
	if err := Migrate(ctx, conn); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	var n int
	if err := conn.GetContext(ctx, &n, "SELECT COUNT(*) FROM schema_migrations;"); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	ms, err := loadMigrations()
	if err != nil {
		t.Fatalf("loadMigrations: %v", err)
	}
	if n != len(ms) {
		t.Errorf("schema_migrations has %d rows, want %d", n, len(ms))
	}

	for _, table := range []string{"entries", "badges", "alerts", "blacklist_entries", "companies", "audit_events"} {
		var name string
		if err := conn.GetContext(ctx, &name, "SELECT name FROM sqlite_master WHERE type='table' AND name=?;", table); err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

// ── Worker ───────────────────────────────────────────────────────────────────

func TestWorker_RollsBackOnError(t *testing.T) {
	conn := openTemp(t)
	w := NewWorker(conn)
	defer w.Close()
	ctx := context.Background()

	boom := errors.New("boom")
	err := w.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO badges(badge_code, state, updated_at_ms) VALUES ('B1', 'available', 0);`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Do error = %v, want boom", err)
	}

	var n int
	if err := conn.GetContext(ctx, &n, "SELECT COUNT(*) FROM badges;"); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected rollback, found %d badges", n)
	}
}

func TestWorker_SerialisesWriters(t *testing.T) {
	conn := openTemp(t)
	w := NewWorker(conn)
	defer w.Close()
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- w.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
				var n int
				if err := tx.GetContext(ctx, &n, "SELECT COUNT(*) FROM audit_events;"); err != nil {
					return err
				}
				_, err := tx.ExecContext(ctx,
					"INSERT INTO audit_events(event_id, kind, actor, occurred_at_ms) VALUES (?, 'login', 'op', 0);",
					n,
				)
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
	}

	var n int
	if err := conn.GetContext(ctx, &n, "SELECT COUNT(*) FROM audit_events;"); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != writers {
		t.Errorf("got %d events, want %d", n, writers)
	}
}

func TestWorker_DoAfterCloseFails(t *testing.T) {
	conn := openTemp(t)
	w := NewWorker(conn)
	w.Close()
	w.Close()

	err := w.Do(context.Background(), func(context.Context, *sqlx.Tx) error { return nil })
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("Do after Close = %v, want ErrClosed", err)
	}
}

// A cancel racing the commit must never make Do report failure for a
// transaction that was applied, nor success for one that was not.
func TestWorker_OutcomeMatchesCommitWhenCancelled(t *testing.T) {
	conn := openTemp(t)
	w := NewWorker(conn)
	defer w.Close()

	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("ev-%d", i)
		ctx, cancel := context.WithCancel(context.Background())
		err := w.Do(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO audit_events(event_id, kind, actor, occurred_at_ms) VALUES (?, 'login', 'op', 0);", id)
			go cancel()
			return err
		})
		cancel()

		var n int
		if qerr := conn.GetContext(context.Background(), &n, "SELECT COUNT(*) FROM audit_events WHERE event_id = ?;", id); qerr != nil {
			t.Fatalf("count: %v", qerr)
		}
		if err == nil && n != 1 {
			t.Fatalf("iteration %d: Do succeeded but row missing", i)
		}
		if err != nil && n != 0 {
			t.Fatalf("iteration %d: Do failed (%v) but row committed", i, err)
		}
	}
}
