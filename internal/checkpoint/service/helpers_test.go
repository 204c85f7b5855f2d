package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/service"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/session"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store/memory"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// grantSession is a session.Context with a fixed operator and grant set.
type grantSession struct {
	actor  string
	grants session.Grants
}

func (s grantSession) Authorize(m session.Module, a session.Action) (string, error) {
	if !s.grants.Allows(m, a) {
		return s.actor, fmt.Errorf("%w: %s:%s", session.ErrPermissionDenied, m, a)
	}
	return s.actor, nil
}

func supervisor() grantSession {
	return grantSession{actor: "supervisor", grants: session.NewGrants(map[string][]string{
		"entries": {"*"},
		"badges":  {"*"},
		"alerts":  {"*"},
	})}
}

func guard() grantSession {
	return grantSession{actor: "guard", grants: session.NewGrants(map[string][]string{
		"entries": {"submit", "exit", "read"},
		"badges":  {"issue", "report_lost", "read"},
		"alerts":  {"read"},
	})}
}

type fixture struct {
	ctx   context.Context
	store store.Store
	mem   *memory.Store
	cp    *service.Checkpoint
	sess  session.Context
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, nil)
}

// newFixtureWithStore wires the engine over wrap(mem) when wrap is set.
func newFixtureWithStore(t *testing.T, wrap func(*memory.Store) store.Store, opts ...func(*service.EngineOptions)) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := memory.New()

	var st store.Store = mem
	if wrap != nil {
		st = wrap(mem)
	}

	eo := service.EngineOptions{Now: func() time.Time { return t0 }}
	for _, o := range opts {
		o(&eo)
	}
	eng := service.NewEngine(st, eo)
	cp := service.New(service.Config{Store: st, Engine: eng})

	require.NoError(t, mem.SaveCompany(ctx, types.Company{
		ID:      "ACME",
		Name:    "Acme Maintenance",
		Active:  true,
		MaxStay: 10 * time.Hour,
	}))
	f := &fixture{ctx: ctx, store: st, mem: mem, cp: cp, sess: supervisor()}
	for i := 1; i <= 8; i++ {
		_, err := cp.RegisterBadge(ctx, f.sess, fmt.Sprintf("B%d", i))
		require.NoError(t, err)
	}
	return f
}

func visitor(key string) types.EntryRequest {
	return types.EntryRequest{
		Identity: types.Identity{Key: key, Name: "Visitor " + key, Category: types.CategoryVisitor},
		HostRef:  "host-42",
	}
}

func contractor(key, company string) types.EntryRequest {
	return types.EntryRequest{
		Identity:     types.Identity{Key: key, Name: "Contractor " + key, Category: types.CategoryContractor},
		CompanyRef:   company,
		ExpectedStay: 8 * time.Hour,
	}
}

func supplier(key, plate string) types.EntryRequest {
	return types.EntryRequest{
		Identity:   types.Identity{Key: key, Name: "Supplier " + key, Category: types.CategorySupplier},
		VehicleRef: plate,
	}
}

// admit submits req and issues badge, returning the InPremises record.
func (f *fixture) admit(t *testing.T, req types.EntryRequest, badge string) types.EntryRecord {
	t.Helper()
	rec, err := f.cp.SubmitEntry(f.ctx, f.sess, req)
	require.NoError(t, err)
	rec, err = f.cp.IssueBadge(f.ctx, f.sess, rec.ID, badge, false)
	require.NoError(t, err)
	return rec
}

func (f *fixture) events(t *testing.T, kind types.EventKind) []types.AuditEvent {
	t.Helper()
	evs, err := f.store.ListEvents(f.ctx, kind)
	require.NoError(t, err)
	return evs
}

func (f *fixture) entries(t *testing.T) []types.EntryRecord {
	t.Helper()
	recs, err := f.store.ListEntries(f.ctx, store.EntryFilter{})
	require.NoError(t, err)
	return recs
}

func ptr(s string) *string { return &s }

// ── store decorators ─────────────────────────────────────────────────────────

// failingBlacklist makes every blacklist lookup fail.
type failingBlacklist struct {
	*memory.Store
}

func (failingBlacklist) QueryBlacklist(context.Context, types.SubjectKind, string, time.Time) ([]types.BlacklistEntry, error) {
	return nil, errors.New("blacklist backend unreachable")
}

// hangingBlacklist blocks until the lookup deadline passes.
type hangingBlacklist struct {
	*memory.Store
}

func (hangingBlacklist) QueryBlacklist(ctx context.Context, _ types.SubjectKind, _ string, _ time.Time) ([]types.BlacklistEntry, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// brokenCommit fails every transaction after the badges are seeded.
type brokenCommit struct {
	*memory.Store
	broken bool
}

func (b *brokenCommit) Atomically(ctx context.Context, fn store.TxFn) error {
	if b.broken {
		return errors.New("disk I/O error")
	}
	return b.Store.Atomically(ctx, fn)
}
