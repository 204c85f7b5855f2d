// Package storetest is the behavioural contract every store.Store backend
// must satisfy. Backends run it from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// Suite runs against a fresh store per test, built by New.
type Suite struct {
	suite.Suite
	New func(t *testing.T) store.Store

	ctx context.Context
	st  store.Store
}

func (s *Suite) SetupTest() {
	s.ctx = context.Background()
	s.st = s.New(s.T())
}

func entry(id, key string, state types.EntryState, at time.Time) types.EntryRecord {
	return types.EntryRecord{
		ID:        id,
		Identity:  types.Identity{Key: key, Name: "Name " + key, Category: types.CategoryVisitor},
		Category:  types.CategoryVisitor,
		State:     state,
		EnteredAt: at,
		HostRef:   "host-1",
		StayLimit: 4 * time.Hour,
		Operator:  "op",
		UpdatedAt: at,
	}
}

func (s *Suite) save(fn store.TxFn) {
	s.Require().NoError(s.st.Atomically(s.ctx, fn))
}

// ── Entries ──────────────────────────────────────────────────────────────────

func (s *Suite) TestEntryRoundTrip() {
	rec := entry("e1", "V1", types.StateEntered, t0)
	rec.ExpectedStay = 90 * time.Minute
	rec.Findings = []types.Finding{{
		Severity: types.SeverityWarning,
		Code:     types.ReasonStayOverThreshold,
		Message:  "long stay",
	}}
	s.save(func(ctx context.Context, tx store.Tx) error { return tx.SaveEntry(ctx, rec) })

	got, err := s.st.LoadEntry(s.ctx, "e1")
	s.Require().NoError(err)
	s.Equal(rec, got)

	s.Run("update", func() {
		exited := got.Clone()
		at := t0.Add(time.Hour)
		exited.State = types.StateExited
		exited.BadgeCode = "B1"
		exited.ExitedAt = &at
		exited.UpdatedAt = at
		s.save(func(ctx context.Context, tx store.Tx) error { return tx.SaveEntry(ctx, exited) })

		got, err := s.st.LoadEntry(s.ctx, "e1")
		s.Require().NoError(err)
		s.Equal(types.StateExited, got.State)
		s.Equal("B1", got.BadgeCode)
		s.Require().NotNil(got.ExitedAt)
		s.True(at.Equal(*got.ExitedAt))
	})

	s.Run("missing", func() {
		_, err := s.st.LoadEntry(s.ctx, "nope")
		s.ErrorIs(err, store.ErrNotFound)
	})
}

func (s *Suite) TestListEntriesFilters() {
	s.save(func(ctx context.Context, tx store.Tx) error {
		for _, rec := range []types.EntryRecord{
			entry("e2", "V1", types.StateInPremises, t0.Add(2*time.Minute)),
			entry("e1", "V1", types.StateExited, t0),
			entry("e3", "V2", types.StateInPremises, t0.Add(time.Minute)),
		} {
			if err := tx.SaveEntry(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})

	all, err := s.st.ListEntries(s.ctx, store.EntryFilter{})
	s.Require().NoError(err)
	s.Equal([]string{"e1", "e3", "e2"}, ids(all))

	on, err := s.st.ListEntries(s.ctx, store.EntryFilter{State: types.StateInPremises})
	s.Require().NoError(err)
	s.Equal([]string{"e3", "e2"}, ids(on))

	v1, err := s.st.ListEntries(s.ctx, store.EntryFilter{IdentityKey: "V1", State: types.StateInPremises})
	s.Require().NoError(err)
	s.Equal([]string{"e2"}, ids(v1))
}

// ── Transactions ─────────────────────────────────────────────────────────────

func (s *Suite) TestAtomicallyRollsBack() {
	boom := errors.New("boom")
	err := s.st.Atomically(s.ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.SaveEntry(ctx, entry("e1", "V1", types.StateEntered, t0)); err != nil {
			return err
		}
		if err := tx.SaveBadge(ctx, types.Badge{Code: "B1", State: types.BadgeAvailable, UpdatedAt: t0}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	_, err = s.st.LoadEntry(s.ctx, "e1")
	s.ErrorIs(err, store.ErrNotFound)
	_, err = s.st.LoadBadge(s.ctx, "B1")
	s.ErrorIs(err, store.ErrNotFound)

	evs, err := s.st.ListEvents(s.ctx, "")
	s.Require().NoError(err)
	s.Empty(evs)
}

func (s *Suite) TestTxReadsOwnWrites() {
	s.save(func(ctx context.Context, tx store.Tx) error {
		if err := tx.SaveEntry(ctx, entry("e1", "V1", types.StateInPremises, t0)); err != nil {
			return err
		}
		if err := tx.SaveBadge(ctx, types.Badge{Code: "B1", State: types.BadgeIssued, EntryID: "e1", UpdatedAt: t0}); err != nil {
			return err
		}
		b, err := tx.LoadBadge(ctx, "B1")
		if err != nil {
			return err
		}
		s.Equal("e1", b.EntryID)

		if err := tx.AppendAlert(ctx, types.Alert{
			ID: "a1", Kind: types.AlertLost, EntryID: "e1", IdentityKey: "V1", BadgeCode: "B1", CreatedAt: t0,
		}); err != nil {
			return err
		}
		open, err := tx.OpenAlertsForIdentity(ctx, "V1")
		if err != nil {
			return err
		}
		s.Len(open, 1)
		return nil
	})
}

// ── Badges ───────────────────────────────────────────────────────────────────

func (s *Suite) TestBadgeRoundTrip() {
	s.save(func(ctx context.Context, tx store.Tx) error {
		if err := tx.SaveEntry(ctx, entry("e1", "V1", types.StateInPremises, t0)); err != nil {
			return err
		}
		return tx.SaveBadge(ctx, types.Badge{Code: "B1", State: types.BadgeIssued, EntryID: "e1", UpdatedAt: t0})
	})

	b, err := s.st.LoadBadge(s.ctx, "B1")
	s.Require().NoError(err)
	s.Equal(types.Badge{Code: "B1", State: types.BadgeIssued, EntryID: "e1", UpdatedAt: t0}, b)

	s.save(func(ctx context.Context, tx store.Tx) error {
		return tx.SaveBadge(ctx, types.Badge{Code: "B1", State: types.BadgeAvailable, UpdatedAt: t0.Add(time.Hour)})
	})
	b, err = s.st.LoadBadge(s.ctx, "B1")
	s.Require().NoError(err)
	s.Equal(types.BadgeAvailable, b.State)
	s.Empty(b.EntryID)
}

// ── Alerts ───────────────────────────────────────────────────────────────────

func (s *Suite) TestAlertsResolveAndFilter() {
	s.save(func(ctx context.Context, tx store.Tx) error {
		for _, rec := range []types.EntryRecord{
			entry("e1", "V1", types.StateExited, t0),
			entry("e2", "V2", types.StateExited, t0),
		} {
			if err := tx.SaveEntry(ctx, rec); err != nil {
				return err
			}
		}
		for _, a := range []types.Alert{
			{ID: "a1", Kind: types.AlertNotReturned, EntryID: "e1", IdentityKey: "V1", BadgeCode: "B1", CreatedAt: t0},
			{ID: "a2", Kind: types.AlertMismatch, EntryID: "e2", IdentityKey: "V2", BadgeCode: "B2", PresentedCode: "B3", CreatedAt: t0.Add(time.Second)},
		} {
			if err := tx.AppendAlert(ctx, a); err != nil {
				return err
			}
		}
		return nil
	})

	s.save(func(ctx context.Context, tx store.Tx) error {
		a, err := tx.LoadAlert(ctx, "a1")
		if err != nil {
			return err
		}
		at := t0.Add(time.Hour)
		a.Resolved, a.ResolvedBy, a.ResolvedAt, a.ResolutionNote = true, "sup", &at, "found"
		return tx.UpdateAlert(ctx, a)
	})

	all, err := s.st.ListAlerts(s.ctx, store.AlertFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal("a1", all[0].ID)
	s.True(all[0].Resolved)
	s.Equal("found", all[0].ResolutionNote)
	s.Equal("B3", all[1].PresentedCode)

	open, err := s.st.ListAlerts(s.ctx, store.AlertFilter{OpenOnly: true})
	s.Require().NoError(err)
	s.Equal([]string{"a2"}, alertIDs(open))

	v2, err := s.st.ListAlerts(s.ctx, store.AlertFilter{IdentityKey: "V2"})
	s.Require().NoError(err)
	s.Equal([]string{"a2"}, alertIDs(v2))

	s.Run("update missing", func() {
		err := s.st.Atomically(s.ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.UpdateAlert(ctx, types.Alert{ID: "nope", Resolved: true})
		})
		s.ErrorIs(err, store.ErrNotFound)
	})
}

// ── Blacklist ────────────────────────────────────────────────────────────────

func (s *Suite) TestBlacklistQuery() {
	for _, e := range []types.BlacklistEntry{
		{ID: "bl1", Kind: types.SubjectPerson, Key: "v1", Reason: "r1", Active: true, From: t0.Add(-time.Hour)},
		{ID: "bl2", Kind: types.SubjectPerson, Key: "V1", Reason: "r2", Active: true, Until: t0},
		{ID: "bl3", Kind: types.SubjectPerson, Key: "V1", Reason: "r3", Active: false},
		{ID: "bl4", Kind: types.SubjectVehicle, Key: "V1", Reason: "r4", Active: true},
	} {
		s.Require().NoError(s.st.SaveBlacklistEntry(s.ctx, e))
	}

	hits, err := s.st.QueryBlacklist(s.ctx, types.SubjectPerson, " V1 ", t0)
	s.Require().NoError(err)
	s.Require().Len(hits, 1)
	s.Equal("bl1", hits[0].ID)
	s.Equal("V1", hits[0].Key)

	earlier, err := s.st.QueryBlacklist(s.ctx, types.SubjectPerson, "V1", t0.Add(-30*time.Minute))
	s.Require().NoError(err)
	s.Len(earlier, 2)

	vehicle, err := s.st.QueryBlacklist(s.ctx, types.SubjectVehicle, "v1", t0)
	s.Require().NoError(err)
	s.Len(vehicle, 1)
}

// ── Companies ────────────────────────────────────────────────────────────────

func (s *Suite) TestCompanyRoundTrip() {
	c := types.Company{
		ID:              "ACME",
		Name:            "Acme",
		Active:          true,
		AuthorizedFrom:  t0.Add(-24 * time.Hour),
		AuthorizedUntil: t0.Add(24 * time.Hour),
		MaxStay:         10 * time.Hour,
	}
	s.Require().NoError(s.st.SaveCompany(s.ctx, c))

	got, err := s.st.LoadCompany(s.ctx, "ACME")
	s.Require().NoError(err)
	s.Equal(c, got)

	_, err = s.st.LoadCompany(s.ctx, "nope")
	s.ErrorIs(err, store.ErrNotFound)
}

// ── Audit log ────────────────────────────────────────────────────────────────

func (s *Suite) TestAuditLogOrder() {
	s.Require().NoError(s.st.RecordEvent(s.ctx, types.AuditEvent{
		ID: "ev1", Kind: types.EventLogin, Actor: "op", OccurredAt: t0,
	}))
	s.save(func(ctx context.Context, tx store.Tx) error {
		return tx.RecordEvent(ctx, types.AuditEvent{
			ID: "ev2", Kind: types.EventEntryRejected, Actor: "op", OccurredAt: t0,
			Details: map[string]string{"identity_key": "V1"},
		})
	})
	s.Require().NoError(s.st.RecordEvent(s.ctx, types.AuditEvent{
		ID: "ev3", Kind: types.EventLogout, Actor: "op", OccurredAt: t0,
	}))

	all, err := s.st.ListEvents(s.ctx, "")
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal("ev1", all[0].ID)
	s.Equal("ev2", all[1].ID)
	s.Equal("ev3", all[2].ID)

	rejected, err := s.st.ListEvents(s.ctx, types.EventEntryRejected)
	s.Require().NoError(err)
	s.Require().Len(rejected, 1)
	s.Equal("V1", rejected[0].Details["identity_key"])
}

func ids(recs []types.EntryRecord) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func alertIDs(as []types.Alert) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = a.ID
	}
	return out
}
