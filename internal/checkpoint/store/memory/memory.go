// Package memory is an in-memory implementation of store.Store intended for
// tests and dev environments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

type Store struct {
	// txMu serialises transactions; mu guards the maps.
	txMu sync.Mutex
	mu   sync.RWMutex

	entries   map[string]types.EntryRecord
	badges    map[string]types.Badge
	alerts    map[string]types.Alert
	alertSeq  []string
	blacklist map[string]types.BlacklistEntry
	companies map[string]types.Company
	events    []types.AuditEvent
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		entries:   make(map[string]types.EntryRecord),
		badges:    make(map[string]types.Badge),
		alerts:    make(map[string]types.Alert),
		blacklist: make(map[string]types.BlacklistEntry),
		companies: make(map[string]types.Company),
	}
}

// Atomically stages every write made through the Tx and applies them only
// when fn returns nil.
func (s *Store) Atomically(ctx context.Context, fn store.TxFn) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		s:       s,
		entries: make(map[string]types.EntryRecord),
		badges:  make(map[string]types.Badge),
		alerts:  make(map[string]types.Alert),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range tx.entries {
		s.entries[id] = rec
	}
	for code, b := range tx.badges {
		s.badges[code] = b
	}
	for _, id := range tx.newAlerts {
		s.alertSeq = append(s.alertSeq, id)
	}
	for id, a := range tx.alerts {
		s.alerts[id] = a
	}
	s.events = append(s.events, tx.events...)
	return nil
}

func (s *Store) LoadEntry(_ context.Context, id string) (types.EntryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.entries[id]
	if !ok {
		return types.EntryRecord{}, store.ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *Store) ListEntries(_ context.Context, f store.EntryFilter) ([]types.EntryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.EntryRecord, 0, len(s.entries))
	for _, rec := range s.entries {
		if f.State != "" && rec.State != f.State {
			continue
		}
		if f.IdentityKey != "" && rec.Identity.Key != f.IdentityKey {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EnteredAt.Equal(out[j].EnteredAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].EnteredAt.Before(out[j].EnteredAt)
	})
	return out, nil
}

func (s *Store) LoadBadge(_ context.Context, code string) (types.Badge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.badges[code]
	if !ok {
		return types.Badge{}, store.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListAlerts(_ context.Context, f store.AlertFilter) ([]types.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Alert
	for _, id := range s.alertSeq {
		a := s.alerts[id]
		if f.OpenOnly && a.Resolved {
			continue
		}
		if f.IdentityKey != "" && a.IdentityKey != f.IdentityKey {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) QueryBlacklist(_ context.Context, kind types.SubjectKind, key string, at time.Time) ([]types.BlacklistEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key = normaliseKey(key)
	var out []types.BlacklistEntry
	for _, e := range s.blacklist {
		if e.Kind == kind && e.Key == key && e.Covers(at) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SaveBlacklistEntry(_ context.Context, e types.BlacklistEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Key = normaliseKey(e.Key)
	s.blacklist[e.ID] = e
	return nil
}

func (s *Store) LoadCompany(_ context.Context, id string) (types.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[id]
	if !ok {
		return types.Company{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Store) SaveCompany(_ context.Context, c types.Company) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies[c.ID] = c
	return nil
}

func (s *Store) RecordEvent(_ context.Context, ev types.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// ListEvents returns a copy of the audit log, optionally filtered by kind.
func (s *Store) ListEvents(_ context.Context, kind types.EventKind) ([]types.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.AuditEvent
	for _, ev := range s.events {
		if kind == "" || ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out, nil
}

func normaliseKey(k string) string { return types.CanonicalKey(k) }

// memTx reads through its staged writes to the committed maps.
type memTx struct {
	s *Store

	entries   map[string]types.EntryRecord
	badges    map[string]types.Badge
	alerts    map[string]types.Alert
	newAlerts []string
	events    []types.AuditEvent
}

func (t *memTx) LoadEntry(ctx context.Context, id string) (types.EntryRecord, error) {
	if rec, ok := t.entries[id]; ok {
		return rec.Clone(), nil
	}
	return t.s.LoadEntry(ctx, id)
}

func (t *memTx) SaveEntry(_ context.Context, rec types.EntryRecord) error {
	t.entries[rec.ID] = rec.Clone()
	return nil
}

func (t *memTx) LoadBadge(ctx context.Context, code string) (types.Badge, error) {
	if b, ok := t.badges[code]; ok {
		return b, nil
	}
	return t.s.LoadBadge(ctx, code)
}

func (t *memTx) SaveBadge(_ context.Context, b types.Badge) error {
	t.badges[b.Code] = b
	return nil
}

func (t *memTx) AppendAlert(_ context.Context, a types.Alert) error {
	t.alerts[a.ID] = a
	t.newAlerts = append(t.newAlerts, a.ID)
	return nil
}

func (t *memTx) LoadAlert(_ context.Context, id string) (types.Alert, error) {
	if a, ok := t.alerts[id]; ok {
		return a, nil
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	a, ok := t.s.alerts[id]
	if !ok {
		return types.Alert{}, store.ErrNotFound
	}
	return a, nil
}

func (t *memTx) UpdateAlert(ctx context.Context, a types.Alert) error {
	if _, err := t.LoadAlert(ctx, a.ID); err != nil {
		return err
	}
	t.alerts[a.ID] = a
	return nil
}

func (t *memTx) OpenAlertsForIdentity(ctx context.Context, identityKey string) ([]types.Alert, error) {
	committed, err := t.s.ListAlerts(ctx, store.AlertFilter{OpenOnly: false, IdentityKey: identityKey})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(committed))
	var out []types.Alert
	for _, a := range committed {
		seen[a.ID] = struct{}{}
		if staged, ok := t.alerts[a.ID]; ok {
			a = staged
		}
		if !a.Resolved {
			out = append(out, a)
		}
	}
	for _, id := range t.newAlerts {
		if _, ok := seen[id]; ok {
			continue
		}
		a := t.alerts[id]
		if a.IdentityKey == identityKey && !a.Resolved {
			out = append(out, a)
		}
	}
	return out, nil
}

func (t *memTx) RecordEvent(_ context.Context, ev types.AuditEvent) error {
	t.events = append(t.events, ev)
	return nil
}
