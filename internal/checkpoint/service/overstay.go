package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

// OverstayMonitor periodically scans InPremises records and flags visits
// that have run past their stay limit. It records one overstay audit event
// per visit and never changes lifecycle state.
//
// An interval of 0 disables the monitor.
type OverstayMonitor struct {
	store    store.Store
	interval time.Duration
	now      func() time.Time
	ids      IDs
	logger   *zap.Logger

	mu      sync.Mutex
	flagged map[string]struct{}

	runMu   sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// OverstayConfig holds the parameters for NewOverstayMonitor.
type OverstayConfig struct {
	// Interval is how often the monitor scans. 0 disables it.
	Interval time.Duration
	Now      func() time.Time
	IDs      IDs
}

// NewOverstayMonitor creates a monitor but does not start it.
func NewOverstayMonitor(st store.Store, cfg OverstayConfig, logger *zap.Logger) *OverstayMonitor {
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.IDs == nil {
		cfg.IDs = randomIDs{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverstayMonitor{
		store:    st,
		interval: cfg.Interval,
		now:      cfg.Now,
		ids:      cfg.IDs,
		logger:   logger,
		flagged:  make(map[string]struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs an immediate scan, then repeats on the interval until ctx is
// cancelled or Stop is called. Only the first call has any effect.
func (m *OverstayMonitor) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.started {
		return
	}
	m.started = true

	if m.interval <= 0 {
		m.logger.Info("overstay monitor disabled (interval=0)")
		close(m.done)
		return
	}

	ctx, m.cancel = context.WithCancel(ctx)
	go m.loop(ctx)

	m.logger.Info("overstay monitor started", zap.Duration("interval", m.interval))
}

// Stop signals the monitor to exit and waits for it. Safe to call twice,
// and a no-op if Start was never called.
func (m *OverstayMonitor) Stop() {
	m.runMu.Lock()
	started, cancel := m.started, m.cancel
	m.runMu.Unlock()
	if !started {
		return
	}
	if cancel != nil {
		cancel()
	}
	<-m.done
}

func (m *OverstayMonitor) loop(ctx context.Context) {
	defer close(m.done)

	m.scanAndLog(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.scanAndLog(ctx)
		}
	}
}

func (m *OverstayMonitor) scanAndLog(ctx context.Context) {
	n, err := m.Scan(ctx)
	if err != nil {
		m.logger.Error("overstay scan failed", zap.Error(err))
		return
	}
	if n > 0 {
		m.logger.Info("overstay scan", zap.Int("flagged", n))
	}
}

// Scan flags every InPremises record past its limit that has not been
// flagged yet, and returns how many it flagged.
func (m *OverstayMonitor) Scan(ctx context.Context) (int, error) {
	recs, err := m.store.ListEntries(ctx, store.EntryFilter{State: types.StateInPremises})
	if err != nil {
		return 0, err
	}

	now := m.now()
	live := make(map[string]struct{}, len(recs))
	flagged := 0
	for _, rec := range recs {
		live[rec.ID] = struct{}{}

		limit := stayLimit(rec)
		if limit <= 0 || now.Sub(rec.EnteredAt) <= limit {
			continue
		}
		if m.seen(rec.ID) {
			continue
		}

		ev := types.AuditEvent{
			ID:         m.ids.EventID(),
			Kind:       types.EventOverstay,
			Actor:      "system",
			OccurredAt: now,
			Details: map[string]string{
				"entry_id":     rec.ID,
				"identity_key": rec.Identity.Key,
				"category":     string(rec.Category),
				"badge_code":   rec.BadgeCode,
				"limit":        limit.String(),
				"on_premises":  now.Sub(rec.EnteredAt).Truncate(time.Minute).String(),
			},
		}
		if err := m.store.RecordEvent(ctx, ev); err != nil {
			return flagged, fmt.Errorf("record overstay %s: %w", rec.ID, err)
		}
		m.mark(rec.ID)
		flagged++

		m.logger.Warn("visit over stay limit",
			zap.String("entry_id", rec.ID),
			zap.String("identity_key", rec.Identity.Key),
			zap.String("badge_code", rec.BadgeCode),
			zap.Duration("limit", limit),
		)
	}

	m.forget(live)
	return flagged, nil
}

// stayLimit is the tighter of the declared stay and the limit derived at
// acceptance.
func stayLimit(rec types.EntryRecord) time.Duration {
	limit := rec.StayLimit
	if rec.ExpectedStay > 0 && (limit <= 0 || rec.ExpectedStay < limit) {
		limit = rec.ExpectedStay
	}
	return limit
}

func (m *OverstayMonitor) seen(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.flagged[id]
	return ok
}

func (m *OverstayMonitor) mark(id string) {
	m.mu.Lock()
	m.flagged[id] = struct{}{}
	m.mu.Unlock()
}

// forget drops flags for visits that are no longer on site.
func (m *OverstayMonitor) forget(live map[string]struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.flagged {
		if _, ok := live[id]; !ok {
			delete(m.flagged, id)
		}
	}
}
