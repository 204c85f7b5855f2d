package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/metrics"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/session"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

// AlertSink receives alerts after the transition that raised them has
// committed.
type AlertSink interface {
	Dispatch(a types.Alert)
}

// Checkpoint is the caller-facing surface. Every operation is authorized
// against the session before the engine sees it; a refused call has no
// side effect beyond its security audit event.
type Checkpoint struct {
	engine    *Engine
	store     store.Store
	authority *session.Authority
	alerts    AlertSink
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

type Config struct {
	Store  store.Store
	Engine *Engine
	// Authority backs Login/Logout. Optional when callers bring their own
	// session.Context.
	Authority *session.Authority
	Alerts    AlertSink
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

func New(cfg Config) *Checkpoint {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Engine == nil {
		cfg.Engine = NewEngine(cfg.Store, EngineOptions{Logger: cfg.Logger})
	}
	return &Checkpoint{
		engine:    cfg.Engine,
		store:     cfg.Store,
		authority: cfg.Authority,
		alerts:    cfg.Alerts,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// ── Session ──────────────────────────────────────────────────────────────────

func (c *Checkpoint) Login(ctx context.Context, username, password string) (session.Session, error) {
	if c.authority == nil {
		return session.Session{}, session.ErrNoSession
	}
	s, err := c.authority.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, session.ErrInvalidCredentials) {
			c.audit(ctx, types.EventPermissionDenied, strings.TrimSpace(username), map[string]string{"reason": "invalid_credentials"})
		}
		return session.Session{}, err
	}
	c.audit(ctx, types.EventLogin, s.Operator, nil)
	return s, nil
}

func (c *Checkpoint) Logout(ctx context.Context) (session.Session, error) {
	if c.authority == nil {
		return session.Session{}, session.ErrNoSession
	}
	s, err := c.authority.Logout()
	if err != nil {
		return session.Session{}, err
	}
	c.audit(ctx, types.EventLogout, s.Operator, nil)
	return s, nil
}

// CurrentSession reports the active login.
func (c *Checkpoint) CurrentSession() (session.Session, bool) {
	if c.authority == nil {
		return session.Session{}, false
	}
	return c.authority.Current()
}

// ── Commands ─────────────────────────────────────────────────────────────────

func (c *Checkpoint) SubmitEntry(ctx context.Context, sess session.Context, req types.EntryRequest) (types.EntryRecord, error) {
	actor, err := c.authorize(ctx, sess, session.ModuleEntries, session.ActionSubmit)
	if err != nil {
		return types.EntryRecord{}, err
	}

	start := time.Now()
	rec, err := c.engine.ProcessEntry(ctx, actor, req)
	c.metrics.ObserveDecisionLatency(time.Since(start))
	c.metrics.IncrementDecision(categoryLabel(req.Identity.Category), outcomeLabel(err))
	return rec, err
}

// IssueBadge needs badges:issue, and alerts:override as well when override
// is set.
func (c *Checkpoint) IssueBadge(ctx context.Context, sess session.Context, entryID, code string, override bool) (types.EntryRecord, error) {
	actor, err := c.authorize(ctx, sess, session.ModuleBadges, session.ActionIssue)
	if err != nil {
		return types.EntryRecord{}, err
	}
	if override {
		if _, err := c.authorize(ctx, sess, session.ModuleAlerts, session.ActionOverride); err != nil {
			return types.EntryRecord{}, err
		}
	}
	return c.engine.IssueBadge(ctx, actor, entryID, code, override)
}

func (c *Checkpoint) SubmitExit(ctx context.Context, sess session.Context, entryID string, presented *string) (ExitResult, error) {
	actor, err := c.authorize(ctx, sess, session.ModuleEntries, session.ActionExit)
	if err != nil {
		return ExitResult{}, err
	}

	res, err := c.engine.ProcessExit(ctx, actor, entryID, presented)
	if err != nil {
		return ExitResult{}, err
	}

	switch {
	case res.Alert != nil:
		c.metrics.IncrementExit(string(res.Alert.Kind))
		c.raise(*res.Alert)
	case res.Record.BadgeCode == "":
		c.metrics.IncrementExit("none")
	default:
		c.metrics.IncrementExit("returned")
	}
	return res, nil
}

func (c *Checkpoint) ReportBadgeLost(ctx context.Context, sess session.Context, code string) (types.Alert, error) {
	actor, err := c.authorize(ctx, sess, session.ModuleBadges, session.ActionReportLost)
	if err != nil {
		return types.Alert{}, err
	}
	a, err := c.engine.ReportBadgeLost(ctx, actor, code)
	if err != nil {
		return types.Alert{}, err
	}
	c.raise(a)
	return a, nil
}

func (c *Checkpoint) ResolveAlert(ctx context.Context, sess session.Context, alertID, note string) (types.Alert, error) {
	actor, err := c.authorize(ctx, sess, session.ModuleAlerts, session.ActionResolve)
	if err != nil {
		return types.Alert{}, err
	}
	return c.engine.ResolveAlert(ctx, actor, alertID, note)
}

func (c *Checkpoint) RegisterBadge(ctx context.Context, sess session.Context, code string) (types.Badge, error) {
	actor, err := c.authorize(ctx, sess, session.ModuleBadges, session.ActionManage)
	if err != nil {
		return types.Badge{}, err
	}
	return c.engine.RegisterBadge(ctx, actor, code)
}

// ── Queries ──────────────────────────────────────────────────────────────────

func (c *Checkpoint) GetEntry(ctx context.Context, sess session.Context, id string) (types.EntryRecord, error) {
	if _, err := c.authorize(ctx, sess, session.ModuleEntries, session.ActionRead); err != nil {
		return types.EntryRecord{}, err
	}
	id = strings.TrimSpace(id)
	rec, err := c.store.LoadEntry(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return types.EntryRecord{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return rec, err
}

func (c *Checkpoint) ListEntries(ctx context.Context, sess session.Context, f store.EntryFilter) ([]types.EntryRecord, error) {
	if _, err := c.authorize(ctx, sess, session.ModuleEntries, session.ActionRead); err != nil {
		return nil, err
	}
	if f.IdentityKey != "" {
		f.IdentityKey = types.CanonicalKey(f.IdentityKey)
	}
	return c.store.ListEntries(ctx, f)
}

func (c *Checkpoint) ListAlerts(ctx context.Context, sess session.Context, f store.AlertFilter) ([]types.Alert, error) {
	if _, err := c.authorize(ctx, sess, session.ModuleAlerts, session.ActionRead); err != nil {
		return nil, err
	}
	if f.IdentityKey != "" {
		f.IdentityKey = types.CanonicalKey(f.IdentityKey)
	}
	return c.store.ListAlerts(ctx, f)
}

func (c *Checkpoint) GetBadge(ctx context.Context, sess session.Context, code string) (types.Badge, error) {
	if _, err := c.authorize(ctx, sess, session.ModuleBadges, session.ActionRead); err != nil {
		return types.Badge{}, err
	}
	code = NormalizeBadgeCode(code)
	b, err := c.store.LoadBadge(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return types.Badge{}, fmt.Errorf("%w: %s", ErrUnknownBadge, code)
	}
	return b, err
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (c *Checkpoint) authorize(ctx context.Context, sess session.Context, m session.Module, a session.Action) (string, error) {
	if sess == nil {
		return "", session.ErrNoSession
	}
	actor, err := sess.Authorize(m, a)
	if err == nil {
		return actor, nil
	}

	c.metrics.IncrementPermissionDenied(string(m), string(a))
	c.logger.Warn("operation refused",
		zap.String("actor", actor),
		zap.String("module", string(m)),
		zap.String("action", string(a)),
		zap.Error(err),
	)
	c.audit(ctx, types.EventPermissionDenied, actor, map[string]string{
		"module": string(m),
		"action": string(a),
		"reason": err.Error(),
	})
	return "", err
}

func (c *Checkpoint) audit(ctx context.Context, kind types.EventKind, actor string, details map[string]string) {
	if err := c.store.RecordEvent(ctx, c.engine.event(kind, actor, details)); err != nil {
		c.logger.Error("audit failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (c *Checkpoint) raise(a types.Alert) {
	c.metrics.IncrementAlert(string(a.Kind))
	if c.alerts != nil {
		c.alerts.Dispatch(a)
	}
}

func categoryLabel(cat types.Category) string {
	if c, ok := types.ParseCategory(string(cat)); ok {
		return string(c)
	}
	return "unknown"
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	case errors.Is(err, ErrBlocked):
		return "blocked"
	case errors.Is(err, ErrRejected):
		return "rejected"
	default:
		return "error"
	}
}
