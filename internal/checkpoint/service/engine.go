package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/lifecycle"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/validation"
)

// EngineOptions tunes an Engine. Zero values pick defaults.
type EngineOptions struct {
	Policy validation.Policy
	// LookupTimeout bounds each blacklist/company lookup. Zero disables.
	LookupTimeout time.Duration
	Logger        *zap.Logger
	Now           func() time.Time
	IDs           IDs
}

// Engine is the entry/exit validation engine (motor de validación). It
// decides every transition and applies it atomically; it does not check
// permissions - Checkpoint does that before calling in.
type Engine struct {
	store     store.Store
	blacklist *BlacklistRegistry
	ledger    *BadgeLedger
	locks     *rowLocks

	policy        validation.Policy
	lookupTimeout time.Duration
	logger        *zap.Logger
	now           func() time.Time
	ids           IDs
}

func NewEngine(st store.Store, opts EngineOptions) *Engine {
	if opts.Policy == (validation.Policy{}) {
		opts.Policy = validation.DefaultPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.IDs == nil {
		opts.IDs = randomIDs{}
	}
	return &Engine{
		store:         st,
		blacklist:     NewBlacklistRegistry(st, opts.LookupTimeout),
		ledger:        &BadgeLedger{ids: opts.IDs},
		locks:         newRowLocks(),
		policy:        opts.Policy,
		lookupTimeout: opts.LookupTimeout,
		logger:        opts.Logger,
		now:           opts.Now,
		ids:           opts.IDs,
	}
}

// Blacklist exposes the registry the engine screens against.
func (e *Engine) Blacklist() *BlacklistRegistry { return e.blacklist }

// ── Entry ────────────────────────────────────────────────────────────────────

// ProcessEntry runs, in order: common checks, person blacklist, evidence
// gathering, category strategy. A refusal is a *RejectionReport and leaves
// no record behind; an acceptance persists a new Entered record.
func (e *Engine) ProcessEntry(ctx context.Context, actor string, req types.EntryRequest) (types.EntryRecord, error) {
	req = validation.Normalize(req)
	at := req.RequestedAt
	if at.IsZero() {
		at = e.now()
	}
	at = at.UTC()

	if reasons := validation.CheckCommon(req); len(reasons) > 0 {
		return types.EntryRecord{}, e.rejectEntry(ctx, actor, req, reject(ErrInvalidInput, reasons...))
	}

	hits, err := e.blacklist.Matches(ctx, types.SubjectPerson, req.Identity.Key, at)
	if err != nil {
		return types.EntryRecord{}, e.rejectEntry(ctx, actor, req, lookupBlock(err))
	}
	if len(hits) > 0 {
		return types.EntryRecord{}, e.rejectEntry(ctx, actor, req, blacklistBlock(req.Identity.Key, hits))
	}

	vctx, err := e.gather(ctx, req, at)
	if err != nil {
		return types.EntryRecord{}, e.rejectEntry(ctx, actor, req, lookupBlock(err))
	}

	strategy, ok := validation.For(req.Identity.Category)
	if !ok {
		return types.EntryRecord{}, e.rejectEntry(ctx, actor, req, reject(ErrInvalidInput, types.Reason{
			Code:    types.ReasonUnknownCategory,
			Message: "unknown category " + string(req.Identity.Category),
		}))
	}
	res := strategy.Validate(req, vctx)
	if !res.Accepted {
		return types.EntryRecord{}, e.rejectEntry(ctx, actor, req, reject(ErrRejected, res.Reasons...))
	}

	rec := lifecycle.New(e.ids.EntryID(), req, actor, at, res.Warnings, res.StayLimit)
	err = e.store.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.SaveEntry(ctx, rec); err != nil {
			return err
		}
		return tx.RecordEvent(ctx, e.event(types.EventEntryAccepted, actor, map[string]string{
			"entry_id":     rec.ID,
			"identity_key": rec.Identity.Key,
			"category":     string(rec.Category),
			"warnings":     fmt.Sprint(len(rec.Findings)),
		}))
	})
	if err != nil {
		return types.EntryRecord{}, store.Wrap("commit entry", err)
	}

	e.logger.Info("entry accepted",
		zap.String("entry_id", rec.ID),
		zap.String("identity_key", rec.Identity.Key),
		zap.String("category", string(rec.Category)),
		zap.Int("warnings", len(rec.Findings)),
	)
	return rec, nil
}

// gather fetches the evidence the strategies evaluate. It runs before any
// rule so no rule spans a collaborator call.
func (e *Engine) gather(ctx context.Context, req types.EntryRequest, at time.Time) (validation.Context, error) {
	vctx := validation.Context{Now: at, Policy: e.policy}

	if req.CompanyRef != "" {
		co, err := e.lookupCompany(ctx, req.CompanyRef)
		if err != nil {
			return vctx, err
		}
		vctx.Company = co
	}

	if req.VehicleRef != "" {
		hits, err := e.blacklist.Matches(ctx, types.SubjectVehicle, req.VehicleRef, at)
		if err != nil {
			return vctx, err
		}
		vctx.VehicleBlocks = hits
	}

	return vctx, nil
}

func (e *Engine) lookupCompany(ctx context.Context, id string) (*types.Company, error) {
	if e.lookupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.lookupTimeout)
		defer cancel()
	}
	co, err := e.store.LoadCompany(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: company %s: %w", ErrLookupFailed, id, err)
	}
	return &co, nil
}

func (e *Engine) rejectEntry(ctx context.Context, actor string, req types.EntryRequest, rep *RejectionReport) error {
	details := map[string]string{
		"identity_key": req.Identity.Key,
		"category":     string(req.Identity.Category),
		"cause":        rep.Cause.Error(),
		"reasons":      joinCodes(rep.Codes()),
	}
	for _, r := range rep.Reasons {
		if r.Ref != "" {
			details["ref"] = r.Ref
			break
		}
	}
	if rep.Err != nil {
		details["error"] = rep.Err.Error()
	}

	fields := []zap.Field{
		zap.String("identity_key", req.Identity.Key),
		zap.String("cause", rep.Cause.Error()),
		zap.Strings("reasons", codeStrings(rep.Codes())),
	}
	if errors.Is(rep, ErrBlocked) {
		e.logger.Warn("entry blocked", append(fields, zap.Error(rep.Err))...)
	} else {
		e.logger.Info("entry rejected", fields...)
	}

	if err := e.store.RecordEvent(ctx, e.event(types.EventEntryRejected, actor, details)); err != nil {
		e.logger.Error("audit entry_rejected failed", zap.Error(err), zap.String("identity_key", req.Identity.Key))
	}
	return rep
}

func lookupBlock(err error) *RejectionReport {
	rep := reject(ErrBlocked, types.Reason{
		Code:    types.ReasonLookupFailed,
		Message: "screening lookup failed; entry refused until it succeeds",
	})
	rep.Err = err
	return rep
}

func blacklistBlock(key string, hits []types.BlacklistEntry) *RejectionReport {
	reasons := make([]types.Reason, 0, len(hits))
	for _, h := range hits {
		reasons = append(reasons, types.Reason{
			Code:    types.ReasonBlacklisted,
			Message: key + " is blacklisted: " + h.Reason,
			Ref:     h.ID,
		})
	}
	return reject(ErrBlocked, reasons...)
}

// ── Badge issuance ───────────────────────────────────────────────────────────

// IssueBadge binds badge code to an Entered record, moving it InPremises.
// Open alerts against the same identity block issuance unless override is
// set (the caller must have checked the override permission).
func (e *Engine) IssueBadge(ctx context.Context, actor, entryID, code string, override bool) (types.EntryRecord, error) {
	entryID = strings.TrimSpace(entryID)
	code = NormalizeBadgeCode(code)
	if entryID == "" || code == "" {
		return types.EntryRecord{}, fmt.Errorf("%w: entry id and badge code are required", ErrInvalidInput)
	}

	unlockEntry := e.locks.Lock(entryKey(entryID))
	defer unlockEntry()
	unlockBadge := e.locks.Lock(badgeKey(code))
	defer unlockBadge()

	current, err := e.loadEntry(ctx, entryID)
	if err != nil {
		return types.EntryRecord{}, err
	}
	if current.State != types.StateEntered {
		return types.EntryRecord{}, fmt.Errorf("%w: entry %s is %s", ErrEntryNotEligible, entryID, current.State)
	}

	now := e.now()

	// The record is about to become InPremises: screen again.
	hits, err := e.blacklist.Matches(ctx, types.SubjectPerson, current.Identity.Key, now)
	if err != nil {
		return types.EntryRecord{}, e.rejectIssue(ctx, actor, current, code, lookupBlock(err))
	}
	if len(hits) > 0 {
		return types.EntryRecord{}, e.rejectIssue(ctx, actor, current, code, blacklistBlock(current.Identity.Key, hits))
	}

	var (
		out        types.EntryRecord
		overridden []string
	)
	err = e.store.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		rec, err := tx.LoadEntry(ctx, entryID)
		if err != nil {
			return e.entryErr(entryID, err)
		}

		open, err := tx.OpenAlertsForIdentity(ctx, rec.Identity.Key)
		if err != nil {
			return err
		}
		if len(open) > 0 {
			if !override {
				return openAlertBlock(open)
			}
			for _, a := range open {
				overridden = append(overridden, a.ID)
			}
		}

		admitted, _, err := e.ledger.Issue(ctx, tx, rec, code, now)
		if err != nil {
			return err
		}
		if err := tx.SaveEntry(ctx, admitted); err != nil {
			return err
		}

		details := map[string]string{
			"entry_id":     admitted.ID,
			"identity_key": admitted.Identity.Key,
			"badge_code":   code,
		}
		if len(overridden) > 0 {
			details["override_alerts"] = strings.Join(overridden, ",")
		}
		if err := tx.RecordEvent(ctx, e.event(types.EventBadgeIssued, actor, details)); err != nil {
			return err
		}
		out = admitted
		return nil
	})
	if err != nil {
		if rep, ok := AsRejection(err); ok {
			return types.EntryRecord{}, e.rejectIssue(ctx, actor, current, code, rep)
		}
		return types.EntryRecord{}, err
	}

	if len(overridden) > 0 {
		e.logger.Warn("open alert gate overridden",
			zap.String("entry_id", out.ID),
			zap.String("actor", actor),
			zap.Strings("alerts", overridden),
		)
	}
	e.logger.Info("badge issued", zap.String("entry_id", out.ID), zap.String("badge_code", code))
	return out, nil
}

func openAlertBlock(open []types.Alert) *RejectionReport {
	reasons := make([]types.Reason, 0, len(open))
	for _, a := range open {
		reasons = append(reasons, types.Reason{
			Code:    types.ReasonOpenAlert,
			Message: "unresolved " + string(a.Kind) + " alert for badge " + a.BadgeCode,
			Ref:     a.ID,
		})
	}
	return reject(ErrBlocked, reasons...)
}

func (e *Engine) rejectIssue(ctx context.Context, actor string, rec types.EntryRecord, code string, rep *RejectionReport) error {
	e.logger.Warn("badge issuance blocked",
		zap.String("entry_id", rec.ID),
		zap.String("badge_code", code),
		zap.Strings("reasons", codeStrings(rep.Codes())),
	)
	details := map[string]string{
		"entry_id":     rec.ID,
		"identity_key": rec.Identity.Key,
		"badge_code":   code,
		"stage":        "badge_issue",
		"cause":        rep.Cause.Error(),
		"reasons":      joinCodes(rep.Codes()),
	}
	if err := e.store.RecordEvent(ctx, e.event(types.EventEntryRejected, actor, details)); err != nil {
		e.logger.Error("audit badge rejection failed", zap.Error(err), zap.String("entry_id", rec.ID))
	}
	return rep
}

// ── Exit ─────────────────────────────────────────────────────────────────────

// ExitResult is the finalised record plus the alert the exit raised, if any.
type ExitResult struct {
	Record types.EntryRecord `json:"record"`
	Alert  *types.Alert      `json:"alert,omitempty"`
}

// ProcessExit finalises an InPremises record. Badge problems raise an alert
// but never refuse the exit.
func (e *Engine) ProcessExit(ctx context.Context, actor, entryID string, presented *string) (ExitResult, error) {
	entryID = strings.TrimSpace(entryID)
	if entryID == "" {
		return ExitResult{}, fmt.Errorf("%w: entry id is required", ErrInvalidInput)
	}

	unlockEntry := e.locks.Lock(entryKey(entryID))
	defer unlockEntry()

	current, err := e.loadEntry(ctx, entryID)
	if err != nil {
		return ExitResult{}, err
	}
	if _, err := lifecycle.Exit(current, e.now()); err != nil {
		e.logger.Warn("exit refused",
			zap.String("actor", actor),
			zap.String("entry_id", entryID),
			zap.String("state", string(current.State)),
			zap.Error(err),
		)
		return ExitResult{}, err
	}
	if current.BadgeCode != "" {
		unlockBadge := e.locks.Lock(badgeKey(current.BadgeCode))
		defer unlockBadge()
	}

	now := e.now()
	var res ExitResult
	err = e.store.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		rec, err := tx.LoadEntry(ctx, entryID)
		if err != nil {
			return e.entryErr(entryID, err)
		}
		exited, err := lifecycle.Exit(rec, now)
		if err != nil {
			return err
		}

		alert, err := e.ledger.Release(ctx, tx, rec, presented, now)
		if err != nil {
			return err
		}
		if err := tx.SaveEntry(ctx, exited); err != nil {
			return err
		}

		details := map[string]string{
			"entry_id":     exited.ID,
			"identity_key": exited.Identity.Key,
			"badge_code":   exited.BadgeCode,
		}
		if presented != nil {
			details["presented_code"] = NormalizeBadgeCode(*presented)
		}
		if err := tx.RecordEvent(ctx, e.event(types.EventEntryExited, actor, details)); err != nil {
			return err
		}
		if alert != nil {
			if err := tx.RecordEvent(ctx, e.alertEvent(actor, *alert)); err != nil {
				return err
			}
		}

		res = ExitResult{Record: exited, Alert: alert}
		return nil
	})
	if err != nil {
		return ExitResult{}, err
	}

	if res.Alert != nil {
		e.logger.Warn("badge alert raised on exit",
			zap.String("alert_id", res.Alert.ID),
			zap.String("kind", string(res.Alert.Kind)),
			zap.String("entry_id", entryID),
			zap.String("badge_code", res.Alert.BadgeCode),
		)
	}
	e.logger.Info("entry exited", zap.String("entry_id", entryID))
	return res, nil
}

// ── Badge alerts ─────────────────────────────────────────────────────────────

// ReportBadgeLost can run while the holder is still on-site.
func (e *Engine) ReportBadgeLost(ctx context.Context, actor, code string) (types.Alert, error) {
	code = NormalizeBadgeCode(code)
	if code == "" {
		return types.Alert{}, fmt.Errorf("%w: badge code is required", ErrInvalidInput)
	}

	unlock := e.locks.Lock(badgeKey(code))
	defer unlock()

	now := e.now()
	var alert types.Alert
	err := e.store.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		a, err := e.ledger.ReportLost(ctx, tx, code, now)
		if err != nil {
			return err
		}
		if err := tx.RecordEvent(ctx, e.alertEvent(actor, a)); err != nil {
			return err
		}
		alert = a
		return nil
	})
	if err != nil {
		return types.Alert{}, err
	}

	e.logger.Warn("badge reported lost",
		zap.String("alert_id", alert.ID),
		zap.String("badge_code", code),
		zap.String("entry_id", alert.EntryID),
	)
	return alert, nil
}

// ResolveAlert closes an alert with an audit note. Alerts resolve once.
func (e *Engine) ResolveAlert(ctx context.Context, actor, alertID, note string) (types.Alert, error) {
	alertID = strings.TrimSpace(alertID)
	note = strings.TrimSpace(note)
	if alertID == "" || note == "" {
		return types.Alert{}, fmt.Errorf("%w: alert id and resolution note are required", ErrInvalidInput)
	}

	unlock := e.locks.Lock("alert:" + alertID)
	defer unlock()

	now := e.now()
	var out types.Alert
	err := e.store.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		a, err := tx.LoadAlert(ctx, alertID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrAlertNotFound, alertID)
		}
		if err != nil {
			return err
		}
		if a.Resolved {
			return fmt.Errorf("%w: alert %s already resolved", lifecycle.ErrInvalidTransition, alertID)
		}

		a.Resolved = true
		a.ResolvedBy = actor
		t := now
		a.ResolvedAt = &t
		a.ResolutionNote = note
		if err := tx.UpdateAlert(ctx, a); err != nil {
			return err
		}
		if err := tx.RecordEvent(ctx, e.event(types.EventAlertResolved, actor, map[string]string{
			"alert_id":   a.ID,
			"kind":       string(a.Kind),
			"badge_code": a.BadgeCode,
			"note":       note,
		})); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return types.Alert{}, err
	}

	e.logger.Info("alert resolved", zap.String("alert_id", out.ID), zap.String("actor", actor))
	return out, nil
}

// RegisterBadge adds a new badge to circulation.
func (e *Engine) RegisterBadge(ctx context.Context, actor, code string) (types.Badge, error) {
	code = NormalizeBadgeCode(code)
	if code == "" {
		return types.Badge{}, fmt.Errorf("%w: badge code is required", ErrInvalidInput)
	}

	unlock := e.locks.Lock(badgeKey(code))
	defer unlock()

	now := e.now()
	var out types.Badge
	err := e.store.Atomically(ctx, func(ctx context.Context, tx store.Tx) error {
		b, err := e.ledger.Register(ctx, tx, code, now)
		if err != nil {
			return err
		}
		out = b
		return tx.RecordEvent(ctx, e.event(types.EventBadgeRegistered, actor, map[string]string{"badge_code": code}))
	})
	if err != nil {
		return types.Badge{}, err
	}
	return out, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (e *Engine) loadEntry(ctx context.Context, id string) (types.EntryRecord, error) {
	rec, err := e.store.LoadEntry(ctx, id)
	if err != nil {
		return types.EntryRecord{}, e.entryErr(id, err)
	}
	return rec, nil
}

func (e *Engine) entryErr(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
	}
	return err
}

func (e *Engine) event(kind types.EventKind, actor string, details map[string]string) types.AuditEvent {
	return types.AuditEvent{
		ID:         e.ids.EventID(),
		Kind:       kind,
		Actor:      actor,
		OccurredAt: e.now(),
		Details:    details,
	}
}

func (e *Engine) alertEvent(actor string, a types.Alert) types.AuditEvent {
	details := map[string]string{
		"alert_id":     a.ID,
		"kind":         string(a.Kind),
		"entry_id":     a.EntryID,
		"identity_key": a.IdentityKey,
		"badge_code":   a.BadgeCode,
	}
	if a.PresentedCode != "" {
		details["presented_code"] = a.PresentedCode
	}
	return e.event(types.EventAlertRaised, actor, details)
}

func codeStrings(codes []types.ReasonCode) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}

func joinCodes(codes []types.ReasonCode) string {
	return strings.Join(codeStrings(codes), ",")
}
