package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/lifecycle"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

// BadgeLedger owns badge state. Its methods run inside a store.Tx so badge,
// entry and alert writes commit together.
type BadgeLedger struct {
	ids IDs
}

// NormalizeBadgeCode trims and upper-cases a badge code.
func NormalizeBadgeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (l *BadgeLedger) load(ctx context.Context, tx store.Tx, code string) (types.Badge, error) {
	b, err := tx.LoadBadge(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return types.Badge{}, fmt.Errorf("%w: %s", ErrUnknownBadge, code)
	}
	return b, err
}

// Register adds a new Available badge to circulation.
func (l *BadgeLedger) Register(ctx context.Context, tx store.Tx, code string, at time.Time) (types.Badge, error) {
	_, err := tx.LoadBadge(ctx, code)
	switch {
	case err == nil:
		return types.Badge{}, fmt.Errorf("%w: %s", ErrAlreadyRegistered, code)
	case !errors.Is(err, store.ErrNotFound):
		return types.Badge{}, err
	}
	b := types.Badge{Code: code, State: types.BadgeAvailable, UpdatedAt: at}
	return b, tx.SaveBadge(ctx, b)
}

// Issue binds an Available badge to an Entered record and moves the record
// InPremises.
func (l *BadgeLedger) Issue(ctx context.Context, tx store.Tx, rec types.EntryRecord, code string, at time.Time) (types.EntryRecord, types.Badge, error) {
	if rec.State != types.StateEntered {
		return rec, types.Badge{}, fmt.Errorf("%w: entry %s is %s", ErrEntryNotEligible, rec.ID, rec.State)
	}

	b, err := l.load(ctx, tx, code)
	if err != nil {
		return rec, types.Badge{}, err
	}
	if b.State != types.BadgeAvailable {
		return rec, types.Badge{}, fmt.Errorf("%w: %s is %s", ErrBadgeUnavailable, code, b.State)
	}

	admitted, err := lifecycle.Admit(rec, code, at)
	if err != nil {
		return rec, types.Badge{}, err
	}

	b.State = types.BadgeIssued
	b.EntryID = rec.ID
	b.UpdatedAt = at
	if err := tx.SaveBadge(ctx, b); err != nil {
		return rec, types.Badge{}, err
	}
	return admitted, b, nil
}

// Release reconciles the badge bound to rec at exit. A matching return puts
// the badge back in circulation. A missing or different badge takes the
// bound badge out of circulation and yields the alert to raise; the exit is
// never refused for it. presented is nil when nothing was handed back.
func (l *BadgeLedger) Release(ctx context.Context, tx store.Tx, rec types.EntryRecord, presented *string, at time.Time) (*types.Alert, error) {
	if rec.BadgeCode == "" {
		return nil, nil
	}

	b, err := l.load(ctx, tx, rec.BadgeCode)
	if err != nil {
		return nil, err
	}
	if b.State != types.BadgeIssued || b.EntryID != rec.ID {
		// Already out of circulation (reported lost) - nothing to reconcile.
		return nil, nil
	}

	var alert *types.Alert
	code := ""
	if presented != nil {
		code = NormalizeBadgeCode(*presented)
	}

	switch {
	case code == rec.BadgeCode:
		b.State = types.BadgeAvailable
	case code == "":
		alert = l.newAlert(types.AlertNotReturned, rec, "", at)
		b.State = types.BadgeReportedLost
	default:
		alert = l.newAlert(types.AlertMismatch, rec, code, at)
		b.State = types.BadgeReportedLost
	}

	b.EntryID = ""
	b.UpdatedAt = at
	if err := tx.SaveBadge(ctx, b); err != nil {
		return nil, err
	}
	if alert != nil {
		if err := tx.AppendAlert(ctx, *alert); err != nil {
			return nil, err
		}
	}
	return alert, nil
}

// ReportLost takes an Issued badge out of circulation and raises a Lost
// alert against its holder. The holder's visit is not affected.
func (l *BadgeLedger) ReportLost(ctx context.Context, tx store.Tx, code string, at time.Time) (types.Alert, error) {
	b, err := l.load(ctx, tx, code)
	if err != nil {
		return types.Alert{}, err
	}
	if b.State != types.BadgeIssued {
		return types.Alert{}, fmt.Errorf("%w: %s is %s, only issued badges can be reported lost", ErrBadgeUnavailable, code, b.State)
	}

	rec, err := tx.LoadEntry(ctx, b.EntryID)
	if err != nil {
		return types.Alert{}, err
	}

	alert := l.newAlert(types.AlertLost, rec, "", at)
	alert.BadgeCode = code

	b.State = types.BadgeReportedLost
	b.EntryID = ""
	b.UpdatedAt = at
	if err := tx.SaveBadge(ctx, b); err != nil {
		return types.Alert{}, err
	}
	if err := tx.AppendAlert(ctx, *alert); err != nil {
		return types.Alert{}, err
	}
	return *alert, nil
}

func (l *BadgeLedger) newAlert(kind types.AlertKind, rec types.EntryRecord, presented string, at time.Time) *types.Alert {
	return &types.Alert{
		ID:            l.ids.AlertID(),
		Kind:          kind,
		EntryID:       rec.ID,
		IdentityKey:   rec.Identity.Key,
		BadgeCode:     rec.BadgeCode,
		PresentedCode: presented,
		CreatedAt:     at,
	}
}
