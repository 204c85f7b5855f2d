package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

var (
	// ErrNotFound is returned (optionally wrapped) when a keyed row does not
	// exist.
	ErrNotFound = errors.New("record not found")

	// ErrStore wraps every backend failure so callers can treat it as
	// retryable and not-applied.
	ErrStore = errors.New("store error")
)

// Wrap tags a backend error with ErrStore. Nil and ErrNotFound pass through
// unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrStore) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}

// EntryFilter narrows ListEntries. A zero filter lists everything.
type EntryFilter struct {
	State       types.EntryState
	IdentityKey string
}

// AlertFilter narrows ListAlerts.
type AlertFilter struct {
	OpenOnly    bool
	IdentityKey string
}

// Tx is the unit of work for a single state transition. All writes made
// through a Tx commit together or not at all.
type Tx interface {
	LoadEntry(ctx context.Context, id string) (types.EntryRecord, error)
	SaveEntry(ctx context.Context, rec types.EntryRecord) error

	LoadBadge(ctx context.Context, code string) (types.Badge, error)
	SaveBadge(ctx context.Context, b types.Badge) error

	AppendAlert(ctx context.Context, a types.Alert) error
	LoadAlert(ctx context.Context, id string) (types.Alert, error)
	UpdateAlert(ctx context.Context, a types.Alert) error
	OpenAlertsForIdentity(ctx context.Context, identityKey string) ([]types.Alert, error)

	RecordEvent(ctx context.Context, ev types.AuditEvent) error
}

// TxFn runs inside Atomically. Returning an error rolls everything back.
type TxFn func(ctx context.Context, tx Tx) error

// Store is the persistence collaborator the engine depends on.
type Store interface {
	Atomically(ctx context.Context, fn TxFn) error

	LoadEntry(ctx context.Context, id string) (types.EntryRecord, error)
	ListEntries(ctx context.Context, f EntryFilter) ([]types.EntryRecord, error)
	LoadBadge(ctx context.Context, code string) (types.Badge, error)
	ListAlerts(ctx context.Context, f AlertFilter) ([]types.Alert, error)

	BlacklistStore
	CompanyStore
	AuditLog
}

// BlacklistStore is read by the blacklist registry. SaveBlacklistEntry is
// the management collaborator's write path.
type BlacklistStore interface {
	QueryBlacklist(ctx context.Context, kind types.SubjectKind, key string, at time.Time) ([]types.BlacklistEntry, error)
	SaveBlacklistEntry(ctx context.Context, e types.BlacklistEntry) error
}

type CompanyStore interface {
	LoadCompany(ctx context.Context, id string) (types.Company, error)
	SaveCompany(ctx context.Context, c types.Company) error
}

// AuditLog persists audit events as an append-only log.
type AuditLog interface {
	RecordEvent(ctx context.Context, ev types.AuditEvent) error
	ListEvents(ctx context.Context, kind types.EventKind) ([]types.AuditEvent, error)
}
