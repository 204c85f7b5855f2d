package types

import "time"

type AlertKind string

const (
	AlertLost        AlertKind = "lost"
	AlertMismatch    AlertKind = "mismatch"
	AlertNotReturned AlertKind = "not_returned"
)

// Alert records a badge-handling anomaly. Alerts are never deleted; they
// form the security audit trail.
type Alert struct {
	ID          string    `json:"id"`
	Kind        AlertKind `json:"kind"`
	EntryID     string    `json:"entry_id"`
	IdentityKey string    `json:"identity_key"`
	BadgeCode   string    `json:"badge_code"`
	// PresentedCode is the badge handed back on a mismatch.
	PresentedCode string    `json:"presented_code,omitempty"`
	CreatedAt     time.Time `json:"created_at"`

	Resolved       bool       `json:"resolved"`
	ResolvedBy     string     `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ResolutionNote string     `json:"resolution_note,omitempty"`
}
