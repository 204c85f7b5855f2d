package types

import "time"

// EventKind classifies audit events.
type EventKind string

const (
	EventEntryAccepted    EventKind = "entry_accepted"
	EventEntryRejected    EventKind = "entry_rejected"
	EventBadgeIssued      EventKind = "badge_issued"
	EventBadgeRegistered  EventKind = "badge_registered"
	EventEntryExited      EventKind = "entry_exited"
	EventAlertRaised      EventKind = "alert_raised"
	EventAlertResolved    EventKind = "alert_resolved"
	EventPermissionDenied EventKind = "permission_denied"
	EventLogin            EventKind = "login"
	EventLogout           EventKind = "logout"
	EventOverstay         EventKind = "overstay"
)

// AuditEvent is an append-only audit row.
type AuditEvent struct {
	ID         string            `json:"id"`
	Kind       EventKind         `json:"kind"`
	Actor      string            `json:"actor"`
	OccurredAt time.Time         `json:"occurred_at"`
	Details    map[string]string `json:"details,omitempty"`
}
