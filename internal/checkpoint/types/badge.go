package types

import "time"

// BadgeState is the circulation state of a physical badge (gafete).
type BadgeState string

const (
	BadgeAvailable    BadgeState = "available"
	BadgeIssued       BadgeState = "issued"
	BadgeReportedLost BadgeState = "reported_lost"
	BadgeRetired      BadgeState = "retired"
)

// Badge is a physical access token. EntryID is set only while Issued.
type Badge struct {
	Code      string     `json:"code"`
	State     BadgeState `json:"state"`
	EntryID   string     `json:"entry_id,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}
