package types

import "time"

// SubjectKind distinguishes person and vehicle blacklist rows.
type SubjectKind string

const (
	SubjectPerson  SubjectKind = "person"
	SubjectVehicle SubjectKind = "vehicle"
)

// BlacklistEntry bars a subject from entry during [From, Until).
// A zero Until means open-ended.
type BlacklistEntry struct {
	ID     string      `json:"id"`
	Kind   SubjectKind `json:"kind"`
	Key    string      `json:"key"`
	Reason string      `json:"reason"`
	Active bool        `json:"active"`
	From   time.Time   `json:"from"`
	Until  time.Time   `json:"until,omitempty"`
}

// Covers reports whether the entry is active and its range includes at.
func (b BlacklistEntry) Covers(at time.Time) bool {
	if !b.Active {
		return false
	}
	if !b.From.IsZero() && at.Before(b.From) {
		return false
	}
	if !b.Until.IsZero() && !at.Before(b.Until) {
		return false
	}
	return true
}
