package service

import (
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// IDs generates identifiers for new rows.
type IDs interface {
	EntryID() string
	AlertID() string
	EventID() string
}

// randomIDs uses UUIDv4 for entries and alerts and time-sortable KSUIDs for
// audit events.
type randomIDs struct{}

func (randomIDs) EntryID() string { return uuid.NewString() }
func (randomIDs) AlertID() string { return uuid.NewString() }
func (randomIDs) EventID() string { return ksuid.New().String() }
