package types

import "time"

// Company is a contracting or supplying company with its contract window.
type Company struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`

	// AuthorizedFrom/AuthorizedUntil bound the contract. Zero values are
	// open-ended.
	AuthorizedFrom  time.Time `json:"authorized_from,omitempty"`
	AuthorizedUntil time.Time `json:"authorized_until,omitempty"`

	// MaxStay caps a single visit by this company's contractors. Zero means
	// no per-visit cap.
	MaxStay time.Duration `json:"max_stay,omitempty"`
}
