// Package lifecycle is the entry state machine: Entered -> InPremises ->
// Exited, linear with no skips and no way back.
package lifecycle

import (
	"errors"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// next maps each state to the only state it may move to.
var next = map[types.EntryState]types.EntryState{
	types.StateEntered:    types.StateInPremises,
	types.StateInPremises: types.StateExited,
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to types.EntryState) bool {
	n, ok := next[from]
	return ok && n == to
}

// New builds the initial record of an accepted visit.
func New(id string, req types.EntryRequest, operator string, at time.Time, findings []types.Finding, stayLimit time.Duration) types.EntryRecord {
	return types.EntryRecord{
		ID:           id,
		Identity:     req.Identity,
		Category:     req.Identity.Category,
		State:        types.StateEntered,
		EnteredAt:    at,
		HostRef:      req.HostRef,
		CompanyRef:   req.CompanyRef,
		VehicleRef:   req.VehicleRef,
		ExpectedStay: req.ExpectedStay,
		StayLimit:    stayLimit,
		Findings:     findings,
		Operator:     operator,
		UpdatedAt:    at,
	}
}

// Admit moves an Entered record InPremises once a badge is bound to it.
func Admit(rec types.EntryRecord, badgeCode string, at time.Time) (types.EntryRecord, error) {
	if err := check(rec, types.StateInPremises); err != nil {
		return rec, err
	}
	if badgeCode == "" {
		return rec, fmt.Errorf("%w: entry %s admitted without a badge", ErrInvalidTransition, rec.ID)
	}
	out := rec.Clone()
	out.State = types.StateInPremises
	out.BadgeCode = badgeCode
	out.UpdatedAt = at
	return out, nil
}

// Exit finalises an InPremises record.
func Exit(rec types.EntryRecord, at time.Time) (types.EntryRecord, error) {
	if err := check(rec, types.StateExited); err != nil {
		return rec, err
	}
	out := rec.Clone()
	out.State = types.StateExited
	t := at
	out.ExitedAt = &t
	out.UpdatedAt = at
	return out, nil
}

func check(rec types.EntryRecord, to types.EntryState) error {
	if !CanTransition(rec.State, to) {
		return fmt.Errorf("%w: entry %s is %s, cannot move to %s", ErrInvalidTransition, rec.ID, rec.State, to)
	}
	return nil
}
