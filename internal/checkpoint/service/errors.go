package service

import (
	"errors"
	"strings"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/lifecycle"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/session"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrBlocked           = errors.New("entry blocked")
	ErrRejected          = errors.New("entry rejected")
	ErrBadgeUnavailable  = errors.New("badge unavailable")
	ErrEntryNotEligible  = errors.New("entry not eligible for badge issuance")
	ErrLookupFailed      = errors.New("lookup failed")
	ErrUnknownBadge      = errors.New("unknown badge")
	ErrAlertNotFound     = errors.New("alert not found")
	ErrEntryNotFound     = errors.New("entry not found")
	ErrAlreadyRegistered = errors.New("badge already registered")
)

// RejectionReport is returned instead of an EntryRecord when a request is
// refused. Cause is one of ErrInvalidInput, ErrBlocked or ErrRejected; Err
// optionally carries the collaborator failure behind a fail-closed block.
type RejectionReport struct {
	Cause   error
	Reasons []types.Reason
	Err     error
}

func (r *RejectionReport) Error() string {
	var b strings.Builder
	b.WriteString(r.Cause.Error())
	for i, reason := range r.Reasons {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(string(reason.Code))
	}
	if r.Err != nil {
		b.WriteString(": ")
		b.WriteString(r.Err.Error())
	}
	return b.String()
}

func (r *RejectionReport) Unwrap() []error {
	if r.Err != nil {
		return []error{r.Cause, r.Err}
	}
	return []error{r.Cause}
}

// Codes lists the reason codes in order.
func (r *RejectionReport) Codes() []types.ReasonCode {
	out := make([]types.ReasonCode, 0, len(r.Reasons))
	for _, reason := range r.Reasons {
		out = append(out, reason.Code)
	}
	return out
}

func reject(cause error, reasons ...types.Reason) *RejectionReport {
	return &RejectionReport{Cause: cause, Reasons: reasons}
}

// AsRejection extracts a RejectionReport from err.
func AsRejection(err error) (*RejectionReport, bool) {
	var r *RejectionReport
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// Stable error codes shared by the transports.
const (
	CodeInvalidInput       = "invalid_input"
	CodeBlocked            = "blocked"
	CodeRejected           = "rejected"
	CodeInvalidTransition  = "invalid_transition"
	CodeBadgeUnavailable   = "badge_unavailable"
	CodeEntryNotEligible   = "entry_not_eligible"
	CodeAlreadyRegistered  = "already_registered"
	CodePermissionDenied   = "permission_denied"
	CodeNoSession          = "no_session"
	CodeInvalidCredentials = "invalid_credentials"
	CodeSessionActive      = "session_active"
	CodeLookupFailed       = "lookup_failed"
	CodeStoreError         = "store_error"
	CodeNotFound           = "not_found"
	CodeInternal           = "internal_error"
)

// Code classifies err into one of the stable error codes. A fail-closed
// rejection caused by a collaborator failure reports lookup_failed so
// callers can retry; its reasons still travel with the report.
func Code(err error) string {
	if rep, ok := AsRejection(err); ok {
		switch {
		case errors.Is(rep.Err, ErrLookupFailed):
			return CodeLookupFailed
		case errors.Is(rep.Cause, ErrInvalidInput):
			return CodeInvalidInput
		case errors.Is(rep.Cause, ErrBlocked):
			return CodeBlocked
		default:
			return CodeRejected
		}
	}

	switch {
	case errors.Is(err, session.ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, session.ErrNoSession):
		return CodeNoSession
	case errors.Is(err, session.ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, session.ErrSessionActive):
		return CodeSessionActive
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, ErrBadgeUnavailable):
		return CodeBadgeUnavailable
	case errors.Is(err, ErrEntryNotEligible):
		return CodeEntryNotEligible
	case errors.Is(err, ErrAlreadyRegistered):
		return CodeAlreadyRegistered
	case errors.Is(err, ErrEntryNotFound),
		errors.Is(err, ErrUnknownBadge),
		errors.Is(err, ErrAlertNotFound),
		errors.Is(err, store.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrLookupFailed):
		return CodeLookupFailed
	case errors.Is(err, store.ErrStore):
		return CodeStoreError
	default:
		return CodeInternal
	}
}
