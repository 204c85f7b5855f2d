package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/lifecycle"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/session"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

func TestRejectionReport_Unwrap(t *testing.T) {
	rep := reject(ErrBlocked, types.Reason{Code: types.ReasonLookupFailed})
	rep.Err = fmt.Errorf("%w: blacklist: %w", ErrLookupFailed, context.DeadlineExceeded)
	var err error = rep

	assert.ErrorIs(t, err, ErrBlocked)
	assert.ErrorIs(t, err, ErrLookupFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrRejected)
	assert.Equal(t, "entry blocked: lookup_failed: lookup failed: blacklist: context deadline exceeded", err.Error())

	wrapped := fmt.Errorf("issue: %w", err)
	got, ok := AsRejection(wrapped)
	assert.True(t, ok)
	assert.Same(t, rep, got)
}

func TestCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{reject(ErrInvalidInput), CodeInvalidInput},
		{reject(ErrBlocked, types.Reason{Code: types.ReasonBlacklisted}), CodeBlocked},
		{&RejectionReport{Cause: ErrBlocked, Err: ErrLookupFailed}, CodeLookupFailed},
		{&RejectionReport{Cause: ErrBlocked, Err: fmt.Errorf("%w: blacklist: %w", ErrLookupFailed, context.DeadlineExceeded)}, CodeLookupFailed},
		{&RejectionReport{Cause: ErrBlocked, Err: errors.New("unrelated")}, CodeBlocked},
		{reject(ErrRejected), CodeRejected},
		{fmt.Errorf("%w: x", ErrInvalidInput), CodeInvalidInput},
		{fmt.Errorf("wrap: %w", lifecycle.ErrInvalidTransition), CodeInvalidTransition},
		{ErrBadgeUnavailable, CodeBadgeUnavailable},
		{ErrEntryNotEligible, CodeEntryNotEligible},
		{ErrAlreadyRegistered, CodeAlreadyRegistered},
		{ErrUnknownBadge, CodeNotFound},
		{ErrAlertNotFound, CodeNotFound},
		{store.ErrNotFound, CodeNotFound},
		{session.ErrPermissionDenied, CodePermissionDenied},
		{session.ErrNoSession, CodeNoSession},
		{session.ErrInvalidCredentials, CodeInvalidCredentials},
		{session.ErrSessionActive, CodeSessionActive},
		{ErrLookupFailed, CodeLookupFailed},
		{store.Wrap("save", errors.New("disk full")), CodeStoreError},
		{errors.New("???"), CodeInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Code(tc.err), tc.err.Error())
	}
}

func TestRowLocks_ReleasesKeys(t *testing.T) {
	l := newRowLocks()
	unlockA := l.Lock(entryKey("a"))
	unlockB := l.Lock(badgeKey("B1"))
	assert.Len(t, l.rows, 2)
	unlockA()
	unlockB()
	assert.Empty(t, l.rows)
}
