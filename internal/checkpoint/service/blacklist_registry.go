package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/store"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

// BlacklistRegistry answers whether a subject is barred at a given time.
// It fails closed: a failed or timed-out lookup is an ErrLookupFailed
// error, never a silent "not blocked".
type BlacklistRegistry struct {
	store   store.BlacklistStore
	timeout time.Duration
}

func NewBlacklistRegistry(st store.BlacklistStore, timeout time.Duration) *BlacklistRegistry {
	return &BlacklistRegistry{store: st, timeout: timeout}
}

// Matches returns the active rows covering at for the subject.
func (r *BlacklistRegistry) Matches(ctx context.Context, kind types.SubjectKind, key string, at time.Time) ([]types.BlacklistEntry, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	hits, err := r.store.QueryBlacklist(ctx, kind, key, at)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: blacklist %s %s: %w", ErrLookupFailed, kind, key, err)
	}

	// Stores filter already; re-check so a lax backend cannot widen a
	// range.
	out := hits[:0]
	for _, h := range hits {
		if h.Covers(at) {
			out = append(out, h)
		}
	}
	return out, nil
}

// IsBlocked reports whether the person identified by key is barred at at.
func (r *BlacklistRegistry) IsBlocked(ctx context.Context, key string, at time.Time) (bool, error) {
	hits, err := r.Matches(ctx, types.SubjectPerson, key, at)
	if err != nil {
		return true, err
	}
	return len(hits) > 0, nil
}
