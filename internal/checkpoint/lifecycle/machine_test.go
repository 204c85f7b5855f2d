package lifecycle_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/lifecycle"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newRecord() types.EntryRecord {
	req := types.EntryRequest{
		Identity: types.Identity{Key: "C1", Name: "Carla", Category: types.CategoryContractor},
	}
	return lifecycle.New("e-1", req, "op", t0, nil, 0)
}

func TestNew_StartsEntered(t *testing.T) {
	rec := newRecord()
	assert.Equal(t, types.StateEntered, rec.State)
	assert.Equal(t, types.CategoryContractor, rec.Category)
	assert.Nil(t, rec.ExitedAt)
	assert.Empty(t, rec.BadgeCode)
}

func TestFullLifecycle(t *testing.T) {
	rec := newRecord()

	in, err := lifecycle.Admit(rec, "B7", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, types.StateInPremises, in.State)
	assert.Equal(t, "B7", in.BadgeCode)

	out, err := lifecycle.Exit(in, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, types.StateExited, out.State)
	require.NotNil(t, out.ExitedAt)
	assert.True(t, out.ExitedAt.Equal(t0.Add(time.Hour)))

	// the input is not mutated
	assert.Nil(t, in.ExitedAt)
}

func TestInvalidTransitions(t *testing.T) {
	rec := newRecord()

	_, err := lifecycle.Exit(rec, t0)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition, "Entered cannot skip to Exited")

	in, err := lifecycle.Admit(rec, "B1", t0)
	require.NoError(t, err)

	_, err = lifecycle.Admit(in, "B2", t0)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition, "double admission")

	out, err := lifecycle.Exit(in, t0)
	require.NoError(t, err)

	_, err = lifecycle.Exit(out, t0)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition, "retry of an applied exit")

	_, err = lifecycle.Admit(out, "B3", t0)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestAdmit_RequiresBadge(t *testing.T) {
	_, err := lifecycle.Admit(newRecord(), "", t0)
	assert.ErrorIs(t, err, lifecycle.ErrInvalidTransition)
}

func TestCanTransition_Table(t *testing.T) {
	states := []types.EntryState{types.StateEntered, types.StateInPremises, types.StateExited}
	allowed := map[[2]types.EntryState]bool{
		{types.StateEntered, types.StateInPremises}: true,
		{types.StateInPremises, types.StateExited}:  true,
	}
	for _, from := range states {
		for _, to := range states {
			want := allowed[[2]types.EntryState{from, to}]
			assert.Equal(t, want, lifecycle.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}
