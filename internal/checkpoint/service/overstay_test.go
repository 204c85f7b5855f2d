package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/service"
	"github.com/BrandonDHaskell/Portunus/checkpoint/internal/checkpoint/types"
)

func TestOverstayMonitor_DisabledWhenIntervalZero(t *testing.T) {
	f := newFixture(t)
	m := service.NewOverstayMonitor(f.store, service.OverstayConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m.Start(ctx)
	m.Start(ctx)
	m.Stop()
	m.Stop()
}

func TestOverstayMonitor_StopWithoutStart(t *testing.T) {
	f := newFixture(t)
	m := service.NewOverstayMonitor(f.store, service.OverstayConfig{Interval: time.Hour}, nil)

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked without a prior Start")
	}
}

func TestOverstayMonitor_StartTwiceRunsOneLoop(t *testing.T) {
	f := newFixture(t)
	m := service.NewOverstayMonitor(f.store, service.OverstayConfig{Interval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	m.Start(ctx)
	m.Stop()
	m.Stop()
}

func TestOverstayMonitor_FlagsOncePerVisit(t *testing.T) {
	f := newFixture(t)
	late := f.admit(t, visitor("V60"), "B1")

	short := visitor("V61")
	short.ExpectedStay = time.Hour
	declared := f.admit(t, short, "B2")

	onTime := f.admit(t, contractor("C60", "ACME"), "B3")

	now := t0.Add(5 * time.Hour)
	m := service.NewOverstayMonitor(f.store, service.OverstayConfig{
		Interval: time.Hour,
		Now:      func() time.Time { return now },
	}, nil)

	n, err := m.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = m.Scan(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	evs := f.events(t, types.EventOverstay)
	require.Len(t, evs, 2)
	flagged := []string{evs[0].Details["entry_id"], evs[1].Details["entry_id"]}
	assert.ElementsMatch(t, []string{late.ID, declared.ID}, flagged)
	assert.NotContains(t, flagged, onTime.ID)

	// Lifecycle state is untouched.
	got, err := f.store.LoadEntry(f.ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StateInPremises, got.State)
}

func TestOverstayMonitor_StopIsIdempotent(t *testing.T) {
	f := newFixture(t)
	m := service.NewOverstayMonitor(f.store, service.OverstayConfig{Interval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)

	cancel()
	m.Stop()
	m.Stop()
}
