package liveness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestForceProbeTracksHealth(t *testing.T) {
	var fail atomic.Bool
	m := NewMonitor(discardLogger(), func(context.Context) error {
		if fail.Load() {
			return fmt.Errorf("connection refused")
		}
		return nil
	}, Config{})

	require.True(t, m.Healthy())

	before := m.LastHeartbeat()
	time.Sleep(time.Millisecond)
	m.ForceProbe(context.Background())
	require.True(t, m.Healthy())
	require.True(t, m.LastHeartbeat().After(before))

	fail.Store(true)
	beat := m.LastHeartbeat()
	m.ForceProbe(context.Background())
	require.False(t, m.Healthy())
	require.Equal(t, beat, m.LastHeartbeat(), "failed probe must not advance the heartbeat")

	fail.Store(false)
	m.ForceProbe(context.Background())
	require.True(t, m.Healthy())
}

func TestOnStaleFiresOncePerWindow(t *testing.T) {
	var staleCalls atomic.Int32
	m := NewMonitor(discardLogger(), func(context.Context) error {
		return fmt.Errorf("down")
	}, Config{
		StaleAfter: 10 * time.Millisecond,
		OnStale: func(context.Context) {
			staleCalls.Add(1)
		},
	})

	time.Sleep(20 * time.Millisecond)
	m.check(context.Background())
	require.Equal(t, int32(1), staleCalls.Load())
	require.False(t, m.Healthy())

	// The heartbeat clock reset, so an immediate re-check stays quiet.
	m.check(context.Background())
	require.Equal(t, int32(1), staleCalls.Load())

	time.Sleep(20 * time.Millisecond)
	m.check(context.Background())
	require.Equal(t, int32(2), staleCalls.Load())
}

func TestFreshHeartbeatSuppressesOnStale(t *testing.T) {
	var staleCalls atomic.Int32
	m := NewMonitor(discardLogger(), func(context.Context) error {
		return nil
	}, Config{
		StaleAfter: time.Hour,
		OnStale: func(context.Context) {
			staleCalls.Add(1)
		},
	})

	m.ForceProbe(context.Background())
	m.check(context.Background())
	require.Zero(t, staleCalls.Load())
	require.True(t, m.Healthy())
}

func TestRunProbesUntilCancelled(t *testing.T) {
	var probes atomic.Int32
	m := NewMonitor(discardLogger(), func(context.Context) error {
		probes.Add(1)
		return nil
	}, Config{
		ProbeInterval: 5 * time.Millisecond,
		CheckInterval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- m.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return probes.Load() >= 3
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("monitor did not stop")
	}
}
