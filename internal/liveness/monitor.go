// Package liveness watches the upstream connection with periodic probe
// queries and fires a staleness hook when heartbeats stop arriving, so the
// process can resynchronise its mirrors after an outage.
package liveness

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Probe tests the upstream connection. A nil error counts as a heartbeat.
type Probe func(ctx context.Context) error

// Config tunes the monitor. Zero values fall back to the defaults.
type Config struct {
	// ProbeInterval is how often the probe runs. Default 30s.
	ProbeInterval time.Duration
	// CheckInterval is how often staleness is evaluated. Default 10s.
	CheckInterval time.Duration
	// StaleAfter is the heartbeat age past which OnStale fires. Default 2m.
	StaleAfter time.Duration
	// OnStale runs when the connection has been stale for StaleAfter.
	// The heartbeat clock resets afterwards so the hook fires at most
	// once per StaleAfter window.
	OnStale func(ctx context.Context)
}

// Monitor tracks connection health from probe results.
type Monitor struct {
	logger *slog.Logger
	probe  Probe
	cfg    Config

	mu            sync.Mutex
	healthy       bool
	lastHeartbeat time.Time
}

// NewMonitor constructs a monitor around probe.
func NewMonitor(logger *slog.Logger, probe Probe, cfg Config) *Monitor {
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 30 * time.Second
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 10 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 2 * time.Minute
	}
	return &Monitor{
		logger:        logger,
		probe:         probe,
		cfg:           cfg,
		healthy:       true,
		lastHeartbeat: time.Now(),
	}
}

// Healthy reports whether the most recent probe succeeded.
func (m *Monitor) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthy
}

// LastHeartbeat returns the time of the last successful probe.
func (m *Monitor) LastHeartbeat() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeartbeat
}

// ForceProbe runs the probe immediately, outside the schedule.
func (m *Monitor) ForceProbe(ctx context.Context) {
	if err := m.probe(ctx); err != nil {
		m.logger.Warn("liveness probe failed", slog.Any("error", err))
		m.setHealthy(false)
		return
	}
	m.beat()
}

// Run probes and checks on their intervals until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.ForceProbe(ctx)

	probeTicker := time.NewTicker(m.cfg.ProbeInterval)
	defer probeTicker.Stop()
	checkTicker := time.NewTicker(m.cfg.CheckInterval)
	defer checkTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-probeTicker.C:
			m.ForceProbe(ctx)
		case <-checkTicker.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	m.mu.Lock()
	age := time.Since(m.lastHeartbeat)
	stale := age > m.cfg.StaleAfter
	if stale {
		// Reset so the hook fires once per stale window.
		m.lastHeartbeat = time.Now()
		m.healthy = false
	}
	m.mu.Unlock()

	if !stale {
		return
	}
	m.logger.Warn("no heartbeat, triggering resync", slog.Duration("age", age))
	if m.cfg.OnStale != nil {
		m.cfg.OnStale(ctx)
	}
}

func (m *Monitor) beat() {
	m.mu.Lock()
	m.healthy = true
	m.lastHeartbeat = time.Now()
	m.mu.Unlock()
}

func (m *Monitor) setHealthy(v bool) {
	m.mu.Lock()
	m.healthy = v
	m.mu.Unlock()
}
