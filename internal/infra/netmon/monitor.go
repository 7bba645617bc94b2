// Package netmon observes platform network reachability and relays
// online/offline transitions. It is a pure signal relay: no retries,
// no backoff.
package netmon

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultInterval between reachability probes.
const DefaultInterval = 5 * time.Second

// ProbeFunc reports whether the network is currently reachable.
type ProbeFunc func() bool

// Monitor watches network reachability and pushes boolean transitions.
type Monitor struct {
	probe    ProbeFunc
	interval time.Duration

	mu     sync.RWMutex
	online bool
}

// Option is a functional option for configuring the monitor
type Option func(*Monitor)

// WithProbe sets a custom reachability probe (useful for testing)
func WithProbe(probe ProbeFunc) Option {
	return func(m *Monitor) {
		m.probe = probe
	}
}

// WithInterval sets the probe interval
func WithInterval(interval time.Duration) Option {
	return func(m *Monitor) {
		m.interval = interval
	}
}

// NewMonitor creates a new connectivity monitor.
func NewMonitor(opts ...Option) *Monitor {
	m := &Monitor{
		probe:    probeInterfaces,
		interval: DefaultInterval,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Online returns the last observed connectivity state.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Start probes once synchronously, pushes the initial state, then watches
// for transitions in the background until the context is cancelled.
// The coordinator therefore never begins in an unknown state.
func (m *Monitor) Start(ctx context.Context, onChange func(online bool)) {
	initial := m.probe()
	m.mu.Lock()
	m.online = initial
	m.mu.Unlock()

	log.Info().Bool("online", initial).Msg("Connectivity monitor started")
	if onChange != nil {
		onChange(initial)
	}

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("Connectivity monitor stopped")
				return
			case <-ticker.C:
				current := m.probe()

				m.mu.Lock()
				changed := current != m.online
				m.online = current
				m.mu.Unlock()

				if changed {
					log.Info().Bool("online", current).Msg("Connectivity changed")
					if onChange != nil {
						onChange(current)
					}
				}
			}
		}
	}()
}

// probeInterfaces checks ethernet carrier and WiFi operstate via sysfs.
func probeInterfaces() bool {
	for _, iface := range []string{"eth0", "end0"} {
		if data, err := os.ReadFile("/sys/class/net/" + iface + "/carrier"); err == nil {
			if strings.TrimSpace(string(data)) == "1" {
				return true
			}
		}
	}

	for _, iface := range []string{"wlan0", "wlan1"} {
		if data, err := os.ReadFile("/sys/class/net/" + iface + "/operstate"); err == nil {
			if strings.TrimSpace(string(data)) == "up" {
				return true
			}
		}
	}

	return false
}
