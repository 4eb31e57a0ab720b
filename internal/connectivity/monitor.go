// Package connectivity tracks whether the remote store is reachable and tells
// subscribers when that changes.
package connectivity

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"histosaga-service/internal/metrics"
)

// Pinger reports an error while the remote store is unreachable.
type Pinger func(ctx context.Context) error

// hub fans out state changes to subscribers.
type hub struct {
	mu          sync.Mutex
	online      bool
	subscribers map[chan bool]struct{}
}

// Subscribe returns a channel of reachability changes. The caller must invoke
// the returned cancel function to avoid leaks.
func (h *hub) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool, 1)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *hub) Online() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.online
}

// set records the state and reports whether it changed.
func (h *hub) set(online bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.online == online {
		return false
	}
	h.online = online
	for ch := range h.subscribers {
		// keep only the latest state for slow subscribers
		select {
		case ch <- online:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- online
		}
	}
	return true
}

// Monitor polls a pinger and publishes transitions.
type Monitor struct {
	hub
	ping     Pinger
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

// NewMonitor starts in the online state; the first failed ping flips it.
func NewMonitor(ping Pinger, interval, timeout time.Duration, log *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	metrics.RemoteOnline.Set(1)
	return &Monitor{
		hub:      hub{online: true, subscribers: make(map[chan bool]struct{})},
		ping:     ping,
		interval: interval,
		timeout:  timeout,
		log:      log,
	}
}

// Run pings until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check pings once and publishes the result if it changed.
func (m *Monitor) Check(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.ping(pingCtx)
	cancel()

	online := err == nil
	if m.set(online) {
		if online {
			metrics.RemoteOnline.Set(1)
			m.log.Info("remote store reachable")
		} else {
			metrics.RemoteOnline.Set(0)
			m.log.Warn("remote store unreachable", zap.Error(err))
		}
	}
	return online
}

// Static is a manually driven monitor for tests and single-shot commands.
type Static struct {
	hub
}

func NewStatic(online bool) *Static {
	return &Static{hub: hub{online: online, subscribers: make(map[chan bool]struct{})}}
}

func (s *Static) Set(online bool) {
	s.set(online)
}
