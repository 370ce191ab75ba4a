package connectivity

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/packfinderz-mobile/pkg/config"
	"github.com/angelmondragon/packfinderz-mobile/pkg/logger"
)

// Observer exposes the current reachability signal plus change notifications.
// Repositories consult it per call; the sync daemon subscribes to reconnects.
type Observer interface {
	Reachable() bool
	OnChange(fn func(reachable bool))
}

var errProbeURLRequired = errors.New("connectivity probe url is required")

// Monitor implements Observer by probing an HTTP endpoint on an interval.
// Any HTTP response counts as reachable; only transport failures flip the
// signal to offline.
type Monitor struct {
	httpClient *http.Client
	probeURL   string
	interval   time.Duration
	logger     *logger.Logger

	mu        sync.RWMutex
	reachable bool
	subs      []func(bool)
}

// NewMonitor builds a monitor against the given probe target. The monitor
// starts optimistic (reachable) until the first probe says otherwise.
func NewMonitor(cfg config.ConnectivityConfig, probeURL string, logg *logger.Logger) (*Monitor, error) {
	probeURL = strings.TrimSpace(probeURL)
	if probeURL == "" {
		return nil, errProbeURLRequired
	}

	interval := cfg.ProbeInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	timeout := cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &Monitor{
		httpClient: &http.Client{Timeout: timeout},
		probeURL:   probeURL,
		interval:   interval,
		logger:     logg,
		reachable:  true,
	}, nil
}

// Reachable reports the last observed connectivity state.
func (m *Monitor) Reachable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reachable
}

// OnChange registers a callback fired on every reachability transition.
func (m *Monitor) OnChange(fn func(reachable bool)) {
	if fn == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

// SetReachable records a new state and notifies subscribers on transitions.
func (m *Monitor) SetReachable(reachable bool) {
	m.mu.Lock()
	changed := m.reachable != reachable
	m.reachable = reachable
	subs := make([]func(bool), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range subs {
		fn(reachable)
	}
}

// Run probes until the context is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	m.SetReachable(m.probe(ctx))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.SetReachable(m.probe(ctx))
		}
	}
}

func (m *Monitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		return false
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		if m.logger != nil {
			m.logger.Warn(ctx, "connectivity probe failed")
		}
		return false
	}
	_ = resp.Body.Close()
	return true
}
