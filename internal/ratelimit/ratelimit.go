// Package ratelimit implements an adaptive inter-request delay for a
// single rate-limited endpoint. The delay grows multiplicatively on
// rate-limit responses, shrinks on successes, and resets to its initial
// value after a stable run of successes.
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Outcome is the result kind of a recorded remote call.
type Outcome int

const (
	// OutcomeSuccess is a completed call with a usable response.
	OutcomeSuccess Outcome = iota
	// OutcomeRateLimited is an explicit rate-limit rejection (429 or
	// provider-specific signal).
	OutcomeRateLimited
	// OutcomeTimeout is a network or deadline timeout.
	OutcomeTimeout
	// OutcomeError is any other failure, including parse errors.
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeError:
		return "other_error"
	default:
		return "unknown"
	}
}

// Record is one recorded request outcome. Immutable once appended.
type Record struct {
	Timestamp time.Time
	Kind      Outcome
	DelayUsed time.Duration
	Provider  string
}

// Config controls the adaptive delay behavior.
type Config struct {
	// InitialDelay is the starting inter-request delay. Default: 30s.
	InitialDelay time.Duration

	// MinDelay is the floor the delay never shrinks below. Default: 10s.
	MinDelay time.Duration

	// MaxDelay is the ceiling the delay never grows above. Default: 120s.
	MaxDelay time.Duration

	// IncreaseFactor scales the delay on rate-limit responses. Default: 1.5.
	IncreaseFactor float64

	// DecreaseFactor scales the delay on successes. Default: 0.8.
	DecreaseFactor float64

	// StablePeriod is the number of consecutive successes after which the
	// delay snaps back to InitialDelay. Default: 5.
	StablePeriod int

	// HistorySize bounds the retained outcome history. Default: 50.
	HistorySize int
}

// DefaultConfig returns the standard pacing configuration.
func DefaultConfig() Config {
	return Config{
		InitialDelay:   30 * time.Second,
		MinDelay:       10 * time.Second,
		MaxDelay:       120 * time.Second,
		IncreaseFactor: 1.5,
		DecreaseFactor: 0.8,
		StablePeriod:   5,
		HistorySize:    50,
	}
}

func applyDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = def.MinDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.IncreaseFactor <= 1 {
		cfg.IncreaseFactor = def.IncreaseFactor
	}
	if cfg.DecreaseFactor <= 0 || cfg.DecreaseFactor >= 1 {
		cfg.DecreaseFactor = def.DecreaseFactor
	}
	if cfg.StablePeriod <= 0 {
		cfg.StablePeriod = def.StablePeriod
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = def.HistorySize
	}
	return cfg
}

// Stats is a read-only snapshot of manager state.
type Stats struct {
	TotalRequests        int           `json:"total_requests"`
	CurrentDelay         time.Duration `json:"current_delay"`
	ConsecutiveSuccesses int           `json:"consecutive_successes"`
	ConsecutiveFailures  int           `json:"consecutive_failures"`
	RecentSuccessRate    float64       `json:"recent_success_rate"`
	AverageDelay         time.Duration `json:"average_delay"`
}

// Manager paces calls to one endpoint. It is purely advisory: it never
// rejects a call, it only tells the caller how long to wait. Safe for
// concurrent use; Wait holds no lock while sleeping.
type Manager struct {
	mu      sync.Mutex
	cfg     Config
	delay   time.Duration
	last    time.Time
	hasLast bool
	succ    int
	fail    int
	total   int
	history []Record

	// nowFunc and sleepFunc are injectable for tests.
	nowFunc   func() time.Time
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewManager creates a manager with the given config (zero fields get
// defaults).
func NewManager(cfg Config) *Manager {
	cfg = applyDefaults(cfg)
	return &Manager{
		cfg:       cfg,
		delay:     cfg.InitialDelay,
		nowFunc:   time.Now,
		sleepFunc: sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait blocks until the current delay has elapsed since the last recorded
// call. Returns the duration actually waited. If no call has been recorded
// yet it returns immediately. Cancelling the context aborts the wait and
// returns ctx.Err().
func (m *Manager) Wait(ctx context.Context) (time.Duration, error) {
	m.mu.Lock()
	if !m.hasLast {
		m.mu.Unlock()
		return 0, nil
	}
	elapsed := m.nowFunc().Sub(m.last)
	remaining := m.delay - elapsed
	sleep := m.sleepFunc
	m.mu.Unlock()

	if remaining <= 0 {
		return 0, nil
	}
	if err := sleep(ctx, remaining); err != nil {
		return 0, err
	}
	return remaining, nil
}

// Record registers the outcome of a call and adjusts the delay.
func (m *Manager) Record(kind Outcome, provider string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFunc()
	m.history = append(m.history, Record{
		Timestamp: now,
		Kind:      kind,
		DelayUsed: m.delay,
		Provider:  provider,
	})
	if len(m.history) > m.cfg.HistorySize {
		m.history = m.history[len(m.history)-m.cfg.HistorySize:]
	}
	m.last = now
	m.hasLast = true
	m.total++

	switch kind {
	case OutcomeSuccess:
		m.succ++
		m.fail = 0
		m.delay = maxDuration(m.cfg.MinDelay, scale(m.delay, m.cfg.DecreaseFactor))
		if m.succ >= m.cfg.StablePeriod {
			// Stability reset: snap back to the initial delay so a long
			// success streak cannot drift the delay arbitrarily low.
			m.delay = m.cfg.InitialDelay
			m.succ = 0
			zap.L().Debug("ratelimit: stable period reached, delay reset",
				zap.String("provider", provider),
				zap.Duration("delay", m.delay),
			)
		}
	case OutcomeRateLimited:
		m.fail++
		m.succ = 0
		exp := m.fail
		if exp > 3 {
			exp = 3
		}
		factor := math.Pow(m.cfg.IncreaseFactor, float64(exp))
		m.delay = minDuration(m.cfg.MaxDelay, scale(m.delay, factor))
		zap.L().Warn("ratelimit: backing off after rate limit",
			zap.String("provider", provider),
			zap.Int("consecutive_failures", m.fail),
			zap.Duration("delay", m.delay),
		)
	case OutcomeTimeout, OutcomeError:
		m.fail++
		m.succ = 0
		// Softer than rate-limit backoff: only nudge the delay once
		// failures start repeating.
		if m.fail >= 2 {
			m.delay = minDuration(m.cfg.MaxDelay, scale(m.delay, 1.2))
		}
	}
}

// Stats returns a snapshot of the manager state. Recent rates and averages
// are computed over the last 10 outcomes.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	recent := m.history
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	var okCount int
	var delaySum time.Duration
	for _, r := range recent {
		if r.Kind == OutcomeSuccess {
			okCount++
		}
		delaySum += r.DelayUsed
	}

	s := Stats{
		TotalRequests:        m.total,
		CurrentDelay:         m.delay,
		ConsecutiveSuccesses: m.succ,
		ConsecutiveFailures:  m.fail,
	}
	if len(recent) > 0 {
		s.RecentSuccessRate = float64(okCount) / float64(len(recent))
		s.AverageDelay = delaySum / time.Duration(len(recent))
	}
	return s
}

// CurrentDelay returns the current inter-request delay.
func (m *Manager) CurrentDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.delay
}

// History returns a copy of the retained outcome history, oldest first.
func (m *Manager) History() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.history))
	copy(out, m.history)
	return out
}

// Reset restores the initial delay and clears counters and history.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = m.cfg.InitialDelay
	m.succ = 0
	m.fail = 0
	m.total = 0
	m.hasLast = false
	m.history = nil
}

// WithNow sets a fixed/controlled clock for testing.
func (m *Manager) WithNow(now func() time.Time) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nowFunc = now
	return m
}

// WithSleep replaces the blocking sleep for testing.
func (m *Manager) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleepFunc = sleep
	return m
}

func scale(d time.Duration, f float64) time.Duration {
	return time.Duration(float64(d) * f)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
