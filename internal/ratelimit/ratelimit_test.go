package ratelimit

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newTestManager(cfg Config) (*Manager, *time.Time) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	m := NewManager(cfg).WithNow(func() time.Time { return *clock })
	m.WithSleep(func(_ context.Context, d time.Duration) error {
		*clock = clock.Add(d)
		return nil
	})
	return m, clock
}

func TestWait_NoPriorCall_ReturnsImmediately(t *testing.T) {
	m, _ := newTestManager(Config{})
	waited, err := m.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if waited != 0 {
		t.Errorf("expected zero wait before first call, got %v", waited)
	}
}

func TestWait_BlocksForRemainingDelay(t *testing.T) {
	m, clock := newTestManager(Config{InitialDelay: 30 * time.Second})
	m.Record(OutcomeSuccess, "openrouter")

	// 10s pass; 24s delay remains (30s * 0.8 after the success).
	*clock = clock.Add(10 * time.Second)
	waited, err := m.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 14 * time.Second
	if waited != want {
		t.Errorf("expected wait of %v, got %v", want, waited)
	}
}

func TestWait_ContextCancelled(t *testing.T) {
	m := NewManager(Config{InitialDelay: 30 * time.Second})
	m.Record(OutcomeSuccess, "openrouter")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Wait(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestRecord_BackoffMonotonicity(t *testing.T) {
	m, _ := newTestManager(Config{})
	prev := m.CurrentDelay()
	for i := 0; i < 20; i++ {
		m.Record(OutcomeRateLimited, "groq")
		cur := m.CurrentDelay()
		if cur < prev {
			t.Fatalf("delay decreased on rate limit: %v -> %v", prev, cur)
		}
		if cur > 120*time.Second {
			t.Fatalf("delay exceeded max: %v", cur)
		}
		prev = cur
	}
	if prev != 120*time.Second {
		t.Errorf("expected delay pinned at max after sustained 429s, got %v", prev)
	}
}

func TestRecord_FirstRateLimitGrowsDelay(t *testing.T) {
	m, _ := newTestManager(Config{})
	m.Record(OutcomeRateLimited, "groq")
	if got, want := m.CurrentDelay(), 45*time.Second; got != want {
		t.Errorf("expected %v after first 429, got %v", want, got)
	}
}

func TestRecord_RecoveryMonotonicity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StablePeriod = 100 // keep the stability reset out of this test
	m, _ := newTestManager(cfg)
	for i := 0; i < 5; i++ {
		m.Record(OutcomeRateLimited, "groq")
	}

	prev := m.CurrentDelay()
	for i := 0; i < 30; i++ {
		m.Record(OutcomeSuccess, "groq")
		cur := m.CurrentDelay()
		if cur > prev {
			t.Fatalf("delay increased on success: %v -> %v", prev, cur)
		}
		if cur < 10*time.Second {
			t.Fatalf("delay fell below min: %v", cur)
		}
		prev = cur
	}
	if prev != 10*time.Second {
		t.Errorf("expected delay pinned at min after sustained successes, got %v", prev)
	}
}

func TestRecord_StabilityReset(t *testing.T) {
	m, _ := newTestManager(Config{})
	for i := 0; i < 3; i++ {
		m.Record(OutcomeRateLimited, "groq")
	}
	for i := 0; i < 5; i++ {
		m.Record(OutcomeSuccess, "groq")
	}
	if got, want := m.CurrentDelay(), 30*time.Second; got != want {
		t.Errorf("expected initial delay %v after stable period, got %v", want, got)
	}
	if s := m.Stats(); s.ConsecutiveSuccesses != 0 {
		t.Errorf("expected success counter zeroed by stability reset, got %d", s.ConsecutiveSuccesses)
	}
}

func TestRecord_SoftBackoffOnErrors(t *testing.T) {
	m, _ := newTestManager(Config{})
	m.Record(OutcomeTimeout, "replicate")
	if got, want := m.CurrentDelay(), 30*time.Second; got != want {
		t.Errorf("single timeout must not change delay: got %v", got)
	}
	m.Record(OutcomeError, "replicate")
	if got, want := m.CurrentDelay(), 36*time.Second; got != want {
		t.Errorf("expected mild 1.2x bump after repeated errors, got %v want %v", got, want)
	}
}

func TestRecord_CountersMutuallyExclusive(t *testing.T) {
	m, _ := newTestManager(Config{})
	m.Record(OutcomeSuccess, "p")
	m.Record(OutcomeSuccess, "p")
	m.Record(OutcomeRateLimited, "p")

	s := m.Stats()
	if s.ConsecutiveSuccesses != 0 {
		t.Errorf("success counter not reset on failure: %d", s.ConsecutiveSuccesses)
	}
	if s.ConsecutiveFailures != 1 {
		t.Errorf("expected 1 consecutive failure, got %d", s.ConsecutiveFailures)
	}

	m.Record(OutcomeSuccess, "p")
	s = m.Stats()
	if s.ConsecutiveFailures != 0 {
		t.Errorf("failure counter not reset on success: %d", s.ConsecutiveFailures)
	}
}

func TestHistory_CappedFIFO(t *testing.T) {
	m, _ := newTestManager(Config{})
	for i := 0; i < 75; i++ {
		m.Record(OutcomeSuccess, "p")
	}
	h := m.History()
	if len(h) != 50 {
		t.Fatalf("expected history capped at 50, got %d", len(h))
	}
	if s := m.Stats(); s.TotalRequests != 75 {
		t.Errorf("total requests should survive eviction: got %d", s.TotalRequests)
	}
}

func TestStats_RecentWindow(t *testing.T) {
	m, _ := newTestManager(Config{})
	for i := 0; i < 10; i++ {
		m.Record(OutcomeRateLimited, "p")
	}
	// Last 10 outcomes: 5 rate-limited, 5 successes.
	for i := 0; i < 5; i++ {
		m.Record(OutcomeSuccess, "p")
	}

	s := m.Stats()
	if s.RecentSuccessRate != 0.5 {
		t.Errorf("expected recent success rate 0.5, got %v", s.RecentSuccessRate)
	}
	if s.AverageDelay <= 0 {
		t.Errorf("expected positive average delay, got %v", s.AverageDelay)
	}
}

func TestReset(t *testing.T) {
	m, _ := newTestManager(Config{})
	for i := 0; i < 4; i++ {
		m.Record(OutcomeRateLimited, "p")
	}
	m.Reset()

	if got := m.CurrentDelay(); got != 30*time.Second {
		t.Errorf("expected initial delay after reset, got %v", got)
	}
	s := m.Stats()
	if s.TotalRequests != 0 || s.ConsecutiveFailures != 0 || len(m.History()) != 0 {
		t.Errorf("expected cleared state after reset: %+v", s)
	}
	if w, err := m.Wait(context.Background()); err != nil || w != 0 {
		t.Errorf("expected immediate wait after reset, got %v %v", w, err)
	}
}

func TestRecord_LogsStateChanges(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	m, _ := newTestManager(Config{})
	m.Record(OutcomeRateLimited, "groq")
	for i := 0; i < 5; i++ {
		m.Record(OutcomeSuccess, "groq")
	}

	if n := logs.FilterMessageSnippet("backing off").Len(); n != 1 {
		t.Errorf("expected one backoff log entry, got %d", n)
	}
	if n := logs.FilterMessageSnippet("delay reset").Len(); n != 1 {
		t.Errorf("expected one stability-reset log entry, got %d", n)
	}
}

func TestOutcomeString(t *testing.T) {
	cases := map[Outcome]string{
		OutcomeSuccess:     "success",
		OutcomeRateLimited: "rate_limited",
		OutcomeTimeout:     "timeout",
		OutcomeError:       "other_error",
		Outcome(99):        "unknown",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", k, got, want)
		}
	}
}
