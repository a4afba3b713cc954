// Package extractor obtains structured contact data from one of several
// configured LLM providers. Providers are tried in priority order with
// per-provider adaptive pacing; a provider that keeps failing is skipped
// until an explicit reset.
package extractor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/DjEugeny/contact-parser-sub001/internal/model"
	"github.com/DjEugeny/contact-parser-sub001/internal/ratelimit"
	"github.com/DjEugeny/contact-parser-sub001/internal/resilience"
)

// ErrNoActiveProviders is returned when every configured provider has been
// skipped or exhausted within one extraction.
var ErrNoActiveProviders = eris.New("no active providers")

// TestModeProvider tags results produced by the metadata-less dry-run path.
const TestModeProvider = "Test Mode"

const systemPrompt = "You extract contact and commercial information from business emails. " +
	"Reply with a single JSON object only, no prose. Schema: " +
	`{"contacts":[{"name":"","email":"","phone":"","organization":"","position":"","city":"","confidence":0.0}]}. ` +
	"Use empty strings for unknown fields and confidence between 0 and 1. " +
	"If no contacts are present, return {\"contacts\":[]}."

// Config controls the extractor.
type Config struct {
	// RequestTimeout bounds a single provider call, independent of the
	// inter-request delay. Default: 30s.
	RequestTimeout time.Duration

	// Chunk bounds long-text splitting.
	Chunk ChunkConfig

	// RateLimit is the per-provider adaptive delay configuration.
	RateLimit ratelimit.Config
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return cfg
}

// Extractor orchestrates provider fallback for contact extraction.
//
// One extraction runs strictly sequentially (the adaptive delay paces
// sequential calls to one endpoint); opMu serializes extractions and makes
// Reset atomic with respect to in-flight calls. stateMu guards provider
// state so Health stays readable mid-extraction.
type Extractor struct {
	opMu    sync.Mutex
	stateMu sync.Mutex

	cfg       Config
	providers []*providerState
	chunker   *Chunker
}

// New creates an extractor over the given providers.
func New(cfg Config, providers []Provider, chunker *Chunker) (*Extractor, error) {
	if len(providers) == 0 {
		return nil, eris.New("extractor: no providers configured")
	}
	for _, p := range providers {
		if p.Client == nil {
			return nil, eris.Errorf("extractor: provider %s has no client", p.Config.ID)
		}
	}
	cfg = applyConfigDefaults(cfg)
	return &Extractor{
		cfg:       cfg,
		providers: newProviderStates(providers, cfg.RateLimit),
		chunker:   chunker,
	}, nil
}

// Extract obtains contacts from text. Nil metadata switches to test mode
// and returns a canned result without touching any provider. Long texts
// are chunked; per-chunk contact lists are concatenated (deduplication is
// the caller's next step).
func (e *Extractor) Extract(ctx context.Context, text string, meta model.EmailMetadata) *model.ExtractionResult {
	textLen := utf8.RuneCountInString(text)

	if meta == nil {
		return &model.ExtractionResult{
			Success:      true,
			ProviderUsed: TestModeProvider,
			TextLength:   textLen,
			Chunks:       1,
			Contacts: []model.ContactRecord{{
				Name:         "Тестовый Контакт",
				Email:        "test@example.com",
				Phone:        "+7 495 000-00-00",
				Organization: "Test Mode",
				Confidence:   1,
				Source:       "test-mode",
			}},
		}
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()

	chunks := e.chunker.Split(text)
	result := &model.ExtractionResult{
		TextLength: textLen,
		Chunks:     len(chunks),
	}

	for i, chunk := range chunks {
		contacts, provider, err := e.extractChunk(ctx, chunk, meta)
		if err != nil {
			zap.L().Error("extractor: chunk failed",
				zap.Int("chunk", i+1),
				zap.Int("chunks", len(chunks)),
				zap.Error(err),
			)
			result.Success = false
			result.Error = eris.Cause(err).Error()
			return result
		}
		result.Contacts = append(result.Contacts, contacts...)
		result.ProviderUsed = provider
	}

	result.Success = true
	return result
}

// extractChunk runs the bounded fallback loop for one chunk. The attempt
// budget is the sum of per-provider failure allowances, so the loop always
// terminates even when every provider fails every call.
func (e *Extractor) extractChunk(ctx context.Context, chunk string, meta model.EmailMetadata) ([]model.ContactRecord, string, error) {
	maxAttempts := 0
	for _, p := range e.providers {
		maxAttempts += p.cfg.MaxFailures
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		p := e.currentProvider()
		if p == nil {
			return nil, "", ErrNoActiveProviders
		}

		if p.rpm != nil {
			if err := p.rpm.Wait(ctx); err != nil {
				return nil, "", eris.Wrap(err, "extractor: rpm wait")
			}
		}
		waited, err := p.limiter.Wait(ctx)
		if err != nil {
			return nil, "", eris.Wrap(err, "extractor: pacing wait")
		}
		if waited > 0 {
			zap.L().Debug("extractor: paced request",
				zap.String("provider", p.cfg.ID),
				zap.Duration("waited", waited),
			)
		}

		contacts, err := e.callProvider(ctx, p, chunk, meta)
		if err == nil {
			p.limiter.Record(ratelimit.OutcomeSuccess, p.cfg.ID)
			e.noteSuccess(p)
			return contacts, p.cfg.DisplayName, nil
		}

		outcome := classifyOutcome(err)
		p.limiter.Record(outcome, p.cfg.ID)
		e.noteFailure(p, outcome, err)

		// A cancelled caller is fatal, not a provider fault to route around.
		if ctx.Err() != nil {
			return nil, "", eris.Wrap(ctx.Err(), "extractor: cancelled")
		}
	}

	return nil, "", ErrNoActiveProviders
}

func (e *Extractor) callProvider(ctx context.Context, p *providerState, chunk string, meta model.EmailMetadata) ([]model.ContactRecord, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	raw, err := p.client.Complete(callCtx, systemPrompt, buildPrompt(chunk, meta))
	if err != nil {
		return nil, err
	}
	return ParseContacts(raw)
}

func buildPrompt(chunk string, meta model.EmailMetadata) string {
	var b strings.Builder
	b.WriteString("Email metadata:\n")
	for _, key := range []string{"from", "subject", "date", "thread_id"} {
		if v := meta[key]; v != "" {
			fmt.Fprintf(&b, "%s: %s\n", key, v)
		}
	}
	b.WriteString("\nEmail text:\n")
	b.WriteString(chunk)
	return b.String()
}

// currentProvider returns the active provider with the lowest priority
// value, or nil when all are skipped.
func (e *Extractor) currentProvider() *providerState {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	for _, p := range e.providers {
		if p.active {
			return p
		}
	}
	return nil
}

func (e *Extractor) noteSuccess(p *providerState) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	p.failures = 0
}

func (e *Extractor) noteFailure(p *providerState, outcome ratelimit.Outcome, err error) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	p.failures++
	zap.L().Warn("extractor: provider call failed",
		zap.String("provider", p.cfg.ID),
		zap.String("outcome", outcome.String()),
		zap.Int("failure_count", p.failures),
		zap.Error(err),
	)

	if p.failures >= p.cfg.MaxFailures && p.active {
		p.active = false
		zap.L().Warn("extractor: provider skipped",
			zap.String("provider", p.cfg.ID),
			zap.Int("failures", p.failures),
		)
	}
}

func classifyOutcome(err error) ratelimit.Outcome {
	switch {
	case resilience.IsRateLimited(err):
		return ratelimit.OutcomeRateLimited
	case resilience.IsTimeout(err):
		return ratelimit.OutcomeTimeout
	default:
		return ratelimit.OutcomeError
	}
}

// ProviderHealth is the read-only status of one provider.
type ProviderHealth struct {
	Status       string          `json:"status"` // healthy, degraded, skipped
	FailureCount int             `json:"failure_count"`
	Active       bool            `json:"active"`
	Priority     int             `json:"priority"`
	Stats        ratelimit.Stats `json:"stats"`
}

// Health is a diagnostic projection of extractor state for operators.
type Health struct {
	OverallHealth   string                    `json:"overall_health"` // healthy, degraded, critical
	Providers       map[string]ProviderHealth `json:"providers"`
	Recommendations []string                  `json:"recommendations,omitempty"`
}

// Health reports provider availability. Purely read-only; never consulted
// by the fallback algorithm itself.
func (e *Extractor) Health() Health {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	h := Health{Providers: make(map[string]ProviderHealth, len(e.providers))}
	activeCount := 0
	degraded := false

	for _, p := range e.providers {
		status := "healthy"
		switch {
		case !p.active:
			status = "skipped"
			h.Recommendations = append(h.Recommendations,
				fmt.Sprintf("provider %s skipped after %d failures; reset to re-enable", p.cfg.ID, p.failures))
		case p.failures > 0:
			status = "degraded"
			degraded = true
		}
		if p.active {
			activeCount++
		}
		h.Providers[p.cfg.ID] = ProviderHealth{
			Status:       status,
			FailureCount: p.failures,
			Active:       p.active,
			Priority:     p.cfg.Priority,
			Stats:        p.limiter.Stats(),
		}
	}

	switch {
	case activeCount == 0:
		h.OverallHealth = "critical"
		h.Recommendations = append(h.Recommendations,
			"all providers exhausted; reset the system or wait before retrying")
	case degraded || activeCount < len(e.providers):
		h.OverallHealth = "degraded"
	default:
		h.OverallHealth = "healthy"
	}
	return h
}

// Reset restores every provider to active with a zero failure count and
// resets the pacing state. It waits for any in-flight extraction, so reset
// never lands mid-call.
func (e *Extractor) Reset() {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	for _, p := range e.providers {
		p.active = true
		p.failures = 0
		p.limiter.Reset()
	}
	zap.L().Info("extractor: system state reset", zap.Int("providers", len(e.providers)))
}
