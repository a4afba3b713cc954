package extractor

import (
	"context"
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/DjEugeny/contact-parser-sub001/internal/ratelimit"
)

// ChatClient is the minimal completion surface a provider must offer.
type ChatClient interface {
	// Complete sends a system and user prompt and returns the raw
	// completion text.
	Complete(ctx context.Context, system, user string) (string, error)
}

// ProviderConfig describes one configured LLM provider. Loaded from
// providers.yaml as an ordered list; lower priority values are tried first.
type ProviderConfig struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
	Type        string `yaml:"type"` // openrouter, groq, anthropic
	Model       string `yaml:"model"`
	Endpoint    string `yaml:"endpoint"` // optional base URL override
	Priority    int    `yaml:"priority"`
	MaxFailures int    `yaml:"max_failures_before_skip"`
	APIKeyEnv   string `yaml:"api_key_env"`
	RPM         int    `yaml:"rpm"` // static requests-per-minute cap, 0 = none
}

// LoadProviderConfigs reads an ordered provider list from a YAML file.
// Loaded directly with yaml.v3 because the file is an ordered sequence.
func LoadProviderConfigs(path string) ([]ProviderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "providers: read config")
	}

	var doc struct {
		Providers []ProviderConfig `yaml:"providers"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "providers: parse config")
	}
	if len(doc.Providers) == 0 {
		return nil, eris.New("providers: no providers configured")
	}

	for i := range doc.Providers {
		p := &doc.Providers[i]
		if p.ID == "" {
			return nil, eris.Errorf("providers: entry %d has no id", i)
		}
		if p.DisplayName == "" {
			p.DisplayName = p.ID
		}
		if p.MaxFailures <= 0 {
			p.MaxFailures = 3
		}
	}
	return doc.Providers, nil
}

// Provider couples a provider config with its completion client.
type Provider struct {
	Config ProviderConfig
	Client ChatClient
}

// providerState is the extractor-owned mutable state of one provider.
// Mutated only by the extractor's fallback logic, under the extractor lock.
type providerState struct {
	cfg      ProviderConfig
	client   ChatClient
	limiter  *ratelimit.Manager
	rpm      *rate.Limiter
	active   bool
	failures int
}

func newProviderStates(providers []Provider, limitCfg ratelimit.Config) []*providerState {
	states := make([]*providerState, 0, len(providers))
	for _, p := range providers {
		cfg := p.Config
		if cfg.MaxFailures <= 0 {
			cfg.MaxFailures = 3
		}
		st := &providerState{
			cfg:     cfg,
			client:  p.Client,
			limiter: ratelimit.NewManager(limitCfg),
			active:  true,
		}
		if cfg.RPM > 0 {
			st.rpm = rate.NewLimiter(rate.Limit(float64(cfg.RPM)/60.0), 1)
		}
		states = append(states, st)
	}
	sort.SliceStable(states, func(i, j int) bool {
		return states[i].cfg.Priority < states[j].cfg.Priority
	})
	return states
}
