package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/DjEugeny/contact-parser-sub001/internal/dedup"
	"github.com/DjEugeny/contact-parser-sub001/internal/extractor"
	"github.com/DjEugeny/contact-parser-sub001/internal/ratelimit"
	"github.com/DjEugeny/contact-parser-sub001/internal/store"
	"github.com/DjEugeny/contact-parser-sub001/internal/tokens"
)

// initStore opens the configured store and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	return store.Open(ctx, store.Config{
		Driver:   cfg.Store.Driver,
		SQLite:   cfg.Store.SQLitePath,
		Postgres: cfg.Store.PostgresDSN,
		Pool: &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		},
	})
}

// buildExtractor wires the provider roster, token counter, and pacing
// configuration into an extractor.
func buildExtractor() (*extractor.Extractor, error) {
	providerCfgs, err := extractor.LoadProviderConfigs(cfg.Providers.File)
	if err != nil {
		return nil, err
	}

	providers := make([]extractor.Provider, 0, len(providerCfgs))
	for _, pc := range providerCfgs {
		client, err := extractor.BuildClient(pc)
		if err != nil {
			zap.L().Warn("provider unavailable",
				zap.String("provider", pc.ID),
				zap.Error(err),
			)
			continue
		}
		providers = append(providers, extractor.Provider{Config: pc, Client: client})
	}
	if len(providers) == 0 {
		return nil, eris.New("no usable providers; check providers.yaml and API key env vars")
	}

	counter := tokens.NewCounter()
	chunkCfg := extractor.ChunkConfig{
		MaxTokensPerChunk: cfg.Extract.MaxTokensPerChunk,
		OverlapTokens:     cfg.Extract.OverlapTokens,
		MaxChunks:         cfg.Extract.MaxChunks,
	}

	return extractor.New(extractor.Config{
		RequestTimeout: time.Duration(cfg.Extract.RequestTimeoutSecs) * time.Second,
		Chunk:          chunkCfg,
		RateLimit:      rateLimitConfig(),
	}, providers, extractor.NewChunker(chunkCfg, counter))
}

func rateLimitConfig() ratelimit.Config {
	return ratelimit.Config{
		InitialDelay:   secs(cfg.RateLimit.InitialDelaySecs),
		MinDelay:       secs(cfg.RateLimit.MinDelaySecs),
		MaxDelay:       secs(cfg.RateLimit.MaxDelaySecs),
		IncreaseFactor: cfg.RateLimit.IncreaseFactor,
		DecreaseFactor: cfg.RateLimit.DecreaseFactor,
		StablePeriod:   cfg.RateLimit.StablePeriod,
		HistorySize:    cfg.RateLimit.HistorySize,
	}
}

func dedupConfig() dedup.Config {
	return dedup.Config{
		SimilarityThreshold: cfg.Dedup.SimilarityThreshold,
		NameWeight:          cfg.Dedup.NameWeight,
		OrgWeight:           cfg.Dedup.OrgWeight,
		PositionWeight:      cfg.Dedup.PositionWeight,
		DisableSemantic:     cfg.Dedup.DisableSemantic,
	}
}

func secs(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
