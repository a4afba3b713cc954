package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	RateLimit RateLimitConfig `yaml:"ratelimit" mapstructure:"ratelimit"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Dedup     DedupConfig     `yaml:"dedup" mapstructure:"dedup"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Export    ExportConfig    `yaml:"export" mapstructure:"export"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ProvidersConfig locates the LLM provider roster.
type ProvidersConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// RateLimitConfig configures the adaptive inter-request delay.
type RateLimitConfig struct {
	InitialDelaySecs float64 `yaml:"initial_delay_secs" mapstructure:"initial_delay_secs"`
	MinDelaySecs     float64 `yaml:"min_delay_secs" mapstructure:"min_delay_secs"`
	MaxDelaySecs     float64 `yaml:"max_delay_secs" mapstructure:"max_delay_secs"`
	IncreaseFactor   float64 `yaml:"increase_factor" mapstructure:"increase_factor"`
	DecreaseFactor   float64 `yaml:"decrease_factor" mapstructure:"decrease_factor"`
	StablePeriod     int     `yaml:"stable_period" mapstructure:"stable_period"`
	HistorySize      int     `yaml:"history_size" mapstructure:"history_size"`
}

// ExtractConfig configures extraction calls and chunking.
type ExtractConfig struct {
	RequestTimeoutSecs int `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	MaxTokensPerChunk  int `yaml:"max_tokens_per_chunk" mapstructure:"max_tokens_per_chunk"`
	OverlapTokens      int `yaml:"overlap_tokens" mapstructure:"overlap_tokens"`
	MaxChunks          int `yaml:"max_chunks" mapstructure:"max_chunks"`
}

// DedupConfig configures contact deduplication.
type DedupConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	NameWeight          float64 `yaml:"name_weight" mapstructure:"name_weight"`
	OrgWeight           float64 `yaml:"org_weight" mapstructure:"org_weight"`
	PositionWeight      float64 `yaml:"position_weight" mapstructure:"position_weight"`
	DisableSemantic     bool    `yaml:"disable_semantic" mapstructure:"disable_semantic"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ExportConfig configures output files.
type ExportConfig struct {
	Format string `yaml:"format" mapstructure:"format"`
	Dir    string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the operator HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONTACTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("providers.file", "providers.yaml")
	v.SetDefault("ratelimit.initial_delay_secs", 30.0)
	v.SetDefault("ratelimit.min_delay_secs", 10.0)
	v.SetDefault("ratelimit.max_delay_secs", 120.0)
	v.SetDefault("ratelimit.increase_factor", 1.5)
	v.SetDefault("ratelimit.decrease_factor", 0.8)
	v.SetDefault("ratelimit.stable_period", 5)
	v.SetDefault("ratelimit.history_size", 50)
	v.SetDefault("extract.request_timeout_secs", 30)
	v.SetDefault("extract.max_tokens_per_chunk", 1000)
	v.SetDefault("extract.overlap_tokens", 100)
	v.SetDefault("extract.max_chunks", 8)
	v.SetDefault("dedup.similarity_threshold", 0.75)
	v.SetDefault("dedup.name_weight", 0.40)
	v.SetDefault("dedup.org_weight", 0.35)
	v.SetDefault("dedup.position_weight", 0.25)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "contacts.db")
	v.SetDefault("export.format", "xlsx")
	v.SetDefault("export.dir", "export")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields required for the given mode. Modes: extract,
// serve, export.
func (c *Config) Validate(mode string) error {
	var problems []string

	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	check(c.Providers.File != "", "providers.file is required")
	check(c.RateLimit.MinDelaySecs <= c.RateLimit.InitialDelaySecs,
		"ratelimit.min_delay_secs must not exceed initial_delay_secs")
	check(c.RateLimit.InitialDelaySecs <= c.RateLimit.MaxDelaySecs,
		"ratelimit.initial_delay_secs must not exceed max_delay_secs")
	check(c.Dedup.SimilarityThreshold >= 0 && c.Dedup.SimilarityThreshold <= 1,
		"dedup.similarity_threshold must be between 0 and 1")

	switch mode {
	case "extract":
		check(c.Extract.MaxChunks > 0, "extract.max_chunks must be > 0")
	case "serve":
		check(c.Server.Port > 0, "server.port must be > 0")
	case "export":
		check(c.Export.Format == "csv" || c.Export.Format == "xlsx",
			"export.format must be csv or xlsx")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
