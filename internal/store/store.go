// Package store persists extraction runs and the contacts they produce.
// Two drivers are available: embedded sqlite for single-operator use and
// postgres for shared deployments.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/DjEugeny/contact-parser-sub001/internal/model"
)

// Store is the persistence boundary for runs and contacts.
type Store interface {
	Migrate(ctx context.Context) error

	CreateRun(ctx context.Context, run model.Run) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	SaveContacts(ctx context.Context, runID string, contacts []model.ContactRecord) error
	ListContacts(ctx context.Context, filter ContactFilter) ([]model.ContactRecord, error)

	Close() error
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Source string
	Limit  int
	Offset int
}

// ContactFilter narrows ListContacts. Empty RunID returns contacts
// across all runs.
type ContactFilter struct {
	RunID         string
	MinConfidence float64
	Limit         int
}

// Config selects and configures the storage driver.
type Config struct {
	Driver   string      `yaml:"driver" mapstructure:"driver"`
	SQLite   string      `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	Postgres string      `yaml:"postgres_dsn" mapstructure:"postgres_dsn"`
	Pool     *PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// Open creates the store named by cfg.Driver and runs migrations.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.SQLite
		if dsn == "" {
			dsn = "contacts.db"
		}
		s, err = NewSQLite(dsn)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.Postgres, cfg.Pool)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
