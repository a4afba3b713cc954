package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/DjEugeny/contact-parser-sub001/internal/db"
	"github.com/DjEugeny/contact-parser-sub001/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wires an existing pool, used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	source           TEXT NOT NULL,
	emails           INTEGER NOT NULL DEFAULT 0,
	contacts_found   INTEGER NOT NULL DEFAULT 0,
	contacts_unique  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS contacts (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	name         TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	organization TEXT NOT NULL DEFAULT '',
	position     TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	confidence   DOUBLE PRECISION NOT NULL DEFAULT 0,
	source       TEXT NOT NULL DEFAULT '',
	other_emails JSONB,
	other_phones JSONB,
	merged_from  INTEGER NOT NULL DEFAULT 1,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
CREATE INDEX IF NOT EXISTS idx_contacts_run_id ON contacts(run_id);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run model.Run) (*model.Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, started_at, source, emails, contacts_found, contacts_unique) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.StartedAt, run.Source, run.Emails, run.ContactsFound, run.ContactsUnique,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, started_at, source, emails, contacts_found, contacts_unique FROM runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, filter.Source)
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.Source, &r.Emails, &r.ContactsFound, &r.ContactsUnique); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

var contactColumns = []string{
	"id", "run_id", "name", "email", "phone", "organization", "position",
	"city", "confidence", "source", "other_emails", "other_phones", "merged_from",
}

func (s *PostgresStore) SaveContacts(ctx context.Context, runID string, contacts []model.ContactRecord) error {
	if len(contacts) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(contacts))
	for _, c := range contacts {
		otherEmails, otherPhones, err := marshalExtras(c)
		if err != nil {
			return err
		}
		var emailsVal, phonesVal any
		if otherEmails != "" {
			emailsVal = []byte(otherEmails)
		}
		if otherPhones != "" {
			phonesVal = []byte(otherPhones)
		}
		mergedFrom := c.MergedFromCount
		if mergedFrom <= 0 {
			mergedFrom = 1
		}
		rows = append(rows, []any{
			uuid.New().String(), runID,
			c.Name, c.Email, c.Phone, c.Organization, c.Position, c.City,
			c.Confidence, c.Source, emailsVal, phonesVal, mergedFrom,
		})
	}

	_, err := db.BulkInsert(ctx, s.pool, "contacts", contactColumns, rows)
	return eris.Wrap(err, "postgres: save contacts")
}

func (s *PostgresStore) ListContacts(ctx context.Context, filter ContactFilter) ([]model.ContactRecord, error) {
	query := `SELECT name, email, phone, organization, position, city, confidence, source, other_emails, other_phones, merged_from
	          FROM contacts WHERE true`
	args := []any{}
	argIdx := 1

	if filter.RunID != "" {
		query += fmt.Sprintf(` AND run_id = $%d`, argIdx)
		args = append(args, filter.RunID)
		argIdx++
	}
	if filter.MinConfidence > 0 {
		query += fmt.Sprintf(` AND confidence >= $%d`, argIdx)
		args = append(args, filter.MinConfidence)
		argIdx++
	}
	query += ` ORDER BY created_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contacts")
	}
	defer rows.Close()

	var contacts []model.ContactRecord
	for rows.Next() {
		var c model.ContactRecord
		var otherEmails, otherPhones []byte
		if err := rows.Scan(&c.Name, &c.Email, &c.Phone, &c.Organization, &c.Position, &c.City,
			&c.Confidence, &c.Source, &otherEmails, &otherPhones, &c.MergedFromCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contact")
		}
		if err := unmarshalExtras(string(otherEmails), string(otherPhones), &c); err != nil {
			return nil, err
		}
		// Stored singletons carry merged_from=1; in memory only merged
		// records have a count.
		if c.MergedFromCount == 1 {
			c.MergedFromCount = 0
		}
		contacts = append(contacts, c)
	}
	return contacts, eris.Wrap(rows.Err(), "postgres: list contacts iterate")
}
