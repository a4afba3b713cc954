package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/DjEugeny/contact-parser-sub001/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id               TEXT PRIMARY KEY,
	started_at       DATETIME NOT NULL,
	source           TEXT NOT NULL,
	emails           INTEGER NOT NULL DEFAULT 0,
	contacts_found   INTEGER NOT NULL DEFAULT 0,
	contacts_unique  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS contacts (
	id           TEXT PRIMARY KEY,
	run_id       TEXT NOT NULL REFERENCES runs(id),
	name         TEXT NOT NULL DEFAULT '',
	email        TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	organization TEXT NOT NULL DEFAULT '',
	position     TEXT NOT NULL DEFAULT '',
	city         TEXT NOT NULL DEFAULT '',
	confidence   REAL NOT NULL DEFAULT 0,
	source       TEXT NOT NULL DEFAULT '',
	other_emails TEXT,
	other_phones TEXT,
	merged_from  INTEGER NOT NULL DEFAULT 1,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_runs_source ON runs(source);
CREATE INDEX IF NOT EXISTS idx_contacts_run_id ON contacts(run_id);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.Run) (*model.Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, source, emails, contacts_found, contacts_unique) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.Source, run.Emails, run.ContactsFound, run.ContactsUnique,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, started_at, source, emails, contacts_found, contacts_unique FROM runs WHERE 1=1`
	var args []any

	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.Source, &r.Emails, &r.ContactsFound, &r.ContactsUnique); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveContacts(ctx context.Context, runID string, contacts []model.ContactRecord) error {
	if len(contacts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO contacts
		 (id, run_id, name, email, phone, organization, position, city, confidence, source, other_emails, other_phones, merged_from)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert contact")
	}
	defer stmt.Close()

	for _, c := range contacts {
		otherEmails, otherPhones, err := marshalExtras(c)
		if err != nil {
			return err
		}
		mergedFrom := c.MergedFromCount
		if mergedFrom <= 0 {
			mergedFrom = 1
		}
		_, err = stmt.ExecContext(ctx,
			uuid.New().String(), runID,
			c.Name, c.Email, c.Phone, c.Organization, c.Position, c.City,
			c.Confidence, c.Source, otherEmails, otherPhones, mergedFrom,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert contact")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit contacts")
}

func (s *SQLiteStore) ListContacts(ctx context.Context, filter ContactFilter) ([]model.ContactRecord, error) {
	query := `SELECT name, email, phone, organization, position, city, confidence, source, other_emails, other_phones, merged_from
	          FROM contacts WHERE 1=1`
	var args []any

	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.MinConfidence > 0 {
		query += ` AND confidence >= ?`
		args = append(args, filter.MinConfidence)
	}
	query += ` ORDER BY created_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contacts")
	}
	defer rows.Close()

	var contacts []model.ContactRecord
	for rows.Next() {
		var c model.ContactRecord
		var otherEmails, otherPhones sql.NullString
		if err := rows.Scan(&c.Name, &c.Email, &c.Phone, &c.Organization, &c.Position, &c.City,
			&c.Confidence, &c.Source, &otherEmails, &otherPhones, &c.MergedFromCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contact")
		}
		if err := unmarshalExtras(otherEmails.String, otherPhones.String, &c); err != nil {
			return nil, err
		}
		// Stored singletons carry merged_from=1; in memory only merged
		// records have a count.
		if c.MergedFromCount == 1 {
			c.MergedFromCount = 0
		}
		contacts = append(contacts, c)
	}
	return contacts, eris.Wrap(rows.Err(), "sqlite: list contacts iterate")
}

// helpers

func marshalExtras(c model.ContactRecord) (string, string, error) {
	var emails, phones string
	if len(c.OtherEmails) > 0 {
		b, err := json.Marshal(c.OtherEmails)
		if err != nil {
			return "", "", eris.Wrap(err, "store: marshal other emails")
		}
		emails = string(b)
	}
	if len(c.OtherPhones) > 0 {
		b, err := json.Marshal(c.OtherPhones)
		if err != nil {
			return "", "", eris.Wrap(err, "store: marshal other phones")
		}
		phones = string(b)
	}
	return emails, phones, nil
}

func unmarshalExtras(emails, phones string, c *model.ContactRecord) error {
	if emails != "" {
		if err := json.Unmarshal([]byte(emails), &c.OtherEmails); err != nil {
			return eris.Wrap(err, "store: unmarshal other emails")
		}
	}
	if phones != "" {
		if err := json.Unmarshal([]byte(phones), &c.OtherPhones); err != nil {
			return eris.Wrap(err, "store: unmarshal other phones")
		}
	}
	return nil
}
