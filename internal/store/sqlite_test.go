package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DjEugeny/contact-parser-sub001/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLite_CreateAndListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.Run{
		Source:         "inbox",
		Emails:         12,
		ContactsFound:  30,
		ContactsUnique: 18,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.StartedAt.IsZero())

	_, err = s.CreateRun(ctx, model.Run{Source: "archive", StartedAt: time.Now().UTC().Add(time.Minute)})
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "archive", runs[0].Source)

	runs, err = s.ListRuns(ctx, RunFilter{Source: "inbox"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 18, runs[0].ContactsUnique)
}

func TestSQLite_SaveAndListContacts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.Run{Source: "inbox"})
	require.NoError(t, err)

	contacts := []model.ContactRecord{
		{
			Name:            "Иван Петров",
			Email:           "ivan@example.ru",
			Phone:           "+7 495 123-45-67",
			Organization:    "ООО Ромашка",
			Confidence:      0.9,
			Source:          "msg-001",
			OtherEmails:     []string{"i.petrov@example.ru"},
			OtherPhones:     []string{"8 (495) 123-45-67"},
			MergedFromCount: 2,
		},
		{Name: "Мария Сидорова", Confidence: 0.4, Source: "msg-002"},
	}
	require.NoError(t, s.SaveContacts(ctx, run.ID, contacts))

	got, err := s.ListContacts(ctx, ContactFilter{RunID: run.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Иван Петров", got[0].Name)
	assert.Equal(t, []string{"i.petrov@example.ru"}, got[0].OtherEmails)
	assert.Equal(t, []string{"8 (495) 123-45-67"}, got[0].OtherPhones)
	assert.Equal(t, 2, got[0].MergedFromCount)

	assert.Nil(t, got[1].OtherEmails)
	// A stored singleton reads back as unmerged.
	assert.Equal(t, 0, got[1].MergedFromCount)
}

func TestSQLite_ListContactsMinConfidence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, model.Run{Source: "inbox"})
	require.NoError(t, err)

	require.NoError(t, s.SaveContacts(ctx, run.ID, []model.ContactRecord{
		{Name: "A", Confidence: 0.9},
		{Name: "B", Confidence: 0.3},
	}))

	got, err := s.ListContacts(ctx, ContactFilter{RunID: run.ID, MinConfidence: 0.5})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Name)
}

func TestSQLite_SaveContactsEmpty(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveContacts(context.Background(), "no-such-run", nil))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown driver")
}
