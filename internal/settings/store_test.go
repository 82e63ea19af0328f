package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nerrors "github.com/relic-ai/notesmith/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "settings.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func validSettings() *Settings {
	return &Settings{
		LlamaModel:        "llama3.2",
		LlamaAPIURL:       "http://localhost:11434",
		JiraOrgURL:        "https://acme.atlassian.net",
		JiraAuthUserEmail: "dev@acme.com",
		JiraAPIKey:        "token-123",
		PreferredProject:  "APL",
		PreferredUsers:    []string{"u1", "u2"},
	}
}

func TestNew_CreatesSettingsTable(t *testing.T) {
	store := newTestStore(t)

	var count int
	err := store.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='settings'").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestGet_EmptyDatabase(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background())
	assert.ErrorIs(t, err, nerrors.ErrConfigMissing)
}

func TestSaveAndGet_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, validSettings()))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, validSettings(), got)
}

func TestSave_Upserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, validSettings()))

	updated := validSettings()
	updated.LlamaModel = "llama3.3"
	updated.PreferredUsers = nil
	require.NoError(t, store.Save(ctx, updated))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "llama3.3", got.LlamaModel)
	assert.Nil(t, got.PreferredUsers)

	var rows int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM settings").Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestSave_Validation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"missing org url", func(s *Settings) { s.JiraOrgURL = "  " }},
		{"bad scheme", func(s *Settings) { s.JiraOrgURL = "acme.atlassian.net" }},
		{"missing api key", func(s *Settings) { s.JiraAPIKey = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := validSettings()
			tt.mutate(st)
			assert.ErrorIs(t, store.Save(ctx, st), nerrors.ErrInvalidInput)
		})
	}
}

func TestSave_TrimsPreferredUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	st := validSettings()
	st.PreferredUsers = []string{" u1 ", "", "u2"}
	require.NoError(t, store.Save(ctx, st))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, got.PreferredUsers)
}

func TestGet_CacheAndInvalidate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, validSettings()))
	_, err := store.Get(ctx)
	require.NoError(t, err)

	// A write behind the store's back is invisible until invalidation.
	_, err = store.db.Exec("UPDATE settings SET llama_model = 'other' WHERE id = 1")
	require.NoError(t, err)

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", got.LlamaModel)

	store.Invalidate()
	got, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "other", got.LlamaModel)
}
