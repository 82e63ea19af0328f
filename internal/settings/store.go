// Package settings persists the pipeline's Jira, Confluence and AI
// connection settings in a single-row SQLite table and caches them in
// memory between saves.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	nerrors "github.com/relic-ai/notesmith/internal/errors"
)

// Settings holds the user-configured connection parameters.
type Settings struct {
	LlamaModel        string   `json:"llamaModel"`
	LlamaAPIURL       string   `json:"llamaApiUrl"`
	JiraOrgURL        string   `json:"jiraOrgUrl"`
	JiraAuthUserEmail string   `json:"jiraAuthUserEmail"`
	JiraAPIKey        string   `json:"jiraApiKey"`
	PreferredProject  string   `json:"preferredProject"`
	PreferredUsers    []string `json:"preferredUsers"`
}

// Store manages the SQLite-backed settings row.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger

	mu     sync.RWMutex
	cached *Settings
}

// New opens (or creates) the SQLite database and runs migrations.
func New(dbPath string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{
		db:     db,
		logger: logger.With().Str("component", "settings").Logger(),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	s.logger.Info().Str("path", dbPath).Msg("settings store initialized")
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		llama_model TEXT NOT NULL DEFAULT '',
		llama_api_url TEXT NOT NULL DEFAULT '',
		jira_org_url TEXT NOT NULL DEFAULT '',
		jira_auth_user_email TEXT NOT NULL DEFAULT '',
		jira_api_key TEXT NOT NULL DEFAULT '',
		preferred_project TEXT NOT NULL DEFAULT '',
		preferred_users TEXT NOT NULL DEFAULT '',
		updated_at INTEGER NOT NULL
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create settings table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the stored settings, serving repeat reads from cache until
// Save or Invalidate. A database with no settings row yet yields
// ErrConfigMissing.
func (s *Store) Get(ctx context.Context) (*Settings, error) {
	s.mu.RLock()
	if s.cached != nil {
		out := *s.cached
		s.mu.RUnlock()
		return &out, nil
	}
	s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT llama_model, llama_api_url, jira_org_url, jira_auth_user_email,
		       jira_api_key, preferred_project, preferred_users
		FROM settings WHERE id = 1`)

	var st Settings
	var users string
	err := row.Scan(&st.LlamaModel, &st.LlamaAPIURL, &st.JiraOrgURL,
		&st.JiraAuthUserEmail, &st.JiraAPIKey, &st.PreferredProject, &users)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nerrors.ConfigMissing("Jira connection")
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	st.PreferredUsers = splitUsers(users)

	s.mu.Lock()
	cached := st
	s.cached = &cached
	s.mu.Unlock()

	out := st
	return &out, nil
}

// Save validates and upserts the single settings row, refreshing the cache.
func (s *Store) Save(ctx context.Context, st *Settings) error {
	if err := validate(st); err != nil {
		return err
	}

	st.PreferredUsers = normalizeUsers(st.PreferredUsers)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, llama_model, llama_api_url, jira_org_url,
			jira_auth_user_email, jira_api_key, preferred_project,
			preferred_users, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			llama_model = excluded.llama_model,
			llama_api_url = excluded.llama_api_url,
			jira_org_url = excluded.jira_org_url,
			jira_auth_user_email = excluded.jira_auth_user_email,
			jira_api_key = excluded.jira_api_key,
			preferred_project = excluded.preferred_project,
			preferred_users = excluded.preferred_users,
			updated_at = excluded.updated_at`,
		st.LlamaModel, st.LlamaAPIURL, st.JiraOrgURL, st.JiraAuthUserEmail,
		st.JiraAPIKey, st.PreferredProject, strings.Join(st.PreferredUsers, ","),
		time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}

	s.mu.Lock()
	cached := *st
	s.cached = &cached
	s.mu.Unlock()

	s.logger.Info().Msg("settings saved")
	return nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Invalidate drops the cache so the next Get rereads the database.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}

func validate(st *Settings) error {
	if st == nil || strings.TrimSpace(st.JiraOrgURL) == "" {
		return fmt.Errorf("%w: the Jira organization URL is required", nerrors.ErrInvalidInput)
	}
	if !strings.HasPrefix(st.JiraOrgURL, "https://") && !strings.HasPrefix(st.JiraOrgURL, "http://") {
		return fmt.Errorf("%w: the Jira organization URL must start with http:// or https://", nerrors.ErrInvalidInput)
	}
	if strings.TrimSpace(st.JiraAPIKey) == "" {
		return fmt.Errorf("%w: the Jira API key is required", nerrors.ErrInvalidInput)
	}
	return nil
}

func splitUsers(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return normalizeUsers(strings.Split(raw, ","))
}

func normalizeUsers(users []string) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		if trimmed := strings.TrimSpace(u); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
