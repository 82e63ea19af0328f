package confluence

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nerrors "github.com/relic-ai/notesmith/internal/errors"
	"github.com/relic-ai/notesmith/internal/retry"
)

type noopAuth struct{}

func (n *noopAuth) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Basic test")
	return nil
}

func setupTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	client := NewClient(server.URL, &noopAuth{}, 5*time.Second, zerolog.Nop())
	client.SetHTTPClient(server.Client())
	client.SetRetryConfig(retry.Config{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond})
	return client, server
}

func TestEnsureSpace_AlreadyExists(t *testing.T) {
	created := false
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/wiki/rest/api/space/NOTES":
			assert.Equal(t, "Basic test", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusOK)
		case "/wiki/rest/api/space":
			created = true
		}
	})
	defer server.Close()

	require.NoError(t, client.EnsureSpace(context.Background(), "NOTES", "Sprint Notes"))
	assert.False(t, created)
}

func TestEnsureSpace_CreatesOn404(t *testing.T) {
	var got spaceRequest
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost:
			assert.Equal(t, "/wiki/rest/api/space", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusCreated)
		}
	})
	defer server.Close()

	require.NoError(t, client.EnsureSpace(context.Background(), "NOTES", "Sprint Notes"))
	assert.Equal(t, "NOTES", got.Key)
	assert.Equal(t, "Sprint Notes", got.Name)
	assert.Equal(t, "plain", got.Description.Plain.Representation)
}

func TestEnsureSpace_LookupErrorIsNotCreate(t *testing.T) {
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		w.WriteHeader(http.StatusForbidden)
	})
	defer server.Close()

	err := client.EnsureSpace(context.Background(), "NOTES", "Sprint Notes")

	var apiErr *nerrors.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
}

func TestCreatePage(t *testing.T) {
	var got pageRequest
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/wiki/rest/api/content", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(Page{ID: "98311", Type: "page", Title: got.Title})
	})
	defer server.Close()

	page, err := client.CreatePage(context.Background(), "NOTES", "Sprint 14", "<div>notes</div>")
	require.NoError(t, err)

	assert.Equal(t, "98311", page.ID)
	assert.Equal(t, "page", got.Type)
	assert.Equal(t, "NOTES", got.Space.Key)
	assert.Equal(t, "storage", got.Body.Storage.Representation)
	assert.Equal(t, "<div>notes</div>", got.Body.Storage.Value)
}

func TestCreatePage_InvalidInput(t *testing.T) {
	client := NewClient("http://confluence.local", &noopAuth{}, time.Second, zerolog.Nop())
	_, err := client.CreatePage(context.Background(), "", "Title", "body")
	assert.ErrorIs(t, err, nerrors.ErrInvalidInput)
}

func TestPublish_RetriesTransientFailure(t *testing.T) {
	attempts := 0
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			w.WriteHeader(http.StatusOK)
		default:
			attempts++
			if attempts == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			json.NewEncoder(w).Encode(Page{ID: "7", Title: "Sprint 14"})
		}
	})
	defer server.Close()
	client.SetRetryConfig(retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond})

	page, err := client.Publish(context.Background(), "NOTES", "Sprint Notes", "Sprint 14", "<div/>")
	require.NoError(t, err)

	assert.Equal(t, "7", page.ID)
	assert.Equal(t, 2, attempts)
}

type captureRecorder struct {
	calls    []string
	observed int
}

func (r *captureRecorder) RecordUpstream(service, op, status string) {
	r.calls = append(r.calls, service+"/"+op+"/"+status)
}

func (r *captureRecorder) ObserveUpstream(service, op string, seconds float64) {
	r.observed++
}

func TestEnsureSpace_RecordsUpstreamCalls(t *testing.T) {
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	defer server.Close()

	rec := &captureRecorder{}
	client.SetRecorder(rec)

	require.NoError(t, client.EnsureSpace(context.Background(), "NOTES", "Sprint Notes"))
	assert.Equal(t, []string{"confluence/ensure_space/404", "confluence/create_space/200"}, rec.calls)
	assert.Equal(t, 2, rec.observed)
}

func TestPublish_SpaceFailureSkipsPage(t *testing.T) {
	pagePosts := 0
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/wiki/rest/api/content" {
			pagePosts++
		}
		w.WriteHeader(http.StatusForbidden)
	})
	defer server.Close()

	_, err := client.Publish(context.Background(), "NOTES", "Sprint Notes", "Sprint 14", "<div/>")

	require.Error(t, err)
	assert.Zero(t, pagePosts)
}
