package jira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relic-ai/notesmith/internal/adf"
	nerrors "github.com/relic-ai/notesmith/internal/errors"
	"github.com/relic-ai/notesmith/internal/metrics"
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
	return client, server
}

func TestBasicAuth_Apply(t *testing.T) {
	auth := &BasicAuth{Email: "dev@example.com", APIToken: "token-123"}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, auth.Apply(req))

	want := base64.StdEncoding.EncodeToString([]byte("dev@example.com:token-123"))
	assert.Equal(t, "Basic "+want, req.Header.Get("Authorization"))
}

func TestClient_ListProjects(t *testing.T) {
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/3/project", r.URL.Path)
		json.NewEncoder(w).Encode([]Project{
			{Key: "APL", Name: "Apollo"},
			{Key: "ZEU", Name: "Zeus"},
		})
	})
	defer server.Close()

	projects, err := client.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "APL", projects[0].Key)
	assert.Equal(t, "Zeus", projects[1].Name)
}

func TestClient_ListBoards_ProjectScoped(t *testing.T) {
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/agile/1.0/board", r.URL.Path)
		assert.Equal(t, "APL", r.URL.Query().Get("projectKey"))
		json.NewEncoder(w).Encode(BoardList{Values: []Board{
			{ID: 7, Name: "Apollo board", Type: "scrum"},
		}})
	})
	defer server.Close()

	boards, err := client.ListBoards(context.Background(), "APL")
	require.NoError(t, err)
	require.Len(t, boards, 1)
	assert.Equal(t, int64(7), boards[0].ID)
}

func TestClient_ListSprints(t *testing.T) {
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/agile/1.0/board/7/sprint", r.URL.Path)
		json.NewEncoder(w).Encode(SprintList{Values: []Sprint{
			{ID: 42, Name: "Sprint 42", State: "active"},
		}})
	})
	defer server.Close()

	sprints, err := client.ListSprints(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, sprints, 1)
	assert.Equal(t, "Sprint 42", sprints[0].Name)
}

func TestClient_SprintIssues_MissingCollection(t *testing.T) {
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	defer server.Close()

	_, err := client.SprintIssues(context.Background(), 42)
	require.Error(t, err)
	var apiErr *nerrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "list sprint issues", apiErr.Op)
}

func TestClient_SearchIssues(t *testing.T) {
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/3/search", r.URL.Path)
		assert.Contains(t, r.URL.Query().Get("jql"), "worklogDate")
		assert.Equal(t, "key,summary,comment", r.URL.Query().Get("fields"))
		json.NewEncoder(w).Encode(SearchResult{
			Total: 1,
			Issues: []Issue{{
				Key: "APL-1",
				Fields: IssueFields{
					Summary:   "Fix login",
					TimeSpent: 3600,
					Status:    &Status{Name: "In Progress", StatusCategory: &StatusCategory{Name: "In Progress"}},
					Assignee:  &User{DisplayName: "Dana"},
					Comment: &CommentPage{Comments: []Comment{{
						Body: CommentBody{Type: "doc", Content: []adf.Node{{Type: "text", Text: "done soon"}}},
					}}},
				},
			}},
		})
	})
	defer server.Close()

	result, err := client.SearchIssues(context.Background(),
		`project = APL AND worklogDate >= 2026-01-01`, []string{"key", "summary", "comment"})
	require.NoError(t, err)
	require.Len(t, result.Issues, 1)
	issue := result.Issues[0]
	assert.Equal(t, "APL-1", issue.Key)
	assert.Equal(t, int64(3600), issue.Fields.TimeSpent)
	assert.Equal(t, "In Progress", issue.Fields.Status.StatusCategory.Name)
	require.NotNil(t, issue.Fields.Comment)
	assert.Equal(t, "done soon", issue.Fields.Comment.Comments[0].Body.Content[0].Text)
}

func TestClient_SearchIssues_MissingCollection(t *testing.T) {
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total": 0}`))
	})
	defer server.Close()

	_, err := client.SearchIssues(context.Background(), "project = APL", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issues collection")
}

func TestClient_SearchIssues_UpstreamError(t *testing.T) {
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad jql", http.StatusBadRequest)
	})
	defer server.Close()

	_, err := client.SearchIssues(context.Background(), "nonsense ===", nil)
	require.Error(t, err)
	var apiErr *nerrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "jira", apiErr.Service)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "bad jql")
}

func TestClient_ProjectRoles(t *testing.T) {
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/3/project/APL/role", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]string{
			"Administrator": "https://example.atlassian.net/rest/api/3/project/APL/role/10002",
			"Viewer":        "https://example.atlassian.net/rest/api/3/project/APL/role/10010",
		})
	})
	defer server.Close()

	roles, err := client.ProjectRoles(context.Background(), "APL")
	require.NoError(t, err)
	assert.Contains(t, roles, "Administrator")
}

func TestClient_RoleActors_AbsoluteURL(t *testing.T) {
	var client *Client
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/3/project/APL/role/10002", r.URL.Path)
		json.NewEncoder(w).Encode(RoleActors{Actors: []Actor{
			{DisplayName: "Dana", EmailAddress: "dana@example.com"},
		}})
	}))
	defer server.Close()
	client = NewClient(server.URL, &noopAuth{}, 5*time.Second, zerolog.Nop())
	client.SetHTTPClient(server.Client())

	actors, err := client.RoleActors(context.Background(), server.URL+"/rest/api/3/project/APL/role/10002")
	require.NoError(t, err)
	require.Len(t, actors, 1)
	assert.Equal(t, "Dana", actors[0].DisplayName)
}

func TestClient_EstimationField(t *testing.T) {
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/agile/1.0/issue/APL-1/estimation", r.URL.Path)
		assert.Equal(t, "7", r.URL.Query().Get("boardId"))
		json.NewEncoder(w).Encode(EstimationField{FieldID: "customfield_10016"})
	})
	defer server.Close()

	fieldID, err := client.EstimationField(context.Background(), "APL-1", 7)
	require.NoError(t, err)
	assert.Equal(t, "customfield_10016", fieldID)
}

func TestClient_EstimationField_MissingFieldID(t *testing.T) {
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	defer server.Close()

	_, err := client.EstimationField(context.Background(), "APL-1", 7)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fieldId")
}

func TestClient_IssueField(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string // raw JSON, "" for absent
	}{
		{"number value", `{"fields":{"customfield_10016":5}}`, "5"},
		{"null value", `{"fields":{"customfield_10016":null}}`, "null"},
		{"absent field", `{"fields":{}}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "customfield_10016", r.URL.Query().Get("fields"))
				w.Write([]byte(tt.body))
			})
			defer server.Close()

			raw, err := client.IssueField(context.Background(), "APL-1", "customfield_10016")
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(raw))
		})
	}
}

func TestClient_ListUsers_FiltersApps(t *testing.T) {
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/api/3/users/search", r.URL.Path)
		json.NewEncoder(w).Encode([]User{
			{AccountID: "1", DisplayName: "Dana", AccountType: "atlassian"},
			{AccountID: "2", DisplayName: "Bot", AccountType: "app"},
		})
	})
	defer server.Close()

	users, err := client.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Dana", users[0].DisplayName)
}

func TestClient_RecordsUpstreamCalls(t *testing.T) {
	status := http.StatusOK
	client, server := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, "nope", status)
			return
		}
		json.NewEncoder(w).Encode([]Project{{Key: "APL", Name: "Apollo"}})
	})
	defer server.Close()

	m := metrics.New()
	client.SetRecorder(m)

	_, err := client.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0,
		testutil.ToFloat64(m.UpstreamTotal.WithLabelValues("jira", "list projects", "200")))

	status = http.StatusForbidden
	_, err = client.ListProjects(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1.0,
		testutil.ToFloat64(m.UpstreamTotal.WithLabelValues("jira", "list projects", "403")))
}

func TestClient_InvalidInput(t *testing.T) {
	client := NewClient("https://example.atlassian.net", &noopAuth{}, 5*time.Second, zerolog.Nop())

	_, err := client.ListSprints(context.Background(), 0)
	assert.ErrorIs(t, err, nerrors.ErrInvalidInput)

	_, err = client.SearchIssues(context.Background(), "", nil)
	assert.ErrorIs(t, err, nerrors.ErrInvalidInput)

	_, err = client.EstimationField(context.Background(), "", 7)
	assert.ErrorIs(t, err, nerrors.ErrInvalidInput)
}
