// Package jira wraps the Jira REST and Agile APIs used by the work-log
// pipeline. The client performs exactly one authenticated call per operation
// and never retries; retry policy belongs to callers.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	nerrors "github.com/relic-ai/notesmith/internal/errors"
)

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// UpstreamRecorder observes upstream API calls. *metrics.Metrics satisfies it.
type UpstreamRecorder interface {
	RecordUpstream(service, op, status string)
	ObserveUpstream(service, op string, seconds float64)
}

// Client wraps the Jira REST API.
type Client struct {
	baseURL    string
	httpClient HTTPClient
	auth       Authenticator
	recorder   UpstreamRecorder
	logger     zerolog.Logger
}

// NewClient creates a new Jira API client.
func NewClient(baseURL string, auth Authenticator, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		auth:       auth,
		logger:     logger.With().Str("component", "jira").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(hc HTTPClient) {
	c.httpClient = hc
}

// SetRecorder attaches upstream call metrics; a nil recorder disables them.
func (c *Client) SetRecorder(r UpstreamRecorder) {
	c.recorder = r
}

func (c *Client) record(op, status string, elapsed time.Duration) {
	if c.recorder == nil {
		return
	}
	c.recorder.RecordUpstream("jira", op, status)
	c.recorder.ObserveUpstream("jira", op, elapsed.Seconds())
}

// BaseURL returns the base URL of the Jira instance.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do executes an authenticated API request against an absolute URL.
func (c *Client) do(ctx context.Context, op, method, rawURL string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if err := c.auth.Apply(req); err != nil {
		return nil, fmt.Errorf("applying auth: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(op, "error", time.Since(start))
		return nil, nerrors.WrapAPIError("jira", op, err)
	}
	c.record(op, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, nerrors.NewAPIError("jira", op, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return resp, nil
}

// get executes an authenticated GET against a path under the base URL.
func (c *Client) get(ctx context.Context, op, path string, q url.Values) (*http.Response, error) {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return c.do(ctx, op, http.MethodGet, u, nil)
}

// decodeResponse reads and decodes a JSON response.
func decodeResponse(op string, resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return nerrors.WrapAPIError("jira", op, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// ListProjects lists all projects visible to the credentials.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	const op = "list projects"
	resp, err := c.get(ctx, op, "/rest/api/3/project", nil)
	if err != nil {
		return nil, err
	}
	var projects []Project
	if err := decodeResponse(op, resp, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// ListBoards lists boards, optionally scoped to a project key.
func (c *Client) ListBoards(ctx context.Context, projectKey string) ([]Board, error) {
	const op = "list boards"
	q := url.Values{}
	if projectKey != "" {
		q.Set("projectKey", projectKey)
	}
	resp, err := c.get(ctx, op, "/rest/agile/1.0/board", q)
	if err != nil {
		return nil, err
	}
	var list BoardList
	if err := decodeResponse(op, resp, &list); err != nil {
		return nil, err
	}
	return list.Values, nil
}

// ListSprints lists the sprints of a board.
func (c *Client) ListSprints(ctx context.Context, boardID int64) ([]Sprint, error) {
	const op = "list sprints"
	if boardID <= 0 {
		return nil, fmt.Errorf("board id is required: %w", nerrors.ErrInvalidInput)
	}
	resp, err := c.get(ctx, op, "/rest/agile/1.0/board/"+strconv.FormatInt(boardID, 10)+"/sprint", nil)
	if err != nil {
		return nil, err
	}
	var list SprintList
	if err := decodeResponse(op, resp, &list); err != nil {
		return nil, err
	}
	return list.Values, nil
}

// SprintIssues lists the issues belonging to a sprint.
func (c *Client) SprintIssues(ctx context.Context, sprintID int64) ([]Issue, error) {
	const op = "list sprint issues"
	if sprintID <= 0 {
		return nil, fmt.Errorf("sprint id is required: %w", nerrors.ErrInvalidInput)
	}
	resp, err := c.get(ctx, op, "/rest/agile/1.0/sprint/"+strconv.FormatInt(sprintID, 10)+"/issue", nil)
	if err != nil {
		return nil, err
	}
	var list IssueList
	if err := decodeResponse(op, resp, &list); err != nil {
		return nil, err
	}
	if list.Issues == nil {
		return nil, nerrors.NewAPIError("jira", op, http.StatusOK, "response lacks issues collection")
	}
	return list.Issues, nil
}

// SearchIssues runs a JQL search with an explicit field projection.
func (c *Client) SearchIssues(ctx context.Context, jql string, fields []string) (*SearchResult, error) {
	const op = "search issues"
	if jql == "" {
		return nil, fmt.Errorf("jql is required: %w", nerrors.ErrInvalidInput)
	}
	q := url.Values{}
	q.Set("jql", jql)
	if len(fields) > 0 {
		q.Set("fields", strings.Join(fields, ","))
	}
	resp, err := c.get(ctx, op, "/rest/api/3/search", q)
	if err != nil {
		return nil, err
	}
	var result SearchResult
	if err := decodeResponse(op, resp, &result); err != nil {
		return nil, err
	}
	if result.Issues == nil {
		return nil, nerrors.NewAPIError("jira", op, http.StatusOK, "response lacks issues collection")
	}
	return &result, nil
}

// ProjectRoles maps role names to their membership URLs for a project.
func (c *Client) ProjectRoles(ctx context.Context, projectKey string) (map[string]string, error) {
	const op = "list project roles"
	if projectKey == "" {
		return nil, fmt.Errorf("project key is required: %w", nerrors.ErrInvalidInput)
	}
	resp, err := c.get(ctx, op, "/rest/api/3/project/"+url.PathEscape(projectKey)+"/role", nil)
	if err != nil {
		return nil, err
	}
	roles := map[string]string{}
	if err := decodeResponse(op, resp, &roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// RoleActors fetches the members of a role by its absolute role URL, as
// returned by ProjectRoles.
func (c *Client) RoleActors(ctx context.Context, roleURL string) ([]Actor, error) {
	const op = "list role members"
	if roleURL == "" {
		return nil, fmt.Errorf("role url is required: %w", nerrors.ErrInvalidInput)
	}
	resp, err := c.do(ctx, op, http.MethodGet, roleURL, nil)
	if err != nil {
		return nil, err
	}
	var actors RoleActors
	if err := decodeResponse(op, resp, &actors); err != nil {
		return nil, err
	}
	return actors.Actors, nil
}

// EstimationField resolves the board-specific estimation custom field id for
// an issue.
func (c *Client) EstimationField(ctx context.Context, issueKey string, boardID int64) (string, error) {
	const op = "get estimation field"
	if issueKey == "" || boardID <= 0 {
		return "", fmt.Errorf("issue key and board id are required: %w", nerrors.ErrInvalidInput)
	}
	q := url.Values{}
	q.Set("boardId", strconv.FormatInt(boardID, 10))
	resp, err := c.get(ctx, op, "/rest/agile/1.0/issue/"+url.PathEscape(issueKey)+"/estimation", q)
	if err != nil {
		return "", err
	}
	var field EstimationField
	if err := decodeResponse(op, resp, &field); err != nil {
		return "", err
	}
	if field.FieldID == "" {
		return "", nerrors.NewAPIError("jira", op, http.StatusOK, "response lacks fieldId")
	}
	return field.FieldID, nil
}

// IssueField fetches a single field's raw JSON value for an issue. The value
// is json.RawMessage because estimation fields are dynamically typed; a field
// absent from the response returns nil without error.
func (c *Client) IssueField(ctx context.Context, issueKey, fieldID string) (json.RawMessage, error) {
	const op = "get issue field"
	if issueKey == "" || fieldID == "" {
		return nil, fmt.Errorf("issue key and field id are required: %w", nerrors.ErrInvalidInput)
	}
	q := url.Values{}
	q.Set("fields", fieldID)
	resp, err := c.get(ctx, op, "/rest/agile/1.0/issue/"+url.PathEscape(issueKey), q)
	if err != nil {
		return nil, err
	}
	var raw issueFieldsRaw
	if err := decodeResponse(op, resp, &raw); err != nil {
		return nil, err
	}
	if raw.Fields == nil {
		return nil, nerrors.NewAPIError("jira", op, http.StatusOK, "response lacks fields")
	}
	return raw.Fields[fieldID], nil
}

// ListUsers lists all non-app Jira accounts, for the settings surface.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	const op = "list users"
	resp, err := c.get(ctx, op, "/rest/api/3/users/search", nil)
	if err != nil {
		return nil, err
	}
	var users []User
	if err := decodeResponse(op, resp, &users); err != nil {
		return nil, err
	}
	filtered := users[:0]
	for _, u := range users {
		if u.AccountType != "app" {
			filtered = append(filtered, u)
		}
	}
	return filtered, nil
}
