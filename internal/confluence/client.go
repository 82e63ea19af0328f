// Package confluence publishes generated notes as Confluence pages. The
// client reuses the Jira site credentials; Confluence lives under the same
// organization URL behind the /wiki prefix.
package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	nerrors "github.com/relic-ai/notesmith/internal/errors"
	"github.com/relic-ai/notesmith/internal/jira"
	"github.com/relic-ai/notesmith/internal/retry"
)

const spaceDescription = "Work-log summary space generated by Notesmith."

// Client wraps the Confluence REST API of a Jira cloud site.
type Client struct {
	baseURL    string
	httpClient jira.HTTPClient
	auth       jira.Authenticator
	retryCfg   retry.Config
	recorder   jira.UpstreamRecorder
	logger     zerolog.Logger
}

// NewClient creates a Confluence client rooted at the organization URL.
func NewClient(baseURL string, auth jira.Authenticator, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		auth:       auth,
		retryCfg:   retry.DefaultConfig(),
		logger:     logger.With().Str("component", "confluence").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(hc jira.HTTPClient) {
	c.httpClient = hc
}

// SetRetryConfig overrides the publish retry policy.
func (c *Client) SetRetryConfig(cfg retry.Config) {
	c.retryCfg = cfg
}

// SetRecorder attaches upstream call metrics; a nil recorder disables them.
func (c *Client) SetRecorder(r jira.UpstreamRecorder) {
	c.recorder = r
}

func (c *Client) record(op, status string, elapsed time.Duration) {
	if c.recorder == nil {
		return
	}
	c.recorder.RecordUpstream("confluence", op, status)
	c.recorder.ObserveUpstream("confluence", op, elapsed.Seconds())
}

// Page is the created Confluence page.
type Page struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
}

type spaceRequest struct {
	Key         string          `json:"key"`
	Name        string          `json:"name"`
	Description descriptionBody `json:"description"`
}

type descriptionBody struct {
	Plain plainValue `json:"plain"`
}

type plainValue struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

type pageRequest struct {
	Type  string   `json:"type"`
	Title string   `json:"title"`
	Space spaceRef `json:"space"`
	Body  pageBody `json:"body"`
}

type spaceRef struct {
	Key string `json:"key"`
}

type pageBody struct {
	Storage storageValue `json:"storage"`
}

type storageValue struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

func (c *Client) do(ctx context.Context, op, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", op, err)
	}
	if err := c.auth.Apply(req); err != nil {
		return nil, fmt.Errorf("authenticate %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(op, "error", time.Since(start))
		return nil, nerrors.WrapAPIError("confluence", op, err)
	}
	c.record(op, strconv.Itoa(resp.StatusCode), time.Since(start))
	return resp, nil
}

// EnsureSpace verifies the space exists, creating it when the lookup returns
// 404. Any other lookup status is an upstream error.
func (c *Client) EnsureSpace(ctx context.Context, key, name string) error {
	if key == "" || name == "" {
		return fmt.Errorf("%w: space key and name are required", nerrors.ErrInvalidInput)
	}

	resp, err := c.do(ctx, "ensure_space", http.MethodGet, "/wiki/rest/api/space/"+key, nil)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		c.logger.Debug().Str("space", key).Msg("space exists")
		return nil
	case resp.StatusCode != http.StatusNotFound:
		return nerrors.NewAPIError("confluence", "ensure_space", resp.StatusCode, "space lookup failed")
	}

	body := spaceRequest{
		Key:  key,
		Name: name,
		Description: descriptionBody{
			Plain: plainValue{Value: spaceDescription, Representation: "plain"},
		},
	}
	resp, err = c.do(ctx, "create_space", http.MethodPost, "/wiki/rest/api/space", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return nerrors.NewAPIError("confluence", "create_space", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	c.logger.Info().Str("space", key).Str("name", name).Msg("space created")
	return nil
}

// CreatePage creates a page under the space with the content in Confluence
// storage format.
func (c *Client) CreatePage(ctx context.Context, spaceKey, title, content string) (*Page, error) {
	if spaceKey == "" || title == "" {
		return nil, fmt.Errorf("%w: space key and page title are required", nerrors.ErrInvalidInput)
	}

	body := pageRequest{
		Type:  "page",
		Title: title,
		Space: spaceRef{Key: spaceKey},
		Body: pageBody{
			Storage: storageValue{Value: content, Representation: "storage"},
		},
	}
	resp, err := c.do(ctx, "create_page", http.MethodPost, "/wiki/rest/api/content", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nerrors.WrapAPIError("confluence", "create_page", err)
	}
	if resp.StatusCode >= 400 {
		return nil, nerrors.NewAPIError("confluence", "create_page", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var page Page
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, nerrors.NewAPIError("confluence", "create_page", resp.StatusCode, "malformed page response")
	}

	c.logger.Info().
		Str("space", spaceKey).
		Str("title", title).
		Str("page_id", page.ID).
		Msg("page created")
	return &page, nil
}

// Publish ensures the space and creates the page, retrying transient
// upstream failures.
func (c *Client) Publish(ctx context.Context, spaceKey, spaceName, title, content string) (*Page, error) {
	err := retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		return c.EnsureSpace(ctx, spaceKey, spaceName)
	})
	if err != nil {
		return nil, err
	}

	var page *Page
	err = retry.Do(ctx, c.retryCfg, func(ctx context.Context) error {
		var perr error
		page, perr = c.CreatePage(ctx, spaceKey, title, content)
		return perr
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}
