// Package llm talks to an Ollama-compatible chat endpoint to turn raw issue
// comment threads into a one-line progress remark.
package llm

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
)

const defaultTimeout = 120 * time.Second

// UpstreamRecorder observes upstream API calls. *metrics.Metrics satisfies it.
type UpstreamRecorder interface {
	RecordUpstream(service, op, status string)
	ObserveUpstream(service, op string, seconds float64)
}

// Client sends chat completions to a LLAMA-style /api/chat endpoint.
type Client struct {
	endpoint string
	model    string
	client   *http.Client
	recorder UpstreamRecorder
	logger   zerolog.Logger
}

// Option configures the client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Client) { p.client = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(p *Client) { p.logger = l }
}

func WithRecorder(r UpstreamRecorder) Option {
	return func(p *Client) { p.recorder = r }
}

// NewClient constructs a chat client for the given endpoint and model.
func NewClient(endpoint, model string, opts ...Option) *Client {
	p := &Client{
		endpoint: strings.TrimSuffix(endpoint, "/"),
		model:    model,
		client:   &http.Client{Timeout: defaultTimeout},
		logger:   zerolog.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	p.logger = p.logger.With().Str("component", "llm").Logger()
	return p
}

func (p *Client) record(status string, elapsed time.Duration) {
	if p.recorder == nil {
		return
	}
	p.recorder.RecordUpstream("llm", "chat", status)
	p.recorder.ObserveUpstream("llm", "chat", elapsed.Seconds())
}

// ---- wire types ----

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error,omitempty"`
}

const systemPrompt = "You are a helpful AI assistant."

const promptTemplate = "Analyze the provided comments of the JIRA issue titled %q. " +
	"Provide an optimized current task status of the issue in a single line. " +
	"The status of the JIRA issue is %q. Consider the JIRA title and status for " +
	"optimal and consistent result, do not include them in the result. Also, do " +
	"not add any prefix, suffix, suggestions or note."

// Annotate produces a one-line status remark for an issue from its extracted
// comment text. Issues without comments get no remark and no API call.
func (p *Client) Annotate(ctx context.Context, summary, status, comments string) (string, error) {
	if strings.TrimSpace(comments) == "" {
		return "", nil
	}
	if p.endpoint == "" {
		return "", nerrors.ConfigMissing("AI endpoint")
	}
	if p.model == "" {
		return "", nerrors.ConfigMissing("AI model")
	}

	// The comments travel as their own user message ahead of the instruction.
	cr := chatRequest{
		Model: p.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: comments},
			{Role: "user", Content: fmt.Sprintf(promptTemplate, summary, status)},
		},
		Stream: false,
	}

	body, err := json.Marshal(cr)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		p.record("error", time.Since(start))
		return "", nerrors.WrapAPIError("llm", "chat", err)
	}
	defer resp.Body.Close()
	p.record(strconv.Itoa(resp.StatusCode), time.Since(start))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nerrors.WrapAPIError("llm", "chat", err)
	}
	if resp.StatusCode >= 400 {
		return "", nerrors.NewAPIError("llm", "chat", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var cr2 chatResponse
	if err := json.Unmarshal(raw, &cr2); err != nil {
		return "", nerrors.NewAPIError("llm", "chat", resp.StatusCode, "malformed chat response")
	}
	if cr2.Error != "" {
		return "", nerrors.NewAPIError("llm", "chat", resp.StatusCode, cr2.Error)
	}
	reply := strings.TrimSpace(cr2.Message.Content)
	if reply == "" {
		return "", nerrors.NewAPIError("llm", "chat", resp.StatusCode, "empty chat reply")
	}

	p.logger.Debug().
		Str("model", p.model).
		Int("reply_len", len(reply)).
		Msg("chat complete")
	return reply, nil
}
