package server

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/relic-ai/notesmith/internal/confluence"
	nerrors "github.com/relic-ai/notesmith/internal/errors"
	"github.com/relic-ai/notesmith/internal/health"
	"github.com/relic-ai/notesmith/internal/jira"
	"github.com/relic-ai/notesmith/internal/llm"
	"github.com/relic-ai/notesmith/internal/metrics"
	"github.com/relic-ai/notesmith/internal/notes"
	"github.com/relic-ai/notesmith/internal/resolve"
	"github.com/relic-ai/notesmith/internal/settings"
	"github.com/relic-ai/notesmith/internal/worklog"
)

// envelope is the uniform response body of every API operation.
type envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func respond(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusOK).JSON(envelope{
		Status:  fiber.StatusOK,
		Message: "Operation successful",
		Data:    data,
	})
}

func respondError(c *fiber.Ctx, code int, message string) error {
	return c.Status(code).JSON(envelope{
		Status:  code,
		Message: message,
		Data:    nil,
	})
}

// respondFailure maps the error taxonomy onto HTTP status codes.
func respondFailure(c *fiber.Ctx, err error) error {
	var apiErr *nerrors.APIError
	switch {
	case errors.Is(err, nerrors.ErrInvalidInput), errors.Is(err, nerrors.ErrConfigMissing):
		return respondError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, nerrors.ErrNotFound):
		return respondError(c, fiber.StatusNotFound, err.Error())
	case errors.As(err, &apiErr):
		return respondError(c, fiber.StatusBadGateway, err.Error())
	default:
		return respondError(c, fiber.StatusInternalServerError, err.Error())
	}
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	store   *settings.Store
	checker *health.Checker
	metrics *metrics.Metrics
	limit   int
	timeout time.Duration
	logger  zerolog.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(store *settings.Store, checker *health.Checker, m *metrics.Metrics, limit int, timeout time.Duration, logger zerolog.Logger) *Handlers {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handlers{
		store:   store,
		checker: checker,
		metrics: m,
		limit:   limit,
		timeout: timeout,
		logger:  logger.With().Str("component", "handlers").Logger(),
	}
}

// clients bundles the upstream clients built from the current settings. They
// are rebuilt per request so a settings save takes effect immediately.
type clients struct {
	jira       *jira.Client
	llm        *llm.Client
	confluence *confluence.Client
	resolver   *resolve.Resolver
	fetcher    *worklog.Fetcher
	summarizer *notes.Summarizer
}

func (h *Handlers) buildClients(ctx context.Context) (*clients, error) {
	st, err := h.store.Get(ctx)
	if err != nil {
		return nil, err
	}

	auth := &jira.BasicAuth{Email: st.JiraAuthUserEmail, APIToken: st.JiraAPIKey}
	jc := jira.NewClient(st.JiraOrgURL, auth, h.timeout, h.logger)
	llmOpts := []llm.Option{llm.WithLogger(h.logger)}
	if h.metrics != nil {
		llmOpts = append(llmOpts, llm.WithRecorder(h.metrics))
	}
	lc := llm.NewClient(st.LlamaAPIURL, st.LlamaModel, llmOpts...)
	cc := confluence.NewClient(st.JiraOrgURL, auth, h.timeout, h.logger)
	if h.metrics != nil {
		jc.SetRecorder(h.metrics)
		cc.SetRecorder(h.metrics)
	}

	return &clients{
		jira:       jc,
		llm:        lc,
		confluence: cc,
		resolver:   resolve.New(jc, h.limit, h.logger),
		fetcher:    worklog.NewFetcher(jc, h.logger),
		summarizer: notes.NewSummarizer(jc, lc, h.limit, h.logger),
	}, nil
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	results, ready := h.checker.Ready(c.Context())
	status := "ready"
	code := fiber.StatusOK
	if !ready {
		status = "not_ready"
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{"status": status, "checks": results})
}

// ListProjects handles GET /api/v1/projects.
func (h *Handlers) ListProjects(c *fiber.Ctx) error {
	cl, err := h.buildClients(c.Context())
	if err != nil {
		return respondFailure(c, err)
	}
	projects, err := cl.jira.ListProjects(c.Context())
	if err != nil {
		return respondFailure(c, err)
	}
	return respond(c, projects)
}

// ListBoards handles GET /api/v1/boards. With ?project=KEY it scopes to one
// project, otherwise it fans out over all projects.
func (h *Handlers) ListBoards(c *fiber.Ctx) error {
	cl, err := h.buildClients(c.Context())
	if err != nil {
		return respondFailure(c, err)
	}

	if key := c.Query("project"); key != "" {
		boards, err := cl.jira.ListBoards(c.Context(), key)
		if err != nil {
			return respondFailure(c, err)
		}
		return respond(c, boards)
	}

	boards, err := cl.resolver.BoardsForAllProjects(c.Context())
	if err != nil {
		return respondFailure(c, err)
	}
	return respond(c, boards)
}

// ListSprints handles GET /api/v1/sprints. With ?board=ID it scopes to one
// board, otherwise it fans out over every board of every project.
func (h *Handlers) ListSprints(c *fiber.Ctx) error {
	cl, err := h.buildClients(c.Context())
	if err != nil {
		return respondFailure(c, err)
	}

	if board := c.Query("board"); board != "" {
		boardID, err := strconv.ParseInt(board, 10, 64)
		if err != nil {
			return respondError(c, fiber.StatusBadRequest, "board must be a numeric id")
		}
		sprints, err := cl.jira.ListSprints(c.Context(), boardID)
		if err != nil {
			return respondFailure(c, err)
		}
		return respond(c, sprints)
	}

	sprints, err := cl.resolver.SprintsForAllBoards(c.Context())
	if err != nil {
		return respondFailure(c, err)
	}
	return respond(c, sprints)
}

// ListMembers handles GET /api/v1/members?project=Name.
func (h *Handlers) ListMembers(c *fiber.Ctx) error {
	project := c.Query("project")
	if project == "" {
		return respondError(c, fiber.StatusBadRequest, "project query parameter is required")
	}

	cl, err := h.buildClients(c.Context())
	if err != nil {
		return respondFailure(c, err)
	}
	members, err := cl.resolver.ProjectMembers(c.Context(), project)
	if err != nil {
		return respondFailure(c, err)
	}
	return respond(c, members)
}

// ListUsers handles GET /api/v1/users.
func (h *Handlers) ListUsers(c *fiber.Ctx) error {
	cl, err := h.buildClients(c.Context())
	if err != nil {
		return respondFailure(c, err)
	}
	users, err := cl.jira.ListUsers(c.Context())
	if err != nil {
		return respondFailure(c, err)
	}
	return respond(c, users)
}

// GetSettings handles GET /api/v1/settings.
func (h *Handlers) GetSettings(c *fiber.Ctx) error {
	st, err := h.store.Get(c.Context())
	if err != nil {
		return respondFailure(c, err)
	}
	return respond(c, st)
}

// SaveSettings handles PUT /api/v1/settings.
func (h *Handlers) SaveSettings(c *fiber.Ctx) error {
	var st settings.Settings
	if err := c.BodyParser(&st); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if err := h.store.Save(c.Context(), &st); err != nil {
		return respondFailure(c, err)
	}
	return respond(c, st)
}

// GenerateRequest selects the issues to summarize: either a date range over
// a project's work log or a sprint's membership. BoardID enables story-point
// resolution.
type GenerateRequest struct {
	ProjectKey string `json:"projectKey"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	SprintID   int64  `json:"sprintId"`
	BoardID    int64  `json:"boardId"`
	Extended   bool   `json:"extended"`
}

// GenerateResponse carries the flat records plus their per-assignee grouping.
type GenerateResponse struct {
	Records []notes.SummaryRecord `json:"records"`
	Groups  []notes.Group         `json:"groups"`
}

func (h *Handlers) generate(ctx context.Context, cl *clients, req GenerateRequest) (*GenerateResponse, error) {
	issues, err := cl.fetcher.Fetch(ctx, worklog.Query{
		ProjectKey: req.ProjectKey,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		SprintID:   req.SprintID,
		Extended:   req.Extended,
	})
	if err != nil {
		return nil, err
	}

	records := cl.summarizer.Summarize(ctx, issues, req.BoardID)
	if h.metrics != nil {
		h.metrics.IssuesSkipped.Add(float64(len(issues) - len(records)))
	}
	return &GenerateResponse{
		Records: records,
		Groups:  notes.GroupByAssignee(records),
	}, nil
}

// GenerateNotes handles POST /api/v1/notes.
func (h *Handlers) GenerateNotes(c *fiber.Ctx) error {
	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}

	cl, err := h.buildClients(c.Context())
	if err != nil {
		return respondFailure(c, err)
	}

	resp, err := h.generate(c.Context(), cl, req)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordNotes("error")
		}
		return respondFailure(c, err)
	}

	if h.metrics != nil {
		h.metrics.RecordNotes("ok")
	}
	return respond(c, resp)
}

// PublishRequest generates notes and posts them to Confluence as a page.
type PublishRequest struct {
	GenerateRequest
	SpaceKey  string `json:"spaceKey"`
	SpaceName string `json:"spaceName"`
	PageTitle string `json:"pageTitle"`
	Heading   string `json:"heading"`
}

// PublishResponse returns the created page next to the generated records.
type PublishResponse struct {
	Page    *confluence.Page      `json:"page"`
	Records []notes.SummaryRecord `json:"records"`
}

// PublishNotes handles POST /api/v1/notes/publish.
func (h *Handlers) PublishNotes(c *fiber.Ctx) error {
	var req PublishRequest
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if req.SpaceKey == "" || req.SpaceName == "" || req.PageTitle == "" {
		return respondError(c, fiber.StatusBadRequest, "spaceKey, spaceName and pageTitle are required")
	}

	cl, err := h.buildClients(c.Context())
	if err != nil {
		return respondFailure(c, err)
	}

	resp, err := h.generate(c.Context(), cl, req.GenerateRequest)
	if err != nil {
		return respondFailure(c, err)
	}

	tpl := notes.DefaultTemplate()
	if req.Heading != "" {
		tpl.Heading = req.Heading
	}
	content := notes.Render(resp.Records, tpl)

	page, err := cl.confluence.Publish(c.Context(), req.SpaceKey, req.SpaceName, req.PageTitle, content)
	if err != nil {
		return respondFailure(c, err)
	}

	if h.metrics != nil {
		h.metrics.PagesPublished.Inc()
	}
	return respond(c, PublishResponse{Page: page, Records: resp.Records})
}
