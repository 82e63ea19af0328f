// Package notes turns fetched work-log issues into per-issue summary records
// and groups them for rendering.
package notes

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/relic-ai/notesmith/internal/adf"
	"github.com/relic-ai/notesmith/internal/fanout"
	"github.com/relic-ai/notesmith/internal/jira"
	"github.com/relic-ai/notesmith/pkg/lru"
)

// estimationCacheSize bounds the board-to-field-id cache. Boards are few;
// the cap only guards against unbounded growth on long-lived processes.
const estimationCacheSize = 64

// UnassignedName labels records whose issue has no assignee.
const UnassignedName = "Unassigned"

// SummaryRecord is one row of the generated notes.
type SummaryRecord struct {
	Key        string   `json:"key"`
	Summary    string   `json:"summary"`
	Assignee   string   `json:"assignee"`
	SpentTime  int64    `json:"spentTime"`
	StoryPoint *float64 `json:"storyPoint"`
	Status     string   `json:"status"`
	AIRemarks  string   `json:"aiRemarks"`
}

// JiraAPI is the slice of the Jira client the summarizer needs.
type JiraAPI interface {
	EstimationField(ctx context.Context, issueKey string, boardID int64) (string, error)
	IssueField(ctx context.Context, issueKey, fieldID string) (json.RawMessage, error)
}

// Annotator produces a one-line AI remark from an issue's comment text.
type Annotator interface {
	Annotate(ctx context.Context, summary, status, comments string) (string, error)
}

// Summarizer builds summary records, one per issue, fanning the per-issue
// work out concurrently.
type Summarizer struct {
	jira   JiraAPI
	ai     Annotator
	limit  int
	fields *lru.Cache[int64, string] // boardID -> estimation field id
	logger zerolog.Logger
}

// NewSummarizer creates a summarizer. limit bounds the per-issue concurrency.
func NewSummarizer(api JiraAPI, ai Annotator, limit int, logger zerolog.Logger) *Summarizer {
	return &Summarizer{
		jira:   api,
		ai:     ai,
		limit:  limit,
		fields: lru.New[int64, string](estimationCacheSize),
		logger: logger.With().Str("component", "notes").Logger(),
	}
}

// Summarize builds one record per issue, in input order. An issue whose
// story-point lookup or AI annotation fails is dropped from the output while
// the remaining issues still produce records. boardID 0 skips story points.
func (s *Summarizer) Summarize(ctx context.Context, issues []jira.Issue, boardID int64) []SummaryRecord {
	records := fanout.Collect(ctx, s.limit, len(issues), func(ctx context.Context, i int) (SummaryRecord, error) {
		return s.summarizeIssue(ctx, issues[i], boardID)
	}, func(i int, err error) {
		s.logger.Warn().
			Str("issue", issues[i].Key).
			Err(err).
			Msg("issue skipped")
	})

	s.logger.Info().
		Int("issues", len(issues)).
		Int("records", len(records)).
		Msg("summarized work log")
	return records
}

func (s *Summarizer) summarizeIssue(ctx context.Context, issue jira.Issue, boardID int64) (SummaryRecord, error) {
	rec := SummaryRecord{
		Key:       issue.Key,
		Summary:   issue.Fields.Summary,
		Assignee:  UnassignedName,
		SpentTime: issue.Fields.TimeSpent,
	}
	if issue.Fields.Assignee != nil && issue.Fields.Assignee.DisplayName != "" {
		rec.Assignee = issue.Fields.Assignee.DisplayName
	}
	if issue.Fields.Status != nil {
		rec.Status = issue.Fields.Status.Name
	}

	if boardID > 0 {
		point, err := s.storyPoint(ctx, issue.Key, boardID)
		if err != nil {
			return SummaryRecord{}, fmt.Errorf("story point for %s: %w", issue.Key, err)
		}
		rec.StoryPoint = point
	}

	comments := extractComments(issue)
	remark, err := s.ai.Annotate(ctx, rec.Summary, rec.Status, comments)
	if err != nil {
		return SummaryRecord{}, fmt.Errorf("annotate %s: %w", issue.Key, err)
	}
	rec.AIRemarks = remark
	return rec, nil
}

// storyPoint resolves the board's estimation field and reads its value off
// the issue. A null or absent value means the issue is unestimated. The field
// id is a per-board constant, so it is cached across issues.
func (s *Summarizer) storyPoint(ctx context.Context, issueKey string, boardID int64) (*float64, error) {
	fieldID, ok := s.fields.Get(boardID)
	if !ok {
		var err error
		fieldID, err = s.jira.EstimationField(ctx, issueKey, boardID)
		if err != nil {
			return nil, err
		}
		s.fields.Put(boardID, fieldID)
	}
	raw, err := s.jira.IssueField(ctx, issueKey, fieldID)
	if err != nil {
		return nil, err
	}
	return parseStoryPoint(raw)
}

func parseStoryPoint(raw json.RawMessage) (*float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("estimation value %q is not numeric", string(raw))
	}
	return &v, nil
}

func extractComments(issue jira.Issue) string {
	if issue.Fields.Comment == nil {
		return ""
	}
	bodies := make([][]adf.Node, 0, len(issue.Fields.Comment.Comments))
	for _, c := range issue.Fields.Comment.Comments {
		bodies = append(bodies, c.Body.Content)
	}
	return adf.FlattenComments(bodies)
}

// Group is one assignee's slice of the notes.
type Group struct {
	Assignee string          `json:"assignee"`
	Records  []SummaryRecord `json:"records"`
}

// GroupByAssignee buckets records by assignee, keeping groups in the order
// each assignee first appears and records in input order within a group.
func GroupByAssignee(records []SummaryRecord) []Group {
	index := make(map[string]int, len(records))
	groups := make([]Group, 0, len(records))
	for _, rec := range records {
		i, ok := index[rec.Assignee]
		if !ok {
			i = len(groups)
			index[rec.Assignee] = i
			groups = append(groups, Group{Assignee: rec.Assignee})
		}
		groups[i].Records = append(groups[i].Records, rec)
	}
	return groups
}
