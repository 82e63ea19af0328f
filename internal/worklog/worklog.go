// Package worklog builds and executes the issue queries behind a notes run:
// either a work-log date-range query over a project, or a sprint-scoped
// membership query.
package worklog

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	nerrors "github.com/relic-ai/notesmith/internal/errors"
	"github.com/relic-ai/notesmith/internal/jira"
)

// JiraAPI is the subset of the Jira client the fetcher needs.
type JiraAPI interface {
	SprintIssues(ctx context.Context, sprintID int64) ([]jira.Issue, error)
	SearchIssues(ctx context.Context, jql string, fields []string) (*jira.SearchResult, error)
}

// baseFields is the projection the summarization pipeline consumes.
var baseFields = []string{"key", "summary", "comment", "timespent", "assignee", "status"}

// extendedFields adds the columns used by the richer export flows.
var extendedFields = append(baseFields[:len(baseFields):len(baseFields)],
	"reporter", "priority", "issuetype", "labels", "project")

// Query describes one work-log fetch. Dates are ISO date strings; they are
// checked for presence, not calendar validity.
type Query struct {
	ProjectKey string
	StartDate  string
	EndDate    string
	SprintID   int64 // optional; 0 means date-range mode
	Extended   bool  // request the extended field projection
}

// Fetcher retrieves the issues matching a work-log query.
type Fetcher struct {
	jira   JiraAPI
	logger zerolog.Logger
}

// NewFetcher creates a work-log fetcher.
func NewFetcher(api JiraAPI, logger zerolog.Logger) *Fetcher {
	return &Fetcher{
		jira:   api,
		logger: logger.With().Str("component", "worklog").Logger(),
	}
}

// Fetch returns the issues matching q. A sprint with zero issues yields an
// empty result without issuing a search: an "issueKey in ()" membership query
// would be malformed.
func (f *Fetcher) Fetch(ctx context.Context, q Query) ([]jira.Issue, error) {
	if q.ProjectKey == "" {
		return nil, fmt.Errorf("project key is required: %w", nerrors.ErrInvalidInput)
	}
	if q.StartDate == "" || q.EndDate == "" {
		return nil, fmt.Errorf("start and end dates are required: %w", nerrors.ErrInvalidInput)
	}

	var jql string
	if q.SprintID > 0 {
		sprintIssues, err := f.jira.SprintIssues(ctx, q.SprintID)
		if err != nil {
			return nil, err
		}
		if len(sprintIssues) == 0 {
			f.logger.Info().Int64("sprint", q.SprintID).Msg("sprint has no issues")
			return []jira.Issue{}, nil
		}
		keys := make([]string, 0, len(sprintIssues))
		for _, issue := range sprintIssues {
			keys = append(keys, issue.Key)
		}
		jql = fmt.Sprintf("issueKey in (%s)", strings.Join(keys, ","))
	} else {
		jql = fmt.Sprintf("project = %s AND worklogDate >= %s AND worklogDate <= %s AND timespent > 0",
			q.ProjectKey, q.StartDate, q.EndDate)
	}

	fields := baseFields
	if q.Extended {
		fields = extendedFields
	}

	f.logger.Info().Str("jql", jql).Msg("fetching work-log issues")
	result, err := f.jira.SearchIssues(ctx, jql, fields)
	if err != nil {
		return nil, err
	}
	f.logger.Info().Int("issues", len(result.Issues)).Msg("work-log fetch complete")
	return result.Issues, nil
}
