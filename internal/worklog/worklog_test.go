package worklog

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	nerrors "github.com/relic-ai/notesmith/internal/errors"
	"github.com/relic-ai/notesmith/internal/jira"
)

type fakeJira struct {
	sprintIssues  []jira.Issue
	sprintErr     error
	searchResult  *jira.SearchResult
	searchErr     error
	gotJQL        string
	gotFields     []string
	searchedCount int
}

func (f *fakeJira) SprintIssues(ctx context.Context, sprintID int64) ([]jira.Issue, error) {
	return f.sprintIssues, f.sprintErr
}

func (f *fakeJira) SearchIssues(ctx context.Context, jql string, fields []string) (*jira.SearchResult, error) {
	f.searchedCount++
	f.gotJQL = jql
	f.gotFields = fields
	return f.searchResult, f.searchErr
}

func TestFetch_DateRangeQuery(t *testing.T) {
	fake := &fakeJira{searchResult: &jira.SearchResult{Issues: []jira.Issue{{Key: "APL-1"}}}}
	f := NewFetcher(fake, zerolog.Nop())

	issues, err := f.Fetch(context.Background(), Query{
		ProjectKey: "APL",
		StartDate:  "2026-08-01",
		EndDate:    "2026-08-15",
	})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "project = APL AND worklogDate >= 2026-08-01 AND worklogDate <= 2026-08-15 AND timespent > 0", fake.gotJQL)
	assert.Equal(t, []string{"key", "summary", "comment", "timespent", "assignee", "status"}, fake.gotFields)
}

func TestFetch_ExtendedProjection(t *testing.T) {
	fake := &fakeJira{searchResult: &jira.SearchResult{Issues: []jira.Issue{}}}
	f := NewFetcher(fake, zerolog.Nop())

	_, err := f.Fetch(context.Background(), Query{
		ProjectKey: "APL", StartDate: "2026-08-01", EndDate: "2026-08-15", Extended: true,
	})
	require.NoError(t, err)
	assert.Contains(t, fake.gotFields, "priority")
	assert.Contains(t, fake.gotFields, "labels")
}

func TestFetch_SprintMembershipQuery(t *testing.T) {
	fake := &fakeJira{
		sprintIssues: []jira.Issue{{Key: "APL-1"}, {Key: "APL-2"}},
		searchResult: &jira.SearchResult{Issues: []jira.Issue{{Key: "APL-1"}, {Key: "APL-2"}}},
	}
	f := NewFetcher(fake, zerolog.Nop())

	issues, err := f.Fetch(context.Background(), Query{
		ProjectKey: "APL", StartDate: "2026-08-01", EndDate: "2026-08-15", SprintID: 42,
	})
	require.NoError(t, err)
	assert.Len(t, issues, 2)
	assert.Equal(t, "issueKey in (APL-1,APL-2)", fake.gotJQL)
}

func TestFetch_EmptySprint_NoQuery(t *testing.T) {
	fake := &fakeJira{sprintIssues: []jira.Issue{}}
	f := NewFetcher(fake, zerolog.Nop())

	issues, err := f.Fetch(context.Background(), Query{
		ProjectKey: "APL", StartDate: "2026-08-01", EndDate: "2026-08-15", SprintID: 42,
	})
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, 0, fake.searchedCount, "empty sprint must not reach the search endpoint")
}

func TestFetch_MissingDates(t *testing.T) {
	f := NewFetcher(&fakeJira{}, zerolog.Nop())

	_, err := f.Fetch(context.Background(), Query{ProjectKey: "APL"})
	assert.ErrorIs(t, err, nerrors.ErrInvalidInput)

	_, err = f.Fetch(context.Background(), Query{StartDate: "2026-08-01", EndDate: "2026-08-15"})
	assert.ErrorIs(t, err, nerrors.ErrInvalidInput)
}

func TestFetch_SearchErrorPropagates(t *testing.T) {
	fake := &fakeJira{searchErr: nerrors.NewAPIError("jira", "search issues", 502, "bad gateway")}
	f := NewFetcher(fake, zerolog.Nop())

	_, err := f.Fetch(context.Background(), Query{
		ProjectKey: "APL", StartDate: "2026-08-01", EndDate: "2026-08-15",
	})
	require.Error(t, err)
	var apiErr *nerrors.APIError
	assert.ErrorAs(t, err, &apiErr)
}
