// Package resolve maps human-facing Jira names to API identifiers and builds
// the project / board / sprint listings used for selection.
package resolve

import (
	"context"

	"github.com/rs/zerolog"

	nerrors "github.com/relic-ai/notesmith/internal/errors"
	"github.com/relic-ai/notesmith/internal/fanout"
	"github.com/relic-ai/notesmith/internal/jira"
)

// JiraAPI is the subset of the Jira client the resolver needs.
type JiraAPI interface {
	ListProjects(ctx context.Context) ([]jira.Project, error)
	ListBoards(ctx context.Context, projectKey string) ([]jira.Board, error)
	ListSprints(ctx context.Context, boardID int64) ([]jira.Sprint, error)
	ProjectRoles(ctx context.Context, projectKey string) (map[string]string, error)
	RoleActors(ctx context.Context, roleURL string) ([]jira.Actor, error)
}

// ProjectBoards pairs a project key with its boards.
type ProjectBoards struct {
	ProjectKey string       `json:"projectKey"`
	Boards     []jira.Board `json:"boards"`
}

// BoardSprints pairs one board with its sprints.
type BoardSprints struct {
	ProjectKey string        `json:"projectKey"`
	BoardID    int64         `json:"boardId"`
	BoardName  string        `json:"boardName"`
	Sprints    []jira.Sprint `json:"sprints"`
}

// Resolver resolves names against the tracking API. Lookups are linear over
// the listing endpoints and uncached; the expected N is small.
type Resolver struct {
	jira   JiraAPI
	limit  int
	logger zerolog.Logger
}

// New creates a resolver. limit bounds the per-project and per-board fan-outs.
func New(api JiraAPI, limit int, logger zerolog.Logger) *Resolver {
	return &Resolver{
		jira:   api,
		limit:  limit,
		logger: logger.With().Str("component", "resolve").Logger(),
	}
}

// ProjectKeyByName resolves a project name to its key. The match is exact and
// case-sensitive; the first match wins.
func (r *Resolver) ProjectKeyByName(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", nerrors.ErrInvalidInput
	}
	projects, err := r.jira.ListProjects(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range projects {
		if p.Name == name {
			r.logger.Debug().Str("project", name).Str("key", p.Key).Msg("resolved project key")
			return p.Key, nil
		}
	}
	return "", nerrors.NotFound("project with name %q", name)
}

// BoardIDByName resolves a board name to its id across all boards.
func (r *Resolver) BoardIDByName(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, nerrors.ErrInvalidInput
	}
	boards, err := r.jira.ListBoards(ctx, "")
	if err != nil {
		return 0, err
	}
	for _, b := range boards {
		if b.Name == name {
			r.logger.Debug().Str("board", name).Int64("id", b.ID).Msg("resolved board id")
			return b.ID, nil
		}
	}
	return 0, nerrors.NotFound("board with name %q", name)
}

// BoardsForAllProjects fans out one board listing per project. A single
// project's failure aborts the whole call; this all-or-nothing behavior is
// intentional and differs from per-issue summarization.
func (r *Resolver) BoardsForAllProjects(ctx context.Context) ([]ProjectBoards, error) {
	projects, err := r.jira.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	return fanout.All(ctx, r.limit, len(projects), func(ctx context.Context, i int) (ProjectBoards, error) {
		boards, err := r.jira.ListBoards(ctx, projects[i].Key)
		if err != nil {
			return ProjectBoards{}, err
		}
		return ProjectBoards{ProjectKey: projects[i].Key, Boards: boards}, nil
	})
}

// SprintsForAllBoards fans out one sprint listing per board atop
// BoardsForAllProjects. Boards without sprints are omitted from the result;
// an empty sprint list is not an error.
func (r *Resolver) SprintsForAllBoards(ctx context.Context) ([]BoardSprints, error) {
	projectBoards, err := r.BoardsForAllProjects(ctx)
	if err != nil {
		return nil, err
	}
	var flat []BoardSprints
	for _, pb := range projectBoards {
		for _, b := range pb.Boards {
			flat = append(flat, BoardSprints{ProjectKey: pb.ProjectKey, BoardID: b.ID, BoardName: b.Name})
		}
	}
	all, err := fanout.All(ctx, r.limit, len(flat), func(ctx context.Context, i int) (BoardSprints, error) {
		sprints, err := r.jira.ListSprints(ctx, flat[i].BoardID)
		if err != nil {
			return BoardSprints{}, err
		}
		entry := flat[i]
		entry.Sprints = sprints
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]BoardSprints, 0, len(all))
	for _, bs := range all {
		if len(bs.Sprints) > 0 {
			out = append(out, bs)
		}
	}
	return out, nil
}

// ProjectMembers lists the members of a project's Administrator and Member
// roles, resolved from the project name.
func (r *Resolver) ProjectMembers(ctx context.Context, projectName string) ([]jira.Actor, error) {
	key, err := r.ProjectKeyByName(ctx, projectName)
	if err != nil {
		return nil, err
	}
	roles, err := r.jira.ProjectRoles(ctx, key)
	if err != nil {
		return nil, err
	}
	var members []jira.Actor
	for _, role := range []string{"Administrator", "Member"} {
		url, ok := roles[role]
		if !ok {
			continue
		}
		actors, err := r.jira.RoleActors(ctx, url)
		if err != nil {
			return nil, err
		}
		members = append(members, actors...)
	}
	return members, nil
}
