package jira

import (
	"encoding/json"

	"github.com/relic-ai/notesmith/internal/adf"
)

// Project is a Jira project as returned by the project listing endpoint.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Board is a Jira Software board (Agile API).
type Board struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// BoardList is the paged board listing envelope.
type BoardList struct {
	Values []Board `json:"values"`
}

// Sprint is a sprint on a board.
type Sprint struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	State     string `json:"state"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

// SprintList is the paged sprint listing envelope.
type SprintList struct {
	Values []Sprint `json:"values"`
}

// User identifies a Jira account.
type User struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	AccountType string `json:"accountType,omitempty"`
}

// Status holds an issue's workflow status.
type Status struct {
	Name           string          `json:"name"`
	StatusCategory *StatusCategory `json:"statusCategory,omitempty"`
}

// StatusCategory groups statuses (To Do, In Progress, Done).
type StatusCategory struct {
	Name string `json:"name"`
}

// CommentBody is an ADF document: a root type plus content nodes.
type CommentBody struct {
	Type    string     `json:"type"`
	Content []adf.Node `json:"content"`
}

// Comment is one issue comment with its rich-text body.
type Comment struct {
	Body CommentBody `json:"body"`
}

// CommentPage wraps the comments collection of an issue.
type CommentPage struct {
	Comments []Comment `json:"comments"`
}

// IssueFields is the field projection used by the work-log pipeline.
type IssueFields struct {
	Summary   string       `json:"summary"`
	Assignee  *User        `json:"assignee,omitempty"`
	TimeSpent int64        `json:"timespent,omitempty"`
	Status    *Status      `json:"status,omitempty"`
	Comment   *CommentPage `json:"comment,omitempty"`

	// Extended projection (optional, variant flows).
	Reporter  *User    `json:"reporter,omitempty"`
	Priority  *Named   `json:"priority,omitempty"`
	IssueType *Named   `json:"issuetype,omitempty"`
	Labels    []string `json:"labels,omitempty"`
	Project   *Project `json:"project,omitempty"`
}

// Named is a minimal name-bearing Jira entity (priority, issue type).
type Named struct {
	Name string `json:"name"`
}

// Issue is a Jira issue with the projected fields.
type Issue struct {
	ID     string      `json:"id,omitempty"`
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`
}

// SearchResult is the issue search envelope. Issues stays nil when the
// response carried no issues collection at all, which callers treat as a
// malformed payload.
type SearchResult struct {
	Total  int     `json:"total"`
	Issues []Issue `json:"issues"`
}

// IssueList is the sprint issue listing envelope.
type IssueList struct {
	Issues []Issue `json:"issues"`
}

// EstimationField names the board-specific estimation custom field.
type EstimationField struct {
	FieldID string `json:"fieldId"`
}

// issueFieldsRaw is used when fetching a single dynamic field value.
type issueFieldsRaw struct {
	Fields map[string]json.RawMessage `json:"fields"`
}

// RoleActors is the membership listing of one project role.
type RoleActors struct {
	Actors []Actor `json:"actors"`
}

// Actor is a member of a project role.
type Actor struct {
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
}
