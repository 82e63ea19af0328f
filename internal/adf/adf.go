// Package adf flattens Atlassian Document Format content trees into plain text.
package adf

import (
	"strconv"
	"strings"
)

// Node is one node of an ADF content tree. A node carries a type and either
// literal text or nested content, never both.
type Node struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Content []Node `json:"content,omitempty"`
}

// ExtractText recursively flattens nodes into plain text. Code blocks are
// excluded entirely; text nodes contribute their text; container nodes
// recurse. Siblings are joined with a single space.
func ExtractText(nodes []Node) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		switch {
		case n.Type == "codeBlock":
			parts = append(parts, "")
		case n.Type == "text":
			parts = append(parts, n.Text)
		case len(n.Content) > 0:
			parts = append(parts, ExtractText(n.Content))
		default:
			parts = append(parts, "")
		}
	}
	return strings.Join(parts, " ")
}

// FlattenComments extracts each comment body independently and labels it
// "Comment-N: ", joining the labelled comments with single spaces. An empty
// input yields the empty string.
func FlattenComments(bodies [][]Node) string {
	if len(bodies) == 0 {
		return ""
	}
	parts := make([]string, 0, len(bodies))
	for i, body := range bodies {
		parts = append(parts, "Comment-"+strconv.Itoa(i+1)+": "+ExtractText(body))
	}
	return strings.Join(parts, " ")
}
