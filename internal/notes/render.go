package notes

import (
	"strconv"
	"strings"

	"github.com/relic-ai/notesmith/pkg/htmldoc"
)

// columns is the full record column set in render order. Field names match
// the SummaryRecord JSON tags so template skipFields line up with API output.
var columns = []string{"key", "summary", "assignee", "spentTime", "storyPoint", "status", "aiRemarks"}

// Render produces the notes document in HTML storage format. With grouping
// enabled each assignee gets a section of their own and the assignee column
// is folded into the section heading.
func Render(records []SummaryRecord, tpl Template) string {
	doc := htmldoc.New("div")
	if tpl.Heading != "" {
		doc.Child(htmldoc.New("h1").Text(tpl.Heading))
	}

	if !tpl.GroupBy {
		doc.Child(recordTable(records, skipSet(tpl.SkipFields), tpl.ExtraColumns))
		return doc.String()
	}

	skip := skipSet(tpl.SkipFields)
	skip["assignee"] = struct{}{}
	for _, group := range GroupByAssignee(records) {
		doc.Child(htmldoc.New("h2").Text(group.Assignee))
		doc.Child(recordTable(group.Records, skip, tpl.ExtraColumns))
	}
	return doc.String()
}

func recordTable(records []SummaryRecord, skip map[string]struct{}, extra []string) *htmldoc.Element {
	fields := make([]string, 0, len(columns))
	for _, f := range columns {
		if _, ok := skip[f]; !ok {
			fields = append(fields, f)
		}
	}

	headers := make([]string, 0, len(fields)+len(extra))
	for _, f := range fields {
		headers = append(headers, htmldoc.HeaderLabel(f))
	}
	// Extra columns stay empty: placeholders to fill in by hand.
	for _, f := range extra {
		headers = append(headers, htmldoc.HeaderLabel(f))
	}

	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, 0, len(fields)+len(extra))
		for _, f := range fields {
			row = append(row, cellValue(rec, f))
		}
		for range extra {
			row = append(row, "")
		}
		rows = append(rows, row)
	}
	return htmldoc.Table(headers, rows)
}

func cellValue(rec SummaryRecord, field string) string {
	switch field {
	case "key":
		return rec.Key
	case "summary":
		return rec.Summary
	case "assignee":
		return rec.Assignee
	case "spentTime":
		return htmldoc.SecondsToClock(rec.SpentTime)
	case "storyPoint":
		if rec.StoryPoint == nil {
			return "N/A"
		}
		return strconv.FormatFloat(*rec.StoryPoint, 'f', -1, 64)
	case "status":
		return rec.Status
	case "aiRemarks":
		return rec.AIRemarks
	}
	return ""
}

func skipSet(fields []string) map[string]struct{} {
	skip := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		skip[strings.TrimSpace(f)] = struct{}{}
	}
	return skip
}
