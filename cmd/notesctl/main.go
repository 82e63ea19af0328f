// Command notesctl generates work-log notes from the command line, using the
// same settings database as the notesmith server.
//
// Usage:
//
//	notesctl -project APL -start 2025-06-01 -end 2025-06-14 -format html
//	notesctl -project APL -start 2025-06-01 -end 2025-06-14 -sprint 42 -board 7 \
//	    -publish -space-key NOTES -space-name "Sprint Notes" -page-title "Sprint 42"
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/relic-ai/notesmith/internal/config"
	"github.com/relic-ai/notesmith/internal/confluence"
	"github.com/relic-ai/notesmith/internal/jira"
	"github.com/relic-ai/notesmith/internal/llm"
	"github.com/relic-ai/notesmith/internal/notes"
	"github.com/relic-ai/notesmith/internal/settings"
	"github.com/relic-ai/notesmith/internal/worklog"
)

func main() {
	var (
		project   = flag.String("project", "", "project key for the date-range query")
		start     = flag.String("start", "", "work-log start date (YYYY-MM-DD)")
		end       = flag.String("end", "", "work-log end date (YYYY-MM-DD)")
		sprint    = flag.Int64("sprint", 0, "sprint id (overrides the date range)")
		board     = flag.Int64("board", 0, "board id for story-point resolution")
		extended  = flag.Bool("extended", false, "request the extended field projection")
		format    = flag.String("format", "json", "output format: json or html")
		template  = flag.String("template", "", "path to a YAML render template")
		publish   = flag.Bool("publish", false, "publish the rendered notes to Confluence")
		spaceKey  = flag.String("space-key", "", "Confluence space key (with -publish)")
		spaceName = flag.String("space-name", "", "Confluence space name (with -publish)")
		pageTitle = flag.String("page-title", "", "Confluence page title (with -publish)")
	)
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load config: %v", err)
	}

	store, err := settings.New(cfg.DBPath, logger)
	if err != nil {
		fatal("failed to open settings store %s: %v", cfg.DBPath, err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	st, err := store.Get(ctx)
	if err != nil {
		fatal("%v", err)
	}

	auth := &jira.BasicAuth{Email: st.JiraAuthUserEmail, APIToken: st.JiraAPIKey}
	jc := jira.NewClient(st.JiraOrgURL, auth, cfg.HTTPTimeout, logger)
	lc := llm.NewClient(st.LlamaAPIURL, st.LlamaModel, llm.WithLogger(logger))

	fetcher := worklog.NewFetcher(jc, logger)
	issues, err := fetcher.Fetch(ctx, worklog.Query{
		ProjectKey: *project,
		StartDate:  *start,
		EndDate:    *end,
		SprintID:   *sprint,
		Extended:   *extended,
	})
	if err != nil {
		fatal("fetch work log: %v", err)
	}

	summarizer := notes.NewSummarizer(jc, lc, cfg.FanoutLimit, logger)
	records := summarizer.Summarize(ctx, issues, *board)

	tpl := notes.DefaultTemplate()
	if *template != "" {
		tpl, err = notes.LoadTemplate(*template)
		if err != nil {
			fatal("%v", err)
		}
	}

	if *publish {
		if *spaceKey == "" || *spaceName == "" || *pageTitle == "" {
			fatal("-publish requires -space-key, -space-name and -page-title")
		}
		cc := confluence.NewClient(st.JiraOrgURL, auth, cfg.HTTPTimeout, logger)
		page, err := cc.Publish(ctx, *spaceKey, *spaceName, *pageTitle, notes.Render(records, tpl))
		if err != nil {
			fatal("publish notes: %v", err)
		}
		fmt.Printf("published page %s: %s\n", page.ID, page.Title)
		return
	}

	switch *format {
	case "html":
		fmt.Println(notes.Render(records, tpl))
	case "json":
		out := struct {
			Records []notes.SummaryRecord `json:"records"`
			Groups  []notes.Group         `json:"groups"`
		}{Records: records, Groups: notes.GroupByAssignee(records)}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fatal("encode output: %v", err)
		}
	default:
		fatal("unknown format %q (want json or html)", *format)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "notesctl: "+format+"\n", args...)
	os.Exit(1)
}
