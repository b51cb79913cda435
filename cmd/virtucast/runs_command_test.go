package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"virtucast/internal/runlog"
	"virtucast/internal/testsupport"
)

func seedRun(t *testing.T, store *runlog.Store, id, title string, status runlog.Status) {
	t.Helper()

	entry := &runlog.Run{
		ID:                id,
		Title:             title,
		OutputDir:         t.TempDir(),
		RequestedStrategy: "hook",
		StartedAt:         time.Now().UTC(),
	}
	if err := store.Begin(context.Background(), entry); err != nil {
		t.Fatalf("begin run %s: %v", id, err)
	}
	if status != runlog.StatusRunning {
		now := time.Now().UTC()
		entry.Status = status
		entry.UsedStrategy = "primary_hook"
		entry.FinishedAt = &now
		entry.DurationSeconds = 1.5
		if err := store.Finish(context.Background(), entry); err != nil {
			t.Fatalf("finish run %s: %v", id, err)
		}
	}
	// Keep StartedAt ordering stable for list assertions.
	time.Sleep(2 * time.Millisecond)
}

func TestRunsEmptyLedger(t *testing.T) {
	_, cfgPath := testsupport.NewConfigFile(t)

	out, _, err := runCLI(t, cfgPath, "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "No runs recorded")
}

func TestRunsListFilterAndJSON(t *testing.T) {
	cfg, cfgPath := testsupport.NewConfigFile(t)
	store := testsupport.MustOpenStore(t, cfg)
	seedRun(t, store, "run-alpha", "Alpha Broadcast", runlog.StatusDone)
	seedRun(t, store, "run-beta", "Beta Broadcast", runlog.StatusAborted)

	out, _, err := runCLI(t, cfgPath, "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	requireContains(t, out, "Alpha Broadcast")
	requireContains(t, out, "Beta Broadcast")

	out, _, err = runCLI(t, cfgPath, "runs", "--status", "done")
	if err != nil {
		t.Fatalf("runs --status done: %v", err)
	}
	requireContains(t, out, "Alpha Broadcast")
	if strings.Contains(out, "Beta Broadcast") {
		t.Fatalf("status filter leaked aborted run: %q", out)
	}

	out, _, err = runCLI(t, cfgPath, "runs", "--json")
	if err != nil {
		t.Fatalf("runs --json: %v", err)
	}
	var views []runView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("parse runs JSON: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d runs, want 2", len(views))
	}
	// Newest first.
	if views[0].ID != "run-beta" || views[1].ID != "run-alpha" {
		t.Fatalf("unexpected order: %s, %s", views[0].ID, views[1].ID)
	}

	_, _, err = runCLI(t, cfgPath, "runs", "--status", "bogus")
	if err == nil {
		t.Fatal("expected an unknown status to fail")
	}
}

func TestRunsLimit(t *testing.T) {
	cfg, cfgPath := testsupport.NewConfigFile(t)
	store := testsupport.MustOpenStore(t, cfg)
	seedRun(t, store, "run-1", "First", runlog.StatusDone)
	seedRun(t, store, "run-2", "Second", runlog.StatusDone)
	seedRun(t, store, "run-3", "Third", runlog.StatusDone)

	out, _, err := runCLI(t, cfgPath, "runs", "--limit", "1", "--json")
	if err != nil {
		t.Fatalf("runs --limit: %v", err)
	}
	var views []runView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("parse runs JSON: %v", err)
	}
	if len(views) != 1 || views[0].ID != "run-3" {
		t.Fatalf("limit ignored: %+v", views)
	}
}
