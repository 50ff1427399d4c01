package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/relayview/internal/database"
	"github.com/nao1215/relayview/internal/model"
)

// seedHistory opens a history database with a few navigations.
func seedHistory(t *testing.T) *database.HistoryDB {
	t.Helper()

	db, err := database.Open(t.TempDir(), database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	now := time.Now()

	old := model.NewNavigation("old.test")
	old.Target = "https://old.test/"
	old.StartedAt = now.Add(-60 * 24 * time.Hour)
	old.Fail(errors.New("gone"), "<p>error</p>", "Error: gone")
	old.FinishedAt = old.StartedAt.Add(time.Second)

	done := model.NewNavigation("example.test")
	done.Target = "https://example.test/"
	done.Kind = model.KindPage
	done.Fetch = &model.FetchOutcome{
		Target:   done.Target,
		Charset:  model.CharsetCandidate{Name: "shift_jis", Confidence: 1, Source: model.CharsetSourceHeader},
		Endpoint: "https://relay-b.test/?",
		Attempts: []model.Attempt{
			{Endpoint: "https://relay-a.test/?", StatusCode: 502, Error: "HTTP 502", Duration: 100 * time.Millisecond},
			{Endpoint: "https://relay-b.test/?", StatusCode: 200, Duration: 300 * time.Millisecond},
		},
		Hash: "abc123",
	}
	done.Complete("<p>ok</p>", "Done")

	for _, nav := range []*model.Navigation{old, done} {
		if _, err := db.Save(ctx, nav); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
	}
	return db
}

// TestRunHistory tests the history actions.
func TestRunHistory(t *testing.T) {
	t.Parallel()

	t.Run("lists newest first", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		if err := runHistory(context.Background(), seedHistory(t), historyOptions{limit: 10}, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		text := out.String()
		if !strings.Contains(text, "Navigations (2)") || !strings.Contains(text, "shift_jis") {
			t.Errorf("unexpected listing %q", text)
		}
		if strings.Index(text, "https://example.test/") > strings.Index(text, "https://old.test/") {
			t.Error("expected newest navigation first")
		}
	})

	t.Run("filters by state as JSON", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		o := historyOptions{state: "failed", json: true}
		if err := runHistory(context.Background(), seedHistory(t), o, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), `"target": "https://old.test/"`) || strings.Contains(out.String(), "example.test") {
			t.Errorf("unexpected listing %s", out.String())
		}
	})

	t.Run("empty listing", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		o := historyOptions{target: "https://none.test/"}
		if err := runHistory(context.Background(), seedHistory(t), o, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "No navigations recorded") {
			t.Errorf("unexpected output %q", out.String())
		}
	})

	t.Run("endpoint statistics", func(t *testing.T) {
		t.Parallel()

		var out bytes.Buffer
		if err := runHistory(context.Background(), seedHistory(t), historyOptions{endpoints: true}, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		text := out.String()
		if !strings.Contains(text, "https://relay-a.test/?") || !strings.Contains(text, "100%") || !strings.Contains(text, "0%") {
			t.Errorf("unexpected statistics %q", text)
		}
	})

	t.Run("shows one navigation", func(t *testing.T) {
		t.Parallel()

		db := seedHistory(t)
		entries, err := db.List(context.Background(), database.Filter{Target: "https://example.test/"})
		if err != nil || len(entries) != 1 {
			t.Fatalf("failed to find entry: %v", err)
		}

		var out bytes.Buffer
		o := historyOptions{show: entries[0].ID, format: "text"}
		if err := runHistory(context.Background(), db, o, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "RELAYVIEW NAVIGATION REPORT") || !strings.Contains(out.String(), "https://relay-b.test/?") {
			t.Errorf("unexpected report %q", out.String())
		}

		if err := runHistory(context.Background(), db, historyOptions{show: 9999, format: "text"}, &out); err == nil {
			t.Error("expected error for unknown ID")
		}
	})

	t.Run("prunes old navigations", func(t *testing.T) {
		t.Parallel()

		db := seedHistory(t)
		var out bytes.Buffer
		if err := runHistory(context.Background(), db, historyOptions{prune: 30 * 24 * time.Hour}, &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "Deleted 1 navigation(s)") {
			t.Errorf("unexpected output %q", out.String())
		}
		entries, err := db.List(context.Background(), database.Filter{})
		if err != nil || len(entries) != 1 {
			t.Errorf("expected one remaining entry, got %d (%v)", len(entries), err)
		}
	})
}

// TestParseHistoryOptions tests flag validation.
func TestParseHistoryOptions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		target  string
	}{
		{name: "defaults", args: nil},
		{name: "normalizes target", args: []string{"example.test#top"}, target: "https://example.test"},
		{name: "invalid state", args: []string{"--state", "loading"}, wantErr: true},
		{name: "negative prune", args: []string{"--prune", "-1h"}, wantErr: true},
		{name: "unsupported scheme", args: []string{"ftp://example.test/"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewHistoryCmd()
			if err := cmd.ParseFlags(tt.args); err != nil {
				t.Fatalf("failed to parse flags: %v", err)
			}
			o, err := parseHistoryOptions(cmd, cmd.Flags().Args())
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if !tt.wantErr && o.target != tt.target {
				t.Errorf("expected target %q, got %q", tt.target, o.target)
			}
		})
	}
}

// TestHistoryWithoutDatabase tests the friendly error before anything is recorded.
func TestHistoryWithoutDatabase(t *testing.T) {
	cfgPath := writeConfig(t, "defaults: {}\n")
	_, _, err := execute("history", "--config", cfgPath, "--history-dir", t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "no history recorded yet") {
		t.Errorf("expected friendly error, got %v", err)
	}
}
