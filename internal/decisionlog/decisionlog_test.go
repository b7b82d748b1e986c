package decisionlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aimagist/openrtklaw/internal/rewrite"
)

func tempConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Path:          filepath.Join(t.TempDir(), "decisions.jsonl"),
		MaxSizeMB:     100,
		FlushInterval: 50 * time.Millisecond,
	}
}

func makeEntry(source, outcome, rule string) Entry {
	return Entry{
		Timestamp:  time.Date(2026, 2, 20, 10, 30, 0, 0, time.UTC),
		Source:     source,
		Original:   "git status",
		Rewritten:  "rtk git status",
		Outcome:    outcome,
		Reason:     "matched",
		Rule:       rule,
		DurationMS: 0.25,
	}
}

func TestLoggerWriteAndRead(t *testing.T) {
	logger, err := New(tempConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Close()

	if err := logger.Log(makeEntry("claude", OutcomeRewritten, "git-status")); err != nil {
		t.Fatalf("Log: %v", err)
	}

	got, err := logger.ReadEntry(0)
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if got.Source != "claude" {
		t.Errorf("Source = %q, want claude", got.Source)
	}
	if got.Rewritten != "rtk git status" {
		t.Errorf("Rewritten = %q", got.Rewritten)
	}
	if got.Rule != "git-status" {
		t.Errorf("Rule = %q", got.Rule)
	}
	if got.ID == "" {
		t.Error("ID should be assigned")
	}
}

func TestLoggerJSONLines(t *testing.T) {
	cfg := tempConfig(t)
	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := logger.Log(makeEntry("cli", OutcomeRewritten, "cat")); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(cfg.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}

	ids := map[string]bool{}
	for i, line := range lines {
		var raw map[string]any
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			t.Fatalf("line %d is not JSON: %v", i, err)
		}
		for _, field := range []string{"id", "timestamp", "source", "original", "outcome", "reason", "duration_ms"} {
			if _, ok := raw[field]; !ok {
				t.Errorf("line %d missing field %q", i, field)
			}
		}
		ids[raw["id"].(string)] = true
	}
	if len(ids) != 3 {
		t.Errorf("expected unique IDs, got %d distinct", len(ids))
	}
}

func TestLoggerSamplesUnchanged(t *testing.T) {
	cfg := tempConfig(t)
	cfg.SampleUnchanged = 5
	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Close()

	for i := 0; i < 10; i++ {
		if err := logger.Log(makeEntry("claude", OutcomeUnchanged, "")); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := logger.Log(makeEntry("claude", OutcomeRewritten, "git-log")); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	unchanged, err := logger.Search(Filter{Outcome: OutcomeUnchanged})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(unchanged) != 2 {
		t.Errorf("unchanged entries = %d, want 2 (1-in-5 of 10)", len(unchanged))
	}

	rewritten, err := logger.Search(Filter{Outcome: OutcomeRewritten})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(rewritten) != 2 {
		t.Errorf("rewritten entries = %d, want 2 (never sampled)", len(rewritten))
	}
}

func TestLoggerSearchFilters(t *testing.T) {
	logger, err := New(tempConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Close()

	base := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Timestamp: base, Source: "claude", Outcome: OutcomeRewritten, Rule: "git-status"},
		{Timestamp: base.Add(time.Hour), Source: "openclaw", Outcome: OutcomeRewritten, Rule: "cat"},
		{Timestamp: base.Add(2 * time.Hour), Source: "claude", Outcome: OutcomeUnchanged},
		{Timestamp: base.Add(3 * time.Hour), Source: "http", Outcome: OutcomeRewritten, Rule: "git-status"},
	}
	for _, e := range entries {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"by source", Filter{Source: "claude"}, 2},
		{"by rule", Filter{Rule: "git-status"}, 2},
		{"by outcome", Filter{Outcome: OutcomeUnchanged}, 1},
		{"since", Filter{Since: base.Add(90 * time.Minute)}, 2},
		{"until", Filter{Until: base.Add(30 * time.Minute)}, 1},
		{"limit", Filter{Limit: 3}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := logger.Search(tt.filter)
			if err != nil {
				t.Fatalf("Search: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("got %d entries, want %d", len(got), tt.want)
			}
		})
	}
}

func TestLoggerRotation(t *testing.T) {
	cfg := tempConfig(t)
	cfg.MaxSizeMB = 1
	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Close()

	big := makeEntry("cli", OutcomeRewritten, "cat")
	big.Original = strings.Repeat("x", 64*1024)
	for i := 0; i < 20; i++ {
		if err := logger.Log(big); err != nil {
			t.Fatalf("Log %d: %v", i, err)
		}
	}
	if err := logger.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if _, err := os.Stat(cfg.Path + ".1"); err != nil {
		t.Errorf("expected rotated file %s.1: %v", cfg.Path, err)
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		t.Errorf("active log should exist after rotation: %v", err)
	}
}

func TestLoggerConcurrentWrites(t *testing.T) {
	logger, err := New(tempConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Close()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_ = logger.Log(makeEntry("http", OutcomeRewritten, "ls"))
			}
		}()
	}
	wg.Wait()

	got, err := logger.Search(Filter{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 100 {
		t.Errorf("got %d entries, want 100", len(got))
	}
}

func TestReadEntryOutOfRange(t *testing.T) {
	logger, err := New(tempConfig(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Close()

	if _, err := logger.ReadEntry(5); err == nil {
		t.Error("expected error for missing line")
	}
}

func TestNewRejectsEmptyPath(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestEntryFromOutcome(t *testing.T) {
	out := rewrite.Outcome{Rewritten: true, Command: "rtk git status", Rule: "git-status", Reason: rewrite.ReasonMatched}
	e := EntryFromOutcome("claude", "git status", out, 1500*time.Microsecond)
	if e.Outcome != OutcomeRewritten || e.Rule != "git-status" || e.Reason != "matched" {
		t.Errorf("entry = %+v", e)
	}
	if e.DurationMS != 1.5 {
		t.Errorf("DurationMS = %v, want 1.5", e.DurationMS)
	}

	skipped := rewrite.Outcome{Guard: "already-proxied", Reason: rewrite.ReasonSkipped}
	e = EntryFromOutcome("cli", "rtk ls", skipped, 0)
	if e.Outcome != OutcomeUnchanged || e.Guard != "already-proxied" {
		t.Errorf("entry = %+v", e)
	}
}

func TestLoggerRotationRetention(t *testing.T) {
	cfg := tempConfig(t)
	cfg.MaxSizeMB = 1
	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Close()

	// Each entry is over half the limit, so every write after the first rotates.
	big := makeEntry("cli", OutcomeRewritten, "cat")
	big.Original = strings.Repeat("y", 600*1024)
	for i := 0; i < maxRotated+4; i++ {
		if err := logger.Log(big); err != nil {
			t.Fatalf("Log %d: %v", i, err)
		}
	}
	if err := logger.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	for i := 1; i <= maxRotated; i++ {
		if _, err := os.Stat(rotatedName(cfg.Path, i)); err != nil {
			t.Errorf("rotated file %d missing: %v", i, err)
		}
	}
	if _, err := os.Stat(rotatedName(cfg.Path, maxRotated+1)); !os.IsNotExist(err) {
		t.Errorf("expected at most %d rotated files, stat err = %v", maxRotated, err)
	}
}
