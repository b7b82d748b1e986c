// Package tracking keeps a SQLite history of rewritten commands and the
// token savings they produced.
package tracking

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// DefaultHistoryDays is how long records are kept when no retention is configured.
const DefaultHistoryDays = 90

// timeLayout is fixed width and UTC so stored timestamps sort as text and
// SQLite date functions understand them.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Record is a single tracked command.
type Record struct {
	Timestamp    time.Time
	OriginalCmd  string
	RtkCmd       string
	InputTokens  int
	OutputTokens int
	ExecTime     time.Duration
}

// Saved returns the tokens saved by the record, never negative.
func (r Record) Saved() int {
	if r.OutputTokens >= r.InputTokens {
		return 0
	}
	return r.InputTokens - r.OutputTokens
}

// SavingsPct returns saved tokens as a percentage of input tokens.
func (r Record) SavingsPct() float64 {
	return pct(r.Saved(), r.InputTokens)
}

// CommandRecord is a row returned by Recent.
type CommandRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	RtkCmd      string    `json:"rtk_cmd"`
	SavedTokens int       `json:"saved_tokens"`
	SavingsPct  float64   `json:"savings_pct"`
}

// CommandStats aggregates records sharing the same rtk command.
type CommandStats struct {
	Command       string  `json:"command"`
	Count         int     `json:"count"`
	SavedTokens   int     `json:"saved_tokens"`
	AvgSavingsPct float64 `json:"avg_savings_pct"`
	AvgTimeMS     int64   `json:"avg_time_ms"`
}

// DaySaved is the number of tokens saved on a calendar day (UTC).
type DaySaved struct {
	Date        string `json:"date"`
	SavedTokens int    `json:"saved_tokens"`
}

// Summary is the overall gain report.
type Summary struct {
	TotalCommands int            `json:"total_commands"`
	TotalInput    int            `json:"total_input"`
	TotalOutput   int            `json:"total_output"`
	TotalSaved    int            `json:"total_saved"`
	AvgSavingsPct float64        `json:"avg_savings_pct"`
	TotalTimeMS   int64          `json:"total_time_ms"`
	AvgTimeMS     int64          `json:"avg_time_ms"`
	ByCommand     []CommandStats `json:"by_command"`
	ByDay         []DaySaved     `json:"by_day"`
}

// PeriodStats aggregates records over a day, week or month. End is only
// set for weeks.
type PeriodStats struct {
	Period       string  `json:"period"`
	End          string  `json:"end,omitempty"`
	Commands     int     `json:"commands"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	SavedTokens  int     `json:"saved_tokens"`
	SavingsPct   float64 `json:"savings_pct"`
	TotalTimeMS  int64   `json:"total_time_ms"`
	AvgTimeMS    int64   `json:"avg_time_ms"`
}

// Tracker is a SQLite-backed command history.
type Tracker struct {
	db          *sql.DB
	historyDays int
	now         func() time.Time
}

// Open opens (creating if needed) the history database at path.
func Open(path string, historyDays int) (*Tracker, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("tracking db path is required")
	}
	if historyDays <= 0 {
		historyDays = DefaultHistoryDays
	}
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create tracking dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Short-lived hook processes may race on the same file.
	db.SetMaxOpenConns(1)

	t := &Tracker{db: db, historyDays: historyDays, now: time.Now}
	if err := t.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate tracking db: %w", err)
	}
	return t, nil
}

func (t *Tracker) migrate() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		`CREATE TABLE IF NOT EXISTS commands (
			id INTEGER PRIMARY KEY,
			timestamp TEXT NOT NULL,
			original_cmd TEXT NOT NULL,
			rtk_cmd TEXT NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			saved_tokens INTEGER NOT NULL,
			savings_pct REAL NOT NULL,
			exec_time_ms INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_timestamp ON commands(timestamp)`,
	}
	for _, stmt := range stmts {
		if _, err := t.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the database.
func (t *Tracker) Close() error {
	if t == nil || t.db == nil {
		return nil
	}
	return t.db.Close()
}

// Record stores r and prunes records older than the retention window.
func (t *Tracker) Record(ctx context.Context, r Record) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = t.now()
	}
	_, err := t.db.ExecContext(ctx, `
INSERT INTO commands (
	timestamp, original_cmd, rtk_cmd, input_tokens, output_tokens,
	saved_tokens, savings_pct, exec_time_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Timestamp.UTC().Format(timeLayout),
		r.OriginalCmd,
		r.RtkCmd,
		r.InputTokens,
		r.OutputTokens,
		r.Saved(),
		r.SavingsPct(),
		r.ExecTime.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("record command: %w", err)
	}
	return t.cleanup(ctx)
}

func (t *Tracker) cleanup(ctx context.Context) error {
	cutoff := t.now().UTC().AddDate(0, 0, -t.historyDays).Format(timeLayout)
	if _, err := t.db.ExecContext(ctx, `DELETE FROM commands WHERE timestamp < ?`, cutoff); err != nil {
		return fmt.Errorf("prune history: %w", err)
	}
	return nil
}

// Summary returns totals, the ten commands with the most saved tokens and
// savings for the last 30 days with activity, oldest first.
func (t *Tracker) Summary(ctx context.Context) (*Summary, error) {
	var s Summary
	err := t.db.QueryRowContext(ctx, `
SELECT COUNT(*),
	COALESCE(SUM(input_tokens), 0),
	COALESCE(SUM(output_tokens), 0),
	COALESCE(SUM(saved_tokens), 0),
	COALESCE(SUM(exec_time_ms), 0)
FROM commands`).Scan(&s.TotalCommands, &s.TotalInput, &s.TotalOutput, &s.TotalSaved, &s.TotalTimeMS)
	if err != nil {
		return nil, fmt.Errorf("query totals: %w", err)
	}
	s.AvgSavingsPct = pct(s.TotalSaved, s.TotalInput)
	if s.TotalCommands > 0 {
		s.AvgTimeMS = s.TotalTimeMS / int64(s.TotalCommands)
	}

	if s.ByCommand, err = t.byCommand(ctx); err != nil {
		return nil, err
	}
	if s.ByDay, err = t.byDay(ctx); err != nil {
		return nil, err
	}
	return &s, nil
}

func (t *Tracker) byCommand(ctx context.Context) ([]CommandStats, error) {
	rows, err := t.db.QueryContext(ctx, `
SELECT rtk_cmd, COUNT(*), SUM(saved_tokens), AVG(savings_pct), AVG(exec_time_ms)
FROM commands
GROUP BY rtk_cmd
ORDER BY SUM(saved_tokens) DESC, COUNT(*) DESC, rtk_cmd
LIMIT 10`)
	if err != nil {
		return nil, fmt.Errorf("query by command: %w", err)
	}
	defer rows.Close()

	var out []CommandStats
	for rows.Next() {
		var (
			c       CommandStats
			avgTime float64
		)
		if err := rows.Scan(&c.Command, &c.Count, &c.SavedTokens, &c.AvgSavingsPct, &avgTime); err != nil {
			return nil, fmt.Errorf("scan by command: %w", err)
		}
		c.AvgTimeMS = int64(avgTime)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (t *Tracker) byDay(ctx context.Context) ([]DaySaved, error) {
	rows, err := t.db.QueryContext(ctx, `
SELECT DATE(timestamp), SUM(saved_tokens)
FROM commands
GROUP BY DATE(timestamp)
ORDER BY DATE(timestamp) DESC
LIMIT 30`)
	if err != nil {
		return nil, fmt.Errorf("query by day: %w", err)
	}
	defer rows.Close()

	var out []DaySaved
	for rows.Next() {
		var d DaySaved
		if err := rows.Scan(&d.Date, &d.SavedTokens); err != nil {
			return nil, fmt.Errorf("scan by day: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(out)
	return out, nil
}

// AllDays returns per-day statistics, oldest first.
func (t *Tracker) AllDays(ctx context.Context) ([]PeriodStats, error) {
	return t.periods(ctx, `DATE(timestamp)`, "")
}

// ByWeek returns per-week statistics (Monday to Sunday), oldest first.
func (t *Tracker) ByWeek(ctx context.Context) ([]PeriodStats, error) {
	return t.periods(ctx, `DATE(timestamp, 'weekday 0', '-6 days')`, `DATE(timestamp, 'weekday 0')`)
}

// ByMonth returns per-month statistics keyed "YYYY-MM", oldest first.
func (t *Tracker) ByMonth(ctx context.Context) ([]PeriodStats, error) {
	return t.periods(ctx, `strftime('%Y-%m', timestamp)`, "")
}

func (t *Tracker) periods(ctx context.Context, periodExpr, endExpr string) ([]PeriodStats, error) {
	if endExpr == "" {
		endExpr = "''"
	}
	query := fmt.Sprintf(`
SELECT %s AS period,
	MAX(%s) AS period_end,
	COUNT(*),
	SUM(input_tokens),
	SUM(output_tokens),
	SUM(saved_tokens),
	SUM(exec_time_ms)
FROM commands
GROUP BY period
ORDER BY period`, periodExpr, endExpr)

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query periods: %w", err)
	}
	defer rows.Close()

	var out []PeriodStats
	for rows.Next() {
		var p PeriodStats
		if err := rows.Scan(&p.Period, &p.End, &p.Commands, &p.InputTokens, &p.OutputTokens, &p.SavedTokens, &p.TotalTimeMS); err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		p.SavingsPct = pct(p.SavedTokens, p.InputTokens)
		if p.Commands > 0 {
			p.AvgTimeMS = p.TotalTimeMS / int64(p.Commands)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Recent returns the newest limit records, newest first.
func (t *Tracker) Recent(ctx context.Context, limit int) ([]CommandRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := t.db.QueryContext(ctx, `
SELECT timestamp, rtk_cmd, saved_tokens, savings_pct
FROM commands
ORDER BY timestamp DESC, id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []CommandRecord
	for rows.Next() {
		var (
			rec CommandRecord
			ts  string
		)
		if err := rows.Scan(&ts, &rec.RtkCmd, &rec.SavedTokens, &rec.SavingsPct); err != nil {
			return nil, fmt.Errorf("scan recent: %w", err)
		}
		if rec.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// EstimateTokens approximates the token count of text at four bytes per token.
// It is for callers that see command output, such as an rtk wrapper that runs
// the rewritten command. The rewrite gate only sees command lines and records
// through TrackPassthrough.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Timer measures one command execution and records it when done.
type Timer struct {
	tracker *Tracker
	start   time.Time
}

// Start begins timing a command. A nil tracker makes Track a no-op.
func (t *Tracker) Start() *Timer {
	now := time.Now
	if t != nil {
		now = t.now
	}
	return &Timer{tracker: t, start: now()}
}

// Track records a filtered command with token estimates from its raw and
// filtered output. Like EstimateTokens it serves callers that observe the
// output; the rewrite gate never does.
func (tm *Timer) Track(ctx context.Context, originalCmd, rtkCmd, input, output string) error {
	return tm.record(ctx, Record{
		OriginalCmd:  originalCmd,
		RtkCmd:       rtkCmd,
		InputTokens:  EstimateTokens(input),
		OutputTokens: EstimateTokens(output),
	})
}

// TrackPassthrough records a command whose output was not filtered. Token
// counts are zero so averages are not diluted.
func (tm *Timer) TrackPassthrough(ctx context.Context, originalCmd, rtkCmd string) error {
	return tm.record(ctx, Record{OriginalCmd: originalCmd, RtkCmd: rtkCmd})
}

func (tm *Timer) record(ctx context.Context, r Record) error {
	if tm.tracker == nil {
		return nil
	}
	r.ExecTime = tm.tracker.now().Sub(tm.start)
	return tm.tracker.Record(ctx, r)
}

func pct(saved, input int) float64 {
	if input <= 0 {
		return 0
	}
	return float64(saved) / float64(input) * 100
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
