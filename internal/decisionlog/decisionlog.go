// Package decisionlog writes an audit trail of rewrite decisions as JSON
// Lines. Writes are buffered and flushed periodically, the file is rotated
// by size, and unchanged decisions can be sampled.
package decisionlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/aimagist/openrtklaw/internal/rewrite"
)

// Outcome values recorded in Entry.Outcome.
const (
	OutcomeRewritten = "rewritten"
	OutcomeUnchanged = "unchanged"
)

const (
	defaultMaxSizeMB     = 10
	defaultFlushInterval = 5 * time.Second
	bufferSize           = 64 * 1024
	maxLineSize          = 1024 * 1024

	// maxRotated is the number of rotated files kept next to the active log.
	maxRotated = 9
)

// Config controls the decision logger.
type Config struct {
	Path            string
	MaxSizeMB       int           // rotate once the file reaches this size (default 10)
	FlushInterval   time.Duration // default 5s
	SampleUnchanged int           // keep 1 in N unchanged decisions; 0 or 1 keeps all
}

// Entry is one logged decision.
type Entry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Source     string    `json:"source"` // claude, openclaw, http, mcp, cli
	Original   string    `json:"original"`
	Rewritten  string    `json:"rewritten,omitempty"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason"`
	Rule       string    `json:"rule,omitempty"`
	Guard      string    `json:"guard,omitempty"`
	DurationMS float64   `json:"duration_ms"`
}

// Filter selects entries in Search. Zero fields match everything.
type Filter struct {
	Since   time.Time
	Until   time.Time
	Source  string
	Outcome string
	Rule    string
	Limit   int
}

func (f Filter) match(e Entry) bool {
	switch {
	case !f.Since.IsZero() && e.Timestamp.Before(f.Since):
		return false
	case !f.Until.IsZero() && e.Timestamp.After(f.Until):
		return false
	case f.Source != "" && f.Source != e.Source:
		return false
	case f.Outcome != "" && f.Outcome != e.Outcome:
		return false
	case f.Rule != "" && f.Rule != e.Rule:
		return false
	}
	return true
}

// Logger appends entries to a JSON Lines file. It is safe for concurrent use.
type Logger struct {
	path     string
	maxBytes int64
	rate     uint64
	seen     atomic.Uint64 // unchanged decisions offered to the sampler

	mu   sync.Mutex
	file *os.File
	buf  *bufio.Writer
	size int64 // bytes in file plus buffer

	stop chan struct{}
	wg   sync.WaitGroup
}

// New opens (creating if needed) the log at cfg.Path and starts the
// background flusher. The caller must Close the logger.
func New(cfg Config) (*Logger, error) {
	if cfg.Path == "" {
		return nil, errors.New("decision log path is empty")
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = defaultMaxSizeMB
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = defaultFlushInterval
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("create decision log dir: %w", err)
	}

	l := &Logger{
		path:     cfg.Path,
		maxBytes: int64(cfg.MaxSizeMB) << 20,
		stop:     make(chan struct{}),
	}
	if cfg.SampleUnchanged > 1 {
		l.rate = uint64(cfg.SampleUnchanged)
	}
	if err := l.open(); err != nil {
		return nil, err
	}

	l.wg.Add(1)
	go l.flusher(cfg.FlushInterval)

	slog.Debug("decision log open", "path", cfg.Path, "max_size_mb", cfg.MaxSizeMB, "sample_unchanged", cfg.SampleUnchanged)
	return l, nil
}

// open attaches the logger to the file at l.path. Caller holds l.mu or
// owns l exclusively.
func (l *Logger) open() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open decision log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat decision log: %w", err)
	}
	l.file, l.buf, l.size = f, bufio.NewWriterSize(f, bufferSize), info.Size()
	return nil
}

// keep reports whether an entry passes sampling. Rewrites always do.
func (l *Logger) keep(e Entry) bool {
	if e.Outcome != OutcomeUnchanged || l.rate == 0 {
		return true
	}
	return l.seen.Add(1)%l.rate == 0
}

// Log appends entry, filling in a missing ID and timestamp.
func (l *Logger) Log(entry Entry) error {
	if !l.keep(entry) {
		return nil
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.size > 0 && l.size+int64(len(line)) > l.maxBytes {
		if err := l.rotate(); err != nil {
			// Keep appending to the oversized file rather than dropping entries.
			slog.Error("decision log rotation failed", "path", l.path, "error", err)
		}
	}
	n, err := l.buf.Write(line)
	l.size += int64(n)
	if err != nil {
		return fmt.Errorf("write decision: %w", err)
	}
	return nil
}

// rotate shifts path.N to path.N+1 (dropping the oldest), moves the active
// file to path.1 and reopens. Caller holds l.mu.
func (l *Logger) rotate() error {
	slog.Info("rotating decision log", "path", l.path, "size_bytes", l.size)

	if err := l.buf.Flush(); err != nil {
		return fmt.Errorf("flush before rotate: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close before rotate: %w", err)
	}
	for i := maxRotated - 1; i > 0; i-- {
		// Gaps in the sequence are expected until maxRotated files exist.
		_ = os.Rename(rotatedName(l.path, i), rotatedName(l.path, i+1))
	}
	if err := os.Rename(l.path, rotatedName(l.path, 1)); err != nil {
		// Reattach to the current file so Log can continue.
		if reopenErr := l.open(); reopenErr != nil {
			return errors.Join(err, reopenErr)
		}
		return fmt.Errorf("rotate decision log: %w", err)
	}
	return l.open()
}

func rotatedName(path string, n int) string {
	return fmt.Sprintf("%s.%d", path, n)
}

func (l *Logger) flusher(every time.Duration) {
	defer l.wg.Done()
	tick := time.NewTicker(every)
	defer tick.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-tick.C:
			if err := l.Flush(); err != nil {
				slog.Warn("decision log flush failed", "path", l.path, "error", err)
			}
		}
	}
}

// Flush writes buffered entries to disk.
func (l *Logger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Flush()
}

// Close stops the flusher and closes the file after a final flush.
func (l *Logger) Close() error {
	close(l.stop)
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	return errors.Join(l.buf.Flush(), l.file.Close())
}

// Path returns the active log file path.
func (l *Logger) Path() string { return l.path }

// ReadEntry flushes and returns the entry on 0-based line lineNum.
func (l *Logger) ReadEntry(lineNum int) (*Entry, error) {
	if err := l.Flush(); err != nil {
		return nil, err
	}
	return ReadEntry(l.path, lineNum)
}

// Search flushes and returns entries matching filter.
func (l *Logger) Search(filter Filter) ([]Entry, error) {
	if err := l.Flush(); err != nil {
		return nil, err
	}
	return Search(l.path, filter)
}

// ReadEntry returns the entry on 0-based line lineNum of the log at path.
func ReadEntry(path string, lineNum int) (*Entry, error) {
	if lineNum < 0 {
		return nil, fmt.Errorf("invalid line %d", lineNum)
	}
	var (
		found *Entry
		lines int
	)
	err := eachLine(path, func(n int, raw []byte) (bool, error) {
		lines = n + 1
		if n < lineNum {
			return true, nil
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return false, fmt.Errorf("line %d: %w", lineNum, err)
		}
		found = &e
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("line %d out of range (log has %d lines)", lineNum, lines)
	}
	return found, nil
}

// Search returns the entries of the log at path matching filter, oldest
// first. Malformed lines are skipped. A zero Limit returns every match.
func Search(path string, filter Filter) ([]Entry, error) {
	var out []Entry
	err := eachLine(path, func(_ int, raw []byte) (bool, error) {
		var e Entry
		if json.Unmarshal(raw, &e) != nil || !filter.match(e) {
			return true, nil
		}
		out = append(out, e)
		return filter.Limit <= 0 || len(out) < filter.Limit, nil
	})
	return out, err
}

// eachLine calls fn for every line of the file until fn returns false or
// an error.
func eachLine(path string, fn func(n int, raw []byte) (bool, error)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open decision log: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, bufferSize), maxLineSize)
	for n := 0; sc.Scan(); n++ {
		more, err := fn(n, sc.Bytes())
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read decision log: %w", err)
	}
	return nil
}

// EntryFromOutcome converts a rewrite outcome into a log entry.
func EntryFromOutcome(source, original string, out rewrite.Outcome, took time.Duration) Entry {
	e := Entry{
		Timestamp:  time.Now().UTC(),
		Source:     source,
		Original:   original,
		Outcome:    OutcomeUnchanged,
		Reason:     string(out.Reason),
		Rule:       out.Rule,
		Guard:      out.Guard,
		DurationMS: float64(took.Microseconds()) / 1000,
	}
	if out.Rewritten {
		e.Outcome = OutcomeRewritten
		e.Rewritten = out.Command
	}
	return e
}
