package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// MultiError joins every error produced while closing or fanning out to a
// set of sinks, so a single file failing doesn't hide the others.
type MultiError struct {
	errors []error
}

func (m *MultiError) Error() string {
	parts := make([]string, 0, len(m.errors)+1)
	parts = append(parts, fmt.Sprintf("%d errors occurred", len(m.errors)))
	for _, err := range m.errors {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}

func (m *MultiError) Unwrap() []error { return m.errors }

// Config controls which sinks a run's logger writes to.
type Config struct {
	BaseDir        string // e.g. "logs"
	AlsoToStderr   bool
	EnableDebugLog bool
}

// sinkSpec describes one file-backed log sink: its filename under the run
// directory and the minimum level it accepts.
type sinkSpec struct {
	filename string
	level    slog.Level
	enabled  func(Config) bool
}

var sinkSpecs = []sinkSpec{
	{filename: "events.jsonl", level: slog.LevelInfo, enabled: func(Config) bool { return true }},
	{filename: "errors.jsonl", level: slog.LevelWarn, enabled: func(Config) bool { return true }},
	{filename: "debug.jsonl", level: slog.LevelDebug, enabled: func(c Config) bool { return c.EnableDebugLog }},
}

// RunLogs bundles the logger for one simulation run with the means to flush
// and close its underlying files.
type RunLogs struct {
	RunID  string
	RunDir string

	Log   *slog.Logger
	Sync  func()
	Close func() error
}

// NewRunLogs creates a fresh run directory under cfg.BaseDir and returns a
// logger that fans every record out to the sinks sinkSpecs describes, plus
// stderr when cfg.AlsoToStderr is set.
func NewRunLogs(cfg Config) (*RunLogs, error) {
	if cfg.BaseDir == "" {
		cfg.BaseDir = "logs"
	}

	runID, err := newRunID()
	if err != nil {
		return nil, err
	}
	runDir := filepath.Join(cfg.BaseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, err
	}

	files, handlers, err := openSinks(runDir, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.AlsoToStderr {
		handlers = append(handlers, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}

	base := slog.New(NewFanoutHandler(handlers...)).With(
		slog.String("run_id", runID),
		slog.String("run_dir", runDir),
	)

	run := &RunLogs{
		RunID:  runID,
		RunDir: runDir,
		Log:    base,
		Sync:   func() { syncFiles(files) },
		Close:  func() error { return closeFiles(files) },
	}

	base.Info("run_start",
		slog.String("type", "run_start"),
		slog.Time("started_at", time.Now()),
		slog.Bool("debug_enabled", cfg.EnableDebugLog),
	)

	return run, nil
}

func openSinks(runDir string, cfg Config) ([]*os.File, []slog.Handler, error) {
	var files []*os.File
	var handlers []slog.Handler

	for _, spec := range sinkSpecs {
		if !spec.enabled(cfg) {
			continue
		}

		f, err := os.OpenFile(filepath.Join(runDir, spec.filename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			_ = closeFiles(files)
			return nil, nil, fmt.Errorf("opening sink %s: %w", spec.filename, err)
		}

		files = append(files, f)
		handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{Level: spec.level}))
	}

	return files, handlers, nil
}

func syncFiles(files []*os.File) {
	for _, f := range files {
		_ = f.Sync()
	}
}

func closeFiles(files []*os.File) error {
	var errs []error
	for _, f := range files {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if errs != nil {
		return &MultiError{errs}
	}
	return nil
}

func newRunID() (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s_%s", time.Now().Format("2006-01-02_15-04-05"), hex.EncodeToString(suffix)), nil
}

// RecoverAndLog is installed at the top of main so a panic is recorded with
// its stack trace before the process crashes, rather than only hitting the
// terminal.
func RecoverAndLog(log *slog.Logger, syncFn func()) {
	r := recover()
	if r == nil {
		return
	}

	log.Error("panic",
		slog.String("type", "panic"),
		slog.Any("panic", r),
		slog.String("stack", string(debug.Stack())),
	)
	if syncFn != nil {
		syncFn()
	}
	panic(r)
}

// FanoutHandler dispatches every record to each of its handlers, collecting
// write errors instead of stopping at the first one.
type FanoutHandler struct {
	mu       sync.Mutex
	handlers []slog.Handler
}

func NewFanoutHandler(h ...slog.Handler) *FanoutHandler {
	return &FanoutHandler{handlers: h}
}

func (f *FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *FanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	if errs != nil {
		return &MultiError{errs}
	}
	return nil
}

func (f *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &FanoutHandler{handlers: hs}
}

func (f *FanoutHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &FanoutHandler{handlers: hs}
}
