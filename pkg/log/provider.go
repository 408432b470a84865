package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	mlerrors "github.com/YuminosukeSato/mlpipe/pkg/errors"
)

// LogFileLayout names the per-run log file, e.g. logs/2024_05_01_13_45_09.log.
const LogFileLayout = "2006_01_02_15_04_05"

// Options configures a Provider.
type Options struct {
	Level Level
	// Format is "console" (human readable zerolog), "json" (zerolog JSON lines)
	// or "slog" (log/slog JSON with stack traces).
	Format string
	// Console defaults to os.Stderr.
	Console io.Writer
	// Dir receives one JSON log file per run. Empty disables file output.
	Dir string
	Now func() time.Time
}

// Provider owns the log outputs of one process run.
type Provider struct {
	root Logger
	file *os.File
	path string
}

var _ LoggerProvider = (*Provider)(nil)

// NewProvider opens the run's log file (if any) and builds the root logger.
// It also routes library warnings such as ConvergenceWarning to the logger.
func NewProvider(opts Options) (*Provider, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	p := &Provider{}
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		p.path = filepath.Join(opts.Dir, now().Format(LogFileLayout)+".log")
		f, err := os.OpenFile(p.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		p.file = f
	}

	switch opts.Format {
	case "slog":
		var w io.Writer = console
		if p.file != nil {
			w = io.MultiWriter(console, p.file)
		}
		p.root = NewSlogLogger(w, opts.Level)
	case "", "console", "json":
		var cw io.Writer = console
		if opts.Format != "json" {
			cw = zerolog.ConsoleWriter{Out: console, TimeFormat: time.TimeOnly}
		}
		var w io.Writer = cw
		if p.file != nil {
			w = zerolog.MultiLevelWriter(cw, p.file)
		}
		p.root = NewZerologLogger(w, opts.Level)
	default:
		_ = p.Close()
		return nil, fmt.Errorf("unknown log format: %s", opts.Format)
	}

	return p, nil
}

// Warnings は l に Warn レベルで書き出す WarnFunc を返す。
func Warnings(l Logger) mlerrors.WarnFunc {
	return func(w error) {
		l.Warn(w.Error(), "warning", w)
	}
}

// GetLogger returns the root logger.
func (p *Provider) GetLogger() Logger {
	return p.root
}

// GetLoggerWithName returns a logger tagged with the component name.
func (p *Provider) GetLoggerWithName(name string) Logger {
	return p.root.With(ComponentKey, name)
}

// Path returns the log file path, or "" when file output is disabled.
func (p *Provider) Path() string {
	return p.path
}

// Close closes the log file.
func (p *Provider) Close() error {
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}
