package workflow

import (
	"io"
	"time"

	"github.com/PentesterFlow/OpenContract/internal/logger"
	"github.com/PentesterFlow/OpenContract/internal/metrics"
	"github.com/PentesterFlow/OpenContract/internal/scanner"
)

// Option is a functional option for configuring the Workflow.
type Option func(*Workflow) error

// WithConfig replaces the whole configuration.
func WithConfig(cfg *Config) Option {
	return func(w *Workflow) error {
		w.config = cfg.Clone()
		return nil
	}
}

// WithProjectRoot sets the directory to scan.
func WithProjectRoot(root string) Option {
	return func(w *Workflow) error {
		w.config.ProjectRoot = root
		return nil
	}
}

// WithOutputDir sets the artifact directory.
func WithOutputDir(dir string) Option {
	return func(w *Workflow) error {
		w.config.OutputDir = dir
		return nil
	}
}

// WithScope restricts the scan to root-relative directories.
func WithScope(dirs ...string) Option {
	return func(w *Workflow) error {
		w.config.Scope = append(w.config.Scope, dirs...)
		return nil
	}
}

// WithEntryHints names extra API wrapper directories.
func WithEntryHints(dirs ...string) Option {
	return func(w *Workflow) error {
		w.config.EntryHints = append(w.config.EntryHints, dirs...)
		return nil
	}
}

// WithAuthMode sets the auth mode label.
func WithAuthMode(mode string) Option {
	return func(w *Workflow) error {
		w.config.AuthMode = mode
		return nil
	}
}

// WithMockStrategy sets the default mock strategy.
func WithMockStrategy(strategy string) Option {
	return func(w *Workflow) error {
		w.config.MockStrategy = strategy
		return nil
	}
}

// WithProjectName sets the name shown in generated documents.
func WithProjectName(name string) Option {
	return func(w *Workflow) error {
		w.config.ProjectName = name
		return nil
	}
}

// WithStrictMode makes consistency issues fail the run.
func WithStrictMode(strict bool) Option {
	return func(w *Workflow) error {
		w.config.StrictMode = strict
		return nil
	}
}

// WithFailOnBreaking makes breaking changes fail the run.
func WithFailOnBreaking(fail bool) Option {
	return func(w *Workflow) error {
		w.config.FailOnBreaking = fail
		return nil
	}
}

// WithInteractive enables the confirmation gate, reading the answer from in
// and writing the prompt to out.
func WithInteractive(in io.Reader, out io.Writer) Option {
	return func(w *Workflow) error {
		w.config.Interactive = true
		w.input = in
		w.prompt = out
		return nil
	}
}

// WithHistory enables the snapshot history database.
func WithHistory(path string, keep int) Option {
	return func(w *Workflow) error {
		w.config.History.Enabled = true
		if path != "" {
			w.config.History.Path = path
		}
		if keep > 0 {
			w.config.History.Keep = keep
		}
		return nil
	}
}

// WithPolicy sets the scan policy.
func WithPolicy(p scanner.Policy) Option {
	return func(w *Workflow) error {
		w.config.Scan = p
		return nil
	}
}

// WithRecognizers replaces the default call-site recognizers.
func WithRecognizers(r ...scanner.Recognizer) Option {
	return func(w *Workflow) error {
		w.recognizers = r
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *logger.Logger) Option {
	return func(w *Workflow) error {
		w.logger = l
		return nil
	}
}

// WithMetrics sets a custom metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(w *Workflow) error {
		w.metrics = m
		return nil
	}
}

// WithClock overrides the time source used for generated timestamps.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) error {
		w.now = now
		return nil
	}
}
