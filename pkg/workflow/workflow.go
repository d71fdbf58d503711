// Package workflow runs the contract pipeline: scan, build, confirm, render,
// check and diff.
package workflow

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PentesterFlow/OpenContract/internal/consistency"
	"github.com/PentesterFlow/OpenContract/internal/contract"
	"github.com/PentesterFlow/OpenContract/internal/diff"
	"github.com/PentesterFlow/OpenContract/internal/errors"
	"github.com/PentesterFlow/OpenContract/internal/logger"
	"github.com/PentesterFlow/OpenContract/internal/metrics"
	"github.com/PentesterFlow/OpenContract/internal/output"
	"github.com/PentesterFlow/OpenContract/internal/render"
	"github.com/PentesterFlow/OpenContract/internal/scanner"
	"github.com/PentesterFlow/OpenContract/internal/state"
)

// Stage names used in logs, metrics and errors.
const (
	StageScan    = "scan"
	StageBuild   = "build"
	StageConfirm = "confirm"
	StageRender  = "render"
	StageCheck   = "check"
	StageDiff    = "diff"
	StageHistory = "history"
)

// Result collects the outputs of a run. Fields are nil for stages that did
// not run.
type Result struct {
	Scan        *scanner.Result
	Snapshot    *contract.Snapshot
	Artifacts   []string
	Consistency *consistency.Report
	Diff        *diff.Report
	History     *state.Entry
}

// Workflow is the pipeline orchestrator.
type Workflow struct {
	config      *Config
	logger      *logger.Logger
	metrics     *metrics.Collector
	recognizers []scanner.Recognizer
	input       io.Reader
	prompt      io.Writer
	now         func() time.Time
}

// New creates a workflow with the given options.
func New(opts ...Option) (*Workflow, error) {
	w := &Workflow{
		config: DefaultConfig(),
		now:    time.Now,
	}

	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	w.config.applyDefaults()
	if err := w.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	w.config.AuthMode = strings.ToLower(w.config.AuthMode)

	if w.logger == nil {
		level, err := logger.ParseLevel(w.config.Log.Level)
		if err != nil {
			level = logger.InfoLevel
		}
		w.logger = logger.New(logger.Config{
			Level:     level,
			Pretty:    w.config.Log.Pretty,
			Component: "workflow",
		})
	}
	if w.metrics == nil {
		w.metrics = metrics.New()
	}
	if w.input == nil {
		w.input = os.Stdin
	}
	if w.prompt == nil {
		w.prompt = os.Stderr
	}
	return w, nil
}

// Config returns a copy of the effective configuration.
func (w *Workflow) Config() *Config {
	return w.config.Clone()
}

// Metrics returns the run's metrics collector.
func (w *Workflow) Metrics() *metrics.Collector {
	return w.metrics
}

// Snapshots returns the current/previous contract pair in the output directory.
func (w *Workflow) Snapshots() *state.Snapshots {
	return state.NewSnapshots(w.config.OutputRoot())
}

// Excludes lists the generated directories the scan must never read.
func (w *Workflow) Excludes() []string {
	out := w.config.OutputRoot()
	root, err := filepath.Abs(w.config.ProjectRoot)
	if err != nil {
		root = w.config.ProjectRoot
	}

	dirs := []string{filepath.Dir(w.config.HistoryPath())}
	if out == root {
		return append(dirs, w.config.Path(render.DocsDir), w.config.Path(render.MockDir), w.config.Path(ReportsDir))
	}
	return append(dirs, out)
}

func (w *Workflow) stage(name string, start time.Time, artifact string) {
	d := time.Since(start)
	w.metrics.RecordStage(name, d)
	w.logger.StageEvent(name, d, artifact)
}

func cancelled(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return errors.NewCancelledError(stage, err)
	}
	return nil
}

// Scan runs the call-site scanner and writes the scan artifact.
func (w *Workflow) Scan(ctx context.Context) (*scanner.Result, error) {
	start := time.Now()
	res, err := scanner.Scan(ctx, w.config.ProjectRoot, scanner.Options{
		Scopes:      w.config.Scope,
		EntryHints:  w.config.EntryHints,
		Exclude:     w.Excludes(),
		Policy:      w.config.Scan,
		Recognizers: w.recognizers,
		Logger:      w.logger,
		Metrics:     w.metrics,
	})
	if err != nil {
		return nil, errors.Categorize(err, StageScan, w.config.ProjectRoot)
	}

	path := w.config.Path(ScanResultFile)
	if err := res.Save(path); err != nil {
		return nil, errors.NewFatalError(StageScan, path, "failed to write scan result", err)
	}
	w.stage(StageScan, start, path)
	return res, nil
}

// Build infers the contract from a scan result. The existing contract is
// rotated to the previous slot before the new one is written.
func (w *Workflow) Build(scan *scanner.Result) (*contract.Snapshot, error) {
	start := time.Now()
	b := contract.NewBuilder(contract.BuilderConfig{
		AuthMode:     w.config.AuthMode,
		StrictMode:   w.config.StrictMode,
		MockStrategy: w.config.MockStrategy,
		Logger:       w.logger,
		Metrics:      w.metrics,
	})
	snap, err := b.Build(scan, w.now().UTC())
	if err != nil {
		return nil, errors.Categorize(err, StageBuild, "")
	}

	snaps := w.Snapshots()
	rotated, err := snaps.Rotate()
	if err != nil {
		return nil, errors.NewFatalError(StageBuild, snaps.PreviousPath(), "failed to keep previous contract", err)
	}
	if rotated {
		w.logger.WithFile(snaps.PreviousPath()).Debug("previous contract kept")
	}
	if err := snap.Save(snaps.CurrentPath()); err != nil {
		return nil, errors.NewFatalError(StageBuild, snaps.CurrentPath(), "failed to write contract", err)
	}
	w.stage(StageBuild, start, snaps.CurrentPath())
	return snap, nil
}

// BuildFromFile builds a contract from a saved scan artifact.
func (w *Workflow) BuildFromFile(scanPath string) (*contract.Snapshot, error) {
	if scanPath == "" {
		scanPath = w.config.Path(ScanResultFile)
	}
	res, err := scanner.LoadResult(scanPath)
	if err != nil {
		return nil, errors.Categorize(err, StageBuild, scanPath)
	}
	return w.Build(res)
}

// Confirm pauses until the user accepts the contract. It is a no-op unless
// the workflow is interactive. End of input, a negative answer or context
// cancellation abort the run.
func (w *Workflow) Confirm(ctx context.Context) error {
	if !w.config.Interactive {
		return nil
	}
	fmt.Fprintf(w.prompt, "Review %s, then press Enter to continue (n to abort): ", w.Snapshots().CurrentPath())

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(w.input).ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		ch <- answer{strings.TrimSpace(line), err}
	}()

	select {
	case <-ctx.Done():
		return errors.NewCancelledError(StageConfirm, ctx.Err())
	case a := <-ch:
		if a.err != nil {
			return errors.NewCancelledError(StageConfirm, a.err)
		}
		switch strings.ToLower(a.line) {
		case "n", "no", "q", "quit", "abort":
			return errors.NewCancelledError(StageConfirm, nil)
		}
		return nil
	}
}

// Generate renders documentation and mock artifacts from the contract.
func (w *Workflow) Generate(snap *contract.Snapshot) ([]string, error) {
	start := time.Now()
	written, err := render.WriteAll(snap, w.config.OutputRoot(), render.Options{
		Doc:    render.DocOptions{ProjectName: w.config.ProjectName, Version: w.config.APIVersion},
		Now:    w.now(),
		Logger: w.logger,
	})
	if err != nil {
		return written, errors.NewFatalError(StageRender, w.config.OutputRoot(), "failed to write artifacts", err)
	}
	w.stage(StageRender, start, w.config.OutputRoot())
	return written, nil
}

// GenerateFromFile renders artifacts from the contract on disk.
func (w *Workflow) GenerateFromFile() ([]string, error) {
	path := w.Snapshots().CurrentPath()
	snap, err := contract.Load(path)
	if err != nil {
		return nil, errors.Categorize(err, StageRender, path)
	}
	return w.Generate(snap)
}

// Check cross-checks the contract against the generated OpenAPI document and
// mock handlers and writes the consistency report.
func (w *Workflow) Check() (*consistency.Report, error) {
	start := time.Now()
	checker := consistency.NewChecker(w.logger, w.metrics)
	report, err := checker.CheckFiles(
		w.Snapshots().CurrentPath(),
		w.config.Path(render.OpenAPIFile),
		w.config.Path(render.HandlersDir),
	)
	if err != nil {
		return nil, err
	}

	path := w.config.Path(ConsistencyReportFile)
	if err := output.WriteFileAtomic(path, []byte(report.Markdown(w.now()))); err != nil {
		return report, errors.NewFatalError(StageCheck, path, "failed to write consistency report", err)
	}
	for _, n := range report.Notices {
		w.logger.Warn(n)
	}
	w.logger.WithFields(map[string]interface{}{
		"errors":   len(report.Errors()),
		"warnings": len(report.Warnings()),
	}).Info("consistency check finished")
	w.stage(StageCheck, start, path)
	return report, nil
}

// Diff classifies changes from prev to curr and writes the diff report.
// prev may be nil.
func (w *Workflow) Diff(prev, curr *contract.Snapshot) (*diff.Report, error) {
	start := time.Now()
	report := diff.Compare(prev, curr)

	path := w.config.Path(DiffReportFile)
	if err := output.WriteFileAtomic(path, []byte(report.Markdown(w.now()))); err != nil {
		return report, errors.NewFatalError(StageDiff, path, "failed to write diff report", err)
	}
	w.logger.WithFields(map[string]interface{}{
		"added":    report.Added(),
		"removed":  report.Removed(),
		"modified": report.Modified(),
		"breaking": len(report.Breaking()),
	}).Info("diff finished")
	w.stage(StageDiff, start, path)
	return report, nil
}

// DiffFiles compares the previous and current contracts on disk.
func (w *Workflow) DiffFiles() (*diff.Report, error) {
	snaps := w.Snapshots()
	curr, err := contract.Load(snaps.CurrentPath())
	if err != nil {
		return nil, errors.Categorize(err, StageDiff, snaps.CurrentPath())
	}

	var prev *contract.Snapshot
	if snaps.HasPrevious() {
		prev, err = contract.Load(snaps.PreviousPath())
		if err != nil {
			return nil, errors.Categorize(err, StageDiff, snaps.PreviousPath())
		}
	}
	return w.Diff(prev, curr)
}

// DiffAgainst compares a stored history snapshot with the current contract.
func (w *Workflow) DiffAgainst(id string) (*diff.Report, error) {
	snaps := w.Snapshots()
	curr, err := contract.Load(snaps.CurrentPath())
	if err != nil {
		return nil, errors.Categorize(err, StageDiff, snaps.CurrentPath())
	}

	h, err := state.OpenHistory(w.config.HistoryPath())
	if err != nil {
		return nil, errors.NewFatalError(StageDiff, w.config.HistoryPath(), "failed to open history", err)
	}
	defer h.Close()

	data, err := h.Get(id)
	if err != nil {
		return nil, errors.NewFatalError(StageDiff, id, "history snapshot not available", err)
	}
	prev, err := contract.Parse(data, "history:"+id)
	if err != nil {
		return nil, errors.Categorize(err, StageDiff, id)
	}
	return w.Diff(prev, curr)
}

// Record appends snap to the history database and prunes old entries. It is
// a no-op when history is disabled.
func (w *Workflow) Record(snap *contract.Snapshot, breaking int) (*state.Entry, error) {
	if !w.config.History.Enabled {
		return nil, nil
	}
	data, err := snap.Marshal()
	if err != nil {
		return nil, errors.NewFatalError(StageHistory, "", "failed to encode contract", err)
	}

	h, err := state.OpenHistory(w.config.HistoryPath())
	if err != nil {
		return nil, errors.NewFatalError(StageHistory, w.config.HistoryPath(), "failed to open history", err)
	}
	defer h.Close()

	entry, err := h.Append(data, state.Entry{
		CreatedAt:      w.now().UTC(),
		ProjectName:    w.config.ProjectName,
		TotalEndpoints: len(snap.Endpoints),
		Breaking:       breaking,
	})
	if err != nil {
		return nil, errors.NewFatalError(StageHistory, w.config.HistoryPath(), "failed to store snapshot", err)
	}
	pruned, err := h.Prune(w.config.History.Keep)
	if err != nil {
		w.logger.WithError(err).Warn("failed to prune history")
	} else if pruned > 0 {
		w.logger.Debugf("pruned %d history entries", pruned)
	}
	return &entry, nil
}

// History lists stored snapshots, oldest first.
func (w *Workflow) History() ([]state.Entry, error) {
	h, err := state.OpenHistory(w.config.HistoryPath())
	if err != nil {
		return nil, errors.NewFatalError(StageHistory, w.config.HistoryPath(), "failed to open history", err)
	}
	defer h.Close()
	return h.List()
}

// Run executes every stage in order. A fatal error stops the run at the
// failing stage. Consistency issues stop it only in strict mode and breaking
// changes only with fail_on_breaking; both return a policy error whose exit
// code is reported by errors.ExitCode.
func (w *Workflow) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	log := w.logger.WithFields(map[string]interface{}{
		"project": w.config.ProjectRoot,
		"output":  w.config.OutputRoot(),
	})
	log.Info("workflow started")

	scan, err := w.Scan(ctx)
	if err != nil {
		return res, err
	}
	res.Scan = scan
	if err := cancelled(ctx, StageBuild); err != nil {
		return res, err
	}

	snaps := w.Snapshots()
	var prev *contract.Snapshot
	if data, err := snaps.ReadCurrent(); err == nil {
		if p, err := contract.Parse(data, snaps.CurrentPath()); err == nil {
			prev = p
		} else {
			log.WithError(err).Warn("existing contract unreadable; diff will treat every endpoint as added")
		}
	}

	snap, err := w.Build(scan)
	if err != nil {
		return res, err
	}
	res.Snapshot = snap

	if err := w.Confirm(ctx); err != nil {
		log.Warn("run aborted at confirmation")
		return res, err
	}
	if err := cancelled(ctx, StageRender); err != nil {
		return res, err
	}

	if res.Artifacts, err = w.Generate(snap); err != nil {
		return res, err
	}

	if res.Consistency, err = w.Check(); err != nil {
		return res, err
	}
	if code := res.Consistency.ExitCode(w.config.StrictMode); code != errors.ExitOK {
		w.summary()
		return res, errors.NewPolicyError(StageCheck,
			fmt.Sprintf("%d consistency issues in strict mode", res.Consistency.Total()), code)
	}

	if res.Diff, err = w.Diff(prev, snap); err != nil {
		return res, err
	}

	if res.History, err = w.Record(snap, len(res.Diff.Breaking())); err != nil {
		return res, err
	}

	w.summary()
	if code := res.Diff.ExitCode(w.config.FailOnBreaking); code != errors.ExitOK {
		return res, errors.NewPolicyError(StageDiff,
			fmt.Sprintf("%d breaking changes", len(res.Diff.Breaking())), code)
	}
	log.Info("workflow finished")
	return res, nil
}

func (w *Workflow) summary() {
	w.logger.StatsEvent(w.metrics.Snapshot().Summary())
}
