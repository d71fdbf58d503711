package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PentesterFlow/OpenContract/internal/errors"
	"github.com/PentesterFlow/OpenContract/internal/logger"
	"github.com/PentesterFlow/OpenContract/internal/metrics"
	"github.com/PentesterFlow/OpenContract/internal/output"
)

const stageScan = "scan"

// Result is the scan artifact.
type Result struct {
	ProjectRoot string        `json:"projectRoot"`
	Framework   string        `json:"framework"`
	BaseURL     string        `json:"baseURL"`
	AuthPattern string        `json:"authPattern"`
	APIDirs     []string      `json:"apiDirs"`
	Matches     []Observation `json:"matches"`
	Skipped     []string      `json:"skipped,omitempty"`
}

// Options configures a scan.
type Options struct {
	// Scopes restricts the walk to these root-relative directories.
	Scopes []string

	// EntryHints names extra API wrapper directories.
	EntryHints []string

	// Exclude lists directories never scanned, such as generated output.
	Exclude []string

	Policy      Policy
	Recognizers []Recognizer
	Logger      *logger.Logger
	Metrics     *metrics.Collector
}

type fileResult struct {
	observations []Observation
	signals      fileSignals
	skipped      bool
}

// Scan discovers source files under root and scans them concurrently.
// Observations are ordered by file path, then recognizer, then position, so
// the result is the same for every run over the same tree. An unreadable
// file is skipped with a warning.
func Scan(ctx context.Context, root string, opts Options) (*Result, error) {
	start := time.Now()
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithStage(stageScan)
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	policy := opts.Policy.withDefaults()
	recognizers := opts.Recognizers
	if len(recognizers) == 0 {
		recognizers = DefaultRecognizers()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.NewFatalError(stageScan, root, "invalid project root", err)
	}

	files, err := Discover(absRoot, opts.Scopes, policy, opts.Exclude)
	if err != nil {
		return nil, errors.Categorize(err, stageScan, absRoot)
	}
	m.RecordFilesDiscovered(len(files))
	log.Debugf("Discovered %d source files", len(files))

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(policy.Workers)

	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			data, err := os.ReadFile(path)
			if err != nil {
				log.SkipEvent(err, path, "read")
				m.RecordFileSkipped(skipReason(err))
				results[i].skipped = true
				return nil
			}
			m.RecordFileScanned(len(data))

			content := string(data)
			rel := relPath(absRoot, path)
			results[i].observations = ScanText(rel, content, policy, recognizers)
			results[i].signals = inspect(content)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Categorize(err, stageScan, absRoot)
	}

	signals := make([]fileSignals, 0, len(results))
	matches := make([]Observation, 0)
	var skipped []string
	for i, r := range results {
		if r.skipped {
			skipped = append(skipped, relPath(absRoot, files[i]))
			continue
		}
		signals = append(signals, r.signals)
		for _, o := range r.observations {
			log.ObservationEvent(string(o.Pattern), o.Method, o.RawPath, o.File, o.Line)
			m.RecordObservation(string(o.Pattern))
			matches = append(matches, o)
		}
	}

	info := resolveProject(absRoot, opts.EntryHints, signals)
	result := &Result{
		ProjectRoot: absRoot,
		Framework:   info.Framework,
		BaseURL:     info.BaseURL,
		AuthPattern: info.AuthPattern,
		APIDirs:     info.APIDirs,
		Matches:     matches,
		Skipped:     skipped,
	}

	elapsed := time.Since(start)
	m.RecordStage(stageScan, elapsed)
	log.WithFields(map[string]interface{}{
		"files":     len(files),
		"skipped":   len(skipped),
		"matches":   len(matches),
		"framework": result.Framework,
	}).WithDuration(elapsed).Info("Scan complete")

	return result, nil
}

func skipReason(err error) string {
	switch {
	case os.IsPermission(err):
		return "permission"
	case os.IsNotExist(err):
		return "vanished"
	}
	return "read_error"
}

// Save writes the scan artifact to path.
func (r *Result) Save(path string) error {
	return output.WriteJSON(path, r)
}

// LoadResult reads a scan artifact. A missing or malformed artifact is fatal.
func LoadResult(path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Categorize(err, "build", path)
	}

	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.NewFatalError("build", path, "malformed scan artifact", err)
	}
	if r.Matches == nil {
		return nil, errors.NewFatalError("build", path, "scan artifact has no matches field", fmt.Errorf("missing matches"))
	}
	return &r, nil
}
