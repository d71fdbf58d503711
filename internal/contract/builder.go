package contract

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PentesterFlow/OpenContract/internal/errors"
	"github.com/PentesterFlow/OpenContract/internal/logger"
	"github.com/PentesterFlow/OpenContract/internal/metrics"
	"github.com/PentesterFlow/OpenContract/internal/normalize"
	"github.com/PentesterFlow/OpenContract/internal/scanner"
	"github.com/PentesterFlow/OpenContract/internal/state"
)

const stageBuild = "build"

// BuilderConfig configures contract inference.
type BuilderConfig struct {
	AuthMode     string
	StrictMode   bool
	MockStrategy string
	Logger       *logger.Logger
	Metrics      *metrics.Collector
}

// Builder turns scan results into contract snapshots.
type Builder struct {
	cfg BuilderConfig
	log *logger.Logger
	m   *metrics.Collector
}

// NewBuilder creates a builder. Empty settings fall back to bearer auth and
// the success mock strategy.
func NewBuilder(cfg BuilderConfig) *Builder {
	if cfg.AuthMode == "" {
		cfg.AuthMode = AuthBearer
	}
	if cfg.MockStrategy == "" {
		cfg.MockStrategy = StrategySuccess
	}
	b := &Builder{cfg: cfg, log: cfg.Logger, m: cfg.Metrics}
	if b.log == nil {
		b.log = logger.Nop()
	}
	if b.m == nil {
		b.m = metrics.New()
	}
	b.log = b.log.WithStage(stageBuild)
	return b
}

// Build produces a snapshot from scan. Observations inside API wrapper
// directories are considered first; for each (method, path) key the first
// observation becomes the endpoint and later ones are merged into its
// provenance. Call sites without a usable URL are kept in Unresolved.
func (b *Builder) Build(scan *scanner.Result, now time.Time) (*Snapshot, error) {
	if scan == nil {
		return nil, errors.NewFatalError(stageBuild, "", "no scan result", fmt.Errorf("nil scan result"))
	}
	switch b.cfg.MockStrategy {
	case StrategySuccess, StrategyError, StrategyRandom:
	default:
		return nil, errors.NewFatalError(stageBuild, "", "invalid mock strategy "+b.cfg.MockStrategy, nil)
	}

	start := time.Now()
	obs := prioritize(scan.Matches, scan.APIDirs)

	keys := state.NewKeySet(len(obs))
	index := make(map[Key]int)
	endpoints := make([]Endpoint, 0)
	unresolved := make([]UnresolvedCall, 0)

	for _, o := range obs {
		ref := SourceRef{File: o.File, Line: o.Line, Pattern: string(o.Pattern), Context: o.Context}

		if o.Unresolved() {
			notes := make([]string, 0, 2)
			if isHookPattern(string(o.Pattern)) {
				notes = append(notes, noteHook)
			}
			notes = append(notes, noteUnresolved)
			unresolved = append(unresolved, UnresolvedCall{Method: o.Method, Source: ref, Notes: notes})
			b.m.RecordUnresolved()
			continue
		}

		ep := b.endpointFor(o, ref)
		key := ep.Key()
		if !keys.Add(key) {
			existing := &endpoints[index[key]]
			existing.Provenance = append(existing.Provenance, ref)
			b.m.RecordDuplicate()
			continue
		}
		index[key] = len(endpoints)
		endpoints = append(endpoints, ep)
		b.m.RecordEndpoint()
	}

	snap := &Snapshot{
		Meta: Meta{
			GeneratedAt:     now.UTC(),
			ProjectRoot:     scan.ProjectRoot,
			Framework:       scan.Framework,
			BaseURL:         scan.BaseURL,
			AuthMode:        b.cfg.AuthMode,
			StrictMode:      b.cfg.StrictMode,
			TotalEndpoints:  len(endpoints),
			TotalUnresolved: len(unresolved),
		},
		Endpoints:  endpoints,
		Unresolved: unresolved,
	}

	elapsed := time.Since(start)
	b.m.RecordStage(stageBuild, elapsed)
	b.log.WithFields(map[string]interface{}{
		"observations": len(obs),
		"endpoints":    len(endpoints),
		"unresolved":   len(unresolved),
	}).WithDuration(elapsed).Info("Contract built")

	return snap, nil
}

// endpointFor infers a full endpoint record from one observation.
func (b *Builder) endpointFor(o scanner.Observation, ref SourceRef) Endpoint {
	notes := make([]string, 0, 4)

	norm := normalize.Path(o.RawPath)
	notes = append(notes, norm.Notes...)
	path := norm.Path

	method := strings.ToUpper(o.Method)
	if !knownMethods[method] {
		method = "GET"
		notes = append(notes, noteMethodGuess)
	}

	id := normalize.Identify(method, path)
	paginated := isPaginated(path)

	headers, authNote := inferHeaders(path, b.cfg.AuthMode)
	body, bodyNote := inferRequestBody(method, path)

	if isHookPattern(ref.Pattern) {
		notes = append(notes, noteHook)
	}
	if paginated {
		notes = append(notes, notePagination)
	}
	if authNote != "" {
		notes = append(notes, authNote)
	}
	if bodyNote != "" {
		notes = append(notes, bodyNote)
	}
	notes = append(notes, noteSchemas)

	return Endpoint{
		Module:       id.Module,
		Name:         id.Name,
		Method:       method,
		Path:         path,
		PathParams:   inferPathParams(path),
		Query:        inferQuery(paginated),
		Headers:      headers,
		RequestBody:  body,
		Responses:    []Response{successResponse(paginated)},
		Errors:       []ErrorResponse{errorResponse()},
		MockStrategy: b.cfg.MockStrategy,
		Notes:        notes,
		Provenance:   []SourceRef{ref},
	}
}

// prioritize stable-sorts observations so that those inside earlier API
// directories come first and files outside every API directory come last.
func prioritize(obs []scanner.Observation, apiDirs []string) []scanner.Observation {
	out := make([]scanner.Observation, len(obs))
	copy(out, obs)

	rank := func(file string) int {
		for i, dir := range apiDirs {
			dir = strings.Trim(dir, "/")
			if dir != "" && (file == dir || strings.HasPrefix(file, dir+"/")) {
				return i
			}
		}
		return len(apiDirs)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return rank(out[i].File) < rank(out[j].File)
	})
	return out
}
