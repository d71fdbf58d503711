// Package consistency cross-checks a contract against its rendered OpenAPI
// document and mock handlers.
package consistency

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PentesterFlow/OpenContract/internal/contract"
	"github.com/PentesterFlow/OpenContract/internal/errors"
	"github.com/PentesterFlow/OpenContract/internal/logger"
	"github.com/PentesterFlow/OpenContract/internal/metrics"
	"github.com/PentesterFlow/OpenContract/internal/state"
)

const stageCheck = "check"

// Category classifies a finding.
type Category string

const (
	CategoryDuplicate         Category = "duplicate_key"
	CategoryQuality           Category = "quality"
	CategoryMissingInOpenAPI  Category = "missing_in_openapi"
	CategoryMissingInHandlers Category = "missing_in_handlers"
	CategoryExtraInOpenAPI    Category = "extra_in_openapi"
	CategoryExtraInHandlers   Category = "extra_in_handlers"
)

// Categories lists every category in report order.
var Categories = []Category{
	CategoryDuplicate,
	CategoryQuality,
	CategoryMissingInOpenAPI,
	CategoryMissingInHandlers,
	CategoryExtraInOpenAPI,
	CategoryExtraInHandlers,
}

// Severity of a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// SeverityOf returns the fixed severity of a category: duplicates and
// artifact gaps are errors, extras and quality issues are warnings.
func SeverityOf(c Category) Severity {
	switch c {
	case CategoryDuplicate, CategoryMissingInOpenAPI, CategoryMissingInHandlers:
		return SeverityError
	}
	return SeverityWarning
}

// Finding is one consistency issue.
type Finding struct {
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Method   string   `json:"method,omitempty"`
	Path     string   `json:"path,omitempty"`
	Endpoint string   `json:"endpoint,omitempty"`
	Message  string   `json:"message"`
}

// Checker computes consistency reports.
type Checker struct {
	log *logger.Logger
	m   *metrics.Collector
}

// NewChecker creates a checker. Nil logger and metrics are allowed.
func NewChecker(log *logger.Logger, m *metrics.Collector) *Checker {
	if log == nil {
		log = logger.Nop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Checker{log: log.WithStage(stageCheck), m: m}
}

// Check compares the contract's keys with the OpenAPI and handler key sets.
// All comparisons are set differences; declaration order is irrelevant.
func (c *Checker) Check(snap *contract.Snapshot, openapi, handlers *state.KeySet) *Report {
	if openapi == nil {
		openapi = state.NewKeySet(0)
	}
	if handlers == nil {
		handlers = state.NewKeySet(0)
	}

	r := &Report{}
	contractKeys := state.NewKeySet(len(snap.Endpoints))

	for _, ep := range snap.Endpoints {
		if !contractKeys.Add(ep.Key()) {
			r.add(Finding{
				Category: CategoryDuplicate,
				Method:   ep.Method,
				Path:     ep.Path,
				Endpoint: ep.Name,
				Message:  "duplicate (method, path) key in contract",
			})
		}
	}
	c.checkQuality(snap, r)

	for _, k := range contractKeys.Minus(openapi) {
		r.addKey(CategoryMissingInOpenAPI, k, "in contract but missing from OpenAPI")
	}
	for _, k := range contractKeys.Minus(handlers) {
		r.addKey(CategoryMissingInHandlers, k, "in contract but missing from mock handlers")
	}
	for _, k := range openapi.Minus(contractKeys) {
		r.addKey(CategoryExtraInOpenAPI, k, "in OpenAPI but not in contract")
	}
	for _, k := range handlers.Minus(contractKeys) {
		r.addKey(CategoryExtraInHandlers, k, "in mock handlers but not in contract")
	}

	r.ContractCount = contractKeys.Len()
	r.OpenAPICount = openapi.Len()
	r.HandlerCount = handlers.Len()

	for _, f := range r.Findings {
		c.m.RecordFinding(string(f.Category))
	}
	c.log.WithFields(map[string]interface{}{
		"findings": r.Total(),
		"errors":   len(r.Errors()),
		"warnings": len(r.Warnings()),
	}).Info("Consistency check complete")

	return r
}

func (c *Checker) checkQuality(snap *contract.Snapshot, r *Report) {
	names := make(map[string]int)
	for _, ep := range snap.Endpoints {
		names[ep.Name]++
	}
	reported := make(map[string]bool)

	for _, ep := range snap.Endpoints {
		q := func(msg string) {
			r.add(Finding{
				Category: CategoryQuality,
				Method:   ep.Method,
				Path:     ep.Path,
				Endpoint: ep.Name,
				Message:  msg,
			})
		}

		if !validName(ep.Name) {
			q("endpoint name should have the form module.action")
		}
		if !hasStatus(successStatuses(ep), 2, 2) {
			q("missing 2xx success response")
		}
		if !hasStatus(errorStatuses(ep), 4, 5) {
			q("missing 4xx/5xx error response")
		}
		if names[ep.Name] > 1 && !reported[ep.Name] {
			reported[ep.Name] = true
			q(fmt.Sprintf("name shared by %d endpoints", names[ep.Name]))
		}
	}
}

func validName(name string) bool {
	module, action, ok := strings.Cut(name, ".")
	return ok && module != "" && action != ""
}

func successStatuses(ep contract.Endpoint) []int {
	out := make([]int, 0, len(ep.Responses))
	for _, resp := range ep.Responses {
		out = append(out, resp.Status)
	}
	return out
}

func errorStatuses(ep contract.Endpoint) []int {
	out := make([]int, 0, len(ep.Errors))
	for _, e := range ep.Errors {
		out = append(out, e.Status)
	}
	return out
}

// hasStatus reports whether any status falls in the classes lo..hi (e.g. 4..5 for 4xx-5xx).
func hasStatus(statuses []int, lo, hi int) bool {
	for _, s := range statuses {
		if class := s / 100; class >= lo && class <= hi {
			return true
		}
	}
	return false
}

// CheckFiles loads the artifacts from disk and checks them. A missing or
// malformed contract is fatal; a missing or unreadable OpenAPI document or
// handler directory is treated as empty and noted in the report.
func (c *Checker) CheckFiles(contractPath, openapiPath, handlersPath string) (*Report, error) {
	start := time.Now()

	snap, err := contract.Load(contractPath)
	if err != nil {
		return nil, errors.Categorize(err, stageCheck, contractPath)
	}

	var notices []string

	openapi := state.NewKeySet(0)
	if data, err := os.ReadFile(openapiPath); err != nil {
		notices = append(notices, fmt.Sprintf("OpenAPI document not readable (%s); treated as empty", openapiPath))
		c.log.SkipEvent(err, openapiPath, "read openapi")
	} else if keys, err := OpenAPIKeys(data); err != nil {
		notices = append(notices, fmt.Sprintf("OpenAPI document not parsable (%s); treated as empty", openapiPath))
		c.log.SkipEvent(err, openapiPath, "parse openapi")
	} else {
		openapi = keys
	}

	handlers, err := HandlerKeys(handlersPath)
	if err != nil {
		notices = append(notices, fmt.Sprintf("mock handlers not readable (%s); treated as empty", handlersPath))
		c.log.SkipEvent(err, handlersPath, "read handlers")
		handlers = state.NewKeySet(0)
	}

	r := c.Check(snap, openapi, handlers)
	r.Notices = notices
	c.m.RecordStage(stageCheck, time.Since(start))
	return r, nil
}
