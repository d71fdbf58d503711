// Package metrics collects run statistics for the contract pipeline.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// counterMap is a lazily populated set of named counters.
type counterMap struct {
	mu     sync.RWMutex
	counts map[string]*atomic.Int64
}

func newCounterMap() *counterMap {
	return &counterMap{counts: make(map[string]*atomic.Int64)}
}

func (m *counterMap) add(key string, n int64) {
	m.mu.RLock()
	c := m.counts[key]
	m.mu.RUnlock()

	if c == nil {
		m.mu.Lock()
		if m.counts[key] == nil {
			m.counts[key] = &atomic.Int64{}
		}
		c = m.counts[key]
		m.mu.Unlock()
	}
	c.Add(n)
}

func (m *counterMap) snapshot() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]int64, len(m.counts))
	for k, v := range m.counts {
		out[k] = v.Load()
	}
	return out
}

// Collector collects and aggregates metrics.
type Collector struct {
	// Scan counters
	filesDiscovered atomic.Int64
	filesScanned    atomic.Int64
	filesSkipped    atomic.Int64
	bytesScanned    atomic.Int64
	observations    atomic.Int64

	// Build counters
	endpoints  atomic.Int64
	duplicates atomic.Int64
	unresolved atomic.Int64

	// Mock server counters
	mockRequests  atomic.Int64
	mockThrottled atomic.Int64

	patterns    *counterMap
	findings    *counterMap
	skipReasons *counterMap
	statusCodes *counterMap

	stageMu        sync.RWMutex
	stageDurations map[string]time.Duration

	startMu   sync.RWMutex
	startTime time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		patterns:       newCounterMap(),
		findings:       newCounterMap(),
		skipReasons:    newCounterMap(),
		statusCodes:    newCounterMap(),
		stageDurations: make(map[string]time.Duration),
		startTime:      time.Now(),
	}
}

// RecordFilesDiscovered records the number of candidate source files.
func (c *Collector) RecordFilesDiscovered(n int) {
	c.filesDiscovered.Add(int64(n))
}

// RecordFileScanned records a scanned file and its size.
func (c *Collector) RecordFileScanned(bytes int) {
	c.filesScanned.Add(1)
	c.bytesScanned.Add(int64(bytes))
}

// RecordFileSkipped records a file that could not be read.
func (c *Collector) RecordFileSkipped(reason string) {
	c.filesSkipped.Add(1)
	c.skipReasons.add(reason, 1)
}

// RecordObservation records one observation from a recognizer.
func (c *Collector) RecordObservation(pattern string) {
	c.observations.Add(1)
	c.patterns.add(pattern, 1)
}

// RecordEndpoint records a unique endpoint in the built contract.
func (c *Collector) RecordEndpoint() {
	c.endpoints.Add(1)
}

// RecordDuplicate records an observation merged into an existing endpoint.
func (c *Collector) RecordDuplicate() {
	c.duplicates.Add(1)
}

// RecordUnresolved records a call site whose URL could not be extracted.
func (c *Collector) RecordUnresolved() {
	c.unresolved.Add(1)
}

// RecordFinding records a consistency finding by category.
func (c *Collector) RecordFinding(category string) {
	c.findings.add(category, 1)
}

// RecordStage records the duration of a pipeline stage.
func (c *Collector) RecordStage(stage string, d time.Duration) {
	c.stageMu.Lock()
	c.stageDurations[stage] += d
	c.stageMu.Unlock()
}

// RecordMockRequest records a request served by the mock server.
func (c *Collector) RecordMockRequest(status int) {
	c.mockRequests.Add(1)
	c.statusCodes.add(statusClass(status), 1)
}

// RecordThrottled records a request rejected by the mock rate limiter.
func (c *Collector) RecordThrottled() {
	c.mockThrottled.Add(1)
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	}
	return "1xx"
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() *Snapshot {
	c.startMu.RLock()
	start := c.startTime
	c.startMu.RUnlock()

	s := &Snapshot{
		Timestamp:       time.Now(),
		Uptime:          time.Since(start),
		FilesDiscovered: c.filesDiscovered.Load(),
		FilesScanned:    c.filesScanned.Load(),
		FilesSkipped:    c.filesSkipped.Load(),
		BytesScanned:    c.bytesScanned.Load(),
		Observations:    c.observations.Load(),
		Endpoints:       c.endpoints.Load(),
		Duplicates:      c.duplicates.Load(),
		Unresolved:      c.unresolved.Load(),
		MockRequests:    c.mockRequests.Load(),
		MockThrottled:   c.mockThrottled.Load(),
		PatternCounts:   c.patterns.snapshot(),
		FindingCounts:   c.findings.snapshot(),
		SkipReasons:     c.skipReasons.snapshot(),
		StatusClasses:   c.statusCodes.snapshot(),
		StageDurations:  make(map[string]time.Duration),
	}

	c.stageMu.RLock()
	for k, v := range c.stageDurations {
		s.StageDurations[k] = v
	}
	c.stageMu.RUnlock()

	return s
}

// Reset resets all metrics.
func (c *Collector) Reset() {
	for _, v := range []*atomic.Int64{
		&c.filesDiscovered, &c.filesScanned, &c.filesSkipped, &c.bytesScanned,
		&c.observations, &c.endpoints, &c.duplicates, &c.unresolved,
		&c.mockRequests, &c.mockThrottled,
	} {
		v.Store(0)
	}

	c.patterns = newCounterMap()
	c.findings = newCounterMap()
	c.skipReasons = newCounterMap()
	c.statusCodes = newCounterMap()

	c.stageMu.Lock()
	c.stageDurations = make(map[string]time.Duration)
	c.stageMu.Unlock()

	c.startMu.Lock()
	c.startTime = time.Now()
	c.startMu.Unlock()
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	Timestamp       time.Time                `json:"timestamp"`
	Uptime          time.Duration            `json:"uptime"`
	FilesDiscovered int64                    `json:"files_discovered"`
	FilesScanned    int64                    `json:"files_scanned"`
	FilesSkipped    int64                    `json:"files_skipped"`
	BytesScanned    int64                    `json:"bytes_scanned"`
	Observations    int64                    `json:"observations"`
	Endpoints       int64                    `json:"endpoints"`
	Duplicates      int64                    `json:"duplicates"`
	Unresolved      int64                    `json:"unresolved"`
	MockRequests    int64                    `json:"mock_requests"`
	MockThrottled   int64                    `json:"mock_throttled"`
	PatternCounts   map[string]int64         `json:"pattern_counts"`
	FindingCounts   map[string]int64         `json:"finding_counts"`
	SkipReasons     map[string]int64         `json:"skip_reasons"`
	StatusClasses   map[string]int64         `json:"status_classes"`
	StageDurations  map[string]time.Duration `json:"stage_durations"`
}

// TotalFindings returns the sum of findings across categories.
func (s *Snapshot) TotalFindings() int64 {
	var total int64
	for _, n := range s.FindingCounts {
		total += n
	}
	return total
}

// SkipRate returns the fraction of discovered files that were skipped.
func (s *Snapshot) SkipRate() float64 {
	if s.FilesDiscovered == 0 {
		return 0
	}
	return float64(s.FilesSkipped) / float64(s.FilesDiscovered)
}

// Summary returns a flat view suitable for structured logging.
func (s *Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"uptime":        s.Uptime.String(),
		"files_scanned": s.FilesScanned,
		"files_skipped": s.FilesSkipped,
		"observations":  s.Observations,
		"endpoints":     s.Endpoints,
		"duplicates":    s.Duplicates,
		"unresolved":    s.Unresolved,
		"findings":      s.TotalFindings(),
		"skip_rate":     s.SkipRate(),
	}
}

// Global metrics collector.
var globalCollector = New()

// SetGlobal sets the global metrics collector.
func SetGlobal(c *Collector) {
	globalCollector = c
}

// Global returns the global metrics collector.
func Global() *Collector {
	return globalCollector
}
