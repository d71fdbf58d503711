// Package diff classifies endpoint changes between two contract snapshots.
package diff

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PentesterFlow/OpenContract/internal/contract"
	"github.com/PentesterFlow/OpenContract/internal/errors"
)

// Status is the change status of one endpoint key.
type Status string

const (
	StatusAdded     Status = "added"
	StatusRemoved   Status = "removed"
	StatusModified  Status = "modified"
	StatusUnchanged Status = "unchanged"
)

// ChangeRecord describes one key across two snapshots.
type ChangeRecord struct {
	Method   string   `json:"method"`
	Path     string   `json:"path"`
	Name     string   `json:"name,omitempty"`
	Status   Status   `json:"status"`
	Breaking bool     `json:"breaking"`
	Reason   string   `json:"reason"`
	Removed  []string `json:"removedParams,omitempty"`
}

// Report is the full diff between two snapshots.
type Report struct {
	Records       []ChangeRecord `json:"records"`
	PreviousCount int            `json:"previousCount"`
	CurrentCount  int            `json:"currentCount"`
	HasPrevious   bool           `json:"hasPrevious"`
}

// Compare classifies every key in the union of both snapshots. prev may be nil,
// in which case every current endpoint is added. Records are ordered by
// method, then path.
func Compare(prev, curr *contract.Snapshot) *Report {
	r := &Report{HasPrevious: prev != nil}

	prevIdx := map[contract.Key]*contract.Endpoint{}
	if prev != nil {
		prevIdx = prev.Index()
	}
	currIdx := map[contract.Key]*contract.Endpoint{}
	if curr != nil {
		currIdx = curr.Index()
	}
	r.PreviousCount = len(prevIdx)
	r.CurrentCount = len(currIdx)

	union := make(map[contract.Key]bool, len(prevIdx)+len(currIdx))
	for k := range prevIdx {
		union[k] = true
	}
	for k := range currIdx {
		union[k] = true
	}
	keys := make([]contract.Key, 0, len(union))
	for k := range union {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Method != keys[j].Method {
			return keys[i].Method < keys[j].Method
		}
		return keys[i].Path < keys[j].Path
	})

	for _, k := range keys {
		r.Records = append(r.Records, Classify(k, prevIdx[k], currIdx[k]))
	}
	return r
}

// Classify compares one key's endpoint in the previous and current snapshot.
// Removing an endpoint or any of its parameter names is breaking; adding
// either is not.
func Classify(k contract.Key, old, cur *contract.Endpoint) ChangeRecord {
	rec := ChangeRecord{Method: k.Method, Path: k.Path}

	switch {
	case old == nil && cur == nil:
		rec.Status = StatusUnchanged
		return rec
	case old == nil:
		rec.Name = cur.Name
		rec.Status = StatusAdded
		rec.Reason = "new endpoint"
		return rec
	case cur == nil:
		rec.Name = old.Name
		rec.Status = StatusRemoved
		rec.Breaking = true
		rec.Reason = "endpoint removed"
		return rec
	}

	rec.Name = cur.Name
	if removed := missingParams(old.ParamNames(), cur.ParamNames()); len(removed) > 0 {
		rec.Status = StatusModified
		rec.Breaking = true
		rec.Removed = removed
		rec.Reason = "parameters removed: " + strings.Join(removed, ", ")
		return rec
	}

	if sameContract(old, cur) {
		rec.Status = StatusUnchanged
		rec.Reason = "no change"
		return rec
	}

	rec.Status = StatusModified
	rec.Reason = "compatible update"
	return rec
}

// missingParams returns the sorted names in old that are absent from cur.
func missingParams(old, cur map[string]bool) []string {
	var out []string
	for name := range old {
		if !cur[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// sameContract compares the endpoints' projections, ignoring provenance.
func sameContract(a, b *contract.Endpoint) bool {
	pa, errA := contract.Projection(*a)
	pb, errB := contract.Projection(*b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(pa, pb)
}

func (r *Report) count(s Status) int {
	n := 0
	for _, rec := range r.Records {
		if rec.Status == s {
			n++
		}
	}
	return n
}

// Added returns the number of added endpoints.
func (r *Report) Added() int { return r.count(StatusAdded) }

// Removed returns the number of removed endpoints.
func (r *Report) Removed() int { return r.count(StatusRemoved) }

// Modified returns the number of modified endpoints.
func (r *Report) Modified() int { return r.count(StatusModified) }

// Unchanged returns the number of unchanged endpoints.
func (r *Report) Unchanged() int { return r.count(StatusUnchanged) }

// Breaking returns the breaking records.
func (r *Report) Breaking() []ChangeRecord {
	var out []ChangeRecord
	for _, rec := range r.Records {
		if rec.Breaking {
			out = append(out, rec)
		}
	}
	return out
}

// ExitCode returns ExitBreaking when failOnBreaking is set and any change is breaking.
func (r *Report) ExitCode(failOnBreaking bool) int {
	if failOnBreaking && len(r.Breaking()) > 0 {
		return errors.ExitBreaking
	}
	return errors.ExitOK
}

var statusLabels = map[Status]string{
	StatusAdded:     "Added",
	StatusRemoved:   "Removed",
	StatusModified:  "Modified",
	StatusUnchanged: "Unchanged",
}

// Markdown renders the report as a change table.
func (r *Report) Markdown(now time.Time) string {
	var b strings.Builder

	b.WriteString("# API Change Report\n\n")
	fmt.Fprintf(&b, "- Generated: `%s`\n", now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Previous endpoints: `%d`\n", r.PreviousCount)
	fmt.Fprintf(&b, "- Current endpoints: `%d`\n\n", r.CurrentCount)

	if !r.HasPrevious {
		b.WriteString("No previous contract; every endpoint is reported as added.\n\n")
	}
	if len(r.Records) == 0 {
		b.WriteString("No endpoints.\n")
		return b.String()
	}

	b.WriteString("| Status | Method | Path | Change |\n")
	b.WriteString("|--------|--------|------|--------|\n")
	for _, rec := range r.Records {
		change := "non-breaking"
		if rec.Breaking {
			change = "**breaking**"
		}
		if rec.Reason != "" {
			change += " (" + rec.Reason + ")"
		}
		fmt.Fprintf(&b, "| %s | `%s` | `%s` | %s |\n", statusLabels[rec.Status], rec.Method, rec.Path, change)
	}

	fmt.Fprintf(&b, "\n**Summary**: %d added, %d modified, %d removed, %d unchanged, %d breaking\n",
		r.Added(), r.Modified(), r.Removed(), r.Unchanged(), len(r.Breaking()))
	return b.String()
}
