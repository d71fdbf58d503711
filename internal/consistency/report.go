package consistency

import (
	"fmt"
	"strings"
	"time"

	"github.com/PentesterFlow/OpenContract/internal/errors"
	"github.com/PentesterFlow/OpenContract/internal/state"
)

// Report is the result of a consistency check.
type Report struct {
	Findings      []Finding `json:"findings"`
	Notices       []string  `json:"notices,omitempty"`
	ContractCount int       `json:"contractCount"`
	OpenAPICount  int       `json:"openapiCount"`
	HandlerCount  int       `json:"handlerCount"`
}

func (r *Report) add(f Finding) {
	f.Severity = SeverityOf(f.Category)
	r.Findings = append(r.Findings, f)
}

func (r *Report) addKey(c Category, k state.Key, msg string) {
	r.add(Finding{Category: c, Method: k.Method, Path: k.Path, Message: msg})
}

// Total returns the number of findings.
func (r *Report) Total() int {
	return len(r.Findings)
}

// Passed reports whether there were no findings.
func (r *Report) Passed() bool {
	return r.Total() == 0
}

// Errors returns the error-severity findings.
func (r *Report) Errors() []Finding {
	return r.bySeverity(SeverityError)
}

// Warnings returns the warning-severity findings.
func (r *Report) Warnings() []Finding {
	return r.bySeverity(SeverityWarning)
}

func (r *Report) bySeverity(s Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == s {
			out = append(out, f)
		}
	}
	return out
}

// Counts returns the number of findings per category.
func (r *Report) Counts() map[Category]int {
	counts := make(map[Category]int, len(Categories))
	for _, f := range r.Findings {
		counts[f.Category]++
	}
	return counts
}

// ByCategory returns the findings of one category.
func (r *Report) ByCategory(c Category) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Category == c {
			out = append(out, f)
		}
	}
	return out
}

// ExitCode returns the process status for this report: non-zero only when
// strict is set and there is at least one finding.
func (r *Report) ExitCode(strict bool) int {
	if strict && r.Total() > 0 {
		return errors.ExitStrictIssues
	}
	return errors.ExitOK
}

var sectionTitles = map[Category]string{
	CategoryDuplicate:         "Duplicate endpoints",
	CategoryQuality:           "Contract quality",
	CategoryMissingInOpenAPI:  "In contract, missing from OpenAPI",
	CategoryMissingInHandlers: "In contract, missing from mock handlers",
	CategoryExtraInOpenAPI:    "In OpenAPI, not in contract",
	CategoryExtraInHandlers:   "In mock handlers, not in contract",
}

// Markdown renders the report.
func (r *Report) Markdown(now time.Time) string {
	var b strings.Builder

	b.WriteString("# Consistency Report\n\n")
	fmt.Fprintf(&b, "- Generated: `%s`\n", now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Contract endpoints: `%d`\n", r.ContractCount)
	fmt.Fprintf(&b, "- OpenAPI operations: `%d`\n", r.OpenAPICount)
	fmt.Fprintf(&b, "- Mock handlers: `%d`\n\n", r.HandlerCount)

	if len(r.Notices) > 0 {
		b.WriteString("## Notices\n\n")
		for _, n := range r.Notices {
			fmt.Fprintf(&b, "- %s\n", n)
		}
		b.WriteString("\n")
	}

	for _, c := range Categories {
		fmt.Fprintf(&b, "## %s\n\n", sectionTitles[c])
		items := r.ByCategory(c)
		if len(items) == 0 {
			b.WriteString("No issues.\n\n")
			continue
		}
		marker := "ERROR"
		if SeverityOf(c) == SeverityWarning {
			marker = "WARN"
		}
		for _, f := range items {
			subject := fmt.Sprintf("`%s %s`", f.Method, f.Path)
			if c == CategoryQuality {
				subject = fmt.Sprintf("`%s`", f.Endpoint)
			}
			fmt.Fprintf(&b, "- **%s** %s: %s\n", marker, subject, f.Message)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Summary\n\n")
	if r.Passed() {
		b.WriteString("All checks passed: contract, OpenAPI and mock handlers agree.\n")
	} else {
		fmt.Fprintf(&b, "Found **%d** issues (%d errors, %d warnings).\n",
			r.Total(), len(r.Errors()), len(r.Warnings()))
	}
	return b.String()
}
