package scanner

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// text wraps file content with a newline index for line lookups.
type text struct {
	content  string
	newlines []int
}

func newText(content string) *text {
	t := &text{content: content}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			t.newlines = append(t.newlines, i)
		}
	}
	return t
}

// lineAt returns the 1-based line of offset: the number of newlines before it, plus one.
func (t *text) lineAt(offset int) int {
	return sort.SearchInts(t.newlines, offset) + 1
}

// contextAt returns the trimmed source line containing offset, cut to maxLen runes.
func (t *text) contextAt(offset, maxLen int) string {
	start := strings.LastIndexByte(t.content[:offset], '\n') + 1
	end := strings.IndexByte(t.content[offset:], '\n')
	if end < 0 {
		end = len(t.content)
	} else {
		end += offset
	}

	line := strings.TrimSpace(t.content[start:end])
	if utf8.RuneCountInString(line) <= maxLen {
		return line
	}
	runes := []rune(line)
	return string(runes[:maxLen]) + "..."
}

// methodInWindow searches the window bytes following start for a method field.
// It defaults to GET.
func (t *text) methodInWindow(start, window int) string {
	end := start + window
	if end > len(t.content) {
		end = len(t.content)
	}
	if m := methodFieldRe.FindStringSubmatch(t.content[start:end]); m != nil {
		return strings.ToUpper(m[1])
	}
	return "GET"
}

// group returns submatch n, or "" when it did not participate.
func (t *text) group(m []int, n int) string {
	if 2*n+1 >= len(m) || m[2*n] < 0 {
		return ""
	}
	return t.content[m[2*n]:m[2*n+1]]
}

// firstGroup returns the first non-empty submatch among groups.
func (t *text) firstGroup(m []int, groups ...int) string {
	for _, n := range groups {
		if s := t.group(m, n); s != "" {
			return s
		}
	}
	return ""
}

// ScanText applies recognizers to content in order and concatenates their
// observations, stamping each with file.
func ScanText(file, content string, p Policy, recognizers []Recognizer) []Observation {
	var out []Observation
	for _, r := range recognizers {
		for _, o := range r.Find(content, p) {
			o.File = file
			out = append(out, o)
		}
	}
	return out
}
