package scanner

import (
	"regexp"
	"strings"
)

// Recognizer detects one calling convention in source text.
type Recognizer interface {
	// ID returns the pattern identifier recorded on observations.
	ID() PatternID

	// Find returns every call site in content. File is left empty.
	Find(content string, p Policy) []Observation
}

// lit matches a quoted string literal and captures its body in one of three groups.
// Go regexp has no backreferences, so each quote style is its own alternative.
const lit = "(?:'([^'\"`]+)'|\"([^'\"`]+)\"|`([^'\"`]+)`)"

var methodFieldRe = regexp.MustCompile(`(?i)method\s*:\s*['"]?(GET|POST|PUT|PATCH|DELETE)['"]?`)

// DefaultRecognizers returns the built-in recognizers in a fixed order.
func DefaultRecognizers() []Recognizer {
	return []Recognizer{
		NewAxiosMethodRecognizer(),
		NewAxiosConfigRecognizer(),
		NewFetchRecognizer(),
		NewRequestRecognizer(),
		NewReactQueryRecognizer(),
		NewSWRRecognizer(),
		NewWxRequestRecognizer(),
	}
}

// patternRecognizer applies one regular expression and turns each match
// into at most one observation via resolve.
type patternRecognizer struct {
	id      PatternID
	re      *regexp.Regexp
	resolve func(t *text, m []int, p Policy) (method, path string, ok bool)
}

func (r *patternRecognizer) ID() PatternID {
	return r.id
}

func (r *patternRecognizer) Find(content string, p Policy) []Observation {
	p = p.withDefaults()
	t := newText(content)

	var out []Observation
	for _, m := range r.re.FindAllStringSubmatchIndex(content, -1) {
		method, path, ok := r.resolve(t, m, p)
		if !ok {
			continue
		}
		out = append(out, Observation{
			Method:  method,
			RawPath: path,
			Line:    t.lineAt(m[0]),
			Pattern: r.id,
			Context: t.contextAt(m[0], p.ContextMaxLen),
		})
	}
	return out
}

// NewAxiosMethodRecognizer matches axios.get('/url') style shortcuts.
func NewAxiosMethodRecognizer() Recognizer {
	return &patternRecognizer{
		id: PatternAxiosMethod,
		re: regexp.MustCompile(`(?i)axios\.(get|post|put|patch|delete)\s*\(\s*` + lit),
		resolve: func(t *text, m []int, _ Policy) (string, string, bool) {
			return strings.ToUpper(t.group(m, 1)), t.firstGroup(m, 2, 3, 4), true
		},
	}
}

// NewAxiosConfigRecognizer matches axios({ url: '/url', method: 'post' }).
func NewAxiosConfigRecognizer() Recognizer {
	return &patternRecognizer{
		id: PatternAxiosConfig,
		re: regexp.MustCompile(`(?i)axios\s*\(\s*\{[\s\S]{0,500}?url\s*:\s*` + lit + `[\s\S]{0,300}?\}`),
		resolve: func(t *text, m []int, p Policy) (string, string, bool) {
			return t.methodInWindow(m[0], p.MethodWindow), t.firstGroup(m, 1, 2, 3), true
		},
	}
}

// NewFetchRecognizer matches fetch('/url') with an optional options object.
func NewFetchRecognizer() Recognizer {
	return &patternRecognizer{
		id: PatternFetch,
		re: regexp.MustCompile(`(?i)fetch\s*\(\s*` + lit + `\s*(?:,\s*(\{[\s\S]{0,300}?\}))?\s*\)`),
		resolve: func(t *text, m []int, _ Policy) (string, string, bool) {
			method := "GET"
			if mm := methodFieldRe.FindStringSubmatch(t.group(m, 4)); mm != nil {
				method = strings.ToUpper(mm[1])
			}
			return method, t.firstGroup(m, 1, 2, 3), true
		},
	}
}

// NewRequestRecognizer matches generically named wrappers such as
// request({ url }), api.get('/url'), http.post('/url') and service('/url').
func NewRequestRecognizer() Recognizer {
	return &patternRecognizer{
		id: PatternRequest,
		re: regexp.MustCompile(`(?i)(?:request|api|http|service)\s*(?:\.\s*(get|post|put|patch|delete))?\s*\(\s*(?:\{[\s\S]{0,500}?url\s*:\s*` + lit + `|` + lit + `)`),
		resolve: func(t *text, m []int, p Policy) (string, string, bool) {
			path := t.firstGroup(m, 2, 3, 4, 5, 6, 7)
			if path == "" {
				return "", "", false
			}
			if shortcut := t.group(m, 1); shortcut != "" {
				return strings.ToUpper(shortcut), path, true
			}
			return t.methodInWindow(m[0], p.MethodWindow), path, true
		},
	}
}

// NewReactQueryRecognizer marks useQuery/useMutation call sites. The URL lives
// in a separate query function, so the observation is left unresolved.
func NewReactQueryRecognizer() Recognizer {
	return &patternRecognizer{
		id: PatternReactQuery,
		re: regexp.MustCompile(`(?i)(?:useQuery|useMutation|useInfiniteQuery)\s*\(`),
		resolve: func(*text, []int, Policy) (string, string, bool) {
			return MethodUnknown, UnresolvedPath, true
		},
	}
}

// NewSWRRecognizer matches useSWR('/url') and useRequest('/url').
func NewSWRRecognizer() Recognizer {
	return &patternRecognizer{
		id: PatternSWR,
		re: regexp.MustCompile(`(?i)(?:useSWR|useRequest)\s*\(\s*` + lit),
		resolve: func(t *text, m []int, _ Policy) (string, string, bool) {
			return "GET", t.firstGroup(m, 1, 2, 3), true
		},
	}
}

// NewWxRequestRecognizer matches mini-program wx.request({ url, method }).
func NewWxRequestRecognizer() Recognizer {
	return &patternRecognizer{
		id: PatternWxRequest,
		re: regexp.MustCompile(`(?i)wx\.request\s*\(\s*\{[\s\S]{0,500}?url\s*:\s*` + lit),
		resolve: func(t *text, m []int, p Policy) (string, string, bool) {
			return t.methodInWindow(m[0], p.MethodWindow), t.firstGroup(m, 1, 2, 3), true
		},
	}
}
