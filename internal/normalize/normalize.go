// Package normalize canonicalizes raw API paths and derives endpoint identities.
package normalize

import (
	"regexp"
	"strings"
)

var (
	originRe       = regexp.MustCompile(`^https?://[^/?#]+`)
	templateExprRe = regexp.MustCompile(`\$\{([^}]*)\}`)
	colonParamRe   = regexp.MustCompile(`:(\w+)`)
	braceParamRe   = regexp.MustCompile(`\{(\w+)\}`)
	identRe        = regexp.MustCompile(`[A-Za-z_$][A-Za-z0-9_$]*`)
	unsafeRe       = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	multiSlashRe   = regexp.MustCompile(`/{2,}`)
)

// Identity is the semantic name of an endpoint.
type Identity struct {
	Module string
	Action string
	Name   string // module.action
}

// Result is a normalized path with the caveats raised while normalizing it.
type Result struct {
	Path  string
	Notes []string
}

// Path maps a raw path string to its normalized {param} form.
func Path(raw string) Result {
	var res Result
	p := strings.TrimSpace(raw)

	// The host may itself be a template expression, so it is never parsed.
	if origin := originRe.FindString(p); origin != "" {
		res.Notes = append(res.Notes, "absolute URL origin "+origin+" stripped; confirm base URL")
		p = p[len(origin):]
	}

	// Query strings and fragments never form part of the key.
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	p = templateExprRe.ReplaceAllStringFunc(p, func(m string) string {
		return "{" + templateName(m[2:len(m)-1]) + "}"
	})
	p = colonParamRe.ReplaceAllString(p, "{$1}")

	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = multiSlashRe.ReplaceAllString(p, "/")
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}

	if p == "/api" {
		p = "/"
	} else if strings.HasPrefix(p, "/api/") {
		p = p[len("/api"):]
	}

	res.Path = p
	return res
}

// templateName picks a parameter name out of a template interpolation expression.
func templateName(expr string) string {
	idents := identRe.FindAllString(expr, -1)
	if len(idents) == 0 {
		return "param"
	}
	name := strings.ReplaceAll(idents[len(idents)-1], "$", "")
	if name == "" {
		return "param"
	}
	return name
}

// Segments splits a normalized path into its non-empty segments.
func Segments(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsPlaceholder reports whether a path segment is a {param} placeholder.
func IsPlaceholder(segment string) bool {
	return strings.HasPrefix(segment, "{") || strings.HasPrefix(segment, ":")
}

// HasPlaceholder reports whether a normalized path contains any placeholder.
func HasPlaceholder(path string) bool {
	return strings.ContainsAny(path, "{:")
}

// Placeholders returns the placeholder names of a normalized path, in order.
func Placeholders(path string) []string {
	matches := braceParamRe.FindAllStringSubmatch(path, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return names
}

// Sanitize lowercases a segment and replaces non-alphanumeric characters with _.
func Sanitize(segment string) string {
	return strings.ToLower(unsafeRe.ReplaceAllString(segment, "_"))
}

// Identify derives module and action for a method and normalized path.
// Path structure wins over method semantics: placeholder presence picks the table.
func Identify(method, path string) Identity {
	method = strings.ToUpper(method)

	var named []string
	for _, s := range Segments(path) {
		if !IsPlaceholder(s) {
			named = append(named, s)
		}
	}

	module := "default"
	if len(named) > 0 {
		module = Sanitize(named[0])
	}

	var action string
	switch {
	case len(named) >= 2:
		action = Sanitize(named[len(named)-1])
	case HasPlaceholder(path):
		action = singleResourceAction(method)
	default:
		action = collectionAction(method)
	}

	return Identity{Module: module, Action: action, Name: module + "." + action}
}

func singleResourceAction(method string) string {
	switch method {
	case "GET":
		return "getById"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

func collectionAction(method string) string {
	switch method {
	case "GET":
		return "list"
	case "POST":
		return "create"
	case "PUT":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

// ToColon converts {id} placeholders to the :id routing form.
func ToColon(path string) string {
	return braceParamRe.ReplaceAllString(path, ":$1")
}

// FromColon converts :id placeholders to the {id} form.
func FromColon(path string) string {
	return colonParamRe.ReplaceAllString(path, "{$1}")
}
