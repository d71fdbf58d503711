package contract

import (
	"fmt"
	"strings"

	"github.com/PentesterFlow/OpenContract/internal/normalize"
)

var (
	// ListKeywords mark a path as a paginated listing.
	ListKeywords = []string{"list", "search", "query", "page"}

	// PublicKeywords mark a path as reachable without authentication.
	PublicKeywords = []string{"login", "register", "signup", "signin", "auth", "captcha", "verify", "reset-password"}

	// UploadKeywords select a multipart request body.
	UploadKeywords = []string{"upload", "file"}
)

const (
	noteSchemas     = "request/response schemas are inferred by static scanning; confirm manually"
	noteHook        = "path inferred from a data-fetching hook; confirm manually"
	noteUnresolved  = "URL could not be extracted; confirm manually"
	notePagination  = "pagination parameters page/pageSize are inferred from the path; confirm"
	noteJSONBody    = "request body is an empty JSON object placeholder; confirm fields"
	noteMethodGuess = "HTTP method could not be determined; defaulted to GET"
)

var bodyMethods = map[string]bool{"POST": true, "PUT": true, "PATCH": true}

var knownMethods = map[string]bool{"GET": true, "POST": true, "PUT": true, "PATCH": true, "DELETE": true}

func intPtr(n int) *int {
	return &n
}

// containsKeyword returns the first keyword contained in the lowercased path.
func containsKeyword(path string, keywords []string) string {
	lower := strings.ToLower(path)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}

// isPaginated reports whether the path looks like a listing: it contains a
// list keyword, or its last segment is a literal plural.
func isPaginated(path string) bool {
	if containsKeyword(path, ListKeywords) != "" {
		return true
	}
	segs := normalize.Segments(path)
	if len(segs) == 0 {
		return false
	}
	last := segs[len(segs)-1]
	if normalize.IsPlaceholder(last) {
		return false
	}
	lower := strings.ToLower(last)
	return strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss")
}

func inferPathParams(path string) []Param {
	params := make([]Param, 0)
	seen := make(map[string]bool)
	for _, name := range normalize.Placeholders(path) {
		if seen[name] {
			continue
		}
		seen[name] = true
		params = append(params, Param{Name: name, Type: "string", Required: true})
	}
	return params
}

func inferQuery(paginated bool) []Param {
	if !paginated {
		return make([]Param, 0)
	}
	return []Param{
		{Name: "page", Type: "integer", Required: false, Description: "page number", Default: intPtr(1)},
		{Name: "pageSize", Type: "integer", Required: false, Description: "items per page", Default: intPtr(10)},
	}
}

// inferHeaders returns the auth headers for a path, plus a caveat when the
// path is considered public.
func inferHeaders(path, authMode string) ([]Header, string) {
	if kw := containsKeyword(path, PublicKeywords); kw != "" {
		return make([]Header, 0), fmt.Sprintf("no auth header: path matches public keyword %q; confirm", kw)
	}

	switch strings.ToLower(authMode) {
	case AuthBearer:
		return []Header{{Name: "Authorization", Type: "string", Required: true, Example: "Bearer <token>"}}, ""
	case AuthCookie:
		return []Header{{Name: "Cookie", Type: "string", Required: true}}, ""
	}
	return make([]Header, 0), ""
}

func inferRequestBody(method, path string) (*RequestBody, string) {
	if !bodyMethods[method] {
		return nil, ""
	}
	if kw := containsKeyword(path, UploadKeywords); kw != "" {
		return &RequestBody{
			ContentType: "multipart/form-data",
			Schema: &Schema{
				Type:       "object",
				Properties: map[string]*Schema{"file": {Type: "string", Format: "binary"}},
			},
		}, fmt.Sprintf("multipart upload inferred from path keyword %q; confirm field names", kw)
	}
	return &RequestBody{
		ContentType: "application/json",
		Schema:      &Schema{Type: "object"},
	}, noteJSONBody
}

// envelopeSchema is the {code, data, message} response wrapper.
func envelopeSchema(paginated bool) *Schema {
	data := &Schema{Type: "object"}
	if paginated {
		data.Properties = map[string]*Schema{
			"list":     {Type: "array"},
			"total":    {Type: "integer", Example: 0},
			"page":     {Type: "integer", Example: 1},
			"pageSize": {Type: "integer", Example: 10},
		}
	}
	return &Schema{
		Type: "object",
		Properties: map[string]*Schema{
			"code":    {Type: "integer", Example: 200},
			"data":    data,
			"message": {Type: "string", Example: "success"},
		},
	}
}

func successResponse(paginated bool) Response {
	data := map[string]interface{}{}
	if paginated {
		data = map[string]interface{}{"list": []interface{}{}, "total": 0, "page": 1, "pageSize": 10}
	}
	return Response{
		Status:      200,
		Description: "success",
		Schema:      envelopeSchema(paginated),
		Example:     map[string]interface{}{"code": 200, "data": data, "message": "success"},
	}
}

func errorResponse() ErrorResponse {
	const msg = "invalid request parameters"
	return ErrorResponse{
		Status:  400,
		Code:    "BAD_REQUEST",
		Message: msg,
		Example: map[string]interface{}{"code": 400, "data": nil, "message": msg},
	}
}

func isHookPattern(pattern string) bool {
	return strings.Contains(pattern, "react-query") || strings.Contains(pattern, "swr")
}
