// Package contract builds the canonical API contract from scan observations.
package contract

import (
	"time"

	"github.com/PentesterFlow/OpenContract/internal/state"
)

// Key is the primary key of an endpoint: method plus normalized path.
type Key = state.Key

// Mock strategies understood by the mock generators.
const (
	StrategySuccess = "success"
	StrategyError   = "error"
	StrategyRandom  = "random"
)

// Auth modes.
const (
	AuthBearer = "bearer"
	AuthCookie = "cookie"
	AuthCustom = "custom"
	AuthNone   = "none"
)

// Param is a path or query parameter.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description,omitempty"`
	Default     *int   `json:"default,omitempty"`
}

// Header is a request header.
type Header struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Example  string `json:"example,omitempty"`
}

// Schema is a minimal JSON schema descriptor.
type Schema struct {
	Type       string             `json:"type"`
	Format     string             `json:"format,omitempty"`
	Example    interface{}        `json:"example,omitempty"`
	Properties map[string]*Schema `json:"properties,omitempty"`
}

// RequestBody describes the inferred request payload.
type RequestBody struct {
	ContentType string  `json:"contentType"`
	Schema      *Schema `json:"schema"`
}

// Response is a success response template.
type Response struct {
	Status      int         `json:"status"`
	Description string      `json:"description"`
	Schema      *Schema     `json:"schema,omitempty"`
	Example     interface{} `json:"example,omitempty"`
}

// ErrorResponse is an error response template.
type ErrorResponse struct {
	Status  int         `json:"status"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Example interface{} `json:"example,omitempty"`
}

// SourceRef locates the call site an endpoint was inferred from.
type SourceRef struct {
	File    string `json:"file"`
	Line    int    `json:"line"`
	Pattern string `json:"pattern"`
	Context string `json:"context,omitempty"`
}

// Endpoint is one canonical contract entry.
type Endpoint struct {
	Module       string          `json:"module"`
	Name         string          `json:"name"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	PathParams   []Param         `json:"pathParams"`
	Query        []Param         `json:"query"`
	Headers      []Header        `json:"headers"`
	RequestBody  *RequestBody    `json:"requestBody,omitempty"`
	Responses    []Response      `json:"responses"`
	Errors       []ErrorResponse `json:"errors"`
	MockStrategy string          `json:"mockStrategy"`
	Notes        []string        `json:"x-todo-confirm"`
	Provenance   []SourceRef     `json:"provenance"`
}

// Key returns the endpoint's primary key.
func (e *Endpoint) Key() Key {
	return Key{Method: e.Method, Path: e.Path}
}

// RequiresAuth reports whether the endpoint carries an auth header.
func (e *Endpoint) RequiresAuth() bool {
	for _, h := range e.Headers {
		if h.Name == "Authorization" || h.Name == "Cookie" {
			return true
		}
	}
	return false
}

// Paginated reports whether the endpoint declares page/pageSize query params.
func (e *Endpoint) Paginated() bool {
	for _, q := range e.Query {
		if q.Name == "page" {
			return true
		}
	}
	return false
}

// ParamNames returns the set of path and query parameter names.
func (e *Endpoint) ParamNames() map[string]bool {
	names := make(map[string]bool, len(e.PathParams)+len(e.Query))
	for _, p := range e.PathParams {
		names[p.Name] = true
	}
	for _, q := range e.Query {
		names[q.Name] = true
	}
	return names
}

// UnresolvedCall is a detected call site whose URL could not be extracted.
type UnresolvedCall struct {
	Method string    `json:"method"`
	Source SourceRef `json:"source"`
	Notes  []string  `json:"x-todo-confirm"`
}

// Meta describes how a snapshot was generated.
type Meta struct {
	GeneratedAt     time.Time `json:"generatedAt"`
	ProjectRoot     string    `json:"projectRoot"`
	Framework       string    `json:"framework"`
	BaseURL         string    `json:"baseURL"`
	AuthMode        string    `json:"authMode"`
	StrictMode      bool      `json:"strictMode"`
	TotalEndpoints  int       `json:"totalEndpoints"`
	TotalUnresolved int       `json:"totalUnresolved"`
}

// Snapshot is a complete contract: the single source of truth for all
// generated artifacts.
type Snapshot struct {
	Meta       Meta             `json:"meta"`
	Endpoints  []Endpoint       `json:"endpoints"`
	Unresolved []UnresolvedCall `json:"unresolved,omitempty"`
}
