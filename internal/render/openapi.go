// Package render turns a contract snapshot into documentation and mock artifacts.
// Renderers consume the snapshot as-is and add no inference of their own.
package render

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/OpenContract/internal/contract"
)

// OpenAPIVersion is the emitted document version.
const OpenAPIVersion = "3.1.0"

// DocOptions carries the project metadata shown in generated documents.
type DocOptions struct {
	ProjectName string
	Version     string
}

func (o DocOptions) withDefaults() DocOptions {
	if o.ProjectName == "" {
		o.ProjectName = "Project"
	}
	if o.Version == "" {
		o.Version = "1.0.0"
	}
	return o
}

// Document is the OpenAPI document model.
type Document struct {
	OpenAPI    string              `yaml:"openapi"`
	Info       Info                `yaml:"info"`
	Servers    []Server            `yaml:"servers,omitempty"`
	Paths      map[string]PathItem `yaml:"paths"`
	Components *Components         `yaml:"components,omitempty"`
}

// Info is the document's info object.
type Info struct {
	Title       string `yaml:"title"`
	Version     string `yaml:"version"`
	Description string `yaml:"description,omitempty"`
}

// Server is a server entry.
type Server struct {
	URL         string `yaml:"url"`
	Description string `yaml:"description,omitempty"`
}

// PathItem maps lowercase methods to operations.
type PathItem map[string]*Operation

// Operation is one method on one path.
type Operation struct {
	OperationID string                    `yaml:"operationId"`
	Tags        []string                  `yaml:"tags"`
	Summary     string                    `yaml:"summary"`
	Parameters  []Parameter               `yaml:"parameters,omitempty"`
	RequestBody *RequestBodyObject        `yaml:"requestBody,omitempty"`
	Responses   map[string]ResponseObject `yaml:"responses"`
	Security    []map[string][]string     `yaml:"security,omitempty"`
	TodoConfirm []string                  `yaml:"x-todo-confirm,omitempty"`
}

// Parameter is a path, query or header parameter.
type Parameter struct {
	Name        string        `yaml:"name"`
	In          string        `yaml:"in"`
	Required    bool          `yaml:"required"`
	Description string        `yaml:"description,omitempty"`
	Schema      *SchemaObject `yaml:"schema"`
}

// SchemaObject is the emitted schema.
type SchemaObject struct {
	Type       string                   `yaml:"type,omitempty"`
	Format     string                   `yaml:"format,omitempty"`
	Default    *int                     `yaml:"default,omitempty"`
	Example    interface{}              `yaml:"example,omitempty"`
	Properties map[string]*SchemaObject `yaml:"properties,omitempty"`
}

// RequestBodyObject is an operation's request body.
type RequestBodyObject struct {
	Required bool                 `yaml:"required"`
	Content  map[string]MediaType `yaml:"content"`
}

// MediaType is one content-type entry.
type MediaType struct {
	Schema  *SchemaObject `yaml:"schema,omitempty"`
	Example interface{}   `yaml:"example,omitempty"`
}

// ResponseObject is one response status entry.
type ResponseObject struct {
	Description string               `yaml:"description"`
	Content     map[string]MediaType `yaml:"content,omitempty"`
}

// Components holds reusable definitions.
type Components struct {
	SecuritySchemes map[string]SecurityScheme `yaml:"securitySchemes,omitempty"`
}

// SecurityScheme describes an auth scheme.
type SecurityScheme struct {
	Type         string `yaml:"type"`
	Scheme       string `yaml:"scheme,omitempty"`
	BearerFormat string `yaml:"bearerFormat,omitempty"`
	In           string `yaml:"in,omitempty"`
	Name         string `yaml:"name,omitempty"`
	Description  string `yaml:"description,omitempty"`
}

const bearerScheme = "BearerAuth"

// BuildDocument maps a snapshot onto the OpenAPI model.
func BuildDocument(snap *contract.Snapshot, opts DocOptions) *Document {
	opts = opts.withDefaults()

	doc := &Document{
		OpenAPI: OpenAPIVersion,
		Info: Info{
			Title:       opts.ProjectName + " API",
			Version:     opts.Version,
			Description: fmt.Sprintf("%s API, generated from static analysis of the frontend source", opts.ProjectName),
		},
		Servers: []Server{
			{URL: "http://localhost:3000", Description: "development (mock)"},
		},
		Paths: make(map[string]PathItem),
	}
	if snap.Meta.BaseURL != "" {
		if u := serverURL(snap.Meta.BaseURL); u != "" {
			doc.Servers = append(doc.Servers, Server{URL: u, Description: "detected base URL"})
		}
	}

	bearer := strings.EqualFold(snap.Meta.AuthMode, contract.AuthBearer)
	ids := make(map[string]bool, len(snap.Endpoints))
	for i := range snap.Endpoints {
		ep := &snap.Endpoints[i]
		item, ok := doc.Paths[ep.Path]
		if !ok {
			item = make(PathItem)
			doc.Paths[ep.Path] = item
		}
		op := operationFor(ep)
		op.OperationID = operationID(ep, ids)
		if bearer && ep.RequiresAuth() {
			op.Security = []map[string][]string{{bearerScheme: {}}}
		}
		item[strings.ToLower(ep.Method)] = op
	}

	switch strings.ToLower(snap.Meta.AuthMode) {
	case contract.AuthBearer:
		doc.Components = &Components{SecuritySchemes: map[string]SecurityScheme{
			bearerScheme: {Type: "http", Scheme: "bearer", BearerFormat: "JWT", Description: "token issued at login"},
		}}
	case contract.AuthCookie:
		doc.Components = &Components{SecuritySchemes: map[string]SecurityScheme{
			"CookieAuth": {Type: "apiKey", In: "cookie", Name: "Cookie"},
		}}
	}
	return doc
}

// serverURL extracts a quoted URL from a detected base URL line, if any.
func serverURL(line string) string {
	for _, field := range strings.FieldsFunc(line, func(r rune) bool {
		return r == '\'' || r == '"' || r == '`' || r == ' ' || r == '=' || r == ','
	}) {
		if strings.HasPrefix(field, "http://") || strings.HasPrefix(field, "https://") {
			return field
		}
	}
	return ""
}

// operationID returns ep.Name, suffixed with the method (then a counter) when
// an earlier endpoint already took it. operationId must be unique per document.
func operationID(ep *contract.Endpoint, used map[string]bool) string {
	id := ep.Name
	if used[id] {
		id = ep.Name + "_" + strings.ToLower(ep.Method)
		for n := 2; used[id]; n++ {
			id = fmt.Sprintf("%s_%s%d", ep.Name, strings.ToLower(ep.Method), n)
		}
	}
	used[id] = true
	return id
}

func operationFor(ep *contract.Endpoint) *Operation {
	op := &Operation{
		OperationID: ep.Name,
		Tags:        []string{ep.Module},
		Summary:     ep.Name,
		Responses:   make(map[string]ResponseObject),
		TodoConfirm: ep.Notes,
	}

	for _, p := range ep.PathParams {
		op.Parameters = append(op.Parameters, Parameter{
			Name: p.Name, In: "path", Required: true, Description: p.Description,
			Schema: &SchemaObject{Type: p.Type},
		})
	}
	for _, q := range ep.Query {
		op.Parameters = append(op.Parameters, Parameter{
			Name: q.Name, In: "query", Required: q.Required, Description: q.Description,
			Schema: &SchemaObject{Type: q.Type, Default: q.Default},
		})
	}
	for _, h := range ep.Headers {
		op.Parameters = append(op.Parameters, Parameter{
			Name: h.Name, In: "header", Required: h.Required,
			Schema: &SchemaObject{Type: h.Type},
		})
	}

	if ep.RequestBody != nil {
		op.RequestBody = &RequestBodyObject{
			Required: true,
			Content: map[string]MediaType{
				ep.RequestBody.ContentType: {Schema: schemaObject(ep.RequestBody.Schema)},
			},
		}
	}

	for _, r := range ep.Responses {
		op.Responses[strconv.Itoa(r.Status)] = ResponseObject{
			Description: r.Description,
			Content: map[string]MediaType{
				"application/json": {Schema: schemaObject(r.Schema), Example: r.Example},
			},
		}
	}
	for _, e := range ep.Errors {
		op.Responses[strconv.Itoa(e.Status)] = ResponseObject{
			Description: e.Message,
			Content: map[string]MediaType{
				"application/json": {Example: e.Example},
			},
		}
	}
	return op
}

func schemaObject(s *contract.Schema) *SchemaObject {
	if s == nil {
		return &SchemaObject{Type: "object"}
	}
	out := &SchemaObject{Type: s.Type, Format: s.Format, Example: s.Example}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*SchemaObject, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = schemaObject(prop)
		}
	}
	return out
}

// OpenAPI renders the snapshot as an OpenAPI 3.1 YAML document.
func OpenAPI(snap *contract.Snapshot, opts DocOptions) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(BuildDocument(snap, opts)); err != nil {
		return nil, fmt.Errorf("failed to encode OpenAPI document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
