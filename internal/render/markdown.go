package render

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PentesterFlow/OpenContract/internal/contract"
	"github.com/PentesterFlow/OpenContract/internal/output"
)

// Markdown renders module-grouped API documentation.
func Markdown(snap *contract.Snapshot, projectName string, now time.Time) string {
	if projectName == "" {
		projectName = "Project"
	}
	groups := snap.EndpointsByModule()
	modules := make([]string, 0, len(groups))
	for m := range groups {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	framework := snap.Meta.Framework
	if framework == "" {
		framework = "unknown"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s API Documentation\n\n", projectName)
	fmt.Fprintf(&b, "> Generated: %s\n", now.UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "> Endpoints: %d\n", len(snap.Endpoints))
	fmt.Fprintf(&b, "> Stack: %s + MSW mock\n\n", framework)
	b.WriteString("---\n\n")

	b.WriteString("## Contents\n\n")
	b.WriteString("- [1. Conventions](#1-conventions)\n")
	b.WriteString("- [2. MSW Mock Setup](#2-msw-mock-setup)\n")
	for i, m := range modules {
		fmt.Fprintf(&b, "- [%d. %s module](#%d-%s-module)\n", i+3, m, i+3, anchor(m))
	}
	errSection := len(modules) + 3
	if len(snap.Unresolved) > 0 {
		fmt.Fprintf(&b, "- [%d. Unresolved calls](#%d-unresolved-calls)\n", errSection, errSection)
		errSection++
	}
	fmt.Fprintf(&b, "- [%d. Error codes](#%d-error-codes)\n\n", errSection, errSection)
	b.WriteString("---\n\n")

	writeConventions(&b, snap.Meta)
	writeMockSetup(&b)

	for i, m := range modules {
		fmt.Fprintf(&b, "## %d. %s module\n\n", i+3, m)
		for j := range groups[m] {
			writeEndpoint(&b, &groups[m][j])
		}
	}

	if len(snap.Unresolved) > 0 {
		fmt.Fprintf(&b, "## %d. Unresolved calls\n\n", len(modules)+3)
		b.WriteString("| Method | Source | Pattern |\n")
		b.WriteString("|--------|--------|---------|\n")
		for _, u := range snap.Unresolved {
			fmt.Fprintf(&b, "| %s | `%s:%d` | %s |\n", u.Method, u.Source.File, u.Source.Line, u.Source.Pattern)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## %d. Error codes\n\n", errSection)
	b.WriteString("| Code | Meaning | Suggested client handling |\n")
	b.WriteString("|------|---------|---------------------------|\n")
	b.WriteString("| 200 | Success | - |\n")
	b.WriteString("| 400 | Invalid request parameters | Show form validation hints |\n")
	b.WriteString("| 401 | Unauthorized or expired token | Redirect to login |\n")
	b.WriteString("| 403 | Forbidden | Show \"permission denied\" |\n")
	b.WriteString("| 404 | Not found | Show \"resource not found\" |\n")
	b.WriteString("| 409 | Conflict | Show the conflict reason |\n")
	b.WriteString("| 429 | Too many requests | Show \"please slow down\" |\n")
	b.WriteString("| 500 | Internal server error | Show \"service unavailable, retry later\" |\n")
	return b.String()
}

func anchor(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", "-"))
}

func writeConventions(b *strings.Builder, meta contract.Meta) {
	b.WriteString("## 1. Conventions\n\n")
	b.WriteString("### Base URL\n\n")
	b.WriteString("| Environment | Base URL |\n")
	b.WriteString("|-------------|----------|\n")
	b.WriteString("| Development (mock) | `http://localhost:3000` (intercepted by MSW) |\n\n")
	if meta.BaseURL != "" {
		fmt.Fprintf(b, "> Detected base URL configuration: `%s`\n\n", meta.BaseURL)
	}

	b.WriteString("### Authentication\n\n")
	switch strings.ToLower(meta.AuthMode) {
	case contract.AuthBearer:
		b.WriteString("```http\nAuthorization: Bearer <token>\n```\n\n")
	case contract.AuthCookie:
		b.WriteString("Session cookie sent with each request.\n\n")
	case contract.AuthCustom:
		b.WriteString("Custom scheme; confirm the header with the backend team.\n\n")
	default:
		b.WriteString("No authentication.\n\n")
	}

	b.WriteString("### Response envelope\n\n")
	writeJSONBlock(b, map[string]interface{}{"code": 200, "data": map[string]interface{}{}, "message": "success"})
	b.WriteString("### Paginated response\n\n")
	writeJSONBlock(b, map[string]interface{}{
		"code":    200,
		"data":    map[string]interface{}{"list": []interface{}{}, "total": 100, "page": 1, "pageSize": 10},
		"message": "success",
	})
	b.WriteString("---\n\n")
}

func writeMockSetup(b *strings.Builder) {
	b.WriteString("## 2. MSW Mock Setup\n\n")
	b.WriteString("### Install\n\n")
	b.WriteString("```bash\nnpm install msw --save-dev\nnpx msw init public/ --save\n```\n\n")
	b.WriteString("### Enable (entry file)\n\n")
	b.WriteString("```javascript\n")
	b.WriteString("if (import.meta.env.DEV) {\n")
	b.WriteString("  const { worker } = await import('./mock/browser')\n")
	b.WriteString("  await worker.start({ onUnhandledRequest: 'bypass' })\n")
	b.WriteString("}\n```\n\n")
	b.WriteString("---\n\n")
}

func writeEndpoint(b *strings.Builder, ep *contract.Endpoint) {
	fmt.Fprintf(b, "### %s %s (%s)\n\n", ep.Method, ep.Path, action(ep.Name))

	if ep.RequiresAuth() {
		b.WriteString("**Auth**: required\n\n")
	} else {
		b.WriteString("**Auth**: none\n\n")
	}

	if n := len(ep.Provenance); n > 0 {
		first := ep.Provenance[0]
		fmt.Fprintf(b, "**Call sites**: %d (first: `%s:%d`)\n\n", n, first.File, first.Line)
	}

	if len(ep.PathParams) > 0 {
		b.WriteString("**Path parameters**\n\n")
		b.WriteString("| Name | Type | Description |\n")
		b.WriteString("|------|------|-------------|\n")
		for _, p := range ep.PathParams {
			fmt.Fprintf(b, "| %s | %s | %s |\n", p.Name, p.Type, p.Description)
		}
		b.WriteString("\n")
	}

	if len(ep.Query) > 0 {
		b.WriteString("**Query parameters**\n\n")
		b.WriteString("| Name | Type | Required | Default | Description |\n")
		b.WriteString("|------|------|:--------:|---------|-------------|\n")
		for _, q := range ep.Query {
			def := "-"
			if q.Default != nil {
				def = fmt.Sprint(*q.Default)
			}
			fmt.Fprintf(b, "| %s | %s | %s | %s | %s |\n", q.Name, q.Type, yesNo(q.Required), def, q.Description)
		}
		b.WriteString("\n")
	}

	if ep.RequestBody != nil {
		fmt.Fprintf(b, "**Request body** (%s)\n\n", ep.RequestBody.ContentType)
		if s := ep.RequestBody.Schema; s != nil && len(s.Properties) > 0 {
			b.WriteString("| Field | Type |\n")
			b.WriteString("|-------|------|\n")
			names := make([]string, 0, len(s.Properties))
			for name := range s.Properties {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(b, "| %s | %s |\n", name, s.Properties[name].Type)
			}
			b.WriteString("\n")
		}
	}

	for _, r := range ep.Responses {
		if r.Status >= 200 && r.Status < 300 {
			fmt.Fprintf(b, "**Response example** (%d)\n\n", r.Status)
			writeJSONBlock(b, r.Example)
		}
	}

	if len(ep.Errors) > 0 {
		b.WriteString("**Errors**\n\n")
		b.WriteString("| Status | Code | Message |\n")
		b.WriteString("|--------|------|---------|\n")
		for _, e := range ep.Errors {
			fmt.Fprintf(b, "| %d | %s | %s |\n", e.Status, e.Code, e.Message)
		}
		b.WriteString("\n")
	}

	if len(ep.Notes) > 0 {
		b.WriteString("> **To confirm**\n")
		for _, n := range ep.Notes {
			fmt.Fprintf(b, "> - %s\n", n)
		}
		b.WriteString("\n")
	}
	b.WriteString("---\n\n")
}

func writeJSONBlock(b *strings.Builder, v interface{}) {
	data, err := output.MarshalJSON(v)
	if err != nil {
		data = []byte("{}\n")
	}
	b.WriteString("```json\n")
	b.Write(data)
	b.WriteString("```\n\n")
}

// action returns the part of an endpoint name after the last dot.
func action(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
