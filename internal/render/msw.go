package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/PentesterFlow/OpenContract/internal/contract"
	"github.com/PentesterFlow/OpenContract/internal/normalize"
	"github.com/PentesterFlow/OpenContract/internal/output"
)

// Files maps output-relative slash paths to file contents.
type Files map[string][]byte

// Names returns the file paths in sorted order.
func (f Files) Names() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	nonIdent    = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	nonFileChar = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// varName turns a module name into a JS identifier fragment.
func varName(s string) string {
	return strings.Trim(nonIdent.ReplaceAllString(s, "_"), "_")
}

// moduleFile turns a module name into a file base name.
func moduleFile(module string) string {
	return strings.ToLower(nonFileChar.ReplaceAllString(module, "-"))
}

// compactJSON encodes v on one line without HTML escaping.
func compactJSON(v interface{}) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "{}"
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

var writeMethods = map[string]bool{"post": true, "put": true, "patch": true}

func successExample(ep *contract.Endpoint) interface{} {
	for _, r := range ep.Responses {
		if r.Status >= 200 && r.Status < 300 && r.Example != nil {
			return r.Example
		}
	}
	return map[string]interface{}{"code": 200, "data": map[string]interface{}{}, "message": "success"}
}

func errorExample(ep *contract.Endpoint) (interface{}, int) {
	for _, e := range ep.Errors {
		if e.Example != nil {
			return e.Example, e.Status
		}
		return map[string]interface{}{"code": e.Status, "data": nil, "message": e.Message}, e.Status
	}
	return map[string]interface{}{"code": 400, "data": nil, "message": "invalid request parameters"}, 400
}

// handlerCode renders one MSW v2 handler.
func handlerCode(ep *contract.Endpoint) string {
	method := strings.ToLower(ep.Method)
	write := writeMethods[method]
	auth := hasAuthorization(ep)
	paged := ep.Paginated()

	var args []string
	if len(ep.PathParams) > 0 {
		args = append(args, "params")
	}
	if write || auth || paged {
		args = append(args, "request")
	}

	prefix := ""
	if write {
		prefix = "async "
	}
	sig := "()"
	if len(args) > 0 {
		sig = "({ " + strings.Join(args, ", ") + " })"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "  // %s %s (%s)\n", ep.Method, ep.Path, ep.Name)
	fmt.Fprintf(&b, "  http.%s('%s', %s%s => {\n", method, normalize.ToColon(ep.Path), prefix, sig)

	if write {
		b.WriteString("    await delay(300)\n\n")
	}
	if auth {
		b.WriteString("    const authHeader = request.headers.get('Authorization')\n")
		b.WriteString("    if (!authHeader || !authHeader.startsWith('Bearer ')) {\n")
		b.WriteString("      return HttpResponse.json({\n")
		b.WriteString("        code: 401, data: null, message: 'token is invalid or expired'\n")
		b.WriteString("      }, { status: 401 })\n")
		b.WriteString("    }\n\n")
	}
	if write && ep.RequestBody != nil && strings.Contains(ep.RequestBody.ContentType, "json") {
		b.WriteString("    const body = await request.json()\n\n")
	}
	if len(ep.PathParams) > 0 {
		for _, p := range ep.PathParams {
			fmt.Fprintf(&b, "    const %s = params.%s\n", varName(p.Name), p.Name)
		}
		b.WriteString("\n")
	}
	if paged {
		b.WriteString("    const url = new URL(request.url)\n")
		b.WriteString("    const page = parseInt(url.searchParams.get('page') || '1')\n")
		b.WriteString("    const pageSize = parseInt(url.searchParams.get('pageSize') || '10')\n\n")
	}

	ok := compactJSON(successExample(ep))
	errBody, errStatus := errorExample(ep)
	fail := compactJSON(errBody)

	switch ep.MockStrategy {
	case contract.StrategyRandom:
		b.WriteString("    if (Math.random() > 0.5) {\n")
		fmt.Fprintf(&b, "      return HttpResponse.json(%s)\n", ok)
		b.WriteString("    }\n")
		fmt.Fprintf(&b, "    return HttpResponse.json(%s, { status: %d })\n", fail, errStatus)
	case contract.StrategyError:
		fmt.Fprintf(&b, "    return HttpResponse.json(%s, { status: %d })\n", fail, errStatus)
	default:
		fmt.Fprintf(&b, "    return HttpResponse.json(%s)\n", ok)
	}
	b.WriteString("  }),")
	return b.String()
}

func hasAuthorization(ep *contract.Endpoint) bool {
	for _, h := range ep.Headers {
		if h.Name == "Authorization" {
			return true
		}
	}
	return false
}

func moduleHandlers(module string, eps []contract.Endpoint) []byte {
	var b strings.Builder
	b.WriteString("import { http, HttpResponse, delay } from 'msw'\n")
	fmt.Fprintf(&b, "// import %sData from '../data/%s.json'\n\n", varName(module), moduleFile(module))
	fmt.Fprintf(&b, "export const %sHandlers = [\n", varName(module))
	for i := range eps {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(handlerCode(&eps[i]))
		b.WriteString("\n")
	}
	b.WriteString("]\n")
	return []byte(b.String())
}

type dataEntry struct {
	Endpoint string      `json:"endpoint"`
	Method   string      `json:"method"`
	Path     string      `json:"path"`
	Example  interface{} `json:"example"`
}

func moduleData(eps []contract.Endpoint) ([]byte, error) {
	data := make(map[string]dataEntry, len(eps))
	for i := range eps {
		ep := &eps[i]
		key := varName(action(ep.Name))
		if _, taken := data[key]; taken {
			key = varName(strings.ToLower(ep.Method) + "_" + action(ep.Name))
		}
		data[key] = dataEntry{Endpoint: ep.Name, Method: ep.Method, Path: ep.Path, Example: successExample(ep)}
	}
	return output.MarshalJSON(data)
}

// MSW renders MSW v2 handler files, their index, the browser entry and one
// mock data file per module. Paths are relative to the mock directory.
func MSW(snap *contract.Snapshot) (Files, error) {
	groups := snap.EndpointsByModule()
	modules := make([]string, 0, len(groups))
	for m := range groups {
		modules = append(modules, m)
	}
	sort.Strings(modules)

	files := make(Files, 2*len(modules)+2)
	var index strings.Builder
	var spread strings.Builder
	for _, m := range modules {
		name := moduleFile(m)
		files["handlers/"+name+".js"] = moduleHandlers(m, groups[m])

		data, err := moduleData(groups[m])
		if err != nil {
			return nil, fmt.Errorf("failed to encode mock data for module %s: %w", m, err)
		}
		files["data/"+name+".json"] = data

		fmt.Fprintf(&index, "import { %sHandlers } from './%s'\n", varName(m), name)
		fmt.Fprintf(&spread, "  ...%sHandlers,\n", varName(m))
	}

	index.WriteString("\nexport const handlers = [\n")
	index.WriteString(spread.String())
	index.WriteString("]\n")
	files["handlers/index.js"] = []byte(index.String())

	files["browser.js"] = []byte("import { setupWorker } from 'msw/browser'\n" +
		"import { handlers } from './handlers/index'\n\n" +
		"export const worker = setupWorker(...handlers)\n")
	return files, nil
}
