package consistency

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PentesterFlow/OpenContract/internal/contract"
	"github.com/PentesterFlow/OpenContract/internal/state"
)

func endpoint(method, path, name string) contract.Endpoint {
	return contract.Endpoint{
		Module:    strings.Split(name, ".")[0],
		Name:      name,
		Method:    method,
		Path:      path,
		Responses: []contract.Response{{Status: 200}},
		Errors:    []contract.ErrorResponse{{Status: 400}},
	}
}

func snapshotOf(eps ...contract.Endpoint) *contract.Snapshot {
	return &contract.Snapshot{Endpoints: eps}
}

func keys(pairs ...string) *state.KeySet {
	s := state.NewKeySet(len(pairs))
	for _, p := range pairs {
		method, path, _ := strings.Cut(p, " ")
		s.Add(state.Key{Method: method, Path: path})
	}
	return s
}

// =============================================================================
// Set Algebra Tests
// =============================================================================

func TestCheck_AllConsistent(t *testing.T) {
	snap := snapshotOf(
		endpoint("GET", "/users", "users.list"),
		endpoint("POST", "/users", "users.create"),
	)

	r := NewChecker(nil, nil).Check(snap, keys("POST /users", "GET /users"), keys("GET /users", "POST /users"))
	if !r.Passed() {
		t.Errorf("Passed() = false, findings = %+v", r.Findings)
	}
	if r.ExitCode(true) != 0 {
		t.Errorf("ExitCode(strict) = %d, want 0", r.ExitCode(true))
	}
}

func TestCheck_SetDifferences(t *testing.T) {
	snap := snapshotOf(
		endpoint("GET", "/users", "users.list"),
		endpoint("DELETE", "/users/{id}", "users.delete"),
	)
	openapi := keys("GET /users", "GET /health")
	handlers := keys("DELETE /users/{id}", "PUT /legacy")

	r := NewChecker(nil, nil).Check(snap, openapi, handlers)
	counts := r.Counts()

	tests := []struct {
		category Category
		want     int
	}{
		{CategoryDuplicate, 0},
		{CategoryQuality, 0},
		{CategoryMissingInOpenAPI, 1},
		{CategoryMissingInHandlers, 1},
		{CategoryExtraInOpenAPI, 1},
		{CategoryExtraInHandlers, 1},
	}
	for _, tt := range tests {
		if counts[tt.category] != tt.want {
			t.Errorf("Counts()[%s] = %d, want %d", tt.category, counts[tt.category], tt.want)
		}
	}

	missing := r.ByCategory(CategoryMissingInOpenAPI)[0]
	if missing.Method != "DELETE" || missing.Path != "/users/{id}" || missing.Severity != SeverityError {
		t.Errorf("missing_in_openapi = %+v", missing)
	}
	extra := r.ByCategory(CategoryExtraInHandlers)[0]
	if extra.Path != "/legacy" || extra.Severity != SeverityWarning {
		t.Errorf("extra_in_handlers = %+v", extra)
	}

	if len(r.Errors()) != 2 || len(r.Warnings()) != 2 {
		t.Errorf("Errors/Warnings = %d/%d, want 2/2", len(r.Errors()), len(r.Warnings()))
	}
	if r.ExitCode(false) != 0 {
		t.Errorf("ExitCode(non-strict) = %d, want 0", r.ExitCode(false))
	}
	if r.ExitCode(true) != 2 {
		t.Errorf("ExitCode(strict) = %d, want 2", r.ExitCode(true))
	}
}

func TestCheck_OrderIrrelevant(t *testing.T) {
	snap := snapshotOf(
		endpoint("GET", "/a", "a.list"),
		endpoint("GET", "/b", "b.list"),
		endpoint("GET", "/c", "c.list"),
	)

	r1 := NewChecker(nil, nil).Check(snap, keys("GET /a", "GET /b", "GET /c"), keys("GET /c", "GET /b", "GET /a"))
	r2 := NewChecker(nil, nil).Check(snap, keys("GET /c", "GET /a", "GET /b"), keys("GET /b", "GET /a", "GET /c"))
	if !r1.Passed() || !r2.Passed() {
		t.Error("declaration order should not produce findings")
	}
}

func TestCheck_Duplicates(t *testing.T) {
	snap := snapshotOf(
		endpoint("GET", "/users", "users.list"),
		endpoint("GET", "/users", "users.list"),
	)

	r := NewChecker(nil, nil).Check(snap, keys("GET /users"), keys("GET /users"))
	dups := r.ByCategory(CategoryDuplicate)
	if len(dups) != 1 {
		t.Fatalf("duplicates = %d, want 1", len(dups))
	}
	if dups[0].Severity != SeverityError {
		t.Errorf("duplicate severity = %v, want error", dups[0].Severity)
	}
	if len(r.ByCategory(CategoryQuality)) != 1 {
		t.Errorf("shared name should be reported once: %+v", r.ByCategory(CategoryQuality))
	}
}

func TestCheck_Quality(t *testing.T) {
	noDot := endpoint("GET", "/x", "x")
	noSuccess := endpoint("GET", "/y", "y.list")
	noSuccess.Responses = []contract.Response{{Status: 302}}
	noError := endpoint("GET", "/z", "z.list")
	noError.Errors = nil
	serverError := endpoint("GET", "/w", "w.list")
	serverError.Errors = []contract.ErrorResponse{{Status: 503}}

	snap := snapshotOf(noDot, noSuccess, noError, serverError)
	all := keys("GET /x", "GET /y", "GET /z", "GET /w")

	r := NewChecker(nil, nil).Check(snap, all, all)
	quality := r.ByCategory(CategoryQuality)
	if len(quality) != 3 {
		t.Fatalf("quality findings = %d, want 3: %+v", len(quality), quality)
	}
	want := []string{"module.action", "2xx", "4xx/5xx"}
	for i, w := range want {
		if !strings.Contains(quality[i].Message, w) {
			t.Errorf("quality[%d] = %q, want mention of %q", i, quality[i].Message, w)
		}
		if quality[i].Severity != SeverityWarning {
			t.Errorf("quality severity = %v, want warning", quality[i].Severity)
		}
	}
}

func TestCheck_NilArtifacts(t *testing.T) {
	snap := snapshotOf(endpoint("GET", "/a", "a.list"))

	r := NewChecker(nil, nil).Check(snap, nil, nil)
	if r.Counts()[CategoryMissingInOpenAPI] != 1 || r.Counts()[CategoryMissingInHandlers] != 1 {
		t.Errorf("Counts = %v", r.Counts())
	}
}

// =============================================================================
// Source Extraction Tests
// =============================================================================

func TestOpenAPIKeys(t *testing.T) {
	doc := `
openapi: 3.1.0
info:
  title: demo
  version: 1.0.0
paths:
  /users:
    get:
      summary: list
    post:
      summary: create
  "/users/{id}":
    parameters: []
    delete:
      summary: remove
components: {}
`
	got, err := OpenAPIKeys([]byte(doc))
	if err != nil {
		t.Fatalf("OpenAPIKeys() error = %v", err)
	}
	want := []state.Key{{Method: "GET", Path: "/users"}, {Method: "POST", Path: "/users"}, {Method: "DELETE", Path: "/users/{id}"}}
	if got.Len() != len(want) {
		t.Fatalf("Len = %d, want %d: %v", got.Len(), len(want), got.Sorted())
	}
	for _, k := range want {
		if !got.Has(k) {
			t.Errorf("missing %v", k)
		}
	}
}

func TestOpenAPIKeys_Malformed(t *testing.T) {
	if _, err := OpenAPIKeys([]byte("paths: [unclosed")); err == nil {
		t.Error("OpenAPIKeys(malformed) should fail")
	}
}

func TestHandlerKeys(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "users.js"), []byte(`
export const usersHandlers = [
  http.get('/users/:id', ({ params }) => {}),
  http.post("/users", async ({ request }) => {}),
]
`), 0644)
	os.WriteFile(filepath.Join(dir, "orders.ts"), []byte("http.delete(`/orders/:orderId`, () => {})"), 0644)
	os.WriteFile(filepath.Join(dir, "index.js"), []byte(`http.get('/should-be-skipped')`), 0644)
	os.WriteFile(filepath.Join(dir, "notes.md"), []byte(`http.get('/also-skipped')`), 0644)

	got, err := HandlerKeys(dir)
	if err != nil {
		t.Fatalf("HandlerKeys() error = %v", err)
	}
	want := []state.Key{{Method: "GET", Path: "/users/{id}"}, {Method: "POST", Path: "/users"}, {Method: "DELETE", Path: "/orders/{orderId}"}}
	if got.Len() != len(want) {
		t.Fatalf("Len = %d, want %d: %v", got.Len(), len(want), got.Sorted())
	}
	for _, k := range want {
		if !got.Has(k) {
			t.Errorf("missing %v", k)
		}
	}
}

func TestHandlerKeys_SingleFileAndMissing(t *testing.T) {
	file := filepath.Join(t.TempDir(), "handlers.js")
	os.WriteFile(file, []byte(`http.put('/a/:b', h)`), 0644)

	got, err := HandlerKeys(file)
	if err != nil || !got.Has(state.Key{Method: "PUT", Path: "/a/{b}"}) {
		t.Errorf("HandlerKeys(file) = %v, %v", got.Sorted(), err)
	}

	if _, err := HandlerKeys(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("HandlerKeys(missing) should fail")
	}
}

// =============================================================================
// CheckFiles Tests
// =============================================================================

func TestCheckFiles_MissingArtifactsAreNotices(t *testing.T) {
	dir := t.TempDir()
	contractPath := filepath.Join(dir, "contract.json")
	if err := snapshotOf(endpoint("GET", "/a", "a.list")).Save(contractPath); err != nil {
		t.Fatal(err)
	}

	r, err := NewChecker(nil, nil).CheckFiles(contractPath, filepath.Join(dir, "none.yaml"), filepath.Join(dir, "none"))
	if err != nil {
		t.Fatalf("CheckFiles() error = %v", err)
	}
	if len(r.Notices) != 2 {
		t.Errorf("Notices = %v, want 2", r.Notices)
	}
	if r.Counts()[CategoryMissingInOpenAPI] != 1 {
		t.Errorf("Counts = %v", r.Counts())
	}
}

func TestCheckFiles_MissingContractIsFatal(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewChecker(nil, nil).CheckFiles(filepath.Join(dir, "contract.json"), "", ""); err == nil {
		t.Error("CheckFiles() without a contract should fail")
	}
}

// =============================================================================
// Report Tests
// =============================================================================

func TestReport_Markdown(t *testing.T) {
	snap := snapshotOf(endpoint("GET", "/a", "a.list"))
	r := NewChecker(nil, nil).Check(snap, keys(), keys("GET /a", "GET /extra"))
	r.Notices = []string{"OpenAPI document not readable"}

	md := r.Markdown(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC))

	for _, want := range []string{
		"# Consistency Report",
		"`2026-05-01T00:00:00Z`",
		"## Notices",
		"**ERROR** `GET /a`: in contract but missing from OpenAPI",
		"**WARN** `GET /extra`",
		"Found **2** issues (1 errors, 1 warnings).",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("Markdown missing %q:\n%s", want, md)
		}
	}
}

func TestReport_MarkdownPassed(t *testing.T) {
	r := &Report{}
	if !strings.Contains(r.Markdown(time.Now()), "All checks passed") {
		t.Error("empty report should pass")
	}
}
