package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PentesterFlow/OpenContract/internal/metrics"
)

// =============================================================================
// Recognizer Tests
// =============================================================================

func findOne(t *testing.T, r Recognizer, content string) []Observation {
	t.Helper()
	return r.Find(content, DefaultPolicy())
}

func TestRecognizers(t *testing.T) {
	tests := []struct {
		name       string
		recognizer Recognizer
		content    string
		wantMethod string
		wantPath   string
	}{
		{
			name:       "axios shortcut get",
			recognizer: NewAxiosMethodRecognizer(),
			content:    `axios.get('/api/users')`,
			wantMethod: "GET",
			wantPath:   "/api/users",
		},
		{
			name:       "axios shortcut uppercase with template literal",
			recognizer: NewAxiosMethodRecognizer(),
			content:    "Axios.DELETE(`/api/users/${id}`)",
			wantMethod: "DELETE",
			wantPath:   "/api/users/${id}",
		},
		{
			name:       "axios config with method",
			recognizer: NewAxiosConfigRecognizer(),
			content:    "axios({\n  url: '/api/orders',\n  method: 'post',\n  data\n})",
			wantMethod: "POST",
			wantPath:   "/api/orders",
		},
		{
			name:       "axios config defaults to GET",
			recognizer: NewAxiosConfigRecognizer(),
			content:    `axios({ url: "/api/orders" })`,
			wantMethod: "GET",
			wantPath:   "/api/orders",
		},
		{
			name:       "fetch without options",
			recognizer: NewFetchRecognizer(),
			content:    `fetch("/api/health")`,
			wantMethod: "GET",
			wantPath:   "/api/health",
		},
		{
			name:       "fetch with options",
			recognizer: NewFetchRecognizer(),
			content:    `fetch('/api/items', { method: 'PUT', body })`,
			wantMethod: "PUT",
			wantPath:   "/api/items",
		},
		{
			name:       "wrapper shortcut",
			recognizer: NewRequestRecognizer(),
			content:    `http.post('/auth/login', payload)`,
			wantMethod: "POST",
			wantPath:   "/auth/login",
		},
		{
			name:       "wrapper config object",
			recognizer: NewRequestRecognizer(),
			content:    "request({\n  url: '/user/profile',\n  method: 'patch'\n})",
			wantMethod: "PATCH",
			wantPath:   "/user/profile",
		},
		{
			name:       "wrapper plain call",
			recognizer: NewRequestRecognizer(),
			content:    `service('/reports')`,
			wantMethod: "GET",
			wantPath:   "/reports",
		},
		{
			name:       "swr hook",
			recognizer: NewSWRRecognizer(),
			content:    `const { data } = useSWR('/api/me', fetcher)`,
			wantMethod: "GET",
			wantPath:   "/api/me",
		},
		{
			name:       "wx request",
			recognizer: NewWxRequestRecognizer(),
			content:    "wx.request({\n  url: 'https://mp.example.com/api/cart',\n  method: 'DELETE'\n})",
			wantMethod: "DELETE",
			wantPath:   "https://mp.example.com/api/cart",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := findOne(t, tt.recognizer, tt.content)
			if len(obs) != 1 {
				t.Fatalf("len(observations) = %d, want 1: %+v", len(obs), obs)
			}
			if obs[0].Method != tt.wantMethod {
				t.Errorf("Method = %v, want %v", obs[0].Method, tt.wantMethod)
			}
			if obs[0].RawPath != tt.wantPath {
				t.Errorf("RawPath = %v, want %v", obs[0].RawPath, tt.wantPath)
			}
			if obs[0].Pattern != tt.recognizer.ID() {
				t.Errorf("Pattern = %v, want %v", obs[0].Pattern, tt.recognizer.ID())
			}
		})
	}
}

func TestReactQueryRecognizer_Unresolved(t *testing.T) {
	content := "const q = useQuery({ queryKey: ['todos'], queryFn: getTodos })\nconst m = useMutation(addTodo)"

	obs := findOne(t, NewReactQueryRecognizer(), content)
	if len(obs) != 2 {
		t.Fatalf("len(observations) = %d, want 2", len(obs))
	}
	for _, o := range obs {
		if o.Method != MethodUnknown {
			t.Errorf("Method = %v, want UNKNOWN", o.Method)
		}
		if o.RawPath != UnresolvedPath {
			t.Errorf("RawPath = %v, want %v", o.RawPath, UnresolvedPath)
		}
		if !o.Unresolved() {
			t.Error("Unresolved() should be true")
		}
	}
	if obs[1].Line != 2 {
		t.Errorf("second hook Line = %d, want 2", obs[1].Line)
	}
}

func TestMethodWindowIsBounded(t *testing.T) {
	content := "axios({ url: '/api/far' })" + strings.Repeat(" ", 600) + "method: 'POST'"

	p := DefaultPolicy()
	obs := NewAxiosConfigRecognizer().Find(content, p)
	if len(obs) != 1 {
		t.Fatalf("len(observations) = %d, want 1", len(obs))
	}
	if obs[0].Method != "GET" {
		t.Errorf("Method = %v, want GET (method field outside window)", obs[0].Method)
	}

	p.MethodWindow = 1000
	obs = NewAxiosConfigRecognizer().Find(content, p)
	if obs[0].Method != "POST" {
		t.Errorf("Method = %v, want POST with a wider window", obs[0].Method)
	}
}

func TestRecognizers_MixedQuotesDoNotMatch(t *testing.T) {
	obs := findOne(t, NewAxiosMethodRecognizer(), `axios.get('/api/users")`)
	if len(obs) != 0 {
		t.Errorf("mismatched quotes should not match: %+v", obs)
	}
}

// =============================================================================
// ScanText Tests
// =============================================================================

func TestScanText_OverlappingRecognizers(t *testing.T) {
	// the import line mentions api but never calls it
	content := "import api from './api'\n\nexport const list = () => api.get('/api/users')\n"

	obs := ScanText("src/users.js", content, DefaultPolicy(), DefaultRecognizers())
	if len(obs) != 1 {
		t.Fatalf("len(observations) = %d, want 1: %+v", len(obs), obs)
	}
	o := obs[0]
	if o.File != "src/users.js" {
		t.Errorf("File = %v", o.File)
	}
	if o.Line != 3 {
		t.Errorf("Line = %d, want 3", o.Line)
	}
	if o.Context != "export const list = () => api.get('/api/users')" {
		t.Errorf("Context = %q", o.Context)
	}
}

func TestScanText_SameLineMultipleObservations(t *testing.T) {
	content := `const r = fetch('/api/a'); axios.post('/api/b')`

	obs := ScanText("a.js", content, DefaultPolicy(), DefaultRecognizers())
	if len(obs) != 2 {
		t.Fatalf("len(observations) = %d, want 2: %+v", len(obs), obs)
	}
	if obs[0].Pattern != PatternAxiosMethod || obs[1].Pattern != PatternFetch {
		t.Errorf("patterns = %v, %v; want recognizer order", obs[0].Pattern, obs[1].Pattern)
	}
	for _, o := range obs {
		if o.Line != 1 {
			t.Errorf("Line = %d, want 1", o.Line)
		}
	}
}

func TestScanText_LineNumbers(t *testing.T) {
	content := "\n\n\n\naxios.get('/a')\n\naxios.get('/b')"

	obs := ScanText("f.ts", content, DefaultPolicy(), []Recognizer{NewAxiosMethodRecognizer()})
	if len(obs) != 2 {
		t.Fatalf("len(observations) = %d, want 2", len(obs))
	}
	if obs[0].Line != 5 || obs[1].Line != 7 {
		t.Errorf("lines = %d, %d; want 5, 7", obs[0].Line, obs[1].Line)
	}
}

func TestScanText_ContextTruncated(t *testing.T) {
	long := "    axios.get('/api/x', { params: { " + strings.Repeat("a", 200) + " } })   "

	obs := ScanText("f.js", long, DefaultPolicy(), []Recognizer{NewAxiosMethodRecognizer()})
	if len(obs) != 1 {
		t.Fatalf("len(observations) = %d, want 1", len(obs))
	}
	ctx := obs[0].Context
	if !strings.HasSuffix(ctx, "...") {
		t.Errorf("Context should end with ...: %q", ctx)
	}
	if len([]rune(ctx)) != 123 {
		t.Errorf("len(Context) = %d, want 123", len([]rune(ctx)))
	}
	if strings.HasPrefix(ctx, " ") {
		t.Error("Context should be trimmed")
	}
}

func TestText_LineAt(t *testing.T) {
	tx := newText("a\nb\nc")
	tests := []struct {
		offset int
		want   int
	}{
		{0, 1},
		{1, 1},
		{2, 2},
		{4, 3},
	}
	for _, tt := range tests {
		if got := tx.lineAt(tt.offset); got != tt.want {
			t.Errorf("lineAt(%d) = %d, want %d", tt.offset, got, tt.want)
		}
	}
}

// =============================================================================
// Discovery and Project Tests
// =============================================================================

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestDiscover(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/b.ts":                   "",
		"src/a.js":                   "",
		"src/styles.css":             "",
		"node_modules/lib/index.js":  "",
		"dist/bundle.js":             "",
		"src/__tests__/a.test.js":    "",
		"generated/mock/handlers.js": "",
		"pages/Home.VUE":             "",
	})

	files, err := Discover(root, nil, DefaultPolicy(), []string{filepath.Join(root, "generated")})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	var rel []string
	for _, f := range files {
		rel = append(rel, relPath(root, f))
	}
	want := []string{"pages/Home.VUE", "src/a.js", "src/b.ts"}
	if strings.Join(rel, ",") != strings.Join(want, ",") {
		t.Errorf("Discover() = %v, want %v", rel, want)
	}
}

func TestDiscover_Scopes(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/api/user.js": "",
		"src/app.js":      "",
		"other/x.js":      "",
	})

	files, err := Discover(root, []string{"src/api", "missing", "src/api"}, DefaultPolicy(), nil)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(files) != 1 || relPath(root, files[0]) != "src/api/user.js" {
		t.Errorf("Discover() = %v", files)
	}
}

func TestDiscover_MissingRoot(t *testing.T) {
	if _, err := Discover(filepath.Join(t.TempDir(), "nope"), nil, DefaultPolicy(), nil); err == nil {
		t.Error("Discover() on a missing root should fail")
	}
}

func TestAnalyzeProject(t *testing.T) {
	root := writeTree(t, map[string]string{
		"package.json":       `{"dependencies":{"vue":"^3.0.0"}}`,
		"src/api/request.ts": "const service = axios.create({ baseURL: import.meta.env.VITE_API_BASE })\nconfig.headers.Authorization = `Bearer ${token}`",
		"src/services/x.ts":  "",
		"modules/api/y.ts":   "",
	})
	files, _ := Discover(root, nil, DefaultPolicy(), nil)

	info := AnalyzeProject(root, files, []string{"modules/api", "not/here", "src/api"})
	if info.Framework != "vue" {
		t.Errorf("Framework = %v, want vue", info.Framework)
	}
	if info.BaseURL != "const service = axios.create({ baseURL: import.meta.env.VITE_API_BASE })" {
		t.Errorf("BaseURL = %q", info.BaseURL)
	}
	if info.AuthPattern != "Bearer Token" {
		t.Errorf("AuthPattern = %q, want Bearer Token", info.AuthPattern)
	}
	want := "src/api,src/services,modules/api"
	if strings.Join(info.APIDirs, ",") != want {
		t.Errorf("APIDirs = %v, want %v", info.APIDirs, want)
	}
}

func TestAnalyzeProject_EnvFallback(t *testing.T) {
	root := writeTree(t, map[string]string{
		".env.local": "APP_TITLE=Shop\nVITE_API_URL=https://api.example.com\n",
		"src/a.js":   "fetch('/x')",
	})
	files, _ := Discover(root, nil, DefaultPolicy(), nil)

	info := AnalyzeProject(root, files, nil)
	if info.BaseURL != "VITE_API_URL=https://api.example.com" {
		t.Errorf("BaseURL = %q", info.BaseURL)
	}
	if info.AuthPattern != "" {
		t.Errorf("AuthPattern = %q, want empty", info.AuthPattern)
	}
	if info.Framework != "unknown" {
		t.Errorf("Framework = %q, want unknown", info.Framework)
	}
}

func TestInspect_AuthVariants(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"headers['Access-Token'] = t", "Access-Token Header"},
		{"axios.interceptors.request.use(fn)", "Detected: interceptors.request"},
		{"headers.Authorization = 'Bearer ' + t", "Bearer Token"},
		{"nothing here", ""},
	}
	for _, tt := range tests {
		if got := inspect(tt.content).auth; got != tt.want {
			t.Errorf("inspect(%q).auth = %q, want %q", tt.content, got, tt.want)
		}
	}
}

// =============================================================================
// Scan Tests
// =============================================================================

func TestScan(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/api/user.js":  "export const getUser = id => http.get(`/api/users/${id}`)\n",
		"src/pages/a.jsx":  "useEffect(() => { fetch('/api/stats') }, [])\nconst q = useQuery({ queryKey: ['k'] })\n",
		"src/pages/b.vue":  "<script>\naxios.post('/api/orders', body)\n</script>\n",
		"README.md":        "axios.get('/ignored')",
		"dist/bundle.js":   "axios.get('/ignored')",
	})

	res, err := Scan(context.Background(), root, Options{Policy: DefaultPolicy()})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(res.Matches) != 4 {
		t.Fatalf("len(Matches) = %d, want 4: %+v", len(res.Matches), res.Matches)
	}

	// files are visited in sorted order
	wantFiles := []string{"src/api/user.js", "src/pages/a.jsx", "src/pages/a.jsx", "src/pages/b.vue"}
	for i, m := range res.Matches {
		if m.File != wantFiles[i] {
			t.Errorf("Matches[%d].File = %v, want %v", i, m.File, wantFiles[i])
		}
	}
	if res.Matches[3].Line != 2 {
		t.Errorf("b.vue Line = %d, want 2", res.Matches[3].Line)
	}
	if len(res.APIDirs) != 1 || res.APIDirs[0] != "src/api" {
		t.Errorf("APIDirs = %v", res.APIDirs)
	}
}

func TestScan_Deterministic(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 30; i++ {
		files[filepath.ToSlash(filepath.Join("src", string(rune('a'+i%26))+string(rune('a'+i/26))+".js"))] =
			"axios.get('/api/r" + string(rune('a'+i%26)) + "')\n"
	}
	root := writeTree(t, files)

	first, err := Scan(context.Background(), root, Options{Policy: Policy{Workers: 4}})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	second, _ := Scan(context.Background(), root, Options{Policy: Policy{Workers: 1}})

	if len(first.Matches) != len(second.Matches) {
		t.Fatalf("match counts differ: %d vs %d", len(first.Matches), len(second.Matches))
	}
	for i := range first.Matches {
		if first.Matches[i] != second.Matches[i] {
			t.Errorf("Matches[%d] differ: %+v vs %+v", i, first.Matches[i], second.Matches[i])
		}
	}
}

func TestScan_UnreadableFileSkipped(t *testing.T) {
	root := writeTree(t, map[string]string{"ok.js": "axios.get('/api/users')\n"})
	// dangling link: discovered by extension, fails on read
	if err := os.Symlink(filepath.Join(root, "missing.js"), filepath.Join(root, "bad.js")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	m := metrics.New()
	res, err := Scan(context.Background(), root, Options{Policy: DefaultPolicy(), Metrics: m})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(res.Matches) != 1 || res.Matches[0].File != "ok.js" {
		t.Errorf("Matches = %+v, want the ok.js call only", res.Matches)
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != "bad.js" {
		t.Errorf("Skipped = %v, want [bad.js]", res.Skipped)
	}
	if got := m.Snapshot().FilesSkipped; got != 1 {
		t.Errorf("FilesSkipped = %d, want 1", got)
	}
}

func TestScan_Cancelled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.js": "fetch('/a')"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Scan(ctx, root, Options{}); err == nil {
		t.Error("Scan() with a cancelled context should fail")
	}
}

func TestResult_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan_result.json")
	res := &Result{
		ProjectRoot: "/p",
		Framework:   "react",
		APIDirs:     []string{"src/api"},
		Matches: []Observation{
			{Method: "GET", RawPath: "/api/a", File: "a.js", Line: 3, Pattern: PatternFetch, Context: "fetch('/api/a')"},
		},
	}

	if err := res.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := LoadResult(path)
	if err != nil {
		t.Fatalf("LoadResult() error = %v", err)
	}
	if loaded.Matches[0] != res.Matches[0] {
		t.Errorf("loaded match = %+v", loaded.Matches[0])
	}
}

func TestLoadResult_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadResult(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("LoadResult(missing) should fail")
	}

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{not json"), 0644)
	if _, err := LoadResult(bad); err == nil {
		t.Error("LoadResult(malformed) should fail")
	}

	noMatches := filepath.Join(dir, "empty.json")
	os.WriteFile(noMatches, []byte(`{"projectRoot":"/p"}`), 0644)
	if _, err := LoadResult(noMatches); err == nil {
		t.Error("LoadResult(without matches) should fail")
	}
}
