package workflow

import (
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// DefaultConfig Tests
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config == nil {
		t.Fatal("DefaultConfig returned nil")
	}
	if config.AuthMode != "bearer" {
		t.Errorf("AuthMode = %v, want bearer", config.AuthMode)
	}
	if config.MockStrategy != "success" {
		t.Errorf("MockStrategy = %v, want success", config.MockStrategy)
	}
	if config.Scan.Workers != 8 {
		t.Errorf("Scan.Workers = %d, want 8", config.Scan.Workers)
	}
	if config.Scan.MethodWindow != 500 {
		t.Errorf("Scan.MethodWindow = %d, want 500", config.Scan.MethodWindow)
	}
	if config.History.Enabled {
		t.Error("History should be disabled by default")
	}
	if config.History.Keep != 50 {
		t.Errorf("History.Keep = %d, want 50", config.History.Keep)
	}
	if config.StrictMode || config.Interactive || config.FailOnBreaking {
		t.Error("strict, interactive and fail_on_breaking should default to false")
	}
}

// =============================================================================
// Load Tests
// =============================================================================

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opencontract.yaml")
	content := `
project_root: ./web
auth_mode: cookie
strict_mode: true
scope:
  - src
scan:
  workers: 3
history:
  enabled: true
  keep: 5
serve:
  latency: 250ms
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ProjectRoot != "./web" {
		t.Errorf("ProjectRoot = %v, want ./web", cfg.ProjectRoot)
	}
	if cfg.AuthMode != "cookie" {
		t.Errorf("AuthMode = %v, want cookie", cfg.AuthMode)
	}
	if !cfg.StrictMode {
		t.Error("StrictMode should be true")
	}
	if len(cfg.Scope) != 1 || cfg.Scope[0] != "src" {
		t.Errorf("Scope = %v, want [src]", cfg.Scope)
	}
	if cfg.Scan.Workers != 3 {
		t.Errorf("Scan.Workers = %d, want 3", cfg.Scan.Workers)
	}
	if len(cfg.Scan.Extensions) == 0 {
		t.Error("unset Scan.Extensions should take the default")
	}
	if !cfg.History.Enabled || cfg.History.Keep != 5 {
		t.Errorf("History = %+v", cfg.History)
	}
	if cfg.Serve.Latency.Milliseconds() != 250 {
		t.Errorf("Serve.Latency = %v, want 250ms", cfg.Serve.Latency)
	}
	if cfg.MockStrategy != "success" {
		t.Errorf("MockStrategy = %v, want default success", cfg.MockStrategy)
	}
}

func TestLoad_JSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"project_root": "/srv/app", "mock_strategy": "random"}`), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ProjectRoot != "/srv/app" || cfg.MockStrategy != "random" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OPENCONTRACT_PROJECT_NAME", "Shop")
	t.Setenv("OPENCONTRACT_SCAN__WORKERS", "2")
	t.Setenv("OPENCONTRACT_HISTORY__ENABLED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ProjectName != "Shop" {
		t.Errorf("ProjectName = %v, want Shop", cfg.ProjectName)
	}
	if cfg.Scan.Workers != 2 {
		t.Errorf("Scan.Workers = %d, want 2", cfg.Scan.Workers)
	}
	if !cfg.History.Enabled {
		t.Error("History.Enabled should be true")
	}
}

func TestLoadWithRoot_DotEnv(t *testing.T) {
	root := t.TempDir()
	const key = "OPENCONTRACT_API_VERSION"
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	if err := os.WriteFile(filepath.Join(root, ".env"), []byte(key+"=2.3.0\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadWithRoot("", root)
	if err != nil {
		t.Fatalf("LoadWithRoot() error = %v", err)
	}
	if cfg.ProjectRoot != root {
		t.Errorf("ProjectRoot = %q, want %q", cfg.ProjectRoot, root)
	}
	if cfg.APIVersion != "2.3.0" {
		t.Errorf("APIVersion = %q, want 2.3.0 from the project .env", cfg.APIVersion)
	}
}

func TestLoadWithRoot_RootFromFile(t *testing.T) {
	root := t.TempDir()
	const key = "OPENCONTRACT_PROJECT_NAME"
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	if err := os.WriteFile(filepath.Join(root, ".env"), []byte(key+"=FromDotEnv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "opencontract.yaml")
	if err := os.WriteFile(path, []byte("project_root: "+root+"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ProjectName != "FromDotEnv" {
		t.Errorf("ProjectName = %q, want FromDotEnv", cfg.ProjectName)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"OPENCONTRACT_PROJECT_ROOT", "project_root"},
		{"OPENCONTRACT_SCAN__IGNORE_DIRS", "scan.ignore_dirs"},
		{"OPENCONTRACT_SERVE__RATE_LIMIT", "serve.rate_limit"},
	}
	for _, tt := range tests {
		if got := envKey(tt.in); got != tt.want {
			t.Errorf("envKey(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// Save / Validate Tests
// =============================================================================

func TestConfig_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"config.yaml", "config.json"} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ProjectRoot = dir
			cfg.StrictMode = true
			cfg.Scan.Workers = 4

			path := filepath.Join(dir, name)
			if err := cfg.SaveToFile(path); err != nil {
				t.Fatalf("SaveToFile() error = %v", err)
			}
			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if loaded.ProjectRoot != dir || !loaded.StrictMode || loaded.Scan.Workers != 4 {
				t.Errorf("loaded = %+v", loaded)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing root", func(c *Config) { c.ProjectRoot = "" }, true},
		{"root not found", func(c *Config) { c.ProjectRoot = filepath.Join(dir, "nope") }, true},
		{"root is file", func(c *Config) { c.ProjectRoot = file }, true},
		{"bad auth", func(c *Config) { c.AuthMode = "oauth" }, true},
		{"upper auth", func(c *Config) { c.AuthMode = "Bearer" }, false},
		{"bad strategy", func(c *Config) { c.MockStrategy = "flaky" }, true},
		{"no workers", func(c *Config) { c.Scan.Workers = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ProjectRoot = dir
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Paths(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.ProjectRoot = root

	if cfg.OutputRoot() != root {
		t.Errorf("OutputRoot() = %v, want %v", cfg.OutputRoot(), root)
	}
	if want := filepath.Join(root, "reports", "api-diff.md"); cfg.Path(DiffReportFile) != want {
		t.Errorf("Path() = %v, want %v", cfg.Path(DiffReportFile), want)
	}
	if want := filepath.Join(root, ".opencontract", "history.db"); cfg.HistoryPath() != want {
		t.Errorf("HistoryPath() = %v, want %v", cfg.HistoryPath(), want)
	}

	cfg.History.Path = "/var/lib/oc.db"
	if cfg.HistoryPath() != "/var/lib/oc.db" {
		t.Errorf("absolute HistoryPath() = %v", cfg.HistoryPath())
	}
}

func TestConfig_Clone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scope = []string{"src"}
	clone := cfg.Clone()
	clone.Scope[0] = "lib"
	if cfg.Scope[0] != "src" {
		t.Error("Clone() shares slices with the original")
	}
}
