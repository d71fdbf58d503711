package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/PentesterFlow/OpenContract/internal/contract"
	"github.com/PentesterFlow/OpenContract/internal/mockserver"
	"github.com/PentesterFlow/OpenContract/internal/scanner"
)

// EnvPrefix prefixes environment overrides. Nested keys are separated by a
// double underscore, e.g. OPENCONTRACT_SCAN__WORKERS.
const EnvPrefix = "OPENCONTRACT_"

// Config holds all workflow configuration.
type Config struct {
	// Project root to scan
	ProjectRoot string `json:"project_root" yaml:"project_root" koanf:"project_root"`

	// Root-relative directories the scan is restricted to
	Scope []string `json:"scope" yaml:"scope" koanf:"scope"`

	// Extra API wrapper directories
	EntryHints []string `json:"entry_hints" yaml:"entry_hints" koanf:"entry_hints"`

	// Auth mode: bearer, cookie, custom or none
	AuthMode string `json:"auth_mode" yaml:"auth_mode" koanf:"auth_mode"`

	// Artifact directory; defaults to the project root
	OutputDir string `json:"output_dir" yaml:"output_dir" koanf:"output_dir"`

	ProjectName string `json:"project_name" yaml:"project_name" koanf:"project_name"`
	APIVersion  string `json:"api_version" yaml:"api_version" koanf:"api_version"`

	// Fail the run when the consistency check reports issues
	StrictMode bool `json:"strict_mode" yaml:"strict_mode" koanf:"strict_mode"`

	// Pause for confirmation after the contract is built
	Interactive bool `json:"interactive" yaml:"interactive" koanf:"interactive"`

	// Fail the run when the diff contains breaking changes
	FailOnBreaking bool `json:"fail_on_breaking" yaml:"fail_on_breaking" koanf:"fail_on_breaking"`

	// Mock strategy: success, error or random
	MockStrategy string `json:"mock_strategy" yaml:"mock_strategy" koanf:"mock_strategy"`

	Scan    scanner.Policy    `json:"scan" yaml:"scan" koanf:"scan"`
	History HistoryConfig     `json:"history" yaml:"history" koanf:"history"`
	Serve   mockserver.Config `json:"serve" yaml:"serve" koanf:"serve"`
	Log     LogConfig         `json:"log" yaml:"log" koanf:"log"`
}

// HistoryConfig controls the snapshot history database.
type HistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled" koanf:"enabled"`
	Path    string `json:"path" yaml:"path" koanf:"path"`
	Keep    int    `json:"keep" yaml:"keep" koanf:"keep"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" koanf:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty" koanf:"pretty"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		AuthMode:     contract.AuthBearer,
		ProjectName:  "Project",
		APIVersion:   "1.0.0",
		MockStrategy: contract.StrategySuccess,
		Scan:         scanner.DefaultPolicy(),
		History: HistoryConfig{
			Path: ".opencontract/history.db",
			Keep: 50,
		},
		Serve: mockserver.DefaultConfig(),
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// applyDefaults fills every unset field from DefaultConfig.
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.AuthMode == "" {
		c.AuthMode = d.AuthMode
	}
	if c.ProjectName == "" {
		c.ProjectName = d.ProjectName
	}
	if c.APIVersion == "" {
		c.APIVersion = d.APIVersion
	}
	if c.MockStrategy == "" {
		c.MockStrategy = d.MockStrategy
	}
	if c.Scan.MethodWindow <= 0 {
		c.Scan.MethodWindow = d.Scan.MethodWindow
	}
	if c.Scan.ContextMaxLen <= 0 {
		c.Scan.ContextMaxLen = d.Scan.ContextMaxLen
	}
	if len(c.Scan.Extensions) == 0 {
		c.Scan.Extensions = d.Scan.Extensions
	}
	if len(c.Scan.IgnoreDirs) == 0 {
		c.Scan.IgnoreDirs = d.Scan.IgnoreDirs
	}
	if c.Scan.Workers <= 0 {
		c.Scan.Workers = d.Scan.Workers
	}
	if c.History.Path == "" {
		c.History.Path = d.History.Path
	}
	if c.History.Keep <= 0 {
		c.History.Keep = d.History.Keep
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = d.Serve.Addr
	}
	if c.Serve.Burst <= 0 {
		c.Serve.Burst = d.Serve.Burst
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// envKey maps OPENCONTRACT_SCAN__WORKERS to scan.workers.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Load reads configuration from an optional YAML or JSON file, then applies
// OPENCONTRACT_* environment overrides. See LoadWithRoot for .env handling.
func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

// LoadWithRoot is Load with a project root that takes precedence over the
// configured one. The .env file at the resolved project root (the working
// directory when no root is known) is loaded into the environment without
// overriding existing variables, then environment overrides are applied.
func LoadWithRoot(path, root string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// YAML is a superset of JSON, so one parser serves both.
		if err := k.Load(file.Provider(path), koanfyaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if root == "" {
		root = k.String("project_root")
	}
	dotenv := ".env"
	if root != "" {
		dotenv = filepath.Join(root, ".env")
	}
	if err := godotenv.Load(dotenv); err == nil {
		if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if root != "" {
		cfg.ProjectRoot = root
	}
	cfg.applyDefaults()
	return cfg, nil
}

// SaveToFile saves configuration as JSON or YAML depending on the extension.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

var (
	authModes      = map[string]bool{contract.AuthBearer: true, contract.AuthCookie: true, contract.AuthCustom: true, contract.AuthNone: true}
	mockStrategies = map[string]bool{contract.StrategySuccess: true, contract.StrategyError: true, contract.StrategyRandom: true}
)

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.ProjectRoot == "" {
		return fmt.Errorf("project_root is required")
	}
	info, err := os.Stat(c.ProjectRoot)
	if err != nil {
		return fmt.Errorf("project_root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("project_root %s is not a directory", c.ProjectRoot)
	}
	if !authModes[strings.ToLower(c.AuthMode)] {
		return fmt.Errorf("auth_mode must be one of bearer, cookie, custom, none (got %q)", c.AuthMode)
	}
	if !mockStrategies[c.MockStrategy] {
		return fmt.Errorf("mock_strategy must be one of success, error, random (got %q)", c.MockStrategy)
	}
	if c.Scan.Workers < 1 {
		return fmt.Errorf("scan.workers must be at least 1")
	}
	if c.History.Keep < 0 {
		return fmt.Errorf("history.keep must not be negative")
	}
	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := json.Marshal(c)
	clone := &Config{}
	json.Unmarshal(data, clone)
	return clone
}

// Artifact paths relative to the output directory.
const (
	ScanResultFile        = "scan_result.json"
	ConsistencyReportFile = "reports/consistency-report.md"
	DiffReportFile        = "reports/api-diff.md"
	ReportsDir            = "reports"
)

// OutputRoot returns the absolute artifact directory.
func (c *Config) OutputRoot() string {
	dir := c.OutputDir
	if dir == "" {
		dir = c.ProjectRoot
	}
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

// HistoryPath resolves the history database path against the output root.
func (c *Config) HistoryPath() string {
	if filepath.IsAbs(c.History.Path) {
		return c.History.Path
	}
	return filepath.Join(c.OutputRoot(), c.History.Path)
}

// Path joins a slash-separated artifact path onto the output root.
func (c *Config) Path(rel string) string {
	return filepath.Join(c.OutputRoot(), filepath.FromSlash(rel))
}
