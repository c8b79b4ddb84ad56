// Package config loads hyperlint settings from YAML or TOML files and
// HYPERLINT_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/steveyegge/hyperlint/internal/approval"
)

// Analyzer names accepted in enabled_editors
const (
	EditorVale  = "vale"
	EditorRules = "rules"
)

// editorAliases maps older names onto current ones
var editorAliases = map[string]string{"custom_rules": EditorRules}

// DefaultFileName is where `config init` writes
const DefaultFileName = ".hyperlint.yaml"

// ValeConfig locates the vale configuration
type ValeConfig struct {
	ConfigPath string `yaml:"config_path" toml:"config_path"`
	MinVersion string `yaml:"min_version" toml:"min_version"`
}

// CustomRulesConfig selects AI rules
type CustomRulesConfig struct {
	RulesDirectory string   `yaml:"rules_directory" toml:"rules_directory"`
	IncludeRules   []string `yaml:"include_rules" toml:"include_rules"`
	ExcludeRules   []string `yaml:"exclude_rules" toml:"exclude_rules"`
}

// AIConfig tunes model calls
type AIConfig struct {
	Model              string  `yaml:"model" toml:"model"` // empty: ai.GetDefaultModel()
	MaxTokens          int     `yaml:"max_tokens" toml:"max_tokens"`
	Temperature        float64 `yaml:"temperature" toml:"temperature"`
	RequestsPerMinute  int     `yaml:"requests_per_minute" toml:"requests_per_minute"`
	MaxConcurrentCalls int     `yaml:"max_concurrent_calls" toml:"max_concurrent_calls"`
	CacheEnabled       bool    `yaml:"cache_enabled" toml:"cache_enabled"`
}

// ReviewConfig configures the external reviewer used by the review approval mode
type ReviewConfig struct {
	Command string `yaml:"command" toml:"command"`
}

// Config holds every hyperlint setting
type Config struct {
	DryRun          bool             `yaml:"dry_run" toml:"dry_run"`
	RequireApproval bool             `yaml:"require_approval" toml:"require_approval"`
	ApprovalMode    approval.Mode    `yaml:"approval_mode" toml:"approval_mode"`
	LogApprovals    bool             `yaml:"log_approvals" toml:"log_approvals"`
	LogBackend      approval.Backend `yaml:"log_backend" toml:"log_backend"`
	StorageDir      string           `yaml:"storage_dir" toml:"storage_dir"`

	ContextLines         int      `yaml:"context_lines" toml:"context_lines"`
	MaxParallelAnalyzers int      `yaml:"max_parallel_analyzers" toml:"max_parallel_analyzers"`
	MaxParallelFiles     int      `yaml:"max_parallel_files" toml:"max_parallel_files"`
	IncludePattern       string   `yaml:"include_pattern" toml:"include_pattern"`
	ExcludePatterns      []string `yaml:"exclude_patterns" toml:"exclude_patterns"`
	EnabledEditors       []string `yaml:"enabled_editors" toml:"enabled_editors"`

	Vale        ValeConfig        `yaml:"vale" toml:"vale"`
	CustomRules CustomRulesConfig `yaml:"custom_rules" toml:"custom_rules"`
	AI          AIConfig          `yaml:"ai" toml:"ai"`
	Review      ReviewConfig      `yaml:"review" toml:"review"`
}

// Default returns the configuration used when no file is found
func Default() *Config {
	return &Config{
		RequireApproval:      true,
		ApprovalMode:         approval.ModeInteractive,
		LogApprovals:         true,
		LogBackend:           approval.BackendJSONL,
		StorageDir:           ".hyperlint",
		ContextLines:         5,
		MaxParallelAnalyzers: 4,
		MaxParallelFiles:     4,
		IncludePattern:       "*.md*",
		ExcludePatterns:      []string{"node_modules", ".git", ".hyperlint"},
		EnabledEditors:       []string{EditorVale, EditorRules},
		Vale: ValeConfig{
			ConfigPath: ".vale.ini",
			MinVersion: "3.0.0",
		},
		CustomRules: CustomRulesConfig{
			RulesDirectory: "rules",
		},
		AI: AIConfig{
			MaxTokens:          4096,
			Temperature:        0.25,
			MaxConcurrentCalls: 3,
			CacheEnabled:       true,
		},
	}
}

type format int

const (
	formatYAML format = iota
	formatTOML
)

func formatFor(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML, nil
	case ".toml":
		return formatTOML, nil
	default:
		return 0, fmt.Errorf("unsupported config format %q (use .yaml, .yml or .toml)", filepath.Ext(path))
	}
}

// Load reads path over the defaults, then normalizes and validates the result
func Load(path string) (*Config, error) {
	f, err := formatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	switch f {
	case formatYAML:
		err = yaml.Unmarshal(data, cfg)
	case formatTOML:
		_, err = toml.Decode(string(data), cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", path, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// searchNames are checked in order in the working directory
var searchNames = []string{"hyperlint.yaml", ".hyperlint.yaml", "hyperlint.toml", ".hyperlint.toml"}

// Find returns the first config file in the working directory or
// ~/.config/hyperlint/config.yaml, or "" when there is none.
func Find() string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	home, _ := os.UserHomeDir()
	return FindIn(cwd, home)
}

// FindIn is Find with explicit directories
func FindIn(dir, home string) string {
	candidates := make([]string, 0, len(searchNames)+1)
	for _, name := range searchNames {
		candidates = append(candidates, filepath.Join(dir, name))
	}
	if home != "" {
		candidates = append(candidates, filepath.Join(home, ".config", "hyperlint", "config.yaml"))
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Resolve loads path, or the file Find locates when path is empty, or the
// defaults when there is none. Environment overrides are applied last. The
// returned path is "" when no file was read.
func Resolve(path string) (*Config, string, error) {
	if path == "" {
		path = Find()
	}
	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			return nil, "", err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func (c *Config) normalize() {
	seen := make(map[string]bool, len(c.EnabledEditors))
	editors := c.EnabledEditors[:0]
	for _, name := range c.EnabledEditors {
		name = strings.TrimSpace(name)
		if alias, ok := editorAliases[name]; ok {
			name = alias
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		editors = append(editors, name)
	}
	c.EnabledEditors = editors
	if c.ApprovalMode == "" {
		c.ApprovalMode = approval.ModeInteractive
	}
	if c.LogBackend == "" {
		c.LogBackend = approval.BackendJSONL
	}
}

// Validate checks if the configuration has valid values
func (c *Config) Validate() error {
	var errs []error
	if !c.ApprovalMode.IsValid() {
		errs = append(errs, fmt.Errorf("approval_mode must be one of %v (got %q)", approval.Modes, c.ApprovalMode))
	}
	switch c.LogBackend {
	case approval.BackendJSONL, approval.BackendSQLite, approval.BackendNone:
	default:
		errs = append(errs, fmt.Errorf("log_backend must be jsonl, sqlite or none (got %q)", c.LogBackend))
	}
	if c.StorageDir == "" {
		errs = append(errs, errors.New("storage_dir is required"))
	}
	if c.ContextLines < 0 || c.ContextLines > 100 {
		errs = append(errs, fmt.Errorf("context_lines must be between 0 and 100 (got %d)", c.ContextLines))
	}
	if c.MaxParallelAnalyzers < 1 || c.MaxParallelAnalyzers > 64 {
		errs = append(errs, fmt.Errorf("max_parallel_analyzers must be between 1 and 64 (got %d)", c.MaxParallelAnalyzers))
	}
	if c.MaxParallelFiles < 1 || c.MaxParallelFiles > 64 {
		errs = append(errs, fmt.Errorf("max_parallel_files must be between 1 and 64 (got %d)", c.MaxParallelFiles))
	}
	if _, err := filepath.Match(c.IncludePattern, ""); err != nil {
		errs = append(errs, fmt.Errorf("include_pattern %q: %w", c.IncludePattern, err))
	}
	for _, p := range c.ExcludePatterns {
		if _, err := filepath.Match(p, ""); err != nil {
			errs = append(errs, fmt.Errorf("exclude_patterns %q: %w", p, err))
		}
	}
	for _, name := range c.EnabledEditors {
		if name != EditorVale && name != EditorRules {
			errs = append(errs, fmt.Errorf("enabled_editors: unknown editor %q", name))
		}
	}
	if c.AI.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("ai.max_tokens must not be negative (got %d)", c.AI.MaxTokens))
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 1 {
		errs = append(errs, fmt.Errorf("ai.temperature must be between 0 and 1 (got %v)", c.AI.Temperature))
	}
	if c.AI.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("ai.requests_per_minute must not be negative (got %d)", c.AI.RequestsPerMinute))
	}
	if c.AI.MaxConcurrentCalls < 0 {
		errs = append(errs, fmt.Errorf("ai.max_concurrent_calls must not be negative (got %d)", c.AI.MaxConcurrentCalls))
	}
	if c.ApprovalMode == approval.ModeReview && c.Review.Command == "" && c.RequireApproval {
		errs = append(errs, errors.New("review.command is required for the review approval mode"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// EffectiveApprovalMode is the mode the gate should use. Without
// require_approval every change is approved.
func (c *Config) EffectiveApprovalMode() approval.Mode {
	if !c.RequireApproval {
		return approval.ModeAuto
	}
	return c.ApprovalMode
}

// Enabled reports whether the named editor is enabled
func (c *Config) Enabled(name string) bool {
	for _, e := range c.EnabledEditors {
		if e == name {
			return true
		}
	}
	return false
}

// JudgeDir holds the decision logs
func (c *Config) JudgeDir() string { return filepath.Join(c.StorageDir, "judge") }

// CacheDir holds the on-disk fix cache
func (c *Config) CacheDir() string { return filepath.Join(c.StorageDir, "cache") }

// EnsureStorageDir creates the storage directories
func (c *Config) EnsureStorageDir() error {
	for _, dir := range []string{c.StorageDir, c.JudgeDir(), c.CacheDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating storage directory: %w", err)
		}
	}
	return nil
}

// Marshal encodes c in the format implied by path's extension
func (c *Config) Marshal(path string) ([]byte, error) {
	f, err := formatFor(path)
	if err != nil {
		return nil, err
	}
	switch f {
	case formatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return nil, fmt.Errorf("failed to encode TOML: %w", err)
		}
		return buf.Bytes(), nil
	default:
		data, err := yaml.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("failed to encode YAML: %w", err)
		}
		return data, nil
	}
}

// WriteDefault writes the default configuration to path with a header
// comment. An existing file is an error.
func WriteDefault(path string) error {
	data, err := Default().Marshal(path)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("configuration already exists: %s", path)
		}
		return fmt.Errorf("creating configuration: %w", err)
	}
	if _, err := f.Write(append([]byte("# Hyperlint Configuration\n"), data...)); err != nil {
		f.Close()
		return fmt.Errorf("writing configuration: %w", err)
	}
	return f.Close()
}
