package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/steveyegge/hyperlint/internal/approval"
)

// ApplyEnv overrides c from environment variables and revalidates.
//
// Environment variables:
//   - HYPERLINT_DRY_RUN: Preview without writing (bool)
//   - HYPERLINT_REQUIRE_APPROVAL: Ask before applying changes (bool)
//   - HYPERLINT_APPROVAL_MODE: auto, interactive, silent, reject or review
//   - HYPERLINT_LOG_APPROVALS: Record decisions (bool)
//   - HYPERLINT_LOG_BACKEND: jsonl, sqlite or none
//   - HYPERLINT_STORAGE_DIR: Where logs and the fix cache live
//   - HYPERLINT_CONTEXT_LINES: Lines of context around a fixed line
//   - HYPERLINT_MAX_PARALLEL_ANALYZERS, HYPERLINT_MAX_PARALLEL_FILES: Pool sizes
//   - HYPERLINT_INCLUDE_PATTERN: Basename glob for folder runs
//   - HYPERLINT_EXCLUDE_PATTERNS: Comma-separated globs skipped in folder runs
//   - HYPERLINT_ENABLED_EDITORS: Comma-separated analyzer names
//   - HYPERLINT_VALE_CONFIG: Path to .vale.ini
//   - HYPERLINT_RULES_DIR: Rules directory
//   - HYPERLINT_MODEL: Model for AI calls
//   - HYPERLINT_REQUESTS_PER_MINUTE: AI request rate cap, 0 for none
//   - HYPERLINT_CACHE_ENABLED: Reuse earlier fixes (bool)
//   - HYPERLINT_REVIEW_COMMAND: External reviewer for the review mode
//
// Returns an error if any environment variable has an invalid value.
func (c *Config) ApplyEnv() error {
	var mode, backend string
	steps := []error{
		parseEnvBool("HYPERLINT_DRY_RUN", &c.DryRun),
		parseEnvBool("HYPERLINT_REQUIRE_APPROVAL", &c.RequireApproval),
		parseEnvString("HYPERLINT_APPROVAL_MODE", &mode),
		parseEnvBool("HYPERLINT_LOG_APPROVALS", &c.LogApprovals),
		parseEnvString("HYPERLINT_LOG_BACKEND", &backend),
		parseEnvString("HYPERLINT_STORAGE_DIR", &c.StorageDir),
		parseEnvInt("HYPERLINT_CONTEXT_LINES", &c.ContextLines),
		parseEnvInt("HYPERLINT_MAX_PARALLEL_ANALYZERS", &c.MaxParallelAnalyzers),
		parseEnvInt("HYPERLINT_MAX_PARALLEL_FILES", &c.MaxParallelFiles),
		parseEnvString("HYPERLINT_INCLUDE_PATTERN", &c.IncludePattern),
		parseEnvList("HYPERLINT_EXCLUDE_PATTERNS", &c.ExcludePatterns),
		parseEnvList("HYPERLINT_ENABLED_EDITORS", &c.EnabledEditors),
		parseEnvString("HYPERLINT_VALE_CONFIG", &c.Vale.ConfigPath),
		parseEnvString("HYPERLINT_RULES_DIR", &c.CustomRules.RulesDirectory),
		parseEnvString("HYPERLINT_MODEL", &c.AI.Model),
		parseEnvInt("HYPERLINT_REQUESTS_PER_MINUTE", &c.AI.RequestsPerMinute),
		parseEnvBool("HYPERLINT_CACHE_ENABLED", &c.AI.CacheEnabled),
		parseEnvString("HYPERLINT_REVIEW_COMMAND", &c.Review.Command),
	}
	for _, err := range steps {
		if err != nil {
			return err
		}
	}
	if mode != "" {
		c.ApprovalMode = approval.Mode(mode)
	}
	if backend != "" {
		c.LogBackend = approval.Backend(backend)
	}

	c.normalize()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration from environment: %w", err)
	}
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

func parseEnvString(key string, dest *string) error {
	if value := os.Getenv(key); value != "" {
		*dest = value
	}
	return nil
}

// parseEnvList splits a comma-separated variable, dropping empty items
func parseEnvList(key string, dest *[]string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	*dest = items
	return nil
}
