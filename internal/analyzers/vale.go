// Package analyzers holds the issue producers run by the edit engine: the
// Vale prose linter and the AI rules checker, plus a registry to pick them by
// name.
package analyzers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/steveyegge/hyperlint/internal/mdx"
	"github.com/steveyegge/hyperlint/internal/types"
)

// ValeName is the registry name of the Vale analyzer
const ValeName = "vale"

// ErrValeNotInstalled is returned by prerun checks when vale is not on PATH
var ErrValeNotInstalled = errors.New("vale is not installed or not found in PATH")

// ValeAlert is one entry of vale's JSON output
type ValeAlert struct {
	Action struct {
		Name   string   `json:"Name"`
		Params []string `json:"Params"`
	} `json:"Action"`
	Span        []int  `json:"Span"`
	Check       string `json:"Check"`
	Description string `json:"Description"`
	Link        string `json:"Link"`
	Message     string `json:"Message"`
	Severity    string `json:"Severity"`
	Match       string `json:"Match"`
	Line        int    `json:"Line"`
}

// IssueMessage is the text handed to the resolver for this alert
func (a ValeAlert) IssueMessage() string {
	return a.Check + " - " + a.Message
}

// ValeRunner executes the vale binary. Tests substitute fakes.
type ValeRunner interface {
	Version(ctx context.Context) (string, error)
	Run(ctx context.Context, configPath, file string) ([]byte, error)
}

// ExecValeRunner runs vale from PATH
type ExecValeRunner struct {
	Binary string // default: "vale"
	Dir    string // working directory for vale
}

func (r ExecValeRunner) binary() (string, error) {
	name := r.Binary
	if name == "" {
		name = "vale"
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", ErrValeNotInstalled
	}
	return path, nil
}

// Version returns the output of `vale --version`
func (r ExecValeRunner) Version(ctx context.Context) (string, error) {
	bin, err := r.binary()
	if err != nil {
		return "", err
	}
	out, err := exec.CommandContext(ctx, bin, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("vale --version: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Run lints file and returns vale's JSON report. Vale exits non-zero when it
// finds alerts, so stdout is returned whenever it holds a report.
func (r ExecValeRunner) Run(ctx context.Context, configPath, file string) ([]byte, error) {
	bin, err := r.binary()
	if err != nil {
		return nil, err
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "--config", configPath, "--output=JSON", file)
	cmd.Dir = r.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) > 0 && out[0] == '{' {
		return out, nil
	}
	if runErr != nil {
		return nil, fmt.Errorf("vale failed: %w: %s", runErr, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// ValeConfig configures the Vale analyzer
type ValeConfig struct {
	ConfigPath string // path to the .vale.ini
	MinVersion string // e.g. "3.0.0"; empty skips the check
	TempDir    string // where the temp copy is written; vale resolves its config relative to it
	Runner     ValeRunner
	Logger     *slog.Logger
}

// Vale turns vale alerts into replacement issues
type Vale struct {
	configPath string
	minVersion string
	tempDir    string
	runner     ValeRunner
	logger     *slog.Logger
}

// NewVale creates the analyzer
func NewVale(cfg ValeConfig) *Vale {
	v := &Vale{
		configPath: cfg.ConfigPath,
		minVersion: cfg.MinVersion,
		tempDir:    cfg.TempDir,
		runner:     cfg.Runner,
		logger:     cfg.Logger,
	}
	if v.tempDir == "" {
		v.tempDir = os.Getenv("PROJECT_ROOT")
	}
	if v.runner == nil {
		v.runner = ExecValeRunner{Dir: v.tempDir}
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	return v
}

func (v *Vale) Name() string { return ValeName }

// PrerunChecks verifies vale is installed, new enough, and configured
func (v *Vale) PrerunChecks(ctx context.Context) error {
	out, err := v.runner.Version(ctx)
	if err != nil {
		return err
	}
	if v.minVersion != "" {
		have := parseValeVersion(out)
		want := canonicalVersion(v.minVersion)
		if !semver.IsValid(want) {
			return fmt.Errorf("invalid minimum vale version %q", v.minVersion)
		}
		if !semver.IsValid(have) {
			return fmt.Errorf("cannot parse vale version from %q", out)
		}
		if semver.Compare(have, want) < 0 {
			return fmt.Errorf("vale %s is older than required %s", have, want)
		}
	}
	if _, err := os.Stat(v.configPath); err != nil {
		return fmt.Errorf("vale config %q: %w", v.configPath, err)
	}
	return nil
}

// parseValeVersion takes the last field of "vale version 3.7.1"
func parseValeVersion(out string) string {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return ""
	}
	return canonicalVersion(fields[len(fields)-1])
}

func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// Analyze lints a temp copy of doc and adds one replacement per alert.
// Alerts on protected or nonexistent lines are skipped.
func (v *Vale) Analyze(ctx context.Context, doc *types.Document, issues *types.IssueSet) error {
	alerts, err := v.lint(ctx, doc)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		v.logger.Info("vale reported no issues", "file", doc.Path)
		return nil
	}

	regions := mdx.ForPath(doc.Path, doc.Text())
	added := 0
	for _, alert := range alerts {
		if regions.IsProtected(alert.Line) {
			v.logger.Debug("skipping vale alert on protected line", "file", doc.Path, "line", alert.Line)
			continue
		}
		content, ok := doc.Line(alert.Line)
		if !ok {
			v.logger.Warn("skipping vale alert outside the document",
				"file", doc.Path, "line", alert.Line, "message", alert.IssueMessage())
			continue
		}
		issues.AddReplacement(types.ReplaceIssue{
			Line:            alert.Line,
			Messages:        []string{alert.IssueMessage()},
			ExistingContent: content,
		})
		added++
	}
	v.logger.Info("collected vale issues", "file", doc.Path, "alerts", len(alerts), "replacements", added)
	return nil
}

func (v *Vale) lint(ctx context.Context, doc *types.Document) ([]ValeAlert, error) {
	suffix := ".md"
	if mdx.Supports(doc.Path) {
		suffix = ".mdx"
	}
	tmp, err := os.CreateTemp(v.tempDir, "hyperlint-*"+suffix)
	if err != nil {
		return nil, fmt.Errorf("creating temp copy: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp.Name()); err != nil {
			v.logger.Warn("failed to remove temp copy", "path", tmp.Name(), "error", err)
		}
	}()
	if _, err := tmp.WriteString(doc.Text()); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing temp copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing temp copy: %w", err)
	}

	out, err := v.runner.Run(ctx, v.configPath, tmp.Name())
	if err != nil {
		return nil, err
	}
	return parseValeReport(out)
}

// parseValeReport flattens vale's {file: [alerts]} output. An empty report
// means no alerts.
func parseValeReport(out []byte) ([]ValeAlert, error) {
	if len(bytes.TrimSpace(out)) == 0 {
		return nil, nil
	}
	var report map[string][]ValeAlert
	if err := json.Unmarshal(out, &report); err != nil {
		return nil, fmt.Errorf("parsing vale output: %w", err)
	}
	files := make([]string, 0, len(report))
	for f := range report {
		files = append(files, f)
	}
	sort.Strings(files)
	var alerts []ValeAlert
	for _, f := range files {
		alerts = append(alerts, report[f]...)
	}
	return alerts, nil
}
