package approval

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Mode names an approval policy in configuration and on the command line
type Mode string

const (
	ModeAuto        Mode = "auto"
	ModeInteractive Mode = "interactive"
	ModeSilent      Mode = "silent"
	ModeReject      Mode = "reject"
	ModeReview      Mode = "review"
)

// Modes lists every supported mode
var Modes = []Mode{ModeAuto, ModeInteractive, ModeSilent, ModeReject, ModeReview}

// IsValid reports whether m names a known policy
func (m Mode) IsValid() bool {
	for _, known := range Modes {
		if m == known {
			return true
		}
	}
	return false
}

// PolicyOptions configures NewPolicy
type PolicyOptions struct {
	Out           io.Writer // where interactive prompts render (default: os.Stdout)
	Prompter      Prompter  // optional; a readline prompter is created lazily
	ReviewCommand string    // external reviewer for ModeReview
	Logger        *slog.Logger
}

// NewPolicy builds the policy for mode
func NewPolicy(mode Mode, opts PolicyOptions) (Policy, error) {
	switch mode {
	case ModeAuto, "":
		return &AutoApprove{Logger: opts.Logger}, nil
	case ModeSilent:
		return Silent{}, nil
	case ModeReject:
		return RejectAll{}, nil
	case ModeInteractive:
		return NewInteractive(opts.Out, opts.Prompter), nil
	case ModeReview:
		fallback := NewInteractive(opts.Out, opts.Prompter)
		return NewMediaReview(NewCommandReviewer(opts.ReviewCommand), fallback, opts.Logger), nil
	default:
		return nil, fmt.Errorf("unknown approval mode %q (valid: %v)", mode, Modes)
	}
}

// AutoApprove approves everything. Used for dry runs and unattended passes.
type AutoApprove struct {
	Logger *slog.Logger
}

func (*AutoApprove) Name() string { return string(ModeAuto) }

func (a *AutoApprove) Decide(_ context.Context, req Request) (bool, error) {
	logger := a.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("auto-approving change", "file", req.FilePath, "line", req.Line, "kind", req.Kind)
	return true, nil
}

// Silent approves everything without rendering anything
type Silent struct{}

func (Silent) Name() string                                  { return string(ModeSilent) }
func (Silent) Decide(context.Context, Request) (bool, error) { return true, nil }

// RejectAll rejects everything
type RejectAll struct{}

func (RejectAll) Name() string                                  { return string(ModeReject) }
func (RejectAll) Decide(context.Context, Request) (bool, error) { return false, nil }

// Interactive renders each request and asks the operator for a y/n answer.
// Decisions are serialized so concurrent files never interleave prompts.
type Interactive struct {
	out      io.Writer
	prompter Prompter
	mu       sync.Mutex
}

// NewInteractive creates an interactive policy. A nil prompter is replaced by
// a readline prompter on first use.
func NewInteractive(out io.Writer, prompter Prompter) *Interactive {
	if out == nil {
		out = os.Stdout
	}
	return &Interactive{out: out, prompter: prompter}
}

func (*Interactive) Name() string { return string(ModeInteractive) }

func (p *Interactive) Decide(ctx context.Context, req Request) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.prompter == nil {
		rp, err := NewReadlinePrompter()
		if err != nil {
			return false, err
		}
		p.prompter = rp
	}

	RenderRequest(p.out, req)
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		answer, err := p.prompter.Prompt("Accept this change? [y/n]: ")
		if err != nil {
			return false, fmt.Errorf("failed to get user input: %w", err)
		}
		switch strings.TrimSpace(strings.ToLower(answer)) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		default:
			fmt.Fprintf(p.out, "%s Please enter y or n.\n", color.YellowString("Invalid input %q.", answer))
		}
	}
}

// Close releases the prompter, if one was opened
func (p *Interactive) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.prompter == nil {
		return nil
	}
	return p.prompter.Close()
}

// Reviewer hands a request to an external review tool
type Reviewer interface {
	Available() bool
	Review(ctx context.Context, req Request) (bool, error)
}

// MediaReview asks an external reviewer and falls back to another policy when
// the reviewer is not installed.
type MediaReview struct {
	reviewer Reviewer
	fallback Policy
	logger   *slog.Logger
	warnOnce sync.Once
}

// NewMediaReview creates a review policy
func NewMediaReview(reviewer Reviewer, fallback Policy, logger *slog.Logger) *MediaReview {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaReview{reviewer: reviewer, fallback: fallback, logger: logger}
}

func (*MediaReview) Name() string { return string(ModeReview) }

func (m *MediaReview) Decide(ctx context.Context, req Request) (bool, error) {
	if m.reviewer == nil || !m.reviewer.Available() {
		m.warnOnce.Do(func() {
			m.logger.Warn("external reviewer unavailable, falling back", "fallback", m.fallback.Name())
		})
		return m.fallback.Decide(ctx, req)
	}
	return m.reviewer.Review(ctx, req)
}

// CommandReviewer writes the request to a temporary markdown file and runs an
// external command on it. Exit status 0 approves, 1 rejects.
type CommandReviewer struct {
	command []string
}

// NewCommandReviewer splits command on whitespace; an empty command is never available
func NewCommandReviewer(command string) *CommandReviewer {
	return &CommandReviewer{command: strings.Fields(command)}
}

func (c *CommandReviewer) Available() bool {
	if len(c.command) == 0 {
		return false
	}
	_, err := exec.LookPath(c.command[0])
	return err == nil
}

func (c *CommandReviewer) Review(ctx context.Context, req Request) (bool, error) {
	dir, err := os.MkdirTemp("", "hyperlint-review-*")
	if err != nil {
		return false, fmt.Errorf("failed to create review dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "change.md")
	if err := os.WriteFile(path, []byte(reviewDocument(req)), 0o600); err != nil {
		return false, fmt.Errorf("failed to write review file: %w", err)
	}

	args := append(append([]string(nil), c.command[1:]...), path)
	cmd := exec.CommandContext(ctx, c.command[0], args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err = cmd.Run()
	if err == nil {
		return true, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("reviewer %s failed: %w", c.command[0], err)
}

func reviewDocument(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s at %s:%d\n\n", req.Kind, req.FilePath, req.Line)
	for _, msg := range req.Messages {
		fmt.Fprintf(&sb, "- %s\n", msg)
	}
	sb.WriteString("\n## Before\n\n```\n")
	sb.WriteString(req.Before)
	sb.WriteString("\n```\n\n## After\n\n```\n")
	sb.WriteString(req.After)
	sb.WriteString("\n```\n")
	return sb.String()
}
