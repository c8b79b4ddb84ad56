// Package approval decides whether a proposed line change is applied and keeps
// an append-only log of every decision.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/steveyegge/hyperlint/internal/types"
)

// DefaultDecisionType labels records written by the line editor
const DefaultDecisionType = "editor"

// ReasonProtected is recorded when an edit targets a protected line
const ReasonProtected = "protected"

// Request describes one proposed change presented to a policy
type Request struct {
	Kind     types.IssueKind
	FilePath string
	Line     int
	Messages []string
	Before   string // current content; empty for insertions
	After    string // proposed content; DeleteSentinel for deletions
	RunID    string
}

// Record is one immutable entry in the decision log. The JSON field names are
// a durable contract consumed by other tooling; do not rename them.
type Record struct {
	DecisionType  string          `json:"decision_type"`
	IssueType     types.IssueKind `json:"issue_type"`
	Approved      bool            `json:"approved"`
	Date          time.Time       `json:"date"`
	FilePath      string          `json:"file_path"`
	Line          int             `json:"line"`
	Messages      []string        `json:"issue_messages"`
	ContentBefore string          `json:"existing_content"`
	ContentAfter  string          `json:"replacement_content"`
	Reason        string          `json:"reason,omitempty"`
	RunID         string          `json:"run_id,omitempty"`
}

// Policy decides a single request. An error means no decision could be made
// (for example the operator's terminal closed) and is treated as a rejection.
type Policy interface {
	Name() string
	Decide(ctx context.Context, req Request) (bool, error)
}

// Gate combines a policy with the decision log
type Gate struct {
	policy       Policy
	log          Log
	logDecisions bool
	decisionType string
	logger       *slog.Logger
	now          func() time.Time
}

// GateConfig holds gate configuration
type GateConfig struct {
	Policy       Policy       // Required
	Log          Log          // Optional (defaults to a no-op log)
	LogDecisions bool         // Append a record for every decision
	DecisionType string       // Optional (default: "editor")
	Logger       *slog.Logger // Optional (default: slog.Default())
}

// NewGate creates a new approval gate
func NewGate(cfg *GateConfig) (*Gate, error) {
	if cfg == nil || cfg.Policy == nil {
		return nil, fmt.Errorf("policy is required")
	}
	log := cfg.Log
	if log == nil {
		log = NopLog{}
	}
	decisionType := cfg.DecisionType
	if decisionType == "" {
		decisionType = DefaultDecisionType
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		policy:       cfg.Policy,
		log:          log,
		logDecisions: cfg.LogDecisions,
		decisionType: decisionType,
		logger:       logger,
		now:          time.Now,
	}, nil
}

// Policy returns the gate's policy
func (g *Gate) Policy() Policy { return g.policy }

// Log returns the gate's decision log
func (g *Gate) Log() Log { return g.log }

// Decide consults the policy and, when enabled, appends one record. The
// returned error only reports a failed log write; it never changes the decision.
func (g *Gate) Decide(ctx context.Context, req Request) (bool, error) {
	approved, err := g.policy.Decide(ctx, req)
	reason := ""
	if err != nil {
		g.logger.Warn("approval policy failed, rejecting change",
			"policy", g.policy.Name(), "file", req.FilePath, "line", req.Line, "error", err)
		approved = false
		reason = fmt.Sprintf("policy error: %v", err)
	}
	if !g.logDecisions {
		return approved, nil
	}
	return approved, g.LogDecision(ctx, g.record(req, approved, reason))
}

// Reject records a rejection without consulting the policy. Used for changes
// that no policy may approve, such as edits to protected lines.
func (g *Gate) Reject(ctx context.Context, req Request, reason string) error {
	if !g.logDecisions {
		return nil
	}
	return g.LogDecision(ctx, g.record(req, false, reason))
}

// LogDecision appends rec to the decision log
func (g *Gate) LogDecision(ctx context.Context, rec Record) error {
	if err := g.log.Append(ctx, rec); err != nil {
		return fmt.Errorf("appending %s decision for %s:%d: %w", rec.IssueType, rec.FilePath, rec.Line, err)
	}
	g.logger.Debug("logged approval decision", "type", g.decisionType, "log", g.log.Path())
	return nil
}

func (g *Gate) record(req Request, approved bool, reason string) Record {
	var messages []string
	if req.Kind != types.KindInsert && len(req.Messages) > 0 {
		messages = append([]string(nil), req.Messages...)
	}
	return Record{
		DecisionType:  g.decisionType,
		IssueType:     req.Kind,
		Approved:      approved,
		Date:          g.now(),
		FilePath:      req.FilePath,
		Line:          req.Line,
		Messages:      messages,
		ContentBefore: req.Before,
		ContentAfter:  req.After,
		Reason:        reason,
		RunID:         req.RunID,
	}
}
