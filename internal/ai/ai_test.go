package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/hyperlint/internal/types"
)

type fakeCompleter struct {
	response string
	err      error
	prompts  []string
	opts     []CallOptions
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string, opts CallOptions) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	return f.response, f.err
}

func TestParse(t *testing.T) {
	type payload struct {
		Value string `json:"replacement_content"`
	}
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"direct", `{"replacement_content": "a"}`, "a", false},
		{"fenced", "```json\n{\"replacement_content\": \"b\"}\n```", "b", false},
		{"trailing comma", `{"replacement_content": "c",}`, "c", false},
		{"prose around", "Here you go:\n{\"replacement_content\": \"d\"}\nThanks!", "d", false},
		{"apostrophes survive", `{"replacement_content": "it's fine"}`, "it's fine", false},
		{"empty", "   ", "", true},
		{"garbage", "no json here", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse[payload](tt.input, "test")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Value)
		})
	}
}

func TestExtractJSONPrefersArrayWhenLeading(t *testing.T) {
	assert.Equal(t, `[{"id": 1}, {"id": 2}]`, extractJSON(`[{"id": 1}, {"id": 2}]`))
}

func TestBuildFixPrompt(t *testing.T) {
	issue := types.ReplaceIssue{Line: 12, ExistingContent: "teh cat", Messages: []string{"Vale.Spelling - teh", "Style - cat"}}

	prompt, err := BuildFixPrompt(issue, "11: before\n12: teh cat")
	require.NoError(t, err)
	assert.Contains(t, prompt, "<line number=12>\nteh cat\n</line>")
	assert.Contains(t, prompt, "<issue>\nVale.Spelling - teh\nStyle - cat\n</issue>")
	assert.Contains(t, prompt, "<context>\n11: before\n12: teh cat\n</context>")

	bare, err := BuildFixPrompt(issue, "")
	require.NoError(t, err)
	assert.NotContains(t, bare, "<context>")
}

func TestLineFixer(t *testing.T) {
	fc := &fakeCompleter{response: `{"replacement_content": "the cat sat"}`}
	fixer := NewLineFixer(fc, ModelHaiku)

	got, err := fixer.Fix(context.Background(), types.ReplaceIssue{Line: 1, ExistingContent: "    teh cat sat"}, "")
	require.NoError(t, err)
	assert.Equal(t, "    the cat sat", got)
	require.Len(t, fc.opts, 1)
	assert.Equal(t, ModelHaiku, fc.opts[0].Model)
	assert.InDelta(t, 0.25, fc.opts[0].Temperature, 1e-9)
	assert.Equal(t, "line-fixer:"+ModelHaiku, fixer.Namespace())
}

func TestLineFixerErrors(t *testing.T) {
	issue := types.ReplaceIssue{Line: 1, ExistingContent: "x"}

	_, err := NewLineFixer(&fakeCompleter{err: errors.New("503 service unavailable")}, "").Fix(context.Background(), issue, "")
	assert.Error(t, err)

	_, err = NewLineFixer(&fakeCompleter{response: `{"other": 1}`}, "").Fix(context.Background(), issue, "")
	assert.ErrorContains(t, err, "replacement_content")
}

func TestMatchIndent(t *testing.T) {
	assert.Equal(t, "  fixed", matchIndent("  orig", "fixed"))
	assert.Equal(t, "  fixed", matchIndent("  orig", "      fixed"))
	assert.Equal(t, "fixed", matchIndent("orig", "  fixed\n"))
	assert.Equal(t, "first", matchIndent("orig", "first\nsecond"))
}

func TestRuleCheckerFindViolations(t *testing.T) {
	fc := &fakeCompleter{response: "```json\n" + `{"rules_violations": [
		{"line_number": 2, "issue_message": "uses we", "resolution": "edit_line"},
		{"line_number": 4, "issue_message": "filler", "resolution": "delete_line"},
		{"line_number": 5, "issue_message": "unclear", "resolution": "flag_line"},
		{"line_number": 6, "issue_message": "?", "resolution": "rewrite_everything"}
	]}` + "\n```"}
	checker := NewRuleChecker(fc, "")

	got, err := checker.FindViolations(context.Background(), "1: a\n2: b", "no-first-person", "Avoid first person.")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, Violation{LineNumber: 2, IssueMessage: "uses we", Resolution: ResolutionEditLine}, got[0])
	assert.Equal(t, ResolutionDeleteLine, got[1].Resolution)
	assert.Equal(t, ResolutionFlagLine, got[2].Resolution)

	assert.Contains(t, fc.prompts[0], `<rule name="no-first-person">`)
	assert.Contains(t, fc.prompts[0], "1: a\n2: b")
	assert.NotEmpty(t, fc.opts[0].System)
}

func TestRuleCheckerAcceptsBareList(t *testing.T) {
	fc := &fakeCompleter{response: `[{"line_number": 1, "issue_message": "m", "resolution": "edit_line"}]`}
	got, err := NewRuleChecker(fc, "").FindViolations(context.Background(), "1: a", "r", "rule")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestIsRetriableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.DeadlineExceeded, true},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("529 overloaded_error"), true},
		{errors.New("502 Bad Gateway"), true},
		{errors.New("connection reset by peer"), true},
		{errors.New("401 Unauthorized"), false},
		{errors.New("400 invalid_request_error"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isRetriableError(tt.err), "%v", tt.err)
	}
}

func TestCircuitBreakerTransitions(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker(2, 2, 10*time.Second)
	cb.now = func() time.Time { return now }

	require.NoError(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.GetState())
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.GetState())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	now = now.Add(11 * time.Second)
	require.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.GetState())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.GetState(), "failure while probing reopens")

	now = now.Add(11 * time.Second)
	require.NoError(t, cb.Allow())
	cb.RecordSuccess()
	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.GetState())
	_, failures, _ := cb.GetMetrics()
	assert.Zero(t, failures)
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testClient(retries int) *Client {
	c := &Client{
		model: ModelHaiku,
		retry: RetryConfig{
			MaxRetries:            retries,
			InitialBackoff:        time.Millisecond,
			MaxBackoff:            2 * time.Millisecond,
			BackoffMultiplier:     2,
			Timeout:               time.Second,
			CircuitBreakerEnabled: true,
			FailureThreshold:      3,
			SuccessThreshold:      1,
			OpenTimeout:           time.Minute,
			MaxConcurrentCalls:    1,
		},
	}
	c.logger = discardLogger()
	c.configureLimits(0)
	return c
}

func TestRetryWithBackoff(t *testing.T) {
	c := testClient(3)
	calls := 0
	err := c.retryWithBackoff(context.Background(), "test", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("503 service unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoffStopsOnPermanentError(t *testing.T) {
	c := testClient(3)
	calls := 0
	err := c.retryWithBackoff(context.Background(), "test", func(context.Context) error {
		calls++
		return errors.New("401 invalid x-api-key")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, CircuitClosed, c.circuitBreaker.GetState())
}

func TestRetryWithBackoffOpensCircuit(t *testing.T) {
	c := testClient(5)
	calls := 0
	err := c.retryWithBackoff(context.Background(), "test", func(context.Context) error {
		calls++
		return errors.New("500 internal server error")
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, c.HealthCheck(context.Background()), ErrCircuitOpen)
}

func TestHealthCheckRecoversAfterOpenTimeout(t *testing.T) {
	c := testClient(0)
	now := time.Unix(1000, 0)
	c.circuitBreaker.now = func() time.Time { return now }
	for i := 0; i < 3; i++ {
		c.circuitBreaker.RecordFailure()
	}
	require.Equal(t, CircuitOpen, c.circuitBreaker.GetState())
	assert.ErrorIs(t, c.HealthCheck(context.Background()), ErrCircuitOpen)

	now = now.Add(2 * time.Minute)
	assert.NoError(t, c.HealthCheck(context.Background()))
	assert.Equal(t, CircuitOpen, c.circuitBreaker.GetState(), "a health check never moves the breaker")
	require.NoError(t, c.circuitBreaker.Allow())
	assert.Equal(t, CircuitHalfOpen, c.circuitBreaker.GetState())
}

func TestRateLimiterIsConfigured(t *testing.T) {
	c := testClient(0)
	c.configureLimits(120)
	require.NotNil(t, c.limiter)
	assert.InDelta(t, 2.0, float64(c.limiter.Limit()), 1e-9)
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	_, err := NewClient(&Config{})
	assert.Error(t, err)

	c, err := NewClient(&Config{APIKey: "sk-test", Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "m", c.Model())
}

func TestGetDefaultModel(t *testing.T) {
	t.Setenv("HYPERLINT_MODEL", "")
	assert.Equal(t, ModelSonnet, GetDefaultModel())
	t.Setenv("HYPERLINT_MODEL", "custom")
	assert.Equal(t, "custom", GetDefaultModel())
	assert.True(t, strings.HasPrefix(ModelHaiku, "claude"))
}
