package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/steveyegge/hyperlint/internal/ai"
	"github.com/steveyegge/hyperlint/internal/analyzers"
	"github.com/steveyegge/hyperlint/internal/approval"
	"github.com/steveyegge/hyperlint/internal/cache"
	"github.com/steveyegge/hyperlint/internal/config"
	"github.com/steveyegge/hyperlint/internal/edit"
	"github.com/steveyegge/hyperlint/internal/folder"
)

// cacheEntries bounds the in-memory layer of the fix cache
const cacheEntries = 2048

// app holds the resources one command run shares across files
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	out    io.Writer

	// completer is set by tests; otherwise an Anthropic client is created
	completer ai.Completer

	promptOnce sync.Once
	prompter   approval.Prompter
	promptErr  error

	closers []io.Closer
}

func newApp(cfg *config.Config) *app {
	return &app{cfg: cfg, logger: slog.Default(), out: os.Stdout}
}

// loadConfig resolves the --config flag, the searched files and the
// environment into one configuration
func loadConfig() (*config.Config, error) {
	cfg, used, err := config.Resolve(configPath)
	if err != nil {
		return nil, err
	}
	if used != "" {
		slog.Debug("loaded configuration", "path", used)
	}
	return cfg, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("failed to close resource", "error", err)
		}
	}
	a.closers = nil
}

// prompt returns the one prompter shared by approval and confirmation
// questions, so only one reader ever owns stdin
func (a *app) prompt() (approval.Prompter, error) {
	a.promptOnce.Do(func() {
		a.prompter, a.promptErr = approval.DefaultPrompter()
		if a.promptErr == nil {
			a.closers = append(a.closers, a.prompter)
		}
	})
	return a.prompter, a.promptErr
}

func (a *app) aiCompleter() (ai.Completer, error) {
	if a.completer != nil {
		return a.completer, nil
	}
	retry := ai.DefaultRetryConfig()
	if a.cfg.AI.MaxConcurrentCalls > 0 {
		retry.MaxConcurrentCalls = a.cfg.AI.MaxConcurrentCalls
	}
	client, err := ai.NewClient(&ai.Config{
		Model:             a.cfg.AI.Model,
		Retry:             retry,
		RequestsPerMinute: a.cfg.AI.RequestsPerMinute,
		Logger:            a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating AI client: %w", err)
	}
	a.completer = client
	return client, nil
}

// resolver is the AI line fixer, behind the fix cache when it is enabled
func (a *app) resolver(completer ai.Completer) (edit.Resolver, error) {
	fixer := ai.NewLineFixer(completer, a.cfg.AI.Model)
	if a.cfg.AI.Temperature > 0 {
		fixer.Temperature = a.cfg.AI.Temperature
	}
	fixer.MaxTokens = a.cfg.AI.MaxTokens
	if !a.cfg.AI.CacheEnabled {
		return fixer, nil
	}

	store, err := cache.Open(a.cfg.CacheDir(), cacheEntries)
	if err != nil {
		return nil, fmt.Errorf("opening fix cache: %w", err)
	}
	return edit.Cached(fixer, store, fixer.Namespace(), a.logger), nil
}

// gate builds the approval gate and opens the decision log. Dry runs never
// decide anything, so they get neither a prompt nor a log.
func (a *app) gate() (*approval.Gate, error) {
	mode := a.cfg.EffectiveApprovalMode()
	opts := approval.PolicyOptions{Out: a.out, ReviewCommand: a.cfg.Review.Command, Logger: a.logger}
	if !a.cfg.DryRun && (mode == approval.ModeInteractive || mode == approval.ModeReview) {
		p, err := a.prompt()
		if err != nil {
			return nil, fmt.Errorf("opening prompt: %w", err)
		}
		opts.Prompter = p
	}
	policy, err := approval.NewPolicy(mode, opts)
	if err != nil {
		return nil, err
	}

	var log approval.Log = approval.NopLog{}
	logDecisions := a.cfg.LogApprovals && !a.cfg.DryRun
	if logDecisions {
		if err := a.cfg.EnsureStorageDir(); err != nil {
			return nil, err
		}
		log, err = approval.OpenLog(approval.LogConfig{Backend: a.cfg.LogBackend, Dir: a.cfg.JudgeDir()})
		if err != nil {
			return nil, fmt.Errorf("opening decision log: %w", err)
		}
		a.closers = append(a.closers, log)
	}
	return approval.NewGate(&approval.GateConfig{
		Policy:       policy,
		Log:          log,
		LogDecisions: logDecisions,
		Logger:       a.logger,
	})
}

// analyzers registers every analyzer and returns the requested ones in order
func (a *app) analyzers(completer ai.Completer, names []string) ([]edit.Analyzer, error) {
	checker := ai.NewRuleChecker(completer, a.cfg.AI.Model)
	checker.MaxTokens = a.cfg.AI.MaxTokens

	reg := analyzers.NewRegistry()
	if err := reg.Register(analyzers.NewVale(analyzers.ValeConfig{
		ConfigPath: a.cfg.Vale.ConfigPath,
		MinVersion: a.cfg.Vale.MinVersion,
		Logger:     a.logger,
	})); err != nil {
		return nil, err
	}
	if err := reg.Register(analyzers.NewRules(analyzers.RulesConfig{
		Dir:     a.cfg.CustomRules.RulesDirectory,
		Include: a.cfg.CustomRules.IncludeRules,
		Exclude: a.cfg.CustomRules.ExcludeRules,
		Finder:  checker,
		Logger:  a.logger,
	})); err != nil {
		return nil, err
	}
	return reg.Resolve(names)
}

// confirm shows every changed line and asks before the file is written.
// Only interactive runs ask.
func (a *app) confirm() edit.ConfirmFunc {
	if a.cfg.DryRun || a.cfg.EffectiveApprovalMode() != approval.ModeInteractive {
		return nil
	}
	return func(_ context.Context, res *edit.Result) (bool, error) {
		fmt.Fprintf(a.out, "\n%s\n", res.Path)
		approval.RenderLineDiff(a.out, res.Original, res.Text)
		p, err := a.prompt()
		if err != nil {
			return false, err
		}
		return approval.Confirm(p, "Update the file?")
	}
}

// processor wires the engine and the analyzers named by names into a
// folder processor
func (a *app) processor(names []string) (*folder.Processor, error) {
	completer, err := a.aiCompleter()
	if err != nil {
		return nil, err
	}
	resolver, err := a.resolver(completer)
	if err != nil {
		return nil, err
	}
	gate, err := a.gate()
	if err != nil {
		return nil, err
	}
	engine, err := edit.NewEngine(edit.Options{
		Resolver:             resolver,
		Gate:                 gate,
		ContextLines:         a.cfg.ContextLines,
		MaxParallelAnalyzers: a.cfg.MaxParallelAnalyzers,
		Logger:               a.logger,
	})
	if err != nil {
		return nil, err
	}
	selected, err := a.analyzers(completer, names)
	if err != nil {
		return nil, err
	}

	confirm := a.confirm()
	parallel := a.cfg.MaxParallelFiles
	if confirm != nil || a.cfg.EffectiveApprovalMode() == approval.ModeReview {
		// One file at a time keeps each file's questions together
		parallel = 1
	}
	return folder.NewProcessor(folder.Options{
		IncludePattern:  a.cfg.IncludePattern,
		ExcludePatterns: a.cfg.ExcludePatterns,
		MaxParallel:     parallel,
		DryRun:          a.cfg.DryRun,
		Logger:          a.logger,
		NewEditor: func(path string) (*edit.Editor, error) {
			return edit.NewEditor(&edit.EditorConfig{
				Path:      path,
				Engine:    engine,
				Analyzers: selected,
				Confirm:   confirm,
				Logger:    a.logger,
			})
		},
	})
}
