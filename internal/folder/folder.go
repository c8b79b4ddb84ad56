// Package folder runs the editor over every matching document under a
// directory tree through a bounded worker pool.
package folder

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/hyperlint/internal/edit"
)

// DefaultMaxParallel bounds the file pool when unset
const DefaultMaxParallel = 4

// DefaultIncludePattern matches markdown and MDX files
const DefaultIncludePattern = "*.md*"

// EditorFactory builds the editor for one file
type EditorFactory func(path string) (*edit.Editor, error)

// Options configures a Processor
type Options struct {
	IncludePattern  string   // basename glob; default "*.md*"
	ExcludePatterns []string // matched against every path element and the path relative to the root
	MaxParallel     int
	DryRun          bool          // preview only, nothing is logged or written
	NewEditor       EditorFactory // Required
	Logger          *slog.Logger
}

// FileResult is the outcome for one file. Err is set when the file could
// not be processed; Result may still hold a partial outcome.
type FileResult struct {
	Path     string
	Result   *edit.Result
	Err      error
	Duration time.Duration
}

// Report collects every file's outcome in discovery order
type Report struct {
	Root  string
	Files []FileResult
}

// Failed returns the files that errored
func (r *Report) Failed() []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Err != nil {
			out = append(out, f)
		}
	}
	return out
}

// Err joins every file error, or returns nil
func (r *Report) Err() error {
	var errs []error
	for _, f := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", f.Path, f.Err))
	}
	return errors.Join(errs...)
}

// Summary is a one-line overview of the run
func (r *Report) Summary() string {
	changed, written := 0, 0
	for _, f := range r.Files {
		if f.Result == nil {
			continue
		}
		if f.Result.Changed() {
			changed++
		}
		if f.Result.Written {
			written++
		}
	}
	return fmt.Sprintf("%d files, %d changed, %d written, %d failed",
		len(r.Files), changed, written, len(r.Failed()))
}

// Processor walks a tree and runs one editor per matching file
type Processor struct {
	include     string
	exclude     []string
	maxParallel int
	dryRun      bool
	newEditor   EditorFactory
	logger      *slog.Logger

	locks sync.Map // canonical path -> *sync.Mutex
}

// NewProcessor creates a processor
func NewProcessor(opts Options) (*Processor, error) {
	if opts.NewEditor == nil {
		return nil, fmt.Errorf("editor factory is required")
	}
	p := &Processor{
		include:     opts.IncludePattern,
		exclude:     opts.ExcludePatterns,
		maxParallel: opts.MaxParallel,
		dryRun:      opts.DryRun,
		newEditor:   opts.NewEditor,
		logger:      opts.Logger,
	}
	if p.include == "" {
		p.include = DefaultIncludePattern
	}
	if _, err := filepath.Match(p.include, ""); err != nil {
		return nil, fmt.Errorf("include pattern %q: %w", p.include, err)
	}
	for _, pat := range p.exclude {
		if _, err := filepath.Match(pat, ""); err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", pat, err)
		}
	}
	if p.maxParallel <= 0 {
		p.maxParallel = DefaultMaxParallel
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// Discover lists the files under root that Run would process, in lexical
// order. A root that is a file is returned as is, without filtering.
func (p *Processor) Discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", root, err)
	}
	if !info.IsDir() {
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if p.excluded(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if ok, _ := filepath.Match(p.include, d.Name()); ok {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	return files, nil
}

func (p *Processor) excluded(rel string) bool {
	rel = filepath.ToSlash(rel)
	elems := strings.Split(rel, "/")
	for _, pat := range p.exclude {
		pat = filepath.ToSlash(pat)
		if ok, _ := filepath.Match(pat, rel); ok {
			return true
		}
		for _, e := range elems {
			if ok, _ := filepath.Match(pat, e); ok {
				return true
			}
		}
	}
	return false
}

// Run processes every discovered file. Per-file failures are recorded in the
// report and do not stop the other files; an error is returned only when
// discovery fails or ctx is canceled.
func (p *Processor) Run(ctx context.Context, root string) (*Report, error) {
	files, err := p.Discover(root)
	if err != nil {
		return nil, err
	}
	p.logger.Info("processing files", "root", root, "files", len(files), "dry_run", p.dryRun, "workers", p.maxParallel)

	results := make([]FileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxParallel)
	for i, path := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = p.processFile(gctx, path)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	report := &Report{Root: root, Files: results}
	for i := range report.Files {
		if report.Files[i].Path == "" {
			report.Files[i] = FileResult{Path: files[i], Err: ctx.Err()}
		}
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	p.logger.Info("folder run finished", "root", root, "summary", report.Summary())
	return report, nil
}

func (p *Processor) processFile(ctx context.Context, path string) (fr FileResult) {
	start := time.Now()
	fr.Path = path
	defer func() {
		if rec := recover(); rec != nil {
			fr.Err = fmt.Errorf("panic: %v", rec)
		}
		fr.Duration = time.Since(start)
		if fr.Err != nil {
			p.logger.Warn("file failed", "file", path, "error", fr.Err)
		}
	}()

	unlock := p.lock(path)
	defer unlock()

	ed, err := p.newEditor(path)
	if err != nil {
		fr.Err = err
		return fr
	}
	if err := ed.PrerunChecks(ctx); err != nil {
		fr.Err = err
		return fr
	}
	if p.dryRun {
		fr.Result, fr.Err = ed.Preview(ctx)
	} else {
		fr.Result, fr.Err = ed.UpdateFile(ctx)
	}
	if fr.Result != nil {
		p.logger.Info("file processed", "file", path, "summary", fr.Result.Summary())
	}
	return fr
}

// lock serializes work on one file, including when it is reached twice
// through different paths
func (p *Processor) lock(path string) func() {
	key := path
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			key = real
		}
	}
	v, _ := p.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
