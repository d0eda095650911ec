// Package dispatcher drives one source file through scan, per-fragment
// compilation and merge, and runs many files on a worker pool.
package dispatcher

import (
	"context"
	stderrors "errors"
	"runtime"
	"sync"
	"time"

	"github.com/conneroisu/chtl/internal/cache"
	"github.com/conneroisu/chtl/internal/errors"
	"github.com/conneroisu/chtl/internal/fragment"
	"github.com/conneroisu/chtl/internal/logging"
	"github.com/conneroisu/chtl/internal/merger"
	"github.com/conneroisu/chtl/internal/placeholder"
	"github.com/conneroisu/chtl/internal/scanner"
)

// State is the per-file data the stages read and write.
type State struct {
	File      string
	Source    string
	Fragments []fragment.CodeFragment
	Ambiguous []*errors.CompileError
	Units     []merger.Unit
	Output    *merger.MergedOutput
	Durations map[string]time.Duration
	CacheHits int

	placeholders *placeholder.Manager
	completed    map[string]bool
}

// Result is the output of a successful run.
type Result struct {
	File      string                   `json:"file" yaml:"file"`
	Output    *merger.MergedOutput     `json:"output" yaml:"output"`
	Fragments []fragment.CodeFragment  `json:"-" yaml:"-"`
	Warnings  []*errors.CompileError   `json:"-" yaml:"-"`
	Stages    map[string]time.Duration `json:"stages" yaml:"stages"`
	Duration  time.Duration            `json:"duration" yaml:"duration"`
	CacheHits int                      `json:"cache_hits" yaml:"cache_hits"`
}

// Options configure a Dispatcher.
type Options struct {
	// Parallel compiles the fragments of one file concurrently.
	Parallel bool
	// Workers bounds fragment concurrency in parallel mode.
	Workers int
	Merger  merger.Options
	// Cache stores compiled fragment output across files. Nil disables it.
	Cache  *cache.Cache
	Logger logging.Logger
}

// DefaultOptions returns sequential compilation with the default merger
// options and no cache.
func DefaultOptions() Options {
	return Options{
		Workers: runtime.NumCPU(),
		Merger:  merger.DefaultOptions(),
	}
}

// Dispatcher compiles single files. It keeps no per-file state and is safe
// for concurrent use.
type Dispatcher struct {
	registry *Registry
	scanner  *scanner.Scanner
	merger   *merger.Merger
	pipeline *Pipeline
	opts     Options
	logger   logging.Logger
	metrics  *Metrics
	managers sync.Pool
}

// New creates a Dispatcher that routes fragments through reg and runs the
// default scan, compile and merge stages.
func New(reg *Registry, opts Options) *Dispatcher {
	if reg == nil {
		reg = NewRegistry()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	logger := logging.OrNop(opts.Logger).WithComponent("dispatcher")

	d := &Dispatcher{
		registry: reg,
		scanner:  scanner.New(scanner.WithLogger(opts.Logger)),
		merger:   merger.New(opts.Merger),
		opts:     opts,
		logger:   logger,
		metrics:  NewMetrics(),
		managers: sync.Pool{
			New: func() interface{} { return placeholder.NewManager() },
		},
	}

	// The default stages are statically valid.
	d.pipeline, _ = NewPipeline(opts.Logger,
		Stage{Name: StageScan, Run: d.scan},
		Stage{Name: StageCompile, DependsOn: []string{StageScan}, Run: d.compile},
		Stage{Name: StageMerge, DependsOn: []string{StageCompile}, Run: d.merge},
	)
	return d
}

// WithPipeline replaces the stage list. Custom stages can reuse the default
// ones through ScanStage, CompileStage and MergeStage.
func (d *Dispatcher) WithPipeline(p *Pipeline) *Dispatcher {
	d.pipeline = p
	return d
}

// ScanStage returns the default scan stage.
func (d *Dispatcher) ScanStage() Stage { return Stage{Name: StageScan, Run: d.scan} }

// CompileStage returns the default compile stage.
func (d *Dispatcher) CompileStage() Stage {
	return Stage{Name: StageCompile, DependsOn: []string{StageScan}, Run: d.compile}
}

// MergeStage returns the default merge stage.
func (d *Dispatcher) MergeStage() Stage {
	return Stage{Name: StageMerge, DependsOn: []string{StageCompile}, Run: d.merge}
}

// Metrics returns the dispatcher's run counters.
func (d *Dispatcher) Metrics() *Metrics {
	return d.metrics
}

// Compile runs the pipeline over one source. On failure it returns an
// *Error and no result.
func (d *Dispatcher) Compile(ctx context.Context, name, source string) (*Result, error) {
	start := time.Now()

	manager := d.managers.Get().(*placeholder.Manager)
	manager.Clear()
	defer d.managers.Put(manager)

	st := &State{File: name, Source: source, placeholders: manager}
	err := d.pipeline.Run(ctx, st)
	duration := time.Since(start)
	d.metrics.Record(st, duration, err)

	if err != nil {
		d.logger.Error(ctx, err, "compile failed", "file", name)
		return nil, err
	}
	if st.Output == nil {
		return nil, stageError(name, StageMerge, errors.NewInternalError(errors.ErrCodeInternalError, "pipeline produced no output", nil))
	}

	d.logger.Info(ctx, "compiled",
		"file", name,
		"fragments", len(st.Fragments),
		"cache_hits", st.CacheHits,
		"duration", duration,
	)

	return &Result{
		File:      name,
		Output:    st.Output,
		Fragments: st.Fragments,
		Warnings:  st.Ambiguous,
		Stages:    st.Durations,
		Duration:  duration,
		CacheHits: st.CacheHits,
	}, nil
}

func (d *Dispatcher) scan(ctx context.Context, st *State) error {
	report, err := d.scanner.Analyze(ctx, st.Source)
	if err != nil {
		return withFile(err, st.File)
	}
	if err := scanner.CheckTiling(st.Source, report.Fragments); err != nil {
		return err
	}
	st.Fragments = report.Fragments
	st.Ambiguous = report.Ambiguous
	for _, amb := range st.Ambiguous {
		amb.WithFile(st.File)
		d.logger.Debug(ctx, "fragment fell back to unclassified", "file", st.File, "line", amb.Line, "column", amb.Column)
	}
	return nil
}

func (d *Dispatcher) compile(ctx context.Context, st *State) error {
	st.Units = make([]merger.Unit, len(st.Fragments))
	if d.opts.Parallel && len(st.Fragments) > 1 {
		return d.compileParallel(ctx, st)
	}

	st.placeholders.Clear()
	cc := &CompileContext{File: st.File, Placeholders: st.placeholders, Logger: d.logger}
	for i, frag := range st.Fragments {
		if err := ctx.Err(); err != nil {
			return err
		}
		outs, hit, err := d.compileFragment(ctx, cc, frag)
		if err != nil {
			return err
		}
		if hit {
			st.CacheHits++
		}
		st.Units[i] = merger.Unit{Fragment: frag, Outputs: outs}
	}
	return nil
}

// compileParallel fans fragments out to workers and joins the results into
// slots indexed by fragment position, so merge input stays in document order.
func (d *Dispatcher) compileParallel(ctx context.Context, st *State) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make([]error, len(st.Fragments))
	hits := make([]bool, len(st.Fragments))
	jobs := make(chan int)

	workers := d.opts.Workers
	if workers > len(st.Fragments) {
		workers = len(st.Fragments)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				frag := st.Fragments[i]
				cc := &CompileContext{File: st.File, Placeholders: placeholder.NewManager(), Logger: d.logger}
				outs, hit, err := d.compileFragment(ctx, cc, frag)
				if err != nil {
					errs[i] = err
					cancel()
					continue
				}
				hits[i] = hit
				st.Units[i] = merger.Unit{Fragment: frag, Outputs: outs}
			}
		}()
	}

feed:
	for i := range st.Fragments {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	// Report the earliest fragment failure that is not a side effect of
	// cancelling the other workers.
	var canceled error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if !stderrors.Is(err, context.Canceled) {
			return err
		}
		if canceled == nil {
			canceled = err
		}
	}
	if canceled != nil {
		return canceled
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, hit := range hits {
		if hit {
			st.CacheHits++
		}
	}
	return nil
}

func (d *Dispatcher) compileFragment(ctx context.Context, cc *CompileContext, frag fragment.CodeFragment) ([]merger.Output, bool, error) {
	var key string
	if d.opts.Cache != nil {
		key = cache.Key(frag.Category, frag.Content)
		if outs, ok := d.opts.Cache.GetOutputs(key); ok {
			return outs, true, nil
		}
	}

	compiler, _ := d.registry.Lookup(frag.Category)
	outs, err := compiler.Compile(ctx, cc, frag)
	if err != nil {
		ce := errors.NewSubCompilerFailure(frag.Category.String(), frag.Line, frag.Column, err).
			WithFile(cc.File).
			WithStage(StageCompile)
		ce.Offset = frag.Start
		if line, col, ok := errors.Location(err); ok {
			ce.Line, ce.Column = line, col
		}
		for _, link := range errors.GetErrorChain(err) {
			if inner, ok := link.(*errors.CompileError); ok && inner.Suggestion != "" {
				ce.Suggestion = inner.Suggestion
				break
			}
		}
		return nil, false, ce
	}

	if d.opts.Cache != nil {
		if err := d.opts.Cache.SetOutputs(key, outs); err != nil {
			d.logger.Warn(ctx, err, "cache store failed", "file", cc.File)
		}
	}
	return outs, false, nil
}

func (d *Dispatcher) merge(_ context.Context, st *State) error {
	out, err := d.merger.Merge(st.Units)
	if err != nil {
		return errors.WrapInternal(err, errors.ErrCodeInternalError, "merge failed").WithFile(st.File)
	}
	st.Output = out
	return nil
}

func withFile(err error, file string) error {
	if ce, ok := err.(*errors.CompileError); ok {
		return ce.WithFile(file)
	}
	return err
}
