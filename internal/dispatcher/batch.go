package dispatcher

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/conneroisu/chtl/internal/errors"
	"github.com/conneroisu/chtl/internal/logging"
)

// FileResult is the outcome for one file of a batch. Exactly one of Result
// and Err is set.
type FileResult struct {
	Path     string
	Result   *Result
	Err      error
	Duration time.Duration
}

// Batch compiles many files on a fixed pool of workers. A failing file is
// reported in its FileResult and never stops the others.
type Batch struct {
	Dispatcher *Dispatcher
	Workers    int
	// Collector receives a diagnostic for every failure and warning when set.
	Collector *errors.ErrorCollector
	Logger    logging.Logger
	// ReadFile loads a source. Defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)
}

// NewBatch creates a batch runner over d.
func NewBatch(d *Dispatcher, workers int) *Batch {
	return &Batch{Dispatcher: d, Workers: workers}
}

type batchTask struct {
	index int
	path  string
}

// Run compiles every path and returns the results in input order. The
// context is checked before each file; files not started when it is
// cancelled carry the context error.
func (b *Batch) Run(ctx context.Context, paths []string) []FileResult {
	logger := logging.OrNop(b.Logger).WithComponent("batch")
	results := make([]FileResult, len(paths))
	if len(paths) == 0 {
		return results
	}

	workers := b.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(paths) {
		workers = len(paths)
	}

	tasks := make(chan batchTask, len(paths))
	for i, p := range paths {
		tasks <- batchTask{index: i, path: p}
	}
	close(tasks)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				results[task.index] = b.runFile(ctx, task.path)
			}
		}()
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logger.Info(ctx, "batch complete", "files", len(paths), "failed", failed, "workers", workers)
	return results
}

func (b *Batch) runFile(ctx context.Context, path string) FileResult {
	start := time.Now()
	fr := FileResult{Path: path}

	if err := ctx.Err(); err != nil {
		fr.Err = err
		return fr
	}

	read := b.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	src, err := read(path)
	if err != nil {
		fr.Err = errors.FileOperationError("read", path, err)
		b.collect(path, fr.Err)
		fr.Duration = time.Since(start)
		return fr
	}

	res, err := b.Dispatcher.Compile(ctx, path, string(src))
	fr.Duration = time.Since(start)
	if err != nil {
		fr.Err = err
		b.collect(path, err)
		return fr
	}
	fr.Result = res
	for _, w := range res.Warnings {
		b.collect(path, w)
	}
	return fr
}

func (b *Batch) collect(path string, err error) {
	if b.Collector != nil {
		b.Collector.AddError(path, err)
	}
}

// Failed returns the results that carry an error.
func Failed(results []FileResult) []FileResult {
	var failed []FileResult
	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r)
		}
	}
	return failed
}
