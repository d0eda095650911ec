package dispatcher

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/chtl/internal/cache"
	"github.com/conneroisu/chtl/internal/errors"
	"github.com/conneroisu/chtl/internal/fragment"
	"github.com/conneroisu/chtl/internal/logging"
	"github.com/conneroisu/chtl/internal/merger"
	"github.com/conneroisu/chtl/internal/placeholder"
)

func styleCompiler() Compiler {
	return CompilerFunc(func(_ context.Context, _ *CompileContext, frag fragment.CodeFragment) ([]merger.Output, error) {
		return []merger.Output{{Type: merger.CSS, Content: frag.Body()}}, nil
	})
}

func testRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(fragment.EmbeddedStyle, styleCompiler())
	return reg
}

func TestCompileSimpleDocument(t *testing.T) {
	d := New(testRegistry(), DefaultOptions())

	res, err := d.Compile(context.Background(), "page.chtl", "<div>\n<style>a{}</style>\n</div>")
	require.NoError(t, err)

	assert.Equal(t, "<div>\n\n</div>", res.Output.HTML)
	assert.Equal(t, "a{}", res.Output.CSS)
	assert.Empty(t, res.Output.JS)
	assert.Len(t, res.Fragments, 5)
	for _, stage := range []string{StageScan, StageCompile, StageMerge} {
		assert.Contains(t, res.Stages, stage)
	}
}

func TestCompileUnterminatedAbortsAtScan(t *testing.T) {
	d := New(testRegistry(), DefaultOptions())

	res, err := d.Compile(context.Background(), "bad.chtl", "<p>\n<style>a{}")
	assert.Nil(t, res, "a failed file produces no output")
	require.Error(t, err)

	var de *Error
	require.True(t, stderrors.As(err, &de))
	assert.Equal(t, StageScan, de.Stage)
	assert.Equal(t, "bad.chtl", de.File)
	assert.NotEmpty(t, de.Suggestion)
	assert.True(t, errors.IsKind(err, errors.KindUnterminatedBoundary))

	line, col, ok := errors.Location(err)
	require.True(t, ok)
	assert.Equal(t, 2, line)
	assert.Equal(t, 1, col)
}

func TestCompileSubCompilerFailure(t *testing.T) {
	reg := testRegistry()
	reg.Register(fragment.Markup, CompilerFunc(func(_ context.Context, _ *CompileContext, frag fragment.CodeFragment) ([]merger.Output, error) {
		if strings.Contains(frag.Content, "bad") {
			return nil, fmt.Errorf("refusing %s", frag.Content)
		}
		return []merger.Output{{Type: merger.HTML, Content: frag.Content}}, nil
	}))

	for _, parallel := range []bool{false, true} {
		t.Run(fmt.Sprintf("parallel=%v", parallel), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Parallel = parallel
			opts.Workers = 3
			d := New(reg, opts)

			_, err := d.Compile(context.Background(), "f.chtl", "<p>\n<bad>\n<i>\n<bad2>")
			require.Error(t, err)

			var de *Error
			require.True(t, stderrors.As(err, &de))
			assert.Equal(t, StageCompile, de.Stage)
			assert.True(t, errors.IsKind(err, errors.KindSubCompilerFailure))

			line, col, ok := errors.Location(err)
			require.True(t, ok)
			assert.Equal(t, 2, line, "the earliest failing fragment is reported")
			assert.Equal(t, 1, col)
		})
	}
}

func TestStageDependencyUnmet(t *testing.T) {
	d := New(testRegistry(), DefaultOptions())
	p, err := NewPipeline(nil, d.CompileStage(), d.MergeStage())
	require.NoError(t, err)
	d.WithPipeline(p)

	_, err = d.Compile(context.Background(), "x.chtl", "<p>")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindStageDependencyUnmet))

	var de *Error
	require.True(t, stderrors.As(err, &de))
	assert.Equal(t, StageCompile, de.Stage)
}

func TestPipelineRejectsDuplicateStage(t *testing.T) {
	noop := func(context.Context, *State) error { return nil }
	_, err := NewPipeline(nil, Stage{Name: "a", Run: noop}, Stage{Name: "a", Run: noop})
	require.Error(t, err)
	assert.True(t, errors.HasErrorCode(err, errors.ErrCodeDuplicateStage))

	_, err = NewPipeline(nil, Stage{Name: "b"})
	assert.Error(t, err)
}

func TestPipelineCustomStage(t *testing.T) {
	d := New(testRegistry(), DefaultOptions())
	var sawFragments int
	count := Stage{
		Name:      "count",
		DependsOn: []string{StageScan},
		Run: func(_ context.Context, st *State) error {
			sawFragments = len(st.Fragments)
			return nil
		},
	}
	p, err := NewPipeline(nil, d.ScanStage(), count, d.CompileStage(), d.MergeStage())
	require.NoError(t, err)
	assert.Equal(t, []string{"scan", "count", "compile", "merge"}, p.Stages())

	res, err := d.WithPipeline(p).Compile(context.Background(), "x.chtl", "<p>\n</p>")
	require.NoError(t, err)
	assert.Equal(t, 3, sawFragments)
	assert.Contains(t, res.Stages, "count")
}

func TestParallelMatchesSequential(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		fmt.Fprintf(&b, "<div id=\"d%d\">\n<style>.c%d{}</style>\n// note %d\n</div>\n", i, i, i)
	}
	src := b.String()

	seq, err := New(testRegistry(), DefaultOptions()).Compile(context.Background(), "s.chtl", src)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Parallel = true
	opts.Workers = 8
	par, err := New(testRegistry(), opts).Compile(context.Background(), "s.chtl", src)
	require.NoError(t, err)

	assert.Equal(t, seq.Output.HTML, par.Output.HTML)
	assert.Equal(t, seq.Output.CSS, par.Output.CSS)
	assert.Equal(t, seq.Output.Stats, par.Output.Stats)
}

func TestPlaceholderManagerScope(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[*placeholder.Manager]bool)
	reg := NewRegistry()
	reg.SetFallback(CompilerFunc(func(_ context.Context, cc *CompileContext, frag fragment.CodeFragment) ([]merger.Output, error) {
		mu.Lock()
		seen[cc.Placeholders] = true
		mu.Unlock()
		tok := cc.Placeholders.Create(frag.Content)
		return []merger.Output{{Type: merger.HTML, Content: cc.Placeholders.Replace(tok)}}, nil
	}))
	src := "<a>\n<b>\n<c>\n<d>"

	res, err := New(reg, DefaultOptions()).Compile(context.Background(), "f", src)
	require.NoError(t, err)
	assert.Equal(t, src, res.Output.HTML)
	assert.Len(t, seen, 1, "sequential mode shares one manager per file")

	seen = make(map[*placeholder.Manager]bool)
	opts := DefaultOptions()
	opts.Parallel = true
	opts.Workers = 4
	res, err = New(reg, opts).Compile(context.Background(), "f", src)
	require.NoError(t, err)
	assert.Equal(t, src, res.Output.HTML)
	assert.Len(t, seen, 7, "parallel mode uses a fresh manager per fragment")
}

func TestCompileUsesCache(t *testing.T) {
	calls := 0
	reg := NewRegistry()
	reg.Register(fragment.EmbeddedStyle, CompilerFunc(func(_ context.Context, _ *CompileContext, frag fragment.CodeFragment) ([]merger.Output, error) {
		calls++
		return []merger.Output{{Type: merger.CSS, Content: frag.Body()}}, nil
	}))

	opts := DefaultOptions()
	opts.Cache = cache.New(1<<20, time.Hour)
	d := New(reg, opts)

	src := "<style>a{}</style>"
	first, err := d.Compile(context.Background(), "a.chtl", src)
	require.NoError(t, err)
	second, err := d.Compile(context.Background(), "b.chtl", src)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, first.CacheHits)
	assert.Equal(t, 1, second.CacheHits)
	assert.Equal(t, first.Output.CSS, second.Output.CSS)
	assert.Equal(t, 1, d.Metrics().Snapshot().CacheHits)
}

func TestCompileCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testRegistry(), DefaultOptions()).Compile(ctx, "f", "<p>")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompileWarnings(t *testing.T) {
	res, err := New(testRegistry(), DefaultOptions()).Compile(context.Background(), "f", "hello <p>")
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "f", res.Warnings[0].File)
	assert.True(t, errors.IsRecoverable(res.Warnings[0]))
}

func TestRecoveredAmbiguityIsQuietAtInfo(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Logger = logging.NewLogger(&logging.LoggerConfig{Level: logging.LevelInfo, Format: "text", Output: &buf})

	res, err := New(testRegistry(), opts).Compile(context.Background(), "f", "hello <p>")
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.NotContains(t, buf.String(), "fell back to unclassified")
}

func TestMetrics(t *testing.T) {
	d := New(testRegistry(), DefaultOptions())
	_, err := d.Compile(context.Background(), "ok", "<p>")
	require.NoError(t, err)
	_, err = d.Compile(context.Background(), "bad", "<p")
	require.Error(t, err)

	snap := d.Metrics().Snapshot()
	assert.Equal(t, 2, snap.FilesProcessed)
	assert.Equal(t, 1, snap.FilesFailed)
	assert.Contains(t, snap.StageDurations, StageScan)

	d.Metrics().Reset()
	assert.Equal(t, 0, d.Metrics().Snapshot().FilesProcessed)
}

func TestBatchIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.chtl": "<p></p>",
		"b.chtl": "<style>a{}",
		"c.chtl": "<style>c{}</style>",
	}
	var paths []string
	for _, name := range []string{"a.chtl", "b.chtl", "c.chtl", "missing.chtl"} {
		p := filepath.Join(dir, name)
		if content, ok := files[name]; ok {
			require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
		}
		paths = append(paths, p)
	}

	collector := errors.NewErrorCollector()
	b := NewBatch(New(testRegistry(), DefaultOptions()), 3)
	b.Collector = collector
	results := b.Run(context.Background(), paths)

	require.Len(t, results, 4)
	for i, r := range results {
		assert.Equal(t, paths[i], r.Path)
	}
	require.NoError(t, results[0].Err)
	assert.Equal(t, "<p></p>", results[0].Result.Output.HTML)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Result)
	require.NoError(t, results[2].Err)
	assert.Equal(t, "c{}", results[2].Result.Output.CSS)
	assert.True(t, errors.IsKind(results[3].Err, errors.KindIO))

	assert.Len(t, Failed(results), 2)
	assert.Equal(t, 2, collector.Len())
	diags := collector.ByFile(paths[1])
	require.Len(t, diags, 1)
	assert.Equal(t, StageScan, diags[0].Stage)
}

func TestBatchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBatch(New(testRegistry(), DefaultOptions()), 2)
	b.ReadFile = func(string) ([]byte, error) { return []byte("<p>"), nil }
	results := b.Run(ctx, []string{"a", "b", "c"})

	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	out := &merger.MergedOutput{HTML: "<p></p>", JS: "x()"}

	written, err := WriteArtifacts(dir, "src/page.chtl", out)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "page.html"), filepath.Join(dir, "page.js")}, written)

	data, err := os.ReadFile(filepath.Join(dir, "page.js"))
	require.NoError(t, err)
	assert.Equal(t, "x()", string(data))

	out.SourceMap = []merger.SourceMapEntry{{Artifact: merger.ArtifactHTML, Length: 7}}
	written, err = WriteArtifacts(dir, "page.chtl", out)
	require.NoError(t, err)
	assert.Contains(t, written, filepath.Join(dir, "page.map.json"))
}
