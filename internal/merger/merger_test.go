package merger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/chtl/internal/fragment"
)

func unit(start int, cat fragment.Category, outs ...Output) Unit {
	return Unit{
		Fragment: fragment.CodeFragment{Category: cat, Start: start, End: start + 1, Line: 1, Column: start + 1},
		Outputs:  outs,
	}
}

func TestMergeTwoStylesheets(t *testing.T) {
	out, err := Merge(Options{MergeOrder: []CodeType{CSS}}, []Unit{
		unit(0, fragment.EmbeddedStyle, Output{CSS, "a{color:red}"}),
		unit(1, fragment.EmbeddedStyle, Output{CSS, "b{color:blue}"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "a{color:red}\nb{color:blue}", out.CSS)
	assert.Empty(t, out.HTML)
	assert.Empty(t, out.JS)
}

func TestMergeHTMLDocumentOrder(t *testing.T) {
	out, err := Merge(DefaultOptions(), []Unit{
		unit(10, fragment.Markup, Output{HTML, "</div>"}),
		unit(0, fragment.Markup, Output{HTML, "<div>"}),
		unit(5, fragment.DslBlock, Output{DSL, "<span>hi</span>"}, Output{CSS, ".a{}"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "<div><span>hi</span></div>", out.HTML)
	assert.Equal(t, ".a{}", out.CSS)
}

func TestMergeJSBucketOrder(t *testing.T) {
	units := []Unit{
		unit(0, fragment.EmbeddedScript, Output{DSLScript, "inline1()"}),
		unit(1, fragment.EmbeddedScript, Output{JS, "plain1()"}),
		unit(2, fragment.EmbeddedScript, Output{DSLScript, "inline2()"}),
		unit(3, fragment.EmbeddedScript, Output{JS, "plain2()"}),
	}

	tests := []struct {
		name  string
		order []CodeType
		want  string
	}{
		{"js first", []CodeType{JS, DSLScript}, "plain1()\nplain2()\ninline1()\ninline2()"},
		{"dsl script first", []CodeType{DSLScript, JS}, "inline1()\ninline2()\nplain1()\nplain2()"},
		{"unlisted in first seen order", []CodeType{CSS}, "inline1()\ninline2()\nplain1()\nplain2()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Merge(Options{MergeOrder: tt.order, PreserveComments: true}, units)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.JS)
		})
	}
}

func TestMergeOverride(t *testing.T) {
	opts := DefaultOptions()
	opts.Overrides = map[CodeType]OverrideFunc{
		CSS: func(acc, next string) string { return acc + "/*|*/" + next },
	}

	out, err := Merge(opts, []Unit{
		unit(0, fragment.EmbeddedStyle, Output{CSS, "a{}"}),
		unit(1, fragment.EmbeddedStyle, Output{CSS, "b{}"}),
		unit(2, fragment.EmbeddedScript, Output{JS, "x()"}),
		unit(3, fragment.EmbeddedScript, Output{JS, "y()"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "/*|*/a{}/*|*/b{}", out.CSS)
	assert.Equal(t, "x()\ny()", out.JS, "types without an override keep the default join")
}

func TestMergeMinify(t *testing.T) {
	opts := Options{Minify: true, PreserveComments: true}
	out, err := Merge(opts, []Unit{
		unit(0, fragment.Markup, Output{HTML, "<div>\n\t<p>a    b</p>\n</div>"}),
		unit(1, fragment.EmbeddedStyle, Output{CSS, ".a {\n  color: red;\n  content: \"x  ;  y\";\n}"}),
		unit(2, fragment.EmbeddedScript, Output{JS, "function f() {\n  return 1; // one\n}\nf()"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "<div><p>a b</p></div>", out.HTML)
	assert.Equal(t, `.a{color:red;content:"x  ;  y";}`, out.CSS)
	assert.Equal(t, "function f(){return 1;/* one*/}\nf()", out.JS)
}

func TestMergeMinifyKeepsDescendantPseudoClass(t *testing.T) {
	out, err := Merge(Options{Minify: true}, []Unit{
		unit(0, fragment.EmbeddedStyle, Output{CSS, "div :first-child { color : red; }\na:hover b { x: y; }"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "div :first-child{color :red;}a:hover b{x:y;}", out.CSS)
}

func TestMergeStripComments(t *testing.T) {
	opts := Options{PreserveComments: false}
	out, err := Merge(opts, []Unit{
		unit(0, fragment.Markup, Output{HTML, "<p><!-- gone -->kept</p><script>var s = '<!-- stay -->';</script>"}),
		unit(1, fragment.EmbeddedStyle, Output{CSS, "/* gone */a{content:\"/* stay */\"}"}),
		unit(2, fragment.EmbeddedScript, Output{JS, "a(); // gone\nvar u = \"http://x\"; /* gone */"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "<p>kept</p><script>var s = '<!-- stay -->';</script>", out.HTML)
	assert.Equal(t, `a{content:"/* stay */"}`, out.CSS)
	assert.Equal(t, "a(); \nvar u = \"http://x\"; ", out.JS)
}

func TestMergeMinifyThenStrip(t *testing.T) {
	out, err := Merge(Options{Minify: true}, []Unit{
		unit(0, fragment.EmbeddedScript, Output{JS, "a(); // note\nb();"}),
	})
	require.NoError(t, err)

	assert.Equal(t, "a();b();", out.JS, "line comments must not swallow code once newlines are gone")
}

func TestMergeIsIdempotent(t *testing.T) {
	units := []Unit{
		unit(0, fragment.DslBlock, Output{DSL, "<div></div>"}, Output{DSLScript, "go()"}),
		unit(1, fragment.EmbeddedStyle, Output{CSS, "a { color: red; } /* c */"}),
		unit(2, fragment.EmbeddedScript, Output{JS, "x(); // y"}),
	}
	opts := Options{Minify: true, PreserveSourceMaps: true, MergeOrder: CodeTypes()}

	m := New(opts)
	first, err := m.Merge(units)
	require.NoError(t, err)
	second, err := m.Merge(units)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestMergeStatistics(t *testing.T) {
	out, err := Merge(DefaultOptions(), []Unit{
		unit(0, fragment.DslBlock, Output{DSL, "<b></b>"}, Output{CSS, "b{}"}),
		unit(1, fragment.Comment),
		unit(2, fragment.DslBlock, Output{DSL, "<i></i>"}),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, out.Stats.TotalFragments)
	assert.Equal(t, 2, out.Stats.PerCategory[fragment.DslBlock])
	assert.Equal(t, 1, out.Stats.PerCategory[fragment.Comment])
	assert.Equal(t, 2, out.Stats.PerCodeType[DSL])
	assert.Equal(t, 1, out.Stats.PerCodeType[CSS])
}

func TestMergeSourceMap(t *testing.T) {
	units := []Unit{
		unit(0, fragment.EmbeddedStyle, Output{CSS, "a{}"}),
		unit(4, fragment.EmbeddedStyle, Output{CSS, "b{}"}),
		unit(8, fragment.Markup, Output{HTML, "<p>"}),
	}

	out, err := Merge(Options{PreserveComments: true}, units)
	require.NoError(t, err)
	assert.Nil(t, out.SourceMap)

	out, err = Merge(Options{PreserveComments: true, PreserveSourceMaps: true}, units)
	require.NoError(t, err)
	require.Len(t, out.SourceMap, 3)
	assert.Equal(t, "a{}\nb{}", out.CSS, "the source map hook never changes the text")

	e, ok := entryAt(out.SourceMap, ArtifactCSS, 5)
	require.True(t, ok)
	assert.Equal(t, 4, e.SourceOffset)
	assert.Equal(t, 2, e.GeneratedLine)
	assert.Equal(t, 4, e.GeneratedOffset)

	e, ok = entryAt(out.SourceMap, ArtifactHTML, 0)
	require.True(t, ok)
	assert.Equal(t, fragment.Markup, e.Category)

	_, ok = entryAt(out.SourceMap, ArtifactJS, 0)
	assert.False(t, ok)
}

func entryAt(entries []SourceMapEntry, a Artifact, offset int) (SourceMapEntry, bool) {
	for _, e := range entries {
		if e.Artifact == a && offset >= e.GeneratedOffset && offset < e.GeneratedOffset+e.Length {
			return e, true
		}
	}
	return SourceMapEntry{}, false
}

func TestMergeRejectsUnknownCodeType(t *testing.T) {
	_, err := Merge(DefaultOptions(), []Unit{unit(0, fragment.Markup, Output{"wasm", "x"})})
	assert.Error(t, err)
}

func TestParseCodeType(t *testing.T) {
	for _, name := range []string{"html", "CSS", "javascript", "chtl", "chtl_js", "dsl_script"} {
		_, err := ParseCodeType(name)
		assert.NoError(t, err, name)
	}
	_, err := ParseCodeType("rust")
	assert.Error(t, err)

	assert.Equal(t, ArtifactJS, DSLScript.Artifact())
	assert.Equal(t, ArtifactHTML, DSL.Artifact())
}

func TestNewCopiesOptions(t *testing.T) {
	order := []CodeType{JS, CSS}
	m := New(Options{MergeOrder: order})
	order[0] = HTML

	assert.Equal(t, []CodeType{JS, CSS}, m.Options().MergeOrder)
}
