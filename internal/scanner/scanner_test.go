package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/chtl/internal/errors"
	"github.com/conneroisu/chtl/internal/fragment"
)

type span struct {
	cat     fragment.Category
	content string
}

func spans(frags []fragment.CodeFragment) []span {
	out := make([]span, len(frags))
	for i, f := range frags {
		out[i] = span{f.Category, f.Content}
	}
	return out
}

func TestScanFragments(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []span
	}{
		{
			name: "element block followed by style tag",
			src:  "div { color: red; }<style>.x{color:blue}</style>",
			want: []span{
				{fragment.DslBlock, "div { color: red; }"},
				{fragment.EmbeddedStyle, "<style>.x{color:blue}</style>"},
			},
		},
		{
			name: "nested declaration is one block",
			src:  "[Template] { [Nested] { } }",
			want: []span{{fragment.DslBlock, "[Template] { [Nested] { } }"}},
		},
		{
			name: "inline script does not nest",
			src:  "{{box}}.show();",
			want: []span{
				{fragment.EmbeddedScript, "{{box}}"},
				{fragment.Unclassified, ".show();"},
			},
		},
		{
			name: "markup with quoted angle bracket",
			src:  `<div class="a>b">hi</div>`,
			want: []span{
				{fragment.Markup, `<div class="a>b">`},
				{fragment.Unclassified, "hi"},
				{fragment.Markup, "</div>"},
			},
		},
		{
			name: "line generator and html comments",
			src:  "// line\n-- gen\n<!-- c -->",
			want: []span{
				{fragment.Comment, "// line"},
				{fragment.PlainText, "\n"},
				{fragment.Comment, "-- gen"},
				{fragment.PlainText, "\n"},
				{fragment.Comment, "<!-- c -->"},
			},
		},
		{
			name: "block comment hides tags",
			src:  "/* <style>x</style> */",
			want: []span{{fragment.Comment, "/* <style>x</style> */"}},
		},
		{
			name: "string hides style tag",
			src:  `x "<style>.a{}</style>" y`,
			want: []span{{fragment.Unclassified, `x "<style>.a{}</style>" y`}},
		},
		{
			name: "string inside block hides closing brace",
			src:  `div { text { "}" } }`,
			want: []span{{fragment.DslBlock, `div { text { "}" } }`}},
		},
		{
			name: "apostrophe inside a word",
			src:  "p { text { don't } }",
			want: []span{{fragment.DslBlock, "p { text { don't } }"}},
		},
		{
			name: "non-ascii word is not split",
			src:  "héllo { x }",
			want: []span{{fragment.Unclassified, "héllo { x }"}},
		},
		{
			name: "apostrophe after non-ascii letter",
			src:  "p { text { café's } }",
			want: []span{{fragment.DslBlock, "p { text { café's } }"}},
		},
		{
			name: "url is not a comment",
			src:  "a { href: https://x.com; }",
			want: []span{{fragment.DslBlock, "a { href: https://x.com; }"}},
		},
		{
			name: "comment inside block is absorbed",
			src:  "div { /* } */ // }\n }",
			want: []span{{fragment.DslBlock, "div { /* } */ // }\n }"}},
		},
		{
			name: "header only declaration",
			src:  "[Import] @Chtl from \"a.chtl\";\n",
			want: []span{
				{fragment.DslBlock, `[Import] @Chtl from "a.chtl";`},
				{fragment.PlainText, "\n"},
			},
		},
		{
			name: "declaration brace on next line",
			src:  "[Origin] @Html box\n{ <div></div> }",
			want: []span{{fragment.DslBlock, "[Origin] @Html box\n{ <div></div> }"}},
		},
		{
			name: "declaration ends at newline",
			src:  "[Info] version 1\nrest",
			want: []span{
				{fragment.DslBlock, "[Info] version 1"},
				{fragment.Unclassified, "\nrest"},
			},
		},
		{
			name: "case insensitive style tag",
			src:  "<STYLE>a{}</Style>",
			want: []span{{fragment.EmbeddedStyle, "<STYLE>a{}</Style>"}},
		},
		{
			name: "script tag with attributes",
			src:  `<script type="module">if (a < b) {}</script>`,
			want: []span{{fragment.EmbeddedScript, `<script type="module">if (a < b) {}</script>`}},
		},
		{
			name: "double brace after identifier is not an element",
			src:  "x {{y}}",
			want: []span{
				{fragment.Unclassified, "x "},
				{fragment.EmbeddedScript, "{{y}}"},
			},
		},
		{
			name: "whitespace only",
			src:  " \n\t",
			want: []span{{fragment.PlainText, " \n\t"}},
		},
		{
			name: "empty source",
			src:  "",
			want: []span{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frags, err := Scan(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, spans(frags))
			assert.NoError(t, CheckTiling(tt.src, frags))
		})
	}
}

func TestScanUnterminated(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		category string
		line     int
		column   int
	}{
		{"block comment", "text /* unterminated", "block comment", 1, 6},
		{"dsl block", "div {\n  span {", "dsl block", 1, 1},
		{"nested declaration", "\n[Template] { [Nested] { }", "dsl block", 2, 1},
		{"string", `x "abc`, "string", 1, 3},
		{"string in block", "div { text { \"a } }", "string", 1, 14},
		{"inline script", "a\n  {{box", "inline script", 2, 3},
		{"style block", "<style>.a{}", "style block", 1, 1},
		{"script block", "<br>\n<script>x()", "script block", 2, 1},
		{"markup tag", "<div class=\"x\"", "markup tag", 1, 1},
		{"html comment", "<!-- open", "html comment", 1, 1},
		{"escaped quote does not close", `"a\"`, "string", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frags, err := Scan(tt.src)
			require.Error(t, err)
			assert.Nil(t, frags)

			var ce *errors.CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, errors.KindUnterminatedBoundary, ce.Kind)
			assert.Equal(t, tt.category, ce.Category)
			assert.Equal(t, tt.line, ce.Line)
			assert.Equal(t, tt.column, ce.Column)
			assert.NotEmpty(t, ce.Suggestion)
		})
	}
}

func TestScanPositionsCountRunes(t *testing.T) {
	frags, err := Scan("éé<b>\n  ü<i>")
	require.NoError(t, err)

	var markup []fragment.CodeFragment
	for _, f := range frags {
		if f.Category == fragment.Markup {
			markup = append(markup, f)
		}
	}
	require.Len(t, markup, 2)
	assert.Equal(t, fragment.Position{Line: 1, Column: 3}, markup[0].Position())
	assert.Equal(t, fragment.Position{Line: 2, Column: 4}, markup[1].Position())
}

func TestScanWithContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().ScanWithContext(ctx, "div {}")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAnalyzeReportsAmbiguousSpans(t *testing.T) {
	report, err := New().Analyze(context.Background(), "hello <b>x</b>")
	require.NoError(t, err)

	require.Len(t, report.Ambiguous, 2)
	assert.True(t, errors.IsRecoverable(report.Ambiguous[0]))
	assert.Equal(t, 1, report.Ambiguous[0].Column)
	assert.Len(t, report.Boundaries, 2)
}

func TestBoundarySet(t *testing.T) {
	set, err := DetectBoundaries("div {}\n<p>\n// c")
	require.NoError(t, err)
	require.Len(t, set, 3)

	b, ok := set.At(8)
	require.True(t, ok)
	assert.Equal(t, fragment.Markup, b.Category)
	assert.Equal(t, fragment.Position{Line: 2, Column: 1}, b.StartPos)
	assert.Equal(t, fragment.Position{Line: 2, Column: 4}, b.EndPos)

	_, ok = set.At(6)
	assert.False(t, ok, "newline between boundaries")

	assert.Len(t, set.ByCategory(fragment.Comment), 1)
	assert.Equal(t, 1, set.Counts()[fragment.DslBlock])

	for i := 1; i < len(set); i++ {
		assert.False(t, set[i-1].Overlaps(set[i]))
		assert.Less(t, set[i-1].Start, set[i].Start)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		in   string
		want fragment.Category
	}{
		{"", fragment.PlainText},
		{"  \n", fragment.PlainText},
		{"  <b>", fragment.Markup},
		{"<", fragment.Unclassified},
		{"// x", fragment.Comment},
		{"\n/* x */", fragment.Comment},
		{"-- gen", fragment.Comment},
		{"<!-- c -->", fragment.Comment},
		{"words", fragment.Unclassified},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
		})
	}
}

func TestCheckBoundaries(t *testing.T) {
	src := "abcdef"
	b := func(start, end int) fragment.Boundary { return fragment.Boundary{Start: start, End: end} }

	assert.NoError(t, CheckBoundaries(src, []fragment.Boundary{b(0, 2), b(2, 4), b(5, 6)}))
	assert.Error(t, CheckBoundaries(src, []fragment.Boundary{b(0, 3), b(2, 4)}), "overlap")
	assert.Error(t, CheckBoundaries(src, []fragment.Boundary{b(3, 4), b(0, 2)}), "out of order")
	assert.Error(t, CheckBoundaries(src, []fragment.Boundary{b(2, 2)}), "empty")
	assert.Error(t, CheckBoundaries(src, []fragment.Boundary{b(4, 9)}), "past the end")

	bs, err := DetectBoundaries("div { x }<style>a{}</style>// c\n{{b}}")
	require.NoError(t, err)
	assert.NoError(t, CheckBoundaries("div { x }<style>a{}</style>// c\n{{b}}", bs))
}

func TestCheckTilingRejectsGaps(t *testing.T) {
	src := "abc"
	assert.Error(t, CheckTiling(src, []fragment.CodeFragment{{Start: 0, End: 1, Content: "a"}}))
	assert.Error(t, CheckTiling(src, []fragment.CodeFragment{
		{Start: 0, End: 2, Content: "ab"},
		{Start: 1, End: 3, Content: "bc"},
	}))
	assert.Error(t, CheckTiling(src, []fragment.CodeFragment{{Start: 0, End: 3, Content: "xyz"}}))
	assert.NoError(t, CheckTiling(src, []fragment.CodeFragment{{Start: 0, End: 3, Content: "abc"}}))
}
