package scanner

import (
	"strings"
	"testing"

	"github.com/conneroisu/chtl/internal/errors"
)

// FuzzScanTiling checks that any source either fails with a located error
// or yields fragments tiling the whole input.
func FuzzScanTiling(f *testing.F) {
	f.Add("div { color: red; }<style>.x{color:blue}</style>")
	f.Add("[Template] { [Nested] { } }")
	f.Add("text /* unterminated")
	f.Add(`x "<style>" y`)
	f.Add("{{box}}.listen({ click: () => {} });")
	f.Add("<!DOCTYPE html><html><body class='a'>hi</body></html>")
	f.Add("-- generator\n// line\n/* block */")
	f.Add("[Import] @Chtl from \"a.chtl\";\n[Origin] @Html x\n{ <b></b> }")
	f.Add("p { text { don't } }")

	f.Fuzz(func(t *testing.T, src string) {
		frags, err := Scan(src)
		if err != nil {
			if !errors.IsKind(err, errors.KindUnterminatedBoundary) {
				t.Fatalf("unexpected error kind: %v", err)
			}
			if _, _, ok := errors.Location(err); !ok {
				t.Fatalf("error without location: %v", err)
			}
			return
		}

		if err := CheckTiling(src, frags); err != nil {
			t.Fatalf("tiling broken: %v", err)
		}

		var b strings.Builder
		for _, f := range frags {
			b.WriteString(f.Content)
		}
		if b.String() != src {
			t.Fatalf("concatenated fragments differ from source")
		}
	})
}
