//go:build property

package merger

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/conneroisu/chtl/internal/fragment"
)

func genUnits() gopter.Gen {
	types := []CodeType{HTML, CSS, JS, DSL, DSLScript}
	return gen.SliceOf(gen.IntRange(0, len(types)-1)).Map(func(idx []int) []Unit {
		units := make([]Unit, len(idx))
		for i, t := range idx {
			units[i] = Unit{
				Fragment: fragment.CodeFragment{Start: i, End: i + 1, Line: 1, Column: i + 1},
				Outputs:  []Output{{Type: types[t], Content: "p" + strings.Repeat("x", t)}},
			}
		}
		return units
	})
}

func TestMergerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 150

	properties := gopter.NewProperties(parameters)

	properties.Property("merge is idempotent", prop.ForAll(
		func(units []Unit, minify, comments, maps bool) bool {
			m := New(Options{Minify: minify, PreserveComments: comments, PreserveSourceMaps: maps, MergeOrder: CodeTypes()})
			a, errA := m.Merge(units)
			b, errB := m.Merge(units)
			if errA != nil || errB != nil {
				return false
			}
			return a.HTML == b.HTML && a.CSS == b.CSS && a.JS == b.JS && len(a.SourceMap) == len(b.SourceMap)
		},
		genUnits(),
		gen.Bool(),
		gen.Bool(),
		gen.Bool(),
	))

	properties.Property("every output part is counted", prop.ForAll(
		func(units []Unit) bool {
			out, err := Merge(DefaultOptions(), units)
			if err != nil {
				return false
			}
			total := 0
			for _, n := range out.Stats.PerCodeType {
				total += n
			}
			return total == len(units) && out.Stats.TotalFragments == len(units)
		},
		genUnits(),
	))

	properties.Property("unminified css keeps every part", prop.ForAll(
		func(units []Unit) bool {
			out, err := Merge(DefaultOptions(), units)
			if err != nil {
				return false
			}
			n := 0
			for _, u := range units {
				if u.Outputs[0].Type == CSS {
					n++
				}
			}
			if n == 0 {
				return out.CSS == ""
			}
			return strings.Count(out.CSS, "\n") == n-1
		},
		genUnits(),
	))

	properties.TestingRun(t)
}
