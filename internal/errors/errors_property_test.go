//go:build property

package errors

import (
	"fmt"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestErrorCollectorProperties validates error collection and aggregation properties
func TestErrorCollectorProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(2468)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("concurrent error addition is thread-safe", prop.ForAll(
		func(goroutineCount int, errorsPerGoroutine int) bool {
			collector := NewErrorCollector()

			var wg sync.WaitGroup
			for g := 0; g < goroutineCount; g++ {
				wg.Add(1)
				go func(id int) {
					defer wg.Done()
					for e := 0; e < errorsPerGoroutine; e++ {
						collector.AddError(
							fmt.Sprintf("file_%d.chtl", id),
							NewUnterminatedBoundary("string", e, e+1, 1, `"`),
						)
					}
				}(g)
			}
			wg.Wait()

			return collector.Len() == goroutineCount*errorsPerGoroutine
		},
		gen.IntRange(1, 20),
		gen.IntRange(1, 50),
	))

	properties.Property("diagnostics are ordered by file then line", prop.ForAll(
		func(lines []int) bool {
			collector := NewErrorCollector()
			for i, line := range lines {
				collector.AddError(fmt.Sprintf("f%d.chtl", i%3), NewUnterminatedBoundary("string", 0, line, 1, `"`))
			}

			diagnostics := collector.Diagnostics()
			for i := 1; i < len(diagnostics); i++ {
				prev, cur := diagnostics[i-1], diagnostics[i]
				if prev.File > cur.File || (prev.File == cur.File && prev.Line > cur.Line) {
					return false
				}
			}
			return len(diagnostics) == len(lines)
		},
		gen.SliceOf(gen.IntRange(1, 1000)),
	))

	properties.Property("location survives wrapping", prop.ForAll(
		func(line, column int) bool {
			err := WrapInternal(NewUnterminatedBoundary("dsl block", 0, line, column, "}"), ErrCodeInternalError, "outer")
			l, c, ok := Location(err)
			return ok && l == line && c == column
		},
		gen.IntRange(1, 10000),
		gen.IntRange(1, 500),
	))

	properties.TestingRun(t)
}
