package merger

import (
	"strings"

	"github.com/conneroisu/chtl/internal/fragment"
)

// SourceMapEntry links one output part to the source fragment it came from.
// Generated offsets and lines refer to the artifact text before minification
// and comment stripping.
type SourceMapEntry struct {
	Artifact        Artifact          `json:"artifact" yaml:"artifact"`
	CodeType        CodeType          `json:"code_type" yaml:"code_type"`
	GeneratedOffset int               `json:"generated_offset" yaml:"generated_offset"`
	GeneratedLine   int               `json:"generated_line" yaml:"generated_line"`
	Length          int               `json:"length" yaml:"length"`
	Category        fragment.Category `json:"category" yaml:"category"`
	Source          fragment.Position `json:"source" yaml:"source"`
	SourceOffset    int               `json:"source_offset" yaml:"source_offset"`
}

func newEntry(a Artifact, acc string, offset int, p part) SourceMapEntry {
	if offset > len(acc) {
		offset = len(acc)
	}
	return SourceMapEntry{
		Artifact:        a,
		CodeType:        p.out.Type,
		GeneratedOffset: offset,
		GeneratedLine:   1 + strings.Count(acc[:offset], "\n"),
		Length:          len(p.out.Content),
		Category:        p.frag.Category,
		Source:          p.frag.Position(),
		SourceOffset:    p.frag.Start,
	}
}
