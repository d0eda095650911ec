// Package merger stitches per-fragment compiled output back into the final
// HTML, CSS and JavaScript artifacts.
//
// Merge is a pure function of its units and options: the same input always
// produces byte-identical output.
package merger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/conneroisu/chtl/internal/fragment"
)

// Output is one compiled part produced for a fragment.
type Output struct {
	Type    CodeType `json:"type" yaml:"type"`
	Content string   `json:"content" yaml:"content"`
}

// Unit pairs a source fragment with the outputs compiled from it.
type Unit struct {
	Fragment fragment.CodeFragment
	Outputs  []Output
}

// Statistics summarise one merge.
type Statistics struct {
	TotalFragments int                       `json:"total_fragments" yaml:"total_fragments"`
	PerCategory    map[fragment.Category]int `json:"per_category" yaml:"per_category"`
	PerCodeType    map[CodeType]int          `json:"per_code_type" yaml:"per_code_type"`
}

// MergedOutput holds the three final artifacts.
type MergedOutput struct {
	HTML      string           `json:"html" yaml:"html"`
	CSS       string           `json:"css" yaml:"css"`
	JS        string           `json:"js" yaml:"js"`
	Stats     Statistics       `json:"stats" yaml:"stats"`
	SourceMap []SourceMapEntry `json:"source_map,omitempty" yaml:"source_map,omitempty"`
}

// Artifact returns the text of one artifact.
func (m *MergedOutput) Artifact(a Artifact) string {
	switch a {
	case ArtifactCSS:
		return m.CSS
	case ArtifactJS:
		return m.JS
	default:
		return m.HTML
	}
}

// Merger combines compiled units using fixed options.
type Merger struct {
	opts Options
}

// New creates a Merger. The options are copied.
func New(opts Options) *Merger {
	order := make([]CodeType, len(opts.MergeOrder))
	copy(order, opts.MergeOrder)
	opts.MergeOrder = order

	overrides := make(map[CodeType]OverrideFunc, len(opts.Overrides))
	for k, v := range opts.Overrides {
		overrides[k] = v
	}
	opts.Overrides = overrides

	return &Merger{opts: opts}
}

// Options returns a copy of the merger's options.
func (m *Merger) Options() Options {
	return m.opts
}

// part is one output positioned in the document.
type part struct {
	out  Output
	frag fragment.CodeFragment
}

// Merge builds the artifacts from units. Units are processed in document
// order regardless of the order they are given in.
func (m *Merger) Merge(units []Unit) (*MergedOutput, error) {
	ordered := make([]Unit, len(units))
	copy(ordered, units)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Fragment.Start < ordered[j].Fragment.Start
	})

	result := &MergedOutput{Stats: statistics(ordered)}

	byArtifact := make(map[Artifact][]part)
	for _, u := range ordered {
		for _, out := range u.Outputs {
			if out.Type.Artifact() == ArtifactHTML && !isHTMLType(out.Type) {
				return nil, fmt.Errorf("fragment at %d:%d: unknown code type %q", u.Fragment.Line, u.Fragment.Column, out.Type)
			}
			a := out.Type.Artifact()
			byArtifact[a] = append(byArtifact[a], part{out: out, frag: u.Fragment})
		}
	}

	var maps []SourceMapEntry

	html, entries := m.joinDocument(byArtifact[ArtifactHTML])
	result.HTML = m.postProcess(ArtifactHTML, html)
	maps = append(maps, entries...)

	css, entries := m.joinBuckets(ArtifactCSS, byArtifact[ArtifactCSS])
	result.CSS = m.postProcess(ArtifactCSS, css)
	maps = append(maps, entries...)

	js, entries := m.joinBuckets(ArtifactJS, byArtifact[ArtifactJS])
	result.JS = m.postProcess(ArtifactJS, js)
	maps = append(maps, entries...)

	if m.opts.PreserveSourceMaps {
		result.SourceMap = maps
	}

	return result, nil
}

func isHTMLType(t CodeType) bool {
	return t == HTML || t == DSL
}

// joinDocument concatenates HTML parts in document order.
func (m *Merger) joinDocument(parts []part) (string, []SourceMapEntry) {
	var acc string
	var entries []SourceMapEntry
	for _, p := range parts {
		offset := len(acc)
		acc = m.fold(p.out.Type, acc, p.out.Content, "")
		entries = append(entries, newEntry(ArtifactHTML, acc, offset, p))
	}
	return acc, entries
}

// joinBuckets groups parts by code type, orders the buckets by MergeOrder
// then first appearance, and joins everything with newlines.
func (m *Merger) joinBuckets(artifact Artifact, parts []part) (string, []SourceMapEntry) {
	buckets := make(map[CodeType][]part)
	var seen []CodeType
	for _, p := range parts {
		if _, ok := buckets[p.out.Type]; !ok {
			seen = append(seen, p.out.Type)
		}
		buckets[p.out.Type] = append(buckets[p.out.Type], p)
	}

	var order []CodeType
	listed := make(map[CodeType]bool)
	for _, t := range m.opts.MergeOrder {
		if _, ok := buckets[t]; ok && !listed[t] {
			order = append(order, t)
			listed[t] = true
		}
	}
	for _, t := range seen {
		if !listed[t] {
			order = append(order, t)
		}
	}

	var b strings.Builder
	var entries []SourceMapEntry
	for _, t := range order {
		var acc string
		var local []SourceMapEntry
		for _, p := range buckets[t] {
			offset := len(acc)
			if offset > 0 && m.opts.Overrides[t] == nil {
				offset++
			}
			acc = m.fold(t, acc, p.out.Content, "\n")
			local = append(local, newEntry(artifact, acc, offset, p))
		}
		if acc == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		base := b.Len()
		for _, e := range local {
			e.GeneratedOffset += base
			entries = append(entries, e)
		}
		b.WriteString(acc)
	}

	text := b.String()
	for i := range entries {
		entries[i].GeneratedLine = 1 + strings.Count(text[:entries[i].GeneratedOffset], "\n")
	}
	return text, entries
}

// fold appends next to acc, through the override for t when one is set.
func (m *Merger) fold(t CodeType, acc, next, sep string) string {
	if fn := m.opts.Overrides[t]; fn != nil {
		return fn(acc, next)
	}
	if acc == "" {
		return next
	}
	return acc + sep + next
}

// postProcess runs minification, comment stripping and the source map hook
// in that order.
func (m *Merger) postProcess(a Artifact, text string) string {
	if text == "" {
		return text
	}
	if m.opts.Minify {
		text = minify(a, text)
	}
	if !m.opts.PreserveComments {
		text = stripComments(a, text)
	}
	return text
}

func statistics(units []Unit) Statistics {
	stats := Statistics{
		TotalFragments: len(units),
		PerCategory:    make(map[fragment.Category]int),
		PerCodeType:    make(map[CodeType]int),
	}
	for _, u := range units {
		stats.PerCategory[u.Fragment.Category]++
		for _, out := range u.Outputs {
			stats.PerCodeType[out.Type]++
		}
	}
	return stats
}

// Merge combines units with the given options.
func Merge(opts Options, units []Unit) (*MergedOutput, error) {
	return New(opts).Merge(units)
}
