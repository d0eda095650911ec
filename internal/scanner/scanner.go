// Package scanner splits a CHTL source into classified fragments.
//
// Detection is a single left-to-right pass that dispatches on the first
// character of each construct. Spans between detected boundaries become gap
// fragments classified by their leading content, so the returned fragments
// always tile the whole source.
package scanner

import (
	"context"
	"fmt"
	"strings"

	"github.com/conneroisu/chtl/internal/errors"
	"github.com/conneroisu/chtl/internal/fragment"
	"github.com/conneroisu/chtl/internal/logging"
)

// Report is the full result of scanning one source.
type Report struct {
	Fragments  []fragment.CodeFragment
	Boundaries BoundarySet
	// Ambiguous holds the recovered classification failures, one per
	// Unclassified gap fragment.
	Ambiguous []*errors.CompileError
}

// Scanner turns source text into fragments. It keeps no per-source state
// and is safe for concurrent use.
type Scanner struct {
	logger logging.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithLogger sets the logger used for debug output.
func WithLogger(l logging.Logger) Option {
	return func(s *Scanner) {
		s.logger = l
	}
}

// New creates a Scanner.
func New(opts ...Option) *Scanner {
	s := &Scanner{logger: logging.NopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger).WithComponent("scanner")
	return s
}

// Scan splits src into fragments with the default scanner.
func Scan(src string) ([]fragment.CodeFragment, error) {
	return New().Scan(src)
}

// Scan splits src into fragments that tile [0, len(src)).
func (s *Scanner) Scan(src string) ([]fragment.CodeFragment, error) {
	return s.ScanWithContext(context.Background(), src)
}

// ScanWithContext is Scan with a cancellation check before the pass starts.
// A pass that has started always runs to completion.
func (s *Scanner) ScanWithContext(ctx context.Context, src string) ([]fragment.CodeFragment, error) {
	report, err := s.Analyze(ctx, src)
	if err != nil {
		return nil, err
	}
	return report.Fragments, nil
}

// Analyze scans src and returns fragments together with the detected
// boundaries and recovered diagnostics.
func (s *Scanner) Analyze(ctx context.Context, src string) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	boundaries, err := DetectBoundaries(src)
	if err != nil {
		s.logger.Debug(ctx, "boundary detection failed", "error", err.Error())
		return nil, err
	}
	if err := CheckBoundaries(src, boundaries); err != nil {
		return nil, err
	}

	report := &Report{
		Boundaries: boundaries,
		Fragments:  make([]fragment.CodeFragment, 0, 2*len(boundaries)+1),
	}
	lines := newLineIndex(src)

	gap := func(start, end int) {
		if start >= end {
			return
		}
		content := src[start:end]
		cat := Classify(content)
		pos := lines.position(start)
		if cat == fragment.Unclassified {
			amb := errors.NewAmbiguousClassification(start, pos.Line, pos.Column, excerpt(content))
			report.Ambiguous = append(report.Ambiguous, amb)
			s.logger.Debug(ctx, "unclassified span", "line", pos.Line, "column", pos.Column, "length", end-start)
		}
		report.Fragments = append(report.Fragments, newFragment(cat, src, start, end, pos))
	}

	last := 0
	for _, b := range boundaries {
		gap(last, b.Start)
		report.Fragments = append(report.Fragments, newFragment(b.Category, src, b.Start, b.End, b.StartPos))
		last = b.End
	}
	gap(last, len(src))

	s.logger.Debug(ctx, "scan complete",
		"bytes", len(src),
		"boundaries", len(boundaries),
		"fragments", len(report.Fragments),
	)

	return report, nil
}

func newFragment(cat fragment.Category, src string, start, end int, pos fragment.Position) fragment.CodeFragment {
	return fragment.CodeFragment{
		Category: cat,
		Content:  strings.Clone(src[start:end]),
		Start:    start,
		End:      end,
		Line:     pos.Line,
		Column:   pos.Column,
	}
}

func excerpt(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 32 {
		s = s[:32] + "..."
	}
	return s
}

// CheckBoundaries verifies that boundaries are ordered, non-empty, inside
// src and pairwise disjoint.
func CheckBoundaries(src string, bs []fragment.Boundary) error {
	for i, b := range bs {
		if b.Len() <= 0 || b.Start < 0 || b.End > len(src) {
			return errors.NewInternalError(errors.ErrCodeFragmentMismatch,
				fmt.Sprintf("boundary %d has invalid span [%d,%d)", i, b.Start, b.End), nil)
		}
		if i > 0 && (bs[i-1].Overlaps(b) || bs[i-1].Start > b.Start) {
			return errors.NewInternalError(errors.ErrCodeFragmentMismatch,
				fmt.Sprintf("boundary %d [%d,%d) overlaps or precedes boundary %d", i, b.Start, b.End, i-1), nil)
		}
	}
	return nil
}

// CheckTiling verifies that frags cover [0, len(src)) in order with no gap
// or overlap and that their contents concatenate to src.
func CheckTiling(src string, frags []fragment.CodeFragment) error {
	next := 0
	for i, f := range frags {
		if f.Start != next {
			return errors.NewInternalError(errors.ErrCodeFragmentMismatch,
				fmt.Sprintf("fragment %d starts at %d, expected %d", i, f.Start, next), nil)
		}
		if f.End <= f.Start || f.End > len(src) {
			return errors.NewInternalError(errors.ErrCodeFragmentMismatch,
				fmt.Sprintf("fragment %d has invalid span [%d,%d)", i, f.Start, f.End), nil)
		}
		if f.Content != src[f.Start:f.End] {
			return errors.NewInternalError(errors.ErrCodeFragmentMismatch,
				fmt.Sprintf("fragment %d content does not match its span", i), nil)
		}
		next = f.End
	}
	if next != len(src) {
		return errors.NewInternalError(errors.ErrCodeFragmentMismatch,
			fmt.Sprintf("fragments end at %d, source length is %d", next, len(src)), nil)
	}
	return nil
}
