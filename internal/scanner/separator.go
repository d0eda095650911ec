package scanner

import (
	"context"

	"github.com/conneroisu/chtl/internal/fragment"
)

// Separation groups the fragments of one source by category while keeping
// the original document order available.
type Separation struct {
	order      []fragment.CodeFragment
	byCategory map[fragment.Category][]fragment.CodeFragment
}

// Separate scans src and groups the fragments by category.
func (s *Scanner) Separate(ctx context.Context, src string) (*Separation, error) {
	frags, err := s.ScanWithContext(ctx, src)
	if err != nil {
		return nil, err
	}
	return NewSeparation(frags), nil
}

// Separate groups src's fragments with the default scanner.
func Separate(src string) (*Separation, error) {
	return New().Separate(context.Background(), src)
}

// NewSeparation groups already scanned fragments.
func NewSeparation(frags []fragment.CodeFragment) *Separation {
	sep := &Separation{
		order:      frags,
		byCategory: make(map[fragment.Category][]fragment.CodeFragment),
	}
	for _, f := range frags {
		sep.byCategory[f.Category] = append(sep.byCategory[f.Category], f)
	}
	return sep
}

// ByCategory returns the fragments of one category in document order.
func (s *Separation) ByCategory(c fragment.Category) []fragment.CodeFragment {
	return s.byCategory[c]
}

// Styles returns the embedded style fragments.
func (s *Separation) Styles() []fragment.CodeFragment {
	return s.byCategory[fragment.EmbeddedStyle]
}

// Scripts returns the embedded script fragments, tag and inline blocks alike.
func (s *Separation) Scripts() []fragment.CodeFragment {
	return s.byCategory[fragment.EmbeddedScript]
}

// Order returns every fragment in document order.
func (s *Separation) Order() []fragment.CodeFragment {
	return s.order
}

// Categories returns the categories present, in declaration order.
func (s *Separation) Categories() []fragment.Category {
	var cats []fragment.Category
	for _, c := range fragment.Categories() {
		if len(s.byCategory[c]) > 0 {
			cats = append(cats, c)
		}
	}
	return cats
}

// Counts returns the number of fragments per category.
func (s *Separation) Counts() map[fragment.Category]int {
	counts := make(map[fragment.Category]int, len(s.byCategory))
	for c, frags := range s.byCategory {
		counts[c] = len(frags)
	}
	return counts
}
