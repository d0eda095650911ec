package dispatcher

import (
	"context"
	"sort"
	"sync"

	"github.com/conneroisu/chtl/internal/fragment"
	"github.com/conneroisu/chtl/internal/logging"
	"github.com/conneroisu/chtl/internal/merger"
	"github.com/conneroisu/chtl/internal/placeholder"
)

// CompileContext carries per-file state into a compiler call.
type CompileContext struct {
	File string
	// Placeholders shields foreign spans while a compiler parses its own
	// grammar. It is never shared between concurrent calls.
	Placeholders *placeholder.Manager
	Logger       logging.Logger
}

// Compiler turns one fragment into compiled output parts.
type Compiler interface {
	Compile(ctx context.Context, cc *CompileContext, frag fragment.CodeFragment) ([]merger.Output, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(ctx context.Context, cc *CompileContext, frag fragment.CodeFragment) ([]merger.Output, error)

// Compile calls f.
func (f CompilerFunc) Compile(ctx context.Context, cc *CompileContext, frag fragment.CodeFragment) ([]merger.Output, error) {
	return f(ctx, cc, frag)
}

// Passthrough emits the fragment content unchanged as HTML.
var Passthrough Compiler = CompilerFunc(func(_ context.Context, _ *CompileContext, frag fragment.CodeFragment) ([]merger.Output, error) {
	if frag.Content == "" {
		return nil, nil
	}
	return []merger.Output{{Type: merger.HTML, Content: frag.Content}}, nil
})

// Registry maps fragment categories to compilers.
type Registry struct {
	mu        sync.RWMutex
	compilers map[fragment.Category]Compiler
	fallback  Compiler
}

// NewRegistry creates an empty registry whose fallback is Passthrough.
func NewRegistry() *Registry {
	return &Registry{
		compilers: make(map[fragment.Category]Compiler),
		fallback:  Passthrough,
	}
}

// Register sets the compiler for a category, replacing any earlier one.
func (r *Registry) Register(c fragment.Category, compiler Compiler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compilers[c] = compiler
}

// SetFallback sets the compiler used for categories with no registration.
func (r *Registry) SetFallback(compiler Compiler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = compiler
}

// Lookup returns the compiler for a category and whether it was registered
// explicitly.
func (r *Registry) Lookup(c fragment.Category) (Compiler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if compiler, ok := r.compilers[c]; ok {
		return compiler, true
	}
	return r.fallback, false
}

// Categories lists the explicitly registered categories.
func (r *Registry) Categories() []fragment.Category {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cats := make([]fragment.Category, 0, len(r.compilers))
	for c := range r.compilers {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}
