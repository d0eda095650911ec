package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/conneroisu/chtl/internal/errors"
	"github.com/conneroisu/chtl/internal/validation"
)

// DefaultInclude matches CHTL source files.
const DefaultInclude = "*.chtl"

// Discoverer finds source files below a set of roots. Every path it returns
// lies inside its base directory.
type Discoverer struct {
	Include string
	Exclude []string

	baseDir   string
	pathCache pathValidationCache
}

type pathValidationCache struct {
	mu          sync.RWMutex
	baseDir     string
	initialized bool
}

// NewDiscoverer creates a discoverer confined to baseDir, or to the current
// working directory when baseDir is empty.
func NewDiscoverer(baseDir, include string, exclude []string) *Discoverer {
	if include == "" {
		include = DefaultInclude
	}
	return &Discoverer{
		Include: include,
		Exclude: exclude,
		baseDir: baseDir,
	}
}

// Discover walks roots and returns matching files, sorted and deduplicated.
// A root may name a file directly, in which case the include pattern is
// not applied.
func (d *Discoverer) Discover(ctx context.Context, roots []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, root := range roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		clean, err := d.validatePath(root)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(clean)
		if err != nil {
			return nil, errors.FileOperationError("stat", clean, err)
		}
		if !info.IsDir() {
			add(clean)
			continue
		}

		err = filepath.WalkDir(clean, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.excluded(path) {
				if entry.IsDir() && path != clean {
					return filepath.SkipDir
				}
				return nil
			}
			if entry.IsDir() || !d.included(path) {
				return nil
			}
			// Skip invalid paths silently, e.g. symlinks leaving the base.
			if valid, err := d.validatePath(path); err == nil {
				add(valid)
			}
			return nil
		})
		if err != nil {
			return nil, errors.FileOperationError("walk", clean, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

func (d *Discoverer) included(path string) bool {
	return validation.Match(d.Include, path)
}

func (d *Discoverer) excluded(path string) bool {
	return validation.Excluded(path, d.Exclude)
}

// validatePath cleans path and rejects traversal outside the base directory.
func (d *Discoverer) validatePath(path string) (string, error) {
	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return "", errors.PathValidationError(path, "contains directory traversal")
	}

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}

	base, err := d.cachedBaseDir()
	if err != nil {
		return "", fmt.Errorf("getting base directory: %w", err)
	}

	if absPath != base && !strings.HasPrefix(absPath, base+string(filepath.Separator)) {
		return "", errors.PathValidationError(path, "outside "+base)
	}

	return cleanPath, nil
}

// cachedBaseDir resolves the base directory once.
func (d *Discoverer) cachedBaseDir() (string, error) {
	d.pathCache.mu.RLock()
	if d.pathCache.initialized {
		base := d.pathCache.baseDir
		d.pathCache.mu.RUnlock()
		return base, nil
	}
	d.pathCache.mu.RUnlock()

	d.pathCache.mu.Lock()
	defer d.pathCache.mu.Unlock()

	if d.pathCache.initialized {
		return d.pathCache.baseDir, nil
	}

	base := d.baseDir
	if base == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		base = cwd
	}

	abs, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}

	d.pathCache.baseDir = abs
	d.pathCache.initialized = true

	return abs, nil
}
