package validation

import (
	"path"
	"path/filepath"
	"strings"
)

// Match reports whether name matches a slash-separated glob pattern. A
// "**" segment matches zero or more directories. A pattern without a slash
// is matched against the base name only.
func Match(pattern, name string) bool {
	pattern = filepath.ToSlash(pattern)
	name = filepath.ToSlash(name)
	if !strings.Contains(pattern, "/") {
		ok, _ := path.Match(pattern, path.Base(name))
		return ok
	}
	return matchSegments(strings.Split(pattern, "/"), strings.Split(strings.TrimPrefix(name, "./"), "/"))
}

func matchSegments(pattern, name []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			for i := 0; i <= len(name); i++ {
				if matchSegments(rest, name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		if ok, _ := path.Match(pattern[0], name[0]); !ok {
			return false
		}
		pattern, name = pattern[1:], name[1:]
	}
	return len(name) == 0
}

// Excluded reports whether any segment of name, or name itself, matches
// one of the patterns.
func Excluded(name string, patterns []string) bool {
	name = filepath.ToSlash(name)
	for _, p := range patterns {
		if Match(p, name) {
			return true
		}
		if strings.Contains(p, "/") {
			continue
		}
		for _, seg := range strings.Split(name, "/") {
			if ok, _ := path.Match(p, seg); ok {
				return true
			}
		}
	}
	return false
}
