// Package validation checks user-supplied paths and glob patterns before
// they reach the file system.
package validation

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// dangerousChars are shell metacharacters rejected in paths and patterns.
var dangerousChars = []string{";", "&", "|", "$", "`", "<", ">"}

// restrictedPrefixes are system locations the compiler never reads or writes.
var restrictedPrefixes = []string{
	"/etc/",
	"/proc/",
	"/sys/",
	"/dev/",
	"/boot/",
}

// ValidatePath rejects empty paths, parent directory traversal, system
// directories and shell metacharacters.
func ValidatePath(p string) error {
	if p == "" {
		return fmt.Errorf("path cannot be empty")
	}

	clean := filepath.ToSlash(filepath.Clean(p))
	for _, seg := range strings.Split(clean, "/") {
		if seg == ".." {
			return fmt.Errorf("path traversal detected: %s", p)
		}
	}

	lower := strings.ToLower(clean)
	for _, restricted := range restrictedPrefixes {
		if strings.HasPrefix(lower+"/", restricted) {
			return fmt.Errorf("access to restricted path denied: %s", p)
		}
	}

	if err := checkChars(p); err != nil {
		return fmt.Errorf("path %w", err)
	}
	return nil
}

// ValidatePattern checks that a glob pattern is well formed. "**" matches
// any number of directories and is accepted as a whole segment.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("pattern cannot be empty")
	}
	if err := checkChars(pattern); err != nil {
		return fmt.Errorf("pattern %w", err)
	}
	for _, seg := range strings.Split(filepath.ToSlash(pattern), "/") {
		if seg == "**" {
			continue
		}
		if strings.Contains(seg, "**") {
			return fmt.Errorf("pattern %q: ** must be a whole path segment", pattern)
		}
		if _, err := path.Match(seg, ""); err != nil {
			return fmt.Errorf("pattern %q: %w", pattern, err)
		}
	}
	return nil
}

// ValidateFileExtension checks filename against an allowlist of extensions.
func ValidateFileExtension(filename string, allowedExtensions []string) error {
	if filename == "" {
		return fmt.Errorf("filename cannot be empty")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return fmt.Errorf("file must have an extension")
	}

	for _, allowed := range allowedExtensions {
		if ext == strings.ToLower(allowed) {
			return nil
		}
	}

	return fmt.Errorf("file extension '%s' is not allowed", ext)
}

func checkChars(s string) error {
	for _, char := range dangerousChars {
		if strings.Contains(s, char) {
			return fmt.Errorf("contains dangerous character: %s", char)
		}
	}
	return nil
}
