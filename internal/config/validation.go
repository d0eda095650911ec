package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/conneroisu/chtl/internal/logging"
	"github.com/conneroisu/chtl/internal/merger"
	"github.com/conneroisu/chtl/internal/validation"
)

// ValidationError represents a configuration validation error with suggestions
type ValidationError struct {
	Field       string
	Value       interface{}
	Message     string
	Suggestions []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %s: %s", ve.Field, ve.Message)
}

// ValidationResult holds the result of configuration validation
type ValidationResult struct {
	Valid    bool
	Errors   []ValidationError
	Warnings []ValidationError
}

// HasErrors returns true if there are any validation errors
func (vr *ValidationResult) HasErrors() bool {
	return len(vr.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings
func (vr *ValidationResult) HasWarnings() bool {
	return len(vr.Warnings) > 0
}

// String returns a formatted string of all validation issues
func (vr *ValidationResult) String() string {
	var builder strings.Builder

	write := func(header string, issues []ValidationError) {
		if len(issues) == 0 {
			return
		}
		builder.WriteString(header)
		for _, issue := range issues {
			builder.WriteString(fmt.Sprintf("  • %s: %s\n", issue.Field, issue.Message))
			for _, suggestion := range issue.Suggestions {
				builder.WriteString(fmt.Sprintf("    💡 %s\n", suggestion))
			}
		}
	}

	write("❌ Validation Errors:\n", vr.Errors)
	if len(vr.Errors) > 0 && len(vr.Warnings) > 0 {
		builder.WriteString("\n")
	}
	write("⚠️  Validation Warnings:\n", vr.Warnings)

	return builder.String()
}

func (vr *ValidationResult) addError(field string, value interface{}, msg string, suggestions ...string) {
	vr.Errors = append(vr.Errors, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

func (vr *ValidationResult) addWarning(field string, value interface{}, msg string, suggestions ...string) {
	vr.Warnings = append(vr.Warnings, ValidationError{Field: field, Value: value, Message: msg, Suggestions: suggestions})
}

// ValidateConfigWithDetails reports every problem in config instead of
// stopping at the first, and adds warnings for settings that are legal but
// probably unintended.
func ValidateConfigWithDetails(config *Config) *ValidationResult {
	result := &ValidationResult{}

	validateInputDetails(&config.Input, result)
	validateOutputDetails(config, result)
	validateCompilerDetails(&config.Compiler, result)
	validateMergerDetails(&config.Merger, result)
	validateWatchDetails(&config.Watch, result)
	validateLogDetails(&config.Log, result)

	result.Valid = !result.HasErrors()
	return result
}

func validateInputDetails(config *InputConfig, result *ValidationResult) {
	if len(config.Paths) == 0 {
		result.addWarning("input.paths", config.Paths, "no input paths - only files named on the command line are compiled",
			"Add '.' to compile every matching file under the working directory")
	}
	for i, path := range config.Paths {
		field := fmt.Sprintf("input.paths[%d]", i)
		if err := validation.ValidatePath(path); err != nil {
			result.addError(field, path, err.Error(),
				"Use paths relative to the project root",
				"Avoid parent directory references (..)")
			continue
		}
		if _, err := os.Stat(path); err != nil {
			result.addWarning(field, path, "path does not exist",
				"Create it: mkdir -p "+path,
				"Remove the path if not needed")
		}
	}

	if config.Include == "" {
		result.addWarning("input.include", config.Include, "no include pattern - every file under the input paths is compiled",
			"Use '**/*.chtl'")
	} else if err := validation.ValidatePattern(config.Include); err != nil {
		result.addError("input.include", config.Include, err.Error())
	}

	for i, p := range config.Exclude {
		if err := validation.ValidatePattern(p); err != nil {
			result.addError(fmt.Sprintf("input.exclude[%d]", i), p, err.Error())
		}
	}
}

func validateOutputDetails(config *Config, result *ValidationResult) {
	dir := config.Output.Dir
	if dir == "" {
		result.addError("output.dir", dir, "output dir cannot be empty", "Use 'dist'")
		return
	}
	if err := validation.ValidatePath(dir); err != nil {
		result.addError("output.dir", dir, err.Error())
		return
	}
	if config.Output.Clean && filepath.Clean(dir) == "." {
		result.addError("output.dir", dir, "clean would remove the working directory",
			"Point output.dir at a dedicated directory such as 'dist'")
	}
	for _, in := range config.Input.Paths {
		if filepath.Clean(in) == filepath.Clean(dir) {
			result.addWarning("output.dir", dir, "output dir is also an input path",
				"Keep generated files out of the input tree")
		}
	}
}

func validateCompilerDetails(config *CompilerConfig, result *ValidationResult) {
	if config.Workers < 0 || config.Workers > maxWorkers {
		result.addError("compiler.workers", config.Workers,
			fmt.Sprintf("workers %d is not in valid range 0-%d", config.Workers, maxWorkers),
			"Use 0 for one worker per CPU")
	} else if config.Workers > 4*runtime.NumCPU() {
		result.addWarning("compiler.workers", config.Workers,
			fmt.Sprintf("more than four workers per CPU (%d CPUs)", runtime.NumCPU()))
	}
	if config.Workers > 1 && !config.Parallel {
		result.addWarning("compiler.workers", config.Workers, "workers only bound batch concurrency while parallel is off",
			"Set compiler.parallel: true to compile fragments concurrently")
	}

	switch {
	case config.CacheSize < 0:
		result.addError("compiler.cache_size", config.CacheSize, "cache size is negative")
	case config.CacheSize == 0:
		result.addWarning("compiler.cache_size", config.CacheSize, "compiled output cache is disabled")
	}
	if config.CacheTTL < 0 {
		result.addError("compiler.cache_ttl", config.CacheTTL, "cache ttl is negative", "Use 0 to keep entries until evicted")
	}
}

func validateMergerDetails(config *MergerConfig, result *ValidationResult) {
	names := make([]string, 0, len(merger.CodeTypes()))
	for _, t := range merger.CodeTypes() {
		names = append(names, string(t))
	}

	seen := make(map[merger.CodeType]bool)
	for i, name := range config.MergeOrder {
		field := fmt.Sprintf("merger.merge_order[%d]", i)
		t, err := merger.ParseCodeType(name)
		if err != nil {
			result.addError(field, name, err.Error(), "Known code types: "+strings.Join(names, ", "))
			continue
		}
		if seen[t] {
			result.addError(field, name, fmt.Sprintf("%q is listed twice", t))
		}
		seen[t] = true
	}

	if config.Minify && config.SourceMaps {
		result.addWarning("merger.source_maps", config.SourceMaps,
			"source map offsets refer to the artifacts before minification")
	}
}

func validateWatchDetails(config *WatchConfig, result *ValidationResult) {
	switch {
	case config.Debounce < 0:
		result.addError("watch.debounce", config.Debounce, "debounce is negative")
	case config.Debounce < 50*time.Millisecond:
		result.addWarning("watch.debounce", config.Debounce, "short debounce may compile half-saved files",
			"Use at least 100ms")
	}
}

func validateLogDetails(config *LogConfig, result *ValidationResult) {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		result.addError("log.level", config.Level, err.Error(), "Use debug, info, warn or error")
	}
	if config.Format != "text" && config.Format != "json" {
		result.addError("log.format", config.Format, "unknown log format", "Use text or json")
	}
	if config.Dir != "" {
		if err := validation.ValidatePath(config.Dir); err != nil {
			result.addError("log.dir", config.Dir, err.Error())
		}
	}
}
