package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// StandardFlags holds the output flags shared by reporting commands.
type StandardFlags struct {
	Format  string
	Verbose bool
	Quiet   bool
}

var outputFormats = []string{"table", "json", "yaml"}

// AddStandardFlags registers the named standard flags on cmd.
func (sf *StandardFlags) AddStandardFlags(cmd *cobra.Command, flagTypes ...string) {
	for _, flagType := range flagTypes {
		switch flagType {
		case "format":
			cmd.Flags().StringVarP(&sf.Format, "format", "f", "table", "output format (table, json, yaml)")
			AddFlagValidation(cmd, "format", ValidateFormatWithSuggestion)
		case "verbose":
			cmd.Flags().BoolVarP(&sf.Verbose, "verbose", "v", false, "verbose output")
		case "quiet":
			cmd.Flags().BoolVarP(&sf.Quiet, "quiet", "q", false, "only print errors")
		}
	}
}

// ValidateFlags checks combinations the individual validators cannot see.
func (sf *StandardFlags) ValidateFlags() error {
	if sf.Quiet && sf.Verbose {
		return fmt.Errorf("--quiet and --verbose cannot be used together")
	}
	return nil
}

// ValidateFormatWithSuggestion rejects unknown output formats and suggests
// the closest known one.
func ValidateFormatWithSuggestion(format string) error {
	for _, f := range outputFormats {
		if format == f {
			return nil
		}
	}
	if s := closest(format, outputFormats); s != "" {
		return fmt.Errorf("invalid format %q, did you mean %q?", format, s)
	}
	return fmt.Errorf("invalid format %q (valid: %s)", format, strings.Join(outputFormats, ", "))
}

// closest returns the candidate within edit distance 2 of s, if any.
func closest(s string, candidates []string) string {
	best, bestDist := "", 3
	for _, c := range candidates {
		if d := levenshtein(strings.ToLower(s), c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur := make([]int, len(b)+1)
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev = cur
	}
	return prev[len(b)]
}

// compileFlags returns the flags that override compiler and merger
// settings, bound to their config keys by bindCompileFlags.
func compileFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("compile", pflag.ContinueOnError)
	fs.StringP("output", "o", "dist", "output directory")
	fs.Bool("clean", false, "remove the output directory before compiling")
	fs.BoolP("parallel", "p", false, "compile fragments of a file concurrently")
	fs.IntP("workers", "w", 0, "number of files compiled at once (0 = number of CPUs)")
	fs.Bool("minify", false, "minify the merged artifacts")
	fs.Bool("preserve-comments", true, "keep comments in the merged artifacts")
	fs.Bool("source-maps", false, "write a source map next to each artifact")
	fs.String("include", "**/*.chtl", "glob selecting source files")
	fs.StringSlice("exclude", nil, "patterns of files and directories to skip")
	return fs
}

var compileFlagKeys = map[string]string{
	"output":            "output.dir",
	"clean":             "output.clean",
	"parallel":          "compiler.parallel",
	"workers":           "compiler.workers",
	"minify":            "merger.minify",
	"preserve-comments": "merger.preserve_comments",
	"source-maps":       "merger.source_maps",
	"include":           "input.include",
	"exclude":           "input.exclude",
}

// bindCompileFlags binds only the flags the user set, so unset flags never
// shadow the config file or a profile.
func bindCompileFlags(cmd *cobra.Command, v interface {
	Set(key string, value interface{})
}) error {
	var err error
	cmd.Flags().Visit(func(f *pflag.Flag) {
		key, ok := compileFlagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		switch f.Value.Type() {
		case "bool":
			b, perr := cmd.Flags().GetBool(f.Name)
			err = perr
			v.Set(key, b)
		case "int":
			n, perr := cmd.Flags().GetInt(f.Name)
			err = perr
			v.Set(key, n)
		case "stringSlice":
			s, perr := cmd.Flags().GetStringSlice(f.Name)
			err = perr
			v.Set(key, s)
		default:
			v.Set(key, f.Value.String())
		}
	})
	return err
}

// AddFlagValidation wraps a flag so its value is validated when parsed.
func AddFlagValidation(cmd *cobra.Command, flagName string, validator func(string) error) {
	flag := cmd.Flags().Lookup(flagName)
	if flag == nil {
		flag = cmd.PersistentFlags().Lookup(flagName)
	}
	if flag == nil {
		return
	}
	flag.Value = &validatingValue{Value: flag.Value, validator: validator, flagName: flagName}
}

type validatingValue struct {
	pflag.Value
	validator func(string) error
	flagName  string
}

func (v *validatingValue) Set(value string) error {
	if err := v.validator(value); err != nil {
		return fmt.Errorf("invalid value for --%s: %w", v.flagName, err)
	}
	return v.Value.Set(value)
}
