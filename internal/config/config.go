// Package config loads compiler settings using Viper from a .chtl.yml file,
// environment variables with the CHTL_ prefix and command-line flags.
//
// Settings are grouped into input discovery, output location, compiler
// scheduling and caching, merger post-processing, watch mode and logging.
// Load applies defaults for anything unset and validates the result.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/chtl/internal/errors"
	"github.com/conneroisu/chtl/internal/logging"
	"github.com/conneroisu/chtl/internal/merger"
	"github.com/conneroisu/chtl/internal/validation"
)

// FileName is the configuration file looked up in the working directory.
const FileName = ".chtl.yml"

// EnvPrefix prefixes environment overrides, e.g. CHTL_OUTPUT_DIR.
const EnvPrefix = "CHTL"

type Config struct {
	Input    InputConfig    `mapstructure:"input" yaml:"input"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Compiler CompilerConfig `mapstructure:"compiler" yaml:"compiler"`
	Merger   MergerConfig   `mapstructure:"merger" yaml:"merger"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	// TargetFiles are CLI arguments, not read from the config file.
	TargetFiles []string `mapstructure:"-" yaml:"-"`
}

type InputConfig struct {
	Paths   []string `mapstructure:"paths" yaml:"paths"`
	Include string   `mapstructure:"include" yaml:"include"`
	Exclude []string `mapstructure:"exclude" yaml:"exclude"`
}

type OutputConfig struct {
	Dir   string `mapstructure:"dir" yaml:"dir"`
	Clean bool   `mapstructure:"clean" yaml:"clean"`
}

type CompilerConfig struct {
	Parallel bool `mapstructure:"parallel" yaml:"parallel"`
	// Workers bounds concurrent fragments and files. Zero means one per CPU.
	Workers   int           `mapstructure:"workers" yaml:"workers"`
	CacheSize int64         `mapstructure:"cache_size" yaml:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

type MergerConfig struct {
	Minify           bool     `mapstructure:"minify" yaml:"minify"`
	PreserveComments bool     `mapstructure:"preserve_comments" yaml:"preserve_comments"`
	SourceMaps       bool     `mapstructure:"source_maps" yaml:"source_maps"`
	MergeOrder       []string `mapstructure:"merge_order" yaml:"merge_order"`
}

type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
	Overlay  bool          `mapstructure:"overlay" yaml:"overlay"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	// Dir receives a dated log file instead of stderr when set.
	Dir string `mapstructure:"dir" yaml:"dir,omitempty"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("input.paths", []string{"."})
	v.SetDefault("input.include", "**/*.chtl")
	v.SetDefault("input.exclude", []string{"node_modules", ".git", "*.bak"})

	v.SetDefault("output.dir", "dist")
	v.SetDefault("output.clean", false)

	v.SetDefault("compiler.parallel", false)
	v.SetDefault("compiler.workers", 0)
	v.SetDefault("compiler.cache_size", 32<<20)
	v.SetDefault("compiler.cache_ttl", "10m")

	order := make([]string, 0, len(merger.CodeTypes()))
	for _, t := range merger.CodeTypes() {
		order = append(order, string(t))
	}
	v.SetDefault("merger.minify", false)
	v.SetDefault("merger.preserve_comments", true)
	v.SetDefault("merger.source_maps", false)
	v.SetDefault("merger.merge_order", order)

	v.SetDefault("watch.debounce", "300ms")
	v.SetDefault("watch.overlay", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.dir", "")
}

// Configure points v at the config file and environment. An explicit file
// wins over the FileName lookup in the working directory.
func Configure(v *viper.Viper, file string) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(strings.TrimSuffix(FileName, ".yml"))
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
}

// Load reads the configuration held by the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	config, err := unmarshal(v)
	if err != nil {
		return nil, err
	}
	if err := validateConfig(config); err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "invalid configuration")
	}
	return config, nil
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "decode configuration")
	}

	// Comma separated environment values arrive with their spaces.
	config.Input.Paths = trimAll(config.Input.Paths)
	config.Input.Exclude = trimAll(config.Input.Exclude)
	config.Merger.MergeOrder = trimAll(config.Merger.MergeOrder)
	return &config, nil
}

func trimAll(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Workers returns the effective worker count.
func (c *Config) Workers() int {
	if c.Compiler.Workers > 0 {
		return c.Compiler.Workers
	}
	return runtime.NumCPU()
}

// MergerOptions converts the merger section. Validation has already
// rejected unknown merge order names.
func (c *Config) MergerOptions() merger.Options {
	opts := merger.Options{
		Minify:             c.Merger.Minify,
		PreserveComments:   c.Merger.PreserveComments,
		PreserveSourceMaps: c.Merger.SourceMaps,
	}
	for _, name := range c.Merger.MergeOrder {
		if t, err := merger.ParseCodeType(name); err == nil {
			opts.MergeOrder = append(opts.MergeOrder, t)
		}
	}
	return opts
}

// LoggerConfig converts the log section.
func (c *Config) LoggerConfig() *logging.LoggerConfig {
	lc := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		lc.Level = level
	}
	lc.Format = c.Log.Format
	return lc
}

// validateConfig validates configuration values for security and correctness
func validateConfig(config *Config) error {
	if err := validateInputConfig(&config.Input); err != nil {
		return fmt.Errorf("input config: %w", err)
	}
	if err := validateOutputConfig(&config.Output); err != nil {
		return fmt.Errorf("output config: %w", err)
	}
	if err := validateCompilerConfig(&config.Compiler); err != nil {
		return fmt.Errorf("compiler config: %w", err)
	}
	if err := validateMergerConfig(&config.Merger); err != nil {
		return fmt.Errorf("merger config: %w", err)
	}
	if config.Watch.Debounce < 0 {
		return fmt.Errorf("watch config: debounce %s is negative", config.Watch.Debounce)
	}
	if err := validateLogConfig(&config.Log); err != nil {
		return fmt.Errorf("log config: %w", err)
	}
	return nil
}

func validateInputConfig(config *InputConfig) error {
	for _, path := range config.Paths {
		if err := validation.ValidatePath(path); err != nil {
			return fmt.Errorf("invalid input path '%s': %w", path, err)
		}
	}
	if config.Include != "" {
		if err := validation.ValidatePattern(config.Include); err != nil {
			return fmt.Errorf("include: %w", err)
		}
	}
	for _, p := range config.Exclude {
		if err := validation.ValidatePattern(p); err != nil {
			return fmt.Errorf("exclude: %w", err)
		}
	}
	return nil
}

func validateOutputConfig(config *OutputConfig) error {
	if config.Dir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	return validation.ValidatePath(config.Dir)
}

// maxWorkers caps the worker pool size.
const maxWorkers = 256

func validateCompilerConfig(config *CompilerConfig) error {
	if config.Workers < 0 || config.Workers > maxWorkers {
		return fmt.Errorf("workers %d is not in valid range 0-%d", config.Workers, maxWorkers)
	}
	if config.CacheSize < 0 {
		return fmt.Errorf("cache_size %d is negative", config.CacheSize)
	}
	if config.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl %s is negative", config.CacheTTL)
	}
	return nil
}

func validateMergerConfig(config *MergerConfig) error {
	seen := make(map[merger.CodeType]bool)
	for _, name := range config.MergeOrder {
		t, err := merger.ParseCodeType(name)
		if err != nil {
			return fmt.Errorf("merge_order: %w", err)
		}
		if seen[t] {
			return fmt.Errorf("merge_order lists %q twice", t)
		}
		seen[t] = true
	}
	return nil
}

func validateLogConfig(config *LogConfig) error {
	if _, err := logging.ParseLevel(config.Level); err != nil {
		return err
	}
	if config.Format != "text" && config.Format != "json" {
		return fmt.Errorf("unknown log format %q (want text or json)", config.Format)
	}
	if config.Dir != "" {
		if err := validation.ValidatePath(config.Dir); err != nil {
			return fmt.Errorf("log dir: %w", err)
		}
	}
	return nil
}
