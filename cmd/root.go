// Package cmd provides the chtl command-line interface.
//
// Configuration is read, from highest to lowest priority, from command-line
// flags, CHTL_* environment variables (CHTL_OUTPUT_DIR, CHTL_COMPILER_WORKERS
// and so on), the file named by --config or CHTL_CONFIG_FILE, and .chtl.yml
// in the working directory.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/chtl/internal/cache"
	"github.com/conneroisu/chtl/internal/compilers"
	"github.com/conneroisu/chtl/internal/config"
	"github.com/conneroisu/chtl/internal/dispatcher"
	"github.com/conneroisu/chtl/internal/logging"
)

var (
	cfgFile string
	profile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chtl",
	Short: "Compile CHTL documents into HTML, CSS and JavaScript",
	Long: `chtl compiles mixed-language CHTL documents. Each source is split into
fragments (element blocks, raw markup, style and script blocks, comments),
every fragment is compiled by the compiler registered for its category, and
the outputs are merged into one HTML, one CSS and one JavaScript artifact.

Quick Start:
  chtl compile                    Compile every .chtl file under the input paths
  chtl compile page.chtl -o dist  Compile one file into dist/
  chtl scan page.chtl             Show how a file is split into fragments
  chtl watch                      Recompile on every change

Command Aliases:
  compile (c), scan (s), separate (sep), watch (w)`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is .chtl.yml, can also use CHTL_CONFIG_FILE env var)")
	pf.StringVar(&profile, "profile", "", "preset: development or production")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "text", "log format (text, json)")
	pf.String("log-dir", "", "write logs to a dated file in this directory")
	_ = viper.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = viper.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = viper.BindPFlag("log.dir", pf.Lookup("log-dir"))

	AddFlagValidation(rootCmd, "profile", func(p string) error {
		_, err := config.ParseProfile(p)
		return err
	})
}

// initConfig points viper at the config file and environment. A missing
// config file is not an error; a malformed one is reported when a command
// loads the configuration.
func initConfig() {
	file := cfgFile
	if file == "" {
		file = os.Getenv("CHTL_CONFIG_FILE")
	}
	config.Configure(viper.GetViper(), file)

	configReadErr = nil
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			configReadErr = err
		}
		return
	}
	if v := viper.GetString("log.level"); v == "debug" {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

var configReadErr error

// loadConfig builds the configuration for a command run.
func loadConfig(args []string) (*config.Config, error) {
	if configReadErr != nil {
		return nil, fmt.Errorf("failed to read config file: %w", configReadErr)
	}
	p, err := config.ParseProfile(profile)
	if err != nil {
		return nil, err
	}
	cfg, err := config.NewBuilder(viper.GetViper()).WithProfile(p).WithTargets(args).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// environment is everything a compiling command needs.
type environment struct {
	cfg        *config.Config
	logger     logging.Logger
	cache      *cache.Cache
	dispatcher *dispatcher.Dispatcher
	closeLog   func() error
}

func newEnvironment(cfg *config.Config) (*environment, error) {
	var logger logging.Logger
	closeLog := func() error { return nil }
	if cfg.Log.Dir != "" {
		fl, err := logging.NewFileLogger(cfg.LoggerConfig(), cfg.Log.Dir)
		if err != nil {
			return nil, err
		}
		logger, closeLog = fl, fl.Close
	} else {
		logger = logging.NewLogger(cfg.LoggerConfig())
	}

	opts := dispatcher.DefaultOptions()
	opts.Parallel = cfg.Compiler.Parallel
	opts.Workers = cfg.Workers()
	opts.Merger = cfg.MergerOptions()
	opts.Logger = logger
	if cfg.Compiler.CacheSize > 0 {
		opts.Cache = cache.New(cfg.Compiler.CacheSize, cfg.Compiler.CacheTTL)
	}

	return &environment{
		cfg:        cfg,
		logger:     logger,
		cache:      opts.Cache,
		dispatcher: dispatcher.New(compilers.DefaultRegistry(logger), opts),
		closeLog:   closeLog,
	}, nil
}

// Close releases the log file, if any.
func (e *environment) Close() error {
	if e.closeLog == nil {
		return nil
	}
	return e.closeLog()
}

// targets returns the command-line paths, or the configured input paths.
func (e *environment) targets() []string {
	if len(e.cfg.TargetFiles) > 0 {
		return e.cfg.TargetFiles
	}
	return e.cfg.Input.Paths
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
