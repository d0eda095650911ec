package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/chtl/internal/errors"
	"github.com/conneroisu/chtl/internal/scanner"
	"github.com/conneroisu/chtl/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:     "watch [directories...]",
	Aliases: []string{"w"},
	Short:   "Recompile sources whenever they change",
	Long: `Compile every source once, then watch the input directories and
recompile each changed source after a quiet period (watch.debounce).

When a source fails to compile and watch.overlay is enabled, its HTML
artifact is replaced by an error page listing the diagnostics, so a page
open in a browser shows the problem on its next reload.

Examples:
  chtl watch
  chtl watch pages/ -o public`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().AddFlagSet(compileFlags())
	watchCmd.Flags().Duration("debounce", 0, "quiet period before recompiling (default from watch.debounce)")
	watchCmd.Flags().Bool("overlay", true, "write an error page when a source fails")
	_ = viper.BindPFlag("watch.debounce", watchCmd.Flags().Lookup("debounce"))
	_ = viper.BindPFlag("watch.overlay", watchCmd.Flags().Lookup("overlay"))
}

func runWatch(cmd *cobra.Command, args []string) error {
	if err := bindCompileFlags(cmd, viper.GetViper()); err != nil {
		return err
	}
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	env, err := newEnvironment(cfg)
	if err != nil {
		return err
	}
	defer env.Close()
	out := cmd.OutOrStdout()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(out, "📁 Performing initial compile...")
	files, err := scanner.NewDiscoverer("", cfg.Input.Include, cfg.Input.Exclude).Discover(ctx, env.targets())
	if err != nil {
		return err
	}
	if err := recompile(cmd, env, files); err != nil {
		return err
	}

	fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, env.logger)
	if err != nil {
		return err
	}
	defer fw.Stop()

	fw.Exclude(cfg.Input.Exclude...)
	fw.Exclude(cfg.Output.Dir)
	if cfg.Input.Include == "" {
		fw.AddFilter(watcher.ChtlFilter)
	} else {
		fw.AddFilter(sourceFilter(watchRoots(env.targets()), cfg.Input.Include))
	}
	fw.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		var changed []string
		for _, e := range events {
			fmt.Fprintf(out, "   %s: %s\n", e.Type, e.Path)
			if e.Type == watcher.EventTypeDeleted || e.Type == watcher.EventTypeRenamed {
				continue
			}
			changed = append(changed, e.Path)
		}
		if len(changed) == 0 {
			return nil
		}
		fmt.Fprintf(out, "📁 %d file(s) changed\n", len(changed))
		return recompile(cmd, env, changed)
	})

	fmt.Fprintln(out, "🔍 Setting up file watching...")
	for _, root := range watchRoots(env.targets()) {
		if err := fw.AddRecursive(root); err != nil {
			return fmt.Errorf("failed to watch %s: %w", root, err)
		}
		fmt.Fprintf(out, "   - Watching: %s\n", root)
	}
	fmt.Fprintf(out, "   %d directories watched\n", len(fw.WatchList()))
	if err := fw.Start(ctx); err != nil {
		return err
	}

	fmt.Fprintln(out, "👀 Watching for changes... (Press Ctrl+C to stop)")
	<-ctx.Done()
	fmt.Fprintln(out, "\n🛑 Stopping file watcher...")
	return nil
}

// recompile compiles files and, for each failure, writes the error page
// when overlays are enabled.
func recompile(cmd *cobra.Command, env *environment, files []string) error {
	if len(files) == 0 {
		return nil
	}
	report, err := compileFiles(cmd, env, files)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if report.failed == 0 {
		fmt.Fprintf(out, "✅ Compiled %d file(s) in %v\n", report.succeeded, report.elapsed)
		return nil
	}
	fmt.Fprintf(out, "❌ %d of %d file(s) failed\n", report.failed, len(files))
	if !env.cfg.Watch.Overlay {
		return nil
	}
	return writeOverlays(commandContext(cmd), env, report.collector)
}

// writeOverlays replaces the HTML artifact of every failed file with an
// error page for that file.
func writeOverlays(ctx context.Context, env *environment, collector *errors.ErrorCollector) error {
	failed := make(map[string]bool)
	for _, d := range collector.Diagnostics() {
		if d.Severity >= errors.ErrorSeverityError {
			failed[d.File] = true
		}
	}
	for file := range failed {
		single := errors.NewErrorCollector()
		for _, d := range collector.ByFile(file) {
			single.Add(d)
		}
		page, err := single.Overlay(ctx, "chtl: "+file)
		if err != nil {
			return err
		}
		dir := outputDirFor(env.cfg.Output.Dir, file)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.FileOperationError("create", dir, err)
		}
		base := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		path := filepath.Join(dir, base+".html")
		if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
			return errors.FileOperationError("write", path, err)
		}
	}
	return nil
}

// watchRoots returns the directories to watch for the given targets.
func watchRoots(targets []string) []string {
	seen := make(map[string]bool)
	var roots []string
	for _, t := range targets {
		root := filepath.Clean(t)
		if info, err := os.Stat(root); err == nil && !info.IsDir() {
			root = filepath.Dir(root)
		}
		if !seen[root] {
			seen[root] = true
			roots = append(roots, root)
		}
	}
	return roots
}

// sourceFilter accepts files matching include below any of roots.
func sourceFilter(roots []string, include string) watcher.FileFilter {
	filters := make([]watcher.FileFilter, len(roots))
	for i, root := range roots {
		filters[i] = watcher.PatternFilter(root, include)
	}
	return func(path string) bool {
		for _, f := range filters {
			if f(path) {
				return true
			}
		}
		return false
	}
}
