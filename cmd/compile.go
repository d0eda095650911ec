package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/chtl/internal/dispatcher"
	"github.com/conneroisu/chtl/internal/errors"
	"github.com/conneroisu/chtl/internal/scanner"
)

var (
	compileStd   StandardFlags
	compileStats bool
)

var compileCmd = &cobra.Command{
	Use:     "compile [files or directories...]",
	Aliases: []string{"c", "build"},
	Short:   "Compile CHTL sources into HTML, CSS and JavaScript",
	Long: `Compile every CHTL source found under the given paths, or under the
configured input paths when none are given. Each source produces
<name>.html, plus <name>.css and <name>.js when those are non-empty, in the
output directory, mirroring the source's directory.

A failing file is reported and never stops the others; the command exits
non-zero if any file failed.

Examples:
  chtl compile
  chtl compile pages/ -o public --minify
  chtl compile index.chtl --parallel --stats`,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().AddFlagSet(compileFlags())
	compileCmd.Flags().BoolVar(&compileStats, "stats", false, "print pipeline and cache statistics")
	compileStd.AddStandardFlags(compileCmd, "verbose", "quiet")
}

func runCompile(cmd *cobra.Command, args []string) error {
	if err := compileStd.ValidateFlags(); err != nil {
		return err
	}
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
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	files, err := scanner.NewDiscoverer("", cfg.Input.Include, cfg.Input.Exclude).Discover(ctx, env.targets())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		if !compileStd.Quiet {
			fmt.Fprintln(out, "No CHTL sources found")
		}
		return nil
	}

	if cfg.Output.Clean {
		if err := os.RemoveAll(cfg.Output.Dir); err != nil {
			return errors.FileOperationError("remove", cfg.Output.Dir, err)
		}
	}

	report, err := compileFiles(cmd, env, files)
	if err != nil {
		return err
	}

	if !compileStd.Quiet {
		fmt.Fprintf(out, "Compiled %d of %d files into %s in %v\n",
			report.succeeded, len(files), cfg.Output.Dir, report.elapsed.Round(time.Millisecond))
	}
	if compileStats {
		printStats(out, env)
	}
	if report.failed > 0 {
		return fmt.Errorf("%d of %d files failed to compile", report.failed, len(files))
	}
	return nil
}

type compileReport struct {
	succeeded int
	failed    int
	written   []string
	elapsed   time.Duration
	collector *errors.ErrorCollector
}

// compileFiles runs one batch over files and writes the artifacts of every
// file that compiled.
func compileFiles(cmd *cobra.Command, env *environment, files []string) (*compileReport, error) {
	start := time.Now()
	report := &compileReport{collector: errors.NewErrorCollector()}

	batch := dispatcher.NewBatch(env.dispatcher, env.cfg.Workers())
	batch.Collector = report.collector
	batch.Logger = env.logger

	errOut := cmd.ErrOrStderr()
	for _, res := range batch.Run(commandContext(cmd), files) {
		if res.Err != nil {
			report.failed++
			fmt.Fprintln(errOut, errors.FormatError(res.Err))
			continue
		}
		written, err := dispatcher.WriteArtifacts(outputDirFor(env.cfg.Output.Dir, res.Path), res.Path, res.Result.Output)
		if err != nil {
			return nil, err
		}
		report.succeeded++
		report.written = append(report.written, written...)
		if compileStd.Verbose {
			for _, w := range res.Result.Warnings {
				fmt.Fprintln(errOut, "warning:", w.Error())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "  %s -> %d files (%v)\n", res.Path, len(written), res.Duration.Round(time.Microsecond))
		}
	}
	report.elapsed = time.Since(start)
	return report, nil
}

// outputDirFor mirrors the source's directory below outDir.
func outputDirFor(outDir, src string) string {
	dir := filepath.Dir(src)
	if filepath.IsAbs(dir) {
		if wd, err := os.Getwd(); err == nil {
			if rel, err := filepath.Rel(wd, dir); err == nil {
				dir = rel
			}
		}
	}
	if dir == "." || filepath.IsAbs(dir) {
		return outDir
	}
	return filepath.Join(outDir, dir)
}

func printStats(w io.Writer, env *environment) {
	snap := env.dispatcher.Metrics().Snapshot()
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nSTAGE\tTIME")
	for _, stage := range []string{dispatcher.StageScan, dispatcher.StageCompile, dispatcher.StageMerge} {
		fmt.Fprintf(tw, "%s\t%v\n", title(stage), snap.StageDurations[stage].Round(time.Microsecond))
	}
	fmt.Fprintf(tw, "Files\t%d processed, %d failed\n", snap.FilesProcessed, snap.FilesFailed)
	fmt.Fprintf(tw, "Average\t%v\n", snap.AverageDuration.Round(time.Microsecond))
	if env.cache != nil {
		st := env.cache.Stats()
		fmt.Fprintf(tw, "Cache\t%d hits, %d misses (%.0f%%), %d entries\n", st.Hits, st.Misses, st.HitRate*100, st.Entries)
	}
	_ = tw.Flush()
}
