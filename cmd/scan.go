package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/chtl/internal/errors"
	"github.com/conneroisu/chtl/internal/fragment"
	"github.com/conneroisu/chtl/internal/scanner"
	"github.com/conneroisu/chtl/internal/validation"
)

var scanStd StandardFlags

var scanCmd = &cobra.Command{
	Use:     "scan <file>",
	Aliases: []string{"s"},
	Short:   "Show how a source is split into fragments",
	Long: `Scan a CHTL source and list its fragments in document order with their
category, position and size. Use "-" to read from standard input.

Examples:
  chtl scan page.chtl
  chtl scan page.chtl --format json
  cat page.chtl | chtl scan -`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanStd.AddStandardFlags(scanCmd, "format", "verbose")
}

type scanOutput struct {
	File       string                    `json:"file" yaml:"file"`
	Fragments  []fragment.CodeFragment   `json:"fragments" yaml:"fragments"`
	Boundaries map[fragment.Category]int `json:"boundaries" yaml:"boundaries"`
	Ambiguous  []string                  `json:"ambiguous,omitempty" yaml:"ambiguous,omitempty"`
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}
	env, err := newEnvironment(cfg)
	if err != nil {
		return err
	}
	defer env.Close()

	src, err := readSource(cmd, args[0])
	if err != nil {
		return err
	}
	report, err := scanner.New(scanner.WithLogger(env.logger)).Analyze(commandContext(cmd), src)
	if err != nil {
		return fmt.Errorf("%s: %s", args[0], errors.FormatError(err))
	}

	result := scanOutput{
		File:       args[0],
		Fragments:  report.Fragments,
		Boundaries: report.Boundaries.Counts(),
	}
	for _, amb := range report.Ambiguous {
		result.Ambiguous = append(result.Ambiguous, amb.Error())
	}

	return render(cmd.OutOrStdout(), scanStd.Format, result, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "#\tCATEGORY\tPOSITION\tBYTES\tCONTENT")
		for i, f := range result.Fragments {
			content := f.Content
			if !scanStd.Verbose {
				content = preview(content, 40)
			}
			fmt.Fprintf(tw, "%d\t%s\t%d:%d\t%d\t%s\n", i+1, title(f.Category.String()), f.Line, f.Column, f.Len(), content)
		}
		for _, a := range result.Ambiguous {
			fmt.Fprintf(tw, "\nwarning: %s", a)
		}
	})
}

// readSource reads a source file, or standard input for "-".
func readSource(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", errors.FileOperationError("read", "stdin", err)
		}
		return string(data), nil
	}
	if err := validation.ValidatePath(path); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", errors.FileOperationError("read", path, err)
	}
	return string(data), nil
}

// preview flattens content to one line of at most n runes.
func preview(content string, n int) string {
	flat := strings.Join(strings.Fields(content), " ")
	runes := []rune(flat)
	if len(runes) <= n {
		return flat
	}
	return string(runes[:n-3]) + "..."
}
