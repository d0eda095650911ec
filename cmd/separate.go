package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/chtl/internal/fragment"
	"github.com/conneroisu/chtl/internal/scanner"
)

var (
	separateStd      StandardFlags
	separateCategory string
)

var separateCmd = &cobra.Command{
	Use:     "separate <file>",
	Aliases: []string{"sep"},
	Short:   "Group a source's fragments by category",
	Long: `Separate a CHTL source into its fragment categories. Without --category
the fragment counts per category are listed; with it, the bodies of that
category's fragments are printed in document order.

Examples:
  chtl separate page.chtl
  chtl separate page.chtl --category style
  chtl separate page.chtl --category script --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runSeparate,
}

func init() {
	rootCmd.AddCommand(separateCmd)
	separateCmd.Flags().StringVarP(&separateCategory, "category", "c", "", "print the fragments of one category (dsl, script, style, markup, comment, text)")
	separateStd.AddStandardFlags(separateCmd, "format")
	AddFlagValidation(separateCmd, "category", func(name string) error {
		_, err := fragment.ParseCategory(name)
		return err
	})
}

type categoryCount struct {
	Category fragment.Category `json:"category" yaml:"category"`
	Count    int               `json:"count" yaml:"count"`
}

func runSeparate(cmd *cobra.Command, args []string) error {
	src, err := readSource(cmd, args[0])
	if err != nil {
		return err
	}
	sep, err := scanner.New().Separate(commandContext(cmd), src)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if separateCategory == "" {
		counts := sep.Counts()
		var rows []categoryCount
		for _, c := range sep.Categories() {
			rows = append(rows, categoryCount{Category: c, Count: counts[c]})
		}
		return render(out, separateStd.Format, rows, func(tw *tabwriter.Writer) {
			fmt.Fprintln(tw, "CATEGORY\tFRAGMENTS")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%d\n", title(r.Category.String()), r.Count)
			}
		})
	}

	cat, err := fragment.ParseCategory(separateCategory)
	if err != nil {
		return err
	}
	frags := sep.ByCategory(cat)
	if separateStd.Format == "json" || separateStd.Format == "yaml" {
		return render(out, separateStd.Format, frags, nil)
	}
	for _, f := range frags {
		fmt.Fprintf(out, "// %s %d:%d\n%s\n", f.Category, f.Line, f.Column, strings.TrimSpace(f.Body()))
	}
	return nil
}
