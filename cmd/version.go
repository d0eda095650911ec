package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/conneroisu/chtl/internal/version"
)

var (
	versionFormat string
	versionShort  bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		info := version.Get()
		out := cmd.OutOrStdout()
		if versionShort {
			fmt.Fprintln(out, info.Short())
			return nil
		}
		if versionFormat == "table" {
			fmt.Fprintln(out, info.Detailed())
			if !info.IsRelease() {
				fmt.Fprintln(out, "Development build")
			}
			return nil
		}
		return render(out, versionFormat, info, func(*tabwriter.Writer) {})
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().StringVarP(&versionFormat, "format", "f", "table", "output format (table, json, yaml)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print only the version")
	AddFlagValidation(versionCmd, "format", ValidateFormatWithSuggestion)
}
