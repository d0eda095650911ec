package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/chtl/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
	Long: `Show or validate the configuration after merging defaults, the profile,
the config file and CHTL_* environment variables.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil)
		if err != nil {
			return err
		}
		if file := viper.ConfigFileUsed(); file != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", file)
		}
		encoder := yaml.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent(2)
		defer encoder.Close()
		return encoder.Encode(cfg)
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Report every problem with the configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configReadErr != nil {
			return fmt.Errorf("failed to read config file: %w", configReadErr)
		}
		p, err := config.ParseProfile(profile)
		if err != nil {
			return err
		}
		cfg, err := config.NewBuilder(viper.GetViper()).WithProfile(p).Decode()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		result := config.ValidateConfigWithDetails(cfg)
		for _, e := range result.Errors {
			printValidation(cmd, "error", e)
		}
		for _, w := range result.Warnings {
			printValidation(cmd, "warning", w)
		}
		if result.HasErrors() {
			return fmt.Errorf("configuration has %d error(s)", len(result.Errors))
		}
		fmt.Fprintf(out, "Configuration is valid (%d warning(s))\n", len(result.Warnings))
		return nil
	},
}

func printValidation(cmd *cobra.Command, severity string, e config.ValidationError) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s: %s\n", severity, e.Field, e.Message)
	if len(e.Suggestions) > 0 {
		fmt.Fprintf(out, "  hint: %s\n", strings.Join(e.Suggestions, "; "))
	}
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configValidateCmd)
}
