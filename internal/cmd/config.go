package cmd

import (
	"fmt"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/tujuhre12/dgrid/internal/config"
)

func init() {
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the dgrid configuration",
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a value in the data config file",
	Long: `Write a single value into the config file dgrid manages itself. The key
is a gjson style path; values are parsed as JSON when possible.`,
	Example: heredoc.Doc(`
		# Use the light theme
		dgrid config set options.theme light

		# Default to pages of 50 rows
		dgrid config set grid.page_size 50

		# Configure a file by name
		dgrid config set 'sources.users\.json.id_field' uid
	`),
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setupApp(cmd)
		if err != nil {
			return err
		}
		if err := cfg.SetConfigField(args[0], config.ParseValue(args[1])); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", args[0], config.GlobalConfigData())
		return nil
	},
}
