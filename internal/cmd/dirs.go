package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/MakeNowJust/heredoc"
	"github.com/spf13/cobra"
	"github.com/tujuhre12/dgrid/internal/config"
)

var dirsCmd = &cobra.Command{
	Use:   "dirs",
	Short: "Print directories used by dgrid",
	Long: `Print the directories where dgrid reads its configuration and writes
settings changed with "dgrid config set".`,
	Example: heredoc.Doc(`
		# Print all directories
		dgrid dirs

		# Print only the config directory
		dgrid dirs --config

		# Print only the data directory
		dgrid dirs --data
	`),
	RunE: func(cmd *cobra.Command, args []string) error {
		configOnly, _ := cmd.Flags().GetBool("config")
		dataOnly, _ := cmd.Flags().GetBool("data")
		if configOnly && dataOnly {
			return fmt.Errorf("cannot specify both --config and --data flags")
		}

		configDir := filepath.Dir(config.GlobalConfig())
		dataDir := filepath.Dir(config.GlobalConfigData())
		out := cmd.OutOrStdout()
		switch {
		case configOnly:
			fmt.Fprintln(out, configDir)
		case dataOnly:
			fmt.Fprintln(out, dataDir)
		default:
			fmt.Fprintf(out, "Config directory: %s\n", configDir)
			fmt.Fprintf(out, "Data directory:   %s\n", dataDir)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dirsCmd)
	dirsCmd.Flags().Bool("config", false, "Print only the config directory")
	dirsCmd.Flags().Bool("data", false, "Print only the data directory")
}
