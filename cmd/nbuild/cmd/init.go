package cmd

import (
	"fmt"

	"nbuild/cli"
	"nbuild/config"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Writes a default config file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := cmd.Flags().GetString(cli.FlagConfig)
		if err != nil {
			return err
		}
		path = config.ExpandPath(path)
		if err := config.WriteDefaultConfigFile(path); err != nil {
			return err
		}
		fmt.Printf("Successfully wrote default config to %s.\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
