package cmd

import (
	"fmt"
	"os"

	"nbuild/cli"
	"nbuild/config"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "nbuild",
	Short:         "Builds Neutron system images.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String(cli.FlagConfig, config.DefaultConfigFile, "Path to the config file.")
	rootCmd.PersistentFlags().BoolP(cli.FlagVerbose, "v", false, "Log every executed command.")
}
