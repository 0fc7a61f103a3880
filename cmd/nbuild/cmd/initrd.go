package cmd

import (
	"fmt"

	"nbuild/artifact"
	"nbuild/cli"
	"nbuild/initrd"

	"github.com/spf13/cobra"
)

var initrdCmd = &cobra.Command{
	Use:   "initrd <dir> <out>",
	Short: "Packs the files in a directory into an INITRD archive.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cli.LoadConfig(cmd); err != nil {
			return err
		}
		entries, err := initrd.CollectDir(args[0])
		if err != nil {
			return err
		}
		archive, err := initrd.Build(entries)
		if err != nil {
			return err
		}
		if err := artifact.WriteFile(args[1], archive); err != nil {
			return err
		}
		fmt.Printf("Wrote %d files (%d bytes) to %s.\n", len(entries), len(archive), args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initrdCmd)
}
