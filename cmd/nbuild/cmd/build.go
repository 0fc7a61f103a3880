package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"nbuild/cli"
	"nbuild/manifest"
	"nbuild/pipeline"
	"nbuild/toolchain"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const (
	flagDebug          = "debug"
	flagDryRun         = "dry-run"
	flagSkipAfterBuild = "skip-after-build"
	flagMetricsFile    = "metrics-file"
	flagPushGateway    = "push-gateway"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Builds the system image described by the manifest.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig(cmd)
		if err != nil {
			return err
		}
		format, err := cli.GetFormat(cmd)
		if err != nil {
			return err
		}
		debug, _ := cmd.Flags().GetBool(flagDebug)
		dryRun, _ := cmd.Flags().GetBool(flagDryRun)
		skipAfterBuild, _ := cmd.Flags().GetBool(flagSkipAfterBuild)

		m, err := manifest.ParseFile(cfg.Manifest)
		if err != nil {
			return err
		}
		p, err := pipeline.New(cfg, new(toolchain.ExecRunner), pipeline.Options{
			Debug:          debug,
			SkipAfterBuild: skipAfterBuild,
		})
		if err != nil {
			return err
		}

		if dryRun {
			plan, err := p.Plan(m)
			if err != nil {
				return err
			}
			if format == cli.FormatJSON {
				return json.NewEncoder(os.Stdout).Encode(plan)
			}
			renderArtifacts(plan, false)
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		report, err := p.Run(ctx, m)
		if err != nil {
			return err
		}
		if err := exportMetrics(cmd, report); err != nil {
			return err
		}
		if format == cli.FormatJSON {
			return json.NewEncoder(os.Stdout).Encode(report)
		}
		renderArtifacts(report.Artifacts, true)
		fmt.Printf("Built %d artifacts for layout %s in %s.\n", len(report.Artifacts), report.Layout, report.Duration)
		return nil
	},
}

func exportMetrics(cmd *cobra.Command, report *pipeline.Report) error {
	file, _ := cmd.Flags().GetString(flagMetricsFile)
	gateway, _ := cmd.Flags().GetString(flagPushGateway)
	if file == "" && gateway == "" {
		return nil
	}
	metrics := pipeline.NewMetrics()
	metrics.Observe(report)
	if file != "" {
		if err := metrics.WriteFile(file); err != nil {
			return err
		}
	}
	if gateway != "" {
		return metrics.Push(gateway)
	}
	return nil
}

func renderArtifacts(artifacts []pipeline.Artifact, withDigest bool) {
	table := tablewriter.NewWriter(os.Stdout)
	header := []string{"Kind", "Path", "Size (KiB)"}
	if withDigest {
		header = append(header, "Digest")
	}
	table.SetHeader(header)
	for _, a := range artifacts {
		size := "-"
		if a.Size > 0 {
			size = strconv.FormatFloat(float64(a.Size)/1024, 'f', 1, 64)
		}
		row := []string{a.Kind, a.Path, size}
		if withDigest {
			row = append(row, a.Digest.String())
		}
		table.Append(row)
	}
	table.Render()
}

func init() {
	buildCmd.Flags().Bool(flagDebug, false, "Compile C sources with the debug optimization flags.")
	buildCmd.Flags().Bool(flagDryRun, false, "Validate the manifest and print the planned artifacts.")
	buildCmd.Flags().Bool(flagSkipAfterBuild, false, "Do not run the manifest's after-build commands.")
	buildCmd.Flags().String(flagMetricsFile, "", "Write build metrics to this file in the Prometheus text format.")
	buildCmd.Flags().String(flagPushGateway, "", "Push build metrics to this Prometheus Pushgateway URL.")
	buildCmd.Flags().String(cli.FlagFormat, cli.FormatText, "Output format (text or json).")
	rootCmd.AddCommand(buildCmd)
}
