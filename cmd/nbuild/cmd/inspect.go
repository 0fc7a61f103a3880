package cmd

import (
	"encoding/hex"
	"encoding/json"
	"io/ioutil"
	"os"
	"strconv"

	"nbuild/cli"
	"nbuild/crypto"
	"nbuild/disk"
	"nbuild/initrd"
	"nbuild/nfs"
	"nbuild/pipeline"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	flagLayout        = "layout"
	flagDigest        = "digest"
	flagDumpSignature = "dump-signature"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Decodes built artifacts.",
}

type imageInfo struct {
	Layout     string         `json:"layout"`
	Size       int64          `json:"size"`
	Digest     crypto.Hash    `json:"digest"`
	Superblock nfs.Superblock `json:"superblock"`
	Entries    []nfs.Entry    `json:"entries"`
	BootCode   bool           `json:"boot_code"`
}

var inspectImageCmd = &cobra.Command{
	Use:   "image <file>",
	Short: "Prints an image's signature and file table.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cli.LoadConfig(cmd)
		if err != nil {
			return err
		}
		format, err := cli.GetFormat(cmd)
		if err != nil {
			return err
		}
		if name, _ := cmd.Flags().GetString(flagLayout); name != "" {
			cfg.Image.Layout = name
		}
		layout, err := pipeline.ResolveLayout(cfg)
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return errors.Wrap(err, "error opening image")
		}
		defer f.Close()
		stat, err := f.Stat()
		if err != nil {
			return err
		}
		sb, err := nfs.ReadSuperblock(f, layout)
		if err != nil {
			return err
		}
		entries, err := nfs.ReadTable(f, layout)
		if err != nil {
			return err
		}
		digest, err := checkDigest(cmd, args[0])
		if err != nil {
			return err
		}
		boot, err := disk.ReadSector(f, 0)
		if err != nil {
			return errors.Wrap(err, "error reading boot sector")
		}
		info := imageInfo{
			Layout:     layout.Name,
			Size:       stat.Size(),
			Digest:     digest,
			Superblock: sb,
			Entries:    entries,
			BootCode:   !boot.IsZero(),
		}
		if format == cli.FormatJSON {
			return json.NewEncoder(os.Stdout).Encode(info)
		}

		summary := tablewriter.NewWriter(os.Stdout)
		summary.Append([]string{"Layout", info.Layout})
		summary.Append([]string{"Size", strconv.FormatInt(info.Size, 10)})
		summary.Append([]string{"Digest", info.Digest.String()})
		summary.Append([]string{"Boot Code", strconv.FormatBool(info.BootCode)})
		summary.Append([]string{"Partition", sb.PartitionName})
		summary.Append([]string{"Version", strconv.Itoa(int(sb.VersionMajor)) + "." + strconv.Itoa(int(sb.VersionMinor))})
		summary.Render()

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Name", "Size", "Start Sector", "Sectors"})
		for _, e := range entries {
			table.Append([]string{
				e.Name,
				strconv.FormatUint(uint64(e.Size), 10),
				strconv.FormatUint(uint64(e.StartSector), 10),
				strconv.FormatInt(disk.SectorsFor(int64(e.Size)), 10),
			})
		}
		table.Render()

		if dump, _ := cmd.Flags().GetBool(flagDumpSignature); dump {
			sector, err := disk.ReadSector(f, layout.SignatureOffset/disk.SectorBytes)
			if err != nil {
				return errors.Wrap(err, "error reading signature sector")
			}
			dumper := hex.Dumper(os.Stdout)
			if err := sector.Encode(dumper); err != nil {
				return err
			}
			return dumper.Close()
		}
		return nil
	},
}

// checkDigest hashes path and, when --digest is set, fails unless the
// digest matches.
func checkDigest(cmd *cobra.Command, path string) (crypto.Hash, error) {
	want, _ := cmd.Flags().GetString(flagDigest)
	if want == "" {
		return crypto.HashFile(path)
	}
	return crypto.VerifyFile(path, want)
}

var inspectInitrdCmd = &cobra.Command{
	Use:   "initrd <file>",
	Short: "Prints an INITRD archive's directory.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cli.LoadConfig(cmd); err != nil {
			return err
		}
		format, err := cli.GetFormat(cmd)
		if err != nil {
			return err
		}
		if _, err := checkDigest(cmd, args[0]); err != nil {
			return err
		}
		archive, err := ioutil.ReadFile(args[0])
		if err != nil {
			return errors.Wrap(err, "error reading archive")
		}
		records, err := initrd.Parse(archive)
		if err != nil {
			return err
		}
		if format == cli.FormatJSON {
			return json.NewEncoder(os.Stdout).Encode(records)
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Name", "Offset", "Size", "Digest"})
		for _, rec := range records {
			table.Append([]string{
				rec.Name,
				strconv.FormatUint(uint64(rec.Offset), 10),
				strconv.FormatUint(uint64(rec.Size), 10),
				crypto.Blake2B256(initrd.Extract(archive, rec)).String(),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	inspectCmd.PersistentFlags().String(cli.FlagFormat, cli.FormatText, "Output format (text or json).")
	inspectCmd.PersistentFlags().String(flagDigest, "", "Fail unless the file's blake2b-256 digest matches this hex value.")
	inspectImageCmd.Flags().Bool(flagDumpSignature, false, "Hex dump the sector holding the signature.")
	inspectImageCmd.Flags().String(flagLayout, "", "Layout to decode with. Defaults to the configured layout.")
	inspectCmd.AddCommand(inspectImageCmd)
	inspectCmd.AddCommand(inspectInitrdCmd)
	rootCmd.AddCommand(inspectCmd)
}
