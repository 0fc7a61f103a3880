package cli

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"nbuild/config"
	"nbuild/log"
	"nbuild/testutil/testfs"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func newTestCmd(args ...string) *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String(FlagConfig, config.DefaultConfigFile, "")
	cmd.Flags().Bool(FlagVerbose, false, "")
	cmd.Flags().String(FlagFormat, FormatText, "")
	if err := cmd.Flags().Parse(args); err != nil {
		panic(err)
	}
	return cmd
}

func TestLoadConfig(t *testing.T) {
	dir, done := testfs.NewTempDir(t)
	defer done()
	defer log.SetLevel(log.LevelTrace)

	cfg, err := LoadConfig(newTestCmd("--config", filepath.Join(dir, "missing.toml")))
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfig.Image.Layout, cfg.Image.Layout)

	path := filepath.Join(dir, "nbuild.toml")
	require.NoError(t, ioutil.WriteFile(path, []byte("log_level = \"warn\"\n[image]\nlayout = \"efi-v1\"\n"), 0644))
	cfg, err = LoadConfig(newTestCmd("--config", path, "--verbose"))
	require.NoError(t, err)
	require.Equal(t, "efi-v1", cfg.Image.Layout)

	require.NoError(t, ioutil.WriteFile(path, []byte("log_level = \"loud\"\n"), 0644))
	_, err = LoadConfig(newTestCmd("--config", path))
	require.Error(t, err)
}

func TestGetFormat(t *testing.T) {
	format, err := GetFormat(newTestCmd())
	require.NoError(t, err)
	require.Equal(t, FormatText, format)

	format, err = GetFormat(newTestCmd("--format", "json"))
	require.NoError(t, err)
	require.Equal(t, FormatJSON, format)

	_, err = GetFormat(newTestCmd("--format", "yaml"))
	require.Error(t, err)
}
