package cli

import (
	"nbuild/config"
	"nbuild/log"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// LoadConfig reads the file named by --config, falling back to the
// defaults when it does not exist, and applies the configured log level.
// --verbose forces debug logging.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString(FlagConfig)
	if err != nil {
		return nil, err
	}
	cfg, found, err := config.LoadConfigFile(config.ExpandPath(path))
	if err != nil {
		return nil, err
	}

	lvl, err := log.NewLevel(cfg.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}
	if verbose, _ := cmd.Flags().GetBool(FlagVerbose); verbose && lvl > log.LevelDebug {
		lvl = log.LevelDebug
	}
	log.SetLevel(lvl)
	if !found {
		log.WithModule("cli").Debug("config file not found, using defaults", "path", path)
	}
	return cfg, nil
}

// GetFormat returns the validated --format flag.
func GetFormat(cmd *cobra.Command) (string, error) {
	format, err := cmd.Flags().GetString(FlagFormat)
	if err != nil {
		return "", err
	}
	switch format {
	case FormatText, FormatJSON:
		return format, nil
	default:
		return "", errors.Errorf("unknown output format %q", format)
	}
}
