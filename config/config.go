package config

import (
	"io"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	Manifest  string          `mapstructure:"manifest"`
	BuildDir  string          `mapstructure:"build_dir"`
	Image     ImageConfig     `mapstructure:"image"`
	Initrd    InitrdConfig    `mapstructure:"initrd"`
	Toolchain ToolchainConfig `mapstructure:"toolchain"`
}

type ImageConfig struct {
	Layout          string `mapstructure:"layout"`
	File            string `mapstructure:"file"`
	PartitionName   string `mapstructure:"partition_name"`
	// Layout overrides. Unset keys keep the layout's own value.
	SizeBytes       *int64 `mapstructure:"size_bytes"`
	SignatureOffset *int64 `mapstructure:"signature_offset"`
	TableOffset     *int64 `mapstructure:"table_offset"`
	TableSlots      *int64 `mapstructure:"table_slots"`
	FirstDataSector *int64 `mapstructure:"first_data_sector"`
}

type InitrdConfig struct {
	File string `mapstructure:"file"`
}

type ToolchainConfig struct {
	Shell      string   `mapstructure:"shell"`
	Assembler  string   `mapstructure:"assembler"`
	Compiler   string   `mapstructure:"compiler"`
	ReleaseOpt string   `mapstructure:"release_opt"`
	DebugOpt   string   `mapstructure:"debug_opt"`
	Linker     string   `mapstructure:"linker"`
	Executable string   `mapstructure:"executable"`
	Workers    int      `mapstructure:"workers"`
	ImageSteps []string `mapstructure:"image_steps"`
}

func ReadConfig(r io.Reader) (*Config, error) {
	decoder := toml.NewDecoder(r)
	decoder.SetTagName("mapstructure")
	config := &Config{}
	if err := decoder.Decode(config); err != nil {
		return nil, errors.Wrap(err, "error decoding config file")
	}
	applyDefaults(config)
	return config, nil
}

// applyDefaults fills every unset key from DefaultConfig. Layout overrides
// default to zero, which keeps the layout's own value.
func applyDefaults(c *Config) {
	d := DefaultConfig
	setString(&c.LogLevel, d.LogLevel)
	setString(&c.Manifest, d.Manifest)
	setString(&c.BuildDir, d.BuildDir)
	setString(&c.Image.Layout, d.Image.Layout)
	setString(&c.Image.File, d.Image.File)
	setString(&c.Image.PartitionName, d.Image.PartitionName)
	setString(&c.Initrd.File, d.Initrd.File)
	setString(&c.Toolchain.Shell, d.Toolchain.Shell)
	setString(&c.Toolchain.Assembler, d.Toolchain.Assembler)
	setString(&c.Toolchain.Compiler, d.Toolchain.Compiler)
	setString(&c.Toolchain.ReleaseOpt, d.Toolchain.ReleaseOpt)
	setString(&c.Toolchain.DebugOpt, d.Toolchain.DebugOpt)
	setString(&c.Toolchain.Linker, d.Toolchain.Linker)
	setString(&c.Toolchain.Executable, d.Toolchain.Executable)
	if c.Toolchain.Workers == 0 {
		c.Toolchain.Workers = d.Toolchain.Workers
	}
	if c.Toolchain.ImageSteps == nil {
		c.Toolchain.ImageSteps = append([]string{}, d.Toolchain.ImageSteps...)
	}
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}
