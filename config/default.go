package config

import (
	"bytes"
	"io"
	"os"
	"strconv"
	"strings"
	"text/template"

	"nbuild/disk"
	"nbuild/log"

	"github.com/pkg/errors"
)

const DefaultConfigFile = "nbuild.toml"

var DefaultConfig = Config{
	LogLevel: log.LevelInfo.String(),
	Manifest: "neutron.nbuild",
	BuildDir: "build",
	Image: ImageConfig{
		Layout:        disk.LayoutFloppyV1.Name,
		File:          "neutron.img",
		PartitionName: "NEUTRON TEST FS",
	},
	Initrd: InitrdConfig{
		File: "initrd",
	},
	Toolchain: ToolchainConfig{
		Shell:      "sh",
		Assembler:  "yasm -f bin -o {out} {in}",
		Compiler:   "x86_64-w64-mingw32-gcc -g3 -fno-pie -ffreestanding -mcmodel=large -mno-red-zone -m64 -mno-sse2 {opt} -fstack-protector -Ignu-efi/inc -Ignu-efi/lib -Ignu-efi/inc/x86_64 -Ignu-efi/inc/protocol -nostdlib -c -o {out} {in}",
		ReleaseOpt: "-Os",
		DebugOpt:   "-Og",
		Linker:     "x86_64-w64-mingw32-gcc -g3 -mcmodel=large -mno-red-zone -m64 -nostdlib -shared -Wl,-dll,--subsystem,10,--image-base,0xFFFF800000000000,-e,efi_main -o {out} {objs}",
		Executable: "BOOTX64.EFI",
		Workers:    4,
		ImageSteps: []string{
			"mformat -i {image} -T {sectors}",
			"mmd -i {image} ::/EFI",
			"mmd -i {image} ::/EFI/BOOT",
			"mmd -i {image} ::/EFI/nOS",
			"mcopy -i {image} {efi} ::/EFI/BOOT",
			"mcopy -i {image} {initrd} ::/EFI/nOS/initrd",
		},
	},
}

const defaultConfigTemplateText = `# nbuild Config File

# Sets the log level. Can be one of the following values:
# - error
# - warn
# - info
# - debug
# - trace
log_level = "{{.LogLevel}}"

# Path to the build manifest.
manifest = "{{.Manifest}}"

# Directory all artifacts are written to. It is created if missing.
build_dir = "{{.BuildDir}}"

# Configures the disk image.
[image]
  # Sets the on-disk layout revision. Can be one of the following values:
{{- range .Layouts}}
  # - {{.}}
{{- end}}
  layout = "{{.Image.Layout}}"
  # Sets the image file name inside build_dir.
  file = "{{.Image.File}}"
  # Sets the nFS partition name written after the signature.
  partition_name = "{{.Image.PartitionName}}"
  # The following keys override the layout's own values when set. The
  # commented values are the {{.Defaults.Name}} defaults.
  {{override "size_bytes" .Image.SizeBytes .Defaults.ImageSize}}
  {{override "signature_offset" .Image.SignatureOffset .Defaults.SignatureOffset}}
  {{override "table_offset" .Image.TableOffset .Defaults.TableOffset}}
  {{override "table_slots" .Image.TableSlots .Defaults.TableSlots}}
  {{override "first_data_sector" .Image.FirstDataSector .Defaults.FirstDataSector}}

# Configures the INITRD archive.
[initrd]
  # Sets the archive file name inside build_dir.
  file = "{{.Initrd.File}}"

# Configures the external toolchain. Command lines are split on spaces
# before placeholders are substituted, so paths containing spaces are
# passed as single arguments.
[toolchain]
  # Runs .after-build lines and image_steps.
  shell = "{{.Toolchain.Shell}}"
  # Assembles one .asm source. Placeholders: {in}, {out}.
  assembler = "{{.Toolchain.Assembler}}"
  # Compiles one .c source. Placeholders: {in}, {out}, {opt}.
  compiler = "{{.Toolchain.Compiler}}"
  # Replaces {opt} in release and debug builds.
  release_opt = "{{.Toolchain.ReleaseOpt}}"
  debug_opt = "{{.Toolchain.DebugOpt}}"
  # Links all objects. Placeholders: {out}, {objs}.
  linker = "{{.Toolchain.Linker}}"
  # Sets the linked executable's file name inside build_dir.
  executable = "{{.Toolchain.Executable}}"
  # Sets how many sources are compiled concurrently.
  workers = {{.Toolchain.Workers}}
  # Populates efi layout images. Placeholders: {image}, {sectors},
  # {efi}, {initrd}.
  image_steps = {{tomlStrings .Toolchain.ImageSteps}}
`

var defaultConfigTemplate *template.Template

type templateData struct {
	Config
	Layouts  []string
	Defaults disk.Layout
}

// overrideLine renders an optional layout override, commented out with
// the layout's value when unset.
func overrideLine(key string, v *int64, layoutValue int64) string {
	if v == nil {
		return "# " + key + " = " + strconv.FormatInt(layoutValue, 10)
	}
	return key + " = " + strconv.FormatInt(*v, 10)
}

func tomlStrings(in []string) string {
	if len(in) == 0 {
		return "[]"
	}
	quoted := make([]string, len(in))
	for i, s := range in {
		quoted[i] = "  " + strconv.Quote(s)
	}
	return "[\n  " + strings.Join(quoted, ",\n  ") + ",\n  ]"
}

func GenerateDefaultConfigFile() []byte {
	buf := new(bytes.Buffer)
	defaults, err := disk.LookupLayout(DefaultConfig.Image.Layout)
	if err != nil {
		panic(err)
	}
	data := templateData{
		Config:   DefaultConfig,
		Layouts:  disk.LayoutNames(),
		Defaults: defaults,
	}
	if err := defaultConfigTemplate.Execute(buf, data); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func ReadConfigFile(path string) (*Config, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0755)
	if err != nil {
		return nil, errors.Wrap(err, "error opening config file for reading")
	}
	defer f.Close()
	cfg, err := ReadConfig(f)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}
	return cfg, nil
}

// LoadConfigFile reads path, falling back to DefaultConfig when the file
// does not exist.
func LoadConfigFile(path string) (*Config, bool, error) {
	exists, err := FileExists(path)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		cfg := DefaultConfig
		cfg.Toolchain.ImageSteps = append([]string{}, DefaultConfig.Toolchain.ImageSteps...)
		return &cfg, false, nil
	}
	cfg, err := ReadConfigFile(path)
	return cfg, true, err
}

func WriteDefaultConfigFile(path string) error {
	exists, err := FileExists(path)
	if err != nil {
		return err
	}
	if exists {
		return errors.Errorf("%s already exists", path)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return errors.Wrap(err, "error opening config file for writing")
	}
	defer f.Close()
	rd := bytes.NewReader(GenerateDefaultConfigFile())
	if _, err := io.Copy(f, rd); err != nil {
		return errors.Wrap(err, "error writing config file")
	}
	return nil
}

func init() {
	tmpl := template.New("defaultConfig").Funcs(template.FuncMap{
		"tomlStrings": tomlStrings,
		"override":    overrideLine,
	})
	t, err := tmpl.Parse(defaultConfigTemplateText)
	if err != nil {
		panic(err)
	}
	defaultConfigTemplate = t
}
