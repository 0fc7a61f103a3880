package pipeline

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"nbuild/artifact"
	"nbuild/assembler"
	"nbuild/config"
	"nbuild/crypto"
	"nbuild/disk"
	"nbuild/initrd"
	"nbuild/log"
	"nbuild/manifest"
	"nbuild/nfs"
	"nbuild/toolchain"

	"github.com/pkg/errors"
)

const (
	KindImage      = "image"
	KindInitrd     = "initrd"
	KindBlob       = "blob"
	KindExecutable = "executable"
)

type Artifact struct {
	Kind   string      `json:"kind"`
	Path   string      `json:"path"`
	Size   int64       `json:"size"`
	Digest crypto.Hash `json:"digest"`
}

// Report describes a finished build.
type Report struct {
	Layout    string          `json:"layout"`
	Artifacts []Artifact      `json:"artifacts"`
	Entries   []nfs.Entry     `json:"entries,omitempty"`
	Archive   []initrd.Record `json:"archive,omitempty"`
	Duration  time.Duration   `json:"duration"`
}

type Options struct {
	// Dir is the project root manifest paths are relative to. Empty means
	// the working directory.
	Dir            string
	Debug          bool
	SkipAfterBuild bool
}

type Pipeline struct {
	cfg    *config.Config
	opts   Options
	layout disk.Layout
	tc     *toolchain.Toolchain
	lgr    log.Logger
}

// ResolveLayout looks up the configured layout and applies overrides.
func ResolveLayout(cfg *config.Config) (disk.Layout, error) {
	layout, err := disk.LookupLayout(cfg.Image.Layout)
	if err != nil {
		return disk.Layout{}, err
	}
	layout = layout.WithOverrides(disk.Overrides{
		ImageSize:       cfg.Image.SizeBytes,
		SignatureOffset: cfg.Image.SignatureOffset,
		TableOffset:     cfg.Image.TableOffset,
		TableSlots:      cfg.Image.TableSlots,
		FirstDataSector: cfg.Image.FirstDataSector,
	})
	if err := layout.Validate(); err != nil {
		return disk.Layout{}, err
	}
	return layout, nil
}

func New(cfg *config.Config, runner toolchain.Runner, opts Options) (*Pipeline, error) {
	layout, err := ResolveLayout(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "invalid image layout")
	}
	tc := toolchain.New(runner)
	tc.Assembler = cfg.Toolchain.Assembler
	tc.Compiler = cfg.Toolchain.Compiler
	tc.Linker = cfg.Toolchain.Linker
	tc.Shell = cfg.Toolchain.Shell
	tc.Workers = cfg.Toolchain.Workers
	tc.Opt = cfg.Toolchain.ReleaseOpt
	if opts.Debug {
		tc.Opt = cfg.Toolchain.DebugOpt
	}
	return &Pipeline{
		cfg:    cfg,
		opts:   opts,
		layout: layout,
		tc:     tc,
		lgr:    log.WithModule("pipeline"),
	}, nil
}

func (p *Pipeline) Layout() disk.Layout {
	return p.layout
}

func (p *Pipeline) path(rel string) string {
	rel = config.ExpandPath(rel)
	if filepath.IsAbs(rel) || p.opts.Dir == "" {
		return rel
	}
	return filepath.Join(p.opts.Dir, rel)
}

// Run executes every stage in order and stops at the first failure.
func (p *Pipeline) Run(ctx context.Context, m *manifest.Manifest) (*Report, error) {
	start := time.Now()
	if err := p.Check(m); err != nil {
		return nil, err
	}
	if err := config.InitBuildDir(p.cfg); err != nil {
		return nil, errors.Wrap(err, "error creating build directory")
	}

	report := &Report{
		Layout: p.layout.Name,
	}
	blobs, err := p.assembleCode(ctx, m, report)
	if err != nil {
		return nil, errors.Wrap(err, "assemble stage failed")
	}
	if err := p.compile(ctx, m, report); err != nil {
		return nil, errors.Wrap(err, "compile stage failed")
	}
	var archive []byte
	if m.Initrd != "" {
		archive, err = p.buildInitrd(m, report)
		if err != nil {
			return nil, errors.Wrap(err, "initrd stage failed")
		}
	}
	switch p.layout.Kind {
	case disk.KindNFS:
		err = p.buildNFSImage(m, blobs, report)
	case disk.KindEFI:
		err = p.buildEFIImage(ctx, int64(len(archive)), report)
	}
	if err != nil {
		return nil, errors.Wrap(err, "image stage failed")
	}

	if len(m.AfterBuild) > 0 && !p.opts.SkipAfterBuild {
		p.lgr.Info("executing after-build commands")
		if err := p.tc.RunScript(ctx, toolchain.StageAfterBuild, strings.Join(m.AfterBuild, "\n")); err != nil {
			return nil, errors.Wrap(err, "after-build stage failed")
		}
	}

	report.Duration = time.Since(start)
	p.lgr.Info("build done", "took_ms", report.Duration.Milliseconds())
	return report, nil
}

// Check rejects manifests the layout cannot hold before anything is built.
func (p *Pipeline) Check(m *manifest.Manifest) error {
	if p.layout.Kind == disk.KindEFI {
		if stacked := m.Stacked(); len(stacked) > 0 {
			return &manifest.Error{Path: m.Path, Line: stacked[0].Line, Msg: "layout " + p.layout.Name + " does not take stacked code"}
		}
		if len(m.FS) > 0 {
			return &manifest.Error{Path: m.Path, Line: m.FS[0].Line, Msg: "layout " + p.layout.Name + " has no nFS region"}
		}
	}

	outputs := make(map[string]int)
	claim := func(out string, line int) error {
		if prev, ok := outputs[out]; ok {
			return &manifest.Error{Path: m.Path, Line: line, Msg: "output " + out + " already produced by line " + strconv.Itoa(prev)}
		}
		outputs[out] = line
		return nil
	}
	for _, c := range m.Code {
		if c.Kind != manifest.CodeAsm {
			continue
		}
		if err := claim(blobPath(p.cfg, c.Path), c.Line); err != nil {
			return err
		}
	}
	for _, src := range m.C {
		if err := claim(objectPath(p.cfg, src.Path), src.Line); err != nil {
			return err
		}
	}
	return nil
}

func blobPath(cfg *config.Config, src string) string {
	base := filepath.Base(src)
	return cfg.BuildPath(strings.TrimSuffix(base, filepath.Ext(base)) + ".bin")
}

func objectPath(cfg *config.Config, src string) string {
	return cfg.BuildPath(filepath.Base(src) + ".o")
}

func (p *Pipeline) assembleCode(ctx context.Context, m *manifest.Manifest, report *Report) ([]assembler.Blob, error) {
	if len(m.Code) == 0 {
		return nil, nil
	}
	p.lgr.Info("assembling code blobs", "count", len(m.Code))
	var blobs []assembler.Blob
	for _, c := range m.Code {
		path := p.path(c.Path)
		if c.Kind == manifest.CodeAsm {
			out := blobPath(p.cfg, c.Path)
			if err := p.tc.Assemble(ctx, path, out); err != nil {
				return nil, err
			}
			path = out
		}
		if !c.Stack {
			a, err := describe(KindBlob, path)
			if err != nil {
				return nil, err
			}
			report.Artifacts = append(report.Artifacts, a)
			continue
		}
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "error reading blob %s", path)
		}
		blobs = append(blobs, assembler.Blob{
			Path: path,
			Data: data,
		})
	}
	return blobs, nil
}

func (p *Pipeline) compile(ctx context.Context, m *manifest.Manifest, report *Report) error {
	if len(m.C) == 0 {
		return nil
	}
	p.lgr.Info("compiling C sources", "count", len(m.C), "debug", p.opts.Debug)
	srcs := make([]string, len(m.C))
	objs := make([]string, len(m.C))
	for i, src := range m.C {
		srcs[i] = p.path(src.Path)
		objs[i] = objectPath(p.cfg, src.Path)
	}
	if err := p.tc.Compile(ctx, srcs, objs); err != nil {
		return err
	}
	exe := p.cfg.ExecutablePath()
	if err := p.tc.Link(ctx, objs, exe); err != nil {
		return err
	}
	a, err := describe(KindExecutable, exe)
	if err != nil {
		return err
	}
	report.Artifacts = append(report.Artifacts, a)
	return nil
}

func (p *Pipeline) buildInitrd(m *manifest.Manifest, report *Report) ([]byte, error) {
	entries, err := initrd.CollectDir(p.path(m.Initrd))
	if err != nil {
		return nil, err
	}
	archive, err := initrd.Build(entries)
	if err != nil {
		return nil, err
	}
	p.lgr.Info("built initrd", "files", len(entries), "size_kib", len(archive)/1024)
	out := p.cfg.InitrdPath()
	if err := artifact.WriteFile(out, archive); err != nil {
		return nil, err
	}
	records, err := initrd.Parse(archive)
	if err != nil {
		return nil, err
	}
	report.Archive = records
	report.Artifacts = append(report.Artifacts, Artifact{
		Kind:   KindInitrd,
		Path:   out,
		Size:   int64(len(archive)),
		Digest: crypto.Blake2B256(archive),
	})
	return archive, nil
}

func (p *Pipeline) buildNFSImage(m *manifest.Manifest, blobs []assembler.Blob, report *Report) error {
	files := make([]nfs.File, len(m.FS))
	for i, f := range m.FS {
		data, err := ioutil.ReadFile(p.path(f.Source))
		if err != nil {
			return errors.Wrapf(err, "error reading %s", f.Source)
		}
		files[i] = nfs.File{
			Name: f.Dest,
			Data: data,
		}
	}
	p.lgr.Info("building system image", "layout", p.layout.Name, "size", p.layout.ImageSize, "files", len(files))
	res, err := assembler.Build(p.layout, assembler.Options{
		Blobs:         blobs,
		PartitionName: p.cfg.Image.PartitionName,
		Files:         files,
	})
	if err != nil {
		return err
	}
	out := p.cfg.ImagePath()
	digest, err := res.Assembler.Commit(out)
	if err != nil {
		return err
	}
	report.Entries = res.Entries
	report.Artifacts = append(report.Artifacts, Artifact{
		Kind:   KindImage,
		Path:   out,
		Size:   res.Assembler.Size(),
		Digest: digest,
	})
	return nil
}

// buildEFIImage allocates an image big enough for the archive and lets the
// configured image steps populate it. The image only appears at its final
// path once every step succeeded.
func (p *Pipeline) buildEFIImage(ctx context.Context, required int64, report *Report) error {
	a, err := assembler.New(p.layout, required)
	if err != nil {
		return err
	}
	out := p.cfg.ImagePath()
	staging := out + ".partial"
	p.lgr.Info("building system image", "layout", p.layout.Name, "size_mib", float64(a.Size())/(1024*1024))
	if _, err := a.Commit(staging); err != nil {
		return err
	}
	vars := map[string][]string{
		"image":   {staging},
		"sectors": {strconv.FormatInt(a.Size()/disk.SectorBytes, 10)},
		"efi":     {p.cfg.ExecutablePath()},
		"initrd":  {p.cfg.InitrdPath()},
	}
	for _, step := range p.cfg.Toolchain.ImageSteps {
		if err := p.tc.RunScript(ctx, toolchain.StageImage, toolchain.ExpandString(step, vars)); err != nil {
			os.Remove(staging)
			return err
		}
	}
	if err := os.Rename(staging, out); err != nil {
		os.Remove(staging)
		return errors.Wrap(err, "error committing image")
	}
	img, err := describe(KindImage, out)
	if err != nil {
		return err
	}
	report.Artifacts = append(report.Artifacts, img)
	return nil
}

func describe(kind string, path string) (Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, errors.Wrapf(err, "missing %s artifact", kind)
	}
	digest, err := crypto.HashFile(path)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{
		Kind:   kind,
		Path:   path,
		Size:   info.Size(),
		Digest: digest,
	}, nil
}
