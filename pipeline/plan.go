package pipeline

import (
	"nbuild/disk"
	"nbuild/manifest"
)

// Plan lists the artifacts Run would produce for m, in the order Run
// reports them. Digests and sizes are left empty.
func (p *Pipeline) Plan(m *manifest.Manifest) ([]Artifact, error) {
	if err := p.Check(m); err != nil {
		return nil, err
	}
	var out []Artifact
	for _, c := range m.Code {
		if c.Kind == manifest.CodeAsm && !c.Stack {
			out = append(out, Artifact{Kind: KindBlob, Path: blobPath(p.cfg, c.Path)})
		}
	}
	if len(m.C) > 0 {
		out = append(out, Artifact{Kind: KindExecutable, Path: p.cfg.ExecutablePath()})
	}
	if m.Initrd != "" {
		out = append(out, Artifact{Kind: KindInitrd, Path: p.cfg.InitrdPath()})
	}
	img := Artifact{Kind: KindImage, Path: p.cfg.ImagePath()}
	if p.layout.Kind == disk.KindNFS {
		img.Size = p.layout.ImageSize
	}
	return append(out, img), nil
}
