package assembler

import (
	"nbuild/disk"
	"nbuild/nfs"

	"github.com/pkg/errors"
)

// Options describes a complete nFS image.
type Options struct {
	Blobs         []Blob
	PartitionName string
	Files         []nfs.File
}

type Result struct {
	Assembler *Assembler
	Offsets   []int64
	Entries   []nfs.Entry
}

// Build stacks every blob in order and writes the filesystem. The image is
// not committed.
func Build(layout disk.Layout, opts Options) (*Result, error) {
	if layout.Kind != disk.KindNFS {
		return nil, errors.Wrapf(nfs.ErrNotNFS, "layout %s", layout.Name)
	}
	a, err := New(layout, 0)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Assembler: a,
		Offsets:   make([]int64, len(opts.Blobs)),
	}
	for i, b := range opts.Blobs {
		off, err := a.Stack(b)
		if err != nil {
			return nil, err
		}
		res.Offsets[i] = off
	}
	entries, err := a.WriteFS(opts.PartitionName, opts.Files)
	if err != nil {
		return nil, err
	}
	res.Entries = entries
	return res, nil
}
