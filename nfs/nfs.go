// Package nfs writes and reads the Neutron filesystem embedded in disk
// images: a signature region, a fixed-slot master file table, and file
// contents packed on sector boundaries.
package nfs

import (
	"nbuild/disk"

	"github.com/pkg/errors"
)

const Magic uint32 = 0xDEADF500

var (
	ErrNameTooLong          = errors.New("file name too long")
	ErrEmptyName            = errors.New("file name is empty")
	ErrPartitionNameTooLong = errors.New("partition name too long")
	ErrTableFull            = errors.New("file table full")
	ErrFileTooLarge         = errors.New("file too large")
	ErrRegionOverlap        = errors.New("filesystem region overlaps stacked code")
	ErrBadSignature         = errors.New("bad nFS signature")
	ErrNotNFS               = errors.New("layout has no nFS region")
	ErrSectorCount          = errors.New("sector count does not match file count")
)

// FileInfo is what the table needs to know about a file.
type FileInfo struct {
	Name string
	Size int64
}

// File is a payload placed in the filesystem under Name.
type File struct {
	Name string
	Data []byte
}

func (f File) Info() FileInfo {
	return FileInfo{
		Name: f.Name,
		Size: int64(len(f.Data)),
	}
}

func Infos(files []File) []FileInfo {
	infos := make([]FileInfo, len(files))
	for i, f := range files {
		infos[i] = f.Info()
	}
	return infos
}

// DuplicateNames returns every name that appears more than once, in order
// of its second appearance.
func DuplicateNames(files []FileInfo) []string {
	seen := make(map[string]int)
	var dups []string
	for _, f := range files {
		seen[f.Name]++
		if seen[f.Name] == 2 {
			dups = append(dups, f.Name)
		}
	}
	return dups
}

func checkLayout(layout disk.Layout) error {
	if layout.Kind != disk.KindNFS {
		return errors.Wrapf(ErrNotNFS, "layout %s", layout.Name)
	}
	return layout.Validate()
}

func checkRegion(buf *disk.Buffer, off int64, n int64) error {
	if buf.Cursor() > off {
		return errors.Wrapf(ErrRegionOverlap, "code ends at %d, region starts at %d", buf.Cursor(), off)
	}
	return buf.CheckRange(off, n)
}
