package nfs

import (
	"io"

	"nbuild/disk"

	"github.com/pkg/errors"
)

// WriteFiles copies each file's exact contents to the start of its
// assigned sector. The unused tail of the last sector stays zero.
func WriteFiles(buf *disk.Buffer, files []File, sectors []uint32) error {
	if len(files) != len(sectors) {
		return errors.Wrapf(ErrSectorCount, "%d files, %d sectors", len(files), len(sectors))
	}
	for i, f := range files {
		off := disk.SectorOffset(int64(sectors[i]))
		if _, err := buf.WriteAt(f.Data, off); err != nil {
			return errors.Wrapf(err, "error placing file %s", f.Name)
		}
	}
	return nil
}

// ReadFile returns the contents an entry points to.
func ReadFile(r io.ReaderAt, e Entry) ([]byte, error) {
	data := make([]byte, e.Size)
	if _, err := r.ReadAt(data, e.DataOffset()); err != nil {
		return nil, errors.Wrapf(err, "error reading %s", e.Name)
	}
	return data, nil
}
