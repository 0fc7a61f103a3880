package nfs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"nbuild/disk"

	"github.com/pkg/errors"
)

// Entry is one master file table slot.
type Entry struct {
	Name        string
	Size        uint32
	StartSector uint32
}

func (e Entry) Encode(w io.Writer) error {
	var buf [disk.EntryLen]byte
	copy(buf[:disk.EntryNameLen], e.Name)
	binary.LittleEndian.PutUint32(buf[24:], e.Size)
	binary.LittleEndian.PutUint32(buf[28:], e.StartSector)
	_, err := w.Write(buf[:])
	return err
}

func (e *Entry) Decode(r io.Reader) error {
	var buf [disk.EntryLen]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	*e = Entry{
		Name:        decodeName(buf[:disk.EntryNameLen]),
		Size:        binary.LittleEndian.Uint32(buf[24:]),
		StartSector: binary.LittleEndian.Uint32(buf[28:]),
	}
	return nil
}

func (e Entry) DataOffset() int64 {
	return disk.SectorOffset(int64(e.StartSector))
}

func (e Entry) String() string {
	return fmt.Sprintf("%s (%d bytes @ sector %d)", e.Name, e.Size, e.StartSector)
}

// Plan assigns start sectors to files in input order without writing
// anything. Each file's range is SectorsFor(size) sectors long, ranges
// never overlap and every range ends within imageLen bytes.
func Plan(layout disk.Layout, files []FileInfo, imageLen int64) ([]Entry, error) {
	if int64(len(files)) > layout.TableSlots {
		return nil, errors.Wrapf(ErrTableFull, "%d files, %d slots", len(files), layout.TableSlots)
	}
	entries := make([]Entry, len(files))
	cursor := layout.FirstDataSector
	for i, f := range files {
		if f.Name == "" {
			return nil, errors.Wrapf(ErrEmptyName, "file %d", i)
		}
		if len(f.Name) > layout.MaxNameLen() {
			return nil, errors.Wrapf(ErrNameTooLong, "%q is longer than %d bytes", f.Name, layout.MaxNameLen())
		}
		if f.Size < 0 || f.Size > math.MaxUint32 || cursor > math.MaxUint32 {
			return nil, errors.Wrapf(ErrFileTooLarge, "%s", f.Name)
		}
		if end := disk.SectorOffset(cursor) + f.Size; end > imageLen {
			return nil, errors.Wrapf(disk.ErrWriteBeyondBounds, "%s ends at %d, image is %d bytes", f.Name, end, imageLen)
		}
		entries[i] = Entry{
			Name:        f.Name,
			Size:        uint32(f.Size),
			StartSector: uint32(cursor),
		}
		cursor += disk.SectorsFor(f.Size)
	}
	return entries, nil
}

// WriteTable writes one table entry per file and returns the assigned start
// sectors in input order. Nothing is written if any file is rejected.
func WriteTable(buf *disk.Buffer, layout disk.Layout, files []FileInfo) ([]uint32, error) {
	if err := checkLayout(layout); err != nil {
		return nil, err
	}
	entries, err := Plan(layout, files, buf.Len())
	if err != nil {
		return nil, err
	}
	if err := checkRegion(buf, layout.TableOffset, int64(len(entries))*disk.EntryLen); err != nil {
		return nil, errors.Wrap(err, "error placing file table")
	}

	sectors := make([]uint32, len(entries))
	for i, e := range entries {
		w := &offsetWriter{buf: buf, off: layout.TableOffset + int64(i)*disk.EntryLen}
		if err := e.Encode(w); err != nil {
			return nil, errors.Wrapf(err, "error writing table entry %d", i)
		}
		sectors[i] = e.StartSector
	}
	return sectors, nil
}

// ReadTable decodes table slots until the first empty one.
func ReadTable(r io.ReaderAt, layout disk.Layout) ([]Entry, error) {
	if err := checkLayout(layout); err != nil {
		return nil, err
	}
	table := make([]byte, layout.TableLen())
	if _, err := r.ReadAt(table, layout.TableOffset); err != nil {
		return nil, errors.Wrap(err, "error reading file table")
	}
	var entries []Entry
	for i := int64(0); i < layout.TableSlots; i++ {
		var e Entry
		slot := table[i*disk.EntryLen : (i+1)*disk.EntryLen]
		if err := e.Decode(bytes.NewReader(slot)); err != nil {
			return nil, err
		}
		if e.Name == "" {
			break
		}
		entries = append(entries, e)
	}
	return entries, nil
}

type offsetWriter struct {
	buf *disk.Buffer
	off int64
}

func (w *offsetWriter) Write(p []byte) (int, error) {
	n, err := w.buf.WriteAt(p, w.off)
	w.off += int64(n)
	return n, err
}
