// Package initrd builds and parses INITRD archives: a directory of 64-byte
// records followed by the concatenated file payloads.
package initrd

import (
	"bytes"
	"encoding/binary"
	"io"
	"io/ioutil"
	"math"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
)

const (
	EntryLen   = 64
	MaxNameLen = 56
)

var (
	ErrNameTooLong     = errors.New("archive entry name too long")
	ErrEmptyName       = errors.New("archive entry name is empty")
	ErrArchiveTooLarge = errors.New("archive too large")
	ErrCorruptArchive  = errors.New("corrupt archive")
)

// Entry is a named payload stored in the archive.
type Entry struct {
	Name string
	Data []byte
}

// Record is a decoded directory record.
type Record struct {
	Name   string
	Offset uint32
	Size   uint32
}

func (r Record) Encode(w io.Writer) error {
	var buf [EntryLen]byte
	binary.LittleEndian.PutUint32(buf[0:], r.Offset)
	binary.LittleEndian.PutUint32(buf[4:], r.Size)
	copy(buf[8:], r.Name)
	_, err := w.Write(buf[:])
	return err
}

func (r *Record) Decode(rd io.Reader) error {
	var buf [EntryLen]byte
	if _, err := io.ReadFull(rd, buf[:]); err != nil {
		return err
	}
	name := buf[8:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	*r = Record{
		Name:   string(name),
		Offset: binary.LittleEndian.Uint32(buf[0:]),
		Size:   binary.LittleEndian.Uint32(buf[4:]),
	}
	return nil
}

func (r Record) isEnd() bool {
	return r == Record{}
}

// DirectoryLen is the size of the directory for n entries, including the
// trailing end slot.
func DirectoryLen(n int) int64 {
	return int64(n+1) * EntryLen
}

// Size returns the exact archive size for entries.
func Size(entries []Entry) int64 {
	size := DirectoryLen(len(entries))
	for _, e := range entries {
		size += int64(len(e.Data))
	}
	return size
}

func validate(entries []Entry) error {
	for i, e := range entries {
		if e.Name == "" {
			return errors.Wrapf(ErrEmptyName, "entry %d", i)
		}
		if len(e.Name) > MaxNameLen {
			return errors.Wrapf(ErrNameTooLong, "%q is longer than %d bytes", e.Name, MaxNameLen)
		}
	}
	if Size(entries) > math.MaxUint32 {
		return errors.Wrapf(ErrArchiveTooLarge, "%d bytes", Size(entries))
	}
	return nil
}

// Build lays out entries in the given order. Payload offsets start right
// after the directory and are gap-free.
func Build(entries []Entry) ([]byte, error) {
	if err := validate(entries); err != nil {
		return nil, err
	}

	out := bytes.NewBuffer(make([]byte, 0, Size(entries)))
	cursor := uint32(DirectoryLen(len(entries)))
	for _, e := range entries {
		rec := Record{
			Name:   e.Name,
			Offset: cursor,
			Size:   uint32(len(e.Data)),
		}
		if err := rec.Encode(out); err != nil {
			return nil, err
		}
		cursor += rec.Size
	}
	if err := (Record{}).Encode(out); err != nil {
		return nil, err
	}
	for _, e := range entries {
		out.Write(e.Data)
	}
	return out.Bytes(), nil
}

// Parse decodes the directory of an archive up to its end slot and checks
// every payload lies inside the archive.
func Parse(archive []byte) ([]Record, error) {
	rd := bytes.NewReader(archive)
	var records []Record
	for {
		var rec Record
		if err := rec.Decode(rd); err != nil {
			return nil, errors.Wrap(ErrCorruptArchive, "directory is not terminated")
		}
		if rec.isEnd() {
			break
		}
		records = append(records, rec)
	}
	dirLen := DirectoryLen(len(records))
	for _, rec := range records {
		if int64(rec.Offset) < dirLen || int64(rec.Offset)+int64(rec.Size) > int64(len(archive)) {
			return nil, errors.Wrapf(ErrCorruptArchive, "entry %s points outside the archive", rec.Name)
		}
	}
	return records, nil
}

// Extract returns the payload of rec.
func Extract(archive []byte, rec Record) []byte {
	return archive[rec.Offset : rec.Offset+rec.Size]
}

// CollectDir reads the regular files directly inside dir, sorted by name.
func CollectDir(dir string) ([]Entry, error) {
	infos, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "error listing initrd directory")
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name() < infos[j].Name()
	})
	var entries []Entry
	for _, info := range infos {
		if !info.Mode().IsRegular() {
			continue
		}
		data, err := ioutil.ReadFile(filepath.Join(dir, info.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "error reading %s", info.Name())
		}
		entries = append(entries, Entry{
			Name: info.Name(),
			Data: data,
		})
	}
	return entries, nil
}
