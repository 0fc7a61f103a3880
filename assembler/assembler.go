package assembler

import (
	"nbuild/artifact"
	"nbuild/crypto"
	"nbuild/disk"
	"nbuild/log"
	"nbuild/nfs"

	"github.com/pkg/errors"
)

var (
	ErrCodeRegionExhausted = errors.New("stacked code overruns the filesystem region")
	ErrFilesystemWritten   = errors.New("filesystem already written")
	ErrCommitted           = errors.New("image already committed")
	ErrAssemblyFailed      = errors.New("image assembly failed")
	ErrFilesystemMissing   = errors.New("filesystem not written")
)

// Blob is a raw code blob appended to the image in load order.
type Blob struct {
	Path string
	Data []byte
}

// Assembler owns one image buffer for the duration of a build. Code is
// stacked first, then the filesystem is written, then the image is
// committed in a single write.
type Assembler struct {
	layout    disk.Layout
	buf       *disk.Buffer
	fsWritten bool
	failed    bool
	committed bool
	lgr       log.Logger
}

// New allocates a zeroed image for layout. required is the payload size
// computed-size layouts must fit; fixed-size layouts ignore it.
func New(layout disk.Layout, required int64) (*Assembler, error) {
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	buf, err := disk.NewBuffer(layout.SizeFor(required))
	if err != nil {
		return nil, err
	}
	return &Assembler{
		layout: layout,
		buf:    buf,
		lgr:    log.WithModule("assembler").Sub("layout", layout.Name),
	}, nil
}

func (a *Assembler) Layout() disk.Layout {
	return a.layout
}

func (a *Assembler) Size() int64 {
	return a.buf.Len()
}

// Buffer exposes the image for reading.
func (a *Assembler) Buffer() *disk.Buffer {
	return a.buf
}

// Stack appends b at the running cursor and returns the offset it was
// placed at.
func (a *Assembler) Stack(b Blob) (int64, error) {
	if a.committed {
		return 0, ErrCommitted
	}
	if a.fsWritten {
		return 0, ErrFilesystemWritten
	}
	end := a.buf.Cursor() + int64(len(b.Data))
	if end > a.layout.CodeLimit() {
		return 0, errors.Wrapf(ErrCodeRegionExhausted, "%s ends at %d, limit is %d", b.Path, end, a.layout.CodeLimit())
	}
	off, err := a.buf.Append(b.Data)
	if err != nil {
		return 0, errors.Wrapf(err, "error stacking %s", b.Path)
	}
	a.lgr.Debug("stacked blob", "path", b.Path, "offset", off, "size", len(b.Data))
	return off, nil
}

// WriteFS writes the signature, the file table and every file's contents.
// It returns the table entries in input order. All files are planned
// before the first byte is written, and any failure leaves the assembler
// unable to commit.
func (a *Assembler) WriteFS(partitionName string, files []nfs.File) ([]nfs.Entry, error) {
	if a.committed {
		return nil, ErrCommitted
	}
	if a.failed {
		return nil, ErrAssemblyFailed
	}
	if a.fsWritten {
		return nil, ErrFilesystemWritten
	}
	entries, err := a.writeFS(partitionName, files)
	if err != nil {
		a.failed = true
		return nil, err
	}
	a.fsWritten = true
	return entries, nil
}

func (a *Assembler) writeFS(partitionName string, files []nfs.File) ([]nfs.Entry, error) {
	infos := nfs.Infos(files)
	for _, name := range nfs.DuplicateNames(infos) {
		a.lgr.Warn("duplicate file name, only the first entry is reachable by name", "name", name)
	}
	if _, err := nfs.Plan(a.layout, infos, a.buf.Len()); err != nil {
		return nil, errors.Wrap(err, "error planning file table")
	}

	if err := nfs.WriteSuperblock(a.buf, a.layout, partitionName); err != nil {
		return nil, errors.Wrap(err, "error writing signature")
	}
	sectors, err := nfs.WriteTable(a.buf, a.layout, infos)
	if err != nil {
		return nil, errors.Wrap(err, "error writing file table")
	}
	if err := nfs.WriteFiles(a.buf, files, sectors); err != nil {
		return nil, errors.Wrap(err, "error writing file data")
	}

	entries := make([]nfs.Entry, len(files))
	for i, info := range infos {
		entries[i] = nfs.Entry{
			Name:        info.Name,
			Size:        uint32(info.Size),
			StartSector: sectors[i],
		}
		a.lgr.Debug("placed file", "name", info.Name, "size", info.Size, "sector", sectors[i])
	}
	return entries, nil
}

// Commit writes the whole image to path. Nothing appears at path unless
// the write succeeds. nFS images without a written filesystem, and images
// whose filesystem write failed, are never committed.
func (a *Assembler) Commit(path string) (crypto.Hash, error) {
	if a.committed {
		return crypto.ZeroHash, ErrCommitted
	}
	if a.failed {
		return crypto.ZeroHash, ErrAssemblyFailed
	}
	if a.layout.Kind == disk.KindNFS && !a.fsWritten {
		return crypto.ZeroHash, ErrFilesystemMissing
	}
	if err := artifact.WriteTo(path, a.buf); err != nil {
		return crypto.ZeroHash, err
	}
	a.committed = true
	digest := crypto.Blake2B256(a.buf.Bytes())
	a.lgr.Info("wrote image", "path", path, "size", a.buf.Len(), "digest", digest.String())
	return digest, nil
}
