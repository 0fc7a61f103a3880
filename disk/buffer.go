package disk

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

var (
	ErrWriteBeyondBounds = errors.New("write beyond image bounds")
	ErrNegativeOffset    = errors.New("negative offset")
)

// Buffer is a fixed-length, zero-initialized image. It is never resized
// after allocation and every store is bounds-checked before any byte is
// written. Buffer is not safe for concurrent use.
type Buffer struct {
	data   []byte
	cursor int64
}

func NewBuffer(size int64) (*Buffer, error) {
	if size < 0 {
		return nil, errors.New("image size must not be negative")
	}
	return &Buffer{
		data: make([]byte, size),
	}, nil
}

func (b *Buffer) Len() int64 {
	return int64(len(b.data))
}

// Cursor returns the offset the next Append writes to.
func (b *Buffer) Cursor() int64 {
	return b.cursor
}

func (b *Buffer) CheckRange(off int64, n int64) error {
	if off < 0 || n < 0 {
		return ErrNegativeOffset
	}
	if off > b.Len() || n > b.Len()-off {
		return ErrWriteBeyondBounds
	}
	return nil
}

// WriteAt copies p to the absolute offset off. Unlike io.WriterAt
// implementations that write a prefix, an out-of-range write leaves the
// buffer untouched.
func (b *Buffer) WriteAt(p []byte, off int64) (int, error) {
	if err := b.CheckRange(off, int64(len(p))); err != nil {
		return 0, errors.Wrapf(err, "error writing %d bytes at offset %d of %d", len(p), off, b.Len())
	}
	return copy(b.data[off:], p), nil
}

func (b *Buffer) PutUint32(off int64, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := b.WriteAt(buf[:], off)
	return err
}

// Append writes p at the running cursor and advances it.
func (b *Buffer) Append(p []byte) (int64, error) {
	off := b.cursor
	if _, err := b.WriteAt(p, off); err != nil {
		return 0, err
	}
	b.cursor += int64(len(p))
	return off, nil
}

func (b *Buffer) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, ErrNegativeOffset
	}
	if off >= b.Len() {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Bytes returns a copy of the buffer contents.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.data)
	return int64(n), err
}
