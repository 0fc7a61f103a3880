// Package artifact writes build outputs so that the final path only ever
// holds a complete file. Writes go to a temporary file next to the target
// and are renamed into place on commit.
package artifact

import (
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

var (
	ErrTransactionClosed = errors.New("transaction already closed")
)

const DefaultPerm os.FileMode = 0644

type Transaction interface {
	io.Writer
	Path() string
	TempPath() string
	Commit() error
	Rollback() error
}

type txImpl struct {
	path   string
	f      *os.File
	mu     sync.Mutex
	closed bool
}

// Create starts a transaction for path. The parent directory must exist.
func Create(path string) (Transaction, error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := ioutil.TempFile(dir, "."+base+".tmp_*")
	if err != nil {
		return nil, errors.Wrap(err, "error creating temporary file")
	}
	return &txImpl{
		path: path,
		f:    f,
	}, nil
}

func (t *txImpl) Path() string {
	return t.path
}

func (t *txImpl) TempPath() string {
	return t.f.Name()
}

func (t *txImpl) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, ErrTransactionClosed
	}
	return t.f.Write(p)
}

func (t *txImpl) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransactionClosed
	}
	t.closed = true
	if err := t.f.Sync(); err != nil {
		t.discard()
		return errors.Wrap(err, "error syncing artifact")
	}
	if err := t.f.Close(); err != nil {
		os.Remove(t.f.Name())
		return errors.Wrap(err, "error closing artifact")
	}
	if err := os.Chmod(t.f.Name(), DefaultPerm); err != nil {
		os.Remove(t.f.Name())
		return errors.Wrap(err, "error setting artifact permissions")
	}
	if err := os.Rename(t.f.Name(), t.path); err != nil {
		os.Remove(t.f.Name())
		return errors.Wrap(err, "error committing artifact")
	}
	return nil
}

func (t *txImpl) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransactionClosed
	}
	t.closed = true
	return t.discard()
}

func (t *txImpl) discard() error {
	t.f.Close()
	if err := os.Remove(t.f.Name()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "error removing temporary file")
	}
	return nil
}

// WriteTo streams src to path in a single transaction.
func WriteTo(path string, src io.WriterTo) error {
	tx, err := Create(path)
	if err != nil {
		return err
	}
	if _, err := src.WriteTo(tx); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "error writing artifact")
	}
	return tx.Commit()
}

func WriteFile(path string, data []byte) error {
	return WriteTo(path, bytesWriterTo(data))
}

type bytesWriterTo []byte

func (b bytesWriterTo) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b)
	return int64(n), err
}
