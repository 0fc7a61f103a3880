package testfs

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func NewTempDir(t *testing.T) (string, func()) {
	dir, err := ioutil.TempDir("", "nbuildtest_")
	require.NoError(t, err)
	return dir, func() {
		require.NoError(t, os.RemoveAll(dir))
	}
}

func NewTempFile(t *testing.T) (*os.File, func()) {
	f, err := ioutil.TempFile("", "nbuildtest_")
	require.NoError(t, err)
	return f, func() {
		require.NoError(t, f.Close())
		require.NoError(t, os.Remove(f.Name()))
	}
}

// WriteFiles creates each file under dir, creating parent directories as
// needed, and returns dir.
func WriteFiles(t *testing.T, dir string, files map[string][]byte) string {
	for name, data := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, ioutil.WriteFile(p, data, 0644))
	}
	return dir
}
