package assembler

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"nbuild/disk"
	"nbuild/nfs"
	"nbuild/testutil/testfs"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{
		Blobs: []Blob{
			{Path: "boot.bin", Data: bytes.Repeat([]byte{0xb0}, 512)},
			{Path: "stage2.bin", Data: bytes.Repeat([]byte{0x52}, 700)},
		},
		PartitionName: "NEUTRON TEST FS",
		Files: []nfs.File{
			{Name: "a", Data: bytes.Repeat([]byte{'a'}, 10)},
			{Name: "b", Data: bytes.Repeat([]byte{'b'}, 600)},
		},
	}
}

func TestBuild_RoundTrip(t *testing.T) {
	opts := testOptions()
	res, err := Build(disk.LayoutFloppyV1, opts)
	require.NoError(t, err)
	require.Equal(t, []int64{0, 512}, res.Offsets)
	require.EqualValues(t, disk.FloppySize, res.Assembler.Size())

	buf := res.Assembler.Buffer()
	head := make([]byte, 1212)
	_, err = buf.ReadAt(head, 0)
	require.NoError(t, err)
	require.Equal(t, append(opts.Blobs[0].Data, opts.Blobs[1].Data...), head)

	sb, err := nfs.ReadSuperblock(buf, disk.LayoutFloppyV1)
	require.NoError(t, err)
	require.Equal(t, "NEUTRON TEST FS", sb.PartitionName)

	entries, err := nfs.ReadTable(buf, disk.LayoutFloppyV1)
	require.NoError(t, err)
	require.Equal(t, res.Entries, entries)
	for i, e := range entries {
		data, err := nfs.ReadFile(buf, e)
		require.NoError(t, err)
		require.Equal(t, opts.Files[i].Data, data)
	}
	require.EqualValues(t, 7, entries[0].StartSector)
	require.EqualValues(t, 8, entries[1].StartSector)
}

func TestBuild_CodeRegionExhausted(t *testing.T) {
	opts := testOptions()
	opts.Blobs = append(opts.Blobs, Blob{Path: "huge.bin", Data: make([]byte, 2000)})
	_, err := Build(disk.LayoutFloppyV1, opts)
	require.Equal(t, ErrCodeRegionExhausted, errors.Cause(err))
}

func TestBuild_CodeFillsRegion(t *testing.T) {
	opts := testOptions()
	opts.Blobs = []Blob{{Path: "exact.bin", Data: make([]byte, disk.LayoutFloppyV1.CodeLimit())}}
	_, err := Build(disk.LayoutFloppyV1, opts)
	require.NoError(t, err)
}

func TestBuild_NameTooLong(t *testing.T) {
	opts := testOptions()
	opts.Files[1].Name = "a_destination_name_that_overflows"
	_, err := Build(disk.LayoutFloppyV1, opts)
	require.Equal(t, nfs.ErrNameTooLong, errors.Cause(err))
}

func TestBuild_NotNFS(t *testing.T) {
	_, err := Build(disk.LayoutEFIV1, testOptions())
	require.Equal(t, nfs.ErrNotNFS, errors.Cause(err))
}

func TestBuild_Deterministic(t *testing.T) {
	dir, done := testfs.NewTempDir(t)
	defer done()

	var digests []string
	var images [][]byte
	for i := 0; i < 2; i++ {
		res, err := Build(disk.LayoutFloppyV1, testOptions())
		require.NoError(t, err)
		p := filepath.Join(dir, "neutron.img")
		digest, err := res.Assembler.Commit(p)
		require.NoError(t, err)
		data, err := ioutil.ReadFile(p)
		require.NoError(t, err)
		digests = append(digests, digest.String())
		images = append(images, data)
	}
	require.Equal(t, digests[0], digests[1])
	require.True(t, bytes.Equal(images[0], images[1]))
	require.Len(t, images[0], disk.FloppySize)
}

func TestBuild_FileBeyondImage(t *testing.T) {
	layout := disk.LayoutFloppyV1
	opts := testOptions()
	opts.Files = append(opts.Files, nfs.File{
		Name: "too-big",
		Data: make([]byte, layout.ImageSize),
	})
	res, err := Build(layout, opts)
	require.Equal(t, disk.ErrWriteBeyondBounds, errors.Cause(err))
	require.Nil(t, res)
}

func TestAssembler_FailedWriteFSBlocksCommit(t *testing.T) {
	dir, done := testfs.NewTempDir(t)
	defer done()
	p := filepath.Join(dir, "neutron.img")

	a, err := New(disk.LayoutFloppyV1, 0)
	require.NoError(t, err)
	_, err = a.WriteFS("FS", []nfs.File{
		{Name: "ok", Data: []byte{1}},
		{Name: "big", Data: make([]byte, disk.FloppySize)},
	})
	require.Equal(t, disk.ErrWriteBeyondBounds, errors.Cause(err))

	// nothing was written before the oversize file was found
	require.Equal(t, make([]byte, disk.FloppySize), a.Buffer().Bytes())
	entries, err := nfs.ReadTable(a.Buffer(), disk.LayoutFloppyV1)
	require.NoError(t, err)
	require.Empty(t, entries)

	_, err = a.Commit(p)
	require.Equal(t, ErrAssemblyFailed, err)
	_, err = a.WriteFS("FS", nil)
	require.Equal(t, ErrAssemblyFailed, err)

	_, err = os.Stat(p)
	require.True(t, os.IsNotExist(err))
	infos, err := ioutil.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, infos)
}

func TestAssembler_CommitWithoutFilesystem(t *testing.T) {
	dir, done := testfs.NewTempDir(t)
	defer done()
	p := filepath.Join(dir, "neutron.img")

	a, err := New(disk.LayoutFloppyV1, 0)
	require.NoError(t, err)
	_, err = a.Stack(Blob{Path: "boot.bin", Data: []byte{0xb0}})
	require.NoError(t, err)
	_, err = a.Commit(p)
	require.Equal(t, ErrFilesystemMissing, err)
	_, err = os.Stat(p)
	require.True(t, os.IsNotExist(err))

	efi, err := New(disk.LayoutEFIV1, 0)
	require.NoError(t, err)
	_, err = efi.Commit(p)
	require.NoError(t, err)
}

func TestAssembler_Ordering(t *testing.T) {
	a, err := New(disk.LayoutFloppyV1, 0)
	require.NoError(t, err)
	_, err = a.WriteFS("FS", nil)
	require.NoError(t, err)

	_, err = a.Stack(Blob{Path: "late.bin", Data: []byte{1}})
	require.Equal(t, ErrFilesystemWritten, err)
	_, err = a.WriteFS("FS", nil)
	require.Equal(t, ErrFilesystemWritten, err)

	dir, done := testfs.NewTempDir(t)
	defer done()
	_, err = a.Commit(filepath.Join(dir, "img"))
	require.NoError(t, err)
	_, err = a.Commit(filepath.Join(dir, "img"))
	require.Equal(t, ErrCommitted, err)
}

func TestNew_ComputedSize(t *testing.T) {
	a, err := New(disk.LayoutEFIV1, 10*1024*1024)
	require.NoError(t, err)
	require.EqualValues(t, (10*1024*2+1)*disk.SectorBytes, a.Size())

	a, err = New(disk.LayoutEFIV1, 1024)
	require.NoError(t, err)
	require.EqualValues(t, disk.DefaultEFISectors*disk.SectorBytes, a.Size())
}

func TestNew_InvalidLayout(t *testing.T) {
	layout := disk.LayoutFloppyV1
	layout.TableOffset = layout.SignatureOffset
	_, err := New(layout, 0)
	require.Error(t, err)
}
