package initrd

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nbuild/testutil/testfs"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	entries := []Entry{
		{Name: "x.txt", Data: []byte("hi")},
		{Name: "y.bin", Data: make([]byte, 1000)},
	}
	archive, err := Build(entries)
	require.NoError(t, err)
	require.Len(t, archive, 64*3+2+1000)
	require.EqualValues(t, len(archive), Size(entries))

	records, err := Parse(archive)
	require.NoError(t, err)
	require.Equal(t, []Record{
		{Name: "x.txt", Offset: 192, Size: 2},
		{Name: "y.bin", Offset: 194, Size: 1000},
	}, records)
	require.Equal(t, []byte("hi"), Extract(archive, records[0]))
	require.Equal(t, make([]byte, 1000), Extract(archive, records[1]))

	// end slot is all zero
	require.Equal(t, make([]byte, EntryLen), archive[128:192])
}

func TestBuild_Layout(t *testing.T) {
	archive, err := Build([]Entry{{Name: "ab", Data: []byte{0xee}}})
	require.NoError(t, err)
	exp := make([]byte, 129)
	copy(exp, []byte{128, 0, 0, 0, 1, 0, 0, 0, 'a', 'b'})
	exp[128] = 0xee
	require.Equal(t, exp, archive)
}

func TestBuild_Empty(t *testing.T) {
	archive, err := Build(nil)
	require.NoError(t, err)
	require.Equal(t, make([]byte, EntryLen), archive)
	records, err := Parse(archive)
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestBuild_Names(t *testing.T) {
	tests := []struct {
		name  string
		entry string
		err   error
	}{
		{
			"name fills the field",
			strings.Repeat("n", 56),
			nil,
		},
		{
			"name longer than the field",
			strings.Repeat("n", 57),
			ErrNameTooLong,
		},
		{
			"empty name",
			"",
			ErrEmptyName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive, err := Build([]Entry{
				{Name: tt.entry, Data: []byte("data")},
				{Name: "next", Data: []byte("more")},
			})
			require.Equal(t, tt.err, errors.Cause(err))
			if tt.err != nil {
				require.Nil(t, archive)
				return
			}
			records, err := Parse(archive)
			require.NoError(t, err)
			require.Equal(t, tt.entry, records[0].Name)
			require.Equal(t, "next", records[1].Name)
		})
	}
}

func TestParse_Corrupt(t *testing.T) {
	archive, err := Build([]Entry{{Name: "a", Data: []byte("abc")}})
	require.NoError(t, err)

	_, err = Parse(archive[:EntryLen+10])
	require.Equal(t, ErrCorruptArchive, errors.Cause(err))

	_, err = Parse(archive[:len(archive)-1])
	require.Equal(t, ErrCorruptArchive, errors.Cause(err))
}

func TestCollectDir_Sorted(t *testing.T) {
	build := func(order []string) []byte {
		dir, done := testfs.NewTempDir(t)
		defer done()
		for _, name := range order {
			require.NoError(t, ioutil.WriteFile(filepath.Join(dir, name), []byte(name+" contents"), 0644))
		}
		require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0755))

		entries, err := CollectDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, len(order))
		archive, err := Build(entries)
		require.NoError(t, err)
		return archive
	}

	a := build([]string{"fonts.bin", "app.elf", "config"})
	b := build([]string{"config", "fonts.bin", "app.elf"})
	require.True(t, bytes.Equal(a, b))

	records, err := Parse(a)
	require.NoError(t, err)
	require.Equal(t, "app.elf", records[0].Name)
	require.Equal(t, "config", records[1].Name)
	require.Equal(t, "fonts.bin", records[2].Name)
}

func TestCollectDir_Missing(t *testing.T) {
	_, err := CollectDir(filepath.Join(os.TempDir(), "nbuild-missing-initrd-dir"))
	require.Error(t, err)
}
