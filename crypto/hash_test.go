package crypto

import (
	"bytes"
	"encoding/hex"
	"nbuild/testutil/testfs"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestBlake2B256(t *testing.T) {
	tests := []struct {
		in  []string
		out string
	}{
		{
			[]string{""},
			"0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8",
		},
		{
			[]string{"", "", "", ""},
			"0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8",
		},
		{
			[]string{"cafe"},
			"4e400278c29c37ee640391dfb9792390a8ac9adb6200ed47c725a86099a8586c",
		},
		{
			[]string{"0000000000000000000000000000000000000000000000000000000000000000"},
			"89eb0d6a8a691dae2cd15ed0369931ce0a949ecafa5c3f93f8121833646e15c3",
		},
		{
			[]string{"00000000000000000000000000000000", "00000000000000000000000000000000"},
			"89eb0d6a8a691dae2cd15ed0369931ce0a949ecafa5c3f93f8121833646e15c3",
		},
	}
	for _, tt := range tests {
		var pieces [][]byte
		for _, hexPiece := range tt.in {
			piece, err := hex.DecodeString(hexPiece)
			require.NoError(t, err)
			pieces = append(pieces, piece)
		}
		out := Blake2B256(pieces...).String()
		require.Equal(t, tt.out, out)
	}
}

func TestHashReader(t *testing.T) {
	data := []byte("neutron image contents")
	h, err := HashReader(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, Blake2B256(data), h)
}

func TestHashFile(t *testing.T) {
	f, done := testfs.NewTempFile(t)
	defer done()
	_, err := f.Write([]byte("cafe"))
	require.NoError(t, err)

	h, err := HashFile(f.Name())
	require.NoError(t, err)
	require.Equal(t, Blake2B256([]byte("cafe")), h)

	_, err = HashFile(f.Name() + ".missing")
	require.Error(t, err)
}

func TestNewHashFromHex(t *testing.T) {
	h := Blake2B256([]byte("x"))
	parsed, err := NewHashFromHex(h.String())
	require.NoError(t, err)
	require.Equal(t, h, parsed)

	_, err = NewHashFromHex("zz")
	require.Error(t, err)
	_, err = NewHashFromHex("cafe")
	require.Error(t, err)

	js, err := h.MarshalJSON()
	require.NoError(t, err)
	require.Equal(t, "\""+h.String()+"\"", string(js))
}

func TestVerifyFile(t *testing.T) {
	f, done := testfs.NewTempFile(t)
	defer done()
	_, err := f.Write([]byte("neutron"))
	require.NoError(t, err)
	want := Blake2B256([]byte("neutron"))

	got, err := VerifyFile(f.Name(), want.String())
	require.NoError(t, err)
	require.Equal(t, want, got)

	got, err = VerifyFile(f.Name(), Blake2B256([]byte("other")).String())
	require.Equal(t, ErrDigestMismatch, errors.Cause(err))
	require.Equal(t, want, got)

	_, err = VerifyFile(f.Name(), "not-hex")
	require.Error(t, err)
}
