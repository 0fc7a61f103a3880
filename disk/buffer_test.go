package disk

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestBuffer_WriteAt(t *testing.T) {
	tests := []struct {
		name string
		len  int
		off  int64
		err  error
	}{
		{
			"offset past buffer bounds",
			0,
			1025,
			ErrWriteBeyondBounds,
		},
		{
			"len + offset past buffer bounds",
			10,
			1023,
			ErrWriteBeyondBounds,
		},
		{
			"len past buffer bounds",
			1025,
			0,
			ErrWriteBeyondBounds,
		},
		{
			"negative offset",
			1,
			-1,
			ErrNegativeOffset,
		},
		{
			"exactly fills the tail",
			24,
			1000,
			nil,
		},
		{
			"len + offset within buffer bounds",
			10,
			10,
			nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := NewBuffer(1024)
			require.NoError(t, err)
			p := bytes.Repeat([]byte{0xff}, tt.len)
			n, err := buf.WriteAt(p, tt.off)
			require.Equal(t, tt.err, errors.Cause(err))
			if tt.err != nil {
				require.Equal(t, 0, n)
				require.Equal(t, make([]byte, 1024), buf.Bytes())
				return
			}
			require.Equal(t, tt.len, n)
		})
	}
}

func TestBuffer_Append(t *testing.T) {
	buf, err := NewBuffer(8)
	require.NoError(t, err)

	off, err := buf.Append([]byte{1, 2, 3})
	require.NoError(t, err)
	require.EqualValues(t, 0, off)
	off, err = buf.Append([]byte{4, 5})
	require.NoError(t, err)
	require.EqualValues(t, 3, off)
	require.EqualValues(t, 5, buf.Cursor())

	_, err = buf.Append([]byte{6, 7, 8, 9})
	require.Equal(t, ErrWriteBeyondBounds, errors.Cause(err))
	require.EqualValues(t, 5, buf.Cursor())
	require.Equal(t, []byte{1, 2, 3, 4, 5, 0, 0, 0}, buf.Bytes())
}

func TestBuffer_PutUint32(t *testing.T) {
	buf, err := NewBuffer(8)
	require.NoError(t, err)
	require.NoError(t, buf.PutUint32(2, 0xDEADF500))
	require.Equal(t, []byte{0, 0, 0x00, 0xf5, 0xad, 0xde, 0, 0}, buf.Bytes())
	require.Equal(t, ErrWriteBeyondBounds, errors.Cause(buf.PutUint32(5, 1)))
}

func TestBuffer_ReadAt(t *testing.T) {
	buf, err := NewBuffer(4)
	require.NoError(t, err)
	_, err = buf.WriteAt([]byte{1, 2, 3, 4}, 0)
	require.NoError(t, err)

	p := make([]byte, 3)
	n, err := buf.ReadAt(p, 2)
	require.Equal(t, io.EOF, err)
	require.Equal(t, 2, n)
	require.Equal(t, []byte{3, 4, 0}, p)

	_, err = buf.ReadAt(p, 4)
	require.Equal(t, io.EOF, err)
}

func TestNewBuffer_Negative(t *testing.T) {
	_, err := NewBuffer(-1)
	require.Error(t, err)
}
