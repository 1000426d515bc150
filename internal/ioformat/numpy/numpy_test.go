package numpy

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteHeaderLength(t *testing.T) {
	var buf bytes.Buffer

	desc := MakeDescription("<f8", false, 3)
	require.NoError(t, WriteHeader(&buf, desc))

	require.Equal(t, byte(0x93), buf.Bytes()[0])
	require.Equal(t, []byte("NUMPY"), buf.Bytes()[1:6])

	require.Zero(t, buf.Len()%64, "total header length must be a multiple of 64")

	// version 3 with a 4-byte header length field, matching the original
	// engine's writer: \x93NUMPY\x03\x00\x74\x00\x00\x00{...}
	require.Equal(t, []byte{0x93, 'N', 'U', 'M', 'P', 'Y', 0x03, 0x00, 0x74, 0x00, 0x00, 0x00}, buf.Bytes()[:12])
}

func TestHeaderRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		desc string
	}{
		{"vector", MakeDescription("<f8", false, 3)},
		{"matrix", MakeDescription2D("<f8", false, 4, 5)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteHeader(&buf, tc.desc))

			header, err := ParseHeader(&buf)
			require.NoError(t, err)
			require.Equal(t, "<f8", header.DataType)
			require.False(t, header.ColumnMajor)
		})
	}
}

func TestSaveLoadMatrixRoundTrip(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6}

	var buf bytes.Buffer
	require.NoError(t, SaveMatrix(&buf, data, 2, 3))

	loaded, header, err := LoadMatrix(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(2), header.Rows)
	require.Equal(t, int64(3), header.Cols)
	require.Equal(t, data, loaded)
}

func TestSaveLoadVectorRoundTrip(t *testing.T) {
	data := []float64{1.5, -2.25, 3}

	var buf bytes.Buffer
	require.NoError(t, SaveMatrix(&buf, data, int64(len(data)), 0))

	loaded, header, err := LoadMatrix(&buf)
	require.NoError(t, err)
	require.Equal(t, int64(0), header.Cols)
	require.Equal(t, data, loaded)
}

func TestReadElementsSupportsUnsignedInts(t *testing.T) {
	raw := []byte{
		0xFF, 0xFF, 0xFF, 0xFF, // <u4 max
		0x01, 0x00, 0x00, 0x00, // <u4 1
	}
	out := make([]float64, 2)
	require.NoError(t, readElements(bytes.NewReader(raw), "<u4", out))
	require.Equal(t, []float64{4294967295, 1}, out)

	raw64 := []byte{
		0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, // <u8 max
	}
	out64 := make([]float64, 1)
	require.NoError(t, readElements(bytes.NewReader(raw64), "<u8", out64))
	require.Equal(t, []float64{18446744073709551615}, out64)
}

func TestParseHeaderRejectsUnknownVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(magic[:])
	buf.Write([]byte{9, 0})

	_, err := ParseHeader(&buf)
	require.Error(t, err)
}

func TestIsNpy(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, SaveMatrix(&buf, []float64{1}, 1, 0))

	ok, err := IsNpy(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = IsNpy(bytes.NewReader([]byte("not an npy file at all")))
	require.NoError(t, err)
	require.False(t, ok)
}
