package text

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

func TestParseHeaderBasic(t *testing.T) {
	header, err := ParseHeader("3 5")
	require.NoError(t, err)
	require.Equal(t, int64(3), header.Rows)
	require.Equal(t, int64(5), header.Cols)
}

func TestParseHeaderTrailingWhitespaceTolerated(t *testing.T) {
	header, err := ParseHeader("6   ")
	require.Error(t, err, "a single-token header is missing the column count")
	_ = header

	header, err = ParseHeader("3 5   ")
	require.NoError(t, err)
	require.Equal(t, int64(3), header.Rows)
	require.Equal(t, int64(5), header.Cols)
}

func TestParseHeaderRejectsExtraTokens(t *testing.T) {
	_, err := ParseHeader("3 5 7")
	require.Error(t, err)
}

func TestParseHeaderRejectsNonPositive(t *testing.T) {
	_, err := ParseHeader("0 5")
	require.Error(t, err)

	_, err = ParseHeader("3 -1")
	require.Error(t, err)
}

func TestReadSparseMatrixIncidence(t *testing.T) {
	input := "3 3\n1:1\n0:1\n0:1 2:1"

	file, err := ReadSparseMatrix(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, file.Rows, 3)

	incidence := map[xmctypes.LabelID][]int32{}

	for example, row := range file.Rows {
		for _, idx := range row.Index {
			incidence[xmctypes.LabelID(idx)] = append(incidence[xmctypes.LabelID(idx)], int32(example))
		}
	}

	require.Equal(t, []int32{1, 2}, incidence[0])
	require.Equal(t, []int32{0}, incidence[1])
	require.Equal(t, []int32{2}, incidence[2])
}

func TestReadBinarySparseLabelsRejectsNonUnitValue(t *testing.T) {
	input := "1 2\n0:0.5"

	_, _, _, err := ReadBinarySparseLabels(strings.NewReader(input))
	require.Error(t, err)
}

func TestSparseMatrixWriteReadRoundTrip(t *testing.T) {
	rows := []SparseRow{
		{Index: []int32{0, 2, 1}, Value: []xmctypes.Real{0.5, 1.5, 0.9}},
		{Index: []int32{1, 31, 2}, Value: []xmctypes.Real{1.5, 0.9, 0.4}},
	}

	var buf strings.Builder
	require.NoError(t, WriteSparseMatrix(&buf, 32, rows))
	require.Equal(t, "2 32\n0:0.5 2:1.5 1:0.9\n1:1.5 31:0.9 2:0.4\n", buf.String())

	reread, err := ReadSparseMatrix(strings.NewReader(buf.String()))
	require.NoError(t, err)
	require.Equal(t, rows, reread.Rows)
}

func TestWriteDenseVectorNoTrailingSpace(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, WriteDenseVector(&buf, []xmctypes.Real{1, 2, 3}))
	require.Equal(t, "1 2 3", buf.String())
}

func TestReadDenseVector(t *testing.T) {
	out := make([]xmctypes.Real, 3)
	require.NoError(t, ReadDenseVector(strings.NewReader("1 2.5 -3"), out))
	require.Equal(t, []xmctypes.Real{1, 2.5, -3}, out)
}

func TestParseSparseVectorMissingColon(t *testing.T) {
	err := ParseSparseVector("0 1", func(int64, xmctypes.Real) error { return nil })
	require.Error(t, err)
}
