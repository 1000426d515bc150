package xmctypes

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewLabelIDRejectsNegative(t *testing.T) {
	_, err := NewLabelID(-1)
	require.Error(t, err)

	id, err := NewLabelID(7)
	require.NoError(t, err)
	require.Equal(t, LabelID(7), id)
}

func TestDenseFeatureMatrixDimsAndRowDot(t *testing.T) {
	m := NewDenseFeatureMatrix(mat.NewDense(2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	}))

	require.Equal(t, 2, m.Rows())
	require.Equal(t, 3, m.Cols())
	require.Equal(t, KindDense, m.Kind)

	require.InDelta(t, 1*1+2*1+3*1, float64(m.RowDot(0, []Real{1, 1, 1})), 1e-9)
}

func TestSparseFeatureMatrixDimsAndRowDot(t *testing.T) {
	sm := NewSparseMatrix(2, 4, []int32{0, 2, 3}, []int32{0, 2, 1}, []Real{1, 2, 3})
	m := NewSparseFeatureMatrix(sm)

	require.Equal(t, 2, m.Rows())
	require.Equal(t, 4, m.Cols())
	require.Equal(t, KindSparse, m.Kind)

	w := []Real{1, 0, 10, 0}
	require.InDelta(t, 1*1+2*10, float64(m.RowDot(0, w)), 1e-9)
	require.InDelta(t, 3*0, float64(m.RowDot(1, w)), 1e-9)
}

func TestCloneIsIndependentCopy(t *testing.T) {
	dense := NewDenseFeatureMatrix(mat.NewDense(1, 2, []float64{1, 2}))
	clone := dense.Clone()

	clone.Dense.Set(0, 0, 99)
	require.Equal(t, float64(1), dense.Dense.At(0, 0))

	sm := NewSparseFeatureMatrix(NewSparseMatrix(1, 2, []int32{0, 1}, []int32{0}, []Real{5}))
	sclone := sm.Clone()
	sclone.Sparse.Values[0] = 100
	require.Equal(t, Real(5), sm.Sparse.Values[0])
}

func TestMatrixKindString(t *testing.T) {
	require.Equal(t, "dense", KindDense.String())
	require.Equal(t, "sparse", KindSparse.String())
}
