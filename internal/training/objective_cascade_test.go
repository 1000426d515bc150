package training

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

func cascadeDenseFeatures() *xmctypes.FeatureMatrix {
	return xmctypes.NewDenseFeatureMatrix(mat.NewDense(4, 2, []float64{
		1, 0,
		0, 1,
		1, 1,
		5, -5, // at the test's w this row has margin < 0, exercising the inactive branch
	}))
}

func cascadeSparseFeatures() *xmctypes.FeatureMatrix {
	sm := xmctypes.NewSparseMatrix(4, 2, []int32{0, 1, 2, 3, 3}, []int32{0, 1, 0}, []xmctypes.Real{2, 3, 1})
	return xmctypes.NewSparseFeatureMatrix(sm)
}

func newToyCascade(bias bool) *CascadeSquaredHinge {
	o := NewCascadeSquaredHinge(0.3, 0.7, bias)
	o.UpdateFeatures(cascadeDenseFeatures(), nil)
	o.UpdateSparseFeatures(cascadeSparseFeatures())
	o.UpdateLabel([]xmctypes.Real{1, -1, 1, 1})
	o.UpdateCosts(1, 1)

	return o
}

func TestCascadeNumVariablesIncludesBothBlocksAndBias(t *testing.T) {
	require.Equal(t, 4, newToyCascade(false).NumVariables())
	require.Equal(t, 5, newToyCascade(true).NumVariables())
}

func TestCascadeGradientMatchesFiniteDifference(t *testing.T) {
	o := newToyCascade(true)

	w := []xmctypes.Real{0.2, -0.1, 0.4, 0.05, -0.3}
	grad := make([]xmctypes.Real, len(w))
	o.Gradient(w, grad)

	const h = 1e-6
	for i := range w {
		plus := append([]xmctypes.Real(nil), w...)
		minus := append([]xmctypes.Real(nil), w...)
		plus[i] += h
		minus[i] -= h

		numeric := (o.Value(plus) - o.Value(minus)) / (2 * h)
		require.InDelta(t, float64(numeric), float64(grad[i]), 1e-4)
	}
}

func TestCascadeHessianVectorProductMatchesFiniteDifference(t *testing.T) {
	o := newToyCascade(true)

	w := []xmctypes.Real{0.2, -0.1, 0.4, 0.05, -0.3}
	v := []xmctypes.Real{1, 0, 0, 0, 0}

	hv := make([]xmctypes.Real, len(w))
	o.HessianVectorProduct(w, v, hv)

	const h = 1e-4

	plus := append([]xmctypes.Real(nil), w...)
	minus := append([]xmctypes.Real(nil), w...)
	for i := range v {
		plus[i] += h * v[i]
		minus[i] -= h * v[i]
	}

	gradPlus := make([]xmctypes.Real, len(w))
	gradMinus := make([]xmctypes.Real, len(w))
	o.Gradient(plus, gradPlus)
	o.Gradient(minus, gradMinus)

	for i := range hv {
		numeric := (gradPlus[i] - gradMinus[i]) / (2 * h)
		require.InDelta(t, float64(numeric), float64(hv[i]), 1e-2)
	}
}

func TestCascadeRowRestrictionOnlySumsSelectedRows(t *testing.T) {
	full := newToyCascade(false)
	w := []xmctypes.Real{0.5, -0.5, 0.2, 0.1}

	restricted := NewCascadeSquaredHinge(0.3, 0.7, false)
	restricted.UpdateFeatures(cascadeDenseFeatures(), []int32{0, 2})
	restricted.UpdateSparseFeatures(cascadeSparseFeatures())
	restricted.UpdateLabel([]xmctypes.Real{1, 1})
	restricted.UpdateCosts(1, 1)

	require.Equal(t, 2, restricted.rowCount())
	require.NotEqual(t, full.Value(w), restricted.Value(w))
}
