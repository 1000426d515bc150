package training

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

func toyFeatures() *xmctypes.FeatureMatrix {
	return xmctypes.NewDenseFeatureMatrix(mat.NewDense(5, 2, []float64{
		1, 0,
		0, 1,
		-1, 0,
		0, -1,
		2, -2, // at w=(0.3,-0.7) this row has margin < 0, exercising the inactive branch
	}))
}

func newToyObjective() *SquaredHingeSVC {
	o := NewSquaredHingeSVC(0.5, false)
	o.UpdateFeatures(toyFeatures(), nil)
	o.UpdateLabel([]xmctypes.Real{1, 1, -1, -1, 1})
	o.UpdateCosts(1, 1)

	return o
}

func TestSquaredHingeValueAtZeroIsHingeOnly(t *testing.T) {
	o := newToyObjective()

	// margin = 1 - y*0 = 1 for every row, loss contribution = 1 each.
	require.InDelta(t, 5.0, float64(o.Value(make([]xmctypes.Real, 2))), 1e-9)
}

func TestSquaredHingeGradientMatchesFiniteDifference(t *testing.T) {
	o := newToyObjective()

	w := []xmctypes.Real{0.3, -0.7}
	grad := make([]xmctypes.Real, 2)
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

func TestSquaredHingeHessianVectorProductMatchesFiniteDifference(t *testing.T) {
	o := newToyObjective()

	w := []xmctypes.Real{0.3, -0.7}
	v := []xmctypes.Real{1, 0}

	hv := make([]xmctypes.Real, 2)
	o.HessianVectorProduct(w, v, hv)

	const h = 1e-4
	gradPlus := make([]xmctypes.Real, 2)
	gradMinus := make([]xmctypes.Real, 2)

	plus := []xmctypes.Real{w[0] + h*v[0], w[1] + h*v[1]}
	minus := []xmctypes.Real{w[0] - h*v[0], w[1] - h*v[1]}

	o.Gradient(plus, gradPlus)
	o.Gradient(minus, gradMinus)

	for i := range hv {
		numeric := (gradPlus[i] - gradMinus[i]) / (2 * h)
		require.InDelta(t, float64(numeric), float64(hv[i]), 1e-2)
	}
}

func TestNewtonMinimizerConverges(t *testing.T) {
	o := newToyObjective()
	minimizer := NewNewtonMinimizer()
	minimizer.SetEpsilon(1e-6)

	w := make([]xmctypes.Real, 2)
	result := minimizer.Minimize(o, w)

	require.True(t, result.Converged)

	grad := make([]xmctypes.Real, 2)
	o.Gradient(w, grad)

	var norm xmctypes.Real
	for _, g := range grad {
		norm += g * g
	}

	require.Less(t, math.Sqrt(float64(norm)), 1e-3)
}

func TestScaledEpsilonMatchesRareLabelFormula(t *testing.T) {
	got := scaledEpsilon(0.01, 5, 95)
	require.InDelta(t, 0.01*5.0/100.0, float64(got), 1e-12)

	got = scaledEpsilon(0.01, 0, 0)
	require.InDelta(t, 0.01, float64(got), 1e-12)
}
