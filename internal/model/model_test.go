package model

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

func featureMatrix() *xmctypes.FeatureMatrix {
	return xmctypes.NewDenseFeatureMatrix(mat.NewDense(2, 3, []float64{
		1, 0, 2,
		0, 1, 1,
	}))
}

func TestDenseModelPredictScoresNoBias(t *testing.T) {
	m := NewDenseModel(10, 12, 3, false)
	require.NoError(t, m.SetWeightsForLabel(10, []xmctypes.Real{1, 1, 1}))
	require.NoError(t, m.SetWeightsForLabel(11, []xmctypes.Real{1, 0, 0}))

	out := make([]xmctypes.Real, 2*2)
	require.NoError(t, m.PredictScores(featureMatrix(), 0, 2, out))

	require.Equal(t, []xmctypes.Real{3, 1, 2, 0}, out)
}

func TestDenseModelSetWeightsRejectsOutOfRange(t *testing.T) {
	m := NewDenseModel(10, 12, 3, false)
	require.Error(t, m.SetWeightsForLabel(9, []xmctypes.Real{1, 1, 1}))
	require.Error(t, m.SetWeightsForLabel(12, []xmctypes.Real{1, 1, 1}))
}

func TestDenseModelSetWeightsRejectsWrongLength(t *testing.T) {
	m := NewDenseModel(10, 11, 3, false)
	require.Error(t, m.SetWeightsForLabel(10, []xmctypes.Real{1, 1}))
}

func TestDenseModelBiasAppendsConstantOne(t *testing.T) {
	m := NewDenseModel(0, 1, 3, true)
	require.NoError(t, m.SetWeightsForLabel(0, []xmctypes.Real{1, 1, 1, 5}))

	out := make([]xmctypes.Real, 2)
	require.NoError(t, m.PredictScores(featureMatrix(), 0, 2, out))

	require.Equal(t, []xmctypes.Real{3 + 5, 2 + 5}, out)
}

func TestDenseModelWeightRowReturnsStoredValues(t *testing.T) {
	m := NewDenseModel(5, 7, 2, false)
	require.NoError(t, m.SetWeightsForLabel(6, []xmctypes.Real{0.5, -0.5}))

	require.Equal(t, []xmctypes.Real{0.5, -0.5}, m.WeightRow(6))
}

func TestSparseModelThresholdingAndPredict(t *testing.T) {
	m := NewSparseModel(0, 2, 3, false, 0.1)
	require.NoError(t, m.SetWeightsForLabel(0, []xmctypes.Real{1, 0.01, 2}))
	require.NoError(t, m.SetWeightsForLabel(1, []xmctypes.Real{0, 0, 0}))

	require.Len(t, m.Row(0), 2)

	out := make([]xmctypes.Real, 2*2)
	require.NoError(t, m.PredictScores(featureMatrix(), 0, 2, out))

	require.Equal(t, []xmctypes.Real{5, 0, 2, 0}, out)
}

func TestSparseModelWeightRowMaterializesDense(t *testing.T) {
	m := NewSparseModel(0, 1, 3, false, 0)
	require.NoError(t, m.SetWeightsForLabel(0, []xmctypes.Real{1, 0, -2}))

	require.Equal(t, []xmctypes.Real{1, 0, -2}, m.WeightRow(0))
}

func TestSparseModelSetWeightsRejectsWrongLength(t *testing.T) {
	m := NewSparseModel(0, 1, 3, false, 0)
	require.Error(t, m.SetWeightsForLabel(0, []xmctypes.Real{1, 2}))
}
