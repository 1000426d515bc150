package predict

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/xmc-aalto/dismecpp-sub001/internal/model"
	"github.com/xmc-aalto/dismecpp-sub001/internal/parallel"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

func toyFeatures() *xmctypes.FeatureMatrix {
	return xmctypes.NewDenseFeatureMatrix(mat.NewDense(3, 2, []float64{
		1, 0,
		0, 1,
		1, 1,
	}))
}

func toyModel(t *testing.T) model.Model {
	m := model.NewDenseModel(0, 2, 2, false)
	require.NoError(t, m.SetWeightsForLabel(0, []xmctypes.Real{1, 0}))
	require.NoError(t, m.SetWeightsForLabel(1, []xmctypes.Real{0, 1}))

	return m
}

func TestDensePredictionTaskScoresAllRows(t *testing.T) {
	features := toyFeatures()
	task := NewDensePredictionTask(features, toyModel(t), nil, nil)

	runner := parallel.NewRunner(2, 2)
	runner.BindThreads = false

	result := runner.Run(task, 0)
	require.True(t, result.Finished)

	require.Equal(t, []xmctypes.Real{1, 0, 0, 1, 1, 1}, task.Predictions)
}

func TestTopKPredictionTaskOrdersAndConfusionMatrixInvariant(t *testing.T) {
	features := toyFeatures()
	groundTruth := [][]xmctypes.LabelID{{0}, {1}, {0, 1}}

	task := NewTopKPredictionTask(features, toyModel(t), nil, 1, groundTruth, nil)

	runner := parallel.NewRunner(2, 2)
	runner.BindThreads = false

	result := runner.Run(task, 0)
	require.True(t, result.Finished)

	// row 2's scores tie at 1 for both labels; the later label index wins
	// the insertion-merge tie-break.
	require.Equal(t, []int64{0, 1, 1}, task.TopKIndices)

	cm := task.ConfusionMatrix()
	n := int64(features.Rows()) * 2
	require.Equal(t, n, cm[TruePositives]+cm[FalsePositives]+cm[TrueNegatives]+cm[FalseNegatives])
}

func TestTopKPredictionTaskHandlesKGreaterThanOne(t *testing.T) {
	features := toyFeatures()

	task := NewTopKPredictionTask(features, toyModel(t), nil, 2, nil, nil)

	runner := parallel.NewRunner(1, 3)
	runner.BindThreads = false

	result := runner.Run(task, 0)
	require.True(t, result.Finished)

	// row 2 scores [1,1] tied; both labels must appear among top-2.
	row2 := task.TopKIndices[2*2 : 3*2]
	require.ElementsMatch(t, []int64{0, 1}, row2)
}
