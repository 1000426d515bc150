package training

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/xmc-aalto/dismecpp-sub001/internal/dataset"
	"github.com/xmc-aalto/dismecpp-sub001/internal/parallel"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

func linearlySeparableDataset() *dataset.Dataset {
	features := xmctypes.NewDenseFeatureMatrix(mat.NewDense(4, 2, []float64{
		3, 0,
		-3, 0,
		0, 3,
		0, -3,
	}))

	incidence := dataset.Incidence{
		0: {0},    // label 0 separates rows by first coordinate sign
		1: {0, 2}, // label 1 separates rows by the sign of x1+x2
	}

	return dataset.New(features, incidence, 2)
}

func TestTrainingTaskGeneratorProducesWorkingModel(t *testing.T) {
	data := linearlySeparableDataset()

	spec := NewDismecSpec(data, 0.01, false)
	m := spec.MakeModel(data.NumFeatures(), 0, data.NumLabels())

	task := &TrainingTaskGenerator{
		Spec:        spec,
		Model:       m,
		LabelBegin:  0,
		NumFeatures: data.NumFeatures(),
		Features:    data.Features,
	}

	runner := parallel.NewRunner(2, 1)
	runner.BindThreads = false

	result := runner.Run(task, 0)
	require.True(t, result.Finished)

	report := task.Gatherer.Finalize()
	require.Empty(t, report.FailedLabels)

	scores := make([]xmctypes.Real, data.Features.Rows()*2)
	require.NoError(t, m.PredictScores(data.Features, 0, data.Features.Rows(), scores))

	for row := 0; row < 4; row++ {
		for label := 0; label < 2; label++ {
			y := data.GetLabels(xmctypes.LabelID(label))[row]
			score := scores[row*2+label]
			require.Equal(t, y > 0, score > 0, "row %d label %d: y=%v score=%v", row, label, y, score)
		}
	}
}
