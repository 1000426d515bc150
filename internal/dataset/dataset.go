// Package dataset implements the dense-or-sparse-feature, multi-label
// dataset model: per-label positive/negative queries, dense ±1
// label-vector materialization, and label-range sharding via SelectLabels.
package dataset

import (
	"sort"

	"github.com/xmc-aalto/dismecpp-sub001/internal/xmcerr"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

// Incidence maps a label to the sorted set of example indices where
// y_i,label = 1. Every index must lie in [0, N); sets for distinct labels
// may overlap freely.
type Incidence map[xmctypes.LabelID][]int32

// Dataset couples a feature matrix with a multi-label incidence.
type Dataset struct {
	Features  *xmctypes.FeatureMatrix
	incidence Incidence
	numLabels int64
	numExamples int64
}

// New builds a Dataset from features and a multi-label incidence. The
// caller guarantees every index in incidence lies in [0, NumExamples).
func New(features *xmctypes.FeatureMatrix, incidence Incidence, numLabels int64) *Dataset {
	return &Dataset{
		Features:    features,
		incidence:   incidence,
		numLabels:   numLabels,
		numExamples: int64(features.Rows()),
	}
}

// NewBinary builds a Dataset for a single binary label problem: positives
// is the sorted set of example indices with y=+1.
func NewBinary(features *xmctypes.FeatureMatrix, positives []int32) *Dataset {
	inc := Incidence{0: positives}
	return New(features, inc, 1)
}

func (d *Dataset) NumExamples() int64 { return d.numExamples }
func (d *Dataset) NumFeatures() int64 { return int64(d.Features.Cols()) }
func (d *Dataset) NumLabels() int64   { return d.numLabels }

// NumPositives returns |{i : y_i,label = 1}|.
func (d *Dataset) NumPositives(label xmctypes.LabelID) int64 {
	return int64(len(d.incidence[label]))
}

// NumNegatives returns N - NumPositives(label); always satisfies the
// invariant NumPositives+NumNegatives=N.
func (d *Dataset) NumNegatives(label xmctypes.LabelID) int64 {
	return d.numExamples - d.NumPositives(label)
}

// GetLabelInstances returns the sorted positive example indices for label.
func (d *Dataset) GetLabelInstances(label xmctypes.LabelID) []int32 {
	return d.incidence[label]
}

// GroundTruth transposes the incidence back to one sorted label list per
// example, the shape the top-K prediction task needs to score predictions
// against ground truth.
func (d *Dataset) GroundTruth() [][]xmctypes.LabelID {
	out := make([][]xmctypes.LabelID, d.numExamples)

	for label, examples := range d.incidence {
		for _, idx := range examples {
			out[idx] = append(out[idx], label)
		}
	}

	for i := range out {
		sort.Slice(out[i], func(a, b int) bool { return out[i][a] < out[i][b] })
	}

	return out
}

// GetLabels materializes the dense ±1 vector for label: +1 for positives,
// -1 otherwise.
func (d *Dataset) GetLabels(label xmctypes.LabelID) []float64 {
	out := make([]float64, d.numExamples)
	for i := range out {
		out[i] = -1
	}

	for _, idx := range d.incidence[label] {
		out[idx] = 1
	}

	return out
}

// SelectLabels truncates the dataset to a contiguous label range
// [start,end), used to shard training across jobs. Shares the underlying
// feature matrix.
func (d *Dataset) SelectLabels(start, end xmctypes.LabelID) (*Dataset, error) {
	if start < 0 || end > xmctypes.LabelID(d.numLabels) || start >= end {
		return nil, xmcerr.NewShapeError(int64(start), "invalid label range [%d,%d) for dataset with %d labels", start, end, d.numLabels)
	}

	inc := make(Incidence, end-start)

	for l := start; l < end; l++ {
		if rows, ok := d.incidence[l]; ok {
			inc[l] = rows
		}
	}

	return &Dataset{
		Features:    d.Features,
		incidence:   inc,
		numLabels:   int64(end - start),
		numExamples: d.numExamples,
	}, nil
}

// BuildIncidence transposes a slice of per-example label lists into an
// Incidence map with sorted, deduplicated index lists. Used by I/O readers
// that parse one example's positives at a time.
func BuildIncidence(perExampleLabels [][]xmctypes.LabelID) Incidence {
	inc := make(Incidence)

	for example, labels := range perExampleLabels {
		for _, l := range labels {
			inc[l] = append(inc[l], int32(example))
		}
	}

	for l := range inc {
		sort.Slice(inc[l], func(i, j int) bool { return inc[l][i] < inc[l][j] })

		rows := inc[l][:1]
		for _, r := range inc[l][1:] {
			if r != rows[len(rows)-1] {
				rows = append(rows, r)
			}
		}

		inc[l] = rows
	}

	return inc
}
