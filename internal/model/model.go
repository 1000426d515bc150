// Package model implements the two trained-model representations: a dense
// L'xD weight matrix and a sparse per-row (index,value) list, both behind
// the single PredictScores contract used by the prediction pipeline.
package model

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/xmc-aalto/dismecpp-sub001/internal/xmcerr"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

// Model is the public contract both representations satisfy.
type Model interface {
	// LabelRange returns the half-open [begin,end) label range this model
	// covers; a model trained with SelectLabels only owns this slice.
	LabelRange() (begin, end xmctypes.LabelID)
	NumFeatures() int64
	HasBias() bool

	// SetWeightsForLabel installs the trained weight vector for label
	// (absolute label id, must lie in LabelRange()). Each label is written
	// exactly once by its owning worker; no locking is required because
	// rows are disjoint.
	SetWeightsForLabel(label xmctypes.LabelID, w []xmctypes.Real) error

	// PredictScores computes scores = features * W^T for the rows
	// [rowBegin,rowEnd) of features against every label this model owns,
	// writing into out ((rowEnd-rowBegin) rows x NumLabels() cols,
	// row-major).
	PredictScores(features *xmctypes.FeatureMatrix, rowBegin, rowEnd int, out []xmctypes.Real) error
}

// numWeights returns D or D+1 depending on the bias flag.
func numWeights(numFeatures int64, bias bool) int64 {
	if bias {
		return numFeatures + 1
	}

	return numFeatures
}

// DenseModel stores weights as a dense L'xnumWeights matrix.
type DenseModel struct {
	begin, end  xmctypes.LabelID
	numFeatures int64
	bias        bool
	weights     *mat.Dense // (end-begin) x numWeights
}

// NewDenseModel allocates an empty dense model for the label range
// [begin,end).
func NewDenseModel(begin, end xmctypes.LabelID, numFeatures int64, bias bool) *DenseModel {
	rows := int(end - begin)
	cols := int(numWeights(numFeatures, bias))

	return &DenseModel{
		begin: begin, end: end, numFeatures: numFeatures, bias: bias,
		weights: mat.NewDense(rows, cols, nil),
	}
}

func (m *DenseModel) LabelRange() (xmctypes.LabelID, xmctypes.LabelID) { return m.begin, m.end }
func (m *DenseModel) NumFeatures() int64                               { return m.numFeatures }
func (m *DenseModel) HasBias() bool                                    { return m.bias }

// WeightRow returns label's stored weight row, satisfying
// initialize.WeightRowSource for warm-start training.
func (m *DenseModel) WeightRow(label xmctypes.LabelID) []xmctypes.Real {
	return m.weights.RawRowView(int(label - m.begin))
}

func (m *DenseModel) SetWeightsForLabel(label xmctypes.LabelID, w []xmctypes.Real) error {
	if label < m.begin || label >= m.end {
		return xmcerr.NewShapeError(int64(label), "label out of range [%d,%d)", m.begin, m.end)
	}

	row := int(label - m.begin)
	cols := m.weights.RawRowView(row)
	if len(w) != len(cols) {
		return xmcerr.NewShapeError(int64(label), "weight vector has %d entries, expected %d", len(w), len(cols))
	}

	copy(cols, w)

	return nil
}

func (m *DenseModel) PredictScores(features *xmctypes.FeatureMatrix, rowBegin, rowEnd int, out []xmctypes.Real) error {
	nLabels := int(m.end - m.begin)
	nWeights := int(numWeights(m.numFeatures, m.bias))

	if len(out) != (rowEnd-rowBegin)*nLabels {
		return xmcerr.NewShapeError(-1, "output buffer has %d entries, expected %d", len(out), (rowEnd-rowBegin)*nLabels)
	}

	for i := rowBegin; i < rowEnd; i++ {
		var row []xmctypes.Real

		if m.bias {
			row = make([]xmctypes.Real, nWeights)

			if features.Kind == xmctypes.KindDense {
				copy(row, features.Dense.RawRowView(i))
			} else {
				cols, vals := features.Sparse.Row(i)
				for k, c := range cols {
					row[c] = vals[k]
				}
			}

			row[nWeights-1] = 1
		}

		for l := 0; l < nLabels; l++ {
			wRow := m.weights.RawRowView(l)

			var score xmctypes.Real

			if m.bias {
				for j, v := range row {
					score += v * wRow[j]
				}
			} else {
				score = features.RowDot(i, wRow)
			}

			out[(i-rowBegin)*nLabels+l] = score
		}
	}

	return nil
}

// SparseEntry is one (index,value) pair of a sparse model row.
type SparseEntry struct {
	Index int32
	Value xmctypes.Real
}

// SparseModel stores weights as, per label, a list of (index,value) pairs
// above a sparsity threshold.
type SparseModel struct {
	begin, end  xmctypes.LabelID
	numFeatures int64
	bias        bool
	threshold   xmctypes.Real
	rows        [][]SparseEntry
}

// NewSparseModel allocates an empty sparse model for [begin,end).
func NewSparseModel(begin, end xmctypes.LabelID, numFeatures int64, bias bool, threshold xmctypes.Real) *SparseModel {
	return &SparseModel{
		begin: begin, end: end, numFeatures: numFeatures, bias: bias, threshold: threshold,
		rows: make([][]SparseEntry, int(end-begin)),
	}
}

func (m *SparseModel) LabelRange() (xmctypes.LabelID, xmctypes.LabelID) { return m.begin, m.end }
func (m *SparseModel) NumFeatures() int64                               { return m.numFeatures }
func (m *SparseModel) HasBias() bool                                    { return m.bias }

// WeightRow materializes label's sparse row to a dense vector, satisfying
// initialize.WeightRowSource for warm-start training.
func (m *SparseModel) WeightRow(label xmctypes.LabelID) []xmctypes.Real {
	out := make([]xmctypes.Real, numWeights(m.numFeatures, m.bias))

	for _, e := range m.rows[label-m.begin] {
		out[e.Index] = e.Value
	}

	return out
}

func (m *SparseModel) SetWeightsForLabel(label xmctypes.LabelID, w []xmctypes.Real) error {
	if label < m.begin || label >= m.end {
		return xmcerr.NewShapeError(int64(label), "label out of range [%d,%d)", m.begin, m.end)
	}

	expected := int(numWeights(m.numFeatures, m.bias))
	if len(w) != expected {
		return xmcerr.NewShapeError(int64(label), "weight vector has %d entries, expected %d", len(w), expected)
	}

	var entries []SparseEntry

	for i, v := range w {
		if v >= m.threshold || v <= -m.threshold {
			entries = append(entries, SparseEntry{Index: int32(i), Value: v})
		}
	}

	m.rows[label-m.begin] = entries

	return nil
}

func (m *SparseModel) Row(label xmctypes.LabelID) []SparseEntry { return m.rows[label-m.begin] }

func (m *SparseModel) PredictScores(features *xmctypes.FeatureMatrix, rowBegin, rowEnd int, out []xmctypes.Real) error {
	nLabels := int(m.end - m.begin)

	if len(out) != (rowEnd-rowBegin)*nLabels {
		return xmcerr.NewShapeError(-1, "output buffer has %d entries, expected %d", len(out), (rowEnd-rowBegin)*nLabels)
	}

	biasIdx := int32(numWeights(m.numFeatures, m.bias) - 1)

	for i := rowBegin; i < rowEnd; i++ {
		for l := 0; l < nLabels; l++ {
			var score xmctypes.Real

			for _, e := range m.rows[l] {
				if m.bias && e.Index == biasIdx {
					score += e.Value
					continue
				}

				score += e.Value * featureAt(features, i, int(e.Index))
			}

			out[(i-rowBegin)*nLabels+l] = score
		}
	}

	return nil
}

func featureAt(features *xmctypes.FeatureMatrix, row, col int) xmctypes.Real {
	if features.Kind == xmctypes.KindDense {
		return features.Dense.At(row, col)
	}

	cols, vals := features.Sparse.Row(row)

	idx := sort.Search(len(cols), func(i int) bool { return cols[i] >= int32(col) })
	if idx < len(cols) && cols[idx] == int32(col) {
		return vals[idx]
	}

	return 0
}
