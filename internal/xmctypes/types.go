// Package xmctypes defines the core numeric value types shared by every
// other package in the engine: label ids, thread ids, the scalar real
// type, and the dense/sparse feature matrix aliases. Keeping label-id and
// thread-id as distinct named types (instead of bare int/int64) turns a
// confused label-id/example-index call site into a compile error.
package xmctypes

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Real is the scalar type used throughout the objective/minimizer/model
// pipeline. A single alias makes it trivial to switch to float32 later
// without touching call sites.
type Real = float64

// LabelID identifies a position in the label space [0, L).
type LabelID int64

// NewLabelID validates and constructs a LabelID.
func NewLabelID(v int64) (LabelID, error) {
	if v < 0 {
		return 0, fmt.Errorf("xmctypes: negative label id %d", v)
	}

	return LabelID(v), nil
}

func (l LabelID) String() string { return fmt.Sprintf("label(%d)", int64(l)) }

// ThreadID identifies one of the [0, T) worker threads used to address
// per-thread scratch arrays. Never derived from a label id or example
// index.
type ThreadID int

func (t ThreadID) String() string { return fmt.Sprintf("thread(%d)", int(t)) }

// MatrixKind tags which concrete representation a FeatureMatrix holds.
type MatrixKind int

const (
	// KindDense marks a row-major dense feature matrix.
	KindDense MatrixKind = iota
	// KindSparse marks a CSR sparse feature matrix.
	KindSparse
)

func (k MatrixKind) String() string {
	switch k {
	case KindDense:
		return "dense"
	case KindSparse:
		return "sparse"
	default:
		return "unknown"
	}
}

// SparseMatrix is a read-only CSR-style sparse matrix: row i's entries are
// ColIndex[RowStart[i]:RowStart[i+1]] / Values[RowStart[i]:RowStart[i+1]].
type SparseMatrix struct {
	RowStart []int32
	ColIndex []int32
	Values   []Real
	Rows     int
	Cols     int
}

// NewSparseMatrix builds a CSR matrix from already-sorted row data.
func NewSparseMatrix(rows, cols int, rowStart, colIndex []int32, values []Real) *SparseMatrix {
	return &SparseMatrix{RowStart: rowStart, ColIndex: colIndex, Values: values, Rows: rows, Cols: cols}
}

// Row returns the column indices and values for row i without copying.
func (s *SparseMatrix) Row(i int) ([]int32, []Real) {
	begin, end := s.RowStart[i], s.RowStart[i+1]
	return s.ColIndex[begin:end], s.Values[begin:end]
}

// RowDot computes the dot product of sparse row i with a dense vector w
// (optionally skipping a bias column appended at index len(w)-1 handled by
// the caller).
func (s *SparseMatrix) RowDot(i int, w []Real) Real {
	cols, vals := s.Row(i)

	var sum Real

	for k, c := range cols {
		sum += vals[k] * w[c]
	}

	return sum
}

// FeatureMatrix is a tagged union of dense/sparse row-major feature data,
// immutable for the lifetime of a training/prediction run.
type FeatureMatrix struct {
	Kind   MatrixKind
	Dense  *mat.Dense
	Sparse *SparseMatrix
}

// NewDenseFeatureMatrix wraps a gonum dense matrix.
func NewDenseFeatureMatrix(m *mat.Dense) *FeatureMatrix {
	return &FeatureMatrix{Kind: KindDense, Dense: m}
}

// NewSparseFeatureMatrix wraps a CSR sparse matrix.
func NewSparseFeatureMatrix(m *SparseMatrix) *FeatureMatrix {
	return &FeatureMatrix{Kind: KindSparse, Sparse: m}
}

// Rows returns the number of examples (rows).
func (f *FeatureMatrix) Rows() int {
	if f.Kind == KindDense {
		r, _ := f.Dense.Dims()
		return r
	}

	return f.Sparse.Rows
}

// Cols returns the number of features (columns).
func (f *FeatureMatrix) Cols() int {
	if f.Kind == KindDense {
		_, c := f.Dense.Dims()
		return c
	}

	return f.Sparse.Cols
}

// RowDot computes w·x for row i, regardless of the underlying
// representation.
func (f *FeatureMatrix) RowDot(i int, w []Real) Real {
	if f.Kind == KindDense {
		row := f.Dense.RawRowView(i)

		var sum Real
		for j, v := range row {
			sum += v * w[j]
		}

		return sum
	}

	return f.Sparse.RowDot(i, w)
}

// Clone returns a deep copy, used by the NUMA replicator to produce one
// independent copy per node.
func (f *FeatureMatrix) Clone() *FeatureMatrix {
	if f.Kind == KindDense {
		var cp mat.Dense

		cp.CloneFrom(f.Dense)

		return NewDenseFeatureMatrix(&cp)
	}

	s := f.Sparse

	rowStart := append([]int32(nil), s.RowStart...)
	colIndex := append([]int32(nil), s.ColIndex...)
	values := append([]Real(nil), s.Values...)

	return NewSparseFeatureMatrix(NewSparseMatrix(s.Rows, s.Cols, rowStart, colIndex, values))
}
