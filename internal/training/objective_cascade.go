package training

import (
	"gonum.org/v1/gonum/floats"

	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

// CascadeSquaredHinge is the two-feature-source squared-hinge objective: a
// dense embedding block and a sparse TF-IDF block, each with its own
// regularization strength, sharing one label vector and one cost pair. The
// variable vector w is the concatenation [w_dense | w_sparse], optionally
// followed by a single shared bias term.
type CascadeSquaredHinge struct {
	dense  *xmctypes.FeatureMatrix
	sparse *xmctypes.FeatureMatrix
	rows   []int32 // nil means "use every row"

	regDense  xmctypes.Real
	regSparse xmctypes.Real
	bias      bool

	labels    []xmctypes.Real
	posWeight xmctypes.Real
	negWeight xmctypes.Real
}

// NewCascadeSquaredHinge builds a dual-source objective. dense and sparse
// must have the same row count; they are installed (or row-restricted) via
// UpdateFeatures.
func NewCascadeSquaredHinge(regDense, regSparse xmctypes.Real, bias bool) *CascadeSquaredHinge {
	return &CascadeSquaredHinge{regDense: regDense, regSparse: regSparse, bias: bias, posWeight: 1, negWeight: 1}
}

func (o *CascadeSquaredHinge) rowCount() int {
	if o.rows != nil {
		return len(o.rows)
	}

	return o.dense.Rows()
}

func (o *CascadeSquaredHinge) rowIndex(i int) int {
	if o.rows != nil {
		return int(o.rows[i])
	}

	return i
}

func (o *CascadeSquaredHinge) denseDim() int  { return o.dense.Cols() }
func (o *CascadeSquaredHinge) sparseDim() int { return o.sparse.Cols() }

// NumVariables returns Dd + Ds (+1 with bias).
func (o *CascadeSquaredHinge) NumVariables() int {
	n := o.denseDim() + o.sparseDim()
	if o.bias {
		n++
	}

	return n
}

func (o *CascadeSquaredHinge) split(w []xmctypes.Real) (wd, ws []xmctypes.Real, biasVal xmctypes.Real) {
	dd := o.denseDim()
	ds := o.sparseDim()

	wd = w[:dd]
	ws = w[dd : dd+ds]

	if o.bias {
		biasVal = w[dd+ds]
	}

	return wd, ws, biasVal
}

func (o *CascadeSquaredHinge) score(i int, wd, ws []xmctypes.Real, bias xmctypes.Real) xmctypes.Real {
	abs := o.rowIndex(i)
	s := o.dense.RowDot(abs, wd) + o.sparse.RowDot(abs, ws)

	if o.bias {
		s += bias
	}

	return s
}

func (o *CascadeSquaredHinge) costFor(i int) xmctypes.Real {
	if o.labels[i] > 0 {
		return o.posWeight
	}

	return o.negWeight
}

// Value computes the combined regularized squared-hinge loss.
func (o *CascadeSquaredHinge) Value(w []xmctypes.Real) xmctypes.Real {
	wd, ws, bias := o.split(w)

	reg := 0.5*o.regDense*floats.Dot(wd, wd) + 0.5*o.regSparse*floats.Dot(ws, ws)

	n := o.rowCount()

	var loss xmctypes.Real

	for i := 0; i < n; i++ {
		margin := 1 - o.labels[i]*o.score(i, wd, ws, bias)
		if margin > 0 {
			loss += o.costFor(i) * margin * margin
		}
	}

	return reg + loss
}

// Gradient writes the gradient, block by block, into out.
func (o *CascadeSquaredHinge) Gradient(w []xmctypes.Real, out []xmctypes.Real) {
	wd, ws, bias := o.split(w)
	outD, outS, _ := o.split(out)

	for i, v := range wd {
		outD[i] = o.regDense * v
	}

	for i, v := range ws {
		outS[i] = o.regSparse * v
	}

	dd := o.denseDim()
	ds := o.sparseDim()

	n := o.rowCount()

	for i := 0; i < n; i++ {
		margin := 1 - o.labels[i]*o.score(i, wd, ws, bias)
		if margin <= 0 {
			continue
		}

		coeff := -2 * o.costFor(i) * o.labels[i] * margin
		abs := o.rowIndex(i)

		addScaledDense(o.dense, abs, coeff, outD)
		addScaledDense(o.sparse, abs, coeff, outS)

		if o.bias {
			out[dd+ds] += coeff
		}
	}
}

// HessianVectorProduct writes H(w)*v into out using the same Gauss-Newton
// curvature convention as SquaredHingeSVC: only rows with positive margin
// at w contribute.
func (o *CascadeSquaredHinge) HessianVectorProduct(w, v []xmctypes.Real, out []xmctypes.Real) {
	wd, ws, bias := o.split(w)
	vd, vs, vBias := o.split(v)
	outD, outS, _ := o.split(out)

	for i, x := range vd {
		outD[i] = o.regDense * x
	}

	for i, x := range vs {
		outS[i] = o.regSparse * x
	}

	dd := o.denseDim()
	ds := o.sparseDim()

	n := o.rowCount()

	for i := 0; i < n; i++ {
		margin := 1 - o.labels[i]*o.score(i, wd, ws, bias)
		if margin <= 0 {
			continue
		}

		abs := o.rowIndex(i)

		dot := o.dense.RowDot(abs, vd) + o.sparse.RowDot(abs, vs)
		if o.bias {
			dot += vBias
		}

		coeff := 2 * o.costFor(i) * dot

		addScaledDense(o.dense, abs, coeff, outD)
		addScaledDense(o.sparse, abs, coeff, outS)

		if o.bias {
			out[dd+ds] += coeff
		}
	}
}

func addScaledDense(features *xmctypes.FeatureMatrix, row int, scale xmctypes.Real, out []xmctypes.Real) {
	if features.Kind == xmctypes.KindDense {
		floats.AddScaled(out, scale, features.Dense.RawRowView(row))
		return
	}

	cols, vals := features.Sparse.Row(row)
	for k, c := range cols {
		out[c] += scale * vals[k]
	}
}

// UpdateFeatures installs the dense feature matrix; use UpdateSparseFeatures
// for the sparse half. rows restricts both sources to the same row subset,
// as required by the shortlist mechanism.
func (o *CascadeSquaredHinge) UpdateFeatures(features *xmctypes.FeatureMatrix, rows []int32) {
	o.dense = features
	o.rows = rows
}

// UpdateSparseFeatures installs the sparse feature matrix (the Cascade
// objective's second source, outside the single-source Objective contract).
func (o *CascadeSquaredHinge) UpdateSparseFeatures(features *xmctypes.FeatureMatrix) {
	o.sparse = features
}

// UpdateLabel installs the ±1 label vector for the currently trained label.
func (o *CascadeSquaredHinge) UpdateLabel(labels []xmctypes.Real) { o.labels = labels }

// UpdateCosts sets the positive/negative class weights.
func (o *CascadeSquaredHinge) UpdateCosts(pos, neg xmctypes.Real) {
	o.posWeight = pos
	o.negWeight = neg
}
