package training

import (
	"gonum.org/v1/gonum/floats"

	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

// SquaredHingeSVC implements L2-regularized squared-hinge one-vs-all SVM,
// the DiSMEC loss (Regularized_SquaredHingeSVC in the original engine).
//
//	loss(w) = 0.5 * reg * w·w + sum_i cost_i * max(0, 1 - y_i * w·x_i)^2
//
// UpdateFeatures/UpdateLabel/UpdateCosts mutate this objective in place so
// the same instance is reused across every label trained by a worker.
type SquaredHingeSVC struct {
	features  *xmctypes.FeatureMatrix
	rows      []int32 // nil means "use all rows of features"
	labels    []xmctypes.Real
	posWeight xmctypes.Real
	negWeight xmctypes.Real
	reg       xmctypes.Real
	bias      bool
}

// NewSquaredHingeSVC builds an objective with L2 regularization strength
// reg. bias appends a constant 1 feature (weight vector has D+1 entries).
func NewSquaredHingeSVC(reg xmctypes.Real, bias bool) *SquaredHingeSVC {
	return &SquaredHingeSVC{reg: reg, bias: bias, posWeight: 1, negWeight: 1}
}

func (o *SquaredHingeSVC) rowCount() int {
	if o.rows != nil {
		return len(o.rows)
	}

	return o.features.Rows()
}

func (o *SquaredHingeSVC) rowIndex(i int) int {
	if o.rows != nil {
		return int(o.rows[i])
	}

	return i
}

// NumVariables returns D or D+1 with bias.
func (o *SquaredHingeSVC) NumVariables() int {
	if o.bias {
		return o.features.Cols() + 1
	}

	return o.features.Cols()
}

func (o *SquaredHingeSVC) rowDot(i int, w []xmctypes.Real) xmctypes.Real {
	abs := o.rowIndex(i)

	d := o.features.Cols()
	score := o.features.RowDot(abs, w[:d])

	if o.bias {
		score += w[d]
	}

	return score
}

func (o *SquaredHingeSVC) costFor(i int) xmctypes.Real {
	if o.labels[i] > 0 {
		return o.posWeight
	}

	return o.negWeight
}

// Value computes the squared-hinge loss at w.
func (o *SquaredHingeSVC) Value(w []xmctypes.Real) xmctypes.Real {
	reg := 0.5 * o.reg * floats.Dot(w, w)

	n := o.rowCount()

	var loss xmctypes.Real

	for i := 0; i < n; i++ {
		margin := 1 - o.labels[i]*o.rowDot(i, w)
		if margin > 0 {
			loss += o.costFor(i) * margin * margin
		}
	}

	return reg + loss
}

// Gradient writes the gradient of Value at w into out.
func (o *SquaredHingeSVC) Gradient(w []xmctypes.Real, out []xmctypes.Real) {
	for i := range out {
		out[i] = o.reg * w[i]
	}

	n := o.rowCount()
	d := o.features.Cols()

	for i := 0; i < n; i++ {
		margin := 1 - o.labels[i]*o.rowDot(i, w)
		if margin <= 0 {
			continue
		}

		coeff := -2 * o.costFor(i) * o.labels[i] * margin
		o.addScaledRow(i, coeff, out[:d])

		if o.bias {
			out[d] += coeff
		}
	}
}

// HessianVectorProduct writes H(w)*v into out, using the Gauss-Newton
// approximation standard for squared-hinge: only examples with positive
// margin contribute, with curvature 2*cost_i.
func (o *SquaredHingeSVC) HessianVectorProduct(w, v []xmctypes.Real, out []xmctypes.Real) {
	for i := range out {
		out[i] = o.reg * v[i]
	}

	n := o.rowCount()
	d := o.features.Cols()

	for i := 0; i < n; i++ {
		margin := 1 - o.labels[i]*o.rowDot(i, w)
		if margin <= 0 {
			continue
		}

		dot := o.features.RowDot(o.rowIndex(i), v[:d])
		if o.bias {
			dot += v[d]
		}

		coeff := 2 * o.costFor(i) * dot
		o.addScaledRow(i, coeff, out[:d])

		if o.bias {
			out[d] += coeff
		}
	}
}

func (o *SquaredHingeSVC) addScaledRow(i int, scale xmctypes.Real, out []xmctypes.Real) {
	abs := o.rowIndex(i)

	if o.features.Kind == xmctypes.KindDense {
		row := o.features.Dense.RawRowView(abs)
		floats.AddScaled(out, scale, row)

		return
	}

	cols, vals := o.features.Sparse.Row(abs)
	for k, c := range cols {
		out[c] += scale * vals[k]
	}
}

// UpdateFeatures installs a (possibly row-subset) feature matrix.
func (o *SquaredHingeSVC) UpdateFeatures(features *xmctypes.FeatureMatrix, rows []int32) {
	o.features = features
	o.rows = rows
}

// UpdateLabel installs the ±1 label vector for the currently trained label.
func (o *SquaredHingeSVC) UpdateLabel(labels []xmctypes.Real) {
	o.labels = labels
}

// UpdateCosts sets the positive/negative class weights.
func (o *SquaredHingeSVC) UpdateCosts(pos, neg xmctypes.Real) {
	o.posWeight = pos
	o.negWeight = neg
}
