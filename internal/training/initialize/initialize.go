// Package initialize provides WeightsInitializer strategies used by the
// per-label training task to produce a starting vector before the
// minimizer runs. Grounded on the original engine's
// training/initializer.h and training/init/{zero,constant,pretrained,numpy}.cpp.
package initialize

import (
	"github.com/xmc-aalto/dismecpp-sub001/internal/objective"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

// WeightsInitializer produces the starting weight vector for one label.
// Created per worker thread by a WeightInitializationStrategy so no
// synchronization is needed across concurrent calls.
type WeightsInitializer interface {
	GetInitialWeight(label xmctypes.LabelID, target []xmctypes.Real, objective objective.Objective)
}

// WeightInitializationStrategy builds one WeightsInitializer per worker
// thread, handed the NUMA-local feature matrix copy that thread will train
// against.
type WeightInitializationStrategy interface {
	MakeInitializer(features *xmctypes.FeatureMatrix) WeightsInitializer
}

// --- zero ---

type zeroInitializer struct{}

func (zeroInitializer) GetInitialWeight(_ xmctypes.LabelID, target []xmctypes.Real, _ objective.Objective) {
	for i := range target {
		target[i] = 0
	}
}

type zeroStrategy struct{}

// NewZeroStrategy builds a strategy that always initializes to the zero
// vector.
func NewZeroStrategy() WeightInitializationStrategy { return zeroStrategy{} }

func (zeroStrategy) MakeInitializer(*xmctypes.FeatureMatrix) WeightsInitializer {
	return zeroInitializer{}
}

// --- constant ---

type constantInitializer struct{ vec []xmctypes.Real }

func (c constantInitializer) GetInitialWeight(_ xmctypes.LabelID, target []xmctypes.Real, _ objective.Objective) {
	copy(target, c.vec)
}

type constantStrategy struct{ vec []xmctypes.Real }

// NewConstantStrategy builds a strategy that always initializes to a copy
// of vec. vec's length must equal the objective's NumVariables.
func NewConstantStrategy(vec []xmctypes.Real) WeightInitializationStrategy {
	cp := append([]xmctypes.Real(nil), vec...)
	return constantStrategy{vec: cp}
}

func (c constantStrategy) MakeInitializer(*xmctypes.FeatureMatrix) WeightsInitializer {
	return constantInitializer{vec: c.vec}
}

// --- pretrained ---

// WeightRowSource exposes per-label weight rows from an already-trained
// model, used to warm-start a follow-up training run. model.DenseModel and
// model.SparseModel implement it directly through their WeightRow methods.
type WeightRowSource interface {
	WeightRow(label xmctypes.LabelID) []xmctypes.Real
}

type pretrainedRowInitializer struct{ src WeightRowSource }

func (p pretrainedRowInitializer) GetInitialWeight(label xmctypes.LabelID, target []xmctypes.Real, _ objective.Objective) {
	copy(target, p.src.WeightRow(label))
}

type pretrainedStrategy struct{ src WeightRowSource }

// NewPretrainedStrategy builds a strategy that warm-starts from an
// already-trained model's per-label weight rows.
func NewPretrainedStrategy(src WeightRowSource) WeightInitializationStrategy {
	return pretrainedStrategy{src: src}
}

func (p pretrainedStrategy) MakeInitializer(*xmctypes.FeatureMatrix) WeightsInitializer {
	return pretrainedRowInitializer{src: p.src}
}

// --- numpy ---

type numpyInitializer struct {
	weights [][]xmctypes.Real // one row per label, indexed by absolute label id
	biases  []xmctypes.Real   // nil if no bias file was supplied
}

func (n numpyInitializer) GetInitialWeight(label xmctypes.LabelID, target []xmctypes.Real, _ objective.Objective) {
	row := n.weights[int(label)]

	if n.biases != nil {
		copy(target[:len(target)-1], row)
		target[len(target)-1] = n.biases[int(label)]
	} else {
		copy(target, row)
	}
}

type numpyStrategy struct {
	weights [][]xmctypes.Real
	biases  []xmctypes.Real
}

// NewNumpyStrategy builds a strategy that reads initial weights (and
// optionally a per-label bias) from matrices already loaded from .npy
// files, one row per label.
func NewNumpyStrategy(weights [][]xmctypes.Real, biases []xmctypes.Real) WeightInitializationStrategy {
	return numpyStrategy{weights: weights, biases: biases}
}

func (n numpyStrategy) MakeInitializer(*xmctypes.FeatureMatrix) WeightsInitializer {
	return numpyInitializer{weights: n.weights, biases: n.biases}
}

// --- feature-mean ---

// LabelInstanceSource exposes positive example indices per label, the
// minimal slice of dataset.Dataset the feature-mean strategy needs.
type LabelInstanceSource interface {
	NumExamples() int64
	GetLabelInstances(label xmctypes.LabelID) []int32
}

type featureMeanInitializer struct {
	features *xmctypes.FeatureMatrix
	data     LabelInstanceSource
	pos, neg xmctypes.Real
	bias     bool
}

// GetInitialWeight sets target = (pos*sum(positive rows) + neg*sum(negative
// rows)) / N, with N the total number of examples, after the
// tree-structured-initialization heuristic from Fang et al.
// (SDM 2019): averaging the feature vectors of positive and negative
// examples gives a cheap, usually-better-than-zero starting point.
func (f featureMeanInitializer) GetInitialWeight(label xmctypes.LabelID, target []xmctypes.Real, _ objective.Objective) {
	for i := range target {
		target[i] = 0
	}

	n := int(f.data.NumExamples())
	positives := f.data.GetLabelInstances(label)

	isPositive := make(map[int32]struct{}, len(positives))
	for _, idx := range positives {
		isPositive[idx] = struct{}{}
	}

	d := f.features.Cols()

	var numPos, numNeg xmctypes.Real

	for i := 0; i < n; i++ {
		weight := f.neg
		if _, ok := isPositive[int32(i)]; ok {
			weight = f.pos
			numPos++
		} else {
			numNeg++
		}

		addRow(f.features, i, weight, target[:d])
	}

	total := numPos + numNeg
	if total > 0 {
		for i := 0; i < d; i++ {
			target[i] /= total
		}
	}
}

func addRow(features *xmctypes.FeatureMatrix, row int, scale xmctypes.Real, out []xmctypes.Real) {
	if features.Kind == xmctypes.KindDense {
		r := features.Dense.RawRowView(row)
		for i, v := range r {
			out[i] += scale * v
		}

		return
	}

	cols, vals := features.Sparse.Row(row)
	for k, c := range cols {
		out[c] += scale * vals[k]
	}
}

type featureMeanStrategy struct {
	data     LabelInstanceSource
	pos, neg xmctypes.Real
	bias     bool
}

// NewFeatureMeanStrategy builds a strategy initializing each label's weight
// to the sum of positive (weight pos) and negative (weight neg) feature
// rows divided by the example count. The train command passes pos=1,
// neg=-2, as in the original engine.
func NewFeatureMeanStrategy(data LabelInstanceSource, pos, neg xmctypes.Real, bias bool) WeightInitializationStrategy {
	return featureMeanStrategy{data: data, pos: pos, neg: neg, bias: bias}
}

func (f featureMeanStrategy) MakeInitializer(features *xmctypes.FeatureMatrix) WeightsInitializer {
	return featureMeanInitializer{features: features, data: f.data, pos: f.pos, neg: f.neg, bias: f.bias}
}
