package training

import (
	"github.com/xmc-aalto/dismecpp-sub001/internal/dataset"
	"github.com/xmc-aalto/dismecpp-sub001/internal/model"
	"github.com/xmc-aalto/dismecpp-sub001/internal/training/initialize"
	"github.com/xmc-aalto/dismecpp-sub001/internal/training/postproc"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

// TrainingSpec bundles every per-label-pipeline factory (objective,
// minimizer, initializer, post-processor, model) plus the two update hooks
// that install one label's data into a worker's already-constructed
// objective/minimizer, so TrainingTaskGenerator never has to know which
// algorithm it is driving. Grounded on the original engine's
// training/training.h TrainingSpec and its DiSMECTraining/CascadeTraining
// implementations.
type TrainingSpec interface {
	MakeObjective() Objective
	MakeMinimizer() Minimizer
	MakeInitializer(features *xmctypes.FeatureMatrix) initialize.WeightsInitializer
	MakePostProcessor(objective Objective) postproc.PostProcessor
	MakeModel(numFeatures int64, begin, end xmctypes.LabelID) model.Model

	// UpdateObjective installs label's positive/negative instances (and,
	// for Cascade, its shortlist restriction) into objective.
	UpdateObjective(objective Objective, label xmctypes.LabelID)

	// UpdateMinimizer sets minimizer's epsilon from the base value scaled
	// by this label's positive/negative balance.
	UpdateMinimizer(minimizer Minimizer, label xmctypes.LabelID)
}

// scaledEpsilon implements eps = eps_base * max(min(p, n), 1) / N, the
// rare-label convergence tightening shared by DiSMEC and Cascade.
func scaledEpsilon(epsBase xmctypes.Real, positives, negatives int64) xmctypes.Real {
	total := positives + negatives
	if total == 0 {
		return epsBase
	}

	minPN := positives
	if negatives < minPN {
		minPN = negatives
	}

	if minPN < 1 {
		minPN = 1
	}

	return epsBase * xmctypes.Real(minPN) / xmctypes.Real(total)
}

// DismecSpec is the single-feature-source training recipe: squared-hinge
// SVC over one dense-or-sparse feature matrix.
type DismecSpec struct {
	Data        *dataset.Dataset
	Regularizer xmctypes.Real
	Bias        bool
	EpsilonBase xmctypes.Real
	PosWeight   xmctypes.Real
	NegWeight   xmctypes.Real

	Init      initialize.WeightInitializationStrategy
	PostProc  postproc.Factory
	UseSparse bool
}

// NewDismecSpec builds a DismecSpec with the original engine's default
// epsilon base (0.01) and unit class weights.
func NewDismecSpec(data *dataset.Dataset, regularizer xmctypes.Real, bias bool) *DismecSpec {
	return &DismecSpec{
		Data: data, Regularizer: regularizer, Bias: bias,
		EpsilonBase: 0.01, PosWeight: 1, NegWeight: 1,
		Init:     initialize.NewZeroStrategy(),
		PostProc: postproc.NewIdentityFactory(),
	}
}

func (d *DismecSpec) MakeObjective() Objective {
	return NewSquaredHingeSVC(d.Regularizer, d.Bias)
}

func (d *DismecSpec) MakeMinimizer() Minimizer { return NewNewtonMinimizer() }

func (d *DismecSpec) MakeInitializer(features *xmctypes.FeatureMatrix) initialize.WeightsInitializer {
	strategy := d.Init
	if strategy == nil {
		strategy = initialize.NewZeroStrategy()
	}

	return strategy.MakeInitializer(features)
}

func (d *DismecSpec) MakePostProcessor(objective Objective) postproc.PostProcessor {
	factory := d.PostProc
	if factory == nil {
		factory = postproc.NewIdentityFactory()
	}

	return factory.MakeProcessor(objective)
}

func (d *DismecSpec) MakeModel(numFeatures int64, begin, end xmctypes.LabelID) model.Model {
	if d.UseSparse {
		return model.NewSparseModel(begin, end, numFeatures, d.Bias, 0)
	}

	return model.NewDenseModel(begin, end, numFeatures, d.Bias)
}

func (d *DismecSpec) UpdateObjective(objective Objective, label xmctypes.LabelID) {
	objective.UpdateFeatures(d.Data.Features, nil)
	objective.UpdateLabel(d.Data.GetLabels(label))
	objective.UpdateCosts(d.PosWeight, d.NegWeight)
}

func (d *DismecSpec) UpdateMinimizer(minimizer Minimizer, label xmctypes.LabelID) {
	positives := d.Data.NumPositives(label)
	negatives := d.Data.NumNegatives(label)
	minimizer.SetEpsilon(scaledEpsilon(d.EpsilonBase, positives, negatives))
}

// CascadeSpec is the dual-feature-source recipe: a dense embedding block
// and a sparse TF-IDF block, each with its own regularization, and an
// optional per-label shortlist restricting the sub-problem to a precomputed
// set of example rows (with class weights forced to (1,1) while active).
type CascadeSpec struct {
	Dense  *dataset.Dataset
	Sparse *xmctypes.FeatureMatrix

	RegDense, RegSparse xmctypes.Real
	Bias                bool
	EpsilonBase         xmctypes.Real
	PosWeight           xmctypes.Real
	NegWeight           xmctypes.Real

	// Shortlist, if non-nil, maps a label to the example rows its
	// sub-problem is restricted to.
	Shortlist map[xmctypes.LabelID][]int32

	Init     initialize.WeightInitializationStrategy
	PostProc postproc.Factory
}

// NewCascadeSpec builds a CascadeSpec with the original engine's default
// epsilon base and unit class weights.
func NewCascadeSpec(dense *dataset.Dataset, sparse *xmctypes.FeatureMatrix, regDense, regSparse xmctypes.Real, bias bool) *CascadeSpec {
	return &CascadeSpec{
		Dense: dense, Sparse: sparse, RegDense: regDense, RegSparse: regSparse, Bias: bias,
		EpsilonBase: 0.01, PosWeight: 1, NegWeight: 1,
		Init:     initialize.NewZeroStrategy(),
		PostProc: postproc.NewIdentityFactory(),
	}
}

func (c *CascadeSpec) MakeObjective() Objective {
	return NewCascadeSquaredHinge(c.RegDense, c.RegSparse, c.Bias)
}

func (c *CascadeSpec) MakeMinimizer() Minimizer { return NewNewtonMinimizer() }

func (c *CascadeSpec) MakeInitializer(features *xmctypes.FeatureMatrix) initialize.WeightsInitializer {
	strategy := c.Init
	if strategy == nil {
		strategy = initialize.NewZeroStrategy()
	}

	return strategy.MakeInitializer(features)
}

func (c *CascadeSpec) MakePostProcessor(objective Objective) postproc.PostProcessor {
	factory := c.PostProc
	if factory == nil {
		factory = postproc.NewIdentityFactory()
	}

	return factory.MakeProcessor(objective)
}

func (c *CascadeSpec) MakeModel(numFeatures int64, begin, end xmctypes.LabelID) model.Model {
	return model.NewDenseModel(begin, end, numFeatures, c.Bias)
}

func (c *CascadeSpec) UpdateObjective(objective Objective, label xmctypes.LabelID) {
	cascade, ok := objective.(*CascadeSquaredHinge)
	if !ok {
		return
	}

	rows := c.Shortlist[label]

	cascade.UpdateFeatures(c.Dense.Features, rows)
	cascade.UpdateSparseFeatures(c.Sparse)

	labels := c.Dense.GetLabels(label)
	if rows != nil {
		restricted := make([]xmctypes.Real, len(rows))
		for i, r := range rows {
			restricted[i] = labels[r]
		}

		labels = restricted
	}

	cascade.UpdateLabel(labels)

	if rows != nil {
		cascade.UpdateCosts(1, 1)
	} else {
		cascade.UpdateCosts(c.PosWeight, c.NegWeight)
	}
}

func (c *CascadeSpec) UpdateMinimizer(minimizer Minimizer, label xmctypes.LabelID) {
	if rows := c.Shortlist[label]; rows != nil {
		isPositive := make(map[int32]struct{}, len(c.Dense.GetLabelInstances(label)))
		for _, p := range c.Dense.GetLabelInstances(label) {
			isPositive[p] = struct{}{}
		}

		var positives int64

		for _, r := range rows {
			if _, ok := isPositive[r]; ok {
				positives++
			}
		}

		minimizer.SetEpsilon(scaledEpsilon(c.EpsilonBase, positives, int64(len(rows))-positives))

		return
	}

	positives := c.Dense.NumPositives(label)
	negatives := c.Dense.NumNegatives(label)
	minimizer.SetEpsilon(scaledEpsilon(c.EpsilonBase, positives, negatives))
}
