// Package postproc implements the post-processors applied to a label's
// weight vector right after the minimizer converges: identity, culling,
// reordering, sparsify and their composition. Grounded on the original
// engine's training/postproc.h and training/postproc/{sparsify,reorder,combine}.cpp.
package postproc

import (
	"math"

	"github.com/xmc-aalto/dismecpp-sub001/internal/stats"
	"github.com/xmc-aalto/dismecpp-sub001/internal/objective"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

// PostProcessor mutates a label's weight vector in place after the
// minimizer has produced it.
type PostProcessor interface {
	Process(label xmctypes.LabelID, w []xmctypes.Real, result objective.MinimizationResult, collection *stats.ThreadCollection)
}

// Factory builds one PostProcessor per worker thread, handed that thread's
// Objective instance (sparsify needs it to re-evaluate the loss at
// candidate cutoffs).
type Factory interface {
	MakeProcessor(objective objective.Objective) PostProcessor
}

// --- identity ---

type identityProcessor struct{}

func (identityProcessor) Process(xmctypes.LabelID, []xmctypes.Real, objective.MinimizationResult, *stats.ThreadCollection) {
}

type identityFactory struct{}

// NewIdentityFactory builds a factory whose processors never modify w.
func NewIdentityFactory() Factory { return identityFactory{} }

func (identityFactory) MakeProcessor(objective.Objective) PostProcessor { return identityProcessor{} }

// --- culling ---

type cullingProcessor struct{ eps xmctypes.Real }

func (c cullingProcessor) Process(_ xmctypes.LabelID, w []xmctypes.Real, _ objective.MinimizationResult, _ *stats.ThreadCollection) {
	for i, v := range w {
		if math.Abs(v) < c.eps {
			w[i] = 0
		}
	}
}

type cullingFactory struct{ eps xmctypes.Real }

// NewCullingFactory builds a factory zeroing every entry with |w_i| < eps.
func NewCullingFactory(eps xmctypes.Real) Factory { return cullingFactory{eps: eps} }

func (c cullingFactory) MakeProcessor(objective.Objective) PostProcessor {
	return cullingProcessor{eps: c.eps}
}

// --- reorder ---

type reorderProcessor struct {
	perm    []int
	scratch []xmctypes.Real
}

func (r *reorderProcessor) Process(_ xmctypes.LabelID, w []xmctypes.Real, _ objective.MinimizationResult, _ *stats.ThreadCollection) {
	if len(r.scratch) != len(w) {
		r.scratch = make([]xmctypes.Real, len(w))
	}

	for i, p := range r.perm {
		r.scratch[i] = w[p]
	}

	copy(w, r.scratch)
}

type reorderFactory struct{ perm []int }

// NewReorderFactory builds a factory applying a fixed permutation
// out[i] = w[perm[i]], used to invert a training-time feature permutation.
func NewReorderFactory(perm []int) Factory { return reorderFactory{perm: append([]int(nil), perm...)} }

func (r reorderFactory) MakeProcessor(objective.Objective) PostProcessor {
	return &reorderProcessor{perm: r.perm}
}

// --- combined ---

type combinedProcessor struct{ steps []PostProcessor }

func (c combinedProcessor) Process(label xmctypes.LabelID, w []xmctypes.Real, result objective.MinimizationResult, collection *stats.ThreadCollection) {
	for _, s := range c.steps {
		s.Process(label, w, result, collection)
	}
}

type combinedFactory struct{ factories []Factory }

// NewCombinedFactory builds a factory applying each of factories in order.
func NewCombinedFactory(factories []Factory) Factory {
	return combinedFactory{factories: append([]Factory(nil), factories...)}
}

func (c combinedFactory) MakeProcessor(objective objective.Objective) PostProcessor {
	steps := make([]PostProcessor, len(c.factories))
	for i, f := range c.factories {
		steps[i] = f.MakeProcessor(objective)
	}

	return combinedProcessor{steps: steps}
}

// --- sparsify ---

type bound struct {
	cutoff xmctypes.Real
	nnz    int
	loss   xmctypes.Real
}

// sparsifyProcessor finds a minimal-nonzero cutoff c such that zeroing
// every |w_i| < c still keeps the loss within (1+tolerance) of the
// minimizer's optimum, using running log-cutoff statistics across labels
// to bracket the binary search cheaply.
type sparsifyProcessor struct {
	objective objective.Objective
	tolerance xmctypes.Real
	working   []xmctypes.Real

	numValues xmctypes.Real
	sumLog    xmctypes.Real
	sumSqrLog xmctypes.Real
}

func newSparsifyProcessor(objective objective.Objective, tolerance xmctypes.Real) *sparsifyProcessor {
	return &sparsifyProcessor{
		objective: objective,
		tolerance: tolerance,
		working:   make([]xmctypes.Real, objective.NumVariables()),
		numValues: 1,
		sumLog:    math.Log(0.02),
		sumSqrLog: math.Log(0.02) * math.Log(0.02),
	}
}

func makeSparse(target, source []xmctypes.Real, cutoff xmctypes.Real) int {
	nnz := 0

	for i, v := range source {
		if math.Abs(v) < cutoff {
			target[i] = 0
		} else {
			target[i] = v
			nnz++
		}
	}

	return nnz
}

func (s *sparsifyProcessor) checkBound(w []xmctypes.Real, logCutoff xmctypes.Real) bound {
	cutoff := math.Exp(logCutoff)
	nnz := makeSparse(s.working, w, cutoff)
	loss := s.objective.Value(s.working)

	return bound{cutoff: cutoff, nnz: nnz, loss: loss}
}

func maxAbs(w []xmctypes.Real) xmctypes.Real {
	var m xmctypes.Real

	for _, v := range w {
		if a := math.Abs(v); a > m {
			m = a
		}
	}

	return m
}

// findInitialBounds brackets the sparsify cutoff using the running
// log-cutoff mean/stddev, probing exp(mean), exp(mean±std) and
// exp(mean+3std) before falling back to max|w_i|.
func (s *sparsifyProcessor) findInitialBounds(w []xmctypes.Real, tolerance, initialLower xmctypes.Real) (lower, upper bound, steps int) {
	meanLog := s.sumLog / s.numValues
	stdLog := math.Sqrt(s.sumSqrLog/s.numValues-meanLog*meanLog + 1e-5)

	check := func(logCutoff xmctypes.Real) bound {
		steps++
		return s.checkBound(w, logCutoff)
	}

	atMean := check(meanLog)

	if atMean.loss > tolerance {
		minusStd := check(meanLog - stdLog)
		if minusStd.loss > tolerance {
			return bound{cutoff: 0, nnz: len(w), loss: initialLower}, minusStd, steps
		}

		return minusStd, atMean, steps
	}

	plusStd := check(meanLog + stdLog)
	if plusStd.loss > tolerance {
		return atMean, plusStd, steps
	}

	plus3Std := check(meanLog + 3*stdLog)
	if plus3Std.loss > tolerance {
		return plusStd, plus3Std, steps
	}

	atMax := check(math.Log(maxAbs(w)))

	return plus3Std, atMax, steps
}

func (s *sparsifyProcessor) Process(label xmctypes.LabelID, w []xmctypes.Real, result objective.MinimizationResult, collection *stats.ThreadCollection) {
	tolerance := (1+s.tolerance)*result.FinalValue + 1e-5

	lower, upper, initialSteps := s.findInitialBounds(w, tolerance, result.FinalValue)

	count := 0

	for (lower.nnz - upper.nnz) > upper.nnz/10+1 {
		middle := (upper.cutoff + lower.cutoff) / 2

		nnz := makeSparse(s.working, w, middle)
		newScore := s.objective.Value(s.working)

		if newScore > tolerance {
			upper = bound{cutoff: middle, nnz: nnz, loss: newScore}
		} else {
			lower = bound{cutoff: middle, nnz: nnz, loss: newScore}
		}

		count++
	}

	nnz := makeSparse(w, w, lower.cutoff)

	s.numValues++
	logCutoff := math.Log(lower.cutoff)
	s.sumLog += logCutoff
	s.sumSqrLog += logCutoff * logCutoff

	if collection != nil {
		collection.Record(int64(label), "cutoff", "", lower.cutoff)
		collection.Record(int64(label), "nnz", "%", 100*xmctypes.Real(nnz)/xmctypes.Real(len(w)))
		collection.Record(int64(label), "binary_search_steps", "", xmctypes.Real(count))
		collection.Record(int64(label), "initial_steps", "", xmctypes.Real(initialSteps))
	}
}

type sparsifyFactory struct{ tolerance xmctypes.Real }

// NewSparsifyFactory builds a factory whose processors sparsify each
// label's weight vector down to the densest cutoff still within tolerance
// of the optimal loss.
func NewSparsifyFactory(tolerance xmctypes.Real) Factory { return sparsifyFactory{tolerance: tolerance} }

func (s sparsifyFactory) MakeProcessor(objective objective.Objective) PostProcessor {
	return newSparsifyProcessor(objective, s.tolerance)
}
