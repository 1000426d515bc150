package postproc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xmc-aalto/dismecpp-sub001/internal/objective"
	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

// quadraticObjective is a trivial stand-in used only to drive sparsify's
// bisection: its loss grows as entries are zeroed away from w*.
type quadraticObjective struct {
	optimum []xmctypes.Real
}

func (q *quadraticObjective) NumVariables() int { return len(q.optimum) }

func (q *quadraticObjective) Value(w []xmctypes.Real) xmctypes.Real {
	var sum xmctypes.Real
	for i, v := range w {
		d := v - q.optimum[i]
		sum += d * d
	}

	return sum
}

func (q *quadraticObjective) Gradient([]xmctypes.Real, []xmctypes.Real)                    {}
func (q *quadraticObjective) HessianVectorProduct([]xmctypes.Real, []xmctypes.Real, []xmctypes.Real) {}
func (q *quadraticObjective) UpdateFeatures(*xmctypes.FeatureMatrix, []int32)               {}
func (q *quadraticObjective) UpdateLabel([]xmctypes.Real)                                   {}
func (q *quadraticObjective) UpdateCosts(xmctypes.Real, xmctypes.Real)                      {}

var _ objective.Objective = (*quadraticObjective)(nil)

func TestIdentityIsNoOp(t *testing.T) {
	w := []xmctypes.Real{1, -2, 0.5}
	want := append([]xmctypes.Real(nil), w...)

	proc := NewIdentityFactory().MakeProcessor(nil)
	proc.Process(0, w, objective.MinimizationResult{}, nil)

	require.Equal(t, want, w)
}

func TestCullingZeroEpsIsIdentity(t *testing.T) {
	w := []xmctypes.Real{0.001, -5, 0.0005}
	want := append([]xmctypes.Real(nil), w...)

	proc := NewCullingFactory(0).MakeProcessor(nil)
	proc.Process(0, w, objective.MinimizationResult{}, nil)

	require.Equal(t, want, w)
}

func TestCullingInfEpsZeroesVector(t *testing.T) {
	w := []xmctypes.Real{0.001, -5, 0.0005}

	proc := NewCullingFactory(xmctypes.Real(1e30)).MakeProcessor(nil)
	proc.Process(0, w, objective.MinimizationResult{}, nil)

	require.Equal(t, []xmctypes.Real{0, 0, 0}, w)
}

func TestCullingThreshold(t *testing.T) {
	w := []xmctypes.Real{0.1, 0.2, 0.3}

	proc := NewCullingFactory(0.25).MakeProcessor(nil)
	proc.Process(0, w, objective.MinimizationResult{}, nil)

	require.Equal(t, []xmctypes.Real{0, 0, 0.3}, w)
}

func TestReorderRoundTripIsIdentity(t *testing.T) {
	w := []xmctypes.Real{10, 20, 30, 40}
	original := append([]xmctypes.Real(nil), w...)

	perm := []int{2, 0, 3, 1}
	inverse := make([]int, len(perm))
	for i, p := range perm {
		inverse[p] = i
	}

	forward := NewReorderFactory(perm).MakeProcessor(nil)
	forward.Process(0, w, objective.MinimizationResult{}, nil)
	require.NotEqual(t, original, w)

	backward := NewReorderFactory(inverse).MakeProcessor(nil)
	backward.Process(0, w, objective.MinimizationResult{}, nil)

	require.Equal(t, original, w)
}

func TestCombinedAppliesStepsInOrder(t *testing.T) {
	w := []xmctypes.Real{1, 2, 3}

	perm := []int{2, 1, 0}
	combined := NewCombinedFactory([]Factory{
		NewCullingFactory(0),
		NewReorderFactory(perm),
	}).MakeProcessor(nil)

	separateCull := NewCullingFactory(0).MakeProcessor(nil)
	separateReorder := NewReorderFactory(perm).MakeProcessor(nil)

	want := append([]xmctypes.Real(nil), w...)
	separateCull.Process(0, want, objective.MinimizationResult{}, nil)
	separateReorder.Process(0, want, objective.MinimizationResult{}, nil)

	combined.Process(0, w, objective.MinimizationResult{}, nil)

	require.Equal(t, want, w)
}

func TestSparsifyStaysWithinTolerance(t *testing.T) {
	optimum := []xmctypes.Real{0.02, 5, -3, 0.01, 0.03}
	w := append([]xmctypes.Real(nil), optimum...)

	obj := &quadraticObjective{optimum: optimum}
	result := objective.MinimizationResult{FinalValue: obj.Value(optimum)}

	tolerance := xmctypes.Real(0.2)
	proc := NewSparsifyFactory(tolerance).MakeProcessor(obj)
	proc.Process(0, w, result, nil)

	bound := (1+tolerance)*result.FinalValue + 1e-5
	require.LessOrEqual(t, float64(obj.Value(w)), float64(bound))
}

func TestSparsifyProducesSomeZeros(t *testing.T) {
	optimum := []xmctypes.Real{0.001, 5, -3, 0.0005, 0.0008, 4}
	w := append([]xmctypes.Real(nil), optimum...)

	obj := &quadraticObjective{optimum: optimum}
	result := objective.MinimizationResult{FinalValue: obj.Value(optimum)}

	proc := NewSparsifyFactory(0.2).MakeProcessor(obj)
	proc.Process(0, w, result, nil)

	zeros := 0
	for _, v := range w {
		if v == 0 {
			zeros++
		}
	}

	require.Greater(t, zeros, 0)
}
