// Package objective defines the convex-loss and minimizer contracts shared
// by the training pipeline (internal/training) and its initializer/
// post-processor plugins (internal/training/initialize,
// internal/training/postproc), kept as a separate leaf package so those
// plugin packages don't need to import the training package itself.
// Grounded on the original engine's objective/objective.h and
// solver/minimizer.h.
package objective

import "github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"

// Objective is a convex loss the minimizer drives to convergence for one
// label at a time. It is mutated in place per label to avoid
// reallocation, as in the original engine, and is therefore NOT
// thread-safe: each worker owns exactly one Objective instance, created by
// TrainingSpec.MakeObjective once per worker thread.
type Objective interface {
	// NumVariables returns D or D+1 (with bias), the length of w.
	NumVariables() int

	// Value returns the objective's scalar loss at w.
	Value(w []xmctypes.Real) xmctypes.Real

	// Gradient writes the gradient of the loss at w into out.
	Gradient(w []xmctypes.Real, out []xmctypes.Real)

	// HessianVectorProduct writes H(w)*v into out, where H is the
	// (possibly Gauss-Newton-approximate) Hessian at w. Used by the
	// Newton minimizer's conjugate-gradient inner loop.
	HessianVectorProduct(w, v []xmctypes.Real, out []xmctypes.Real)

	// UpdateFeatures installs a (possibly row-subset) feature matrix,
	// used by the cascade shortlist mechanism to restrict the
	// sub-problem to a precomputed set of example indices.
	UpdateFeatures(features *xmctypes.FeatureMatrix, rows []int32)

	// UpdateLabel installs the ±1 label vector for the label currently
	// being trained (already restricted to the same row subset as
	// UpdateFeatures, if any).
	UpdateLabel(labels []xmctypes.Real)

	// UpdateCosts sets the positive/negative class weights used by the
	// loss, e.g. (1,1) when a shortlist is active.
	UpdateCosts(posWeight, negWeight xmctypes.Real)
}

// MinimizationResult is what a Minimizer reports after driving an
// Objective to convergence for one label.
type MinimizationResult struct {
	FinalValue xmctypes.Real
	Iterations int
	Converged  bool
}

// Minimizer is the Newton-with-line-search contract the core invokes,
// driving an Objective to a stationary point one label at a time.
type Minimizer interface {
	// SetEpsilon sets the stopping tolerance for the next Minimize call.
	SetEpsilon(eps xmctypes.Real)

	// Minimize drives w (modified in place) to a stationary point of
	// objective, returning the final loss and convergence stats.
	Minimize(objective Objective, w []xmctypes.Real) MinimizationResult
}
