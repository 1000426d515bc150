// Package training implements the per-label training pipeline: objective
// assembly, Newton-with-line-search invocation, weight initialization and
// post-processing. Grounded on the original engine's
// training/{dismec,cascade}.{h,cpp} and solver/minimizer.h.
package training

import "github.com/xmc-aalto/dismecpp-sub001/internal/objective"

// Objective, MinimizationResult and Minimizer are re-exported from
// internal/objective so every file in this package can refer to them
// unqualified, while internal/training/initialize and
// internal/training/postproc depend on internal/objective directly and
// avoid an import cycle back through this package.
type (
	Objective          = objective.Objective
	MinimizationResult = objective.MinimizationResult
	Minimizer          = objective.Minimizer
)
