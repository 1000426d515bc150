package training

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/xmc-aalto/dismecpp-sub001/internal/xmctypes"
)

// NewtonMinimizer drives an Objective to a stationary point using Newton's
// method with a conjugate-gradient inner solve for the step direction and
// backtracking Armijo line search on the outer step, the same scheme as
// the original engine's solver/minimizer.cpp.
type NewtonMinimizer struct {
	Epsilon    xmctypes.Real
	MaxIters   int
	MaxCGIters int

	// scratch, resized lazily to avoid per-label allocation churn
	grad, step, hv, cgR, cgD, cgHd, wTrial []xmctypes.Real
}

// NewNewtonMinimizer builds a minimizer with the original engine's default
// tolerances: outer loop capped at 1000 Newton steps, inner CG capped at
// min(n, 100).
func NewNewtonMinimizer() *NewtonMinimizer {
	return &NewtonMinimizer{Epsilon: 0.01, MaxIters: 1000, MaxCGIters: 100}
}

// SetEpsilon sets the relative gradient-norm stopping tolerance.
func (m *NewtonMinimizer) SetEpsilon(eps xmctypes.Real) { m.Epsilon = eps }

func (m *NewtonMinimizer) alloc(n int) {
	if len(m.grad) == n {
		return
	}

	m.grad = make([]xmctypes.Real, n)
	m.step = make([]xmctypes.Real, n)
	m.hv = make([]xmctypes.Real, n)
	m.cgR = make([]xmctypes.Real, n)
	m.cgD = make([]xmctypes.Real, n)
	m.cgHd = make([]xmctypes.Real, n)
	m.wTrial = make([]xmctypes.Real, n)
}

// Minimize runs Newton-CG with backtracking line search, modifying w in
// place. Convergence is declared once ||grad|| <= Epsilon * ||grad_0||,
// matching the original engine's relative stopping rule.
func (m *NewtonMinimizer) Minimize(objective Objective, w []xmctypes.Real) MinimizationResult {
	n := objective.NumVariables()
	m.alloc(n)

	maxCG := m.MaxCGIters
	if maxCG <= 0 || maxCG > n {
		maxCG = n
	}

	objective.Gradient(w, m.grad)
	gradNorm0 := floats.Norm(m.grad, 2)

	if gradNorm0 == 0 {
		return MinimizationResult{FinalValue: objective.Value(w), Iterations: 0, Converged: true}
	}

	value := objective.Value(w)

	iter := 0
	for ; iter < m.MaxIters; iter++ {
		gradNorm := floats.Norm(m.grad, 2)
		if gradNorm <= m.Epsilon*gradNorm0 {
			return MinimizationResult{FinalValue: value, Iterations: iter, Converged: true}
		}

		m.conjugateGradient(objective, w, m.grad, m.step, maxCG)

		// backtracking Armijo line search along step
		gDotStep := floats.Dot(m.grad, m.step)
		if gDotStep >= 0 {
			// step is not a descent direction (numerical breakdown in CG);
			// fall back to steepest descent
			copy(m.step, m.grad)
			floats.Scale(-1, m.step)
			gDotStep = floats.Dot(m.grad, m.step)
		}

		const (
			armijoC    = 1e-4
			shrink     = 0.5
			maxLSSteps = 30
		)

		alpha := xmctypes.Real(1.0)

		var newValue xmctypes.Real

		accepted := false

		for ls := 0; ls < maxLSSteps; ls++ {
			copy(m.wTrial, w)
			floats.AddScaled(m.wTrial, alpha, m.step)

			newValue = objective.Value(m.wTrial)
			if newValue <= value+armijoC*alpha*gDotStep {
				accepted = true
				break
			}

			alpha *= shrink
		}

		if !accepted {
			return MinimizationResult{FinalValue: value, Iterations: iter, Converged: false}
		}

		copy(w, m.wTrial)
		value = newValue

		objective.Gradient(w, m.grad)
	}

	return MinimizationResult{FinalValue: value, Iterations: iter, Converged: false}
}

// conjugateGradient approximately solves H(w)*step = -grad for step, where H
// is supplied only as a matrix-vector product via objective, linearized at
// the current Newton iterate w.
func (m *NewtonMinimizer) conjugateGradient(objective Objective, w, grad, step []xmctypes.Real, maxIters int) {
	for i := range step {
		step[i] = 0
	}

	copy(m.cgR, grad)
	floats.Scale(-1, m.cgR)
	copy(m.cgD, m.cgR)

	rsOld := floats.Dot(m.cgR, m.cgR)
	if rsOld == 0 {
		return
	}

	tol := math.Max(1e-10, 0.1*rsOld)

	for i := 0; i < maxIters; i++ {
		objective.HessianVectorProduct(w, m.cgD, m.cgHd)

		dHd := floats.Dot(m.cgD, m.cgHd)
		if dHd <= 0 {
			// Hessian not positive definite along d; stop and use the best
			// direction found so far.
			return
		}

		alpha := rsOld / dHd

		floats.AddScaled(step, alpha, m.cgD)
		floats.AddScaled(m.cgR, -alpha, m.cgHd)

		rsNew := floats.Dot(m.cgR, m.cgR)
		if rsNew <= tol {
			return
		}

		beta := rsNew / rsOld

		for j := range m.cgD {
			m.cgD[j] = m.cgR[j] + beta*m.cgD[j]
		}

		rsOld = rsNew
	}
}
