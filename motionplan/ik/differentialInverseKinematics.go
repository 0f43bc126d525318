// Package ik implements a damped, nullspace-aware differential inverse
// kinematics solver over the kinematics and collision oracles.
package ik

import (
	"context"
	"math/rand"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/sea-bass/intro-to-manipulation/collision"
	"github.com/sea-bass/intro-to-manipulation/referenceframe"
	"github.com/sea-bass/intro-to-manipulation/spatialmath"
)

// ErrIKFailed is returned when every attempt is exhausted without a
// tolerance-, limit-, and collision-satisfying solution. It is an ordinary
// outcome callers are expected to check for, not a fault.
var ErrIKFailed = errors.New("ik could not solve for pose")

// StepObserver is invoked once per solver iteration with the attempt number,
// iteration number, and current configuration. Observers are for progress
// reporting and visualization only and are never required for correctness.
type StepObserver func(attempt, iteration int, inputs []referenceframe.Input)

// Solver is a numerical IK solver using damped least-squares (Levenberg-
// Marquardt) steps on the target frame's Jacobian, with random restarts and
// nullspace projection of secondary objectives. A Solver holds no per-solve
// state and may be reused; the model and checker are read-only.
type Solver struct {
	model    referenceframe.Model
	checker  *collision.Checker
	logger   golog.Logger
	options  *Options
	observer StepObserver
}

// NewSolver creates a differential IK solver for the given model. A nil
// checker disables collision validation of converged solutions; nil options
// select defaults.
func NewSolver(model referenceframe.Model, checker *collision.Checker, logger golog.Logger, options *Options) *Solver {
	if options == nil {
		options = NewBasicOptions()
	}
	return &Solver{model: model, checker: checker, logger: logger, options: options}
}

// SetStepObserver attaches an observer invoked at each iteration.
func (s *Solver) SetStepObserver(observer StepObserver) {
	s.observer = observer
}

// Solve runs an IK query for the named frame to reach the target pose. If
// seed is nil a random configuration within joint limits is used, and each
// failed attempt restarts from a new random configuration. The solution is
// wrapped to the canonical angular range and validated against joint limits,
// and against collisions when a checker is attached. Returns ErrIKFailed
// once all attempts are exhausted.
func (s *Solver) Solve(
	ctx context.Context,
	targetFrame string,
	target spatialmath.Pose,
	seed []referenceframe.Input,
	components []NullspaceComponent,
	rseed int,
) ([]referenceframe.Input, error) {
	//nolint: gosec
	randSeed := rand.New(rand.NewSource(int64(rseed)))
	if seed == nil {
		seed = referenceframe.RandomInputs(s.model, randSeed)
	}
	if len(seed) != len(s.model.DoF()) {
		return nil, referenceframe.NewIncorrectInputLengthError(len(seed), len(s.model.DoF()))
	}

	qCur := append([]referenceframe.Input{}, seed...)
	for attempt := 0; attempt <= s.options.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		solution, err := s.attempt(attempt, targetFrame, target, qCur, components)
		if err != nil {
			return nil, err
		}
		if solution != nil {
			s.logger.Debugf("ik solved in %d attempts", attempt+1)
			return solution, nil
		}
		qCur = referenceframe.RandomInputs(s.model, randSeed)
		s.logger.Debugf("ik retry %d", attempt+1)
	}
	return nil, ErrIKFailed
}

// attempt runs a single gradient-descent attempt from qCur. It returns a nil
// configuration when the attempt did not produce a valid solution.
func (s *Solver) attempt(
	attempt int,
	targetFrame string,
	target spatialmath.Pose,
	qCur []referenceframe.Input,
	components []NullspaceComponent,
) ([]referenceframe.Input, error) {
	opts := s.options
	initialErrorNorm := 0.

	for iteration := 0; iteration < opts.MaxIterations; iteration++ {
		if s.observer != nil {
			s.observer(attempt, iteration, qCur)
		}

		cur, err := s.model.Transform(qCur, targetFrame)
		if err != nil {
			return nil, err
		}

		// The error is the log of the transform from the current pose to the
		// target pose, and goes to zero at the target.
		errTwist := spatialmath.PoseLog(spatialmath.PoseDelta(cur, target))
		if errTwist.Linear.Norm() < opts.MaxTranslationError && errTwist.Angular.Norm() < opts.MaxRotationError {
			return s.validate(qCur), nil
		}

		jac, err := s.model.FrameJacobian(qCur, targetFrame, referenceframe.JacobianLocal)
		if err != nil {
			return nil, err
		}

		// The step scale shrinks as the error approaches zero, relative to
		// where this attempt started.
		errNorm := errTwist.Norm()
		if initialErrorNorm == 0 {
			initialErrorNorm = errNorm
		}
		alpha := opts.MinStepSize + (1-errNorm/initialErrorNorm)*(opts.MaxStepSize-opts.MinStepSize)

		errVec := errTwist.AsSlice()
		var deltaQ []float64
		if len(components) == 0 {
			deltaQ, err = dampedLeastSquares(jac, errVec, opts.Damping)
			if err != nil {
				return nil, err
			}
		} else {
			// Project the summed secondary term through the nullspace of the
			// primary task before adding it.
			nullspaceTerm, err := sumComponents(components, qCur)
			if err != nil {
				return nil, err
			}
			var jv mat.VecDense
			jv.MulVec(jac, mat.NewVecDense(len(nullspaceTerm), nullspaceTerm))
			adjusted := make([]float64, len(errVec))
			floats.SubTo(adjusted, errVec, jv.RawVector().Data)
			deltaQ, err = dampedLeastSquares(jac, adjusted, opts.Damping)
			if err != nil {
				return nil, err
			}
			floats.Add(deltaQ, nullspaceTerm)
		}

		for i := range qCur {
			qCur[i].Value += alpha * deltaQ[i]
		}
	}
	return nil, nil
}

// validate wraps a converged configuration to the canonical angular range and
// checks joint limits and collision-freeness. Returns nil if the
// configuration does not qualify as a solution.
func (s *Solver) validate(qCur []referenceframe.Input) []referenceframe.Input {
	wrapped := referenceframe.WrapInputs(qCur)
	if !referenceframe.CheckWithinLimits(s.model, wrapped) {
		s.logger.Debug("ik converged, but outside joint limits")
		return nil
	}
	if s.checker != nil {
		inCollision, err := s.checker.IsInCollision(wrapped)
		if err != nil {
			s.logger.Errorw("error checking collisions for converged configuration", "error", err)
			return nil
		}
		if inCollision {
			s.logger.Debug("ik converged and within joint limits, but in collision")
			return nil
		}
	}
	return wrapped
}

// dampedLeastSquares computes J^T (J J^T + damping^2 I)^-1 vec, keeping steps
// well conditioned near singular Jacobians.
func dampedLeastSquares(jac mat.Matrix, vec []float64, damping float64) ([]float64, error) {
	m, n := jac.Dims()
	var jjt mat.Dense
	jjt.Mul(jac, jac.T())
	for i := 0; i < m; i++ {
		jjt.Set(i, i, jjt.At(i, i)+damping*damping)
	}
	var y mat.VecDense
	if err := y.SolveVec(&jjt, mat.NewVecDense(m, vec)); err != nil {
		return nil, errors.Wrap(err, "damped least squares solve failed")
	}
	var dq mat.VecDense
	dq.MulVec(jac.T(), &y)
	out := make([]float64, n)
	copy(out, dq.RawVector().Data)
	return out, nil
}
