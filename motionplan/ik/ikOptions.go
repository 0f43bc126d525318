package ik

// Options configures a differential IK solver instance. Options are read-only
// once handed to a solver.
type Options struct {
	// MaxIterations is the maximum number of iterations per attempt.
	MaxIterations int

	// MaxRetries is the maximum number of retries with random restarts.
	// If set to 0, only the seed configuration is attempted.
	MaxRetries int

	// MaxTranslationError is the translation error norm, in distance units,
	// below which an attempt counts as converged.
	MaxTranslationError float64

	// MaxRotationError is the rotation error norm, in radians, below which an
	// attempt counts as converged.
	MaxRotationError float64

	// Damping regularizes the Jacobian pseudoinverse. A nonzero value makes
	// each step a Levenberg-Marquardt step.
	Damping float64

	// MinStepSize and MaxStepSize bound the adaptive step scale, which
	// shrinks linearly with the ratio of the current error norm to the error
	// norm at the start of the attempt. Set both equal for a fixed step.
	MinStepSize float64
	MaxStepSize float64
}

// NewBasicOptions returns a usable set of default solver options.
func NewBasicOptions() *Options {
	return &Options{
		MaxIterations:       200,
		MaxRetries:          10,
		MaxTranslationError: 1e-3,
		MaxRotationError:    1e-3,
		Damping:             1e-3,
		MinStepSize:         0.1,
		MaxStepSize:         0.5,
	}
}
