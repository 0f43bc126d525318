//go:build windows || no_cgo

// Package trajopt implements direct-collocation trajectory optimization over
// piecewise cubic joint trajectories, backed by a nonlinear constrained solver.
package trajopt

import (
	"context"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"

	"github.com/sea-bass/intro-to-manipulation/collision"
	"github.com/sea-bass/intro-to-manipulation/referenceframe"
	"github.com/sea-bass/intro-to-manipulation/trajectory"
)

// ErrPlanningFailed is returned when the solver cannot find a feasible
// trajectory.
var ErrPlanningFailed = errors.New("trajectory optimization failed to find a feasible solution")

// Planner mimics the type in the cgo compiled code.
type Planner struct{}

// NewPlanner is not supported on no_cgo builds.
func NewPlanner(
	model referenceframe.Model,
	checker *collision.Checker,
	logger golog.Logger,
	options *Options,
) (*Planner, error) {
	return nil, errors.New("nlopt is not supported on this build")
}

// Plan refuses to plan without cgo.
func (p *Planner) Plan(
	ctx context.Context,
	path [][]referenceframe.Input,
	initPath [][]referenceframe.Input,
) (*trajectory.Trajectory, error) {
	return nil, errors.New("cannot plan trajectories without cgo")
}
