//go:build !windows && !no_cgo

// Package trajopt implements direct-collocation trajectory optimization over
// piecewise cubic joint trajectories, backed by a nonlinear constrained solver.
package trajopt

import (
	"context"
	"math"
	"sync"

	"github.com/edaniels/golog"
	"github.com/go-nlopt/nlopt"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	goutils "go.viam.com/utils"

	"github.com/sea-bass/intro-to-manipulation/collision"
	"github.com/sea-bass/intro-to-manipulation/referenceframe"
	"github.com/sea-bass/intro-to-manipulation/trajectory"
)

// ErrPlanningFailed is returned when the solver cannot find a feasible
// trajectory. No partial trajectory is ever returned alongside it.
var ErrPlanningFailed = errors.New("trajectory optimization failed to find a feasible solution")

const (
	defaultConstraintTol = 1e-6
	defaultXtolRel       = 1e-8
	defaultMaxEval       = 100000
)

// Planner optimizes waypoint, collocation-point, and segment-duration
// variables describing a multi-segment cubic trajectory, minimizing the sum
// of squared segment durations subject to kinematic and collision
// constraints. A Planner is read-only after construction.
type Planner struct {
	model   referenceframe.Model
	checker *collision.Checker
	logger  golog.Logger
	options *Options
	limits  *expandedLimits
	dof     int
}

// NewPlanner creates a trajectory optimization planner for the given model.
// Malformed options fail here, before any planning work. The checker may be
// nil when collision checking is disabled.
func NewPlanner(
	model referenceframe.Model,
	checker *collision.Checker,
	logger golog.Logger,
	options *Options,
) (*Planner, error) {
	if options == nil {
		options = NewBasicOptions()
	}
	dof := len(model.DoF())
	if err := options.validate(dof); err != nil {
		return nil, err
	}
	if options.CheckCollisions && checker == nil {
		return nil, errors.New("collision checking requires a collision checker")
	}
	limits, err := options.kinematicLimits(dof)
	if err != nil {
		return nil, err
	}
	return &Planner{
		model:   model,
		checker: checker,
		logger:  logger,
		options: options,
		limits:  limits,
		dof:     dof,
	}, nil
}

// program maps the optimization variable blocks onto one flat vector:
// waypoint positions x, waypoint velocities xd, collocation positions xc,
// collocation velocities xcd, and segment durations h.
type program struct {
	nw, ns, dof            int
	oX, oXd, oXc, oXcd, oH int
	dim                    int
}

func newProgram(nw, dof int) *program {
	ns := nw - 1
	p := &program{nw: nw, ns: ns, dof: dof}
	p.oX = 0
	p.oXd = p.oX + nw*dof
	p.oXc = p.oXd + nw*dof
	p.oXcd = p.oXc + ns*dof
	p.oH = p.oXcd + ns*dof
	p.dim = p.oH + ns
	return p
}

func (p *program) x(k, j int) int   { return p.oX + k*p.dof + j }
func (p *program) xd(k, j int) int  { return p.oXd + k*p.dof + j }
func (p *program) xc(k, j int) int  { return p.oXc + k*p.dof + j }
func (p *program) xcd(k, j int) int { return p.oXcd + k*p.dof + j }
func (p *program) h(k int) int      { return p.oH + k }

// segmentVars reads the five scalars governing one degree of freedom of one
// segment out of the flat vector.
func (p *program) segmentVars(vals []float64, k, j int) (x0, v0, vc, v1, h float64) {
	return vals[p.x(k, j)], vals[p.xd(k, j)], vals[p.xcd(k, j)], vals[p.xd(k+1, j)], vals[p.h(k)]
}

// Plan optimizes a trajectory along the given joint configurations. A path
// of exactly 2 entries pins only the start and goal, leaving intermediate
// waypoints free; a path of exactly NumWaypoints entries pins every waypoint.
// initPath optionally seeds the waypoint initial guess. Returns
// ErrPlanningFailed when the solver reports infeasibility.
func (p *Planner) Plan(
	ctx context.Context,
	path [][]referenceframe.Input,
	initPath [][]referenceframe.Input,
) (*trajectory.Trajectory, error) {
	nw := p.options.NumWaypoints
	fullyPinned := len(path) == nw
	if len(path) != 2 && !fullyPinned {
		return nil, errors.Errorf("path must have either 2 or %d configurations, got %d", nw, len(path))
	}
	for _, q := range path {
		if len(q) != p.dof {
			return nil, referenceframe.NewIncorrectInputLengthError(len(q), p.dof)
		}
	}
	if initPath != nil && len(initPath) != nw {
		return nil, errors.Errorf("initial guess must have %d configurations, got %d", nw, len(initPath))
	}

	prog := newProgram(nw, p.dof)
	opt, err := nlopt.NewNLopt(nlopt.LD_SLSQP, uint(prog.dim))
	if err != nil {
		return nil, errors.Wrap(err, "nlopt creation error")
	}
	defer opt.Destroy()

	lower, upper := p.bounds(prog, path, fullyPinned)
	err = multierr.Combine(
		opt.SetLowerBounds(lower),
		opt.SetUpperBounds(upper),
		opt.SetXtolRel(defaultXtolRel),
		opt.SetMaxEval(defaultMaxEval),
		opt.SetMinObjective(p.objective(prog)),
	)
	if err != nil {
		return nil, err
	}
	if err := p.addCollocationConstraints(opt, prog); err != nil {
		return nil, err
	}
	if err := p.addKinematicConstraints(opt, prog); err != nil {
		return nil, err
	}
	if p.options.CheckCollisions {
		if err := p.addCollisionConstraints(opt, prog); err != nil {
			return nil, err
		}
	}

	solution, err := p.solve(ctx, opt, p.initialGuess(prog, path, initPath, fullyPinned))
	if err != nil {
		return nil, err
	}
	return p.unpack(prog, solution)
}

// bounds assembles the box bounds implementing pinned waypoints, zero
// boundary velocities, joint position limits, velocity limits on the
// velocity variables, and segment duration bounds.
func (p *Planner) bounds(prog *program, path [][]referenceframe.Input, fullyPinned bool) ([]float64, []float64) {
	lower := make([]float64, prog.dim)
	upper := make([]float64, prog.dim)
	jointLimits := p.model.DoF()

	for j := 0; j < prog.dof; j++ {
		for k := 0; k < prog.nw; k++ {
			lower[prog.x(k, j)] = jointLimits[j].Min
			upper[prog.x(k, j)] = jointLimits[j].Max
			lower[prog.xd(k, j)] = p.limits.minVel[j]
			upper[prog.xd(k, j)] = p.limits.maxVel[j]
		}
		for k := 0; k < prog.ns; k++ {
			lower[prog.xc(k, j)] = jointLimits[j].Min
			upper[prog.xc(k, j)] = jointLimits[j].Max
			lower[prog.xcd(k, j)] = p.limits.minVel[j]
			upper[prog.xcd(k, j)] = p.limits.maxVel[j]
		}

		// Pinned waypoint positions and zero boundary velocities.
		if fullyPinned {
			for k := 0; k < prog.nw; k++ {
				lower[prog.x(k, j)] = path[k][j].Value
				upper[prog.x(k, j)] = path[k][j].Value
			}
		} else {
			lower[prog.x(0, j)] = path[0][j].Value
			upper[prog.x(0, j)] = path[0][j].Value
			lower[prog.x(prog.nw-1, j)] = path[len(path)-1][j].Value
			upper[prog.x(prog.nw-1, j)] = path[len(path)-1][j].Value
		}
		lower[prog.xd(0, j)] = 0
		upper[prog.xd(0, j)] = 0
		lower[prog.xd(prog.nw-1, j)] = 0
		upper[prog.xd(prog.nw-1, j)] = 0
	}
	for k := 0; k < prog.ns; k++ {
		lower[prog.h(k)] = p.options.MinSegmentTime
		upper[prog.h(k)] = p.options.MaxSegmentTime
	}
	return lower, upper
}

// objective minimizes the sum of squared segment durations, a smooth proxy
// for total trajectory time.
func (p *Planner) objective(prog *program) nlopt.Func {
	return func(x, gradient []float64) float64 {
		if len(gradient) > 0 {
			for i := range gradient {
				gradient[i] = 0
			}
		}
		cost := 0.
		for k := 0; k < prog.ns; k++ {
			h := x[prog.h(k)]
			cost += h * h
			if len(gradient) > 0 {
				gradient[prog.h(k)] = 2 * h
			}
		}
		return cost
	}
}

// addCollocationConstraints ties each segment's collocation-point position
// and velocity algebraically to its bounding waypoint states and duration,
// and enforces acceleration continuity across interior waypoints. These are
// the equality constraints that make direct collocation correct.
func (p *Planner) addCollocationConstraints(opt *nlopt.NLopt, prog *program) error {
	count := 2*prog.ns*prog.dof + (prog.ns-1)*prog.dof
	if count == 0 {
		return nil
	}

	constraint := func(result, x, gradient []float64) {
		hasGrad := len(gradient) > 0
		if hasGrad {
			for i := range gradient {
				gradient[i] = 0
			}
		}
		row := 0
		set := func(idx int, val float64) {
			if hasGrad {
				gradient[row*prog.dim+idx] = val
			}
		}
		for k := 0; k < prog.ns; k++ {
			for j := 0; j < prog.dof; j++ {
				x0, v0, xcd, v1, h := prog.segmentVars(x, k, j)
				x1 := x[prog.x(k+1, j)]
				xc := x[prog.xc(k, j)]

				// xc = 0.5*(x0 + x1) + (h/8)*(v0 - v1)
				result[row] = xc - 0.5*(x0+x1) - (h/8)*(v0-v1)
				set(prog.xc(k, j), 1)
				set(prog.x(k, j), -0.5)
				set(prog.x(k+1, j), -0.5)
				set(prog.xd(k, j), -h/8)
				set(prog.xd(k+1, j), h/8)
				set(prog.h(k), -(v0-v1)/8)
				row++

				// xcd = -(1.5/h)*(x0 - x1) - 0.25*(v0 + v1)
				result[row] = xcd + (1.5/h)*(x0-x1) + 0.25*(v0+v1)
				set(prog.xcd(k, j), 1)
				set(prog.x(k, j), 1.5/h)
				set(prog.x(k+1, j), -1.5/h)
				set(prog.xd(k, j), 0.25)
				set(prog.xd(k+1, j), 0.25)
				set(prog.h(k), -1.5*(x0-x1)/(h*h))
				row++
			}
		}

		// The acceleration at the end of each segment must equal the
		// acceleration at the start of the next.
		for k := 0; k < prog.ns-1; k++ {
			for j := 0; j < prog.dof; j++ {
				_, v0, vc, v1, h := prog.segmentVars(x, k, j)
				end := evalAcceleration(v0, vc, v1, h, 1)
				_, nv0, nvc, nv1, nh := prog.segmentVars(x, k+1, j)
				start := evalAcceleration(nv0, nvc, nv1, nh, 0)

				result[row] = end.value - start.value
				set(prog.xd(k, j), end.dV0)
				set(prog.xcd(k, j), end.dVc)
				set(prog.h(k), end.dH)
				// The shared waypoint velocity appears in both segments.
				set(prog.xd(k+1, j), end.dV1-start.dV0)
				set(prog.xcd(k+1, j), -start.dVc)
				set(prog.xd(k+2, j), -start.dV1)
				set(prog.h(k+1), -start.dH)
				row++
			}
		}
	}

	tol := make([]float64, count)
	for i := range tol {
		tol[i] = defaultConstraintTol
	}
	return opt.AddEqualityMConstraint(constraint, tol)
}

// sampledConstraint describes one scalar inequality of the form
// sign*(quantity - bound) <= 0 evaluated at a step along a segment.
type sampledConstraint struct {
	kind  int // 0 position, 1 velocity, 2 acceleration, 3 jerk
	k, j  int
	s     float64
	bound float64
	sign  float64 // +1 for upper bounds, -1 for lower bounds
}

// addKinematicConstraints samples position and velocity along each segment,
// since their cubics can overshoot the waypoints, and checks acceleration and
// jerk only at segment endpoints where their extremes occur. Unbounded limits
// produce no constraints.
func (p *Planner) addKinematicConstraints(opt *nlopt.NLopt, prog *program) error {
	jointLimits := p.model.DoF()
	var specs []sampledConstraint
	add := func(kind, k, j int, s, bound, sign float64) {
		if !math.IsInf(bound, 0) {
			specs = append(specs, sampledConstraint{kind: kind, k: k, j: j, s: s, bound: bound, sign: sign})
		}
	}
	samples := p.options.SamplesPerSegment
	for k := 0; k < prog.ns; k++ {
		for j := 0; j < prog.dof; j++ {
			for i := 0; i < samples; i++ {
				s := float64(i) / float64(samples-1)
				add(0, k, j, s, jointLimits[j].Max, 1)
				add(0, k, j, s, jointLimits[j].Min, -1)
				add(1, k, j, s, p.limits.maxVel[j], 1)
				add(1, k, j, s, p.limits.minVel[j], -1)
			}
			for _, s := range []float64{0, 1} {
				add(2, k, j, s, p.limits.maxAccel[j], 1)
				add(2, k, j, s, p.limits.minAccel[j], -1)
				add(3, k, j, s, p.limits.maxJerk[j], 1)
				add(3, k, j, s, p.limits.minJerk[j], -1)
			}
		}
	}
	if len(specs) == 0 {
		return nil
	}

	constraint := func(result, x, gradient []float64) {
		hasGrad := len(gradient) > 0
		if hasGrad {
			for i := range gradient {
				gradient[i] = 0
			}
		}
		for row, spec := range specs {
			x0, v0, vc, v1, h := prog.segmentVars(x, spec.k, spec.j)
			var eval basisEval
			switch spec.kind {
			case 0:
				eval = evalPosition(x0, v0, vc, v1, h, spec.s)
			case 1:
				eval = evalVelocity(v0, vc, v1, spec.s)
			case 2:
				eval = evalAcceleration(v0, vc, v1, h, spec.s)
			default:
				eval = evalJerk(v0, vc, v1, h)
			}
			result[row] = spec.sign * (eval.value - spec.bound)
			if hasGrad {
				base := row * prog.dim
				gradient[base+prog.x(spec.k, spec.j)] = spec.sign * eval.dX0
				gradient[base+prog.xd(spec.k, spec.j)] = spec.sign * eval.dV0
				gradient[base+prog.xcd(spec.k, spec.j)] = spec.sign * eval.dVc
				gradient[base+prog.xd(spec.k+1, spec.j)] = spec.sign * eval.dV1
				gradient[base+prog.h(spec.k)] = spec.sign * eval.dH
			}
		}
	}

	tol := make([]float64, len(specs))
	for i := range tol {
		tol[i] = defaultConstraintTol
	}
	return opt.AddInequalityMConstraint(constraint, tol)
}

// addCollisionConstraints requires the minimum signed distance of every
// constrained body to stay above MinCollisionDist at each free waypoint and
// every collocation point, using the analytic value+gradient supplied by the
// collision adapter.
func (p *Planner) addCollisionConstraints(opt *nlopt.NLopt, prog *program) error {
	bodies := p.options.CollisionBodies
	if len(bodies) == 0 {
		bodies = p.defaultCollisionBodies()
	}
	var bodyPairs [][]int
	var activeBodies []string
	for _, body := range bodies {
		if pairs := p.checker.PairsInvolving(body); len(pairs) > 0 {
			bodyPairs = append(bodyPairs, pairs)
			activeBodies = append(activeBodies, body)
		}
	}
	if len(activeBodies) == 0 {
		p.logger.Debug("collision checking enabled but no active collision pairs; skipping collision constraints")
		return nil
	}

	// One vector constraint per checked configuration block.
	var blocks []int
	for k := 1; k < prog.nw-1; k++ {
		blocks = append(blocks, prog.x(k, 0))
	}
	for k := 0; k < prog.ns; k++ {
		blocks = append(blocks, prog.xc(k, 0))
	}

	tol := make([]float64, len(activeBodies))
	for i := range tol {
		tol[i] = defaultConstraintTol
	}
	var combined error
	for _, offset := range blocks {
		offset := offset
		constraint := func(result, x, gradient []float64) {
			hasGrad := len(gradient) > 0
			if hasGrad {
				for i := range gradient {
					gradient[i] = 0
				}
			}
			q := referenceframe.FloatsToInputs(x[offset : offset+prog.dof])
			for row, pairs := range bodyPairs {
				dist, grad, err := p.checker.MinDistanceGradient(q, pairs, p.options.CollisionInfluenceDist)
				if err != nil {
					p.logger.Errorw("error evaluating collision constraint", "error", err)
					result[row] = 0
					continue
				}
				result[row] = p.options.MinCollisionDist - dist
				if hasGrad {
					base := row * prog.dim
					for j := 0; j < prog.dof; j++ {
						gradient[base+offset+j] = -grad[j]
					}
				}
			}
		}
		combined = multierr.Combine(combined, opt.AddInequalityMConstraint(constraint, tol))
	}
	return combined
}

// defaultCollisionBodies constrains every frame owning a collision geometry.
func (p *Planner) defaultCollisionBodies() []string {
	seen := map[string]bool{}
	var bodies []string
	for _, frame := range p.checker.Model().FrameNames() {
		if frame == referenceframe.World || seen[frame] {
			continue
		}
		if len(p.checker.PairsInvolving(frame)) > 0 {
			seen[frame] = true
			bodies = append(bodies, frame)
		}
	}
	return bodies
}

// initialGuess seeds the decision variables: waypoints from the pinned path,
// explicit guess, or linear interpolation between start and goal; collocation
// points at segment midpoints; durations at the midpoint of their bounds; all
// velocities at zero.
func (p *Planner) initialGuess(
	prog *program,
	path, initPath [][]referenceframe.Input,
	fullyPinned bool,
) []float64 {
	guess := make([]float64, prog.dim)

	waypoints := make([][]float64, prog.nw)
	switch {
	case initPath != nil:
		for k := range waypoints {
			waypoints[k] = referenceframe.InputsToFloats(initPath[k])
		}
	case fullyPinned:
		for k := range waypoints {
			waypoints[k] = referenceframe.InputsToFloats(path[k])
		}
	default:
		for k := range waypoints {
			by := float64(k) / float64(prog.nw-1)
			waypoints[k] = referenceframe.InputsToFloats(
				referenceframe.InterpolateInputs(path[0], path[len(path)-1], by))
		}
	}

	for k := 0; k < prog.nw; k++ {
		for j := 0; j < prog.dof; j++ {
			guess[prog.x(k, j)] = waypoints[k][j]
		}
	}
	for k := 0; k < prog.ns; k++ {
		for j := 0; j < prog.dof; j++ {
			guess[prog.xc(k, j)] = 0.5 * (waypoints[k][j] + waypoints[k+1][j])
		}
		guess[prog.h(k)] = 0.5 * (p.options.MinSegmentTime + p.options.MaxSegmentTime)
	}
	return guess
}

type optimizeReturn struct {
	solution []float64
	score    float64
	err      error
}

// solve issues the single blocking call into the external solver, honoring
// context cancellation via ForceStop.
func (p *Planner) solve(ctx context.Context, opt *nlopt.NLopt, guess []float64) ([]float64, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	solveChan := make(chan *optimizeReturn, 1)
	var activeSolvers sync.WaitGroup
	activeSolvers.Add(1)
	goutils.PanicCapturingGo(func() {
		defer activeSolvers.Done()
		solution, score, err := opt.Optimize(guess)
		solveChan <- &optimizeReturn{solution, score, err}
	})

	select {
	case <-ctx.Done():
		err := opt.ForceStop()
		activeSolvers.Wait()
		return nil, multierr.Combine(ctx.Err(), err)
	case result := <-solveChan:
		if result.err != nil || result.solution == nil {
			p.logger.Debugw("trajectory optimization failed", "error", result.err)
			return nil, ErrPlanningFailed
		}
		p.logger.Debugf("trajectory optimization succeeded with cost %f", result.score)
		return result.solution, nil
	}
}

// unpack converts the flat solution vector into cumulative waypoint times and
// per-waypoint states, handing them to the trajectory representation.
func (p *Planner) unpack(prog *program, solution []float64) (*trajectory.Trajectory, error) {
	times := make([]float64, prog.nw)
	for k := 0; k < prog.ns; k++ {
		times[k+1] = times[k] + solution[prog.h(k)]
	}
	positions := make([][]float64, prog.nw)
	velocities := make([][]float64, prog.nw)
	for k := 0; k < prog.nw; k++ {
		positions[k] = make([]float64, prog.dof)
		velocities[k] = make([]float64, prog.dof)
		for j := 0; j < prog.dof; j++ {
			positions[k][j] = solution[prog.x(k, j)]
			velocities[k][j] = solution[prog.xd(k, j)]
		}
	}
	return trajectory.New(times, positions, velocities)
}
