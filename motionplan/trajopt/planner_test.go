//go:build !windows && !no_cgo

package trajopt

import (
	"context"
	"math"
	"testing"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/sea-bass/intro-to-manipulation/collision"
	"github.com/sea-bass/intro-to-manipulation/referenceframe"
	"github.com/sea-bass/intro-to-manipulation/spatialmath"
)

func planarModel(t *testing.T) referenceframe.Model {
	t.Helper()
	model, err := referenceframe.NewSimpleModel("planar2", []referenceframe.Link{
		{
			Name: "shoulder", Offset: spatialmath.NewZeroPose(),
			Axis: r3.Vector{Z: 1}, Limit: referenceframe.Limit{Min: -math.Pi, Max: math.Pi},
		},
		{
			Name: "elbow", Offset: spatialmath.NewPoseFromPoint(r3.Vector{X: 1}),
			Axis: r3.Vector{Z: 1}, Limit: referenceframe.Limit{Min: -math.Pi, Max: math.Pi},
		},
		{Name: "ee", Offset: spatialmath.NewPoseFromPoint(r3.Vector{X: 1})},
	})
	test.That(t, err, test.ShouldBeNil)
	return model
}

func TestProgramLayout(t *testing.T) {
	prog := newProgram(4, 3)
	test.That(t, prog.ns, test.ShouldEqual, 3)
	test.That(t, prog.dim, test.ShouldEqual, 2*4*3+2*3*3+3)

	// Blocks tile without overlap.
	test.That(t, prog.x(0, 0), test.ShouldEqual, 0)
	test.That(t, prog.x(3, 2), test.ShouldEqual, 11)
	test.That(t, prog.xd(0, 0), test.ShouldEqual, 12)
	test.That(t, prog.xc(0, 0), test.ShouldEqual, 24)
	test.That(t, prog.xcd(0, 0), test.ShouldEqual, 33)
	test.That(t, prog.h(0), test.ShouldEqual, 42)
	test.That(t, prog.h(2), test.ShouldEqual, prog.dim-1)
}

func TestNewPlannerValidation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	model := planarModel(t)

	_, err := NewPlanner(model, nil, logger, nil)
	test.That(t, err, test.ShouldBeNil)

	bad := NewBasicOptions()
	bad.NumWaypoints = 0
	_, err = NewPlanner(model, nil, logger, bad)
	test.That(t, err, test.ShouldNotBeNil)

	withCollisions := NewBasicOptions()
	withCollisions.CheckCollisions = true
	_, err = NewPlanner(model, nil, logger, withCollisions)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPlanValidation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	model := planarModel(t)
	planner, err := NewPlanner(model, nil, logger, nil)
	test.That(t, err, test.ShouldBeNil)
	ctx := context.Background()

	start := referenceframe.FloatsToInputs([]float64{0, 0})
	goal := referenceframe.FloatsToInputs([]float64{1, 1})

	// A path must pin either both ends or every waypoint.
	_, err = planner.Plan(ctx, [][]referenceframe.Input{start}, nil)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = planner.Plan(ctx, [][]referenceframe.Input{start, goal, start, goal}, nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = planner.Plan(ctx, [][]referenceframe.Input{start, referenceframe.FloatsToInputs([]float64{1})}, nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = planner.Plan(ctx, [][]referenceframe.Input{start, goal}, [][]referenceframe.Input{start, goal})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestPlanStartToGoal(t *testing.T) {
	logger := golog.NewTestLogger(t)
	model := planarModel(t)

	options := NewBasicOptions()
	options.MaxVelocity = []float64{1.5}
	options.MinVelocity = []float64{-1.5}
	options.MaxAcceleration = []float64{3}
	options.MinAcceleration = []float64{-3}
	planner, err := NewPlanner(model, nil, logger, options)
	test.That(t, err, test.ShouldBeNil)

	start := referenceframe.FloatsToInputs([]float64{0, 0})
	goal := referenceframe.FloatsToInputs([]float64{0.8, -0.6})
	traj, err := planner.Plan(context.Background(), [][]referenceframe.Input{start, goal}, nil)
	test.That(t, err, test.ShouldBeNil)

	// The trajectory starts and ends at rest on the requested configurations.
	pos, err := traj.Position(traj.StartTime())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos[0], test.ShouldAlmostEqual, 0, 1e-4)
	test.That(t, pos[1], test.ShouldAlmostEqual, 0, 1e-4)
	pos, err = traj.Position(traj.EndTime())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pos[0], test.ShouldAlmostEqual, 0.8, 1e-4)
	test.That(t, pos[1], test.ShouldAlmostEqual, -0.6, 1e-4)
	for _, tt := range []float64{traj.StartTime(), traj.EndTime()} {
		vel, err := traj.Velocity(tt)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, vel[0], test.ShouldAlmostEqual, 0, 1e-4)
		test.That(t, vel[1], test.ShouldAlmostEqual, 0, 1e-4)
	}

	// Every segment duration respects the segment time bounds.
	times := traj.Times()
	test.That(t, len(times), test.ShouldEqual, options.NumWaypoints)
	for k := 0; k+1 < len(times); k++ {
		h := times[k+1] - times[k]
		test.That(t, h, test.ShouldBeGreaterThanOrEqualTo, options.MinSegmentTime-1e-6)
		test.That(t, h, test.ShouldBeLessThanOrEqualTo, options.MaxSegmentTime+1e-6)
	}

	// Sampled velocities stay within limits, allowing constraint tolerance.
	for i := 0; i <= 50; i++ {
		tt := traj.StartTime() + traj.Duration()*float64(i)/50
		vel, err := traj.Velocity(tt)
		test.That(t, err, test.ShouldBeNil)
		for j := range vel {
			test.That(t, vel[j], test.ShouldBeBetweenOrEqual, -1.5-1e-3, 1.5+1e-3)
		}
	}
}

func TestPlanPinnedWaypoints(t *testing.T) {
	logger := golog.NewTestLogger(t)
	model := planarModel(t)

	options := NewBasicOptions()
	options.MaxVelocity = []float64{1}
	options.MinVelocity = []float64{-1}
	options.MaxAcceleration = []float64{2}
	options.MinAcceleration = []float64{-2}
	planner, err := NewPlanner(model, nil, logger, options)
	test.That(t, err, test.ShouldBeNil)

	path := [][]referenceframe.Input{
		referenceframe.FloatsToInputs([]float64{0, 0}),
		referenceframe.FloatsToInputs([]float64{0.4, 0.2}),
		referenceframe.FloatsToInputs([]float64{0.9, -0.1}),
	}
	traj, err := planner.Plan(context.Background(), path, nil)
	test.That(t, err, test.ShouldBeNil)

	// Every pinned waypoint appears on the trajectory in order.
	times := traj.Times()
	test.That(t, len(times), test.ShouldEqual, len(path))
	for k, q := range path {
		pos, err := traj.Position(times[k])
		test.That(t, err, test.ShouldBeNil)
		for j := range q {
			test.That(t, pos[j], test.ShouldAlmostEqual, q[j].Value, 1e-4)
		}
	}

	// Acceleration is continuous across the interior waypoint.
	const eps = 1e-6
	before, err := traj.Acceleration(times[1] - eps)
	test.That(t, err, test.ShouldBeNil)
	after, err := traj.Acceleration(times[1] + eps)
	test.That(t, err, test.ShouldBeNil)
	for j := range before {
		test.That(t, after[j], test.ShouldAlmostEqual, before[j], 1e-3)
	}
}

func TestPlanWithCollisions(t *testing.T) {
	logger := golog.NewTestLogger(t)
	model := planarModel(t)

	// An obstacle sitting just outside the tip's sweep between start and goal,
	// so the straight joint-space path penetrates it and the elbow must fold
	// inward to clear it.
	checker := collision.NewChecker(model)
	test.That(t, checker.AddGeometry(collision.Sphere{Name: "tip", Frame: "ee", Radius: 0.1}), test.ShouldBeNil)
	test.That(t, checker.AddGeometry(collision.Sphere{
		Name: "obstacle", Frame: referenceframe.World, Offset: r3.Vector{X: 1.55, Y: 1.55}, Radius: 0.25,
	}), test.ShouldBeNil)
	test.That(t, checker.SetCollisionEnabled("tip", "obstacle", true), test.ShouldBeNil)

	options := NewBasicOptions()
	options.CheckCollisions = true
	options.MinCollisionDist = 0.05
	options.CollisionInfluenceDist = 1.0
	options.MaxVelocity = []float64{1}
	options.MinVelocity = []float64{-1}
	planner, err := NewPlanner(model, checker, logger, options)
	test.That(t, err, test.ShouldBeNil)

	start := referenceframe.FloatsToInputs([]float64{0, 0})
	goal := referenceframe.FloatsToInputs([]float64{math.Pi / 2, 0})

	// The naive midpoint configuration penetrates the obstacle, so the
	// collision constraint must actively reshape the path.
	mid := referenceframe.InterpolateInputs(start, goal, 0.5)
	results, err := checker.Distances(mid)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, results[0].Distance, test.ShouldBeLessThan, 0)

	traj, err := planner.Plan(context.Background(), [][]referenceframe.Input{start, goal}, nil)
	test.That(t, err, test.ShouldBeNil)

	// Sampled signed distances hold the collision margin, allowing a small
	// dip between the constrained waypoints and collocation points.
	for i := 0; i <= 20; i++ {
		tt := traj.StartTime() + traj.Duration()*float64(i)/20
		pos, err := traj.Position(tt)
		test.That(t, err, test.ShouldBeNil)
		results, err := checker.Distances(referenceframe.FloatsToInputs(pos))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, results[0].Distance, test.ShouldBeGreaterThan, options.MinCollisionDist-0.02)
	}
}

func TestPlanCancellation(t *testing.T) {
	logger := golog.NewTestLogger(t)
	model := planarModel(t)
	planner, err := NewPlanner(model, nil, logger, nil)
	test.That(t, err, test.ShouldBeNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := referenceframe.FloatsToInputs([]float64{0, 0})
	goal := referenceframe.FloatsToInputs([]float64{1, 1})
	_, err = planner.Plan(ctx, [][]referenceframe.Input{start, goal}, nil)
	test.That(t, err, test.ShouldNotBeNil)
}
