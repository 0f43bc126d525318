package trajopt

import (
	"math"

	"github.com/pkg/errors"
)

// Options configures a cubic trajectory optimization planner. Kinematic
// limit fields accept nil (unbounded), a single value applied to every
// degree of freedom, or one value per degree of freedom.
type Options struct {
	// NumWaypoints is the number of trajectory waypoints, at least 2.
	NumWaypoints int

	// SamplesPerSegment is how many evenly spaced points along each segment
	// the position and velocity constraints are evaluated at.
	SamplesPerSegment int

	// MinSegmentTime and MaxSegmentTime bound each segment duration, in
	// seconds. MinSegmentTime must be positive.
	MinSegmentTime float64
	MaxSegmentTime float64

	// Velocity, acceleration, and jerk limits along the trajectory.
	MinVelocity     []float64
	MaxVelocity     []float64
	MinAcceleration []float64
	MaxAcceleration []float64
	MinJerk         []float64
	MaxJerk         []float64

	// CheckCollisions adds minimum-distance collision constraints at the
	// waypoints and collocation points.
	CheckCollisions bool

	// MinCollisionDist is the smallest allowable signed distance for every
	// checked body.
	MinCollisionDist float64

	// CollisionInfluenceDist is the distance above which collision pairs are
	// treated as non-binding for a constraint evaluation.
	CollisionInfluenceDist float64

	// CollisionBodies names the robot bodies whose collision pairs are
	// constrained. If empty, every frame owning a collision geometry is used.
	CollisionBodies []string
}

// NewBasicOptions returns a usable set of default planner options.
func NewBasicOptions() *Options {
	return &Options{
		NumWaypoints:           3,
		SamplesPerSegment:      11,
		MinSegmentTime:         0.01,
		MaxSegmentTime:         10.0,
		CheckCollisions:        false,
		MinCollisionDist:       0.0,
		CollisionInfluenceDist: 0.05,
	}
}

// validate fails fast on malformed options before any numerical work begins.
func (o *Options) validate(dof int) error {
	if o.NumWaypoints < 2 {
		return errors.New("the number of waypoints must be greater than or equal to 2")
	}
	if o.SamplesPerSegment < 2 {
		return errors.New("there must be at least 2 samples per segment")
	}
	if o.MinSegmentTime <= 0 {
		return errors.New("the minimum segment time must be positive")
	}
	if o.MaxSegmentTime < o.MinSegmentTime {
		return errors.New("the maximum segment time must be at least the minimum segment time")
	}
	if _, err := o.kinematicLimits(dof); err != nil {
		return err
	}
	return nil
}

// kinematicLimits expands every limit specification to per-DoF vectors.
type expandedLimits struct {
	minVel, maxVel     []float64
	minAccel, maxAccel []float64
	minJerk, maxJerk   []float64
}

func (o *Options) kinematicLimits(dof int) (*expandedLimits, error) {
	out := &expandedLimits{}
	specs := []struct {
		name      string
		values    []float64
		unbounded float64
		dest      *[]float64
	}{
		{"min_vel", o.MinVelocity, math.Inf(-1), &out.minVel},
		{"max_vel", o.MaxVelocity, math.Inf(1), &out.maxVel},
		{"min_accel", o.MinAcceleration, math.Inf(-1), &out.minAccel},
		{"max_accel", o.MaxAcceleration, math.Inf(1), &out.maxAccel},
		{"min_jerk", o.MinJerk, math.Inf(-1), &out.minJerk},
		{"max_jerk", o.MaxJerk, math.Inf(1), &out.maxJerk},
	}
	for _, spec := range specs {
		expanded, err := processLimits(spec.values, dof, spec.name, spec.unbounded)
		if err != nil {
			return nil, err
		}
		*spec.dest = expanded
	}
	return out, nil
}

// processLimits expands a scalar or per-DoF limit specification to one value
// per degree of freedom. A nil specification is unbounded.
func processLimits(values []float64, dof int, name string, unbounded float64) ([]float64, error) {
	expanded := make([]float64, dof)
	switch len(values) {
	case 0:
		for i := range expanded {
			expanded[i] = unbounded
		}
	case 1:
		for i := range expanded {
			expanded[i] = values[0]
		}
	case dof:
		copy(expanded, values)
	default:
		return nil, errors.Errorf("%s vector must have 1 or %d elements, got %d", name, dof, len(values))
	}
	return expanded, nil
}
