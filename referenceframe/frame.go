// Package referenceframe defines the kinematics oracle for robot models:
// joint configurations, frame poses, frame Jacobians, and joint limits.
package referenceframe

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/sea-bass/intro-to-manipulation/spatialmath"
	"github.com/sea-bass/intro-to-manipulation/utils"
)

// World is the name of the immovable root frame every model is rooted at.
const World = "world"

// Limit represents the limits of motion for a single degree of freedom.
type Limit struct {
	Min float64
	Max float64
}

// JacobianConvention selects the reference convention a frame Jacobian is expressed in.
type JacobianConvention int

const (
	// JacobianLocal expresses frame velocities in the frame's own (body) coordinates.
	JacobianLocal JacobianConvention = iota
	// JacobianWorldAligned expresses velocities of the frame origin in world-aligned axes.
	JacobianWorldAligned
)

// Model is the kinematics half of the oracle consumed by the IK solver and
// the trajectory optimizer. Implementations must be safe for concurrent
// read-only use; none of these methods mutate the model.
type Model interface {
	// Name returns the name of the model.
	Name() string

	// DoF returns the motion limits of each degree of freedom, in order.
	DoF() []Limit

	// FrameNames returns the names of all frames on the model, base-first.
	FrameNames() []string

	// FrameDepth returns how far along the kinematic chain the named frame
	// sits. The world frame has depth zero.
	FrameDepth(frame string) (int, error)

	// Transform performs forward kinematics, returning the pose of the named
	// frame at the given configuration.
	Transform(inputs []Input, frame string) (spatialmath.Pose, error)

	// FrameJacobian returns the 6xn matrix mapping joint velocities to the
	// named frame's spatial velocity in the given convention. Translation
	// rows come first.
	FrameJacobian(inputs []Input, frame string, convention JacobianConvention) (*mat.Dense, error)
}

// RandomInputs samples a configuration uniformly within the model's joint
// limits, using the given source of randomness.
func RandomInputs(m Model, randSeed *rand.Rand) []Input {
	limits := m.DoF()
	inputs := make([]Input, 0, len(limits))
	for _, limit := range limits {
		// Default to [-999,999] as the range if limits are infinite.
		min, max := limitRange(limit)
		inputs = append(inputs, Input{utils.SampleRandomFloatRange(min, max, randSeed)})
	}
	return inputs
}

// CheckWithinLimits returns whether every value of the given configuration
// is within the model's joint limits.
func CheckWithinLimits(m Model, inputs []Input) bool {
	for i, limit := range m.DoF() {
		if inputs[i].Value < limit.Min || inputs[i].Value > limit.Max {
			return false
		}
	}
	return true
}

// WrapInputs wraps each revolute joint value to the canonical (-pi, pi] range.
func WrapInputs(inputs []Input) []Input {
	wrapped := make([]Input, len(inputs))
	for i, input := range inputs {
		wrapped[i] = Input{utils.WrapToPi(input.Value)}
	}
	return wrapped
}

// JointCenters returns the midpoint of each joint's limits.
func JointCenters(m Model) []float64 {
	limits := m.DoF()
	centers := make([]float64, len(limits))
	for i, limit := range limits {
		centers[i] = 0.5 * (limit.Min + limit.Max)
	}
	return centers
}

// limitRange returns a finite span for a limit, substituting a large default
// range when the limit is unbounded.
func limitRange(l Limit) (float64, float64) {
	min, max := l.Min, l.Max
	if math.IsInf(min, -1) {
		min = -999
	}
	if math.IsInf(max, 1) {
		max = 999
	}
	return min, max
}
