package referenceframe

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/sea-bass/intro-to-manipulation/spatialmath"
)

// Link is one element of a serial kinematic chain: a fixed offset from the
// previous frame, optionally followed by a revolute joint about Axis. A zero
// Axis makes this a fixed link contributing no degree of freedom, which is
// how end effector and mount frames are modeled.
type Link struct {
	Name   string
	Offset spatialmath.Pose
	Axis   r3.Vector
	Limit  Limit
}

// IsFixed reports whether the link has no degree of freedom.
func (l Link) IsFixed() bool {
	return l.Axis.Norm() == 0
}

// SimpleModel implements Model for a single serial chain of revolute joints.
// It is immutable after construction and may be shared across solvers.
type SimpleModel struct {
	name   string
	links  []Link
	limits []Limit

	// frameIdx maps frame names to their link index; World maps to -1.
	frameIdx map[string]int
}

// NewSimpleModel constructs a serial-chain model from base to tip. Link names
// must be unique and must not shadow the world frame.
func NewSimpleModel(name string, links []Link) (*SimpleModel, error) {
	if len(links) == 0 {
		return nil, errors.New("model must have at least one link")
	}
	frameIdx := map[string]int{World: -1}
	var limits []Limit
	for i, link := range links {
		if link.Name == "" {
			return nil, errors.Errorf("link %d has no name", i)
		}
		if _, ok := frameIdx[link.Name]; ok {
			return nil, errors.Errorf("duplicate frame name %q", link.Name)
		}
		frameIdx[link.Name] = i
		if !link.IsFixed() {
			if link.Limit.Min > link.Limit.Max {
				return nil, errors.Errorf("link %q has an inverted joint limit", link.Name)
			}
			limits = append(limits, link.Limit)
		}
	}
	return &SimpleModel{name: name, links: links, limits: limits, frameIdx: frameIdx}, nil
}

// Name returns the name of the model.
func (m *SimpleModel) Name() string {
	return m.name
}

// DoF returns the motion limits of each joint, base-first.
func (m *SimpleModel) DoF() []Limit {
	return m.limits
}

// FrameNames returns all frame names on the model, base-first, starting with
// the world frame.
func (m *SimpleModel) FrameNames() []string {
	names := make([]string, 0, len(m.links)+1)
	names = append(names, World)
	for _, link := range m.links {
		names = append(names, link.Name)
	}
	return names
}

// FrameDepth returns how far along the chain the named frame sits; the world
// frame has depth zero.
func (m *SimpleModel) FrameDepth(frame string) (int, error) {
	idx, ok := m.frameIdx[frame]
	if !ok {
		return 0, errors.Errorf("frame %q not found in model %q", frame, m.name)
	}
	return idx + 1, nil
}

// jointState captures the world-frame geometry of one joint during a forward
// kinematics pass, which is all the Jacobian needs.
type jointState struct {
	axis   r3.Vector // joint axis in world coordinates
	origin r3.Vector // joint origin in world coordinates
}

// chainTo walks the chain up to and including the named frame, returning its
// pose and the world-frame state of every joint at or before it.
func (m *SimpleModel) chainTo(inputs []Input, frame string) (spatialmath.Pose, []jointState, error) {
	idx, ok := m.frameIdx[frame]
	if !ok {
		return spatialmath.NewZeroPose(), nil, errors.Errorf("frame %q not found in model %q", frame, m.name)
	}
	if len(inputs) != len(m.limits) {
		return spatialmath.NewZeroPose(), nil, NewIncorrectInputLengthError(len(inputs), len(m.limits))
	}

	cur := spatialmath.NewZeroPose()
	var joints []jointState
	dof := 0
	for i := 0; i <= idx; i++ {
		link := m.links[i]
		cur = spatialmath.Compose(cur, link.Offset)
		if link.IsFixed() {
			continue
		}
		joints = append(joints, jointState{
			axis:   spatialmath.QuatRotate(cur.Rotation(), link.Axis.Normalize()),
			origin: cur.Point(),
		})
		jointPose := spatialmath.NewPoseFromAxisAngle(r3.Vector{}, spatialmath.R4AA{
			Theta: inputs[dof].Value,
			RX:    link.Axis.X,
			RY:    link.Axis.Y,
			RZ:    link.Axis.Z,
		})
		cur = spatialmath.Compose(cur, jointPose)
		dof++
	}
	return cur, joints, nil
}

// Transform performs forward kinematics for the named frame.
func (m *SimpleModel) Transform(inputs []Input, frame string) (spatialmath.Pose, error) {
	pose, _, err := m.chainTo(inputs, frame)
	return pose, err
}

// FrameJacobian computes the 6xn geometric Jacobian of the named frame.
// Translation rows come first. Joints past the frame contribute zero columns.
func (m *SimpleModel) FrameJacobian(inputs []Input, frame string, convention JacobianConvention) (*mat.Dense, error) {
	pose, joints, err := m.chainTo(inputs, frame)
	if err != nil {
		return nil, err
	}

	jac := mat.NewDense(6, len(m.limits), nil)
	invRot := spatialmath.Invert(pose).Rotation()
	for j, joint := range joints {
		// Revolute joint: angular velocity along the axis, linear velocity
		// from the lever arm to the frame origin.
		linear := joint.axis.Cross(pose.Point().Sub(joint.origin))
		angular := joint.axis
		if convention == JacobianLocal {
			linear = spatialmath.QuatRotate(invRot, linear)
			angular = spatialmath.QuatRotate(invRot, angular)
		}
		jac.Set(0, j, linear.X)
		jac.Set(1, j, linear.Y)
		jac.Set(2, j, linear.Z)
		jac.Set(3, j, angular.X)
		jac.Set(4, j, angular.Y)
		jac.Set(5, j, angular.Z)
	}
	return jac, nil
}
