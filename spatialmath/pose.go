package spatialmath

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// Pose represents a rigid transform in 3D space: a rotation followed by a
// translation. The zero value is not a valid pose; use NewZeroPose.
type Pose struct {
	rotation    quat.Number
	translation r3.Vector
}

// NewZeroPose returns the identity transform.
func NewZeroPose() Pose {
	return Pose{rotation: quat.Number{Real: 1}}
}

// NewPose constructs a pose from a translation and a unit rotation quaternion.
func NewPose(point r3.Vector, rotation quat.Number) Pose {
	return Pose{rotation: Normalize(rotation), translation: point}
}

// NewPoseFromPoint constructs a pure-translation pose.
func NewPoseFromPoint(point r3.Vector) Pose {
	return Pose{rotation: quat.Number{Real: 1}, translation: point}
}

// NewPoseFromAxisAngle constructs a pose from a translation and an axis angle rotation.
func NewPoseFromAxisAngle(point r3.Vector, aa R4AA) Pose {
	return Pose{rotation: aa.ToQuat(), translation: point}
}

// Point returns the translation component of the pose.
func (p Pose) Point() r3.Vector {
	return p.translation
}

// Rotation returns the rotation component of the pose as a unit quaternion.
func (p Pose) Rotation() quat.Number {
	return p.rotation
}

// Compose returns the pose equivalent to applying p first, then other,
// i.e. the transform of other expressed through p.
func Compose(p, other Pose) Pose {
	return Pose{
		rotation:    Normalize(quat.Mul(p.rotation, other.rotation)),
		translation: p.translation.Add(QuatRotate(p.rotation, other.translation)),
	}
}

// Invert returns the inverse transform of the given pose.
func Invert(p Pose) Pose {
	invRot := quat.Conj(p.rotation)
	return Pose{
		rotation:    invRot,
		translation: QuatRotate(invRot, p.translation).Mul(-1),
	}
}

// TransformPoint applies the pose to a point in its local frame, returning
// the point in the parent frame.
func (p Pose) TransformPoint(pt r3.Vector) r3.Vector {
	return p.translation.Add(QuatRotate(p.rotation, pt))
}

// PoseDelta returns the transform from p1 to p2, i.e. Compose(p1, PoseDelta(p1, p2)) == p2.
func PoseDelta(p1, p2 Pose) Pose {
	return Compose(Invert(p1), p2)
}

// PoseAlmostEqual returns whether two poses are within the given translation
// and rotation tolerances of each other.
func PoseAlmostEqual(p1, p2 Pose, transTol, rotTol float64) bool {
	return p1.translation.Sub(p2.translation).Norm() < transTol &&
		QuaternionAlmostEqual(p1.rotation, p2.rotation, rotTol)
}
