// Package spatialmath defines spatial mathematical operations.
package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// If an angle is smaller than this, small-angle series expansions are used
// in place of the closed-form rotation formulas.
const angleEpsilon = 1e-8

// R4AA represents an axis angle: a unit rotation axis and a rotation
// around that axis, in radians.
type R4AA struct {
	Theta float64
	RX    float64
	RY    float64
	RZ    float64
}

// ToQuat converts an R4 axis angle to a unit quaternion.
func (r4 R4AA) ToQuat() quat.Number {
	sinA := math.Sin(r4.Theta / 2)
	// Ensure the axis is normalized
	length := math.Sqrt(r4.RX*r4.RX + r4.RY*r4.RY + r4.RZ*r4.RZ)
	if length < angleEpsilon {
		return quat.Number{Real: 1}
	}
	return quat.Number{
		Real: math.Cos(r4.Theta / 2),
		Imag: sinA * r4.RX / length,
		Jmag: sinA * r4.RY / length,
		Kmag: sinA * r4.RZ / length,
	}
}

// QuatToR3AA converts a unit quaternion to an R3 axis angle, a vector
// whose direction is the rotation axis and whose length is the angle.
func QuatToR3AA(q quat.Number) r3.Vector {
	// Keep the scalar part non-negative for the shortest rotation.
	if q.Real < 0 {
		q = quat.Scale(-1, q)
	}
	vecNorm := math.Sqrt(q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	theta := 2 * math.Atan2(vecNorm, q.Real)
	if vecNorm < angleEpsilon {
		// Small angle: 2*v/w is the first-order log.
		return r3.Vector{X: 2 * q.Imag, Y: 2 * q.Jmag, Z: 2 * q.Kmag}
	}
	scale := theta / vecNorm
	return r3.Vector{X: q.Imag * scale, Y: q.Jmag * scale, Z: q.Kmag * scale}
}

// QuatRotate rotates a vector by the rotation represented by a unit quaternion.
func QuatRotate(q quat.Number, v r3.Vector) r3.Vector {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	rotated := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}

// QuaternionAlmostEqual compares two quaternions as rotations, treating q and -q as equal.
func QuaternionAlmostEqual(q1, q2 quat.Number, tol float64) bool {
	dot := q1.Real*q2.Real + q1.Imag*q2.Imag + q1.Jmag*q2.Jmag + q1.Kmag*q2.Kmag
	return 1-math.Abs(dot) < tol
}

// Normalize scales a quaternion to unit length so it represents a valid rotation.
func Normalize(q quat.Number) quat.Number {
	length := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if length == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/length, q)
}
