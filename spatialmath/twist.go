package spatialmath

import (
	"math"

	"github.com/golang/geo/r3"
)

// Twist is an element of se(3): a spatial velocity or, via the logarithm map,
// the difference between two poses. Linear components come first when the
// twist is flattened to a 6-vector.
type Twist struct {
	Linear  r3.Vector
	Angular r3.Vector
}

// AsSlice flattens the twist to a 6-vector, translation rows first.
func (t Twist) AsSlice() []float64 {
	return []float64{t.Linear.X, t.Linear.Y, t.Linear.Z, t.Angular.X, t.Angular.Y, t.Angular.Z}
}

// Mul scales both components of the twist.
func (t Twist) Mul(scale float64) Twist {
	return Twist{Linear: t.Linear.Mul(scale), Angular: t.Angular.Mul(scale)}
}

// Norm returns the Euclidean norm of the flattened 6-vector.
func (t Twist) Norm() float64 {
	return math.Sqrt(t.Linear.Norm2() + t.Angular.Norm2())
}

// PoseLog computes the SE(3) logarithm of a pose, the twist which, applied
// for unit time, takes the identity to that pose.
func PoseLog(p Pose) Twist {
	omega := QuatToR3AA(p.Rotation())
	theta := omega.Norm()
	t := p.Point()

	// V^-1 t = t - 1/2 (w x t) + c (w x (w x t)), with the standard
	// series limit c -> 1/12 as theta -> 0.
	var c float64
	if theta < angleEpsilon {
		c = 1.0 / 12.0
	} else {
		c = (1 - (theta*math.Sin(theta))/(2*(1-math.Cos(theta)))) / (theta * theta)
	}
	wxt := omega.Cross(t)
	linear := t.Sub(wxt.Mul(0.5)).Add(omega.Cross(wxt).Mul(c))

	return Twist{Linear: linear, Angular: omega}
}
