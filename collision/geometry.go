// Package collision implements collision-pair bookkeeping, signed distance
// computation, and the joint-space distance gradients consumed by the IK
// solver's avoidance component and the trajectory optimizer.
package collision

import (
	"github.com/golang/geo/r3"

	"github.com/sea-bass/intro-to-manipulation/spatialmath"
)

// Sphere is a collision geometry rigidly attached to a model frame.
type Sphere struct {
	Name   string
	Frame  string
	Offset r3.Vector
	Radius float64
}

// center returns the sphere center in world coordinates given its parent frame pose.
func (s Sphere) center(framePose spatialmath.Pose) r3.Vector {
	return framePose.TransformPoint(s.Offset)
}

// DistanceResult describes the separation of one collision pair at a
// configuration. Distance is signed: negative means the pair penetrates.
// P1 and P2 are the nearest (or deepest, if penetrating) points on the first
// and second geometry, and Normal points from the first geometry to the second.
type DistanceResult struct {
	First    string
	Second   string
	Distance float64
	P1       r3.Vector
	P2       r3.Vector
	Normal   r3.Vector
}

// SeparationVector returns the vector from P1 to P2. It has magnitude
// |Distance| and points along the contact normal, flipped when penetrating.
func (d DistanceResult) SeparationVector() r3.Vector {
	return d.Normal.Mul(d.Distance)
}

// sphereDistance computes the signed distance result between two spheres at
// the given world centers.
func sphereDistance(s1, s2 Sphere, c1, c2 r3.Vector) DistanceResult {
	delta := c2.Sub(c1)
	centerDist := delta.Norm()
	normal := r3.Vector{X: 1} // arbitrary direction for coincident centers
	if centerDist > 0 {
		normal = delta.Mul(1 / centerDist)
	}
	return DistanceResult{
		First:    s1.Name,
		Second:   s2.Name,
		Distance: centerDist - s1.Radius - s2.Radius,
		P1:       c1.Add(normal.Mul(s1.Radius)),
		P2:       c2.Sub(normal.Mul(s2.Radius)),
		Normal:   normal,
	}
}
