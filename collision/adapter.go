package collision

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/sea-bass/intro-to-manipulation/referenceframe"
	"github.com/sea-bass/intro-to-manipulation/spatialmath"
)

// Distances below this are treated as exactly in contact when scaling
// separation vectors, avoiding division blowup.
const minPaddingDist = 1e-6

// AvoidanceVelocity maps one pair's separation geometry to a joint-space
// velocity that increases the pair's distance. The Jacobian is anchored at
// whichever parent frame sits deeper in the kinematic chain (never the world
// frame), with the separation vector flipped when that frame belongs to the
// pair's second geometry. The magnitude fades to zero as the distance
// approaches distPadding from below and grows with penetration depth.
func (c *Checker) AvoidanceVelocity(
	inputs []referenceframe.Input,
	res DistanceResult,
	distPadding, damping float64,
) ([]float64, error) {
	frame1 := c.geometries[res.First].Frame
	frame2 := c.geometries[res.Second].Frame
	depth1, err := c.model.FrameDepth(frame1)
	if err != nil {
		return nil, err
	}
	depth2, err := c.model.FrameDepth(frame2)
	if err != nil {
		return nil, err
	}

	// Anchor at the non-world frame; between two robot frames, prefer the one
	// farther along the chain. This is a tunable tie-break, not an invariant.
	sep := res.SeparationVector()
	frame := frame1
	if depth1 == 0 || depth2 > depth1 {
		frame = frame2
		sep = sep.Mul(-1)
	}

	// Fade the influence smoothly to zero at the padding boundary. The signed
	// distance keeps the scaled vector pointing away from contact on both
	// sides of zero, growing with penetration depth.
	if math.Abs(res.Distance) > minPaddingDist {
		sep = sep.Mul(1 - distPadding/res.Distance)
	}

	jac, err := c.model.FrameJacobian(inputs, frame, referenceframe.JacobianWorldAligned)
	if err != nil {
		return nil, err
	}
	_, n := jac.Dims()
	return dampedLeastSquares(jac.Slice(0, 3, 0, n), []float64{sep.X, sep.Y, sep.Z}, damping)
}

// MinDistanceGradient returns the minimum signed distance over the given
// active pair indices, together with its analytic gradient with respect to
// the configuration. Pairs farther than influenceDist are non-binding; if
// every pair is, the returned distance is influenceDist and the gradient is
// zero. The gradient differences the two contact-point Jacobians, so the
// result is differentiable through the optimizer's collision constraint.
func (c *Checker) MinDistanceGradient(
	inputs []referenceframe.Input,
	pairIndices []int,
	influenceDist float64,
) (float64, []float64, error) {
	poses, err := c.framePoses(inputs)
	if err != nil {
		return 0, nil, err
	}

	minDist := influenceDist
	minIdx := -1
	for _, idx := range pairIndices {
		if idx < 0 || idx >= len(c.pairs) {
			return 0, nil, errors.Errorf("collision pair index %d out of range", idx)
		}
		if dist := c.pairDistance(c.pairs[idx], poses).Distance; dist <= influenceDist && dist < minDist {
			minDist = dist
			minIdx = idx
		}
	}

	gradient := make([]float64, len(c.model.DoF()))
	if minIdx < 0 {
		return minDist, gradient, nil
	}

	res := c.pairDistance(c.pairs[minIdx], poses)
	sep := res.P2.Sub(res.P1)
	sepNorm := sep.Norm()
	if sepNorm < minPaddingDist {
		return minDist, gradient, nil
	}
	sep = sep.Mul(1 / sepNorm)

	jac1, err := c.contactJacobian(inputs, c.geometries[res.First].Frame, res.P1, poses)
	if err != nil {
		return 0, nil, err
	}
	jac2, err := c.contactJacobian(inputs, c.geometries[res.Second].Frame, res.P2, poses)
	if err != nil {
		return 0, nil, err
	}

	sign := 1.0
	if minDist < 0 {
		sign = -1.0
	}
	for i := range gradient {
		diff := r3.Vector{
			X: jac2.At(0, i) - jac1.At(0, i),
			Y: jac2.At(1, i) - jac1.At(1, i),
			Z: jac2.At(2, i) - jac1.At(2, i),
		}
		gradient[i] = sign * sep.Dot(diff)
	}
	return minDist, gradient, nil
}

// contactJacobian computes the 3xn Jacobian of a world point rigidly attached
// to the named frame, in world-aligned coordinates.
func (c *Checker) contactJacobian(
	inputs []referenceframe.Input,
	frame string,
	point r3.Vector,
	poses map[string]spatialmath.Pose,
) (*mat.Dense, error) {
	jac, err := c.model.FrameJacobian(inputs, frame, referenceframe.JacobianWorldAligned)
	if err != nil {
		return nil, err
	}

	_, n := jac.Dims()
	lever := point.Sub(poses[frame].Point())
	pointJac := mat.NewDense(3, n, nil)
	for i := 0; i < n; i++ {
		linear := r3.Vector{X: jac.At(0, i), Y: jac.At(1, i), Z: jac.At(2, i)}
		angular := r3.Vector{X: jac.At(3, i), Y: jac.At(4, i), Z: jac.At(5, i)}
		v := linear.Add(angular.Cross(lever))
		pointJac.Set(0, i, v.X)
		pointJac.Set(1, i, v.Y)
		pointJac.Set(2, i, v.Z)
	}
	return pointJac, nil
}

// dampedLeastSquares solves J^T (J J^T + damping^2 I)^-1 vec, the same
// regularization discipline the IK solver uses for its primary task.
func dampedLeastSquares(jac mat.Matrix, vec []float64, damping float64) ([]float64, error) {
	m, n := jac.Dims()
	var jjt mat.Dense
	jjt.Mul(jac, jac.T())
	for i := 0; i < m; i++ {
		jjt.Set(i, i, jjt.At(i, i)+damping*damping)
	}
	var y mat.VecDense
	if err := y.SolveVec(&jjt, mat.NewVecDense(m, vec)); err != nil {
		return nil, errors.Wrap(err, "damped least squares solve failed")
	}
	var dq mat.VecDense
	dq.MulVec(jac.T(), &y)
	out := make([]float64, n)
	copy(out, dq.RawVector().Data)
	return out, nil
}
