package referenceframe

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/sea-bass/intro-to-manipulation/spatialmath"
)

// planarModel builds a two-revolute planar arm in the XY plane with unit link
// lengths and a fixed end effector frame.
func planarModel(t *testing.T) *SimpleModel {
	t.Helper()
	model, err := NewSimpleModel("planar2", []Link{
		{Name: "shoulder", Offset: spatialmath.NewZeroPose(), Axis: r3.Vector{Z: 1}, Limit: Limit{Min: -math.Pi, Max: math.Pi}},
		{Name: "elbow", Offset: spatialmath.NewPoseFromPoint(r3.Vector{X: 1}), Axis: r3.Vector{Z: 1}, Limit: Limit{Min: -math.Pi, Max: math.Pi}},
		{Name: "ee", Offset: spatialmath.NewPoseFromPoint(r3.Vector{X: 1})},
	})
	test.That(t, err, test.ShouldBeNil)
	return model
}

func TestNewSimpleModel(t *testing.T) {
	model := planarModel(t)
	test.That(t, model.Name(), test.ShouldEqual, "planar2")
	test.That(t, len(model.DoF()), test.ShouldEqual, 2)
	test.That(t, model.FrameNames(), test.ShouldResemble, []string{World, "shoulder", "elbow", "ee"})

	_, err := NewSimpleModel("empty", nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewSimpleModel("dup", []Link{
		{Name: "a", Offset: spatialmath.NewZeroPose()},
		{Name: "a", Offset: spatialmath.NewZeroPose()},
	})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewSimpleModel("badlimit", []Link{
		{Name: "a", Offset: spatialmath.NewZeroPose(), Axis: r3.Vector{Z: 1}, Limit: Limit{Min: 1, Max: -1}},
	})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFrameDepth(t *testing.T) {
	model := planarModel(t)
	for i, frame := range []string{World, "shoulder", "elbow", "ee"} {
		depth, err := model.FrameDepth(frame)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, depth, test.ShouldEqual, i)
	}
	_, err := model.FrameDepth("wrist")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestTransform(t *testing.T) {
	model := planarModel(t)

	// Home: the arm stretches along X.
	pose, err := model.Transform(FloatsToInputs([]float64{0, 0}), "ee")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Point().X, test.ShouldAlmostEqual, 2, 1e-9)
	test.That(t, pose.Point().Y, test.ShouldAlmostEqual, 0, 1e-9)

	// Elbow bent a quarter turn.
	pose, err = model.Transform(FloatsToInputs([]float64{0, math.Pi / 2}), "ee")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Point().X, test.ShouldAlmostEqual, 1, 1e-9)
	test.That(t, pose.Point().Y, test.ShouldAlmostEqual, 1, 1e-9)

	// General configuration against the closed-form planar kinematics.
	q1, q2 := 0.35, -1.2
	pose, err = model.Transform(FloatsToInputs([]float64{q1, q2}), "ee")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Point().X, test.ShouldAlmostEqual, math.Cos(q1)+math.Cos(q1+q2), 1e-9)
	test.That(t, pose.Point().Y, test.ShouldAlmostEqual, math.Sin(q1)+math.Sin(q1+q2), 1e-9)
	test.That(t, pose.Point().Z, test.ShouldAlmostEqual, 0, 1e-9)

	// Intermediate frames see only the joints before them.
	pose, err = model.Transform(FloatsToInputs([]float64{math.Pi / 2, 0.123}), "elbow")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pose.Point().X, test.ShouldAlmostEqual, 0, 1e-9)
	test.That(t, pose.Point().Y, test.ShouldAlmostEqual, 1, 1e-9)

	// The world frame never moves.
	pose, err = model.Transform(FloatsToInputs([]float64{1, 1}), World)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, spatialmath.PoseAlmostEqual(pose, spatialmath.NewZeroPose(), 1e-9, 1e-9), test.ShouldBeTrue)

	_, err = model.Transform(FloatsToInputs([]float64{0, 0}), "wrist")
	test.That(t, err, test.ShouldNotBeNil)
	_, err = model.Transform(FloatsToInputs([]float64{0}), "ee")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFrameJacobianWorldAligned(t *testing.T) {
	model := planarModel(t)
	q := []float64{0.4, -0.9}
	jac, err := model.FrameJacobian(FloatsToInputs(q), "ee", JacobianWorldAligned)
	test.That(t, err, test.ShouldBeNil)

	// Translation rows against a central difference of the forward kinematics.
	const eps = 1e-6
	for j := 0; j < 2; j++ {
		qPlus := append([]float64{}, q...)
		qMinus := append([]float64{}, q...)
		qPlus[j] += eps
		qMinus[j] -= eps
		pPlus, err := model.Transform(FloatsToInputs(qPlus), "ee")
		test.That(t, err, test.ShouldBeNil)
		pMinus, err := model.Transform(FloatsToInputs(qMinus), "ee")
		test.That(t, err, test.ShouldBeNil)
		numeric := pPlus.Point().Sub(pMinus.Point()).Mul(1 / (2 * eps))
		test.That(t, jac.At(0, j), test.ShouldAlmostEqual, numeric.X, 1e-5)
		test.That(t, jac.At(1, j), test.ShouldAlmostEqual, numeric.Y, 1e-5)
		test.That(t, jac.At(2, j), test.ShouldAlmostEqual, numeric.Z, 1e-5)

		// Both joints rotate about world Z.
		test.That(t, jac.At(3, j), test.ShouldAlmostEqual, 0, 1e-9)
		test.That(t, jac.At(4, j), test.ShouldAlmostEqual, 0, 1e-9)
		test.That(t, jac.At(5, j), test.ShouldAlmostEqual, 1, 1e-9)
	}
}

func TestFrameJacobianLocal(t *testing.T) {
	model := planarModel(t)
	q := FloatsToInputs([]float64{0.7, 0.3})

	world, err := model.FrameJacobian(q, "ee", JacobianWorldAligned)
	test.That(t, err, test.ShouldBeNil)
	local, err := model.FrameJacobian(q, "ee", JacobianLocal)
	test.That(t, err, test.ShouldBeNil)

	// The local Jacobian is the world-aligned one rotated into the frame.
	pose, err := model.Transform(q, "ee")
	test.That(t, err, test.ShouldBeNil)
	invRot := spatialmath.Invert(pose).Rotation()
	for j := 0; j < 2; j++ {
		linear := spatialmath.QuatRotate(invRot, r3.Vector{X: world.At(0, j), Y: world.At(1, j), Z: world.At(2, j)})
		angular := spatialmath.QuatRotate(invRot, r3.Vector{X: world.At(3, j), Y: world.At(4, j), Z: world.At(5, j)})
		test.That(t, local.At(0, j), test.ShouldAlmostEqual, linear.X, 1e-9)
		test.That(t, local.At(1, j), test.ShouldAlmostEqual, linear.Y, 1e-9)
		test.That(t, local.At(2, j), test.ShouldAlmostEqual, linear.Z, 1e-9)
		test.That(t, local.At(3, j), test.ShouldAlmostEqual, angular.X, 1e-9)
		test.That(t, local.At(4, j), test.ShouldAlmostEqual, angular.Y, 1e-9)
		test.That(t, local.At(5, j), test.ShouldAlmostEqual, angular.Z, 1e-9)
	}

	// Joints past the queried frame contribute zero columns.
	elbowJac, err := model.FrameJacobian(q, "shoulder", JacobianWorldAligned)
	test.That(t, err, test.ShouldBeNil)
	for i := 0; i < 6; i++ {
		test.That(t, elbowJac.At(i, 1), test.ShouldAlmostEqual, 0, 1e-12)
	}
}
