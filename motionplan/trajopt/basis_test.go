package trajopt

import (
	"testing"

	"go.viam.com/test"
)

func TestBasisBoundaryValues(t *testing.T) {
	x0, v0, vc, v1, h := 0.2, -0.4, 0.9, 0.3, 1.7

	// The cubic starts at the waypoint state and reaches the collocation
	// velocity at the segment midpoint.
	test.That(t, evalPosition(x0, v0, vc, v1, h, 0).value, test.ShouldAlmostEqual, x0, 1e-12)
	test.That(t, evalVelocity(v0, vc, v1, 0).value, test.ShouldAlmostEqual, v0, 1e-12)
	test.That(t, evalVelocity(v0, vc, v1, 0.5).value, test.ShouldAlmostEqual, vc, 1e-12)
	test.That(t, evalVelocity(v0, vc, v1, 1).value, test.ShouldAlmostEqual, v1, 1e-12)
}

func TestBasisDerivativeChain(t *testing.T) {
	x0, v0, vc, v1, h := 0.1, 0.6, -0.2, 0.4, 2.3

	// Velocity is the time derivative of position, acceleration of velocity,
	// and jerk of acceleration, each via ds/dt = 1/h.
	const eps = 1e-6
	for _, s := range []float64{0.15, 0.5, 0.85} {
		dPos := (evalPosition(x0, v0, vc, v1, h, s+eps).value - evalPosition(x0, v0, vc, v1, h, s-eps).value) / (2 * eps * h)
		test.That(t, evalVelocity(v0, vc, v1, s).value, test.ShouldAlmostEqual, dPos, 1e-6)

		dVel := (evalVelocity(v0, vc, v1, s+eps).value - evalVelocity(v0, vc, v1, s-eps).value) / (2 * eps * h)
		test.That(t, evalAcceleration(v0, vc, v1, h, s).value, test.ShouldAlmostEqual, dVel, 1e-6)

		dAcc := (evalAcceleration(v0, vc, v1, h, s+eps).value - evalAcceleration(v0, vc, v1, h, s-eps).value) / (2 * eps * h)
		test.That(t, evalJerk(v0, vc, v1, h).value, test.ShouldAlmostEqual, dAcc, 1e-5)
	}
}

func TestBasisPartials(t *testing.T) {
	x0, v0, vc, v1, h := -0.3, 0.8, 0.1, -0.6, 1.4
	const eps = 1e-6

	type evalFunc func(x0, v0, vc, v1, h float64) basisEval
	check := func(t *testing.T, f evalFunc) {
		t.Helper()
		got := f(x0, v0, vc, v1, h)
		partials := []struct {
			name     string
			analytic float64
			plus     basisEval
			minus    basisEval
		}{
			{"dX0", got.dX0, f(x0+eps, v0, vc, v1, h), f(x0-eps, v0, vc, v1, h)},
			{"dV0", got.dV0, f(x0, v0+eps, vc, v1, h), f(x0, v0-eps, vc, v1, h)},
			{"dVc", got.dVc, f(x0, v0, vc+eps, v1, h), f(x0, v0, vc-eps, v1, h)},
			{"dV1", got.dV1, f(x0, v0, vc, v1+eps, h), f(x0, v0, vc, v1-eps, h)},
			{"dH", got.dH, f(x0, v0, vc, v1, h+eps), f(x0, v0, vc, v1, h-eps)},
		}
		for _, p := range partials {
			numeric := (p.plus.value - p.minus.value) / (2 * eps)
			test.That(t, p.analytic, test.ShouldAlmostEqual, numeric, 1e-5)
		}
	}

	for _, s := range []float64{0, 0.25, 0.6, 1} {
		s := s
		check(t, func(x0, v0, vc, v1, h float64) basisEval { return evalPosition(x0, v0, vc, v1, h, s) })
		check(t, func(x0, v0, vc, v1, h float64) basisEval { return evalVelocity(v0, vc, v1, s) })
		check(t, func(x0, v0, vc, v1, h float64) basisEval { return evalAcceleration(v0, vc, v1, h, s) })
	}
	check(t, func(x0, v0, vc, v1, h float64) basisEval { return evalJerk(v0, vc, v1, h) })
}
