package trajopt

// The trajectory along one segment is the cubic determined by the segment's
// bounding waypoint states and its collocation-point velocity, evaluated at a
// normalized step s in [0, 1] along a segment of duration h. Each evaluation
// also carries its analytic partial derivatives with respect to the five
// scalar decision variables it depends on, which the solver requires.
//
// With a = -3*v0 + 4*vc - v1 and b = v0 - 2*vc + v1, the position cubic is
//   p(s) = x0 + v0*s*h + 0.5*a*s^2*h + (2/3)*b*s^3*h
// and velocity, acceleration, and jerk are its successive time derivatives.

// basisEval is one scalar trajectory quantity with its partials.
type basisEval struct {
	value float64
	dX0   float64 // wrt the segment's starting waypoint position
	dV0   float64 // wrt the starting waypoint velocity
	dVc   float64 // wrt the collocation-point velocity
	dV1   float64 // wrt the ending waypoint velocity
	dH    float64 // wrt the segment duration
}

func evalPosition(x0, v0, vc, v1, h, s float64) basisEval {
	a := -3*v0 + 4*vc - v1
	b := v0 - 2*vc + v1
	s2 := s * s
	s3 := s2 * s
	return basisEval{
		value: x0 + v0*s*h + 0.5*a*s2*h + (2.0/3.0)*b*s3*h,
		dX0:   1,
		dV0:   h * (s - 1.5*s2 + (2.0/3.0)*s3),
		dVc:   h * (2*s2 - (4.0/3.0)*s3),
		dV1:   h * (-0.5*s2 + (2.0/3.0)*s3),
		dH:    v0*s + 0.5*a*s2 + (2.0/3.0)*b*s3,
	}
}

func evalVelocity(v0, vc, v1, s float64) basisEval {
	a := -3*v0 + 4*vc - v1
	b := v0 - 2*vc + v1
	s2 := s * s
	return basisEval{
		value: v0 + a*s + 2*b*s2,
		dV0:   1 - 3*s + 2*s2,
		dVc:   4*s - 4*s2,
		dV1:   -s + 2*s2,
	}
}

func evalAcceleration(v0, vc, v1, h, s float64) basisEval {
	a := -3*v0 + 4*vc - v1
	b := v0 - 2*vc + v1
	return basisEval{
		value: (a + 4*b*s) / h,
		dV0:   (-3 + 4*s) / h,
		dVc:   (4 - 8*s) / h,
		dV1:   (-1 + 4*s) / h,
		dH:    -(a + 4*b*s) / (h * h),
	}
}

func evalJerk(v0, vc, v1, h float64) basisEval {
	b := v0 - 2*vc + v1
	h2 := h * h
	return basisEval{
		value: 8 * b / h2,
		dV0:   8 / h2,
		dVc:   -16 / h2,
		dV1:   8 / h2,
		dH:    -16 * b / (h2 * h),
	}
}
