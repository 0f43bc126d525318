// Package trajectory provides a piecewise cubic joint-space trajectory
// representation sampled by time.
package trajectory

import (
	"sort"

	"github.com/pkg/errors"
)

// Trajectory is a multi-segment cubic Hermite trajectory over a set of
// timestamped waypoints with positions and velocities. Each segment's cubic
// is fully determined by its two bounding waypoints, so position and velocity
// are continuous everywhere and acceleration is linear within a segment.
// A Trajectory is immutable once constructed.
type Trajectory struct {
	times      []float64
	positions  [][]float64
	velocities [][]float64
	dof        int
}

// New constructs a trajectory from cumulative waypoint times and per-waypoint
// joint positions and velocities. Times must be strictly increasing and all
// waypoints must share one dimensionality.
func New(times []float64, positions, velocities [][]float64) (*Trajectory, error) {
	if len(times) < 2 {
		return nil, errors.New("trajectory requires at least two waypoints")
	}
	if len(positions) != len(times) || len(velocities) != len(times) {
		return nil, errors.Errorf(
			"mismatched trajectory data: %d times, %d positions, %d velocities",
			len(times), len(positions), len(velocities),
		)
	}
	dof := len(positions[0])
	if dof == 0 {
		return nil, errors.New("trajectory waypoints must have at least one degree of freedom")
	}
	for i := range times {
		if i > 0 && times[i] <= times[i-1] {
			return nil, errors.Errorf("trajectory times must be strictly increasing at index %d", i)
		}
		if len(positions[i]) != dof || len(velocities[i]) != dof {
			return nil, errors.Errorf("waypoint %d does not match trajectory dimensionality %d", i, dof)
		}
	}
	return &Trajectory{times: times, positions: positions, velocities: velocities, dof: dof}, nil
}

// Dof returns the number of degrees of freedom per waypoint.
func (traj *Trajectory) Dof() int {
	return traj.dof
}

// StartTime returns the time of the first waypoint.
func (traj *Trajectory) StartTime() float64 {
	return traj.times[0]
}

// EndTime returns the time of the final waypoint.
func (traj *Trajectory) EndTime() float64 {
	return traj.times[len(traj.times)-1]
}

// Duration returns the total trajectory duration.
func (traj *Trajectory) Duration() float64 {
	return traj.EndTime() - traj.StartTime()
}

// Times returns a copy of the cumulative waypoint times.
func (traj *Trajectory) Times() []float64 {
	out := make([]float64, len(traj.times))
	copy(out, traj.times)
	return out
}

// segmentAt locates the segment containing time t and the normalized
// parameter along it.
func (traj *Trajectory) segmentAt(t float64) (int, float64, error) {
	if t < traj.StartTime() || t > traj.EndTime() {
		return 0, 0, errors.Errorf("time %f outside trajectory range [%f, %f]", t, traj.StartTime(), traj.EndTime())
	}
	k := sort.SearchFloat64s(traj.times, t)
	if k > 0 {
		k--
	}
	if k == len(traj.times)-1 {
		k--
	}
	h := traj.times[k+1] - traj.times[k]
	return k, (t - traj.times[k]) / h, nil
}

// Position samples the joint positions at time t.
func (traj *Trajectory) Position(t float64) ([]float64, error) {
	k, s, err := traj.segmentAt(t)
	if err != nil {
		return nil, err
	}
	h := traj.times[k+1] - traj.times[k]
	out := make([]float64, traj.dof)
	for n := 0; n < traj.dof; n++ {
		p0, p1 := traj.positions[k][n], traj.positions[k+1][n]
		v0, v1 := traj.velocities[k][n], traj.velocities[k+1][n]
		out[n] = (2*s*s*s-3*s*s+1)*p0 +
			(s*s*s-2*s*s+s)*h*v0 +
			(-2*s*s*s+3*s*s)*p1 +
			(s*s*s-s*s)*h*v1
	}
	return out, nil
}

// Velocity samples the joint velocities at time t.
func (traj *Trajectory) Velocity(t float64) ([]float64, error) {
	k, s, err := traj.segmentAt(t)
	if err != nil {
		return nil, err
	}
	h := traj.times[k+1] - traj.times[k]
	out := make([]float64, traj.dof)
	for n := 0; n < traj.dof; n++ {
		p0, p1 := traj.positions[k][n], traj.positions[k+1][n]
		v0, v1 := traj.velocities[k][n], traj.velocities[k+1][n]
		out[n] = (6*s*s-6*s)*(p0-p1)/h +
			(3*s*s-4*s+1)*v0 +
			(3*s*s-2*s)*v1
	}
	return out, nil
}

// Acceleration samples the joint accelerations at time t. At interior
// waypoint times this reports the acceleration of the preceding segment.
func (traj *Trajectory) Acceleration(t float64) ([]float64, error) {
	k, s, err := traj.segmentAt(t)
	if err != nil {
		return nil, err
	}
	h := traj.times[k+1] - traj.times[k]
	out := make([]float64, traj.dof)
	for n := 0; n < traj.dof; n++ {
		p0, p1 := traj.positions[k][n], traj.positions[k+1][n]
		v0, v1 := traj.velocities[k][n], traj.velocities[k+1][n]
		out[n] = (12*s-6)*(p0-p1)/(h*h) +
			(6*s-4)*v0/h +
			(6*s-2)*v1/h
	}
	return out, nil
}
