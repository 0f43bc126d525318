package ik

import (
	"gonum.org/v1/gonum/floats"

	"github.com/sea-bass/intro-to-manipulation/collision"
	"github.com/sea-bass/intro-to-manipulation/referenceframe"
)

// NullspaceComponent produces a secondary-objective joint velocity for a
// configuration. Components are stateless aside from gains fixed at
// construction, and compose by summation.
type NullspaceComponent interface {
	Evaluate(inputs []referenceframe.Input) ([]float64, error)
}

// sumComponents superimposes the contributions of all given components.
func sumComponents(
	components []NullspaceComponent,
	inputs []referenceframe.Input,
) ([]float64, error) {
	total := make([]float64, len(inputs))
	for _, component := range components {
		term, err := component.Evaluate(inputs)
		if err != nil {
			return nil, err
		}
		floats.Add(total, term)
	}
	return total, nil
}

type zeroComponent struct {
	dof int
}

// NewZeroComponent returns a component contributing nothing, documenting the
// no-secondary-objective case.
func NewZeroComponent(model referenceframe.Model) NullspaceComponent {
	return &zeroComponent{dof: len(model.DoF())}
}

func (c *zeroComponent) Evaluate(inputs []referenceframe.Input) ([]float64, error) {
	return make([]float64, c.dof), nil
}

type jointLimitComponent struct {
	model   referenceframe.Model
	gain    float64
	padding float64
}

// NewJointLimitComponent returns a component that pushes joints back inside
// their padded limits, proportionally to the violation past the padding.
// Joints safely interior to the padded limits are unaffected.
func NewJointLimitComponent(model referenceframe.Model, gain, padding float64) NullspaceComponent {
	return &jointLimitComponent{model: model, gain: gain, padding: padding}
}

func (c *jointLimitComponent) Evaluate(inputs []referenceframe.Input) ([]float64, error) {
	grad := make([]float64, len(inputs))
	for i, limit := range c.model.DoF() {
		upper := limit.Max - c.padding
		lower := limit.Min + c.padding
		if inputs[i].Value > upper {
			grad[i] = -c.gain * (inputs[i].Value - upper)
		} else if inputs[i].Value < lower {
			grad[i] = -c.gain * (inputs[i].Value - lower)
		}
	}
	return grad, nil
}

type jointCenteringComponent struct {
	model referenceframe.Model
	gain  float64
}

// NewJointCenteringComponent returns a component that pulls every joint
// toward the center of its limit range.
func NewJointCenteringComponent(model referenceframe.Model, gain float64) NullspaceComponent {
	return &jointCenteringComponent{model: model, gain: gain}
}

func (c *jointCenteringComponent) Evaluate(inputs []referenceframe.Input) ([]float64, error) {
	centers := referenceframe.JointCenters(c.model)
	grad := make([]float64, len(inputs))
	for i := range grad {
		grad[i] = c.gain * (centers[i] - inputs[i].Value)
	}
	return grad, nil
}

// CollisionAvoidanceConfig tunes the collision avoidance component. These
// constants are deliberately independent of the trajectory optimizer's
// collision options.
type CollisionAvoidanceConfig struct {
	// DistPadding is how far from contact, in distance units, pairs begin to
	// influence the component.
	DistPadding float64

	// MaxVelocity bounds the norm of the aggregate avoidance velocity.
	MaxVelocity float64

	// Damping regularizes the per-pair Jacobian pseudoinverse.
	Damping float64

	// Gain scales the aggregate contribution.
	Gain float64
}

// NewCollisionAvoidanceConfig returns the default avoidance tuning.
func NewCollisionAvoidanceConfig() CollisionAvoidanceConfig {
	return CollisionAvoidanceConfig{
		DistPadding: 0.05,
		MaxVelocity: 1.0,
		Damping:     1e-4,
		Gain:        1.0,
	}
}

type collisionAvoidanceComponent struct {
	checker *collision.Checker
	config  CollisionAvoidanceConfig
}

// NewCollisionAvoidanceComponent returns a component pushing the
// configuration away from every active collision pair within the configured
// padding distance.
func NewCollisionAvoidanceComponent(
	checker *collision.Checker,
	config CollisionAvoidanceConfig,
) NullspaceComponent {
	return &collisionAvoidanceComponent{checker: checker, config: config}
}

func (c *collisionAvoidanceComponent) Evaluate(inputs []referenceframe.Input) ([]float64, error) {
	component := make([]float64, len(inputs))
	results, err := c.checker.Distances(inputs)
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		if res.Distance > c.config.DistPadding {
			continue
		}
		deltaQ, err := c.checker.AvoidanceVelocity(inputs, res, c.config.DistPadding, c.config.Damping)
		if err != nil {
			return nil, err
		}
		floats.Add(component, deltaQ)
	}
	floats.Scale(c.config.Gain, component)

	// Bound the secondary objective's influence.
	if norm := floats.Norm(component, 2); norm > c.config.MaxVelocity {
		floats.Scale(c.config.MaxVelocity/norm, component)
	}
	return component, nil
}
