package collision

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/sea-bass/intro-to-manipulation/referenceframe"
	"github.com/sea-bass/intro-to-manipulation/spatialmath"
)

// Pair is an ordered pair of collision geometry names enabled for checking.
type Pair struct {
	First  string
	Second string
}

// Checker is the collision half of the oracle. It owns a set of named sphere
// geometries attached to model frames and an active list of pairs to check.
// Construction and pair edits are not safe to interleave with solves; once
// configured, a Checker is read-only and may be shared.
type Checker struct {
	model      referenceframe.Model
	geometries map[string]Sphere
	order      []string
	pairs      []Pair
}

// NewChecker creates an empty collision checker over the given model.
func NewChecker(model referenceframe.Model) *Checker {
	return &Checker{
		model:      model,
		geometries: map[string]Sphere{},
	}
}

// Model returns the kinematic model the checker is attached to.
func (c *Checker) Model() referenceframe.Model {
	return c.model
}

// AddGeometry attaches a geometry to the checker. Names must be unique and
// the parent frame must exist on the model.
func (c *Checker) AddGeometry(s Sphere) error {
	if _, ok := c.geometries[s.Name]; ok {
		return errors.Errorf("found geometry with duplicate name: %s", s.Name)
	}
	if _, err := c.model.FrameDepth(s.Frame); err != nil {
		return err
	}
	if s.Radius <= 0 {
		return errors.Errorf("geometry %s must have a positive radius", s.Name)
	}
	c.geometries[s.Name] = s
	c.order = append(c.order, s.Name)
	return nil
}

// geometriesForBody resolves a body name to geometry names. The body can be
// a geometry name directly, or a frame name owning any number of geometries.
func (c *Checker) geometriesForBody(body string) []string {
	if _, ok := c.geometries[body]; ok {
		return []string{body}
	}
	var names []string
	for _, name := range c.order {
		if c.geometries[name].Frame == body {
			names = append(names, name)
		}
	}
	return names
}

// SetCollisionEnabled enables or disables checking between all geometries of
// two bodies. Each body may be a geometry name or a frame name.
func (c *Checker) SetCollisionEnabled(body1, body2 string, enable bool) error {
	names1 := c.geometriesForBody(body1)
	names2 := c.geometriesForBody(body2)
	if len(names1) == 0 || len(names2) == 0 {
		return errors.Errorf("no collision geometries found for bodies %q and %q", body1, body2)
	}
	for _, n1 := range names1 {
		for _, n2 := range names2 {
			if enable {
				c.addPair(Pair{n1, n2})
			} else {
				c.removePair(Pair{n1, n2})
			}
		}
	}
	return nil
}

func (c *Checker) addPair(pair Pair) {
	for _, existing := range c.pairs {
		if samePair(existing, pair) {
			return
		}
	}
	c.pairs = append(c.pairs, pair)
}

func (c *Checker) removePair(pair Pair) {
	for i, existing := range c.pairs {
		if samePair(existing, pair) {
			c.pairs = append(c.pairs[:i], c.pairs[i+1:]...)
			return
		}
	}
}

func samePair(p1, p2 Pair) bool {
	return (p1.First == p2.First && p1.Second == p2.Second) ||
		(p1.First == p2.Second && p1.Second == p2.First)
}

// Pairs returns the active collision pairs in insertion order.
func (c *Checker) Pairs() []Pair {
	return c.pairs
}

// PairsInvolving returns the indices of active pairs touching the given body,
// which may be a geometry name or a frame name.
func (c *Checker) PairsInvolving(body string) []int {
	names := map[string]bool{}
	for _, name := range c.geometriesForBody(body) {
		names[name] = true
	}
	var indices []int
	for i, pair := range c.pairs {
		if names[pair.First] || names[pair.Second] {
			indices = append(indices, i)
		}
	}
	return indices
}

// framePoses computes the world pose of every frame owning a geometry.
func (c *Checker) framePoses(inputs []referenceframe.Input) (map[string]spatialmath.Pose, error) {
	poses := map[string]spatialmath.Pose{}
	for _, name := range c.order {
		frame := c.geometries[name].Frame
		if _, ok := poses[frame]; ok {
			continue
		}
		pose, err := c.model.Transform(inputs, frame)
		if err != nil {
			return nil, err
		}
		poses[frame] = pose
	}
	return poses, nil
}

// pairDistance evaluates one active pair at the given frame poses.
func (c *Checker) pairDistance(pair Pair, poses map[string]spatialmath.Pose) DistanceResult {
	s1 := c.geometries[pair.First]
	s2 := c.geometries[pair.Second]
	return sphereDistance(s1, s2, s1.center(poses[s1.Frame]), s2.center(poses[s2.Frame]))
}

// Distances computes the signed distance result of every active pair at the
// given configuration, in pair order.
func (c *Checker) Distances(inputs []referenceframe.Input) ([]DistanceResult, error) {
	poses, err := c.framePoses(inputs)
	if err != nil {
		return nil, err
	}
	results := make([]DistanceResult, 0, len(c.pairs))
	for _, pair := range c.pairs {
		results = append(results, c.pairDistance(pair, poses))
	}
	return results, nil
}

// IsInCollision reports whether any active pair penetrates at the given
// configuration, stopping at the first collision found.
func (c *Checker) IsInCollision(inputs []referenceframe.Input) (bool, error) {
	poses, err := c.framePoses(inputs)
	if err != nil {
		return false, err
	}
	for _, pair := range c.pairs {
		if c.pairDistance(pair, poses).Distance < 0 {
			return true, nil
		}
	}
	return false, nil
}

// CollisionFreeInputs samples configurations within the model's joint limits
// until one is collision-free, or maxTries samples have been rejected.
func (c *Checker) CollisionFreeInputs(randSeed *rand.Rand, maxTries int) ([]referenceframe.Input, error) {
	for try := 0; try < maxTries; try++ {
		inputs := referenceframe.RandomInputs(c.model, randSeed)
		inCollision, err := c.IsInCollision(inputs)
		if err != nil {
			return nil, err
		}
		if !inCollision {
			return inputs, nil
		}
	}
	return nil, errors.Errorf("could not generate a collision-free configuration after %d tries", maxTries)
}

// CollisionFreePose samples a collision-free configuration and returns the
// pose of the named frame at it, useful for generating reachable IK targets.
func (c *Checker) CollisionFreePose(randSeed *rand.Rand, frame string, maxTries int) (spatialmath.Pose, error) {
	inputs, err := c.CollisionFreeInputs(randSeed, maxTries)
	if err != nil {
		return spatialmath.NewZeroPose(), err
	}
	return c.model.Transform(inputs, frame)
}
