// Package motionplan provides conveniences shared by the inverse kinematics
// solver and trajectory optimizer it contains.
package motionplan

import (
	"github.com/sea-bass/intro-to-manipulation/collision"
	"github.com/sea-bass/intro-to-manipulation/referenceframe"
	"github.com/sea-bass/intro-to-manipulation/spatialmath"
)

// PathLength returns the total joint-space distance along a path of
// configurations.
func PathLength(path [][]referenceframe.Input) float64 {
	return referenceframe.PathLength(path)
}

// CheckPathCollisionFree reports whether every configuration along the path
// is collision free. The first collision or checker error short-circuits.
func CheckPathCollisionFree(checker *collision.Checker, path [][]referenceframe.Input) (bool, error) {
	for _, q := range path {
		inCollision, err := checker.IsInCollision(q)
		if err != nil {
			return false, err
		}
		if inCollision {
			return false, nil
		}
	}
	return true, nil
}

// ExtractPoses computes the pose of the named frame at every configuration
// along a path.
func ExtractPoses(
	model referenceframe.Model,
	frame string,
	path [][]referenceframe.Input,
) ([]spatialmath.Pose, error) {
	poses := make([]spatialmath.Pose, 0, len(path))
	for _, q := range path {
		pose, err := model.Transform(q, frame)
		if err != nil {
			return nil, err
		}
		poses = append(poses, pose)
	}
	return poses, nil
}
