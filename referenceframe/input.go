package referenceframe

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Input wraps the input to a mutable frame, e.g. a joint angle.
// Revolute inputs are in radians.
type Input struct {
	Value float64
}

// FloatsToInputs wraps a slice of floats in Inputs.
func FloatsToInputs(floats []float64) []Input {
	inputs := make([]Input, len(floats))
	for i, f := range floats {
		inputs[i] = Input{f}
	}
	return inputs
}

// InputsToFloats unwraps Inputs to raw floats.
func InputsToFloats(inputs []Input) []float64 {
	floats := make([]float64, len(inputs))
	for i, f := range inputs {
		floats[i] = f.Value
	}
	return floats
}

// InterpolateInputs will return a set of inputs that are the specified percent between the two given sets of
// inputs. For example, setting by to 0.5 will return the inputs halfway between the from/to values, and 0.25 would
// return one quarter of the way from "from" to "to".
func InterpolateInputs(from, to []Input, by float64) []Input {
	var newVals []Input
	for i, j1 := range from {
		newVals = append(newVals, Input{j1.Value + ((to[i].Value - j1.Value) * by)})
	}
	return newVals
}

// ConfigurationDistance returns the Euclidean distance between two joint configurations.
func ConfigurationDistance(q1, q2 []Input) float64 {
	diff := make([]float64, len(q1))
	floats.SubTo(diff, InputsToFloats(q2), InputsToFloats(q1))
	return floats.Norm(diff, 2)
}

// PathLength returns the total configuration distance along a path of joint configurations.
func PathLength(path [][]Input) float64 {
	total := 0.
	for i := 1; i < len(path); i++ {
		total += ConfigurationDistance(path[i-1], path[i])
	}
	return total
}

// InputsAlmostEqual checks whether two configurations match to within a tolerance.
func InputsAlmostEqual(a, b []Input, epsilon float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i].Value-b[i].Value) > epsilon {
			return false
		}
	}
	return true
}
