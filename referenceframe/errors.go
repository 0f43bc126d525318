package referenceframe

import "github.com/pkg/errors"

// NewIncorrectInputLengthError returns an error indicating that a
// configuration does not match the model's degrees of freedom.
func NewIncorrectInputLengthError(got, want int) error {
	return errors.Errorf("number of inputs does not match model DoF, expected %d but got %d", want, got)
}
