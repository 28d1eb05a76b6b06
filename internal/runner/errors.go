package runner

import "errors"

// ViolationError reports a programming-contract bug in an Attempt
// implementation (mismatched test ids between paired streams, or a result
// yielded before any progress record). It is never converted into a test
// failure.
type ViolationError struct {
	Reason string
}

func (e *ViolationError) Error() string {
	return "stage protocol violation: " + e.Reason
}

// IsViolation reports whether err carries a protocol violation.
func IsViolation(err error) bool {
	var v *ViolationError
	return errors.As(err, &v)
}
