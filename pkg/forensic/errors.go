package forensic

import (
	"errors"
	"fmt"
)

var (
	// ErrDetectorTimeout means a detector did not finish within its time budget
	ErrDetectorTimeout = errors.New("detector timed out")
	// ErrDetectorCompute means a detector returned an error or panicked
	ErrDetectorCompute = errors.New("detector failed")
)

// DetectorError records which check failed and why. It never escapes Analyze;
// it is logged and reflected in the per-check status.
type DetectorError struct {
	Check string
	Err   error
}

func (e *DetectorError) Error() string {
	return fmt.Sprintf("%s detector: %v", e.Check, e.Err)
}

func (e *DetectorError) Unwrap() error {
	return e.Err
}
