package costs

import "errors"

// ErrInvalidDate is matched by every date validation failure.
var ErrInvalidDate = errors.New("invalid date")

// DateError describes why the requested reporting window was rejected.
type DateError struct {
	Reason string
}

// Error implements the error interface.
func (e *DateError) Error() string {
	return "Invalid date: " + e.Reason
}

// Is reports whether target is ErrInvalidDate.
func (e *DateError) Is(target error) bool {
	return target == ErrInvalidDate
}

func newDateError(reason string) *DateError {
	return &DateError{Reason: reason}
}
