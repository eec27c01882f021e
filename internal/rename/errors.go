package rename

import "errors"

var (
	// ErrInFlight indicates a rename transaction is already running.
	ErrInFlight = errors.New("rename already in progress")

	// ErrEmptyCapture indicates the user typed no replacement. The
	// transaction ends without a request.
	ErrEmptyCapture = errors.New("empty rename capture")

	// ErrTimeout indicates the backend did not answer within the bound.
	ErrTimeout = errors.New("rename request timed out")
)
