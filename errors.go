package classifier

import "errors"

var (
	// ErrInvalidInput is returned for a wrong vector dimension, an out-of-range label
	// or non-finite vector components. The offending operation leaves no state behind.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnavailable means no frame or embedding could be produced this tick.
	ErrUnavailable = errors.New("unavailable")

	// ErrConfiguration is returned by constructors for inconsistent startup values.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrAlreadyRunning is returned by Run when another Run is in progress.
	ErrAlreadyRunning = errors.New("frame loop already running")
)
