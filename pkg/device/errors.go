package device

import "errors"

var (
	// ErrNotFound indicates a device was not found
	ErrNotFound = errors.New("device not found")

	// ErrTimeout indicates an exchange with a device timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrNAK indicates the modem refused a command
	ErrNAK = errors.New("command not acknowledged")

	// ErrNotConnected indicates the transport is not connected
	ErrNotConnected = errors.New("transport not connected")

	// ErrUnsupported indicates an operation is not supported by the device
	ErrUnsupported = errors.New("operation not supported")

	// ErrValidation indicates a request payload failed schema validation
	ErrValidation = errors.New("validation error")
)
