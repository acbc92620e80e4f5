package plughost

import (
	"errors"
	"fmt"
)

// Error classes returned by control-thread APIs. Match them with errors.Is.
// Nothing in the audio context returns these; it only counts incidents.
var (
	// ErrConfiguration is a bad index, an unknown named resource or a value
	// out of range. It is never retried automatically.
	ErrConfiguration = errors.New("configuration error")
	// ErrResourceExhausted is a full voice pool or a full queue.
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrProtocolViolation is a malformed state file or a mismatched unit
	// identifier. It fails only the load that hit it.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrProcessingFailure is a hosted unit reporting a processing error. It
	// aborts offline renders.
	ErrProcessingFailure = errors.New("processing failure")
)

func ConfigErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

func ProtocolErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocolViolation, fmt.Sprintf(format, args...))
}

func ProcessingErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProcessingFailure, fmt.Sprintf(format, args...))
}
