package errors

import (
	sterrors "errors"
	"fmt"
)

var (
	ErrConfigRequired     = sterrors.New("protogate: configuration is required")
	ErrLoggerRequired     = sterrors.New("protogate: logger is required")
	ErrPublisherRequired  = sterrors.New("protogate: publisher is required")
	ErrSubscriberRequired = sterrors.New("protogate: subscriber is required")
	ErrTopicRequired      = sterrors.New("protogate: topic is required")
	ErrPayloadRequired    = sterrors.New("protogate: payload is required")
	ErrMethodRequired     = sterrors.New("protogate: method is required")
)

// ConfigValidationError wraps every problem found while validating a Config.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("protogate: invalid configuration: %v", e.Err)
}

func (e ConfigValidationError) Unwrap() error {
	return e.Err
}

// NewConfigValidationError returns nil when err is nil so callers can wrap the
// result of Validate unconditionally.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
