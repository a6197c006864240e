package mqttroute

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyTopic         = errors.New("topic cannot be empty")
	ErrInvalidTopicName   = errors.New("invalid topic name")
	ErrInvalidTopicFilter = errors.New("invalid topic filter")
	ErrTooManyLevels      = errors.New("too many topic levels")
)

var (
	ErrInvalidQoS     = errors.New("invalid QoS level")
	ErrFilterLimit    = errors.New("maximum filter count reached")
	ErrIndexCorrupted = errors.New("subscription index corrupted")
)

var (
	ErrSinkNotFound = errors.New("sink not found")
	ErrSinkClosed   = errors.New("sink closed")
	ErrSinkPanic    = errors.New("sink panicked")
)

// FormatError reports a malformed topic or topic filter.
// Reason is one of ErrEmptyTopic, ErrInvalidTopicName, ErrInvalidTopicFilter
// or ErrTooManyLevels.
type FormatError struct {
	Input  string
	Level  int // index of the offending level, -1 when not level specific
	Reason error
}

func (e *FormatError) Error() string {
	if e.Level >= 0 {
		return fmt.Sprintf("%v: %q (level %d)", e.Reason, e.Input, e.Level)
	}
	return fmt.Sprintf("%v: %q", e.Reason, e.Input)
}

func (e *FormatError) Unwrap() error {
	return e.Reason
}

func formatError(input string, level int, reason error) *FormatError {
	return &FormatError{Input: input, Level: level, Reason: reason}
}

// DeliveryError describes a failed delivery to one matched subscription.
type DeliveryError struct {
	SubscriberID SubscriberID
	Filter       string
	QoS          QoS
	Err          error
}

func (e DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %s via %q: %v", e.SubscriberID, e.Filter, e.Err)
}

func (e DeliveryError) Unwrap() error {
	return e.Err
}
