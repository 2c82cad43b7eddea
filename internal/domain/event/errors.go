package event

import (
	"errors"
	"fmt"
)

// Sentinel kinds for event decoding errors.
var (
	ErrUnknownEventType = errors.New("unknown event type")
	ErrMalformedPayload = errors.New("malformed event payload")
)

// UnknownEventTypeError reports an event whose type this build does not know.
// Journals written by newer versions are not guaranteed to replay.
type UnknownEventTypeError struct {
	Type    Type
	EventID uint64
}

func (e *UnknownEventTypeError) Error() string {
	return fmt.Sprintf("event %d: unknown event type %q", e.EventID, e.Type)
}

func (e *UnknownEventTypeError) Unwrap() error { return ErrUnknownEventType }

// MalformedPayloadError reports a payload that does not decode into its variant.
type MalformedPayloadError struct {
	Type    Type
	EventID uint64
	Err     error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("event %d (%s): malformed payload: %v", e.EventID, e.Type, e.Err)
}

func (e *MalformedPayloadError) Unwrap() []error { return []error{ErrMalformedPayload, e.Err} }
