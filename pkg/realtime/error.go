package realtime

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error represents an API error from the Realtime service, surfaced either
// by an HTTP call or an "error" server event.
type Error struct {
	// Type is the error type (e.g., "invalid_request_error").
	Type string `json:"type,omitzero"`

	// Code is the error code (e.g., "invalid_value").
	Code string `json:"code,omitzero"`

	// Message is the human-readable error message.
	Message string `json:"message,omitzero"`

	// Param is the parameter that caused the error, if applicable.
	Param string `json:"param,omitzero"`

	// EventID is the ID of the client event that caused the error.
	EventID string `json:"event_id,omitzero"`

	// HTTPStatus is the HTTP status code, if applicable.
	HTTPStatus int `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("realtime: %s: %s", e.Code, e.Message)
	}
	if e.Type != "" {
		return fmt.Sprintf("realtime: %s: %s", e.Type, e.Message)
	}
	return fmt.Sprintf("realtime: %s", e.Message)
}

// IsAuthError reports whether the error indicates failed authentication.
func (e *Error) IsAuthError() bool {
	return e.HTTPStatus == http.StatusUnauthorized || e.HTTPStatus == http.StatusForbidden
}

// IsRateLimit reports whether the error indicates rate limiting.
func (e *Error) IsRateLimit() bool {
	return e.HTTPStatus == http.StatusTooManyRequests || e.Code == "rate_limit_exceeded"
}

// IsServerError reports whether the error originated server-side.
func (e *Error) IsServerError() bool {
	return e.HTTPStatus >= http.StatusInternalServerError || e.Type == "server_error"
}

// AsError attempts to convert an error to *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// EventError contains error information embedded in server events.
type EventError struct {
	Type    string `json:"type,omitzero"`
	Code    string `json:"code,omitzero"`
	Message string `json:"message,omitzero"`
	Param   string `json:"param,omitzero"`
	EventID string `json:"event_id,omitzero"`
}

// ToError converts EventError to Error.
func (e *EventError) ToError() *Error {
	return &Error{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Param:   e.Param,
		EventID: e.EventID,
	}
}

// UnknownEventTypeError indicates a server frame whose type discriminator
// has no entry in the event catalog. The frame is dropped; the receive
// loop keeps running.
type UnknownEventTypeError struct {
	// EventType is the unrecognized discriminator.
	EventType string

	// Raw is the original frame.
	Raw []byte
}

func (e *UnknownEventTypeError) Error() string {
	return fmt.Sprintf("realtime: unknown event type %q", e.EventType)
}

// MalformedPayloadError indicates a server frame that could not be decoded
// as JSON. Like UnknownEventTypeError it is fatal to the single frame only.
type MalformedPayloadError struct {
	Raw []byte
	Err error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("realtime: malformed payload: %v", e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// TimeoutError indicates that no matching terminal event arrived for a
// pending command within its call timeout.
type TimeoutError struct {
	// SentType is the type of the client event that timed out.
	SentType string

	// After is the timeout that elapsed.
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("realtime: no reply to %s within %s", e.SentType, e.After)
}

// ConnectionClosedError indicates an operation on a closed connection, or
// a pending command cancelled because the connection was lost.
type ConnectionClosedError struct {
	// Code is the close code, if the peer supplied one.
	Code int

	// Reason is the close reason, if any.
	Reason string
}

func (e *ConnectionClosedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("realtime: connection closed (%d): %s", e.Code, e.Reason)
	}
	if e.Code != 0 {
		return fmt.Sprintf("realtime: connection closed (%d)", e.Code)
	}
	return "realtime: connection closed"
}

// IncompleteStreamError indicates that a streamed collection reached its
// terminal state with one or more indices missing from the middle of the
// sequence.
type IncompleteStreamError struct {
	// ItemID is the parent item, if the gap is in content parts; empty for
	// response output gaps.
	ItemID string

	// Missing lists the absent indices.
	Missing []int
}

func (e *IncompleteStreamError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("realtime: item %s stream incomplete, missing indices %v", e.ItemID, e.Missing)
	}
	return fmt.Sprintf("realtime: stream incomplete, missing indices %v", e.Missing)
}

// wrapError wraps err with a short context message.
func wrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
