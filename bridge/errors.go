package bridge

import (
	"errors"
	"fmt"
)

// ErrMissingCode indicates the request carried no payload.
var ErrMissingCode = errors.New("code parameter is required")

// Reason codes reported to clients for rejected requests.
const (
	ReasonMissingCode            = "missing_code"
	ReasonMalformedBase64        = "malformed_base64"
	ReasonInvalidUTF8            = "invalid_utf8"
	ReasonInterpreterUnavailable = "interpreter_unavailable"
	ReasonInternal               = "internal"
)

// DecodeError reports a payload that is not valid URL-safe base64.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed base64 payload: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodingError reports decoded bytes that are not valid UTF-8.
type EncodingError struct {
	Offset int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("payload is not valid UTF-8 (first invalid byte at offset %d)", e.Offset)
}

// UnavailableError reports that the interpreter backend could not create a session.
type UnavailableError struct {
	Backend string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("interpreter %s unavailable: %v", e.Backend, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsClientError reports whether err was caused by the request payload.
func IsClientError(err error) bool {
	var (
		decodeErr   *DecodeError
		encodingErr *EncodingError
	)
	return errors.Is(err, ErrMissingCode) ||
		errors.As(err, &decodeErr) ||
		errors.As(err, &encodingErr)
}

// Reason maps an error returned by the bridge to a stable reason code.
func Reason(err error) string {
	var (
		decodeErr      *DecodeError
		encodingErr    *EncodingError
		unavailableErr *UnavailableError
	)
	switch {
	case errors.Is(err, ErrMissingCode):
		return ReasonMissingCode
	case errors.As(err, &decodeErr):
		return ReasonMalformedBase64
	case errors.As(err, &encodingErr):
		return ReasonInvalidUTF8
	case errors.As(err, &unavailableErr):
		return ReasonInterpreterUnavailable
	default:
		return ReasonInternal
	}
}
