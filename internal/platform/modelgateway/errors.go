package modelgateway

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	// ErrorUnavailable means every candidate endpoint was exhausted. The
	// last underlying error is attached for diagnostics. Retryable.
	ErrorUnavailable ErrorCode = "gateway_unavailable"
	// ErrorUnauthorized means a candidate rejected the shared-secret
	// credential. Not retried: a new attempt cannot fix a bad credential.
	ErrorUnauthorized ErrorCode = "gateway_unauthorized"
	// ErrorMalformed means the backend answered 2xx with content that does
	// not fit the expected shape. A generation failure, never coerced into
	// empty content.
	ErrorMalformed ErrorCode = "malformed_model_response"
	// ErrorValidation covers bad input on our side of the call.
	ErrorValidation ErrorCode = "validation_failed"
)

type Error struct {
	Code       ErrorCode
	Capability Capability
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return "model gateway call failed"
	}
	if e.Message != "" {
		return fmt.Sprintf(
			"model gateway call failed (capability=%s code=%s status=%d): %s",
			e.Capability,
			e.Code,
			e.StatusCode,
			e.Message,
		)
	}
	if e.Cause != nil {
		return fmt.Sprintf(
			"model gateway call failed (capability=%s code=%s status=%d): %v",
			e.Capability,
			e.Code,
			e.StatusCode,
			e.Cause,
		)
	}
	return fmt.Sprintf(
		"model gateway call failed (capability=%s code=%s status=%d)",
		e.Capability,
		e.Code,
		e.StatusCode,
	)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func gwErr(capability Capability, code ErrorCode, msg string, cause error) error {
	return &Error{
		Code:       code,
		Capability: capability,
		Message:    msg,
		Cause:      cause,
	}
}

func codeOf(err error) ErrorCode {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	return ""
}

func IsUnavailable(err error) bool  { return codeOf(err) == ErrorUnavailable }
func IsUnauthorized(err error) bool { return codeOf(err) == ErrorUnauthorized }
func IsMalformed(err error) bool    { return codeOf(err) == ErrorMalformed }
