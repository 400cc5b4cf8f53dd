package service

import "errors"

// ValidationError is a rejected submission. Reason is safe to return to the
// caller verbatim.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

var (
	ErrTypeMismatch     = &ValidationError{Field: "type", Reason: "type does not match route"}
	ErrUIDRequired      = &ValidationError{Field: "uid", Reason: "uid is required"}
	ErrInvalidTimestamp = &ValidationError{Field: "ts", Reason: "ts must be ISO8601"}
	ErrInvalidSource    = &ValidationError{Field: "source", Reason: "source must be acr122u, webnfc, or manual"}
	ErrInvalidStatus    = &ValidationError{Field: "status", Reason: "status must be attached or detached"}
	ErrErrorRequired    = &ValidationError{Field: "error", Reason: "error is required"}
	ErrMemberIDRequired = &ValidationError{Field: "memberId", Reason: "memberId is required"}
	ErrTestUIDRejected  = &ValidationError{Field: "uid", Reason: "test tags are not accepted in production"}
	ErrUnsupportedKind  = &ValidationError{Field: "type", Reason: "unsupported event type"}
)

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
