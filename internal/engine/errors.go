package engine

import "errors"

// Error is a failure talking to the interview engine, carrying the HTTP
// status the API layer should relay to the caller.
type Error struct {
	Detail     string
	StatusCode int
}

func (e *Error) Error() string { return e.Detail }

// NewError builds an engine error with an explicit relay status.
func NewError(detail string, statusCode int) *Error {
	return &Error{Detail: detail, StatusCode: statusCode}
}

// AsEngineError unwraps err into *Error if possible.
func AsEngineError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
