package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrNotList        = errors.New("protocol: response carries no list items")
	ErrNotDetail      = errors.New("protocol: response carries no detail record")
	ErrUnexpectedType = errors.New("protocol: unexpected result type")
	ErrInvalidRequest = errors.New("protocol: invalid request")
)

// RequestError reports a request that is valid JSON but has the wrong shape.
// Param names the offending parameter; it is empty when the message or its
// params object is not a JSON object.
type RequestError struct {
	Param string
}

func (e *RequestError) Error() string {
	if e.Param == "" {
		return ErrInvalidRequest.Error()
	}
	return fmt.Sprintf("%v: param %q", ErrInvalidRequest, e.Param)
}

func (e *RequestError) Unwrap() error {
	return ErrInvalidRequest
}

// Messages returned to clients in error responses.
const (
	MsgUnknownAction      = "Unknown action type"
	MsgInvalidIndexFormat = "Invalid index format"
	MsgIndexOutOfRange    = "Index out of range"
	MsgUpstreamFailed     = "Failed to fetch news data"
	MsgInternal           = "Internal server error"
	MsgConnectionClosed   = "Connection closed"
	MsgInvalidRequest     = "Invalid request format"

	// MsgInvalidParamType takes the parameter name.
	MsgInvalidParamType = "Invalid value for parameter: %s"
)
