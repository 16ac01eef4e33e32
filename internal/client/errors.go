package client

import (
	"errors"
	"fmt"
)

// CodeNoRows is reported when a single-object request matched zero or several rows.
const CodeNoRows = "PGRST116"

var (
	ErrMissingURL     = errors.New("client: platform url required")
	ErrMissingAnonKey = errors.New("client: anon key required")
	ErrNoSession      = errors.New("client: auth session missing")
)

// APIError is a failure reported by the platform in its response body.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
	Hint    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("platform error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("platform error %d (%s): %s", e.Status, e.Code, e.Message)
}

// TransportError wraps a failure to reach the platform at all.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("platform unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsNoRows reports whether err is the platform's "no rows" condition.
func IsNoRows(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeNoRows
}

type errorBody struct {
	Code             string `json:"code"`
	ErrorCode        string `json:"error_code"`
	Message          string `json:"message"`
	Msg              string `json:"msg"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Details          string `json:"details"`
	Hint             string `json:"hint"`
}

func (b errorBody) toAPIError(status int) *APIError {
	code := b.Code
	if code == "" {
		code = b.ErrorCode
	}
	message := b.Message
	for _, candidate := range []string{b.Msg, b.ErrorDescription, b.Error} {
		if message != "" {
			break
		}
		message = candidate
	}
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: b.Details,
		Hint:    b.Hint,
	}
}
