package dataaccess

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/anlik-eleman/backend/internal/client"
	"github.com/anlik-eleman/backend/internal/i18n"
)

// CodeNoRows marks a lookup that matched no row.
const CodeNoRows = client.CodeNoRows

// Kind classifies a façade failure.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindService      Kind = "service"
	KindConnectivity Kind = "connectivity"
	KindTimeout      Kind = "timeout"
	KindNotFound     Kind = "not_found"
	KindUnknown      Kind = "unknown"
)

// Error is the only error type returned by the façade. Message is localized and safe to display.
type Error struct {
	Kind    Kind
	Code    string
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsNotFound reports whether err is the distinguished "no rows" condition.
// The decision is made on the code, never on the message text.
func IsNotFound(err error) bool {
	var dataErr *Error
	if !errors.As(err, &dataErr) {
		return false
	}
	return dataErr.Code == CodeNoRows
}

// NewValidationError builds a locally detected failure that never reached the platform.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

type substringRule struct {
	fragment string
	message  i18n.MessageID
}

var authRules = []substringRule{
	{fragment: "invalid login credentials", message: i18n.MsgInvalidCredentials},
	{fragment: "email not confirmed", message: i18n.MsgEmailNotConfirmed},
	{fragment: "too many requests", message: i18n.MsgTooManyRequests},
	{fragment: "invalid email", message: i18n.MsgInvalidEmail},
	{fragment: "password should be at least", message: i18n.MsgWeakPassword},
	{fragment: "user already registered", message: i18n.MsgAlreadyRegistered},
	{fragment: "signup is disabled", message: i18n.MsgSignupDisabled},
}

// classify turns any error from the client into an *Error with a localized message.
// fallback is used for service failures that match no known pattern.
func (f *Facade) classify(err error, fallback i18n.MessageID) *Error {
	if err == nil {
		return nil
	}
	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == CodeNoRows {
			return &Error{
				Kind:    KindNotFound,
				Code:    apiErr.Code,
				Status:  apiErr.Status,
				Message: f.translator.T(fallback),
				Cause:   err,
			}
		}
		message := f.translator.T(fallback)
		lowered := strings.ToLower(apiErr.Message)
		for _, rule := range authRules {
			if strings.Contains(lowered, rule.fragment) {
				message = f.translator.T(rule.message)
				break
			}
		}
		return &Error{
			Kind:    KindService,
			Code:    apiErr.Code,
			Status:  apiErr.Status,
			Message: message,
			Cause:   err,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return &Error{Kind: KindTimeout, Message: f.translator.T(i18n.MsgTimeout), Cause: err}
	}

	var transportErr *client.TransportError
	if errors.As(err, &transportErr) {
		return &Error{Kind: KindConnectivity, Message: f.translator.T(i18n.MsgNetworkError), Cause: err}
	}

	return &Error{Kind: KindUnknown, Message: f.translator.T(fallback), Cause: err}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func detail(err error, translator i18n.Translator) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return translator.T(i18n.MsgUnknownError)
}
