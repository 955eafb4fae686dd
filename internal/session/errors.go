package session

import (
	"context"
	"errors"
)

// ErrorCode classifies an AuthError. Values follow the identity provider's
// wire codes.
type ErrorCode string

const (
	CodeInvalidEmail  ErrorCode = "invalid-email"
	CodeWeakPassword  ErrorCode = "weak-password"
	CodeEmailInUse    ErrorCode = "email-already-in-use"
	CodeUserNotFound  ErrorCode = "user-not-found"
	CodeWrongPassword ErrorCode = "wrong-password"
	CodeInvalidToken  ErrorCode = "invalid-token"
	CodeNetwork       ErrorCode = "network-request-failed"
	CodeInternal      ErrorCode = "internal"
)

// AuthError is returned by every failed session operation. Message is meant
// to be shown to the user as-is.
type AuthError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return e.Message
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError builds an AuthError with the given code and message.
func NewAuthError(code ErrorCode, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}

// IsCode reports whether err is an AuthError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Code == code
}

func toAuthError(err error) *AuthError {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &AuthError{Code: CodeNetwork, Message: "request was interrupted: " + err.Error(), Err: err}
	}
	return &AuthError{Code: CodeNetwork, Message: err.Error(), Err: err}
}
