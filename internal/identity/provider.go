// Package identity defines the identity-provider contract consumed by the
// auth flow and session tracker, and the provider error codes callers map
// to user-facing categories.
package identity

import (
	"context"
	"errors"
	"fmt"

	"frootex/backend/internal/identity/domain"
	"frootex/backend/internal/verifier"
)

// Code identifies why a provider operation was rejected.
type Code string

const (
	CodeInvalidCredential  Code = "invalid-credential"
	CodeTooManyRequests    Code = "too-many-requests"
	CodeEmailInUse         Code = "email-in-use"
	CodeWeakPassword       Code = "weak-password"
	CodeInvalidPhoneNumber Code = "invalid-phone-number"
	CodeVerifierFailed     Code = "verifier-failed"
	CodeInvalidCode        Code = "invalid-code"
)

// Error is a provider rejection carrying a stable code. Wraps an optional cause.
type Error struct {
	Code  Code
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("identity: %s: %v", e.Code, e.cause)
	}
	return fmt.Sprintf("identity: %s", e.Code)
}

func (e *Error) Unwrap() error { return e.cause }

// NewError returns a provider error with the given code and optional cause.
func NewError(code Code, cause error) *Error {
	return &Error{Code: code, cause: cause}
}

// CodeOf returns the provider code carried by err, or "" if err carries none.
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Provider is the identity provider consumed by the auth flow controller and
// the session tracker. Implementations own session persistence and auth-state
// fan-out; callers are pure consumers and never retry on their own.
type Provider interface {
	// SignInWithPassword authenticates an email/password pair.
	// Fails with CodeInvalidCredential or CodeTooManyRequests.
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Principal, error)

	// CreateUserWithPassword registers a new email/password account.
	// Fails with CodeEmailInUse or CodeWeakPassword.
	CreateUserWithPassword(ctx context.Context, email, password string) (*domain.Principal, error)

	// RequestOTP verifies the widget and sends a one-time passcode to the
	// E.164 phone number. Returns an opaque confirmation handle for ConfirmOTP.
	// Fails with CodeInvalidPhoneNumber, CodeTooManyRequests, or CodeVerifierFailed.
	RequestOTP(ctx context.Context, e164Phone string, w verifier.Widget) (string, error)

	// ConfirmOTP checks code against the challenge identified by handle.
	// The challenge stays live on a wrong code until it expires or is replaced.
	// Fails with CodeInvalidCode.
	ConfirmOTP(ctx context.Context, handle, code string) (*domain.Principal, error)

	// ObserveAuthState registers fn for auth-state changes. fn is invoked
	// synchronously with the current principal (nil when signed out) before
	// ObserveAuthState returns, then on every sign-in and sign-out. The
	// returned unsubscribe is idempotent.
	ObserveAuthState(fn func(*domain.Principal)) (unsubscribe func())

	// SignOut ends the current session and notifies observers with nil.
	SignOut(ctx context.Context) error
}
