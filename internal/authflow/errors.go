package authflow

import "frootex/backend/internal/identity"

// Category is the user-facing error taxonomy. Every provider failure is
// mapped to exactly one category at the call site and surfaced as a single
// message; nothing propagates further up and nothing is retried
// automatically.
type Category string

const (
	CategoryInvalidInput       Category = "InvalidInput"
	CategoryCredentialRejected Category = "CredentialRejected"
	CategoryAccountConflict    Category = "AccountConflict"
	CategoryChallengeRejected  Category = "ChallengeRejected"
	CategoryCodeRejected       Category = "CodeRejected"
	CategoryUnknown            Category = "Unknown"
)

// FlowError is the surfaced outcome of a failed operation.
type FlowError struct {
	Category Category
	Message  string
}

func invalidInput(msg string) *FlowError {
	return &FlowError{Category: CategoryInvalidInput, Message: msg}
}

func mapSignInErr(err error) *FlowError {
	if identity.CodeOf(err) == identity.CodeInvalidCredential {
		return &FlowError{Category: CategoryCredentialRejected, Message: "invalid email or password"}
	}
	return unknownErr(err)
}

func mapSignUpErr(err error) *FlowError {
	switch identity.CodeOf(err) {
	case identity.CodeEmailInUse:
		return &FlowError{Category: CategoryAccountConflict, Message: "email already registered"}
	case identity.CodeWeakPassword:
		return &FlowError{Category: CategoryInvalidInput, Message: "password is too weak"}
	}
	return unknownErr(err)
}

func mapSendOTPErr(err error) *FlowError {
	switch identity.CodeOf(err) {
	case identity.CodeInvalidPhoneNumber:
		return &FlowError{Category: CategoryChallengeRejected, Message: "invalid phone number"}
	case identity.CodeVerifierFailed:
		return &FlowError{Category: CategoryChallengeRejected, Message: "verification challenge failed"}
	case identity.CodeTooManyRequests:
		return &FlowError{Category: CategoryChallengeRejected, Message: "too many attempts; try again later"}
	}
	return unknownErr(err)
}

func mapVerifyOTPErr(err error) *FlowError {
	if identity.CodeOf(err) == identity.CodeInvalidCode {
		return &FlowError{Category: CategoryCodeRejected, Message: "invalid code"}
	}
	return unknownErr(err)
}

func unknownErr(err error) *FlowError {
	_ = err // cause is logged upstream, never shown to the user verbatim
	return &FlowError{Category: CategoryUnknown, Message: "something went wrong; try again"}
}
