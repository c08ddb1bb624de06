package domain

// Principal is an authenticated identity issued by the identity provider.
// Read-only to the rest of the system; exactly one of Email or PhoneNumber
// may be empty depending on the signup method.
type Principal struct {
	ID          string
	Email       string
	PhoneNumber string
}
