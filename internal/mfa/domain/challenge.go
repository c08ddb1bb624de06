package domain

import "time"

// DefaultTTL is how long a phone challenge stays confirmable.
const DefaultTTL = 10 * time.Minute

// Challenge is one outstanding phone OTP challenge, addressed by the opaque
// confirmation handle returned to the caller. Only the code hash is kept;
// the plaintext OTP leaves the process via SMS and is never stored.
type Challenge struct {
	Handle    string
	Phone     string
	CodeHash  string
	ExpiresAt time.Time
	CreatedAt time.Time
}
