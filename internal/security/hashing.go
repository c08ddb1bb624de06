package security

import "golang.org/x/crypto/bcrypt"

// Hasher wraps bcrypt for password storage. Plaintext passwords must never
// be logged or persisted; only the hash leaves this package.
type Hasher struct {
	Cost int
}

// NewHasher returns a Hasher with the given cost, clamped to the bcrypt
// range. A non-positive cost selects the bcrypt default.
func NewHasher(cost int) *Hasher {
	switch {
	case cost <= 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// Hash returns the bcrypt hash of password as a storable string.
func (h *Hasher) Hash(password []byte) (string, error) {
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare checks password against a stored hash in constant time. A nil
// return means they match.
func (h *Hasher) Compare(hash string, password []byte) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), password)
}
