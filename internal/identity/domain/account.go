package domain

import "time"

// Account is a credential record owned by the local identity provider.
// Email accounts carry a bcrypt password hash; phone accounts are created on
// first successful OTP confirmation and carry no password.
type Account struct {
	ID           string
	Email        string
	Phone        string
	PasswordHash string
	CreatedAt    time.Time
}

// Principal returns the provider-issued view of the account.
func (a *Account) Principal() *Principal {
	if a == nil {
		return nil
	}
	return &Principal{ID: a.ID, Email: a.Email, PhoneNumber: a.Phone}
}
