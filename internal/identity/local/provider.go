// Package local implements the identity provider against the accounts
// repository: password credentials with bcrypt, phone OTP challenges with
// SMS delivery, and auth-state fan-out to observers.
package local

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"frootex/backend/internal/devotp"
	"frootex/backend/internal/identity"
	"frootex/backend/internal/identity/domain"
	"frootex/backend/internal/identity/repository"
	"frootex/backend/internal/mfa"
	mfadomain "frootex/backend/internal/mfa/domain"
	"frootex/backend/internal/mfa/sms"
	"frootex/backend/internal/security"
	"frootex/backend/internal/verifier"
)

// e164 matches a plus sign, a non-zero leading digit, and 7–15 digits total.
var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

const minPasswordLen = 6

// Options configures a Provider.
type Options struct {
	// OTPTTL is how long an OTP challenge stays confirmable. Defaults to
	// the challenge domain default when zero.
	OTPTTL time.Duration
	// DevOTPStore, when non-nil, receives plaintext OTPs instead of the SMS
	// sender. Dev mode only.
	DevOTPStore devotp.Store
	// LoginAttempts / LoginWindow bound password failures per email.
	LoginAttempts int
	LoginWindow   time.Duration
	// OTPRequests / OTPWindow bound challenge issuance per phone.
	OTPRequests int
	OTPWindow   time.Duration
}

// Provider is the local identity provider. It owns the current session
// principal and notifies observers on every sign-in and sign-out.
type Provider struct {
	accounts   repository.Repository
	hasher     *security.Hasher
	challenges mfa.ChallengeStore
	sender     sms.Sender
	opts       Options

	loginLimiter *limiter
	otpLimiter   *limiter

	mu        sync.Mutex
	current   *domain.Principal
	observers map[int]func(*domain.Principal)
	nextObs   int
}

// NewProvider returns a Provider over the given collaborators.
func NewProvider(accounts repository.Repository, hasher *security.Hasher, challenges mfa.ChallengeStore, sender sms.Sender, opts Options) *Provider {
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = mfadomain.DefaultTTL
	}
	if opts.LoginAttempts <= 0 {
		opts.LoginAttempts = 5
	}
	if opts.LoginWindow <= 0 {
		opts.LoginWindow = 15 * time.Minute
	}
	if opts.OTPRequests <= 0 {
		opts.OTPRequests = 5
	}
	if opts.OTPWindow <= 0 {
		opts.OTPWindow = 15 * time.Minute
	}
	return &Provider{
		accounts:     accounts,
		hasher:       hasher,
		challenges:   challenges,
		sender:       sender,
		opts:         opts,
		loginLimiter: newLimiter(opts.LoginAttempts, opts.LoginWindow),
		otpLimiter:   newLimiter(opts.OTPRequests, opts.OTPWindow),
		observers:    make(map[int]func(*domain.Principal)),
	}
}

// SignInWithPassword authenticates an email/password pair.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*domain.Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return nil, identity.NewError(identity.CodeInvalidCredential, nil)
	}
	if !p.loginLimiter.allow(email) {
		return nil, identity.NewError(identity.CodeTooManyRequests, nil)
	}
	acct, err := p.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if acct == nil || acct.PasswordHash == "" {
		return nil, identity.NewError(identity.CodeInvalidCredential, nil)
	}
	if err := p.hasher.Compare(acct.PasswordHash, []byte(password)); err != nil {
		return nil, identity.NewError(identity.CodeInvalidCredential, nil)
	}
	p.loginLimiter.reset(email)
	principal := acct.Principal()
	p.setCurrent(principal)
	return principal, nil
}

// CreateUserWithPassword registers a new email/password account and signs it in.
func (p *Provider) CreateUserWithPassword(ctx context.Context, email, password string) (*domain.Principal, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if len(password) < minPasswordLen {
		return nil, identity.NewError(identity.CodeWeakPassword, nil)
	}
	existing, err := p.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, identity.NewError(identity.CodeEmailInUse, nil)
	}
	hashed, err := p.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	acct := &domain.Account{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.accounts.Create(ctx, acct); err != nil {
		return nil, err
	}
	principal := acct.Principal()
	p.setCurrent(principal)
	return principal, nil
}

// RequestOTP verifies the widget, then generates and delivers an OTP for the
// E.164 phone number. Returns the confirmation handle for ConfirmOTP.
func (p *Provider) RequestOTP(ctx context.Context, e164Phone string, w verifier.Widget) (string, error) {
	if !e164.MatchString(e164Phone) {
		return "", identity.NewError(identity.CodeInvalidPhoneNumber, nil)
	}
	if !p.otpLimiter.allow(e164Phone) {
		return "", identity.NewError(identity.CodeTooManyRequests, nil)
	}
	if w == nil {
		return "", identity.NewError(identity.CodeVerifierFailed, nil)
	}
	if err := w.Verify(ctx); err != nil {
		return "", identity.NewError(identity.CodeVerifierFailed, err)
	}
	otp, err := mfa.GenerateOTP()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	ch := &mfadomain.Challenge{
		Handle:    uuid.New().String(),
		Phone:     e164Phone,
		CodeHash:  mfa.HashOTP(otp),
		ExpiresAt: now.Add(p.opts.OTPTTL),
		CreatedAt: now,
	}
	if p.opts.DevOTPStore != nil {
		p.opts.DevOTPStore.Put(ctx, ch.Handle, otp, ch.ExpiresAt)
	} else {
		// Strip the plus for the SMS gateway; it expects bare digits.
		if err := p.sender.SendOTP(ctx, strings.TrimPrefix(e164Phone, "+"), otp); err != nil {
			return "", err
		}
	}
	p.challenges.Put(ctx, ch)
	return ch.Handle, nil
}

// ConfirmOTP checks code against the stored challenge. On success the
// challenge is consumed, a phone account is created if none exists, and the
// account's principal becomes the current auth state.
func (p *Provider) ConfirmOTP(ctx context.Context, handle, code string) (*domain.Principal, error) {
	ch := p.challenges.Get(ctx, handle)
	if ch == nil {
		return nil, identity.NewError(identity.CodeInvalidCode, nil)
	}
	if !mfa.OTPEqual(code, ch.CodeHash) {
		// Challenge stays live until expiry or replacement.
		return nil, identity.NewError(identity.CodeInvalidCode, nil)
	}
	p.challenges.Delete(ctx, handle)
	acct, err := p.accounts.GetByPhone(ctx, ch.Phone)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		acct = &domain.Account{
			ID:        uuid.New().String(),
			Phone:     ch.Phone,
			CreatedAt: time.Now().UTC(),
		}
		if err := p.accounts.Create(ctx, acct); err != nil {
			return nil, err
		}
	}
	principal := acct.Principal()
	p.setCurrent(principal)
	return principal, nil
}

// ObserveAuthState registers fn and invokes it synchronously with the
// current principal. The returned unsubscribe is idempotent.
func (p *Provider) ObserveAuthState(fn func(*domain.Principal)) func() {
	p.mu.Lock()
	id := p.nextObs
	p.nextObs++
	p.observers[id] = fn
	current := p.current
	p.mu.Unlock()

	fn(current)

	return func() {
		p.mu.Lock()
		delete(p.observers, id)
		p.mu.Unlock()
	}
}

// SignOut clears the current principal and notifies observers with nil.
func (p *Provider) SignOut(ctx context.Context) error {
	p.setCurrent(nil)
	return nil
}

func (p *Provider) setCurrent(principal *domain.Principal) {
	p.mu.Lock()
	p.current = principal
	fns := make([]func(*domain.Principal), 0, len(p.observers))
	for _, fn := range p.observers {
		fns = append(fns, fn)
	}
	p.mu.Unlock()
	for _, fn := range fns {
		fn(principal)
	}
}
