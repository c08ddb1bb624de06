// Package authflow drives interactive sign-in and sign-up: the email
// password path and the phone OTP path (challenge issuance, widget
// lifecycle, code confirmation, resend cooldown). One Controller serves one
// client flow; all transitions go through its tagged state machine.
package authflow

import (
	"context"
	"regexp"
	"sync"
	"time"

	"frootex/backend/internal/identity"
	identitydomain "frootex/backend/internal/identity/domain"
	"frootex/backend/internal/profile"
	profiledomain "frootex/backend/internal/profile/domain"
	"frootex/backend/internal/routing"
	"frootex/backend/internal/verifier"
)

// Phase is the controller's state tag.
// Idle → {EmailSubmitting | PhoneNumberEntry} → OtpPending → Verifying →
// {Resolved | Failed}. Resolved is terminal; Failed hands control back to
// the prior input state with a surfaced error.
type Phase string

const (
	PhaseIdle             Phase = "Idle"
	PhaseEmailSubmitting  Phase = "EmailSubmitting"
	PhasePhoneNumberEntry Phase = "PhoneNumberEntry"
	PhaseOtpPending       Phase = "OtpPending"
	PhaseVerifying        Phase = "Verifying"
	PhaseResolved         Phase = "Resolved"
	PhaseFailed           Phase = "Failed"
)

var tenDigits = regexp.MustCompile(`^[0-9]{10}$`)

// Snapshot is the observable controller state after an operation.
type Snapshot struct {
	Phase     Phase
	Busy      bool
	Countdown int
	CanResend bool
	Err       *FlowError
	Principal *identitydomain.Principal
	Redirect  string
}

// ticker abstracts time.Ticker so tests can drive the countdown by hand.
type ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// Options configures a Controller.
type Options struct {
	// CountryCode is the fixed prefix applied to the 10 local digits
	// (e.g. "+91"). No other formats are accepted.
	CountryCode string
	// CooldownSeconds is the resend countdown length. Defaults to 60.
	CooldownSeconds int
}

// Controller is the auth flow state machine for a single client flow. It is
// safe for concurrent use; a busy flag rejects a second submit while a
// provider call is in flight instead of queueing it.
type Controller struct {
	id       string
	provider identity.Provider
	profiles *profile.Store
	routes   *routing.Engine
	widgets  *verifier.Factory
	opts     Options

	// newTicker is swapped by countdown tests.
	newTicker func(time.Duration) ticker

	mu        sync.Mutex
	phase     Phase
	busy      bool
	closed    bool
	err       *FlowError
	principal *identitydomain.Principal
	redirect  string

	widget    verifier.Widget
	phone     string // accepted 10-digit local number
	handle    string // confirmation handle of the live challenge
	role      profiledomain.Role
	name      string
	countdown int
	canResend bool
	stopTick  chan struct{}
}

// NewController returns an Idle controller for one client flow. id scopes
// the widget attachment.
func NewController(id string, provider identity.Provider, profiles *profile.Store, routes *routing.Engine, widgets *verifier.Factory, opts Options) *Controller {
	if opts.CooldownSeconds <= 0 {
		opts.CooldownSeconds = 60
	}
	return &Controller{
		id:        id,
		provider:  provider,
		profiles:  profiles,
		routes:    routes,
		widgets:   widgets,
		opts:      opts,
		phase:     PhaseIdle,
		newTicker: func(d time.Duration) ticker { return realTicker{t: time.NewTicker(d)} },
	}
}

// State returns the current observable state.
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Phase:     c.phase,
		Busy:      c.busy,
		Countdown: c.countdown,
		CanResend: c.canResend,
		Err:       c.err,
		Principal: c.principal,
		Redirect:  c.redirect,
	}
}

// SignInWithEmail submits an email/password pair. On success the principal's
// stored role decides the redirect; an absent or unknown role falls back to
// the home path. A call while busy or after Resolved is a no-op.
func (c *Controller) SignInWithEmail(ctx context.Context, email, password string) Snapshot {
	if email == "" || password == "" {
		return c.failFast(invalidInput("email and password are required"))
	}
	if !c.begin(PhaseEmailSubmitting) {
		return c.State()
	}
	principal, err := c.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return c.fail(PhaseIdle, mapSignInErr(err))
	}
	redirect := c.resolveRedirect(ctx, principal.ID)
	return c.resolve(principal, redirect)
}

// SignUpWithEmail creates a new account and writes its role profile. The two
// steps are not transactional: a failed profile write after account creation
// leaves an orphaned principal with no role record.
func (c *Controller) SignUpWithEmail(ctx context.Context, name, email, password string, role string) Snapshot {
	if email == "" || password == "" {
		return c.failFast(invalidInput("email and password are required"))
	}
	parsed := profiledomain.ParseRole(role)
	if parsed == profiledomain.RoleUnknown {
		return c.failFast(invalidInput("choose a role"))
	}
	if !c.begin(PhaseEmailSubmitting) {
		return c.State()
	}
	principal, err := c.provider.CreateUserWithPassword(ctx, email, password)
	if err != nil {
		return c.fail(PhaseIdle, mapSignUpErr(err))
	}
	p := &profiledomain.Profile{
		ID:           principal.ID,
		Name:         name,
		Email:        principal.Email,
		Role:         parsed,
		SignupMethod: profiledomain.SignupEmail,
	}
	if err := c.profiles.Create(ctx, p); err != nil {
		// Known gap: the principal already exists and is not rolled back.
		return c.fail(PhaseIdle, unknownErr(err))
	}
	redirect := c.redirectFor(ctx, parsed)
	return c.resolve(principal, redirect)
}

// SendOTP validates the 10-digit local number and requests an OTP challenge
// for it. The widget is created lazily exactly once per controller and
// reused by every subsequent request. On success the flow enters OtpPending
// and the resend countdown starts.
func (c *Controller) SendOTP(ctx context.Context, localDigits, name, role string) Snapshot {
	if !tenDigits.MatchString(localDigits) {
		// Fails fast; the provider is never called.
		return c.failFast(invalidInput("enter a 10-digit phone number"))
	}
	parsed := profiledomain.ParseRole(role)
	if parsed == profiledomain.RoleUnknown {
		return c.failFast(invalidInput("choose a role"))
	}
	if !c.begin(PhasePhoneNumberEntry) {
		return c.State()
	}
	w, ferr := c.ensureWidget()
	if ferr != nil {
		return c.fail(PhasePhoneNumberEntry, ferr)
	}
	handle, err := c.provider.RequestOTP(ctx, c.opts.CountryCode+localDigits, w)
	if err != nil {
		return c.fail(PhasePhoneNumberEntry, mapSendOTPErr(err))
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{Phase: c.phase}
	}
	c.busy = false
	c.err = nil
	c.phase = PhaseOtpPending
	c.phone = localDigits
	c.handle = handle
	c.name = name
	c.role = parsed
	c.startCountdownLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	return snap
}

// VerifyOTP confirms the code against the live challenge. On success the
// profile is created only if none exists yet (a prior signup is never
// overwritten) and the flow resolves with a role-based redirect. On a wrong
// code the challenge stays valid until expiry or replacement. Calling
// VerifyOTP again after Resolved is a no-op.
func (c *Controller) VerifyOTP(ctx context.Context, code string) Snapshot {
	if code == "" {
		return c.failFast(invalidInput("enter the code"))
	}
	c.mu.Lock()
	if c.handle == "" && c.phase != PhaseResolved {
		c.mu.Unlock()
		return c.failFast(invalidInput("request a code first"))
	}
	c.mu.Unlock()
	if !c.begin(PhaseVerifying) {
		return c.State()
	}
	c.mu.Lock()
	handle := c.handle
	c.mu.Unlock()
	principal, err := c.provider.ConfirmOTP(ctx, handle, code)
	if err != nil {
		return c.fail(PhaseOtpPending, mapVerifyOTPErr(err))
	}
	p := &profiledomain.Profile{
		ID:           principal.ID,
		Name:         c.name,
		Phone:        principal.PhoneNumber,
		Role:         c.role,
		SignupMethod: profiledomain.SignupPhone,
	}
	if _, err := c.profiles.EnsureCreated(ctx, p); err != nil {
		return c.fail(PhaseOtpPending, unknownErr(err))
	}
	// The stored role wins over the submitted one for a returning user.
	redirect := c.resolveRedirect(ctx, principal.ID)
	return c.resolve(principal, redirect)
}

// ChallengeHandle returns the confirmation handle of the live challenge, or
// "". Used by dev tooling to look up the plaintext OTP.
func (c *Controller) ChallengeHandle() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// ResendOTP re-requests a code for the same phone number. Only callable
// once the countdown has reached zero; anything earlier is a no-op.
func (c *Controller) ResendOTP(ctx context.Context) Snapshot {
	c.mu.Lock()
	if !c.canResend || c.phone == "" {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap
	}
	phone, name, role := c.phone, c.name, c.role
	c.mu.Unlock()
	return c.SendOTP(ctx, phone, name, string(role))
}

// Close tears the flow down: the countdown stops, the widget detaches, and
// any in-flight provider result is ignored when it lands. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopCountdownLocked()
	w := c.widget
	c.widget = nil
	c.mu.Unlock()
	if w != nil {
		w.Close()
	}
}

// begin gates entry into an in-flight phase. Returns false when the call
// must be a no-op: controller closed, already resolved, or busy.
func (c *Controller) begin(next Phase) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.busy || c.phase == PhaseResolved {
		return false
	}
	c.busy = true
	c.err = nil
	c.phase = next
	return true
}

// failFast surfaces a validation error without touching busy state or the
// provider.
func (c *Controller) failFast(ferr *FlowError) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.busy || c.phase == PhaseResolved {
		return c.snapshotLocked()
	}
	c.phase = PhaseFailed
	c.err = ferr
	return c.snapshotLocked()
}

// fail records the mapped error and hands control back to the given input
// phase with the form editable. Late results after Close are dropped.
func (c *Controller) fail(returnTo Phase, ferr *FlowError) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Snapshot{Phase: c.phase}
	}
	c.busy = false
	c.err = ferr
	c.phase = PhaseFailed
	_ = returnTo // the failed form stays editable; retry is a fresh user action
	return c.snapshotLocked()
}

func (c *Controller) resolve(principal *identitydomain.Principal, redirect string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Snapshot{Phase: c.phase}
	}
	c.busy = false
	c.err = nil
	c.phase = PhaseResolved
	c.principal = principal
	c.redirect = redirect
	c.handle = ""
	c.stopCountdownLocked()
	return c.snapshotLocked()
}

func (c *Controller) ensureWidget() (verifier.Widget, *FlowError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.widget != nil {
		return c.widget, nil
	}
	w, err := c.widgets.Attach(c.id)
	if err != nil {
		return nil, &FlowError{Category: CategoryChallengeRejected, Message: "verification widget unavailable"}
	}
	c.widget = w
	return w, nil
}

func (c *Controller) resolveRedirect(ctx context.Context, principalID string) string {
	p, err := c.profiles.Get(ctx, principalID)
	if err != nil || p == nil {
		return routing.PathHome
	}
	return c.redirectFor(ctx, p.Role)
}

func (c *Controller) redirectFor(ctx context.Context, role profiledomain.Role) string {
	path, err := c.routes.Redirect(ctx, string(role))
	if err != nil {
		return routing.PathHome
	}
	return path
}

// startCountdownLocked resets the countdown and starts the one-second tick,
// scoped to OtpPending. Caller holds the lock.
func (c *Controller) startCountdownLocked() {
	c.stopCountdownLocked()
	c.countdown = c.opts.CooldownSeconds
	c.canResend = false
	stop := make(chan struct{})
	c.stopTick = stop
	t := c.newTicker(time.Second)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-t.C():
				if !c.tick() {
					return
				}
			case <-stop:
				return
			}
		}
	}()
}

// stopCountdownLocked cancels the tick goroutine. Caller holds the lock.
func (c *Controller) stopCountdownLocked() {
	if c.stopTick != nil {
		close(c.stopTick)
		c.stopTick = nil
	}
}

// tick advances the countdown by one second. Returns false once the
// countdown is done and the goroutine should exit.
func (c *Controller) tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.countdown <= 0 {
		return false
	}
	c.countdown--
	if c.countdown == 0 {
		c.canResend = true
		return false
	}
	return true
}
