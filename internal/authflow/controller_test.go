package authflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"frootex/backend/internal/docstore"
	"frootex/backend/internal/identity"
	identitydomain "frootex/backend/internal/identity/domain"
	"frootex/backend/internal/profile"
	profiledomain "frootex/backend/internal/profile/domain"
	"frootex/backend/internal/routing"
	"frootex/backend/internal/verifier"
)

type fakeProvider struct {
	mu       sync.Mutex
	signInFn func(email, password string) (*identitydomain.Principal, error)
	createFn func(email, password string) (*identitydomain.Principal, error)
	otpFn    func(phone string) (string, error)
	verifyFn func(handle, code string) (*identitydomain.Principal, error)

	signIns  int
	creates  int
	requests int
	confirms int
	lastOTP  string
}

func (p *fakeProvider) SignInWithPassword(ctx context.Context, email, password string) (*identitydomain.Principal, error) {
	p.mu.Lock()
	p.signIns++
	p.mu.Unlock()
	return p.signInFn(email, password)
}

func (p *fakeProvider) CreateUserWithPassword(ctx context.Context, email, password string) (*identitydomain.Principal, error) {
	p.mu.Lock()
	p.creates++
	p.mu.Unlock()
	return p.createFn(email, password)
}

func (p *fakeProvider) RequestOTP(ctx context.Context, e164Phone string, w verifier.Widget) (string, error) {
	if err := w.Verify(ctx); err != nil {
		return "", identity.NewError(identity.CodeVerifierFailed, err)
	}
	p.mu.Lock()
	p.requests++
	p.lastOTP = e164Phone
	p.mu.Unlock()
	return p.otpFn(e164Phone)
}

func (p *fakeProvider) ConfirmOTP(ctx context.Context, handle, code string) (*identitydomain.Principal, error) {
	p.mu.Lock()
	p.confirms++
	p.mu.Unlock()
	return p.verifyFn(handle, code)
}

func (p *fakeProvider) ObserveAuthState(fn func(*identitydomain.Principal)) func() { return func() {} }
func (p *fakeProvider) SignOut(ctx context.Context) error                         { return nil }

func (p *fakeProvider) calls() (signIns, creates, requests, confirms int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signIns, p.creates, p.requests, p.confirms
}

type stubWidget struct {
	verifyErr error
	closed    bool
}

func (w *stubWidget) Verify(ctx context.Context) error { return w.verifyErr }
func (w *stubWidget) Close()                           { w.closed = true }

// deadTicker never fires; countdown tests drive tick() by hand.
type deadTicker struct{}

func (deadTicker) C() <-chan time.Time { return nil }
func (deadTicker) Stop()               {}

type fixture struct {
	provider *fakeProvider
	profiles *profile.Store
	widgets  *verifier.Factory
	attaches int
	ctl      *Controller
}

func newFixture(t *testing.T, p *fakeProvider) *fixture {
	t.Helper()
	routes, err := routing.NewEngine()
	if err != nil {
		t.Fatalf("routing engine: %v", err)
	}
	f := &fixture{
		provider: p,
		profiles: profile.NewStore(docstore.NewMemoryStore()),
	}
	f.widgets = verifier.NewFactory(func(string) verifier.Widget {
		f.attaches++
		return &stubWidget{}
	})
	f.ctl = NewController("flow-1", p, f.profiles, routes, f.widgets, Options{CountryCode: "+91"})
	f.ctl.newTicker = func(time.Duration) ticker { return deadTicker{} }
	return f
}

func principalFor(id, email, phone string) *identitydomain.Principal {
	return &identitydomain.Principal{ID: id, Email: email, PhoneNumber: phone}
}

func TestSignInWithEmail_RedirectByStoredRole(t *testing.T) {
	p := &fakeProvider{
		signInFn: func(email, password string) (*identitydomain.Principal, error) {
			return principalFor("u1", email, ""), nil
		},
	}
	f := newFixture(t, p)
	if err := f.profiles.Create(context.Background(), &profiledomain.Profile{
		ID: "u1", Email: "a@b.com", Role: profiledomain.RoleFarmer, SignupMethod: profiledomain.SignupEmail,
	}); err != nil {
		t.Fatalf("create profile: %v", err)
	}

	snap := f.ctl.SignInWithEmail(context.Background(), "a@b.com", "secret1")
	if snap.Phase != PhaseResolved {
		t.Fatalf("phase = %s, want Resolved (err=%v)", snap.Phase, snap.Err)
	}
	if snap.Redirect != routing.PathFarmer {
		t.Errorf("redirect = %q, want %q", snap.Redirect, routing.PathFarmer)
	}
	if snap.Busy {
		t.Error("busy should be cleared after resolve")
	}
}

func TestSignInWithEmail_UnknownRoleGoesHome(t *testing.T) {
	p := &fakeProvider{
		signInFn: func(email, password string) (*identitydomain.Principal, error) {
			return principalFor("u1", email, ""), nil
		},
	}
	f := newFixture(t, p)

	snap := f.ctl.SignInWithEmail(context.Background(), "a@b.com", "secret1")
	if snap.Phase != PhaseResolved {
		t.Fatalf("phase = %s, want Resolved", snap.Phase)
	}
	if snap.Redirect != routing.PathHome {
		t.Errorf("redirect = %q, want %q", snap.Redirect, routing.PathHome)
	}
}

func TestSignInWithEmail_WrongPassword(t *testing.T) {
	p := &fakeProvider{
		signInFn: func(email, password string) (*identitydomain.Principal, error) {
			return nil, identity.NewError(identity.CodeInvalidCredential, nil)
		},
	}
	f := newFixture(t, p)

	snap := f.ctl.SignInWithEmail(context.Background(), "a@b.com", "wrong")
	if snap.Phase != PhaseFailed {
		t.Fatalf("phase = %s, want Failed", snap.Phase)
	}
	if snap.Err == nil || snap.Err.Category != CategoryCredentialRejected {
		t.Fatalf("err = %+v, want CredentialRejected", snap.Err)
	}
	if snap.Busy {
		t.Error("busy should be cleared after failure")
	}

	// The form stays editable: a corrected retry goes through.
	p.signInFn = func(email, password string) (*identitydomain.Principal, error) {
		return principalFor("u1", email, ""), nil
	}
	snap = f.ctl.SignInWithEmail(context.Background(), "a@b.com", "right")
	if snap.Phase != PhaseResolved {
		t.Fatalf("retry phase = %s, want Resolved", snap.Phase)
	}
}

func TestSignInWithEmail_EmptyInputNeverCallsProvider(t *testing.T) {
	p := &fakeProvider{}
	f := newFixture(t, p)

	snap := f.ctl.SignInWithEmail(context.Background(), "", "pw")
	if snap.Phase != PhaseFailed || snap.Err == nil || snap.Err.Category != CategoryInvalidInput {
		t.Fatalf("snap = %+v, want Failed/InvalidInput", snap)
	}
	if s, _, _, _ := p.calls(); s != 0 {
		t.Errorf("provider called %d times, want 0", s)
	}
}

func TestSignUpWithEmail_CreatesProfile(t *testing.T) {
	p := &fakeProvider{
		createFn: func(email, password string) (*identitydomain.Principal, error) {
			return principalFor("u2", email, ""), nil
		},
	}
	f := newFixture(t, p)

	snap := f.ctl.SignUpWithEmail(context.Background(), "Asha", "asha@example.com", "secret1", "buyer")
	if snap.Phase != PhaseResolved {
		t.Fatalf("phase = %s, want Resolved (err=%v)", snap.Phase, snap.Err)
	}
	if snap.Redirect != routing.PathBuyer {
		t.Errorf("redirect = %q, want %q", snap.Redirect, routing.PathBuyer)
	}

	got, err := f.profiles.Get(context.Background(), "u2")
	if err != nil || got == nil {
		t.Fatalf("profile missing: %v", err)
	}
	if got.Role != profiledomain.RoleBuyer || got.SignupMethod != profiledomain.SignupEmail || got.Name != "Asha" {
		t.Errorf("profile = %+v", got)
	}
}

func TestSignUpWithEmail_EmailInUse(t *testing.T) {
	p := &fakeProvider{
		createFn: func(email, password string) (*identitydomain.Principal, error) {
			return nil, identity.NewError(identity.CodeEmailInUse, nil)
		},
	}
	f := newFixture(t, p)

	snap := f.ctl.SignUpWithEmail(context.Background(), "Asha", "asha@example.com", "secret1", "buyer")
	if snap.Err == nil || snap.Err.Category != CategoryAccountConflict {
		t.Fatalf("err = %+v, want AccountConflict", snap.Err)
	}
}

func TestSignUpWithEmail_WeakPassword(t *testing.T) {
	p := &fakeProvider{
		createFn: func(email, password string) (*identitydomain.Principal, error) {
			return nil, identity.NewError(identity.CodeWeakPassword, nil)
		},
	}
	f := newFixture(t, p)

	snap := f.ctl.SignUpWithEmail(context.Background(), "Asha", "asha@example.com", "123", "buyer")
	if snap.Err == nil || snap.Err.Category != CategoryInvalidInput {
		t.Fatalf("err = %+v, want InvalidInput", snap.Err)
	}
}

func TestSignUpWithEmail_MissingRole(t *testing.T) {
	p := &fakeProvider{}
	f := newFixture(t, p)

	snap := f.ctl.SignUpWithEmail(context.Background(), "Asha", "asha@example.com", "secret1", "")
	if snap.Err == nil || snap.Err.Category != CategoryInvalidInput {
		t.Fatalf("err = %+v, want InvalidInput", snap.Err)
	}
	if _, c, _, _ := p.calls(); c != 0 {
		t.Errorf("provider called %d times, want 0", c)
	}
}

func TestSendOTP_RejectsBadNumberWithoutProviderCall(t *testing.T) {
	p := &fakeProvider{}
	f := newFixture(t, p)

	for _, bad := range []string{"", "12345", "98765432101", "98765abc43", "+919876543210"} {
		snap := f.ctl.SendOTP(context.Background(), bad, "Asha", "buyer")
		if snap.Phase != PhaseFailed || snap.Err == nil || snap.Err.Category != CategoryInvalidInput {
			t.Errorf("SendOTP(%q) = %+v, want Failed/InvalidInput", bad, snap)
		}
	}
	if _, _, r, _ := p.calls(); r != 0 {
		t.Errorf("provider called %d times, want 0", r)
	}
}

func TestSendOTP_StartsCooldown(t *testing.T) {
	p := &fakeProvider{
		otpFn: func(phone string) (string, error) { return "h1", nil },
	}
	f := newFixture(t, p)

	snap := f.ctl.SendOTP(context.Background(), "9876543210", "Asha", "buyer")
	if snap.Phase != PhaseOtpPending {
		t.Fatalf("phase = %s, want OtpPending (err=%v)", snap.Phase, snap.Err)
	}
	if snap.Countdown != 60 || snap.CanResend {
		t.Errorf("countdown=%d canResend=%v, want 60/false", snap.Countdown, snap.CanResend)
	}
	p.mu.Lock()
	phone := p.lastOTP
	p.mu.Unlock()
	if phone != "+919876543210" {
		t.Errorf("provider phone = %q, want +919876543210", phone)
	}
}

func TestSendOTP_WidgetAttachedOnce(t *testing.T) {
	p := &fakeProvider{
		otpFn: func(phone string) (string, error) { return "h1", nil },
	}
	f := newFixture(t, p)

	f.ctl.SendOTP(context.Background(), "9876543210", "Asha", "buyer")
	f.ctl.SendOTP(context.Background(), "9876543210", "Asha", "buyer")
	if f.attaches != 1 {
		t.Errorf("widget attached %d times, want 1", f.attaches)
	}
}

func TestCountdown_ReachesZeroThenResendAllowed(t *testing.T) {
	p := &fakeProvider{
		otpFn: func(phone string) (string, error) { return "h1", nil },
	}
	f := newFixture(t, p)
	f.ctl.SendOTP(context.Background(), "9876543210", "Asha", "buyer")

	for i := 0; i < 59; i++ {
		f.ctl.tick()
	}
	snap := f.ctl.State()
	if snap.Countdown != 1 || snap.CanResend {
		t.Fatalf("after 59 ticks: countdown=%d canResend=%v", snap.Countdown, snap.CanResend)
	}
	f.ctl.tick()
	snap = f.ctl.State()
	if snap.Countdown != 0 || !snap.CanResend {
		t.Fatalf("after 60 ticks: countdown=%d canResend=%v, want 0/true", snap.Countdown, snap.CanResend)
	}
}

func TestResendOTP_NoopDuringCooldown(t *testing.T) {
	p := &fakeProvider{
		otpFn: func(phone string) (string, error) { return "h1", nil },
	}
	f := newFixture(t, p)
	f.ctl.SendOTP(context.Background(), "9876543210", "Asha", "buyer")

	snap := f.ctl.ResendOTP(context.Background())
	if snap.Phase != PhaseOtpPending {
		t.Fatalf("phase = %s, want OtpPending", snap.Phase)
	}
	if _, _, r, _ := p.calls(); r != 1 {
		t.Errorf("provider called %d times, want 1", r)
	}
}

func TestResendOTP_AfterCooldownRequestsAgain(t *testing.T) {
	p := &fakeProvider{
		otpFn: func(phone string) (string, error) { return "h2", nil },
	}
	f := newFixture(t, p)
	f.ctl.SendOTP(context.Background(), "9876543210", "Asha", "buyer")
	for i := 0; i < 60; i++ {
		f.ctl.tick()
	}

	snap := f.ctl.ResendOTP(context.Background())
	if snap.Phase != PhaseOtpPending {
		t.Fatalf("phase = %s, want OtpPending (err=%v)", snap.Phase, snap.Err)
	}
	if snap.Countdown != 60 || snap.CanResend {
		t.Errorf("cooldown not restarted: countdown=%d canResend=%v", snap.Countdown, snap.CanResend)
	}
	if _, _, r, _ := p.calls(); r != 2 {
		t.Errorf("provider called %d times, want 2", r)
	}
	if f.attaches != 1 {
		t.Errorf("widget attached %d times, want 1", f.attaches)
	}
}

func TestVerifyOTP_PhoneSignupResolves(t *testing.T) {
	p := &fakeProvider{
		otpFn: func(phone string) (string, error) { return "h1", nil },
		verifyFn: func(handle, code string) (*identitydomain.Principal, error) {
			return principalFor("u3", "", "+919876543210"), nil
		},
	}
	f := newFixture(t, p)
	f.ctl.SendOTP(context.Background(), "9876543210", "Asha", "buyer")

	snap := f.ctl.VerifyOTP(context.Background(), "123456")
	if snap.Phase != PhaseResolved {
		t.Fatalf("phase = %s, want Resolved (err=%v)", snap.Phase, snap.Err)
	}
	if snap.Redirect != routing.PathBuyer {
		t.Errorf("redirect = %q, want %q", snap.Redirect, routing.PathBuyer)
	}

	got, err := f.profiles.Get(context.Background(), "u3")
	if err != nil || got == nil {
		t.Fatalf("profile missing: %v", err)
	}
	if got.SignupMethod != profiledomain.SignupPhone || got.Phone != "+919876543210" {
		t.Errorf("profile = %+v", got)
	}
}

func TestVerifyOTP_WrongCodeKeepsChallenge(t *testing.T) {
	p := &fakeProvider{
		otpFn: func(phone string) (string, error) { return "h1", nil },
		verifyFn: func(handle, code string) (*identitydomain.Principal, error) {
			if code != "123456" {
				return nil, identity.NewError(identity.CodeInvalidCode, nil)
			}
			return principalFor("u3", "", "+919876543210"), nil
		},
	}
	f := newFixture(t, p)
	f.ctl.SendOTP(context.Background(), "9876543210", "Asha", "buyer")

	snap := f.ctl.VerifyOTP(context.Background(), "000000")
	if snap.Phase != PhaseFailed || snap.Err == nil || snap.Err.Category != CategoryCodeRejected {
		t.Fatalf("snap = %+v, want Failed/CodeRejected", snap)
	}

	// The challenge survives a wrong code; the right code still resolves.
	snap = f.ctl.VerifyOTP(context.Background(), "123456")
	if snap.Phase != PhaseResolved {
		t.Fatalf("retry phase = %s, want Resolved (err=%v)", snap.Phase, snap.Err)
	}
}

func TestVerifyOTP_StoredRoleWinsOverSubmitted(t *testing.T) {
	p := &fakeProvider{
		otpFn: func(phone string) (string, error) { return "h1", nil },
		verifyFn: func(handle, code string) (*identitydomain.Principal, error) {
			return principalFor("u4", "", "+919876543210"), nil
		},
	}
	f := newFixture(t, p)
	if err := f.profiles.Create(context.Background(), &profiledomain.Profile{
		ID: "u4", Phone: "+919876543210", Role: profiledomain.RoleFarmer, SignupMethod: profiledomain.SignupPhone,
	}); err != nil {
		t.Fatalf("create profile: %v", err)
	}

	f.ctl.SendOTP(context.Background(), "9876543210", "Asha", "buyer")
	snap := f.ctl.VerifyOTP(context.Background(), "123456")
	if snap.Phase != PhaseResolved {
		t.Fatalf("phase = %s, want Resolved", snap.Phase)
	}
	if snap.Redirect != routing.PathFarmer {
		t.Errorf("redirect = %q, want %q (stored role wins)", snap.Redirect, routing.PathFarmer)
	}

	got, _ := f.profiles.Get(context.Background(), "u4")
	if got.Role != profiledomain.RoleFarmer {
		t.Errorf("role overwritten to %s", got.Role)
	}
}

func TestVerifyOTP_WithoutChallenge(t *testing.T) {
	p := &fakeProvider{}
	f := newFixture(t, p)

	snap := f.ctl.VerifyOTP(context.Background(), "123456")
	if snap.Phase != PhaseFailed || snap.Err == nil || snap.Err.Category != CategoryInvalidInput {
		t.Fatalf("snap = %+v, want Failed/InvalidInput", snap)
	}
	if _, _, _, c := p.calls(); c != 0 {
		t.Errorf("provider called %d times, want 0", c)
	}
}

func TestResolvedIsTerminal(t *testing.T) {
	p := &fakeProvider{
		otpFn: func(phone string) (string, error) { return "h1", nil },
		verifyFn: func(handle, code string) (*identitydomain.Principal, error) {
			return principalFor("u5", "", "+919876543210"), nil
		},
	}
	f := newFixture(t, p)
	f.ctl.SendOTP(context.Background(), "9876543210", "Asha", "buyer")
	f.ctl.VerifyOTP(context.Background(), "123456")

	// Every later operation is a no-op on the resolved snapshot.
	snap := f.ctl.VerifyOTP(context.Background(), "123456")
	if snap.Phase != PhaseResolved {
		t.Errorf("VerifyOTP after resolve: phase = %s", snap.Phase)
	}
	snap = f.ctl.SignInWithEmail(context.Background(), "a@b.com", "pw")
	if snap.Phase != PhaseResolved {
		t.Errorf("SignInWithEmail after resolve: phase = %s", snap.Phase)
	}
	if _, _, _, c := p.calls(); c != 1 {
		t.Errorf("confirm called %d times, want 1", c)
	}
}

func TestBusyGateRejectsOverlappingSubmit(t *testing.T) {
	release := make(chan struct{})
	p := &fakeProvider{
		signInFn: func(email, password string) (*identitydomain.Principal, error) {
			<-release
			return principalFor("u1", email, ""), nil
		},
	}
	f := newFixture(t, p)

	done := make(chan Snapshot)
	go func() { done <- f.ctl.SignInWithEmail(context.Background(), "a@b.com", "pw") }()

	// Wait until the first call holds the busy flag.
	for {
		if f.ctl.State().Busy {
			break
		}
		time.Sleep(time.Millisecond)
	}
	snap := f.ctl.SignInWithEmail(context.Background(), "a@b.com", "pw")
	if !snap.Busy {
		t.Errorf("second submit should observe busy state, got %+v", snap)
	}
	close(release)
	if snap := <-done; snap.Phase != PhaseResolved {
		t.Fatalf("first submit phase = %s, want Resolved", snap.Phase)
	}
	if s, _, _, _ := p.calls(); s != 1 {
		t.Errorf("provider called %d times, want 1", s)
	}
}

func TestClose_DropsLateResult(t *testing.T) {
	release := make(chan struct{})
	p := &fakeProvider{
		signInFn: func(email, password string) (*identitydomain.Principal, error) {
			<-release
			return principalFor("u1", email, ""), nil
		},
	}
	f := newFixture(t, p)

	done := make(chan Snapshot)
	go func() { done <- f.ctl.SignInWithEmail(context.Background(), "a@b.com", "pw") }()
	for {
		if f.ctl.State().Busy {
			break
		}
		time.Sleep(time.Millisecond)
	}

	f.ctl.Close()
	close(release)

	snap := <-done
	if snap.Phase == PhaseResolved {
		t.Error("late provider result applied after Close")
	}
	if got := f.ctl.State(); got.Principal != nil {
		t.Errorf("principal set after Close: %+v", got.Principal)
	}
}

func TestClose_ReleasesWidget(t *testing.T) {
	p := &fakeProvider{
		otpFn: func(phone string) (string, error) { return "h1", nil },
	}
	var w *stubWidget
	routes, err := routing.NewEngine()
	if err != nil {
		t.Fatalf("routing engine: %v", err)
	}
	widgets := verifier.NewFactory(func(string) verifier.Widget {
		w = &stubWidget{}
		return w
	})
	ctl := NewController("flow-w", p, profile.NewStore(docstore.NewMemoryStore()), routes, widgets, Options{CountryCode: "+91"})
	ctl.newTicker = func(time.Duration) ticker { return deadTicker{} }

	ctl.SendOTP(context.Background(), "9876543210", "Asha", "buyer")
	ctl.Close()
	ctl.Close() // idempotent
	if w == nil || !w.closed {
		t.Error("widget not closed on Close")
	}
	if widgets.Attached("flow-w") {
		t.Error("factory still reports an attached widget")
	}
}

func TestSendOTP_ProviderFailureSurfacesChallengeRejected(t *testing.T) {
	p := &fakeProvider{
		otpFn: func(phone string) (string, error) {
			return "", identity.NewError(identity.CodeTooManyRequests, errors.New("rate limited"))
		},
	}
	f := newFixture(t, p)

	snap := f.ctl.SendOTP(context.Background(), "9876543210", "Asha", "buyer")
	if snap.Phase != PhaseFailed || snap.Err == nil || snap.Err.Category != CategoryChallengeRejected {
		t.Fatalf("snap = %+v, want Failed/ChallengeRejected", snap)
	}
}
