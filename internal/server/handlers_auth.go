package server

import (
	"net/http"

	"frootex/backend/internal/audit"
	"frootex/backend/internal/authflow"
	profiledomain "frootex/backend/internal/profile/domain"
	"frootex/backend/internal/routing"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	id, ctl := s.flow(w, r)
	snap := ctl.SignInWithEmail(r.Context(), req.Email, req.Password)
	s.finishAuth(w, r, id, snap, profiledomain.SignupEmail, audit.ActionLoginSuccess, req.Email)
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	id, ctl := s.flow(w, r)
	snap := ctl.SignUpWithEmail(r.Context(), req.Name, req.Email, req.Password, req.Role)
	s.finishAuth(w, r, id, snap, profiledomain.SignupEmail, audit.ActionSignup, req.Email)
}

func (s *Server) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone        string `json:"phone"`
		Name         string `json:"name"`
		Role         string `json:"role"`
		CaptchaToken string `json:"captchaToken"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	id, ctl := s.flow(w, r)
	if req.CaptchaToken != "" {
		s.deps.CaptchaTokens.Put(id, req.CaptchaToken)
	}
	snap := ctl.SendOTP(r.Context(), req.Phone, req.Name, req.Role)
	var extra map[string]any
	if snap.Phase == authflow.PhaseOtpPending {
		s.deps.Audit.LogEvent(r.Context(), "", audit.ActionOTPSent, "auth", req.Phone)
		if s.deps.DevOTP != nil {
			// Dev mode: hand the handle back so the client can fetch the
			// code from GET /dev/otp.
			extra = map[string]any{"handle": ctl.ChallengeHandle()}
		}
	}
	writeSnapshotWith(w, snap, extra)
}

func (s *Server) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	id, ctl := s.flow(w, r)
	snap := ctl.VerifyOTP(r.Context(), req.Code)
	s.finishAuth(w, r, id, snap, profiledomain.SignupPhone, audit.ActionOTPVerified, "")
}

func (s *Server) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	_, ctl := s.flow(w, r)
	snap := ctl.ResendOTP(r.Context())
	writeSnapshot(w, snap)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	actor := s.principalFromRequest(r)
	if err := s.deps.Provider.SignOut(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "signout failed"})
		return
	}
	s.clearSessionCookie(w)
	s.deps.Audit.LogEvent(r.Context(), actor, audit.ActionLogout, "auth", "")
	writeJSON(w, http.StatusOK, map[string]any{"redirect": routing.PathLogin})
}

// handleSession reports the session attached to the cookie, with its role
// profile when one exists.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := s.principalFromRequest(r)
	if id == "" {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	body := map[string]any{"authenticated": true, "principal": map[string]any{"id": id}}
	if p, err := s.deps.Profiles.Get(r.Context(), id); err == nil && p != nil {
		body["profile"] = map[string]any{
			"name":         p.Name,
			"email":        p.Email,
			"phone":        p.Phone,
			"role":         string(p.Role),
			"signupMethod": string(p.SignupMethod),
		}
	}
	writeJSON(w, http.StatusOK, body)
}

// finishAuth turns a terminal snapshot into a session cookie plus audit
// trail, then renders it. Non-terminal snapshots render as-is.
func (s *Server) finishAuth(w http.ResponseWriter, r *http.Request, flowID string, snap authflow.Snapshot, method profiledomain.SignupMethod, successAction, subject string) {
	switch snap.Phase {
	case authflow.PhaseResolved:
		token, expiresAt, err := s.deps.Tokens.IssueSession(snap.Principal.ID, string(method))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{
				"error":   string(authflow.CategoryUnknown),
				"message": "could not establish session",
			})
			return
		}
		s.setSessionCookie(w, token, expiresAt)
		s.endFlow(w, flowID)
		s.deps.Audit.LogEvent(r.Context(), snap.Principal.ID, successAction, "auth", subject)
	case authflow.PhaseFailed:
		if successAction == audit.ActionLoginSuccess {
			s.deps.Audit.LogEvent(r.Context(), "", audit.ActionLoginFailure, "auth", subject)
		}
	}
	writeSnapshot(w, snap)
}
