package server

import (
	"encoding/json"
	"net/http"

	"frootex/backend/internal/authflow"
	identitydomain "frootex/backend/internal/identity/domain"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   string(authflow.CategoryInvalidInput),
			"message": "malformed request body",
		})
		return false
	}
	return true
}

// statusFor maps the flow error taxonomy onto HTTP statuses.
func statusFor(c authflow.Category) int {
	switch c {
	case authflow.CategoryInvalidInput, authflow.CategoryChallengeRejected:
		return http.StatusBadRequest
	case authflow.CategoryCredentialRejected, authflow.CategoryCodeRejected:
		return http.StatusUnauthorized
	case authflow.CategoryAccountConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func principalBody(p *identitydomain.Principal) map[string]any {
	if p == nil {
		return nil
	}
	return map[string]any{"id": p.ID, "email": p.Email, "phone": p.PhoneNumber}
}

// writeSnapshot renders a controller snapshot. Failed snapshots carry the
// error taxonomy and a non-2xx status; everything else reports flow progress.
func writeSnapshot(w http.ResponseWriter, snap authflow.Snapshot) {
	writeSnapshotWith(w, snap, nil)
}

func writeSnapshotWith(w http.ResponseWriter, snap authflow.Snapshot, extra map[string]any) {
	if snap.Phase == authflow.PhaseFailed && snap.Err != nil {
		writeJSON(w, statusFor(snap.Err.Category), map[string]any{
			"phase":   string(snap.Phase),
			"error":   string(snap.Err.Category),
			"message": snap.Err.Message,
		})
		return
	}
	body := map[string]any{
		"phase":     string(snap.Phase),
		"busy":      snap.Busy,
		"countdown": snap.Countdown,
		"canResend": snap.CanResend,
	}
	if snap.Phase == authflow.PhaseResolved {
		body["redirect"] = snap.Redirect
		body["principal"] = principalBody(snap.Principal)
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, http.StatusOK, body)
}
