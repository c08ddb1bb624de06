package server

import (
	"io"
	"net/http"
	"path/filepath"
	"time"
)

const maxUploadBytes = 10 << 20 // 10 MiB

func (s *Server) handleDashboard(page string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := PrincipalIDFromContext(r.Context())
		body := map[string]any{"page": page}
		if p, err := s.deps.Profiles.Get(r.Context(), id); err == nil && p != nil {
			body["profile"] = map[string]any{
				"name": p.Name,
				"role": string(p.Role),
			}
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing file"})
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unreadable file"})
		return
	}
	name := time.Now().UTC().Format("20060102T150405") + "_" + filepath.Base(header.Filename)
	url, err := s.deps.Blobs.Upload(r.Context(), name, data)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "upload failed"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"url": url})
}

// handleDevOTP exposes the plaintext OTP for a challenge handle. Dev mode
// only; the route is not mounted otherwise.
func (s *Server) handleDevOTP(w http.ResponseWriter, r *http.Request) {
	handle := r.URL.Query().Get("handle")
	if handle == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "handle is required"})
		return
	}
	otp, ok := s.deps.DevOTP.Get(r.Context(), handle)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown or expired handle"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"handle": handle, "otp": otp})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.deps.DB != nil {
		if err := s.deps.DB.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
