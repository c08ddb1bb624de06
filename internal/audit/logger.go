// Package audit records auth events best-effort: a failed write is logged
// and never affects the caller.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"frootex/backend/internal/audit/domain"
	auditrepo "frootex/backend/internal/audit/repository"
)

// SentinelActorID is used for events with no resolved principal
// (e.g. login_failure on an unknown email).
const SentinelActorID = "_anonymous"

// Auth event actions recorded by the handlers.
const (
	ActionSignup       = "signup"
	ActionLoginSuccess = "login_success"
	ActionLoginFailure = "login_failure"
	ActionOTPSent      = "otp_sent"
	ActionOTPVerified  = "otp_verified"
	ActionLogout       = "logout"
)

// IPExtractor returns the client IP for the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource.
type AuditLogger interface {
	LogEvent(ctx context.Context, actorID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional
// IP extractor.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
}

// NewLogger returns an AuditLogger that persists to repo and uses
// ipExtractor for the client IP. ipExtractor may be nil; then IP is recorded
// as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and
// not returned.
func (l *Logger) LogEvent(ctx context.Context, actorID, action, resource, metadata string) {
	if l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	if actorID == "" {
		actorID = SentinelActorID
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
	}
}
