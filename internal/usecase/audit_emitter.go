package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

// AuditEmitter appends one event per badge write attempt.
type AuditEmitter struct {
	Repo  AuditEventRepository
	Clock Clock
}

func NewAuditEmitter(repo AuditEventRepository, clock Clock) *AuditEmitter {
	return &AuditEmitter{Repo: repo, Clock: clock}
}

// BadgeAttempt describes a submission or replacement. ClientID is hashed
// before it reaches the store; Cause is nil for accepted attempts.
type BadgeAttempt struct {
	ClientID   string
	DID        string
	Key        domain.DedupKey
	Resolution domain.ResolutionAction
	Cause      error
}

func (e *AuditEmitter) Submitted(ctx context.Context, attempt BadgeAttempt) (domain.AuditEvent, error) {
	return e.emit(ctx, domain.AuditActionSubmit, attempt)
}

func (e *AuditEmitter) Replaced(ctx context.Context, attempt BadgeAttempt) (domain.AuditEvent, error) {
	return e.emit(ctx, domain.AuditActionReplace, attempt)
}

func (e *AuditEmitter) emit(ctx context.Context, action domain.AuditAction, attempt BadgeAttempt) (domain.AuditEvent, error) {
	if e == nil || e.Repo == nil {
		return domain.AuditEvent{}, errors.New("audit repository required")
	}
	event := domain.AuditEvent{
		Action:     action,
		Outcome:    domain.AuditAccepted,
		DID:        attempt.DID,
		KeyKind:    attempt.Key.Kind,
		Resolution: attempt.Resolution,
		// Postgres stores microseconds.
		RecordedAt: e.now().UTC().Truncate(time.Microsecond),
	}
	if attempt.ClientID != "" {
		event.ClientHash = sha256Hex([]byte(attempt.ClientID))
	}
	if attempt.Cause != nil {
		event.Outcome = domain.AuditRejected
		event.Resolution = ""
		event.Reason = ErrorCode(attempt.Cause)
	}
	return e.Repo.Append(ctx, event)
}

func (e *AuditEmitter) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}
