package badgemem

import (
	"context"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"

	"github.com/filiksyos/ghostmrr/internal/domain"
	"github.com/filiksyos/ghostmrr/internal/usecase"
)

// AuditLog keeps the audit trail in memory for the lifetime of the process.
type AuditLog struct {
	mu     deadlock.Mutex
	events []domain.AuditEvent
}

func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

func (l *AuditLog) Append(_ context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var prev *domain.AuditEvent
	if n := len(l.events); n > 0 {
		prev = &l.events[n-1]
	}
	sealed, err := usecase.SealAuditEvent(event, prev)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	l.events = append(l.events, sealed)
	return sealed, nil
}

func (l *AuditLog) List(_ context.Context) ([]domain.AuditEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.AuditEvent(nil), l.events...), nil
}
