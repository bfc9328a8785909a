package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/filiksyos/ghostmrr/internal/domain"
	"github.com/filiksyos/ghostmrr/internal/usecase"
)

// auditLockKey serializes appends so two writers never claim the same seq.
const auditLockKey = "audit_events"

type AuditEventRepository struct {
	db *gorm.DB
}

func NewAuditEventRepository(db *gorm.DB) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

func (r *AuditEventRepository) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if r.db == nil {
		return domain.AuditEvent{}, storageErr(errDBUnavailable)
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	var sealed domain.AuditEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", auditLockKey).Error; err != nil {
			return storageErr(err)
		}
		var last AuditEventModel
		var prev *domain.AuditEvent
		err := tx.Order("seq DESC").Take(&last).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return storageErr(err)
		default:
			lastEvent := last.toDomain()
			prev = &lastEvent
		}
		if sealed, err = usecase.SealAuditEvent(event, prev); err != nil {
			return err
		}
		model := auditEventModelFromDomain(sealed)
		return storageErr(tx.Create(&model).Error)
	})
	if err != nil {
		return domain.AuditEvent{}, err
	}
	return sealed, nil
}

func (r *AuditEventRepository) List(ctx context.Context) ([]domain.AuditEvent, error) {
	if r.db == nil {
		return nil, storageErr(errDBUnavailable)
	}
	var models []AuditEventModel
	if err := r.db.WithContext(ctx).Order("seq ASC").Find(&models).Error; err != nil {
		return nil, storageErr(err)
	}
	out := make([]domain.AuditEvent, 0, len(models))
	for _, model := range models {
		out = append(out, model.toDomain())
	}
	return out, nil
}
