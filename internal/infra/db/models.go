package db

import (
	"encoding/json"
	"time"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

type BadgeModel struct {
	ID           string    `gorm:"type:uuid;primaryKey"`
	DID          string    `gorm:"column:did;index;not null"`
	AccountHash  *string   `gorm:"column:account_hash"`
	MRR          int64     `gorm:"column:mrr;not null"`
	Customers    int64     `gorm:"not null"`
	Tier         string    `gorm:"not null"`
	PublicKey    string    `gorm:"not null"`
	Signature    string    `gorm:"not null"`
	SignedAt     time.Time `gorm:"not null"`
	RawTimestamp string    `gorm:"not null"`
	DisplayName  *string
	RevealExact  bool      `gorm:"not null"`
	JoinedGroups []byte    `gorm:"type:jsonb;not null"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime:false"`
}

func (BadgeModel) TableName() string {
	return "badges"
}

type AuditEventModel struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	Seq        int64     `gorm:"uniqueIndex;not null"`
	Action     string    `gorm:"not null"`
	Outcome    string    `gorm:"not null"`
	DID        string    `gorm:"column:did;not null"`
	KeyKind    string    `gorm:"not null"`
	Resolution string    `gorm:"not null"`
	Reason     string    `gorm:"not null"`
	ClientHash string    `gorm:"not null"`
	RecordedAt time.Time `gorm:"not null"`
	PrevHash   string    `gorm:"not null"`
	Hash       string    `gorm:"not null"`
}

func (AuditEventModel) TableName() string {
	return "audit_events"
}

func auditEventModelFromDomain(event domain.AuditEvent) AuditEventModel {
	return AuditEventModel{
		ID:         event.ID,
		Seq:        event.Seq,
		Action:     string(event.Action),
		Outcome:    string(event.Outcome),
		DID:        event.DID,
		KeyKind:    string(event.KeyKind),
		Resolution: string(event.Resolution),
		Reason:     event.Reason,
		ClientHash: event.ClientHash,
		RecordedAt: event.RecordedAt.UTC(),
		PrevHash:   event.PrevHash,
		Hash:       event.Hash,
	}
}

func (m AuditEventModel) toDomain() domain.AuditEvent {
	return domain.AuditEvent{
		ID:         m.ID,
		Seq:        m.Seq,
		Action:     domain.AuditAction(m.Action),
		Outcome:    domain.AuditOutcome(m.Outcome),
		DID:        m.DID,
		KeyKind:    domain.DedupKeyKind(m.KeyKind),
		Resolution: domain.ResolutionAction(m.Resolution),
		Reason:     m.Reason,
		ClientHash: m.ClientHash,
		RecordedAt: m.RecordedAt.UTC(),
		PrevHash:   m.PrevHash,
		Hash:       m.Hash,
	}
}

func badgeModelFromDomain(record domain.StoredRecord) (BadgeModel, error) {
	groups := record.JoinedGroups
	if groups == nil {
		groups = []domain.GroupTag{}
	}
	groupsJSON, err := json.Marshal(groups)
	if err != nil {
		return BadgeModel{}, err
	}
	return BadgeModel{
		ID:           record.ID,
		DID:          record.DID,
		AccountHash:  stringPtrIfNotEmpty(record.AccountHash),
		MRR:          int64(record.Metrics.MRR),
		Customers:    int64(record.Metrics.Customers),
		Tier:         record.Metrics.Tier,
		PublicKey:    record.PublicKey,
		Signature:    record.Signature,
		SignedAt:     record.Timestamp.UTC(),
		RawTimestamp: record.RawTimestamp,
		DisplayName:  stringPtrIfNotEmpty(record.DisplayName),
		RevealExact:  record.RevealExact,
		JoinedGroups: groupsJSON,
		CreatedAt:    record.CreatedAt.UTC(),
		UpdatedAt:    record.UpdatedAt.UTC(),
	}, nil
}

func badgeFromModel(model BadgeModel) (domain.StoredRecord, error) {
	groups := []domain.GroupTag{}
	if len(model.JoinedGroups) > 0 {
		if err := json.Unmarshal(model.JoinedGroups, &groups); err != nil {
			return domain.StoredRecord{}, err
		}
	}
	return domain.StoredRecord{
		ID:          model.ID,
		DID:         model.DID,
		AccountHash: stringValue(model.AccountHash),
		Metrics: domain.Metrics{
			MRR:       uint64(model.MRR),
			Customers: uint64(model.Customers),
			Tier:      model.Tier,
		},
		PublicKey:    model.PublicKey,
		Signature:    model.Signature,
		Timestamp:    model.SignedAt.UTC(),
		RawTimestamp: model.RawTimestamp,
		DisplayName:  stringValue(model.DisplayName),
		RevealExact:  model.RevealExact,
		JoinedGroups: groups,
		CreatedAt:    model.CreatedAt.UTC(),
		UpdatedAt:    model.UpdatedAt.UTC(),
	}, nil
}
