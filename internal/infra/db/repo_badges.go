package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/filiksyos/ghostmrr/internal/domain"
	"github.com/filiksyos/ghostmrr/internal/usecase"
)

type BadgeRepository struct {
	db *gorm.DB
}

func NewBadgeRepository(db *gorm.DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

// Apply serializes writers on the dedup key with a transaction-scoped
// advisory lock, so the lookup and the write see the same row.
func (r *BadgeRepository) Apply(ctx context.Context, key domain.DedupKey, fn usecase.ApplyFunc) (domain.Resolution, error) {
	if r.db == nil {
		return domain.Resolution{}, storageErr(errDBUnavailable)
	}
	var (
		out   domain.Resolution
		fnErr error
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockKey(tx, key); err != nil {
			return err
		}
		var model BadgeModel
		err := scopeForKey(tx, key).Take(&model).Error
		var existing *domain.StoredRecord
		switch {
		case err == nil:
			record, err := badgeFromModel(model)
			if err != nil {
				return err
			}
			existing = &record
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		var res domain.Resolution
		res, fnErr = fn(existing)
		if fnErr != nil {
			return fnErr
		}

		record := res.Record
		switch res.Action {
		case domain.ResolutionInsert:
			record.ID = uuid.NewString()
		case domain.ResolutionUpdate:
			if existing == nil {
				return fmt.Errorf("update without existing record for %s", key)
			}
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
		default:
			return fmt.Errorf("unknown resolution action %q", res.Action)
		}
		next, err := badgeModelFromDomain(record)
		if err != nil {
			return err
		}
		if res.Action == domain.ResolutionInsert {
			err = tx.Create(&next).Error
		} else {
			err = tx.Save(&next).Error
		}
		if err != nil {
			return err
		}
		stored, err := badgeFromModel(next)
		if err != nil {
			return err
		}
		out = domain.Resolution{Action: res.Action, Record: stored}
		return nil
	})
	if fnErr != nil {
		return domain.Resolution{}, fnErr
	}
	if err != nil {
		return domain.Resolution{}, storageErr(err)
	}
	return out, nil
}

func (r *BadgeRepository) ReplaceByDID(ctx context.Context, did string, fn func(existing domain.StoredRecord) (domain.StoredRecord, error)) (domain.StoredRecord, error) {
	if r.db == nil {
		return domain.StoredRecord{}, storageErr(errDBUnavailable)
	}
	var (
		out   domain.StoredRecord
		fnErr error
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current BadgeModel
		if err := tx.Where("did = ?", did).Order("updated_at DESC").Take(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				fnErr = domain.ErrNotFound
				return fnErr
			}
			return err
		}
		if err := lockKey(tx, dedupKeyOf(current)); err != nil {
			return err
		}
		var locked BadgeModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", current.ID).Take(&locked).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				fnErr = domain.ErrNotFound
				return fnErr
			}
			return err
		}
		existing, err := badgeFromModel(locked)
		if err != nil {
			return err
		}
		var updated domain.StoredRecord
		updated, fnErr = fn(existing)
		if fnErr != nil {
			return fnErr
		}
		updated.ID = existing.ID
		updated.DID = existing.DID
		updated.AccountHash = existing.AccountHash
		updated.CreatedAt = existing.CreatedAt
		next, err := badgeModelFromDomain(updated)
		if err != nil {
			return err
		}
		if err := tx.Save(&next).Error; err != nil {
			return err
		}
		out, err = badgeFromModel(next)
		return err
	})
	if fnErr != nil {
		return domain.StoredRecord{}, fnErr
	}
	if err != nil {
		return domain.StoredRecord{}, storageErr(err)
	}
	return out, nil
}

// GetByDID returns the most recently updated record carrying did.
func (r *BadgeRepository) GetByDID(ctx context.Context, did string) (domain.StoredRecord, error) {
	if r.db == nil {
		return domain.StoredRecord{}, storageErr(errDBUnavailable)
	}
	var model BadgeModel
	if err := r.db.WithContext(ctx).Where("did = ?", did).Order("updated_at DESC").Take(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.StoredRecord{}, domain.ErrNotFound
		}
		return domain.StoredRecord{}, storageErr(err)
	}
	record, err := badgeFromModel(model)
	if err != nil {
		return domain.StoredRecord{}, storageErr(err)
	}
	return record, nil
}

func (r *BadgeRepository) List(ctx context.Context) ([]domain.StoredRecord, error) {
	if r.db == nil {
		return nil, storageErr(errDBUnavailable)
	}
	var models []BadgeModel
	if err := r.db.WithContext(ctx).Order("mrr DESC, created_at ASC").Find(&models).Error; err != nil {
		return nil, storageErr(err)
	}
	out := make([]domain.StoredRecord, 0, len(models))
	for _, model := range models {
		record, err := badgeFromModel(model)
		if err != nil {
			return nil, storageErr(err)
		}
		out = append(out, record)
	}
	return out, nil
}

func lockKey(tx *gorm.DB, key domain.DedupKey) error {
	return tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key.String()).Error
}

func scopeForKey(tx *gorm.DB, key domain.DedupKey) *gorm.DB {
	if key.Kind == domain.DedupByAccountHash {
		return tx.Where("account_hash = ?", key.Value)
	}
	return tx.Where("did = ? AND account_hash IS NULL", key.Value)
}

func dedupKeyOf(model BadgeModel) domain.DedupKey {
	if hash := stringValue(model.AccountHash); hash != "" {
		return domain.DedupKey{Kind: domain.DedupByAccountHash, Value: hash}
	}
	return domain.DedupKey{Kind: domain.DedupByDID, Value: model.DID}
}
