package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/filiksyos/ghostmrr/internal/domain"
	"github.com/filiksyos/ghostmrr/internal/usecase"
)

const badgeColumns = `id, did, account_hash, mrr, customers, tier, public_key, signature,
	signed_at, raw_timestamp, display_name, reveal_exact, joined_groups, created_at, updated_at`

type BadgeRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *BadgeRepository) Apply(ctx context.Context, key domain.DedupKey, fn usecase.ApplyFunc) (domain.Resolution, error) {
	var out domain.Resolution
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		existing, err := r.lookup(ctx, tx, key)
		if err != nil {
			return err
		}
		res, err := fn(existing)
		if err != nil {
			return err
		}
		record := res.Record
		switch res.Action {
		case domain.ResolutionInsert:
			record.ID = uuid.NewString()
			if err := insertBadge(ctx, tx, record); err != nil {
				return err
			}
		case domain.ResolutionUpdate:
			if existing == nil {
				return fmt.Errorf("update without existing record for %s", key)
			}
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
			if err := updateBadge(ctx, tx, record); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown resolution action %q", res.Action)
		}
		out = domain.Resolution{Action: res.Action, Record: record}
		return nil
	})
	if err != nil {
		return domain.Resolution{}, err
	}
	return out, nil
}

func (r *BadgeRepository) lookup(ctx context.Context, tx *sql.Tx, key domain.DedupKey) (*domain.StoredRecord, error) {
	query := `SELECT ` + badgeColumns + ` FROM badges WHERE did = ? AND account_hash IS NULL`
	if key.Kind == domain.DedupByAccountHash {
		query = `SELECT ` + badgeColumns + ` FROM badges WHERE account_hash = ?`
	}
	record, err := scanBadge(tx.QueryRowContext(ctx, query, key.Value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &record, nil
}

func (r *BadgeRepository) ReplaceByDID(ctx context.Context, did string, fn func(existing domain.StoredRecord) (domain.StoredRecord, error)) (domain.StoredRecord, error) {
	var out domain.StoredRecord
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		existing, err := latestByDID(ctx, tx, did)
		if err != nil {
			return err
		}
		updated, err := fn(existing)
		if err != nil {
			return err
		}
		updated.ID = existing.ID
		updated.DID = existing.DID
		updated.AccountHash = existing.AccountHash
		updated.CreatedAt = existing.CreatedAt
		if err := updateBadge(ctx, tx, updated); err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.StoredRecord{}, err
	}
	return out, nil
}

func (r *BadgeRepository) GetByDID(ctx context.Context, did string) (domain.StoredRecord, error) {
	var out domain.StoredRecord
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		record, err := latestByDID(ctx, tx, did)
		out = record
		return err
	})
	return out, err
}

func (r *BadgeRepository) List(ctx context.Context) ([]domain.StoredRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+badgeColumns+` FROM badges ORDER BY mrr DESC, created_at ASC`)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()
	var out []domain.StoredRecord
	for rows.Next() {
		record, err := scanBadge(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

func latestByDID(ctx context.Context, tx *sql.Tx, did string) (domain.StoredRecord, error) {
	record, err := scanBadge(tx.QueryRowContext(ctx,
		`SELECT `+badgeColumns+` FROM badges WHERE did = ? ORDER BY updated_at DESC LIMIT 1`, did))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoredRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.StoredRecord{}, storageErr(err)
	}
	return record, nil
}

func insertBadge(ctx context.Context, tx *sql.Tx, record domain.StoredRecord) error {
	groups, err := encodeGroups(record.JoinedGroups)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO badges (`+badgeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.DID, nullString(record.AccountHash),
		int64(record.Metrics.MRR), int64(record.Metrics.Customers), record.Metrics.Tier,
		record.PublicKey, record.Signature,
		formatTime(record.Timestamp), record.RawTimestamp,
		nullString(record.DisplayName), record.RevealExact, groups,
		formatTime(record.CreatedAt), formatTime(record.UpdatedAt),
	)
	return storageErr(err)
}

func updateBadge(ctx context.Context, tx *sql.Tx, record domain.StoredRecord) error {
	groups, err := encodeGroups(record.JoinedGroups)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE badges SET
		did = ?, mrr = ?, customers = ?, tier = ?, public_key = ?, signature = ?,
		signed_at = ?, raw_timestamp = ?, display_name = ?, reveal_exact = ?,
		joined_groups = ?, updated_at = ?
		WHERE id = ?`,
		record.DID, int64(record.Metrics.MRR), int64(record.Metrics.Customers), record.Metrics.Tier,
		record.PublicKey, record.Signature,
		formatTime(record.Timestamp), record.RawTimestamp,
		nullString(record.DisplayName), record.RevealExact,
		groups, formatTime(record.UpdatedAt),
		record.ID,
	)
	return storageErr(err)
}

func scanBadge(row rowScanner) (domain.StoredRecord, error) {
	var (
		record                         domain.StoredRecord
		accountHash, displayName       sql.NullString
		mrr, customers                 int64
		signedAt, createdAt, updatedAt string
		groups                         string
	)
	if err := row.Scan(
		&record.ID, &record.DID, &accountHash, &mrr, &customers, &record.Metrics.Tier,
		&record.PublicKey, &record.Signature, &signedAt, &record.RawTimestamp,
		&displayName, &record.RevealExact, &groups, &createdAt, &updatedAt,
	); err != nil {
		return domain.StoredRecord{}, err
	}
	record.AccountHash = accountHash.String
	record.DisplayName = displayName.String
	record.Metrics.MRR = uint64(mrr)
	record.Metrics.Customers = uint64(customers)

	var err error
	if record.Timestamp, err = parseTime(signedAt); err != nil {
		return domain.StoredRecord{}, err
	}
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.StoredRecord{}, err
	}
	if record.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return domain.StoredRecord{}, err
	}
	record.JoinedGroups = []domain.GroupTag{}
	if err := json.Unmarshal([]byte(groups), &record.JoinedGroups); err != nil {
		return domain.StoredRecord{}, err
	}
	return record, nil
}

func encodeGroups(groups []domain.GroupTag) (string, error) {
	if groups == nil {
		groups = []domain.GroupTag{}
	}
	raw, err := json.Marshal(groups)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
