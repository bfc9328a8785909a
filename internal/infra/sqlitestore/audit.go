package sqlitestore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/filiksyos/ghostmrr/internal/domain"
	"github.com/filiksyos/ghostmrr/internal/usecase"
)

const auditColumns = `id, seq, action, outcome, did, key_kind, resolution, reason, client_hash, recorded_at, prev_hash, hash`

// AuditLog is the audit trail stored next to the badges.
type AuditLog struct {
	db *sql.DB
}

func (l *AuditLog) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	var sealed domain.AuditEvent
	err := inTx(ctx, l.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+auditColumns+` FROM audit_events ORDER BY seq DESC LIMIT 1`)
		last, err := scanAuditEvent(row)
		var prev *domain.AuditEvent
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return storageErr(err)
		default:
			prev = &last
		}
		if sealed, err = usecase.SealAuditEvent(event, prev); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO audit_events (`+auditColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sealed.ID, sealed.Seq, string(sealed.Action), string(sealed.Outcome), sealed.DID,
			string(sealed.KeyKind), string(sealed.Resolution), sealed.Reason, sealed.ClientHash,
			formatTime(sealed.RecordedAt), sealed.PrevHash, sealed.Hash,
		)
		return storageErr(err)
	})
	if err != nil {
		return domain.AuditEvent{}, err
	}
	return sealed, nil
}

func (l *AuditLog) List(ctx context.Context) ([]domain.AuditEvent, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT `+auditColumns+` FROM audit_events ORDER BY seq ASC`)
	if err != nil {
		return nil, storageErr(err)
	}
	defer rows.Close()
	var out []domain.AuditEvent
	for rows.Next() {
		event, err := scanAuditEvent(rows)
		if err != nil {
			return nil, storageErr(err)
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAuditEvent(row scanner) (domain.AuditEvent, error) {
	var event domain.AuditEvent
	var action, outcome, keyKind, res, recordedAt string
	if err := row.Scan(&event.ID, &event.Seq, &action, &outcome, &event.DID, &keyKind, &res,
		&event.Reason, &event.ClientHash, &recordedAt, &event.PrevHash, &event.Hash); err != nil {
		return domain.AuditEvent{}, err
	}
	event.Action = domain.AuditAction(action)
	event.Outcome = domain.AuditOutcome(outcome)
	event.KeyKind = domain.DedupKeyKind(keyKind)
	event.Resolution = domain.ResolutionAction(res)
	at, err := parseTime(recordedAt)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.RecordedAt = at
	return event, nil
}
