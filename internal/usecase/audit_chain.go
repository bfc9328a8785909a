package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

const auditHashVersion = "ghostmrr-audit-v1"

// HashAuditEvent returns the hex SHA-256 over an event's fields, PrevHash
// included. Fields are length-prefixed, so no two distinct events share an
// encoding. Stores call it once Seq and PrevHash are assigned.
func HashAuditEvent(event domain.AuditEvent) (string, error) {
	if event.Action == "" || event.Outcome == "" {
		return "", errors.New("audit event missing action or outcome")
	}
	if len(event.PrevHash) != sha256.Size*2 {
		return "", fmt.Errorf("audit event prev hash must be %d hex chars", sha256.Size*2)
	}
	h := sha256.New()
	var size [4]byte
	for _, field := range []string{
		auditHashVersion,
		strconv.FormatInt(event.Seq, 10),
		string(event.Action),
		string(event.Outcome),
		event.DID,
		string(event.KeyKind),
		string(event.Resolution),
		event.Reason,
		event.ClientHash,
		event.RecordedAt.UTC().Format(time.RFC3339Nano),
		event.PrevHash,
	} {
		binary.BigEndian.PutUint32(size[:], uint32(len(field)))
		h.Write(size[:])
		h.Write([]byte(field))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SealAuditEvent numbers event as the successor of prev (nil for the first
// event) and fills in both hashes.
func SealAuditEvent(event domain.AuditEvent, prev *domain.AuditEvent) (domain.AuditEvent, error) {
	event.Seq = 1
	event.PrevHash = domain.AuditGenesisHash
	if prev != nil {
		event.Seq = prev.Seq + 1
		event.PrevHash = prev.Hash
	}
	hash, err := HashAuditEvent(event)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.Hash = hash
	return event, nil
}

// VerifyAuditChain replays the stored trail and reports the first event
// whose sequence number, link or hash does not hold.
func VerifyAuditChain(ctx context.Context, repo AuditEventRepository) error {
	if repo == nil {
		return errors.New("audit repository required")
	}
	events, err := repo.List(ctx)
	if err != nil {
		return err
	}
	var prev *domain.AuditEvent
	for i := range events {
		event := events[i]
		want, err := SealAuditEvent(event, prev)
		if err != nil {
			return fmt.Errorf("audit event %d: %w", event.Seq, err)
		}
		switch {
		case event.Seq != want.Seq:
			return fmt.Errorf("audit trail gap: expected seq %d, found %d", want.Seq, event.Seq)
		case event.PrevHash != want.PrevHash:
			return fmt.Errorf("audit event %d is not linked to its predecessor", event.Seq)
		case event.Hash != want.Hash:
			return fmt.Errorf("audit event %d was altered", event.Seq)
		}
		prev = &events[i]
	}
	return nil
}

func sha256Hex(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}
