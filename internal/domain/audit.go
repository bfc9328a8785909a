package domain

import "time"

// AuditGenesisHash is the PrevHash of the first event in a trail.
const AuditGenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

type AuditAction string

const (
	AuditActionSubmit  AuditAction = "submit"
	AuditActionReplace AuditAction = "replace"
)

type AuditOutcome string

const (
	AuditAccepted AuditOutcome = "accepted"
	AuditRejected AuditOutcome = "rejected"
)

// AuditEvent records one write attempt against the badge store, accepted or
// not. Hash covers every other field including PrevHash, which links the
// event to the one before it.
type AuditEvent struct {
	ID         string
	Seq        int64
	Action     AuditAction
	Outcome    AuditOutcome
	DID        string
	KeyKind    DedupKeyKind
	Resolution ResolutionAction
	// Reason is the error code of a rejected attempt.
	Reason     string
	ClientHash string
	RecordedAt time.Time
	PrevHash   string
	Hash       string
}

func (e AuditEvent) Accepted() bool {
	return e.Outcome == AuditAccepted
}
