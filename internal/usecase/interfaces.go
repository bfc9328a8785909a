package usecase

import (
	"context"
	"time"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

type Clock func() time.Time

// KeypairRepository owns an issuer's long-lived identity.
type KeypairRepository interface {
	LoadOrCreate(ctx context.Context) (domain.Keypair, error)
	Reset(ctx context.Context) (bool, error)
}

// ApplyFunc decides what to do with the record currently stored under a
// dedup key (nil when there is none). Returning an error aborts the write.
type ApplyFunc func(existing *domain.StoredRecord) (domain.Resolution, error)

// BadgeRepository stores badge records. Apply must run lookup, fn and the
// resulting insert or update as one atomic step per key.
type BadgeRepository interface {
	Apply(ctx context.Context, key domain.DedupKey, fn ApplyFunc) (domain.Resolution, error)
	ReplaceByDID(ctx context.Context, did string, fn func(existing domain.StoredRecord) (domain.StoredRecord, error)) (domain.StoredRecord, error)
	GetByDID(ctx context.Context, did string) (domain.StoredRecord, error)
	List(ctx context.Context) ([]domain.StoredRecord, error)
}

type AuditEventRepository interface {
	Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error)
	List(ctx context.Context) ([]domain.AuditEvent, error)
}

type GroupPolicy interface {
	EvaluateGroup(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error)
}

// MetricsSource produces the figures an issuer signs, plus the billing
// account id they were computed for (empty when unknown).
type MetricsSource interface {
	Metrics(ctx context.Context) (domain.Metrics, string, error)
}

type FeedPublisher interface {
	Publish(event domain.FeedEvent)
}

type VerificationCache interface {
	Get(key string) (domain.VerificationOutcome, bool)
	Add(key string, outcome domain.VerificationOutcome)
}
