package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/mborders/logmatic"

	"github.com/filiksyos/ghostmrr/internal/domain"
	"github.com/filiksyos/ghostmrr/internal/logging"
)

type ReplaceBadgeRequest struct {
	DID      string
	Claim    domain.Claim
	ClientID string
}

// ReplaceBadge overwrites the signed fields of the record stored for a did
// with a newly verified claim. There is no freshness gate, and groups,
// display name and reveal preference are left as stored.
type ReplaceBadge struct {
	Badges BadgeRepository
	Audit  *AuditEmitter
	Feed   FeedPublisher
	Clock  Clock
	Log    *logmatic.Logger
}

func (uc *ReplaceBadge) Execute(ctx context.Context, req ReplaceBadgeRequest) (domain.StoredRecord, error) {
	if uc.Badges == nil {
		return domain.StoredRecord{}, errors.New("badge repository required")
	}
	claim := req.Claim
	if claim.DID != req.DID {
		uc.audit(ctx, req, domain.ErrDIDMismatch)
		return domain.StoredRecord{}, domain.ErrDIDMismatch
	}
	if err := checkClaim(claim); err != nil {
		uc.audit(ctx, req, err)
		return domain.StoredRecord{}, err
	}
	signedAt, err := claim.SignedAt()
	if err != nil {
		uc.audit(ctx, req, domain.ErrMalformedClaim)
		return domain.StoredRecord{}, domain.ErrMalformedClaim
	}

	now := uc.now()
	record, err := uc.Badges.ReplaceByDID(ctx, req.DID, func(existing domain.StoredRecord) (domain.StoredRecord, error) {
		// The stored record must stay verifiable as a claim, so it cannot be
		// rebound to a different account.
		if existing.AccountHash != claim.AccountHashValue() {
			return domain.StoredRecord{}, domain.ErrAccountHashMismatch
		}
		existing.Metrics = *claim.Metrics
		existing.PublicKey = claim.PublicKey
		existing.Signature = claim.Signature
		existing.Timestamp = signedAt.UTC()
		existing.RawTimestamp = claim.Timestamp
		existing.UpdatedAt = now
		return existing, nil
	})
	if err != nil {
		uc.audit(ctx, req, err)
		return domain.StoredRecord{}, err
	}

	uc.audit(ctx, req, nil)
	logging.Or(uc.Log).Info("badge replaced for %s", req.DID)
	if uc.Feed != nil {
		uc.Feed.Publish(domain.FeedEvent{
			Type:       domain.FeedEventBadgeReplaced,
			Badge:      domain.Project(record),
			IsUpdate:   true,
			OccurredAt: now,
		})
	}
	return record, nil
}

func (uc *ReplaceBadge) audit(ctx context.Context, req ReplaceBadgeRequest, cause error) {
	if uc.Audit == nil {
		return
	}
	_, err := uc.Audit.Replaced(ctx, BadgeAttempt{
		ClientID:   req.ClientID,
		DID:        req.DID,
		Key:        domain.DedupKey{Kind: domain.DedupByDID, Value: req.DID},
		Resolution: domain.ResolutionUpdate,
		Cause:      cause,
	})
	if err != nil {
		logging.Or(uc.Log).Warn("audit append failed: %v", err)
	}
}

func (uc *ReplaceBadge) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock().UTC()
	}
	return time.Now().UTC()
}
