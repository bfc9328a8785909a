package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mborders/logmatic"

	"github.com/filiksyos/ghostmrr/internal/domain"
	"github.com/filiksyos/ghostmrr/internal/logging"
	"github.com/filiksyos/ghostmrr/pkg/badge"
)

type SubmitBadgeRequest struct {
	Claim    domain.Claim
	ClientID string
}

type SubmitBadgeResponse struct {
	Record   domain.StoredRecord
	IsUpdate bool
}

// SubmitBadge is the authoritative storage gate: verify, check group
// admission, then resolve against the stored record atomically per key.
type SubmitBadge struct {
	Badges BadgeRepository
	Policy GroupPolicy
	Audit  *AuditEmitter
	Feed   FeedPublisher
	Clock  Clock
	Log    *logmatic.Logger
}

func (uc *SubmitBadge) Execute(ctx context.Context, req SubmitBadgeRequest) (*SubmitBadgeResponse, error) {
	if uc.Badges == nil {
		return nil, errors.New("badge repository required")
	}
	claim := req.Claim
	key := DedupKeyFor(claim)

	if err := checkClaim(claim); err != nil {
		uc.audit(ctx, req, key, "", err)
		return nil, err
	}
	if err := uc.checkGroup(ctx, claim); err != nil {
		uc.audit(ctx, req, key, "", err)
		return nil, err
	}

	now := uc.now()
	res, err := uc.Badges.Apply(ctx, key, func(existing *domain.StoredRecord) (domain.Resolution, error) {
		return Resolve(existing, claim, key, now)
	})
	if err != nil {
		uc.audit(ctx, req, key, "", err)
		if errors.Is(err, domain.ErrStorageUnavailable) {
			logging.Or(uc.Log).Error("badge storage failed for %s: %v", key.Kind, err)
		}
		return nil, err
	}

	uc.audit(ctx, req, key, res.Action, nil)
	logging.Or(uc.Log).Info("badge %s for %s (key=%s)", res.Action, claim.DID, key.Kind)
	if uc.Feed != nil {
		uc.Feed.Publish(domain.FeedEvent{
			Type:       domain.FeedEventBadgeAccepted,
			Badge:      domain.Project(res.Record),
			IsUpdate:   res.IsUpdate(),
			OccurredAt: now,
		})
	}
	return &SubmitBadgeResponse{Record: res.Record, IsUpdate: res.IsUpdate()}, nil
}

func (uc *SubmitBadge) checkGroup(ctx context.Context, claim domain.Claim) error {
	if claim.JoinedGroup == nil {
		return nil
	}
	group := *claim.JoinedGroup
	if !group.Valid() {
		return fmt.Errorf("%w: %s", domain.ErrUnknownGroup, group)
	}
	if uc.Policy == nil {
		return nil
	}
	eval, err := uc.Policy.EvaluateGroup(ctx, domain.PolicyInput{
		Group:       group,
		Metrics:     domain.PolicyMetrics{MRR: claim.Metrics.MRR, Customers: claim.Metrics.Customers},
		RevealExact: claim.RevealExactValue(),
	})
	if err != nil {
		return fmt.Errorf("evaluate group policy: %w", err)
	}
	if !eval.Result.Allow {
		return fmt.Errorf("%w: %s", domain.ErrGroupIneligible, denyMessage(eval.Result))
	}
	return nil
}

func (uc *SubmitBadge) audit(ctx context.Context, req SubmitBadgeRequest, key domain.DedupKey, action domain.ResolutionAction, cause error) {
	if uc.Audit == nil {
		return
	}
	_, err := uc.Audit.Submitted(ctx, BadgeAttempt{
		ClientID:   req.ClientID,
		DID:        req.Claim.DID,
		Key:        key,
		Resolution: action,
		Cause:      cause,
	})
	if err != nil {
		logging.Or(uc.Log).Warn("audit append failed: %v", err)
	}
}

func (uc *SubmitBadge) now() time.Time {
	if uc.Clock != nil {
		return uc.Clock().UTC()
	}
	return time.Now().UTC()
}

// checkClaim runs the verifier and turns a rejection into its sentinel error.
func checkClaim(claim domain.Claim) error {
	outcome := badge.Verify(claim)
	if outcome.Valid {
		return nil
	}
	if outcome.Detail == "" {
		return outcome.Err()
	}
	return fmt.Errorf("%w: %s", outcome.Err(), outcome.Detail)
}

func denyMessage(result domain.PolicyResult) string {
	if len(result.Deny) == 0 {
		return "denied by policy"
	}
	parts := make([]string, 0, len(result.Deny))
	for _, d := range result.Deny {
		if d.Message != "" {
			parts = append(parts, d.Message)
		} else {
			parts = append(parts, d.Code)
		}
	}
	return strings.Join(parts, "; ")
}
