package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/filiksyos/ghostmrr/internal/domain"
	"github.com/filiksyos/ghostmrr/pkg/badge"
)

type IssueBadgeRequest struct {
	// AccountID overrides the account id reported by the metrics source.
	AccountID   string
	Unbound     bool
	DisplayName string
	RevealExact bool
	JoinGroup   domain.GroupTag
}

// IssueBadge signs the metrics reported by a source with the issuer's
// persisted identity.
type IssueBadge struct {
	Keys   KeypairRepository
	Source MetricsSource
	Clock  Clock
}

func (uc *IssueBadge) Execute(ctx context.Context, req IssueBadgeRequest) (domain.Claim, error) {
	if uc.Keys == nil || uc.Source == nil {
		return domain.Claim{}, errors.New("keypair repository and metrics source required")
	}
	if req.JoinGroup != "" && !req.JoinGroup.Valid() {
		return domain.Claim{}, fmt.Errorf("%w: %s", domain.ErrUnknownGroup, req.JoinGroup)
	}

	metrics, accountID, err := uc.Source.Metrics(ctx)
	if err != nil {
		return domain.Claim{}, fmt.Errorf("%w: %v", domain.ErrMetricsUnavailable, err)
	}
	tier, ok := domain.Tier(metrics.MRR)
	if !ok {
		return domain.Claim{}, domain.ErrUnclassifiedRevenue
	}
	if metrics.Tier == "" {
		metrics.Tier = tier
	}

	kp, err := uc.Keys.LoadOrCreate(ctx)
	if err != nil {
		return domain.Claim{}, err
	}

	var opts []badge.SignOption
	if uc.Clock != nil {
		opts = append(opts, badge.WithClock(uc.Clock))
	}
	if req.AccountID != "" {
		accountID = req.AccountID
	}
	if accountID != "" && !req.Unbound {
		opts = append(opts, badge.WithAccountHash(badge.AccountHash(accountID)))
	}
	claim, err := badge.Sign(metrics, kp, opts...)
	if err != nil {
		return domain.Claim{}, err
	}

	if req.DisplayName != "" {
		name := req.DisplayName
		claim.DisplayName = &name
	}
	if req.RevealExact {
		reveal := true
		claim.RevealExact = &reveal
	}
	if req.JoinGroup != "" {
		group := req.JoinGroup
		claim.JoinedGroup = &group
	}
	return claim, nil
}
