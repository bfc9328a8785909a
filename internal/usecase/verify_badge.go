package usecase

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/filiksyos/ghostmrr/internal/domain"
	cryptoinfra "github.com/filiksyos/ghostmrr/internal/infra/crypto"
	"github.com/filiksyos/ghostmrr/pkg/badge"
)

type VerifyBadgeResponse struct {
	Outcome domain.VerificationOutcome
	DID     string
	Tier    string
}

// VerifyBadge checks a claim without storing it. Outcomes are pure functions
// of the claim, so they are cached by claim content.
type VerifyBadge struct {
	Cache VerificationCache
}

func (uc *VerifyBadge) Execute(claim domain.Claim) VerifyBadgeResponse {
	resp := VerifyBadgeResponse{DID: claim.DID}
	if claim.Metrics != nil {
		resp.Tier, _ = domain.Tier(claim.Metrics.MRR)
	}

	key, cacheable := verificationCacheKey(claim)
	if cacheable && uc.Cache != nil {
		if outcome, ok := uc.Cache.Get(key); ok {
			resp.Outcome = outcome
			return resp
		}
	}
	resp.Outcome = badge.Verify(claim)
	if cacheable && uc.Cache != nil {
		uc.Cache.Add(key, resp.Outcome)
	}
	return resp
}

func verificationCacheKey(claim domain.Claim) (string, bool) {
	if claim.Metrics == nil {
		return "", false
	}
	h := sha256.New()
	for _, part := range []string{claim.DID, claim.PublicKey, claim.Signature} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(cryptoinfra.CanonicalClaimMessage(*claim.Metrics, claim.Timestamp, claim.AccountHashValue(), claim.HasAccountHash()))
	return hex.EncodeToString(h.Sum(nil)), true
}
