package usecase

import (
	"fmt"
	"time"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

// DedupKeyFor picks the key a claim resolves against: its account hash when
// it carries one, otherwise its did.
func DedupKeyFor(claim domain.Claim) domain.DedupKey {
	if claim.HasAccountHash() {
		return domain.DedupKey{Kind: domain.DedupByAccountHash, Value: claim.AccountHashValue()}
	}
	return domain.DedupKey{Kind: domain.DedupByDID, Value: claim.DID}
}

// Resolve computes the state transition for a verified claim given the
// record currently stored under key. It performs no I/O.
//
// A claim older than the stored one is rejected as stale only under an
// account-hash key; equal timestamps are accepted so the same signed claim can
// be resubmitted to join another group. Under a did key there is no freshness
// gate. In both update paths joined groups only grow.
func Resolve(existing *domain.StoredRecord, claim domain.Claim, key domain.DedupKey, now time.Time) (domain.Resolution, error) {
	if claim.Metrics == nil {
		return domain.Resolution{}, domain.ErrMalformedClaim
	}
	signedAt, err := claim.SignedAt()
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("%w: timestamp: %v", domain.ErrMalformedClaim, err)
	}
	now = now.UTC()

	if existing == nil {
		record := domain.StoredRecord{
			DID:          claim.DID,
			Metrics:      *claim.Metrics,
			PublicKey:    claim.PublicKey,
			Signature:    claim.Signature,
			Timestamp:    signedAt.UTC(),
			RawTimestamp: claim.Timestamp,
			DisplayName:  claim.DisplayNameValue(),
			RevealExact:  claim.RevealExactValue(),
			JoinedGroups: mergeGroups(nil, claim.JoinedGroup),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if key.Kind == domain.DedupByAccountHash {
			record.AccountHash = key.Value
		}
		return domain.Resolution{Action: domain.ResolutionInsert, Record: record}, nil
	}

	if key.Kind == domain.DedupByAccountHash && signedAt.Before(storedSignedAt(*existing)) {
		return domain.Resolution{}, domain.ErrStaleSubmission
	}

	record := *existing
	record.DID = claim.DID
	record.Metrics = *claim.Metrics
	record.PublicKey = claim.PublicKey
	record.Signature = claim.Signature
	record.Timestamp = signedAt.UTC()
	record.RawTimestamp = claim.Timestamp
	record.DisplayName = claim.DisplayNameValue()
	record.RevealExact = claim.RevealExactValue()
	record.JoinedGroups = mergeGroups(existing.JoinedGroups, claim.JoinedGroup)
	record.UpdatedAt = now
	return domain.Resolution{Action: domain.ResolutionUpdate, Record: record}, nil
}

// storedSignedAt prefers the timestamp text as signed, since database columns
// may hold less precision than the claim did.
func storedSignedAt(record domain.StoredRecord) time.Time {
	if t, err := domain.ParseTimestamp(record.RawTimestamp); err == nil {
		return t
	}
	return record.Timestamp
}

// mergeGroups returns existing with add appended when it is not already a
// member. Order of first appearance is kept and the result is never nil.
func mergeGroups(existing []domain.GroupTag, add *domain.GroupTag) []domain.GroupTag {
	out := make([]domain.GroupTag, 0, len(existing)+1)
	seen := make(map[domain.GroupTag]struct{}, len(existing)+1)
	for _, g := range existing {
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	if add != nil && *add != "" {
		if _, ok := seen[*add]; !ok {
			out = append(out, *add)
		}
	}
	return out
}
