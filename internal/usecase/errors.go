package usecase

import (
	"errors"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

// ErrorCode is the stable machine-readable code for err, shared by audit
// records and API responses.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrMalformedClaim):
		return "MALFORMED_CLAIM"
	case errors.Is(err, domain.ErrIdentifierMismatch):
		return "IDENTIFIER_MISMATCH"
	case errors.Is(err, domain.ErrSignatureInvalid):
		return "SIGNATURE_INVALID"
	case errors.Is(err, domain.ErrStaleSubmission):
		return "STALE_SUBMISSION"
	case errors.Is(err, domain.ErrUnknownGroup):
		return "UNKNOWN_GROUP"
	case errors.Is(err, domain.ErrGroupIneligible):
		return "GROUP_INELIGIBLE"
	case errors.Is(err, domain.ErrDIDMismatch):
		return "DID_MISMATCH"
	case errors.Is(err, domain.ErrAccountHashMismatch):
		return "ACCOUNT_HASH_MISMATCH"
	case errors.Is(err, domain.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, domain.ErrRateLimited):
		return "RATE_LIMITED"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "STORAGE_UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}
