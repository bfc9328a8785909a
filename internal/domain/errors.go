package domain

import "errors"

var (
	ErrMalformedClaim      = errors.New("malformed claim")
	ErrIdentifierMismatch  = errors.New("identifier does not match public key")
	ErrSignatureInvalid    = errors.New("signature invalid")
	ErrStaleSubmission     = errors.New("this verification is outdated; generate a fresh one")
	ErrStorageUnavailable  = errors.New("storage unavailable")
	ErrCorruptKeypair      = errors.New("corrupt local keypair")
	ErrNotFound            = errors.New("not found")
	ErrDIDMismatch         = errors.New("did mismatch")
	ErrAccountHashMismatch = errors.New("account hash does not match stored badge")
	ErrUnknownGroup        = errors.New("unknown group")
	ErrGroupIneligible     = errors.New("not eligible for group")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrMetricsUnavailable  = errors.New("metrics unavailable")
	ErrUnclassifiedRevenue = errors.New("revenue below the lowest tier")
)
