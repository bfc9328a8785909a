package badge

import (
	"github.com/filiksyos/ghostmrr/internal/domain"
	cryptoinfra "github.com/filiksyos/ghostmrr/internal/infra/crypto"
)

// MaxSafeInteger is the largest metric value every issuer runtime can encode
// exactly.
const MaxSafeInteger = 1<<53 - 1

// AccountHashBinding controls whether the account hash is part of the
// reconstructed message.
type AccountHashBinding int

const (
	// BindingAuto includes the account hash exactly when the claim declares
	// one. Production verifiers use only this mode.
	BindingAuto AccountHashBinding = iota
	BindingInclude
	BindingOmit
)

type VerifyOptions struct {
	AccountHashBinding AccountHashBinding
}

func Verify(claim domain.Claim) domain.VerificationOutcome {
	return VerifyWith(claim, VerifyOptions{})
}

// VerifyWith checks, in order: required fields, key and signature decoding,
// identifier binding, then the signature over the canonical message. Any
// failure rejects the claim as a whole.
func VerifyWith(claim domain.Claim, opts VerifyOptions) domain.VerificationOutcome {
	if outcome := ValidateClaim(claim); !outcome.Valid {
		return outcome
	}

	pub, err := cryptoinfra.DecodePublicKey(claim.PublicKey)
	if err != nil {
		return domain.Rejected(domain.RejectMalformed, err.Error())
	}
	sig, err := cryptoinfra.DecodeSignature(claim.Signature)
	if err != nil {
		return domain.Rejected(domain.RejectMalformed, err.Error())
	}

	if cryptoinfra.DeriveDIDFromBase64(claim.PublicKey) != claim.DID {
		return domain.Rejected(domain.RejectIdentifierMismatch, "did does not match public key")
	}

	include := claim.HasAccountHash()
	switch opts.AccountHashBinding {
	case BindingInclude:
		include = true
	case BindingOmit:
		include = false
	}
	message := cryptoinfra.CanonicalClaimMessage(*claim.Metrics, claim.Timestamp, claim.AccountHashValue(), include)

	service := cryptoinfra.NewService()
	if err := service.VerifySignature(message, sig, pub); err != nil {
		return domain.Rejected(domain.RejectSignatureInvalid, err.Error())
	}
	return domain.Accepted()
}

// ValidateClaim is the structural check run before any cryptography.
func ValidateClaim(claim domain.Claim) domain.VerificationOutcome {
	switch {
	case claim.DID == "":
		return domain.Rejected(domain.RejectMalformed, "did is required")
	case claim.PublicKey == "":
		return domain.Rejected(domain.RejectMalformed, "publicKey is required")
	case claim.Signature == "":
		return domain.Rejected(domain.RejectMalformed, "signature is required")
	case claim.Metrics == nil:
		return domain.Rejected(domain.RejectMalformed, "metrics is required")
	case claim.Timestamp == "":
		return domain.Rejected(domain.RejectMalformed, "timestamp is required")
	case claim.Metrics.MRR > MaxSafeInteger || claim.Metrics.Customers > MaxSafeInteger:
		return domain.Rejected(domain.RejectMalformed, "metrics exceed the exact integer range")
	}
	return domain.Accepted()
}
