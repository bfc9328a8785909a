package domain

type RejectReason string

const (
	RejectNone               RejectReason = ""
	RejectMalformed          RejectReason = "malformed_claim"
	RejectIdentifierMismatch RejectReason = "identifier_mismatch"
	RejectSignatureInvalid   RejectReason = "signature_invalid"
)

// VerificationOutcome is the all-or-nothing result of checking a claim.
type VerificationOutcome struct {
	Valid  bool         `json:"valid"`
	Reason RejectReason `json:"reason,omitempty"`
	Detail string       `json:"detail,omitempty"`
}

func Accepted() VerificationOutcome {
	return VerificationOutcome{Valid: true}
}

func Rejected(reason RejectReason, detail string) VerificationOutcome {
	return VerificationOutcome{Valid: false, Reason: reason, Detail: detail}
}

// Err maps a rejection to its sentinel error; nil when valid.
func (o VerificationOutcome) Err() error {
	if o.Valid {
		return nil
	}
	switch o.Reason {
	case RejectIdentifierMismatch:
		return ErrIdentifierMismatch
	case RejectSignatureInvalid:
		return ErrSignatureInvalid
	default:
		return ErrMalformedClaim
	}
}
