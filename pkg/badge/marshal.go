package badge

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

// ParseClaim decodes a claim document. Decoding failures and wrong field
// types are reported as ErrMalformedClaim.
func ParseClaim(data []byte) (domain.Claim, error) {
	var claim domain.Claim
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&claim); err != nil {
		return domain.Claim{}, fmt.Errorf("%w: %v", domain.ErrMalformedClaim, err)
	}
	if dec.More() {
		return domain.Claim{}, fmt.Errorf("%w: trailing data", domain.ErrMalformedClaim)
	}
	return claim, nil
}

// MarshalClaim renders a claim the way issuers write it to disk.
func MarshalClaim(claim domain.Claim) ([]byte, error) {
	out, err := json.MarshalIndent(claim, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}
