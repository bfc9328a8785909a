package crypto

import (
	"crypto/ed25519"
	"encoding/base64"
)

const (
	DIDPrefix = "did:key:z"
	// didKeyChars is how much of the base64 public key the identifier keeps.
	didKeyChars = 32
)

// DeriveDID computes the self-certifying identifier for a public key.
func DeriveDID(pub ed25519.PublicKey) string {
	return DeriveDIDFromBase64(base64.StdEncoding.EncodeToString(pub))
}

// DeriveDIDFromBase64 works on the encoded key as carried in a claim, so the
// binding check compares exactly what the issuer hashed.
func DeriveDIDFromBase64(publicKeyB64 string) string {
	if len(publicKeyB64) > didKeyChars {
		publicKeyB64 = publicKeyB64[:didKeyChars]
	}
	return DIDPrefix + publicKeyB64
}
