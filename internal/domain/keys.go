package domain

import (
	"crypto/ed25519"
	"encoding/base64"
)

// Keypair is an issuer's long-lived Ed25519 identity.
type Keypair struct {
	PrivateKey ed25519.PrivateKey
	PublicKey  ed25519.PublicKey
	DID        string
}

func (k Keypair) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(k.PublicKey)
}

func (k Keypair) PrivateKeyBase64() string {
	return base64.StdEncoding.EncodeToString(k.PrivateKey)
}
