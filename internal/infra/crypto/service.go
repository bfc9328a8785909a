package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

type Service struct {
	rand io.Reader
}

func NewService() *Service {
	return &Service{rand: rand.Reader}
}

// GenerateKeypair draws a fresh Ed25519 identity.
func (s *Service) GenerateKeypair() (domain.Keypair, error) {
	r := s.rand
	if r == nil {
		r = rand.Reader
	}
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return domain.Keypair{}, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return domain.Keypair{PrivateKey: priv, PublicKey: pub, DID: DeriveDID(pub)}, nil
}

// KeypairFromBase64 decodes a persisted keypair and checks it is internally
// consistent: lengths, public half matching the private key, identifier
// matching the public key.
func KeypairFromBase64(privateB64, publicB64, did string) (domain.Keypair, error) {
	priv, err := base64.StdEncoding.DecodeString(privateB64)
	if err != nil {
		return domain.Keypair{}, fmt.Errorf("invalid private key encoding: %w", err)
	}
	var key ed25519.PrivateKey
	switch len(priv) {
	case ed25519.PrivateKeySize:
		key = ed25519.PrivateKey(priv)
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(priv)
	default:
		return domain.Keypair{}, fmt.Errorf("invalid ed25519 private key length: %d", len(priv))
	}
	pub, err := DecodePublicKey(publicB64)
	if err != nil {
		return domain.Keypair{}, err
	}
	derived, ok := key.Public().(ed25519.PublicKey)
	if !ok || !derived.Equal(pub) {
		return domain.Keypair{}, errors.New("public key does not match private key")
	}
	if did != "" && did != DeriveDID(pub) {
		return domain.Keypair{}, errors.New("did does not match public key")
	}
	return domain.Keypair{PrivateKey: key, PublicKey: pub, DID: DeriveDID(pub)}, nil
}

func DecodePublicKey(publicB64 string) (ed25519.PublicKey, error) {
	pub, err := base64.StdEncoding.DecodeString(publicB64)
	if err != nil {
		return nil, fmt.Errorf("invalid public key encoding: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid ed25519 public key length: %d", len(pub))
	}
	return ed25519.PublicKey(pub), nil
}

func DecodeSignature(signatureB64 string) ([]byte, error) {
	if signatureB64 == "" {
		return nil, errors.New("signature value is required")
	}
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, fmt.Errorf("invalid ed25519 signature length: %d", len(sig))
	}
	return sig, nil
}

// SignMessage returns the base64 Ed25519 signature over message.
func (s *Service) SignMessage(priv ed25519.PrivateKey, message []byte) (string, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("invalid ed25519 private key length: %d", len(priv))
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, message)), nil
}

// VerifySignature checks a raw signature, as returned by DecodeSignature.
func (s *Service) VerifySignature(message, sig []byte, pub ed25519.PublicKey) error {
	if len(pub) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid ed25519 public key length: %d", len(pub))
	}
	if len(sig) != ed25519.SignatureSize {
		return fmt.Errorf("invalid ed25519 signature length: %d", len(sig))
	}
	if !ed25519.Verify(pub, message, sig) {
		return errors.New("signature verification failed")
	}
	return nil
}
