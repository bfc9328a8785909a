package badge

import (
	"crypto/ed25519"
	"encoding/hex"

	"github.com/filiksyos/ghostmrr/internal/domain"
	cryptoinfra "github.com/filiksyos/ghostmrr/internal/infra/crypto"
)

// KeypairFromSeedHex rebuilds an issuer identity from a hex Ed25519 seed.
func KeypairFromSeedHex(value string) (domain.Keypair, error) {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return domain.Keypair{}, err
	}
	if len(raw) != ed25519.SeedSize {
		return domain.Keypair{}, domain.ErrCorruptKeypair
	}
	priv := ed25519.NewKeyFromSeed(raw)
	pub := priv.Public().(ed25519.PublicKey)
	return domain.Keypair{PrivateKey: priv, PublicKey: pub, DID: cryptoinfra.DeriveDID(pub)}, nil
}

func GenerateKeypair() (domain.Keypair, error) {
	return cryptoinfra.NewService().GenerateKeypair()
}

// DID is the identifier a claim signed with pub will carry.
func DID(pub ed25519.PublicKey) string {
	return cryptoinfra.DeriveDID(pub)
}
