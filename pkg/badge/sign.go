package badge

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/filiksyos/ghostmrr/internal/domain"
	cryptoinfra "github.com/filiksyos/ghostmrr/internal/infra/crypto"
)

type signOptions struct {
	accountHash string
	now         func() time.Time
}

type SignOption func(*signOptions)

// WithAccountHash binds the claim to an external account fingerprint. The
// hash becomes part of the signed message.
func WithAccountHash(hash string) SignOption {
	return func(o *signOptions) {
		o.accountHash = hash
	}
}

func WithClock(now func() time.Time) SignOption {
	return func(o *signOptions) {
		o.now = now
	}
}

// AccountHash fingerprints a billing account id so it can be bound to claims
// without being disclosed.
func AccountHash(accountID string) string {
	sum := sha256.Sum256([]byte(accountID))
	return hex.EncodeToString(sum[:])
}

// NewMetrics builds a metrics tuple with its tier label filled in.
func NewMetrics(mrr, customers uint64) (domain.Metrics, error) {
	tier, ok := domain.Tier(mrr)
	if !ok {
		return domain.Metrics{}, domain.ErrUnclassifiedRevenue
	}
	return domain.Metrics{MRR: mrr, Customers: customers, Tier: tier}, nil
}

// Sign stamps metrics with the current instant and signs them with keypair.
func Sign(metrics domain.Metrics, keypair domain.Keypair, opts ...SignOption) (domain.Claim, error) {
	options := signOptions{now: time.Now}
	for _, opt := range opts {
		opt(&options)
	}
	if len(keypair.PrivateKey) != ed25519.PrivateKeySize {
		return domain.Claim{}, errors.New("signing private key is required")
	}
	pub, ok := keypair.PrivateKey.Public().(ed25519.PublicKey)
	if !ok {
		return domain.Claim{}, errors.New("signing private key is required")
	}
	if metrics.MRR > MaxSafeInteger || metrics.Customers > MaxSafeInteger {
		return domain.Claim{}, domain.ErrMalformedClaim
	}

	timestamp := domain.FormatTimestamp(options.now())
	bound := options.accountHash != ""
	message := cryptoinfra.CanonicalClaimMessage(metrics, timestamp, options.accountHash, bound)

	service := cryptoinfra.NewService()
	signature, err := service.SignMessage(keypair.PrivateKey, message)
	if err != nil {
		return domain.Claim{}, err
	}

	m := metrics
	claim := domain.Claim{
		DID:       cryptoinfra.DeriveDID(pub),
		Metrics:   &m,
		PublicKey: base64.StdEncoding.EncodeToString(pub),
		Signature: signature,
		Timestamp: timestamp,
	}
	if bound {
		hash := options.accountHash
		claim.AccountHash = &hash
	}
	return claim, nil
}
