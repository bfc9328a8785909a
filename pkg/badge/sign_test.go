package badge

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

type claimVectors struct {
	SeedHex string `json:"seed_hex"`
	DID     string `json:"did"`
	Claims  []struct {
		Name  string          `json:"name"`
		Claim json.RawMessage `json:"claim"`
	} `json:"claims"`
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustKeypair(t *testing.T) domain.Keypair {
	t.Helper()
	kp, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("generate keypair: %v", err)
	}
	return kp
}

func mustSign(t *testing.T, metrics domain.Metrics, kp domain.Keypair, opts ...SignOption) domain.Claim {
	t.Helper()
	claim, err := Sign(metrics, kp, opts...)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return claim
}

func TestSign_Vectors(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "testvectors", "v1", "claims.json"))
	if err != nil {
		t.Fatalf("read vectors: %v", err)
	}
	var vectors claimVectors
	if err := json.Unmarshal(data, &vectors); err != nil {
		t.Fatalf("decode vectors: %v", err)
	}
	kp, err := KeypairFromSeedHex(vectors.SeedHex)
	if err != nil {
		t.Fatalf("decode seed: %v", err)
	}
	if kp.DID != vectors.DID {
		t.Fatalf("expected did %s, got %s", vectors.DID, kp.DID)
	}

	for _, vector := range vectors.Claims {
		vector := vector
		t.Run(vector.Name, func(t *testing.T) {
			want, err := ParseClaim(vector.Claim)
			if err != nil {
				t.Fatalf("parse claim: %v", err)
			}
			if outcome := Verify(want); !outcome.Valid {
				t.Fatalf("expected vector to verify, got %s (%s)", outcome.Reason, outcome.Detail)
			}

			signedAt, err := want.SignedAt()
			if err != nil {
				t.Fatalf("parse timestamp: %v", err)
			}
			opts := []SignOption{WithClock(fixedClock(signedAt))}
			if want.HasAccountHash() {
				opts = append(opts, WithAccountHash(want.AccountHashValue()))
			}
			got := mustSign(t, *want.Metrics, kp, opts...)
			if got.Signature != want.Signature || got.Timestamp != want.Timestamp || got.DID != want.DID {
				t.Fatalf("signed claim differs from vector")
			}
		})
	}
}

func TestSignVerify_RoundTrip(t *testing.T) {
	kp := mustKeypair(t)
	for _, mrr := range []uint64{0, 1, 999, 1000, 250000, MaxSafeInteger} {
		metrics := domain.Metrics{MRR: mrr, Customers: mrr / 10, Tier: "$1+"}
		claim := mustSign(t, metrics, kp)
		if outcome := Verify(claim); !outcome.Valid {
			t.Fatalf("mrr=%d: expected valid, got %s", mrr, outcome.Reason)
		}
		bound := mustSign(t, metrics, kp, WithAccountHash(AccountHash("acct_123")))
		if outcome := Verify(bound); !outcome.Valid {
			t.Fatalf("mrr=%d bound: expected valid, got %s", mrr, outcome.Reason)
		}
	}
}

func TestSign_TimestampFormat(t *testing.T) {
	kp := mustKeypair(t)
	at := time.Date(2025, 3, 4, 5, 6, 7, 891_234_567, time.FixedZone("x", 3600))
	claim := mustSign(t, domain.Metrics{MRR: 5, Customers: 1, Tier: "$1+"}, kp, WithClock(fixedClock(at)))
	if claim.Timestamp != "2025-03-04T04:06:07.891Z" {
		t.Fatalf("unexpected timestamp %s", claim.Timestamp)
	}
	if claim.AccountHash != nil {
		t.Fatalf("expected no account hash")
	}
}

func TestVerify_TamperSensitivity(t *testing.T) {
	kp := mustKeypair(t)
	base := mustSign(t, domain.Metrics{MRR: 4200, Customers: 31, Tier: "$1k+"}, kp, WithAccountHash(AccountHash("acct_1")))

	cases := map[string]func(c *domain.Claim){
		"signature bit": func(c *domain.Claim) {
			raw, _ := base64.StdEncoding.DecodeString(c.Signature)
			raw[10] ^= 0x01
			c.Signature = base64.StdEncoding.EncodeToString(raw)
		},
		"mrr":       func(c *domain.Claim) { c.Metrics.MRR++ },
		"customers": func(c *domain.Claim) { c.Metrics.Customers++ },
		"tier":      func(c *domain.Claim) { c.Metrics.Tier = "$1M+" },
		"timestamp": func(c *domain.Claim) { c.Timestamp = "2030-01-01T00:00:00.000Z" },
		"account hash": func(c *domain.Claim) {
			other := AccountHash("acct_2")
			c.AccountHash = &other
		},
	}
	for name, mutate := range cases {
		name, mutate := name, mutate
		t.Run(name, func(t *testing.T) {
			claim := cloneClaim(base)
			mutate(&claim)
			outcome := Verify(claim)
			if outcome.Valid {
				t.Fatalf("expected tampered claim to be rejected")
			}
			if outcome.Reason != domain.RejectSignatureInvalid {
				t.Fatalf("expected signature_invalid, got %s", outcome.Reason)
			}
		})
	}
}

func TestVerify_PublicKeyBitFlip(t *testing.T) {
	kp := mustKeypair(t)
	claim := mustSign(t, domain.Metrics{MRR: 10, Customers: 2, Tier: "$1+"}, kp)
	raw, _ := base64.StdEncoding.DecodeString(claim.PublicKey)
	raw[31] ^= 0x80
	claim.PublicKey = base64.StdEncoding.EncodeToString(raw)
	if outcome := Verify(claim); outcome.Valid {
		t.Fatalf("expected flipped public key to be rejected")
	}
}

func TestVerify_IdentifierBinding(t *testing.T) {
	victim := mustKeypair(t)
	attacker := mustKeypair(t)
	metrics := domain.Metrics{MRR: 90000, Customers: 300, Tier: "$10k+"}

	original := mustSign(t, metrics, victim)
	forged := mustSign(t, metrics, attacker)
	if outcome := Verify(forged); !outcome.Valid {
		t.Fatalf("attacker claim should be valid on its own")
	}
	forged.DID = original.DID

	outcome := Verify(forged)
	if outcome.Valid {
		t.Fatalf("expected substituted key to be rejected")
	}
	if outcome.Reason != domain.RejectIdentifierMismatch {
		t.Fatalf("expected identifier_mismatch, got %s", outcome.Reason)
	}
	if outcome.Err() != domain.ErrIdentifierMismatch {
		t.Fatalf("expected ErrIdentifierMismatch")
	}
}

func TestVerify_CanonicalizationAgreement(t *testing.T) {
	kp := mustKeypair(t)
	claim := mustSign(t, domain.Metrics{MRR: 777, Customers: 9, Tier: "$1+"}, kp, WithAccountHash(AccountHash("acct_bind")))

	if outcome := VerifyWith(claim, VerifyOptions{AccountHashBinding: BindingInclude}); !outcome.Valid {
		t.Fatalf("expected account-hash-aware reconstruction to verify")
	}
	if outcome := VerifyWith(claim, VerifyOptions{AccountHashBinding: BindingOmit}); outcome.Valid {
		t.Fatalf("expected reconstruction without accountHash to fail")
	}

	stripped := cloneClaim(claim)
	stripped.AccountHash = nil
	if outcome := Verify(stripped); outcome.Valid {
		t.Fatalf("expected claim with its account hash removed to fail")
	}

	unbound := mustSign(t, domain.Metrics{MRR: 777, Customers: 9, Tier: "$1+"}, kp)
	if outcome := VerifyWith(unbound, VerifyOptions{AccountHashBinding: BindingOmit}); !outcome.Valid {
		t.Fatalf("expected unbound claim to verify without accountHash")
	}
	attached := cloneClaim(unbound)
	hash := AccountHash("acct_late")
	attached.AccountHash = &hash
	if outcome := Verify(attached); outcome.Valid {
		t.Fatalf("expected account hash attached after signing to fail")
	}
}

func TestVerify_MalformedClaims(t *testing.T) {
	kp := mustKeypair(t)
	base := mustSign(t, domain.Metrics{MRR: 50, Customers: 5, Tier: "$1+"}, kp)

	cases := map[string]func(c *domain.Claim){
		"missing did":        func(c *domain.Claim) { c.DID = "" },
		"missing public key": func(c *domain.Claim) { c.PublicKey = "" },
		"missing signature":  func(c *domain.Claim) { c.Signature = "" },
		"missing metrics":    func(c *domain.Claim) { c.Metrics = nil },
		"missing timestamp":  func(c *domain.Claim) { c.Timestamp = "" },
		"bad key base64":     func(c *domain.Claim) { c.PublicKey = "@@@" },
		"short key":          func(c *domain.Claim) { c.PublicKey = base64.StdEncoding.EncodeToString([]byte("short")) },
		"bad sig base64":     func(c *domain.Claim) { c.Signature = "not-base64!" },
		"short sig":          func(c *domain.Claim) { c.Signature = base64.StdEncoding.EncodeToString(make([]byte, 10)) },
		"unsafe integer":     func(c *domain.Claim) { c.Metrics.MRR = MaxSafeInteger + 1 },
	}
	for name, mutate := range cases {
		name, mutate := name, mutate
		t.Run(name, func(t *testing.T) {
			claim := cloneClaim(base)
			mutate(&claim)
			outcome := Verify(claim)
			if outcome.Valid || outcome.Reason != domain.RejectMalformed {
				t.Fatalf("expected malformed rejection, got valid=%v reason=%s", outcome.Valid, outcome.Reason)
			}
			if outcome.Err() != domain.ErrMalformedClaim {
				t.Fatalf("expected ErrMalformedClaim")
			}
		})
	}
}

func TestParseClaim_Malformed(t *testing.T) {
	inputs := []string{
		`not json`,
		`{"did": 5}`,
		`{"metrics": {"mrr": -1}}`,
		`{"metrics": {"mrr": 1.5}}`,
		`{} {}`,
	}
	for _, input := range inputs {
		if _, err := ParseClaim([]byte(input)); err == nil {
			t.Fatalf("expected %q to be rejected", input)
		}
	}
}

func TestMarshalClaim_RoundTrip(t *testing.T) {
	kp := mustKeypair(t)
	claim := mustSign(t, domain.Metrics{MRR: 3000, Customers: 15, Tier: "$1k+"}, kp, WithAccountHash(AccountHash("acct")))
	data, err := MarshalClaim(claim)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed, err := ParseClaim(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if outcome := Verify(parsed); !outcome.Valid {
		t.Fatalf("expected parsed claim to verify, got %s", outcome.Reason)
	}
}

func TestNewMetrics(t *testing.T) {
	m, err := NewMetrics(12000, 40)
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	if m.Tier != "$10k+" {
		t.Fatalf("unexpected tier %s", m.Tier)
	}
	if _, err := NewMetrics(0, 0); err != domain.ErrUnclassifiedRevenue {
		t.Fatalf("expected ErrUnclassifiedRevenue, got %v", err)
	}
}

func TestSign_RequiresPrivateKey(t *testing.T) {
	if _, err := Sign(domain.Metrics{MRR: 1}, domain.Keypair{}); err == nil {
		t.Fatalf("expected missing key to fail")
	}
	kp := mustKeypair(t)
	kp.PrivateKey = ed25519.PrivateKey(kp.PrivateKey[:10])
	if _, err := Sign(domain.Metrics{MRR: 1}, kp); err == nil {
		t.Fatalf("expected truncated key to fail")
	}
}

func cloneClaim(c domain.Claim) domain.Claim {
	out := c
	if c.Metrics != nil {
		m := *c.Metrics
		out.Metrics = &m
	}
	if c.AccountHash != nil {
		h := *c.AccountHash
		out.AccountHash = &h
	}
	return out
}
