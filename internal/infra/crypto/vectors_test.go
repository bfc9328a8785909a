package crypto

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

type claimVectors struct {
	PublicKeyBase64  string `json:"public_key_base64"`
	PrivateKeyBase64 string `json:"private_key_base64"`
	DID              string `json:"did"`
	Claims           []struct {
		Name    string       `json:"name"`
		Claim   domain.Claim `json:"claim"`
		Message string       `json:"message"`
	} `json:"claims"`
}

func loadClaimVectors(t *testing.T) claimVectors {
	t.Helper()
	path := filepath.Join("..", "..", "..", "testvectors", "v1", "claims.json")
	var vectors claimVectors
	if err := json.Unmarshal(readFile(t, path), &vectors); err != nil {
		t.Fatalf("unmarshal %s: %v", path, err)
	}
	if len(vectors.Claims) == 0 {
		t.Fatal("no claim vectors found")
	}
	return vectors
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return data
}
