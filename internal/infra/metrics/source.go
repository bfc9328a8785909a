package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

// StaticSource reports fixed figures, typically taken from CLI flags.
type StaticSource struct {
	MRR       uint64
	Customers uint64
	AccountID string
}

func (s StaticSource) Metrics(ctx context.Context) (domain.Metrics, string, error) {
	if err := ctx.Err(); err != nil {
		return domain.Metrics{}, "", err
	}
	return domain.Metrics{MRR: s.MRR, Customers: s.Customers}, s.AccountID, nil
}

// FileSource reads figures exported by a billing integration:
//
//	{"mrr": 12500, "customers": 87, "tier": "$10k+", "accountId": "acct_..."}
//
// tier is optional and recomputed when absent.
type FileSource struct {
	Path string
}

type fileMetrics struct {
	MRR       *uint64 `json:"mrr"`
	Customers *uint64 `json:"customers"`
	Tier      string  `json:"tier"`
	AccountID string  `json:"accountId"`
}

func (s FileSource) Metrics(ctx context.Context) (domain.Metrics, string, error) {
	if err := ctx.Err(); err != nil {
		return domain.Metrics{}, "", err
	}
	if s.Path == "" {
		return domain.Metrics{}, "", errors.New("metrics file path required")
	}
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return domain.Metrics{}, "", fmt.Errorf("read metrics file: %w", err)
	}
	var parsed fileMetrics
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return domain.Metrics{}, "", fmt.Errorf("parse metrics file: %w", err)
	}
	if parsed.MRR == nil || parsed.Customers == nil {
		return domain.Metrics{}, "", errors.New("metrics file must contain mrr and customers")
	}
	m := domain.Metrics{MRR: *parsed.MRR, Customers: *parsed.Customers, Tier: parsed.Tier}
	if m.Tier != "" {
		if tier, ok := domain.Tier(m.MRR); !ok || tier != m.Tier {
			return domain.Metrics{}, "", fmt.Errorf("tier %q does not match mrr %d", m.Tier, m.MRR)
		}
	}
	return m, parsed.AccountID, nil
}
