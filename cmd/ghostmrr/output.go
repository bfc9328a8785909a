package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

func printClaim(w io.Writer, claim domain.Claim) {
	fmt.Fprintf(w, "DID:       %s\n", claim.DID)
	if claim.Metrics != nil {
		fmt.Fprintf(w, "MRR:       $%s\n", formatThousands(claim.Metrics.MRR))
		fmt.Fprintf(w, "Customers: %d\n", claim.Metrics.Customers)
		fmt.Fprintf(w, "Tier:      %s\n", claim.Metrics.Tier)
	}
	fmt.Fprintf(w, "Timestamp: %s\n", claim.Timestamp)
	if claim.HasAccountHash() {
		fmt.Fprintf(w, "Account:   %s\n", shortHash(claim.AccountHashValue()))
	}
}

func printPublicBadge(w io.Writer, b domain.PublicBadge) {
	fmt.Fprintf(w, "DID:    %s\n", b.DID)
	fmt.Fprintf(w, "Tier:   %s\n", b.Metrics.Tier)
	if b.Metrics.MRR != nil {
		fmt.Fprintf(w, "MRR:    $%s\n", formatThousands(*b.Metrics.MRR))
	}
	if len(b.JoinedGroups) > 0 {
		groups := make([]string, 0, len(b.JoinedGroups))
		for _, g := range b.JoinedGroups {
			groups = append(groups, string(g))
		}
		fmt.Fprintf(w, "Groups: %s\n", strings.Join(groups, ", "))
	}
}

func describeRejection(outcome domain.VerificationOutcome) string {
	if outcome.Detail == "" {
		return string(outcome.Reason)
	}
	return string(outcome.Reason) + ": " + outcome.Detail
}

// formatThousands renders 1234567 as 1,234,567.
func formatThousands(v uint64) string {
	s := strconv.FormatUint(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func shortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12] + "…"
}

func trimLower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
