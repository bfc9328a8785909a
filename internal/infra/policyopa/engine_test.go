package policyopa

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

func TestEngineDeterministic(t *testing.T) {
	engine := newEngine(t)
	input := groupInput(domain.GroupTenMRRClub, 25)

	first, err := engine.EvaluateGroup(context.Background(), input)
	if err != nil {
		t.Fatalf("evaluate first: %v", err)
	}
	second, err := engine.EvaluateGroup(context.Background(), input)
	if err != nil {
		t.Fatalf("evaluate second: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected deterministic policy evaluation")
	}
	if !first.Result.Allow {
		t.Fatalf("expected allow, got deny %v", first.Result.Deny)
	}
	if len(first.Result.Deny) != 0 {
		t.Fatalf("expected empty deny list")
	}
	if first.PolicyHash == "" || first.PolicyHash != engine.PolicyHash() {
		t.Fatalf("expected policy hash to be set")
	}
}

func TestEngineGroupThresholds(t *testing.T) {
	engine := newEngine(t)

	tests := []struct {
		name  string
		input domain.PolicyInput
		allow bool
		code  string
	}{
		{name: "exact numbers at one", input: groupInput(domain.GroupExactNumbers, 1), allow: true},
		{name: "exact numbers at zero", input: groupInput(domain.GroupExactNumbers, 0), code: "GROUP_THRESHOLD"},
		{name: "club at ten", input: groupInput(domain.GroupTenMRRClub, 10), allow: true},
		{name: "club at nine", input: groupInput(domain.GroupTenMRRClub, 9), code: "GROUP_THRESHOLD"},
		{name: "unknown group", input: groupInput("whales", 1_000_000), code: "UNKNOWN_GROUP"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			out, err := engine.EvaluateGroup(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("evaluate: %v", err)
			}
			if out.Result.Allow != tt.allow {
				t.Fatalf("allow = %v, want %v (deny %v)", out.Result.Allow, tt.allow, out.Result.Deny)
			}
			if tt.allow {
				return
			}
			if len(out.Result.Deny) != 1 || out.Result.Deny[0].Code != tt.code {
				t.Fatalf("deny = %v, want code %s", out.Result.Deny, tt.code)
			}
			if out.Result.Deny[0].Message == "" {
				t.Fatalf("expected deny message")
			}
		})
	}
}

func TestEngineFromBundlePath(t *testing.T) {
	dir := t.TempDir()
	regoContent := `package ghostmrr.groups
result := {"allow": true, "deny": []}
`
	if err := os.WriteFile(filepath.Join(dir, "groups.rego"), []byte(regoContent), 0o644); err != nil {
		t.Fatalf("write rego: %v", err)
	}
	engine, err := NewEngineFromBundlePath(context.Background(), dir)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	out, err := engine.EvaluateGroup(context.Background(), groupInput(domain.GroupTenMRRClub, 0))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !out.Result.Allow {
		t.Fatalf("expected override bundle to allow")
	}
	if engine.PolicyHash() == newEngine(t).PolicyHash() {
		t.Fatalf("expected different rules to hash differently")
	}
}

func TestEngineRejectsEmptyBundle(t *testing.T) {
	if _, err := NewEngineFromBundlePath(context.Background(), t.TempDir()); err == nil {
		t.Fatalf("expected empty bundle to be rejected")
	}
}

func TestEngineRejectsImpureBuiltins(t *testing.T) {
	for _, expr := range []string{
		"time.now_ns()",
		`http.send({"method": "get", "url": "https://example.com"})`,
		`rand.intn("seed", 10)`,
	} {
		rejectBuiltin(t, expr)
	}
}

func TestToPolicyResult_DenyWins(t *testing.T) {
	out, err := toPolicyResult(map[string]any{
		"allow": true,
		"deny": []any{
			map[string]any{"code": "Z", "message": "last"},
			map[string]any{"code": "A"},
		},
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Allow {
		t.Fatalf("deny entries must override allow")
	}
	if len(out.Deny) != 2 || out.Deny[0].Code != "A" {
		t.Fatalf("expected sorted deny list, got %v", out.Deny)
	}
	if _, err := toPolicyResult("yes"); err == nil {
		t.Fatalf("expected non-object result to be rejected")
	}
}

func rejectBuiltin(t *testing.T, expr string) {
	t.Helper()
	dir := t.TempDir()
	regoContent := `package ghostmrr.groups
result := {"allow": true, "deny": []} {
  ` + expr + `
}`
	if err := os.WriteFile(filepath.Join(dir, "groups.rego"), []byte(regoContent), 0o644); err != nil {
		t.Fatalf("write rego: %v", err)
	}
	if _, err := NewEngineFromBundlePath(context.Background(), dir); err == nil {
		t.Fatalf("expected %s to be rejected", expr)
	}
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(context.Background())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine
}

func groupInput(group domain.GroupTag, mrr uint64) domain.PolicyInput {
	return domain.PolicyInput{
		Group:   group,
		Metrics: domain.PolicyMetrics{MRR: mrr, Customers: 1},
	}
}
