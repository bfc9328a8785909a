package policyopa

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"

	"github.com/filiksyos/ghostmrr/internal/domain"
)

const resultQuery = "data.ghostmrr.groups.result"

//go:embed bundle/*.rego
var builtinRules embed.FS

// Engine decides whether a submission may join a group. Rules are compiled
// once; evaluation is pure.
type Engine struct {
	query      rego.PreparedEvalQuery
	policyHash string
}

// NewEngine compiles the built-in group rules.
func NewEngine(ctx context.Context) (*Engine, error) {
	sub, err := fs.Sub(builtinRules, "bundle")
	if err != nil {
		return nil, err
	}
	return compile(ctx, sub)
}

// NewEngineFromBundlePath compiles the .rego files under dir in place of the
// built-in rules.
func NewEngineFromBundlePath(ctx context.Context, dir string) (*Engine, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("policy bundle %s is not a directory", dir)
	}
	return compile(ctx, os.DirFS(dir))
}

func compile(ctx context.Context, fsys fs.FS) (*Engine, error) {
	rules, err := readRules(fsys)
	if err != nil {
		return nil, err
	}
	if len(rules.files) == 0 {
		return nil, errors.New("policy bundle has no .rego files")
	}

	// Calls to anything outside allowedBuiltins fail to compile.
	capabilities := ast.CapabilitiesForThisVersion()
	capabilities.Builtins = filterBuiltins(capabilities.Builtins)

	opts := []func(*rego.Rego){
		rego.Query(resultQuery),
		rego.Capabilities(capabilities),
		rego.StrictBuiltinErrors(true),
	}
	for _, f := range rules.files {
		opts = append(opts, rego.Module(f.name, f.source))
	}
	query, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile group rules: %w", err)
	}
	return &Engine{query: query, policyHash: rules.fingerprint}, nil
}

// PolicyHash fingerprints the compiled rules.
func (e *Engine) PolicyHash() string {
	return e.policyHash
}

func (e *Engine) EvaluateGroup(ctx context.Context, input domain.PolicyInput) (domain.PolicyEvaluation, error) {
	if e == nil {
		return domain.PolicyEvaluation{}, errors.New("policy engine is nil")
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return domain.PolicyEvaluation{}, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return domain.PolicyEvaluation{}, fmt.Errorf("%s is undefined", resultQuery)
	}
	result, err := toPolicyResult(rs[0].Expressions[0].Value)
	if err != nil {
		return domain.PolicyEvaluation{}, err
	}
	return domain.PolicyEvaluation{PolicyHash: e.policyHash, Result: result}, nil
}

// toPolicyResult reads {"allow": bool, "deny": [{"code", "message"}]}. Any
// deny entry wins over allow.
func toPolicyResult(value any) (domain.PolicyResult, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return domain.PolicyResult{}, fmt.Errorf("policy result is %T, want object", value)
	}
	var result domain.PolicyResult
	if allow, ok := obj["allow"].(bool); ok {
		result.Allow = allow
	}
	denies, _ := obj["deny"].([]any)
	for _, raw := range denies {
		entry, ok := raw.(map[string]any)
		if !ok {
			return domain.PolicyResult{}, fmt.Errorf("deny entry is %T, want object", raw)
		}
		code, _ := entry["code"].(string)
		message, _ := entry["message"].(string)
		result.Deny = append(result.Deny, domain.PolicyDeny{Code: code, Message: message})
	}
	if len(result.Deny) > 0 {
		result.Allow = false
		sort.Slice(result.Deny, func(i, j int) bool {
			if result.Deny[i].Code != result.Deny[j].Code {
				return result.Deny[i].Code < result.Deny[j].Code
			}
			return result.Deny[i].Message < result.Deny[j].Message
		})
	}
	return result, nil
}
