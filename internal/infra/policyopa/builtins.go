package policyopa

import "github.com/open-policy-agent/opa/ast"

// Group rules compare numbers and format messages; nothing else is callable.
var allowedBuiltins = map[string]struct{}{
	"assign":    {},
	"concat":    {},
	"count":     {},
	"eq":        {},
	"equal":     {},
	"gt":        {},
	"gte":       {},
	"lower":     {},
	"lt":        {},
	"lte":       {},
	"max":       {},
	"min":       {},
	"neq":       {},
	"sprintf":   {},
	"sum":       {},
	"to_number": {},
}

func filterBuiltins(builtins []*ast.Builtin) []*ast.Builtin {
	allowed := make([]*ast.Builtin, 0, len(allowedBuiltins))
	for _, builtin := range builtins {
		if _, ok := allowedBuiltins[builtin.Name]; !ok {
			continue
		}
		allowed = append(allowed, builtin)
	}
	return allowed
}
