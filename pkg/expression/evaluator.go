// Package expression wraps expr-lang/expr for the step fields that take
// an arbitrary expression: the `if` step's expression condition, the
// `assert` step's expression variant, and the scrollUntil predicate
// stop condition.
package expression

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Program is a compiled expression bound to an env shape.
type Program struct {
	source string
	bc     *vm.Program
}

// Compile parses and type-checks expr against an example env shape.
// Passing a representative env (rather than expr.AllowUndefinedVariables)
// catches typos in step authoring at load time instead of at run time.
func Compile(source string, env map[string]any) (*Program, error) {
	bc, err := expr.Compile(source, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("expression %q: %w", source, err)
	}
	return &Program{source: source, bc: bc}, nil
}

// Eval runs the compiled expression against env and coerces the result
// to bool. Per the accepted contract for if/scrollUntil conditions, a
// non-bool result is a caller programming error, not a runtime one.
func (p *Program) Eval(ctx context.Context, env map[string]any) (bool, error) {
	out, err := expr.Run(p.bc, env)
	if err != nil {
		return false, fmt.Errorf("expression %q: %w", p.source, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not evaluate to bool, got %T", p.source, out)
	}
	return b, nil
}

// Source returns the original expression text.
func (p *Program) Source() string { return p.source }
