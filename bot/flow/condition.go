package flow

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// EvalCondition evaluates a boolean expression over the current scope using
// a sandboxed expression grammar (comparisons, boolean operators, string and
// arithmetic builtins — no side effects, no arbitrary code). Variables
// resolve from the scope; undefined names evaluate to nil rather than
// failing compilation, so authors can reference variables set on other
// paths.
func EvalCondition(condition string, scope *Scope) (bool, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return true, nil
	}

	env := scope.Values()
	program, err := expr.Compile(condition,
		expr.Env(env),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return false, fmt.Errorf("compile condition %q: %w", condition, err)
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("eval condition %q: %w", condition, err)
	}

	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q returned %T, want bool", condition, out)
	}
	return result, nil
}
