package state

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// DeathRule decides whether a death counts toward failure, given the current flags.
// The rule is a boolean expression over flag names plus the variable "state".
type DeathRule struct {
	source  string
	program *vm.Program
}

// CompileDeathRule compiles source against the declared flag names. An empty
// source yields a rule that always evaluates false.
func CompileDeathRule(source string, flags []string) (*DeathRule, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return &DeathRule{}, nil
	}

	env := make(map[string]any, len(flags)+1)
	for _, f := range flags {
		env[f] = false
	}
	env["state"] = ""

	program, err := expr.Compile(source, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("death rule %q: %w", source, err)
	}
	return &DeathRule{source: source, program: program}, nil
}

// Source returns the expression the rule was compiled from.
func (r *DeathRule) Source() string {
	if r == nil {
		return ""
	}
	return r.source
}

// Eval evaluates the rule. Flags missing from the map read as false.
func (r *DeathRule) Eval(category string, flags map[string]bool, declared []string) bool {
	if r == nil || r.program == nil {
		return false
	}

	env := make(map[string]any, len(declared)+1)
	for _, f := range declared {
		env[f] = flags[f]
	}
	env["state"] = category

	out, err := expr.Run(r.program, env)
	if err != nil {
		return false
	}
	b, _ := out.(bool)
	return b
}
