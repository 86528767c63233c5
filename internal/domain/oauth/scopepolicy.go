package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
)

// maxScopePolicyExprLength bounds the operator-supplied CEL expression so a
// misconfigured deployment can't wedge the authorize path with a pathological
// program.
const maxScopePolicyExprLength = 1024

// scopePolicyEvalTimeout bounds a single CEL evaluation; Authorize is on the
// hot path and must never block on a runaway expression.
const scopePolicyEvalTimeout = 100 * time.Millisecond

// scopePolicyCostLimit caps the CEL interpreter's declared cost budget per
// evaluation (see google/cel-go's cost estimation), a cheap guard against
// comprehension-heavy expressions.
const scopePolicyCostLimit = 10_000

// CELScopePolicy is a ScopePolicyEvaluator backed by a single CEL boolean
// expression, evaluated against the requesting client_id and the
// space-delimited scope string. It is the implementation behind the
// oauth.scopePolicy config key.
type CELScopePolicy struct {
	prg cel.Program
}

// NewCELScopePolicy compiles expr once at startup. expr sees two string
// variables, client_id and scope, and must evaluate to a bool; e.g.
// `!scope.contains("admin") || client_id == "trusted-client"`.
func NewCELScopePolicy(expr string) (*CELScopePolicy, error) {
	if expr == "" {
		return nil, errors.New("oauth: scope policy expression is empty")
	}
	if len(expr) > maxScopePolicyExprLength {
		return nil, fmt.Errorf("oauth: scope policy expression too long: %d chars (max %d)", len(expr), maxScopePolicyExprLength)
	}

	env, err := cel.NewEnv(
		cel.Variable("client_id", cel.StringType),
		cel.Variable("scope", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("oauth: build cel env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("oauth: compile scope policy: %w", issues.Err())
	}
	if outType := ast.OutputType(); outType != cel.BoolType {
		return nil, fmt.Errorf("oauth: scope policy must evaluate to bool, got %s", outType)
	}

	prg, err := env.Program(ast, cel.EvalOptions(cel.OptOptimize), cel.CostLimit(scopePolicyCostLimit))
	if err != nil {
		return nil, fmt.Errorf("oauth: build scope policy program: %w", err)
	}
	return &CELScopePolicy{prg: prg}, nil
}

// Allow implements ScopePolicyEvaluator.
func (p *CELScopePolicy) Allow(ctx context.Context, clientID, scope string) (bool, error) {
	evalCtx, cancel := context.WithTimeout(ctx, scopePolicyEvalTimeout)
	defer cancel()

	out, _, err := p.prg.ContextEval(evalCtx, map[string]interface{}{
		"client_id": clientID,
		"scope":     scope,
	})
	if err != nil {
		return false, fmt.Errorf("oauth: evaluate scope policy: %w", err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("oauth: scope policy returned non-bool %T", out.Value())
	}
	return allowed, nil
}
