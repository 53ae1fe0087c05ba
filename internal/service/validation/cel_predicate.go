package validation

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/compliance"
	"github.com/innovabizdevops/innovabiz-iam-compliance/internal/domain/errors"
)

// CELCompiler compiles catalog-defined rule expressions into predicates.
// Expressions see the tenant snapshot and the requirement under
// evaluation and must produce a boolean. Compiled programs are cached by
// expression text.
type CELCompiler struct {
	env   *cel.Env
	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewCELCompiler creates a compiler with the standard environment.
func NewCELCompiler() (*CELCompiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("tenant", cel.DynType),
		cel.Variable("requirement", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &CELCompiler{env: env, cache: make(map[string]cel.Program)}, nil
}

func (c *CELCompiler) program(expr string) (cel.Program, error) {
	c.mu.RLock()
	prg, ok := c.cache[expr]
	c.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile expression: %w", issues.Err())
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build program: %w", err)
	}

	c.mu.Lock()
	c.cache[expr] = prg
	c.mu.Unlock()
	return prg, nil
}

// Compile returns a predicate evaluating the expression against the
// tenant snapshot.
func (c *CELCompiler) Compile(expr string) (Predicate, error) {
	// Compile eagerly so malformed catalog expressions fail at
	// registration, not mid-batch.
	if _, err := c.program(expr); err != nil {
		return nil, err
	}

	return PredicateFunc(func(ctx context.Context, tc *TenantContext, req *compliance.Requirement) (bool, string, error) {
		prg, err := c.program(expr)
		if err != nil {
			return false, "", errors.NewPredicateError(req.PredicateRef, "expression compile failed").WithCause(err)
		}

		snapshot, err := tc.Snapshot(ctx)
		if err != nil {
			return false, "", err
		}

		input := map[string]interface{}{
			"tenant": snapshot,
			"requirement": map[string]interface{}{
				"name":                req.Name,
				"framework":           string(req.FrameworkID),
				"required_auth_level": string(req.RequiredAuthLevel),
				"is_mandatory":        req.IsMandatory,
			},
		}

		out, _, err := prg.Eval(input)
		if err != nil {
			return false, "", errors.NewPredicateError(req.PredicateRef, "expression evaluation failed").WithCause(err)
		}

		result, ok := out.Value().(bool)
		if !ok {
			return false, "", errors.NewPredicateError(req.PredicateRef,
				fmt.Sprintf("expression produced %T, expected bool", out.Value()))
		}

		if result {
			return true, "rule expression satisfied", nil
		}
		return false, "rule expression not satisfied", nil
	}), nil
}

// RegisterExpression compiles an expression and registers it under the
// given predicate reference.
func (c *CELCompiler) RegisterExpression(r *Registry, ref, expr string) error {
	p, err := c.Compile(expr)
	if err != nil {
		return errors.NewPredicateError(ref, "invalid rule expression").WithCause(err)
	}
	r.Register(ref, p)
	return nil
}
