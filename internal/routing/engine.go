// Package routing decides role-based navigation: which dashboard a role
// lands on after auth, and which roles may enter a guarded path. Policy is
// Rego so the route table is data with a safe default, not a switch spread
// across handlers.
package routing

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

// Public paths the engine can send a client to.
const (
	PathHome   = "/"
	PathLogin  = "/login"
	PathSignup = "/signup"
	PathFarmer = "/farmer"
	PathBuyer  = "/buyer"
)

const routePolicy = `package frootex.routes

default redirect = "/"

redirect = "/farmer" if {
	input.role == "Farmer"
}

redirect = "/buyer" if {
	input.role == "Buyer"
}

default allow = false

allow if {
	input.path == "/farmer"
	input.role == "Farmer"
}

allow if {
	input.path == "/buyer"
	input.role == "Buyer"
}
`

// Engine evaluates the route policy. An absent or unrecognized role always
// falls back to the home path, never an error.
type Engine struct {
	compiler *ast.Compiler
}

// NewEngine compiles the route policy.
func NewEngine() (*Engine, error) {
	compiler, err := ast.CompileModules(map[string]string{"routes.rego": routePolicy})
	if err != nil {
		return nil, fmt.Errorf("routing: compile policy: %w", err)
	}
	return &Engine{compiler: compiler}, nil
}

// Redirect returns the post-auth destination for role.
func (e *Engine) Redirect(ctx context.Context, role string) (string, error) {
	v, err := e.eval(ctx, "data.frootex.routes.redirect", map[string]any{"role": role})
	if err != nil {
		return PathHome, err
	}
	path, ok := v.(string)
	if !ok || path == "" {
		return PathHome, nil
	}
	return path, nil
}

// Allow reports whether role may enter the guarded path.
func (e *Engine) Allow(ctx context.Context, role, path string) (bool, error) {
	v, err := e.eval(ctx, "data.frootex.routes.allow", map[string]any{"role": role, "path": path})
	if err != nil {
		return false, err
	}
	allowed, ok := v.(bool)
	return ok && allowed, nil
}

func (e *Engine) eval(ctx context.Context, query string, input map[string]any) (any, error) {
	q := rego.New(
		rego.Query(query),
		rego.Compiler(e.compiler),
		rego.Input(input),
	)
	rs, err := q.Eval(ctx)
	if err != nil {
		return nil, fmt.Errorf("routing: eval %s: %w", query, err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, fmt.Errorf("routing: %s returned no result", query)
	}
	return rs[0].Expressions[0].Value, nil
}
