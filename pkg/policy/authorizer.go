package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	//nolint:staticcheck // OPA v1 migration pending
	"github.com/open-policy-agent/opa/ast"
	//nolint:staticcheck // OPA v1 migration pending
	"github.com/open-policy-agent/opa/rego"

	"github.com/polisai/polis-compose/pkg/domain"
)

const defaultEntrypoint = "compose/authz"

// Options control Authorizer construction.
type Options struct {
	// Entrypoint is the decision path (e.g. "compose/authz").
	Entrypoint string
	// Modules contains the Rego modules keyed by file name.
	Modules map[string]string
	// Logger receives debug output; nil uses slog.Default().
	Logger *slog.Logger
}

// Input describes a single intercepted call.
type Input struct {
	Type       string
	InstanceID string
	Method     string
	Args       []any
}

// Decision is the outcome of an evaluation.
type Decision struct {
	Allow  bool
	Reason string
}

// Authorizer evaluates call decisions with an embedded OPA instance.
type Authorizer struct {
	moduleOrder   []string
	parsedModules map[string]*ast.Module
	entrypoint    string
	logger        *slog.Logger

	mu      sync.RWMutex
	queries map[string]*rego.PreparedEvalQuery
}

// NewAuthorizer parses the modules and prepares the default entrypoint so
// syntax errors surface at construction.
func NewAuthorizer(ctx context.Context, opts Options) (*Authorizer, error) {
	entry := strings.Trim(strings.TrimSpace(opts.Entrypoint), "/")
	if entry == "" {
		entry = defaultEntrypoint
	}
	if len(opts.Modules) == 0 {
		return nil, errors.New("policy authorizer requires at least one rego module")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	moduleOrder := make([]string, 0, len(opts.Modules))
	for name := range opts.Modules {
		moduleOrder = append(moduleOrder, name)
	}
	sort.Strings(moduleOrder)

	parsed := make(map[string]*ast.Module, len(moduleOrder))
	for _, name := range moduleOrder {
		module, err := ast.ParseModuleWithOpts(name, opts.Modules[name], ast.ParserOptions{RegoVersion: ast.RegoV1})
		if err != nil {
			return nil, fmt.Errorf("parse rego module %q: %w", name, err)
		}
		parsed[name] = module
	}

	a := &Authorizer{
		moduleOrder:   moduleOrder,
		parsedModules: parsed,
		entrypoint:    entry,
		logger:        logger,
		queries:       make(map[string]*rego.PreparedEvalQuery),
	}
	if _, err := a.prepared(ctx, entry); err != nil {
		return nil, fmt.Errorf("compile rego modules: %w", err)
	}
	return a, nil
}

// Entrypoint returns the default decision path.
func (a *Authorizer) Entrypoint() string {
	return a.entrypoint
}

// Evaluate runs the default entrypoint against input. An undefined decision
// denies the call.
func (a *Authorizer) Evaluate(ctx context.Context, input Input) (Decision, error) {
	prepared, err := a.prepared(ctx, a.entrypoint)
	if err != nil {
		return Decision{}, fmt.Errorf("prepare query: %w", err)
	}

	payload := map[string]any{
		"type":        input.Type,
		"instance_id": input.InstanceID,
		"method":      input.Method,
		"args":        sanitizeArgs(input.Args),
	}
	results, err := prepared.Eval(ctx, rego.EvalInput(payload))
	if err != nil {
		return Decision{}, fmt.Errorf("opa decision: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		a.logger.Debug("policy decision undefined", "entrypoint", a.entrypoint, "method", input.Method)
		return Decision{Allow: false, Reason: "no policy decision"}, nil
	}
	return parseDecision(results[0].Expressions[0].Value)
}

// Hook returns an interception hook that evaluates every call. Denials are
// reported as *domain.CallDeniedError; evaluation failures are returned as is.
func (a *Authorizer) Hook(ctx context.Context) domain.Hook {
	return func(self domain.Object, args []any, method string) error {
		input := Input{Method: method, Args: args}
		if d, ok := self.(domain.Described); ok {
			input.Type = d.TypeName()
			input.InstanceID = d.ID()
		}
		decision, err := a.Evaluate(ctx, input)
		if err != nil {
			return err
		}
		if !decision.Allow {
			a.logger.Debug("call denied by policy", "type", input.Type, "method", method, "reason", decision.Reason)
			return &domain.CallDeniedError{Method: method, Reason: decision.Reason}
		}
		return nil
	}
}

func (a *Authorizer) prepared(ctx context.Context, entry string) (*rego.PreparedEvalQuery, error) {
	a.mu.RLock()
	if prepared, ok := a.queries[entry]; ok {
		a.mu.RUnlock()
		return prepared, nil
	}
	a.mu.RUnlock()

	query := "data." + strings.ReplaceAll(entry, "/", ".")
	opts := make([]func(*rego.Rego), 0, len(a.moduleOrder)+1)
	opts = append(opts, rego.Query(query))
	for _, name := range a.moduleOrder {
		opts = append(opts, rego.ParsedModule(a.parsedModules[name]))
	}

	prepared, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	// Another goroutine may have already prepared the query; respect first entry.
	if existing, ok := a.queries[entry]; ok {
		return existing, nil
	}
	a.queries[entry] = &prepared
	return &prepared, nil
}

func parseDecision(value any) (Decision, error) {
	switch v := value.(type) {
	case bool:
		return Decision{Allow: v}, nil
	case map[string]any:
		allow, ok := v["allow"].(bool)
		if !ok {
			return Decision{}, fmt.Errorf("opa decision: allow must be bool, got %T", v["allow"])
		}
		reason, _ := v["reason"].(string)
		return Decision{Allow: allow, Reason: reason}, nil
	default:
		return Decision{}, fmt.Errorf("opa decision: unexpected result type %T", value)
	}
}

// sanitizeArgs keeps JSON-friendly scalars and replaces everything else with
// its Go type name so functions and handles never reach the evaluator.
func sanitizeArgs(args []any) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case nil, bool, string, int, int32, int64, uint, uint32, uint64, float32, float64:
			out[i] = v
		default:
			out[i] = fmt.Sprintf("%T", v)
		}
	}
	return out
}
