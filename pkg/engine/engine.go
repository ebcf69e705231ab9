package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/polisai/polis-compose/pkg/compose"
	"github.com/polisai/polis-compose/pkg/config"
	"github.com/polisai/polis-compose/pkg/domain"
	"github.com/polisai/polis-compose/pkg/intercept"
	"github.com/polisai/polis-compose/pkg/logging"
	"github.com/polisai/polis-compose/pkg/policy"
	"github.com/polisai/polis-compose/pkg/registry"
	"github.com/polisai/polis-compose/pkg/telemetry"
)

// ConstructionRecorder observes the outcome of every construction.
type ConstructionRecorder interface {
	RecordConstruction(typeName string, duration time.Duration, err error)
}

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Registry   *registry.Registry
	Authorizer *policy.Authorizer
	Metrics    *telemetry.Metrics
	Recorder   ConstructionRecorder
	Console    logging.Console
	Logger     *slog.Logger
}

// TypeInfo describes one assembled type.
type TypeInfo struct {
	Name      string
	Bundles   []string
	Methods   []string
	Intercept []string
}

type entry struct {
	typ       *compose.Type
	intercept []string
}

// Engine builds instances of the types declared in a manifest.
type Engine struct {
	mu         sync.RWMutex
	types      map[string]*entry
	order      []string
	authorizer *policy.Authorizer
	metrics    *telemetry.Metrics
	recorder   ConstructionRecorder
	console    logging.Console
	logger     *slog.Logger
}

// New assembles every type declared in cfg. An unknown bundle, or a policy
// interceptor whose modules cannot be loaded, fails the whole manifest.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil manifest", domain.ErrConfigInvalid)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Console == nil {
		opts.Console = logging.SlogConsole(opts.Logger)
	}
	if opts.Registry == nil {
		opts.Registry = registry.Default(opts.Console)
	}
	if opts.Recorder == nil && opts.Metrics != nil {
		opts.Recorder = opts.Metrics
	}

	e := &Engine{
		types:      make(map[string]*entry, len(cfg.Types)),
		authorizer: opts.Authorizer,
		metrics:    opts.Metrics,
		recorder:   opts.Recorder,
		console:    opts.Console,
		logger:     opts.Logger,
	}

	for _, decl := range cfg.Types {
		typ, err := assemble(opts.Registry, decl)
		if err != nil {
			return nil, fmt.Errorf("failed to assemble type %s: %w", decl.Name, err)
		}
		key := strings.ToLower(decl.Name)
		e.types[key] = &entry{typ: typ, intercept: append([]string(nil), decl.Intercept...)}
		e.order = append(e.order, key)
		e.logger.Debug("assembled type", "type", decl.Name, "bundles", typ.Bundles(), "methods", len(typ.Methods()))
	}
	sort.Strings(e.order)

	if e.authorizer == nil && e.needsPolicy() {
		modules, err := cfg.PolicyModules()
		if err != nil {
			return nil, err
		}
		authz, err := policy.NewAuthorizer(ctx, policy.Options{
			Entrypoint: cfg.Policy.Entrypoint,
			Modules:    modules,
			Logger:     e.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create authorizer: %w", err)
		}
		e.authorizer = authz
	}

	return e, nil
}

func assemble(reg *registry.Registry, decl config.TypeConfig) (*compose.Type, error) {
	var base domain.Methods
	if decl.Base != "" {
		bundle, err := reg.Resolve(decl.Base)
		if err != nil {
			return nil, err
		}
		base = bundle.Methods()
	}
	mixins, err := reg.ResolveAll(decl.Mixins...)
	if err != nil {
		return nil, err
	}
	return compose.Define(decl.Name, base).Mixin(mixins...), nil
}

func (e *Engine) needsPolicy() bool {
	for _, ent := range e.types {
		for _, name := range ent.intercept {
			if name == config.InterceptPolicy {
				return true
			}
		}
	}
	return false
}

func (e *Engine) lookup(name string) (*entry, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.types[strings.ToLower(strings.TrimSpace(name))]
	return ent, ok
}

// Type returns the assembled type named name.
func (e *Engine) Type(name string) (*compose.Type, bool) {
	ent, ok := e.lookup(name)
	if !ok {
		return nil, false
	}
	return ent.typ, true
}

// Types describes every assembled type, sorted by name.
func (e *Engine) Types() []TypeInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	infos := make([]TypeInfo, 0, len(e.order))
	for _, key := range e.order {
		ent := e.types[key]
		infos = append(infos, TypeInfo{
			Name:      ent.typ.Name(),
			Bundles:   ent.typ.Bundles(),
			Methods:   ent.typ.Methods(),
			Intercept: append([]string(nil), ent.intercept...),
		})
	}
	return infos
}

// New constructs an instance of the named type and installs its configured
// interceptors. An initialize failure is returned unchanged.
func (e *Engine) New(ctx context.Context, typeName string, args ...any) (*compose.Instance, error) {
	ent, ok := e.lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("%w: type %q is not declared", domain.ErrConfigInvalid, typeName)
	}

	hook, err := e.hook(ctx, ent.typ.Name(), ent.intercept)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	inst, err := ent.typ.Construct(args...)
	if e.recorder != nil {
		e.recorder.RecordConstruction(ent.typ.Name(), time.Since(start), err)
	}
	if err != nil {
		e.logger.Warn("construction failed", "type", ent.typ.Name(), "error", err)
		return nil, err
	}

	if hook != nil {
		n := intercept.Wrap(inst, hook)
		e.logger.Debug("intercepted instance", "type", ent.typ.Name(), "instance_id", inst.ID(), "methods", n)
	}
	return inst, nil
}

// Call constructs an instance of typeName and invokes one method on it.
func (e *Engine) Call(ctx context.Context, typeName string, initArgs []any, method string, args ...any) (any, error) {
	inst, err := e.New(ctx, typeName, initArgs...)
	if err != nil {
		return nil, err
	}
	return inst.Call(method, args...)
}
