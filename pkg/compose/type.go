package compose

import (
	"sync"

	"github.com/polisai/polis-compose/pkg/domain"
)

// InitializeMethod is invoked by Construct when a type defines it.
const InitializeMethod = "initialize"

// Type is a composed object definition.
type Type struct {
	name    string
	mu      sync.RWMutex
	methods domain.Methods
	bundles []string
}

// Define creates a type whose method table starts as a copy of base.
func Define(name string, base domain.Methods) *Type {
	methods := make(domain.Methods, len(base))
	for method, fn := range base {
		if fn == nil {
			continue
		}
		methods[method] = fn
	}
	return &Type{name: name, methods: methods}
}

// Extend creates a new type from parent's merged method table with overrides
// applied on top. The parent is not modified and later changes to it are not
// seen by the new type. A nil parent behaves as an empty base.
func Extend(parent *Type, name string, overrides domain.Methods) *Type {
	if parent == nil {
		t := Define(name, nil)
		t.install(overrides)
		return t
	}
	t := Define(name, parent.snapshot())
	t.bundles = parent.Bundles()
	t.install(overrides)
	return t
}

// Mixin installs each bundle's methods on t, in order.
func Mixin(t *Type, bundles ...domain.Bundle) *Type {
	return t.Mixin(bundles...)
}

// Mixin installs each bundle's methods in order. An existing method of the
// same name is overwritten; the last bundle wins.
func (t *Type) Mixin(bundles ...domain.Bundle) *Type {
	for _, bundle := range bundles {
		t.install(bundle.Methods())
		t.mu.Lock()
		t.bundles = append(t.bundles, bundle.Name())
		t.mu.Unlock()
	}
	return t
}

// Construct creates an instance of t.
func Construct(t *Type, args ...any) (*Instance, error) {
	return t.Construct(args...)
}

// Construct allocates an instance backed by the type's merged method table
// and runs its initialize method, if any, with args. An initialize failure is
// returned unchanged and no instance is produced.
func (t *Type) Construct(args ...any) (*Instance, error) {
	inst := newInstance(t, t.snapshot())
	if _, ok := inst.Method(InitializeMethod); ok {
		if _, err := inst.Call(InitializeMethod, args...); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// Name returns the type name.
func (t *Type) Name() string {
	return t.name
}

// Methods lists the merged method names in sorted order.
func (t *Type) Methods() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.methods.Names()
}

// Bundles lists the names of the bundles mixed in, in composition order.
func (t *Type) Bundles() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.bundles...)
}

// Lookup returns the implementation the type currently resolves name to.
// Overrides installed by Extend use it to reach a parent implementation.
func (t *Type) Lookup(name string) (domain.Method, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	fn, ok := t.methods[name]
	return fn, ok
}

// Responds reports whether instances of t will have a method called name.
func (t *Type) Responds(name string) bool {
	_, ok := t.Lookup(name)
	return ok
}

func (t *Type) install(methods domain.Methods) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, fn := range methods {
		if fn == nil {
			continue
		}
		t.methods[name] = fn
	}
}

func (t *Type) snapshot() domain.Methods {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.methods.Clone()
}
