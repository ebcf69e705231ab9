package compose

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/polisai/polis-compose/pkg/domain"
)

// Instance is an object created by Type.Construct. It owns its fields and its
// own copy of the type's method table.
type Instance struct {
	id  string
	typ *Type

	mu      sync.RWMutex
	methods domain.Methods
	fields  map[string]any
}

var _ domain.Target = (*Instance)(nil)

func newInstance(t *Type, methods domain.Methods) *Instance {
	return &Instance{
		id:      uuid.NewString(),
		typ:     t,
		methods: methods,
		fields:  make(map[string]any),
	}
}

// ID returns the instance identifier.
func (i *Instance) ID() string {
	return i.id
}

// Type returns the type the instance was constructed from.
func (i *Instance) Type() *Type {
	return i.typ
}

// TypeName returns the name of the instance's type.
func (i *Instance) TypeName() string {
	return i.typ.Name()
}

// Call invokes the named method with the instance as receiver. The table lock
// is released before the method runs, so methods may call siblings.
func (i *Instance) Call(name string, args ...any) (any, error) {
	fn, ok := i.Method(name)
	if !ok {
		return nil, &domain.MethodNotFoundError{Type: i.typ.Name(), Method: name}
	}
	return fn(i, args...)
}

// Get reads a field.
func (i *Instance) Get(field string) (any, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	v, ok := i.fields[field]
	return v, ok
}

// Set writes a field.
func (i *Instance) Set(field string, value any) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.fields[field] = value
}

// Fields returns a copy of the instance fields.
func (i *Instance) Fields() map[string]any {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make(map[string]any, len(i.fields))
	for k, v := range i.fields {
		out[k] = v
	}
	return out
}

// FieldNames lists field names in sorted order.
func (i *Instance) FieldNames() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	names := make([]string, 0, len(i.fields))
	for k := range i.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// MethodNames lists the instance's own methods in sorted order.
func (i *Instance) MethodNames() []string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.methods.Names()
}

// Method returns the implementation currently stored under name.
func (i *Instance) Method(name string) (domain.Method, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	fn, ok := i.methods[name]
	return fn, ok
}

// SetMethod replaces or adds a method on this instance only.
func (i *Instance) SetMethod(name string, fn domain.Method) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if fn == nil {
		delete(i.methods, name)
		return
	}
	i.methods[name] = fn
}

// Responds reports whether the instance has a method called name.
func (i *Instance) Responds(name string) bool {
	_, ok := i.Method(name)
	return ok
}
