package domain

import "sort"

// Method is a callable property. The receiver is always passed explicitly so
// a method reads and writes the state of the object it was called on.
type Method func(self Object, args ...any) (any, error)

// Methods maps method names to implementations.
type Methods map[string]Method

// Clone returns a shallow copy of the method set.
func (m Methods) Clone() Methods {
	out := make(Methods, len(m))
	for name, fn := range m {
		out[name] = fn
	}
	return out
}

// Names returns the method names in sorted order.
func (m Methods) Names() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Object is the receiver every Method is invoked with.
type Object interface {
	// Call dispatches a method by name through the object's method table.
	Call(name string, args ...any) (any, error)
	// Get reads a field.
	Get(field string) (any, bool)
	// Set writes a field.
	Set(field string, value any)
}

// Target is an object whose own method table may be rewritten in place.
type Target interface {
	Object
	// MethodNames lists the object's own methods in sorted order.
	MethodNames() []string
	// Method returns the current implementation stored under name.
	Method(name string) (Method, bool)
	// SetMethod replaces the implementation stored under name.
	SetMethod(name string, fn Method)
}

// Hook observes a call before it runs. Returning an error aborts the call.
type Hook func(self Object, args []any, method string) error

// Described is implemented by objects that can report their identity to hooks.
type Described interface {
	ID() string
	TypeName() string
}
