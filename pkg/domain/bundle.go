package domain

// Bundle is a named, immutable set of methods that can be mixed into any
// number of types.
type Bundle struct {
	name    string
	methods Methods
}

// NewBundle copies methods into a new bundle. Nil implementations are dropped.
func NewBundle(name string, methods Methods) Bundle {
	copied := make(Methods, len(methods))
	for method, fn := range methods {
		if fn == nil {
			continue
		}
		copied[method] = fn
	}
	return Bundle{name: name, methods: copied}
}

// Name returns the bundle name.
func (b Bundle) Name() string {
	return b.name
}

// Names returns the bundle's method names in sorted order.
func (b Bundle) Names() []string {
	return b.methods.Names()
}

// Method returns the implementation of name, if the bundle has one.
func (b Bundle) Method(name string) (Method, bool) {
	fn, ok := b.methods[name]
	return fn, ok
}

// Len reports how many methods the bundle carries.
func (b Bundle) Len() int {
	return len(b.methods)
}

// Methods returns a copy of the bundle's method set.
func (b Bundle) Methods() Methods {
	return b.methods.Clone()
}
