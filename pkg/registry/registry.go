// Package registry stores capability bundles by name so configuration can
// refer to them, and ships the built-in bundles used by the CLI.
package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/polisai/polis-compose/pkg/domain"
)

// Registry maps canonical bundle names and aliases to bundles.
type Registry struct {
	mu      sync.RWMutex
	bundles map[string]domain.Bundle
	aliases map[string]string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		bundles: make(map[string]domain.Bundle),
		aliases: make(map[string]string),
	}
}

// Register stores bundle under its normalized name plus any aliases. A later
// registration under the same name replaces the earlier one.
func (r *Registry) Register(bundle domain.Bundle, aliases ...string) {
	canonical := normalize(bundle.Name())
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundles[canonical] = bundle
	for _, alias := range aliases {
		alias = normalize(alias)
		if alias == "" || alias == canonical {
			continue
		}
		r.aliases[alias] = canonical
	}
}

// Resolve finds a bundle by name or alias, case-insensitively.
func (r *Registry) Resolve(name string) (domain.Bundle, error) {
	key := normalize(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if bundle, ok := r.bundles[key]; ok {
		return bundle, nil
	}
	if canonical, ok := r.aliases[key]; ok {
		if bundle, ok := r.bundles[canonical]; ok {
			return bundle, nil
		}
	}
	return domain.Bundle{}, &domain.UnknownBundleError{Name: name}
}

// ResolveAll resolves names in order, stopping at the first unknown one.
func (r *Registry) ResolveAll(names ...string) ([]domain.Bundle, error) {
	out := make([]domain.Bundle, 0, len(names))
	for _, name := range names {
		bundle, err := r.Resolve(name)
		if err != nil {
			return nil, err
		}
		out = append(out, bundle)
	}
	return out, nil
}

// Names lists canonical bundle names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.bundles))
	for name := range r.bundles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
