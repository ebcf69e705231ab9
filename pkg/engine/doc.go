// Package engine assembles composed types from a manifest and applies the
// manifest's interceptors to every instance it constructs.
//
// Architecture:
//
// engine.go - Engine (type assembly, construction, instance lookup)
// hooks.go  - Interceptor names resolved to chained hooks
//
// Types are resolved against a registry of named bundles: a declaration's
// base bundle supplies the defining methods and each mixin is applied in
// order, so later mixins win on collision.
package engine
