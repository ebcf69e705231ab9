package intercept

import (
	"github.com/polisai/polis-compose/pkg/domain"
)

// Wrap replaces every method of target with a proxy that runs onCall first and
// then the implementation it replaced, both with target as receiver. It
// returns the number of methods wrapped. A nil onCall behaves as a no-op.
func Wrap(target domain.Target, onCall domain.Hook) int {
	if target == nil {
		return 0
	}
	if onCall == nil {
		onCall = Nop
	}

	wrapped := 0
	for _, name := range target.MethodNames() {
		original, ok := target.Method(name)
		if !ok || original == nil {
			continue
		}
		target.SetMethod(name, proxy(target, name, original, onCall))
		wrapped++
	}
	return wrapped
}

// proxy closes over the specific implementation it replaces, never the live
// table entry, so a second Wrap layers on top instead of recursing.
func proxy(target domain.Target, name string, original domain.Method, onCall domain.Hook) domain.Method {
	return func(_ domain.Object, args ...any) (any, error) {
		argList := append([]any(nil), args...)
		if err := onCall(target, argList, name); err != nil {
			return nil, err
		}
		return original(target, args...)
	}
}

// Nop is a hook that lets every call through.
func Nop(domain.Object, []any, string) error {
	return nil
}

// Chain composes hooks, running them in order and stopping at the first error.
func Chain(hooks ...domain.Hook) domain.Hook {
	active := make([]domain.Hook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			active = append(active, h)
		}
	}
	if len(active) == 0 {
		return Nop
	}
	return func(self domain.Object, args []any, method string) error {
		for _, h := range active {
			if err := h(self, args, method); err != nil {
				return err
			}
		}
		return nil
	}
}

// Deny returns a hook refusing the named methods.
func Deny(reason string, methods ...string) domain.Hook {
	blocked := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		blocked[m] = struct{}{}
	}
	return func(_ domain.Object, _ []any, method string) error {
		if _, ok := blocked[method]; ok {
			return &domain.CallDeniedError{Method: method, Reason: reason}
		}
		return nil
	}
}
