// Package observable provides a capability bundle that lets any composed
// object publish named events to listeners bound on that same object.
//
// Listener registrations live in a field of the receiving object, so every
// instance has its own listener table.
package observable

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/polisai/polis-compose/pkg/domain"
)

// BundleName is the name the bundle is registered under.
const BundleName = "observable"

// ListenersField is the field holding an object's listener table.
const ListenersField = "observable.listeners"

// Method names installed by the bundle.
const (
	MethodBind      = "bind"
	MethodUnbind    = "unbind"
	MethodFireEvent = "fireEvent"
)

// Listener receives the arguments of a fired event. The receiver is the object
// that fired it.
type Listener func(self domain.Object, args ...any) error

type subscription struct {
	id       string
	listener Listener
}

type listenerTable struct {
	mu     sync.Mutex
	events map[string][]subscription
}

// Bundle returns the observable capability bundle:
//
//	bind(event string, listener Listener) -> subscription id
//	unbind(event string, id string)       -> bool
//	fireEvent(event string, args...)      -> number of listeners notified
func Bundle() domain.Bundle {
	return domain.NewBundle(BundleName, domain.Methods{
		MethodBind:      bind,
		MethodUnbind:    unbind,
		MethodFireEvent: fireEvent,
	})
}

func bind(self domain.Object, args ...any) (any, error) {
	event, err := eventArg(MethodBind, args)
	if err != nil {
		return nil, err
	}
	if len(args) < 2 {
		return nil, fmt.Errorf("%s expects a listener", MethodBind)
	}
	listener, err := listenerArg(args[1])
	if err != nil {
		return nil, err
	}

	table := tableOf(self)
	id := uuid.NewString()
	table.mu.Lock()
	table.events[event] = append(table.events[event], subscription{id: id, listener: listener})
	table.mu.Unlock()
	return id, nil
}

func unbind(self domain.Object, args ...any) (any, error) {
	event, err := eventArg(MethodUnbind, args)
	if err != nil {
		return nil, err
	}
	if len(args) < 2 {
		return nil, fmt.Errorf("%s expects a subscription id", MethodUnbind)
	}
	id, ok := args[1].(string)
	if !ok {
		return nil, fmt.Errorf("%s expects subscription id as string, got %T", MethodUnbind, args[1])
	}

	table := tableOf(self)
	table.mu.Lock()
	defer table.mu.Unlock()
	subs := table.events[event]
	for i, sub := range subs {
		if sub.id != id {
			continue
		}
		remaining := make([]subscription, 0, len(subs)-1)
		remaining = append(remaining, subs[:i]...)
		remaining = append(remaining, subs[i+1:]...)
		table.events[event] = remaining
		return true, nil
	}
	return false, nil
}

func fireEvent(self domain.Object, args ...any) (any, error) {
	event, err := eventArg(MethodFireEvent, args)
	if err != nil {
		return nil, err
	}
	eventArgs := append([]any(nil), args[1:]...)

	table := tableOf(self)
	table.mu.Lock()
	subs := append([]subscription(nil), table.events[event]...)
	table.mu.Unlock()

	for i, sub := range subs {
		if err := sub.listener(self, eventArgs...); err != nil {
			return i, err
		}
	}
	return len(subs), nil
}

func tableOf(self domain.Object) *listenerTable {
	if v, ok := self.Get(ListenersField); ok {
		if table, ok := v.(*listenerTable); ok {
			return table
		}
	}
	table := &listenerTable{events: make(map[string][]subscription)}
	self.Set(ListenersField, table)
	return table
}

func eventArg(method string, args []any) (string, error) {
	if len(args) == 0 {
		return "", fmt.Errorf("%s expects an event name", method)
	}
	event, ok := args[0].(string)
	if !ok || event == "" {
		return "", fmt.Errorf("%s expects event name as non-empty string", method)
	}
	return event, nil
}

func listenerArg(v any) (Listener, error) {
	switch fn := v.(type) {
	case Listener:
		if fn != nil {
			return fn, nil
		}
	case func(domain.Object, ...any) error:
		if fn != nil {
			return fn, nil
		}
	}
	return nil, fmt.Errorf("%s expects listener as observable.Listener, got %T", MethodBind, v)
}
