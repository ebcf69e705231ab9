package intercept

import (
	"fmt"
	"sort"
	"sync"

	"github.com/polisai/polis-compose/pkg/domain"
	"github.com/polisai/polis-compose/pkg/logging"
)

// Logger returns a hook that reports each call on console at info level.
func Logger(console logging.Console, typeName string) domain.Hook {
	console = console.Normalize()
	return func(_ domain.Object, _ []any, method string) error {
		console.Info(fmt.Sprintf("intercepted %q method of %s", method, typeName))
		return nil
	}
}

// Call is one observation recorded by a Counter.
type Call struct {
	Method string
	Args   []any
}

// Counter records intercepted calls.
type Counter struct {
	mu    sync.Mutex
	calls []Call
}

// NewCounter creates an empty Counter.
func NewCounter() *Counter {
	return &Counter{}
}

// Hook returns the hook that feeds the counter.
func (c *Counter) Hook() domain.Hook {
	return func(_ domain.Object, args []any, method string) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.calls = append(c.calls, Call{Method: method, Args: append([]any(nil), args...)})
		return nil
	}
}

// Calls returns the recorded calls in order.
func (c *Counter) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Call(nil), c.calls...)
}

// Count reports how many calls to method were recorded.
func (c *Counter) Count(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call.Method == method {
			n++
		}
	}
	return n
}

// Methods lists the distinct methods observed, sorted.
func (c *Counter) Methods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	seen := map[string]struct{}{}
	for _, call := range c.calls {
		seen[call.Method] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Reset clears the recorded calls.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
}
