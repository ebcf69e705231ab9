package intercept

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/polisai/polis-compose/pkg/compose"
	"github.com/polisai/polis-compose/pkg/domain"
	"github.com/polisai/polis-compose/pkg/logging"
)

func calculatorType() *compose.Type {
	return compose.Define("calculator", domain.Methods{
		"add": func(_ domain.Object, args ...any) (any, error) {
			return args[0].(int) + args[1].(int), nil
		},
		"subtract": func(_ domain.Object, args ...any) (any, error) {
			return args[0].(int) - args[1].(int), nil
		},
	})
}

func newCalculator(t *testing.T) *compose.Instance {
	t.Helper()
	calc, err := calculatorType().Construct()
	require.NoError(t, err)
	return calc
}

func TestWrapCalculator(t *testing.T) {
	calc := newCalculator(t)
	var lines []string
	console := logging.Console{logging.LevelInfo: func(msg string) { lines = append(lines, msg) }}

	n := Wrap(calc, Logger(console, "calculator"))
	assert.Equal(t, 2, n)

	sum, err := calc.Call("add", 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, sum)

	diff, err := calc.Call("subtract", 3, 7)
	require.NoError(t, err)
	assert.Equal(t, -4, diff)

	assert.Equal(t, []string{
		`intercepted "add" method of calculator`,
		`intercepted "subtract" method of calculator`,
	}, lines)
}

func TestWrapHookSeesArgsBeforeOriginal(t *testing.T) {
	var events []string
	typ := compose.Define("T", domain.Methods{
		"method": func(_ domain.Object, args ...any) (any, error) {
			events = append(events, "body")
			return fmt.Sprint(args...), nil
		},
	})
	inst, err := typ.Construct()
	require.NoError(t, err)

	var hookArgs []any
	var hookMethod string
	var hookSelf domain.Object
	Wrap(inst, func(self domain.Object, args []any, method string) error {
		events = append(events, "hook")
		hookArgs, hookMethod, hookSelf = args, method, self
		return nil
	})

	got, err := inst.Call("method", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "1 2", got)
	assert.Equal(t, []string{"hook", "body"}, events)
	assert.Equal(t, []any{1, 2}, hookArgs)
	assert.Equal(t, "method", hookMethod)
	assert.Same(t, inst, hookSelf)
}

func TestWrapPreservesResultsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.IntRange(-1000, 1000).Draw(t, "a")
		b := rapid.IntRange(-1000, 1000).Draw(t, "b")
		method := rapid.SampledFrom([]string{"add", "subtract"}).Draw(t, "method")

		typ := calculatorType()
		plain, err := typ.Construct()
		if err != nil {
			t.Fatalf("construct: %v", err)
		}
		wrapped, err := typ.Construct()
		if err != nil {
			t.Fatalf("construct: %v", err)
		}

		counter := NewCounter()
		Wrap(wrapped, counter.Hook())

		want, err := plain.Call(method, a, b)
		if err != nil {
			t.Fatalf("plain call: %v", err)
		}
		got, err := wrapped.Call(method, a, b)
		if err != nil {
			t.Fatalf("wrapped call: %v", err)
		}
		if got != want {
			t.Fatalf("wrapped %s(%d, %d) = %v, want %v", method, a, b, got, want)
		}
		calls := counter.Calls()
		if len(calls) != 1 || calls[0].Method != method {
			t.Fatalf("hook calls = %+v", calls)
		}
		if len(calls[0].Args) != 2 || calls[0].Args[0] != a || calls[0].Args[1] != b {
			t.Fatalf("hook args = %v", calls[0].Args)
		}
	})
}

func TestWrapLeavesFieldsUntouchedProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		methods := rapid.SliceOfNDistinct(rapid.StringMatching(`m[a-z]{0,4}`), 0, 6, rapid.ID[string]).Draw(t, "methods")
		fields := rapid.MapOfN(rapid.StringMatching(`f[a-z]{0,4}`), rapid.Int(), 0, 6).Draw(t, "fields")

		table := domain.Methods{}
		for _, name := range methods {
			name := name
			table[name] = func(domain.Object, ...any) (any, error) { return name, nil }
		}
		inst, err := compose.Define("T", table).Construct()
		if err != nil {
			t.Fatalf("construct: %v", err)
		}
		for k, v := range fields {
			inst.Set(k, v)
		}
		before := inst.Fields()

		counter := NewCounter()
		if n := Wrap(inst, counter.Hook()); n != len(methods) {
			t.Fatalf("wrapped %d methods, want %d", n, len(methods))
		}

		for _, name := range methods {
			got, err := inst.Call(name)
			if err != nil || got != name {
				t.Fatalf("call %s = %v, %v", name, got, err)
			}
			if counter.Count(name) != 1 {
				t.Fatalf("hook saw %s %d times", name, counter.Count(name))
			}
		}
		after := inst.Fields()
		if len(after) != len(before) {
			t.Fatalf("fields changed: %v -> %v", before, after)
		}
		for k, v := range before {
			if after[k] != v {
				t.Fatalf("field %s changed: %v -> %v", k, v, after[k])
			}
		}
	})
}

func TestWrapHookErrorAbortsCall(t *testing.T) {
	entered := 0
	inst, err := compose.Define("T", domain.Methods{
		"work": func(domain.Object, ...any) (any, error) {
			entered++
			return "done", nil
		},
	}).Construct()
	require.NoError(t, err)

	stop := errors.New("stop")
	Wrap(inst, func(domain.Object, []any, string) error { return stop })

	got, err := inst.Call("work")
	assert.Nil(t, got)
	assert.Same(t, stop, err)
	assert.Equal(t, 0, entered)
}

func TestWrapPropagatesOriginalError(t *testing.T) {
	boom := errors.New("boom")
	inst, err := compose.Define("T", domain.Methods{
		"fail": func(domain.Object, ...any) (any, error) { return nil, boom },
	}).Construct()
	require.NoError(t, err)

	counter := NewCounter()
	Wrap(inst, counter.Hook())
	_, err = inst.Call("fail")
	assert.Same(t, boom, err)
	assert.Equal(t, 1, counter.Count("fail"))
}

func TestWrapSiblingCallsHitProxyOnce(t *testing.T) {
	inst, err := compose.Define("Widget", domain.Methods{
		"label": func(domain.Object, ...any) (any, error) { return "now", nil },
		"toString": func(self domain.Object, _ ...any) (any, error) {
			label, err := self.Call("label")
			if err != nil {
				return nil, err
			}
			return "widget " + label.(string), nil
		},
	}).Construct()
	require.NoError(t, err)

	counter := NewCounter()
	Wrap(inst, counter.Hook())

	got, err := inst.Call("toString")
	require.NoError(t, err)
	assert.Equal(t, "widget now", got)
	assert.Equal(t, 1, counter.Count("toString"))
	assert.Equal(t, 1, counter.Count("label"))
	assert.Equal(t, []string{"label", "toString"}, counter.Methods())
}

func TestWrapTwiceLayersHooks(t *testing.T) {
	calc := newCalculator(t)
	inner := NewCounter()
	outer := NewCounter()
	Wrap(calc, inner.Hook())
	Wrap(calc, outer.Hook())

	got, err := calc.Call("add", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, got)
	assert.Equal(t, 1, inner.Count("add"))
	assert.Equal(t, 1, outer.Count("add"))
}

func TestWrapDoesNotAffectTypeOrSiblings(t *testing.T) {
	typ := calculatorType()
	wrapped, err := typ.Construct()
	require.NoError(t, err)
	sibling, err := typ.Construct()
	require.NoError(t, err)

	counter := NewCounter()
	Wrap(wrapped, counter.Hook())

	_, err = sibling.Call("add", 1, 1)
	require.NoError(t, err)
	fresh, err := typ.Construct()
	require.NoError(t, err)
	_, err = fresh.Call("subtract", 1, 1)
	require.NoError(t, err)

	assert.Empty(t, counter.Calls())
}

func TestWrapNilHook(t *testing.T) {
	calc := newCalculator(t)
	assert.Equal(t, 2, Wrap(calc, nil))
	got, err := calc.Call("add", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, got)
	assert.Equal(t, 0, Wrap(nil, Nop))
}

func TestWrapHookCannotMutateCallerArgs(t *testing.T) {
	var seen []any
	inst, err := compose.Define("T", domain.Methods{
		"echo": func(_ domain.Object, args ...any) (any, error) {
			seen = args
			return nil, nil
		},
	}).Construct()
	require.NoError(t, err)

	Wrap(inst, func(_ domain.Object, args []any, _ string) error {
		args[0] = "tampered"
		return nil
	})
	_, err = inst.Call("echo", "original")
	require.NoError(t, err)
	assert.Equal(t, []any{"original"}, seen)
}

func TestChain(t *testing.T) {
	var order []string
	record := func(tag string) domain.Hook {
		return func(domain.Object, []any, string) error {
			order = append(order, tag)
			return nil
		}
	}
	stop := errors.New("stop")

	hook := Chain(record("a"), nil, record("b"))
	require.NoError(t, hook(nil, nil, "m"))
	assert.Equal(t, []string{"a", "b"}, order)

	order = nil
	hook = Chain(record("a"), func(domain.Object, []any, string) error { return stop }, record("c"))
	assert.Same(t, stop, hook(nil, nil, "m"))
	assert.Equal(t, []string{"a"}, order)

	assert.NoError(t, Chain()(nil, nil, "m"))
}

func TestDeny(t *testing.T) {
	calc := newCalculator(t)
	Wrap(calc, Deny("read-only calculator", "subtract"))

	_, err := calc.Call("subtract", 3, 1)
	require.Error(t, err)
	assert.True(t, domain.IsCallDenied(err))
	assert.Contains(t, err.Error(), "read-only calculator")

	got, err := calc.Call("add", 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, got)
}

func TestCounterReset(t *testing.T) {
	counter := NewCounter()
	require.NoError(t, counter.Hook()(nil, []any{1}, "a"))
	assert.Len(t, counter.Calls(), 1)
	counter.Reset()
	assert.Empty(t, counter.Calls())
}
