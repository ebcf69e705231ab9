package registry

import (
	"fmt"
	"math"

	"github.com/polisai/polis-compose/pkg/compose"
	"github.com/polisai/polis-compose/pkg/domain"
	"github.com/polisai/polis-compose/pkg/logging"
	"github.com/polisai/polis-compose/pkg/observable"
)

// Default returns a registry holding the built-in bundles. Loggable writes to
// console.
func Default(console logging.Console) *Registry {
	r := New()
	r.Register(Flyable(), "fly")
	r.Register(Swimmable(), "swim")
	r.Register(logging.Loggable(console), "log")
	r.Register(observable.Bundle(), "events")
	r.Register(Calculator(), "calc")
	r.Register(Dog())
	r.Register(Lion())
	r.Register(Tigress())
	return r
}

// Flyable provides fly.
func Flyable() domain.Bundle {
	return domain.NewBundle("flyable", domain.Methods{"fly": constant("soaring")})
}

// Swimmable provides swim.
func Swimmable() domain.Bundle {
	return domain.NewBundle("swimmable", domain.Methods{"swim": constant("paddling")})
}

// Calculator provides add and subtract over numbers.
func Calculator() domain.Bundle {
	return domain.NewBundle("calculator", domain.Methods{
		"add":      arithmetic("add", addInt, func(a, b float64) float64 { return a + b }),
		"subtract": arithmetic("subtract", subInt, func(a, b float64) float64 { return a - b }),
	})
}

// Dog is a base definition expecting the loggable and observable bundles:
// speak logs at info level and fires a "speak" event with the dog's name and
// sound.
func Dog() domain.Bundle {
	return domain.NewBundle("dog", domain.Methods{
		compose.InitializeMethod: func(self domain.Object, args ...any) (any, error) {
			if len(args) > 0 {
				self.Set("name", args[0])
			}
			return nil, nil
		},
		"speak": func(self domain.Object, _ ...any) (any, error) {
			const sound = "arf!"
			name, _ := self.Get("name")
			if _, err := self.Call("info", fmt.Sprintf("%v is about to make the sound %s", name, sound)); err != nil {
				return nil, err
			}
			if _, err := self.Call(observable.MethodFireEvent, "speak", name, sound); err != nil {
				return nil, err
			}
			return sound, nil
		},
	})
}

// Lion provides roar and socialize.
func Lion() domain.Bundle {
	return domain.NewBundle("lion", domain.Methods{
		"roar":      constant("rawr!"),
		"socialize": constant("hey, how's everyone doing tonite?"),
	})
}

// Tigress provides intimidate and socialize.
func Tigress() domain.Bundle {
	return domain.NewBundle("tigress", domain.Methods{
		"intimidate": constant("hiss & growl!"),
		"socialize":  constant("get bent"),
	})
}

func constant(v any) domain.Method {
	return func(domain.Object, ...any) (any, error) { return v, nil }
}

func arithmetic(name string, intOp func(a, b int64) (int64, bool), op func(a, b float64) float64) domain.Method {
	return func(_ domain.Object, args ...any) (any, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("%s expects 2 arguments, got %d", name, len(args))
		}
		ai, aInt := args[0].(int)
		bi, bInt := args[1].(int)
		if aInt && bInt {
			result, ok := intOp(int64(ai), int64(bi))
			if !ok || result > math.MaxInt || result < math.MinInt {
				return nil, fmt.Errorf("%s: integer overflow", name)
			}
			return int(result), nil
		}
		a, err := number(name, args[0])
		if err != nil {
			return nil, err
		}
		b, err := number(name, args[1])
		if err != nil {
			return nil, err
		}
		return op(a, b), nil
	}
}

func addInt(a, b int64) (int64, bool) {
	c := a + b
	return c, (c > a) == (b > 0)
}

func subInt(a, b int64) (int64, bool) {
	c := a - b
	return c, (c < a) == (b > 0)
}

func number(method string, v any) (float64, error) {
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("%s expects numeric arguments, got %T", method, v)
	}
}
