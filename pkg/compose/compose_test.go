package compose

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/polisai/polis-compose/pkg/domain"
)

func constant(v any) domain.Method {
	return func(domain.Object, ...any) (any, error) { return v, nil }
}

func TestMixinFlyableSwimmable(t *testing.T) {
	flyable := domain.NewBundle("Flyable", domain.Methods{"fly": constant("soaring")})
	swimmable := domain.NewBundle("Swimmable", domain.Methods{"swim": constant("paddling")})

	duck := Define("Duck", nil).Mixin(flyable, swimmable)
	inst, err := duck.Construct()
	require.NoError(t, err)

	got, err := inst.Call("fly")
	require.NoError(t, err)
	assert.Equal(t, "soaring", got)

	got, err = inst.Call("swim")
	require.NoError(t, err)
	assert.Equal(t, "paddling", got)

	assert.Equal(t, []string{"Flyable", "Swimmable"}, duck.Bundles())
	assert.Equal(t, []string{"fly", "swim"}, duck.Methods())
}

func TestMixinLastBundleWins(t *testing.T) {
	tigress := domain.NewBundle("Tigress", domain.Methods{
		"intimidate": constant("hiss & growl!"),
		"socialize":  constant("get bent"),
	})
	lion := domain.NewBundle("Lion", domain.Methods{
		"roar":      constant("rawr!"),
		"socialize": constant("hey, how's everyone doing tonite?"),
	})

	liger, err := Construct(Mixin(Define("Liger", nil), tigress, lion))
	require.NoError(t, err)

	for method, want := range map[string]string{
		"roar":       "rawr!",
		"intimidate": "hiss & growl!",
		"socialize":  "hey, how's everyone doing tonite?",
	} {
		got, err := liger.Call(method)
		require.NoError(t, err)
		assert.Equal(t, want, got, method)
	}
}

func TestMixinOverridesBaseDefinition(t *testing.T) {
	typ := Define("Thing", domain.Methods{"name": constant("base")})
	typ.Mixin(domain.NewBundle("Override", domain.Methods{"name": constant("mixed")}))

	inst, err := typ.Construct()
	require.NoError(t, err)
	got, err := inst.Call("name")
	require.NoError(t, err)
	assert.Equal(t, "mixed", got)
}

func TestMixinLastWriterWinsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		names := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{1,6}`), 1, 6, rapid.ID[string]).Draw(t, "names")
		count := rapid.IntRange(1, 5).Draw(t, "bundles")

		want := map[string]int{}
		bundles := make([]domain.Bundle, 0, count)
		for b := 0; b < count; b++ {
			subset := rapid.SliceOfDistinct(rapid.SampledFrom(names), rapid.ID[string]).Draw(t, fmt.Sprintf("subset%d", b))
			methods := domain.Methods{}
			for _, name := range subset {
				methods[name] = constant(b)
				want[name] = b
			}
			bundles = append(bundles, domain.NewBundle(fmt.Sprintf("B%d", b), methods))
		}

		inst, err := Define("T", nil).Mixin(bundles...).Construct()
		if err != nil {
			t.Fatalf("construct: %v", err)
		}
		for name, idx := range want {
			got, err := inst.Call(name)
			if err != nil {
				t.Fatalf("call %s: %v", name, err)
			}
			if got != idx {
				t.Fatalf("method %s resolved to bundle %v, want %d", name, got, idx)
			}
		}
	})
}

func TestConstructRunsInitializeOnce(t *testing.T) {
	var calls int
	var receiver domain.Object
	var gotArgs []any

	typ := Define("Dog", domain.Methods{
		InitializeMethod: func(self domain.Object, args ...any) (any, error) {
			calls++
			receiver = self
			gotArgs = args
			self.Set("name", args[0])
			return nil, nil
		},
	})

	inst, err := typ.Construct("pizza", 3)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Same(t, inst, receiver)
	assert.Equal(t, []any{"pizza", 3}, gotArgs)

	name, ok := inst.Get("name")
	require.True(t, ok)
	assert.Equal(t, "pizza", name)
}

func TestConstructInitializeProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		x := rapid.Int().Draw(t, "x")
		y := rapid.String().Draw(t, "y")

		calls := 0
		typ := Define("Pair", domain.Methods{
			InitializeMethod: func(self domain.Object, args ...any) (any, error) {
				calls++
				if len(args) != 2 || args[0] != x || args[1] != y {
					return nil, fmt.Errorf("unexpected args %v", args)
				}
				self.Set("x", args[0])
				self.Set("y", args[1])
				return nil, nil
			},
		})
		inst, err := typ.Construct(x, y)
		if err != nil {
			t.Fatalf("construct: %v", err)
		}
		if calls != 1 {
			t.Fatalf("initialize ran %d times", calls)
		}
		if got, _ := inst.Get("x"); got != x {
			t.Fatalf("x = %v, want %v", got, x)
		}
	})
}

func TestConstructWithoutInitialize(t *testing.T) {
	inst, err := Define("Empty", nil).Construct(1, 2, 3)
	require.NoError(t, err)
	assert.Empty(t, inst.Fields())
	assert.NotEmpty(t, inst.ID())
}

func TestConstructPropagatesInitializeError(t *testing.T) {
	boom := errors.New("boom")
	typ := Define("Broken", domain.Methods{
		InitializeMethod: func(domain.Object, ...any) (any, error) { return nil, boom },
	})

	inst, err := typ.Construct()
	assert.Nil(t, inst)
	assert.Same(t, boom, err)
}

func TestCallMissingMethod(t *testing.T) {
	animal := Define("Animal", domain.Methods{"says": constant("nothing")})
	emu, err := animal.Construct()
	require.NoError(t, err)

	_, err = emu.Call("purr")
	require.Error(t, err)
	assert.True(t, domain.IsMethodNotFound(err))

	var notFound *domain.MethodNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Animal", notFound.Type)
	assert.Equal(t, "purr", notFound.Method)
}

func TestInstancesSnapshotTypeTable(t *testing.T) {
	typ := Define("Snap", domain.Methods{"v": constant(1)})
	before, err := typ.Construct()
	require.NoError(t, err)

	typ.Mixin(domain.NewBundle("Later", domain.Methods{"v": constant(2), "w": constant(3)}))
	after, err := typ.Construct()
	require.NoError(t, err)

	got, err := before.Call("v")
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	assert.False(t, before.Responds("w"))

	got, err = after.Call("v")
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	before.SetMethod("v", constant(9))
	got, err = after.Call("v")
	require.NoError(t, err)
	assert.Equal(t, 2, got)
	fn, _ := typ.Lookup("v")
	got, _ = fn(nil)
	assert.Equal(t, 2, got)
}

func TestExtendWithParentImplementation(t *testing.T) {
	says := func(suffix string) domain.Method {
		return func(self domain.Object, _ ...any) (any, error) {
			name, _ := self.Get("name")
			return fmt.Sprintf("%v says %s", name, suffix), nil
		}
	}
	setName := func(self domain.Object, args ...any) (any, error) {
		self.Set("name", args[0])
		return nil, nil
	}

	animal := Define("Animal", domain.Methods{InitializeMethod: setName, "says": says("nothing")})
	cat := Extend(animal, "Cat", domain.Methods{
		"says": says(`"meow"`),
		"purr": constant("prrrrrrrrrrrr"),
	})
	catSays, ok := cat.Lookup("says")
	require.True(t, ok)

	tiger := Extend(cat, "Tiger", domain.Methods{
		InitializeMethod: func(self domain.Object, _ ...any) (any, error) {
			self.Set("name", "simba")
			return nil, nil
		},
		"says": func(self domain.Object, args ...any) (any, error) {
			saying, err := catSays(self, args...)
			if err != nil {
				return nil, err
			}
			name, _ := self.Get("name")
			return fmt.Sprintf("%v because %v is only a cub", saying, name), nil
		},
	})

	kitty, err := cat.Construct("mischief")
	require.NoError(t, err)
	got, err := kitty.Call("says")
	require.NoError(t, err)
	assert.Equal(t, `mischief says "meow"`, got)

	simba, err := tiger.Construct()
	require.NoError(t, err)
	got, err = simba.Call("says")
	require.NoError(t, err)
	assert.Equal(t, `simba says "meow" because simba is only a cub`, got)
	assert.True(t, simba.Responds("purr"))

	emu, err := animal.Construct("shemu the emu")
	require.NoError(t, err)
	got, err = emu.Call("says")
	require.NoError(t, err)
	assert.Equal(t, "shemu the emu says nothing", got)
	_, err = emu.Call("purr")
	assert.True(t, domain.IsMethodNotFound(err))
}

func TestMethodsCallSiblingsThroughReceiver(t *testing.T) {
	typ := Define("Widget", domain.Methods{
		InitializeMethod: func(self domain.Object, args ...any) (any, error) {
			self.Set("name", args[0])
			return nil, nil
		},
		"label": func(self domain.Object, _ ...any) (any, error) {
			name, _ := self.Get("name")
			return fmt.Sprintf("%q", name), nil
		},
		"toString": func(self domain.Object, _ ...any) (any, error) {
			label, err := self.Call("label")
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("widget %v", label), nil
		},
	})

	w, err := typ.Construct("now")
	require.NoError(t, err)
	got, err := w.Call("toString")
	require.NoError(t, err)
	assert.Equal(t, `widget "now"`, got)
}

func TestSetMethodNilRemoves(t *testing.T) {
	inst, err := Define("T", domain.Methods{"a": constant(1)}).Construct()
	require.NoError(t, err)
	inst.SetMethod("a", nil)
	assert.False(t, inst.Responds("a"))
	assert.Empty(t, inst.MethodNames())
}

func TestExtendNilParent(t *testing.T) {
	var typ *Type
	require.NotPanics(t, func() {
		typ = Extend(nil, "Orphan", domain.Methods{"greet": constant("hi")})
	})
	assert.Equal(t, "Orphan", typ.Name())
	assert.Empty(t, typ.Bundles())
	assert.Equal(t, []string{"greet"}, typ.Methods())

	inst, err := typ.Construct()
	require.NoError(t, err)
	got, err := inst.Call("greet")
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}
