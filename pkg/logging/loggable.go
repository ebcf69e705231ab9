package logging

import (
	"fmt"

	"github.com/polisai/polis-compose/pkg/domain"
)

// LoggableBundleName is the name Loggable bundles are registered under.
const LoggableBundleName = "loggable"

// Loggable returns a bundle with debug, info, warn and error methods writing
// their first argument to console. A nil console discards output.
func Loggable(console Console) domain.Bundle {
	console = console.Normalize()
	method := func(level Level) domain.Method {
		return func(_ domain.Object, args ...any) (any, error) {
			console.Log(level, message(args))
			return nil, nil
		}
	}
	methods := domain.Methods{}
	for _, level := range Levels {
		methods[string(level)] = method(level)
	}
	return domain.NewBundle(LoggableBundleName, methods)
}

func message(args []any) string {
	if len(args) == 0 {
		return ""
	}
	if err, ok := args[0].(error); ok {
		return err.Error()
	}
	return fmt.Sprint(args[0])
}
