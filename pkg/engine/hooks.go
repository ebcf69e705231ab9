package engine

import (
	"context"
	"fmt"

	"github.com/polisai/polis-compose/pkg/config"
	"github.com/polisai/polis-compose/pkg/domain"
	"github.com/polisai/polis-compose/pkg/intercept"
	"github.com/polisai/polis-compose/pkg/telemetry"
)

// hook resolves interceptor names to one chained hook, in manifest order.
// It returns nil when nothing is configured.
func (e *Engine) hook(ctx context.Context, typeName string, names []string) (domain.Hook, error) {
	if len(names) == 0 {
		return nil, nil
	}

	hooks := make([]domain.Hook, 0, len(names))
	for _, name := range names {
		switch name {
		case config.InterceptLog:
			hooks = append(hooks, intercept.Logger(e.console, typeName))
		case config.InterceptMetrics:
			hooks = append(hooks, telemetry.MeterHook(ctx))
			if e.metrics != nil {
				hooks = append(hooks, e.metrics.Hook())
			}
		case config.InterceptTrace:
			hooks = append(hooks, telemetry.TraceHook(ctx))
		case config.InterceptPolicy:
			if e.authorizer == nil {
				return nil, fmt.Errorf("%w: type %s uses the policy interceptor but no authorizer is configured", domain.ErrConfigInvalid, typeName)
			}
			guard := e.authorizer.Hook(ctx)
			if e.metrics != nil {
				guard = e.metrics.Guard(guard)
			}
			hooks = append(hooks, guard)
		default:
			return nil, fmt.Errorf("%w: unknown interceptor %q", domain.ErrConfigInvalid, name)
		}
	}
	return intercept.Chain(hooks...), nil
}
