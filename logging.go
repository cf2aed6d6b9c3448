package rpcdispatch

import (
	"context"
	"log/slog"
	"time"
)

// WithLogger installs hooks that log through logger:
//   - successful calls at debug
//   - endpoint failures at error, or debug when marked with Expected
//   - rejected calls at warn
//
// A nil logger installs nothing.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger == nil {
			return
		}

		d.hooks.onSuccess = append(d.hooks.onSuccess, func(ctx context.Context, call Call, target Target, duration time.Duration) {
			logger.DebugContext(ctx, "rpc call succeeded",
				"method", call.Method,
				"namespace", target.Namespace,
				"version", target.Version,
				"duration", duration,
			)
		})

		d.hooks.onFailure = append(d.hooks.onFailure, func(ctx context.Context, call Call, target Target, err error, duration time.Duration) {
			level := slog.LevelError
			if IsExpected(err) {
				level = slog.LevelDebug
			}
			logger.Log(ctx, level, "rpc call failed",
				"method", call.Method,
				"namespace", target.Namespace,
				"version", target.Version,
				"duration", duration,
				"error", err,
			)
		})

		d.hooks.onReject = append(d.hooks.onReject, func(ctx context.Context, call Call, err error) {
			logger.WarnContext(ctx, "rpc call rejected",
				"method", call.Method,
				"namespace", call.Namespace,
				"version", call.version(),
				"error", err,
			)
		})
	}
}
