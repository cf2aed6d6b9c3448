package rpcdispatch

import (
	"context"
	"time"
)

// OnMatchFunc is called after a call has been routed to an endpoint and the
// method resolved. Use this to enrich the context with logging fields or
// trace spans. The returned context is used for the rest of the call.
type OnMatchFunc func(ctx context.Context, call Call, target Target) context.Context

// OnDispatchFunc is called just before the endpoint method executes.
type OnDispatchFunc func(ctx context.Context, call Call, target Target)

// OnSuccessFunc is called after the endpoint method returns without error
// and its result has been serialized.
type OnSuccessFunc func(ctx context.Context, call Call, target Target, duration time.Duration)

// OnFailureFunc is called after the endpoint method returns an error, or
// when its result cannot be serialized.
type OnFailureFunc func(ctx context.Context, call Call, target Target, err error, duration time.Duration)

// OnRejectFunc is called when a call is rejected before any endpoint runs:
// err is an *UnsupportedVersionError or a *NoSuchMethodError. Reject hooks
// observe; the rejection is returned to the caller regardless.
type OnRejectFunc func(ctx context.Context, call Call, err error)

// hooks holds all configured hook functions.
type hooks struct {
	onMatch    []OnMatchFunc
	onDispatch []OnDispatchFunc
	onSuccess  []OnSuccessFunc
	onFailure  []OnFailureFunc
	onReject   []OnRejectFunc
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSerializer sets the serializer used around argument and result
// passing. A nil serializer is the same as NoOpSerializer.
func WithSerializer(s Serializer) Option {
	return func(d *Dispatcher) {
		if s == nil {
			s = NoOpSerializer{}
		}
		d.serializer = s
	}
}

// WithDecoder sets the decoder Process uses for raw envelopes. A nil
// decoder keeps JSONDecoder.
func WithDecoder(dec CallDecoder) Option {
	return func(d *Dispatcher) {
		if dec != nil {
			d.decoder = dec
		}
	}
}

// WithOnMatch adds a hook called after routing and method resolution.
// Multiple hooks are called in order, with context chaining through each.
//
// Example:
//
//	rpcdispatch.WithOnMatch(func(ctx context.Context, call rpcdispatch.Call, t rpcdispatch.Target) context.Context {
//	    return trace.ContextWithSpan(ctx, startSpan(call.Method))
//	})
func WithOnMatch(fn OnMatchFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onMatch = append(d.hooks.onMatch, fn)
	}
}

// WithOnDispatch adds a hook called just before the endpoint method runs.
// Multiple hooks are called in order.
func WithOnDispatch(fn OnDispatchFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onDispatch = append(d.hooks.onDispatch, fn)
	}
}

// WithOnSuccess adds a hook called after the endpoint method succeeds.
// Multiple hooks are called in order.
//
// Example:
//
//	rpcdispatch.WithOnSuccess(func(ctx context.Context, call rpcdispatch.Call, t rpcdispatch.Target, d time.Duration) {
//	    metrics.Timing("rpc.success", d, "method:"+call.Method)
//	})
func WithOnSuccess(fn OnSuccessFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onSuccess = append(d.hooks.onSuccess, fn)
	}
}

// WithOnFailure adds a hook called after the endpoint method fails.
// Multiple hooks are called in order.
func WithOnFailure(fn OnFailureFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onFailure = append(d.hooks.onFailure, fn)
	}
}

// WithOnReject adds a hook called when a call is rejected with
// UnsupportedVersion or NoSuchMethod. Multiple hooks are called in order.
//
// Example:
//
//	rpcdispatch.WithOnReject(func(ctx context.Context, call rpcdispatch.Call, err error) {
//	    logger.Warn("rpc rejected", "method", call.Method, "error", err)
//	})
func WithOnReject(fn OnRejectFunc) Option {
	return func(d *Dispatcher) {
		d.hooks.onReject = append(d.hooks.onReject, fn)
	}
}

// OnDispatchHook is an optional interface that endpoints can implement to
// add endpoint-specific pre-dispatch behavior. Called after global
// OnDispatch hooks.
type OnDispatchHook interface {
	OnDispatch(ctx context.Context, call Call)
}

// OnSuccessHook is an optional interface that endpoints can implement to add
// endpoint-specific behavior on success. Called after global OnSuccess hooks.
type OnSuccessHook interface {
	OnSuccess(ctx context.Context, call Call, duration time.Duration)
}

// OnFailureHook is an optional interface that endpoints can implement to add
// endpoint-specific behavior on failure. Called after global OnFailure hooks.
type OnFailureHook interface {
	OnFailure(ctx context.Context, call Call, err error, duration time.Duration)
}
