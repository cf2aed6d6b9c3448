package rpcdispatch

import (
	"context"
	"fmt"
	"time"
)

// Dispatcher routes calls to the one endpoint that serves them.
//
// Usage:
//  1. Build endpoints (usually with NewService)
//  2. Create a dispatcher with New, in precedence order
//  3. Dispatch calls, or Process raw envelopes
//
// Dispatcher holds no mutable state after New and is safe for concurrent
// use. Endpoint methods must be safe for concurrent invocation themselves.
type Dispatcher struct {
	registry   *Registry
	serializer Serializer
	decoder    CallDecoder
	hooks      hooks
}

// New creates a Dispatcher over endpoints. The order of endpoints is the
// routing precedence: when two endpoints serve a call, the earlier one is
// used.
//
// Example:
//
//	d := rpcdispatch.New(
//	    []rpcdispatch.Endpoint{v2Service, v1Service},
//	    rpcdispatch.WithSerializer(entitySerializer),
//	    rpcdispatch.WithLogger(logger),
//	)
func New(endpoints []Endpoint, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry:   NewRegistry(endpoints...),
		serializer: NoOpSerializer{},
		decoder:    JSONDecoder(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the dispatcher's endpoint registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Dispatch routes call to an endpoint method and returns its serialized
// result.
//
// The flow:
//  1. Find the first endpoint serving call.Namespace at call.Version
//  2. Resolve call.Method on that endpoint only
//  3. Deserialize each argument value
//  4. Invoke the method with ctx and the deserialized arguments
//  5. Serialize the result, including a nil result
//
// Routing fails with *UnsupportedVersionError and method resolution with
// *NoSuchMethodError; in both cases no argument is deserialized and no
// endpoint code runs. An error returned by the endpoint method is returned
// unchanged. Success hooks run only once the result is serialized; a
// serialize failure runs the failure hooks with its *SerializationError.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) (any, error) {
	requested := call.version()

	version, err := ParseVersion(requested)
	if err != nil {
		return nil, d.reject(ctx, call, &UnsupportedVersionError{
			Version:   requested,
			Namespace: call.Namespace,
			Cause:     err,
		})
	}

	endpoint, target, found := d.registry.Find(call.Namespace, version)
	if !found {
		return nil, d.reject(ctx, call, &UnsupportedVersionError{
			Version:   requested,
			Namespace: call.Namespace,
		})
	}

	method, ok := endpoint.Method(call.Method)
	if !ok || method == nil {
		return nil, d.reject(ctx, call, &NoSuchMethodError{
			Method:    call.Method,
			Namespace: call.Namespace,
			Version:   requested,
		})
	}

	// OnMatch: global hooks, context chains through each
	for _, fn := range d.hooks.onMatch {
		ctx = fn(ctx, call, target)
	}

	args := make(map[string]any, len(call.Args))
	for key, value := range call.Args {
		v, err := d.serializer.DeserializeEntity(ctx, value)
		if err != nil {
			return nil, &SerializationError{Phase: "deserialize", Key: key, Err: err}
		}
		args[key] = v
	}

	d.callOnDispatch(ctx, endpoint, call, target)

	start := time.Now()
	result, err := method(ctx, args)
	duration := time.Since(start)

	if err != nil {
		d.callOnFailure(ctx, endpoint, call, target, err, duration)
		return nil, err
	}

	out, err := d.serializer.SerializeEntity(ctx, result)
	if err != nil {
		serr := &SerializationError{Phase: "serialize", Err: err}
		d.callOnFailure(ctx, endpoint, call, target, serr, duration)
		return nil, serr
	}
	d.callOnSuccess(ctx, endpoint, call, target, duration)
	return out, nil
}

// Process decodes a raw envelope with the configured CallDecoder and
// dispatches it. The envelope's request context, if any, is attached to ctx
// with WithCallContext. Decode failures wrap ErrInvalidCall.
//
// Example:
//
//	// In a message consumer
//	func (c *Consumer) handle(ctx context.Context, body []byte) ([]byte, error) {
//	    result, err := c.dispatcher.Process(ctx, body)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return json.Marshal(result)
//	}
func (d *Dispatcher) Process(ctx context.Context, raw []byte) (any, error) {
	env, err := d.Decode(raw)
	if err != nil {
		return nil, err
	}
	if env.Context != nil {
		ctx = WithCallContext(ctx, env.Context)
	}
	return d.Dispatch(ctx, env.Call)
}

// Decode decodes a raw envelope with the configured CallDecoder.
func (d *Dispatcher) Decode(raw []byte) (Envelope, error) {
	env, err := d.decoder.Decode(raw)
	if err != nil {
		return Envelope{}, fmt.Errorf("decode call: %w", err)
	}
	return env, nil
}

// reject runs the reject hooks and returns err.
func (d *Dispatcher) reject(ctx context.Context, call Call, err error) error {
	for _, fn := range d.hooks.onReject {
		fn(ctx, call, err)
	}
	return err
}

// callOnDispatch calls global and endpoint OnDispatch hooks.
func (d *Dispatcher) callOnDispatch(ctx context.Context, e Endpoint, call Call, target Target) {
	for _, fn := range d.hooks.onDispatch {
		fn(ctx, call, target)
	}
	if h, ok := e.(OnDispatchHook); ok {
		h.OnDispatch(ctx, call)
	}
}

// callOnSuccess calls global and endpoint OnSuccess hooks.
func (d *Dispatcher) callOnSuccess(ctx context.Context, e Endpoint, call Call, target Target, duration time.Duration) {
	for _, fn := range d.hooks.onSuccess {
		fn(ctx, call, target, duration)
	}
	if h, ok := e.(OnSuccessHook); ok {
		h.OnSuccess(ctx, call, duration)
	}
}

// callOnFailure calls global and endpoint OnFailure hooks.
func (d *Dispatcher) callOnFailure(ctx context.Context, e Endpoint, call Call, target Target, err error, duration time.Duration) {
	for _, fn := range d.hooks.onFailure {
		fn(ctx, call, target, err, duration)
	}
	if h, ok := e.(OnFailureHook); ok {
		h.OnFailure(ctx, call, err, duration)
	}
}
