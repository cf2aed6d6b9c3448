// Package rpcdispatch provides the request-dispatch core of an RPC runtime.
//
// A Dispatcher receives a call (method name, optional namespace, optional
// version, keyword arguments) and routes it to the one registered endpoint
// able to serve it. It enforces namespace and version compatibility, invokes
// the method with deserialized arguments, and returns the serialized result.
// Transports (HTTP, NATS, in-process) sit in front of it; endpoint business
// logic sits behind it.
//
// # Quick Start
//
// Declare a service with a target and its methods:
//
//	target := rpcdispatch.MustTarget(
//	    rpcdispatch.WithNamespace("compute"),
//	    rpcdispatch.WithVersion("2.1"),
//	)
//
//	svc := rpcdispatch.NewService(&target)
//	svc.Handle("reboot", func(ctx context.Context, args map[string]any) (any, error) {
//	    return nil, hosts.Reboot(ctx, args["host"].(string))
//	})
//
// Create a dispatcher and dispatch calls:
//
//	d := rpcdispatch.New([]rpcdispatch.Endpoint{svc})
//
//	result, err := d.Dispatch(ctx, rpcdispatch.Call{
//	    Method:    "reboot",
//	    Namespace: "compute",
//	    Version:   "2.0",
//	    Args:      map[string]any{"host": "node-7"},
//	})
//
// # Targets and Versions
//
// A Target names the namespace and version an endpoint serves. Versions have
// the form "<major>.<minor>". An endpoint at version X.Y serves any call at
// X.Z with Z <= Y; a different major version never matches. The empty
// namespace is the default namespace, and a call only matches an endpoint in
// exactly its namespace.
//
// An endpoint without a target serves the default namespace at version 1.0.
//
// Targets also carry Topic, Server, Exchange and Fanout for transports.
// The dispatcher ignores them.
//
// # Routing
//
// Endpoints are given to New in precedence order. For each call the
// dispatcher takes the first endpoint whose target is compatible; later
// endpoints are never consulted, even when they would also match. Only then
// is the method looked up, and only on that endpoint:
//
//	d := rpcdispatch.New([]rpcdispatch.Endpoint{v3, v1})
//
//	// version 3.2 goes to v3 (3.4); version 1.0 goes to v1 (1.5)
//
// # Errors
//
// Routing failures are typed and never swallowed:
//
//   - *UnsupportedVersionError (errors.Is ErrUnsupportedVersion): no endpoint
//     serves the namespace and version, including an empty registry
//   - *NoSuchMethodError (errors.Is ErrNoSuchMethod): the matched endpoint has
//     no such method
//
// A rejected call never runs endpoint code or the deserializer. Errors
// returned by endpoint methods reach the caller unchanged. Endpoints can mark
// errors that are part of their contract with Expected; the logging hooks
// then report them at debug level.
//
// # Serializers
//
// A Serializer transforms values at the RPC boundary. DeserializeEntity runs
// on every argument value before invocation; SerializeEntity runs on the
// result, including a nil result, after invocation. Without WithSerializer
// the dispatcher uses NoOpSerializer.
//
// # Typed Methods
//
// Bind, Register and RegisterProc turn typed functions into methods. The
// argument map is decoded into the argument struct and validated when the
// struct implements Validate() error:
//
//	type RebootArgs struct {
//	    Host string `json:"host"`
//	}
//
//	rpcdispatch.RegisterProc[RebootArgs](svc, "reboot", rpcdispatch.ProcFunc[RebootArgs](
//	    func(ctx context.Context, in RebootArgs) error {
//	        return hosts.Reboot(ctx, in.Host)
//	    },
//	))
//
// # Raw Envelopes
//
// Process decodes a raw message with a CallDecoder (JSONDecoder by default)
// and dispatches it. The envelope's "context" object is attached to the Go
// context; endpoints read it with CallContext.
//
// # Hooks
//
// Hooks provide observability without coupling to a logging or metrics
// system:
//
//	d := rpcdispatch.New(endpoints,
//	    rpcdispatch.WithLogger(logger),
//	    rpcdispatch.WithOnSuccess(func(ctx context.Context, call rpcdispatch.Call, t rpcdispatch.Target, d time.Duration) {
//	        metrics.Timing("rpc.success", d)
//	    }),
//	)
//
// Endpoints can implement OnDispatchHook, OnSuccessHook and OnFailureHook to
// add endpoint-specific behavior; these run after the global hooks.
//
// # Thread Safety
//
// Dispatcher is safe for concurrent use. It holds no mutable state after New.
// Endpoint methods are responsible for their own concurrency safety, and
// services must be fully registered before they are passed to New.
package rpcdispatch
