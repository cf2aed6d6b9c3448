package rpcdispatch

import "context"

// Call is one inbound RPC invocation. It is built by a transport for each
// message, consumed once by Dispatch, and then discarded.
type Call struct {
	// Method names the endpoint method to invoke. Required.
	Method string

	// Namespace selects the endpoint namespace. Empty is the default
	// namespace.
	Namespace string

	// Version is the "<major>.<minor>" version the caller speaks. Empty
	// means DefaultVersion.
	Version string

	// Args are the keyword arguments, keyed by parameter name.
	Args map[string]any
}

// version returns the requested version with the default applied.
func (c Call) version() string {
	if c.Version == "" {
		return DefaultVersion
	}
	return c.Version
}

type callContextKey struct{}

// WithCallContext attaches the envelope-level request context a transport
// received alongside the call. The dispatcher passes ctx to endpoints and the
// serializer as-is; endpoints read the values back with CallContext.
func WithCallContext(ctx context.Context, values map[string]any) context.Context {
	return context.WithValue(ctx, callContextKey{}, values)
}

// CallContext returns the request context attached with WithCallContext, or
// nil when there is none.
func CallContext(ctx context.Context) map[string]any {
	values, _ := ctx.Value(callContextKey{}).(map[string]any)
	return values
}
