package rpcdispatch

import (
	"context"
	"encoding/json"
	"fmt"
)

// Method is a callable RPC method. args holds the deserialized keyword
// arguments of the call; the returned value is passed through the
// serializer before it reaches the caller.
type Method func(ctx context.Context, args map[string]any) (any, error)

// Endpoint is a set of RPC methods served under a Target.
//
// Target returns the namespace and version range the endpoint serves, or nil
// for the default target (default namespace, version 1.0). Method reports
// the method registered under name.
//
// The dispatcher only reads an endpoint; it never mutates it.
type Endpoint interface {
	Target() *Target
	Method(name string) (Method, bool)
}

// Service is the standard Endpoint: a target plus a map of named methods
// built at registration time.
//
// Register every method before handing the service to New. A Service is
// safe for concurrent lookups once registration is complete.
type Service struct {
	target  *Target
	methods map[string]Method
}

// NewService creates a Service that serves target. A nil target serves the
// default target.
//
// Example:
//
//	t := rpcdispatch.MustTarget(rpcdispatch.WithNamespace("compute"), rpcdispatch.WithVersion("2.1"))
//	svc := rpcdispatch.NewService(&t)
//	svc.Handle("resize", resizeMethod)
func NewService(target *Target) *Service {
	return &Service{
		target:  target,
		methods: make(map[string]Method),
	}
}

// Target implements Endpoint.
func (s *Service) Target() *Target { return s.target }

// Method implements Endpoint.
func (s *Service) Method(name string) (Method, bool) {
	m, ok := s.methods[name]
	return m, ok
}

// Handle registers m under name, replacing any earlier registration.
func (s *Service) Handle(name string, m Method) {
	s.methods[name] = m
}

// Methods returns the registered method names in no particular order.
func (s *Service) Methods() []string {
	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	return names
}

// validatable is the interface for argument validation.
// Compatible with github.com/go-ozzo/ozzo-validation/v4.
type validatable interface {
	Validate() error
}

// Func is a typed RPC method. T receives the call's keyword arguments, R is
// the result.
//
// Example:
//
//	type ResizeArgs struct {
//	    InstanceID string `json:"instance_id"`
//	    Flavor     string `json:"flavor"`
//	}
//
//	type resizeFunc struct{ compute Compute }
//
//	func (f *resizeFunc) Call(ctx context.Context, in ResizeArgs) (*Instance, error) {
//	    return f.compute.Resize(ctx, in.InstanceID, in.Flavor)
//	}
type Func[T, R any] interface {
	Call(ctx context.Context, args T) (R, error)
}

// FuncFunc is a function adapter for Func.
type FuncFunc[T, R any] func(ctx context.Context, args T) (R, error)

// Call implements the Func interface.
func (f FuncFunc[T, R]) Call(ctx context.Context, args T) (R, error) {
	return f(ctx, args)
}

// Proc is a typed RPC method without a result, for cast-style calls. The
// caller receives a nil result on success.
type Proc[T any] interface {
	Run(ctx context.Context, args T) error
}

// ProcFunc is a function adapter for Proc.
type ProcFunc[T any] func(ctx context.Context, args T) error

// Run implements the Proc interface.
func (f ProcFunc[T]) Run(ctx context.Context, args T) error {
	return f(ctx, args)
}

// Bind converts a typed Func into a Method. The argument map is decoded into
// T through its JSON form, and T is validated when it implements
// Validate() error. Decode and validation failures wrap ErrInvalidArguments.
//
// This is a package-level function (not a method) due to Go generics
// limitations: methods cannot have type parameters independent of the
// receiver.
func Bind[T, R any](f Func[T, R]) Method {
	return func(ctx context.Context, args map[string]any) (any, error) {
		in, err := bindArgs[T](args)
		if err != nil {
			return nil, err
		}
		return f.Call(ctx, in)
	}
}

// BindProc converts a typed Proc into a Method that returns a nil result.
func BindProc[T any](p Proc[T]) Method {
	return func(ctx context.Context, args map[string]any) (any, error) {
		in, err := bindArgs[T](args)
		if err != nil {
			return nil, err
		}
		return nil, p.Run(ctx, in)
	}
}

// Register binds f and registers it on s under name.
//
// Example:
//
//	rpcdispatch.Register[ResizeArgs, *Instance](svc, "resize", rpcdispatch.FuncFunc[ResizeArgs, *Instance](resize))
func Register[T, R any](s *Service, name string, f Func[T, R]) {
	s.Handle(name, Bind(f))
}

// RegisterProc binds p and registers it on s under name.
func RegisterProc[T any](s *Service, name string, p Proc[T]) {
	s.Handle(name, BindProc(p))
}

func bindArgs[T any](args map[string]any) (T, error) {
	var data T

	raw, err := json.Marshal(args)
	if err != nil {
		return data, fmt.Errorf("%w: encode: %w", ErrInvalidArguments, err)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("%w: decode: %w", ErrInvalidArguments, err)
	}

	if v, ok := any(data).(validatable); ok {
		if err := v.Validate(); err != nil {
			return data, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
		}
	} else if v, ok := any(&data).(validatable); ok {
		if err := v.Validate(); err != nil {
			return data, fmt.Errorf("%w: %w", ErrInvalidArguments, err)
		}
	}

	return data, nil
}
