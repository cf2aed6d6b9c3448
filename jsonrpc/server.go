// Package jsonrpc serves a dispatcher over HTTP as a JSON-RPC 2.0 service.
//
// Each JSON-RPC request invokes the service method "RPC.Call" with the call
// envelope as params:
//
//	{
//	    "jsonrpc": "2.0",
//	    "method":  "RPC.Call",
//	    "params":  {"method": "resize", "namespace": "compute", "version": "2.1", "args": {...}},
//	    "id":      1
//	}
//
// The reply is {"result": <serialized result>}. Dispatch failures map to
// JSON-RPC errors: CodeUnsupportedVersion, json2.E_NO_METHOD,
// json2.E_BAD_PARAMS and json2.E_SERVER.
package jsonrpc

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"

	"github.com/bjaus/rpcdispatch"
)

// CodeUnsupportedVersion is the JSON-RPC error code for calls no endpoint
// serves.
const CodeUnsupportedVersion json2.ErrorCode = -32001

// DefaultServiceName is the JSON-RPC service the dispatcher is registered as.
const DefaultServiceName = "RPC"

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-Id"

// Request is the params object of an RPC.Call request.
type Request struct {
	Method    string         `json:"method"`
	Namespace string         `json:"namespace,omitempty"`
	Version   string         `json:"version,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// Response is the result object of an RPC.Call request.
type Response struct {
	Result any `json:"result"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for request and error logs.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithServiceName registers the dispatcher under name instead of
// DefaultServiceName.
func WithServiceName(name string) Option {
	return func(s *Server) {
		s.serviceName = name
	}
}

// Server is an http.Handler exposing a dispatcher over JSON-RPC 2.0.
type Server struct {
	dispatcher  *rpcdispatch.Dispatcher
	rpc         *rpc.Server
	logger      *slog.Logger
	serviceName string
}

// NewServer creates a Server for d.
func NewServer(d *rpcdispatch.Dispatcher, opts ...Option) (*Server, error) {
	s := &Server{
		dispatcher:  d,
		rpc:         rpc.NewServer(),
		logger:      slog.Default(),
		serviceName: DefaultServiceName,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.rpc.RegisterCodec(json2.NewCodec(), "application/json")
	if err := s.rpc.RegisterService(&service{server: s}, s.serviceName); err != nil {
		return nil, err
	}
	return s, nil
}

// ServeHTTP implements http.Handler. Every request gets a correlation id,
// taken from the X-Request-Id header when present.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, id)

	ctx := context.WithValue(r.Context(), requestIDKey{}, id)
	s.rpc.ServeHTTP(w, r.WithContext(ctx))
}

type requestIDKey struct{}

// RequestID returns the correlation id of the JSON-RPC request ctx belongs
// to, or "" outside a request.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// service is the receiver registered with gorilla/rpc.
type service struct {
	server *Server
}

// Call dispatches one call envelope.
func (svc *service) Call(r *http.Request, args *Request, reply *Response) error {
	s := svc.server
	ctx := r.Context()

	if args.Method == "" {
		return &json2.Error{Code: json2.E_BAD_PARAMS, Message: "method is required"}
	}
	if args.Context != nil {
		ctx = rpcdispatch.WithCallContext(ctx, args.Context)
	}

	result, err := s.dispatcher.Dispatch(ctx, rpcdispatch.Call{
		Method:    args.Method,
		Namespace: args.Namespace,
		Version:   args.Version,
		Args:      args.Args,
	})
	if err != nil {
		jerr := toJSONError(err)
		s.logger.DebugContext(ctx, "json-rpc call failed",
			"request_id", RequestID(ctx),
			"method", args.Method,
			"code", int(jerr.Code),
			"error", err,
		)
		return jerr
	}

	reply.Result = result
	return nil
}

// toJSONError maps a dispatch error to a JSON-RPC error.
func toJSONError(err error) *json2.Error {
	var uerr *rpcdispatch.UnsupportedVersionError
	if errors.As(err, &uerr) {
		return &json2.Error{
			Code:    CodeUnsupportedVersion,
			Message: uerr.Error(),
			Data: map[string]string{
				"version":   uerr.Version,
				"namespace": uerr.Namespace,
			},
		}
	}

	var merr *rpcdispatch.NoSuchMethodError
	if errors.As(err, &merr) {
		return &json2.Error{
			Code:    json2.E_NO_METHOD,
			Message: merr.Error(),
			Data:    map[string]string{"method": merr.Method},
		}
	}

	if errors.Is(err, rpcdispatch.ErrInvalidArguments) {
		return &json2.Error{Code: json2.E_BAD_PARAMS, Message: err.Error()}
	}

	return &json2.Error{Code: json2.E_SERVER, Message: err.Error()}
}
