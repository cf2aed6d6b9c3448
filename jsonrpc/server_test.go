package jsonrpc

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/rpc/v2/json2"
	"github.com/stretchr/testify/suite"

	"github.com/bjaus/rpcdispatch"
)

type ServerSuite struct {
	suite.Suite
	http *httptest.Server
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

type addArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

func (s *ServerSuite) SetupTest() {
	target := rpcdispatch.MustTarget(rpcdispatch.WithNamespace("math"), rpcdispatch.WithVersion("1.4"))
	svc := rpcdispatch.NewService(&target)
	rpcdispatch.Register[addArgs, int](svc, "add", rpcdispatch.FuncFunc[addArgs, int](
		func(ctx context.Context, in addArgs) (int, error) {
			return in.A + in.B, nil
		},
	))
	svc.Handle("whoami", func(ctx context.Context, args map[string]any) (any, error) {
		return rpcdispatch.CallContext(ctx)["user"], nil
	})
	svc.Handle("fail", func(ctx context.Context, args map[string]any) (any, error) {
		return nil, errors.New("division by zero")
	})

	server, err := NewServer(rpcdispatch.New([]rpcdispatch.Endpoint{svc}))
	s.Require().NoError(err)
	s.http = httptest.NewServer(server)
}

func (s *ServerSuite) TearDownTest() {
	s.http.Close()
}

func (s *ServerSuite) call(req *Request) (*Response, *http.Response, error) {
	body, err := json2.EncodeClientRequest(DefaultServiceName+".Call", req)
	s.Require().NoError(err)

	resp, err := http.Post(s.http.URL, "application/json", bytes.NewReader(body))
	s.Require().NoError(err)
	defer resp.Body.Close()

	var reply Response
	err = json2.DecodeClientResponse(resp.Body, &reply)
	return &reply, resp, err
}

func (s *ServerSuite) TestDispatchesCall() {
	reply, resp, err := s.call(&Request{
		Method:    "add",
		Namespace: "math",
		Version:   "1.2",
		Args:      map[string]any{"a": 2, "b": 3},
	})

	s.Require().NoError(err)
	s.Assert().Equal(float64(5), reply.Result)
	s.Assert().NotEmpty(resp.Header.Get(RequestIDHeader))
}

func (s *ServerSuite) TestPassesEnvelopeContext() {
	reply, _, err := s.call(&Request{
		Method:    "whoami",
		Namespace: "math",
		Context:   map[string]any{"user": "bob"},
	})

	s.Require().NoError(err)
	s.Assert().Equal("bob", reply.Result)
}

func (s *ServerSuite) TestUnsupportedVersion() {
	_, _, err := s.call(&Request{Method: "add", Namespace: "math", Version: "2.0"})

	var jerr *json2.Error
	s.Require().ErrorAs(err, &jerr)
	s.Assert().Equal(CodeUnsupportedVersion, jerr.Code)
	s.Assert().Equal(map[string]any{"version": "2.0", "namespace": "math"}, jerr.Data)
}

func (s *ServerSuite) TestNamespaceMismatchIsUnsupportedVersion() {
	_, _, err := s.call(&Request{Method: "add", Namespace: "geometry"})

	var jerr *json2.Error
	s.Require().ErrorAs(err, &jerr)
	s.Assert().Equal(CodeUnsupportedVersion, jerr.Code)
}

func (s *ServerSuite) TestNoSuchMethod() {
	_, _, err := s.call(&Request{Method: "subtract", Namespace: "math"})

	var jerr *json2.Error
	s.Require().ErrorAs(err, &jerr)
	s.Assert().Equal(json2.E_NO_METHOD, jerr.Code)
	s.Assert().Equal(map[string]any{"method": "subtract"}, jerr.Data)
}

func (s *ServerSuite) TestInvalidArguments() {
	_, _, err := s.call(&Request{Method: "add", Namespace: "math", Args: map[string]any{"a": "two"}})

	var jerr *json2.Error
	s.Require().ErrorAs(err, &jerr)
	s.Assert().Equal(json2.E_BAD_PARAMS, jerr.Code)
}

func (s *ServerSuite) TestMissingMethod() {
	_, _, err := s.call(&Request{Namespace: "math"})

	var jerr *json2.Error
	s.Require().ErrorAs(err, &jerr)
	s.Assert().Equal(json2.E_BAD_PARAMS, jerr.Code)
}

func (s *ServerSuite) TestEndpointError() {
	_, _, err := s.call(&Request{Method: "fail", Namespace: "math"})

	var jerr *json2.Error
	s.Require().ErrorAs(err, &jerr)
	s.Assert().Equal(json2.E_SERVER, jerr.Code)
	s.Assert().Equal("division by zero", jerr.Message)
}

func (s *ServerSuite) TestKeepsCallerRequestID() {
	body, err := json2.EncodeClientRequest(DefaultServiceName+".Call", &Request{Method: "add", Namespace: "math"})
	s.Require().NoError(err)

	req, err := http.NewRequest(http.MethodPost, s.http.URL, bytes.NewReader(body))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, "abc-123")

	resp, err := http.DefaultClient.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	s.Assert().Equal("abc-123", resp.Header.Get(RequestIDHeader))
}

func TestWithServiceName(t *testing.T) {
	server, err := NewServer(rpcdispatch.New(nil), WithServiceName("Compute"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if server.serviceName != "Compute" {
		t.Errorf("serviceName = %q, want %q", server.serviceName, "Compute")
	}
}

func TestRequestID(t *testing.T) {
	if got := RequestID(context.Background()); got != "" {
		t.Errorf("RequestID outside request = %q, want empty", got)
	}
}
