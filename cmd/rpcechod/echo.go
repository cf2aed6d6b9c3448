package main

import (
	"context"
	"errors"

	"github.com/bjaus/rpcdispatch"
)

type echoArgs struct {
	Message string `json:"message"`
}

func (a echoArgs) Validate() error {
	if a.Message == "" {
		return errors.New("message is required")
	}
	return nil
}

// newEchoService returns the endpoint rpcechod serves:
//   - echo(message) returns message
//   - ping() returns "pong"
//   - whoami() returns the "user" field of the request context
func newEchoService(target rpcdispatch.Target) *rpcdispatch.Service {
	svc := rpcdispatch.NewService(&target)

	rpcdispatch.Register[echoArgs, string](svc, "echo", rpcdispatch.FuncFunc[echoArgs, string](
		func(ctx context.Context, in echoArgs) (string, error) {
			return in.Message, nil
		},
	))

	svc.Handle("ping", func(ctx context.Context, args map[string]any) (any, error) {
		return "pong", nil
	})

	svc.Handle("whoami", func(ctx context.Context, args map[string]any) (any, error) {
		user, ok := rpcdispatch.CallContext(ctx)["user"]
		if !ok {
			return nil, rpcdispatch.Expected(errors.New("no user in request context"))
		}
		return user, nil
	})

	return svc
}
