package rpcdispatch

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Envelope is a decoded inbound message: the call plus the request context
// that travelled with it.
type Envelope struct {
	Call    Call
	Context map[string]any
}

// CallDecoder turns raw message bytes into an Envelope. Different decoders
// handle different wire formats.
type CallDecoder interface {
	Decode(raw []byte) (Envelope, error)
}

// JSONDecoder returns a CallDecoder for JSON envelopes of the form
//
//	{
//	    "method":    "resize",          // required
//	    "namespace": "compute",         // optional, null means default
//	    "version":   "2.1",             // optional, defaults to 1.0
//	    "args":      {"flavor": "m1"},  // optional object
//	    "context":   {"user": "bob"}    // optional object
//	}
//
// It uses gjson for field access, so unrelated fields are never parsed.
// Every failure wraps ErrInvalidCall.
func JSONDecoder() CallDecoder {
	return jsonDecoder{}
}

type jsonDecoder struct{}

func (jsonDecoder) Decode(raw []byte) (Envelope, error) {
	if !gjson.ValidBytes(raw) {
		return Envelope{}, fmt.Errorf("%w: malformed JSON", ErrInvalidCall)
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return Envelope{}, fmt.Errorf("%w: envelope is not an object", ErrInvalidCall)
	}

	var env Envelope

	method := root.Get("method")
	if method.Type != gjson.String || method.String() == "" {
		return Envelope{}, fmt.Errorf("%w: missing method", ErrInvalidCall)
	}
	env.Call.Method = method.String()

	ns, err := optionalString(root, "namespace")
	if err != nil {
		return Envelope{}, err
	}
	env.Call.Namespace = ns

	version, err := optionalString(root, "version")
	if err != nil {
		return Envelope{}, err
	}
	env.Call.Version = version

	args, err := optionalObject(root, "args")
	if err != nil {
		return Envelope{}, err
	}
	env.Call.Args = args

	ctx, err := optionalObject(root, "context")
	if err != nil {
		return Envelope{}, err
	}
	env.Context = ctx

	return env, nil
}

func optionalString(root gjson.Result, path string) (string, error) {
	r := root.Get(path)
	switch r.Type {
	case gjson.Null:
		return "", nil
	case gjson.String:
		return r.String(), nil
	default:
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidCall, path)
	}
}

func optionalObject(root gjson.Result, path string) (map[string]any, error) {
	r := root.Get(path)
	if !r.Exists() || r.Type == gjson.Null {
		return nil, nil
	}
	if !r.IsObject() {
		return nil, fmt.Errorf("%w: %s must be an object", ErrInvalidCall, path)
	}
	m, _ := r.Value().(map[string]any)
	return m, nil
}
