package rpcdispatch

import (
	"fmt"
	"strings"
)

// Target describes a routable identity. Namespace and Version take part in
// dispatch matching; Topic, Server, Exchange and Fanout are carried for
// transports and never consulted by the dispatcher.
//
// The empty Namespace is the default namespace.
type Target struct {
	Namespace string
	Version   string

	Topic    string
	Server   string
	Exchange string
	Fanout   bool
}

// TargetOption configures a Target built with NewTarget.
type TargetOption func(*Target)

// WithNamespace sets the target namespace.
func WithNamespace(ns string) TargetOption {
	return func(t *Target) { t.Namespace = ns }
}

// WithVersion sets the target version. It must have the form
// "<major>.<minor>".
func WithVersion(v string) TargetOption {
	return func(t *Target) { t.Version = v }
}

// WithTopic sets the transport topic.
func WithTopic(topic string) TargetOption {
	return func(t *Target) { t.Topic = topic }
}

// WithServer sets the transport server name.
func WithServer(server string) TargetOption {
	return func(t *Target) { t.Server = server }
}

// WithExchange sets the transport exchange.
func WithExchange(exchange string) TargetOption {
	return func(t *Target) { t.Exchange = exchange }
}

// WithFanout marks the target as receiving broadcast casts.
func WithFanout() TargetOption {
	return func(t *Target) { t.Fanout = true }
}

// DefaultTarget returns the target an endpoint serves when it declares none:
// the default namespace at version 1.0.
func DefaultTarget() Target {
	return Target{Version: DefaultVersion}
}

// NewTarget builds a Target and validates its version. An unset version
// defaults to DefaultVersion.
//
// Example:
//
//	t, err := rpcdispatch.NewTarget(
//	    rpcdispatch.WithNamespace("compute"),
//	    rpcdispatch.WithVersion("2.3"),
//	)
func NewTarget(opts ...TargetOption) (Target, error) {
	t := DefaultTarget()
	for _, opt := range opts {
		opt(&t)
	}
	if t.Version == "" {
		t.Version = DefaultVersion
	}
	if _, err := ParseVersion(t.Version); err != nil {
		return Target{}, fmt.Errorf("target: %w", err)
	}
	return t, nil
}

// MustTarget is like NewTarget but panics on an invalid version. Use it for
// targets declared in package-level variables.
func MustTarget(opts ...TargetOption) Target {
	t, err := NewTarget(opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// SameNamespace reports whether t and o live in the same namespace.
func (t Target) SameNamespace(o Target) bool {
	return t.Namespace == o.Namespace
}

// String renders the non-empty fields for logs.
func (t Target) String() string {
	var b strings.Builder
	b.WriteString("<Target")
	add := func(k, v string) {
		if v != "" {
			fmt.Fprintf(&b, " %s=%s", k, v)
		}
	}
	add("exchange", t.Exchange)
	add("topic", t.Topic)
	add("namespace", t.Namespace)
	add("version", t.Version)
	add("server", t.Server)
	if t.Fanout {
		b.WriteString(" fanout")
	}
	b.WriteString(">")
	return b.String()
}

// effectiveTarget returns the target an endpoint serves, substituting the
// default target when it declares none.
func effectiveTarget(e Endpoint) Target {
	if t := e.Target(); t != nil {
		target := *t
		if target.Version == "" {
			target.Version = DefaultVersion
		}
		return target
	}
	return DefaultTarget()
}
