// Package metrics exports dispatcher activity as Prometheus metrics.
//
//	reg := prometheus.NewRegistry()
//	m, err := metrics.New(reg)
//	if err != nil {
//	    return err
//	}
//	d := rpcdispatch.New(endpoints, m.Options()...)
package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bjaus/rpcdispatch"
)

const (
	namespace = "rpcdispatch"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"

	ReasonUnsupportedVersion = "unsupported_version"
	ReasonNoSuchMethod       = "no_such_method"
)

// Collector holds the dispatcher metrics.
type Collector struct {
	Calls      *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
	Rejections *prometheus.CounterVec
}

// New creates the dispatcher metrics and registers them with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		Calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "calls_total",
				Help:      "Total number of endpoint invocations",
			},
			[]string{"namespace", "method", "outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "call_duration_seconds",
				Help:      "Endpoint method duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"namespace", "method"},
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejections_total",
				Help:      "Total number of calls rejected before reaching an endpoint",
			},
			[]string{"reason"},
		),
	}

	for _, col := range []prometheus.Collector{c.Calls, c.Duration, c.Rejections} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register dispatcher metrics: %w", err)
		}
	}
	return c, nil
}

// Options returns dispatcher options that feed the collector.
func (c *Collector) Options() []rpcdispatch.Option {
	return []rpcdispatch.Option{
		rpcdispatch.WithOnSuccess(c.observeSuccess),
		rpcdispatch.WithOnFailure(c.observeFailure),
		rpcdispatch.WithOnReject(c.observeReject),
	}
}

func (c *Collector) observeSuccess(_ context.Context, call rpcdispatch.Call, target rpcdispatch.Target, d time.Duration) {
	c.Calls.WithLabelValues(target.Namespace, call.Method, OutcomeSuccess).Inc()
	c.Duration.WithLabelValues(target.Namespace, call.Method).Observe(d.Seconds())
}

func (c *Collector) observeFailure(_ context.Context, call rpcdispatch.Call, target rpcdispatch.Target, _ error, d time.Duration) {
	c.Calls.WithLabelValues(target.Namespace, call.Method, OutcomeFailure).Inc()
	c.Duration.WithLabelValues(target.Namespace, call.Method).Observe(d.Seconds())
}

func (c *Collector) observeReject(_ context.Context, _ rpcdispatch.Call, err error) {
	switch {
	case errors.Is(err, rpcdispatch.ErrUnsupportedVersion):
		c.Rejections.WithLabelValues(ReasonUnsupportedVersion).Inc()
	case errors.Is(err, rpcdispatch.ErrNoSuchMethod):
		c.Rejections.WithLabelValues(ReasonNoSuchMethod).Inc()
	}
}
