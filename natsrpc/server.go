// Package natsrpc serves a dispatcher over NATS request/reply.
//
// Subjects are derived from the transport fields of a Target:
//
//	[exchange.]topic          queue subscription, load balanced across servers
//	[exchange.]topic.server   direct subscription for this server (if Server is set)
//	[exchange.]topic.fanout   broadcast subscription (if Fanout is set)
//
// Message bodies are JSON call envelopes (see rpcdispatch.JSONDecoder).
// Messages with a reply subject get a JSON reply:
//
//	{"result": <serialized result>}
//	{"result": null, "failure": {"kind": "NoSuchMethod", "message": "...", "method": "resize"}}
package natsrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/bjaus/rpcdispatch"
)

// Failure kinds carried in error replies.
const (
	KindUnsupportedVersion = "UnsupportedVersion"
	KindNoSuchMethod       = "NoSuchMethod"
	KindInvalidCall        = "InvalidCall"
	KindRemote             = "Remote"
)

// Reply is the body sent back to the requester.
type Reply struct {
	Result  any      `json:"result"`
	Failure *Failure `json:"failure,omitempty"`
}

// Failure describes why a call was not served.
type Failure struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Method    string `json:"method,omitempty"`
	Namespace string `json:"namespace,omitempty"`
	Version   string `json:"version,omitempty"`
}

// Subjects returns the subjects a server for target listens on. The first
// subject is the topic subject, served through a queue group.
func Subjects(target rpcdispatch.Target) ([]string, error) {
	if !subjectSafe(target.Topic) {
		return nil, fmt.Errorf("natsrpc: invalid topic %q", target.Topic)
	}
	if target.Server != "" && !subjectSafe(target.Server) {
		return nil, fmt.Errorf("natsrpc: invalid server %q", target.Server)
	}
	if target.Exchange != "" && !subjectSafe(target.Exchange) {
		return nil, fmt.Errorf("natsrpc: invalid exchange %q", target.Exchange)
	}

	base := target.Topic
	if target.Exchange != "" {
		base = target.Exchange + "." + target.Topic
	}

	subjects := []string{base}
	if target.Server != "" {
		subjects = append(subjects, base+"."+target.Server)
	}
	if target.Fanout {
		subjects = append(subjects, base+".fanout")
	}
	return subjects, nil
}

// DefaultDrainTimeout bounds how long Stop waits for in-flight calls.
const DefaultDrainTimeout = 30 * time.Second

const drainPollInterval = 10 * time.Millisecond

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithQueueGroup overrides the queue group of the topic subscription. It
// defaults to the topic subject.
func WithQueueGroup(group string) Option {
	return func(s *Server) {
		s.queue = group
	}
}

// WithDrainTimeout sets how long Stop waits for in-flight calls. It
// defaults to DefaultDrainTimeout.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.drainTimeout = d
		}
	}
}

// Server consumes call envelopes from NATS and dispatches them.
type Server struct {
	conn       *nats.Conn
	dispatcher *rpcdispatch.Dispatcher
	target     rpcdispatch.Target
	logger     *slog.Logger
	queue      string

	drainTimeout time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	subs   []*nats.Subscription
}

// NewServer creates a Server that listens on the subjects of target.
func NewServer(nc *nats.Conn, d *rpcdispatch.Dispatcher, target rpcdispatch.Target, opts ...Option) *Server {
	s := &Server{
		conn:       nc,
		dispatcher: d,
		target:     target,
		logger:     slog.Default(),

		drainTimeout: DefaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start subscribes to the target's subjects. Calls are dispatched with a
// context carrying the values of ctx but not its cancellation, so calls
// running when ctx is cancelled still complete. Use Stop to shut down.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs != nil {
		return errors.New("natsrpc: server already started")
	}

	subjects, err := Subjects(s.target)
	if err != nil {
		return err
	}

	queue := s.queue
	if queue == "" {
		queue = subjects[0]
	}

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	for i, subject := range subjects {
		var sub *nats.Subscription
		if i == 0 {
			sub, err = s.conn.QueueSubscribe(subject, queue, s.handleMsg)
		} else {
			sub, err = s.conn.Subscribe(subject, s.handleMsg)
		}
		if err != nil {
			s.unsubscribeLocked()
			return fmt.Errorf("natsrpc: subscribe to %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)

		s.logger.Info("Subscribed to RPC subject",
			"subject", subject,
			"queue", sub.Queue,
		)
	}

	return nil
}

// Stop drains the subscriptions and waits until every message already
// delivered has been handled and replied to, or until the drain timeout
// passes. The call context is cancelled only after that.
func (s *Server) Stop() error {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	cancel := s.cancel
	s.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Drain(); err != nil {
			errs = append(errs, fmt.Errorf("drain %s: %w", sub.Subject, err))
		}
	}

	if err := waitDrained(subs, s.drainTimeout); err != nil {
		errs = append(errs, err)
	}

	if cancel != nil {
		cancel()
	}
	if len(subs) > 0 {
		if err := s.conn.Flush(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, fmt.Errorf("flush replies: %w", err))
		}
	}
	return errors.Join(errs...)
}

// waitDrained polls until every subscription has finished draining.
func waitDrained(subs []*nats.Subscription, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for _, sub := range subs {
		for sub.IsValid() {
			if time.Now().After(deadline) {
				return fmt.Errorf("natsrpc: drain %s: %w", sub.Subject, nats.ErrTimeout)
			}
			time.Sleep(drainPollInterval)
		}
	}
	return nil
}

func (s *Server) unsubscribeLocked() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Server) handleMsg(msg *nats.Msg) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	reply := s.handle(ctx, msg.Data)
	if msg.Reply == "" {
		return
	}
	if err := msg.Respond(reply); err != nil {
		s.logger.Error("Failed to send RPC reply",
			"error", err,
			"subject", msg.Subject,
		)
	}
}

// handle dispatches one envelope and returns the encoded reply.
func (s *Server) handle(ctx context.Context, data []byte) []byte {
	callID := uuid.NewString()

	var reply Reply
	env, err := s.dispatcher.Decode(data)
	if err != nil {
		reply.Failure = &Failure{Kind: KindInvalidCall, Message: err.Error()}
	} else {
		if env.Context != nil {
			ctx = rpcdispatch.WithCallContext(ctx, env.Context)
		}
		result, err := s.dispatcher.Dispatch(ctx, env.Call)
		if err != nil {
			reply.Failure = toFailure(env.Call, err)
		} else {
			reply.Result = result
		}
	}

	if reply.Failure != nil {
		s.logger.Debug("RPC call failed",
			"call_id", callID,
			"kind", reply.Failure.Kind,
			"error", reply.Failure.Message,
		)
	}

	out, err := json.Marshal(reply)
	if err != nil {
		s.logger.Error("Failed to marshal RPC reply",
			"call_id", callID,
			"error", err,
			"type", fmt.Sprintf("%T", reply.Result),
		)
		out, _ = json.Marshal(Reply{Failure: &Failure{
			Kind:    KindRemote,
			Message: fmt.Sprintf("internal error: failed to marshal result: %v", err),
		}})
	}
	return out
}

func toFailure(call rpcdispatch.Call, err error) *Failure {
	var uerr *rpcdispatch.UnsupportedVersionError
	if errors.As(err, &uerr) {
		return &Failure{
			Kind:      KindUnsupportedVersion,
			Message:   uerr.Error(),
			Namespace: uerr.Namespace,
			Version:   uerr.Version,
		}
	}

	var merr *rpcdispatch.NoSuchMethodError
	if errors.As(err, &merr) {
		return &Failure{
			Kind:      KindNoSuchMethod,
			Message:   merr.Error(),
			Method:    merr.Method,
			Namespace: merr.Namespace,
			Version:   merr.Version,
		}
	}

	return &Failure{
		Kind:    KindRemote,
		Message: err.Error(),
		Method:  call.Method,
	}
}

// Call sends a call envelope to target's topic subject and waits for the
// reply. Failure replies are returned as *RemoteError.
func Call(ctx context.Context, nc *nats.Conn, target rpcdispatch.Target, call rpcdispatch.Call) (any, error) {
	subjects, err := Subjects(target)
	if err != nil {
		return nil, err
	}
	subject := subjects[0]
	if target.Server != "" {
		subject = subjects[1]
	}

	body, err := json.Marshal(envelope{
		Method:    call.Method,
		Namespace: call.Namespace,
		Version:   call.Version,
		Args:      call.Args,
		Context:   rpcdispatch.CallContext(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("natsrpc: encode call: %w", err)
	}

	msg, err := nc.RequestWithContext(ctx, subject, body)
	if err != nil {
		return nil, fmt.Errorf("natsrpc: request %s: %w", subject, err)
	}
	return decodeReply(msg.Data)
}

type envelope struct {
	Method    string         `json:"method"`
	Namespace string         `json:"namespace,omitempty"`
	Version   string         `json:"version,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// RemoteError is a failure reported by the serving side.
type RemoteError struct {
	Failure
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote %s: %s", e.Kind, e.Message)
}

// Is maps remote failure kinds back onto the dispatcher's sentinels.
func (e *RemoteError) Is(target error) bool {
	switch e.Kind {
	case KindUnsupportedVersion:
		return target == rpcdispatch.ErrUnsupportedVersion
	case KindNoSuchMethod:
		return target == rpcdispatch.ErrNoSuchMethod
	case KindInvalidCall:
		return target == rpcdispatch.ErrInvalidCall
	}
	return false
}

func decodeReply(data []byte) (any, error) {
	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("natsrpc: decode reply: %w", err)
	}
	if reply.Failure != nil {
		return nil, &RemoteError{Failure: *reply.Failure}
	}
	return reply.Result, nil
}

// subjectSafe reports whether s can be used as a single subject token.
func subjectSafe(s string) bool {
	return s != "" && !strings.ContainsAny(s, ". \t*>")
}
