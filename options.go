package mq

import (
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// coreOptions holds construction-time configuration for a ConnectionCore.
// Unlike the teacher's clientOptions, this carries no dial/auth/CONNECT
// concerns — those belong to the external collaborator that establishes
// the transport before handing it to NewConnectionCore.
type coreOptions struct {
	KeepAlive time.Duration

	Logger   *slog.Logger
	FaultHook FaultHook

	MaxTopicLength int
	MaxPayloadSize int

	Registerer  prometheus.Registerer
	ConnectionID string
}

// Option configures a ConnectionCore at construction time.
type Option func(*coreOptions)

// WithKeepAlive sets the MQTT keep-alive interval (the K of §4.5). A zero
// or negative value disables the heartbeat.
func WithKeepAlive(d time.Duration) Option {
	return func(o *coreOptions) { o.KeepAlive = d }
}

// WithLogger installs a structured logger. Defaults to a discarding
// logger if never set.
func WithLogger(logger *slog.Logger) Option {
	return func(o *coreOptions) { o.Logger = logger }
}

// WithFaultHook installs the process-level uncaught-exception sink that
// receives panics recovered from Listener.Failure or Refiller invocations
// (§9); see FaultHook.
func WithFaultHook(hook FaultHook) Option {
	return func(o *coreOptions) { o.FaultHook = hook }
}

// WithTopicLimits overrides the default topic/payload size limits. Zero
// leaves the corresponding MQTT spec default in place. Incoming-packet
// framing limits belong to the transport collaborator that reads frames
// off the wire, not this core.
func WithTopicLimits(maxTopicLength, maxPayloadSize int) Option {
	return func(o *coreOptions) {
		o.MaxTopicLength = maxTopicLength
		o.MaxPayloadSize = maxPayloadSize
	}
}

// WithMetricsRegisterer installs a prometheus registerer for the
// connection's instrumentation. Defaults to prometheus.DefaultRegisterer.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(o *coreOptions) { o.Registerer = reg }
}

// WithConnectionID overrides the generated correlation id used to label
// this connection's metrics and log lines. Defaults to a fresh uuid.
func WithConnectionID(id string) Option {
	return func(o *coreOptions) { o.ConnectionID = id }
}

func defaultOptions() *coreOptions {
	return &coreOptions{
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Registerer:   prometheus.DefaultRegisterer,
		ConnectionID: uuid.NewString(),
	}
}

func buildOptions(opts []Option) *coreOptions {
	o := defaultOptions()
	for _, apply := range opts {
		apply(o)
	}
	return o
}
