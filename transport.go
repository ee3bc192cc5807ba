package mq

import (
	"github.com/nyxmq/mqcore/internal/dispatch"
	"github.com/nyxmq/mqcore/internal/packets"
)

// DispatchQueue is the serial execution context a Transport exposes via
// DispatchQueue(). NewConnectionCore takes this same instance as the
// core's own queue.
type DispatchQueue = dispatch.Queue

// Callback is the at-most-once-invoked completion capability handed back
// for every asynchronous ConnectionCore operation. Exactly one of
// OnSuccess or OnFailure fires, exactly once.
type Callback[T any] struct {
	OnSuccess func(T)
	OnFailure func(error)
}

func (c Callback[T]) succeed(v T) {
	if c.OnSuccess != nil {
		c.OnSuccess(v)
	}
}

func (c Callback[T]) fail(err error) {
	if c.OnFailure != nil {
		c.OnFailure(err)
	}
}

// completion erases the type parameter of a Callback[T] so heterogeneous
// pending requests (a PUBLISH's void ack vs. a SUBSCRIBE's granted-QoS
// ack) can sit in the same InFlightTable. Each concrete typedCompletion[T]
// already knows its own T, so completeRequest never casts a value to a
// type it has to guess — the "sum type over the concrete success payload"
// the protocol's ack code paths call for.
type completion interface {
	succeed(arg any)
	fail(err error)
}

type typedCompletion[T any] struct {
	cb Callback[T]
}

func (t typedCompletion[T]) succeed(arg any) {
	var v T
	if arg != nil {
		v = arg.(T)
	}
	t.cb.succeed(v)
}

func (t typedCompletion[T]) fail(err error) {
	t.cb.fail(err)
}

func voidCompletion(cb Callback[struct{}]) completion {
	return typedCompletion[struct{}]{cb: cb}
}

func grantedQoSCompletion(cb Callback[[]uint8]) completion {
	return typedCompletion[[]uint8]{cb: cb}
}

// AckCompletion is handed to the Listener on every delivered PUBLISH. For
// QoS 0 it is a no-op; for QoS 1/2 the embedder must invoke it exactly once
// to release the packet id (sending PUBACK or PUBREC/advancing the
// processed-set as appropriate).
type AckCompletion func()

// Listener is the embedder capability that receives delivered PUBLISH
// frames and the terminal failure notification.
type Listener interface {
	// Deliver is invoked on each delivered PUBLISH, in transport order.
	// The embedder must eventually invoke ack exactly once.
	Deliver(topic string, payload []byte, ack AckCompletion)

	// Failure is the terminal notification: the connection has entered a
	// failed state and will send no further frames.
	Failure(err error)
}

// Refiller is invoked when OutboundQueue's overflow transitions from
// non-empty to empty via a drain. It is never invoked for a direct accept
// that never touched overflow.
type Refiller func()

// FaultHook receives panics recovered from Listener.Failure or Refiller
// invocations so they don't propagate into, or taint, core state. A panic
// in Listener.Deliver is not routed here: it becomes the connection's
// terminal failure. Installed once at construction.
type FaultHook func(err error)

// Transport is the downstream collaborator: an already-established,
// framed byte transport. ConnectionCore only ever touches it through this
// contract; dialing, TLS, and the CONNECT/CONNACK handshake happen above
// this package.
type Transport interface {
	// Offer attempts to hand frame to the transport immediately. It must
	// never block; it returns false if the transport currently refuses
	// offers (see Full).
	Offer(frame packets.Packet) bool

	// Full reports whether the transport currently refuses Offer calls.
	Full() bool

	// ResumeRead / SuspendRead pause and resume delivery of
	// OnTransportCommand to the installed TransportListener.
	ResumeRead()
	SuspendRead()

	// Stop tears the transport down. onStopped is invoked once the
	// teardown completes.
	Stop(onStopped func())

	// SetTransportListener installs the callback sink for this
	// transport. NewConnectionCore calls it once, after DispatchQueue and
	// before any other method.
	SetTransportListener(l TransportListener)

	// DispatchQueue returns the serial execution context that owns this
	// transport and, by extension, the connection core layered on it.
	DispatchQueue() *DispatchQueue
}

// TransportListener receives events from the Transport. All methods are
// invoked on the transport's dispatch queue.
type TransportListener interface {
	OnTransportCommand(frame packets.Packet)
	OnRefill()
	OnTransportFailure(err error)
}
