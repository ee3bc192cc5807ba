package mq

import (
	"log/slog"
	"sync"

	"github.com/nyxmq/mqcore/internal/packets"
)

// lifecycleState is the explicit two-step teardown model called for in
// DESIGN NOTES §9: DISCONNECT moves the core from RUNNING to DRAINING,
// and the completion callback fires only once the transport has
// actually stopped and the core reaches STOPPED.
type lifecycleState int

const (
	stateRunning lifecycleState = iota
	stateDraining
	stateStopped
)

// ConnectionCore is the top-level MQTT 3.1 state machine. It owns an
// already-established Transport and drives the publish/subscribe
// protocol's QoS flows, message-id allocation, keep-alive, and failure
// propagation above it. Every exported method must be called from the
// core's own dispatch queue (see queue field and ErrWrongExecutionContext).
type ConnectionCore struct {
	queue     *DispatchQueue
	transport Transport
	outbound  *outboundQueue
	inflight  *inFlightTable
	qos       *qosEngine
	heartbeat *heartbeatController
	metrics   *connectionMetrics
	logger    *slog.Logger
	faultHook FaultHook

	listener Listener

	maxTopicLength int
	maxPayloadSize int

	state   lifecycleState
	failure error

	stopOnce sync.Once
}

// NewConnectionCore constructs a ConnectionCore layered on an
// already-connected transport. The transport's own dispatch queue
// becomes the core's execution context.
func NewConnectionCore(transport Transport, opts ...Option) *ConnectionCore {
	o := buildOptions(opts)

	queue := transport.DispatchQueue()
	core := &ConnectionCore{
		queue:          queue,
		transport:      transport,
		inflight:       newInFlightTable(),
		logger:         o.Logger,
		faultHook:      o.FaultHook,
		metrics:        newConnectionMetrics(o.Registerer, o.ConnectionID),
		maxTopicLength: o.MaxTopicLength,
		maxPayloadSize: o.MaxPayloadSize,
	}

	core.outbound = newOutboundQueue(transport, o.FaultHook)
	core.outbound.setOnSent(func(frame packets.Packet) {
		name := packets.PacketNames[frame.Type()]
		core.logger.Debug("sending packet", "type", name)
		core.metrics.observeSent(name)
	})
	core.qos = newQoSEngine(newMessageIDAllocator(), core.inflight, core.outbound)
	core.heartbeat = newHeartbeatController(queue, o.KeepAlive, core.outbound, core.processFailure, core.metrics.observePingRTT)

	transport.SetTransportListener(core)
	core.heartbeat.start()

	return core
}

// Execution context (§5): public methods that mutate state run on the
// owning dispatch queue. ConnectionCore has no portable way to introspect
// "is this goroutine the queue's worker" from outside dispatch.Queue
// itself (see internal/dispatch), so callers are expected to invoke
// through queue.Run/Post. No method checks the calling goroutine, and
// ErrWrongExecutionContext is never raised.

// Publish implements §4.4's publisher side for QoS 0/1/2.
func (c *ConnectionCore) Publish(topic string, payload []byte, qos uint8, retain bool, cb Callback[struct{}]) {
	if c.failure != nil {
		cb.fail(c.failure)
		return
	}
	if err := validatePublishTopic(topic, c.maxTopicLength); err != nil {
		cb.fail(newUsageFailure(err.Error()))
		return
	}
	if err := validatePayload(payload, c.maxPayloadSize); err != nil {
		cb.fail(newUsageFailure(err.Error()))
		return
	}
	c.qos.publish(topic, payload, qos, retain, cb)
	c.metrics.setInFlight(len(c.inflight.requests))
}

// Subscribe implements §4.6: fails synchronously if no listener has
// been installed, since delivering messages to a missing listener would
// be silently lossy.
func (c *ConnectionCore) Subscribe(filters []string, qosList []uint8, cb Callback[[]uint8]) {
	if c.failure != nil {
		cb.fail(c.failure)
		return
	}
	if c.listener == nil {
		cb.fail(&ConnectionError{Kind: FailureUsage, Message: "subscribe rejected", Parent: ErrNoListener})
		return
	}
	for _, f := range filters {
		if err := validateSubscribeTopic(f, c.maxTopicLength); err != nil {
			cb.fail(newUsageFailure(err.Error()))
			return
		}
	}
	c.qos.subscribe(filters, qosList, cb)
}

// Unsubscribe implements §4.4's UNSUBSCRIBE flow.
func (c *ConnectionCore) Unsubscribe(filters []string, cb Callback[struct{}]) {
	if c.failure != nil {
		cb.fail(c.failure)
		return
	}
	for _, f := range filters {
		if err := validateSubscribeTopic(f, c.maxTopicLength); err != nil {
			cb.fail(newUsageFailure(err.Error()))
			return
		}
	}
	c.qos.unsubscribe(filters, cb)
}

// Disconnect implements the scoped two-step teardown of §4.6 / DESIGN
// NOTES §9. It marks the core as draining, sends DISCONNECT, and stops
// the transport only once that frame has actually reached it (or
// immediately, if the send itself failed).
func (c *ConnectionCore) Disconnect(onComplete func()) {
	c.state = stateDraining

	stopTransport := func() {
		c.stopOnce.Do(func() {
			c.transport.Stop(func() {
				c.state = stateStopped
				c.heartbeat.markTerminal()
				if onComplete != nil {
					onComplete()
				}
			})
		})
	}

	frame := &packets.DisconnectPacket{}
	cb := Callback[struct{}]{
		OnSuccess: func(struct{}) { stopTransport() },
		OnFailure: func(error) { stopTransport() },
	}

	// DISCONNECT carries no packet id on the wire: unlike PUBLISH/SUBSCRIBE
	// it has no matching ack frame, so its Request lives only in
	// OutboundQueue. "On transport-accepted" (success) and "send failed"
	// (failure) both run the same one-shot stop, per §4.6.
	c.outbound.offer(frame, voidCompletion(cb))
}

// Suspend pauses transport reads and the heartbeat's read-tracking side.
func (c *ConnectionCore) Suspend() {
	c.transport.SuspendRead()
	c.heartbeat.suspend()
}

// Resume resumes transport reads and heartbeat read-tracking.
func (c *ConnectionCore) Resume() {
	c.transport.ResumeRead()
	c.heartbeat.resume()
}

// SetListener installs the embedder's PUBLISH delivery and failure sink.
func (c *ConnectionCore) SetListener(l Listener) {
	c.listener = l
}

// SetRefiller installs the embedder's overflow-drained callback.
func (c *ConnectionCore) SetRefiller(r Refiller) {
	c.outbound.setRefiller(r)
}

// Full reports whether the transport currently refuses offers.
func (c *ConnectionCore) Full() bool {
	return c.transport.Full()
}

// Failure returns the terminal failure, if any.
func (c *ConnectionCore) Failure() error {
	return c.failure
}

// OnTransportCommand implements TransportListener: it is the entry
// point for every inbound frame (processFrame in spec terms).
func (c *ConnectionCore) OnTransportCommand(frame packets.Packet) {
	c.logger.Debug("received packet", "type", packets.PacketNames[frame.Type()])
	c.metrics.observeReceived(packets.PacketNames[frame.Type()])

	var err error
	switch pkt := frame.(type) {
	case *packets.PublishPacket:
		err = func() (deliverErr error) {
			defer func() {
				if r := recover(); r != nil {
					parent, _ := r.(error)
					deliverErr = newProtocolFailure("listener panicked during delivery", parent)
				}
			}()
			c.qos.deliverInbound(c.listener, pkt.Topic, pkt.Payload, pkt.QoS, pkt.PacketID)
			return nil
		}()
	case *packets.PubackPacket:
		err = c.qos.handlePuback(pkt.PacketID)
	case *packets.PubrecPacket:
		err = c.qos.handlePubrec(pkt.PacketID)
	case *packets.PubrelPacket:
		c.qos.handlePubrel(pkt.PacketID)
	case *packets.PubcompPacket:
		err = c.qos.handlePubcomp(pkt.PacketID)
	case *packets.SubackPacket:
		err = c.qos.handleSuback(pkt.PacketID, pkt.ReturnCodes)
	case *packets.UnsubackPacket:
		err = c.qos.handleUnsuback(pkt.PacketID)
	case *packets.PingrespPacket:
		c.heartbeat.onPingresp()
	default:
		err = newProtocolFailure("unexpected frame type from server", nil)
	}

	if err != nil {
		c.processFailure(err)
		return
	}
	c.metrics.setInFlight(len(c.inflight.requests))
}

// OnRefill implements TransportListener (drainOverflow in spec terms).
func (c *ConnectionCore) OnRefill() {
	c.outbound.drain()
	c.metrics.setOverflowDepth(len(c.outbound.overflow))
}

// OnTransportFailure implements TransportListener.
func (c *ConnectionCore) OnTransportFailure(err error) {
	c.processFailure(newTransportFailure(err))
}

// processFailure implements §4.7: first call wins, every pending
// request fails exactly once, the listener is notified, and the core
// accepts no further public-API success paths.
func (c *ConnectionCore) processFailure(err error) {
	if c.failure != nil {
		return
	}
	c.failure = err
	c.heartbeat.markTerminal()

	for _, comp := range c.inflight.failAll() {
		comp.fail(err)
	}
	for _, comp := range c.outbound.failAll() {
		comp.fail(err)
	}

	c.metrics.setInFlight(0)
	c.metrics.setOverflowDepth(0)

	if c.listener != nil {
		c.safeNotifyFailure(err)
	}
}

// safeNotifyFailure isolates a panicking Listener.Failure from the
// dispatch loop; per §7, listener exceptions during normal delivery
// become terminal, but the failure notification itself is the terminal
// event already, so a panic here only needs reporting, not re-entry.
func (c *ConnectionCore) safeNotifyFailure(err error) {
	defer func() {
		if r := recover(); r != nil {
			c.reportFault(r)
		}
	}()
	c.listener.Failure(err)
}

func (c *ConnectionCore) reportFault(recovered any) {
	if c.faultHook == nil {
		return
	}
	if err, ok := recovered.(error); ok {
		c.faultHook(err)
		return
	}
	c.faultHook(newProtocolFailure("panic recovered at listener/refiller boundary", nil))
}
