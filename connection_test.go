package mq

import (
	"errors"
	"testing"

	"github.com/nyxmq/mqcore/internal/packets"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCore(t *testing.T) (*ConnectionCore, *fakeTransport) {
	t.Helper()
	transport := newFakeTransport()
	core := NewConnectionCore(transport, WithMetricsRegisterer(prometheus.NewRegistry()))
	t.Cleanup(func() { hbStop(core) })
	return core, transport
}

func hbStop(c *ConnectionCore) {
	c.heartbeat.stop()
}

// S6: subscribing with no listener installed fails synchronously; no
// frame is sent.
func TestSubscribeWithoutListenerFailsSynchronously(t *testing.T) {
	core, transport := newTestCore(t)

	var failErr error
	core.Subscribe([]string{"a/#"}, []uint8{1}, Callback[[]uint8]{
		OnFailure: func(err error) { failErr = err },
	})

	require.Error(t, failErr)
	assert.Empty(t, transport.sentFrames())
}

// S4: transport full on first offer after 3 queued QoS0 publishes; a
// refill drains them in order and invokes the refiller exactly once.
func TestOutboundOverflowDrainOrderAndRefillOnce(t *testing.T) {
	core, transport := newTestCore(t)
	transport.setFull(true)

	var refillCount int
	core.SetRefiller(func() { refillCount++ })

	core.Publish("m1", nil, packets.QoS0, false, Callback[struct{}]{})
	core.Publish("m2", nil, packets.QoS0, false, Callback[struct{}]{})
	core.Publish("m3", nil, packets.QoS0, false, Callback[struct{}]{})
	assert.Empty(t, transport.sentFrames())

	transport.setFull(false)
	core.OnRefill()

	frames := transport.sentFrames()
	require.Len(t, frames, 3)
	for i, want := range []string{"m1", "m2", "m3"} {
		pub := frames[i].(*packets.PublishPacket)
		assert.Equal(t, want, pub.Topic)
	}
	assert.Equal(t, 1, refillCount)
}

// P4: processFailure fails every pending request exactly once, and a
// subsequent publish call fails synchronously with the same error.
func TestProcessFailurePropagatesToPendingAndFutureCalls(t *testing.T) {
	core, _ := newTestCore(t)

	var firstFail error
	core.Publish("t", nil, packets.QoS1, false, Callback[struct{}]{
		OnFailure: func(err error) { firstFail = err },
	})

	boom := errors.New("boom")
	core.OnTransportFailure(boom)

	require.Error(t, firstFail)

	var secondFail error
	core.Publish("t2", nil, packets.QoS0, false, Callback[struct{}]{
		OnFailure: func(err error) { secondFail = err },
	})
	require.Error(t, secondFail)
	assert.ErrorIs(t, secondFail, firstFail)
	assert.Same(t, firstFail, secondFail)
}

func TestProcessFailureNotifiesListenerOnce(t *testing.T) {
	core, _ := newTestCore(t)
	listener := &recordingListener{autoAck: true}
	core.SetListener(listener)

	core.OnTransportFailure(errors.New("io error"))
	core.OnTransportFailure(errors.New("second call is a no-op"))

	assert.Len(t, listener.failures, 1)
}

func TestInboundPublishRoutesToListener(t *testing.T) {
	core, transport := newTestCore(t)
	listener := &recordingListener{autoAck: true}
	core.SetListener(listener)

	transport.deliver(&packets.PublishPacket{QoS: packets.QoS1, Topic: "t", Payload: []byte("p"), PacketID: 5})

	assert.Equal(t, 1, listener.deliveryCount())
	frames := transport.sentFrames()
	require.Len(t, frames, 1)
	puback, ok := frames[0].(*packets.PubackPacket)
	require.True(t, ok)
	assert.Equal(t, uint16(5), puback.PacketID)
}

func TestDisconnectStopsTransportAfterAccept(t *testing.T) {
	core, transport := newTestCore(t)

	var completed bool
	core.Disconnect(func() { completed = true })

	assert.True(t, completed)
	assert.True(t, transport.stopped)
}

// §4.7 / P4: once the core has reached STOPPED, the heartbeat must no
// longer offer frames to the transport — otherwise a write tick racing
// with teardown would write a PINGREQ to a dead transport.
func TestDisconnectMarksHeartbeatTerminal(t *testing.T) {
	core, transport := newTestCore(t)

	core.Disconnect(func() {})
	before := len(transport.sentFrames())

	core.heartbeat.onWriteTick()

	assert.Len(t, transport.sentFrames(), before)
}

// §4.7 / P4: no further frames are sent after a terminal failure,
// including PINGREQ from a racing heartbeat write tick.
func TestProcessFailureMarksHeartbeatTerminal(t *testing.T) {
	core, transport := newTestCore(t)

	core.OnTransportFailure(errors.New("boom"))
	before := len(transport.sentFrames())

	core.heartbeat.onWriteTick()

	assert.Len(t, transport.sentFrames(), before)
}
