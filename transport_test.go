package mq

import (
	"sync"

	"github.com/nyxmq/mqcore/internal/dispatch"
	"github.com/nyxmq/mqcore/internal/packets"
)

// fakeTransport is an in-memory Transport double. Tests drive it
// synchronously from the test goroutine, treating that goroutine as the
// dispatch queue's execution context (the queue itself still exists so
// Transport's DispatchQueue contract is honored).
type fakeTransport struct {
	mu sync.Mutex

	queue    *dispatch.Queue
	listener TransportListener
	sent     []packets.Packet
	full     bool
	stopped  bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{queue: dispatch.New()}
}

func (f *fakeTransport) Offer(frame packets.Packet) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.sent = append(f.sent, frame)
	return true
}

func (f *fakeTransport) Full() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.full
}

func (f *fakeTransport) setFull(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.full = v
}

func (f *fakeTransport) sentFrames() []packets.Packet {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]packets.Packet, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeTransport) ResumeRead()  {}
func (f *fakeTransport) SuspendRead() {}

func (f *fakeTransport) Stop(onStopped func()) {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
	if onStopped != nil {
		onStopped()
	}
}

func (f *fakeTransport) SetTransportListener(l TransportListener) {
	f.listener = l
}

func (f *fakeTransport) DispatchQueue() *dispatch.Queue {
	return f.queue
}

// deliver feeds an inbound frame straight to the installed listener, as
// a real transport would after decoding a frame off the wire.
func (f *fakeTransport) deliver(frame packets.Packet) {
	f.listener.OnTransportCommand(frame)
}

// recordingListener is a Listener double that records deliveries and
// failures, and lets tests control whether delivery acks immediately.
type recordingListener struct {
	mu          sync.Mutex
	delivered   []deliveredMsg
	failures    []error
	autoAck     bool
	pendingAcks []AckCompletion
}

type deliveredMsg struct {
	topic   string
	payload []byte
}

func (l *recordingListener) Deliver(topic string, payload []byte, ack AckCompletion) {
	l.mu.Lock()
	l.delivered = append(l.delivered, deliveredMsg{topic: topic, payload: payload})
	autoAck := l.autoAck
	l.mu.Unlock()

	if autoAck {
		ack()
	} else {
		l.mu.Lock()
		l.pendingAcks = append(l.pendingAcks, ack)
		l.mu.Unlock()
	}
}

func (l *recordingListener) Failure(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, err)
}

func (l *recordingListener) deliveryCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.delivered)
}

func (l *recordingListener) ackLatest() {
	l.mu.Lock()
	ack := l.pendingAcks[len(l.pendingAcks)-1]
	l.mu.Unlock()
	ack()
}
