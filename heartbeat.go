package mq

import (
	"time"

	"github.com/nyxmq/mqcore/internal/packets"
)

// heartbeatController schedules PINGREQ and enforces the PINGRESP
// timeout described in §4.5. It never runs its own goroutine logic
// directly against core state: every timer fires a closure back onto
// the owning dispatch queue, the same way a real transport callback
// would.
type heartbeatController struct {
	queue    *DispatchQueue
	interval time.Duration // keep-alive K
	outbound *outboundQueue
	onFault  func(error)
	onRTT    func(time.Duration)

	pingedAt  time.Time // zero value == idle, mirrors pingedAt == 0
	suspended bool
	terminal  bool // set once the connection has failed or disconnected

	writeTicker *time.Ticker
	stopTicker  chan struct{}
}

func newHeartbeatController(queue *DispatchQueue, interval time.Duration, outbound *outboundQueue, onFault func(error), onRTT func(time.Duration)) *heartbeatController {
	return &heartbeatController{
		queue:    queue,
		interval: interval,
		outbound: outbound,
		onFault:  onFault,
		onRTT:    onRTT,
	}
}

// start begins the K/2 write-interval ticker. A zero interval disables
// the heartbeat entirely (no keep-alive configured).
func (h *heartbeatController) start() {
	if h.interval <= 0 {
		return
	}
	h.writeTicker = time.NewTicker(h.interval / 2)
	h.stopTicker = make(chan struct{})

	ticker := h.writeTicker
	stop := h.stopTicker
	go func() {
		for {
			select {
			case <-ticker.C:
				h.queue.Post(func() { h.onWriteTick() })
			case <-stop:
				return
			}
		}
	}()
}

// stop halts the ticker goroutine. Safe to call more than once.
func (h *heartbeatController) stop() {
	if h.writeTicker == nil {
		return
	}
	h.writeTicker.Stop()
	select {
	case <-h.stopTicker:
	default:
		close(h.stopTicker)
	}
}

// markTerminal marks the connection as no longer eligible for keep-alive
// traffic (failed or disconnected) and stops the write-interval ticker.
// Safe to call more than once; a terminal controller never offers another
// PINGREQ and any already-scheduled timeout check becomes a no-op.
func (h *heartbeatController) markTerminal() {
	h.terminal = true
	h.stop()
}

// onWriteTick runs on the dispatch queue. Per §4.5, a tick is only acted
// on "if connected" — a failed or disconnected core must never write
// another frame to the transport. If no ping is outstanding and the
// transport accepts a PINGREQ, it records pingedAt and schedules the
// timeout check.
func (h *heartbeatController) onWriteTick() {
	if h.terminal || h.suspended || !h.pingedAt.IsZero() {
		return
	}
	ping := &packets.PingreqPacket{}
	if !h.outbound.transport.Offer(ping) {
		return
	}
	if h.outbound.onSent != nil {
		h.outbound.onSent(ping)
	}

	sent := time.Now()
	h.pingedAt = sent
	time.AfterFunc(h.interval, func() {
		h.queue.Post(func() { h.checkTimeout(sent) })
	})
}

// checkTimeout fires K seconds after a PINGREQ was sent. Per P7, the
// check compares against the exact timestamp recorded at send time: if
// a PINGRESP already cleared pingedAt, or a later ping overwrote it,
// this stale check is a no-op.
func (h *heartbeatController) checkTimeout(expected time.Time) {
	if h.terminal || h.pingedAt.IsZero() || !h.pingedAt.Equal(expected) {
		return
	}
	h.pingedAt = time.Time{}
	if h.onFault != nil {
		h.onFault(newProtocolFailure("ping timeout", ErrPingTimeout))
	}
}

// onPingresp clears any outstanding ping and reports its round-trip time.
// A PINGRESP with no outstanding ping (already cleared by a timeout) has
// nothing to measure.
func (h *heartbeatController) onPingresp() {
	if h.pingedAt.IsZero() {
		return
	}
	if h.onRTT != nil {
		h.onRTT(time.Since(h.pingedAt))
	}
	h.pingedAt = time.Time{}
}

// suspend/resume track the transport's read side: while suspended, write
// ticks are observed but no PINGREQ is issued, matching "the heartbeat
// controller's read side tracks the transport's read side".
func (h *heartbeatController) suspend() {
	h.suspended = true
}

func (h *heartbeatController) resume() {
	h.suspended = false
}
