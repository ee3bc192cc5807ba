package mq

import "github.com/nyxmq/mqcore/internal/packets"

// pendingFrame is one entry of OutboundQueue's overflow: a frame that
// could not be offered to the transport immediately, plus the completion
// (if any) to resolve once it finally is.
type pendingFrame struct {
	frame    packets.Packet
	complete completion
}

// outboundQueue is the front-of-line overflow buffer that mediates between
// ConnectionCore and the transport's non-blocking Offer/refill backpressure
// signals. The transport's Offer is non-blocking and may refuse; overflow
// plus the refiller callback implement cooperative backpressure without
// ever blocking the dispatch context.
type outboundQueue struct {
	transport Transport
	refiller  Refiller
	faultHook FaultHook
	onSent    func(frame packets.Packet)
	overflow  []pendingFrame
}

func newOutboundQueue(transport Transport, faultHook FaultHook) *outboundQueue {
	return &outboundQueue{transport: transport, faultHook: faultHook}
}

func (q *outboundQueue) setRefiller(r Refiller) {
	q.refiller = r
}

// setOnSent installs a hook invoked once per frame actually handed to the
// transport (direct accept or drain), for instrumentation.
func (q *outboundQueue) setOnSent(fn func(frame packets.Packet)) {
	q.onSent = fn
}

// offer attempts to hand frame to the transport immediately when overflow
// is empty. If accepted, complete (if any) fires with success synchronously.
// Otherwise the frame is appended to overflow, to be retried on refill.
func (q *outboundQueue) offer(frame packets.Packet, complete completion) {
	if len(q.overflow) == 0 && q.transport.Offer(frame) {
		if q.onSent != nil {
			q.onSent(frame)
		}
		if complete != nil {
			complete.succeed(nil)
		}
		return
	}
	q.overflow = append(q.overflow, pendingFrame{frame: frame, complete: complete})
}

// drain pops from the overflow head, offering each frame to the transport
// in order, stopping at the first rejection. The refiller is invoked only
// when this call actually transitions overflow from non-empty to empty —
// a spurious OnRefill() that arrives with overflow already empty must not
// re-trigger it.
func (q *outboundQueue) drain() {
	wasNonEmpty := len(q.overflow) > 0

	for len(q.overflow) > 0 {
		head := q.overflow[0]
		if !q.transport.Offer(head.frame) {
			return
		}
		q.overflow = q.overflow[1:]
		if q.onSent != nil {
			q.onSent(head.frame)
		}
		if head.complete != nil {
			head.complete.succeed(nil)
		}
	}

	if wasNonEmpty && len(q.overflow) == 0 && q.refiller != nil {
		q.safeRefill()
	}
}

// safeRefill invokes the refiller, catching and reporting any panic to the
// process-level fault hook instead of letting it propagate into the
// dispatch queue.
func (q *outboundQueue) safeRefill() {
	defer func() {
		if r := recover(); r != nil {
			q.reportFault(r)
		}
	}()
	q.refiller()
}

func (q *outboundQueue) reportFault(recovered any) {
	if q.faultHook == nil {
		return
	}
	if err, ok := recovered.(error); ok {
		q.faultHook(err)
		return
	}
	q.faultHook(newProtocolFailure("refiller panic", nil))
}

// empty reports whether overflow currently holds any frames.
func (q *outboundQueue) empty() bool {
	return len(q.overflow) == 0
}

// failAll drains overflow, returning every pending completion so the
// caller (ConnectionCore.processFailure) can fail them uniformly alongside
// InFlightTable's entries.
func (q *outboundQueue) failAll() []completion {
	var completions []completion
	for _, p := range q.overflow {
		if p.complete != nil {
			completions = append(completions, p.complete)
		}
	}
	q.overflow = nil
	return completions
}
