package mq

import "github.com/nyxmq/mqcore/internal/packets"

// qosEngine encodes the publisher-side and subscriber-side QoS 0/1/2
// handshakes described in MQTT 3.1. It owns no transport access of its
// own: every outbound frame goes through the outboundQueue it is handed,
// and every id it allocates and tracks lives in the inFlightTable.
type qosEngine struct {
	ids      *messageIDAllocator
	inflight *inFlightTable
	outbound *outboundQueue
}

func newQoSEngine(ids *messageIDAllocator, inflight *inFlightTable, outbound *outboundQueue) *qosEngine {
	return &qosEngine{ids: ids, inflight: inflight, outbound: outbound}
}

// publish implements the publisher side of §4.4. For QoS 0 the frame is
// hand to the outbound queue directly and the callback resolves as soon
// as the transport accepts it. For QoS 1/2 an id is allocated first and
// a Request stored before the frame is offered, so a reply arriving
// synchronously during offer (never happens with a real transport, but
// keeps the invariant honest) would still find the entry.
func (e *qosEngine) publish(topic string, payload []byte, qos uint8, retain bool, cb Callback[struct{}]) {
	frame := &packets.PublishPacket{
		QoS:     qos,
		Retain:  retain,
		Topic:   topic,
		Payload: payload,
	}

	if qos == packets.QoS0 {
		e.outbound.offer(frame, voidCompletion(cb))
		return
	}

	id := e.ids.allocate()
	frame.PacketID = id
	e.inflight.insert(id, &request{frame: frame, originalType: packets.PUBLISH, complete: voidCompletion(cb)})
	e.outbound.offer(frame, nil)
}

// subscribe allocates an id, stores a Request whose completion expects a
// granted-QoS byte slice, and offers the SUBSCRIBE frame.
func (e *qosEngine) subscribe(filters []string, qosList []uint8, cb Callback[[]uint8]) {
	id := e.ids.allocate()
	frame := &packets.SubscribePacket{PacketID: id, Topics: filters, QoS: qosList}
	e.inflight.insert(id, &request{frame: frame, originalType: packets.SUBSCRIBE, complete: grantedQoSCompletion(cb)})
	e.outbound.offer(frame, nil)
}

// unsubscribe allocates an id, stores a void-completion Request, and
// offers the UNSUBSCRIBE frame.
func (e *qosEngine) unsubscribe(filters []string, cb Callback[struct{}]) {
	id := e.ids.allocate()
	frame := &packets.UnsubscribePacket{PacketID: id, Topics: filters}
	e.inflight.insert(id, &request{frame: frame, originalType: packets.UNSUBSCRIBE, complete: voidCompletion(cb)})
	e.outbound.offer(frame, nil)
}

// handlePuback completes a QoS 1 publish.
func (e *qosEngine) handlePuback(id uint16) error {
	return e.inflight.completeRequest(id, packets.PUBLISH, nil)
}

// handlePubrec sends the PUBREL for a QoS 2 publish. The original
// Request stays in the table (its presence across this transition is
// what implicitly encodes the SENT_PUBREL state, per §4.4); only its
// stored frame is swapped from the original PUBLISH to the PUBREL, which
// is not resent automatically. A duplicate PUBREC after PUBREL has
// already been sent still re-sends PUBREL (idempotent retransmit) as
// long as the id is still present.
func (e *qosEngine) handlePubrec(id uint16) error {
	if _, ok := e.inflight.lookup(id); !ok {
		return newProtocolFailure("PUBREC for unknown message id", ErrUnknownMessageID)
	}
	rel := &packets.PubrelPacket{PacketID: id}
	e.inflight.replaceFrame(id, rel)
	e.outbound.offer(rel, nil)
	return nil
}

// handlePubcomp completes the original QoS 2 publish Request.
func (e *qosEngine) handlePubcomp(id uint16) error {
	return e.inflight.completeRequest(id, packets.PUBLISH, nil)
}

// handleSuback completes a SUBSCRIBE Request with the granted-QoS bytes.
func (e *qosEngine) handleSuback(id uint16, returnCodes []uint8) error {
	return e.inflight.completeRequest(id, packets.SUBSCRIBE, returnCodes)
}

// handleUnsuback completes an UNSUBSCRIBE Request.
func (e *qosEngine) handleUnsuback(id uint16) error {
	return e.inflight.completeRequest(id, packets.UNSUBSCRIBE, nil)
}

// deliverInbound implements the subscriber side of §4.4 for an inbound
// PUBLISH. listener receives the payload and an AckCompletion that, for
// QoS 1/2, emits the matching ack when invoked. For a deduplicated QoS 2
// duplicate, the listener is not invoked at all; only PUBREC is
// re-emitted.
func (e *qosEngine) deliverInbound(listener Listener, topic string, payload []byte, qos uint8, id uint16) {
	switch qos {
	case packets.QoS0:
		listener.Deliver(topic, payload, func() {})

	case packets.QoS1:
		listener.Deliver(topic, payload, func() {
			e.outbound.offer(&packets.PubackPacket{PacketID: id}, nil)
		})

	case packets.QoS2:
		if e.inflight.isProcessed(id) {
			e.outbound.offer(&packets.PubrecPacket{PacketID: id}, nil)
			return
		}
		listener.Deliver(topic, payload, func() {
			e.inflight.markProcessed(id)
			e.outbound.offer(&packets.PubrecPacket{PacketID: id}, nil)
		})
	}
}

// handlePubrel completes the subscriber-side QoS 2 handshake: the id
// leaves the processed-set and PUBCOMP is sent.
func (e *qosEngine) handlePubrel(id uint16) {
	e.inflight.clearProcessed(id)
	e.outbound.offer(&packets.PubcompPacket{PacketID: id}, nil)
}
