package mq

import "github.com/nyxmq/mqcore/internal/packets"

// request is a sent, acked command awaiting its terminal ack: the frame
// that was written to the wire (for a QoS 2 publish, the PUBREL once
// PUBREC has arrived; nothing in this package resends a stored frame),
// its original packet type (asserted against on completion as a
// design-level sanity check), and the completion to resolve once the ack
// arrives.
type request struct {
	frame        packets.Packet
	originalType uint8
	complete     completion
}

// inFlightTable is the connection's map from allocated packet id to its
// pending request, plus the processed-set of server-originated QoS 2
// publish ids for which a PUBREC has been sent but no PUBREL received yet.
type inFlightTable struct {
	requests  map[uint16]*request
	processed map[uint16]struct{}
}

func newInFlightTable() *inFlightTable {
	return &inFlightTable{
		requests:  make(map[uint16]*request),
		processed: make(map[uint16]struct{}),
	}
}

// insert records a request under id. Per invariant I1, id must not already
// be present; callers only call this right after allocating a fresh id.
func (t *inFlightTable) insert(id uint16, req *request) {
	t.requests[id] = req
}

func (t *inFlightTable) lookup(id uint16) (*request, bool) {
	r, ok := t.requests[id]
	return r, ok
}

// completeRequest removes the entry for id and resolves it. If id is not
// present, it signals a protocol failure (ack for an unknown id) instead
// of invoking anything. originalType is asserted against the stored
// frame's type as a design-level sanity check, not a protocol check; on a
// mismatch the entry stays in the table, so the resulting failure still
// reaches its completion.
func (t *inFlightTable) completeRequest(id uint16, originalType uint8, arg any) error {
	req, ok := t.requests[id]
	if !ok {
		return newProtocolFailure("ack for unknown message id", ErrUnknownMessageID)
	}
	if req.originalType != originalType {
		return newProtocolFailure("ack packet type mismatch", nil)
	}
	delete(t.requests, id)

	if req.complete != nil {
		req.complete.succeed(arg)
	}
	return nil
}

// replaceFrame swaps the stored frame for id (used when a QoS 2 publish
// transitions from awaiting PUBREC to awaiting PUBCOMP and the outbound
// PUBREL becomes the stored frame). The stored frame is not resent
// automatically.
func (t *inFlightTable) replaceFrame(id uint16, frame packets.Packet) {
	if req, ok := t.requests[id]; ok {
		req.frame = frame
	}
}

// markProcessed adds id to the processed-set: a QoS 2 inbound PUBLISH for
// which PUBREC has been sent but PUBREL has not yet arrived.
func (t *inFlightTable) markProcessed(id uint16) {
	t.processed[id] = struct{}{}
}

func (t *inFlightTable) isProcessed(id uint16) bool {
	_, ok := t.processed[id]
	return ok
}

func (t *inFlightTable) clearProcessed(id uint16) {
	delete(t.processed, id)
}

// empty reports whether the table holds any pending outbound requests.
// The processed-set is not part of this check: it tracks inbound
// dedup state, not outbound completions awaiting failure propagation.
func (t *inFlightTable) empty() bool {
	return len(t.requests) == 0
}

// failAll clears every pending request (and the processed-set, per
// invariant I3) and returns the completions so the caller can invoke
// OnFailure on each exactly once.
func (t *inFlightTable) failAll() []completion {
	var completions []completion
	for _, req := range t.requests {
		if req.complete != nil {
			completions = append(completions, req.complete)
		}
	}
	t.requests = make(map[uint16]*request)
	t.processed = make(map[uint16]struct{})
	return completions
}
