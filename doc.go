// Package mq implements the core MQTT 3.1 client connection engine: a
// single-threaded, callback-driven state machine that sits above an
// already-established, framed byte transport and drives the
// publish/subscribe protocol's QoS 0/1/2 flows, message-id allocation,
// keep-alive, flow-control backpressure, and failure propagation.
//
// Dialing, TLS, and the CONNECT/CONNACK handshake are out of scope: this
// package is handed a live Transport by an external collaborator and
// never opens a socket itself.
//
// # Execution model
//
// Every ConnectionCore method, every Transport callback, and every
// scheduled timer runs on a single serial execution context (see
// internal/dispatch), the same one the embedding transport uses. There
// is no internal locking: state is mutated only from closures posted to
// or run on that queue.
//
// # Completions
//
// Asynchronous operations resolve through Callback[T], a pair of
// OnSuccess/OnFailure functions invoked at most once:
//
//	core.Publish("sensors/temperature", []byte("22.5"), 1, false,
//	    mq.Callback[struct{}]{
//	        OnSuccess: func(struct{}) { log.Println("acked") },
//	        OnFailure: func(err error) { log.Println("publish failed:", err) },
//	    })
//
// SUBSCRIBE resolves with the server's granted-QoS bytes:
//
//	core.Subscribe([]string{"sensors/+/temperature"}, []uint8{1},
//	    mq.Callback[[]uint8]{
//	        OnSuccess: func(granted []uint8) { log.Println("granted:", granted) },
//	    })
//
// # Delivery
//
// Inbound PUBLISH frames reach the embedder through a Listener installed
// with SetListener. The embedder must invoke the supplied AckCompletion
// exactly once per delivery to release QoS 1/2 packet ids; the engine
// emits the matching PUBACK or PUBREC when that happens.
//
// # Failure
//
// A transport I/O error, an unexpected frame, or a ping timeout is
// terminal: every pending completion receives exactly one OnFailure,
// the installed Listener's Failure method is notified once, and no
// further frames are written. Subsequent calls fail synchronously with
// the same error.
package mq
