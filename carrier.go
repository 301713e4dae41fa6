package mqttv3

import (
	"context"
	"net/http"
)

// Request describes the endpoint a carrier connects to: the URL plus
// any additional HTTP headers sent with the WebSocket handshake. The
// carrier sets the `Sec-WebSocket-Protocol: mqttv3.1` header itself,
// exactly once per request; the session adds none of its own.
type Request struct {
	// URL is the ws:// or wss:// endpoint.
	URL string

	// Header holds additional HTTP headers for the handshake request.
	Header http.Header
}

// CarrierEvents is the set of callbacks a carrier invokes as the
// connection progresses. Connected fires from Open once the handshake
// finished; the other callbacks fire from the carrier's read pump in
// receipt order. Unset callbacks are skipped.
type CarrierEvents struct {
	// Connected fires when the carrier finished its handshake.
	Connected func()

	// Disconnected fires when the carrier closed, with the peer's
	// close code and reason when one was received.
	Disconnected func(code int, reason string)

	// BinaryReceived fires for every binary message.
	BinaryReceived func(data []byte)

	// TextReceived fires for a text message, which is a protocol
	// violation on an MQTT connection.
	TextReceived func(text string)

	// TransportError fires for a transport-level failure on an open
	// connection. TLS verification failures happen during the
	// handshake and are returned as an error from Open instead.
	TransportError func(err error)
}

// Carrier is an abstract bidirectional binary-message channel. One
// binary message carries exactly one MQTT control packet. A carrier is
// owned by a single session for the duration of one connection attempt.
type Carrier interface {
	// Open establishes the connection and starts delivering events.
	Open(ctx context.Context, req Request) error

	// Send transmits one binary message.
	Send(data []byte) error

	// Close shuts the connection down in an orderly fashion.
	Close() error

	// Abort drops the connection immediately.
	Abort()
}
