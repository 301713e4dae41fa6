package mqttv3

import "errors"

// EventHandler receives lifecycle events and errors from a client.
// Events are error values: check the category with errors.Is and
// extract details with errors.As.
type EventHandler func(client *Client, event error)

// MessageHandler receives application messages published to the
// client's subscriptions.
type MessageHandler func(msg *Message)

// CompletionHandler receives the one-shot result of a subscribe,
// unsubscribe, or QoS 1 publish request. It is never invoked
// synchronously from the decode path; dispatch happens on a later
// event-loop turn.
type CompletionHandler func(ok bool)

// Sentinel events for the client lifecycle - check with errors.Is().
var (
	// ErrConnected is emitted when the server accepts the connection.
	ErrConnected = errors.New("connected")

	// ErrDisconnected is emitted on every re-entry into the offline
	// state.
	ErrDisconnected = errors.New("disconnected")

	// ErrStateChanged is emitted on every session state transition.
	ErrStateChanged = errors.New("state changed")
)

// Sentinel errors for refused connections, mapped from the CONNACK
// return code - check with errors.Is().
var (
	// ErrUnacceptableProtocol is CONNACK return code 1.
	ErrUnacceptableProtocol = errors.New("connection refused: unacceptable protocol version")

	// ErrIdentifierRejected is CONNACK return code 2.
	ErrIdentifierRejected = errors.New("connection refused: identifier rejected")

	// ErrServerUnavailable is CONNACK return code 3.
	ErrServerUnavailable = errors.New("connection refused: server unavailable")

	// ErrBadUsernameOrPassword is CONNACK return code 4.
	ErrBadUsernameOrPassword = errors.New("connection refused: bad user name or password")

	// ErrNotAuthorized is CONNACK return code 5.
	ErrNotAuthorized = errors.New("connection refused: not authorized")
)

// Sentinel errors for session-level failures - check with errors.Is().
var (
	// ErrTimeout is emitted when the keep-alive pong does not arrive
	// before the next tick.
	ErrTimeout = errors.New("keep-alive timeout")

	// ErrConnectionFailed is emitted on carrier or TLS transport
	// failure.
	ErrConnectionFailed = errors.New("connection failed")
)

// Sentinel errors for misuse of the client API - check with errors.Is().
var (
	// ErrNotConnected is returned when an operation requires an active
	// connection.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected is returned when connect is called outside
	// the offline state.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrQoS2NotSupported is returned when publishing with QoS 2,
	// which this client does not offer. QoS 2 is honored on the
	// receive side only.
	ErrQoS2NotSupported = errors.New("publishing with QoS 2 is not supported")

	// ErrPublishRateLimited is returned when a publish finds the
	// configured rate-limit bucket empty.
	ErrPublishRateLimited = errors.New("publish rate limit exceeded")
)

// StateChangeEvent carries a session state transition.
// Extract with errors.As().
type StateChangeEvent struct {
	State SessionState
}

func (e *StateChangeEvent) Error() string { return "state changed: " + e.State.String() }
func (e *StateChangeEvent) Unwrap() error { return ErrStateChanged }

// ConnectedEvent carries the accepted CONNACK details.
// Extract with errors.As().
type ConnectedEvent struct {
	SessionPresent bool
}

func (e *ConnectedEvent) Error() string { return ErrConnected.Error() }
func (e *ConnectedEvent) Unwrap() error { return ErrConnected }

// DisconnectedEvent is emitted when the carrier has closed and the
// session is back offline. Extract with errors.As().
type DisconnectedEvent struct {
	// Code is the carrier close code, when one was received.
	Code int

	// Reason is the carrier close reason, when one was received.
	Reason string
}

func (e *DisconnectedEvent) Error() string { return ErrDisconnected.Error() }
func (e *DisconnectedEvent) Unwrap() error { return ErrDisconnected }
