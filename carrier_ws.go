package mqttv3

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketSubprotocol is the sub-protocol negotiated for MQTT v3.1.1
// over WebSocket.
const WebSocketSubprotocol = "mqttv3.1"

// defaultHandshakeTimeout bounds the WebSocket opening handshake.
const defaultHandshakeTimeout = 10 * time.Second

// WSCarrier is the WebSocket implementation of Carrier, built on
// github.com/gorilla/websocket. Every MQTT packet travels as one
// binary message.
type WSCarrier struct {
	// TLSConfig is the TLS configuration for wss:// endpoints.
	TLSConfig *tls.Config

	// TLSErrorAllowList is the set of certificate verification
	// failure codes tolerated at connection time.
	TLSErrorAllowList []TLSErrorCode

	// ProxyURL, when non-empty, routes the connection through a
	// socks5:// proxy.
	ProxyURL string

	// HandshakeTimeout bounds the opening handshake. Zero means the
	// default.
	HandshakeTimeout time.Duration

	events CarrierEvents

	mu      sync.Mutex
	conn    *websocket.Conn
	closed  atomic.Bool
	started atomic.Bool
}

// NewWSCarrier creates a WebSocket carrier delivering to the given
// event callbacks.
func NewWSCarrier(events CarrierEvents) *WSCarrier {
	return &WSCarrier{events: events}
}

// Open dials the endpoint, negotiates the mqttv3.1 sub-protocol, and
// starts the read pump.
func (c *WSCarrier) Open(ctx context.Context, req Request) error {
	if c.started.Swap(true) {
		return ErrAlreadyConnected
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return err
	}

	timeout := c.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}

	dialer := &websocket.Dialer{
		Subprotocols:     []string{WebSocketSubprotocol},
		HandshakeTimeout: timeout,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		TLSClientConfig:  tlsConfigWithAllowList(c.TLSConfig, u.Hostname(), c.TLSErrorAllowList),
	}

	if c.ProxyURL != "" {
		netDial, err := socks5DialContext(c.ProxyURL)
		if err != nil {
			return err
		}
		dialer.NetDialContext = netDial
	}

	header := http.Header{}
	for k, values := range req.Header {
		for _, v := range values {
			header.Add(k, v)
		}
	}

	conn, _, err := dialer.DialContext(ctx, req.URL, header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	if c.events.Connected != nil {
		c.events.Connected()
	}

	go c.readPump(conn)

	return nil
}

// Send transmits one binary message.
func (c *WSCarrier) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.closed.Load() {
		return ErrNotConnected
	}

	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// Close starts an orderly shutdown: a close frame followed by
// connection teardown. The Disconnected event fires from the read
// pump.
func (c *WSCarrier) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil || c.closed.Swap(true) {
		return nil
	}

	deadline := time.Now().Add(time.Second)
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)

	return conn.Close()
}

// Abort drops the connection without a closing handshake.
func (c *WSCarrier) Abort() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil || c.closed.Swap(true) {
		return
	}

	conn.Close()
}

// readPump delivers incoming messages until the connection dies.
func (c *WSCarrier) readPump(conn *websocket.Conn) {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			c.dispatchReadError(err)
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			if c.events.BinaryReceived != nil {
				c.events.BinaryReceived(data)
			}
		case websocket.TextMessage:
			if c.events.TextReceived != nil {
				c.events.TextReceived(string(data))
			}
		}
	}
}

func (c *WSCarrier) dispatchReadError(err error) {
	if closeErr, ok := err.(*websocket.CloseError); ok {
		if c.events.Disconnected != nil {
			c.events.Disconnected(closeErr.Code, closeErr.Text)
		}
		return
	}

	if c.closed.Load() {
		// Local teardown; not a transport failure.
		if c.events.Disconnected != nil {
			c.events.Disconnected(websocket.CloseNormalClosure, "")
		}
		return
	}

	if c.events.TransportError != nil {
		c.events.TransportError(err)
	}
	if c.events.Disconnected != nil {
		c.events.Disconnected(websocket.CloseAbnormalClosure, err.Error())
	}
}
