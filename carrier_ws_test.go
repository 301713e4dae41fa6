package mqttv3

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wsTestServer upgrades incoming connections and hands them to serve.
func wsTestServer(t *testing.T, serve func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{
		Subprotocols: []string{WebSocketSubprotocol},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serve(conn, r)
	}))
	t.Cleanup(server.Close)

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSCarrierNegotiatesSubprotocol(t *testing.T) {
	headers := make(chan string, 1)

	server := wsTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		headers <- r.Header.Get("Sec-WebSocket-Protocol")
		conn.Close()
	})

	carrier := NewWSCarrier(CarrierEvents{})
	require.NoError(t, carrier.Open(context.Background(), Request{URL: wsURL(server)}))
	defer carrier.Abort()

	select {
	case proto := <-headers:
		assert.Contains(t, proto, WebSocketSubprotocol)
	case <-time.After(time.Second):
		t.Fatal("handshake did not reach the server")
	}
}

func TestWSCarrierSendAndReceiveBinary(t *testing.T) {
	server := wsTestServer(t, func(conn *websocket.Conn, _ *http.Request) {
		// Echo binary frames back.
		for {
			messageType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			conn.WriteMessage(messageType, data)
		}
	})

	received := make(chan []byte, 1)
	connected := make(chan struct{}, 1)

	carrier := NewWSCarrier(CarrierEvents{
		Connected:      func() { connected <- struct{}{} },
		BinaryReceived: func(data []byte) { received <- data },
	})

	require.NoError(t, carrier.Open(context.Background(), Request{URL: wsURL(server)}))
	defer carrier.Abort()

	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("connected event did not fire")
	}

	frame := []byte{0xC0, 0x00}
	require.NoError(t, carrier.Send(frame))

	select {
	case data := <-received:
		assert.Equal(t, frame, data)
	case <-time.After(time.Second):
		t.Fatal("binary frame was not received")
	}
}

func TestWSCarrierTextFrameSurfaced(t *testing.T) {
	server := wsTestServer(t, func(conn *websocket.Conn, _ *http.Request) {
		conn.WriteMessage(websocket.TextMessage, []byte("nope"))
		// Keep the connection open until the client drops it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	texts := make(chan string, 1)

	carrier := NewWSCarrier(CarrierEvents{
		TextReceived: func(text string) { texts <- text },
	})

	require.NoError(t, carrier.Open(context.Background(), Request{URL: wsURL(server)}))
	defer carrier.Abort()

	select {
	case text := <-texts:
		assert.Equal(t, "nope", text)
	case <-time.After(time.Second):
		t.Fatal("text frame was not surfaced")
	}
}

func TestWSCarrierServerClose(t *testing.T) {
	server := wsTestServer(t, func(conn *websocket.Conn, _ *http.Request) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"),
			time.Now().Add(time.Second))
		conn.Close()
	})

	disconnected := make(chan int, 1)

	carrier := NewWSCarrier(CarrierEvents{
		Disconnected: func(code int, _ string) { disconnected <- code },
	})

	require.NoError(t, carrier.Open(context.Background(), Request{URL: wsURL(server)}))

	select {
	case code := <-disconnected:
		assert.Equal(t, websocket.CloseGoingAway, code)
	case <-time.After(time.Second):
		t.Fatal("disconnected event did not fire")
	}
}

func TestWSCarrierCustomHeaders(t *testing.T) {
	tokens := make(chan string, 1)

	server := wsTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		tokens <- r.Header.Get("X-Auth-Token")
		conn.Close()
	})

	carrier := NewWSCarrier(CarrierEvents{})
	req := Request{
		URL:    wsURL(server),
		Header: http.Header{"X-Auth-Token": []string{"sesame"}},
	}
	require.NoError(t, carrier.Open(context.Background(), req))
	defer carrier.Abort()

	select {
	case token := <-tokens:
		assert.Equal(t, "sesame", token)
	case <-time.After(time.Second):
		t.Fatal("headers did not reach the server")
	}
}

func TestWSCarrierSendBeforeOpen(t *testing.T) {
	carrier := NewWSCarrier(CarrierEvents{})
	assert.ErrorIs(t, carrier.Send([]byte{0xC0, 0x00}), ErrNotConnected)
}

func TestWSCarrierOpenTwice(t *testing.T) {
	server := wsTestServer(t, func(conn *websocket.Conn, _ *http.Request) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	carrier := NewWSCarrier(CarrierEvents{})
	require.NoError(t, carrier.Open(context.Background(), Request{URL: wsURL(server)}))
	defer carrier.Abort()

	assert.ErrorIs(t, carrier.Open(context.Background(), Request{URL: wsURL(server)}),
		ErrAlreadyConnected)
}

func TestWSCarrierDialFailure(t *testing.T) {
	carrier := NewWSCarrier(CarrierEvents{})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := carrier.Open(ctx, Request{URL: "ws://127.0.0.1:1/mqtt"})
	assert.Error(t, err)
}

func TestWSCarrierInvalidURL(t *testing.T) {
	carrier := NewWSCarrier(CarrierEvents{})
	assert.Error(t, carrier.Open(context.Background(), Request{URL: "://bad"}))
}
