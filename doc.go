// Package mqttv3 implements an MQTT v3.1.1 client that transports its
// control packets over a WebSocket connection, one packet per binary
// message, negotiated through the `mqttv3.1` sub-protocol.
//
// The package contains three layers:
//
//   - a bit-exact packet codec for the 14 MQTT v3.1.1 control packets
//     (encoding.go, fixed_header.go, packet_*.go, codec.go),
//   - a client session state machine driving connection setup,
//     keep-alive, subscription and publish exchanges, and orderly
//     teardown (client.go, session.go, keep_alive.go, pending.go),
//   - a pluggable binary-message carrier, implemented on
//     github.com/gorilla/websocket (carrier.go, carrier_ws.go).
//
// The client publishes with QoS 0 and 1 and honors incoming publishes
// at QoS 0, 1, and 2. It does not resume sessions and does not
// retransmit in-flight messages across connection loss.
package mqttv3
