package mqttv3

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Client is an MQTT v3.1.1 client session over a binary-message
// carrier. A client is created with NewClient, connected with Connect,
// and torn down with Disconnect. All completion callbacks and event
// handlers run on a single dispatch goroutine, never on the decode
// path, so they may safely re-enter the client.
type Client struct {
	options *clientOptions
	log     Logger

	mu          sync.Mutex
	state       SessionState
	carrier     Carrier
	connackWait chan error

	pending *pendingTable

	idMu sync.Mutex
	ids  packetIDAllocator

	pinger   *pinger
	dispatch *dispatcher
	group    *errgroup.Group

	stateGauge Gauge
}

// NewClient creates a client with the given options. The client starts
// offline; call Connect to open a session.
func NewClient(opts ...Option) *Client {
	options := applyOptions(opts...)

	c := &Client{
		options:    options,
		log:        options.logger.WithFields(LogFields{LogFieldClientID: options.clientID}),
		state:      StateOffline,
		pending:    newPendingTable(),
		stateGauge: options.metrics.Gauge(MetricSessionState, nil),
	}

	return c
}

// ClientID returns the client identifier used in CONNECT.
func (c *Client) ClientID() string {
	return c.options.clientID
}

// State returns the current session state.
func (c *Client) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect opens the carrier to the endpoint described by req, performs
// the CONNECT/CONNACK exchange, and blocks until the server accepts or
// refuses the connection, the carrier fails, or ctx expires. All HTTP
// headers present in req are sent with the WebSocket handshake.
func (c *Client) Connect(ctx context.Context, req Request) error {
	c.mu.Lock()
	if c.state != StateOffline {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}

	c.dispatch = newDispatcher()
	c.group = new(errgroup.Group)
	c.pinger = newPinger(c.options.keepAlive, c.sendPing, c.onKeepAliveTimeout)
	c.connackWait = make(chan error, 1)

	factory := c.options.carrierFactory
	if factory == nil {
		factory = c.defaultCarrierFactory
	}
	c.carrier = factory(CarrierEvents{
		Connected:      c.onCarrierConnected,
		Disconnected:   c.onCarrierDisconnected,
		BinaryReceived: c.onCarrierBinary,
		TextReceived:   c.onCarrierText,
		TransportError: c.onCarrierTransportError,
	})

	c.setStateLocked(StateConnecting)
	carrier := c.carrier
	wait := c.connackWait
	c.mu.Unlock()

	c.group.Go(c.dispatch.run)

	if err := c.carrierOpen(ctx, carrier, req); err != nil {
		c.emit(fmt.Errorf("%w: %w", ErrConnectionFailed, err))
		c.transitionToOffline(0, err.Error())
		return err
	}

	select {
	case err := <-wait:
		return err
	case <-ctx.Done():
		carrier.Abort()
		return ctx.Err()
	}
}

// carrierOpen logs the endpoint and opens the carrier with req as given;
// the carrier adds the sub-protocol header itself.
func (c *Client) carrierOpen(ctx context.Context, carrier Carrier, req Request) error {
	c.log.Debug("opening carrier", LogFields{"url": req.URL})
	return carrier.Open(ctx, req)
}

// defaultCarrierFactory builds the WebSocket carrier from the client
// options.
func (c *Client) defaultCarrierFactory(events CarrierEvents) Carrier {
	carrier := NewWSCarrier(events)
	carrier.TLSConfig = c.options.tlsConfig
	carrier.TLSErrorAllowList = c.options.tlsErrorAllowList
	carrier.ProxyURL = c.options.proxyURL
	carrier.HandshakeTimeout = c.options.handshakeTimeout
	return carrier
}

// Disconnect tears the session down in an orderly manner: the
// keep-alive timer stops, DISCONNECT is sent, and the carrier is asked
// to close. The session reaches StateOffline once the carrier reports
// closure.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.state == StateOffline {
		c.mu.Unlock()
		return
	}

	c.pinger.stop()
	c.setStateLocked(StateDisconnecting)
	carrier := c.carrier
	c.mu.Unlock()

	if err := c.send(&DisconnectPacket{}); err != nil {
		c.log.Warn("failed to send DISCONNECT", LogFields{LogFieldError: err})
	}

	if carrier != nil {
		carrier.Close()
	}
}

// Wait blocks until the current session has fully torn down and every
// queued callback has run. Returns nil for a client that never
// connected.
func (c *Client) Wait() error {
	c.mu.Lock()
	group := c.group
	c.mu.Unlock()

	if group == nil {
		return nil
	}
	return group.Wait()
}

// Publish sends a message with QoS 0, fire-and-forget. The topic name
// must be non-empty and wildcard-free.
func (c *Client) Publish(topic string, payload []byte) error {
	return c.publish(&Message{Topic: topic, Payload: payload, QoS: QoS0}, nil)
}

// PublishQoS1 sends a message with QoS 1. done fires with true once
// the server acknowledges the message with PUBACK.
func (c *Client) PublishQoS1(topic string, payload []byte, done CompletionHandler) error {
	return c.publish(&Message{Topic: topic, Payload: payload, QoS: QoS1}, done)
}

// PublishMessage sends an application message with its QoS and retain
// flag. QoS 2 publishing is not supported. done is required for QoS 1
// and ignored for QoS 0.
func (c *Client) PublishMessage(msg *Message, done CompletionHandler) error {
	return c.publish(msg, done)
}

func (c *Client) publish(msg *Message, done CompletionHandler) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}

	if msg.QoS >= QoS2 {
		return ErrQoS2NotSupported
	}

	if err := ValidateTopicName(msg.Topic); err != nil {
		return err
	}

	if c.options.publishLimiter != nil && !c.options.publishLimiter.Allow() {
		return ErrPublishRateLimited
	}

	packet := &PublishPacket{
		Topic:   msg.Topic,
		Payload: msg.Payload,
		QoS:     msg.QoS,
		Retain:  msg.Retain,
	}

	if msg.QoS == QoS0 {
		c.log.Debug("publishing", LogFields{LogFieldTopic: msg.Topic, LogFieldQoS: msg.QoS})
		return c.send(packet)
	}

	id := c.nextPacketID()
	packet.PacketID = id

	if err := c.pending.insert(id, completionPublish1, done); err != nil {
		return err
	}

	c.log.Debug("publishing", LogFields{
		LogFieldTopic:    msg.Topic,
		LogFieldQoS:      msg.QoS,
		LogFieldPacketID: id,
	})

	if err := c.send(packet); err != nil {
		c.pending.take(id, completionPublish1)
		return err
	}

	return nil
}

// Subscribe subscribes to a topic filter with the given maximum QoS.
// done fires with true iff the server granted every requested filter.
// An invalid filter fails the completion with false on the next
// dispatch turn without transmitting anything.
func (c *Client) Subscribe(filter string, qos QoS, done CompletionHandler) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}

	if err := ValidateTopicFilter(filter); err != nil {
		c.log.Warn("invalid topic filter", LogFields{LogFieldTopic: filter})
		c.complete(done, false)
		return nil
	}

	id := c.nextPacketID()

	if err := c.pending.insert(id, completionSubscribe, done); err != nil {
		return err
	}

	c.log.Debug("subscribing", LogFields{LogFieldTopic: filter, LogFieldPacketID: id})

	packet := &SubscribePacket{
		PacketID:      id,
		Subscriptions: []Subscription{{TopicFilter: filter, QoS: qos}},
	}

	if err := c.send(packet); err != nil {
		c.pending.take(id, completionSubscribe)
		return err
	}

	return nil
}

// Unsubscribe removes a subscription. done fires with true once the
// server acknowledges with UNSUBACK. An invalid filter fails the
// completion with false without transmitting anything.
func (c *Client) Unsubscribe(filter string, done CompletionHandler) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}

	if err := ValidateTopicFilter(filter); err != nil {
		c.log.Warn("invalid topic filter", LogFields{LogFieldTopic: filter})
		c.complete(done, false)
		return nil
	}

	id := c.nextPacketID()

	if err := c.pending.insert(id, completionUnsubscribe, done); err != nil {
		return err
	}

	c.log.Debug("unsubscribing", LogFields{LogFieldTopic: filter, LogFieldPacketID: id})

	packet := &UnsubscribePacket{
		PacketID:     id,
		TopicFilters: []string{filter},
	}

	if err := c.send(packet); err != nil {
		c.pending.take(id, completionUnsubscribe)
		return err
	}

	return nil
}

// nextPacketID allocates a packet identifier distinct from every
// identifier still in flight.
func (c *Client) nextPacketID() uint16 {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	return c.ids.next(c.pending.has)
}

// send encodes a packet and hands it to the carrier, resetting the
// keep-alive timer on success.
func (c *Client) send(packet Packet) error {
	data, err := EncodePacket(packet)
	if err != nil {
		return err
	}

	c.mu.Lock()
	carrier := c.carrier
	pinger := c.pinger
	c.mu.Unlock()

	if carrier == nil {
		return ErrNotConnected
	}

	if err := carrier.Send(data); err != nil {
		return err
	}

	if pinger != nil {
		pinger.touch()
	}

	c.options.metrics.Counter(MetricPacketsSent,
		MetricLabels{"packet_type": packet.Type().String()}).Inc()
	c.options.metrics.Counter(MetricBytesSent, nil).Add(float64(len(data)))

	return nil
}

// sendPing transmits a PINGREQ on a keep-alive tick.
func (c *Client) sendPing() {
	c.log.Debug("sending ping", nil)
	if err := c.send(&PingreqPacket{}); err != nil {
		c.log.Warn("failed to send PINGREQ", LogFields{LogFieldError: err})
	}
}

// onKeepAliveTimeout handles a tick with no pong since the previous
// PINGREQ.
func (c *Client) onKeepAliveTimeout() {
	c.options.metrics.Counter(MetricKeepAliveTimeouts, nil).Inc()
	c.emit(fmt.Errorf("%w: pong not received within expected time", ErrTimeout))
	c.Disconnect()
}

// onCarrierConnected sends CONNECT as soon as the carrier handshake
// finishes.
func (c *Client) onCarrierConnected() {
	c.log.Debug("carrier connected", nil)

	keepAlive := uint16(c.options.keepAlive / time.Second)

	packet := &ConnectPacket{
		ClientID:     c.options.clientID,
		CleanSession: c.options.cleanSession,
		KeepAlive:    keepAlive,
		Username:     c.options.username,
		Password:     c.options.password,
		Will:         c.options.will,
	}

	if err := c.send(packet); err != nil {
		c.log.Error("failed to send CONNECT", LogFields{LogFieldError: err})
		c.signalConnack(err)

		c.mu.Lock()
		carrier := c.carrier
		c.mu.Unlock()
		if carrier != nil {
			carrier.Abort()
		}
	}
}

// onCarrierBinary decodes one frame and dispatches the packet.
func (c *Client) onCarrierBinary(data []byte) {
	c.options.metrics.Counter(MetricBytesReceived, nil).Add(float64(len(data)))

	packet, err := DecodePacket(data)
	if err != nil {
		c.options.metrics.Counter(MetricDecodeErrors, nil).Inc()
		c.log.Warn("failed to decode packet", LogFields{LogFieldError: err})
		c.emit(err)
		return
	}

	c.options.metrics.Counter(MetricPacketsReceived,
		MetricLabels{"packet_type": packet.Type().String()}).Inc()

	switch p := packet.(type) {
	case *ConnackPacket:
		c.handleConnack(p)
	case *PublishPacket:
		c.handlePublish(p)
	case *PubackPacket:
		c.handlePuback(p)
	case *SubackPacket:
		c.handleSuback(p)
	case *UnsubackPacket:
		c.handleUnsuback(p)
	case *PubrelPacket:
		c.handlePubrel(p)
	case *PingrespPacket:
		c.handlePingresp()
	case *PubrecPacket, *PubcompPacket:
		// The client never originates QoS 2 publishes, so these have
		// no exchange to advance.
		c.log.Warn("unhandled packet", LogFields{LogFieldPacketType: packet.Type().String()})
	default:
		// CONNECT, SUBSCRIBE, UNSUBSCRIBE, PINGREQ, DISCONNECT are
		// never sent to a client.
		c.log.Debug("ignoring server-only packet", LogFields{
			LogFieldPacketType: packet.Type().String(),
		})
	}
}

// onCarrierText reports the protocol violation and closes the
// connection. MQTT frames are always binary.
func (c *Client) onCarrierText(text string) {
	c.emit(fmt.Errorf("%w: received a text message on the MQTT connection (%q)",
		ErrProtocolViolation, text))

	c.mu.Lock()
	carrier := c.carrier
	c.mu.Unlock()
	if carrier != nil {
		carrier.Close()
	}
}

// onCarrierDisconnected finishes the transition back to offline.
func (c *Client) onCarrierDisconnected(code int, reason string) {
	c.log.Debug("carrier disconnected", LogFields{"code": code, "reason": reason})
	c.transitionToOffline(code, reason)
}

// onCarrierTransportError surfaces a transport failure.
func (c *Client) onCarrierTransportError(err error) {
	failure := fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	c.emit(failure)
	c.signalConnack(failure)
}

// handleConnack drives the CONNECTING → CONNECTED transition.
func (c *Client) handleConnack(p *ConnackPacket) {
	c.mu.Lock()
	if c.state != StateConnecting {
		carrier := c.carrier
		c.mu.Unlock()

		c.emit(fmt.Errorf("%w: received CONNACK while already connected", ErrProtocolViolation))
		if carrier != nil {
			carrier.Abort()
		}
		return
	}

	if !p.ReturnCode.Accepted() {
		carrier := c.carrier
		c.mu.Unlock()

		refusal := p.ReturnCode.Err()
		c.log.Warn("connection refused", LogFields{LogFieldError: refusal})
		c.emit(refusal)
		c.signalConnack(refusal)
		if carrier != nil {
			carrier.Abort()
		}
		return
	}

	c.setStateLocked(StateConnected)
	pinger := c.pinger
	c.mu.Unlock()

	c.log.Info("connected", LogFields{"session_present": p.SessionPresent})

	pinger.start()
	c.emit(&ConnectedEvent{SessionPresent: p.SessionPresent})
	c.signalConnack(nil)
}

// handlePublish delivers an incoming message and advances its QoS
// handshake. Redelivered QoS 2 payloads are not deduplicated; the
// application observes them idempotently.
func (c *Client) handlePublish(p *PublishPacket) {
	c.log.Debug("received publish", LogFields{
		LogFieldTopic:    p.Topic,
		LogFieldQoS:      p.QoS,
		LogFieldPacketID: p.PacketID,
	})

	if c.options.onMessage != nil {
		msg := p.ToMessage()
		c.dispatch.enqueue(func() {
			c.options.onMessage(msg)
		})
	}

	switch p.QoS {
	case QoS1:
		if err := c.send(&PubackPacket{PacketID: p.PacketID}); err != nil {
			c.log.Warn("failed to send PUBACK", LogFields{LogFieldError: err})
		}
	case QoS2:
		if err := c.send(&PubrecPacket{PacketID: p.PacketID}); err != nil {
			c.log.Warn("failed to send PUBREC", LogFields{LogFieldError: err})
		}
	}
}

// handlePubrel completes the QoS 2 receive handshake.
func (c *Client) handlePubrel(p *PubrelPacket) {
	c.log.Debug("received pubrel", LogFields{LogFieldPacketID: p.PacketID})
	if err := c.send(&PubcompPacket{PacketID: p.PacketID}); err != nil {
		c.log.Warn("failed to send PUBCOMP", LogFields{LogFieldError: err})
	}
}

// handlePuback fulfils a pending QoS 1 publish.
func (c *Client) handlePuback(p *PubackPacket) {
	entry, ok := c.pending.take(p.PacketID, completionPublish1)
	if !ok {
		c.log.Warn("puback for unknown packet identifier", LogFields{LogFieldPacketID: p.PacketID})
		return
	}
	c.complete(entry.done, true)
}

// handleSuback fulfils a pending subscribe. The result is true iff
// every returned QoS is a granted level, false if any filter failed.
func (c *Client) handleSuback(p *SubackPacket) {
	entry, ok := c.pending.take(p.PacketID, completionSubscribe)
	if !ok {
		c.log.Warn("suback for unknown packet identifier", LogFields{LogFieldPacketID: p.PacketID})
		return
	}
	c.complete(entry.done, p.Granted())
}

// handleUnsuback fulfils a pending unsubscribe.
func (c *Client) handleUnsuback(p *UnsubackPacket) {
	entry, ok := c.pending.take(p.PacketID, completionUnsubscribe)
	if !ok {
		c.log.Warn("unsuback for unknown packet identifier", LogFields{LogFieldPacketID: p.PacketID})
		return
	}
	c.complete(entry.done, true)
}

// handlePingresp records the pong for the keep-alive timer.
func (c *Client) handlePingresp() {
	c.log.Debug("received pong", nil)

	c.mu.Lock()
	pinger := c.pinger
	c.mu.Unlock()

	if pinger != nil {
		pinger.pong()
	}
}

// transitionToOffline is the single path back to StateOffline. It
// stops the keep-alive timer, fails every still-pending completion
// with false, emits the disconnected event, and shuts the dispatcher
// down once the queue has drained.
func (c *Client) transitionToOffline(code int, reason string) {
	c.mu.Lock()
	if c.state == StateOffline {
		c.mu.Unlock()
		return
	}

	if c.pinger != nil {
		c.pinger.stop()
	}
	c.setStateLocked(StateOffline)
	c.carrier = nil
	dispatch := c.dispatch
	c.mu.Unlock()

	c.signalConnack(fmt.Errorf("%w: carrier closed during connect", ErrConnectionFailed))

	// Acknowledgements for these requests will never arrive.
	for _, entry := range c.pending.drain() {
		c.complete(entry.done, false)
	}

	c.emit(&DisconnectedEvent{Code: code, Reason: reason})
	c.log.Info("disconnected", LogFields{"code": code, "reason": reason})

	if dispatch != nil {
		dispatch.close()
	}
}

// setStateLocked transitions the session state and schedules the
// state-change notifications. Callers hold c.mu.
func (c *Client) setStateLocked(state SessionState) {
	if c.state == state {
		return
	}

	c.state = state
	c.stateGauge.Set(float64(state))
	c.log.Debug("state changed", LogFields{LogFieldState: state.String()})

	event := &StateChangeEvent{State: state}
	handler := c.options.onStateChange
	if c.dispatch != nil {
		c.dispatch.enqueue(func() {
			if handler != nil {
				handler(event.State)
			}
			if c.options.onEvent != nil {
				c.options.onEvent(c, event)
			}
		})
	}
}

// emit schedules an event for the event handler.
func (c *Client) emit(event error) {
	if c.options.onEvent == nil {
		return
	}

	c.mu.Lock()
	dispatch := c.dispatch
	c.mu.Unlock()

	if dispatch == nil {
		return
	}

	dispatch.enqueue(func() {
		c.options.onEvent(c, event)
	})
}

// complete schedules a one-shot completion for the next dispatch turn.
func (c *Client) complete(done CompletionHandler, ok bool) {
	if done == nil {
		return
	}

	c.mu.Lock()
	dispatch := c.dispatch
	c.mu.Unlock()

	if dispatch == nil {
		return
	}

	dispatch.enqueue(func() {
		done(ok)
	})
}

// signalConnack unblocks a waiting Connect call, once.
func (c *Client) signalConnack(err error) {
	c.mu.Lock()
	wait := c.connackWait
	c.connackWait = nil
	c.mu.Unlock()

	if wait == nil {
		return
	}

	wait <- err
}
