package mqttv3

import (
	"bytes"
	"errors"
	"io"
)

// SUBSCRIBE packet errors.
var (
	ErrNoTopicFilters = errors.New("at least one topic filter is required")
)

// Subscription pairs a topic filter with its requested QoS level.
type Subscription struct {
	// TopicFilter is the topic filter to subscribe to.
	TopicFilter string

	// QoS is the maximum QoS level the client wants for this filter.
	QoS QoS
}

// SubscribePacket represents an MQTT SUBSCRIBE packet. Its fixed
// header flags are the fixed value 0x02.
type SubscribePacket struct {
	// PacketID is the packet identifier.
	PacketID uint16

	// Subscriptions is the ordered list of requested subscriptions.
	Subscriptions []Subscription
}

// Type returns the packet type.
func (p *SubscribePacket) Type() PacketType {
	return PacketSUBSCRIBE
}

// Encode writes the packet to the writer.
func (p *SubscribePacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer

	if _, err := encodeUint16(&buf, p.PacketID); err != nil {
		return 0, err
	}

	for _, sub := range p.Subscriptions {
		if _, err := encodeString(&buf, sub.TopicFilter); err != nil {
			return 0, err
		}
		if err := buf.WriteByte(byte(sub.QoS)); err != nil {
			return 0, err
		}
	}

	header := FixedHeader{
		PacketType:      PacketSUBSCRIBE,
		Flags:           0x02,
		RemainingLength: uint32(buf.Len()),
	}

	total, err := header.Encode(w)
	if err != nil {
		return total, err
	}

	n, err := w.Write(buf.Bytes())
	return total + n, err
}

// Decode reads the packet from the reader.
func (p *SubscribePacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketSUBSCRIBE {
		return 0, ErrInvalidPacketType
	}

	if header.Flags != 0x02 {
		return 0, ErrProtocolViolation
	}

	var totalRead int

	id, n, err := decodeUint16(r)
	totalRead += n
	if err != nil {
		return totalRead, err
	}
	p.PacketID = id

	for totalRead < int(header.RemainingLength) {
		filter, n, err := decodeString(r)
		totalRead += n
		if err != nil {
			return totalRead, err
		}

		var qosBuf [1]byte
		n, err = io.ReadFull(r, qosBuf[:])
		totalRead += n
		if err != nil {
			return totalRead, err
		}

		qos := QoS(qosBuf[0])
		if !qos.Valid() {
			return totalRead, ErrInvalidQoS
		}

		p.Subscriptions = append(p.Subscriptions, Subscription{
			TopicFilter: filter,
			QoS:         qos,
		})
	}

	if len(p.Subscriptions) == 0 {
		return totalRead, ErrNoTopicFilters
	}

	return totalRead, nil
}

// Validate validates the packet contents.
func (p *SubscribePacket) Validate() error {
	if p.PacketID == 0 {
		return ErrPacketIDRequired
	}

	if len(p.Subscriptions) == 0 {
		return ErrNoTopicFilters
	}

	for _, sub := range p.Subscriptions {
		if sub.TopicFilter == "" {
			return ErrTopicNameEmpty
		}
		if !sub.QoS.Valid() {
			return ErrInvalidQoS
		}
	}

	return nil
}
