package mqttv3

import (
	"bytes"
	"errors"
	"io"
)

// PUBLISH packet errors.
var (
	ErrTopicNameEmpty   = errors.New("topic name cannot be empty")
	ErrInvalidQoS       = errors.New("invalid QoS level")
	ErrPacketIDRequired = errors.New("packet identifier required for QoS > 0")
)

// PublishPacket represents an MQTT PUBLISH packet.
type PublishPacket struct {
	// Topic is the topic name. Non-empty, wildcard-free.
	Topic string

	// Payload is the application message. May be empty.
	Payload []byte

	// QoS is the Quality of Service level (0, 1, or 2).
	QoS QoS

	// Retain indicates if the message should be retained.
	Retain bool

	// DUP indicates a retransmission. Always false on first
	// transmission; this client never retransmits.
	DUP bool

	// PacketID is the packet identifier (only for QoS > 0).
	PacketID uint16
}

// Type returns the packet type.
func (p *PublishPacket) Type() PacketType {
	return PacketPUBLISH
}

// flags returns the fixed header flags.
func (p *PublishPacket) flags() byte {
	var flags byte
	if p.DUP {
		flags |= 0x08
	}
	flags |= byte(p.QoS&0x03) << 1
	if p.Retain {
		flags |= 0x01
	}
	return flags
}

// setFlags parses the fixed header flags.
func (p *PublishPacket) setFlags(flags byte) {
	p.DUP = flags&0x08 != 0
	p.QoS = QoS((flags >> 1) & 0x03)
	p.Retain = flags&0x01 != 0
}

// Encode writes the packet to the writer.
func (p *PublishPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer

	// Topic Name
	if _, err := encodeString(&buf, p.Topic); err != nil {
		return 0, err
	}

	// Packet Identifier (only for QoS > 0)
	if p.QoS > QoS0 {
		if _, err := encodeUint16(&buf, p.PacketID); err != nil {
			return 0, err
		}
	}

	// Payload
	if _, err := buf.Write(p.Payload); err != nil {
		return 0, err
	}

	header := FixedHeader{
		PacketType:      PacketPUBLISH,
		Flags:           p.flags(),
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
func (p *PublishPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketPUBLISH {
		return 0, ErrInvalidPacketType
	}

	p.setFlags(header.Flags)

	if !p.QoS.Valid() {
		return 0, ErrInvalidQoS
	}

	var totalRead int

	// Topic Name
	var n int
	var err error
	p.Topic, n, err = decodeString(r)
	totalRead += n
	if err != nil {
		return totalRead, err
	}

	// Packet Identifier (only for QoS > 0)
	if p.QoS > QoS0 {
		p.PacketID, n, err = decodeUint16(r)
		totalRead += n
		if err != nil {
			return totalRead, err
		}
	}

	// Payload - the rest of the advertised remaining length
	payloadLen := int(header.RemainingLength) - totalRead
	if payloadLen < 0 {
		return totalRead, ErrInvalidPacket
	}
	if payloadLen > 0 {
		p.Payload = make([]byte, payloadLen)
		n, err = io.ReadFull(r, p.Payload)
		totalRead += n
		if err != nil {
			return totalRead, err
		}
	}

	return totalRead, nil
}

// Validate validates the packet contents.
func (p *PublishPacket) Validate() error {
	if p.Topic == "" {
		return ErrTopicNameEmpty
	}

	if !p.QoS.Valid() {
		return ErrInvalidQoS
	}

	// DUP must be 0 for QoS 0
	if p.QoS == QoS0 && p.DUP {
		return ErrInvalidPacketFlags
	}

	// Packet ID is required for QoS > 0
	if p.QoS > QoS0 && p.PacketID == 0 {
		return ErrPacketIDRequired
	}

	return nil
}

// ToMessage converts the PUBLISH packet to a Message.
func (p *PublishPacket) ToMessage() *Message {
	return &Message{
		Topic:   p.Topic,
		Payload: p.Payload,
		QoS:     p.QoS,
		Retain:  p.Retain,
		Dup:     p.DUP,
	}
}
