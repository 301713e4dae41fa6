package mqttv3

import (
	"bytes"
	"io"
)

// UnsubscribePacket represents an MQTT UNSUBSCRIBE packet. Its fixed
// header flags are the fixed value 0x02.
type UnsubscribePacket struct {
	// PacketID is the packet identifier.
	PacketID uint16

	// TopicFilters is the list of filters to unsubscribe from.
	TopicFilters []string
}

// Type returns the packet type.
func (p *UnsubscribePacket) Type() PacketType {
	return PacketUNSUBSCRIBE
}

// Encode writes the packet to the writer.
func (p *UnsubscribePacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer

	if _, err := encodeUint16(&buf, p.PacketID); err != nil {
		return 0, err
	}

	for _, filter := range p.TopicFilters {
		if _, err := encodeString(&buf, filter); err != nil {
			return 0, err
		}
	}

	header := FixedHeader{
		PacketType:      PacketUNSUBSCRIBE,
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
func (p *UnsubscribePacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketUNSUBSCRIBE {
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
		p.TopicFilters = append(p.TopicFilters, filter)
	}

	if len(p.TopicFilters) == 0 {
		return totalRead, ErrNoTopicFilters
	}

	return totalRead, nil
}

// Validate validates the packet contents.
func (p *UnsubscribePacket) Validate() error {
	if p.PacketID == 0 {
		return ErrPacketIDRequired
	}

	if len(p.TopicFilters) == 0 {
		return ErrNoTopicFilters
	}

	for _, filter := range p.TopicFilters {
		if filter == "" {
			return ErrTopicNameEmpty
		}
	}

	return nil
}
