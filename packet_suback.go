package mqttv3

import (
	"bytes"
	"errors"
	"io"
)

// SUBACK packet errors.
var (
	ErrInvalidSubackCode = errors.New("invalid SUBACK return code")
	ErrNoSubackCodes     = errors.New("SUBACK carries no return codes")
)

// subackFailureCode is the wire value marking a failed subscription in
// a SUBACK return list.
const subackFailureCode = 0x80

// SubackPacket represents an MQTT SUBACK packet.
type SubackPacket struct {
	// PacketID is the identifier of the acknowledged SUBSCRIBE.
	PacketID uint16

	// ReturnCodes is the granted QoS per filter, in request order.
	// A failed subscription is reported as QoSFailure.
	ReturnCodes []QoS
}

// Type returns the packet type.
func (p *SubackPacket) Type() PacketType {
	return PacketSUBACK
}

// Encode writes the packet to the writer.
func (p *SubackPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer

	if _, err := encodeUint16(&buf, p.PacketID); err != nil {
		return 0, err
	}

	for _, code := range p.ReturnCodes {
		wire := byte(code)
		if code == QoSFailure {
			wire = subackFailureCode
		}
		if err := buf.WriteByte(wire); err != nil {
			return 0, err
		}
	}

	header := FixedHeader{
		PacketType:      PacketSUBACK,
		Flags:           0x00,
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
func (p *SubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketSUBACK {
		return 0, ErrInvalidPacketType
	}

	if header.RemainingLength < 2 {
		return 0, ErrInvalidPacket
	}

	var totalRead int

	id, n, err := decodeUint16(r)
	totalRead += n
	if err != nil {
		return totalRead, err
	}
	p.PacketID = id

	codes := make([]byte, header.RemainingLength-2)
	n, err = io.ReadFull(r, codes)
	totalRead += n
	if err != nil {
		return totalRead, err
	}

	p.ReturnCodes = make([]QoS, 0, len(codes))
	for _, code := range codes {
		switch code {
		case 0, 1, 2:
			p.ReturnCodes = append(p.ReturnCodes, QoS(code))
		case subackFailureCode:
			p.ReturnCodes = append(p.ReturnCodes, QoSFailure)
		default:
			return totalRead, ErrInvalidSubackCode
		}
	}

	return totalRead, nil
}

// Validate validates the packet contents.
func (p *SubackPacket) Validate() error {
	if p.PacketID == 0 {
		return ErrPacketIDRequired
	}

	if len(p.ReturnCodes) == 0 {
		return ErrNoSubackCodes
	}

	for _, code := range p.ReturnCodes {
		if !code.Valid() && code != QoSFailure {
			return ErrInvalidSubackCode
		}
	}

	return nil
}

// Granted reports whether every filter in the request was granted a
// valid QoS level.
func (p *SubackPacket) Granted() bool {
	for _, code := range p.ReturnCodes {
		if code == QoSFailure {
			return false
		}
	}
	return true
}
