package mqttv3

import "io"

// ackPacket is a helper for encoding/decoding the acknowledgement
// packets whose body is exactly a 2-byte packet identifier (PUBACK,
// PUBREC, PUBREL, PUBCOMP, UNSUBACK).
type ackPacket struct {
	PacketID uint16
}

// encodeAck encodes an acknowledgement packet with the given packet
// type and flags.
func encodeAck(w io.Writer, packetType PacketType, flags byte, ack *ackPacket) (int, error) {
	header := FixedHeader{
		PacketType:      packetType,
		Flags:           flags,
		RemainingLength: 2,
	}

	total, err := header.Encode(w)
	if err != nil {
		return total, err
	}

	n, err := encodeUint16(w, ack.PacketID)
	return total + n, err
}

// decodeAck decodes an acknowledgement packet body.
func decodeAck(r io.Reader, header FixedHeader, ack *ackPacket) (int, error) {
	if header.RemainingLength != 2 {
		return 0, ErrInvalidPacket
	}

	id, n, err := decodeUint16(r)
	if err != nil {
		return n, err
	}
	ack.PacketID = id

	return n, nil
}

// validateAckID rejects the zero packet identifier.
func validateAckID(id uint16) error {
	if id == 0 {
		return ErrPacketIDRequired
	}
	return nil
}
