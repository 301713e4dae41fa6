package mqttv3

import (
	"bytes"
	"errors"
	"io"
)

// CONNACK packet errors.
var (
	ErrInvalidConnackFlags = errors.New("invalid CONNACK flags")
	ErrInvalidReturnCode   = errors.New("invalid CONNACK return code")
)

// ConnackPacket represents an MQTT CONNACK packet.
type ConnackPacket struct {
	// SessionPresent indicates the server resumed a session from a
	// previous connection.
	SessionPresent bool

	// ReturnCode is the connection result.
	ReturnCode ConnectReturnCode
}

// Type returns the packet type.
func (p *ConnackPacket) Type() PacketType {
	return PacketCONNACK
}

// Encode writes the packet to the writer.
func (p *ConnackPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer

	// Connect Acknowledge Flags
	var flags byte
	if p.SessionPresent {
		flags = 0x01
	}
	if err := buf.WriteByte(flags); err != nil {
		return 0, err
	}

	// Return Code
	if err := buf.WriteByte(byte(p.ReturnCode)); err != nil {
		return 1, err
	}

	header := FixedHeader{
		PacketType:      PacketCONNACK,
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
func (p *ConnackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketCONNACK {
		return 0, ErrInvalidPacketType
	}

	if header.RemainingLength != 2 {
		return 0, ErrInvalidPacket
	}

	var totalRead int

	// Connect Acknowledge Flags
	var flagsBuf [1]byte
	n, err := io.ReadFull(r, flagsBuf[:])
	totalRead += n
	if err != nil {
		return totalRead, err
	}

	// Upper 7 bits are reserved and must be zero
	if flagsBuf[0]&0xFE != 0 {
		return totalRead, ErrInvalidConnackFlags
	}

	p.SessionPresent = flagsBuf[0]&0x01 != 0

	// Return Code
	var codeBuf [1]byte
	n, err = io.ReadFull(r, codeBuf[:])
	totalRead += n
	if err != nil {
		return totalRead, err
	}
	p.ReturnCode = ConnectReturnCode(codeBuf[0])

	if !p.ReturnCode.Valid() {
		return totalRead, ErrInvalidReturnCode
	}

	return totalRead, nil
}

// Validate validates the packet contents.
func (p *ConnackPacket) Validate() error {
	if !p.ReturnCode.Valid() {
		return ErrInvalidReturnCode
	}

	// A refused connection cannot carry a resumed session.
	if p.ReturnCode != ConnectionAccepted && p.SessionPresent {
		return ErrInvalidConnackFlags
	}

	return nil
}
