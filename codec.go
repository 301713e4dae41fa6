package mqttv3

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Decoder errors. These are the three failure kinds surfaced for
// malformed or disallowed input; the concrete cause is wrapped.
var (
	// ErrInvalidPacket means the decoder rejected malformed bytes.
	ErrInvalidPacket = errors.New("invalid packet")

	// ErrProtocolViolation means the bytes were well-formed but not
	// allowed in context (for example wrong PUBREL flags).
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrParseError means an internal buffer or read failure occurred
	// during decoding.
	ErrParseError = errors.New("parse error")

	// ErrPacketTooLarge means the remaining length exceeds the 256 MiB
	// transmission limit.
	ErrPacketTooLarge = errors.New("packet exceeds maximum size")
)

// MaxPacketSize is the largest remaining length accepted for both
// encoding and decoding: 256 MiB.
const MaxPacketSize = maxRemainingLength

// DecodePacket parses a single binary frame into a typed control
// packet. A frame carries exactly one MQTT packet, no more and no
// less; trailing bytes beyond the advertised remaining length are
// rejected.
func DecodePacket(frame []byte) (Packet, error) {
	r := bytes.NewReader(frame)

	var header FixedHeader
	if _, err := header.Decode(r); err != nil {
		return nil, classifyDecodeError(err)
	}

	if err := header.ValidateFlags(); err != nil {
		// Wrong PUBREL flags are well-formed but disallowed, a
		// violation rather than malformed bytes.
		if header.PacketType == PacketPUBREL {
			return nil, fmt.Errorf("%w: PUBREL flags 0x%02X", ErrProtocolViolation, header.Flags)
		}
		return nil, classifyDecodeError(err)
	}

	if header.RemainingLength > MaxPacketSize {
		return nil, fmt.Errorf("%w: remaining length %d", ErrInvalidPacket, header.RemainingLength)
	}

	if uint32(r.Len()) != header.RemainingLength {
		return nil, fmt.Errorf("%w: advertised %d bytes, frame carries %d",
			ErrInvalidPacket, header.RemainingLength, r.Len())
	}

	packet, err := newPacket(header.PacketType)
	if err != nil {
		return nil, classifyDecodeError(err)
	}

	if _, err := packet.Decode(r, header); err != nil {
		return nil, classifyDecodeError(err)
	}

	return packet, nil
}

// EncodePacket serializes a control packet into the byte string for
// one WebSocket binary message. Packets whose remaining length exceeds
// MaxPacketSize are refused with an empty encoding.
func EncodePacket(packet Packet) ([]byte, error) {
	var buf bytes.Buffer
	n, err := packet.Encode(&buf)
	if err != nil {
		return nil, err
	}

	if n > MaxPacketSize {
		return nil, ErrPacketTooLarge
	}

	return buf.Bytes(), nil
}

// ReadPacket reads a complete MQTT packet from a byte-stream reader.
// If maxSize is greater than 0, packets larger than maxSize return
// ErrPacketTooLarge.
func ReadPacket(r io.Reader, maxSize uint32) (Packet, int, error) {
	var header FixedHeader
	n, err := header.Decode(r)
	if err != nil {
		return nil, n, err
	}

	if err := header.ValidateFlags(); err != nil {
		return nil, n, err
	}

	if maxSize > 0 && header.RemainingLength > maxSize {
		return nil, n, ErrPacketTooLarge
	}

	remaining := make([]byte, header.RemainingLength)
	if header.RemainingLength > 0 {
		rn, err := io.ReadFull(r, remaining)
		n += rn
		if err != nil {
			return nil, n, err
		}
	}

	packet, err := newPacket(header.PacketType)
	if err != nil {
		return nil, n, err
	}

	if _, err := packet.Decode(bytes.NewReader(remaining), header); err != nil {
		return nil, n, err
	}

	return packet, n, nil
}

// WritePacket writes a complete MQTT packet to the writer. If maxSize
// is greater than 0, packets larger than maxSize return
// ErrPacketTooLarge.
func WritePacket(w io.Writer, packet Packet, maxSize uint32) (int, error) {
	if err := packet.Validate(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	n, err := packet.Encode(&buf)
	if err != nil {
		return 0, err
	}
	if maxSize > 0 && uint32(n) > maxSize {
		return 0, ErrPacketTooLarge
	}

	return w.Write(buf.Bytes())
}

// newPacket returns an empty packet value for the given type.
func newPacket(packetType PacketType) (Packet, error) {
	switch packetType {
	case PacketCONNECT:
		return &ConnectPacket{}, nil
	case PacketCONNACK:
		return &ConnackPacket{}, nil
	case PacketPUBLISH:
		return &PublishPacket{}, nil
	case PacketPUBACK:
		return &PubackPacket{}, nil
	case PacketPUBREC:
		return &PubrecPacket{}, nil
	case PacketPUBREL:
		return &PubrelPacket{}, nil
	case PacketPUBCOMP:
		return &PubcompPacket{}, nil
	case PacketSUBSCRIBE:
		return &SubscribePacket{}, nil
	case PacketSUBACK:
		return &SubackPacket{}, nil
	case PacketUNSUBSCRIBE:
		return &UnsubscribePacket{}, nil
	case PacketUNSUBACK:
		return &UnsubackPacket{}, nil
	case PacketPINGREQ:
		return &PingreqPacket{}, nil
	case PacketPINGRESP:
		return &PingrespPacket{}, nil
	case PacketDISCONNECT:
		return &DisconnectPacket{}, nil
	default:
		return nil, ErrInvalidPacketType
	}
}

// classifyDecodeError folds a concrete decoding failure into one of
// the three decoder error kinds, preserving the cause.
func classifyDecodeError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInvalidPacket),
		errors.Is(err, ErrProtocolViolation),
		errors.Is(err, ErrParseError):
		return err
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: truncated packet", ErrInvalidPacket)
	case errors.Is(err, ErrInvalidPacketType),
		errors.Is(err, ErrInvalidPacketFlags),
		errors.Is(err, ErrVarintMalformed),
		errors.Is(err, ErrVarintTooLarge),
		errors.Is(err, ErrInvalidConnackFlags),
		errors.Is(err, ErrInvalidReturnCode),
		errors.Is(err, ErrInvalidSubackCode),
		errors.Is(err, ErrInvalidQoS),
		errors.Is(err, ErrInvalidUTF8),
		errors.Is(err, ErrStringContainsNull):
		return fmt.Errorf("%w: %w", ErrInvalidPacket, err)
	default:
		return fmt.Errorf("%w: %w", ErrParseError, err)
	}
}
