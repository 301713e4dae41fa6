package mqttv3

import (
	"bytes"
	"errors"
	"io"
)

// CONNECT packet constants.
const (
	protocolName  = "MQTT"
	protocolLevel = 4

	// maxClientIDLength is the exclusive upper bound on client
	// identifier length. Tighter than the specification's 23-character
	// floor, matching server interop expectations.
	maxClientIDLength = 24
)

// Connect flag bit positions.
const (
	connectFlagCleanSession = 0x02
	connectFlagWill         = 0x04
	connectFlagWillRetain   = 0x20
	connectFlagPassword     = 0x40
	connectFlagUsername     = 0x80
)

// CONNECT packet errors.
var (
	ErrInvalidProtocolName  = errors.New("invalid protocol name")
	ErrInvalidProtocolLevel = errors.New("unsupported protocol level")
	ErrInvalidConnectFlags  = errors.New("invalid connect flags")
	ErrInvalidClientID      = errors.New("client identifier must be non-empty and shorter than 24 characters")
	ErrUsernameEmpty        = errors.New("username must be non-empty when present")
)

// ConnectPacket represents an MQTT CONNECT packet.
type ConnectPacket struct {
	// ClientID is the client identifier. Required, non-empty, shorter
	// than 24 characters.
	ClientID string

	// CleanSession requests that the server discard any previous
	// session state.
	CleanSession bool

	// KeepAlive is the keep-alive interval in seconds. Zero disables
	// keep-alive.
	KeepAlive uint16

	// Username for authentication. Must be non-empty when set.
	Username string

	// Password for authentication. Included iff non-nil; an empty
	// non-nil password is sent as a zero-length field.
	Password []byte

	// Will is the last-testament message the server publishes on the
	// client's behalf if the connection drops non-gracefully. The zero
	// value means no will.
	Will Will
}

// Type returns the packet type.
func (p *ConnectPacket) Type() PacketType {
	return PacketCONNECT
}

// hasPassword reports whether a password field is present. The nil/
// empty distinction is deliberate so that an empty password can be
// supplied.
func (p *ConnectPacket) hasPassword() bool {
	return p.Password != nil
}

// connectFlags returns the connect flags byte. Bit 0 is reserved zero.
func (p *ConnectPacket) connectFlags() byte {
	var flags byte

	if p.Username != "" {
		flags |= connectFlagUsername
	}

	if p.hasPassword() {
		flags |= connectFlagPassword
	}

	if p.Will.Valid() {
		flags |= connectFlagWill
		flags |= byte(p.Will.QoS&0x03) << 3
		if p.Will.Retain {
			flags |= connectFlagWillRetain
		}
	}

	if p.CleanSession {
		flags |= connectFlagCleanSession
	}

	return flags
}

// setConnectFlags parses the connect flags byte.
func (p *ConnectPacket) setConnectFlags(flags byte) error {
	// Reserved bit must be 0
	if flags&0x01 != 0 {
		return ErrInvalidConnectFlags
	}

	p.CleanSession = flags&connectFlagCleanSession != 0

	willFlag := flags&connectFlagWill != 0
	willQoS := QoS((flags >> 3) & 0x03)
	willRetain := flags&connectFlagWillRetain != 0

	if !willFlag && (willQoS != 0 || willRetain) {
		return ErrInvalidConnectFlags
	}
	if willQoS > QoS2 {
		return ErrInvalidConnectFlags
	}

	if willFlag {
		p.Will.QoS = willQoS
		p.Will.Retain = willRetain
	}

	return nil
}

// Encode writes the packet to the writer.
func (p *ConnectPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	// Build variable header and payload
	var buf bytes.Buffer

	// Protocol Name
	n, err := encodeString(&buf, protocolName)
	if err != nil {
		return 0, err
	}

	// Protocol Level
	if err := buf.WriteByte(protocolLevel); err != nil {
		return n, err
	}
	n++

	// Connect Flags
	if err := buf.WriteByte(p.connectFlags()); err != nil {
		return n, err
	}
	n++

	// Keep Alive
	n2, err := encodeUint16(&buf, p.KeepAlive)
	n += n2
	if err != nil {
		return n, err
	}

	// Payload

	// Client ID
	n3, err := encodeString(&buf, p.ClientID)
	n += n3
	if err != nil {
		return n, err
	}

	// Will Topic, Will Payload
	if p.Will.Valid() {
		n4, err := encodeString(&buf, p.Will.Topic)
		n += n4
		if err != nil {
			return n, err
		}

		n5, err := encodeBinary(&buf, p.Will.Payload)
		n += n5
		if err != nil {
			return n, err
		}
	}

	// Username
	if p.Username != "" {
		n6, err := encodeString(&buf, p.Username)
		n += n6
		if err != nil {
			return n, err
		}
	}

	// Password
	if p.hasPassword() {
		n7, err := encodeBinary(&buf, p.Password)
		n += n7
		if err != nil {
			return n, err
		}
	}

	header := FixedHeader{
		PacketType:      PacketCONNECT,
		Flags:           0x00,
		RemainingLength: uint32(buf.Len()),
	}

	total, err := header.Encode(w)
	if err != nil {
		return total, err
	}

	n8, err := w.Write(buf.Bytes())
	return total + n8, err
}

// Decode reads the packet from the reader.
func (p *ConnectPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketCONNECT {
		return 0, ErrInvalidPacketType
	}

	var totalRead int

	// Protocol Name
	protoName, n, err := decodeString(r)
	totalRead += n
	if err != nil {
		return totalRead, err
	}
	if protoName != protocolName {
		return totalRead, ErrInvalidProtocolName
	}

	// Protocol Level
	var levelBuf [1]byte
	n, err = io.ReadFull(r, levelBuf[:])
	totalRead += n
	if err != nil {
		return totalRead, err
	}
	if levelBuf[0] != protocolLevel {
		return totalRead, ErrInvalidProtocolLevel
	}

	// Connect Flags
	var flagsBuf [1]byte
	n, err = io.ReadFull(r, flagsBuf[:])
	totalRead += n
	if err != nil {
		return totalRead, err
	}
	if err := p.setConnectFlags(flagsBuf[0]); err != nil {
		return totalRead, err
	}

	willFlag := flagsBuf[0]&connectFlagWill != 0
	usernameFlag := flagsBuf[0]&connectFlagUsername != 0
	passwordFlag := flagsBuf[0]&connectFlagPassword != 0

	// Keep Alive
	p.KeepAlive, n, err = decodeUint16(r)
	totalRead += n
	if err != nil {
		return totalRead, err
	}

	// Payload

	// Client ID
	p.ClientID, n, err = decodeString(r)
	totalRead += n
	if err != nil {
		return totalRead, err
	}

	// Will Topic, Will Payload
	if willFlag {
		p.Will.Topic, n, err = decodeString(r)
		totalRead += n
		if err != nil {
			return totalRead, err
		}

		p.Will.Payload, n, err = decodeBinary(r)
		totalRead += n
		if err != nil {
			return totalRead, err
		}
	}

	// Username
	if usernameFlag {
		p.Username, n, err = decodeString(r)
		totalRead += n
		if err != nil {
			return totalRead, err
		}
	}

	// Password
	if passwordFlag {
		p.Password, n, err = decodeBinary(r)
		totalRead += n
		if err != nil {
			return totalRead, err
		}
		if p.Password == nil {
			p.Password = []byte{}
		}
	}

	return totalRead, nil
}

// Validate validates the packet contents.
func (p *ConnectPacket) Validate() error {
	if p.ClientID == "" || len(p.ClientID) >= maxClientIDLength {
		return ErrInvalidClientID
	}

	if p.Will.Valid() {
		if err := p.Will.Validate(); err != nil {
			return err
		}
	}

	// A password without a username is not expressible in v3.1.1.
	if p.Username == "" && p.hasPassword() {
		return ErrUsernameEmpty
	}

	return nil
}
