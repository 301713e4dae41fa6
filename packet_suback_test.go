package mqttv3

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubackPacketType(t *testing.T) {
	p := &SubackPacket{}
	assert.Equal(t, PacketSUBACK, p.Type())
}

func TestSubackPacketDecodeGranted(t *testing.T) {
	packet, err := DecodePacket([]byte{0x90, 0x03, 0x00, 0x01, 0x01})
	require.NoError(t, err)

	suback, ok := packet.(*SubackPacket)
	require.True(t, ok)
	assert.Equal(t, uint16(1), suback.PacketID)
	assert.Equal(t, []QoS{QoS1}, suback.ReturnCodes)
	assert.True(t, suback.Granted())
}

func TestSubackPacketDecodeFailure(t *testing.T) {
	packet, err := DecodePacket([]byte{0x90, 0x04, 0x00, 0x02, 0x00, 0x80})
	require.NoError(t, err)

	suback, ok := packet.(*SubackPacket)
	require.True(t, ok)
	assert.Equal(t, []QoS{QoS0, QoSFailure}, suback.ReturnCodes)
	assert.False(t, suback.Granted())
}

func TestSubackPacketDecodeInvalidCode(t *testing.T) {
	_, err := DecodePacket([]byte{0x90, 0x03, 0x00, 0x01, 0x03})
	assert.ErrorIs(t, err, ErrInvalidPacket)

	_, err = DecodePacket([]byte{0x90, 0x03, 0x00, 0x01, 0x40})
	assert.ErrorIs(t, err, ErrInvalidPacket)
}

func TestSubackPacketDecodeTooShort(t *testing.T) {
	// A single byte cannot hold the packet id
	_, err := DecodePacket([]byte{0x90, 0x01, 0x00})
	assert.ErrorIs(t, err, ErrInvalidPacket)
}

func TestSubackPacketEncodeDecode(t *testing.T) {
	p := SubackPacket{
		PacketID:    9,
		ReturnCodes: []QoS{QoS0, QoS1, QoS2, QoSFailure},
	}

	var buf bytes.Buffer
	_, err := p.Encode(&buf)
	require.NoError(t, err)

	// The failure entry is the wire value 0x80.
	assert.Equal(t, byte(0x80), buf.Bytes()[len(buf.Bytes())-1])

	decoded, err := DecodePacket(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, &p, decoded)
}

func TestSubackPacketOrderPreserved(t *testing.T) {
	p := SubackPacket{
		PacketID:    1,
		ReturnCodes: []QoS{QoS2, QoS0, QoS1},
	}

	var buf bytes.Buffer
	_, err := p.Encode(&buf)
	require.NoError(t, err)

	decoded, err := DecodePacket(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []QoS{QoS2, QoS0, QoS1}, decoded.(*SubackPacket).ReturnCodes)
}
