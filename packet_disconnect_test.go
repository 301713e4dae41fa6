package mqttv3

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisconnectPacketWire(t *testing.T) {
	var buf bytes.Buffer
	p := &DisconnectPacket{}
	_, err := p.Encode(&buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xE0, 0x00}, buf.Bytes())

	decoded, err := DecodePacket(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, PacketDISCONNECT, decoded.Type())
}
