package mqttv3

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "offline", StateOffline.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "disconnecting", StateDisconnecting.String())
	assert.Equal(t, "unknown", SessionState(9).String())
}

func TestSessionStateZeroValueIsOffline(t *testing.T) {
	var s SessionState
	assert.Equal(t, StateOffline, s)
}
