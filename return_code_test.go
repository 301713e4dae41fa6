package mqttv3

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectReturnCodeValid(t *testing.T) {
	for c := ConnectionAccepted; c <= ConnectionRefusedNotAuthorized; c++ {
		assert.True(t, c.Valid(), "code %d", c)
	}
	assert.False(t, ConnectReturnCode(6).Valid())
	assert.False(t, ConnectReturnCode(255).Valid())
}

func TestConnectReturnCodeErr(t *testing.T) {
	tests := []struct {
		code ConnectReturnCode
		want error
	}{
		{code: ConnectionAccepted, want: nil},
		{code: ConnectionRefusedUnacceptableProtocol, want: ErrUnacceptableProtocol},
		{code: ConnectionRefusedIdentifierRejected, want: ErrIdentifierRejected},
		{code: ConnectionRefusedServerUnavailable, want: ErrServerUnavailable},
		{code: ConnectionRefusedBadUsernameOrPassword, want: ErrBadUsernameOrPassword},
		{code: ConnectionRefusedNotAuthorized, want: ErrNotAuthorized},
	}

	for _, tt := range tests {
		err := tt.code.Err()
		if tt.want == nil {
			assert.NoError(t, err)
		} else {
			assert.ErrorIs(t, err, tt.want)
		}
	}

	assert.True(t, ConnectionAccepted.Accepted())
	assert.False(t, ConnectionRefusedNotAuthorized.Accepted())
}

func TestQoSValues(t *testing.T) {
	assert.True(t, QoS0.Valid())
	assert.True(t, QoS1.Valid())
	assert.True(t, QoS2.Valid())
	assert.False(t, QoSFailure.Valid())

	assert.Equal(t, "at most once", QoS0.String())
	assert.Equal(t, "failure", QoSFailure.String())
}
