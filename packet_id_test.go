package mqttv3

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPacketIDAllocatorSequence(t *testing.T) {
	var a packetIDAllocator

	for want := uint16(1); want <= 100; want++ {
		assert.Equal(t, want, a.next(nil))
	}
}

func TestPacketIDAllocatorWrapSkipsZero(t *testing.T) {
	a := packetIDAllocator{last: 65534}

	assert.Equal(t, uint16(65535), a.next(nil))
	assert.Equal(t, uint16(1), a.next(nil))
	assert.Equal(t, uint16(2), a.next(nil))
}

func TestPacketIDAllocatorSkipsPending(t *testing.T) {
	var a packetIDAllocator
	pending := map[uint16]bool{1: true, 2: true, 4: true}

	inUse := func(id uint16) bool { return pending[id] }

	assert.Equal(t, uint16(3), a.next(inUse))
	assert.Equal(t, uint16(5), a.next(inUse))
}
