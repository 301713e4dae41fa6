package mqttv3

// packetIDAllocator hands out packet identifiers for in-flight
// requests. Identifiers are allocated from a monotonic counter seeded
// at 0, pre-incremented before use so the first identifier is 1, and
// wrapping past 65535 back to 1. Identifiers still present in the
// pending table are skipped so in-flight identifiers stay distinct.
//
// The allocator does no locking of its own; the client serializes
// calls to next under its idMu mutex.
type packetIDAllocator struct {
	last uint16
}

// next returns the next free packet identifier. inUse reports whether
// an identifier is still pending.
func (a *packetIDAllocator) next(inUse func(uint16) bool) uint16 {
	for {
		a.last++
		if a.last == 0 {
			a.last = 1
		}
		if inUse == nil || !inUse(a.last) {
			return a.last
		}
	}
}
