package mqttv3

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPingerSendsPingAfterQuiet(t *testing.T) {
	var pings atomic.Int32
	var timeouts atomic.Int32

	p := newPinger(30*time.Millisecond,
		func() { pings.Add(1) },
		func() { timeouts.Add(1) },
	)
	p.start()
	defer p.stop()

	assert.Eventually(t, func() bool {
		return pings.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, timeouts.Load())
}

func TestPingerTimesOutWithoutPong(t *testing.T) {
	var pings atomic.Int32
	var timeouts atomic.Int32

	p := newPinger(20*time.Millisecond,
		func() { pings.Add(1) },
		func() { timeouts.Add(1) },
	)
	p.start()
	defer p.stop()

	// First tick sends a PINGREQ; with no pong, the second tick times
	// out.
	assert.Eventually(t, func() bool {
		return timeouts.Load() == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), pings.Load())
}

func TestPingerContinuesWithPongs(t *testing.T) {
	var pings atomic.Int32
	var timeouts atomic.Int32

	var p *pinger
	p = newPinger(15*time.Millisecond,
		func() {
			pings.Add(1)
			p.pong() // the broker answers immediately
		},
		func() { timeouts.Add(1) },
	)
	p.start()
	defer p.stop()

	assert.Eventually(t, func() bool {
		return pings.Load() >= 3
	}, time.Second, 5*time.Millisecond)
	assert.Zero(t, timeouts.Load())
}

func TestPingerTouchDefersTick(t *testing.T) {
	var pings atomic.Int32

	p := newPinger(50*time.Millisecond,
		func() { pings.Add(1) },
		func() {},
	)
	p.start()
	defer p.stop()

	// Keep the connection busy; the timer must never fire.
	for i := 0; i < 5; i++ {
		time.Sleep(20 * time.Millisecond)
		p.touch()
	}
	assert.Zero(t, pings.Load())
}

func TestPingerZeroIntervalDisabled(t *testing.T) {
	var pings atomic.Int32

	p := newPinger(0, func() { pings.Add(1) }, func() {})
	p.start()
	defer p.stop()

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, pings.Load())
}

func TestPingerStopIsIdempotent(t *testing.T) {
	p := newPinger(10*time.Millisecond, func() {}, func() {})
	p.start()
	p.stop()
	p.stop()
}
