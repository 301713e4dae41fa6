package mqttv3

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDispatcherRunsInOrder(t *testing.T) {
	d := newDispatcher()

	var mu sync.Mutex
	var got []int

	done := make(chan struct{})
	go func() {
		d.run()
		close(done)
	}()

	for i := 0; i < 10; i++ {
		i := i
		d.enqueue(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}

	d.close()
	<-done

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestDispatcherDropsAfterClose(t *testing.T) {
	d := newDispatcher()

	done := make(chan struct{})
	go func() {
		d.run()
		close(done)
	}()

	d.close()
	<-done

	ran := make(chan struct{}, 1)
	d.enqueue(func() { ran <- struct{}{} })

	select {
	case <-ran:
		t.Fatal("callback ran after close")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatcherDrainsQueueOnClose(t *testing.T) {
	d := newDispatcher()

	var mu sync.Mutex
	count := 0
	for i := 0; i < 5; i++ {
		d.enqueue(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}

	// Close before run: queued callbacks still execute.
	d.close()
	assert.NoError(t, d.run())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, count)
}
