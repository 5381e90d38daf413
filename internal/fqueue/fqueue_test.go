package fqueue

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFunctionQueueCoalescesCalls(t *testing.T) {
	assert := assert.New(t)

	fq := NewFunctionQueue("alpine:3.18")

	var calls atomic.Int32
	release := make(chan struct{})
	pull := func() error {
		calls.Add(1)
		<-release
		return nil
	}

	first := fq.Submit(pull)

	// wait for the head to be running
	assert.Eventually(func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	var callbacks []<-chan error
	for i := 0; i < 5; i++ {
		callbacks = append(callbacks, fq.Submit(pull))
	}

	close(release)

	for _, ch := range append(callbacks, first) {
		select {
		case err := <-ch:
			assert.NoError(err)
		case <-time.After(5 * time.Second):
			t.Fatal("callback was not notified")
		}
	}

	// the head and one buffered call, the rest were dropped
	assert.Equal(int32(2), calls.Load())
	assert.Equal(4, fq.DropCount)
}

func TestFunctionQueueReportsLastError(t *testing.T) {
	fq := NewFunctionQueue("broken")
	boom := errors.New("pull access denied")

	err := <-fq.Submit(func() error { return boom })
	assert.Same(t, boom, err)

	// the queue can be reused once drained
	err = <-fq.Submit(func() error { return nil })
	assert.NoError(t, err)
}

func TestFunctionQueueConcurrentSubmit(t *testing.T) {
	fq := NewFunctionQueue("busybox")

	var calls atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := <-fq.Submit(func() error {
				calls.Add(1)
				time.Sleep(5 * time.Millisecond)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, calls.Load(), int32(1))
	assert.LessOrEqual(t, calls.Load(), int32(20))
}

func TestManager(t *testing.T) {
	m := NewManager()
	assert.Same(t, m.Get("a"), m.Get("a"))
	assert.NotSame(t, m.Get("a"), m.Get("b"))
}
