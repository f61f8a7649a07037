package buffer

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrIteratorDone is returned by Next once the window is closed for writing
// and fully drained.
var ErrIteratorDone = errors.New("buffer: iterator done")

// RingBuffer keeps the last Cap() values written to it. Writes overwrite the
// oldest values instead of blocking.
type RingBuffer[T any] struct {
	notify chan struct{}

	mu         sync.Mutex
	buf        []T
	head, tail int64
	closeWrite bool
}

// RingN creates a RingBuffer holding at most size values.
func RingN[T any](size int) *RingBuffer[T] {
	if size <= 0 {
		panic(fmt.Sprintf("buffer: invalid ring size %d", size))
	}
	return &RingBuffer[T]{
		notify: make(chan struct{}, 1),
		buf:    make([]T, size),
	}
}

// Add appends a single value, evicting the oldest one when full.
func (rb *RingBuffer[T]) Add(v T) error {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if err := rb.writableLocked(); err != nil {
		return err
	}
	rb.addLocked(v)
	rb.signal()
	return nil
}

// Write appends all of p. Only the last Cap() values of p survive when p is
// longer than the window.
func (rb *RingBuffer[T]) Write(p []T) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if err := rb.writableLocked(); err != nil {
		return 0, err
	}
	start := 0
	if len(p) > len(rb.buf) {
		start = len(p) - len(rb.buf)
		rb.head = rb.tail
	}
	for _, v := range p[start:] {
		rb.addLocked(v)
	}
	if len(p) > 0 {
		rb.signal()
	}
	return len(p), nil
}

func (rb *RingBuffer[T]) writableLocked() error {
	if rb.closeWrite {
		return fmt.Errorf("buffer: write to closed buffer: %w", io.ErrClosedPipe)
	}
	return nil
}

func (rb *RingBuffer[T]) addLocked(v T) {
	rb.buf[rb.tail%int64(len(rb.buf))] = v
	rb.tail++
	if rb.tail-rb.head > int64(len(rb.buf)) {
		rb.head++
	}
}

func (rb *RingBuffer[T]) signal() {
	select {
	case rb.notify <- struct{}{}:
	default:
	}
}

// Next removes and returns the oldest value. It blocks while the window is
// empty and returns ErrIteratorDone after CloseWrite once drained.
func (rb *RingBuffer[T]) Next() (v T, err error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	for rb.head == rb.tail {
		if rb.closeWrite {
			return v, ErrIteratorDone
		}
		rb.mu.Unlock()
		<-rb.notify
		rb.mu.Lock()
	}
	v = rb.buf[rb.head%int64(len(rb.buf))]
	rb.head++
	return v, nil
}

// Snapshot returns a copy of the current contents, oldest first.
func (rb *RingBuffer[T]) Snapshot() []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	n := int(rb.tail - rb.head)
	out := make([]T, n)
	for i := range n {
		out[i] = rb.buf[(rb.head+int64(i))%int64(len(rb.buf))]
	}
	return out
}

// Last returns the most recent value, if any.
func (rb *RingBuffer[T]) Last() (v T, ok bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.head == rb.tail {
		return v, false
	}
	return rb.buf[(rb.tail-1)%int64(len(rb.buf))], true
}

// Len returns the number of values currently held.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return int(rb.tail - rb.head)
}

// Cap returns the window size.
func (rb *RingBuffer[T]) Cap() int { return len(rb.buf) }

// Reset drops all values. A closed buffer stays closed.
func (rb *RingBuffer[T]) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.head, rb.tail = 0, 0
}

// CloseWrite stops further writes. Next keeps draining until empty.
func (rb *RingBuffer[T]) CloseWrite() error {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	if rb.closeWrite {
		return nil
	}
	rb.closeWrite = true
	close(rb.notify)
	return nil
}
