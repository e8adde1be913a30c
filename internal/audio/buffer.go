package audio

import (
	"fmt"
	"sync"
)

// RingBuffer is a circular buffer of 16-bit samples between the device
// callback and the reader. Writers signal Ready after every write.
type RingBuffer struct {
	mu       sync.Mutex
	buffer   []int16
	size     int
	writePos int
	readPos  int
	full     bool
	ready    chan struct{}
}

// NewRingBuffer creates a new ring buffer holding size samples
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{
		buffer: make([]int16, size),
		size:   size,
		ready:  make(chan struct{}, 1),
	}
}

// Write writes samples to the buffer.
// Returns the number of samples written and an error if some did not fit.
func (rb *RingBuffer) Write(data []int16) (int, error) {
	rb.mu.Lock()
	written := 0
	for _, s := range data {
		if rb.full {
			break
		}
		rb.buffer[rb.writePos] = s
		rb.writePos = (rb.writePos + 1) % rb.size
		written++
		if rb.writePos == rb.readPos {
			rb.full = true
		}
	}
	rb.mu.Unlock()

	if written > 0 {
		select {
		case rb.ready <- struct{}{}:
		default:
		}
	}
	if written < len(data) {
		return written, fmt.Errorf("buffer is full, dropped %d samples", len(data)-written)
	}
	return written, nil
}

// Read reads up to len(data) samples and returns the number read
func (rb *RingBuffer) Read(data []int16) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	read := 0
	for read < len(data) {
		if rb.readPos == rb.writePos && !rb.full {
			break
		}
		data[read] = rb.buffer[rb.readPos]
		rb.readPos = (rb.readPos + 1) % rb.size
		rb.full = false
		read++
	}
	return read
}

// Ready receives a value after writes. It may fire for data already read.
func (rb *RingBuffer) Ready() <-chan struct{} {
	return rb.ready
}

// Available returns the number of samples available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.availableLocked()
}

func (rb *RingBuffer) availableLocked() int {
	if rb.full {
		return rb.size
	}
	if rb.writePos >= rb.readPos {
		return rb.writePos - rb.readPos
	}
	return rb.size - rb.readPos + rb.writePos
}

// Free returns the number of samples that can be written
func (rb *RingBuffer) Free() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.size - rb.availableLocked()
}

// Reset clears the buffer
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.readPos = 0
	rb.writePos = 0
	rb.full = false
}

// Size returns the total size of the buffer
func (rb *RingBuffer) Size() int {
	return rb.size
}
