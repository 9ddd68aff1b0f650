package emu

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// MaxQueueCapacity is the largest ring a device may allocate.
const MaxQueueCapacity = 4096

// ErrQueueCapacity is returned for a capacity that is zero, not a power of
// two, or above MaxQueueCapacity.
var ErrQueueCapacity = errors.New("queue capacity must be a power of two in [1, 4096]")

// SampleQueue is a lock-free ring of samples with exactly one producer (a
// synthesis lane) and one consumer (the output loop).
//
// head and tail count modulo 2*capacity. The low bits index the buffer and
// the capacity bit acts as a lap flag, so equal indices with equal laps mean
// empty and equal indices with different laps mean full. head is written
// only by the producer and tail only by the consumer.
type SampleQueue struct {
	buf  [MaxQueueCapacity]int16
	size uint32
	mask uint32
	wrap uint32

	head atomic.Uint32
	tail atomic.Uint32
}

// NewSampleQueue allocates a queue of the given capacity.
func NewSampleQueue(capacity int) (*SampleQueue, error) {
	q := &SampleQueue{}
	if err := q.Init(capacity); err != nil {
		return nil, err
	}
	return q, nil
}

// Init empties the queue and sets its capacity. It must not race with Push
// or Pop.
func (q *SampleQueue) Init(capacity int) error {
	if capacity <= 0 || capacity > MaxQueueCapacity || capacity&(capacity-1) != 0 {
		return fmt.Errorf("%w: got %d", ErrQueueCapacity, capacity)
	}
	q.size = uint32(capacity)
	q.mask = q.size - 1
	q.wrap = 2*q.size - 1
	q.head.Store(0)
	q.tail.Store(0)
	return nil
}

// Cap returns the capacity.
func (q *SampleQueue) Cap() int {
	return int(q.size)
}

// Len returns the number of queued samples.
func (q *SampleQueue) Len() int {
	return int((q.head.Load() - q.tail.Load()) & q.wrap)
}

// Free returns the number of samples that can be pushed without blocking.
func (q *SampleQueue) Free() int {
	return int(q.size) - q.Len()
}

// IsEmpty reports whether Pop would fail.
func (q *SampleQueue) IsEmpty() bool {
	return q.head.Load() == q.tail.Load()
}

// IsFull reports whether Push would fail.
func (q *SampleQueue) IsFull() bool {
	return q.head.Load() == q.tail.Load()^q.size
}

// Push appends s. It returns false when the queue is full.
func (q *SampleQueue) Push(s int16) bool {
	h := q.head.Load()
	if h == q.tail.Load()^q.size {
		return false
	}
	q.buf[h&q.mask] = s
	q.head.Store((h + 1) & q.wrap)
	return true
}

// Pop removes the oldest sample. It returns false when the queue is empty.
func (q *SampleQueue) Pop() (int16, bool) {
	t := q.tail.Load()
	if t == q.head.Load() {
		return 0, false
	}
	s := q.buf[t&q.mask]
	q.tail.Store((t + 1) & q.wrap)
	return s, true
}
