package emu

import (
	"context"
	"log"
	"time"
)

// Sink consumes fixed-size blocks of interleaved stereo samples.
//
// Block returns the next writable block, or false if none is free yet.
// Submit hands a filled block back. A sink may end the stream by returning
// an error from Submit.
type Sink interface {
	Block() ([]int16, bool)
	Submit(block []int16) error
}

// DefaultBlockPoll is how long the output loop sleeps when the sink has no
// free block.
const DefaultBlockPoll = 250 * time.Microsecond

// OutputLoop fills sink blocks from the active device, one GenerateSample
// call per frame. Hot-swaps happen only between blocks.
type OutputLoop struct {
	mgr  *Manager
	sink Sink

	// Poll is the wait between Block attempts.
	Poll time.Duration

	blocks uint64
}

// NewOutputLoop creates a loop driving sink from the manager's devices.
func NewOutputLoop(m *Manager, sink Sink) *OutputLoop {
	return &OutputLoop{mgr: m, sink: sink, Poll: DefaultBlockPoll}
}

// Blocks returns the number of blocks submitted.
func (o *OutputLoop) Blocks() uint64 {
	return o.blocks
}

// Run produces blocks until ctx is done or the sink fails. The active
// device is unloaded on the way out.
func (o *OutputLoop) Run(ctx context.Context) error {
	defer func() {
		if err := o.mgr.Close(); err != nil {
			log.Printf("Warning: unload on exit: %v", err)
		}
	}()
	for {
		if err := o.Step(ctx); err != nil {
			return err
		}
	}
}

// Step services any pending swap, then waits for and fills one block.
func (o *OutputLoop) Step(ctx context.Context) error {
	dev, err := o.mgr.Service()
	if err != nil {
		log.Printf("Warning: %v", err)
	}

	block, err := o.waitBlock(ctx)
	if err != nil {
		return err
	}
	fill(block, dev)
	if err := o.sink.Submit(block); err != nil {
		return err
	}
	o.blocks++
	return nil
}

func (o *OutputLoop) waitBlock(ctx context.Context) ([]int16, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if b, ok := o.sink.Block(); ok {
			return b, nil
		}
		time.Sleep(o.Poll)
	}
}

// fill writes one block from dev, or silence when dev is nil.
func fill(block []int16, dev Device) {
	if dev == nil {
		clear(block)
		return
	}
	for i := 0; i+1 < len(block); i += 2 {
		block[i], block[i+1] = dev.GenerateSample()
	}
	if f, ok := dev.(Filtered); ok {
		if lp := f.OutputFilter(); lp != nil {
			lp.Apply(block)
		}
	}
}
