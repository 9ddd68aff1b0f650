package emu

import (
	"runtime"

	"github.com/user-none/emlpt/lpt"
)

// Synth is a synthesis lane: a goroutine that applies decoded bus writes to
// a chip model and pushes the chip's samples into a SampleQueue. It is the
// queue's only producer.
//
// Bus words are always drained before the next sample is computed, so a
// register write takes effect on the very next sample. When the queue is
// full the lane keeps draining bus words while it waits, so the host never
// stalls on the device.
type Synth struct {
	sources []*lpt.Lane
	decoder Decoder
	bind    binding
	chip    ChipModel
	stereo  bool
	queue   *SampleQueue

	ctl   *LaneControl
	latch latchState
}

// NewSynth prepares a lane. sources are read in order; their index is the
// source number passed to the binding. The chip is owned by the lane from
// Start until it exits.
func NewSynth(sources []*lpt.Lane, dec Decoder, bind binding, chip ChipModel, stereo bool, q *SampleQueue) *Synth {
	return &Synth{
		sources: sources,
		decoder: dec,
		bind:    bind,
		chip:    chip,
		stereo:  stereo,
		queue:   q,
	}
}

// Start launches the lane goroutine.
func (s *Synth) Start() {
	s.ctl = NewLaneControl()
	go s.run()
}

// Stop signals the lane and waits for it to exit. Safe to call on a lane
// that was never started.
func (s *Synth) Stop() {
	if s.ctl == nil {
		return
	}
	s.ctl.Stop()
	s.ctl.Wait()
}

// State reports the lane lifecycle.
func (s *Synth) State() LaneState {
	if s.ctl == nil {
		return LaneStopped
	}
	return s.ctl.State()
}

func (s *Synth) run() {
	defer s.ctl.exited()

	need := 1
	if s.stereo {
		need = 2
	}
	for s.ctl.ShouldRun() {
		if !s.drain() {
			return
		}
		l, r := s.chip.Sample()

		// Backpressure: hold the sample until the consumer makes room, but
		// keep servicing the bus.
		for s.queue.Free() < need {
			if !s.ctl.ShouldRun() {
				return
			}
			if !s.drainOne() {
				runtime.Gosched()
			}
		}
		s.queue.Push(l)
		if s.stereo {
			s.queue.Push(r)
		}
	}
}

// drain applies every pending bus word. It returns false if a stop was
// requested part way through.
func (s *Synth) drain() bool {
	for {
		if !s.ctl.ShouldRun() {
			return false
		}
		if !s.drainOne() {
			return true
		}
	}
}

// drainOne applies at most one word from each source and reports whether
// any word was applied.
func (s *Synth) drainOne() bool {
	applied := false
	for i, src := range s.sources {
		w, ok := src.Take()
		if !ok {
			continue
		}
		applied = true
		if reg, data, ok := s.bind(i, s.decoder.Decode(w), &s.latch); ok {
			s.chip.Write(reg, data)
		}
	}
	return applied
}
