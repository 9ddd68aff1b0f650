package lpt

import (
	"sync"
	"sync/atomic"
)

// FIFODepth is the number of words a strobed lane buffers before it starts
// dropping captures.
const FIFODepth = 8

// Lane is one acquired bus-sampling unit. The owning device reads it from a
// single goroutine; captures arrive from the host goroutine through the FIFO.
type Lane struct {
	pool  *Pool
	port  *Port
	prog  Program
	block int
	index int

	fifo       chan uint32
	enabled    atomic.Bool
	overruns   atomic.Uint64
	statusMask atomic.Uint32

	mu       sync.Mutex
	pins     []int
	driven   []Line
	released bool
}

// Program returns the program the lane was loaded with.
func (l *Lane) Program() Program {
	return l.prog
}

// Slot returns the block and lane index the pool assigned.
func (l *Lane) Slot() (block, index int) {
	return l.block, l.index
}

// Enable starts the lane. Mirrors take effect immediately.
func (l *Lane) Enable() {
	l.enabled.Store(true)
	l.port.updateMirrors()
}

// Disable stops captures. Buffered words stay readable.
func (l *Lane) Disable() {
	l.enabled.Store(false)
}

// Enabled reports whether the lane is running.
func (l *Lane) Enabled() bool {
	return l.enabled.Load()
}

// HasPending reports whether Take would return a word without waiting.
func (l *Lane) HasPending() bool {
	if l.prog.Mode == Sampled {
		return l.enabled.Load()
	}
	return len(l.fifo) > 0
}

// Take returns the next captured word, or for a sampled lane the current bus
// state. ok is false when a strobed lane has nothing buffered.
func (l *Lane) Take() (word uint32, ok bool) {
	if l.prog.Mode == Sampled {
		if !l.enabled.Load() {
			return 0, false
		}
		return l.prog.Capture(l.port.pins.Load()), true
	}
	select {
	case w := <-l.fifo:
		return w, true
	default:
		return 0, false
	}
}

// Len returns the number of buffered words.
func (l *Lane) Len() int {
	return len(l.fifo)
}

// Overruns counts captures dropped because the FIFO was full.
func (l *Lane) Overruns() uint64 {
	return l.overruns.Load()
}

// ClaimStatus makes the lane the driver of a status line. Claiming a line
// again, or after release, does nothing.
func (l *Lane) ClaimStatus(line Line) {
	l.mu.Lock()
	defer l.mu.Unlock()
	bit := uint32(1) << line
	if l.released || l.statusMask.Load()&bit != 0 {
		return
	}
	l.driven = append(l.driven, line)
	l.pins = append(l.pins, line.Pin())
	l.port.claim(line.Pin())
	l.statusMask.Or(bit)
}

// SetStatus sets the level of a line claimed with ClaimStatus. Levels for
// unclaimed lines are ignored. It takes no locks and may be called every
// output frame.
func (l *Lane) SetStatus(line Line, level bool) {
	if l.statusMask.Load()&(1<<line) == 0 {
		return
	}
	l.port.setStatus(line, level)
}

func (l *Lane) capture(pins uint32) {
	if !l.enabled.Load() {
		return
	}
	select {
	case l.fifo <- l.prog.Capture(pins):
	default:
		l.overruns.Add(1)
	}
}

// release tears the lane down and reports whether this call did the work.
func (l *Lane) release() bool {
	l.mu.Lock()
	if l.released {
		l.mu.Unlock()
		return false
	}
	l.released = true
	l.statusMask.Store(0)
	pins := l.pins
	driven := l.driven
	l.mu.Unlock()

	l.enabled.Store(false)
	l.port.detach(l, pins)
	for _, d := range driven {
		l.port.setStatus(d, false)
	}
	if m := l.prog.Mirror; m != nil {
		l.port.setStatus(m.Target, false)
	}
	return true
}
