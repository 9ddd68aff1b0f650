package emu

import (
	"errors"
	"fmt"

	"github.com/user-none/emlpt/lpt"
)

var (
	ErrAlreadyLoaded = errors.New("device already loaded")
	ErrNotLoaded     = errors.New("device not loaded")
)

// Device is one emulated parallel-port peripheral. Load and Unload are
// called from the goroutine that runs the output loop, between blocks;
// GenerateSample is called once per output frame while loaded.
type Device interface {
	Name() string
	Load() error
	Unload() error
	GenerateSample() (left, right int16)
}

// Filtered is implemented by devices that want their output block passed
// through a low-pass filter.
type Filtered interface {
	OutputFilter() *LowPass
}

// Board is the hardware every device shares.
type Board struct {
	Pool       *lpt.Pool
	SampleRate int
	Wiring     Wiring
}

// NewBoard creates a board using the build's default wiring.
func NewBoard(pool *lpt.Pool, sampleRate int) *Board {
	return &Board{Pool: pool, SampleRate: sampleRate, Wiring: DefaultWiring}
}

// NewDeviceTable returns every device variant in hot-swap order. Index 0 is
// the startup default.
func NewDeviceTable(b *Board) []Device {
	return []Device{
		NewCovox(b),
		NewStereoOnOne(b),
		NewFTL(b),
		NewDSS(b),
		NewOPL2LPT(b),
		NewTandy(b),
		NewGameBlaster(b),
	}
}

// laneSet tracks the lanes a device acquired so that a failed load or an
// unload releases exactly those.
type laneSet struct {
	pool  *lpt.Pool
	lanes []*lpt.Lane
}

func (s *laneSet) acquire(prog lpt.Program) (*lpt.Lane, error) {
	l, err := s.pool.Acquire(prog)
	if err != nil {
		return nil, err
	}
	s.lanes = append(s.lanes, l)
	return l, nil
}

// enable starts every acquired lane.
func (s *laneSet) enable() {
	for _, l := range s.lanes {
		l.Enable()
	}
}

// release disables and frees every lane in reverse acquisition order.
func (s *laneSet) release() {
	for i := len(s.lanes) - 1; i >= 0; i-- {
		s.lanes[i].Disable()
		s.pool.Release(s.lanes[i])
	}
	s.lanes = s.lanes[:0]
}

// acquireAll loads each program in order. On failure nothing stays claimed.
func (s *laneSet) acquireAll(name string, progs ...lpt.Program) ([]*lpt.Lane, error) {
	out := make([]*lpt.Lane, 0, len(progs))
	for _, p := range progs {
		l, err := s.acquire(p)
		if err != nil {
			s.release()
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, l)
	}
	return out, nil
}

// strobed8 is an 8-bit program capturing on an edge of trigger.
func strobed8(name string, trigger lpt.Line) lpt.Program {
	return lpt.Program{Name: name, Size: 4, Mode: lpt.Strobed, Trigger: trigger, Width: 8}
}

// strobed9 is a 9-bit program capturing on trigger with control as the
// ninth bit.
func strobed9(name string, trigger, control lpt.Line, w Wiring) lpt.Program {
	return lpt.Program{
		Name:    name,
		Size:    6,
		Mode:    lpt.Strobed,
		Trigger: trigger,
		Width:   9,
		Control: control,
		Swapped: w == WiringSwapped,
	}
}

// sampled8 is a free-running 8-bit sampler.
func sampled8(name string) lpt.Program {
	return lpt.Program{Name: name, Size: 3, Mode: lpt.Sampled, Width: 8}
}

// detector answers the host's presence probe by mirroring an input onto a
// status line.
func detector(name string, m lpt.Mirror) lpt.Program {
	return lpt.Program{Name: name, Size: 2, Mode: lpt.Sampled, Width: 8, Mirror: &m}
}
