// Package lpt models the parallel-port side of the board: the pins the host
// PC drives and the pool of bus-sampling lanes that capture them.
//
// A Lane plays the part of a PIO state machine. It runs a Program that either
// snapshots the data lines whenever it is read (free-running samplers such as
// Covox) or captures a word on an edge of a control line (strobed protocols).
// Captured words land in a small FIFO that the emulated device drains.
package lpt

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Line identifies a parallel-port control or status line.
type Line uint8

const (
	// Host-driven control lines.
	Strobe Line = iota
	AutoFeed
	Init
	SelectIn

	// Device-driven status lines.
	Ack
	Busy
	PaperEnd

	numLines
)

var lineNames = [numLines]string{"STROBE", "AUTOFEED", "INIT", "SELECTIN", "ACK", "BUSY", "PAPEREND"}

func (l Line) String() string {
	if l < numLines {
		return lineNames[l]
	}
	return "LINE?"
}

// IsControl reports whether the host drives the line.
func (l Line) IsControl() bool {
	return l <= SelectIn
}

// GPIO assignment of the port lines on the board.
const (
	PinStrobe   = 0
	PinDataBase = 1 // D0..D7 on pins 1..8
	PinAck      = 9
	PinPaperEnd = 10
	PinSelectIn = 11
	PinInit     = 12
	PinAutoFeed = 13
	PinBusy     = 14
)

// DataPins is the number of data lines.
const DataPins = 8

var linePins = [numLines]int{PinStrobe, PinAutoFeed, PinInit, PinSelectIn, PinAck, PinBusy, PinPaperEnd}

// Pin returns the GPIO number wired to the line.
func (l Line) Pin() int {
	return linePins[l]
}

// Port holds the electrical state of the parallel port. The host side calls
// SetData, SetControl and Pulse from its own goroutine; lanes read the pins
// through atomic snapshots.
type Port struct {
	// pins packs the data lines in bits 0-7 and the control lines in bits
	// 8-11 (bit 8+Line).
	pins   atomic.Uint32
	status atomic.Uint32

	mu     sync.RWMutex
	lanes  []*Lane
	claims map[int]int
}

// NewPort creates an idle port with all lines low.
func NewPort() *Port {
	return &Port{claims: make(map[int]int)}
}

// SetData drives the eight data lines.
func (p *Port) SetData(b uint8) {
	for {
		old := p.pins.Load()
		if p.pins.CompareAndSwap(old, old&^0xFF|uint32(b)) {
			break
		}
	}
	p.updateMirrors()
}

// Data returns the current level of the data lines.
func (p *Port) Data() uint8 {
	return uint8(p.pins.Load())
}

// SetControl asserts or releases a host control line. Lanes triggered by the
// line capture on the rising (asserting) edge.
func (p *Port) SetControl(l Line, asserted bool) {
	if !l.IsControl() {
		return
	}
	bit := uint32(1) << (8 + l)
	var before uint32
	for {
		before = p.pins.Load()
		next := before &^ bit
		if asserted {
			next |= bit
		}
		if p.pins.CompareAndSwap(before, next) {
			break
		}
	}
	if asserted && before&bit == 0 {
		p.edge(l)
	}
	p.updateMirrors()
}

// Control reports whether a host control line is asserted.
func (p *Port) Control(l Line) bool {
	if !l.IsControl() {
		return false
	}
	return p.pins.Load()&(1<<(8+l)) != 0
}

// Pulse asserts then releases a control line, which is how the host strobes
// a write into a device.
func (p *Port) Pulse(l Line) {
	p.SetControl(l, true)
	p.SetControl(l, false)
}

// Status reads a device-driven status line.
func (p *Port) Status(l Line) bool {
	return p.status.Load()&(1<<l) != 0
}

func (p *Port) setStatus(l Line, level bool) {
	bit := uint32(1) << l
	for {
		old := p.status.Load()
		next := old &^ bit
		if level {
			next |= bit
		}
		if p.status.CompareAndSwap(old, next) {
			return
		}
	}
}

// Backlog returns the deepest FIFO among enabled strobed lanes. Hosts that
// run faster than real time use it to avoid overrunning the device.
func (p *Port) Backlog() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, l := range p.lanes {
		if l.enabled.Load() && l.prog.Mode == Strobed {
			if d := len(l.fifo); d > n {
				n = d
			}
		}
	}
	return n
}

// Claimed returns the GPIO numbers currently claimed by lanes, sorted.
func (p *Port) Claimed() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]int, 0, len(p.claims))
	for pin := range p.claims {
		out = append(out, pin)
	}
	sort.Ints(out)
	return out
}

func (p *Port) edge(l Line) {
	pins := p.pins.Load()
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, lane := range p.lanes {
		if lane.prog.Mode == Strobed && lane.prog.Trigger == l {
			lane.capture(pins)
		}
	}
}

func (p *Port) updateMirrors() {
	pins := p.pins.Load()
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, lane := range p.lanes {
		m := lane.prog.Mirror
		if m == nil || !lane.enabled.Load() {
			continue
		}
		p.setStatus(m.Target, m.level(pins))
	}
}

func (p *Port) attach(l *Lane, pins []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lanes = append(p.lanes, l)
	for _, pin := range pins {
		p.claims[pin]++
	}
}

func (p *Port) detach(l *Lane, pins []int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, other := range p.lanes {
		if other == l {
			p.lanes = append(p.lanes[:i], p.lanes[i+1:]...)
			break
		}
	}
	for _, pin := range pins {
		if p.claims[pin] <= 1 {
			delete(p.claims, pin)
		} else {
			p.claims[pin]--
		}
	}
}

func (p *Port) claim(pin int) {
	p.mu.Lock()
	p.claims[pin]++
	p.mu.Unlock()
}
