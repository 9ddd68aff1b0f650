package emu

import (
	"github.com/user-none/emlpt/lpt"
)

// --- Covox Speech Thing ---

// Covox is an 8-bit resistor DAC on the data lines. The bus is sampled
// three times per output frame and the median taken to reject glitches
// from a host that is mid-update.
type Covox struct {
	board  *Board
	lanes  laneSet
	dac    *lpt.Lane
	loaded bool
}

func NewCovox(b *Board) *Covox {
	return &Covox{board: b, lanes: laneSet{pool: b.Pool}}
}

func (d *Covox) Name() string { return "Covox Speech Thing" }

func (d *Covox) Load() error {
	if d.loaded {
		return ErrAlreadyLoaded
	}
	lanes, err := d.lanes.acquireAll("covox", sampled8("covox"))
	if err != nil {
		return err
	}
	d.dac = lanes[0]
	d.lanes.enable()
	d.loaded = true
	return nil
}

func (d *Covox) Unload() error {
	if !d.loaded {
		return ErrNotLoaded
	}
	d.lanes.release()
	d.dac = nil
	d.loaded = false
	return nil
}

func (d *Covox) GenerateSample() (int16, int16) {
	if !d.loaded {
		return 0, 0
	}
	a, _ := d.dac.Take()
	b, _ := d.dac.Take()
	c, _ := d.dac.Take()
	s := PCMWord(median3(a, b, c))
	return s, s
}

func median3(a, b, c uint32) uint32 {
	if a > b {
		a, b = b, a
	}
	if b > c {
		b = c
	}
	if a > b {
		return a
	}
	return b
}

// --- FTL Sound Adapter ---

// FTL is a mono DAC like the Covox, plus a detection responder that copies
// SelectIn onto PaperEnd so the host driver can find it.
type FTL struct {
	board  *Board
	lanes  laneSet
	dac    *lpt.Lane
	loaded bool
}

func NewFTL(b *Board) *FTL {
	return &FTL{board: b, lanes: laneSet{pool: b.Pool}}
}

func (d *FTL) Name() string { return "FTL Sound Adapter" }

func (d *FTL) Load() error {
	if d.loaded {
		return ErrAlreadyLoaded
	}
	lanes, err := d.lanes.acquireAll("ftl",
		sampled8("ftl"),
		detector("ftl-detect", lpt.Mirror{DataBit: -1, Source: lpt.SelectIn, Target: lpt.PaperEnd}),
	)
	if err != nil {
		return err
	}
	d.dac = lanes[0]
	d.lanes.enable()
	d.loaded = true
	return nil
}

func (d *FTL) Unload() error {
	if !d.loaded {
		return ErrNotLoaded
	}
	d.lanes.release()
	d.dac = nil
	d.loaded = false
	return nil
}

func (d *FTL) GenerateSample() (int16, int16) {
	if !d.loaded {
		return 0, 0
	}
	w, _ := d.dac.Take()
	s := PCMWord(w)
	return s, s
}

// --- Stereo-on-1 ---

// StereoOnOne is a pair of DACs latched by separate strobes: AutoFeed for
// the left channel and Strobe for the right. Each channel holds its last
// value until the host writes a new one. A detection responder mirrors D7
// onto Busy.
type StereoOnOne struct {
	board  *Board
	lanes  laneSet
	left   *lpt.Lane
	right  *lpt.Lane
	held   [2]int16
	loaded bool
}

func NewStereoOnOne(b *Board) *StereoOnOne {
	return &StereoOnOne{board: b, lanes: laneSet{pool: b.Pool}}
}

func (d *StereoOnOne) Name() string { return "Stereo-on-1" }

func (d *StereoOnOne) Load() error {
	if d.loaded {
		return ErrAlreadyLoaded
	}
	lanes, err := d.lanes.acquireAll("stereo-on-1",
		strobed8("stereo-left", lpt.AutoFeed),
		strobed8("stereo-right", lpt.Strobe),
		detector("stereo-detect", lpt.Mirror{DataBit: 7, Target: lpt.Busy}),
	)
	if err != nil {
		return err
	}
	d.left, d.right = lanes[0], lanes[1]
	d.held = [2]int16{}
	d.lanes.enable()
	d.loaded = true
	return nil
}

func (d *StereoOnOne) Unload() error {
	if !d.loaded {
		return ErrNotLoaded
	}
	d.lanes.release()
	d.left, d.right = nil, nil
	d.loaded = false
	return nil
}

// GenerateSample takes at most one pending byte per channel, or repeats the
// previous one. A burst of strobes plays out over consecutive frames.
func (d *StereoOnOne) GenerateSample() (int16, int16) {
	if !d.loaded {
		return 0, 0
	}
	for i, l := range [2]*lpt.Lane{d.left, d.right} {
		if w, ok := l.Take(); ok {
			d.held[i] = PCMWord(w)
		}
	}
	return d.held[0], d.held[1]
}

// --- Disney Sound Source ---

const (
	dssQueueSize = 16
	dssRateHz    = 7000
	dssCutoffHz  = 3500.0
)

// DSS is the Disney Sound Source: a 16-byte FIFO clocked out at a fixed
// 7 kHz. The host writes a byte by pulsing SelectIn and polls Ack, which
// the device raises while the FIFO is full.
type DSS struct {
	board  *Board
	lanes  laneSet
	bus    *lpt.Lane
	fifo   SampleQueue
	ticks  int
	count  int
	held   int16
	filter *LowPass
	loaded bool
}

func NewDSS(b *Board) *DSS {
	return &DSS{board: b, lanes: laneSet{pool: b.Pool}}
}

func (d *DSS) Name() string { return "Disney Sound Source" }

func (d *DSS) Load() error {
	if d.loaded {
		return ErrAlreadyLoaded
	}
	if err := d.fifo.Init(dssQueueSize); err != nil {
		return err
	}
	lanes, err := d.lanes.acquireAll("dss", strobed8("dss", lpt.SelectIn))
	if err != nil {
		return err
	}
	d.bus = lanes[0]
	d.ticks = (d.board.SampleRate + dssRateHz/2) / dssRateHz
	if d.ticks < 1 {
		d.ticks = 1
	}
	d.count = 0
	d.held = 0
	d.filter = NewLowPass(dssCutoffHz, d.board.SampleRate)
	d.bus.ClaimStatus(lpt.Ack)
	d.bus.SetStatus(lpt.Ack, false)
	d.lanes.enable()
	d.loaded = true
	return nil
}

func (d *DSS) Unload() error {
	if !d.loaded {
		return ErrNotLoaded
	}
	d.lanes.release()
	d.bus = nil
	d.loaded = false
	return nil
}

// GenerateSample moves captured bytes into the FIFO, clocks one byte out
// every ticks frames, and updates Ack.
func (d *DSS) GenerateSample() (int16, int16) {
	if !d.loaded {
		return 0, 0
	}
	for !d.fifo.IsFull() {
		w, ok := d.bus.Take()
		if !ok {
			break
		}
		d.fifo.Push(PCMWord(w))
	}

	d.count++
	if d.count >= d.ticks {
		d.count = 0
		if s, ok := d.fifo.Pop(); ok {
			d.held = s
		}
	}
	d.bus.SetStatus(lpt.Ack, d.fifo.IsFull())
	return d.held, d.held
}

func (d *DSS) OutputFilter() *LowPass {
	return d.filter
}
