package emu

import (
	"fmt"
	"runtime"

	"github.com/user-none/emlpt/lpt"
)

// synthDevice is the shared body of devices that run a chip model on a
// synthesis lane. The chip runs at SampleRate/repeat and each chip frame is
// held for repeat output frames.
type synthDevice struct {
	name     string
	board    *Board
	programs func(Wiring) []lpt.Program
	decoder  func(Wiring) Decoder
	bind     binding
	newChip  ChipFactory
	repeat   int
	stereo   bool
	queueCap int

	// status, when set, is raised while the device is loaded.
	status    lpt.Line
	hasStatus bool

	lanes  laneSet
	queue  SampleQueue
	synth  *Synth
	held   [2]int16
	used   int
	loaded bool
}

func (d *synthDevice) Name() string { return d.name }

func (d *synthDevice) Load() error {
	if d.loaded {
		return ErrAlreadyLoaded
	}
	if d.board.SampleRate%d.repeat != 0 {
		return fmt.Errorf("%w: %s: rate %d not divisible by %d", ErrChipInit, d.name, d.board.SampleRate, d.repeat)
	}
	if err := d.queue.Init(d.queueCap); err != nil {
		return fmt.Errorf("%s: %w", d.name, err)
	}
	sources, err := d.lanes.acquireAll(d.name, d.programs(d.board.Wiring)...)
	if err != nil {
		return err
	}
	chip, err := d.newChip(d.board.SampleRate / d.repeat)
	if err != nil {
		d.lanes.release()
		return fmt.Errorf("%s: %w", d.name, err)
	}

	d.synth = NewSynth(sources, d.decoder(d.board.Wiring), d.bind, chip, d.stereo, &d.queue)
	d.held = [2]int16{}
	d.used = d.repeat
	if d.hasStatus {
		sources[0].ClaimStatus(d.status)
		sources[0].SetStatus(d.status, true)
	}
	d.lanes.enable()
	d.synth.Start()
	d.loaded = true
	return nil
}

// Unload stops the synthesis lane and waits for it before releasing the
// lanes, so a following Load can never overlap the old chip.
func (d *synthDevice) Unload() error {
	if !d.loaded {
		return ErrNotLoaded
	}
	d.synth.Stop()
	d.synth = nil
	d.lanes.release()
	d.loaded = false
	return nil
}

// GenerateSample repeats the held chip frame, fetching a new one from the
// queue every repeat calls. An empty queue is waited out.
func (d *synthDevice) GenerateSample() (int16, int16) {
	if !d.loaded {
		return 0, 0
	}
	if d.used >= d.repeat {
		d.held[0] = d.pop()
		if d.stereo {
			d.held[1] = d.pop()
		} else {
			d.held[1] = d.held[0]
		}
		d.used = 0
	}
	d.used++
	return d.held[0], d.held[1]
}

func (d *synthDevice) pop() int16 {
	for {
		if s, ok := d.queue.Pop(); ok {
			return s
		}
		runtime.Gosched()
	}
}

// --- OPL2LPT ---

// OPL2LPT is a YM3812 on the parallel port. Strobe latches a byte; Init
// low marks it as a register address and Init high as data.
type OPL2LPT struct{ synthDevice }

func NewOPL2LPT(b *Board) *OPL2LPT {
	return &OPL2LPT{synthDevice{
		name:  "OPL2LPT",
		board: b,
		programs: func(w Wiring) []lpt.Program {
			return []lpt.Program{strobed9("opl2", lpt.Strobe, lpt.Init, w)}
		},
		decoder:  func(w Wiring) Decoder { return OPL2Decoder(w) },
		bind:     bindLatched(false),
		newChip:  NewOPL2Chip,
		repeat:   2,
		queueCap: 1024,
		lanes:    laneSet{pool: b.Pool},
	}}
}

// --- Tandy 3-voice (TNDLPT) ---

// Tandy is an SN76489 behind an 8-bit strobed latch. Ack is held high while
// loaded so host drivers see a ready device.
type Tandy struct{ synthDevice }

func NewTandy(b *Board) *Tandy {
	return &Tandy{synthDevice{
		name:  "Tandy 3-voice",
		board: b,
		programs: func(Wiring) []lpt.Program {
			return []lpt.Program{strobed8("tandy", lpt.Strobe)}
		},
		decoder:   func(Wiring) Decoder { return ByteDecoder{} },
		bind:      bindDirect,
		newChip:   NewTandyChip,
		repeat:    2,
		queueCap:  1024,
		status:    lpt.Ack,
		hasStatus: true,
		lanes:     laneSet{pool: b.Pool},
	}}
}

// --- Game Blaster (CMSLPT) ---

// GameBlaster is a pair of SAA-1099s. Chip one latches on AutoFeed and chip
// two on SelectIn; Init high marks a register address.
type GameBlaster struct{ synthDevice }

func NewGameBlaster(b *Board) *GameBlaster {
	return &GameBlaster{synthDevice{
		name:  "Game Blaster",
		board: b,
		programs: func(w Wiring) []lpt.Program {
			return []lpt.Program{
				strobed9("cms-1", lpt.AutoFeed, lpt.Init, w),
				strobed9("cms-2", lpt.SelectIn, lpt.Init, w),
			}
		},
		decoder:  func(w Wiring) Decoder { return CMSDecoder(w) },
		bind:     bindLatched(true),
		newChip:  NewCMSChip,
		repeat:   1,
		stereo:   true,
		queueCap: 2048,
		lanes:    laneSet{pool: b.Pool},
	}}
}
