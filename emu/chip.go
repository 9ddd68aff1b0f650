package emu

import (
	"errors"
	"fmt"

	"github.com/user-none/emlpt/opl2"
	"github.com/user-none/emlpt/saa1099"
	"github.com/user-none/go-chip-sn76489"
)

// ErrChipInit is returned when a chip model cannot be constructed.
var ErrChipInit = errors.New("chip model initialization failed")

// ChipModel is a sound chip driven by register writes that produces one
// output frame per Sample call. Models are owned by a single synthesis lane.
type ChipModel interface {
	Write(reg uint16, data uint8)
	Sample() (left, right int16)
}

// ChipFactory builds a chip model for the given output rate.
type ChipFactory func(sampleRate int) (ChipModel, error)

func checkRate(name string, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("%w: %s: sample rate %d", ErrChipInit, name, sampleRate)
	}
	return nil
}

// --- Tandy 3-voice (SN76489) ---

const (
	tandyClockHz = 3579545
	tandyGain    = 8191.0
)

type tandyChip struct {
	psg   *sn76489.SN76489
	rate  int
	accum int
}

// NewTandyChip returns an SN76489 (TI variant) model. Every write goes to
// the chip's single write port.
func NewTandyChip(sampleRate int) (ChipModel, error) {
	if err := checkRate("sn76489", sampleRate); err != nil {
		return nil, err
	}
	psg := sn76489.New(tandyClockHz, sampleRate, 1, sn76489.TI)
	psg.SetGain(tandyGain)
	return &tandyChip{psg: psg, rate: sampleRate}, nil
}

func (c *tandyChip) Write(_ uint16, data uint8) {
	c.psg.Write(data)
}

// Sample clocks the PSG for one output period using a Bresenham divider so
// the long-run clock count is exact.
func (c *tandyChip) Sample() (int16, int16) {
	c.accum += tandyClockHz
	for c.accum >= c.rate {
		c.accum -= c.rate
		c.psg.Clock()
	}
	s := int16(clampInt32(int32(c.psg.Sample()), -32768, 32767))
	return s, s
}

// --- OPL2 (YM3812) ---

type opl2Chip struct {
	fm *opl2.Chip
}

// NewOPL2Chip returns a YM3812 model. Register addresses come from the
// lane's address latch.
func NewOPL2Chip(sampleRate int) (ChipModel, error) {
	if err := checkRate("opl2", sampleRate); err != nil {
		return nil, err
	}
	return &opl2Chip{fm: opl2.New(opl2.ClockHz, sampleRate)}, nil
}

func (c *opl2Chip) Write(reg uint16, data uint8) {
	c.fm.WriteRegister(uint8(reg), data)
}

// Sample scales the chip output by four.
func (c *opl2Chip) Sample() (int16, int16) {
	s := int16(clampInt32(int32(c.fm.Sample())<<2, -32768, 32767))
	return s, s
}

// --- Creative Music System (dual SAA-1099) ---

type cmsChip struct {
	saa [2]*saa1099.Chip
}

// NewCMSChip returns a pair of SAA-1099 models. Bit 0 of the register
// number selects the chip; the remaining bits are the chip register.
func NewCMSChip(sampleRate int) (ChipModel, error) {
	if err := checkRate("saa1099", sampleRate); err != nil {
		return nil, err
	}
	return &cmsChip{saa: [2]*saa1099.Chip{
		saa1099.New(saa1099.ClockHz, sampleRate),
		saa1099.New(saa1099.ClockHz, sampleRate),
	}}, nil
}

func (c *cmsChip) Write(reg uint16, data uint8) {
	chip := c.saa[reg&1]
	chip.WriteAddress(uint8(reg >> 1))
	chip.WriteData(data)
}

// Sample advances both chips together and mixes them.
func (c *cmsChip) Sample() (int16, int16) {
	l0, r0 := c.saa[0].Sample()
	l1, r1 := c.saa[1].Sample()
	l := clampInt32(int32(l0)+int32(l1), -32768, 32767)
	r := clampInt32(int32(r0)+int32(r1), -32768, 32767)
	return int16(l), int16(r)
}
