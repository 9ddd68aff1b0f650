// Package opl2 implements the Yamaha YM3812 (OPL2) FM synthesizer as used on
// the OPL2LPT: nine two-operator channels, four waveforms, tremolo, vibrato
// and the rhythm section.
package opl2

// ClockHz is the master clock of the OPL2LPT board.
const ClockHz = 3579545

// The chip produces one native sample every 72 master clocks (~49.7 kHz).
const nativeDivider = 72

// Envelope states
const (
	egAttack  = 0
	egDecay   = 1
	egSustain = 2
	egRelease = 3
)

// Key sources. An operator sounds while either is set.
const (
	keyNormal = 1 << iota
	keyRhythm
)

// Rhythm key bits in register $BD.
const (
	rhythmHH  = 0x01
	rhythmCYM = 0x02
	rhythmTOM = 0x04
	rhythmSD  = 0x08
	rhythmBD  = 0x10
)

// operator holds decoded register state for one of the 18 slots.
type operator struct {
	// Register fields
	am   bool  // Tremolo enable
	vib  bool  // Vibrato enable
	egt  bool  // Sustained envelope (hold at SL until key-off)
	ksr  bool  // Key scale rate
	mult uint8 // Frequency multiplier index (4-bit)
	ksl  uint8 // Key scale level (2-bit)
	tl   uint8 // Total level (6-bit, 0.75 dB steps)
	ar   uint8 // Attack rate (4-bit)
	dr   uint8 // Decay rate (4-bit)
	sl   uint8 // Sustain level (4-bit)
	rr   uint8 // Release rate (4-bit)
	wave uint8 // Waveform (2-bit, honoured only with WSE set)

	phaseCounter uint32 // 20-bit phase accumulator
	phaseInc     uint32
	kslAtten     uint16 // Key scale attenuation, 10-bit units

	egState uint8
	egLevel uint16 // 10-bit attenuation (0=full vol, 0x3FF=silent)
	keyMask uint8

	prevOut [2]int16
}

// channel holds one of the nine FM channels.
type channel struct {
	op [2]operator

	fNum     uint16 // 10-bit F-number
	block    uint8  // 3-bit octave
	keyOn    bool
	feedback uint8 // 3-bit feedback level on operator 1
	additive bool  // CNT: false = FM (op1 -> op2), true = AM (op1 + op2)
}

// Chip is a YM3812 instance. It is not safe for concurrent use.
type Chip struct {
	sampleRate  int
	nativeClock int
	resampAccum int
	last        int16

	ch [9]channel

	waveSelect bool
	amDeep     bool
	vibDeep    bool
	rhythm     bool
	rhythmKeys uint8

	egCounter uint32

	amCnt   uint8
	amStep  uint8 // 0-209 tremolo triangle position
	vibCnt  uint16
	vibStep uint8 // 0-7 vibrato position

	noise uint32 // 23-bit noise LFSR for rhythm voices
}

// New creates a YM3812 clocked at clockHz producing samples at sampleRate.
func New(clockHz, sampleRate int) *Chip {
	c := &Chip{
		sampleRate:  sampleRate,
		nativeClock: clockHz / nativeDivider,
	}
	c.Reset()
	return c
}

// Reset silences every channel and clears all registers.
func (c *Chip) Reset() {
	c.ch = [9]channel{}
	for i := range c.ch {
		for j := range c.ch[i].op {
			c.ch[i].op[j].egState = egRelease
			c.ch[i].op[j].egLevel = 0x3FF
		}
	}
	c.waveSelect = false
	c.amDeep = false
	c.vibDeep = false
	c.rhythm = false
	c.rhythmKeys = 0
	c.egCounter = 0
	c.amCnt, c.amStep = 0, 0
	c.vibCnt, c.vibStep = 0, 0
	c.noise = 1
	c.resampAccum = 0
	c.last = 0
}

// NativeRate returns the chip's internal sample rate.
func (c *Chip) NativeRate() int {
	return c.nativeClock
}

// WriteRegister writes val to register addr.
func (c *Chip) WriteRegister(addr, val uint8) {
	switch {
	case addr == 0x01:
		// Clearing WSE forces sine output but keeps the waveform registers.
		c.waveSelect = val&0x20 != 0
	case addr >= 0x20 && addr < 0xA0:
		c.writeOperatorRegister(addr, val)
	case addr >= 0xA0 && addr <= 0xA8:
		ch := &c.ch[addr-0xA0]
		ch.fNum = ch.fNum&0x300 | uint16(val)
		c.updateChannelFrequency(int(addr - 0xA0))
	case addr >= 0xB0 && addr <= 0xB8:
		idx := int(addr - 0xB0)
		ch := &c.ch[idx]
		ch.fNum = ch.fNum&0x0FF | uint16(val&0x03)<<8
		ch.block = (val >> 2) & 0x07
		c.updateChannelFrequency(idx)
		on := val&0x20 != 0
		if on != ch.keyOn {
			ch.keyOn = on
			c.setKey(&ch.op[0], keyNormal, on)
			c.setKey(&ch.op[1], keyNormal, on)
		}
	case addr == 0xBD:
		c.amDeep = val&0x80 != 0
		c.vibDeep = val&0x40 != 0
		c.writeRhythm(val&0x20 != 0, val&0x1F)
	case addr >= 0xC0 && addr <= 0xC8:
		ch := &c.ch[addr-0xC0]
		ch.feedback = (val >> 1) & 0x07
		ch.additive = val&0x01 != 0
	case addr >= 0xE0 && addr <= 0xF5:
		c.writeWaveform(addr, val)
	}
}

// slotOf maps the low five bits of an operator register address to a
// channel and operator. Offsets 6, 7, 14, 15 and above 21 are unused.
func slotOf(offset uint8) (ch, op int, ok bool) {
	group := int(offset / 8)
	idx := int(offset % 8)
	if group > 2 || idx > 5 {
		return 0, 0, false
	}
	return group*3 + idx%3, idx / 3, true
}

// writeOperatorRegister handles $20-$95.
func (c *Chip) writeOperatorRegister(addr, val uint8) {
	chIdx, opIdx, ok := slotOf(addr & 0x1F)
	if !ok {
		return
	}
	op := &c.ch[chIdx].op[opIdx]

	switch addr & 0xE0 {
	case 0x20:
		op.am = val&0x80 != 0
		op.vib = val&0x40 != 0
		op.egt = val&0x20 != 0
		op.ksr = val&0x10 != 0
		op.mult = val & 0x0F
		c.updatePhaseIncrement(chIdx, opIdx)
	case 0x40:
		op.ksl = val >> 6
		op.tl = val & 0x3F
		c.updateKSL(chIdx, opIdx)
	case 0x60:
		op.ar = val >> 4
		op.dr = val & 0x0F
	case 0x80:
		op.sl = val >> 4
		op.rr = val & 0x0F
	}
}

// writeWaveform handles $E0-$F5.
func (c *Chip) writeWaveform(addr, val uint8) {
	chIdx, opIdx, ok := slotOf(addr & 0x1F)
	if !ok {
		return
	}
	c.ch[chIdx].op[opIdx].wave = val & 0x03
}

// writeRhythm updates the rhythm-mode flag and percussion key bits.
func (c *Chip) writeRhythm(enable bool, keys uint8) {
	if !enable {
		keys = 0
	}
	c.rhythm = enable
	changed := keys ^ c.rhythmKeys
	c.rhythmKeys = keys
	if changed == 0 {
		return
	}
	if changed&rhythmBD != 0 {
		on := keys&rhythmBD != 0
		c.setKey(&c.ch[6].op[0], keyRhythm, on)
		c.setKey(&c.ch[6].op[1], keyRhythm, on)
	}
	if changed&rhythmHH != 0 {
		c.setKey(&c.ch[7].op[0], keyRhythm, keys&rhythmHH != 0)
	}
	if changed&rhythmSD != 0 {
		c.setKey(&c.ch[7].op[1], keyRhythm, keys&rhythmSD != 0)
	}
	if changed&rhythmTOM != 0 {
		c.setKey(&c.ch[8].op[0], keyRhythm, keys&rhythmTOM != 0)
	}
	if changed&rhythmCYM != 0 {
		c.setKey(&c.ch[8].op[1], keyRhythm, keys&rhythmCYM != 0)
	}
}

// setKey adds or removes one key source from an operator.
func (c *Chip) setKey(op *operator, src uint8, on bool) {
	was := op.keyMask != 0
	if on {
		op.keyMask |= src
	} else {
		op.keyMask &^= src
	}
	now := op.keyMask != 0
	switch {
	case now && !was:
		op.phaseCounter = 0
		op.egState = egAttack
		if op.ar == 15 {
			op.egLevel = 0
			op.egState = egDecay
		}
	case !now && was:
		op.egState = egRelease
	}
}

// updateChannelFrequency recomputes both operators after an F-number or
// block change.
func (c *Chip) updateChannelFrequency(chIdx int) {
	for i := range c.ch[chIdx].op {
		c.updatePhaseIncrement(chIdx, i)
		c.updateKSL(chIdx, i)
	}
}

func (c *Chip) updatePhaseIncrement(chIdx, opIdx int) {
	ch := &c.ch[chIdx]
	op := &ch.op[opIdx]
	op.phaseInc = computePhaseIncrement(ch.fNum, ch.block, op.mult)
}

func (c *Chip) updateKSL(chIdx, opIdx int) {
	ch := &c.ch[chIdx]
	op := &ch.op[opIdx]
	op.kslAtten = keyScaleAttenuation(ch.fNum, ch.block, op.ksl)
}

// keyScaleCode returns the 4-bit rate-scaling code from block and F-number.
func keyScaleCode(fNum uint16, block uint8) uint8 {
	return block<<1 | uint8(fNum>>9)&1
}

// Sample returns the next output sample at the configured rate. The native
// stream is resampled by holding the most recent native sample.
func (c *Chip) Sample() int16 {
	c.resampAccum += c.nativeClock
	for c.resampAccum >= c.sampleRate {
		c.resampAccum -= c.sampleRate
		c.last = c.step()
	}
	return c.last
}

// step produces one native sample.
func (c *Chip) step() int16 {
	c.stepLFO()
	c.egCounter++
	for i := range c.ch {
		for j := range c.ch[i].op {
			c.stepOperatorEnvelope(&c.ch[i], &c.ch[i].op[j])
		}
	}
	c.stepNoise()

	var sum int32
	last := 9
	if c.rhythm {
		last = 6
	}
	for i := 0; i < last; i++ {
		sum += int32(c.evaluateChannel(i))
	}
	if c.rhythm {
		sum += c.evaluateRhythm()
	}
	return int16(clampInt32(sum>>3, -32768, 32767))
}

// clampInt32 clamps v to [min, max].
func clampInt32(v, min, max int32) int32 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
