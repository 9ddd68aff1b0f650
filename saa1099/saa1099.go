// Package saa1099 implements the Philips SAA-1099 sound generator found in
// pairs on the Creative Music System / Game Blaster: six square-wave tone
// channels, two noise generators and two envelope generators with
// independent left and right amplitudes.
package saa1099

// ClockHz is the Game Blaster master clock (14.31818 MHz / 2).
const ClockHz = 7159090

const (
	left  = 0
	right = 1
)

// amplitudeLookup maps a 4-bit amplitude register value to a linear level.
var amplitudeLookup [16]int32

// envelopeTable holds the 64-step shape of each envelope mode. Single-shot
// modes stay in the second half of the table once they reach it.
var envelopeTable [8][64]uint8

func init() {
	for i := range amplitudeLookup {
		amplitudeLookup[i] = int32(i * 32767 / 16)
	}

	up := func(i int) uint8 { return uint8(i & 15) }
	down := func(i int) uint8 { return uint8(15 - i&15) }
	for i := 0; i < 64; i++ {
		quarter := i / 16
		envelopeTable[0][i] = 0
		envelopeTable[1][i] = 15
		// single decay
		if quarter == 0 {
			envelopeTable[2][i] = down(i)
		}
		// repetitive decay
		envelopeTable[3][i] = down(i)
		// single triangular
		switch quarter {
		case 0:
			envelopeTable[4][i] = up(i)
		case 1:
			envelopeTable[4][i] = down(i)
		}
		// repetitive triangular
		if quarter%2 == 0 {
			envelopeTable[5][i] = up(i)
		} else {
			envelopeTable[5][i] = down(i)
		}
		// single attack
		if quarter == 0 {
			envelopeTable[6][i] = up(i)
		}
		// repetitive attack
		envelopeTable[7][i] = up(i)
	}
}

type channel struct {
	frequency   uint8 // 8-bit frequency register
	octave      uint8 // 3-bit octave
	freqEnable  bool
	noiseEnable bool
	amplitude   [2]int32
	envelope    [2]int32 // 0-16, 16 when the envelope is off

	counter int64
	level   bool
}

type noise struct {
	params  uint8
	counter int64
	level   uint32
}

type envelope struct {
	enable       bool
	reverseRight bool
	mode         uint8
	threeBit     bool
	external     bool
	step         uint8
}

// Chip is one SAA-1099. It is not safe for concurrent use.
type Chip struct {
	clockHz    int
	sampleRate int

	ch    [6]channel
	noise [2]noise
	env   [2]envelope

	allEnable bool
	selected  uint8
}

// New creates a chip clocked at clockHz producing samples at sampleRate.
func New(clockHz, sampleRate int) *Chip {
	c := &Chip{clockHz: clockHz, sampleRate: sampleRate}
	c.Reset()
	return c
}

// Reset returns the chip to its power-on state with output disabled.
func (c *Chip) Reset() {
	c.ch = [6]channel{}
	for i := range c.ch {
		c.ch[i].envelope = [2]int32{16, 16}
	}
	c.noise = [2]noise{{level: 1}, {level: 1}}
	c.env = [2]envelope{}
	c.allEnable = false
	c.selected = 0
}

// WriteAddress selects the register for the next data write. Selecting an
// envelope register clocks any envelope generator set to external clocking.
func (c *Chip) WriteAddress(reg uint8) {
	c.selected = reg & 0x1F
	if c.selected == 0x18 || c.selected == 0x19 {
		for i := range c.env {
			if c.env[i].external {
				c.clockEnvelope(i)
			}
		}
	}
}

// WriteData writes val to the selected register.
func (c *Chip) WriteData(val uint8) {
	reg := c.selected
	switch {
	case reg <= 0x05:
		ch := &c.ch[reg]
		ch.amplitude[left] = amplitudeLookup[val&0x0F]
		ch.amplitude[right] = amplitudeLookup[val>>4]
	case reg >= 0x08 && reg <= 0x0D:
		c.ch[reg-0x08].frequency = val
	case reg >= 0x10 && reg <= 0x12:
		i := int(reg-0x10) * 2
		c.ch[i].octave = val & 0x07
		c.ch[i+1].octave = (val >> 4) & 0x07
	case reg == 0x14:
		for i := range c.ch {
			c.ch[i].freqEnable = val&(1<<uint(i)) != 0
		}
	case reg == 0x15:
		for i := range c.ch {
			c.ch[i].noiseEnable = val&(1<<uint(i)) != 0
		}
	case reg == 0x16:
		c.noise[0].params = val & 0x03
		c.noise[1].params = (val >> 4) & 0x03
	case reg == 0x18 || reg == 0x19:
		e := &c.env[reg-0x18]
		e.reverseRight = val&0x01 != 0
		e.mode = (val >> 1) & 0x07
		e.threeBit = val&0x10 != 0
		e.external = val&0x20 != 0
		e.enable = val&0x80 != 0
		e.step = 0
		c.applyEnvelope(int(reg - 0x18))
	case reg == 0x1C:
		c.allEnable = val&0x01 != 0
		if val&0x02 != 0 {
			for i := range c.ch {
				c.ch[i].level = false
				c.ch[i].counter = 0
			}
		}
	}
}

// toneRate returns the numerator of a channel's toggle frequency; the
// denominator is 511 - frequency.
func (c *Chip) toneRate(ch *channel) int64 {
	return int64(2*c.clockHz/512) << ch.octave
}

// noiseRate returns the numerator and denominator of a noise generator's
// clock frequency.
func (c *Chip) noiseRate(i int) (int64, int64) {
	n := &c.noise[i]
	if n.params == 3 {
		ch := &c.ch[i*3]
		return c.toneRate(ch), 511 - int64(ch.frequency)
	}
	return int64(2*c.clockHz) / (256 << n.params), 1
}

// clockEnvelope advances envelope generator i one step.
func (c *Chip) clockEnvelope(i int) {
	e := &c.env[i]
	if e.enable {
		// Once a single-shot shape reaches the second half it stays there.
		e.step = ((e.step + 1) & 0x3F) | (e.step & 0x20)
	}
	c.applyEnvelope(i)
}

// applyEnvelope loads the current envelope level into the three channels
// the generator controls.
func (c *Chip) applyEnvelope(i int) {
	e := &c.env[i]
	l, r := int32(16), int32(16)
	if e.enable {
		mask := uint8(15)
		if e.threeBit {
			mask &^= 1
		}
		v := envelopeTable[e.mode][e.step]
		l = int32(v & mask)
		if e.reverseRight {
			r = int32((15 - v) & mask)
		} else {
			r = l
		}
	}
	for ch := i * 3; ch < i*3+3; ch++ {
		c.ch[ch].envelope[left] = l
		c.ch[ch].envelope[right] = r
	}
}

// Sample advances the chip by one output sample and returns the stereo
// output.
func (c *Chip) Sample() (int16, int16) {
	if !c.allEnable {
		return 0, 0
	}
	rate := int64(c.sampleRate)

	var outL, outR int32
	for i := range c.ch {
		ch := &c.ch[i]
		den := 511 - int64(ch.frequency)
		ch.counter -= c.toneRate(ch)
		for ch.counter < 0 {
			ch.counter += rate * den
			ch.level = !ch.level
			// Channels 1 and 4 clock their envelope generator unless it
			// is clocked externally.
			if i == 1 && !c.env[0].external {
				c.clockEnvelope(0)
			}
			if i == 4 && !c.env[1].external {
				c.clockEnvelope(1)
			}
		}

		if ch.noiseEnable && c.noise[i/3].level&1 != 0 {
			// Noise subtracts at half amplitude to leave headroom
			outL -= ch.amplitude[left] * ch.envelope[left] / 16 / 2
			outR -= ch.amplitude[right] * ch.envelope[right] / 16 / 2
		}
		if ch.freqEnable && ch.level {
			outL += ch.amplitude[left] * ch.envelope[left] / 16
			outR += ch.amplitude[right] * ch.envelope[right] / 16
		}
	}

	for i := range c.noise {
		n := &c.noise[i]
		num, den := c.noiseRate(i)
		n.counter -= num
		for n.counter < 0 {
			n.counter += rate * den
			if n.level&0x4000 == (n.level&0x40)<<8 {
				n.level = n.level<<1 | 1
			} else {
				n.level <<= 1
			}
		}
	}

	return int16(outL / 6), int16(outR / 6)
}
