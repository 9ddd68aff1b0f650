package opl2

// Tremolo is a 210-step triangle advanced every 64 native samples (~3.7 Hz).
const (
	amSteps  = 210
	amPeriod = 64
)

// Vibrato cycles through eight steps, one every 1024 native samples (~6.1 Hz).
const vibPeriod = 1024

var vibPattern = [8]int32{0, 1, 2, 1, 0, -1, -2, -1}

// stepLFO advances the tremolo and vibrato counters.
func (c *Chip) stepLFO() {
	c.amCnt++
	if c.amCnt >= amPeriod {
		c.amCnt = 0
		c.amStep++
		if c.amStep >= amSteps {
			c.amStep = 0
		}
	}
	c.vibCnt++
	if c.vibCnt >= vibPeriod {
		c.vibCnt = 0
		c.vibStep = (c.vibStep + 1) & 7
	}
}

// tremolo returns the current AM attenuation in 10-bit envelope units:
// up to 4.8 dB with the deep flag set, 1.2 dB otherwise.
func (c *Chip) tremolo() uint16 {
	var v uint16
	if c.amStep < 108 {
		v = uint16(c.amStep) >> 2
	} else {
		v = uint16(amSteps-1-int(c.amStep)) >> 2
	}
	v <<= 1
	if !c.amDeep {
		v >>= 2
	}
	return v
}

// vibratoDelta returns the F-number offset for the current vibrato step.
// Depth scales with the top three F-number bits: about 14 cents deep and 7
// cents shallow.
func (c *Chip) vibratoDelta(fNum uint16) int32 {
	base := int32(fNum>>7) & 7
	d := base * vibPattern[c.vibStep]
	if c.vibDeep {
		return d >> 1
	}
	return d >> 2
}

// stepNoise clocks the 23-bit rhythm noise generator.
func (c *Chip) stepNoise() {
	if c.noise&1 != 0 {
		c.noise ^= 0x800302
	}
	c.noise >>= 1
}
