package opl2

import "math"

// sineTable is a quarter-sine log table: 256 entries of -log2(sin((2i+1)/512 * pi/2))
// in 4.8 fixed-point.
var sineTable [256]uint16

// pow2Table converts the fractional part of a log-domain attenuation back to
// linear amplitude (2^(1-(i+1)/256) scaled to 11 bits).
var pow2Table [256]uint16

func init() {
	for i := 0; i < 256; i++ {
		angle := float64(2*i+1) / 512.0 * math.Pi / 2.0
		sineTable[i] = uint16(math.Round(-math.Log2(math.Sin(angle)) * 256.0))
	}
	for i := 0; i < 256; i++ {
		val := math.Pow(2.0, 1.0-float64(i+1)/256.0) * 1024.0
		pow2Table[i] = uint16(math.Round(val))
	}
}

// multTable is twice the frequency multiple for each MULT value (MULT 0 is x0.5).
var multTable = [16]uint32{1, 2, 4, 6, 8, 10, 12, 14, 16, 18, 20, 20, 24, 24, 30, 30}

// kslTable is the key scale attenuation at block 7 indexed by the top four
// F-number bits, in 10-bit envelope units (0.09375 dB).
var kslTable = [16]int32{0, 96, 128, 148, 160, 172, 180, 188, 192, 200, 204, 208, 212, 216, 220, 224}

// kslShift scales the 6 dB/oct table to the register's KSL setting:
// 0 = off, 1 = 3 dB/oct, 2 = 1.5 dB/oct, 3 = 6 dB/oct.
var kslShift = [4]uint{31, 1, 2, 0}

// computeOperatorOutput computes the signed 14-bit output of an operator
// from its 20-bit phase and 10-bit attenuation, shaped by waveform wave.
func computeOperatorOutput(phase uint32, atten uint16, wave uint8) int16 {
	// Top 10 bits of the phase index the full sine period
	phaseIdx := (phase >> 10) & 0x3FF
	sign := phaseIdx & 0x200
	mirror := phaseIdx & 0x100
	idx := phaseIdx & 0xFF

	switch wave {
	case 1:
		// Half sine
		if sign != 0 {
			return 0
		}
	case 2:
		// Absolute sine
		sign = 0
	case 3:
		// Pulse sine: rising quarters only
		if mirror != 0 {
			return 0
		}
		sign = 0
	}

	if mirror != 0 {
		idx = 0xFF - idx
	}

	totalAtten := uint32(sineTable[idx]) + uint32(atten)<<2
	linear := uint32(pow2Table[totalAtten&0xFF]) << 2
	linear >>= totalAtten >> 8

	if sign != 0 {
		return -int16(linear)
	}
	return int16(linear)
}

// computePhaseIncrement calculates the 20-bit phase increment for an operator.
// fNum: 10-bit F-number, block: 3-bit octave, mult: 4-bit MULT field.
func computePhaseIncrement(fNum uint16, block, mult uint8) uint32 {
	base := (uint32(fNum) << block) >> 1
	return (base * multTable[mult&0x0F]) & 0xFFFFF
}

// keyScaleAttenuation returns the KSL attenuation for a note in 10-bit
// envelope units.
func keyScaleAttenuation(fNum uint16, block, ksl uint8) uint16 {
	if ksl == 0 {
		return 0
	}
	a := kslTable[fNum>>6&0x0F] - 64*int32(7-block)
	if a <= 0 {
		return 0
	}
	return uint16(a >> kslShift[ksl&3])
}

// attenuation combines envelope, total level, key scaling and tremolo,
// capped at 0x3FF.
func (c *Chip) attenuation(op *operator) uint16 {
	total := uint32(op.egLevel) + uint32(op.tl)<<3 + uint32(op.kslAtten)
	if op.am {
		total += uint32(c.tremolo())
	}
	if total > 0x3FF {
		return 0x3FF
	}
	return uint16(total)
}

// stepPhase advances an operator's phase, applying vibrato when enabled.
func (c *Chip) stepPhase(ch *channel, op *operator) {
	inc := op.phaseInc
	if op.vib {
		fNum := uint16(int32(ch.fNum) + c.vibratoDelta(ch.fNum))
		inc = computePhaseIncrement(fNum&0x3FF, ch.block, op.mult)
	}
	op.phaseCounter = (op.phaseCounter + inc) & 0xFFFFF
}

// wave returns the waveform the operator actually produces.
func (c *Chip) wave(op *operator) uint8 {
	if !c.waveSelect {
		return 0
	}
	return op.wave
}

// feedback computes the self-feedback modulation for operator 1.
func feedback(op *operator, fbLevel uint8) int32 {
	if fbLevel == 0 {
		return 0
	}
	return (int32(op.prevOut[0]) + int32(op.prevOut[1])) >> (10 - uint(fbLevel))
}

// opOut computes an operator's output with phase modulation in the 10-bit
// index domain and stores its history for feedback.
func (c *Chip) opOut(op *operator, modulation int32) int16 {
	phase := op.phaseCounter + uint32(modulation<<10)
	out := computeOperatorOutput(phase, c.attenuation(op), c.wave(op))
	op.prevOut[1] = op.prevOut[0]
	op.prevOut[0] = out
	return out
}

// evaluateChannel advances both operators and returns the channel output.
func (c *Chip) evaluateChannel(chIdx int) int16 {
	ch := &c.ch[chIdx]
	c.stepPhase(ch, &ch.op[0])
	c.stepPhase(ch, &ch.op[1])

	fb := feedback(&ch.op[0], ch.feedback)
	s1 := c.opOut(&ch.op[0], fb)
	if ch.additive {
		s2 := c.opOut(&ch.op[1], 0)
		return int16(clampInt32(int32(s1)+int32(s2), -0x1FFF, 0x1FFF))
	}
	return c.opOut(&ch.op[1], int32(s1)>>1)
}

// evaluateRhythm renders the five percussion voices on channels 6-8. The
// bass drum is a normal FM voice played at double level. Hi-hat, snare and
// cymbal replace their phase with noise-gated fixed points; the tom is a
// plain sine.
func (c *Chip) evaluateRhythm() int32 {
	bd := int32(c.evaluateChannel(6)) * 2

	ch7, ch8 := &c.ch[7], &c.ch[8]
	for i := range ch7.op {
		c.stepPhase(ch7, &ch7.op[i])
		c.stepPhase(ch8, &ch8.op[i])
	}
	noise := c.noise&1 != 0

	hhPhase := uint32(0x034)
	if noise {
		hhPhase = 0x2D0
	}
	hh := computeOperatorOutput(hhPhase<<10, c.attenuation(&ch7.op[0]), 0)

	sdPhase := uint32(0x100)
	if ch7.op[0].phaseCounter&(1<<18) != 0 {
		sdPhase = 0x200
	}
	if noise {
		sdPhase ^= 0x100
	}
	sd := computeOperatorOutput(sdPhase<<10, c.attenuation(&ch7.op[1]), 0)

	tom := c.opOut(&ch8.op[0], 0)

	cymPhase := uint32(0x100)
	if noise {
		cymPhase = 0x300
	}
	cym := computeOperatorOutput(cymPhase<<10, c.attenuation(&ch8.op[1]), 0)

	return bd + 2*(int32(hh)+int32(sd)+int32(tom)+int32(cym))
}
