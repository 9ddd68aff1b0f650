package opl2

// egIncrementTable holds the increment patterns for effective rates 4-51.
// Rows 1-4 are selected by rate&3; row 0 is unused.
var egIncrementTable = [5][8]uint8{
	{0, 0, 0, 0, 0, 0, 0, 0},
	{0, 1, 0, 1, 0, 1, 0, 1},
	{0, 1, 0, 1, 1, 1, 0, 1},
	{0, 1, 1, 1, 0, 1, 1, 1},
	{0, 1, 1, 1, 1, 1, 1, 1},
}

// egHighRateTable defines per-rate increment patterns for rates 52-63,
// which update on every sample.
var egHighRateTable = [12][8]uint8{
	{2, 2, 2, 2, 2, 2, 2, 2}, // rate 52
	{2, 2, 2, 4, 2, 2, 2, 4}, // rate 53
	{2, 4, 2, 4, 2, 4, 2, 4}, // rate 54
	{2, 4, 4, 4, 2, 4, 4, 4}, // rate 55
	{4, 4, 4, 4, 4, 4, 4, 4}, // rate 56
	{4, 4, 4, 8, 4, 4, 4, 8}, // rate 57
	{4, 8, 4, 8, 4, 8, 4, 8}, // rate 58
	{4, 8, 8, 8, 4, 8, 8, 8}, // rate 59
	{8, 8, 8, 8, 8, 8, 8, 8}, // rate 60
	{8, 8, 8, 8, 8, 8, 8, 8}, // rate 61
	{8, 8, 8, 8, 8, 8, 8, 8}, // rate 62
	{8, 8, 8, 8, 8, 8, 8, 8}, // rate 63
}

// effectiveRate computes 4*rate + rks, clamped to 63. Returns 0 if rate is 0.
func (c *Chip) effectiveRate(rate uint8, ch *channel, op *operator) uint8 {
	if rate == 0 {
		return 0
	}
	rks := keyScaleCode(ch.fNum, ch.block)
	if !op.ksr {
		rks >>= 2
	}
	r := 4*int(rate) + int(rks)
	if r > 63 {
		r = 63
	}
	return uint8(r)
}

// sustainLevel converts the 4-bit SL field to a 10-bit attenuation level.
// SL 15 is 93 dB rather than 45.
func sustainLevel(sl uint8) uint16 {
	if sl >= 15 {
		return 0x3E0
	}
	return uint16(sl) << 5
}

// stepOperatorEnvelope advances one operator's envelope by one native sample.
func (c *Chip) stepOperatorEnvelope(ch *channel, op *operator) {
	if op.egState == egDecay && op.egLevel >= sustainLevel(op.sl) {
		op.egState = egSustain
	}

	var rate uint8
	switch op.egState {
	case egAttack:
		rate = c.effectiveRate(op.ar, ch, op)
	case egDecay:
		rate = c.effectiveRate(op.dr, ch, op)
	case egSustain:
		if op.egt {
			return
		}
		// Percussive envelope keeps falling at the release rate
		rate = c.effectiveRate(op.rr, ch, op)
	case egRelease:
		rate = c.effectiveRate(op.rr, ch, op)
	}
	if rate == 0 {
		return
	}

	counter := c.egCounter
	var incr uint8
	if rate >= 52 {
		incr = egHighRateTable[rate-52][counter&7]
	} else {
		shift := uint(13 - int(rate>>2))
		if counter&((1<<shift)-1) != 0 {
			return
		}
		incr = egIncrementTable[(rate&3)+1][(counter>>shift)&7]
	}
	if incr == 0 {
		return
	}

	switch op.egState {
	case egAttack:
		if rate >= 60 {
			op.egLevel = 0
		} else {
			step := (^int32(op.egLevel) * int32(incr)) >> 3
			newLevel := int32(op.egLevel) + step
			if newLevel <= 0 {
				op.egLevel = 0
			} else {
				op.egLevel = uint16(newLevel)
			}
		}
		if op.egLevel == 0 {
			op.egState = egDecay
		}
	default:
		op.egLevel += uint16(incr)
		if op.egLevel > 0x3FF {
			op.egLevel = 0x3FF
		}
	}
}
