package emu

// Wiring says where a 9-bit bus program puts the address/data control bit.
// The board revision is fixed at build time; see DefaultWiring.
type Wiring uint8

const (
	// WiringNormal captures the control line as instruction bit 8.
	WiringNormal Wiring = iota
	// WiringSwapped captures it as instruction bit 0, data in bits 1-8.
	WiringSwapped
)

func (w Wiring) String() string {
	if w == WiringSwapped {
		return "swapped"
	}
	return "normal"
}

// WriteKind classifies a decoded bus word.
type WriteKind uint8

const (
	KindData WriteKind = iota
	KindAddress
)

// BusWrite is one decoded bus word.
type BusWrite struct {
	Kind  WriteKind
	Value uint8
}

// Decoder turns a raw lane word into a BusWrite.
type Decoder interface {
	Decode(word uint32) BusWrite
}

// ByteDecoder reads an 8-bit capture. Every word is data.
type ByteDecoder struct{}

func (ByteDecoder) Decode(word uint32) BusWrite {
	return BusWrite{Kind: KindData, Value: uint8(word >> 24)}
}

// LatchDecoder reads a 9-bit capture whose control bit selects between an
// address latch and a data write. AddressLevel is the control-bit value that
// marks an address; it differs between device families.
type LatchDecoder struct {
	Wiring       Wiring
	AddressLevel bool
}

func (d LatchDecoder) Decode(word uint32) BusWrite {
	instr := word >> 23
	var ctl bool
	var v uint8
	if d.Wiring == WiringSwapped {
		ctl = instr&1 != 0
		v = uint8(instr >> 1)
	} else {
		ctl = instr&0x100 != 0
		v = uint8(instr)
	}
	if ctl == d.AddressLevel {
		return BusWrite{Kind: KindAddress, Value: v}
	}
	return BusWrite{Kind: KindData, Value: v}
}

// OPL2Decoder decodes the OPL2LPT bus: control low is an address latch.
func OPL2Decoder(w Wiring) LatchDecoder {
	return LatchDecoder{Wiring: w, AddressLevel: false}
}

// CMSDecoder decodes the Game Blaster bus: control high is an address latch.
func CMSDecoder(w Wiring) LatchDecoder {
	return LatchDecoder{Wiring: w, AddressLevel: true}
}

// PCM8 converts an unsigned 8-bit DAC byte to a signed 16-bit sample.
func PCM8(b uint8) int16 {
	return int16(int(b)-128) << 8
}

// PCMWord converts an 8-bit lane capture to a signed 16-bit sample.
func PCMWord(word uint32) int16 {
	return PCM8(uint8(word >> 24))
}

// latchState is the register address a synthesis lane remembers between
// bus words, one per source lane.
type latchState struct {
	addr [2]uint8
}

// binding maps a decoded write from source lane src onto a chip register
// write. ok is false when the write only updated the latch.
type binding func(src int, w BusWrite, s *latchState) (reg uint16, data uint8, ok bool)

// bindDirect forwards every byte to register 0. Used for chips with a single
// write port.
func bindDirect(_ int, w BusWrite, _ *latchState) (uint16, uint8, bool) {
	return 0, w.Value, true
}

// bindLatched keeps one address latch per source lane. The source index is
// folded into bit 0 of the register so dual-chip models can route it.
func bindLatched(dual bool) binding {
	return func(src int, w BusWrite, s *latchState) (uint16, uint8, bool) {
		if w.Kind == KindAddress {
			s.addr[src] = w.Value
			return 0, 0, false
		}
		reg := uint16(s.addr[src])
		if dual {
			reg = reg<<1 | uint16(src&1)
		}
		return reg, w.Value, true
	}
}
