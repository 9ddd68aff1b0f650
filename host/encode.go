package host

import (
	"fmt"
	"strings"

	"github.com/user-none/emlpt/lpt"
)

// Encoder turns chip writes into the port operations a DOS driver for one
// parallel-port device would perform.
type Encoder interface {
	// Chip is the chip whose events the encoder accepts.
	Chip() Chip
	Write(p *lpt.Port, ev Event)
}

// TandyEncoder drives a TNDLPT: the byte goes on the data lines and Strobe
// latches it.
type TandyEncoder struct{}

func (TandyEncoder) Chip() Chip { return ChipSN76489 }

func (TandyEncoder) Write(p *lpt.Port, ev Event) {
	p.SetData(ev.Value)
	p.Pulse(lpt.Strobe)
}

// OPL2Encoder drives an OPL2LPT: Init low selects the address port and Init
// high the data port, each latched by Strobe.
type OPL2Encoder struct{}

func (OPL2Encoder) Chip() Chip { return ChipYM3812 }

func (OPL2Encoder) Write(p *lpt.Port, ev Event) {
	p.SetControl(lpt.Init, false)
	p.SetData(ev.Reg)
	p.Pulse(lpt.Strobe)
	p.SetControl(lpt.Init, true)
	p.SetData(ev.Value)
	p.Pulse(lpt.Strobe)
}

// CMSEncoder drives a CMSLPT. Chip one is strobed by AutoFeed and chip two
// by SelectIn; Init high marks the address byte.
type CMSEncoder struct{}

func (CMSEncoder) Chip() Chip { return ChipSAA1099 }

func (CMSEncoder) Write(p *lpt.Port, ev Event) {
	line := lpt.AutoFeed
	if ev.Index&1 != 0 {
		line = lpt.SelectIn
	}
	p.SetControl(lpt.Init, true)
	p.SetData(ev.Reg)
	p.Pulse(line)
	p.SetControl(lpt.Init, false)
	p.SetData(ev.Value)
	p.Pulse(line)
}

// EncoderFor picks the encoder for a device by name.
func EncoderFor(device string) (Encoder, error) {
	switch d := strings.ToLower(device); {
	case strings.Contains(d, "opl2"):
		return OPL2Encoder{}, nil
	case strings.Contains(d, "tandy"):
		return TandyEncoder{}, nil
	case strings.Contains(d, "game blaster"), strings.Contains(d, "cms"):
		return CMSEncoder{}, nil
	}
	return nil, fmt.Errorf("no register encoder for %q", device)
}
