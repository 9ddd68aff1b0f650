package lpt

// Mode selects when a lane captures the bus.
type Mode uint8

const (
	// Sampled lanes snapshot the data lines on every read.
	Sampled Mode = iota
	// Strobed lanes capture one word per asserting edge of Trigger.
	Strobed
)

// Mirror copies one input onto a status line while the lane is enabled.
// Detection programs use it to answer the host's presence probes.
type Mirror struct {
	// DataBit is the data line (0-7) to copy, or -1 to copy Source.
	DataBit int
	Source  Line
	Target  Line
	Invert  bool
}

func (m *Mirror) level(pins uint32) bool {
	var v bool
	if m.DataBit >= 0 {
		v = pins&(1<<uint(m.DataBit)) != 0
	} else {
		v = pins&(1<<(8+m.Source)) != 0
	}
	return v != m.Invert
}

// Program describes what a lane captures and how the captured word is laid
// out. Size is the number of instruction slots the program occupies in its
// block.
//
// Captured words are left-aligned in 32 bits. An 8-bit program stores the
// data lines in bits 24-31. A 9-bit program stores a 9-bit instruction in
// bits 23-31: with Swapped unset the control line is instruction bit 8 and
// the data byte bits 0-7; with Swapped set the data byte moves to bits 1-8
// and the control line becomes bit 0.
type Program struct {
	Name    string
	Size    int
	Mode    Mode
	Trigger Line
	Width   int
	Control Line
	Swapped bool
	Mirror  *Mirror
}

// Capture builds the word the program would push for the given pin state.
// pins carries the data lines in bits 0-7 and control line n in bit 8+n.
func (p Program) Capture(pins uint32) uint32 {
	data := pins & 0xFF
	if p.Width != 9 {
		return data << 24
	}
	var ctl uint32
	if pins&(1<<(8+p.Control)) != 0 {
		ctl = 1
	}
	var instr uint32
	if p.Swapped {
		instr = data<<1 | ctl
	} else {
		instr = ctl<<8 | data
	}
	return instr << 23
}

// pins lists the GPIOs the program touches.
func (p Program) pins() []int {
	out := make([]int, 0, DataPins+3)
	for i := 0; i < DataPins; i++ {
		out = append(out, PinDataBase+i)
	}
	if p.Mode == Strobed {
		out = append(out, p.Trigger.Pin())
	}
	if p.Width == 9 {
		out = append(out, p.Control.Pin())
	}
	if p.Mirror != nil {
		if p.Mirror.DataBit < 0 {
			out = append(out, p.Mirror.Source.Pin())
		}
		out = append(out, p.Mirror.Target.Pin())
	}
	return out
}
