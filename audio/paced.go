package audio

import (
	"time"

	"github.com/user-none/emlpt/emu"
)

// Paced limits a sink that would accept blocks immediately to the rate a
// sound card would drain them, allowing Buffers blocks of lead.
type Paced struct {
	emu.Sink
	Rate    int
	Buffers int

	now     func() time.Time
	start   time.Time
	frames  int64
	pending int
}

// NewPaced wraps sink at sampleRate.
func NewPaced(sink emu.Sink, sampleRate, buffers int) *Paced {
	return &Paced{Sink: sink, Rate: sampleRate, Buffers: buffers, now: time.Now}
}

func (p *Paced) Block() ([]int16, bool) {
	now := p.now()
	if p.start.IsZero() {
		p.start = now
	}
	played := int64(now.Sub(p.start)) * int64(p.Rate) / int64(time.Second)
	if p.pending > 0 && p.frames-played >= int64(p.Buffers*p.pending) {
		return nil, false
	}
	b, ok := p.Sink.Block()
	if ok {
		p.pending = len(b) / 2
	}
	return b, ok
}

func (p *Paced) Submit(block []int16) error {
	p.frames += int64(len(block) / 2)
	return p.Sink.Submit(block)
}
