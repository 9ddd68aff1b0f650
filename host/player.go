package host

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/user-none/emlpt/lpt"
)

// BacklogPoll is how long a feeder waits for the device to drain its lane.
const BacklogPoll = 50 * time.Microsecond

// Player replays a VGM log into the port through an Encoder.
type Player struct {
	port *lpt.Port
	enc  Encoder
	vgm  *VGM

	// Fast skips the VGM timing and writes as fast as the device drains.
	Fast bool
	// Loop restarts at the loop point instead of returning at the end.
	Loop bool

	now     func() time.Time
	written atomic.Uint64
	skipped atomic.Uint64
}

// NewPlayer creates a player. Events for chips other than the encoder's are
// skipped.
func NewPlayer(port *lpt.Port, enc Encoder, v *VGM) *Player {
	return &Player{port: port, enc: enc, vgm: v, now: time.Now}
}

// Written returns the number of events sent to the port.
func (p *Player) Written() uint64 {
	return p.written.Load()
}

// Skipped returns the number of events for other chips.
func (p *Player) Skipped() uint64 {
	return p.skipped.Load()
}

// Run plays the log. It returns nil at the end of a non-looping log, or the
// context error.
func (p *Player) Run(ctx context.Context) error {
	start := p.now()
	events := p.vgm.Events
	var offset uint64

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, ev := range events {
			if ev.Chip != p.enc.Chip() {
				p.skipped.Add(1)
				continue
			}
			if !p.Fast {
				if err := sleepUntil(ctx, p.now, start.Add(SampleTime(ev.Sample+offset))); err != nil {
					return err
				}
			}
			if err := waitBacklog(ctx, p.port, lpt.FIFODepth-2); err != nil {
				return err
			}
			p.enc.Write(p.port, ev)
			p.written.Add(1)
		}

		if !p.Loop || p.vgm.TotalSamples <= p.vgm.LoopSample {
			return ctx.Err()
		}
		// Later passes start at the loop point, shifted by the loop length.
		offset += p.vgm.TotalSamples - p.vgm.LoopSample
		events = p.vgm.Events
		for len(events) > 0 && events[0].Sample < p.vgm.LoopSample {
			events = events[1:]
		}
	}
}

// waitBacklog blocks until no strobed lane holds more than limit words.
func waitBacklog(ctx context.Context, port *lpt.Port, limit int) error {
	for port.Backlog() > limit {
		if err := ctx.Err(); err != nil {
			return err
		}
		time.Sleep(BacklogPoll)
	}
	return nil
}

// sleepUntil waits for the deadline or the context.
func sleepUntil(ctx context.Context, now func() time.Time, deadline time.Time) error {
	d := deadline.Sub(now())
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
