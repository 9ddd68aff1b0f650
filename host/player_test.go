package host

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/user-none/emlpt/emu"
	"github.com/user-none/emlpt/lpt"
)

func TestPlayer_SkipsOtherChips(t *testing.T) {
	port := lpt.NewPort()
	pool := lpt.NewPool(port, lpt.DefaultPoolConfig)
	lane := acquire(t, pool, lpt.Program{Name: "tandy", Size: 4, Mode: lpt.Strobed, Trigger: lpt.Strobe, Width: 8})

	v := &VGM{Events: []Event{
		{Chip: ChipSN76489, Value: 0x90},
		{Chip: ChipYM3812, Reg: 0x20, Value: 0x01},
		{Chip: ChipSN76489, Value: 0x91},
	}}
	p := NewPlayer(port, TandyEncoder{}, v)
	p.Fast = true
	require.NoError(t, p.Run(context.Background()))
	require.Equal(t, uint64(2), p.Written())
	require.Equal(t, uint64(1), p.Skipped())

	words := takeAll(lane)
	require.Equal(t, []uint32{0x90 << 24, 0x91 << 24}, words)
}

func TestPlayer_RealTimePacing(t *testing.T) {
	port := lpt.NewPort()
	v := &VGM{
		Events: []Event{
			{Sample: 0, Chip: ChipSN76489, Value: 0x90},
			{Sample: 882, Chip: ChipSN76489, Value: 0x91}, // 20 ms
		},
		TotalSamples: 882,
	}
	p := NewPlayer(port, TandyEncoder{}, v)
	start := time.Now()
	require.NoError(t, p.Run(context.Background()))
	require.GreaterOrEqual(t, time.Since(start), 19*time.Millisecond)
	require.Equal(t, uint8(0x91), port.Data())
}

func TestPlayer_LoopsUntilCancelled(t *testing.T) {
	port := lpt.NewPort()
	v := &VGM{
		Events: []Event{
			{Sample: 0, Chip: ChipSN76489, Value: 0x90},
			{Sample: 220, Chip: ChipSN76489, Value: 0x91},
		},
		TotalSamples: 441, // 10 ms
		LoopSample:   220,
	}
	p := NewPlayer(port, TandyEncoder{}, v)
	p.Loop = true
	ctx, cancel := context.WithTimeout(context.Background(), 45*time.Millisecond)
	defer cancel()
	err := p.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	// One full pass, then only the event after the loop point every 221
	// samples.
	require.GreaterOrEqual(t, p.Written(), uint64(4))
	require.LessOrEqual(t, p.Written(), uint64(12))
}

func TestPlayer_ThrottlesOnBacklog(t *testing.T) {
	port := lpt.NewPort()
	pool := lpt.NewPool(port, lpt.DefaultPoolConfig)
	lane := acquire(t, pool, lpt.Program{Name: "tandy", Size: 4, Mode: lpt.Strobed, Trigger: lpt.Strobe, Width: 8})

	events := make([]Event, 32)
	for i := range events {
		events[i] = Event{Chip: ChipSN76489, Value: uint8(i)}
	}
	p := NewPlayer(port, TandyEncoder{}, &VGM{Events: events})
	p.Fast = true

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	var got []uint32
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < len(events) && time.Now().Before(deadline) {
		if w, ok := lane.Take(); ok {
			got = append(got, w)
		} else {
			runtime.Gosched()
		}
	}
	require.NoError(t, <-done)
	require.Len(t, got, len(events))
	require.Zero(t, lane.Overruns())
	for i, w := range got {
		require.Equal(t, uint32(i)<<24, w)
	}
}

func peak(d emu.Device, frames int) int16 {
	var p int16
	for i := 0; i < frames; i++ {
		l, _ := d.GenerateSample()
		if l < 0 {
			l = -l
		}
		if l > p {
			p = l
		}
	}
	return p
}

func TestPlayer_DrivesOPL2Device(t *testing.T) {
	port := lpt.NewPort()
	b := emu.NewBoard(lpt.NewPool(port, lpt.DefaultPoolConfig), 96000)
	b.Wiring = emu.WiringNormal
	dev := emu.NewOPL2LPT(b)
	require.NoError(t, dev.Load())
	defer dev.Unload()

	var events []Event
	for _, w := range [][2]uint8{
		{0x20, 0x21}, {0x23, 0x21}, {0x40, 0x3F}, {0x43, 0x00},
		{0x60, 0xF0}, {0x63, 0xF0}, {0x80, 0x0F}, {0x83, 0x0F},
		{0xA0, 0x44}, {0xB0, 0x31},
	} {
		events = append(events, Event{Chip: ChipYM3812, Reg: w[0], Value: w[1]})
	}
	p := NewPlayer(port, OPL2Encoder{}, &VGM{Events: events})
	p.Fast = true
	require.NoError(t, p.Run(context.Background()))
	require.Greater(t, peak(dev, 9600), int16(3000))
}
