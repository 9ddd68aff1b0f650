package lpt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLane_StrobedCapturesOnEdge(t *testing.T) {
	port := NewPort()
	pool := NewPool(port, DefaultPoolConfig)
	l, err := pool.Acquire(testStrobed)
	require.NoError(t, err)

	port.SetData(0x42)
	port.Pulse(Strobe)
	require.False(t, l.HasPending(), "disabled lane must not capture")

	l.Enable()
	port.SetData(0x42)
	port.Pulse(Strobe)
	port.SetData(0x99)
	port.Pulse(AutoFeed)

	require.True(t, l.HasPending())
	w, ok := l.Take()
	require.True(t, ok)
	require.Equal(t, uint32(0x42)<<24, w)
	_, ok = l.Take()
	require.False(t, ok)
}

func TestLane_HeldControlDoesNotRetrigger(t *testing.T) {
	port := NewPort()
	pool := NewPool(port, DefaultPoolConfig)
	l, err := pool.Acquire(testStrobed)
	require.NoError(t, err)
	l.Enable()

	port.SetControl(Strobe, true)
	port.SetControl(Strobe, true)
	port.SetControl(Strobe, false)
	require.Equal(t, 1, l.Len())
}

func TestLane_OverrunCounted(t *testing.T) {
	port := NewPort()
	pool := NewPool(port, DefaultPoolConfig)
	l, err := pool.Acquire(testStrobed)
	require.NoError(t, err)
	l.Enable()

	for i := 0; i < FIFODepth+3; i++ {
		port.SetData(uint8(i))
		port.Pulse(Strobe)
	}
	require.Equal(t, FIFODepth, l.Len())
	require.Equal(t, uint64(3), l.Overruns())
	require.Equal(t, FIFODepth, port.Backlog())

	w, _ := l.Take()
	require.Equal(t, uint32(0)<<24, w, "oldest capture is kept")
}

func TestLane_SampledReadsCurrentBus(t *testing.T) {
	port := NewPort()
	pool := NewPool(port, DefaultPoolConfig)
	l, err := pool.Acquire(Program{Name: "sampled", Size: 2, Mode: Sampled, Width: 8})
	require.NoError(t, err)

	require.False(t, l.HasPending())
	l.Enable()
	port.SetData(0x80)
	w, ok := l.Take()
	require.True(t, ok)
	require.Equal(t, uint32(0x80)<<24, w)
	port.SetData(0x81)
	w, _ = l.Take()
	require.Equal(t, uint32(0x81)<<24, w)
}

func TestProgram_NineBitLayouts(t *testing.T) {
	normal := Program{Width: 9, Control: Init}
	swapped := Program{Width: 9, Control: Init, Swapped: true}
	pins := uint32(0xA5) | 1<<(8+Init)

	require.Equal(t, uint32(0x1A5), normal.Capture(pins)>>23)
	require.Equal(t, uint32(0xA5<<1|1), swapped.Capture(pins)>>23)
	require.Equal(t, uint32(0x0A5), normal.Capture(0xA5)>>23)
	require.Equal(t, uint32(0xA5<<1), swapped.Capture(0xA5)>>23)
}

func TestLane_MirrorDrivesStatus(t *testing.T) {
	port := NewPort()
	pool := NewPool(port, DefaultPoolConfig)
	l, err := pool.Acquire(Program{
		Name: "detect", Size: 2, Mode: Sampled, Width: 8,
		Mirror: &Mirror{DataBit: -1, Source: SelectIn, Target: PaperEnd},
	})
	require.NoError(t, err)

	port.SetControl(SelectIn, true)
	require.False(t, port.Status(PaperEnd), "mirror inactive until enabled")
	l.Enable()
	require.True(t, port.Status(PaperEnd))
	port.SetControl(SelectIn, false)
	require.False(t, port.Status(PaperEnd))

	port.SetControl(SelectIn, true)
	pool.Release(l)
	require.False(t, port.Status(PaperEnd), "release drops the status line")
}

func TestLane_ClaimStatusOwnsPin(t *testing.T) {
	port := NewPort()
	pool := NewPool(port, DefaultPoolConfig)
	l, err := pool.Acquire(testStrobed)
	require.NoError(t, err)

	l.ClaimStatus(Ack)
	l.ClaimStatus(Ack)
	l.SetStatus(Ack, true)
	require.True(t, port.Status(Ack))
	require.Equal(t, []int{PinAck}, statusClaims(port))

	pool.Release(l)
	require.False(t, port.Status(Ack))
	require.Empty(t, port.Claimed())

	l.SetStatus(Ack, true)
	require.False(t, port.Status(Ack), "a released lane no longer drives the line")
}

func TestLane_SetStatusNeedsClaim(t *testing.T) {
	port := NewPort()
	pool := NewPool(port, DefaultPoolConfig)
	l, err := pool.Acquire(testStrobed)
	require.NoError(t, err)
	defer pool.Release(l)

	l.SetStatus(Busy, true)
	require.False(t, port.Status(Busy))
	require.NotContains(t, port.Claimed(), PinBusy)
}

// statusClaims returns the claimed pins that belong to status lines.
func statusClaims(p *Port) []int {
	var out []int
	for _, pin := range p.Claimed() {
		for _, l := range []Line{Ack, Busy, PaperEnd} {
			if l.Pin() == pin {
				out = append(out, pin)
			}
		}
	}
	return out
}
