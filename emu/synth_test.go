package emu

import (
	"sync"
	"testing"
	"time"

	"github.com/user-none/emlpt/lpt"
)

// countingChip emits 0, 1, 2, ... and records every register write.
type countingChip struct {
	mu     sync.Mutex
	next   int16
	writes [][2]int
}

func (c *countingChip) Write(reg uint16, data uint8) {
	c.mu.Lock()
	c.writes = append(c.writes, [2]int{int(reg), int(data)})
	c.mu.Unlock()
}

func (c *countingChip) Sample() (int16, int16) {
	s := c.next
	c.next++
	return s, -s
}

func (c *countingChip) recorded() [][2]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][2]int, len(c.writes))
	copy(out, c.writes)
	return out
}

func popWait(t *testing.T, q *SampleQueue) int16 {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if s, ok := q.Pop(); ok {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for a sample")
		}
		time.Sleep(10 * time.Microsecond)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(100 * time.Microsecond)
	}
}

func TestSynth_BackpressureKeepsOrder(t *testing.T) {
	q, err := NewSampleQueue(4)
	if err != nil {
		t.Fatal(err)
	}
	chip := &countingChip{}
	s := NewSynth(nil, ByteDecoder{}, bindDirect, chip, false, q)
	s.Start()
	defer s.Stop()

	for i := 0; i < 200; i++ {
		got := popWait(t, q)
		if got != int16(i) {
			t.Fatalf("sample %d: expected %d, got %d", i, i, got)
		}
		if i%16 == 0 {
			time.Sleep(time.Millisecond)
		}
	}
}

func TestSynth_StereoPushesPairs(t *testing.T) {
	q, _ := NewSampleQueue(8)
	chip := &countingChip{}
	s := NewSynth(nil, ByteDecoder{}, bindDirect, chip, true, q)
	s.Start()
	defer s.Stop()

	for i := 0; i < 50; i++ {
		l := popWait(t, q)
		r := popWait(t, q)
		if l != int16(i) || r != -int16(i) {
			t.Fatalf("frame %d: expected %d/%d, got %d/%d", i, i, -i, l, r)
		}
	}
}

func TestSynth_StopJoinsLane(t *testing.T) {
	q, _ := NewSampleQueue(4)
	s := NewSynth(nil, ByteDecoder{}, bindDirect, &countingChip{}, false, q)
	if s.State() != LaneStopped {
		t.Errorf("expected stopped before start, got %v", s.State())
	}
	s.Start()
	if s.State() != LaneRunning {
		t.Errorf("expected running after start, got %v", s.State())
	}
	s.Stop()
	if s.State() != LaneStopped {
		t.Errorf("expected stopped after Stop, got %v", s.State())
	}
	// A second stop is a no-op.
	s.Stop()
}

func TestSynth_StopWithoutStart(t *testing.T) {
	s := NewSynth(nil, ByteDecoder{}, bindDirect, &countingChip{}, false, &SampleQueue{})
	s.Stop()
	if s.State() != LaneStopped {
		t.Errorf("expected stopped, got %v", s.State())
	}
}

func writeOPL2(p *lpt.Port, reg, val uint8) {
	p.SetControl(lpt.Init, false)
	p.SetData(reg)
	p.Pulse(lpt.Strobe)
	p.SetControl(lpt.Init, true)
	p.SetData(val)
	p.Pulse(lpt.Strobe)
}

func TestSynth_AddressLatchPersists(t *testing.T) {
	port := lpt.NewPort()
	pool := lpt.NewPool(port, lpt.DefaultPoolConfig)
	lane, err := pool.Acquire(strobed9("opl2", lpt.Strobe, lpt.Init, WiringNormal))
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Release(lane)
	lane.Enable()

	q, _ := NewSampleQueue(64)
	chip := &countingChip{}
	s := NewSynth([]*lpt.Lane{lane}, OPL2Decoder(WiringNormal), bindLatched(false), chip, false, q)
	s.Start()
	defer s.Stop()

	// One address followed by two data bytes: both land on the same register.
	writeOPL2(port, 0xA0, 0x41)
	port.SetData(0x42)
	port.Pulse(lpt.Strobe)
	writeOPL2(port, 0xB0, 0x22)

	waitFor(t, "three register writes", func() bool { return len(chip.recorded()) >= 3 })
	want := [][2]int{{0xA0, 0x41}, {0xA0, 0x42}, {0xB0, 0x22}}
	got := chip.recorded()
	if len(got) != len(want) {
		t.Fatalf("expected %d writes, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestSynth_DrainsBusWhileQueueFull(t *testing.T) {
	port := lpt.NewPort()
	pool := lpt.NewPool(port, lpt.DefaultPoolConfig)
	lane, err := pool.Acquire(strobed8("tandy", lpt.Strobe))
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Release(lane)
	lane.Enable()

	q, _ := NewSampleQueue(2)
	chip := &countingChip{}
	s := NewSynth([]*lpt.Lane{lane}, ByteDecoder{}, bindDirect, chip, false, q)
	s.Start()
	defer s.Stop()

	waitFor(t, "queue to fill", q.IsFull)

	// Nobody consumes, yet more writes than the lane FIFO holds must all
	// reach the chip.
	for i := 0; i < 3*lpt.FIFODepth; i++ {
		port.SetData(uint8(i))
		port.Pulse(lpt.Strobe)
		waitFor(t, "write to drain", func() bool { return lane.Len() == 0 })
	}
	waitFor(t, "all writes", func() bool { return len(chip.recorded()) == 3*lpt.FIFODepth })
	if n := lane.Overruns(); n != 0 {
		t.Errorf("expected no overruns, got %d", n)
	}
}

func TestSynth_DualSourceRouting(t *testing.T) {
	port := lpt.NewPort()
	pool := lpt.NewPool(port, lpt.DefaultPoolConfig)
	a, err := pool.Acquire(strobed9("cms-1", lpt.AutoFeed, lpt.Init, WiringNormal))
	if err != nil {
		t.Fatal(err)
	}
	b, err := pool.Acquire(strobed9("cms-2", lpt.SelectIn, lpt.Init, WiringNormal))
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Release(a)
	defer pool.Release(b)
	a.Enable()
	b.Enable()

	q, _ := NewSampleQueue(64)
	chip := &countingChip{}
	s := NewSynth([]*lpt.Lane{a, b}, CMSDecoder(WiringNormal), bindLatched(true), chip, true, q)
	s.Start()
	defer s.Stop()

	cms := func(line lpt.Line, reg, val uint8) {
		port.SetControl(lpt.Init, true)
		port.SetData(reg)
		port.Pulse(line)
		port.SetControl(lpt.Init, false)
		port.SetData(val)
		port.Pulse(line)
	}
	cms(lpt.AutoFeed, 0x1C, 0x01)
	waitFor(t, "first write", func() bool { return len(chip.recorded()) >= 1 })
	cms(lpt.SelectIn, 0x1C, 0x02)
	waitFor(t, "second write", func() bool { return len(chip.recorded()) >= 2 })

	got := chip.recorded()
	if got[0] != [2]int{0x1C << 1, 0x01} {
		t.Errorf("chip 0 write: got %v", got[0])
	}
	if got[1] != [2]int{0x1C<<1 | 1, 0x02} {
		t.Errorf("chip 1 write: got %v", got[1])
	}
}

// addressOnlyStream feeds address words through a running synthesis lane
// and returns frames from the queue.
func addressOnlyStream(t *testing.T, name string, prog []lpt.Program, dec Decoder, bind binding, stereo bool, strobe func(*lpt.Port, uint8), frames int) ([]int16, ChipModel) {
	t.Helper()
	port := lpt.NewPort()
	pool := lpt.NewPool(port, lpt.DefaultPoolConfig)
	var lanes []*lpt.Lane
	for _, p := range prog {
		l, err := pool.Acquire(p)
		if err != nil {
			t.Fatal(err)
		}
		defer pool.Release(l)
		l.Enable()
		lanes = append(lanes, l)
	}

	q, _ := NewSampleQueue(64)
	s := NewSynth(lanes, dec, bind, newToneChip(t, name), stereo, q)
	s.Start()
	defer s.Stop()

	for _, reg := range []uint8{0xA0, 0xB0, 0x20, 0x01, 0xBD} {
		strobe(port, reg)
	}
	per := 1
	if stereo {
		per = 2
	}
	out := make([]int16, frames*per)
	for i := range out {
		out[i] = popWait(t, q)
	}
	for _, l := range lanes {
		if l.Len() != 0 {
			t.Errorf("%s: expected every address word consumed, %d left", name, l.Len())
		}
	}
	return out, newToneChip(t, name)
}

func TestSynth_AddressWordsLeaveOutputUnchanged(t *testing.T) {
	cases := []struct {
		name   string
		prog   []lpt.Program
		dec    Decoder
		bind   binding
		stereo bool
		strobe func(*lpt.Port, uint8)
	}{
		{
			name: "opl2",
			prog: []lpt.Program{strobed9("opl2", lpt.Strobe, lpt.Init, WiringNormal)},
			dec:  OPL2Decoder(WiringNormal),
			bind: bindLatched(false),
			strobe: func(p *lpt.Port, reg uint8) {
				p.SetControl(lpt.Init, false)
				p.SetData(reg)
				p.Pulse(lpt.Strobe)
			},
		},
		{
			name: "cms",
			prog: []lpt.Program{
				strobed9("cms-1", lpt.AutoFeed, lpt.Init, WiringNormal),
				strobed9("cms-2", lpt.SelectIn, lpt.Init, WiringNormal),
			},
			dec:    CMSDecoder(WiringNormal),
			bind:   bindLatched(true),
			stereo: true,
			strobe: func(p *lpt.Port, reg uint8) {
				p.SetControl(lpt.Init, true)
				p.SetData(reg & 0x1F)
				p.Pulse(lpt.AutoFeed)
				p.Pulse(lpt.SelectIn)
			},
		},
	}
	for _, tc := range cases {
		got, ref := addressOnlyStream(t, tc.name, tc.prog, tc.dec, tc.bind, tc.stereo, tc.strobe, 2000)
		for i := 0; i < len(got); {
			l, r := ref.Sample()
			if got[i] != l {
				t.Fatalf("%s frame %d: expected %d, got %d", tc.name, i, l, got[i])
			}
			i++
			if tc.stereo {
				if got[i] != r {
					t.Fatalf("%s frame %d right: expected %d, got %d", tc.name, i, r, got[i])
				}
				i++
			}
		}
	}
}
