package host

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user-none/emlpt/emu"
	"github.com/user-none/emlpt/lpt"
)

func acquire(t *testing.T, pool *lpt.Pool, prog lpt.Program) *lpt.Lane {
	t.Helper()
	l, err := pool.Acquire(prog)
	require.NoError(t, err)
	l.Enable()
	t.Cleanup(func() { pool.Release(l) })
	return l
}

func takeAll(l *lpt.Lane) []uint32 {
	var out []uint32
	for {
		w, ok := l.Take()
		if !ok {
			return out
		}
		out = append(out, w)
	}
}

func TestTandyEncoder_StrobesByte(t *testing.T) {
	port := lpt.NewPort()
	pool := lpt.NewPool(port, lpt.DefaultPoolConfig)
	lane := acquire(t, pool, lpt.Program{Name: "tandy", Size: 4, Mode: lpt.Strobed, Trigger: lpt.Strobe, Width: 8})

	TandyEncoder{}.Write(port, Event{Chip: ChipSN76489, Value: 0x9F})
	words := takeAll(lane)
	require.Len(t, words, 1)
	require.Equal(t, emu.BusWrite{Kind: emu.KindData, Value: 0x9F}, emu.ByteDecoder{}.Decode(words[0]))
}

func TestOPL2Encoder_AddressThenData(t *testing.T) {
	for _, w := range []emu.Wiring{emu.WiringNormal, emu.WiringSwapped} {
		port := lpt.NewPort()
		pool := lpt.NewPool(port, lpt.DefaultPoolConfig)
		lane := acquire(t, pool, lpt.Program{
			Name: "opl2", Size: 6, Mode: lpt.Strobed, Trigger: lpt.Strobe,
			Width: 9, Control: lpt.Init, Swapped: w == emu.WiringSwapped,
		})

		OPL2Encoder{}.Write(port, Event{Chip: ChipYM3812, Reg: 0xB0, Value: 0x31})
		words := takeAll(lane)
		require.Len(t, words, 2, "wiring %v", w)
		dec := emu.OPL2Decoder(w)
		require.Equal(t, emu.BusWrite{Kind: emu.KindAddress, Value: 0xB0}, dec.Decode(words[0]), "wiring %v", w)
		require.Equal(t, emu.BusWrite{Kind: emu.KindData, Value: 0x31}, dec.Decode(words[1]), "wiring %v", w)
	}
}

func TestCMSEncoder_SelectsChipLine(t *testing.T) {
	port := lpt.NewPort()
	pool := lpt.NewPool(port, lpt.DefaultPoolConfig)
	prog := func(trigger lpt.Line) lpt.Program {
		return lpt.Program{Name: "cms", Size: 6, Mode: lpt.Strobed, Trigger: trigger, Width: 9, Control: lpt.Init}
	}
	one := acquire(t, pool, prog(lpt.AutoFeed))
	two := acquire(t, pool, prog(lpt.SelectIn))
	dec := emu.CMSDecoder(emu.WiringNormal)

	CMSEncoder{}.Write(port, Event{Chip: ChipSAA1099, Index: 1, Reg: 0x1C, Value: 0x01})
	require.Empty(t, takeAll(one))
	words := takeAll(two)
	require.Len(t, words, 2)
	require.Equal(t, emu.BusWrite{Kind: emu.KindAddress, Value: 0x1C}, dec.Decode(words[0]))
	require.Equal(t, emu.BusWrite{Kind: emu.KindData, Value: 0x01}, dec.Decode(words[1]))

	CMSEncoder{}.Write(port, Event{Chip: ChipSAA1099, Index: 0, Reg: 0x00, Value: 0x0F})
	require.Empty(t, takeAll(two))
	require.Len(t, takeAll(one), 2)
}

func TestEncoderFor(t *testing.T) {
	b := emu.NewBoard(lpt.NewPool(lpt.NewPort(), lpt.DefaultPoolConfig), 96000)
	want := map[string]Chip{
		"OPL2LPT":       ChipYM3812,
		"Tandy 3-voice": ChipSN76489,
		"Game Blaster":  ChipSAA1099,
	}
	for _, d := range emu.NewDeviceTable(b) {
		enc, err := EncoderFor(d.Name())
		chip, ok := want[d.Name()]
		if !ok {
			require.Error(t, err, d.Name())
			continue
		}
		require.NoError(t, err)
		require.Equal(t, chip, enc.Chip())
	}
}
