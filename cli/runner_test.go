package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"

	"github.com/user-none/emlpt/emu"
	"github.com/user-none/emlpt/lpt"
)

func deviceTable() []emu.Device {
	return emu.NewDeviceTable(emu.NewBoard(lpt.NewPool(lpt.NewPort(), lpt.DefaultPoolConfig), 96000))
}

func TestDeviceIndex(t *testing.T) {
	devices := deviceTable()
	cases := map[string]int{
		"":       0,
		"3":      3,
		"opl2":   4,
		"Tandy":  5,
		" game ": 6,
		"disney": 3,
		"stereo": 1,
	}
	for sel, want := range cases {
		got, err := DeviceIndex(devices, sel)
		require.NoError(t, err, sel)
		require.Equal(t, want, got, sel)
	}
	_, err := DeviceIndex(devices, "7")
	require.Error(t, err)
	_, err = DeviceIndex(devices, "-1")
	require.Error(t, err)
	_, err = DeviceIndex(devices, "soundblaster")
	require.Error(t, err)
}

func TestNewRunner_RejectsBadOptions(t *testing.T) {
	base := Options{Rate: 48000, Block: 256, Buffers: 4, Out: "null"}

	o := base
	o.Rate = 0
	_, err := NewRunner(o)
	require.Error(t, err)

	o = base
	o.VGM, o.PCM = "a.vgm", "b.wav"
	_, err = NewRunner(o)
	require.Error(t, err)

	o = base
	o.Out = "speakers"
	_, err = NewRunner(o)
	require.Error(t, err)

	o = base
	o.Device = "nonexistent"
	_, err = NewRunner(o)
	require.Error(t, err)
}

func TestNewRunner_PCMNeedsDACDevice(t *testing.T) {
	src := writeClip(t, 8000, 16384, 80)
	_, err := NewRunner(Options{Rate: 48000, Block: 256, Buffers: 4, Out: "null", Device: "opl2", PCM: src})
	require.Error(t, err)
}

func writeClip(t *testing.T, rate, value, frames int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	data := make([]int, frames)
	for i := range data {
		data[i] = value
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	require.NoError(t, enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
	return path
}

func TestRunner_CapturesCovoxStream(t *testing.T) {
	src := writeClip(t, 8000, 16384, 800)
	out := filepath.Join(t.TempDir(), "capture.wav")

	r, err := NewRunner(Options{
		Device:  "covox",
		Rate:    48000,
		Block:   256,
		Buffers: 4,
		Out:     out,
		PCM:     src,
		Seconds: 0.2,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Run(ctx))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.Len(t, buf.Data, 9600*2)

	held := 0
	for _, v := range buf.Data {
		if v == 16384 {
			held++
		}
	}
	require.Greater(t, held, len(buf.Data)/4, "streamed byte never reached the capture")
}
