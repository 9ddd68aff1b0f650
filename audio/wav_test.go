package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

func TestWavSink_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	s, err := NewWavSink(f, 48000, 4, 0)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		blk, ok := s.Block()
		require.True(t, ok)
		for j := range blk {
			blk[j] = int16(i*100 + j)
		}
		require.NoError(t, s.Submit(blk))
	}
	require.NoError(t, s.Close())
	require.NoError(t, f.Close())
	require.Equal(t, 12, s.Frames())

	in, err := os.Open(path)
	require.NoError(t, err)
	defer in.Close()
	dec := wav.NewDecoder(in)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	require.Equal(t, uint16(2), dec.NumChans)
	require.Equal(t, uint32(48000), dec.SampleRate)
	require.Equal(t, uint16(16), dec.BitDepth)
	require.Len(t, buf.Data, 24)
	require.Equal(t, 0, buf.Data[0])
	require.Equal(t, 207, buf.Data[23])
}

func TestWavSink_StopsAtLimit(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "short.wav"))
	require.NoError(t, err)
	defer f.Close()

	s, err := NewWavSink(f, 48000, 4, 10)
	require.NoError(t, err)
	blk, _ := s.Block()
	require.NoError(t, s.Submit(blk))
	require.NoError(t, s.Submit(blk))
	require.ErrorIs(t, s.Submit(blk), ErrCaptureComplete)
	require.Equal(t, 10, s.Frames())
	require.ErrorIs(t, s.Submit(blk), ErrCaptureComplete)
	require.Equal(t, 10, s.Frames())
	require.NoError(t, s.Close())
}

func TestWavSink_RejectsBadConfig(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "bad.wav"))
	require.NoError(t, err)
	defer f.Close()

	_, err = NewWavSink(f, 48000, 0, 0)
	require.Error(t, err)
	_, err = NewWavSink(f, 48000, 4, -1)
	require.Error(t, err)
}

func createTempWav(t *testing.T) (*os.File, error) {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "tmp.wav"))
	if err == nil {
		t.Cleanup(func() { f.Close() })
	}
	return f, err
}
