package audio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDiscardSink_AcceptsEverything(t *testing.T) {
	s := NewDiscardSink(256)
	for i := 0; i < 100; i++ {
		b, ok := s.Block()
		require.True(t, ok)
		require.Len(t, b, 512)
		require.NoError(t, s.Submit(b))
	}
	require.Equal(t, int64(25600), s.Frames())
}

func TestPaced_FollowsClock(t *testing.T) {
	now := time.Unix(0, 0)
	inner := NewDiscardSink(100)
	s := NewPaced(inner, 1000, 2)
	s.now = func() time.Time { return now }

	// Two blocks of lead are allowed before any time passes.
	for i := 0; i < 2; i++ {
		b, ok := s.Block()
		require.True(t, ok, "block %d", i)
		require.NoError(t, s.Submit(b))
	}
	_, ok := s.Block()
	require.False(t, ok)

	// 100 ms at 1 kHz plays one block and frees one slot.
	now = now.Add(100 * time.Millisecond)
	b, ok := s.Block()
	require.True(t, ok)
	require.NoError(t, s.Submit(b))
	_, ok = s.Block()
	require.False(t, ok)
	require.Equal(t, int64(300), inner.Frames())
}

func TestPaced_PassesSinkErrors(t *testing.T) {
	f, err := createTempWav(t)
	require.NoError(t, err)
	w, err := NewWavSink(f, 1000, 10, 10)
	require.NoError(t, err)
	s := NewPaced(w, 1000, 4)
	b, ok := s.Block()
	require.True(t, ok)
	require.ErrorIs(t, s.Submit(b), ErrCaptureComplete)
}
