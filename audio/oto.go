package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto allows one context per process.
var (
	otoCtx      *oto.Context
	otoRate     int
	otoInitOnce sync.Once
	otoInitErr  error
)

func ensureOtoContext(sampleRate int) (*oto.Context, error) {
	otoInitOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 2,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   20 * time.Millisecond,
		}
		var ready chan struct{}
		otoCtx, ready, otoInitErr = oto.NewContext(op)
		if otoInitErr != nil {
			return
		}
		otoRate = sampleRate
		<-ready
	})
	if otoInitErr != nil {
		return nil, otoInitErr
	}
	if otoRate != sampleRate {
		return nil, fmt.Errorf("oto context already open at %d Hz", otoRate)
	}
	return otoCtx, nil
}

// OtoSink plays blocks through the system audio device. A block is offered
// only when the ring has room for it, so the output loop runs at the rate
// the hardware drains samples.
type OtoSink struct {
	player *oto.Player
	ring   *Ring
	block  []int16
	bytes  []byte
}

// NewOtoSink opens playback at sampleRate with blockFrames per block and
// room for buffers blocks in flight.
func NewOtoSink(sampleRate, blockFrames, buffers int, volume float64) (*OtoSink, error) {
	if blockFrames <= 0 || buffers <= 0 {
		return nil, errors.New("block size and buffer count must be positive")
	}
	ctx, err := ensureOtoContext(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("oto audio not available: %w", err)
	}

	blockBytes := blockFrames * 4
	ring := NewRing(blockBytes * buffers)
	player := ctx.NewPlayer(ring)
	player.SetBufferSize(blockBytes * 2)
	player.SetVolume(volume)
	player.Play()

	return &OtoSink{
		player: player,
		ring:   ring,
		block:  make([]int16, blockFrames*2),
		bytes:  make([]byte, 0, blockBytes),
	}, nil
}

// Block returns the sink's block when the ring can take it.
func (s *OtoSink) Block() ([]int16, bool) {
	if s.ring.Free() < len(s.block)*2 {
		return nil, false
	}
	return s.block, true
}

// Submit queues a filled block for playback.
func (s *OtoSink) Submit(block []int16) error {
	if err := s.player.Err(); err != nil {
		return fmt.Errorf("oto player: %w", err)
	}
	s.bytes = putSamples(s.bytes, block)
	_, err := s.ring.Write(s.bytes)
	return err
}

// Buffered returns bytes queued in the ring and the player.
func (s *OtoSink) Buffered() int {
	return s.ring.Buffered() + s.player.BufferedSize()
}

// Close stops playback.
func (s *OtoSink) Close() error {
	s.ring.Close()
	return s.player.Close()
}
