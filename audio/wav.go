package audio

import (
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrCaptureComplete is returned by a capture sink once it holds the
// requested number of frames. It marks a normal end of stream.
var ErrCaptureComplete = errors.New("capture complete")

// WavSink writes blocks to a 16-bit stereo WAV stream. It never refuses a
// block, so the output loop runs as fast as the devices produce.
type WavSink struct {
	enc      *wav.Encoder
	buf      *goaudio.IntBuffer
	block    []int16
	limit    int
	frames   int
	complete bool
}

// NewWavSink encodes to w at sampleRate. maxFrames of zero captures until
// Close.
func NewWavSink(w io.WriteSeeker, sampleRate, blockFrames, maxFrames int) (*WavSink, error) {
	if blockFrames <= 0 {
		return nil, errors.New("block size must be positive")
	}
	if maxFrames < 0 {
		return nil, fmt.Errorf("negative capture length %d", maxFrames)
	}
	return &WavSink{
		enc: wav.NewEncoder(w, sampleRate, 16, 2, 1),
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: 2, SampleRate: sampleRate},
			Data:           make([]int, 0, blockFrames*2),
			SourceBitDepth: 16,
		},
		block: make([]int16, blockFrames*2),
		limit: maxFrames,
	}, nil
}

func (s *WavSink) Block() ([]int16, bool) {
	return s.block, true
}

// Submit appends block to the file, cutting it short at the capture limit.
func (s *WavSink) Submit(block []int16) error {
	if s.complete {
		return ErrCaptureComplete
	}
	frames := len(block) / 2
	if s.limit > 0 && s.frames+frames >= s.limit {
		frames = s.limit - s.frames
		s.complete = true
	}

	s.buf.Data = s.buf.Data[:0]
	for _, v := range block[:frames*2] {
		s.buf.Data = append(s.buf.Data, int(v))
	}
	if err := s.enc.Write(s.buf); err != nil {
		return fmt.Errorf("wav write: %w", err)
	}
	s.frames += frames
	if s.complete {
		return ErrCaptureComplete
	}
	return nil
}

// Frames returns the number of frames written.
func (s *WavSink) Frames() int {
	return s.frames
}

// Close finalizes the WAV header. The underlying writer is not closed.
func (s *WavSink) Close() error {
	return s.enc.Close()
}
