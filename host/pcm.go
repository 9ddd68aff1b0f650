package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-audio/wav"

	"github.com/user-none/emlpt/lpt"
)

// PCM is unsigned 8-bit audio ready for a parallel-port DAC. Data is
// interleaved when Channels is 2.
type PCM struct {
	Rate     int
	Channels int
	Data     []uint8
}

// Frames returns the number of sample frames.
func (p *PCM) Frames() int {
	return len(p.Data) / p.Channels
}

// Frame returns the left and right bytes of frame i. Mono data is
// duplicated.
func (p *PCM) Frame(i int) (l, r uint8) {
	if p.Channels == 1 {
		v := p.Data[i]
		return v, v
	}
	return p.Data[i*2], p.Data[i*2+1]
}

// Mono returns frame i mixed to one channel.
func (p *PCM) Mono(i int) uint8 {
	l, r := p.Frame(i)
	return uint8((int(l) + int(r)) / 2)
}

var ErrPCMFormat = errors.New("unsupported wav")

// ReadPCMFile loads a WAV file.
func ReadPCMFile(path string) (*PCM, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadPCM(f)
}

// LoadPCM decodes a WAV stream to 8-bit unsigned PCM. Stereo is kept;
// anything wider is reduced to its first two channels.
func LoadPCM(r io.ReadSeeker) (*PCM, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav file", ErrPCMFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wav: %w", err)
	}
	chans := int(dec.NumChans)
	depth := int(dec.BitDepth)
	if chans < 1 || depth < 8 || depth > 32 {
		return nil, fmt.Errorf("%w: %d channels at %d bits", ErrPCMFormat, chans, depth)
	}

	keep := chans
	if keep > 2 {
		keep = 2
	}
	out := &PCM{Rate: int(dec.SampleRate), Channels: keep}
	out.Data = make([]uint8, 0, len(buf.Data)/chans*keep)
	for i := 0; i+chans <= len(buf.Data); i += chans {
		for c := 0; c < keep; c++ {
			out.Data = append(out.Data, toUnsigned8(buf.Data[i+c], depth))
		}
	}
	return out, nil
}

// toUnsigned8 maps a decoded sample to the unsigned byte a DAC expects.
// 8-bit WAV data is already unsigned.
func toUnsigned8(v, depth int) uint8 {
	if depth == 8 {
		return uint8(v)
	}
	return uint8((v >> (depth - 8)) + 128)
}

// PCMMode is how a streamer presents samples to the port.
type PCMMode uint8

const (
	// PCMDirect holds each sample on the data lines (Covox, FTL).
	PCMDirect PCMMode = iota
	// PCMStereo strobes left on AutoFeed and right on Strobe (Stereo-on-1).
	PCMStereo
	// PCMDSS pushes bytes with SelectIn whenever Ack is low (Disney).
	PCMDSS
)

// DSSRate is the Disney Sound Source playback rate.
const DSSRate = 7000

// PCMModeFor picks the streaming mode for a device by name.
func PCMModeFor(device string) (PCMMode, error) {
	d := strings.ToLower(device)
	switch {
	case strings.Contains(d, "covox"), strings.Contains(d, "ftl"):
		return PCMDirect, nil
	case strings.Contains(d, "stereo"):
		return PCMStereo, nil
	case strings.Contains(d, "disney"), strings.Contains(d, "dss"):
		return PCMDSS, nil
	}
	return 0, fmt.Errorf("%q is not a PCM device", device)
}

// PCMStreamer plays a PCM clip into the port in real time.
type PCMStreamer struct {
	port *lpt.Port
	pcm  *PCM
	mode PCMMode

	// Loop restarts the clip at the end.
	Loop bool

	now  func() time.Time
	sent int
}

func NewPCMStreamer(port *lpt.Port, pcm *PCM, mode PCMMode) *PCMStreamer {
	return &PCMStreamer{port: port, pcm: pcm, mode: mode, now: time.Now}
}

// Sent returns the number of frames written.
func (s *PCMStreamer) Sent() int {
	return s.sent
}

// Run streams the clip. It returns nil at the end of a non-looping clip.
func (s *PCMStreamer) Run(ctx context.Context) error {
	if s.pcm.Frames() == 0 || s.pcm.Rate <= 0 {
		return nil
	}
	for {
		var err error
		if s.mode == PCMDSS {
			err = s.runDSS(ctx)
		} else {
			err = s.runTimed(ctx)
		}
		if err != nil || !s.Loop {
			return err
		}
	}
}

// runTimed writes frames on the clip's own clock.
func (s *PCMStreamer) runTimed(ctx context.Context) error {
	start := s.now()
	for i := 0; i < s.pcm.Frames(); i++ {
		due := start.Add(time.Duration(int64(i) * int64(time.Second) / int64(s.pcm.Rate)))
		if err := sleepUntil(ctx, s.now, due); err != nil {
			return err
		}
		l, r := s.pcm.Frame(i)
		switch s.mode {
		case PCMStereo:
			s.port.SetData(l)
			s.port.Pulse(lpt.AutoFeed)
			s.port.SetData(r)
			s.port.Pulse(lpt.Strobe)
		default:
			s.port.SetData(s.pcm.Mono(i))
		}
		s.sent++
	}
	return nil
}

// runDSS resamples to the DSS rate and lets the device pace the transfer
// through Ack.
func (s *PCMStreamer) runDSS(ctx context.Context) error {
	n := int64(s.pcm.Frames()) * DSSRate / int64(s.pcm.Rate)
	for k := int64(0); k < n; k++ {
		for s.port.Status(lpt.Ack) {
			if err := ctx.Err(); err != nil {
				return err
			}
			time.Sleep(BacklogPoll)
		}
		if err := waitBacklog(ctx, s.port, lpt.FIFODepth-1); err != nil {
			return err
		}
		src := int(k * int64(s.pcm.Rate) / DSSRate)
		s.port.SetData(s.pcm.Mono(src))
		s.port.Pulse(lpt.SelectIn)
		s.sent++
	}
	return nil
}
