// Package cli wires the board, the device manager, an audio sink and a host
// feeder into one process that runs until interrupted.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user-none/emlpt/audio"
	"github.com/user-none/emlpt/emu"
	"github.com/user-none/emlpt/host"
	"github.com/user-none/emlpt/lpt"
)

// Tail is how long output continues after a non-looping host source ends,
// so release envelopes and FIFOs drain into the capture.
const Tail = 500 * time.Millisecond

// Options configures a Runner.
type Options struct {
	Device  string // name or table index
	Rate    int
	Block   int // frames per block
	Buffers int
	Out     string // "oto", "null" or a .wav path
	VGM     string
	PCM     string
	Loop    bool
	Seconds float64
	Volume  float64
	Keys    bool
}

// Runner owns every component for one session.
type Runner struct {
	opts  Options
	port  *lpt.Port
	mgr   *emu.Manager
	loop  *emu.OutputLoop
	feed  func(context.Context) error
	keys  *Keyboard
	oto   *audio.OtoSink
	close []func() error

	// timed is set when the sink does not end the stream by itself.
	timed bool
}

// NewRunner builds the session. The starting device is loaded by the first
// block the output loop fills.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Rate <= 0 || opts.Block <= 0 || opts.Buffers <= 0 {
		return nil, errors.New("rate, block and buffers must be positive")
	}
	if opts.VGM != "" && opts.PCM != "" {
		return nil, errors.New("-vgm and -pcm are mutually exclusive")
	}

	pool := lpt.NewPool(lpt.NewPort(), lpt.DefaultPoolConfig)
	port := pool.Port()
	board := emu.NewBoard(pool, opts.Rate)
	devices := emu.NewDeviceTable(board)
	idx, err := DeviceIndex(devices, opts.Device)
	if err != nil {
		return nil, err
	}
	mgr := emu.NewManager(devices)
	if err := mgr.Request(idx); err != nil {
		return nil, err
	}

	r := &Runner{opts: opts, port: port, mgr: mgr}
	if err := r.openFeeder(devices[idx].Name()); err != nil {
		return nil, err
	}
	sink, err := r.openSink()
	if err != nil {
		r.Close()
		return nil, err
	}
	r.loop = emu.NewOutputLoop(mgr, sink)
	if opts.Keys {
		r.keys = NewKeyboard(mgr, os.Stdin)
	}
	return r, nil
}

// DeviceIndex resolves a device by table index or by a case-insensitive
// name fragment. An empty selector picks device 0.
func DeviceIndex(devices []emu.Device, sel string) (int, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return 0, nil
	}
	if i, err := strconv.Atoi(sel); err == nil {
		if i < 0 || i >= len(devices) {
			return 0, fmt.Errorf("device index %d out of range [0, %d)", i, len(devices))
		}
		return i, nil
	}
	want := strings.ToLower(sel)
	for i, d := range devices {
		if strings.Contains(strings.ToLower(d.Name()), want) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown device %q", sel)
}

// openFeeder prepares the host side for the starting device. The host keeps
// that device's protocol across hot-swaps, as a real PC program would.
func (r *Runner) openFeeder(device string) error {
	switch {
	case r.opts.VGM != "":
		v, err := host.ReadVGMFile(r.opts.VGM)
		if err != nil {
			return fmt.Errorf("load vgm: %w", err)
		}
		enc, err := host.EncoderFor(device)
		if err != nil {
			return err
		}
		log.Printf("Playing %s (%v, %d events) on %s", r.opts.VGM, v.Duration().Round(time.Millisecond), len(v.Events), device)
		p := host.NewPlayer(r.port, enc, v)
		p.Loop = r.opts.Loop
		r.feed = func(ctx context.Context) error {
			err := p.Run(ctx)
			log.Printf("Host wrote %d events, skipped %d", p.Written(), p.Skipped())
			return err
		}
	case r.opts.PCM != "":
		pcm, err := host.ReadPCMFile(r.opts.PCM)
		if err != nil {
			return fmt.Errorf("load pcm: %w", err)
		}
		mode, err := host.PCMModeFor(device)
		if err != nil {
			return err
		}
		log.Printf("Streaming %s (%d Hz, %d ch) to %s", r.opts.PCM, pcm.Rate, pcm.Channels, device)
		s := host.NewPCMStreamer(r.port, pcm, mode)
		s.Loop = r.opts.Loop
		r.feed = s.Run
	}
	return nil
}

func (r *Runner) openSink() (emu.Sink, error) {
	o := r.opts
	switch out := strings.ToLower(o.Out); {
	case out == "" || out == "oto":
		s, err := audio.NewOtoSink(o.Rate, o.Block, o.Buffers, o.Volume)
		if err != nil {
			log.Printf("Warning: audio initialization failed: %v", err)
			r.timed = true
			return audio.NewPaced(audio.NewDiscardSink(o.Block), o.Rate, o.Buffers), nil
		}
		r.timed = true
		r.oto = s
		r.close = append(r.close, s.Close)
		return s, nil
	case out == "null":
		r.timed = true
		return audio.NewPaced(audio.NewDiscardSink(o.Block), o.Rate, o.Buffers), nil
	case strings.HasSuffix(out, ".wav"):
		f, err := os.Create(o.Out)
		if err != nil {
			return nil, err
		}
		w, err := audio.NewWavSink(f, o.Rate, o.Block, int(o.Seconds*float64(o.Rate)))
		if err != nil {
			f.Close()
			return nil, err
		}
		r.close = append(r.close, w.Close, f.Close)
		// Host sources run on the wall clock, so the capture must too.
		return audio.NewPaced(w, o.Rate, o.Buffers), nil
	}
	return nil, fmt.Errorf("unknown output %q (use oto, null or a .wav path)", o.Out)
}

// Run plays until the context ends, the user quits, the capture is full, or
// a non-looping host source finishes.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if r.timed && r.opts.Seconds > 0 {
		var stop context.CancelFunc
		ctx, stop = context.WithTimeout(ctx, time.Duration(r.opts.Seconds*float64(time.Second)))
		defer stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.loop.Run(gctx)
	})
	if r.feed != nil {
		g.Go(func() error {
			if err := r.feed(gctx); err != nil {
				return err
			}
			select {
			case <-time.After(Tail):
			case <-gctx.Done():
			}
			cancel()
			return nil
		})
	}
	if r.keys != nil {
		g.Go(func() error {
			return r.keys.Run(gctx)
		})
	}

	err := g.Wait()
	log.Printf("Rendered %d blocks", r.loop.Blocks())
	if r.oto != nil {
		log.Printf("Dropped %d buffered audio bytes", r.oto.Buffered())
	}
	if cerr := r.Close(); err == nil || finished(err) {
		err = cerr
	}
	if finished(err) {
		return nil
	}
	return err
}

// finished reports whether err is a normal way for a session to end.
func finished(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, audio.ErrCaptureComplete) ||
		errors.Is(err, ErrQuit)
}

// Close releases sinks and files. It is safe to call more than once.
func (r *Runner) Close() error {
	var errs []error
	for _, c := range r.close {
		errs = append(errs, c())
	}
	r.close = nil
	return errors.Join(errs...)
}
