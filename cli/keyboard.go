package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/user-none/emlpt/emu"
)

// ErrQuit is returned by Keyboard.Run when the user asks to stop.
var ErrQuit = errors.New("quit requested")

// Keyboard turns key presses on a terminal into hot-swap requests.
//
//	space, n   hot-swap button (debounced, next device)
//	1-9        jump to a device by table position
//	q, Ctrl-C  quit
type Keyboard struct {
	mgr *emu.Manager
	in  *os.File
	now func() time.Time
}

// NewKeyboard reads keys from in, normally os.Stdin.
func NewKeyboard(mgr *emu.Manager, in *os.File) *Keyboard {
	return &Keyboard{mgr: mgr, in: in, now: time.Now}
}

// Handle applies one key. It returns ErrQuit for the quit keys.
func (k *Keyboard) Handle(b byte) error {
	switch {
	case b == ' ' || b == 'n' || b == 'N':
		if k.mgr.Press(k.now()) {
			i := k.mgr.Wanted()
			log.Printf("Requested device %d (%s)", i, k.mgr.Devices()[i].Name())
		}
	case b >= '1' && b <= '9':
		i := int(b - '1')
		if err := k.mgr.Request(i); err != nil {
			log.Printf("Warning: %v", err)
			return nil
		}
		log.Printf("Requested device %d (%s)", i, k.mgr.Devices()[i].Name())
	case b == 'q' || b == 'Q' || b == 0x03:
		return ErrQuit
	}
	return nil
}

// Run puts the terminal in raw mode and handles keys until ctx is done.
// It returns nil straight away when in is not a terminal.
func (k *Keyboard) Run(ctx context.Context) error {
	fd := int(k.in.Fd())
	if !term.IsTerminal(fd) {
		log.Printf("Warning: stdin is not a terminal, hot-swap keys disabled")
		return nil
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("raw mode: %w", err)
	}
	defer func() { _ = term.Restore(fd, old) }()

	// The reader stays blocked in Read after Run returns; it ends with the
	// process.
	keys := make(chan byte, 16)
	go readKeys(k.in, keys)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-keys:
			if !ok {
				return nil
			}
			if err := k.Handle(b); err != nil {
				return err
			}
		}
	}
}

func readKeys(r io.Reader, out chan<- byte) {
	defer close(out)
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			out <- buf[0]
		}
		if err != nil {
			return
		}
	}
}
