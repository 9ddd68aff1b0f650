package emu

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// ErrSwapFailed wraps the load or unload error of a failed hot-swap.
var ErrSwapFailed = errors.New("device swap failed")

// DefaultDebounce is the hot-swap button lockout.
const DefaultDebounce = 500 * time.Millisecond

// Debouncer rejects presses that arrive within Interval of the last
// accepted one.
type Debouncer struct {
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
	seen bool
}

// Allow reports whether a press at now should be acted on.
func (d *Debouncer) Allow(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen && now.Sub(d.last) < d.Interval {
		return false
	}
	d.last = now
	d.seen = true
	return true
}

// Manager owns the device table and sequences hot-swaps.
//
// Requests may come from any goroutine and only record the wanted index.
// Service is called by the output loop between blocks and is the only place
// devices are loaded or unloaded.
type Manager struct {
	devices  []Device
	debounce Debouncer

	wanted atomic.Int32
	// failed is set when the default device itself could not be loaded, so
	// the output loop stops retrying until the next request.
	failed atomic.Bool

	// Owned by the Service caller.
	current int
	loaded  bool
}

// NewManager creates a manager over devices. Index 0 is loaded at the first
// Service call.
func NewManager(devices []Device) *Manager {
	return &Manager{
		devices:  devices,
		debounce: Debouncer{Interval: DefaultDebounce},
	}
}

// Devices returns the device table.
func (m *Manager) Devices() []Device {
	return m.devices
}

// Wanted returns the requested device index.
func (m *Manager) Wanted() int {
	return int(m.wanted.Load())
}

// Current returns the index of the loaded device. ok is false when no
// device is loaded. Only the Service caller may use this.
func (m *Manager) Current() (index int, ok bool) {
	return m.current, m.loaded
}

// Request asks for device i at the next block boundary.
func (m *Manager) Request(i int) error {
	if i < 0 || i >= len(m.devices) {
		return fmt.Errorf("device index %d out of range [0, %d)", i, len(m.devices))
	}
	m.wanted.Store(int32(i))
	m.failed.Store(false)
	return nil
}

// RequestNext cycles to the device after the currently wanted one.
func (m *Manager) RequestNext() int {
	n := int32(len(m.devices))
	for {
		w := m.wanted.Load()
		next := (w + 1) % n
		if m.wanted.CompareAndSwap(w, next) {
			m.failed.Store(false)
			return int(next)
		}
	}
}

// Press is the hot-swap button. Presses inside the debounce window are
// ignored.
func (m *Manager) Press(now time.Time) bool {
	if !m.debounce.Allow(now) {
		return false
	}
	m.RequestNext()
	return true
}

// Pending reports whether the next Service call would load or unload.
func (m *Manager) Pending() bool {
	want := int(m.wanted.Load())
	if m.loaded {
		return want != m.current
	}
	return !m.failed.Load() || want != m.current
}

// Service performs any pending swap and returns the active device, or nil
// when none is loaded. A failed load resets the request to device 0 and is
// retried at the next call.
func (m *Manager) Service() (Device, error) {
	if !m.Pending() {
		if m.loaded {
			return m.devices[m.current], nil
		}
		return nil, nil
	}
	want := int(m.wanted.Load())

	if m.loaded {
		old := m.devices[m.current]
		m.loaded = false
		if err := old.Unload(); err != nil {
			return nil, fmt.Errorf("%w: unload %s: %w", ErrSwapFailed, old.Name(), err)
		}
		log.Printf("Unloaded device %d (%s)", m.current, old.Name())
	}

	dev := m.devices[want]
	m.current = want
	if err := dev.Load(); err != nil {
		if want == 0 {
			m.failed.Store(true)
		} else {
			m.wanted.CompareAndSwap(int32(want), 0)
		}
		return nil, fmt.Errorf("%w: load %s: %w", ErrSwapFailed, dev.Name(), err)
	}
	m.loaded = true
	log.Printf("Switched to %s", dev.Name())
	return dev, nil
}

// Close unloads the active device.
func (m *Manager) Close() error {
	if !m.loaded {
		return nil
	}
	m.loaded = false
	return m.devices[m.current].Unload()
}
