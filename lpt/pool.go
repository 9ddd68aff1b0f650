package lpt

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNoCapacity means no block had both a free lane and room for the
	// program.
	ErrNoCapacity = errors.New("lpt: no free lane or program memory")
	// ErrBadProgram is returned for programs that cannot be loaded at all.
	ErrBadProgram = errors.New("lpt: invalid program")
)

// PoolConfig sizes the sampling hardware.
type PoolConfig struct {
	Blocks        int
	LanesPerBlock int
	MemorySize    int
}

// DefaultPoolConfig matches the board: two blocks of four lanes sharing 32
// instruction slots each.
var DefaultPoolConfig = PoolConfig{Blocks: 2, LanesPerBlock: 4, MemorySize: 32}

type block struct {
	lanes []*Lane
	used  int
}

// Pool hands out lanes. Acquire and Release may be called from any goroutine.
type Pool struct {
	port *Port
	cfg  PoolConfig

	mu     sync.Mutex
	blocks []block
}

// NewPool creates a pool bound to port.
func NewPool(port *Port, cfg PoolConfig) *Pool {
	p := &Pool{port: port, cfg: cfg, blocks: make([]block, cfg.Blocks)}
	for i := range p.blocks {
		p.blocks[i].lanes = make([]*Lane, cfg.LanesPerBlock)
	}
	return p
}

// Port returns the port the pool samples.
func (p *Pool) Port() *Port {
	return p.port
}

// Acquire loads prog into the first block with a free lane and enough
// program memory. The lane starts disabled.
func (p *Pool) Acquire(prog Program) (*Lane, error) {
	if prog.Size <= 0 || prog.Size > p.cfg.MemorySize {
		return nil, fmt.Errorf("%w: %s size %d", ErrBadProgram, prog.Name, prog.Size)
	}
	if prog.Width != 8 && prog.Width != 9 {
		return nil, fmt.Errorf("%w: %s width %d", ErrBadProgram, prog.Name, prog.Width)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for bi := range p.blocks {
		b := &p.blocks[bi]
		if b.used+prog.Size > p.cfg.MemorySize {
			continue
		}
		for li, cur := range b.lanes {
			if cur != nil {
				continue
			}
			lane := &Lane{
				pool:  p,
				port:  p.port,
				prog:  prog,
				block: bi,
				index: li,
				fifo:  make(chan uint32, FIFODepth),
				pins:  prog.pins(),
			}
			b.lanes[li] = lane
			b.used += prog.Size
			p.port.attach(lane, lane.pins)
			return lane, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoCapacity, prog.Name)
}

// Release returns a lane to the pool, frees its program memory and drops
// its pin claims. Releasing a lane twice is a no-op.
func (p *Pool) Release(l *Lane) {
	if l == nil || l.pool != p {
		return
	}
	if !l.release() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	b := &p.blocks[l.block]
	if b.lanes[l.index] == l {
		b.lanes[l.index] = nil
		b.used -= l.prog.Size
	}
}

// FreeLanes counts lanes not currently acquired.
func (p *Pool) FreeLanes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.blocks {
		for _, l := range b.lanes {
			if l == nil {
				n++
			}
		}
	}
	return n
}
