package emu

import "sync/atomic"

// LaneState is the lifecycle of a synthesis lane goroutine.
type LaneState int32

const (
	LaneStopped LaneState = iota
	LaneRunning
	LaneStopping
)

func (s LaneState) String() string {
	switch s {
	case LaneRunning:
		return "running"
	case LaneStopping:
		return "stopping"
	default:
		return "stopped"
	}
}

// LaneControl coordinates stop and join between the goroutine that owns a
// device and the synthesis lane goroutine it started. The lane polls
// ShouldRun between bus words and while waiting on a full queue.
type LaneControl struct {
	state  atomic.Int32
	doneCh chan struct{}
}

// NewLaneControl creates a control in the running state.
func NewLaneControl() *LaneControl {
	c := &LaneControl{doneCh: make(chan struct{})}
	c.state.Store(int32(LaneRunning))
	return c
}

// ShouldRun returns true until Stop is called.
func (c *LaneControl) ShouldRun() bool {
	return LaneState(c.state.Load()) == LaneRunning
}

// Stop signals the lane to exit. It does not wait.
func (c *LaneControl) Stop() {
	c.state.CompareAndSwap(int32(LaneRunning), int32(LaneStopping))
}

// Wait blocks until the lane goroutine has exited.
func (c *LaneControl) Wait() {
	<-c.doneCh
}

// Done is closed when the lane goroutine exits.
func (c *LaneControl) Done() <-chan struct{} {
	return c.doneCh
}

// State returns the current lifecycle state.
func (c *LaneControl) State() LaneState {
	return LaneState(c.state.Load())
}

// exited is called once by the lane goroutine on its way out.
func (c *LaneControl) exited() {
	c.state.Store(int32(LaneStopped))
	close(c.doneCh)
}
