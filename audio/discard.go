package audio

// DiscardSink drops every block. Wrap it in Paced for a headless run that
// keeps real-time timing.
type DiscardSink struct {
	block  []int16
	frames int64
}

// NewDiscardSink creates a sink with blockFrames per block.
func NewDiscardSink(blockFrames int) *DiscardSink {
	return &DiscardSink{block: make([]int16, blockFrames*2)}
}

func (s *DiscardSink) Block() ([]int16, bool) {
	return s.block, true
}

func (s *DiscardSink) Submit(block []int16) error {
	s.frames += int64(len(block) / 2)
	return nil
}

// Frames returns the number of frames submitted.
func (s *DiscardSink) Frames() int64 {
	return s.frames
}
