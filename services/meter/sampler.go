package meter

import "clockmeter-go/x/mathx"

// Sampler holds one channel's PreviousSample.
type Sampler struct {
	width uint8
	prev  uint32
	n     uint32
}

func NewSampler(width uint8) *Sampler { return &Sampler{width: width} }

// Sample stores current as the new previous value and returns the ticks
// elapsed since the last call, modulo 2^width. The store is unconditional so
// a discarded result never shifts the next interval.
func (s *Sampler) Sample(current uint32) uint32 {
	current &= mathx.Mask(s.width)
	delta := mathx.WrapSubN(current, s.prev, s.width)
	s.prev = current
	s.n++
	return delta
}

// Previous is the raw value from the last Sample (zero before the first).
func (s *Sampler) Previous() uint32 { return s.prev }

// Count is the number of samples taken.
func (s *Sampler) Count() uint32 { return s.n }
