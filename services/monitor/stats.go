package monitor

import (
	"sort"
	"sync"
	"time"

	"github.com/eclesh/welford"
)

// Summary is a point-in-time view of one channel.
type Summary struct {
	Channel   string
	Count     uint64
	LastHz    float64
	MeanHz    float64
	StddevHz  float64
	MinHz     float64
	MaxHz     float64
	PPM       float64 // mean offset from nominal; 0 without a nominal
	UpdatedAt time.Time
}

type channelStats struct {
	w        *welford.Stats
	n        uint64
	last     float64
	min, max float64
	at       time.Time
}

// Stats accumulates readings per channel. Safe for concurrent use.
type Stats struct {
	nominalHz float64

	mu sync.Mutex
	ch map[string]*channelStats
}

// NewStats returns an empty tracker. nominalHz of 0 disables the ppm figure.
func NewStats(nominalHz float64) *Stats {
	return &Stats{nominalHz: nominalHz, ch: make(map[string]*channelStats)}
}

func (s *Stats) Add(r Reading) {
	hz := r.Hz()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.ch[r.Channel]
	if !ok {
		c = &channelStats{w: welford.New(), min: hz, max: hz}
		s.ch[r.Channel] = c
	}
	c.w.Add(hz)
	c.n++
	c.last = hz
	c.at = r.At
	if hz < c.min {
		c.min = hz
	}
	if hz > c.max {
		c.max = hz
	}
}

// PPM is the offset of hz from nominal in parts per million.
func PPM(hz, nominal float64) float64 {
	if nominal == 0 {
		return 0
	}
	return (hz - nominal) / nominal * 1e6
}

// Snapshot returns one Summary per channel, sorted by channel.
func (s *Stats) Snapshot() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Summary, 0, len(s.ch))
	for name, c := range s.ch {
		sd := 0.0
		if c.n > 1 {
			sd = c.w.Stddev()
		}
		out = append(out, Summary{
			Channel:   name,
			Count:     c.n,
			LastHz:    c.last,
			MeanHz:    c.w.Mean(),
			StddevHz:  sd,
			MinHz:     c.min,
			MaxHz:     c.max,
			PPM:       PPM(c.w.Mean(), s.nominalHz),
			UpdatedAt: c.at,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}
