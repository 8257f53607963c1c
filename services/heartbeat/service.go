package heartbeat

import (
	"context"
	"time"

	"clockmeter-go/bus"
	"clockmeter-go/services/meter"
	"clockmeter-go/types"
	"clockmeter-go/x/timex"
)

var (
	topicConfigHeartbeat = bus.T("config", "heartbeat")
	topicValues          = bus.T("meter", "+", "value")
	TopicState           = bus.T("heartbeat", "state")
	TopicStats           = bus.T("heartbeat", "stats")
)

const (
	DefaultInterval = time.Second
	// Readings older than this many intervals mark the meter stalled.
	staleIntervals = 3
)

// StatsSource reports the meter's drop counters.
type StatsSource interface {
	Stats() meter.Stats
}

// Service watches the meter's readings on the bus and reports whether they
// are still arriving.
type Service struct {
	Interval time.Duration
	Meter    StatsSource // optional

	level  string
	lastTS int64
	seen   uint32
}

func (s *Service) staleAfter(iv time.Duration) int64 {
	return int64(staleIntervals * iv / time.Millisecond)
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	defer conn.Unsubscribe(cfgSub)
	valSub := conn.Subscribe(topicValues)
	defer conn.Unsubscribe(valSub)

	iv := s.Interval
	if iv <= 0 {
		iv = DefaultInterval
	}
	tick := time.NewTicker(iv)
	defer tick.Stop()
	s.lastTS = timex.NowMs()

	for {
		select {
		case <-ctx.Done():
			println("Info: heartbeat service stopping")
			s.setLevel(conn, "stopped", "context_cancelled")
			return
		case msg := <-valSub.Channel():
			if v, ok := msg.Payload.(types.FrequencyValue); ok {
				s.seen++
				if v.TS > s.lastTS {
					s.lastTS = v.TS
				}
			}
		case <-tick.C:
			s.check(conn, iv)
		case msg := <-cfgSub.Channel():
			// {"interval": seconds}
			if m, ok := msg.Payload.(map[string]any); ok {
				if v, ok := m["interval"]; ok {
					if sec, ok := v.(float64); ok && sec > 0 {
						iv = time.Duration(sec * float64(time.Second))
						tick.Reset(iv)
						println("Info:", "Heartbeat interval set to", sec, "seconds")
					}
				}
			}
		}
	}
}

func (s *Service) check(conn *bus.Connection, iv time.Duration) {
	now := timex.NowMs()
	if now-s.lastTS > s.staleAfter(iv) {
		if s.level != "stalled" {
			println("Warn: no meter readings for", now-s.lastTS, "ms")
		}
		s.setLevel(conn, "stalled", "no_readings")
	} else {
		s.setLevel(conn, "running", "ok")
	}

	st := types.HeartbeatStats{Samples: s.seen, LastTS: s.lastTS}
	if s.Meter != nil {
		ms := s.Meter.Stats()
		st.Samples = ms.Samples
		st.LineDrops = ms.LineDrops
		st.QueueDrop = ms.QueueDrops
	}
	conn.Publish(bus.NewMessage(TopicStats, st, true))
}

// setLevel publishes heartbeat/state when the level changes.
func (s *Service) setLevel(conn *bus.Connection, level, status string) {
	if level == s.level {
		return
	}
	s.level = level
	conn.Publish(bus.NewMessage(TopicState, types.MeterState{
		Kind:   types.KindHeartbeat,
		Level:  level,
		Status: status,
		TS:     timex.NowMs(),
	}, true))
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
