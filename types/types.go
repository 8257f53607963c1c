package types

// ---- Common meter state (retained) ----

type MeterState struct {
	Kind   Kind   `json:"kind"`   // which service reports the state
	Level  string `json:"level"`  // e.g. "running", "stalled", "fault", "stopped"
	Status string `json:"status"` // freeform short code
	TS     int64  `json:"ts_ms"`
}

// ---- Capability kinds & info ----

type Kind string

const (
	KindFrequency Kind = "frequency"
	KindHeartbeat Kind = "heartbeat"
)

// ChannelInfo describes a measurement channel (retained under .../info).
type ChannelInfo struct {
	Label       string `json:"label"`
	Unit        string `json:"unit"`
	ReferenceHz uint32 `json:"reference_hz"`
	Prescale    uint32 `json:"prescale"`
	Width       uint8  `json:"width"`
	ScaleKHz    uint32 `json:"scale_khz"` // kHz per counter tick
	Dormant     bool   `json:"dormant,omitempty"`
}

// FrequencyValue is one completed sample of a channel.
type FrequencyValue struct {
	Channel string `json:"channel"`
	Raw     uint32 `json:"raw"`   // counter value read this interval
	Delta   uint32 `json:"delta"` // wrap-aware ticks since the previous pulse
	KHz     uint32 `json:"khz"`   // Delta scaled to kHz
	Seq     uint32 `json:"seq"`
	TS      int64  `json:"ts_ms"`
}

// HeartbeatStats is published by the watchdog.
type HeartbeatStats struct {
	Samples   uint32 `json:"samples"`
	LineDrops uint32 `json:"line_drops"`
	QueueDrop uint32 `json:"queue_drops"`
	LastTS    int64  `json:"last_ts_ms"`
}
