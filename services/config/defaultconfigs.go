package config

// Embedded per-device configuration, keyed by hal.Board.Name.

const cfgPico = `{
  "heartbeat": {
      "interval": 1
  }
}`

const cfgHostSim = `{
  "heartbeat": {
      "interval": 2
  }
}`

var embeddedConfigs = map[string][]byte{
	"pico":     []byte(cfgPico),
	"host-sim": []byte(cfgHostSim),
}
