// Package config publishes the board's embedded service configuration on
// the bus as retained config/<service> messages.
package config

import (
	"context"
	"encoding/json"

	"clockmeter-go/bus"
	"clockmeter-go/errcode"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

type ctxKey struct{}

// WithDevice stores the device ID the config service looks up.
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, ctxKey{}, device)
}

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// publishConfig publishes one retained message per top-level key of the
// device's embedded JSON object.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	const op = "config.publish"
	device, _ := ctx.Value(ctxKey{}).(string)
	if device == "" {
		return errcode.Wrap(errcode.InvalidConfig, op, "missing device ID in context")
	}

	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return errcode.Wrap(errcode.InvalidConfig, op, "no embedded config for device: "+device)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return &errcode.E{C: errcode.InvalidConfig, Op: op, Msg: "embedded config is not a JSON object", Err: err}
	}

	for k, v := range m {
		conn.Publish(bus.NewMessage(bus.T(configPrefix, k), v, true))
	}
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			println("Warn:", err.Error())
		}
	}()
}
