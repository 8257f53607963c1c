package main

import (
	"context"
	"time"

	"clockmeter-go/bus"
	"clockmeter-go/services/config"
	"clockmeter-go/services/console"
	"clockmeter-go/services/hal"
	"clockmeter-go/services/heartbeat"
	"clockmeter-go/services/meter"
	"clockmeter-go/x/conv"
)

const banner = meter.Banner + "\n"

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)

	board, err := hal.Open()
	if err != nil {
		println("Fatal: board bring-up:", err.Error())
		return
	}
	print(banner)
	_, _ = board.Console.Write([]byte(banner))

	cfg := board.Config
	if err := cfg.Validate(); err != nil {
		board.Halt(err)
		return
	}

	var hex [4]byte
	for _, a := range hal.ScanI2C(board.I2C) {
		println("Info: i2c device at", string(conv.AppendHex8(hex[:0], a)))
	}

	sink := console.New(console.DefaultRingSize)
	m, err := meter.New(cfg, meter.Deps{
		Bindings:  board.Bindings(),
		Sink:      sink,
		Indicator: heartbeat.NewIndicator(board.LED),
		Trap:      board.Halt,
	})
	if err != nil {
		board.Halt(err)
		return
	}

	ctx := context.Background()
	b := bus.NewBus(4)
	config.NewConfigService().Start(config.WithDevice(ctx, board.Name), b.NewConnection("config"))
	go sink.Run(ctx, board.Console)
	go m.Run(ctx, b.NewConnection("meter"))
	hb := &heartbeat.Service{Meter: m}
	_ = hb.Start(ctx, b.NewConnection("heartbeat"))

	if err := m.Start(); err != nil {
		board.Halt(err)
		return
	}
	println("Info: meter running on", board.Name)
	select {}
}
