package main

import (
	"fmt"

	"dev.acmcsuf.com/christmas/lib/xcolor"
	"dev.acmcsuf.com/statuslight"
	"libdb.so/ledctl"
)

var ws281xConfig = ledctl.WS281xConfig{
	ColorOrder:   ledctl.BGROrder,
	ColorModel:   ledctl.RGBModel,
	PWMFrequency: 800000,
	DMAChannel:   10,
	GPIOPins:     []int{18},
}

// RGBController is a controller for RGB LEDs. Close releases its DMA channel
// and PWM so that a controller of a different size can be created.
type RGBController interface {
	SetRGBAt(i int, color ledctl.RGB)
	Flush() error
	Close() error
}

type rgbDevice struct {
	ctrl RGBController
}

var _ statuslight.Device = rgbDevice{}

func (d rgbDevice) SetRGBAt(i int, color xcolor.RGB) {
	d.ctrl.SetRGBAt(i, ledctl.RGB(color))
}

func (d rgbDevice) Flush() error {
	return d.ctrl.Flush()
}

func (d rgbDevice) Close() error {
	return d.ctrl.Close()
}

func openWS281x(cfg ledctl.WS281xConfig) statuslight.DeviceOpener {
	return func(numPixels int) (statuslight.Device, error) {
		cfg := cfg
		cfg.NumPixels = numPixels

		ws281x, err := ledctl.NewWS281x(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create a WS281x controller: %v", err)
		}

		return rgbDevice{ws281x}, nil
	}
}
