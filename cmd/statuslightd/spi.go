package main

import (
	"fmt"
	"io"
	"sync"

	"dev.acmcsuf.com/christmas/lib/xcolor"
	"dev.acmcsuf.com/statuslight"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"
)

// spiFreq is the WS2812B data rate.
const spiFreq = 800 * physic.KiloHertz

var initHost = sync.OnceValue(func() error {
	_, err := host.Init()
	return err
})

// spiDevice drives a WS281x strip by NRZ-encoding pixels onto an SPI port.
type spiDevice struct {
	dev    *nrzled.Dev
	closer io.Closer
	buf    []byte
}

var _ statuslight.Device = (*spiDevice)(nil)

func newSPIDevice(port spi.Port, closer io.Closer, numPixels int) (*spiDevice, error) {
	dev, err := nrzled.NewSPI(port, &nrzled.Opts{
		NumPixels: numPixels,
		Channels:  3,
		Freq:      spiFreq,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create nrzled device: %w", err)
	}

	return &spiDevice{
		dev:    dev,
		closer: closer,
		buf:    make([]byte, numPixels*3),
	}, nil
}

func (d *spiDevice) SetRGBAt(i int, color xcolor.RGB) {
	d.buf[i*3+0] = color.R
	d.buf[i*3+1] = color.G
	d.buf[i*3+2] = color.B
}

func (d *spiDevice) Flush() error {
	_, err := d.dev.Write(d.buf)
	return err
}

func (d *spiDevice) Close() error {
	err := d.dev.Halt()
	if d.closer != nil {
		if cerr := d.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func openSPI(name string) statuslight.DeviceOpener {
	return func(numPixels int) (statuslight.Device, error) {
		if err := initHost(); err != nil {
			return nil, fmt.Errorf("failed to initialize periph host: %w", err)
		}

		port, err := spireg.Open(name)
		if err != nil {
			return nil, fmt.Errorf("failed to open SPI port %q: %w", name, err)
		}

		dev, err := newSPIDevice(port, port, numPixels)
		if err != nil {
			port.Close()
			return nil, err
		}

		return dev, nil
	}
}
