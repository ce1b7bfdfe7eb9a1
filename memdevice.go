package statuslight

import (
	"errors"
	"log/slog"
	"sync"

	"dev.acmcsuf.com/christmas/lib/leddraw"
	"dev.acmcsuf.com/christmas/lib/xcolor"
)

// MemoryDevice is a Device that keeps its pixels in memory. Every flush is
// recorded as a frame. It is used when no strip is attached.
type MemoryDevice struct {
	mu      sync.Mutex
	pending leddraw.LEDStrip
	frames  []leddraw.LEDStrip
	closed  bool
	logger  *slog.Logger
}

var _ Device = (*MemoryDevice)(nil)

// NewMemoryDevice creates a MemoryDevice with n pixels, all off.
func NewMemoryDevice(n int) *MemoryDevice {
	return &MemoryDevice{pending: make(leddraw.LEDStrip, n)}
}

// Len returns the number of pixels.
func (d *MemoryDevice) Len() int {
	return len(d.pending)
}

func (d *MemoryDevice) SetRGBAt(i int, color xcolor.RGB) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[i] = color
}

func (d *MemoryDevice) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.New("memory device is closed")
	}

	frame := make(leddraw.LEDStrip, len(d.pending))
	copy(frame, d.pending)
	d.frames = append(d.frames, frame)

	if d.logger != nil {
		d.logger.Debug(
			"frame flushed",
			"pixels", len(frame),
			"lit", countLit(frame))
	}

	return nil
}

func (d *MemoryDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (d *MemoryDevice) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.closed
}

// Pixels returns a copy of the last flushed frame, or nil if nothing has been
// flushed yet.
func (d *MemoryDevice) Pixels() leddraw.LEDStrip {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.frames) == 0 {
		return nil
	}
	frame := d.frames[len(d.frames)-1]
	return append(leddraw.LEDStrip(nil), frame...)
}

// Frames returns every flushed frame in order.
func (d *MemoryDevice) Frames() []leddraw.LEDStrip {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]leddraw.LEDStrip(nil), d.frames...)
}

// MemoryOpener allocates MemoryDevices and remembers each one.
type MemoryOpener struct {
	// Logger, if set, logs every flushed frame at debug level.
	Logger *slog.Logger

	mu      sync.Mutex
	devices []*MemoryDevice
}

// Open implements DeviceOpener.
func (o *MemoryOpener) Open(n int) (Device, error) {
	d := NewMemoryDevice(n)
	d.logger = o.Logger

	o.mu.Lock()
	o.devices = append(o.devices, d)
	o.mu.Unlock()

	return d, nil
}

// Devices returns every device opened so far, oldest first.
func (o *MemoryOpener) Devices() []*MemoryDevice {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]*MemoryDevice(nil), o.devices...)
}

// Current returns the most recently opened device, or nil.
func (o *MemoryOpener) Current() *MemoryDevice {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.devices) == 0 {
		return nil
	}
	return o.devices[len(o.devices)-1]
}

func countLit(strip leddraw.LEDStrip) int {
	var n int
	for _, c := range strip {
		if c != (xcolor.RGB{}) {
			n++
		}
	}
	return n
}
