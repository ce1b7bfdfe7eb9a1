package statuslight

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"dev.acmcsuf.com/christmas/lib/leddraw"
	"dev.acmcsuf.com/christmas/lib/xcolor"
	"golang.org/x/sync/semaphore"
)

// Device is a physical LED strip allocated for a fixed number of pixels.
type Device interface {
	// SetRGBAt sets the color of pixel i. It takes effect on the next Flush.
	SetRGBAt(i int, color xcolor.RGB)
	// Flush writes all pixels to the strip.
	Flush() error
	// Close releases the strip.
	Close() error
}

// DeviceOpener allocates a Device with the given number of pixels.
type DeviceOpener func(numPixels int) (Device, error)

// StripOpts are options for a StripController.
type StripOpts struct {
	// Store is where the configuration is loaded from and saved to.
	Store ConfigStore
	// Open allocates the strip. It is called lazily, and again whenever the
	// configured pixel count changes.
	Open DeviceOpener
	// Logger is the logger to use for the controller.
	Logger *slog.Logger
	// FlashColor is the color shown briefly after a configuration is applied.
	// Defaults to a dim white.
	FlashColor xcolor.RGB
	// FlashHold is how long FlashColor is shown. Defaults to 300ms.
	FlashHold time.Duration
	// FlushTimeout bounds a single write to the strip. Defaults to 2s.
	FlushTimeout time.Duration
}

// StripController owns the LED strip. All of its operations are mutually
// exclusive: a paint always runs to completion, including the flush, before
// another paint or a reallocation starts.
type StripController struct {
	store  ConfigStore
	open   DeviceOpener
	logger *slog.Logger
	opts   StripOpts

	// sem guards dev, count and frame.
	sem   *semaphore.Weighted
	dev   Device
	count int
	frame leddraw.LEDStrip

	ledsMu sync.Mutex
	leds   leddraw.LEDStrip
}

// NewStripController creates a new controller. No device is allocated until
// the first operation.
func NewStripController(opts StripOpts) *StripController {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FlashColor == (xcolor.RGB{}) {
		opts.FlashColor = xcolor.RGB{R: 40, G: 40, B: 40}
	}
	if opts.FlashHold == 0 {
		opts.FlashHold = 300 * time.Millisecond
	}
	if opts.FlushTimeout == 0 {
		opts.FlushTimeout = 2 * time.Second
	}

	return &StripController{
		store:  opts.Store,
		open:   opts.Open,
		logger: opts.Logger,
		opts:   opts,
		sem:    semaphore.NewWeighted(1),
	}
}

// RenderSegment turns every pixel off, paints the named segment in its
// configured color and flushes the strip.
func (c *StripController) RenderSegment(ctx context.Context, name string) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.sem.Release(1)

	cfg, err := c.store.Load()
	if err != nil {
		return err
	}

	r, ok1 := cfg.Segments[name]
	color, ok2 := cfg.Colors[name]
	if !ok1 || !ok2 {
		return &UnknownSegmentError{Segment: name}
	}

	err = c.paint(cfg.LEDCount, func(frame leddraw.LEDStrip) {
		for i := r.Start(); i <= r.End() && i < len(frame); i++ {
			frame[i] = color.RGB()
		}
	})
	renderTotal.WithLabelValues(name, resultLabel(err)).Inc()
	if err != nil {
		return err
	}

	c.logger.DebugContext(ctx,
		"rendered segment",
		"segment", name,
		"start", r.Start(),
		"end", r.End())

	return nil
}

// ClearAll turns every pixel off and flushes the strip.
func (c *StripController) ClearAll(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.sem.Release(1)

	cfg, err := c.store.Load()
	if err != nil {
		return err
	}

	return c.paint(cfg.LEDCount, nil)
}

// ApplyConfiguration validates and saves cfg, reallocates the strip if the
// pixel count changed, then briefly flashes every pixel to show the strip
// works. An invalid configuration or a failed save leaves the strip and the
// stored configuration untouched.
func (c *StripController) ApplyConfiguration(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.sem.Release(1)

	if err := c.store.Save(cfg); err != nil {
		return err
	}

	if err := c.ensureDevice(cfg.LEDCount); err != nil {
		return err
	}

	return c.flash(ctx)
}

// LEDs returns a copy of the last frame written to the strip.
func (c *StripController) LEDs() leddraw.LEDStrip {
	c.ledsMu.Lock()
	defer c.ledsMu.Unlock()

	return append(leddraw.LEDStrip(nil), c.leds...)
}

// Close releases the strip. It waits for any operation in progress.
func (c *StripController) Close() error {
	c.sem.Acquire(context.Background(), 1)
	defer c.sem.Release(1)

	if c.dev == nil {
		return nil
	}

	err := c.dev.Close()
	c.dev = nil
	c.count = 0
	allocatedPixels.Set(0)

	if err != nil {
		return &DeviceError{Op: "close", Err: err}
	}
	return nil
}

func (c *StripController) acquire(ctx context.Context) error {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire LED strip: %w", err)
	}
	return nil
}

// paint clears the frame, lets draw fill it in and flushes it. sem must be
// held.
func (c *StripController) paint(count int, draw func(leddraw.LEDStrip)) error {
	if err := c.ensureDevice(count); err != nil {
		return err
	}

	clear(c.frame)
	if draw != nil {
		draw(c.frame)
	}

	return c.flush()
}

func (c *StripController) flash(ctx context.Context) error {
	for i := range c.frame {
		c.frame[i] = c.opts.FlashColor
	}
	if err := c.flush(); err != nil {
		return err
	}

	timer := time.NewTimer(c.opts.FlashHold)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}

	clear(c.frame)
	return c.flush()
}

// ensureDevice makes sure a device with exactly count pixels is allocated.
// sem must be held.
func (c *StripController) ensureDevice(count int) error {
	if c.dev != nil && c.count == count {
		return nil
	}

	if c.dev != nil {
		if err := c.dev.Close(); err != nil {
			c.logger.Warn(
				"failed to release LED strip",
				"pixels", c.count,
				"error", err)
		}
		c.dev = nil
		c.count = 0
		allocatedPixels.Set(0)
	}

	dev, err := c.open(count)
	deviceAllocations.WithLabelValues(resultLabel(err)).Inc()
	if err != nil {
		c.logger.Error(
			"failed to allocate LED strip",
			"pixels", count,
			"error", err)

		return &DeviceError{Op: "open", Err: err}
	}

	c.dev = dev
	c.count = count
	c.frame = make(leddraw.LEDStrip, count)
	allocatedPixels.Set(float64(count))

	c.logger.Info(
		"allocated LED strip",
		"pixels", count)

	return nil
}

// flush writes the frame to the device. A device that does not return within
// FlushTimeout is abandoned and closed in the background once it does; the
// next operation allocates a new one. sem must be held.
func (c *StripController) flush() error {
	dev := c.dev
	for i, color := range c.frame {
		dev.SetRGBAt(i, color)
	}

	done := make(chan error, 1)
	go func() { done <- dev.Flush() }()

	timer := time.NewTimer(c.opts.FlushTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			deviceFlushErrors.Inc()
			return &DeviceError{Op: "flush", Err: err}
		}
	case <-timer.C:
		deviceFlushErrors.Inc()

		c.logger.Error(
			"LED strip flush timed out, abandoning device",
			"pixels", c.count,
			"timeout", c.opts.FlushTimeout)

		c.dev = nil
		c.count = 0
		allocatedPixels.Set(0)

		go func() {
			<-done
			dev.Close()
		}()

		return &DeviceError{Op: "flush", Err: ErrDeviceTimeout}
	}

	c.ledsMu.Lock()
	c.leds = append(c.leds[:0], c.frame...)
	c.ledsMu.Unlock()

	return nil
}
