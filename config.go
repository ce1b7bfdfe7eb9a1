package statuslight

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"dev.acmcsuf.com/christmas/lib/xcolor"
)

// SegmentNames are the segments a configuration must define, in the order
// their triggers are created.
var SegmentNames = []string{"yellow", "red", "green"}

// MaxLEDCount is the largest strip the controller will allocate.
const MaxLEDCount = 4096

// Config is the persisted configuration document. It is treated as
// copy-on-write: callers that want to change it should Clone it first.
type Config struct {
	// LEDCount is the total number of addressable pixels.
	LEDCount int `json:"led_count"`
	// Segments maps each segment to its inclusive pixel range.
	Segments map[string]PixelRange `json:"segments"`
	// Colors maps each segment to the color it is painted with.
	Colors map[string]Color `json:"colors"`
	// Schedule maps each segment to the minute of every hour it is shown.
	Schedule Schedule `json:"schedule"`
	// SchedulerEnabled arms the hourly triggers.
	SchedulerEnabled bool `json:"scheduler_enabled"`
}

// DefaultConfig returns the configuration written on first boot.
func DefaultConfig() *Config {
	return &Config{
		LEDCount: 30,
		Segments: map[string]PixelRange{
			"red":    {0, 9},
			"yellow": {10, 19},
			"green":  {20, 29},
		},
		Colors: map[string]Color{
			"red":    {255, 0, 0},
			"yellow": {255, 180, 0},
			"green":  {0, 255, 0},
		},
		Schedule: Schedule{
			"yellow": 59,
			"red":    0,
			"green":  1,
		},
		SchedulerEnabled: true,
	}
}

// PixelRange is an inclusive [start, end] range of pixel indices.
type PixelRange [2]int

// Start returns the first pixel of the range.
func (r PixelRange) Start() int { return r[0] }

// End returns the last pixel of the range.
func (r PixelRange) End() int { return r[1] }

func (r *PixelRange) UnmarshalJSON(b []byte) error {
	var v []int
	if err := json.Unmarshal(b, &v); err != nil {
		return &ValidationError{Message: "pixel range must be an array of 2 integers"}
	}
	if len(v) != 2 {
		return invalid("", "pixel range must have 2 elements, got %d", len(v))
	}
	*r = PixelRange{v[0], v[1]}
	return nil
}

// Color is an RGB triple. Each channel must be within [0, 255].
type Color [3]int

// RGB converts the color to the strip's pixel type. The color must be valid.
func (c Color) RGB() xcolor.RGB {
	return xcolor.RGB{R: uint8(c[0]), G: uint8(c[1]), B: uint8(c[2])}
}

func (c *Color) UnmarshalJSON(b []byte) error {
	var v []int
	if err := json.Unmarshal(b, &v); err != nil {
		return &ValidationError{Message: "color must be an array of 3 integers"}
	}
	if len(v) != 3 {
		return invalid("", "color must have 3 channels, got %d", len(v))
	}
	*c = Color{v[0], v[1], v[2]}
	return nil
}

// Schedule maps a segment name to a minute of the hour. It is serialized with
// "<segment>_minute" keys.
type Schedule map[string]int

const minuteSuffix = "_minute"

func (s Schedule) MarshalJSON() ([]byte, error) {
	m := make(map[string]int, len(s))
	for name, minute := range s {
		m[name+minuteSuffix] = minute
	}
	return json.Marshal(m)
}

func (s *Schedule) UnmarshalJSON(b []byte) error {
	var m map[string]int
	if err := json.Unmarshal(b, &m); err != nil {
		return &ValidationError{Field: "schedule", Message: "must map <segment>_minute to an integer"}
	}

	*s = make(Schedule, len(m))
	for key, minute := range m {
		name, ok := strings.CutSuffix(key, minuteSuffix)
		if !ok || name == "" {
			return invalid("schedule."+key, "key must be named <segment>%s", minuteSuffix)
		}
		(*s)[name] = minute
	}
	return nil
}

func (c *Config) UnmarshalJSON(b []byte) error {
	type rawConfig Config
	raw := struct {
		*rawConfig
		SchedulerEnabled *bool `json:"scheduler_enabled"`
	}{
		rawConfig: (*rawConfig)(c),
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	// Older documents have no scheduler_enabled key and were always enabled.
	c.SchedulerEnabled = raw.SchedulerEnabled == nil || *raw.SchedulerEnabled
	return nil
}

// Validate checks every field of the configuration and returns all problems
// found, joined. Each problem is a *ValidationError.
func (c *Config) Validate() error {
	var errs []error

	if c.LEDCount < 1 || c.LEDCount > MaxLEDCount {
		errs = append(errs, invalid("led_count", "must be within [1, %d], got %d", MaxLEDCount, c.LEDCount))
	}

	errs = append(errs, checkNames("segments", slices.Collect(maps.Keys(c.Segments)))...)
	errs = append(errs, checkNames("colors", slices.Collect(maps.Keys(c.Colors)))...)
	errs = append(errs, checkNames("schedule", slices.Collect(maps.Keys(c.Schedule)))...)

	for _, name := range SegmentNames {
		if r, ok := c.Segments[name]; ok {
			field := "segments." + name
			switch {
			case r.Start() < 0:
				errs = append(errs, invalid(field, "start %d is negative", r.Start()))
			case r.Start() > r.End():
				errs = append(errs, invalid(field, "start %d is after end %d", r.Start(), r.End()))
			case r.End() >= c.LEDCount:
				errs = append(errs, invalid(field, "end %d is past the last pixel %d", r.End(), c.LEDCount-1))
			}
		}

		if color, ok := c.Colors[name]; ok {
			for i, ch := range color {
				if ch < 0 || ch > 255 {
					errs = append(errs, invalid(
						fmt.Sprintf("colors.%s[%d]", name, i),
						"channel must be within [0, 255], got %d", ch))
				}
			}
		}

		if minute, ok := c.Schedule[name]; ok && (minute < 0 || minute > 59) {
			errs = append(errs, invalid("schedule."+name+minuteSuffix, "minute must be within [0, 59], got %d", minute))
		}
	}

	return errors.Join(errs...)
}

func checkNames(field string, names []string) []error {
	var errs []error
	for _, name := range SegmentNames {
		if !slices.Contains(names, name) {
			errs = append(errs, invalid(field, "missing segment %q", name))
		}
	}
	slices.Sort(names)
	for _, name := range names {
		if !slices.Contains(SegmentNames, name) {
			errs = append(errs, invalid(field, "unknown segment %q", name))
		}
	}
	return errs
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Segments = maps.Clone(c.Segments)
	clone.Colors = maps.Clone(c.Colors)
	clone.Schedule = maps.Clone(c.Schedule)
	return &clone
}

// Equal reports whether both configurations describe the same document.
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.LEDCount == other.LEDCount &&
		c.SchedulerEnabled == other.SchedulerEnabled &&
		maps.Equal(c.Segments, other.Segments) &&
		maps.Equal(c.Colors, other.Colors) &&
		maps.Equal(c.Schedule, other.Schedule)
}

// EncodeConfig serializes the configuration deterministically, so that
// encoding a decoded document yields the same bytes.
func EncodeConfig(cfg *Config) ([]byte, error) {
	b, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return append(b, '\n'), nil
}

// DecodeConfig parses and validates a configuration document. Any failure is
// reported as a *ValidationError.
func DecodeConfig(b []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return nil, err
		}
		return nil, &ValidationError{Message: err.Error()}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
