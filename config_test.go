package statuslight

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testDocument = `{
    "colors": {
        "green": [0, 255, 0],
        "red": [255, 0, 0],
        "yellow": [255, 180, 0]
    },
    "led_count": 10,
    "scheduler_enabled": true,
    "schedule": {
        "green_minute": 1,
        "red_minute": 0,
        "yellow_minute": 59
    },
    "segments": {
        "green": [7, 9],
        "red": [0, 2],
        "yellow": [3, 6]
    }
}`

func TestDecodeConfig(t *testing.T) {
	tests := []struct {
		name    string
		edit    func(doc string) string
		want    func(t *testing.T, cfg *Config)
		invalid string // substring of the expected validation error
	}{
		{
			name: "valid",
			want: func(t *testing.T, cfg *Config) {
				assertEq(t, 10, cfg.LEDCount)
				assertEq(t, PixelRange{0, 2}, cfg.Segments["red"])
				assertEq(t, Color{255, 0, 0}, cfg.Colors["red"])
				assertEq(t, Schedule{"yellow": 59, "red": 0, "green": 1}, cfg.Schedule)
				assertEq(t, true, cfg.SchedulerEnabled)
			},
		},
		{
			name: "scheduler disabled",
			edit: func(doc string) string {
				return strings.Replace(doc, `"scheduler_enabled": true`, `"scheduler_enabled": false`, 1)
			},
			want: func(t *testing.T, cfg *Config) {
				assertEq(t, false, cfg.SchedulerEnabled)
			},
		},
		{
			name: "scheduler_enabled defaults to true",
			edit: func(doc string) string {
				return strings.Replace(doc, `"scheduler_enabled": true,`, ``, 1)
			},
			want: func(t *testing.T, cfg *Config) {
				assertEq(t, true, cfg.SchedulerEnabled)
			},
		},
		{
			name: "zero led_count",
			edit: func(doc string) string {
				return strings.Replace(doc, `"led_count": 10`, `"led_count": 0`, 1)
			},
			invalid: "led_count",
		},
		{
			name: "segment past the strip",
			edit: func(doc string) string {
				return strings.Replace(doc, `"green": [7, 9]`, `"green": [7, 10]`, 1)
			},
			invalid: "segments.green",
		},
		{
			name: "segment start after end",
			edit: func(doc string) string {
				return strings.Replace(doc, `"red": [0, 2]`, `"red": [2, 0]`, 1)
			},
			invalid: "segments.red",
		},
		{
			name: "negative segment start",
			edit: func(doc string) string {
				return strings.Replace(doc, `"red": [0, 2]`, `"red": [-1, 2]`, 1)
			},
			invalid: "segments.red",
		},
		{
			name: "color channel out of range",
			edit: func(doc string) string {
				return strings.Replace(doc, `"red": [255, 0, 0]`, `"red": [256, 0, 0]`, 1)
			},
			invalid: "colors.red[0]",
		},
		{
			name: "color with two channels",
			edit: func(doc string) string {
				return strings.Replace(doc, `"red": [255, 0, 0]`, `"red": [255, 0]`, 1)
			},
			invalid: "3 channels",
		},
		{
			name: "color that is not an array",
			edit: func(doc string) string {
				return strings.Replace(doc, `"red": [255, 0, 0]`, `"red": "#ff0000"`, 1)
			},
			invalid: "color must be an array",
		},
		{
			name: "minute out of range",
			edit: func(doc string) string {
				return strings.Replace(doc, `"red_minute": 0`, `"red_minute": 60`, 1)
			},
			invalid: "schedule.red_minute",
		},
		{
			name: "schedule key without suffix",
			edit: func(doc string) string {
				return strings.Replace(doc, `"red_minute": 0`, `"red": 0`, 1)
			},
			invalid: "schedule.red",
		},
		{
			name: "missing segment",
			edit: func(doc string) string {
				return strings.Replace(doc, `"yellow": [3, 6]`, `"blue": [3, 6]`, 1)
			},
			invalid: `missing segment "yellow"`,
		},
		{
			name: "malformed document",
			edit: func(doc string) string {
				return doc[:len(doc)-1]
			},
			invalid: "invalid configuration",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			doc := testDocument
			if test.edit != nil {
				doc = test.edit(doc)
			}

			cfg, err := DecodeConfig([]byte(doc))
			if test.invalid != "" {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				if !strings.Contains(err.Error(), test.invalid) {
					t.Fatalf("expected error to mention %q, got %q", test.invalid, err)
				}
				return
			}

			if err != nil {
				t.Fatal("unexpected error:", err)
			}
			test.want(t, cfg)
		})
	}
}

func TestConfigValidateReportsEveryProblem(t *testing.T) {
	cfg := testConfig()
	cfg.LEDCount = 0
	cfg.Schedule["green"] = -1

	err := cfg.Validate()
	for _, field := range []string{"led_count", "segments.red", "schedule.green_minute"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("expected error to mention %s, got %q", field, err)
		}
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store := &FileStore{Path: path}

	if err := store.Save(testConfig()); err != nil {
		t.Fatal("failed to save:", err)
	}
	saved, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	cfg, err := store.Load()
	if err != nil {
		t.Fatal("failed to load:", err)
	}
	assertEq(t, testConfig(), cfg)

	if err := store.Save(cfg); err != nil {
		t.Fatal("failed to save again:", err)
	}
	resaved, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(saved, resaved) {
		t.Errorf("save(load()) changed the document:\n%s\n---\n%s", saved, resaved)
	}
}

func TestFileStoreInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store := &FileStore{Path: path}

	if err := store.Init(DefaultConfig()); err != nil {
		t.Fatal("failed to init:", err)
	}

	cfg, err := store.Load()
	if err != nil {
		t.Fatal("failed to load:", err)
	}
	assertEq(t, DefaultConfig(), cfg)

	// Init must not overwrite an existing document.
	if err := store.Save(testConfig()); err != nil {
		t.Fatal(err)
	}
	if err := store.Init(DefaultConfig()); err != nil {
		t.Fatal("failed to init:", err)
	}

	cfg, err = store.Load()
	if err != nil {
		t.Fatal("failed to load:", err)
	}
	assertEq(t, testConfig(), cfg)
}

func TestFileStoreLoadMissing(t *testing.T) {
	store := &FileStore{Path: filepath.Join(t.TempDir(), "missing.json")}

	_, err := store.Load()

	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PersistenceError, got %v", err)
	}
	assertEq(t, "load", perr.Op)
}

func TestConfigCloneIsDeep(t *testing.T) {
	cfg := testConfig()
	clone := cfg.Clone()
	clone.Segments["red"] = PixelRange{4, 5}
	clone.Schedule["red"] = 30

	assertEq(t, PixelRange{0, 2}, cfg.Segments["red"])
	assertEq(t, 0, cfg.Schedule["red"])

	if cfg.Equal(clone) {
		t.Error("modified clone compares equal")
	}
	if !cfg.Equal(testConfig()) {
		t.Error("identical configs compare unequal")
	}
}
