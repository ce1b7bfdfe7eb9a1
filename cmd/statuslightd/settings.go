package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
)

// loadSettings reads a TOML settings file and applies each key to the flag of
// the same name, with underscores in place of dashes. Flags given on the
// command line take precedence over the file.
func loadSettings(flags *pflag.FlagSet, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read settings %q: %w", path, err)
	}

	var settings map[string]any
	if err := toml.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("failed to parse settings %q: %w", path, err)
	}

	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		name := strings.ReplaceAll(key, "_", "-")
		if name == "settings" || flags.Lookup(name) == nil {
			return fmt.Errorf("settings %q: unknown key %q", path, key)
		}
		if flags.Changed(name) {
			continue
		}
		if err := flags.Set(name, fmt.Sprint(settings[key])); err != nil {
			return fmt.Errorf("settings %q: invalid %s: %w", path, key, err)
		}
	}

	return nil
}
