package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
)

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error
	if c.OTPRelease < 0 {
		errs = append(errs, fmt.Errorf("otp_release must not be negative, got %d", c.OTPRelease))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("unknown log.format %q (available: text, json)", c.Log.Format))
	}
	if !slices.Contains(OutputModes, c.Output) {
		errs = append(errs, fmt.Errorf("unknown output %q (available: %s)", c.Output, strings.Join(OutputModes, ", ")))
	}
	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("unknown log.level %q: %w", l.Level, err)
	}
	return lvl, nil
}
