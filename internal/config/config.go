// Package config loads cadence.toml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/roach88/cadence/internal/engine"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "cadence.toml"

// Config holds runtime settings for `cadence run`. Zero-valued fields in
// the file keep their defaults.
type Config struct {
	TickMS          int    `toml:"tick_ms" validate:"gte=0,lte=1000"`
	MaxTicks        int    `toml:"max_ticks" validate:"gte=0"`
	LogLevel        string `toml:"log_level" validate:"oneof=debug info warn error"`
	Database        string `toml:"database"`
	MetricsAddr     string `toml:"metrics_addr" validate:"omitempty,hostname_port"`
	FetchTimeoutMS  int    `toml:"fetch_timeout_ms" validate:"gte=0"`
	MaxResolveDepth int    `toml:"max_resolve_depth" validate:"gte=1,lte=256"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		TickMS:          16,
		MaxTicks:        10000,
		LogLevel:        "info",
		FetchTimeoutMS:  10000,
		MaxResolveDepth: engine.DefaultMaxResolveDepth,
	}
}

// Load reads path over the defaults and validates the result. Unknown
// keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

// LoadOptional is Load, except that an empty path falls back to
// DefaultPath and a missing DefaultPath yields the defaults.
func LoadOptional(path string) (Config, error) {
	if path != "" {
		return Load(path)
	}
	if _, err := os.Stat(DefaultPath); errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return Load(DefaultPath)
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("config parse failed (%s): %s", path, strict.String())
		}
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges. Each violation is reported by its toml key.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %s%s (got %v)",
			tomlKey(fe.StructField()), fe.Tag(), paramSuffix(fe.Param()), fe.Value()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func paramSuffix(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}

var tomlKeys = map[string]string{
	"TickMS":          "tick_ms",
	"MaxTicks":        "max_ticks",
	"LogLevel":        "log_level",
	"Database":        "database",
	"MetricsAddr":     "metrics_addr",
	"FetchTimeoutMS":  "fetch_timeout_ms",
	"MaxResolveDepth": "max_resolve_depth",
}

func tomlKey(field string) string {
	if k, ok := tomlKeys[field]; ok {
		return k
	}
	return field
}

// TickInterval is TickMS as a duration.
func (c Config) TickInterval() time.Duration {
	return time.Duration(c.TickMS) * time.Millisecond
}

// FetchTimeout is FetchTimeoutMS as a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutMS) * time.Millisecond
}

// SlogLevel maps LogLevel onto slog.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
