package promostudio

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/eringen/promostudio/editor"
	"github.com/eringen/promostudio/eventlog"
	"github.com/eringen/promostudio/schedule"
)

// DefaultConfigPath is where LoadConfig looks when no path is given.
const DefaultConfigPath = "promostudio.yml"

// Config holds all configuration for a studio server.
type Config struct {
	Addr          string `yaml:"addr"`           // Listen address (default ":3000")
	DatabasePath  string `yaml:"database_path"`  // SQLite DSN or path (default in-memory)
	SessionSecret string `yaml:"session_secret"` // Required: cookie session secret
	CookieSecure  bool   `yaml:"cookie_secure"`  // Set true for HTTPS
	LogLevel      string `yaml:"log_level"`      // zerolog level (default "info")
	Timezone      string `yaml:"timezone"`       // Fallback zone for scheduled posts (default "UTC")

	StudioIdleTTL  time.Duration `yaml:"studio_idle_ttl"`  // Idle studios are closed after this (default 30m)
	MaxUploadBytes int64         `yaml:"max_upload_bytes"` // default 10MB

	Render RenderConfig    `yaml:"render"`
	Blobs  BlobConfig      `yaml:"blobs"`
	Cube   CubeConfig      `yaml:"cube"`
	Tone   ToneConfig      `yaml:"tone"`
	Limits RateLimitConfig `yaml:"limits"`
}

type RenderConfig struct {
	Workers   int           `yaml:"workers"`
	Queue     int           `yaml:"queue"`
	MaxPixels int           `yaml:"max_pixels"`
	Timeout   time.Duration `yaml:"timeout"`
}

type BlobConfig struct {
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

type CubeConfig struct {
	Width     int           `yaml:"width"`
	Height    int           `yaml:"height"`
	FPS       int           `yaml:"fps"`
	LoadDelay time.Duration `yaml:"load_delay"`
}

type ToneConfig struct {
	Frequency  float64       `yaml:"frequency"`
	Duration   time.Duration `yaml:"duration"`
	SampleRate int           `yaml:"sample_rate"`
}

// RateLimitConfig bounds uploads, renders and voice commands per client IP.
type RateLimitConfig struct {
	Uploads int           `yaml:"uploads"`
	Renders int           `yaml:"renders"`
	Voice   int           `yaml:"voice"`
	Window  time.Duration `yaml:"window"`
}

func (c *Config) setDefaults() {
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.DatabasePath == "" {
		c.DatabasePath = schedule.MemoryDSN
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.StudioIdleTTL == 0 {
		c.StudioIdleTTL = 30 * time.Minute
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = 10 << 20
	}
	if c.Render.Workers == 0 {
		c.Render.Workers = 2
	}
	if c.Render.Queue == 0 {
		c.Render.Queue = 16
	}
	if c.Render.MaxPixels == 0 {
		c.Render.MaxPixels = editor.DefaultMaxPixels
	}
	if c.Render.Timeout == 0 {
		c.Render.Timeout = 30 * time.Second
	}
	if c.Blobs.Capacity == 0 {
		c.Blobs.Capacity = 8
	}
	if c.Blobs.TTL == 0 {
		c.Blobs.TTL = 15 * time.Minute
	}
	if c.Cube.FPS == 0 {
		c.Cube.FPS = 30
	}
	if c.Cube.LoadDelay == 0 {
		c.Cube.LoadDelay = 1200 * time.Millisecond
	}
	if c.Limits.Uploads == 0 {
		c.Limits.Uploads = 20
	}
	if c.Limits.Renders == 0 {
		c.Limits.Renders = 60
	}
	if c.Limits.Voice == 0 {
		c.Limits.Voice = 30
	}
	if c.Limits.Window == 0 {
		c.Limits.Window = time.Minute
	}
}

// DefaultConfig returns the configuration LoadConfig produces with no file
// and no environment overrides.
func DefaultConfig() Config {
	var c Config
	c.setDefaults()
	return c
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.SessionSecret == "" {
		return errors.New("promostudio: SessionSecret is required")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("promostudio: log_level: %w", err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("promostudio: timezone: %w", err)
	}
	if c.Render.Workers < 1 {
		return fmt.Errorf("promostudio: render.workers must be >= 1, got %d", c.Render.Workers)
	}
	if c.StudioIdleTTL < 0 {
		return fmt.Errorf("promostudio: studio_idle_ttl must not be negative")
	}
	return nil
}

// Location returns the configured fallback zone.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadConfig reads YAML from path, applies PROMOSTUDIO_* environment
// overrides and fills defaults. A missing file yields defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if path == "" {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	case len(data) > 0:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse yaml: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	cfg.setDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Addr = EnvOr("PROMOSTUDIO_ADDR", c.Addr)
	c.DatabasePath = EnvOr("PROMOSTUDIO_DATABASE_PATH", c.DatabasePath)
	c.SessionSecret = EnvOr("PROMOSTUDIO_SESSION_SECRET", c.SessionSecret)
	c.LogLevel = EnvOr("PROMOSTUDIO_LOG_LEVEL", c.LogLevel)
	c.Timezone = EnvOr("PROMOSTUDIO_TIMEZONE", c.Timezone)
	if v := os.Getenv("PROMOSTUDIO_COOKIE_SECURE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PROMOSTUDIO_COOKIE_SECURE: %w", err)
		}
		c.CookieSecure = b
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback runs after the built-in routes are registered.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithClock sets the time source used by studio event logs and post
// timestamps.
func WithClock(c eventlog.Clock) Option {
	return func(a *App) {
		a.clock = c
	}
}
