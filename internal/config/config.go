package config

import (
	"context"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// DataDir is where the session database lives.
	DataDir string `yaml:"data_dir"`

	Playback   PlaybackConfig   `yaml:"playback"`
	Editing    EditingConfig    `yaml:"editing"`
	Transition TransitionConfig `yaml:"transition"`
}

// PlaybackConfig tunes the preview clock.
type PlaybackConfig struct {
	// TickRate is the preview loop frequency in ticks per second.
	TickRate int `yaml:"tick_rate"`
	// DriftThreshold is the media/master divergence, in seconds, beyond
	// which the clock issues a hard seek instead of letting the resource
	// free-run.
	DriftThreshold float64 `yaml:"drift_threshold"`
}

// EditingConfig tunes clip editing clamps.
type EditingConfig struct {
	// SnapGrid is the move snap interval in seconds.
	SnapGrid float64 `yaml:"snap_grid"`
	// MinClipDuration is the shortest clip a trim may leave behind.
	MinClipDuration float64 `yaml:"min_clip_duration"`
}

// TransitionConfig tunes the blender.
type TransitionConfig struct {
	DefaultDuration float64 `yaml:"default_duration"`
	// ZoomScale is the extra scale applied to the incoming layer of a zoom
	// transition at full progress.
	ZoomScale float64 `yaml:"zoom_scale"`
	// MaxBlurRadius is the peak blur in pixels for blur transitions.
	MaxBlurRadius float64 `yaml:"max_blur_radius"`
}

// DatabasePath returns the session store location under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "sessions.db")
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func defaultConfig() *Config {
	return &Config{
		DataDir: defaultDataDir(),
		Playback: PlaybackConfig{
			TickRate:       30,
			DriftThreshold: 0.2,
		},
		Editing: EditingConfig{
			SnapGrid:        0.5,
			MinClipDuration: 0.5,
		},
		Transition: TransitionConfig{
			DefaultDuration: 1.0,
			ZoomScale:       0.25,
			MaxBlurRadius:   12,
		},
	}
}

func defaultDataDir() string {
	return filepath.Join(os.Getenv("HOME"), ".cutdeck")
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
		filepath.Join(defaultDataDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
