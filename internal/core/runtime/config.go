package runtime

import "github.com/zeusync/playscope/internal/core/observability/log"

// Config holds runtime configuration
type Config struct {
	// Markup settings
	PropertyPrefix string `json:"property_prefix" yaml:"property_prefix"`
	ScreenSelector string `json:"screen_selector" yaml:"screen_selector"`

	// Frame loop
	FrameRate int `json:"frame_rate" yaml:"frame_rate"`

	// Logging
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// DefaultConfig returns default runtime configuration
func DefaultConfig() Config {
	return Config{
		PropertyPrefix: "pl-",
		ScreenSelector: ".screen",
		FrameRate:      60,
		LogLevel:       "info",
	}
}

// Merge returns c with every zero field taken from fallback.
func (c Config) Merge(fallback Config) Config {
	if c.PropertyPrefix == "" {
		c.PropertyPrefix = fallback.PropertyPrefix
	}
	if c.ScreenSelector == "" {
		c.ScreenSelector = fallback.ScreenSelector
	}
	if c.FrameRate <= 0 {
		c.FrameRate = fallback.FrameRate
	}
	if c.LogLevel == "" {
		c.LogLevel = fallback.LogLevel
	}
	return c
}

func (c Config) Level() log.Level { return log.ParseLevel(c.LogLevel) }
