package config

import (
	"fmt"
	"time"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL:        "http://localhost:5000/api",
			RealtimeURL:    "ws://localhost:5000/ws",
			TimeoutSeconds: 30,
		},
		Auth: AuthConfig{
			Store: "sqlite",
		},
		Voice: VoiceConfig{
			ContentType: "audio/webm",
		},
		Devices: DevicesConfig{
			Backend:  "simulated",
			Simulate: "ok",
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

// Timeout returns the HTTP timeout as a duration.
func (c APIConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
