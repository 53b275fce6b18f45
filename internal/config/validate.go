package config

import (
	"fmt"
	"net/url"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	if msg := checkURL(cfg.API.BaseURL, "http", "https"); msg != "" {
		issues = append(issues, ValidationIssue{Path: "api.baseUrl", Message: msg})
	}
	if cfg.API.RealtimeURL != "" || cfg.Realtime.Enabled {
		if msg := checkURL(cfg.API.RealtimeURL, "ws", "wss"); msg != "" {
			issues = append(issues, ValidationIssue{Path: "api.realtimeUrl", Message: msg})
		}
	}
	if cfg.API.TimeoutSeconds < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "api.timeoutSeconds",
			Message: fmt.Sprintf("must not be negative, got %d", cfg.API.TimeoutSeconds),
		})
	}

	validStores := []string{"sqlite", "memory"}
	if cfg.Auth.Store != "" && !slices.Contains(validStores, cfg.Auth.Store) {
		issues = append(issues, ValidationIssue{
			Path:    "auth.store",
			Message: fmt.Sprintf("must be one of %v, got %q", validStores, cfg.Auth.Store),
		})
	}

	validBackends := []string{"simulated"}
	if cfg.Devices.Backend != "" && !slices.Contains(validBackends, cfg.Devices.Backend) {
		issues = append(issues, ValidationIssue{
			Path:    "devices.backend",
			Message: fmt.Sprintf("must be one of %v, got %q", validBackends, cfg.Devices.Backend),
		})
	}
	validModes := []string{"ok", "denied", "missing"}
	if cfg.Devices.Simulate != "" && !slices.Contains(validModes, cfg.Devices.Simulate) {
		issues = append(issues, ValidationIssue{
			Path:    "devices.simulate",
			Message: fmt.Sprintf("must be one of %v, got %q", validModes, cfg.Devices.Simulate),
		})
	}

	for i, t := range cfg.Attachments.AllowedTypes {
		if t == "" {
			issues = append(issues, ValidationIssue{
				Path:    fmt.Sprintf("attachments.allowedTypes[%d]", i),
				Message: "must not be empty",
			})
		}
	}

	validLogLevels := []string{"silent", "fatal", "error", "warn", "info", "debug", "trace"}
	if cfg.Logging.Level != "" && !slices.Contains(validLogLevels, cfg.Logging.Level) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.level",
			Message: fmt.Sprintf("must be one of %v, got %q", validLogLevels, cfg.Logging.Level),
		})
	}
	validConsoleStyles := []string{"pretty", "json"}
	if cfg.Logging.ConsoleStyle != "" && !slices.Contains(validConsoleStyles, cfg.Logging.ConsoleStyle) {
		issues = append(issues, ValidationIssue{
			Path:    "logging.consoleStyle",
			Message: fmt.Sprintf("must be one of %v, got %q", validConsoleStyles, cfg.Logging.ConsoleStyle),
		})
	}

	return issues
}

// checkURL returns a problem description, or "" when raw is an absolute URL
// with one of the given schemes.
func checkURL(raw string, schemes ...string) string {
	if raw == "" {
		return "is required"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid URL: %v", err)
	}
	if !slices.Contains(schemes, u.Scheme) {
		return fmt.Sprintf("scheme must be one of %v, got %q", schemes, u.Scheme)
	}
	if u.Host == "" {
		return "host is required"
	}
	return ""
}
