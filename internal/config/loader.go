package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// envPrefix namespaces every environment override.
const envPrefix = "SKILLSWAP_"

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// envOverrides lists the values that may be overridden from the environment.
// Unset variables leave the loaded config untouched.
type envOverrides struct {
	BaseURL     string `env:"API_BASE_URL"`
	RealtimeURL string `env:"REALTIME_URL"`
	AuthStore   string `env:"AUTH_STORE"`
	LogLevel    string `env:"LOG_LEVEL"`
	Realtime    string `env:"REALTIME_ENABLED"`
}

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// Load reads the config file, applies environment overrides, and returns
// a merged Config. Missing files produce defaults only.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, &ConfigError{Message: "failed to parse config: " + err.Error()}
		}
		applyDefaults(&cfg)
	}

	cfg.API.BaseURL = expandEnvVars(cfg.API.BaseURL)
	cfg.API.RealtimeURL = expandEnvVars(cfg.API.RealtimeURL)

	if err := applyEnvOverrides(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadRaw reads the config file into a generic map for path-based access.
func LoadRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults fills zero-value fields left empty by a partial file.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.API.BaseURL == "" {
		cfg.API.BaseURL = def.API.BaseURL
	}
	if cfg.API.RealtimeURL == "" {
		cfg.API.RealtimeURL = def.API.RealtimeURL
	}
	if cfg.API.TimeoutSeconds == 0 {
		cfg.API.TimeoutSeconds = def.API.TimeoutSeconds
	}
	if cfg.Auth.Store == "" {
		cfg.Auth.Store = def.Auth.Store
	}
	if cfg.Voice.ContentType == "" {
		cfg.Voice.ContentType = def.Voice.ContentType
	}
	if cfg.Devices.Backend == "" {
		cfg.Devices.Backend = def.Devices.Backend
	}
	if cfg.Devices.Simulate == "" {
		cfg.Devices.Simulate = def.Devices.Simulate
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = def.Logging.ConsoleStyle
	}
}

// applyEnvOverrides reads SKILLSWAP_* environment variables over the loaded values.
func applyEnvOverrides(cfg *Config) error {
	var ov envOverrides
	if err := env.ParseWithOptions(&ov, env.Options{Prefix: envPrefix}); err != nil {
		return &ConfigError{Message: "invalid environment override: " + err.Error()}
	}
	if ov.BaseURL != "" {
		cfg.API.BaseURL = ov.BaseURL
	}
	if ov.RealtimeURL != "" {
		cfg.API.RealtimeURL = ov.RealtimeURL
	}
	if ov.AuthStore != "" {
		cfg.Auth.Store = ov.AuthStore
	}
	if ov.LogLevel != "" {
		cfg.Logging.Level = strings.ToLower(ov.LogLevel)
	}
	if ov.Realtime != "" {
		enabled, err := strconv.ParseBool(ov.Realtime)
		if err != nil {
			return &ConfigError{Message: "SKILLSWAP_REALTIME_ENABLED must be a boolean, got " + ov.Realtime}
		}
		cfg.Realtime.Enabled = enabled
	}
	return nil
}
