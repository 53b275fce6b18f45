package config

// Config is the root configuration for the skillswap client.
type Config struct {
	API         APIConfig         `yaml:"api,omitempty"`
	Auth        AuthConfig        `yaml:"auth,omitempty"`
	Messages    MessagesConfig    `yaml:"messages,omitempty"`
	Attachments AttachmentsConfig `yaml:"attachments,omitempty"`
	Voice       VoiceConfig       `yaml:"voice,omitempty"`
	Realtime    RealtimeConfig    `yaml:"realtime,omitempty"`
	Devices     DevicesConfig     `yaml:"devices,omitempty"`
	Logging     LoggingConfig     `yaml:"logging,omitempty"`
}

// APIConfig locates the REST backend and its real-time channel.
type APIConfig struct {
	BaseURL        string `yaml:"baseUrl,omitempty"`
	RealtimeURL    string `yaml:"realtimeUrl,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// AuthConfig selects where the token pair is persisted.
type AuthConfig struct {
	Store string `yaml:"store,omitempty"` // "sqlite" | "memory"
}

// MessagesConfig controls conversation behavior.
type MessagesConfig struct {
	BatchRead bool `yaml:"batchRead,omitempty"` // one PUT /messages/read instead of one per message
}

// AttachmentsConfig restricts what may be attached. The size limit is fixed.
type AttachmentsConfig struct {
	AllowedTypes []string `yaml:"allowedTypes,omitempty"` // e.g. "image/*", "application/pdf"; empty allows any
}

// VoiceConfig controls voice-note encoding metadata.
type VoiceConfig struct {
	ContentType string `yaml:"contentType,omitempty"`
}

// RealtimeConfig toggles the websocket listener.
type RealtimeConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
}

// DevicesConfig selects the capture device backend.
type DevicesConfig struct {
	Backend  string `yaml:"backend,omitempty"`  // "simulated"
	Simulate string `yaml:"simulate,omitempty"` // "ok" | "denied" | "missing"
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"`        // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}
