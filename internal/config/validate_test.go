package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issuePaths(issues []ValidationIssue) []string {
	var paths []string
	for _, i := range issues {
		paths = append(paths, i.Path)
	}
	return paths
}

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestValidateBaseURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		ok   bool
	}{
		{"https", "https://swap.example.com/api", true},
		{"http", "http://localhost:5000", true},
		{"empty", "", false},
		{"ws scheme", "ws://localhost:5000", false},
		{"no host", "https:///api", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.API.BaseURL = tt.url
			issues := Validate(&cfg)
			if tt.ok {
				assert.Empty(t, issues)
			} else {
				assert.Contains(t, issuePaths(issues), "api.baseUrl")
			}
		})
	}
}

func TestValidateRealtimeURL(t *testing.T) {
	cfg := Defaults()
	cfg.API.RealtimeURL = "https://swap.example.com/ws"
	assert.Contains(t, issuePaths(Validate(&cfg)), "api.realtimeUrl")

	cfg.API.RealtimeURL = ""
	assert.Empty(t, Validate(&cfg))

	cfg.Realtime.Enabled = true
	assert.Contains(t, issuePaths(Validate(&cfg)), "api.realtimeUrl")
}

func TestValidateEnums(t *testing.T) {
	cfg := Defaults()
	cfg.Auth.Store = "cookie"
	cfg.Devices.Backend = "alsa"
	cfg.Devices.Simulate = "flaky"
	cfg.Logging.Level = "loud"
	cfg.Logging.ConsoleStyle = "compact"
	cfg.API.TimeoutSeconds = -1
	cfg.Attachments.AllowedTypes = []string{"image/", ""}

	issues := Validate(&cfg)
	require.Len(t, issues, 7)
	assert.ElementsMatch(t, []string{
		"auth.store", "devices.backend", "devices.simulate", "logging.level",
		"logging.consoleStyle", "api.timeoutSeconds", "attachments.allowedTypes[1]",
	}, issuePaths(issues))
}

func TestValidationIssueString(t *testing.T) {
	issue := ValidationIssue{Path: "auth.store", Message: "bad"}
	assert.Equal(t, "auth.store: bad", issue.String())
}
