// Package version carries build metadata injected with -ldflags:
//
//	go build -ldflags "-X github.com/soyeahso/skillswap/internal/version.Version=1.0.0
//	  -X github.com/soyeahso/skillswap/internal/version.Commit=abc123
//	  -X github.com/soyeahso/skillswap/internal/version.Date=2026-01-01"
package version

import (
	"fmt"
	"runtime"
)

var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info returns a formatted version string.
func Info() string {
	return fmt.Sprintf("skillswap %s (commit: %s, built: %s, %s/%s)",
		Version, short(Commit), Date, runtime.GOOS, runtime.GOARCH)
}

// UserAgent is sent on every backend request.
func UserAgent() string {
	return fmt.Sprintf("skillswap-client/%s (%s)", Version, short(Commit))
}

func short(s string) string {
	if len(s) > 7 {
		return s[:7]
	}
	return s
}
