// Package device adapts platform capture devices (microphone, camera) behind
// a single acquire/release contract and enforces one live owner at a time.
package device

import (
	"context"
	"errors"
	"io"
)

// Kind is the media kind of a track.
type Kind string

const (
	Audio Kind = "audio"
	Video Kind = "video"
)

// Constraints select which devices to acquire.
type Constraints struct {
	Audio bool
	Video bool
}

func (c Constraints) String() string {
	switch {
	case c.Audio && c.Video:
		return "audio+video"
	case c.Video:
		return "video"
	case c.Audio:
		return "audio"
	}
	return "none"
}

// Track is one live capture track.
type Track interface {
	Kind() Kind
	Enabled() bool
	SetEnabled(on bool)
	// Stop ends the track. Calling it more than once is harmless.
	Stop()
}

// Stream is the result of a successful acquisition.
type Stream interface {
	Tracks() []Track
	// Audio yields encoded audio until the audio track is stopped, then io.EOF.
	Audio() io.Reader
}

// Source is the platform adapter.
type Source interface {
	Acquire(ctx context.Context, c Constraints) (Stream, error)
}

var (
	ErrBusy             = errors.New("device: already in use")
	ErrPermissionDenied = errors.New("device: permission denied")
	ErrNotFound         = errors.New("device: no device found")
)

// ErrorKind classifies acquisition failures for the user.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindPermissionDenied
	KindNoDevice
	KindOther
)

func (k ErrorKind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission-denied"
	case KindNoDevice:
		return "no-device"
	case KindOther:
		return "other"
	}
	return "none"
}

// Message is the user-facing explanation for k.
func (k ErrorKind) Message() string {
	switch k {
	case KindPermissionDenied:
		return "Camera or microphone access was denied. Allow access in your system settings and try again."
	case KindNoDevice:
		return "No camera or microphone was found. Connect a device and try again."
	case KindOther:
		return "Could not start your camera or microphone."
	}
	return ""
}

// Classify maps an acquisition error to its ErrorKind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	case errors.Is(err, ErrNotFound):
		return KindNoDevice
	}
	return KindOther
}
