// Package call manages the local side of an audio or video call: acquiring
// the capture devices, the mute and camera toggles, and releasing every
// track when the call closes.
package call

import (
	"context"
	"errors"
	"sync"

	"github.com/soyeahso/skillswap/internal/device"
	"github.com/soyeahso/skillswap/internal/hooks"
	"github.com/soyeahso/skillswap/internal/logging"
)

// Variant selects which devices a call needs.
type Variant string

const (
	Audio Variant = "audio"
	Video Variant = "video"
)

// ParseVariant accepts "audio" or "video".
func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case Audio, Video:
		return Variant(s), nil
	}
	return "", errors.New("call: variant must be audio or video")
}

func (v Variant) constraints() device.Constraints {
	return device.Constraints{Audio: true, Video: v == Video}
}

// Phase is the lifecycle state of a session.
type Phase int

const (
	Closed Phase = iota
	Requesting
	Live
	Errored
)

func (p Phase) String() string {
	switch p {
	case Requesting:
		return "requesting"
	case Live:
		return "live"
	case Errored:
		return "errored"
	}
	return "closed"
}

var (
	ErrAlreadyOpen = errors.New("call: already open")
	ErrNotLive     = errors.New("call: not live")
	ErrNoVideo     = errors.New("call: audio call has no camera")
)

// Failure is the classified acquisition error shown in the error view.
type Failure struct {
	Kind    device.ErrorKind
	Message string
}

func (f *Failure) Error() string { return f.Kind.String() + ": " + f.Message }

// Snapshot is a point-in-time view of a session.
type Snapshot struct {
	Variant  Variant
	Phase    Phase
	Muted    bool
	VideoOff bool
	Handle   string
	Failure  *Failure
}

// Active reports whether the call UI is open.
func (s Snapshot) Active() bool { return s.Phase != Closed }

// Session is one call UI. It can be opened and closed repeatedly.
type Session struct {
	variant Variant
	devices *device.Manager
	hooks   *hooks.Manager
	log     *logging.Logger

	mu       sync.Mutex
	phase    Phase
	cycle    uint64
	muted    bool
	videoOff bool
	handle   *device.Handle
	failure  *Failure
	cancel   context.CancelFunc
}

// NewSession creates a closed session.
func NewSession(v Variant, devices *device.Manager, hk *hooks.Manager, log *logging.Logger) *Session {
	return &Session{
		variant: v,
		devices: devices,
		hooks:   hk,
		log:     log.Sub("call").With("variant", string(v)),
	}
}

// Open requests the devices for the variant. Acquisition failures do not
// return an error; the session moves to Errored and Snapshot carries the
// classified Failure. If Close runs while the request is pending, the
// handle that arrives afterwards is released immediately.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != Closed {
		s.mu.Unlock()
		return ErrAlreadyOpen
	}
	s.phase = Requesting
	s.cycle++
	cycle := s.cycle
	actx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	h, err := s.devices.Acquire(actx, "call-"+string(s.variant), s.variant.constraints())

	s.mu.Lock()
	if s.cycle != cycle || s.phase != Requesting {
		s.mu.Unlock()
		if h != nil {
			s.log.Debug().Str("handle", h.ID()).Msg("call closed during acquisition, releasing late handle")
			h.Release()
		}
		return nil
	}
	s.cancel = nil

	if err != nil {
		kind := device.Classify(err)
		s.phase = Errored
		s.failure = &Failure{Kind: kind, Message: kind.Message()}
		s.mu.Unlock()
		s.log.Warn().Err(err).Str("kind", kind.String()).Msg("device acquisition failed")
		return nil
	}

	s.phase = Live
	s.handle = h
	s.mu.Unlock()

	s.log.Info().Str("handle", h.ID()).Msg("call live")
	s.hooks.Emit(ctx, hooks.EventCallOpened, map[string]any{"variant": string(s.variant), "handle": h.ID()})
	return nil
}

// ToggleMute flips the microphone track and returns the new muted state.
func (s *Session) ToggleMute() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != Live {
		return s.muted, ErrNotLive
	}
	s.muted = !s.muted
	setEnabled(s.handle, device.Audio, !s.muted)
	return s.muted, nil
}

// ToggleVideo flips the camera track and returns the new video-off state.
func (s *Session) ToggleVideo() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.variant != Video {
		return false, ErrNoVideo
	}
	if s.phase != Live {
		return s.videoOff, ErrNotLive
	}
	s.videoOff = !s.videoOff
	setEnabled(s.handle, device.Video, !s.videoOff)
	return s.videoOff, nil
}

func setEnabled(h *device.Handle, kind device.Kind, on bool) {
	for _, t := range h.Tracks() {
		if t.Kind() == kind {
			t.SetEnabled(on)
		}
	}
}

// Close releases every acquired track and returns the session to Closed.
// It is safe to call from any phase and more than once.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	from := s.phase
	if from == Closed {
		s.mu.Unlock()
		return
	}
	h, cancel := s.handle, s.cancel
	s.phase = Closed
	s.cycle++
	s.handle = nil
	s.cancel = nil
	s.failure = nil
	s.muted = false
	s.videoOff = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if h != nil {
		h.Release()
	}

	s.log.Info().Str("from", from.String()).Msg("call closed")
	s.hooks.Emit(ctx, hooks.EventCallClosed, map[string]any{"variant": string(s.variant), "from": from.String()})
}

// Snapshot returns the current session view.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Variant:  s.variant,
		Phase:    s.phase,
		Muted:    s.muted,
		VideoOff: s.videoOff,
		Failure:  s.failure,
	}
	if s.handle != nil {
		snap.Handle = s.handle.ID()
	}
	return snap
}
