package device

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Simulation modes.
const (
	ModeOK      = "ok"
	ModeDenied  = "denied"
	ModeMissing = "missing"
)

// Simulated is a Source that fabricates tracks. It backs the CLI and tests
// on hosts without capture hardware.
type Simulated struct {
	Mode string
	// Delay is how long an acquisition stays pending.
	Delay time.Duration
	// Chunk is emitted by the audio reader every Interval.
	Chunk    []byte
	Interval time.Duration

	mu     sync.Mutex
	tracks []*SimTrack
}

// NewSimulated returns a source in the given mode with a small default
// audio chunk.
func NewSimulated(mode string) *Simulated {
	return &Simulated{
		Mode:     mode,
		Chunk:    []byte("\x1a\x45\xdf\xa3"),
		Interval: 20 * time.Millisecond,
	}
}

func (s *Simulated) Acquire(ctx context.Context, c Constraints) (Stream, error) {
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	switch s.Mode {
	case "", ModeOK:
	case ModeDenied:
		return nil, fmt.Errorf("simulated %s: %w", c, ErrPermissionDenied)
	case ModeMissing:
		return nil, fmt.Errorf("simulated %s: %w", c, ErrNotFound)
	default:
		return nil, fmt.Errorf("simulated: unknown mode %q", s.Mode)
	}

	st := &simStream{chunk: s.Chunk, interval: s.Interval}
	if c.Audio {
		st.audio = newSimTrack(Audio)
		st.tracks = append(st.tracks, st.audio)
	}
	if c.Video {
		st.tracks = append(st.tracks, newSimTrack(Video))
	}

	s.mu.Lock()
	for _, t := range st.tracks {
		s.tracks = append(s.tracks, t.(*SimTrack))
	}
	s.mu.Unlock()
	return st, nil
}

// Live counts tracks handed out and not yet stopped.
func (s *Simulated) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tracks {
		if !t.Stopped() {
			n++
		}
	}
	return n
}

// SimTrack is a fabricated track that records how often it was stopped.
type SimTrack struct {
	kind    Kind
	enabled atomic.Bool
	stops   atomic.Int32
	done    chan struct{}
	once    sync.Once
}

func newSimTrack(k Kind) *SimTrack {
	t := &SimTrack{kind: k, done: make(chan struct{})}
	t.enabled.Store(true)
	return t
}

func (t *SimTrack) Kind() Kind         { return t.kind }
func (t *SimTrack) Enabled() bool      { return t.enabled.Load() }
func (t *SimTrack) SetEnabled(on bool) { t.enabled.Store(on) }
func (t *SimTrack) Stopped() bool      { return t.stops.Load() > 0 }
func (t *SimTrack) Stops() int         { return int(t.stops.Load()) }

func (t *SimTrack) Stop() {
	t.stops.Add(1)
	t.once.Do(func() { close(t.done) })
}

type simStream struct {
	tracks   []Track
	audio    *SimTrack
	chunk    []byte
	interval time.Duration
}

func (s *simStream) Tracks() []Track { return s.tracks }

func (s *simStream) Audio() io.Reader {
	if s.audio == nil {
		return eofReader{}
	}
	return &simAudio{track: s.audio, chunk: s.chunk, interval: s.interval}
}

// simAudio emits one chunk per interval, silence while the track is
// disabled, and io.EOF once the track stops.
type simAudio struct {
	track    *SimTrack
	chunk    []byte
	interval time.Duration
}

func (a *simAudio) Read(p []byte) (int, error) {
	select {
	case <-a.track.done:
		return 0, io.EOF
	case <-time.After(a.interval):
	}
	n := copy(p, a.chunk)
	if !a.track.Enabled() {
		clear(p[:n])
	}
	return n, nil
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
