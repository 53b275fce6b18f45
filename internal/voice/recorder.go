// Package voice records voice notes from the microphone and hands them to
// the composer as audio attachments.
package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/soyeahso/skillswap/internal/device"
	"github.com/soyeahso/skillswap/internal/domain"
	"github.com/soyeahso/skillswap/internal/logging"
)

// State of a recorder.
type State int

const (
	Inactive State = iota
	Recording
	Stopped
)

func (s State) String() string {
	switch s {
	case Recording:
		return "recording"
	case Stopped:
		return "stopped"
	}
	return "inactive"
}

var (
	ErrAlreadyRecording = errors.New("voice: already recording")
	ErrNotRecording     = errors.New("voice: not recording")
	ErrEmptyRecording   = errors.New("voice: recording captured no audio")
)

// Sink receives finished voice notes. The composer implements it.
type Sink interface {
	AttachVoice(up domain.Upload) error
}

// Options configure a Recorder.
type Options struct {
	ContentType string
	// Tick is the elapsed counter resolution. Defaults to one second.
	Tick time.Duration
	// OnTick is called with the elapsed time after every tick.
	OnTick func(elapsed time.Duration)
}

// Recorder is a single voice capture session.
type Recorder struct {
	devices *device.Manager
	sink    Sink
	log     *logging.Logger
	opts    Options

	mu       sync.Mutex
	state    State
	starting bool
	handle   *device.Handle
	elapsed  time.Duration
	buf      *bytes.Buffer
	stopTick chan struct{}
	readDone chan error
}

// NewRecorder creates an inactive recorder.
func NewRecorder(devices *device.Manager, sink Sink, log *logging.Logger, opts Options) *Recorder {
	if opts.ContentType == "" {
		opts.ContentType = "audio/webm"
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Second
	}
	return &Recorder{devices: devices, sink: sink, log: log.Sub("voice"), opts: opts}
}

// State returns the current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed returns the recorded time at tick resolution.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// Start acquires the microphone and begins recording. If the microphone
// cannot be acquired the recorder stays Inactive and Start returns nil; the
// failure is only logged.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state == Recording || r.starting {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	r.starting = true
	r.mu.Unlock()

	h, err := r.devices.Acquire(ctx, "voice", device.Constraints{Audio: true})

	r.mu.Lock()
	defer r.mu.Unlock()
	r.starting = false
	if err != nil {
		r.log.Warn().Err(err).Str("kind", device.Classify(err).String()).Msg("microphone unavailable, not recording")
		return nil
	}

	r.state = Recording
	r.handle = h
	r.elapsed = 0
	r.buf = &bytes.Buffer{}
	r.stopTick = make(chan struct{})
	r.readDone = make(chan error, 1)

	go r.accumulate(h.Stream().Audio(), r.buf, r.readDone)
	go r.count(r.stopTick)

	r.log.Debug().Str("handle", h.ID()).Msg("recording started")
	return nil
}

func (r *Recorder) accumulate(src io.Reader, dst *bytes.Buffer, done chan<- error) {
	_, err := io.Copy(dst, src)
	done <- err
}

func (r *Recorder) count(stop <-chan struct{}) {
	t := time.NewTicker(r.opts.Tick)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			r.mu.Lock()
			r.elapsed += r.opts.Tick
			elapsed := r.elapsed
			r.mu.Unlock()
			if r.opts.OnTick != nil {
				r.opts.OnTick(elapsed)
			}
		}
	}
}

// halt ends the current recording, releases the microphone and waits for the
// buffer to be finalized.
func (r *Recorder) halt(next State) ([]byte, error) {
	r.mu.Lock()
	if r.state != Recording {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	r.state = next
	close(r.stopTick)
	h, buf, done := r.handle, r.buf, r.readDone
	r.handle, r.buf = nil, nil
	r.mu.Unlock()

	h.Release()
	err := <-done
	return buf.Bytes(), err
}

// Stop finishes the recording, releases the microphone and passes the voice
// note to the sink.
func (r *Recorder) Stop() (domain.Upload, error) {
	data, err := r.halt(Stopped)
	if errors.Is(err, ErrNotRecording) {
		return domain.Upload{}, err
	}
	if err != nil {
		return domain.Upload{}, fmt.Errorf("voice: finalizing recording: %w", err)
	}
	if len(data) == 0 {
		return domain.Upload{}, ErrEmptyRecording
	}

	up := domain.Upload{
		Name:        "voice-" + uuid.NewString() + extension(r.opts.ContentType),
		ContentType: r.opts.ContentType,
		Kind:        domain.AttachmentAudio,
		Data:        data,
	}
	r.log.Debug().Str("name", up.Name).Int64("bytes", up.Size()).Dur("elapsed", r.Elapsed()).Msg("recording stopped")

	if r.sink != nil {
		if err := r.sink.AttachVoice(up); err != nil {
			return up, fmt.Errorf("voice: attaching note: %w", err)
		}
	}
	return up, nil
}

// Cancel discards the current recording and releases the microphone.
func (r *Recorder) Cancel() error {
	_, err := r.halt(Inactive)
	if errors.Is(err, ErrNotRecording) {
		return err
	}
	r.log.Debug().Msg("recording discarded")
	return nil
}

func extension(contentType string) string {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == "audio/webm" {
		return ".webm"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".webm"
}
