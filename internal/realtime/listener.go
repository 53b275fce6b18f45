// Package realtime listens on the backend's websocket channel for new
// messages and read receipts and feeds them into the conversation store.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/soyeahso/skillswap/internal/domain"
	"github.com/soyeahso/skillswap/internal/logging"
	"github.com/soyeahso/skillswap/internal/version"
)

// ErrUnauthorized is returned when the server rejects the access token.
var ErrUnauthorized = errors.New("realtime: unauthorized")

// Sink receives pushed updates. The conversation store implements it.
type Sink interface {
	Append(msg domain.Message) error
	ApplyRead(ids []string) int
}

// Authorizer supplies the headers for the websocket dial.
type Authorizer interface {
	Header() (http.Header, error)
}

// Listener is one realtime connection. It does not reconnect.
type Listener struct {
	url    string
	auth   Authorizer
	sink   Sink
	log    *logging.Logger
	dialer *websocket.Dialer

	mu      sync.Mutex
	lastSeq int64
	applied int
}

// NewListener creates a listener for the socket at url.
func NewListener(url string, auth Authorizer, sink Sink, log *logging.Logger) *Listener {
	return &Listener{
		url:  url,
		auth: auth,
		sink: sink,
		log:  log.Sub("realtime"),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Run dials, subscribes to threads and applies events until the socket
// closes or ctx ends. A normal close or a cancelled context returns nil.
func (l *Listener) Run(ctx context.Context, threads []string) error {
	header, err := l.auth.Header()
	if err != nil {
		return fmt.Errorf("realtime: %w", err)
	}
	header.Set("User-Agent", version.UserAgent())

	conn, resp, err := l.dialer.DialContext(ctx, l.url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		return fmt.Errorf("realtime: dialing %s: %w", l.url, err)
	}
	defer conn.Close()

	sub, err := NewRequest(uuid.NewString(), "subscribe", SubscribeParams{Threads: threads})
	if err != nil {
		return fmt.Errorf("realtime: creating subscribe: %w", err)
	}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("realtime: sending subscribe: %w", err)
	}
	l.log.Info().Str("url", l.url).Int("threads", len(threads)).Msg("connected")

	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				l.log.Debug().Msg("connection closed")
				return nil
			}
			return fmt.Errorf("realtime: read: %w", err)
		}
		l.handle(frame)
	}
}

func (l *Listener) handle(frame Frame) {
	switch frame.Type {
	case FrameTypeResponse:
		if frame.OK != nil && !*frame.OK && frame.Error != nil {
			l.log.Warn().Str("code", frame.Error.Code).Str("id", frame.ID).Msg(frame.Error.Message)
		}
		return
	case FrameTypeEvent:
	default:
		l.log.Debug().Str("type", frame.Type).Msg("ignoring frame")
		return
	}

	l.mu.Lock()
	if frame.Seq > 0 {
		if l.lastSeq > 0 && frame.Seq > l.lastSeq+1 {
			l.log.Warn().Int64("from", l.lastSeq).Int64("to", frame.Seq).Msg("event sequence gap, reload threads to resync")
		}
		if frame.Seq > l.lastSeq {
			l.lastSeq = frame.Seq
		}
	}
	l.mu.Unlock()

	switch frame.Event {
	case EventMessageCreated:
		var msg domain.Message
		if err := json.Unmarshal(frame.Payload, &msg); err != nil {
			l.log.Warn().Err(err).Msg("bad message.created payload")
			return
		}
		if err := l.sink.Append(msg); err != nil {
			l.log.Warn().Err(err).Str("message", msg.ID).Msg("could not apply message")
			return
		}
	case EventMessageRead:
		var rr ReadReceipt
		if err := json.Unmarshal(frame.Payload, &rr); err != nil {
			l.log.Warn().Err(err).Msg("bad message.read payload")
			return
		}
		l.sink.ApplyRead(rr.IDs)
	default:
		l.log.Debug().Str("event", frame.Event).Msg("ignoring event")
		return
	}

	l.mu.Lock()
	l.applied++
	l.mu.Unlock()
}

// Applied returns how many events were applied to the sink.
func (l *Listener) Applied() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.applied
}
