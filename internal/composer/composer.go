// Package composer assembles an outgoing message and drives it through
// delivery. A failed send leaves the draft exactly as it was.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/soyeahso/skillswap/internal/attachment"
	"github.com/soyeahso/skillswap/internal/domain"
	"github.com/soyeahso/skillswap/internal/hooks"
	"github.com/soyeahso/skillswap/internal/logging"
)

// State of a composer.
type State int

const (
	Idle State = iota
	Drafting
	Submitting
)

func (s State) String() string {
	switch s {
	case Drafting:
		return "drafting"
	case Submitting:
		return "submitting"
	}
	return "idle"
}

var (
	ErrEmptyMessage   = errors.New("composer: message needs text or an attachment")
	ErrSendInProgress = errors.New("composer: a send is in progress")
	ErrClosed         = errors.New("composer: closed")
	ErrWrongThread    = errors.New("composer: reply target belongs to another thread")
)

// Sender delivers a message. The REST client implements it.
type Sender interface {
	SendMessage(ctx context.Context, out domain.OutgoingMessage) (domain.Message, error)
}

// Appender receives confirmed messages. The conversation store implements it.
type Appender interface {
	Append(msg domain.Message) error
}

// Draft is the in-progress message.
type Draft struct {
	Text    string
	Upload  *domain.Upload
	ReplyTo *domain.Message
}

func (d Draft) empty() bool {
	return d.Text == "" && d.Upload == nil && d.ReplyTo == nil
}

func (d Draft) sendable() bool {
	return strings.TrimSpace(d.Text) != "" || d.Upload != nil
}

// Options configure a Composer.
type Options struct {
	Validator *attachment.Validator
	// Sequence numbers sends per thread. Composers of the same thread
	// should share one.
	Sequence *Sequence
}

// Composer is the message being written in one thread.
type Composer struct {
	threadID  string
	sender    Sender
	store     Appender
	validator *attachment.Validator
	seq       *Sequence
	hooks     *hooks.Manager
	log       *logging.Logger

	mu     sync.Mutex
	state  State
	draft  Draft
	closed bool
}

// New creates an idle composer for threadID.
func New(threadID string, sender Sender, store Appender, hk *hooks.Manager, log *logging.Logger, opts Options) *Composer {
	if opts.Validator == nil {
		opts.Validator = attachment.NewValidator(nil)
	}
	if opts.Sequence == nil {
		opts.Sequence = NewSequence()
	}
	return &Composer{
		threadID:  threadID,
		sender:    sender,
		store:     store,
		validator: opts.Validator,
		seq:       opts.Sequence,
		hooks:     hk,
		log:       log.Sub("composer").With("thread", threadID),
	}
}

// ThreadID returns the thread this composer writes to.
func (c *Composer) ThreadID() string { return c.threadID }

// State returns the current state.
func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Draft returns a copy of the current draft.
func (c *Composer) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyDraft(c.draft)
}

func copyDraft(d Draft) Draft {
	if d.Upload != nil {
		up := *d.Upload
		d.Upload = &up
	}
	if d.ReplyTo != nil {
		m := *d.ReplyTo
		d.ReplyTo = &m
	}
	return d
}

// edit applies fn to the draft unless a send is in flight.
func (c *Composer) edit(fn func(d *Draft) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.state == Submitting {
		return ErrSendInProgress
	}
	next := c.draft
	if err := fn(&next); err != nil {
		return err
	}
	c.draft = next
	if c.draft.empty() {
		c.state = Idle
	} else {
		c.state = Drafting
	}
	return nil
}

// SetText replaces the draft text.
func (c *Composer) SetText(text string) error {
	return c.edit(func(d *Draft) error {
		d.Text = text
		return nil
	})
}

// Attach validates up and makes it the draft attachment, replacing any
// previous one. A rejected upload leaves the draft untouched.
func (c *Composer) Attach(up domain.Upload) error {
	if err := c.validator.Validate(up); err != nil {
		c.log.Debug().Err(err).Str("name", up.Name).Msg("attachment rejected")
		return err
	}
	return c.edit(func(d *Draft) error {
		d.Upload = &up
		return nil
	})
}

// AttachPath loads a file from disk and attaches it.
func (c *Composer) AttachPath(path string) error {
	up, err := c.validator.FromPath(path)
	if err != nil {
		return err
	}
	return c.Attach(up)
}

// AttachVoice attaches a recorded voice note.
func (c *Composer) AttachVoice(up domain.Upload) error {
	up.Kind = domain.AttachmentAudio
	return c.Attach(up)
}

// RemoveAttachment drops the draft attachment.
func (c *Composer) RemoveAttachment() error {
	return c.edit(func(d *Draft) error {
		d.Upload = nil
		return nil
	})
}

// ReplyTo sets msg as the reply reference, replacing any previous one.
func (c *Composer) ReplyTo(msg domain.Message) error {
	if msg.ThreadID != c.threadID {
		return ErrWrongThread
	}
	return c.edit(func(d *Draft) error {
		d.ReplyTo = &msg
		return nil
	})
}

// DismissReply clears the reply reference.
func (c *Composer) DismissReply() error {
	return c.edit(func(d *Draft) error {
		d.ReplyTo = nil
		return nil
	})
}

// Send submits the draft. On success the confirmed message is appended to
// the store and the composer resets to Idle. On failure the composer goes
// back to Drafting with the draft unchanged and the error is returned.
func (c *Composer) Send(ctx context.Context) (domain.Message, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.Message{}, ErrClosed
	}
	if c.state == Submitting {
		c.mu.Unlock()
		return domain.Message{}, ErrSendInProgress
	}
	if !c.draft.sendable() {
		c.mu.Unlock()
		return domain.Message{}, ErrEmptyMessage
	}
	c.state = Submitting
	out := domain.OutgoingMessage{
		ThreadID:  c.threadID,
		Content:   c.draft.Text,
		Upload:    c.draft.Upload,
		ClientID:  uuid.NewString(),
		ClientSeq: c.seq.Next(c.threadID),
	}
	if c.draft.ReplyTo != nil {
		out.ReplyTo = c.draft.ReplyTo.ID
	}
	c.mu.Unlock()

	c.log.Debug().Str("clientId", out.ClientID).Uint64("clientSeq", out.ClientSeq).Bool("attachment", out.Upload != nil).Msg("sending message")
	sent, err := c.sender.SendMessage(ctx, out)
	if err != nil {
		c.mu.Lock()
		if !c.closed {
			c.state = Drafting
		}
		c.mu.Unlock()

		c.log.Warn().Err(err).Str("clientId", out.ClientID).Msg("send failed, draft kept")
		c.hooks.Emit(ctx, hooks.EventMessageFailed, map[string]any{
			"threadId": c.threadID,
			"clientId": out.ClientID,
			"error":    err.Error(),
		})
		return domain.Message{}, fmt.Errorf("sending message: %w", err)
	}

	if err := c.store.Append(sent); err != nil {
		c.log.Warn().Err(err).Str("message", sent.ID).Msg("could not cache sent message")
	}

	c.mu.Lock()
	if !c.closed {
		c.draft = Draft{}
		c.state = Idle
	}
	c.mu.Unlock()

	c.log.Info().Str("message", sent.ID).Msg("message sent")
	c.hooks.Emit(ctx, hooks.EventMessageSent, map[string]any{
		"threadId":  c.threadID,
		"messageId": sent.ID,
		"clientId":  out.ClientID,
	})
	return sent, nil
}

// Close detaches the composer. A send still in flight completes on the
// server and is cached, but no longer touches the composer state.
func (c *Composer) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
