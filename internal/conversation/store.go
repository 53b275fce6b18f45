// Package conversation caches the messages of each thread and derives their
// unread state for the current viewer.
package conversation

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/soyeahso/skillswap/internal/domain"
	"github.com/soyeahso/skillswap/internal/hooks"
	"github.com/soyeahso/skillswap/internal/logging"
)

var (
	// ErrStale is returned by LoadThread when a newer load or Close
	// superseded it. The result was discarded.
	ErrStale = errors.New("conversation: load superseded")

	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("conversation: store closed")
)

// Backend is the subset of the REST client the store needs.
type Backend interface {
	Messages(ctx context.Context, threadID string) ([]domain.Message, error)
	MarkRead(ctx context.Context, messageID string) error
	MarkReadBatch(ctx context.Context, ids []string) error
}

// Options tune the store.
type Options struct {
	// BatchRead sends one batch request per MarkRead instead of one per message.
	BatchRead bool
}

type thread struct {
	msgs  []domain.Message
	index map[string]int
	gen   uint64
}

func (t *thread) reindex() {
	t.index = make(map[string]int, len(t.msgs))
	for i, m := range t.msgs {
		t.index[m.ID] = i
	}
}

// Store holds the ordered message list per thread. It is safe for
// concurrent use.
type Store struct {
	backend Backend
	hooks   *hooks.Manager
	log     *logging.Logger
	opts    Options

	mu       sync.Mutex
	viewer   string
	threads  map[string]*thread
	owner    map[string]string // message id -> thread id
	inflight map[string]bool
	selected string
	closed   bool
}

// NewStore creates an empty store.
func NewStore(backend Backend, hk *hooks.Manager, log *logging.Logger, opts Options) *Store {
	return &Store{
		backend:  backend,
		hooks:    hk,
		log:      log.Sub("conversation"),
		opts:     opts,
		threads:  make(map[string]*thread),
		owner:    make(map[string]string),
		inflight: make(map[string]bool),
	}
}

// SetViewer sets the current user. Unread state is relative to the viewer.
func (s *Store) SetViewer(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewer = userID
}

// Viewer returns the current user id.
func (s *Store) Viewer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewer
}

func (s *Store) threadLocked(id string) *thread {
	t, ok := s.threads[id]
	if !ok {
		t = &thread{index: make(map[string]int)}
		s.threads[id] = t
	}
	return t
}

// LoadThread fetches all messages for a thread and replaces the cached list.
// Results of a load that was overtaken by a newer load of the same thread,
// or that finish after Close, are dropped and ErrStale is returned.
func (s *Store) LoadThread(ctx context.Context, threadID string) ([]domain.Message, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	t := s.threadLocked(threadID)
	t.gen++
	gen := t.gen
	s.mu.Unlock()

	msgs, err := s.backend.Messages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("loading thread %s: %w", threadID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || t.gen != gen {
		s.log.Debug().Str("thread", threadID).Msg("discarding stale thread load")
		return nil, ErrStale
	}

	for _, m := range t.msgs {
		delete(s.owner, m.ID)
	}
	t.msgs = make([]domain.Message, 0, len(msgs))
	seen := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		if err := m.Validate(); err != nil {
			s.log.Warn().Err(err).Str("thread", threadID).Msg("skipping invalid message")
			continue
		}
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		s.owner[m.ID] = threadID
		t.msgs = append(t.msgs, m)
	}
	t.reindex()

	s.log.Debug().Str("thread", threadID).Int("messages", len(t.msgs)).Msg("thread loaded")
	return slices.Clone(t.msgs), nil
}

// Append adds msg at the end of its thread. A message whose id is already
// cached is a server correction and replaces the cached copy in place; read
// state never goes back to unread.
func (s *Store) Append(msg domain.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	t := s.threadLocked(msg.ThreadID)
	if i, ok := t.index[msg.ID]; ok {
		msg.IsRead = msg.IsRead || t.msgs[i].IsRead
		t.msgs[i] = msg
		return nil
	}
	t.index[msg.ID] = len(t.msgs)
	t.msgs = append(t.msgs, msg)
	s.owner[msg.ID] = msg.ThreadID
	return nil
}

// MarkRead marks the given messages as read on the server and in the cache.
// Messages sent by the viewer, already read, unknown, or already being marked
// are skipped, so repeating a call is a no-op. It returns how many messages
// transitioned to read.
func (s *Store) MarkRead(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	var pending []string
	for _, id := range ids {
		m, ok := s.lookupLocked(id)
		if !ok || m.IsRead || m.SenderID == s.viewer || s.inflight[id] {
			continue
		}
		s.inflight[id] = true
		pending = append(pending, id)
	}
	s.mu.Unlock()

	if len(pending) == 0 {
		return 0, nil
	}

	var done []string
	var errs []error
	if s.opts.BatchRead {
		if err := s.backend.MarkReadBatch(ctx, pending); err != nil {
			errs = append(errs, fmt.Errorf("marking %d messages read: %w", len(pending), err))
		} else {
			done = pending
		}
	} else {
		for _, id := range pending {
			if err := s.backend.MarkRead(ctx, id); err != nil {
				errs = append(errs, fmt.Errorf("marking %s read: %w", id, err))
				continue
			}
			done = append(done, id)
		}
	}

	s.mu.Lock()
	for _, id := range pending {
		delete(s.inflight, id)
	}
	s.setReadLocked(done)
	s.mu.Unlock()

	return len(done), errors.Join(errs...)
}

// ApplyRead flips cached messages to read without calling the backend, for
// receipts pushed by the server.
func (s *Store) ApplyRead(ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setReadLocked(ids)
}

func (s *Store) setReadLocked(ids []string) int {
	n := 0
	for _, id := range ids {
		tid, ok := s.owner[id]
		if !ok {
			continue
		}
		t := s.threads[tid]
		i := t.index[id]
		if !t.msgs[i].IsRead {
			t.msgs[i].IsRead = true
			n++
		}
	}
	return n
}

func (s *Store) lookupLocked(id string) (domain.Message, bool) {
	tid, ok := s.owner[id]
	if !ok {
		return domain.Message{}, false
	}
	t := s.threads[tid]
	return t.msgs[t.index[id]], true
}

// Select makes threadID the active thread and marks every message in it that
// is currently unread for the viewer.
func (s *Store) Select(ctx context.Context, threadID string) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	s.selected = threadID
	var ids []string
	if t, ok := s.threads[threadID]; ok {
		for _, m := range t.msgs {
			if !m.IsRead && m.SenderID != s.viewer {
				ids = append(ids, m.ID)
			}
		}
	}
	s.mu.Unlock()

	n, err := s.MarkRead(ctx, ids)
	if n > 0 {
		s.hooks.Emit(ctx, hooks.EventThreadRead, map[string]any{"threadId": threadID, "count": n})
	}
	return n, err
}

// Selected returns the active thread id.
func (s *Store) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// UnreadCount is the number of messages in threadID not sent by the viewer
// and not yet read.
func (s *Store) UnreadCount(threadID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unreadLocked(threadID)
}

func (s *Store) unreadLocked(threadID string) int {
	t, ok := s.threads[threadID]
	if !ok {
		return 0
	}
	n := 0
	for _, m := range t.msgs {
		if !m.IsRead && m.SenderID != s.viewer {
			n++
		}
	}
	return n
}

// Messages returns a copy of the cached messages of threadID in order.
func (s *Store) Messages(threadID string) []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[threadID]
	if !ok {
		return nil
	}
	return slices.Clone(t.msgs)
}

// Message returns a cached message by id.
func (s *Store) Message(id string) (domain.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(id)
}

// Summary describes one cached thread.
type Summary struct {
	ThreadID string
	Count    int
	Unread   int
	Last     *domain.Message
}

// Threads summarizes every cached thread, most recent activity first.
func (s *Store) Threads() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Summary, 0, len(s.threads))
	for id, t := range s.threads {
		sum := Summary{ThreadID: id, Count: len(t.msgs), Unread: s.unreadLocked(id)}
		if len(t.msgs) > 0 {
			last := t.msgs[len(t.msgs)-1]
			sum.Last = &last
		}
		out = append(out, sum)
	}
	slices.SortFunc(out, func(a, b Summary) int {
		if c := lastTime(b).Compare(lastTime(a)); c != 0 {
			return c
		}
		return cmp.Compare(a.ThreadID, b.ThreadID)
	})
	return out
}

func lastTime(s Summary) time.Time {
	if s.Last == nil {
		return time.Time{}
	}
	return s.Last.CreatedAt
}

// Close drops all cached state. Pending loads are discarded when they finish.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.threads = make(map[string]*thread)
	s.owner = make(map[string]string)
}
