package hooks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/skillswap/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return NewManager(logging.New(nil, "silent"))
}

func TestManager_On_And_Emit(t *testing.T) {
	m := testManager()

	var got Payload
	m.On(EventSessionExpired, "redirect", func(_ context.Context, p Payload) error {
		got = p
		return nil
	})

	m.Emit(context.Background(), EventSessionExpired, map[string]any{"redirect": "/login"})
	assert.Equal(t, EventSessionExpired, got.Event)
	assert.Equal(t, "/login", got.Data["redirect"])
}

func TestManager_Emit_RegistrationOrder(t *testing.T) {
	m := testManager()

	var order []string
	m.On(EventMessageSent, "first", func(_ context.Context, _ Payload) error {
		order = append(order, "first")
		return nil
	})
	m.On(EventMessageSent, "second", func(_ context.Context, _ Payload) error {
		order = append(order, "second")
		return nil
	})

	m.Emit(context.Background(), EventMessageSent, nil)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestManager_Emit_HandlerErrorDoesNotStop(t *testing.T) {
	m := testManager()

	var secondCalled bool
	m.On(EventDeviceReleased, "failing", func(_ context.Context, _ Payload) error {
		return errors.New("handler broke")
	})
	m.On(EventDeviceReleased, "second", func(_ context.Context, _ Payload) error {
		secondCalled = true
		return nil
	})

	m.Emit(context.Background(), EventDeviceReleased, nil)
	assert.True(t, secondCalled)
}

func TestManager_NilIsNoop(t *testing.T) {
	var m *Manager
	m.Emit(context.Background(), EventLoggedIn, nil)
	m.EmitAsync(context.Background(), EventLoggedIn, nil)
}

func TestManager_Off_KeepsOthers(t *testing.T) {
	m := testManager()

	var removed, kept int
	m.On(EventCallClosed, "remove-me", func(_ context.Context, _ Payload) error {
		removed++
		return nil
	})
	m.On(EventCallClosed, "keep-me", func(_ context.Context, _ Payload) error {
		kept++
		return nil
	})

	m.Off(EventCallClosed, "remove-me")
	m.Emit(context.Background(), EventCallClosed, nil)
	assert.Equal(t, 0, removed)
	assert.Equal(t, 1, kept)
}

func TestManager_EmitAsync(t *testing.T) {
	m := testManager()

	var count atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)
	for _, name := range []string{"a", "b"} {
		m.On(EventTokenRefreshed, name, func(_ context.Context, _ Payload) error {
			count.Add(1)
			wg.Done()
			return nil
		})
	}

	m.EmitAsync(context.Background(), EventTokenRefreshed, nil)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async handlers did not complete in time")
	}
	assert.Equal(t, int32(2), count.Load())
}

func TestManager_CountAndEvents(t *testing.T) {
	m := testManager()
	assert.Equal(t, 0, m.Count(EventLoggedIn))

	m.On(EventLoggedIn, "h1", func(_ context.Context, _ Payload) error { return nil })
	m.On(EventLoggedOut, "h2", func(_ context.Context, _ Payload) error { return nil })

	assert.Equal(t, 1, m.Count(EventLoggedIn))
	assert.ElementsMatch(t, []string{EventLoggedIn, EventLoggedOut}, m.Events())
}

func TestAllEvents(t *testing.T) {
	require.Len(t, AllEvents, 11)
	assert.Contains(t, AllEvents, EventSessionExpired)
	assert.Contains(t, AllEvents, EventDeviceReleased)
}
