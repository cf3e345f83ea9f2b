package registry

import (
	"context"
	"fitagent/app/service/conversation"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(ttl time.Duration) *Service {
	return NewRegistry(func(id string) *conversation.State {
		return conversation.NewState(id, "system")
	}, ttl)
}

func TestGetOrCreate(t *testing.T) {
	r := newTestRegistry(time.Hour)

	st := r.GetOrCreate("")
	require.NotNil(t, st)
	assert.NotEmpty(t, st.ID())
	assert.Equal(t, 1, r.Len())

	again := r.GetOrCreate(st.ID())
	assert.Same(t, st, again)

	got, err := r.Get(st.ID())
	require.NoError(t, err)
	assert.Same(t, st, got)
}

func TestGetOrCreateIgnoresUnknownID(t *testing.T) {
	r := newTestRegistry(time.Hour)

	st := r.GetOrCreate("forged-id")
	assert.NotEqual(t, "forged-id", st.ID())

	_, err := r.Get("forged-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewSessionIsEmpty(t *testing.T) {
	r := newTestRegistry(time.Hour)

	st := r.GetOrCreate("")
	assert.Empty(t, st.Messages(conversation.HistoryExternal))
	assert.Equal(t, []conversation.Message{{Role: conversation.RoleSystem, Content: "system"}},
		st.Messages(conversation.HistoryInternal))
}

func TestReset(t *testing.T) {
	r := newTestRegistry(time.Hour)

	old := r.GetOrCreate("")
	old.Append(conversation.HistoryExternal, conversation.RoleUser, "hello")

	fresh := r.Reset(old.ID())
	assert.NotEqual(t, old.ID(), fresh.ID())
	assert.Empty(t, fresh.Messages(conversation.HistoryExternal))
	assert.Equal(t, 1, r.Len())

	_, err := r.Get(old.ID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCleanup(t *testing.T) {
	r := newTestRegistry(time.Minute)

	idle := r.GetOrCreate("")
	active := r.GetOrCreate("")

	now := time.Now()
	idle.Touch(now.Add(-2 * time.Minute))
	active.Touch(now)

	assert.Equal(t, 1, r.Cleanup(now))
	assert.Equal(t, 1, r.Len())

	_, err := r.Get(idle.ID())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Get(active.ID())
	assert.NoError(t, err)
}

func TestRunCleanupLoopStops(t *testing.T) {
	r := newTestRegistry(time.Nanosecond)
	r.GetOrCreate("")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		r.RunCleanupLoop(ctx, time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop did not stop")
	}
}
