package stream

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milpatel11/sk-ui-sub001/internal/access"
)

func recv(t *testing.T, ch <-chan Update) Update {
	t.Helper()
	select {
	case u, ok := <-ch:
		require.True(t, ok, "channel closed")
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
		return Update{}
	}
}

func TestPublishFanOut(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := h.Subscribe(ctx)
	b := h.Subscribe(ctx)
	assert.Equal(t, 2, h.Subscribers())

	h.Publish(Update{Snapshot: access.Snapshot{Users: []access.GlobalUser{{UserID: "u1"}}}})
	assert.Equal(t, "u1", recv(t, a).Snapshot.Users[0].UserID)
	assert.Equal(t, "u1", recv(t, b).Snapshot.Users[0].UserID)
}

func TestSubscribeReplaysLatest(t *testing.T) {
	h := New()
	h.Publish(Update{Snapshot: access.Snapshot{Groups: []access.Group{{GroupID: "g1"}}}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	u := recv(t, h.Subscribe(ctx))
	assert.Equal(t, "g1", u.Snapshot.Groups[0].GroupID)
}

func TestSubscriptionClosesWithContext(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	ch := h.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed")
	}
	assert.Eventually(t, func() bool { return h.Subscribers() == 0 }, time.Second, 5*time.Millisecond)
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_ = h.Subscribe(ctx)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(Update{})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestRunPublishesAndSkipsFailures(t *testing.T) {
	var calls atomic.Int32
	src := access.SourceFunc(func(context.Context) (access.Snapshot, error) {
		if calls.Add(1) == 1 {
			return access.Snapshot{}, errors.New("backend down")
		}
		return access.Snapshot{Users: []access.GlobalUser{{UserID: "u1"}}}, nil
	})

	h := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := h.Subscribe(ctx)

	done := make(chan error, 1)
	go func() { done <- h.Run(ctx, src, 5*time.Millisecond) }()

	u := recv(t, ch)
	assert.Equal(t, "u1", u.Snapshot.Users[0].UserID)
	assert.False(t, u.FetchedAt.IsZero())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.Error(t, h.Run(context.Background(), nil, 0))
}
