// Package stream fans out fresh IAM snapshots to live subscribers.
package stream

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/milpatel11/sk-ui-sub001/internal/access"
	"github.com/milpatel11/sk-ui-sub001/internal/obs"
)

// Update is one fetched snapshot.
type Update struct {
	Snapshot  access.Snapshot
	FetchedAt time.Time
}

// Hub fan-outs updates to all active subscribers (SSE clients).
type Hub struct {
	mu   sync.RWMutex
	subs map[int]chan Update
	next int
	last *Update
}

// New returns an empty hub.
func New() *Hub {
	return &Hub{subs: make(map[int]chan Update)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// updates, starting with the latest one if any was published. The channel is
// closed when ctx ends.
func (h *Hub) Subscribe(ctx context.Context) <-chan Update {
	ch := make(chan Update, 16)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	if h.last != nil {
		ch <- *h.last
	}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs u to all subscribers.
func (h *Hub) Publish(u Update) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &u
	for _, ch := range h.subs {
		select {
		case ch <- u:
		default:
			// Drop when subscriber is slow to avoid blocking.
		}
	}
}

// Subscribers returns the number of active subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Run fetches a snapshot from src every interval and publishes it until ctx
// is done. Failed fetches are logged and skipped.
func (h *Hub) Run(ctx context.Context, src access.Source, interval time.Duration) error {
	if src == nil {
		return errors.New("stream: source is required")
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, err := src.Snapshot(ctx)
		switch {
		case err == nil:
			h.Publish(Update{Snapshot: snap, FetchedAt: time.Now().UTC()})
		case ctx.Err() == nil:
			obs.IncSnapshotFetchErrors("stream")
			obs.Logger().Warn("stream snapshot fetch failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
