// Package feed delivers live interval snapshots to subscribers. Every store
// mutation triggers a reload of the full list and a push to all subscribers,
// so consumers never poll.
package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/plugwatch/plugwatch/internal/model"
)

// Lister is the read side of the interval store the feed re-queries on each
// mutation.
type Lister interface {
	ListAll(ctx context.Context) ([]model.OutageInterval, error)
}

// Broadcaster fans interval snapshots out to subscribers. Sends are
// latest-wins: a slow subscriber drops stale snapshots rather than blocking
// the write path.
type Broadcaster struct {
	store  Lister
	logger *slog.Logger

	mu   sync.Mutex
	subs map[int]chan []model.OutageInterval
	next int
}

func New(store Lister, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		store:  store,
		logger: logger,
		subs:   make(map[int]chan []model.OutageInterval),
	}
}

// Subscribe registers a listener and returns its channel plus a cancel
// function. The current snapshot is not replayed; callers query the store
// once and then follow the feed.
func (b *Broadcaster) Subscribe() (<-chan []model.OutageInterval, func()) {
	ch := make(chan []model.OutageInterval, 1)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Notify reloads the interval list and pushes it to every subscriber. Called
// after each insert, update or delete.
func (b *Broadcaster) Notify(ctx context.Context) {
	intervals, err := b.store.ListAll(ctx)
	if err != nil {
		b.logger.Error("feed reload failed", "err", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- intervals:
		default:
			// Replace the stale pending snapshot with the current one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- intervals:
			default:
			}
		}
	}
}

// SubscriberCount reports how many listeners are attached.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
