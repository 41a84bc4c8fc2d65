package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/plugwatch/plugwatch/internal/model"
)

type stubLister struct {
	intervals []model.OutageInterval
	err       error
}

func (s *stubLister) ListAll(context.Context) ([]model.OutageInterval, error) {
	return s.intervals, s.err
}

func newTestBroadcaster(store *stubLister) *Broadcaster {
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestNotify_DeliversSnapshot(t *testing.T) {
	store := &stubLister{intervals: []model.OutageInterval{{ID: 1, StartTimeMs: 1000}}}
	b := newTestBroadcaster(store)

	ch, cancel := b.Subscribe()
	defer cancel()

	b.Notify(context.Background())

	snapshot := <-ch
	if len(snapshot) != 1 || snapshot[0].ID != 1 {
		t.Fatalf("expected snapshot with interval 1, got %+v", snapshot)
	}
}

func TestNotify_LatestWinsForSlowSubscriber(t *testing.T) {
	store := &stubLister{intervals: []model.OutageInterval{{ID: 1, StartTimeMs: 1000}}}
	b := newTestBroadcaster(store)

	ch, cancel := b.Subscribe()
	defer cancel()

	b.Notify(context.Background())
	store.intervals = append(store.intervals, model.OutageInterval{ID: 2, StartTimeMs: 2000})
	b.Notify(context.Background())

	// The subscriber never read the first push; it must see the second.
	snapshot := <-ch
	if len(snapshot) != 2 {
		t.Fatalf("expected latest snapshot with 2 intervals, got %d", len(snapshot))
	}
}

func TestNotify_StoreErrorKeepsSubscribers(t *testing.T) {
	store := &stubLister{err: errors.New("disk gone")}
	b := newTestBroadcaster(store)

	ch, cancel := b.Subscribe()
	defer cancel()

	b.Notify(context.Background())

	select {
	case snapshot := <-ch:
		t.Fatalf("expected no delivery on store error, got %+v", snapshot)
	default:
	}
	if b.SubscriberCount() != 1 {
		t.Fatalf("expected subscriber retained, got %d", b.SubscriberCount())
	}
}

func TestCancel_RemovesAndCloses(t *testing.T) {
	store := &stubLister{}
	b := newTestBroadcaster(store)

	ch, cancel := b.Subscribe()
	cancel()
	cancel() // second cancel is a no-op

	if b.SubscriberCount() != 0 {
		t.Fatalf("expected no subscribers after cancel, got %d", b.SubscriberCount())
	}
	if _, open := <-ch; open {
		t.Fatalf("expected channel closed after cancel")
	}
}
