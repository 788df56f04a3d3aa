package events

import (
	"sync"
	"sync/atomic"
	"testing"

	"advisor/internal/models"
)

func TestFilter_Matches(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		event  Event
		want   bool
	}{
		{
			name:   "empty filter matches any event",
			filter: Filter{},
			event:  Event{Type: EventTimelineReset},
			want:   true,
		},
		{
			name:   "type filter matches",
			filter: Filter{Types: []EventType{EventSyncState, EventOverlay}},
			event:  Event{Type: EventOverlay},
			want:   true,
		},
		{
			name:   "type filter rejects non-matching",
			filter: Filter{Types: []EventType{EventSyncState}},
			event:  Event{Type: EventTimelineAppended},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(tt.event); got != tt.want {
				t.Fatalf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPublishReachesMatchingSubscribers(t *testing.T) {
	pub := NewInMemoryPublisher()

	var syncEvents, allEvents atomic.Int64
	if err := pub.Subscribe("sync-only", Filter{Types: []EventType{EventSyncState}}, func(Event) {
		syncEvents.Add(1)
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := pub.Subscribe("everything", Filter{}, func(Event) {
		allEvents.Add(1)
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	pub.Publish(Event{Type: EventSyncState, Payload: SyncState{Provider: models.ProviderGmail, Syncing: true}})
	pub.Publish(Event{Type: EventTimelineAppended})

	if syncEvents.Load() != 1 {
		t.Fatalf("expected 1 sync event, got %d", syncEvents.Load())
	}
	if allEvents.Load() != 2 {
		t.Fatalf("expected 2 events for the unfiltered subscriber, got %d", allEvents.Load())
	}
}

func TestPublishStampsTime(t *testing.T) {
	pub := NewInMemoryPublisher()

	var got Event
	_ = pub.Subscribe("s", Filter{}, func(e Event) { got = e })
	pub.Publish(Event{Type: EventTimelineReset})

	if got.At.IsZero() {
		t.Fatal("expected publish to stamp the event time")
	}
}

func TestSubscribeValidation(t *testing.T) {
	pub := NewInMemoryPublisher()

	if err := pub.Subscribe("", Filter{}, func(Event) {}); err != ErrInvalidSubscriptionID {
		t.Fatalf("expected ErrInvalidSubscriptionID, got %v", err)
	}
	if err := pub.Subscribe("x", Filter{}, nil); err != ErrNilHandler {
		t.Fatalf("expected ErrNilHandler, got %v", err)
	}

	if err := pub.Subscribe("dup", Filter{}, func(Event) {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := pub.Subscribe("dup", Filter{}, func(Event) {}); err != ErrSubscriptionExists {
		t.Fatalf("expected ErrSubscriptionExists, got %v", err)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	pub := NewInMemoryPublisher()

	var count atomic.Int64
	_ = pub.Subscribe("s", Filter{}, func(Event) { count.Add(1) })

	pub.Publish(Event{Type: EventTimelineReset})
	if err := pub.Unsubscribe("s"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	pub.Publish(Event{Type: EventTimelineReset})

	if count.Load() != 1 {
		t.Fatalf("expected 1 delivery, got %d", count.Load())
	}
	if err := pub.Unsubscribe("s"); err != ErrSubscriptionNotFound {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestPublishConcurrentSubscribers(t *testing.T) {
	pub := NewInMemoryPublisher()

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		id := string(rune('a' + i))
		_ = pub.Subscribe(id, Filter{}, func(Event) { count.Add(1) })
	}

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pub.Publish(Event{Type: EventTimelineAppended})
		}()
	}
	wg.Wait()

	if count.Load() != 32 {
		t.Fatalf("expected 32 deliveries, got %d", count.Load())
	}
	if pub.SubscriberCount() != 8 {
		t.Fatalf("expected 8 subscribers, got %d", pub.SubscriberCount())
	}
}
