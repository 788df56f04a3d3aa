// Package events provides in-process event publishing between the
// controllers and the UI.
package events

import (
	"sync"
	"time"

	"advisor/internal/models"
)

// EventType classifies controller events.
type EventType string

const (
	// EventTimelineReset fires when the timeline is replaced wholesale; the
	// view should re-render and jump to the bottom.
	EventTimelineReset EventType = "timeline.reset"

	// EventTimelinePrepended fires when older messages were merged at the
	// front; the view should preserve its scroll anchor.
	EventTimelinePrepended EventType = "timeline.prepended"

	// EventTimelineAppended fires when new messages arrived at the end.
	EventTimelineAppended EventType = "timeline.appended"

	// EventTimelineUpdated fires when an existing entry changed in place.
	EventTimelineUpdated EventType = "timeline.updated"

	// EventSyncState fires when a provider's sync state changes.
	EventSyncState EventType = "sync.state"

	// EventOverlay fires when the sync overlay visibility or attribution
	// changes.
	EventOverlay EventType = "sync.overlay"

	// EventSyncAlert fires when an explicitly requested sync fails to start.
	EventSyncAlert EventType = "sync.alert"

	// EventProfileRefreshed fires when the session re-derived the profile.
	EventProfileRefreshed EventType = "session.profile"
)

// Event is a notification from a controller. Payload holds the typed detail
// struct for the event type.
type Event struct {
	// Type classifies the event.
	Type EventType

	// At is when the event was published.
	At time.Time

	// Payload carries type-specific detail.
	Payload any
}

// TimelinePrepended is the payload for EventTimelinePrepended.
type TimelinePrepended struct {
	// Count is how many messages were merged at the front.
	Count int
}

// SyncState is the payload for EventSyncState.
type SyncState struct {
	Provider models.Provider
	Syncing  bool
	Mode     models.SyncMode
}

// Overlay is the payload for EventOverlay.
type Overlay struct {
	Visible bool
	Service models.Provider
}

// SyncAlert is the payload for EventSyncAlert.
type SyncAlert struct {
	Provider models.Provider
	Message  string
}

// ProfileRefreshed is the payload for EventProfileRefreshed.
type ProfileRefreshed struct {
	User *models.User
}

// Handler is a callback invoked when an event matches a subscription.
type Handler func(event Event)

// Filter defines criteria for matching events.
type Filter struct {
	// Types filters by event type (nil = all types).
	Types []EventType
}

// Matches returns true if the event matches the filter criteria.
func (f *Filter) Matches(event Event) bool {
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if event.Type == t {
			return true
		}
	}
	return false
}

// subscription represents an active event subscription.
type subscription struct {
	id      string
	filter  Filter
	handler Handler
}

// Publisher defines the interface for event publishing and subscription.
type Publisher interface {
	// Publish sends an event to all matching subscribers.
	Publish(event Event)

	// Subscribe registers a handler to receive events matching the filter.
	Subscribe(id string, filter Filter, handler Handler) error

	// Unsubscribe removes a subscription by ID.
	Unsubscribe(id string) error

	// SubscriberCount returns the number of active subscribers.
	SubscriberCount() int
}

// InMemoryPublisher implements Publisher using in-process pub/sub.
type InMemoryPublisher struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
}

// NewInMemoryPublisher creates a new in-memory event publisher.
func NewInMemoryPublisher() *InMemoryPublisher {
	return &InMemoryPublisher{
		subscriptions: make(map[string]*subscription),
	}
}

// Publish sends an event to all matching subscribers.
func (p *InMemoryPublisher) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	// Collect matching handlers under read lock
	p.mu.RLock()
	var handlers []Handler
	for _, sub := range p.subscriptions {
		if sub.filter.Matches(event) {
			handlers = append(handlers, sub.handler)
		}
	}
	p.mu.RUnlock()

	// Invoke handlers outside the lock to avoid deadlocks
	for _, handler := range handlers {
		handler(event)
	}
}

// Subscribe registers a handler to receive events matching the filter.
func (p *InMemoryPublisher) Subscribe(id string, filter Filter, handler Handler) error {
	if id == "" {
		return ErrInvalidSubscriptionID
	}
	if handler == nil {
		return ErrNilHandler
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subscriptions[id]; exists {
		return ErrSubscriptionExists
	}

	p.subscriptions[id] = &subscription{
		id:      id,
		filter:  filter,
		handler: handler,
	}

	return nil
}

// Unsubscribe removes a subscription by ID.
func (p *InMemoryPublisher) Unsubscribe(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.subscriptions[id]; !exists {
		return ErrSubscriptionNotFound
	}

	delete(p.subscriptions, id)
	return nil
}

// SubscriberCount returns the number of active subscribers.
func (p *InMemoryPublisher) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subscriptions)
}

// Close removes all subscriptions.
func (p *InMemoryPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptions = make(map[string]*subscription)
}

// Errors for publisher operations.
var (
	ErrInvalidSubscriptionID = &PublisherError{Message: "subscription ID is required"}
	ErrNilHandler            = &PublisherError{Message: "handler cannot be nil"}
	ErrSubscriptionExists    = &PublisherError{Message: "subscription with this ID already exists"}
	ErrSubscriptionNotFound  = &PublisherError{Message: "subscription not found"}
)

// PublisherError represents an error from publisher operations.
type PublisherError struct {
	Message string
}

func (e *PublisherError) Error() string {
	return e.Message
}
