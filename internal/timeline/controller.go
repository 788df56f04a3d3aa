// Package timeline manages the chat transcript: the ordered message
// sequence, cursor pagination into older history, and optimistic sends
// reconciled against the backend's reply.
package timeline

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"advisor/internal/api"
	"advisor/internal/events"
	"advisor/internal/logging"
	"advisor/internal/models"
	"advisor/internal/session"
)

// Defaults for pagination and scroll-triggered loading.
const (
	// DefaultPageSize is how many messages one history page carries.
	DefaultPageSize = 20

	// DefaultScrollThreshold is how close to the top of the rendered
	// transcript, in rows, the view may scroll before the next older
	// page is requested.
	DefaultScrollThreshold = 500
)

// welcomeText seeds the transcript when no history could be shown.
const welcomeText = "Hi! I'm your advisor assistant. I can search your email and HubSpot contacts, draft follow-ups, and answer questions about your clients. What can I help you with?"

// ErrEmptyMessage is returned by Send for blank or whitespace-only input.
var ErrEmptyMessage = errors.New("message is empty")

// ChatAPI is the slice of the backend client the controller needs.
type ChatAPI interface {
	History(ctx context.Context, limit int, beforeID int64) (*api.HistoryPage, error)
	SendMessage(ctx context.Context, text string, history []api.ChatTurn) (*api.SendResult, error)
}

// TokenSource reports the bearer token of the active session, empty when
// logged out.
type TokenSource interface {
	Token() string
}

// Controller owns the chat transcript. All methods are safe for
// concurrent use; the blocking ones are intended to run off the UI
// goroutine, with changes announced through the event publisher.
type Controller struct {
	chat      ChatAPI
	tokens    TokenSource
	publisher events.Publisher
	logger    zerolog.Logger

	pageSize        int
	scrollThreshold int

	mu           sync.Mutex
	messages     []models.Message
	oldestID     int64
	hasMore      bool
	loadingOlder bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithPageSize overrides the history page size.
func WithPageSize(size int) Option {
	return func(c *Controller) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithScrollThreshold overrides the distance from the top of the
// transcript at which older history is requested.
func WithScrollThreshold(rows int) Option {
	return func(c *Controller) {
		if rows >= 0 {
			c.scrollThreshold = rows
		}
	}
}

// WithLogger sets the logger used by the controller.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// NewController creates a timeline Controller. The publisher may be nil,
// in which case change events are not announced.
func NewController(chat ChatAPI, tokens TokenSource, publisher events.Publisher, opts ...Option) *Controller {
	c := &Controller{
		chat:            chat,
		tokens:          tokens,
		publisher:       publisher,
		logger:          logging.Component("timeline"),
		pageSize:        DefaultPageSize,
		scrollThreshold: DefaultScrollThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Messages returns a copy of the transcript, oldest first.
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// HasMore reports whether older history remains beyond the loaded pages.
func (c *Controller) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// LoadingOlder reports whether an older-page fetch is in flight.
func (c *Controller) LoadingOlder() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadingOlder
}

// LoadInitial replaces the transcript with the most recent history page.
// A failed or empty fetch seeds a single welcome message instead, with
// paging disabled, so the surface never opens blank. Fetch errors are
// logged, not returned.
func (c *Controller) LoadInitial(ctx context.Context) {
	page, err := c.chat.History(ctx, c.pageSize, 0)

	c.mu.Lock()
	switch {
	case err != nil:
		c.logger.Warn().Err(err).Msg("history load failed, seeding welcome message")
		c.seedWelcomeLocked()
	case len(page.Messages) == 0:
		c.seedWelcomeLocked()
	default:
		c.messages = append([]models.Message(nil), page.Messages...)
		models.SortMessages(c.messages)
		c.hasMore = page.HasMore
		c.oldestID = minConfirmedID(c.messages)
		c.logger.Debug().
			Int("count", len(c.messages)).
			Bool("has_more", c.hasMore).
			Int64("oldest_id", c.oldestID).
			Msg("history loaded")
	}
	c.loadingOlder = false
	c.mu.Unlock()

	c.publish(events.EventTimelineReset, nil)
}

// seedWelcomeLocked resets the transcript to the synthetic greeting.
// Callers hold c.mu.
func (c *Controller) seedWelcomeLocked() {
	c.messages = []models.Message{models.NewLocalMessage(models.RoleAssistant, welcomeText)}
	c.hasMore = false
	c.oldestID = 0
}

// LoadOlder fetches the page preceding the oldest confirmed message and
// merges it into the front of the transcript. At most one fetch runs at
// a time; calls while one is in flight, after history is exhausted, or
// before any confirmed message exists are no-ops. The return value
// reports whether a fetch was attempted. Fetch errors are logged and the
// transcript is left untouched, so the caller may retry.
func (c *Controller) LoadOlder(ctx context.Context) bool {
	c.mu.Lock()
	if c.loadingOlder || !c.hasMore || len(c.messages) == 0 || c.oldestID == 0 {
		c.mu.Unlock()
		return false
	}
	c.loadingOlder = true
	before := c.oldestID
	c.mu.Unlock()

	page, err := c.chat.History(ctx, c.pageSize, before)

	c.mu.Lock()
	c.loadingOlder = false
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn().Err(err).Int64("before_id", before).Msg("older page load failed")
		return true
	}
	if len(page.Messages) == 0 {
		c.hasMore = false
		c.mu.Unlock()
		c.logger.Debug().Int64("before_id", before).Msg("history exhausted")
		return true
	}

	merged := make([]models.Message, 0, len(page.Messages)+len(c.messages))
	merged = append(merged, page.Messages...)
	merged = append(merged, c.messages...)
	models.SortMessages(merged)
	c.messages = merged
	c.hasMore = page.HasMore
	c.oldestID = minConfirmedID(c.messages)
	count := len(page.Messages)
	c.mu.Unlock()

	c.logger.Debug().
		Int("count", count).
		Int64("before_id", before).
		Msg("older page merged")
	c.publish(events.EventTimelinePrepended, events.TimelinePrepended{Count: count})
	return true
}

// ShouldLoadOlder reports whether an upward scroll that leaves the view
// distanceFromTop rows from the top of the transcript should trigger
// LoadOlder. Callers invoke this on upward movement only; scrolling down
// never pages.
func (c *Controller) ShouldLoadOlder(distanceFromTop int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if distanceFromTop > c.scrollThreshold {
		return false
	}
	return c.hasMore && !c.loadingOlder && len(c.messages) > 0 && c.oldestID != 0
}

// Send appends the user's message optimistically, delivers it together
// with a snapshot of the confirmed conversation, and reconciles the
// transcript with the backend's reply. Blank input returns
// ErrEmptyMessage and a missing token session.ErrNotAuthenticated;
// delivery failures are rendered as errored assistant messages rather
// than returned.
func (c *Controller) Send(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyMessage
	}
	if c.tokens.Token() == "" {
		return session.ErrNotAuthenticated
	}

	c.mu.Lock()
	history := c.confirmedTurnsLocked()
	optimistic := models.NewLocalMessage(models.RoleUser, trimmed)
	c.messages = append(c.messages, optimistic)
	models.SortMessages(c.messages)
	c.mu.Unlock()

	c.publish(events.EventTimelineAppended, nil)

	result, err := c.chat.SendMessage(ctx, trimmed, history)

	c.mu.Lock()
	if err != nil {
		c.logger.Warn().Err(err).Msg("send failed")
		failed := models.NewLocalMessage(models.RoleAssistant, "Error: "+err.Error())
		failed.Error = true
		c.messages = append(c.messages, failed)
		models.SortMessages(c.messages)
		c.mu.Unlock()

		c.publish(events.EventTimelineAppended, nil)
		return nil
	}

	confirmed := optimistic
	if result.MessageID != nil {
		confirmed.ID = models.ConfirmedID(*result.MessageID)
	} else {
		confirmed.ID = models.PendingID()
	}
	c.replaceLocked(optimistic.ID, confirmed)

	reply := models.NewLocalMessage(models.RoleAssistant, result.Response)
	if result.Error != "" {
		reply.Content = "Error: " + result.Error
		reply.Error = true
	}
	c.messages = append(c.messages, reply)
	models.SortMessages(c.messages)
	c.mu.Unlock()

	c.publish(events.EventTimelineUpdated, nil)
	c.publish(events.EventTimelineAppended, nil)
	return nil
}

// confirmedTurnsLocked snapshots the conversation for the send payload.
// Only messages the server has acknowledged are included; optimistic
// entries exist solely on this client. Callers hold c.mu.
func (c *Controller) confirmedTurnsLocked() []api.ChatTurn {
	turns := make([]api.ChatTurn, 0, len(c.messages))
	for _, m := range c.messages {
		if !m.ID.IsConfirmed() {
			continue
		}
		turns = append(turns, api.ChatTurn{Role: m.Role, Content: m.Content})
	}
	return turns
}

// replaceLocked swaps the last message carrying id. Callers hold c.mu.
func (c *Controller) replaceLocked(id models.MessageID, replacement models.Message) {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == id {
			c.messages[i] = replacement
			return
		}
	}
}

func (c *Controller) publish(eventType events.EventType, payload any) {
	if c.publisher == nil {
		return
	}
	c.publisher.Publish(events.Event{Type: eventType, Payload: payload})
}

// minConfirmedID returns the smallest server id in the transcript, or 0
// when no confirmed message exists.
func minConfirmedID(messages []models.Message) int64 {
	var min int64
	for _, m := range messages {
		if !m.ID.IsConfirmed() {
			continue
		}
		if min == 0 || m.ID.Server < min {
			min = m.ID.Server
		}
	}
	return min
}
