// Package models defines the core domain types for the advisor client.
package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageID identifies a message in the timeline. Exactly one side is set:
// Server for rows persisted by the backend, Local for optimistic entries that
// have not been acknowledged yet. The zero value is invalid.
type MessageID struct {
	Server int64  `json:"server,omitempty"`
	Local  string `json:"local,omitempty"`
}

// ConfirmedID returns the id of a server-persisted message.
func ConfirmedID(server int64) MessageID {
	return MessageID{Server: server}
}

// PendingID returns a fresh id for an optimistic local message.
func PendingID() MessageID {
	return MessageID{Local: uuid.NewString()}
}

// IsConfirmed reports whether the id refers to a server-persisted row.
func (id MessageID) IsConfirmed() bool {
	return id.Server != 0
}

// IsPending reports whether the id is a local placeholder.
func (id MessageID) IsPending() bool {
	return id.Server == 0 && id.Local != ""
}

// IsZero reports whether neither side is set.
func (id MessageID) IsZero() bool {
	return id.Server == 0 && id.Local == ""
}

func (id MessageID) String() string {
	if id.IsConfirmed() {
		return strconv.FormatInt(id.Server, 10)
	}
	if id.Local != "" {
		return "local:" + id.Local
	}
	return "unset"
}

// MarshalJSON encodes confirmed ids as the server integer and pending ids as
// a prefixed string, so snapshots stay distinguishable.
func (id MessageID) MarshalJSON() ([]byte, error) {
	if id.IsConfirmed() {
		return json.Marshal(id.Server)
	}
	return json.Marshal("local:" + id.Local)
}

// UnmarshalJSON accepts either encoding produced by MarshalJSON, plus bare
// integers as sent by the history endpoint.
func (id *MessageID) UnmarshalJSON(data []byte) error {
	var server int64
	if err := json.Unmarshal(data, &server); err == nil {
		*id = MessageID{Server: server}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("message id: %w", err)
	}
	*id = MessageID{Local: strings.TrimPrefix(raw, "local:")}
	return nil
}

// Message is a single entry in the chat timeline.
type Message struct {
	// ID identifies the message (server row or local placeholder).
	ID MessageID `json:"id"`

	// Role is who authored the message.
	Role Role `json:"role"`

	// Content is the message text.
	Content string `json:"content"`

	// Error marks an assistant message that reports a failure.
	Error bool `json:"error,omitempty"`

	// Timestamp orders the message in the timeline.
	Timestamp time.Time `json:"timestamp"`
}

// NewLocalMessage builds an optimistic message stamped with the current time.
func NewLocalMessage(role Role, content string) Message {
	return Message{
		ID:        PendingID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// Validate checks if the message is well formed.
func (m *Message) Validate() error {
	validation := &ValidationErrors{}
	if m.ID.IsZero() {
		validation.Add("id", ErrInvalidMessageID)
	}
	if m.Role != RoleUser && m.Role != RoleAssistant {
		validation.Add("role", ErrInvalidRole)
	}
	if m.Timestamp.IsZero() {
		validation.AddMessage("timestamp", "timestamp is required")
	}
	return validation.Err()
}

// SortMessages orders messages by timestamp, oldest first. The sort is
// stable, so entries with equal timestamps keep their insertion order and
// re-sorting an already sorted slice changes nothing.
func SortMessages(messages []Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
}
