package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"advisor/internal/models"
)

// ChatTurn is one prior exchange entry sent along with a new message so the
// backend can rebuild the conversation.
type ChatTurn struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

// HistoryPage is one page of persisted chat history.
type HistoryPage struct {
	// Messages are ordered oldest first, ready for the timeline.
	Messages []models.Message

	// HasMore indicates older messages exist beyond this page.
	HasMore bool
}

// SendResult is the backend's reply to a chat message.
type SendResult struct {
	// Response is the assistant's reply text.
	Response string `json:"response"`

	// Error carries the assistant-level failure text, if the backend
	// processed the request but could not answer it.
	Error string `json:"error"`

	// MessageID is the persisted id of the assistant reply, when saved.
	MessageID *int64 `json:"message_id"`
}

type wireHistoryMessage struct {
	ID        int64  `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Error     bool   `json:"error"`
	Timestamp string `json:"timestamp"`
}

type historyResponse struct {
	Messages []wireHistoryMessage `json:"messages"`
	HasMore  bool                 `json:"has_more"`
}

type sendRequest struct {
	Message             string     `json:"message"`
	ConversationHistory []ChatTurn `json:"conversation_history"`
}

// History fetches a page of chat history. The backend serves newest first;
// the returned page is reversed to oldest first. A beforeID of 0 fetches the
// newest page; otherwise only messages older than that id are returned.
func (c *Client) History(ctx context.Context, limit int, beforeID int64) (*HistoryPage, error) {
	path := fmt.Sprintf("/api/chat/history?limit=%d", limit)
	if beforeID > 0 {
		path += fmt.Sprintf("&before_id=%d", beforeID)
	}

	var resp historyResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, true, &resp); err != nil {
		return nil, err
	}

	page := &HistoryPage{
		Messages: make([]models.Message, 0, len(resp.Messages)),
		HasMore:  resp.HasMore,
	}
	for i := len(resp.Messages) - 1; i >= 0; i-- {
		page.Messages = append(page.Messages, c.toMessage(resp.Messages[i]))
	}
	return page, nil
}

// SendMessage posts a chat message along with the conversation so far. The
// returned result may carry an assistant-level error instead of a reply.
func (c *Client) SendMessage(ctx context.Context, text string, history []ChatTurn) (*SendResult, error) {
	if history == nil {
		history = []ChatTurn{}
	}
	req := sendRequest{Message: text, ConversationHistory: history}

	var resp SendResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/chat/", req, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Instruction is a standing directive the assistant applies to future work.
type Instruction struct {
	ID          int64  `json:"id"`
	Instruction string `json:"instruction"`
	TriggerType string `json:"trigger_type"`
}

// AddInstruction registers an ongoing instruction for the assistant. The
// trigger scopes when it applies (email, calendar, hubspot, all); empty
// defaults to all.
func (c *Client) AddInstruction(ctx context.Context, instruction, trigger string) (*Instruction, error) {
	params := url.Values{}
	params.Set("instruction", instruction)
	if trigger != "" {
		params.Set("trigger_type", trigger)
	}
	path := "/api/chat/ongoing-instruction?" + params.Encode()

	var resp Instruction
	if err := c.doJSON(ctx, http.MethodPost, path, nil, true, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) toMessage(w wireHistoryMessage) models.Message {
	ts, err := parseTimestamp(w.Timestamp)
	if err != nil {
		c.logger.Warn().
			Int64("message_id", w.ID).
			Str("timestamp", w.Timestamp).
			Msg("unparseable message timestamp")
	}
	return models.Message{
		ID:        models.ConfirmedID(w.ID),
		Role:      models.Role(w.Role),
		Content:   w.Content,
		Error:     w.Error,
		Timestamp: ts,
	}
}

// timestampLayouts covers the backend's isoformat output, which omits the
// zone on naive datetimes. Naive stamps are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseTimestamp(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
