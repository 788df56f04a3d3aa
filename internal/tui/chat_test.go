package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"advisor/internal/api"
	"advisor/internal/events"
	"advisor/internal/models"
	"advisor/internal/session"
	"advisor/internal/syncer"
	"advisor/internal/testutil"
	"advisor/internal/timeline"
)

// backendRecorder fakes the remote API with a scripted message history
// and records what the surface sends.
type backendRecorder struct {
	server *httptest.Server

	mu       sync.Mutex
	total    int
	sends    []string
	syncs    []string
	instruct []string
}

func newBackend(t *testing.T, totalMessages int) *backendRecorder {
	t.Helper()
	testutil.SkipIfNoNetwork(t)
	b := &backendRecorder{total: totalMessages}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/chat/history", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 20
		}
		before, _ := strconv.ParseInt(r.URL.Query().Get("before_id"), 10, 64)

		b.mu.Lock()
		upper := int64(b.total)
		b.mu.Unlock()
		if before > 0 && before-1 < upper {
			upper = before - 1
		}

		base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
		var messages []map[string]any
		lower := upper - int64(limit) + 1
		if lower < 1 {
			lower = 1
		}
		for id := upper; id >= lower; id-- {
			role := "user"
			if id%2 == 0 {
				role = "assistant"
			}
			messages = append(messages, map[string]any{
				"id":        id,
				"role":      role,
				"content":   fmt.Sprintf("message %d", id),
				"error":     false,
				"timestamp": base.Add(time.Duration(id) * time.Minute).Format("2006-01-02T15:04:05"),
			})
		}
		if messages == nil {
			messages = []map[string]any{}
		}
		writeJSON(w, map[string]any{"messages": messages, "has_more": lower > 1})
	})

	mux.HandleFunc("/api/chat/", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.mu.Lock()
		b.sends = append(b.sends, req.Message)
		b.mu.Unlock()
		writeJSON(w, map[string]any{"response": "understood", "message_id": 99})
	})

	mux.HandleFunc("/api/chat/ongoing-instruction", func(w http.ResponseWriter, r *http.Request) {
		instruction := r.URL.Query().Get("instruction")
		b.mu.Lock()
		b.instruct = append(b.instruct, instruction)
		b.mu.Unlock()
		writeJSON(w, map[string]any{"id": 1, "instruction": instruction, "trigger_type": "email_received"})
	})

	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"id": 1, "email": "pat@example.com", "name": "Pat",
			"google_email": "pat@gmail.com", "has_google": true, "has_hubspot": false,
		})
	})

	mux.HandleFunc("/api/integrations/sync/", func(w http.ResponseWriter, r *http.Request) {
		provider := strings.TrimPrefix(r.URL.Path, "/api/integrations/sync/")
		b.mu.Lock()
		b.syncs = append(b.syncs, provider)
		b.mu.Unlock()
		writeJSON(w, map[string]any{"message": "sync started"})
	})

	mux.HandleFunc("/api/integrations/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"google":  map[string]any{"connected": true, "email": "pat@gmail.com", "email_count": 10, "syncing": false},
			"hubspot": map[string]any{"connected": false, "contact_count": 0, "syncing": false},
		})
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (b *backendRecorder) sentMessages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.sends))
	copy(out, b.sends)
	return out
}

// newTestModel builds the surface against the fake backend with a real
// session, timeline, and orchestrator.
func newTestModel(t *testing.T, totalMessages int) (*Model, *backendRecorder) {
	t.Helper()
	backend := newBackend(t, totalMessages)

	client := api.New(backend.server.URL)
	store, err := session.OpenStore(filepath.Join(t.TempDir(), "advisor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	sess := session.New(client, store)
	_, err = sess.LoginWithToken(context.Background(), "test-token")
	require.NoError(t, err)

	pub := events.NewInMemoryPublisher()
	t.Cleanup(pub.Close)

	tl := timeline.NewController(client, sess, pub)
	orch := syncer.New(syncer.Config{PollInterval: time.Minute, AutoSyncDelay: time.Minute}, client, sess, pub)
	t.Cleanup(orch.Close)

	model, err := NewModel(Config{}, Deps{Session: sess, Timeline: tl, Syncer: orch, Events: pub})
	require.NoError(t, err)
	t.Cleanup(model.Close)
	return model, backend
}

func applyUpdate(t *testing.T, model *Model, msg tea.Msg) (*Model, tea.Cmd) {
	t.Helper()
	updated, cmd := model.Update(msg)
	m, ok := updated.(*Model)
	require.True(t, ok, "model type changed")
	return m, cmd
}

// runCmd executes a command tree synchronously and collects the
// resulting messages.
func runCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, sub := range batch {
			out = append(out, runCmd(sub)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func TestNewModelRejectsInvalidTheme(t *testing.T) {
	_, err := NewModel(Config{Theme: "matrix"}, Deps{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid theme")
}

func TestUpdateHandlesResizeAndQuit(t *testing.T) {
	model, _ := newTestModel(t, 0)

	model, _ = applyUpdate(t, model, tea.WindowSizeMsg{Width: 100, Height: 30})
	require.True(t, model.ready)
	require.Equal(t, 100, model.width)
	require.Equal(t, 98, model.viewport.Width)
	require.Equal(t, 30-chromeHeight(), model.viewport.Height)

	_, cmd := applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	require.IsType(t, tea.QuitMsg{}, cmd())
}

func TestSubmitSendsTypedMessage(t *testing.T) {
	model, backend := newTestModel(t, 2)
	model, _ = applyUpdate(t, model, tea.WindowSizeMsg{Width: 100, Height: 30})

	model.timeline.LoadInitial(context.Background())
	model.input.SetValue("what changed this week?")

	model, cmd := applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, model.thinking)
	require.Empty(t, model.input.Value())

	msgs := runCmd(cmd)
	require.Equal(t, []string{"what changed this week?"}, backend.sentMessages())

	var done bool
	for _, msg := range msgs {
		if typed, ok := msg.(sendDoneMsg); ok {
			done = true
			require.NoError(t, typed.err)
			model, _ = applyUpdate(t, model, typed)
		}
	}
	require.True(t, done, "send completion never reported")
	require.False(t, model.thinking)

	transcript := model.timeline.Messages()
	last := transcript[len(transcript)-1]
	require.Equal(t, models.RoleAssistant, last.Role)
	require.Equal(t, "understood", last.Content)
}

func TestSubmitIgnoresBlankInput(t *testing.T) {
	model, backend := newTestModel(t, 0)
	model, _ = applyUpdate(t, model, tea.WindowSizeMsg{Width: 100, Height: 30})

	model.input.SetValue("   ")
	_, cmd := applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, cmd)
	require.Empty(t, backend.sentMessages())
}

func TestPrependKeepsScrollAnchor(t *testing.T) {
	model, _ := newTestModel(t, 40)
	model, _ = applyUpdate(t, model, tea.WindowSizeMsg{Width: 80, Height: 24})

	model.timeline.LoadInitial(context.Background())
	model.handleEvent(events.Event{Type: events.EventTimelineReset})
	require.Greater(t, model.viewport.YOffset, 0, "expected transcript taller than the view")

	model.viewport.SetYOffset(2)
	oldLines := model.viewport.TotalLineCount()

	require.True(t, model.timeline.LoadOlder(context.Background()))
	model.handleEvent(events.Event{Type: events.EventTimelinePrepended, Payload: events.TimelinePrepended{Count: 20}})

	delta := model.viewport.TotalLineCount() - oldLines
	require.Greater(t, delta, 0)
	require.Equal(t, 2+delta, model.viewport.YOffset)
}

func TestAppendScrollsToBottom(t *testing.T) {
	model, _ := newTestModel(t, 40)
	model, _ = applyUpdate(t, model, tea.WindowSizeMsg{Width: 80, Height: 24})

	model.timeline.LoadInitial(context.Background())
	model.handleEvent(events.Event{Type: events.EventTimelineReset})
	model.viewport.SetYOffset(0)

	model.handleEvent(events.Event{Type: events.EventTimelineAppended})
	require.True(t, model.viewport.AtBottom())
}

func TestOverlayRendersAndDismisses(t *testing.T) {
	model, _ := newTestModel(t, 0)
	model, _ = applyUpdate(t, model, tea.WindowSizeMsg{Width: 100, Height: 30})

	require.NoError(t, model.syncer.Start(context.Background(), models.ProviderGmail, models.SyncModeRecent))
	model.handleEvent(events.Event{
		Type:    events.EventOverlay,
		Payload: events.Overlay{Visible: true, Service: models.ProviderGmail},
	})

	require.True(t, model.overlay.Visible)
	require.Contains(t, model.View(), "Syncing Gmail data")

	// Esc hands the dismissal to the orchestrator.
	model, _ = applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyEsc})
	require.False(t, model.syncer.Overlay().Visible)

	model.handleEvent(events.Event{
		Type:    events.EventOverlay,
		Payload: events.Overlay{Visible: false, Service: models.ProviderGmail},
	})
	require.False(t, model.overlay.Visible)
	require.NotContains(t, model.View(), "Syncing Gmail data")
}

func TestFlashLifecycle(t *testing.T) {
	model, _ := newTestModel(t, 0)
	model, _ = applyUpdate(t, model, tea.WindowSizeMsg{Width: 100, Height: 30})

	model, cmd := applyUpdate(t, model, flashMsg{text: "gmail sync failed: nope"})
	require.Equal(t, "gmail sync failed: nope", model.flash)
	require.NotNil(t, cmd, "expected a scheduled clear")
	require.Contains(t, model.View(), "gmail sync failed: nope")

	model, _ = applyUpdate(t, model, flashClearMsg{})
	require.Empty(t, model.flash)
}

func TestSlashCommandsRun(t *testing.T) {
	model, backend := newTestModel(t, 0)
	model, _ = applyUpdate(t, model, tea.WindowSizeMsg{Width: 100, Height: 30})

	model.input.SetValue("/instruct follow up on stale deals")
	_, cmd := applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	msgs := runCmd(cmd)
	require.Len(t, msgs, 1)
	flash, ok := msgs[0].(flashMsg)
	require.True(t, ok)
	require.Contains(t, flash.text, "instruction #1 saved")

	backend.mu.Lock()
	saved := append([]string(nil), backend.instruct...)
	backend.mu.Unlock()
	require.Equal(t, []string{"follow up on stale deals"}, saved)

	model.input.SetValue("/bogus")
	_, cmd = applyUpdate(t, model, tea.KeyMsg{Type: tea.KeyEnter})
	msgs = runCmd(cmd)
	require.Len(t, msgs, 1)
	flash, ok = msgs[0].(flashMsg)
	require.True(t, ok)
	require.Contains(t, flash.text, "unknown command")
}

func TestParseSyncArgs(t *testing.T) {
	linked := &models.User{HasGoogle: true, HasHubSpot: true}
	gmailOnly := &models.User{HasGoogle: true}

	tests := []struct {
		name      string
		args      []string
		user      *models.User
		providers []models.Provider
		mode      models.SyncMode
		wantErr   bool
	}{
		{
			name:      "explicit provider",
			args:      []string{"gmail"},
			user:      linked,
			providers: []models.Provider{models.ProviderGmail},
			mode:      models.SyncModeRecent,
		},
		{
			name:      "full mode",
			args:      []string{"hubspot", "full"},
			user:      linked,
			providers: []models.Provider{models.ProviderHubSpot},
			mode:      models.SyncModeFull,
		},
		{
			name:      "all providers",
			args:      []string{"all"},
			user:      gmailOnly,
			providers: []models.Provider{models.ProviderGmail, models.ProviderHubSpot},
			mode:      models.SyncModeRecent,
		},
		{
			name:      "defaults to linked",
			args:      nil,
			user:      gmailOnly,
			providers: []models.Provider{models.ProviderGmail},
			mode:      models.SyncModeRecent,
		},
		{
			name:    "unknown provider",
			args:    []string{"salesforce"},
			user:    linked,
			wantErr: true,
		},
		{
			name:    "nothing linked",
			args:    nil,
			user:    &models.User{},
			wantErr: true,
		},
		{
			name:    "signed out",
			args:    nil,
			user:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			providers, mode, err := parseSyncArgs(tt.args, tt.user)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.providers, providers)
			require.Equal(t, tt.mode, mode)
		})
	}
}

func TestRenderTranscript(t *testing.T) {
	st := newStyles(themeDefault)
	base := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

	messages := []models.Message{
		{ID: models.ConfirmedID(1), Role: models.RoleUser, Content: "hello there", Timestamp: base},
		{ID: models.ConfirmedID(2), Role: models.RoleAssistant, Content: "hi!", Timestamp: base.Add(time.Minute)},
		{ID: models.PendingID(), Role: models.RoleUser, Content: "still sending", Timestamp: base.Add(2 * time.Minute)},
		{ID: models.PendingID(), Role: models.RoleAssistant, Content: "Error: boom", Error: true, Timestamp: base.Add(3 * time.Minute)},
	}

	out := renderTranscript(messages, 60, true, st)
	require.Contains(t, out, "You")
	require.Contains(t, out, "Advisor")
	require.Contains(t, out, "hello there")
	require.Contains(t, out, "Error: boom")
	require.Contains(t, out, "· sending", "pending user message should show the sending marker")

	plain := renderTranscript(messages, 60, false, st)
	require.NotContains(t, plain, "·", "timestamps disabled should drop the clock column")
}
