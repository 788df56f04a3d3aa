// Package tui is the interactive chat surface: a scrollback transcript,
// an input box, the sync progress overlay, and a status bar, all driven
// by the timeline controller and sync orchestrator through events.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"advisor/internal/events"
	"advisor/internal/logging"
	"advisor/internal/models"
	"advisor/internal/session"
	"advisor/internal/syncer"
	"advisor/internal/timeline"
)

const (
	inputHeight   = 3
	flashDuration = 4 * time.Second
)

// Config holds presentation settings.
type Config struct {
	// Theme selects the color palette ("default" or "high-contrast").
	Theme string

	// ShowTimestamps renders a clock next to each message.
	ShowTimestamps bool

	// AutoSync kicks off the startup sync for linked providers.
	AutoSync bool
}

func (c Config) normalize() (Config, error) {
	if strings.TrimSpace(c.Theme) == "" {
		c.Theme = themeDefault
	}
	switch c.Theme {
	case themeDefault, themeHighContrast:
	default:
		return Config{}, fmt.Errorf("invalid theme %q", c.Theme)
	}
	return c, nil
}

// Deps are the live collaborators the chat surface drives.
type Deps struct {
	Session  *session.Session
	Timeline *timeline.Controller
	Syncer   *syncer.Orchestrator
	Events   events.Publisher
}

// eventMsg wraps a controller event forwarded into the program loop.
type eventMsg struct {
	event events.Event
}

type sendDoneMsg struct {
	err error
}

type flashMsg struct {
	text string
}

type flashClearMsg struct{}

func flashCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return flashMsg{text: text}
	}
}

// Model is the bubbletea model for the chat surface.
type Model struct {
	cfg      Config
	session  *session.Session
	timeline *timeline.Controller
	syncer   *syncer.Orchestrator
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	input    textarea.Model
	viewport viewport.Model
	spin     spinner.Model
	styles   styles

	user     *models.User
	overlay  syncer.OverlayState
	flash    string
	thinking bool

	width  int
	height int
	ready  bool
}

// NewModel creates the chat surface model.
func NewModel(cfg Config, deps Deps) (*Model, error) {
	normalized, err := cfg.normalize()
	if err != nil {
		return nil, err
	}
	if deps.Session == nil || deps.Timeline == nil || deps.Syncer == nil {
		return nil, errors.New("chat surface needs session, timeline and syncer")
	}

	st := newStyles(normalized.Theme)

	input := textarea.New()
	input.Placeholder = "Ask about your clients, email, or follow-ups..."
	input.Prompt = "┃ "
	input.CharLimit = 4000
	input.SetHeight(inputHeight)
	input.ShowLineNumbers = false
	input.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	input.Focus()

	spin := spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(st.spinner))

	ctx, cancel := context.WithCancel(context.Background())
	return &Model{
		cfg:      normalized,
		session:  deps.Session,
		timeline: deps.Timeline,
		syncer:   deps.Syncer,
		logger:   logging.Component("tui"),
		ctx:      ctx,
		cancel:   cancel,
		input:    input,
		spin:     spin,
		styles:   st,
		user:     deps.Session.User(),
	}, nil
}

// Run builds the model, bridges controller events into the program loop,
// and blocks until the surface exits.
func Run(cfg Config, deps Deps) error {
	model, err := NewModel(cfg, deps)
	if err != nil {
		return err
	}
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())

	if deps.Events != nil {
		err := deps.Events.Subscribe("tui", events.Filter{}, func(e events.Event) {
			program.Send(eventMsg{event: e})
		})
		if err != nil {
			return fmt.Errorf("subscribe tui events: %w", err)
		}
		defer func() {
			_ = deps.Events.Unsubscribe("tui")
		}()
	}

	_, err = program.Run()
	return err
}

// Close cancels work started by the surface.
func (m *Model) Close() {
	m.cancel()
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.loadInitialCmd()}
	if m.cfg.AutoSync {
		cmds = append(cmds, m.autoSyncCmd())
	}
	return tea.Batch(cmds...)
}

func (m *Model) loadInitialCmd() tea.Cmd {
	return func() tea.Msg {
		m.timeline.LoadInitial(m.ctx)
		return nil
	}
}

func (m *Model) autoSyncCmd() tea.Cmd {
	return func() tea.Msg {
		m.syncer.AutoSync(m.ctx)
		return nil
	}
}

func (m *Model) loadOlderCmd() tea.Cmd {
	return func() tea.Msg {
		m.timeline.LoadOlder(m.ctx)
		return nil
	}
}

func (m *Model) sendCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return sendDoneMsg{err: m.timeline.Send(m.ctx, text)}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(typed.Width, typed.Height)
		return m, nil

	case eventMsg:
		return m, m.handleEvent(typed.event)

	case sendDoneMsg:
		m.thinking = false
		if typed.err != nil {
			if errors.Is(typed.err, session.ErrNotAuthenticated) {
				return m, flashCmd("not signed in - run: advisor login")
			}
			if !errors.Is(typed.err, timeline.ErrEmptyMessage) {
				return m, flashCmd(typed.err.Error())
			}
		}
		return m, nil

	case flashMsg:
		m.flash = typed.text
		return m, tea.Tick(flashDuration, func(time.Time) tea.Msg {
			return flashClearMsg{}
		})

	case flashClearMsg:
		m.flash = ""
		return m, nil

	case spinner.TickMsg:
		if !m.thinking && !m.overlay.Visible {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(typed)
		return m, cmd

	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.overlay.Visible {
				m.syncer.Dismiss()
				return m, nil
			}
		case "ctrl+r":
			return m, m.loadInitialCmd()
		case "enter":
			return m, m.submit()
		}
	}

	return m, m.updateComponents(msg)
}

// updateComponents forwards a message to the input and the viewport, and
// pages in older history when an upward scroll lands near the top.
func (m *Model) updateComponents(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	prevOffset := m.viewport.YOffset
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	if m.viewport.YOffset < prevOffset && m.timeline.ShouldLoadOlder(m.viewport.YOffset) {
		cmds = append(cmds, m.loadOlderCmd())
	}
	return tea.Batch(cmds...)
}

// submit sends the typed message, or runs it as a command when it starts
// with a slash.
func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	m.input.Reset()

	if strings.HasPrefix(text, "/") {
		return m.runCommand(text)
	}

	m.thinking = true
	return tea.Batch(m.sendCmd(text), m.spin.Tick)
}

// runCommand handles the slash commands typed into the input box.
func (m *Model) runCommand(text string) tea.Cmd {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/help":
		return flashCmd("commands: /sync [gmail|hubspot|all] [full], /instruct <text>  (ctrl+r reload, esc hide overlay)")

	case "/sync":
		providers, mode, err := parseSyncArgs(fields[1:], m.user)
		if err != nil {
			return flashCmd(err.Error())
		}
		return tea.Batch(m.startSyncCmd(providers, mode), m.spin.Tick)

	case "/instruct":
		instruction := strings.TrimSpace(strings.TrimPrefix(text, "/instruct"))
		if instruction == "" {
			return flashCmd("usage: /instruct <text>")
		}
		return m.instructCmd(instruction)

	default:
		return flashCmd(fmt.Sprintf("unknown command %s (try /help)", fields[0]))
	}
}

// parseSyncArgs resolves "/sync" arguments to providers and a mode.
// Without a provider it targets everything the user has linked.
func parseSyncArgs(args []string, user *models.User) ([]models.Provider, models.SyncMode, error) {
	mode := models.SyncModeRecent
	var providers []models.Provider

	for _, arg := range args {
		switch strings.ToLower(arg) {
		case "full", "all-history":
			mode = models.SyncModeFull
		case "all":
			providers = models.Providers()
		default:
			provider, err := models.ParseProvider(arg)
			if err != nil {
				return nil, "", fmt.Errorf("unknown provider %q (gmail or hubspot)", arg)
			}
			providers = append(providers, provider)
		}
	}

	if len(providers) == 0 {
		if user == nil {
			return nil, "", errors.New("not signed in - run: advisor login")
		}
		for _, provider := range models.Providers() {
			if user.Linked(provider) {
				providers = append(providers, provider)
			}
		}
		if len(providers) == 0 {
			return nil, "", errors.New("no providers linked yet")
		}
	}
	return providers, mode, nil
}

func (m *Model) startSyncCmd(providers []models.Provider, mode models.SyncMode) tea.Cmd {
	return func() tea.Msg {
		var names []string
		for _, provider := range providers {
			if err := m.syncer.Start(m.ctx, provider, mode); err != nil {
				if errors.Is(err, session.ErrNotAuthenticated) {
					return flashMsg{text: "not signed in - run: advisor login"}
				}
				// The orchestrator already raised an alert for this.
				continue
			}
			names = append(names, provider.DisplayName())
		}
		if len(names) == 0 {
			return nil
		}
		return flashMsg{text: fmt.Sprintf("%s sync started", strings.Join(names, " and "))}
	}
}

func (m *Model) instructCmd(instruction string) tea.Cmd {
	return func() tea.Msg {
		saved, err := m.session.Client().AddInstruction(m.ctx, instruction, "")
		if err != nil {
			return flashMsg{text: "instruction failed: " + err.Error()}
		}
		return flashMsg{text: fmt.Sprintf("instruction #%d saved", saved.ID)}
	}
}

// handleEvent applies a controller event to the surface.
func (m *Model) handleEvent(event events.Event) tea.Cmd {
	switch event.Type {
	case events.EventTimelineReset:
		m.refreshViewport()
		m.viewport.GotoBottom()

	case events.EventTimelinePrepended:
		// Older history grows the transcript above the view. Push the
		// offset down by the added height so the anchored entry stays
		// where the reader left it.
		oldLines := m.viewport.TotalLineCount()
		oldOffset := m.viewport.YOffset
		m.refreshViewport()
		delta := m.viewport.TotalLineCount() - oldLines
		if delta > 0 {
			m.viewport.SetYOffset(oldOffset + delta)
		}

	case events.EventTimelineAppended:
		m.refreshViewport()
		m.viewport.GotoBottom()

	case events.EventTimelineUpdated:
		m.refreshViewport()

	case events.EventOverlay:
		if payload, ok := event.Payload.(events.Overlay); ok {
			wasVisible := m.overlay.Visible
			m.overlay = syncer.OverlayState{Visible: payload.Visible, Service: payload.Service}
			if m.overlay.Visible && !wasVisible {
				return m.spin.Tick
			}
		}

	case events.EventSyncAlert:
		if payload, ok := event.Payload.(events.SyncAlert); ok {
			return flashCmd(fmt.Sprintf("%s sync failed: %s", payload.Provider.DisplayName(), payload.Message))
		}

	case events.EventProfileRefreshed:
		m.user = m.session.User()
	}
	return nil
}

// resize recomputes component dimensions from the terminal size.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	chatWidth := width - 2
	chatHeight := height - chromeHeight()
	if chatWidth < 1 {
		chatWidth = 1
	}
	if chatHeight < 1 {
		chatHeight = 1
	}

	if !m.ready {
		m.viewport = viewport.New(chatWidth, chatHeight)
		m.viewport.KeyMap = viewport.KeyMap{
			PageDown:     key.NewBinding(key.WithKeys("pgdown")),
			PageUp:       key.NewBinding(key.WithKeys("pgup")),
			HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
			HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
			Up:           key.NewBinding(key.WithKeys("ctrl+up")),
			Down:         key.NewBinding(key.WithKeys("ctrl+down")),
		}
		m.ready = true
		m.refreshViewport()
		m.viewport.GotoBottom()
	} else {
		m.viewport.Width = chatWidth
		m.viewport.Height = chatHeight
		m.refreshViewport()
	}

	m.input.SetWidth(chatWidth - 2)
}

// chromeHeight is the rows taken by everything except the transcript:
// header, status bar, and the bordered input box.
func chromeHeight() int {
	return 1 + 1 + inputHeight + 2 + 2
}

func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	content := renderTranscript(m.timeline.Messages(), m.viewport.Width-2, m.cfg.ShowTimestamps, m.styles)
	m.viewport.SetContent(content)
}

func (m *Model) View() string {
	if !m.ready {
		return "starting..."
	}
	header := m.renderHeader()
	chat := m.renderChatArea()
	status := m.renderStatusBar()
	input := m.renderInputArea()
	return strings.Join([]string{header, chat, status, input}, "\n")
}
