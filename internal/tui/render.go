package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"advisor/internal/models"
)

const (
	themeDefault      = "default"
	themeHighContrast = "high-contrast"
)

type styles struct {
	headerBar      lipgloss.Style
	headerTitle    lipgloss.Style
	headerIdentity lipgloss.Style

	userLabel      lipgloss.Style
	assistantLabel lipgloss.Style
	content        lipgloss.Style
	errorText      lipgloss.Style
	timestamp      lipgloss.Style

	chatFrame  lipgloss.Style
	inputFrame lipgloss.Style

	statusBar  lipgloss.Style
	syncActive lipgloss.Style
	syncIdle   lipgloss.Style
	muted      lipgloss.Style
	flash      lipgloss.Style
	spinner    lipgloss.Style

	overlayBox   lipgloss.Style
	overlayTitle lipgloss.Style
	overlayHint  lipgloss.Style
}

func newStyles(theme string) styles {
	accent := lipgloss.Color("#3B82F6")
	assistant := lipgloss.Color("#10B981")
	errColor := lipgloss.Color("#EF4444")
	mutedColor := lipgloss.Color("#94A3B8")
	border := lipgloss.Color("#334155")
	text := lipgloss.Color("#E2E8F0")

	if theme == themeHighContrast {
		accent = lipgloss.Color("#00BFFF")
		assistant = lipgloss.Color("#00FF7F")
		errColor = lipgloss.Color("#FF4040")
		mutedColor = lipgloss.Color("#C0C0C0")
		border = lipgloss.Color("#FFFFFF")
		text = lipgloss.Color("#FFFFFF")
	}

	return styles{
		headerBar:      lipgloss.NewStyle().Padding(0, 1),
		headerTitle:    lipgloss.NewStyle().Bold(true).Foreground(accent),
		headerIdentity: lipgloss.NewStyle().Foreground(mutedColor),

		userLabel:      lipgloss.NewStyle().Bold(true).Foreground(accent),
		assistantLabel: lipgloss.NewStyle().Bold(true).Foreground(assistant),
		content:        lipgloss.NewStyle().Foreground(text).PaddingLeft(2),
		errorText:      lipgloss.NewStyle().Foreground(errColor).PaddingLeft(2),
		timestamp:      lipgloss.NewStyle().Foreground(mutedColor),

		chatFrame:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(border),
		inputFrame: lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent),

		statusBar:  lipgloss.NewStyle().Padding(0, 1),
		syncActive: lipgloss.NewStyle().Foreground(accent),
		syncIdle:   lipgloss.NewStyle().Foreground(assistant),
		muted:      lipgloss.NewStyle().Foreground(mutedColor),
		flash:      lipgloss.NewStyle().Foreground(errColor),
		spinner:    lipgloss.NewStyle().Foreground(accent),

		overlayBox:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(1, 3),
		overlayTitle: lipgloss.NewStyle().Bold(true).Foreground(accent),
		overlayHint:  lipgloss.NewStyle().Foreground(mutedColor),
	}
}

// renderTranscript renders messages oldest first into the scrollback
// content.
func renderTranscript(messages []models.Message, width int, showTimestamps bool, st styles) string {
	if width < 1 {
		width = 1
	}
	blocks := make([]string, 0, len(messages))
	for _, msg := range messages {
		blocks = append(blocks, renderMessage(msg, width, showTimestamps, st))
	}
	return strings.Join(blocks, "\n\n")
}

func renderMessage(msg models.Message, width int, showTimestamps bool, st styles) string {
	label := st.assistantLabel.Render("Advisor")
	if msg.Role == models.RoleUser {
		label = st.userLabel.Render("You")
	}

	if showTimestamps {
		stamp := msg.Timestamp.Local().Format("15:04")
		if msg.Role == models.RoleUser && msg.ID.IsPending() {
			stamp = "sending"
		}
		label += " " + st.timestamp.Render("· "+stamp)
	}

	body := st.content
	if msg.Error {
		body = st.errorText
	}
	return label + "\n" + body.Width(width).Render(msg.Content)
}

func (m *Model) renderHeader() string {
	title := m.styles.headerTitle.Render("Advisor")

	identity := "not signed in"
	if m.user != nil {
		identity = m.user.DisplayName()
	}
	right := m.styles.headerIdentity.Render(identity)

	gap := m.width - lipgloss.Width(title) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.styles.headerBar.Render(title + strings.Repeat(" ", gap) + right)
}

func (m *Model) renderChatArea() string {
	view := m.viewport.View()
	if m.overlay.Visible {
		view = m.renderOverlay()
	}
	return m.styles.chatFrame.Width(m.viewport.Width).Height(m.viewport.Height).Render(view)
}

// renderOverlay fills the chat area with the centered sync progress
// modal.
func (m *Model) renderOverlay() string {
	service := "your account"
	if m.overlay.Service != "" {
		service = m.overlay.Service.DisplayName()
	}

	lines := []string{
		m.styles.overlayTitle.Render(fmt.Sprintf("%s Syncing %s data", m.spin.View(), service)),
		"",
		"Importing in the background. A first import",
		"can take a few minutes.",
		"",
		m.styles.overlayHint.Render("esc to hide"),
	}
	box := m.styles.overlayBox.Render(strings.Join(lines, "\n"))
	return lipgloss.Place(m.viewport.Width, m.viewport.Height, lipgloss.Center, lipgloss.Center, box)
}

func (m *Model) renderStatusBar() string {
	var left []string
	for _, provider := range models.Providers() {
		left = append(left, m.renderProviderBadge(provider))
	}

	var right string
	switch {
	case m.flash != "":
		right = m.styles.flash.Render(m.flash)
	case m.thinking:
		right = m.styles.syncActive.Render(m.spin.View() + " thinking")
	case m.viewport.TotalLineCount() > m.viewport.Height:
		right = m.styles.muted.Render(fmt.Sprintf("%d%%", int(m.viewport.ScrollPercent()*100)))
	}

	leftText := strings.Join(left, "  ")
	gap := m.width - lipgloss.Width(leftText) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.styles.statusBar.Render(leftText + strings.Repeat(" ", gap) + right)
}

func (m *Model) renderProviderBadge(provider models.Provider) string {
	state := m.syncer.State(provider)
	name := provider.DisplayName()

	switch {
	case state.Syncing:
		badge := "⟳ " + name
		if state.Mode != "" {
			badge += fmt.Sprintf(" (%s)", state.Mode)
		}
		return m.styles.syncActive.Render(badge)
	case m.user != nil && m.user.Linked(provider):
		return m.styles.syncIdle.Render("● " + name)
	default:
		return m.styles.muted.Render("○ " + name)
	}
}

func (m *Model) renderInputArea() string {
	return m.styles.inputFrame.Width(m.width - 2).Render(m.input.View())
}
