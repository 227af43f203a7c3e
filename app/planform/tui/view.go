package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	userStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	agentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	systemStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	traceStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("236")).Padding(0, 1)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
)

// View renders the feed, prompt bar, and status bar.
func (m Model) View() string {
	if !m.ready {
		return "loading..."
	}
	var b strings.Builder
	b.WriteString(m.feed.View())
	b.WriteString("\n")
	if m.streaming {
		b.WriteString(m.spinner.View() + " thinking\n")
	} else {
		b.WriteString("\n")
	}
	b.WriteString(promptStyle.Render("> ") + m.input.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m Model) renderMessages() string {
	var b strings.Builder
	for _, msg := range m.messages {
		switch msg.Role {
		case RoleUser:
			b.WriteString(userStyle.Render("you") + "  " + msg.Text)
		case RoleAgent:
			b.WriteString(agentStyle.Render("agent") + "\n" + renderAgentText(msg.Text))
		case RoleSystem:
			b.WriteString(systemStyle.Render(msg.Text))
		}
		b.WriteString("\n\n")
	}
	if m.streaming && m.streamBuf != "" {
		b.WriteString(agentStyle.Render("agent") + "\n" + renderAgentText(m.streamBuf))
		b.WriteString("\n")
	}
	return b.String()
}

// renderAgentText dims the bracketed trace lines the server interleaves with
// prose so tool activity stays visible without dominating the feed.
func renderAgentText(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "[") {
			lines[i] = traceStyle.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderStatusBar() string {
	left := fmt.Sprintf("project %s | session %s", m.client.ProjectID, m.client.SessionID)
	if m.summary != nil {
		left += fmt.Sprintf(" | last turn: %dms, %d tool calls, %d transfers",
			m.summary.ElapsedMS, m.summary.ToolCalls, m.summary.AgentTransfers)
	}
	return statusStyle.Width(m.width).Render(left)
}
