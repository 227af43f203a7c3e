package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lexcodex/planform/framework"
)

// Run starts the interactive chat session against a running server.
func Run(serverURL, projectID, sessionID string) error {
	if sessionID == "" {
		sessionID = "default"
	}
	model := NewModel(NewClient(serverURL, projectID, sessionID))
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

// MessageRole identifies the role of each entry in the feed.
type MessageRole string

const (
	RoleUser   MessageRole = "user"
	RoleAgent  MessageRole = "agent"
	RoleSystem MessageRole = "system"
)

// Message is one entry in the scrollback feed.
type Message struct {
	Role      MessageRole
	Text      string
	Timestamp time.Time
}

// Model implements the Bubble Tea Model interface for the chat client.
type Model struct {
	client *Client

	feed    viewport.Model
	input   textinput.Model
	spinner spinner.Model

	messages []Message
	summary  *framework.StreamSummaryData

	width  int
	height int
	ready  bool

	streaming bool
	streamBuf string
	streamCh  chan tea.Msg
}

// StreamChunkMsg carries one prose chunk from the SSE stream.
type StreamChunkMsg struct{ Text string }

// StreamCompleteMsg closes a turn with the server's summary.
type StreamCompleteMsg struct{ Summary *framework.StreamSummaryData }

// StreamErrorMsg wraps transport or agent failures for display.
type StreamErrorMsg struct{ Err error }

// NewModel initializes the feed, prompt, and spinner components.
func NewModel(client *Client) Model {
	input := textinput.New()
	input.Placeholder = "Type a message, /reset to clear, /quit to exit"
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		client:  client,
		input:   input,
		spinner: sp,
	}
}

// Init fulfills the Bubble Tea Model interface.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update applies incoming Bubble Tea messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			return m, tea.Quit
		case "enter":
			return m.submitPrompt()
		case "up", "down", "pgup", "pgdown", "home", "end":
			var cmd tea.Cmd
			m.feed, cmd = m.feed.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case StreamChunkMsg:
		m.streamBuf += msg.Text
		m = m.refreshFeed()
		return m, listenToStream(m.streamCh)
	case StreamCompleteMsg:
		return m.finishTurn(msg.Summary, nil), nil
	case StreamErrorMsg:
		return m.finishTurn(nil, msg.Err), nil
	}
	return m, nil
}

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	feedHeight := msg.Height - 4
	if feedHeight < 1 {
		feedHeight = 1
	}
	if !m.ready {
		m.feed = viewport.New(msg.Width, feedHeight)
		m.ready = true
	} else {
		m.feed.Width = msg.Width
		m.feed.Height = feedHeight
	}
	m.input.Width = msg.Width - 4
	return m.refreshFeed(), nil
}

// submitPrompt sends the current input as a chat turn, or handles the few
// local slash commands.
func (m Model) submitPrompt() (tea.Model, tea.Cmd) {
	value := strings.TrimSpace(m.input.Value())
	if value == "" || m.streaming {
		return m, nil
	}
	m.input.SetValue("")

	switch value {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/reset":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := m.client.Reset(ctx); err != nil {
			return m.addSystem(fmt.Sprintf("Reset failed: %v", err)), nil
		}
		m.messages = nil
		m.summary = nil
		return m.addSystem("Session reset"), nil
	}

	m.messages = append(m.messages, Message{Role: RoleUser, Text: value, Timestamp: time.Now()})
	m.streaming = true
	m.streamBuf = ""
	m.summary = nil

	ch := make(chan tea.Msg)
	m.streamCh = ch
	go m.runStream(ch, value)
	m = m.refreshFeed()
	return m, tea.Batch(m.spinner.Tick, listenToStream(ch))
}

// runStream consumes the SSE response and forwards frames into the program.
func (m Model) runStream(ch chan tea.Msg, prompt string) {
	err := m.client.Stream(context.Background(), prompt, func(e framework.StreamEvent) {
		switch e.Type {
		case framework.StreamProse:
			ch <- StreamChunkMsg{Text: e.Text}
		case framework.StreamError:
			ch <- StreamErrorMsg{Err: fmt.Errorf("%s", e.Text)}
		case framework.StreamSummary:
			ch <- StreamCompleteMsg{Summary: e.Summary}
		}
	})
	if err != nil {
		ch <- StreamErrorMsg{Err: err}
	} else {
		ch <- StreamCompleteMsg{}
	}
	close(ch)
}

// listenToStream yields the next message from the stream channel.
func listenToStream(ch chan tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m Model) finishTurn(summary *framework.StreamSummaryData, err error) Model {
	if !m.streaming {
		return m
	}
	m.streaming = false
	if m.streamBuf != "" {
		m.messages = append(m.messages, Message{Role: RoleAgent, Text: m.streamBuf, Timestamp: time.Now()})
	}
	m.streamBuf = ""
	m.streamCh = nil
	if summary != nil {
		m.summary = summary
	}
	if err != nil {
		return m.addSystem(fmt.Sprintf("Stream error: %v", err))
	}
	return m.refreshFeed()
}

func (m Model) addSystem(text string) Model {
	m.messages = append(m.messages, Message{Role: RoleSystem, Text: text, Timestamp: time.Now()})
	return m.refreshFeed()
}

func (m Model) refreshFeed() Model {
	if !m.ready {
		return m
	}
	m.feed.SetContent(m.renderMessages())
	m.feed.GotoBottom()
	return m
}
