// ABOUTME: Bubble Tea model for the terminal chat client: transcript viewport plus input line.
// ABOUTME: Sends each submitted line as a turn and appends the rendered action to the transcript.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/formpilot-ai/formpilot/action"
)

// responseMsg carries a completed turn back into the update loop.
type responseMsg struct {
	resp *ChatResponse
}

// errMsg carries a failed turn.
type errMsg struct {
	err error
}

// Model is the chat client's Bubble Tea model.
type Model struct {
	client      *Client
	formContext string

	conversationID string
	lastAction     action.Action
	transcript     []string
	waiting        bool
	done           bool

	viewport viewport.Model
	input    textinput.Model
	width    int
	height   int
	err      error
}

// NewModel builds the chat model. The greeting turn is requested by Init.
func NewModel(client *Client, formContext string) Model {
	ti := textinput.New()
	ti.Placeholder = "Type your answer..."
	ti.Focus()
	ti.CharLimit = 512

	vp := viewport.New(80, 20)

	return Model{
		client:      client,
		formContext: formContext,
		viewport:    vp,
		input:       ti,
		waiting:     true,
	}
}

// Init requests the greeting turn.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.sendTurn(""))
}

// sendTurn posts one user message as a tea command.
func (m Model) sendTurn(userMessage string) tea.Cmd {
	client := m.client
	formContext := m.formContext
	conversationID := m.conversationID
	return func() tea.Msg {
		resp, err := client.Chat(context.Background(), formContext, conversationID, userMessage, nil)
		if err != nil {
			return errMsg{err}
		}
		return responseMsg{resp}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = msg.Height - 6
		m.input.Width = msg.Width - 8
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.waiting || m.done {
				if m.done {
					return m, tea.Quit
				}
				return m, nil
			}
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			if m.lastAction.Kind == action.KindAskDropdown || m.lastAction.Kind == action.KindAskCheckbox {
				text = ResolveOption(text, m.lastAction.Options)
			}
			m.transcript = append(m.transcript, UserStyle.Render("you: ")+text)
			m.input.Reset()
			m.waiting = true
			m.refreshViewport()
			return m, m.sendTurn(text)
		}

	case responseMsg:
		m.waiting = false
		m.err = nil
		m.conversationID = msg.resp.ConversationID
		m.lastAction = msg.resp.Action
		m.appendAction(msg.resp.Action)
		if msg.resp.Action.Kind == action.KindFormComplete {
			m.done = true
			m.transcript = append(m.transcript, "", "(press enter to exit)")
		}
		m.refreshViewport()
		return m, nil

	case errMsg:
		m.waiting = false
		m.err = msg.err
		m.transcript = append(m.transcript, ErrorStyle.Render("error: ")+msg.err.Error())
		m.refreshViewport()
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// appendAction renders an action into the transcript with role styling.
func (m *Model) appendAction(act action.Action) {
	text := RenderAction(act)
	style := AssistantStyle
	switch act.Kind {
	case action.KindToolCall:
		style = ToolStyle
	case action.KindFormComplete:
		style = CompleteStyle
	}
	m.transcript = append(m.transcript, style.Render("formpilot: ")+text)
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(strings.Join(m.transcript, "\n\n"))
	m.viewport.GotoBottom()
}

// View implements tea.Model.
func (m Model) View() string {
	title := TitleStyle.Render("FormPilot Chat")

	status := "ready"
	switch {
	case m.waiting:
		status = "thinking..."
	case m.done:
		status = "form complete"
	case m.err != nil:
		status = "error"
	}
	bar := StatusBarStyle.Render(fmt.Sprintf("%s | session %s", status, shortID(m.conversationID)))

	return lipgloss.JoinVertical(lipgloss.Left,
		title,
		BorderStyle.Render(m.viewport.View()),
		m.input.View(),
		bar,
	)
}

func shortID(id string) string {
	if len(id) <= 8 {
		if id == "" {
			return "new"
		}
		return id
	}
	return id[:8]
}
