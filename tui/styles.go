// ABOUTME: Lipgloss style constants for the chat client layout and transcript roles.
// ABOUTME: Assistant, user, tool, and error lines each get their own color.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	UserStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	AssistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	ToolStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	OptionStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	ErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	CompleteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)

	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)
)
