// Package tui holds the small interactive prompts: the hidden API-token
// prompt used when CANVAS_PAT is not set, and the yes/no confirms. Both
// follow the bubbletea model/update/view shape.
package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrAborted is returned when the user cancels a prompt.
var ErrAborted = errors.New("tui: aborted by user")

var promptStyle = lipgloss.NewStyle().Bold(true)

type tokenModel struct {
	input   textinput.Model
	done    bool
	aborted bool
}

func newTokenModel() tokenModel {
	input := textinput.New()
	input.Placeholder = "Canvas API token"
	input.EchoMode = textinput.EchoPassword
	input.EchoCharacter = '*'
	input.Focus()
	return tokenModel{input: input}
}

func (m tokenModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m tokenModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.aborted = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m tokenModel) View() string {
	if m.done || m.aborted {
		return ""
	}
	return promptStyle.Render("Paste your Canvas API token and press enter:") + "\n" + m.input.View() + "\n"
}

// PromptToken asks for the API token without echoing it. See the Canvas
// instructor guide for how to set up API access tokens.
func PromptToken() (string, error) {
	final, err := tea.NewProgram(newTokenModel()).Run()
	if err != nil {
		return "", fmt.Errorf("tui: token prompt: %w", err)
	}
	m := final.(tokenModel)
	if m.aborted {
		return "", ErrAborted
	}
	token := strings.TrimSpace(m.input.Value())
	if token == "" {
		return "", errors.New("tui: no token entered")
	}
	return token, nil
}

type confirmModel struct {
	question string
	def      bool
	answer   bool
	answered bool
	aborted  bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.aborted = true
		return m, tea.Quit
	case tea.KeyEnter:
		m.answer = m.def
		m.answered = true
		return m, tea.Quit
	}
	switch strings.ToLower(key.String()) {
	case "y":
		m.answer = true
		m.answered = true
		return m, tea.Quit
	case "n":
		m.answer = false
		m.answered = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.answered || m.aborted {
		return ""
	}
	hint := "[Y/n]"
	if !m.def {
		hint = "[y/N]"
	}
	return fmt.Sprintf("%s %s ", promptStyle.Render(m.question), hint)
}

// Confirm asks a yes/no question; enter picks the default.
func Confirm(question string, def bool) (bool, error) {
	final, err := tea.NewProgram(confirmModel{question: question, def: def}).Run()
	if err != nil {
		return false, fmt.Errorf("tui: confirm prompt: %w", err)
	}
	m := final.(confirmModel)
	if m.aborted {
		return false, ErrAborted
	}
	return m.answer, nil
}
