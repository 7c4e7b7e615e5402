// Package tui is the terminal front end of the console: the line log in a
// scrolling viewport, a command box, the connection status, and a panel of
// snippets that can be run in the shell.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gangaflow/console/internal/bus"
	"github.com/gangaflow/console/internal/console"
	"github.com/gangaflow/console/internal/snippets"
)

const (
	panelWidth = 38
	// header, blank line, input, help
	chromeHeight = 4
)

const helpText = "enter send • ↑/↓ history • ctrl+l clear • ctrl+r reconnect • tab snippets • ctrl+o run snippet • ctrl+c quit"

// Config wires the model to a running console.
type Config struct {
	Manager    *console.Manager
	Dispatcher *console.Dispatcher

	// Snippets fill the side panel. Running one publishes it on SnippetTopic.
	Snippets     []snippets.Snippet
	SnippetTopic *bus.Topic[console.SnippetRequest]

	// Focus is signalled when the command box should take focus.
	Focus <-chan struct{}
}

type changedMsg struct{}

type statusMsg console.StatusEvent

type focusMsg struct{}

// Model is the bubbletea model of the console.
type Model struct {
	cfg    Config
	status *bus.Subscription[console.StatusEvent]

	viewport viewport.Model
	input    textinput.Model

	state     console.State
	connected bool

	showSnippets bool
	selected     int

	width, height int
}

// New creates the model. The caller keeps ownership of the Manager; the
// model closes it when the user quits.
func New(cfg Config) Model {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render("ganga > ")
	ti.Placeholder = "enter ganga command…"
	ti.CharLimit = 0
	ti.Focus()

	m := Model{
		cfg:       cfg,
		status:    cfg.Manager.SubscribeStatus(),
		viewport:  viewport.New(0, 0),
		input:     ti,
		state:     cfg.Manager.State(),
		connected: cfg.Manager.Connected(),
	}
	m.render()
	return m
}

// Init starts listening for line log, status and focus changes.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitChanges(), m.waitStatus(), m.waitFocus())
}

func (m Model) waitChanges() tea.Cmd {
	ch := m.cfg.Manager.Changes()
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func (m Model) waitStatus() tea.Cmd {
	sub := m.status
	return func() tea.Msg {
		ev, ok := <-sub.C()
		if !ok {
			return nil
		}
		return statusMsg(ev)
	}
}

func (m Model) waitFocus() tea.Cmd {
	if m.cfg.Focus == nil {
		return nil
	}
	ch := m.cfg.Focus
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return focusMsg{}
	}
}

// Update handles a message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case changedMsg:
		m.render()
		return m, m.waitChanges()

	case statusMsg:
		m.state = msg.State
		m.connected = msg.Connected
		return m, m.waitStatus()

	case focusMsg:
		return m, tea.Batch(m.input.Focus(), m.waitFocus())

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.cfg.Dispatcher.SetInput(m.input.Value())
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	d := m.cfg.Dispatcher

	switch msg.String() {
	case "ctrl+c", "esc":
		m.status.Close()
		m.cfg.Manager.Close()
		return tea.Quit, true

	case "enter":
		// Failures are reported on the line log and keep the text.
		_ = d.Submit(m.input.Value())
		m.setInput(d.Input())
		return nil, true

	case "up":
		m.setInput(d.RecallPrevious())
		return nil, true

	case "down":
		m.setInput(d.RecallNext())
		return nil, true

	case "ctrl+l":
		m.cfg.Manager.Clear()
		return nil, true

	case "ctrl+r":
		m.cfg.Manager.Reconnect()
		return nil, true

	case "tab", "shift+tab":
		if len(m.cfg.Snippets) == 0 {
			return nil, true
		}
		if !m.showSnippets {
			m.showSnippets = true
			m.layout()
			return nil, true
		}
		step := 1
		if msg.String() == "shift+tab" {
			step = len(m.cfg.Snippets) - 1
		}
		m.selected = (m.selected + step) % len(m.cfg.Snippets)
		return nil, true

	case "ctrl+t":
		m.showSnippets = !m.showSnippets
		m.layout()
		return nil, true

	case "ctrl+o":
		m.runSelected()
		return nil, true

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd, true
	}
	return nil, false
}

func (m *Model) setInput(text string) {
	m.input.SetValue(text)
	m.input.CursorEnd()
}

// runSelected hands the selected snippet to whoever listens on the snippet
// topic, the same way an assistant does.
func (m *Model) runSelected() {
	if !m.showSnippets || len(m.cfg.Snippets) == 0 || m.cfg.SnippetTopic == nil {
		return
	}
	s := m.cfg.Snippets[m.selected]
	if m.cfg.SnippetTopic.Publish(console.SnippetRequest{Code: s.Code}) == 0 {
		m.cfg.Manager.Notice(console.KindWarning, fmt.Sprintf("Snippet %s not run: nothing is listening for snippets.", s.Name))
	}
}

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	w := m.width
	if m.showSnippets {
		w -= panelWidth
	}
	m.viewport.Width = max(w, 10)
	m.viewport.Height = max(m.height-chromeHeight, 1)
	m.input.Width = max(m.width-lipgloss.Width(m.input.Prompt)-1, 1)
	m.render()
}

// render copies the line log into the viewport, following the tail unless
// the user scrolled up.
func (m *Model) render() {
	lines := m.cfg.Manager.Lines()
	follow := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0

	rendered := make([]string, len(lines))
	for i, l := range lines {
		style := styleFor(l.Kind)
		if m.viewport.Width > 0 {
			style = style.Width(m.viewport.Width)
		}
		rendered[i] = style.Render(l.Text)
	}
	m.viewport.SetContent(strings.Join(rendered, "\n"))
	if follow {
		m.viewport.GotoBottom()
	}
}

// View renders the screen.
func (m Model) View() string {
	status := statusOff
	if m.connected {
		status = statusOn
	}
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		headerStyle.Render("GangaFlow Shell"), "  ", status, "  ",
		helpStyle.Render(fmt.Sprintf("%s (%s)", m.cfg.Manager.Endpoint(), m.state)),
	)

	body := m.viewport.View()
	if m.showSnippets {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.snippetPanel())
	}

	return strings.Join([]string{
		header,
		body,
		m.input.View(),
		helpStyle.Render(helpText),
	}, "\n")
}

func (m Model) snippetPanel() string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Snippets"))
	for i, s := range m.cfg.Snippets {
		b.WriteString("\n")
		if i == m.selected {
			b.WriteString(selectedStyle.Render("› " + s.Name))
		} else {
			b.WriteString("  " + s.Name)
		}
		if s.Description != "" {
			b.WriteString("\n" + descStyle.Render("  "+s.Description))
		}
	}
	style := panelStyle.Width(panelWidth - 4)
	if m.viewport.Height > 2 {
		style = style.Height(m.viewport.Height - 2)
	}
	return style.Render(b.String())
}

// Connected reports the last status seen by the model.
func (m Model) Connected() bool {
	return m.connected
}

// Selected returns the snippet selected in the panel.
func (m Model) Selected() (snippets.Snippet, bool) {
	if !m.showSnippets || len(m.cfg.Snippets) == 0 {
		return snippets.Snippet{}, false
	}
	return m.cfg.Snippets[m.selected], true
}

// Input returns the command box text.
func (m Model) Input() string {
	return m.input.Value()
}
