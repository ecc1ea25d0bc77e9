package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/devboot/internal/event"
	"github.com/Iron-Ham/devboot/internal/logbuffer"
	"github.com/Iron-Ham/devboot/internal/project"
	"github.com/Iron-Ham/devboot/internal/registry"
	"github.com/Iron-Ham/devboot/internal/supervisor"
)

// Controller is the part of the supervisor the dashboard drives.
type Controller interface {
	Projects() []project.Project
	Status(id string) supervisor.Status
	Logs(id string) []logbuffer.Line
	StartProject(ctx context.Context, id string) error
	StopProject(ctx context.Context, id string) error
	RestartProject(ctx context.Context, id string) error
	SendInput(id, text string) error
	SendInterrupt(id string) error
	ClearLogs(id string)
	StopAll(ctx context.Context) error
	Subscribe(buffer int, types ...string) *event.Subscription
}

type inputMode int

const (
	modeNormal inputMode = iota
	// modeInput forwards typed lines to the selected project's shell.
	modeInput
)

// Model holds the dashboard state
type Model struct {
	ctrl Controller
	sub  *event.Subscription

	projects []project.Project
	statuses map[string]supervisor.Status
	selected int

	mode  inputMode
	input textinput.Model
	logs  viewport.Model

	width    int
	height   int
	ready    bool
	quitting bool
	showHelp bool

	errorMessage string
	infoMessage  string
}

// NewModel creates a dashboard over ctrl and subscribes to its events.
func NewModel(ctrl Controller) Model {
	ti := textinput.New()
	ti.Placeholder = "command for the selected project"
	ti.Prompt = "> "
	ti.CharLimit = 4096

	m := Model{
		ctrl:     ctrl,
		sub:      ctrl.Subscribe(event.DefaultBuffer),
		statuses: make(map[string]supervisor.Status),
		input:    ti,
		logs:     viewport.New(0, 0),
	}
	m.reloadProjects()
	return m
}

// Init starts the event pump and the refresh ticker.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.sub), tick())
}

// selectedProject returns the highlighted project, if any.
func (m Model) selectedProject() (project.Project, bool) {
	if m.selected < 0 || m.selected >= len(m.projects) {
		return project.Project{}, false
	}
	return m.projects[m.selected], true
}

func (m Model) selectedID() string {
	p, ok := m.selectedProject()
	if !ok {
		return ""
	}
	return p.ID
}

// reloadProjects refreshes the list and statuses, keeping the selection
// on the same project when it still exists.
func (m *Model) reloadProjects() {
	current := m.selectedID()
	m.projects = m.ctrl.Projects()
	m.statuses = make(map[string]supervisor.Status, len(m.projects))
	m.selected = 0
	for i, p := range m.projects {
		m.statuses[p.ID] = m.ctrl.Status(p.ID)
		if p.ID == current {
			m.selected = i
		}
	}
	m.refreshLogs()
}

// refreshLogs re-renders the selected project's log into the viewport,
// staying pinned to the bottom unless the user has scrolled up.
func (m *Model) refreshLogs() {
	atBottom := m.logs.AtBottom() || m.logs.TotalLineCount() == 0
	var lines []logbuffer.Line
	if id := m.selectedID(); id != "" {
		lines = m.ctrl.Logs(id)
	}
	m.logs.SetContent(renderLines(lines, m.logs.Width))
	if atBottom {
		m.logs.GotoBottom()
	}
}

func (m *Model) resize() {
	contentWidth, contentHeight := CalculateContentDimensions(m.width, m.height)
	m.logs.Width = max(contentWidth, 10)
	m.logs.Height = max(contentHeight, 3)
	m.input.Width = max(contentWidth-4, 10)
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.resize()
		m.refreshLogs()
		return m, nil

	case tea.KeyMsg:
		if m.mode == modeInput {
			return m.handleInputKey(msg)
		}
		return m.handleKey(msg)

	case eventMsg:
		m.applyEvent(msg.event)
		return m, waitForEvent(m.sub)

	case eventsClosedMsg:
		m.sub = nil
		return m, nil

	case actionResultMsg:
		if msg.err != nil {
			m.errorMessage = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		}
		m.statuses[msg.projectID] = m.ctrl.Status(msg.projectID)
		return m, nil

	case stoppedAllMsg:
		if m.sub != nil {
			m.sub.Close()
		}
		return m, tea.Quit

	case tickMsg:
		if m.quitting {
			return m, nil
		}
		m.reloadProjects()
		return m, tick()
	}
	return m, nil
}

// applyEvent folds a supervisor event into the view state.
func (m *Model) applyEvent(e event.Event) {
	id := e.ProjectID()
	if _, known := m.statuses[id]; !known {
		m.reloadProjects()
		return
	}

	switch ev := e.(type) {
	case event.StatusChangedEvent:
		m.statuses[id] = m.ctrl.Status(id)
	case event.LogAppendedEvent:
		if id == m.selectedID() {
			m.refreshLogs()
		}
	case event.CrashedEvent:
		name := m.projectName(id)
		if ev.WillRestart {
			m.infoMessage = fmt.Sprintf("%s crashed with exit code %d, restarting (attempt %d)", name, ev.ExitCode, ev.RestartCount)
		} else {
			m.errorMessage = fmt.Sprintf("%s crashed with exit code %d after %d attempts", name, ev.ExitCode, ev.RestartCount)
		}
	}
}

func (m Model) projectName(id string) string {
	for _, p := range m.projects {
		if p.ID == id {
			return p.Name
		}
	}
	return id
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, nil
	}
	m.errorMessage = ""

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.infoMessage = "Stopping all projects..."
		return m, stopAllCmd(m.ctrl)

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "up", "k":
		if m.selected > 0 {
			m.selected--
			m.logs.GotoBottom()
			m.refreshLogs()
		}
		return m, nil

	case "down", "j", "tab":
		if m.selected < len(m.projects)-1 {
			m.selected++
			m.logs.GotoBottom()
			m.refreshLogs()
		}
		return m, nil

	case "pgup", "ctrl+u":
		m.logs.HalfPageUp()
		return m, nil
	case "pgdown", "ctrl+d":
		m.logs.HalfPageDown()
		return m, nil
	case "g", "home":
		m.logs.GotoTop()
		return m, nil
	case "G", "end":
		m.logs.GotoBottom()
		return m, nil
	}

	id := m.selectedID()
	if id == "" {
		return m, nil
	}

	switch msg.String() {
	case "s", "enter":
		return m, lifecycleCmd("start", id, m.ctrl.StartProject)
	case "x":
		return m, lifecycleCmd("stop", id, m.ctrl.StopProject)
	case "r":
		return m, lifecycleCmd("restart", id, m.ctrl.RestartProject)
	case "c":
		m.ctrl.ClearLogs(id)
		m.refreshLogs()
		return m, nil
	case "i":
		m.mode = modeInput
		m.input.Reset()
		return m, m.input.Focus()
	}
	return m, nil
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	id := m.selectedID()

	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeNormal
		m.input.Blur()
		return m, nil

	case tea.KeyCtrlC:
		if err := m.ctrl.SendInterrupt(id); err != nil {
			m.errorMessage = fmt.Sprintf("interrupt failed: %v", err)
		}
		return m, nil

	case tea.KeyEnter:
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		if err := m.ctrl.SendInput(id, text); err != nil {
			m.errorMessage = fmt.Sprintf("send failed: %v", err)
			return m, nil
		}
		m.errorMessage = ""
		m.input.Reset()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// runningCount returns how many projects have a live process.
func (m Model) runningCount() int {
	n := 0
	for _, st := range m.statuses {
		if st.State == registry.StateRunning {
			n++
		}
	}
	return n
}
