package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/Iron-Ham/devboot/internal/logbuffer"
	"github.com/Iron-Ham/devboot/internal/registry"
)

// Layout constants
const (
	SidebarWidth    = 30 // Fixed sidebar width
	SidebarMinWidth = 20 // Sidebar width on narrow terminals

	// Offsets for the log pane: sidebar gap plus pane border and padding,
	// and header, pane border, input line and status bar.
	ContentWidthOffset  = 7
	ContentHeightOffset = 6
)

// CalculateContentDimensions returns the log pane dimensions for a
// terminal of the given size.
func CalculateContentDimensions(termWidth, termHeight int) (contentWidth, contentHeight int) {
	contentWidth = termWidth - sidebarWidth(termWidth) - ContentWidthOffset
	contentHeight = termHeight - ContentHeightOffset
	return contentWidth, contentHeight
}

func sidebarWidth(termWidth int) int {
	if termWidth < 80 {
		return SidebarMinWidth
	}
	return SidebarWidth
}

// renderLines formats captured lines for the log pane. Program output may
// carry its own escape sequences, so truncation is ANSI aware.
func renderLines(lines []logbuffer.Line, width int) string {
	if len(lines) == 0 {
		return mutedStyle.Render("No output yet.")
	}
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		text := l.String()
		if width > 0 {
			text = ansi.Truncate(text, width, "…")
		}
		b.WriteString(lineStyle(l).Render(text))
	}
	return b.String()
}

// View renders the dashboard
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	header := m.renderHeader()
	body := lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), " ", m.renderLogPane())
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderFooter())
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("DevBoot")
	counts := mutedStyle.Render(fmt.Sprintf("  %d projects, %d running", len(m.projects), m.runningCount()))
	return title + counts
}

func (m Model) renderSidebar() string {
	width := sidebarWidth(m.width) - 4
	height := max(m.height-ContentHeightOffset, 3)

	var rows []string
	if len(m.projects) == 0 {
		rows = append(rows, mutedStyle.Render("No projects."), mutedStyle.Render("devboot project add"))
	}
	for i, p := range m.projects {
		st := m.statuses[p.ID]
		icon := lipgloss.NewStyle().Foreground(stateColor(st.State)).Render(stateIcon(st.State))
		name := ansi.Truncate(p.Name, width-2, "…")
		row := icon + " " + name
		if i == m.selected {
			row = selectedItemStyle.Width(width).Render(stateIcon(st.State) + " " + name)
		}
		rows = append(rows, row)
	}
	return sidebarStyle.Width(width + 2).Height(height).Render(strings.Join(rows, "\n"))
}

func (m Model) renderLogPane() string {
	p, ok := m.selectedProject()
	if !ok {
		return logPaneStyle.Width(m.logs.Width + 2).Render(m.logs.View())
	}

	st := m.statuses[p.ID]
	state := lipgloss.NewStyle().Foreground(stateColor(st.State)).Render(st.State.String())
	info := p.Name + "  " + state
	if st.State == registry.StateRunning && !st.StartedAt.IsZero() {
		info += mutedStyle.Render(fmt.Sprintf("  pid %d  up %s", st.PID, formatUptime(time.Since(st.StartedAt))))
	}
	if st.Attempts > 0 {
		info += warningStyle.Render(fmt.Sprintf("  restarts %d", st.Attempts))
	}
	return logPaneStyle.Width(m.logs.Width + 2).Render(info + "\n" + m.logs.View())
}

func (m Model) renderFooter() string {
	var lines []string
	if m.mode == modeInput {
		lines = append(lines, m.input.View())
	}
	switch {
	case m.errorMessage != "":
		lines = append(lines, errorBarStyle.Render(m.errorMessage))
	case m.infoMessage != "":
		lines = append(lines, mutedStyle.Render(m.infoMessage))
	}
	if m.mode == modeInput {
		lines = append(lines, helpStyle.Render("enter send · ctrl+c interrupt · esc back"))
	} else {
		lines = append(lines, helpStyle.Render("↑/↓ select · s start · x stop · r restart · i input · c clear · ? help · q quit"))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderHelp() string {
	rows := [][2]string{
		{"↑/k ↓/j", "select project"},
		{"s, enter", "start project"},
		{"x", "stop project"},
		{"r", "restart project"},
		{"i", "send input to the project's shell"},
		{"ctrl+c", "interrupt (in input mode)"},
		{"c", "clear log"},
		{"pgup/pgdown", "scroll log"},
		{"g/G", "log top/bottom"},
		{"q", "stop everything and quit"},
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("DevBoot keys"))
	b.WriteString("\n\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "  %-14s %s\n", r[0], mutedStyle.Render(r[1]))
	}
	b.WriteString("\n" + helpStyle.Render("press ? to close"))
	return b.String()
}

// formatUptime renders d as "1h02m", "3m05s" or "42s".
func formatUptime(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, mins)
	case mins > 0:
		return fmt.Sprintf("%dm%02ds", mins, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
