package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/Iron-Ham/devboot/internal/api"
	"github.com/Iron-Ham/devboot/internal/logbuffer"
	"github.com/Iron-Ham/devboot/internal/registry"
)

// isTerminal reports whether w is an interactive terminal. Color is only
// written to terminals.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// palette styles CLI output. The zero palette renders plain text.
type palette struct {
	color bool
}

func newPalette(w io.Writer) palette {
	return palette{color: isTerminal(w)}
}

func (p palette) fg(c lipgloss.Color, s string) string {
	if !p.color {
		return s
	}
	return lipgloss.NewStyle().Foreground(c).Render(s)
}

func (p palette) state(s registry.State) string {
	switch s {
	case registry.StateRunning:
		return p.fg("#10B981", s.String())
	case registry.StateRestarting:
		return p.fg("#F59E0B", s.String())
	case registry.StateError:
		return p.fg("#F87171", s.String())
	default:
		return p.fg("#9CA3AF", s.String())
	}
}

func (p palette) muted(s string) string { return p.fg("#9CA3AF", s) }

func (p palette) line(l logbuffer.Line) string {
	text := l.String()
	switch {
	case l.Stream == logbuffer.StreamInput:
		return p.fg("#60A5FA", text)
	case l.Tag == logbuffer.TagError:
		return p.fg("#F87171", text)
	case l.Tag == logbuffer.TagWarning:
		return p.fg("#F59E0B", text)
	case l.Tag == logbuffer.TagSuccess:
		return p.fg("#10B981", text)
	case l.Stream == logbuffer.StreamSystem:
		return p.muted(text)
	}
	return text
}

// renderStatusTable lays projects out one per row.
func renderStatusTable(p palette, views []api.ProjectView, now time.Time) string {
	rows := make([][]string, len(views))
	for i, v := range views {
		pid, uptime := "-", "-"
		if v.Status.PID > 0 {
			pid = fmt.Sprint(v.Status.PID)
		}
		if !v.Status.StartedAt.IsZero() {
			uptime = formatDuration(now.Sub(v.Status.StartedAt))
		}
		exit := "-"
		if v.Status.LastExit != nil {
			exit = fmt.Sprint(*v.Status.LastExit)
		}
		rows[i] = []string{
			v.Name,
			p.state(v.Status.State),
			pid,
			uptime,
			fmt.Sprint(v.Status.Attempts),
			exit,
			v.Path,
		}
	}

	t := table.New().
		Headers("NAME", "STATE", "PID", "UPTIME", "RESTARTS", "EXIT", "PATH").
		Rows(rows...).
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().PaddingRight(2)
			if row == table.HeaderRow && p.color {
				s = s.Bold(true)
			}
			return s
		})
	return strings.TrimRight(t.String(), "\n")
}

// formatDuration renders d compactly: "2h05m", "3m12s", "8s".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm", h, m)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}
