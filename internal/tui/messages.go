package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Iron-Ham/devboot/internal/event"
)

// tickMsg drives the periodic refresh of uptimes and the project list.
type tickMsg time.Time

// eventMsg carries one supervisor event into the update loop.
type eventMsg struct {
	event event.Event
}

// eventsClosedMsg is sent once the event subscription ends.
type eventsClosedMsg struct{}

// actionResultMsg reports the outcome of a lifecycle action run in the
// background.
type actionResultMsg struct {
	projectID string
	action    string
	err       error
}

// stoppedAllMsg is sent when the shutdown triggered by quitting finishes.
type stoppedAllMsg struct {
	err error
}

const refreshInterval = time.Second

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// waitForEvent blocks on the subscription and delivers the next event.
// The update loop re-issues it after each event.
func waitForEvent(sub *event.Subscription) tea.Cmd {
	if sub == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-sub.Events()
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: e}
	}
}

// lifecycleCmd runs a blocking start/stop/restart off the update loop.
func lifecycleCmd(action, id string, op func(context.Context, string) error) tea.Cmd {
	return func() tea.Msg {
		return actionResultMsg{projectID: id, action: action, err: op(context.Background(), id)}
	}
}

func stopAllCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		return stoppedAllMsg{err: ctrl.StopAll(context.Background())}
	}
}
