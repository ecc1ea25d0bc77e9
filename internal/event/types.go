package event

import (
	"time"

	"github.com/Iron-Ham/devboot/internal/logbuffer"
)

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "project.crashed")
	EventType() string

	// ProjectID returns the project the event concerns.
	ProjectID() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeStatusChanged = "project.status_changed"
	TypeLogAppended   = "project.log_appended"
	TypeCrashed       = "project.crashed"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	projectID string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) ProjectID() string    { return e.projectID }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType, projectID string) baseEvent {
	return baseEvent{
		eventType: eventType,
		projectID: projectID,
		timestamp: time.Now(),
	}
}

// StatusChangedEvent is emitted on every lifecycle transition.
type StatusChangedEvent struct {
	baseEvent
	State string // Stopped, Running, Restarting or Error
}

// NewStatusChangedEvent creates a StatusChangedEvent.
func NewStatusChangedEvent(projectID, state string) StatusChangedEvent {
	return StatusChangedEvent{
		baseEvent: newBaseEvent(TypeStatusChanged, projectID),
		State:     state,
	}
}

// LogAppendedEvent is emitted for each line added to a project's buffer.
type LogAppendedEvent struct {
	baseEvent
	Line logbuffer.Line
}

// NewLogAppendedEvent creates a LogAppendedEvent.
func NewLogAppendedEvent(projectID string, line logbuffer.Line) LogAppendedEvent {
	return LogAppendedEvent{
		baseEvent: newBaseEvent(TypeLogAppended, projectID),
		Line:      line,
	}
}

// CrashedEvent is emitted when a process running with restart_on_crash
// exits abnormally.
type CrashedEvent struct {
	baseEvent
	RestartCount int  // 1-based count of consecutive crashes
	WillRestart  bool // false once the attempt cap is reached
	ExitCode     int  // -1 when killed by a signal
}

// NewCrashedEvent creates a CrashedEvent.
func NewCrashedEvent(projectID string, restartCount int, willRestart bool, exitCode int) CrashedEvent {
	return CrashedEvent{
		baseEvent:    newBaseEvent(TypeCrashed, projectID),
		RestartCount: restartCount,
		WillRestart:  willRestart,
		ExitCode:     exitCode,
	}
}

// Payload is the wire form of an event, used by the HTTP event stream and
// the history journal.
type Payload struct {
	Type         string          `json:"type"`
	ProjectID    string          `json:"project_id"`
	Time         time.Time       `json:"time"`
	State        string          `json:"state,omitempty"`
	Line         *logbuffer.Line `json:"line,omitempty"`
	RestartCount int             `json:"restart_count,omitempty"`
	WillRestart  *bool           `json:"will_restart,omitempty"`
	ExitCode     *int            `json:"exit_code,omitempty"`
}

// ToPayload flattens an event into its wire form.
func ToPayload(e Event) Payload {
	p := Payload{
		Type:      e.EventType(),
		ProjectID: e.ProjectID(),
		Time:      e.Timestamp(),
	}
	switch ev := e.(type) {
	case StatusChangedEvent:
		p.State = ev.State
	case LogAppendedEvent:
		line := ev.Line
		p.Line = &line
	case CrashedEvent:
		p.RestartCount = ev.RestartCount
		will, code := ev.WillRestart, ev.ExitCode
		p.WillRestart = &will
		p.ExitCode = &code
	}
	return p
}
