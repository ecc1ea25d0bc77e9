package logbuffer

import (
	"strings"
	"time"
)

// Stream identifies where a line came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
	// StreamSystem marks lines the supervisor writes itself (exit notices,
	// restart progress).
	StreamSystem Stream = "system"
	// StreamInput marks echoes of input and interrupts sent by the user.
	StreamInput Stream = "input"
)

// Tag is a presentation hint. It never affects supervision.
type Tag string

const (
	TagNone    Tag = ""
	TagError   Tag = "error"
	TagWarning Tag = "warning"
	TagSuccess Tag = "success"
)

// Line is a single captured line of output.
type Line struct {
	Time   time.Time `json:"time"`
	Text   string    `json:"text"`
	Stream Stream    `json:"stream"`
	Tag    Tag       `json:"tag,omitempty"`
}

// TimeFormat is the clock format lines are rendered with.
const TimeFormat = "15:04:05"

// NewLine builds a Line stamped with now and tagged by Classify.
func NewLine(now time.Time, stream Stream, text string) Line {
	return Line{
		Time:   now,
		Text:   text,
		Stream: stream,
		Tag:    Classify(text),
	}
}

// String renders the line as "[HH:MM:SS] text".
func (l Line) String() string {
	return "[" + l.Time.Format(TimeFormat) + "] " + l.Text
}

// classifyRules are checked in order; the first rule with a matching
// keyword decides the tag.
var classifyRules = []struct {
	tag      Tag
	keywords []string
}{
	{TagError, []string{"error", "exception", "failed", "fatal", "panic", "traceback"}},
	{TagWarning, []string{"warn", "deprecated"}},
	{TagSuccess, []string{"success", "ready", "listening", "started", "compiled", "done"}},
}

// Classify tags text by case-insensitive keyword match.
func Classify(text string) Tag {
	lower := strings.ToLower(text)
	for _, rule := range classifyRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.tag
			}
		}
	}
	return TagNone
}
