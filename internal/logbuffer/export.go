package logbuffer

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Iron-Ham/devboot/internal/errors"
)

// Format selects an export rendering.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Formats lists the supported export formats.
func Formats() []Format {
	return []Format{FormatText, FormatJSON, FormatCSV}
}

// ParseFormat parses a format name. An empty name means text.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatText, "txt", "log":
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", errors.NewValidationError("unknown export format").
		WithField("format").
		WithValue(s)
}

// Export writes lines to w in the given format.
func Export(w io.Writer, format Format, projectName string, now time.Time, lines []Line) error {
	switch format {
	case FormatJSON:
		return ExportJSON(w, projectName, now, lines)
	case FormatCSV:
		return ExportCSV(w, lines)
	default:
		return ExportText(w, projectName, now, lines)
	}
}

// ExportText writes a three-line header followed by one "[HH:MM:SS] text"
// line per entry:
//
//	# DevBoot logs: api
//	# Exported: 2026-03-01T10:00:00Z
//	# Lines: 2
func ExportText(w io.Writer, projectName string, now time.Time, lines []Line) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "# DevBoot logs: %s\n", projectName)
	fmt.Fprintf(bw, "# Exported: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(bw, "# Lines: %d\n", len(lines))
	for _, l := range lines {
		bw.WriteString(l.String())
		bw.WriteByte('\n')
	}

	if err := bw.Flush(); err != nil {
		return errors.NewIOError("failed to write log export", err)
	}
	return nil
}

type jsonExport struct {
	Project  string    `json:"project"`
	Exported time.Time `json:"exported"`
	Count    int       `json:"count"`
	Lines    []Line    `json:"lines"`
}

// ExportJSON writes a single JSON document holding the header fields and
// the lines.
func ExportJSON(w io.Writer, projectName string, now time.Time, lines []Line) error {
	if lines == nil {
		lines = []Line{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	err := enc.Encode(jsonExport{
		Project:  projectName,
		Exported: now,
		Count:    len(lines),
		Lines:    lines,
	})
	if err != nil {
		return errors.NewIOError("failed to write log export", err)
	}
	return nil
}

// ExportCSV writes a header row and one row per line.
func ExportCSV(w io.Writer, lines []Line) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"time", "stream", "tag", "text"})
	for _, l := range lines {
		_ = cw.Write([]string{l.Time.Format(time.RFC3339Nano), string(l.Stream), string(l.Tag), l.Text})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.NewIOError("failed to write log export", err)
	}
	return nil
}
