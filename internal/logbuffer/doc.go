// Package logbuffer stores the captured output of supervised projects.
//
// Each project owns one [Buffer], a fixed-capacity ring of [Line] values.
// When the ring is full the oldest line is evicted, so a long-running
// process never grows memory past the configured cap.
//
// # Main Types
//
//   - [Line]: one captured line with its arrival time, source stream and tag
//   - [Buffer]: the bounded, concurrency-safe ring
//   - [Tag]: presentation hint derived from keywords by [Classify]
//
// # Export
//
// [Export] renders a snapshot of the buffer as text, JSON or CSV. Only the
// lines still held in the ring are exported; evicted history is gone.
//
//	var sb strings.Builder
//	err := logbuffer.Export(&sb, logbuffer.FormatText, "api", time.Now(), buf.Lines())
package logbuffer
