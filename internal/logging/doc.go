// Package logging provides structured logging for the DevBoot supervisor.
//
// It wraps log/slog with a JSON handler and adds persistent attributes so
// every line about a project carries its project_id:
//
//	logger, err := logging.NewLogger(dir, "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	plog := logger.WithComponent("supervisor").WithProject(id)
//	plog.Info("project started", "pid", pid)
//
// The file lives at {dir}/devboot.log and is rotated by size through
// [RotatingWriter]. [ReadEntries] and [FilterEntries] read it back for
// the `devboot supervisor-log` command.
//
// This log is the supervisor's own diagnostic trail. Output of supervised
// processes goes to per-project buffers in package logbuffer, not here.
package logging
