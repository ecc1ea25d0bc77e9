package supervisor

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/devboot/internal/errors"
	"github.com/Iron-Ham/devboot/internal/event"
	"github.com/Iron-Ham/devboot/internal/logging"
	"github.com/Iron-Ham/devboot/internal/registry"
)

// watch waits for r's process to end and applies the exit policy.
func (s *Supervisor) watch(r *run) {
	<-r.Done()
	s.handleExit(r)
}

// handleExit applies the exit policy if r is still the project's current
// run. Exits of stopped, replaced or deleted runs are ignored.
func (s *Supervisor) handleExit(r *run) {
	_ = s.registry.Do(r.id, func(tx *registry.Txn) error {
		e := tx.Entry()
		if e == nil || e.State != registry.StateRunning || r.detached.Load() {
			return nil
		}
		if cur, ok := e.Handle.(*run); !ok || cur != r {
			return nil
		}
		s.applyExitLocked(tx, e, r)
		return nil
	})
}

func (s *Supervisor) applyExitLocked(tx *registry.Txn, e *registry.Entry, r *run) {
	id := tx.ID()
	plog := s.logger.WithProject(id)

	code := r.ExitCode()
	r.detached.Store(true)
	e.Handle = nil
	e.LastExit = &code

	if code == 0 {
		e.State = registry.StateStopped
		s.appendSystem(id, "Process exited normally")
		s.publishStatus(id, registry.StateStopped)
		plog.Info("process exited normally")
		return
	}

	s.appendSystem(id, fmt.Sprintf("[ERR] Process crashed with exit code: %d", code))

	restartOnCrash := false
	if p, err := s.store.Get(id); err == nil {
		restartOnCrash = p.RestartOnCrash
	}
	if !restartOnCrash {
		e.State = registry.StateError
		s.publishStatus(id, registry.StateError)
		plog.Warn("process crashed", "exit_code", code, "restart_on_crash", false)
		return
	}

	count := e.Attempts + 1
	max := s.opts.MaxRestartAttempts
	if count < max {
		e.State = registry.StateRestarting
		s.publish(event.NewCrashedEvent(id, count, true, code))
		s.appendSystem(id, fmt.Sprintf("Restarting... (attempt %d/%d)", count, max))
		s.publishStatus(id, registry.StateRestarting)
		plog.Warn("process crashed, restarting",
			"exit_code", code,
			"attempt", count,
			"max_attempts", max,
			"delay", s.opts.RestartDelay.String())
		e.ScheduleRestart(s.opts.RestartDelay, func() {
			s.restartAfterCrash(id, e)
		})
		return
	}

	e.State = registry.StateError
	s.publish(event.NewCrashedEvent(id, count, false, code))
	s.appendSystem(id, "[ERR] Max restart attempts reached. Giving up.")
	s.publishStatus(id, registry.StateError)
	giveUp := errors.NewProjectError("giving up after repeated crashes", errors.ErrRestartLimitExceeded).
		WithProjectID(id).
		WithState(registry.StateError.String()).
		WithSeverity(errors.SeverityCritical)
	logError(plog, giveUp, "restart limit exceeded", "exit_code", code, "attempts", count)
}

// logError logs err at the level its severity maps to.
func logError(l *logging.Logger, err error, msg string, args ...any) {
	args = append(args, "error", err.Error(), "severity", errors.GetSeverity(err).String())
	switch errors.GetSeverity(err) {
	case errors.SeverityDebug:
		l.Debug(msg, args...)
	case errors.SeverityInfo:
		l.Info(msg, args...)
	case errors.SeverityWarning:
		l.Warn(msg, args...)
	default:
		l.Error(msg, args...)
	}
}

// restartAfterCrash runs when e's restart timer fires. It does nothing if
// the restart was cancelled or e was replaced in the meantime.
func (s *Supervisor) restartAfterCrash(id string, e *registry.Entry) {
	_ = s.registry.Do(id, func(tx *registry.Txn) error {
		if tx.Entry() != e || e.State != registry.StateRestarting {
			return nil
		}
		e.ClearRestart()

		p, err := s.store.Get(id)
		if err != nil {
			e.State = registry.StateError
			s.appendSystem(id, fmt.Sprintf("[ERR] Failed to restart: %v", err))
			s.publishStatus(id, registry.StateError)
			s.logger.WithProject(id).Error("restart aborted", "error", err)
			return nil
		}
		_ = s.launchLocked(context.Background(), tx, p, e.Attempts+1, true)
		return nil
	})
}
