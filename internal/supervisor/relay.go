package supervisor

import (
	"github.com/Iron-Ham/devboot/internal/errors"
	"github.com/Iron-Ham/devboot/internal/logbuffer"
	"github.com/Iron-Ham/devboot/internal/registry"
)

// liveHandle returns id's live process or ErrNotRunning. The handle is
// used outside the registry lock so a blocked write cannot stall a stop.
func (s *Supervisor) liveHandle(id string) (registry.Handle, error) {
	var h registry.Handle
	err := s.registry.Do(id, func(tx *registry.Txn) error {
		e := tx.Entry()
		if !e.Live() {
			return errors.NewProjectError("project has no live process", errors.ErrNotRunning).
				WithProjectID(id).
				WithState(tx.State().String())
		}
		h = e.Handle
		return nil
	})
	return h, err
}

// SendInput writes text and a newline to the project's shell and echoes
// it into the log as "> text".
func (s *Supervisor) SendInput(id, text string) error {
	h, err := s.liveHandle(id)
	if err != nil {
		return err
	}
	if err := h.WriteLine(text); err != nil {
		if errors.Is(err, errors.ErrNotRunning) {
			return errors.NewProjectError("project has no live process", errors.ErrNotRunning).WithProjectID(id)
		}
		return errors.NewProjectError("failed to send input", err).WithProjectID(id)
	}
	s.appendLine(id, logbuffer.NewLine(s.now(), logbuffer.StreamInput, "> "+text))
	return nil
}

// SendInterrupt delivers SIGINT to the foreground command of the project's
// shell and echoes "^C" into the log. The shell itself keeps running; an
// exit that follows goes through the normal exit policy.
func (s *Supervisor) SendInterrupt(id string) error {
	h, err := s.liveHandle(id)
	if err != nil {
		return err
	}
	if err := h.Interrupt(); err != nil {
		if errors.Is(err, errors.ErrNotRunning) {
			return errors.NewProjectError("project has no live process", errors.ErrNotRunning).WithProjectID(id)
		}
		return errors.NewProjectError("failed to interrupt process", err).WithProjectID(id)
	}
	s.appendLine(id, logbuffer.NewLine(s.now(), logbuffer.StreamInput, "^C"))
	s.logger.WithProject(id).Debug("interrupt sent")
	return nil
}
