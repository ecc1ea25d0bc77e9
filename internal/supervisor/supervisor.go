package supervisor

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/devboot/internal/detect"
	"github.com/Iron-Ham/devboot/internal/errors"
	"github.com/Iron-Ham/devboot/internal/event"
	"github.com/Iron-Ham/devboot/internal/logbuffer"
	"github.com/Iron-Ham/devboot/internal/logging"
	"github.com/Iron-Ham/devboot/internal/project"
	"github.com/Iron-Ham/devboot/internal/registry"
)

// Status is a point-in-time view of one project's supervision state.
type Status struct {
	ProjectID string         `json:"project_id"`
	State     registry.State `json:"state"`
	Attempts  int            `json:"restart_count"`
	LastExit  *int           `json:"last_exit,omitempty"`
	PID       int            `json:"pid,omitempty"`
	StartedAt time.Time      `json:"started_at,omitzero"`
}

// run is the registry handle for one launched session. Lines from a
// detached run are dropped. Output is held until ready is closed, which
// happens once the Running status has been published.
type run struct {
	registry.Handle
	id       string
	detached atomic.Bool
	ready    chan struct{}
}

// Supervisor launches projects, captures their output and applies the
// restart policy.
type Supervisor struct {
	store    ProjectStore
	launcher Launcher
	registry *registry.Registry
	bus      *event.Bus
	opts     Options
	logger   *logging.Logger
	now      func() time.Time

	buffersMu sync.Mutex
	buffers   map[string]*logbuffer.Buffer

	// gate is held shared while publishing and exclusively while marking
	// an ID deleted, so nothing is emitted for a project once it is gone.
	gate    sync.RWMutex
	deleted map[string]struct{}

	hooksMu  sync.Mutex
	onDelete []func(id string)

	closed atomic.Bool
}

// New creates a Supervisor. A nil logger discards.
func New(store ProjectStore, launcher Launcher, opts Options, logger *logging.Logger) *Supervisor {
	if logger == nil {
		logger = logging.NopLogger()
	}
	opts = opts.withDefaults()
	return &Supervisor{
		store:    store,
		launcher: launcher,
		registry: registry.New(logger),
		bus: event.NewBus(
			event.WithLogger(logger),
			event.WithDefaultBuffer(opts.SubscriberBuffer),
		),
		opts:    opts,
		logger:  logger.WithComponent("supervisor"),
		now:     time.Now,
		buffers: make(map[string]*logbuffer.Buffer),
		deleted: make(map[string]struct{}),
	}
}

// Bus returns the event bus status, log and crash events are published on.
func (s *Supervisor) Bus() *event.Bus {
	return s.bus
}

// Subscribe registers an event subscriber. See event.Bus.Subscribe.
func (s *Supervisor) Subscribe(buffer int, types ...string) *event.Subscription {
	return s.bus.Subscribe(buffer, types...)
}

// OnDelete registers fn to run after a project has been deleted.
func (s *Supervisor) OnDelete(fn func(id string)) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.onDelete = append(s.onDelete, fn)
}

// Projects returns every configured project.
func (s *Supervisor) Projects() []project.Project {
	return s.store.List()
}

// Project returns one project definition.
func (s *Supervisor) Project(id string) (project.Project, error) {
	return s.store.Get(id)
}

// AddProject validates and persists a new project. An empty ID is
// assigned. The project starts in the Stopped state.
func (s *Supervisor) AddProject(ctx context.Context, p project.Project) (project.Project, error) {
	if err := ctx.Err(); err != nil {
		return project.Project{}, err
	}
	added, err := s.store.Add(p)
	if err != nil {
		return project.Project{}, err
	}

	s.gate.Lock()
	delete(s.deleted, added.ID)
	s.gate.Unlock()

	s.logger.WithProject(added.ID).Info("project added", "name", added.Name, "path", added.Path)
	return added, nil
}

// UpdateProject replaces a project's definition. A live session keeps
// running with the old definition until it is restarted.
func (s *Supervisor) UpdateProject(ctx context.Context, p project.Project) (project.Project, error) {
	if err := ctx.Err(); err != nil {
		return project.Project{}, err
	}
	updated, err := s.store.Update(p)
	if err != nil {
		return project.Project{}, err
	}
	s.logger.WithProject(updated.ID).Info("project updated",
		"name", updated.Name,
		"state", s.registry.State(updated.ID).String())
	return updated, nil
}

// DeleteProject stops the project if it is running, drops its logs and
// removes it from the store. No events are published for it afterwards.
func (s *Supervisor) DeleteProject(ctx context.Context, id string) error {
	if _, err := s.store.Get(id); err != nil {
		return err
	}

	s.forget(id)

	if err := s.store.Delete(id); err != nil {
		return err
	}

	s.runDeleteHooks(id)
	s.logger.WithProject(id).Info("project deleted")
	return nil
}

func (s *Supervisor) runDeleteHooks(id string) {
	s.hooksMu.Lock()
	hooks := append([]func(string){}, s.onDelete...)
	s.hooksMu.Unlock()
	for _, fn := range hooks {
		fn(id)
	}
}

// forget tears down everything the supervisor holds for id: the live
// session, any pending restart, the log buffer, and future events.
//
// The deleted mark is set under id's registry lock, so a StartProject that
// looked the project up before the delete cannot launch afterwards.
func (s *Supervisor) forget(id string) {
	_ = s.registry.Do(id, func(tx *registry.Txn) error {
		if e := tx.Entry(); e != nil {
			wasActive := e.Active()
			if r, ok := e.Handle.(*run); ok {
				r.detached.Store(true)
			}
			if err := s.registry.RemoveLocked(tx, s.opts.StopGracePeriod); err != nil {
				s.logger.WithProject(id).Warn("stop before delete failed", "error", err)
			}
			if wasActive {
				s.publishStatus(id, registry.StateStopped)
			}
		}

		s.gate.Lock()
		s.deleted[id] = struct{}{}
		s.gate.Unlock()
		return nil
	})

	s.buffersMu.Lock()
	delete(s.buffers, id)
	s.buffersMu.Unlock()
}

// StartProject launches a project. It fails with ErrAlreadyRunning when
// the project has a live session or a pending restart. A launch failure
// leaves the project in the Error state and is returned.
func (s *Supervisor) StartProject(ctx context.Context, id string) error {
	p, err := s.store.Get(id)
	if err != nil {
		return err
	}

	return s.registry.Do(id, func(tx *registry.Txn) error {
		if s.isDeleted(id) {
			return errors.NewNotFoundError("project", id)
		}
		if err := tx.EnsureIdle(); err != nil {
			return err
		}
		return s.launchLocked(ctx, tx, p, 0, false)
	})
}

func (s *Supervisor) isDeleted(id string) bool {
	s.gate.RLock()
	defer s.gate.RUnlock()
	_, gone := s.deleted[id]
	return gone
}

// launchLocked spawns p's session and records it under tx. attempts is
// the restart counter the new entry carries.
func (s *Supervisor) launchLocked(ctx context.Context, tx *registry.Txn, p project.Project, attempts int, restart bool) error {
	id := tx.ID()
	plog := s.logger.WithProject(id)

	var lastExit *int
	if prev := tx.Entry(); prev != nil {
		lastExit = prev.LastExit
	}

	r := &run{id: id, ready: make(chan struct{})}
	h, err := s.launcher.Launch(ctx, specFor(p), func(stream logbuffer.Stream, text string) {
		<-r.ready
		if r.detached.Load() {
			return
		}
		s.appendLine(id, logbuffer.NewLine(s.now(), stream, text))
	})
	if err != nil {
		r.detached.Store(true)
		close(r.ready)
		var launchErr *errors.LaunchError
		if errors.As(err, &launchErr) {
			launchErr.WithProjectID(id)
		}
		tx.Put(&registry.Entry{State: registry.StateError, Attempts: attempts, LastExit: lastExit})
		if restart {
			s.appendSystem(id, fmt.Sprintf("[ERR] Failed to restart: %v", err))
		} else {
			s.appendSystem(id, fmt.Sprintf("[ERR] Failed to start: %v", err))
		}
		s.publishStatus(id, registry.StateError)
		logError(plog, err, "launch failed", "restart", restart)
		return err
	}
	r.Handle = h

	e, err := s.registry.RegisterLocked(tx, r)
	if err != nil {
		r.detached.Store(true)
		close(r.ready)
		_ = h.Terminate(s.opts.StopGracePeriod)
		return err
	}
	e.Attempts = attempts
	e.LastExit = lastExit
	e.StartedAt = s.now()

	s.publishStatus(id, registry.StateRunning)
	if restart {
		s.appendSystem(id, "Process restarted successfully")
	}
	close(r.ready)
	plog.Info("project started", "pid", h.PID(), "attempts", attempts)

	go s.watch(r)
	return nil
}

// StopProject terminates a project's session and cancels any pending
// restart. It fails with ErrNotRunning when there is nothing to stop.
func (s *Supervisor) StopProject(ctx context.Context, id string) error {
	return s.registry.Do(id, func(tx *registry.Txn) error {
		e := tx.Entry()
		if e == nil || (e.State == registry.StateStopped && !e.Active()) {
			return errors.NewProjectError("cannot stop project", errors.ErrNotRunning).
				WithProjectID(id)
		}

		plog := s.logger.WithProject(id)
		e.CancelRestart()

		var err error
		if e.Handle != nil {
			pid := e.Handle.PID()
			err = e.Handle.Terminate(s.opts.StopGracePeriod)
			if r, ok := e.Handle.(*run); ok {
				r.detached.Store(true)
			}
			if err != nil {
				plog.Warn("process did not terminate cleanly", "pid", pid, "error", err)
				err = errors.NewProjectError("failed to stop process", err).WithProjectID(id)
			}
		}

		e.Handle = nil
		e.State = registry.StateStopped
		e.Attempts = 0
		s.publishStatus(id, registry.StateStopped)
		plog.Info("project stopped")
		return err
	})
}

// RestartProject stops the project (if running), waits RestartPause and
// starts it again.
func (s *Supervisor) RestartProject(ctx context.Context, id string) error {
	if _, err := s.store.Get(id); err != nil {
		return err
	}
	if err := s.StopProject(ctx, id); err != nil && !errors.Is(err, errors.ErrNotRunning) {
		return err
	}

	if s.opts.RestartPause > 0 {
		timer := time.NewTimer(s.opts.RestartPause)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return s.StartProject(ctx, id)
}

// Status returns the project's supervision state. Unknown IDs report
// Stopped.
func (s *Supervisor) Status(id string) Status {
	st := Status{ProjectID: id, State: registry.StateStopped}
	e, ok := s.registry.Get(id)
	if !ok {
		return st
	}
	st.State = e.State
	st.Attempts = e.Attempts
	st.LastExit = e.LastExit
	if e.Live() {
		st.PID = e.Handle.PID()
		st.StartedAt = e.StartedAt
	}
	return st
}

// Statuses returns the status of every configured project, in store order.
func (s *Supervisor) Statuses() []Status {
	projects := s.store.List()
	out := make([]Status, len(projects))
	for i, p := range projects {
		out[i] = s.Status(p.ID)
	}
	return out
}

// Logs returns a copy of the project's captured lines, oldest first.
func (s *Supervisor) Logs(id string) []logbuffer.Line {
	if b := s.lookupBuffer(id); b != nil {
		return b.Lines()
	}
	return []logbuffer.Line{}
}

// LogTail returns up to the last n captured lines, oldest first.
func (s *Supervisor) LogTail(id string, n int) []logbuffer.Line {
	if b := s.lookupBuffer(id); b != nil {
		if lines := b.Tail(n); lines != nil {
			return lines
		}
	}
	return []logbuffer.Line{}
}

// ClearLogs empties the project's log buffer.
func (s *Supervisor) ClearLogs(id string) {
	if b := s.lookupBuffer(id); b != nil {
		b.Clear()
	}
}

// ExportLogs writes the project's log to w in the given format.
func (s *Supervisor) ExportLogs(id string, w io.Writer, format logbuffer.Format) error {
	p, err := s.store.Get(id)
	if err != nil {
		return err
	}
	return logbuffer.Export(w, format, p.Name, s.now(), s.Logs(id))
}

// Detect inspects a directory and suggests commands for it. It does not
// touch supervisor state.
func (s *Supervisor) Detect(path string) (detect.Result, error) {
	return detect.Detect(path)
}

// StartAutoStart starts every enabled project marked auto_start. Projects
// that are already running are skipped.
func (s *Supervisor) StartAutoStart(ctx context.Context) error {
	p := pool.New().WithErrors()
	for _, proj := range s.store.List() {
		if !proj.AutoStart || !proj.Enabled {
			continue
		}
		id := proj.ID
		p.Go(func() error {
			err := s.StartProject(ctx, id)
			if errors.Is(err, errors.ErrAlreadyRunning) {
				return nil
			}
			return err
		})
	}
	return p.Wait()
}

// StopAll stops every project with a live session or pending restart, in
// parallel.
func (s *Supervisor) StopAll(ctx context.Context) error {
	p := pool.New().WithErrors()
	for _, e := range s.registry.Snapshot() {
		if !e.Active() {
			continue
		}
		id := e.ID
		p.Go(func() error {
			err := s.StopProject(ctx, id)
			if errors.Is(err, errors.ErrNotRunning) {
				return nil
			}
			return err
		})
	}
	return p.Wait()
}

// SyncProjects reconciles supervision with the store after its file was
// edited externally: projects that no longer exist are stopped and
// forgotten.
func (s *Supervisor) SyncProjects(ctx context.Context) {
	known := make(map[string]bool)
	for _, p := range s.store.List() {
		known[p.ID] = true
	}
	for _, e := range s.registry.Snapshot() {
		if known[e.ID] || ctx.Err() != nil {
			continue
		}
		s.logger.WithProject(e.ID).Info("project removed from store, stopping")
		s.forget(e.ID)
		s.runDeleteHooks(e.ID)
	}
}

// Close stops every project and shuts the event bus down. It is safe to
// call more than once.
func (s *Supervisor) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := s.StopAll(ctx)
	s.bus.Close()
	return err
}

func (s *Supervisor) lookupBuffer(id string) *logbuffer.Buffer {
	s.buffersMu.Lock()
	defer s.buffersMu.Unlock()
	return s.buffers[id]
}

func (s *Supervisor) buffer(id string) *logbuffer.Buffer {
	s.buffersMu.Lock()
	defer s.buffersMu.Unlock()

	b, ok := s.buffers[id]
	if !ok {
		b = logbuffer.New(s.opts.LogBufferLines)
		s.buffers[id] = b
	}
	return b
}

// appendLine stores line and publishes it. Lines for deleted projects are
// dropped.
func (s *Supervisor) appendLine(id string, line logbuffer.Line) {
	s.gate.RLock()
	defer s.gate.RUnlock()

	if _, gone := s.deleted[id]; gone {
		return
	}
	s.buffer(id).Append(line)
	s.bus.Publish(event.NewLogAppendedEvent(id, line))
}

// appendSystem logs a supervisor notice into the project's buffer.
func (s *Supervisor) appendSystem(id, text string) {
	line := logbuffer.NewLine(s.now(), logbuffer.StreamSystem, text)
	if strings.HasPrefix(text, "[ERR]") {
		line.Tag = logbuffer.TagError
	}
	s.appendLine(id, line)
}

func (s *Supervisor) publish(e event.Event) {
	s.gate.RLock()
	defer s.gate.RUnlock()

	if _, gone := s.deleted[e.ProjectID()]; gone {
		return
	}
	s.bus.Publish(e)
}

func (s *Supervisor) publishStatus(id string, state registry.State) {
	s.publish(event.NewStatusChangedEvent(id, state.String()))
}
