package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/Iron-Ham/devboot/internal/errors"
	"github.com/Iron-Ham/devboot/internal/logging"
)

// Handle is a live process as seen by the registry.
type Handle interface {
	PID() int
	// Done is closed once the process has exited and its output is drained.
	Done() <-chan struct{}
	// ExitCode is valid after Done; -1 means killed by a signal.
	ExitCode() int
	WriteLine(text string) error
	Interrupt() error
	// Terminate asks the process to exit, waits up to grace, then kills it.
	Terminate(grace time.Duration) error
}

// Entry is the supervised state of one project.
type Entry struct {
	ID        string
	Handle    Handle // nil when no process is live
	State     State
	Attempts  int  // consecutive automatic restarts
	LastExit  *int // nil until a process has exited
	StartedAt time.Time

	restartTimer *time.Timer
}

// Live reports whether the entry's process has not exited yet.
func (e *Entry) Live() bool {
	if e == nil || e.Handle == nil {
		return false
	}
	select {
	case <-e.Handle.Done():
		return false
	default:
		return true
	}
}

// PendingRestart reports whether a crash restart is scheduled.
func (e *Entry) PendingRestart() bool {
	return e != nil && e.restartTimer != nil
}

// Active reports whether the entry blocks a new start: it has a live
// process or a pending restart.
func (e *Entry) Active() bool {
	return e.Live() || e.PendingRestart()
}

// ScheduleRestart runs fn after delay, replacing any earlier schedule.
// fn runs on its own goroutine without the entry's lock held.
func (e *Entry) ScheduleRestart(delay time.Duration, fn func()) {
	e.CancelRestart()
	e.restartTimer = time.AfterFunc(delay, fn)
}

// CancelRestart stops a pending restart. It reports whether one was
// pending.
func (e *Entry) CancelRestart() bool {
	if e.restartTimer == nil {
		return false
	}
	e.restartTimer.Stop()
	e.restartTimer = nil
	return true
}

// ClearRestart forgets the pending restart without stopping it. The timer
// callback calls this once it holds the lock.
func (e *Entry) ClearRestart() {
	e.restartTimer = nil
}

// snapshot returns a copy safe to hand out.
func (e *Entry) snapshot() Entry {
	c := *e
	c.restartTimer = nil
	if e.LastExit != nil {
		code := *e.LastExit
		c.LastExit = &code
	}
	return c
}

type slot struct {
	mu    sync.Mutex
	entry *Entry
}

// Txn is the view of one project's slot inside Do.
type Txn struct {
	id string
	s  *slot
}

// ID returns the project ID the transaction is for.
func (tx *Txn) ID() string { return tx.id }

// Entry returns the current entry, or nil.
func (tx *Txn) Entry() *Entry { return tx.s.entry }

// Put replaces the entry.
func (tx *Txn) Put(e *Entry) {
	e.ID = tx.id
	tx.s.entry = e
}

// Delete drops the entry, cancelling any pending restart.
func (tx *Txn) Delete() {
	if tx.s.entry != nil {
		tx.s.entry.CancelRestart()
	}
	tx.s.entry = nil
}

// State returns the entry's state, or StateStopped when there is none.
func (tx *Txn) State() State {
	if tx.s.entry == nil {
		return StateStopped
	}
	return tx.s.entry.State
}

// Registry maps project IDs to entries with per-ID locking.
type Registry struct {
	mu     sync.Mutex
	slots  map[string]*slot
	logger *logging.Logger
}

// New creates an empty registry. A nil logger discards.
func New(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Registry{
		slots:  make(map[string]*slot),
		logger: logger.WithComponent("registry"),
	}
}

func (r *Registry) slot(id string) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[id]
	if !ok {
		s = &slot{}
		r.slots[id] = s
	}
	return s
}

// Do runs fn with id's lock held and returns its error.
func (r *Registry) Do(id string, fn func(tx *Txn) error) error {
	s := r.slot(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Txn{id: id, s: s})
}

// EnsureIdle fails with ErrAlreadyRunning when the entry has a live
// process or a pending restart.
func (tx *Txn) EnsureIdle() error {
	if e := tx.Entry(); e.Active() {
		return errors.NewProjectError("project is already running", errors.ErrAlreadyRunning).
			WithProjectID(tx.id).
			WithState(e.State.String())
	}
	return nil
}

// RegisterLocked records h as the running process of tx's project. It
// fails with ErrAlreadyRunning when the project already has a live process
// or a pending restart. The restart counter is carried over from an
// existing entry, and the new entry is returned so the caller can adjust
// it under the same lock.
func (r *Registry) RegisterLocked(tx *Txn, h Handle) (*Entry, error) {
	if err := tx.EnsureIdle(); err != nil {
		return nil, err
	}
	prev := tx.Entry()
	e := &Entry{Handle: h, State: StateRunning, StartedAt: time.Now()}
	if prev != nil {
		e.Attempts = prev.Attempts
		e.LastExit = prev.LastExit
	}
	tx.Put(e)
	r.logger.Debug("process registered", "project_id", tx.id, "pid", h.PID())
	return e, nil
}

// RemoveLocked cancels a pending restart, terminates the live process
// (SIGTERM, grace, SIGKILL) and drops the entry. It fails with
// ErrNotRunning when the project has no entry.
func (r *Registry) RemoveLocked(tx *Txn, grace time.Duration) error {
	e := tx.Entry()
	if e == nil {
		return errors.NewProjectError("nothing to remove", errors.ErrNotRunning).
			WithProjectID(tx.id)
	}

	e.CancelRestart()
	var err error
	if e.Handle != nil {
		err = e.Handle.Terminate(grace)
		if err != nil {
			r.logger.Warn("terminate failed", "project_id", tx.id, "pid", e.Handle.PID(), "error", err)
		}
	}
	tx.Delete()
	r.logger.Debug("process removed", "project_id", tx.id)
	return err
}

// State returns id's state; unknown IDs are StateStopped.
func (r *Registry) State(id string) State {
	var st State
	_ = r.Do(id, func(tx *Txn) error {
		st = tx.State()
		return nil
	})
	return st
}

// Get returns a copy of id's entry.
func (r *Registry) Get(id string) (Entry, bool) {
	var (
		out Entry
		ok  bool
	)
	_ = r.Do(id, func(tx *Txn) error {
		if e := tx.Entry(); e != nil {
			out, ok = e.snapshot(), true
		}
		return nil
	})
	return out, ok
}

// Snapshot returns copies of all entries ordered by ID.
func (r *Registry) Snapshot() []Entry {
	r.mu.Lock()
	ids := make([]string, 0, len(r.slots))
	slots := make([]*slot, 0, len(r.slots))
	for id, s := range r.slots {
		ids = append(ids, id)
		slots = append(slots, s)
	}
	r.mu.Unlock()

	out := make([]Entry, 0, len(slots))
	for i, s := range slots {
		s.mu.Lock()
		if s.entry != nil {
			e := s.entry.snapshot()
			e.ID = ids[i]
			out = append(out, e)
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
