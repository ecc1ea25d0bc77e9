package registry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/devboot/internal/errors"
)

// fakeHandle is a Handle whose lifetime the test controls.
type fakeHandle struct {
	pid        int
	done       chan struct{}
	once       sync.Once
	code       int
	terminated atomic.Int32

	// exitOnTerminate closes done when Terminate is called.
	exitOnTerminate bool
	termDelay       time.Duration
}

func newFakeHandle(pid int) *fakeHandle {
	return &fakeHandle{pid: pid, done: make(chan struct{}), exitOnTerminate: true}
}

func (h *fakeHandle) exit(code int) {
	h.once.Do(func() {
		h.code = code
		close(h.done)
	})
}

func (h *fakeHandle) PID() int               { return h.pid }
func (h *fakeHandle) Done() <-chan struct{}  { return h.done }
func (h *fakeHandle) ExitCode() int          { return h.code }
func (h *fakeHandle) WriteLine(string) error { return nil }
func (h *fakeHandle) Interrupt() error       { return nil }
func (h *fakeHandle) Terminate(time.Duration) error {
	h.terminated.Add(1)
	if h.termDelay > 0 {
		time.Sleep(h.termDelay)
	}
	if h.exitOnTerminate {
		h.exit(-1)
	}
	return nil
}

func register(r *Registry, id string, h Handle) error {
	return r.Do(id, func(tx *Txn) error {
		_, err := r.RegisterLocked(tx, h)
		return err
	})
}

func unregister(r *Registry, id string, grace time.Duration) error {
	return r.Do(id, func(tx *Txn) error {
		return r.RemoveLocked(tx, grace)
	})
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "Stopped"},
		{StateRunning, "Running"},
		{StateRestarting, "Restarting"},
		{StateError, "Error"},
		{State(99), "Unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if tt.state != State(99) && ParseState(tt.want) != tt.state {
				t.Errorf("ParseState(%q) = %v, want %v", tt.want, ParseState(tt.want), tt.state)
			}
		})
	}
}

func TestRegistry_UnknownIsStopped(t *testing.T) {
	r := New(nil)
	if got := r.State("missing"); got != StateStopped {
		t.Errorf("State() = %v, want Stopped", got)
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get() should report no entry")
	}
}

func TestRegistry_RegisterRejectsSecondLiveProcess(t *testing.T) {
	r := New(nil)
	h := newFakeHandle(100)

	if err := register(r, "p1", h); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if got := r.State("p1"); got != StateRunning {
		t.Errorf("State() = %v, want Running", got)
	}

	err := register(r, "p1", newFakeHandle(101))
	if !errors.Is(err, errors.ErrAlreadyRunning) {
		t.Fatalf("second Register = %v, want ErrAlreadyRunning", err)
	}

	// A dead handle no longer blocks registration.
	h.exit(1)
	if err := register(r, "p1", newFakeHandle(102)); err != nil {
		t.Errorf("Register after exit failed: %v", err)
	}
}

func TestRegistry_RegisterLocked(t *testing.T) {
	r := New(nil)
	code := 1
	_ = r.Do("p1", func(tx *Txn) error {
		tx.Put(&Entry{State: StateError, Attempts: 3, LastExit: &code})
		return nil
	})

	err := r.Do("p1", func(tx *Txn) error {
		if err := tx.EnsureIdle(); err != nil {
			t.Errorf("EnsureIdle on an Error entry = %v", err)
		}
		e, err := r.RegisterLocked(tx, newFakeHandle(9))
		if err != nil {
			return err
		}
		if e.Attempts != 3 || e.LastExit == nil || *e.LastExit != 1 {
			t.Errorf("carried over Attempts=%d LastExit=%v", e.Attempts, e.LastExit)
		}
		e.Attempts = 0
		if err := tx.EnsureIdle(); !errors.Is(err, errors.ErrAlreadyRunning) {
			t.Errorf("EnsureIdle with a live process = %v, want ErrAlreadyRunning", err)
		}
		if _, err := r.RegisterLocked(tx, newFakeHandle(10)); !errors.Is(err, errors.ErrAlreadyRunning) {
			t.Errorf("second RegisterLocked = %v, want ErrAlreadyRunning", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RegisterLocked failed: %v", err)
	}

	e, ok := r.Get("p1")
	if !ok || e.State != StateRunning || e.Attempts != 0 || e.Handle.PID() != 9 {
		t.Errorf("entry after RegisterLocked = %+v", e)
	}
}

func TestRegistry_ConcurrentRegister(t *testing.T) {
	r := New(nil)

	const n = 20
	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := register(r, "p1", newFakeHandle(i))
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, errors.ErrAlreadyRunning):
				rejected.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if succeeded.Load() != 1 || rejected.Load() != n-1 {
		t.Errorf("succeeded=%d rejected=%d, want 1 and %d", succeeded.Load(), rejected.Load(), n-1)
	}
}

func TestRegistry_PendingRestartBlocksRegister(t *testing.T) {
	r := New(nil)

	_ = r.Do("p1", func(tx *Txn) error {
		e := &Entry{State: StateRestarting}
		e.ScheduleRestart(time.Hour, func() {})
		tx.Put(e)
		return nil
	})

	if err := register(r, "p1", newFakeHandle(1)); !errors.Is(err, errors.ErrAlreadyRunning) {
		t.Errorf("Register with pending restart = %v, want ErrAlreadyRunning", err)
	}

	if err := unregister(r, "p1", time.Second); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := register(r, "p1", newFakeHandle(1)); err != nil {
		t.Errorf("Register after Remove failed: %v", err)
	}
}

func TestRegistry_Remove(t *testing.T) {
	r := New(nil)
	h := newFakeHandle(7)
	if err := register(r, "p1", h); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := unregister(r, "p1", time.Second); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if h.terminated.Load() != 1 {
		t.Errorf("Terminate called %d times, want 1", h.terminated.Load())
	}
	if r.State("p1") != StateStopped {
		t.Errorf("State() = %v, want Stopped", r.State("p1"))
	}

	if err := unregister(r, "p1", time.Second); !errors.Is(err, errors.ErrNotRunning) {
		t.Errorf("second Remove = %v, want ErrNotRunning", err)
	}
}

func TestRegistry_RemoveCancelsTimer(t *testing.T) {
	r := New(nil)

	var fired atomic.Bool
	_ = r.Do("p1", func(tx *Txn) error {
		e := &Entry{State: StateRestarting}
		e.ScheduleRestart(30*time.Millisecond, func() { fired.Store(true) })
		tx.Put(e)
		return nil
	})

	if err := unregister(r, "p1", time.Second); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if fired.Load() {
		t.Error("restart timer fired after Remove")
	}
}

func TestRegistry_DistinctIDsDoNotBlock(t *testing.T) {
	r := New(nil)

	slow := newFakeHandle(1)
	slow.termDelay = 500 * time.Millisecond
	if err := register(r, "slow", slow); err != nil {
		t.Fatal(err)
	}

	removing := make(chan struct{})
	go func() {
		close(removing)
		_ = unregister(r, "slow", time.Second)
	}()
	<-removing
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	if err := register(r, "fast", newFakeHandle(2)); err != nil {
		t.Fatal(err)
	}
	_ = r.State("fast")
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("operation on another ID took %v while a removal was in progress", elapsed)
	}
}

func TestRegistry_Snapshot(t *testing.T) {
	r := New(nil)
	for i, id := range []string{"c", "a", "b"} {
		if err := register(r, id, newFakeHandle(i)); err != nil {
			t.Fatal(err)
		}
	}
	_ = unregister(r, "b", time.Second)

	snap := r.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() returned %d entries, want 2", len(snap))
	}
	if snap[0].ID != "a" || snap[1].ID != "c" {
		t.Errorf("Snapshot() order = %s,%s, want a,c", snap[0].ID, snap[1].ID)
	}
	if got := r.State("b"); got != StateStopped {
		t.Errorf("State(removed) = %v, want Stopped", got)
	}
}

func TestRegistry_GetIsCopy(t *testing.T) {
	r := New(nil)
	code := 3
	_ = r.Do("p1", func(tx *Txn) error {
		tx.Put(&Entry{State: StateError, Attempts: 2, LastExit: &code})
		return nil
	})

	e, ok := r.Get("p1")
	if !ok {
		t.Fatal("Get() found no entry")
	}
	*e.LastExit = 99
	e.Attempts = 0

	again, _ := r.Get("p1")
	if *again.LastExit != 3 || again.Attempts != 2 {
		t.Errorf("entry was modified through a copy: %+v", again)
	}
	if again.ID != "p1" {
		t.Errorf("ID = %q, want p1", again.ID)
	}
}

func TestRegistry_DoSerializesSameID(t *testing.T) {
	r := New(nil)

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		overlap atomic.Bool
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Do("p1", func(tx *Txn) error {
				if inside.Add(1) > 1 {
					overlap.Store(true)
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	if overlap.Load() {
		t.Error("Do ran two functions for the same ID concurrently")
	}
}

func TestRegistry_DoReturnsError(t *testing.T) {
	r := New(nil)
	want := fmt.Errorf("boom")
	if err := r.Do("p1", func(*Txn) error { return want }); err != want {
		t.Errorf("Do() = %v, want %v", err, want)
	}
}
