package supervisor

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Iron-Ham/devboot/internal/errors"
	"github.com/Iron-Ham/devboot/internal/event"
	"github.com/Iron-Ham/devboot/internal/logbuffer"
	"github.com/Iron-Ham/devboot/internal/project"
	"github.com/Iron-Ham/devboot/internal/registry"
	"github.com/Iron-Ham/devboot/internal/shell"
)

// fakeProc is a registry.Handle whose lifetime the test controls.
type fakeProc struct {
	pid    int
	spec   shell.Spec
	onLine shell.LineFunc
	done   chan struct{}
	once   sync.Once

	mu         sync.Mutex
	code       int
	input      []string
	interrupts int
	terminated int
}

func newFakeProc(pid int, spec shell.Spec, onLine shell.LineFunc) *fakeProc {
	return &fakeProc{pid: pid, spec: spec, onLine: onLine, done: make(chan struct{}), code: -1}
}

func (f *fakeProc) exit(code int) {
	f.once.Do(func() {
		f.mu.Lock()
		f.code = code
		f.mu.Unlock()
		close(f.done)
	})
}

func (f *fakeProc) emit(stream logbuffer.Stream, text string) { f.onLine(stream, text) }

func (f *fakeProc) PID() int              { return f.pid }
func (f *fakeProc) Done() <-chan struct{} { return f.done }

func (f *fakeProc) ExitCode() int {
	select {
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.code
	default:
		return -1
	}
}

func (f *fakeProc) alive() bool {
	select {
	case <-f.done:
		return false
	default:
		return true
	}
}

func (f *fakeProc) WriteLine(text string) error {
	if !f.alive() {
		return errors.ErrNotRunning
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.input = append(f.input, text)
	return nil
}

func (f *fakeProc) Interrupt() error {
	if !f.alive() {
		return errors.ErrNotRunning
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interrupts++
	return nil
}

func (f *fakeProc) Terminate(time.Duration) error {
	f.mu.Lock()
	f.terminated++
	f.mu.Unlock()
	f.exit(-1)
	return nil
}

func (f *fakeProc) snapshot() (input []string, interrupts, terminated int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.input...), f.interrupts, f.terminated
}

// fakeLauncher records launches. When exitCode is set every process exits
// with it immediately after launch. When emitOnLaunch is set every process
// writes that line to stdout from its own goroutine as soon as it starts.
type fakeLauncher struct {
	mu           sync.Mutex
	procs        []*fakeProc
	err          error
	exitCode     *int
	emitOnLaunch string
	nextPID      int
}

func (l *fakeLauncher) Launch(ctx context.Context, spec shell.Spec, onLine shell.LineFunc) (registry.Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return nil, l.err
	}
	l.nextPID++
	p := newFakeProc(1000+l.nextPID, spec, onLine)
	l.procs = append(l.procs, p)
	if l.emitOnLaunch != "" {
		go p.emit(logbuffer.StreamStdout, l.emitOnLaunch)
	}
	if l.exitCode != nil {
		p.exit(*l.exitCode)
	}
	return p, nil
}

func (l *fakeLauncher) setErr(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.err = err
}

func (l *fakeLauncher) setExitCode(code int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exitCode = &code
}

func (l *fakeLauncher) launches() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.procs)
}

func (l *fakeLauncher) last() *fakeProc {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.procs) == 0 {
		return nil
	}
	return l.procs[len(l.procs)-1]
}

// recorder collects events from a subscription.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
	sub    *event.Subscription
	done   chan struct{}
}

func record(t *testing.T, sup *Supervisor, types ...string) *recorder {
	t.Helper()

	r := &recorder{sub: sup.Subscribe(4096, types...), done: make(chan struct{})}
	go func() {
		defer close(r.done)
		for e := range r.sub.Events() {
			r.mu.Lock()
			r.events = append(r.events, e)
			r.mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		r.sub.Close()
		<-r.done
	})
	return r
}

func (r *recorder) all() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

func (r *recorder) crashes() []event.CrashedEvent {
	var out []event.CrashedEvent
	for _, e := range r.all() {
		if c, ok := e.(event.CrashedEvent); ok {
			out = append(out, c)
		}
	}
	return out
}

func (r *recorder) states() []string {
	var out []string
	for _, e := range r.all() {
		if sc, ok := e.(event.StatusChangedEvent); ok {
			out = append(out, sc.State)
		}
	}
	return out
}

// lifecycle renders status and crash events as a compact trace, e.g.
// "Running crash(1,true) Restarting".
func (r *recorder) lifecycle() []string {
	var out []string
	for _, e := range r.all() {
		switch ev := e.(type) {
		case event.StatusChangedEvent:
			out = append(out, ev.State)
		case event.CrashedEvent:
			out = append(out, fmt.Sprintf("crash(%d,%t)", ev.RestartCount, ev.WillRestart))
		}
	}
	return out
}

func testOptions() Options {
	return Options{
		MaxRestartAttempts: 5,
		RestartDelay:       10 * time.Millisecond,
		StopGracePeriod:    200 * time.Millisecond,
		RestartPause:       10 * time.Millisecond,
		LogBufferLines:     1000,
		SubscriberBuffer:   1024,
	}
}

func newTestSupervisor(t *testing.T, launcher Launcher, opts Options) (*Supervisor, *project.Store) {
	t.Helper()

	store, err := project.Open(filepath.Join(t.TempDir(), "projects.json"), nil)
	if err != nil {
		t.Fatalf("project.Open failed: %v", err)
	}
	sup := New(store, launcher, opts, nil)
	t.Cleanup(func() {
		_ = sup.Close(context.Background())
	})
	return sup, store
}

func addProject(t *testing.T, sup *Supervisor, mutate func(p *project.Project)) project.Project {
	t.Helper()

	p := project.New("api", t.TempDir(), []string{"run-server"})
	if mutate != nil {
		mutate(&p)
	}
	added, err := sup.AddProject(context.Background(), p)
	if err != nil {
		t.Fatalf("AddProject failed: %v", err)
	}
	return added
}

// pausingStore blocks the first Get after arm until release is closed.
type pausingStore struct {
	*project.Store
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (s *pausingStore) arm() {
	s.entered = make(chan struct{})
	s.release = make(chan struct{})
	s.armed.Store(true)
}

func (s *pausingStore) Get(id string) (project.Project, error) {
	if s.armed.CompareAndSwap(true, false) {
		close(s.entered)
		<-s.release
	}
	return s.Store.Get(id)
}

// syncBuffer is a bytes.Buffer safe for a logger and a test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func hasLine(lines []logbuffer.Line, text string) bool {
	for _, l := range lines {
		if l.Text == text {
			return true
		}
	}
	return false
}
