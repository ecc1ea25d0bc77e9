// Package internal contains integration tests that run the supervisor,
// the event journal and the HTTP API together against a real shell.
package internal

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/devboot/internal/api"
	"github.com/Iron-Ham/devboot/internal/event"
	"github.com/Iron-Ham/devboot/internal/history"
	"github.com/Iron-Ham/devboot/internal/project"
	"github.com/Iron-Ham/devboot/internal/registry"
	"github.com/Iron-Ham/devboot/internal/shell"
	"github.com/Iron-Ham/devboot/internal/supervisor"
	"github.com/Iron-Ham/devboot/internal/testutil"
)

type stack struct {
	sup     *supervisor.Supervisor
	journal *history.Journal
	client  *api.Client
}

func newStack(t *testing.T) *stack {
	t.Helper()
	testutil.SkipIfNoShell(t)

	dir := t.TempDir()
	store, err := project.Open(filepath.Join(dir, "projects.json"), nil)
	if err != nil {
		t.Fatalf("project.Open failed: %v", err)
	}
	sup := supervisor.New(store, supervisor.NewShellLauncher(shell.NewLauncher(testutil.Shell, nil)), supervisor.Options{
		MaxRestartAttempts: 3,
		RestartDelay:       20 * time.Millisecond,
		StopGracePeriod:    500 * time.Millisecond,
		RestartPause:       10 * time.Millisecond,
		LogBufferLines:     500,
		SubscriberBuffer:   1024,
	}, nil)

	journal, err := history.Open(filepath.Join(dir, "history.db"), nil)
	if err != nil {
		t.Fatalf("history.Open failed: %v", err)
	}
	journal.Attach(sup.Bus())

	ts := httptest.NewServer(api.NewServer(sup, api.WithHistory(journal)).Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = sup.Close(context.Background())
		_ = journal.Close()
	})
	return &stack{sup: sup, journal: journal, client: api.NewClient(ts.URL)}
}

func (s *stack) add(t *testing.T, name string, commands ...string) api.ProjectView {
	t.Helper()

	v, err := s.client.AddProject(context.Background(), project.New(name, t.TempDir(), commands))
	if err != nil {
		t.Fatalf("AddProject failed: %v", err)
	}
	return v
}

// TestCrashLoopIsJournaled drives a crashing project through the API and
// checks that the journal saw every crash and the final Error state.
func TestCrashLoopIsJournaled(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	p := s.add(t, "flaky", "exit 3")

	if _, err := s.client.Start(ctx, p.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	testutil.Eventually(t, 10*time.Second, func() bool {
		st, err := s.client.Status(ctx, p.ID)
		return err == nil && st.State == registry.StateError
	}, "crash loop should end in Error")

	var records []history.Record
	testutil.Eventually(t, 5*time.Second, func() bool {
		var err error
		records, err = s.client.History(ctx, p.ID, 100)
		return err == nil && len(records) > 0 && records[0].State == "Error"
	}, "journal records the final Error state")

	var crashes []history.Record
	for _, r := range records {
		if r.Type == event.TypeCrashed {
			crashes = append(crashes, r)
		}
	}
	if len(crashes) != 3 {
		t.Fatalf("journaled %d crashes, want 3: %+v", len(crashes), records)
	}
	for _, c := range crashes {
		if c.ExitCode == nil || *c.ExitCode != 3 {
			t.Errorf("crash exit code = %v, want 3", c.ExitCode)
		}
		if c.WillRestart != (c.RestartCount < 3) {
			t.Errorf("crash %d WillRestart = %v", c.RestartCount, c.WillRestart)
		}
	}

	// Deleting the project through the API forgets its runtime entry.
	if err := s.client.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("DeleteProject failed: %v", err)
	}
	if _, err := s.client.Status(ctx, p.ID); err == nil {
		t.Error("Status after delete should fail")
	}
}

// TestInputReachesShell sends a line through the API and watches for its
// output on the event stream.
func TestInputReachesShell(t *testing.T) {
	s := newStack(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := s.add(t, "repl", "echo ready")

	var (
		mu    sync.Mutex
		lines []string
	)
	streamDone := make(chan error, 1)
	go func() {
		streamDone <- s.client.Events(ctx, p.ID, []string{event.TypeLogAppended}, func(pl event.Payload) error {
			if pl.Line != nil {
				mu.Lock()
				lines = append(lines, pl.Line.Text)
				mu.Unlock()
			}
			return nil
		})
	}()
	seen := func(text string) bool {
		mu.Lock()
		defer mu.Unlock()
		return slices.Contains(lines, text)
	}

	testutil.Eventually(t, 5*time.Second, func() bool {
		return s.sup.Bus().SubscriptionCount() > 1
	}, "event stream subscribed")

	if _, err := s.client.Start(ctx, p.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	testutil.Eventually(t, 5*time.Second, func() bool { return seen("ready") }, "startup output streamed")

	if err := s.client.SendInput(ctx, p.ID, "echo pong"); err != nil {
		t.Fatalf("SendInput failed: %v", err)
	}
	testutil.Eventually(t, 5*time.Second, func() bool { return seen("pong") }, "input output streamed")

	st, err := s.client.Stop(ctx, p.ID)
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if st.State != registry.StateStopped {
		t.Errorf("State after stop = %v, want Stopped", st.State)
	}

	cancel()
	select {
	case <-streamDone:
	case <-time.After(5 * time.Second):
		t.Error("event stream did not end after cancel")
	}
}
