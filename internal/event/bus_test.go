package event

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Iron-Ham/devboot/internal/logbuffer"
	"github.com/Iron-Ham/devboot/internal/logging"
)

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case e, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription channel closed")
		}
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func assertEmpty(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case e := <-sub.Events():
		t.Fatalf("unexpected event %s", e.EventType())
	default:
	}
}

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus()

	sub := bus.Subscribe(4)
	if sub.ID() == "" {
		t.Error("Subscribe should return a non-empty ID")
	}
	if cap(sub.ch) != 4 {
		t.Errorf("buffer = %d, want 4", cap(sub.ch))
	}
	if bus.SubscriptionCount() != 1 {
		t.Errorf("Expected 1 subscription, got %d", bus.SubscriptionCount())
	}

	def := bus.Subscribe(0)
	if cap(def.ch) != DefaultBuffer {
		t.Errorf("default buffer = %d, want %d", cap(def.ch), DefaultBuffer)
	}
	if def.ID() == sub.ID() {
		t.Error("subscription IDs should be unique")
	}
}

func TestBus_PublishFiltersByType(t *testing.T) {
	bus := NewBus()

	all := bus.Subscribe(8)
	crashes := bus.Subscribe(8, TypeCrashed)

	bus.Publish(NewStatusChangedEvent("p1", "Running"))
	bus.Publish(NewCrashedEvent("p1", 1, true, 1))

	if e := receive(t, all); e.EventType() != TypeStatusChanged {
		t.Errorf("first event = %s, want %s", e.EventType(), TypeStatusChanged)
	}
	if e := receive(t, all); e.EventType() != TypeCrashed {
		t.Errorf("second event = %s, want %s", e.EventType(), TypeCrashed)
	}

	e := receive(t, crashes)
	crashed, ok := e.(CrashedEvent)
	if !ok {
		t.Fatalf("event type = %T, want CrashedEvent", e)
	}
	if crashed.ProjectID() != "p1" || crashed.RestartCount != 1 || !crashed.WillRestart {
		t.Errorf("unexpected crash event: %+v", crashed)
	}
	assertEmpty(t, crashes)
}

func TestBus_PublishNeverBlocks(t *testing.T) {
	var logBuf bytes.Buffer
	bus := NewBus(WithLogger(logging.NewWithWriter(&logBuf, logging.LevelDebug)))

	slow := bus.Subscribe(2)
	fast := bus.Subscribe(100)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(NewStatusChangedEvent("p1", "Running"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}

	if slow.Dropped() != 8 {
		t.Errorf("slow.Dropped() = %d, want 8", slow.Dropped())
	}
	if fast.Dropped() != 0 {
		t.Errorf("fast.Dropped() = %d, want 0", fast.Dropped())
	}
	if bus.Dropped() != 8 {
		t.Errorf("bus.Dropped() = %d, want 8", bus.Dropped())
	}
	if got := strings.Count(logBuf.String(), "dropping events"); got != 1 {
		t.Errorf("drop warning logged %d times, want 1", got)
	}
}

func TestBus_FIFOPerProject(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(100, TypeLogAppended)

	for i := 0; i < 50; i++ {
		bus.Publish(NewLogAppendedEvent("p1", logbuffer.Line{Text: string(rune('A' + i%26))}))
	}

	for i := 0; i < 50; i++ {
		e := receive(t, sub).(LogAppendedEvent)
		if want := string(rune('A' + i%26)); e.Line.Text != want {
			t.Fatalf("event %d text = %q, want %q", i, e.Line.Text, want)
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(4)

	if !bus.Unsubscribe(sub.ID()) {
		t.Error("Unsubscribe should return true for existing subscription")
	}
	if bus.Unsubscribe(sub.ID()) {
		t.Error("Unsubscribe should return false for removed subscription")
	}
	if _, ok := <-sub.Events(); ok {
		t.Error("channel should be closed after Unsubscribe")
	}

	// Close after Unsubscribe must not panic.
	sub.Close()
	bus.Publish(NewStatusChangedEvent("p1", "Stopped"))

	if bus.SubscriptionCount() != 0 {
		t.Errorf("Expected 0 subscriptions, got %d", bus.SubscriptionCount())
	}
}

func TestBus_SubscribeFunc(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})

	bus.SubscribeFunc(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.(StatusChangedEvent).State)
		if len(got) == 2 {
			close(done)
		}
	}, TypeStatusChanged)

	bus.Publish(NewStatusChangedEvent("p1", "Running"))
	bus.Publish(NewCrashedEvent("p1", 1, true, 1))
	bus.Publish(NewStatusChangedEvent("p1", "Restarting"))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "Running" || got[1] != "Restarting" {
		t.Errorf("handler saw %v, want [Running Restarting]", got)
	}
}

func TestBus_HandlerPanicRecovery(t *testing.T) {
	bus := NewBus()

	called := make(chan struct{}, 2)
	bus.SubscribeFunc(func(e Event) {
		called <- struct{}{}
		panic("handler panic")
	})

	bus.Publish(NewStatusChangedEvent("p1", "Running"))
	bus.Publish(NewStatusChangedEvent("p1", "Stopped"))

	for i := 0; i < 2; i++ {
		select {
		case <-called:
		case <-time.After(time.Second):
			t.Fatalf("handler call %d did not happen after a panic", i+1)
		}
	}
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(4)

	bus.Close()
	bus.Close()

	if _, ok := <-sub.Events(); ok {
		t.Error("channel should be closed after bus.Close")
	}
	if bus.SubscriptionCount() != 0 {
		t.Errorf("Expected 0 subscriptions, got %d", bus.SubscriptionCount())
	}

	// Publishing and subscribing after Close are harmless.
	bus.Publish(NewStatusChangedEvent("p1", "Running"))
	late := bus.Subscribe(1)
	if _, ok := <-late.Events(); ok {
		t.Error("subscription on a closed bus should be closed")
	}
}

func TestBus_ConcurrentPublishAndUnsubscribe(t *testing.T) {
	bus := NewBus()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				bus.Publish(NewStatusChangedEvent("p", "Running"))
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				sub := bus.Subscribe(1)
				sub.Close()
			}
		}()
	}
	wg.Wait()

	if bus.SubscriptionCount() != 0 {
		t.Errorf("Expected 0 subscriptions, got %d", bus.SubscriptionCount())
	}
}

func TestToPayload(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		check func(t *testing.T, p Payload)
	}{
		{
			name:  "status",
			event: NewStatusChangedEvent("p1", "Error"),
			check: func(t *testing.T, p Payload) {
				if p.State != "Error" || p.Line != nil || p.WillRestart != nil {
					t.Errorf("unexpected payload: %+v", p)
				}
			},
		},
		{
			name:  "log",
			event: NewLogAppendedEvent("p1", logbuffer.Line{Text: "hello"}),
			check: func(t *testing.T, p Payload) {
				if p.Line == nil || p.Line.Text != "hello" {
					t.Errorf("unexpected payload: %+v", p)
				}
			},
		},
		{
			name:  "crash",
			event: NewCrashedEvent("p1", 5, false, 1),
			check: func(t *testing.T, p Payload) {
				if p.RestartCount != 5 || p.WillRestart == nil || *p.WillRestart {
					t.Errorf("unexpected payload: %+v", p)
				}
				if p.ExitCode == nil || *p.ExitCode != 1 {
					t.Errorf("ExitCode = %v, want 1", p.ExitCode)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ToPayload(tt.event)
			if p.Type != tt.event.EventType() || p.ProjectID != "p1" {
				t.Errorf("Type/ProjectID = %s/%s", p.Type, p.ProjectID)
			}
			tt.check(t, p)
		})
	}
}
