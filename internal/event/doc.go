// Package event provides a non-blocking pub-sub event bus for DevBoot.
//
// The supervisor publishes lifecycle, log and crash events; the HTTP event
// stream, the history journal and the terminal dashboard consume them. None
// of the consumers are known to the supervisor.
//
// # Main Types
//
//   - [Event]: Interface that all events must implement
//   - [Bus]: Fan-out dispatcher with one buffered channel per subscriber
//   - [Subscription]: A subscriber's channel and its filter
//
// # Event Types
//
//   - [StatusChangedEvent]: "project.status_changed", every lifecycle transition
//   - [LogAppendedEvent]: "project.log_appended", every captured line
//   - [CrashedEvent]: "project.crashed", abnormal exit under restart_on_crash
//
// # Delivery
//
// [Bus.Publish] never blocks. Each subscriber owns a buffered channel; when
// it is full the event is dropped for that subscriber only and counted in
// [Bus.Dropped]. Events from one publisher arrive in publish order, which
// gives FIFO per project. There is no ordering across projects.
//
// # Basic Usage
//
//	bus := event.NewBus()
//	defer bus.Close()
//
//	sub := bus.Subscribe(64, event.TypeCrashed)
//	defer sub.Close()
//
//	for e := range sub.Events() {
//	    crashed := e.(event.CrashedEvent)
//	    log.Printf("%s crashed (%d)", crashed.ProjectID(), crashed.RestartCount)
//	}
//
// [Bus.SubscribeFunc] runs a handler on its own goroutine instead:
//
//	bus.SubscribeFunc(func(e event.Event) {
//	    log.Printf("Event: %s at %v", e.EventType(), e.Timestamp())
//	})
package event
