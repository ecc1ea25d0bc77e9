// Package supervisor runs projects and keeps them alive.
//
// A Supervisor ties the other pieces together: it reads project definitions
// from a ProjectStore, launches shell sessions through a Launcher, tracks
// them in a registry.Registry, captures their output into per-project
// logbuffer.Buffers and publishes status, log and crash events on an
// event.Bus.
//
// # Lifecycle
//
//	Stopped ──start──▶ Running ──exit 0──▶ Stopped
//	                      │
//	                   crash (restart_on_crash)
//	                      ▼
//	                 Restarting ──timer──▶ Running
//	                      │
//	                 attempts spent / relaunch failed
//	                      ▼
//	                    Error
//
// An explicit start or stop resets the restart counter. A max of zero makes
// the first crash final. Crashes are reported through events, and the
// give-up is logged as an ErrRestartLimitExceeded at critical severity.
//
// # Locking
//
// Every transition for one project runs inside registry.Do, so starts,
// stops and exit handling on the same ID are serialized while different
// projects proceed in parallel. Output readers never take the registry
// lock; a stopped session is detached so late lines are dropped. A new
// session's output is held until its Running status has been published.
package supervisor
