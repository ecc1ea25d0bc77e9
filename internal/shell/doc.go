// Package shell launches one shell session per project and wires its
// standard streams.
//
// A session is a single shell process reading commands from stdin. The
// launcher writes the project's commands one per line and keeps stdin open
// so input can be relayed later. Each command runs whether or not the
// previous one failed, unless the project asks for fail-fast, in which case
// the shell is put in "set -e" mode first.
//
// # Main Types
//
//   - [Launcher]: resolves the shell and spawns sessions
//   - [Spec]: what to run (directory, commands, environment)
//   - [Session]: a live process with Done, Interrupt, Terminate and WriteLine
//
// # Process Groups
//
// Every session runs in its own process group. Interrupt and Terminate
// signal the whole group, so children started by the commands receive the
// signal too. The shell installs a no-op INT trap before running anything:
// an interrupt stops the foreground command while the shell itself keeps
// reading stdin.
//
// # Output
//
// One goroutine per stream reads lines, strips ANSI escape sequences and
// hands them to the [LineFunc]. Ordering across stdout and stderr is best
// effort. [Session.Done] closes only after both readers have drained and
// the process has been reaped.
package shell
