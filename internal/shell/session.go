package shell

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/x/ansi"
	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/devboot/internal/errors"
	"github.com/Iron-Ham/devboot/internal/logbuffer"
	"github.com/Iron-Ham/devboot/internal/logging"
)

// Session is a live shell process.
//
// Thread Safety: all methods are safe for concurrent use.
type Session struct {
	cmd    *exec.Cmd
	pid    int
	logger *logging.Logger

	stdinMu sync.Mutex
	stdin   *os.File
	stdout  *os.File
	stderr  *os.File

	killWait time.Duration

	done     chan struct{}
	exitCode int
	waitErr  error

	closeReaders sync.Once
}

func newSession(cmd *exec.Cmd, stdin, stdout, stderr *os.File, killWait time.Duration, logger *logging.Logger) *Session {
	return &Session{
		cmd:      cmd,
		pid:      cmd.Process.Pid,
		logger:   logger.With("pid", cmd.Process.Pid),
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		killWait: killWait,
		done:     make(chan struct{}),
		exitCode: -1,
	}
}

// start launches the readers and the goroutine that reaps the process.
func (s *Session) start(onLine LineFunc) {
	var readers conc.WaitGroup
	readers.Go(func() { readLines(s.stdout, logbuffer.StreamStdout, onLine) })
	readers.Go(func() { readLines(s.stderr, logbuffer.StreamStderr, onLine) })

	go func() {
		s.waitErr = s.cmd.Wait()

		// Background children may still hold the write ends. Give the
		// readers a bounded window to drain, then cut them off.
		drained := make(chan struct{})
		go func() {
			readers.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(s.killWait):
			s.logger.Warn("output still open after exit, closing readers")
			s.closeOutput()
			<-drained
		}
		s.closeOutput()

		s.stdinMu.Lock()
		_ = s.stdin.Close()
		s.stdin = nil
		s.stdinMu.Unlock()

		if s.cmd.ProcessState != nil {
			s.exitCode = s.cmd.ProcessState.ExitCode()
		}
		close(s.done)
	}()
}

func (s *Session) closeOutput() {
	s.closeReaders.Do(func() {
		_ = s.stdout.Close()
		_ = s.stderr.Close()
	})
}

// readLines reads r until EOF or error, handing each line to onLine.
func readLines(r io.Reader, stream logbuffer.Stream, onLine LineFunc) {
	br := bufio.NewReaderSize(r, 64*1024)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimRight(line, "\r\n")
			onLine(stream, ansi.Strip(line))
		}
		if err != nil {
			return
		}
	}
}

// PID returns the shell's process ID, which is also its process group ID.
func (s *Session) PID() int {
	return s.pid
}

// Done is closed once the process has exited and all output has been read.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Alive reports whether the session has not finished yet.
func (s *Session) Alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// ExitCode returns the shell's exit status. It is -1 while the session is
// running and when the shell was killed by a signal.
func (s *Session) ExitCode() int {
	select {
	case <-s.done:
		return s.exitCode
	default:
		return -1
	}
}

// WriteLine writes text followed by a newline to the shell's stdin.
func (s *Session) WriteLine(text string) error {
	s.stdinMu.Lock()
	defer s.stdinMu.Unlock()

	if s.stdin == nil {
		return errors.ErrNotRunning
	}
	if _, err := io.WriteString(s.stdin, text+"\n"); err != nil {
		return errors.NewIOError("failed to write to process input", err)
	}
	return nil
}

// Interrupt sends SIGINT to the session's process group.
func (s *Session) Interrupt() error {
	if !s.Alive() {
		return errors.ErrNotRunning
	}
	if err := signalGroup(s.pid, syscall.SIGINT); err != nil {
		return fmt.Errorf("failed to interrupt process group %d: %w", s.pid, err)
	}
	return nil
}

// Terminate stops the session: SIGTERM to the group, up to grace for it to
// exit, then SIGKILL. It returns once the session is done or after a
// bounded wait following the kill, whichever is first.
func (s *Session) Terminate(grace time.Duration) error {
	if !s.Alive() {
		return nil
	}

	if err := signalGroup(s.pid, syscall.SIGTERM); err != nil {
		s.logger.Warn("failed to send SIGTERM", "error", err)
	}
	if s.wait(grace) {
		return nil
	}

	s.logger.Warn("process did not exit within grace period, killing", "grace", grace.String())
	if err := signalGroup(s.pid, syscall.SIGKILL); err != nil {
		s.logger.Warn("failed to send SIGKILL", "error", err)
	}
	if s.wait(s.killWait) {
		return nil
	}

	s.closeOutput()
	if s.wait(s.killWait) {
		return nil
	}
	return fmt.Errorf("process %d did not exit after SIGKILL", s.pid)
}

func (s *Session) wait(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-s.done:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.done:
		return true
	case <-timer.C:
		return false
	}
}
