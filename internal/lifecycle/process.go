// Package lifecycle starts the solver as a child process, interprets how it
// ended and stops it without leaving a half-written result file behind when
// that can be avoided.
package lifecycle

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"
)

// Command describes one solver launch.
type Command struct {
	Executable string
	Args       []string
	// Env entries are appended to the supervisor's environment.
	Env []string
	Dir string
	// LogFile receives the child's stdout and stderr, appended.
	LogFile string
}

// Process is a running or finished child.
type Process struct {
	cmd     *exec.Cmd
	log     *os.File
	done    chan struct{}
	state   *os.ProcessState
	waitErr error
	started time.Time
	ended   time.Time
}

// Start launches c. The child runs in its own process group so terminal
// interrupts reach only the supervisor, which decides how to pass them on.
func Start(c Command) (*Process, error) {
	cmd := exec.Command(c.Executable, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	setProcessGroup(cmd)

	var logFile *os.File
	if c.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(c.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open solver log: %w", err)
		}
		cmd.Stdout = f
		cmd.Stderr = f
		logFile = f
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, fmt.Errorf("start %s: %w", c.Executable, err)
	}

	p := &Process{cmd: cmd, log: logFile, done: make(chan struct{}), started: time.Now()}
	go func() {
		p.waitErr = cmd.Wait()
		p.state = cmd.ProcessState
		p.ended = time.Now()
		if p.log != nil {
			_ = p.log.Close()
		}
		close(p.done)
	}()
	return p, nil
}

// Pid is the child's process id.
func (p *Process) Pid() int { return p.cmd.Process.Pid }

// Done is closed once the child has exited and been reaped.
func (p *Process) Done() <-chan struct{} { return p.done }

// Exited reports whether the child has ended, without blocking.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the child exits and returns its exit code.
func (p *Process) Wait() int {
	<-p.done
	return p.ExitCode()
}

// Runtime is how long the child ran, or has been running.
func (p *Process) Runtime() time.Duration {
	if p.Exited() {
		return p.ended.Sub(p.started)
	}
	return time.Since(p.started)
}

// ExitCode is the child's exit status: the code it returned, or minus the
// number of the signal that ended it. It is -1 while the child runs.
func (p *Process) ExitCode() int {
	if !p.Exited() || p.state == nil {
		return -1
	}
	if ws, ok := p.state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return -int(ws.Signal())
	}
	return p.state.ExitCode()
}

// Signal sends sig to the child. Signalling a child that already exited is
// not an error.
func (p *Process) Signal(sig os.Signal) error {
	if p.Exited() {
		return nil
	}
	if err := p.cmd.Process.Signal(sig); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			return nil
		}
		return fmt.Errorf("signal %v to pid %d: %w", sig, p.Pid(), err)
	}
	return nil
}

// Kill ends the child unconditionally.
func (p *Process) Kill() error {
	if p.Exited() {
		return nil
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill pid %d: %w", p.Pid(), err)
	}
	return nil
}

// ExitKind classifies an exit code.
type ExitKind int

const (
	// ExitClean is a voluntary exit with code 0.
	ExitClean ExitKind = iota
	// ExitTerminated is an exit caused by a signal the supervisor sent.
	ExitTerminated
	// ExitFault is a solver-reported internal error.
	ExitFault
)

// Classify maps an exit code to its kind.
func Classify(code int) ExitKind {
	switch {
	case code == 0:
		return ExitClean
	case code < 0:
		return ExitTerminated
	}
	return ExitFault
}
