package lifecycle

import (
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"
)

// StopOptions tunes RequestStop.
type StopOptions struct {
	// LockPresent reports whether the solver is mid-write. Nil means never.
	LockPresent func() bool
	// Quick allows an immediate SIGTERM when no lock marker is present.
	Quick bool
	// Manual marks an operator-initiated stop; the operator is then asked
	// whether the remaining jobs should still run.
	Manual bool
	// Interrupts delivers further operator interrupts while waiting. A
	// received interrupt escalates the polite request to SIGTERM.
	Interrupts <-chan os.Signal
	// KillAfter bounds the wait after SIGTERM before SIGKILL. Zero waits
	// indefinitely.
	KillAfter time.Duration
	Prompter  Prompter
	Log       *slog.Logger
}

// StopResult records how the child was stopped.
type StopResult struct {
	// Continue is false when the operator declined to run remaining jobs.
	Continue bool
	// Quick is set when the child was terminated between increments.
	Quick bool
	// Forced is set when a polite stop was overridden; the result file may
	// then be inconsistent.
	Forced   bool
	ExitCode int
}

// RequestStop ends p and waits for it to exit.
//
// Between increments (no lock marker) a quick stop sends SIGTERM at once.
// Otherwise SIGINT asks the solver to finish its current increment; an
// interrupt arriving while waiting escalates to SIGTERM.
func RequestStop(p *Process, opts StopOptions) (StopResult, error) {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	res := StopResult{Continue: true}

	switch {
	case p.Exited():
		log.Debug("solver already exited", slog.Int("pid", p.Pid()))
	case opts.Quick && (opts.LockPresent == nil || !opts.LockPresent()):
		log.Info("solver is not writing, terminating", slog.Int("pid", p.Pid()))
		res.Quick = true
		if err := terminate(p, opts.KillAfter, log); err != nil {
			return res, err
		}
	default:
		log.Info("asking solver to stop after the current increment; interrupt again to force", slog.Int("pid", p.Pid()))
		if err := p.Signal(syscall.SIGINT); err != nil {
			return res, err
		}
		select {
		case <-p.Done():
		case sig := <-opts.Interrupts:
			log.Warn("forcing solver to stop, result file may be inconsistent", slog.String("signal", sig.String()))
			res.Forced = true
			if err := terminate(p, opts.KillAfter, log); err != nil {
				return res, err
			}
		}
	}
	res.ExitCode = p.Wait()

	if opts.Manual {
		prompter := opts.Prompter
		if prompter == nil {
			prompter = StdinPrompter{}
		}
		ok, err := prompter.Confirm("Solver stopped. Continue with the remaining jobs?", true)
		if err != nil {
			return res, fmt.Errorf("confirm continue: %w", err)
		}
		res.Continue = ok
	}
	return res, nil
}

// terminate sends SIGTERM and, when killAfter is set, SIGKILL if the child
// outlives it.
func terminate(p *Process, killAfter time.Duration, log *slog.Logger) error {
	if err := p.Signal(syscall.SIGTERM); err != nil {
		return err
	}
	if killAfter <= 0 {
		<-p.Done()
		return nil
	}
	select {
	case <-p.Done():
		return nil
	case <-time.After(killAfter):
		log.Warn("solver ignored SIGTERM, killing", slog.Int("pid", p.Pid()), slog.Duration("after", killAfter))
		if err := p.Kill(); err != nil {
			return err
		}
		<-p.Done()
		return nil
	}
}
