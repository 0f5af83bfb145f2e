package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vbluemer/Homogenization-for-Damask/internal/increment"
	"github.com/vbluemer/Homogenization-for-Damask/internal/job"
	"github.com/vbluemer/Homogenization-for-Damask/internal/lifecycle"
	"github.com/vbluemer/Homogenization-for-Damask/internal/logging"
	"github.com/vbluemer/Homogenization-for-Damask/internal/resultstore"
	"github.com/vbluemer/Homogenization-for-Damask/internal/stopcond"
)

// Supervisor runs jobs one at a time. The zero value of every field except
// Settings is usable.
type Supervisor struct {
	Settings Settings
	Reader   resultstore.Reader
	Registry *stopcond.Registry
	// Prompter asks whether to continue after an operator interrupt.
	Prompter lifecycle.Prompter
	// Interrupts delivers operator interrupts. The first one stops the
	// current job; one more while the solver finishes forces it down.
	Interrupts <-chan os.Signal
	// Observer, when set, is called on entry to every state.
	Observer func(State, *increment.Accumulator)
	Log      *slog.Logger
}

// Outcome is how one job ended.
type Outcome struct {
	Job         *job.Job
	Accumulator *increment.Accumulator
	ExitCode    int
	Exit        lifecycle.ExitKind
	// Continue is false when the operator declined to run further jobs.
	Continue bool
	// Forced is set when the solver was made to stop mid-write.
	Forced   bool
	Duration time.Duration
	Err      error
}

// run is the state of one Supervisor.Run call.
type run struct {
	s    *Supervisor
	ctx  context.Context
	job  *job.Job
	acc  *increment.Accumulator
	eval stopcond.Evaluator
	proc *lifecycle.Process
	log  *slog.Logger

	state State
	// seen is the result file timestamp before the current cycle claimed it.
	seen time.Time

	manual, cancelled, stopping bool
	stop                        lifecycle.StopResult
	err                         error
}

// Run supervises j until the solver has exited, recording every read
// increment in acc. It never returns with the solver still running.
func (s *Supervisor) Run(ctx context.Context, j *job.Job, acc *increment.Accumulator) Outcome {
	log := s.Log
	if log == nil {
		log = logging.ForJob("monitor", j.Name, j.Number, j.Total)
	}
	r := &run{s: s, ctx: ctx, job: j, acc: acc, log: log}
	r.stop.Continue = true
	start := time.Now()
	r.enter(Starting)

	defer func() {
		if r.proc != nil && !r.proc.Exited() {
			r.log.Error("solver still running after supervision ended, killing", slog.Int("pid", r.proc.Pid()))
			_ = r.proc.Kill()
			<-r.proc.Done()
		}
	}()

	for r.state != Terminated {
		if r.state.polling() && r.proc.Exited() {
			r.log.Debug("solver exited", slog.String("state", r.state.String()))
			r.enter(Terminated)
			break
		}
		next, err := r.safeStep()
		if err != nil {
			r.fail(err)
			next = Stopping
			if r.state == Stopping || r.proc == nil {
				next = Terminated
			}
		}
		r.enter(next)
	}

	out := r.finish()
	out.Duration = time.Since(start)
	return out
}

func (r *run) enter(st State) {
	r.state = st
	if r.s.Observer != nil {
		r.s.Observer(st, r.acc)
	}
}

func (r *run) fail(err error) {
	if r.err == nil {
		r.err = err
	}
	r.acc.Succeeded = false
	r.log.Error("run ended unsuccessfully", slog.String("state", r.state.String()), slog.Any("error", err))
}

func (r *run) safeStep() (next State, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("monitor %s: panic: %v", r.state, p)
		}
	}()
	return r.step()
}

func (r *run) step() (State, error) {
	switch r.state {
	case Starting:
		return r.start()
	case WaitingFile:
		return r.waitFile(), nil
	case WaitingUpdate:
		return r.waitUpdate(), nil
	case CheckingLock:
		return r.checkLock(), nil
	case ReadingIncrement:
		return r.readIncrement()
	case EvaluatingStop:
		return r.evaluate(), nil
	case Stopping:
		return r.shutdown()
	}
	return Terminated, fmt.Errorf("monitor: no transition from %s", r.state)
}

func (r *run) start() (State, error) {
	eval, err := r.registry().For(r.job.Stop)
	if err != nil {
		return Terminated, fmt.Errorf("select stop condition: %w", err)
	}
	r.eval = eval
	if err := os.MkdirAll(r.job.Runtime.Dir, 0o755); err != nil {
		return Terminated, fmt.Errorf("create working dir: %w", err)
	}
	cmd := r.s.Settings.Command(r.job)
	proc, err := lifecycle.Start(cmd)
	if err != nil {
		return Terminated, err
	}
	r.proc = proc
	r.log.Info("solver started",
		slog.Int("pid", proc.Pid()),
		slog.String("executable", cmd.Executable),
		slog.String("log", cmd.LogFile))
	return WaitingFile, nil
}

func (r *run) registry() *stopcond.Registry {
	if r.s.Registry == nil {
		return stopcond.NewRegistry()
	}
	return r.s.Registry
}

func (r *run) waitFile() State {
	if _, err := os.Stat(r.job.Runtime.ResultFile); err == nil {
		r.log.Debug("result file appeared", slog.String("path", r.job.Runtime.ResultFile))
		return WaitingUpdate
	}
	return r.pause(WaitingFile)
}

func (r *run) waitUpdate() State {
	fi, err := os.Stat(r.job.Runtime.ResultFile)
	if err != nil {
		return r.pause(WaitingFile)
	}
	if !fi.ModTime().After(r.acc.LastModified) {
		return r.pause(WaitingUpdate)
	}
	r.seen = r.acc.LastModified
	r.acc.LastModified = fi.ModTime()
	return CheckingLock
}

// checkLock hands the cycle back unread while the solver holds a write lock.
// The timestamp is released so the same change is looked at again.
func (r *run) checkLock() State {
	if lifecycle.WriteLockPresent(filepath.Dir(r.job.Runtime.ResultFile)) {
		r.acc.LastModified = r.seen
		r.log.Debug("solver is writing, not reading now")
		return r.pause(WaitingUpdate)
	}
	return ReadingIncrement
}

func (r *run) readIncrement() (State, error) {
	newest, sample, err := r.read()
	if err != nil {
		// Until the first increment lands the solver is still setting up and
		// an unreadable file is expected. The claimed timestamp is kept, so
		// each version of the file counts at most once.
		if r.acc.LastIncrement < 0 {
			r.log.Debug("solver still starting, result file not readable yet", slog.Any("error", err))
			return r.pause(WaitingUpdate), nil
		}
		n := r.acc.ParseError()
		limit := r.s.Settings.MaxParseErrors
		if r.acc.ExceedsParseErrors(limit) {
			return Stopping, fmt.Errorf("%w: %d in a row: %v", ErrTooManyParseErrors, n, err)
		}
		r.log.Warn("could not read result file, retrying",
			slog.Int("errors", n), slog.Int("threshold", limit), slog.Any("error", err))
		return r.pause(WaitingUpdate), nil
	}
	r.acc.ResetParseErrors()

	switch {
	case newest == 0:
		r.log.Debug("only the reference increment is written")
		return r.pause(WaitingUpdate), nil
	case !r.acc.Observe(newest):
		return r.pause(WaitingUpdate), nil
	}
	r.acc.Record(newest, sample)
	r.log.Info("increment read", slog.Int("increment", newest), slog.Int("of", r.job.TotalIncrements()))
	if path := r.job.Runtime.AccumulatorFile; path != "" {
		if err := r.acc.Save(path); err != nil {
			r.log.Warn("could not persist increments", slog.Any("error", err))
		}
	}
	return EvaluatingStop, nil
}

// read homogenizes the newest increment of a private copy of the result
// file. The sample is only computed when the increment is new.
func (r *run) read() (int, increment.Sample, error) {
	rt := r.job.Runtime
	if err := resultstore.CopyScratch(rt.ResultFile, rt.ScratchFile); err != nil {
		return 0, increment.Sample{}, err
	}
	st, err := resultstore.Open(rt.ScratchFile)
	if err != nil {
		return 0, increment.Sample{}, err
	}
	defer st.Close()
	newest, err := st.Latest()
	if err != nil {
		return 0, increment.Sample{}, err
	}
	if newest == 0 || !r.acc.Observe(newest) {
		return newest, increment.Sample{}, nil
	}
	sample, err := r.s.Reader.Homogenize(st, newest)
	if err != nil {
		return 0, increment.Sample{}, fmt.Errorf("homogenize increment %d: %w", newest, err)
	}
	return newest, sample, nil
}

func (r *run) evaluate() State {
	yielded, metric := r.eval.Online(r.job, r.acc.History)
	r.acc.Metric = metric
	r.acc.StopReached = yielded
	r.log.Debug("stop condition evaluated",
		slog.Int("increment", r.acc.LastIncrement),
		slog.Bool("yielded", yielded),
		slog.Float64("metric", metric))
	if yielded {
		r.log.Info("stop condition reached",
			slog.String("condition", fmt.Sprint(r.job.Stop)),
			slog.Int("increment", r.acc.LastIncrement),
			slog.Float64("metric", metric))
		return Stopping
	}
	return WaitingUpdate
}

func (r *run) shutdown() (State, error) {
	r.stopping = true
	dir := filepath.Dir(r.job.Runtime.ResultFile)
	res, err := lifecycle.RequestStop(r.proc, lifecycle.StopOptions{
		LockPresent: func() bool { return lifecycle.AnyLockPresent(dir) },
		Quick:       true,
		Manual:      r.manual,
		Interrupts:  r.s.Interrupts,
		KillAfter:   r.s.Settings.KillAfter,
		Prompter:    r.s.Prompter,
		Log:         r.log,
	})
	r.stop = res
	if err != nil {
		return Terminated, fmt.Errorf("stop solver: %w", err)
	}
	return Terminated, nil
}

// pause sleeps one poll interval and returns next, or cuts the sleep short
// when the solver exits, the operator interrupts or ctx ends.
func (r *run) pause(next State) State {
	t := time.NewTimer(r.s.Settings.PollInterval)
	defer t.Stop()
	select {
	case <-t.C:
		return next
	case <-r.proc.Done():
		return Terminated
	case sig := <-r.s.Interrupts:
		r.log.Warn("interrupted by operator", slog.String("signal", sig.String()))
		r.manual = true
		return Stopping
	case <-r.ctx.Done():
		r.log.Warn("run cancelled", slog.Any("cause", context.Cause(r.ctx)))
		r.cancelled = true
		return Stopping
	}
}

// finish waits for the solver and settles the verdict.
func (r *run) finish() Outcome {
	out := Outcome{Job: r.job, Accumulator: r.acc, Continue: r.stop.Continue, Forced: r.stop.Forced}
	if r.proc == nil {
		r.acc.Succeeded = false
		out.ExitCode = -1
		out.Exit = lifecycle.ExitFault
		out.Err = r.err
		return out
	}
	if r.err != nil && !r.proc.Exited() {
		_ = r.proc.Kill()
	}
	out.ExitCode = r.proc.Wait()
	out.Exit = lifecycle.Classify(out.ExitCode)

	switch {
	case r.err != nil:
	case out.Exit == lifecycle.ExitFault:
		tail, err := lifecycle.LogTail(r.job.Runtime.LogFile, r.s.tailLines())
		r.err = &SolverError{ExitCode: out.ExitCode, Tail: tail, Err: err}
	case out.Exit == lifecycle.ExitTerminated && !r.stopping:
		r.err = fmt.Errorf("%w (exit code %d)", ErrSolverKilled, out.ExitCode)
	case r.cancelled:
		r.err = context.Cause(r.ctx)
	}
	if r.err != nil || r.manual || r.stop.Forced {
		r.acc.Succeeded = false
	}
	out.Err = r.err

	var se *SolverError
	switch {
	case errors.As(r.err, &se):
		r.log.Error("solver reported an error", slog.Int("exit_code", se.ExitCode), slog.Int("log_lines", len(se.Tail)))
	case r.acc.Succeeded:
		r.log.Info("job finished",
			slog.Duration("elapsed", r.proc.Runtime()),
			slog.Int("exit_code", out.ExitCode),
			slog.Bool("stop_reached", r.acc.StopReached),
			slog.Float64("metric", r.acc.Metric))
	default:
		r.log.Warn("job ended unsuccessfully", slog.Int("exit_code", out.ExitCode), slog.Any("error", r.err))
	}
	return out
}

func (s *Supervisor) tailLines() int {
	if s.Settings.LogTailLines <= 0 {
		return 50
	}
	return s.Settings.LogTailLines
}
