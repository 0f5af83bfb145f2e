// Package batch runs a list of jobs one after another under the monitor and
// locates the yield point of every finished run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/vbluemer/Homogenization-for-Damask/internal/display"
	"github.com/vbluemer/Homogenization-for-Damask/internal/increment"
	"github.com/vbluemer/Homogenization-for-Damask/internal/job"
	"github.com/vbluemer/Homogenization-for-Damask/internal/logging"
	"github.com/vbluemer/Homogenization-for-Damask/internal/monitor"
	"github.com/vbluemer/Homogenization-for-Damask/internal/resultstore"
	"github.com/vbluemer/Homogenization-for-Damask/internal/stopcond"
)

// Status is how a job of the batch ended.
type Status string

const (
	// Stopped jobs met their stop condition.
	Stopped Status = "stopped"
	// Completed jobs ran their whole load case.
	Completed Status = "completed"
	Failed    Status = "failed"
	// Skipped jobs never ran because the batch was aborted.
	Skipped Status = "skipped"
)

// Result is the record of one job.
type Result struct {
	Job            string                  `yaml:"job"`
	Number         int                     `yaml:"number"`
	SimulationType job.SimulationType      `yaml:"simulation_type"`
	StopCondition  string                  `yaml:"stop_condition"`
	Status         Status                  `yaml:"status"`
	ExitCode       int                     `yaml:"exit_code"`
	StopReached    bool                    `yaml:"stop_reached"`
	Metric         float64                 `yaml:"metric"`
	LastIncrement  int                     `yaml:"last_increment"`
	Duration       time.Duration           `yaml:"duration"`
	Forced         bool                    `yaml:"forced,omitempty"`
	Yield          *increment.Interpolated `yaml:"yield,omitempty"`
	Error          string                  `yaml:"error,omitempty"`
}

// Report is the outcome of a batch.
type Report struct {
	Project  string    `yaml:"project"`
	Started  time.Time `yaml:"started"`
	Finished time.Time `yaml:"finished"`
	Aborted  bool      `yaml:"aborted,omitempty"`
	Results  []Result  `yaml:"results"`
}

// Count returns how many results have status st.
func (r *Report) Count(st Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == st {
			n++
		}
	}
	return n
}

// Runner processes jobs strictly in order.
type Runner struct {
	Supervisor *monitor.Supervisor
	// Reader and Registry drive the offline evaluation after each run.
	Reader   resultstore.Reader
	Registry *stopcond.Registry
	Project  string
	// ResultsFile, when set, receives the report after every job.
	ResultsFile string
	// Out receives the operator banners. Nil discards them.
	Out io.Writer
	Log *slog.Logger
}

func (r *Runner) log() *slog.Logger {
	if r.Log == nil {
		return logging.New("batch")
	}
	return r.Log
}

func (r *Runner) registry() *stopcond.Registry {
	if r.Registry == nil {
		return stopcond.NewRegistry()
	}
	return r.Registry
}

// Run supervises every job and returns the report. One job failing, even
// before its solver starts, does not stop the batch; a declined continue prompt or a cancelled ctx skips the
// remaining jobs.
func (r *Runner) Run(ctx context.Context, jobs []*job.Job) (*Report, error) {
	log := r.log()
	rep := &Report{Project: r.Project, Started: time.Now()}

	for i, j := range jobs {
		if j.Number == 0 {
			j.Number, j.Total = i+1, len(jobs)
		}
		if rep.Aborted || ctx.Err() != nil {
			rep.Aborted = true
			rep.Results = append(rep.Results, skipped(j))
			continue
		}

		acc, err := r.accumulatorFor(j)
		if err != nil {
			log.Error("cannot restore job, skipping it", slog.String("job", j.Name), slog.Any("error", err))
			res := skipped(j)
			res.Status, res.Error = Failed, err.Error()
			rep.Results = append(rep.Results, res)
			if err := r.save(rep); err != nil {
				return rep, err
			}
			continue
		}
		log.Info("starting job", slog.String("job", j.Name), slog.String("of", fmt.Sprintf("%d/%d", j.Number, j.Total)))
		out := r.Supervisor.Run(ctx, j, acc)
		res := r.settle(ctx, j, out)
		rep.Results = append(rep.Results, res)
		r.banner(res, out)

		if !out.Continue {
			log.Warn("batch aborted by operator", slog.Int("remaining", len(jobs)-i-1))
			rep.Aborted = true
		}
		if err := r.save(rep); err != nil {
			return rep, err
		}
	}
	rep.Finished = time.Now()
	return rep, r.save(rep)
}

// accumulatorFor restores the persisted accumulator of a restarted job, or
// starts a fresh one.
func (r *Runner) accumulatorFor(j *job.Job) (*increment.Accumulator, error) {
	interval := r.Supervisor.Settings.PollInterval
	path := j.Runtime.AccumulatorFile
	if j.UseRestart && path != "" {
		if _, err := os.Stat(path); err == nil {
			acc, err := increment.LoadAccumulator(path, interval)
			if err != nil {
				return nil, fmt.Errorf("restore job %s: %w", j.Name, err)
			}
			return acc, nil
		}
	}
	return increment.NewAccumulator(interval), nil
}

func skipped(j *job.Job) Result {
	return Result{
		Job:            j.Name,
		Number:         j.Number,
		SimulationType: j.SimulationType,
		StopCondition:  fmt.Sprint(j.Stop),
		Status:         Skipped,
		LastIncrement:  -1,
	}
}

func (r *Runner) settle(ctx context.Context, j *job.Job, out monitor.Outcome) Result {
	acc := out.Accumulator
	res := Result{
		Job:            j.Name,
		Number:         j.Number,
		SimulationType: j.SimulationType,
		StopCondition:  fmt.Sprint(j.Stop),
		ExitCode:       out.ExitCode,
		StopReached:    acc.StopReached,
		Metric:         acc.Metric,
		LastIncrement:  acc.LastIncrement,
		Duration:       out.Duration,
		Forced:         out.Forced,
	}
	switch {
	case !acc.Succeeded:
		res.Status = Failed
	case acc.StopReached:
		res.Status = Stopped
	default:
		res.Status = Completed
	}
	if out.Err != nil {
		res.Error = out.Err.Error()
	}
	if res.Status == Failed {
		return res
	}
	if _, ok := j.Stop.(job.Yielding); !ok {
		return res
	}

	y, err := r.Locate(ctx, j)
	if err != nil {
		r.log().Warn("could not locate yield point", slog.String("job", j.Name), slog.Any("error", err))
		res.Error = err.Error()
		return res
	}
	res.Yield = y
	return res
}

// Locate runs the offline evaluation of j on its final result file. It
// returns nil when the stop condition never fires.
func (r *Runner) Locate(ctx context.Context, j *job.Job) (*increment.Interpolated, error) {
	ev, err := r.registry().For(j.Stop)
	if err != nil {
		return nil, err
	}
	st, err := resultstore.Open(j.Runtime.ResultFile)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	h, err := r.Reader.History(ctx, st)
	if err != nil {
		return nil, err
	}
	y, err := ev.Offline(j, h)
	if errors.Is(err, stopcond.ErrNotEvaluable) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("locate yield of %s: %w", j.Name, err)
	}
	return y, nil
}

func (r *Runner) banner(res Result, out monitor.Outcome) {
	if r.Out == nil {
		return
	}
	var se *monitor.SolverError
	switch {
	case errors.As(out.Err, &se):
		fmt.Fprintln(r.Out, display.ErrorBanner(fmt.Sprintf("%s: %s", res.Job, display.ExitCode(se.ExitCode)), se.Tail))
	case res.Status == Failed:
		fmt.Fprintln(r.Out, display.ErrorBanner(fmt.Sprintf("%s ended unsuccessfully", res.Job), errorLines(out.Err)))
	default:
		fmt.Fprintln(r.Out, display.DoneBanner(res.Job, res.Duration, res.Metric, res.StopReached))
	}
}

func errorLines(err error) []string {
	if err == nil {
		return nil
	}
	return []string{err.Error()}
}
