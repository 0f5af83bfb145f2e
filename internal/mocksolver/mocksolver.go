// Package mocksolver is a scripted stand-in for the crystal-plasticity
// solver. It honours the solver's launch flags, result file, lock marker and
// signal handling, and writes synthetic uniaxial increments. Testing only.
package mocksolver

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/vbluemer/Homogenization-for-Damask/internal/resultstore"
	"github.com/vbluemer/Homogenization-for-Damask/internal/tensor"
)

// Environment variables selecting the scripted behaviour, since the launch
// flags are fixed by the solver contract.
const (
	EnvProfile    = "HOMOGENIZE_MOCK_PROFILE"
	EnvIncrements = "HOMOGENIZE_MOCK_INCREMENTS"
	EnvInterval   = "HOMOGENIZE_MOCK_INTERVAL"
)

// Profile is a scripted run.
type Profile string

const (
	// Hardening is elastic up to a strain of YieldStrain, then hardens.
	Hardening Profile = "hardening"
	// Elastic stays linear for every increment.
	Elastic Profile = "elastic"
	// Fault writes the reference increment, logs, and exits with code 1.
	Fault Profile = "fault"
	// Locked writes two increments and then holds the lock marker until
	// asked to stop.
	Locked Profile = "locked"
	// Garbage keeps rewriting a result file that is not a result store.
	Garbage Profile = "garbage"
	// Corrupt writes its increments and then keeps replacing the result
	// file with junk.
	Corrupt Profile = "corrupt"
)

// Material constants of the synthetic curve.
const (
	Modulus          = 1e5
	HardeningModulus = 1e4
	YieldStrain      = 0.003
	StrainStep       = 0.001
	Poisson          = 0.3
	SlipStrength     = 100.0
	pointsDefault    = 4
)

// Options is one mock run.
type Options struct {
	Geom, Load, Material, Numerics string
	JobName                        string
	Dir                            string
	Restart                        int

	Profile    Profile
	Increments int
	Interval   time.Duration
	Points     int
	Out        io.Writer
}

// ResultFile is where the run writes its increments.
func (o Options) ResultFile() string {
	return filepath.Join(o.Dir, o.JobName+".results.db")
}

// ParseArgs reads the solver launch flags and the profile environment.
func ParseArgs(args []string, getenv func(string) string) (Options, error) {
	var o Options
	fs := pflag.NewFlagSet("mock-solver", pflag.ContinueOnError)
	fs.StringVar(&o.Geom, "geom", "", "grid file")
	fs.StringVar(&o.Load, "load", "", "load case file")
	fs.StringVar(&o.Material, "material", "", "material file")
	fs.StringVar(&o.Numerics, "numerics", "", "numerics file")
	fs.StringVar(&o.JobName, "jobname", "", "job name")
	fs.StringVar(&o.Dir, "workingdirectory", ".", "working directory")
	fs.IntVar(&o.Restart, "restart", 0, "restart increment")
	if err := fs.Parse(args); err != nil {
		return o, fmt.Errorf("parse solver flags: %w", err)
	}
	if o.JobName == "" {
		return o, fmt.Errorf("parse solver flags: --jobname is required")
	}

	o.Profile = Hardening
	if p := getenv(EnvProfile); p != "" {
		o.Profile = Profile(p)
	}
	o.Increments = 10
	if s := getenv(EnvIncrements); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return o, fmt.Errorf("%s: %w", EnvIncrements, err)
		}
		o.Increments = n
	}
	o.Interval = 50 * time.Millisecond
	if s := getenv(EnvInterval); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			return o, fmt.Errorf("%s: %w", EnvInterval, err)
		}
		o.Interval = d
	}
	return o, nil
}

// Main runs the mock as a solver process would: flags from args, profile
// from the environment, SIGINT as the stop request.
func Main(args []string) int {
	o, err := ParseArgs(args, os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, syscall.SIGINT)
	defer signal.Stop(interrupts)
	return Run(context.Background(), o, interrupts)
}

// State is the uniform state of increment k: applied strain k·StrainStep
// along x, elastic up to YieldStrain and hardening beyond for the Hardening
// profile.
func State(p Profile, k int) resultstore.Uniform {
	e := float64(k) * StrainStep
	ep := 0.0
	sigma := Modulus * e
	if p == Hardening && e > YieldStrain {
		// σ = σy + H·(e - ey) and e = σ/E + ep
		sigma = Modulus*YieldStrain + HardeningModulus*(e-YieldStrain)
		ep = e - sigma/Modulus
	}
	F := tensor.Tensor{{math.Exp(e), 0, 0}, {0, math.Exp(-Poisson * e), 0}, {0, 0, math.Exp(-Poisson * e)}}
	Fp := tensor.Tensor{{math.Exp(ep), 0, 0}, {0, 1, 0}, {0, 0, 1}}
	return resultstore.Uniform{
		F:     F,
		P:     tensor.Tensor{{sigma, 0, 0}, {0, 0, 0}, {0, 0, 0}},
		Fp:    Fp,
		Gamma: []float64{ep, ep},
		Xi:    []float64{SlipStrength, SlipStrength},
	}
}

// Run executes the profile until it completes, ctx ends or an interrupt
// arrives. An interrupt lets the current increment finish and exits 0, as
// the real solver does. The return value is the process exit code.
func Run(ctx context.Context, o Options, interrupts <-chan os.Signal) int {
	out := o.Out
	if out == nil {
		out = os.Stdout
	}
	if o.Points <= 0 {
		o.Points = pointsDefault
	}
	if err := os.MkdirAll(o.Dir, 0o755); err != nil {
		fmt.Fprintf(out, "mock-solver: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "mock-solver: job %s profile %s in %s\n", o.JobName, o.Profile, o.Dir)

	switch o.Profile {
	case Garbage:
		return garbage(ctx, o, out, interrupts)
	case Hardening, Elastic, Fault, Locked, Corrupt:
	default:
		fmt.Fprintf(out, "mock-solver: unknown profile %q\n", o.Profile)
		return 2
	}

	w, err := resultstore.NewWriter(o.ResultFile())
	if err != nil {
		fmt.Fprintf(out, "mock-solver: %v\n", err)
		return 1
	}
	defer w.Close()
	for k, v := range map[string]string{"solver": "mock-solver", "job": o.JobName, "profile": string(o.Profile)} {
		if err := w.SetMeta(k, v); err != nil {
			fmt.Fprintf(out, "mock-solver: %v\n", err)
			return 1
		}
	}

	start := 0
	if o.Restart > 0 {
		start = o.Restart + 1
	}
	last := o.Increments
	if o.Profile == Fault {
		last = 0
	}
	if o.Profile == Locked {
		last = 1
	}

	existing, err := w.Increments()
	if err != nil {
		fmt.Fprintf(out, "mock-solver: %v\n", err)
		return 1
	}
	written := make(map[int]bool, len(existing))
	for _, k := range existing {
		written[k] = true
	}

	for k := start; k <= last; k++ {
		if written[k] {
			continue
		}
		if err := w.Append(k, float64(k), State(o.Profile, k).Fields(o.Points)); err != nil {
			fmt.Fprintf(out, "mock-solver: increment %d: %v\n", k, err)
			return 1
		}
		fmt.Fprintf(out, "mock-solver: increment %d written\n", k)
		if k == last {
			break
		}
		switch wait(ctx, o.Interval, interrupts) {
		case stopRequested:
			fmt.Fprintf(out, "mock-solver: stop requested after increment %d\n", k)
			return 0
		case cancelled:
			return 1
		}
	}

	switch o.Profile {
	case Fault:
		for i := 1; i <= 60; i++ {
			fmt.Fprintf(out, "mock-solver: residual diverged, cutback %d\n", i)
		}
		return 1
	case Locked:
		lock := resultstore.LockPath(o.ResultFile())
		if err := os.WriteFile(lock, nil, 0o644); err != nil {
			fmt.Fprintf(out, "mock-solver: %v\n", err)
			return 1
		}
		defer os.Remove(lock)
		// touch the result so readers see a change they must not read yet
		now := time.Now()
		_ = os.Chtimes(o.ResultFile(), now, now)
		for wait(ctx, time.Hour, interrupts) == timedOut {
		}
		fmt.Fprintln(out, "mock-solver: releasing lock")
		return 0
	case Corrupt:
		w.Close()
		switch wait(ctx, o.Interval, interrupts) {
		case stopRequested:
			return 0
		case cancelled:
			return 1
		}
		return garbage(ctx, o, out, interrupts)
	}
	fmt.Fprintln(out, "mock-solver: load case complete")
	return 0
}

type waitResult int

const (
	timedOut waitResult = iota
	stopRequested
	cancelled
)

func wait(ctx context.Context, d time.Duration, interrupts <-chan os.Signal) waitResult {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return timedOut
	case <-ctx.Done():
		return cancelled
	case sig := <-interrupts:
		if sig == syscall.SIGINT || sig == os.Interrupt {
			return stopRequested
		}
		return cancelled
	}
}

func garbage(ctx context.Context, o Options, out io.Writer, interrupts <-chan os.Signal) int {
	for k := 0; ; k++ {
		if err := replaceWithJunk(o.ResultFile(), k); err != nil {
			fmt.Fprintf(out, "mock-solver: %v\n", err)
			return 1
		}
		switch wait(ctx, o.Interval, interrupts) {
		case stopRequested:
			return 0
		case cancelled:
			return 1
		}
	}
}

// replaceWithJunk swaps the result file in one rename so a reader sees each
// rewrite as a single new version.
func replaceWithJunk(path string, k int) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(fmt.Sprintf("partial increment %d\n", k)), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
