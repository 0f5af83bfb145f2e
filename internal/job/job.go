// Package job describes one solver run: its load steps, the directions those
// steps actively load, its stop condition and the files it reads and writes.
package job

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cpmech/gosl/utl"

	"github.com/vbluemer/Homogenization-for-Damask/internal/tensor"
)

// SimulationType tags what the job is for downstream post-processing.
type SimulationType string

const (
	YieldPoint    SimulationType = "yield_point"
	YieldSurface  SimulationType = "yield_surface"
	ElasticTensor SimulationType = "elastic_tensor"
	LoadPath      SimulationType = "load_path"
)

// Runtime records where a run's solver inputs and outputs live.
type Runtime struct {
	Dir             string `yaml:"dir"`
	GridFile        string `yaml:"grid_file"`
	LoadCaseFile    string `yaml:"loadcase_file"`
	MaterialFile    string `yaml:"material_file"`
	NumericsFile    string `yaml:"numerics_file"`
	LogFile         string `yaml:"log_file,omitempty"`
	ResultFile      string `yaml:"result_file,omitempty"`
	ScratchFile     string `yaml:"scratch_file,omitempty"`
	AccumulatorFile string `yaml:"accumulator_file,omitempty"`
}

// WithDefaults fills the unset output paths from the working directory and
// the solver job name.
func (r Runtime) WithDefaults(dir, name string) Runtime {
	if r.Dir == "" {
		r.Dir = dir
	}
	if r.LogFile == "" {
		r.LogFile = filepath.Join(r.Dir, name+".log")
	}
	if r.ResultFile == "" {
		r.ResultFile = filepath.Join(r.Dir, name+".results.db")
	}
	if r.ScratchFile == "" {
		r.ScratchFile = filepath.Join(r.Dir, name+".results.scratch.db")
	}
	if r.AccumulatorFile == "" {
		r.AccumulatorFile = filepath.Join(r.Dir, name+".increments.yaml")
	}
	return r
}

// Job is the static description of one simulation. Everything except the
// runtime records is fixed for the job's lifetime.
type Job struct {
	Name           string
	SimulationType SimulationType
	Steps          []LoadStep
	Stop           StopCondition

	UseRestart            bool
	RestartIncrement      int
	ExistingIncrements    int
	ReduceParasiticStress bool

	// Runtime is the active record; Main keeps the main run's record while a
	// nested iteration sub-run is active.
	Runtime Runtime
	Main    Runtime

	Number int
	Total  int
}

// UseIteration makes rt the active runtime record, keeping the main one.
func (j *Job) UseIteration(rt Runtime) {
	if j.Main == (Runtime{}) {
		j.Main = j.Runtime
	}
	j.Runtime = rt
}

// UseMain restores the main runtime record as the active one.
func (j *Job) UseMain() {
	if j.Main != (Runtime{}) {
		j.Runtime = j.Main
	}
}

// YieldMask is the symmetric set of directions loaded in the first step.
// Directions only loaded later carry no elastic reference and never count.
func (j *Job) YieldMask() tensor.Mask {
	if len(j.Steps) == 0 {
		return tensor.Mask{}
	}
	return j.Steps[0].Loaded.Symmetric()
}

// TotalIncrements is the increment count the load case asks the solver for.
func (j *Job) TotalIncrements() int {
	n := j.ExistingIncrements
	for _, s := range j.Steps {
		n += s.Increments
	}
	return n
}

// Validate checks the descriptor invariants.
func (j *Job) Validate() error {
	if j.Name == "" {
		return errors.New("job: name is required")
	}
	if len(j.Steps) == 0 {
		return fmt.Errorf("job %s: at least one load step is required", j.Name)
	}
	for k, s := range j.Steps {
		if s.Increments < 1 {
			return fmt.Errorf("job %s: step %d: increments must be at least 1", j.Name, k)
		}
	}
	switch c := j.Stop.(type) {
	case nil:
		return fmt.Errorf("job %s: stop condition is required", j.Name)
	case Yielding:
		if err := c.validate(); err != nil {
			return fmt.Errorf("job %s: %w", j.Name, err)
		}
		if c.Kind == StressStrainCurve && !j.YieldMask().Any() {
			return fmt.Errorf("job %s: stress_strain_curve needs a loaded direction in the first step", j.Name)
		}
	}
	if j.UseRestart && j.RestartIncrement < 0 {
		return fmt.Errorf("job %s: restart increment must not be negative", j.Name)
	}
	return nil
}

// Ramp splits a target stress into n steps of one increment each, growing
// linearly from target/n to target. Free components stay free.
func Ramp(target Boundary, n int) []LoadStep {
	if n < 1 {
		return nil
	}
	fractions := utl.LinSpace(0, 1, n+1)[1:]
	steps := make([]LoadStep, 0, n)
	for _, f := range fractions {
		var b Boundary
		for i := 0; i < 3; i++ {
			for k := 0; k < 3; k++ {
				if target[i][k].Free {
					b[i][k] = Free()
				} else {
					b[i][k] = Val(f * target[i][k].Value)
				}
			}
		}
		steps = append(steps, LoadStep{
			Stress:      b,
			Deformation: complementOf(b),
			Loaded:      b.LoadedMask(),
			Increments:  1,
		})
	}
	return steps
}

// complementOf frees deformation components where stress is prescribed and
// pins the rest to zero rate, mirroring mixed boundary conditions.
func complementOf(stress Boundary) Boundary {
	var d Boundary
	for i := 0; i < 3; i++ {
		for k := 0; k < 3; k++ {
			if stress[i][k].Free {
				d[i][k] = Val(0)
			} else {
				d[i][k] = Free()
			}
		}
	}
	return d
}
