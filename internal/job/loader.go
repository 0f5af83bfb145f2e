package job

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// batchFile is the on-disk shape of a job list.
type batchFile struct {
	WorkDir string    `yaml:"work_dir"`
	Jobs    []jobSpec `yaml:"jobs"`
}

type jobSpec struct {
	Name                  string         `yaml:"name"`
	SimulationType        SimulationType `yaml:"simulation_type"`
	Steps                 []LoadStep     `yaml:"steps,omitempty"`
	Ramp                  *rampSpec      `yaml:"ramp,omitempty"`
	Stop                  *stopSpec      `yaml:"stop_condition,omitempty"`
	UseRestart            bool           `yaml:"use_restart,omitempty"`
	RestartIncrement      int            `yaml:"restart_increment,omitempty"`
	ExistingIncrements    int            `yaml:"existing_increments,omitempty"`
	ReduceParasiticStress bool           `yaml:"reduce_parasitic_stress,omitempty"`
	Runtime               Runtime        `yaml:"runtime"`
}

type rampSpec struct {
	Target Boundary `yaml:"target"`
	Steps  int      `yaml:"steps"`
}

// LoadBatch reads a YAML job list. Relative runtime paths resolve against
// the file's directory.
func LoadBatch(path string) ([]*Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read job batch: %w", err)
	}
	jobs, err := ParseBatch(data)
	if err != nil {
		return nil, err
	}
	base := filepath.Dir(path)
	for _, j := range jobs {
		j.Runtime = resolveRuntime(j.Runtime, base)
		j.Main = j.Runtime
	}
	return jobs, nil
}

// ParseBatch decodes and validates a YAML job list.
func ParseBatch(data []byte) ([]*Job, error) {
	var f batchFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse job batch: %w", err)
	}
	if len(f.Jobs) == 0 {
		return nil, fmt.Errorf("parse job batch: no jobs")
	}
	jobs := make([]*Job, 0, len(f.Jobs))
	for i, s := range f.Jobs {
		stop, err := decodeStop(s.Stop)
		if err != nil {
			return nil, fmt.Errorf("job %d (%s): %w", i, s.Name, err)
		}
		steps := s.Steps
		if s.Ramp != nil {
			steps = append(steps, Ramp(s.Ramp.Target, s.Ramp.Steps)...)
		}
		dir := s.Runtime.Dir
		if dir == "" {
			dir = filepath.Join(f.WorkDir, s.Name)
		}
		j := &Job{
			Name:                  s.Name,
			SimulationType:        s.SimulationType,
			Steps:                 steps,
			Stop:                  stop,
			UseRestart:            s.UseRestart,
			RestartIncrement:      s.RestartIncrement,
			ExistingIncrements:    s.ExistingIncrements,
			ReduceParasiticStress: s.ReduceParasiticStress,
			Runtime:               s.Runtime.WithDefaults(dir, s.Name),
			Number:                i + 1,
			Total:                 len(f.Jobs),
		}
		j.Main = j.Runtime
		if err := j.Validate(); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// MarshalBatch encodes jobs back into the batch file shape.
func MarshalBatch(jobs []*Job) ([]byte, error) {
	f := batchFile{}
	for _, j := range jobs {
		stop := encodeStop(j.Stop)
		f.Jobs = append(f.Jobs, jobSpec{
			Name:                  j.Name,
			SimulationType:        j.SimulationType,
			Steps:                 j.Steps,
			Stop:                  &stop,
			UseRestart:            j.UseRestart,
			RestartIncrement:      j.RestartIncrement,
			ExistingIncrements:    j.ExistingIncrements,
			ReduceParasiticStress: j.ReduceParasiticStress,
			Runtime:               j.Runtime,
		})
	}
	return yaml.Marshal(&f)
}

func resolveRuntime(r Runtime, base string) Runtime {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	r.Dir = abs(r.Dir)
	r.GridFile = abs(r.GridFile)
	r.LoadCaseFile = abs(r.LoadCaseFile)
	r.MaterialFile = abs(r.MaterialFile)
	r.NumericsFile = abs(r.NumericsFile)
	r.LogFile = abs(r.LogFile)
	r.ResultFile = abs(r.ResultFile)
	r.ScratchFile = abs(r.ScratchFile)
	r.AccumulatorFile = abs(r.AccumulatorFile)
	return r
}
