package monitor

import (
	"strconv"
	"time"

	"github.com/vbluemer/Homogenization-for-Damask/internal/job"
	"github.com/vbluemer/Homogenization-for-Damask/internal/lifecycle"
)

// Settings are the supervisor knobs shared by every job of a batch.
type Settings struct {
	// Executable is the solver binary.
	Executable string
	// CPUCores, when positive, caps the solver's OpenMP threads.
	CPUCores int
	// PollInterval is the sleep between polling cycles.
	PollInterval time.Duration
	// MaxParseErrors is the number of consecutive read failures tolerated;
	// one more ends the run.
	MaxParseErrors int
	// LogTailLines is how much of the solver log a fault surfaces.
	LogTailLines int
	// KillAfter bounds the wait after SIGTERM before SIGKILL.
	KillAfter time.Duration
	// Env is appended to the solver environment.
	Env []string
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Executable:     "DAMASK_grid",
		PollInterval:   time.Second,
		MaxParseErrors: 10,
		LogTailLines:   50,
		KillAfter:      30 * time.Second,
	}
}

// Command builds the solver launch for j.
func (s Settings) Command(j *job.Job) lifecycle.Command {
	rt := j.Runtime
	args := []string{
		"--geom", rt.GridFile,
		"--load", rt.LoadCaseFile,
		"--material", rt.MaterialFile,
		"--numerics", rt.NumericsFile,
		"--jobname", j.Name,
		"--workingdirectory", rt.Dir,
	}
	if j.UseRestart {
		args = append(args, "--restart", strconv.Itoa(j.RestartIncrement))
	}
	env := append([]string(nil), s.Env...)
	if s.CPUCores > 0 {
		env = append(env, "OMP_NUM_THREADS="+strconv.Itoa(s.CPUCores))
	}
	return lifecycle.Command{
		Executable: s.Executable,
		Args:       args,
		Env:        env,
		Dir:        rt.Dir,
		LogFile:    rt.LogFile,
	}
}
