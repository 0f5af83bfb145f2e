// Package config holds the settings shared by every job of a batch: where the
// solver lives, how often to poll it, which stress and strain measures to
// homogenize, and how to log.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vbluemer/Homogenization-for-Damask/internal/logging"
	"github.com/vbluemer/Homogenization-for-Damask/internal/monitor"
	"github.com/vbluemer/Homogenization-for-Damask/internal/resultstore"
)

// Environment overrides, applied after the settings file.
const (
	EnvSolver   = "HOMOGENIZE_SOLVER"
	EnvCPUCores = "HOMOGENIZE_CPU_CORES"
)

// Settings is the settings file.
type Settings struct {
	General General `json:"general" yaml:"general"`
	Solver  Solver  `json:"solver" yaml:"solver"`
	Log     Log     `json:"log" yaml:"log"`
}

// General selects what is extracted from the result files.
type General struct {
	ProjectName      string `json:"project_name" yaml:"project_name"`
	StressTensorType string `json:"stress_tensor_type" yaml:"stress_tensor_type"`
	StrainTensorType string `json:"strain_tensor_type" yaml:"strain_tensor_type"`
	// Parallel caps concurrent homogenization in post-processing; 0 means
	// one per CPU.
	Parallel int `json:"parallel,omitempty" yaml:"parallel,omitempty"`
}

// Solver configures the solver launch and the polling loop.
type Solver struct {
	Executable                       string   `json:"executable" yaml:"executable"`
	CPUCores                         int      `json:"cpu_cores" yaml:"cpu_cores"`
	MonitorUpdateCycle               Duration `json:"monitor_update_cycle" yaml:"monitor_update_cycle"`
	StopAfterSubsequentParsingErrors int      `json:"stop_after_subsequent_parsing_errors" yaml:"stop_after_subsequent_parsing_errors"`
	KillAfter                        Duration `json:"kill_after,omitempty" yaml:"kill_after,omitempty"`
	LogTailLines                     int      `json:"log_tail_lines,omitempty" yaml:"log_tail_lines,omitempty"`
}

// Log configures the slog default handler.
type Log struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Duration accepts either a number of seconds or a Go duration string.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func parseDuration(s string) (Duration, error) {
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return Duration(secs * float64(time.Second)), nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("duration %q: want seconds or a value like 500ms", s)
	}
	return Duration(v), nil
}

func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	v, err := parseDuration(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*d = v
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = string(data)
	}
	v, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Default returns the settings used for keys the file leaves out.
func Default() Settings {
	m := monitor.DefaultSettings()
	return Settings{
		General: General{
			ProjectName:      "homogenization",
			StressTensorType: resultstore.PK1.String(),
			StrainTensorType: resultstore.TrueStrain.String(),
		},
		Solver: Solver{
			Executable:                       m.Executable,
			MonitorUpdateCycle:               Duration(m.PollInterval),
			StopAfterSubsequentParsingErrors: m.MaxParseErrors,
			KillAfter:                        Duration(m.KillAfter),
			LogTailLines:                     m.LogTailLines,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// ApplyEnv overrides the solver executable and core count from getenv.
func (s *Settings) ApplyEnv(getenv func(string) string) error {
	if v := getenv(EnvSolver); v != "" {
		s.Solver.Executable = v
	}
	if v := getenv(EnvCPUCores); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvCPUCores, err)
		}
		s.Solver.CPUCores = n
	}
	return nil
}

// Validate checks every key and reports all problems at once.
func (s *Settings) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Solver.Executable) == "" {
		errs = append(errs, errors.New("solver.executable is required"))
	}
	if s.Solver.CPUCores < 0 {
		errs = append(errs, fmt.Errorf("solver.cpu_cores must not be negative, got %d", s.Solver.CPUCores))
	}
	if s.Solver.MonitorUpdateCycle <= 0 {
		errs = append(errs, fmt.Errorf("solver.monitor_update_cycle must be positive, got %s", s.Solver.MonitorUpdateCycle.Std()))
	}
	if s.Solver.StopAfterSubsequentParsingErrors < 0 {
		errs = append(errs, fmt.Errorf("solver.stop_after_subsequent_parsing_errors must not be negative"))
	}
	if _, err := resultstore.ParseStressMeasure(s.General.StressTensorType); err != nil {
		errs = append(errs, fmt.Errorf("general.stress_tensor_type: %w", err))
	}
	if _, err := resultstore.ParseStrainMeasure(s.General.StrainTensorType); err != nil {
		errs = append(errs, fmt.Errorf("general.strain_tensor_type: %w", err))
	}
	if _, err := logging.ParseLevel(s.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if s.Log.Format != "text" && s.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", s.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid settings: %w", errors.Join(errs...))
	}
	return nil
}

// Monitor returns the supervisor settings.
func (s *Settings) Monitor() monitor.Settings {
	m := monitor.DefaultSettings()
	m.Executable = s.Solver.Executable
	m.CPUCores = s.Solver.CPUCores
	m.PollInterval = s.Solver.MonitorUpdateCycle.Std()
	m.MaxParseErrors = s.Solver.StopAfterSubsequentParsingErrors
	if s.Solver.KillAfter > 0 {
		m.KillAfter = s.Solver.KillAfter.Std()
	}
	if s.Solver.LogTailLines > 0 {
		m.LogTailLines = s.Solver.LogTailLines
	}
	return m
}

// Reader returns the result store reader for the configured measures.
func (s *Settings) Reader() (resultstore.Reader, error) {
	stress, err := resultstore.ParseStressMeasure(s.General.StressTensorType)
	if err != nil {
		return resultstore.Reader{}, err
	}
	strain, err := resultstore.ParseStrainMeasure(s.General.StrainTensorType)
	if err != nil {
		return resultstore.Reader{}, err
	}
	return resultstore.Reader{
		Stress:   stress,
		Strain:   strain,
		Parallel: s.General.Parallel,
		Log:      logging.New("resultstore"),
	}, nil
}
