package config

import (
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vbluemer/Homogenization-for-Damask/internal/resultstore"
)

func testdataPath(name string) string {
	_, f, _, _ := runtime.Caller(0)
	dir := filepath.Dir(f)
	return filepath.Join(dir, "testdata", name)
}

func noEnv(string) string { return "" }

func TestLoadFromPath_YAML(t *testing.T) {
	s, err := LoadFromPath(testdataPath("settings.yaml"))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	want := Settings{
		General: General{ProjectName: "aluminium_rve", StressTensorType: "Cauchy", StrainTensorType: "Green_Lagrange"},
		Solver: Solver{
			Executable:                       "/opt/damask/bin/DAMASK_grid",
			CPUCores:                         8,
			MonitorUpdateCycle:               Duration(2500 * time.Millisecond),
			StopAfterSubsequentParsingErrors: 5,
			KillAfter:                        Default().Solver.KillAfter,
			LogTailLines:                     50,
		},
		Log: Log{Level: "debug", Format: "json"},
	}
	if diff := cmp.Diff(want, *s); diff != "" {
		t.Errorf("settings mismatch (-want +got):\n%s", diff)
	}
	if err := s.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadFromPath_JSONKeepsDefaults(t *testing.T) {
	s, err := LoadFromPath(testdataPath("settings.json"))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if s.General.ProjectName != "steel" || s.General.StressTensorType != "PK2" {
		t.Errorf("general = %+v", s.General)
	}
	if s.General.StrainTensorType != "true_strain" {
		t.Errorf("strain default lost: %q", s.General.StrainTensorType)
	}
	if s.Solver.MonitorUpdateCycle.Std() != 750*time.Millisecond {
		t.Errorf("cycle = %v", s.Solver.MonitorUpdateCycle.Std())
	}
	if s.Solver.StopAfterSubsequentParsingErrors != 10 {
		t.Errorf("parse error default lost: %d", s.Solver.StopAfterSubsequentParsingErrors)
	}
}

func TestLoad_DetectJSON(t *testing.T) {
	s, err := Load([]byte(`{"solver":{"monitor_update_cycle":3}}`), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Solver.MonitorUpdateCycle.Std() != 3*time.Second {
		t.Errorf("cycle = %v", s.Solver.MonitorUpdateCycle.Std())
	}
}

func TestLoad_DetectYAML(t *testing.T) {
	s, err := Load([]byte("solver:\n  monitor_update_cycle: 250ms\n"), "")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Solver.MonitorUpdateCycle.Std() != 250*time.Millisecond {
		t.Errorf("cycle = %v", s.Solver.MonitorUpdateCycle.Std())
	}
}

func TestLoad_BadDuration(t *testing.T) {
	if _, err := Load([]byte("solver:\n  monitor_update_cycle: soon\n"), ".yaml"); err == nil {
		t.Error("bad duration accepted")
	}
}

func TestApplyEnv(t *testing.T) {
	s := Default()
	env := map[string]string{EnvSolver: "/usr/bin/mock-solver", EnvCPUCores: "16"}
	if err := s.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatal(err)
	}
	if s.Solver.Executable != "/usr/bin/mock-solver" || s.Solver.CPUCores != 16 {
		t.Errorf("solver = %+v", s.Solver)
	}
	env[EnvCPUCores] = "many"
	if err := s.ApplyEnv(func(k string) string { return env[k] }); err == nil {
		t.Error("non-numeric core count accepted")
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	s := Default()
	s.Solver.Executable = " "
	s.Solver.MonitorUpdateCycle = 0
	s.General.StressTensorType = "Kirchhoff"
	s.Log.Format = "xml"
	err := s.Validate()
	if err == nil {
		t.Fatal("invalid settings accepted")
	}
	for _, want := range []string{"solver.executable", "monitor_update_cycle", "stress_tensor_type", "log.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error misses %q: %v", want, err)
		}
	}
}

func TestResolve(t *testing.T) {
	s, err := Resolve("", func(k string) string {
		if k == EnvSolver {
			return "custom_solver"
		}
		return ""
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if s.Solver.Executable != "custom_solver" {
		t.Errorf("executable = %q", s.Solver.Executable)
	}
	if _, err := Resolve(testdataPath("missing.yaml"), noEnv); err == nil {
		t.Error("missing file accepted")
	}
}

func TestMonitorAndReader(t *testing.T) {
	s, err := LoadFromPath(testdataPath("settings.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	m := s.Monitor()
	if m.PollInterval != 2500*time.Millisecond || m.MaxParseErrors != 5 || m.CPUCores != 8 || m.LogTailLines != 50 {
		t.Errorf("monitor settings = %+v", m)
	}
	r, err := s.Reader()
	if err != nil {
		t.Fatal(err)
	}
	if r.Stress != resultstore.Cauchy || r.Strain != resultstore.GreenLagrange {
		t.Errorf("reader = %+v", r)
	}
}
