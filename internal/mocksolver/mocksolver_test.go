package mocksolver

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/vbluemer/Homogenization-for-Damask/internal/resultstore"
)

func env(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestParseArgs(t *testing.T) {
	o, err := ParseArgs([]string{
		"--geom", "g.vti", "--load", "l.yaml", "--material", "m.yaml", "--numerics", "n.yaml",
		"--jobname", "tensile", "--workingdirectory", "/tmp/run", "--restart", "7",
	}, env(map[string]string{EnvProfile: "elastic", EnvIncrements: "3", EnvInterval: "5ms"}))
	if err != nil {
		t.Fatalf("ParseArgs: %v", err)
	}
	want := Options{
		Geom: "g.vti", Load: "l.yaml", Material: "m.yaml", Numerics: "n.yaml",
		JobName: "tensile", Dir: "/tmp/run", Restart: 7,
		Profile: Elastic, Increments: 3, Interval: 5 * time.Millisecond,
	}
	if diff := cmp.Diff(want, o); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
	if got := o.ResultFile(); got != "/tmp/run/tensile.results.db" {
		t.Errorf("ResultFile = %q", got)
	}
}

func TestParseArgs_Defaults(t *testing.T) {
	o, err := ParseArgs([]string{"--jobname", "x"}, env(nil))
	if err != nil {
		t.Fatal(err)
	}
	if o.Profile != Hardening || o.Increments != 10 || o.Interval != 50*time.Millisecond {
		t.Errorf("defaults = %+v", o)
	}
}

func TestParseArgs_Rejects(t *testing.T) {
	if _, err := ParseArgs(nil, env(nil)); err == nil {
		t.Error("missing jobname accepted")
	}
	if _, err := ParseArgs([]string{"--jobname", "x"}, env(map[string]string{EnvIncrements: "ten"})); err == nil {
		t.Error("bad increment count accepted")
	}
	if _, err := ParseArgs([]string{"--jobname", "x", "--bogus"}, env(nil)); err == nil {
		t.Error("unknown flag accepted")
	}
}

func TestState_HardeningCurve(t *testing.T) {
	elastic := State(Hardening, 3)
	if elastic.P[0][0] != 300 || elastic.Fp[0][0] != 1 {
		t.Errorf("increment 3 should still be elastic: P=%v Fp=%v", elastic.P[0][0], elastic.Fp[0][0])
	}
	plastic := State(Hardening, 5)
	if plastic.P[0][0] != 320 {
		t.Errorf("increment 5 stress = %v, want 320", plastic.P[0][0])
	}
	if plastic.Gamma[0] <= 0 {
		t.Error("no slip after yield")
	}
	if lin := State(Elastic, 5); lin.P[0][0] != 500 {
		t.Errorf("elastic profile stress = %v, want 500", lin.P[0][0])
	}
}

func run(t *testing.T, o Options, interrupts <-chan os.Signal) (int, string) {
	t.Helper()
	var out bytes.Buffer
	o.Out = &out
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	code := Run(ctx, o, interrupts)
	return code, out.String()
}

func TestRun_WritesIncrements(t *testing.T) {
	dir := t.TempDir()
	o := Options{JobName: "job", Dir: dir, Profile: Hardening, Increments: 4, Interval: time.Millisecond}
	if code, out := run(t, o, nil); code != 0 {
		t.Fatalf("exit %d: %s", code, out)
	}

	st, err := resultstore.Open(o.ResultFile())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	incs, err := st.Increments()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, incs); diff != "" {
		t.Errorf("increments (-want +got):\n%s", diff)
	}
	if v, ok, err := st.Meta("profile"); err != nil || !ok || v != "hardening" {
		t.Errorf("profile meta = %q, %v, %v", v, ok, err)
	}
	if _, err := os.Stat(resultstore.LockPath(o.ResultFile())); !os.IsNotExist(err) {
		t.Error("lock marker left behind")
	}
}

func TestRun_RestartSkipsWrittenIncrements(t *testing.T) {
	dir := t.TempDir()
	o := Options{JobName: "job", Dir: dir, Profile: Elastic, Increments: 2, Interval: time.Millisecond}
	if code, _ := run(t, o, nil); code != 0 {
		t.Fatal("first run failed")
	}
	o.Restart, o.Increments = 1, 4
	if code, out := run(t, o, nil); code != 0 {
		t.Fatalf("restart exit %d: %s", code, out)
	}
	st, err := resultstore.Open(o.ResultFile())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	latest, err := st.Latest()
	if err != nil || latest != 4 {
		t.Errorf("latest = %d, %v", latest, err)
	}
}

func TestRun_InterruptFinishesIncrement(t *testing.T) {
	dir := t.TempDir()
	interrupts := make(chan os.Signal, 1)
	interrupts <- syscall.SIGINT
	o := Options{JobName: "job", Dir: dir, Profile: Hardening, Increments: 100, Interval: time.Hour}
	code, out := run(t, o, interrupts)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, out)
	}
	st, err := resultstore.Open(o.ResultFile())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if latest, _ := st.Latest(); latest != 0 {
		t.Errorf("latest = %d, want only the reference increment", latest)
	}
}

func TestRun_Fault(t *testing.T) {
	o := Options{JobName: "job", Dir: t.TempDir(), Profile: Fault}
	code, out := run(t, o, nil)
	if code != 1 {
		t.Errorf("exit %d, want 1", code)
	}
	if !bytes.Contains([]byte(out), []byte("cutback 60")) {
		t.Errorf("fault log incomplete: %s", out)
	}
}

func TestRun_Garbage(t *testing.T) {
	dir := t.TempDir()
	interrupts := make(chan os.Signal, 1)
	interrupts <- syscall.SIGINT
	o := Options{JobName: "job", Dir: dir, Profile: Garbage, Interval: time.Hour}
	if code, _ := run(t, o, interrupts); code != 0 {
		t.Fatalf("exit %d", code)
	}
	if _, err := resultstore.Open(filepath.Join(dir, "job.results.db")); err == nil {
		t.Error("garbage result file opened as a store")
	}
}

func TestRun_CorruptAfterIncrements(t *testing.T) {
	var out bytes.Buffer
	o := Options{JobName: "job", Dir: t.TempDir(), Profile: Corrupt, Increments: 1, Interval: 5 * time.Millisecond, Out: &out}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if code := Run(ctx, o, nil); code != 1 {
		t.Fatalf("exit %d, want 1 once cancelled", code)
	}
	if !bytes.Contains(out.Bytes(), []byte("increment 1 written")) {
		t.Errorf("increments not written first: %s", out.String())
	}
	if _, err := resultstore.Open(o.ResultFile()); err == nil {
		t.Error("corrupted result file opened as a store")
	}
	if _, err := os.Stat(o.ResultFile() + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary junk file left behind: %v", err)
	}
}

func TestRun_UnknownProfile(t *testing.T) {
	if code, _ := run(t, Options{JobName: "job", Dir: t.TempDir(), Profile: "bogus"}, nil); code != 2 {
		t.Errorf("exit %d, want 2", code)
	}
}
