package stopcond

import (
	"math"
	"testing"

	"github.com/cpmech/gosl/chk"

	"github.com/vbluemer/Homogenization-for-Damask/internal/increment"
	"github.com/vbluemer/Homogenization-for-Damask/internal/job"
	"github.com/vbluemer/Homogenization-for-Damask/internal/tensor"
)

func xxJob(kind job.Kind, t float64) *job.Job {
	var m tensor.Mask
	m[0][0] = true
	return &job.Job{
		Name:  "tensile_x",
		Steps: []job.LoadStep{{Loaded: m, Increments: 10}},
		Stop:  job.Yielding{Kind: kind, Threshold: t},
	}
}

// noisy is a uniaxial xx state whose unloaded components carry solver noise
// large enough to trip any threshold.
func noisy(sxx, exx, noise float64) increment.Sample {
	return increment.Sample{
		Stress: tensor.Tensor{{sxx, noise, 0}, {noise, 0.5 * noise, 0}, {0, 0, -noise}},
		Strain: tensor.Tensor{{exx, 0, 0}, {0, -0.3*exx + noise*1e-3, 0}, {0, 0, -0.3 * exx}},
	}
}

// scenarioA is elastic up to increment 2 with slope 1e5, then hardening;
// the implied plastic strain in xx passes 0.002 at increment 5.
func scenarioA() *increment.History {
	h := increment.NewHistory()
	h.Append(1, noisy(100, 0.001, 0.01))
	h.Append(2, noisy(200, 0.002, 3))
	h.Append(3, noisy(280, 0.0035, -7))
	h.Append(4, noisy(320, 0.0050, 11))
	h.Append(5, noisy(340, 0.0066, -13))
	return h
}

func prefix(h *increment.History, n int) *increment.History {
	return &increment.History{
		Increments:    h.Increments[:n],
		Stress:        h.Stress[:n],
		Strain:        h.Strain[:n],
		PlasticStrain: h.PlasticStrain[:n],
		PlasticWork:   h.PlasticWork[:n],
	}
}

func TestNone_NeverFires(t *testing.T) {
	e, err := NewRegistry().For(job.NoCondition{})
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	j := &job.Job{Name: "free", Stop: job.NoCondition{}}
	h := scenarioA()
	for n := 1; n <= h.Len(); n++ {
		y, m := e.Online(j, prefix(h, n))
		if y || m != 0 {
			t.Errorf("NoCondition online after %d entries = (%v, %v)", n, y, m)
		}
	}
	res, err := e.Offline(j, h)
	if res != nil || err != nil {
		t.Errorf("NoCondition offline = %v, %v", res, err)
	}
}

func TestPlasticStrain_Uniaxial(t *testing.T) {
	j := xxJob(job.StressStrainCurve, 0.002)
	e, _ := NewRegistry().For(j.Stop)
	h := scenarioA()

	for n := 2; n < h.Len(); n++ {
		if y, m := e.Online(j, prefix(h, n)); y {
			t.Errorf("yield signalled early at increment %d (metric %g)", h.Increments[n-1], m)
		}
	}
	y, m := e.Online(j, h)
	if !y {
		t.Fatalf("no yield at increment 5 (metric %g)", m)
	}
	chk.Float64(t, "plastic strain xx @5", 1e-12, m, 0.0066-340/1e5)

	res, err := e.Offline(j, h)
	if err != nil || res == nil {
		t.Fatalf("Offline = %v, %v", res, err)
	}
	chk.Int(t, "before", res.Before, 4)
	chk.Int(t, "after", res.After, 5)
	if !(res.Fraction > 0 && res.Fraction < 1) {
		t.Errorf("fraction %g not strictly inside (0,1)", res.Fraction)
	}
	// secant slope 12500 from (0.005, 320) meets the offset line at 457.5/87500
	chk.Float64(t, "fraction", 1e-9, res.Fraction, (457.5/87500-0.005)/0.0016)
	if res.MultiAxial {
		t.Errorf("uniaxial job flagged multi-axial")
	}
}

func TestPlasticStrain_IgnoresUnloadedNoise(t *testing.T) {
	// unloaded components only: noise must never count
	j := xxJob(job.StressStrainCurve, 0.002)
	h := increment.NewHistory()
	h.Append(1, noisy(100, 0.001, 0.01))
	h.Append(2, noisy(200, 0.002, 500))
	y, m := PlasticStrain{}.Online(j, h)
	if y {
		t.Errorf("noise in unloaded components signalled yield (metric %g)", m)
	}
	chk.Float64(t, "loaded metric", 1e-15, m, 0)

	// zero reference strain is not evaluable
	z := increment.NewHistory()
	z.Append(1, increment.Sample{})
	z.Append(2, noisy(500, 0.1, 0))
	if y, m := (PlasticStrain{}).Online(j, z); y || m != 0 {
		t.Errorf("zero reference strain = (%v, %g)", y, m)
	}
	if res, err := (PlasticStrain{}).Offline(j, z); res != nil || err != nil {
		t.Errorf("zero reference strain offline = %v, %v", res, err)
	}
}

func TestPlasticStrain_LaterStepDirectionsIgnored(t *testing.T) {
	// yy is loaded only by the second step and has no elastic reference
	var xxMask, yyMask tensor.Mask
	xxMask[0][0], yyMask[1][1] = true, true
	j := &job.Job{
		Name:  "two_step",
		Steps: []job.LoadStep{{Loaded: xxMask, Increments: 5}, {Loaded: yyMask, Increments: 5}},
		Stop:  job.Yielding{Kind: job.StressStrainCurve, Threshold: 0.002},
	}
	h := scenarioA()
	for n := 2; n < h.Len(); n++ {
		if y, m := (PlasticStrain{}).Online(j, prefix(h, n)); y {
			t.Errorf("later-step direction signalled yield at increment %d (metric %g)", h.Increments[n-1], m)
		}
	}
	y, m := PlasticStrain{}.Online(j, h)
	if !y {
		t.Fatalf("no yield at increment 5 (metric %g)", m)
	}
	chk.Float64(t, "plastic strain xx @5", 1e-12, m, 0.0066-340/1e5)
	res, err := PlasticStrain{}.Offline(j, h)
	if err != nil || res == nil {
		t.Fatalf("Offline = %v, %v", res, err)
	}
	chk.Int(t, "before", res.Before, 4)
	chk.Int(t, "after", res.After, 5)

	// same history with the yy reference stress removed
	quiet := scenarioA()
	for p := range quiet.Stress {
		quiet.Stress[p][1][1] = 0
	}
	if y, _ := (PlasticStrain{}).Online(j, quiet); !y {
		t.Errorf("zero stress in a later-step direction disabled the verdict")
	}
}

func TestPlasticStrain_SkipsUnstressedDirection(t *testing.T) {
	// yy is loaded from the start but never stressed: it drops out
	var mask tensor.Mask
	mask[0][0], mask[1][1] = true, true
	j := &job.Job{
		Name:  "xx_with_idle_yy",
		Steps: []job.LoadStep{{Loaded: mask, Increments: 5}},
		Stop:  job.Yielding{Kind: job.StressStrainCurve, Threshold: 0.002},
	}
	h := increment.NewHistory()
	h.Append(1, xx(100, 0.001))
	h.Append(2, xx(200, 0.002))
	h.Append(3, xx(250, 0.005))
	y, m := PlasticStrain{}.Online(j, h)
	if !y {
		t.Fatalf("degenerate yy disabled the verdict (metric %g)", m)
	}
	chk.Float64(t, "plastic strain xx @3", 1e-12, m, 0.005-250/1e5)
	res, err := PlasticStrain{}.Offline(j, h)
	if err != nil || res == nil {
		t.Fatalf("Offline = %v, %v", res, err)
	}
	chk.Int(t, "after", res.After, 3)
	if res.MultiAxial {
		t.Errorf("dropped direction counted toward multi-axial")
	}
}

func TestPlasticStrain_MultiAxial(t *testing.T) {
	// biaxial load, both directions crossing in the same bracket
	var mask tensor.Mask
	mask[0][0], mask[1][1] = true, true
	j := &job.Job{
		Name:  "biaxial",
		Steps: []job.LoadStep{{Loaded: mask, Increments: 5}},
		Stop:  job.Yielding{Kind: job.StressStrainCurve, Threshold: 0.001},
	}
	st := func(s, e float64) increment.Sample {
		return increment.Sample{Stress: tensor.Tensor{{s, 0, 0}, {0, s, 0}, {0, 0, 0}}, Strain: tensor.Tensor{{e, 0, 0}, {0, e, 0}, {0, 0, 0}}}
	}
	h := increment.NewHistory()
	h.Append(1, st(100, 0.001))
	h.Append(2, st(150, 0.004))
	res, err := PlasticStrain{}.Offline(j, h)
	if err != nil || res == nil {
		t.Fatalf("Offline = %v, %v", res, err)
	}
	if !res.MultiAxial {
		t.Errorf("simultaneous yield in xx and yy not flagged")
	}
	if res.Fraction < 0 || res.Fraction > 1 {
		t.Errorf("fraction %g out of bounds", res.Fraction)
	}
}

func TestPlasticStrain_Compression(t *testing.T) {
	// compressive load: the plastic strain is negative and so is the offset
	var mask tensor.Mask
	mask[2][2] = true
	j := &job.Job{
		Name:  "compression_z",
		Steps: []job.LoadStep{{Loaded: mask, Increments: 5}},
		Stop:  job.Yielding{Kind: job.StressStrainCurve, Threshold: 0.002},
	}
	zz := func(s, e float64) increment.Sample {
		return increment.Sample{Stress: tensor.Tensor{{0, 0, 0}, {0, 0, 0}, {0, 0, s}}, Strain: tensor.Tensor{{0, 0, 0}, {0, 0, 0}, {0, 0, e}}}
	}
	h := increment.NewHistory()
	h.Append(1, zz(-100, -0.001))
	h.Append(2, zz(-200, -0.002))
	h.Append(3, zz(-250, -0.005))
	res, err := PlasticStrain{}.Offline(j, h)
	if err != nil || res == nil {
		t.Fatalf("Offline = %v, %v", res, err)
	}
	// secant -50/-0.003 from (-0.002, -200) meets σ = 1e5(ε + 0.002)
	k := 50 / 0.003
	ey := (-200 - 1e5*0.002 + k*0.002) / (1e5 - k)
	chk.Float64(t, "fraction", 1e-9, res.Fraction, (ey+0.002)/-0.003)
	chk.Float64(t, "interpolated strain zz", 1e-12, res.Strain[2][2], ey)
}

func TestModulus_Unchanged(t *testing.T) {
	ref := noisy(100, 0.001, 0.5)
	h := increment.NewHistory()
	h.Append(1, ref)
	h.Append(2, ref)
	for _, thr := range []float64{1e-12, 0.01, 0.5} {
		j := xxJob(job.ModulusDegradation, thr)
		y, m := Modulus{}.Online(j, h)
		if y || m != 0 {
			t.Errorf("threshold %g: unchanged modulus gave (%v, %g)", thr, y, m)
		}
	}

	j := xxJob(job.ModulusDegradation, 0.1)
	if y, _ := (Modulus{}).Online(j, increment.NewHistory()); y {
		t.Errorf("reference-only history signalled yield")
	}
}

func xx(s, e float64) increment.Sample {
	return increment.Sample{Stress: tensor.Tensor{{s, 0, 0}, {0, 0, 0}, {0, 0, 0}}, Strain: tensor.Tensor{{e, 0, 0}, {0, 0, 0}, {0, 0, 0}}}
}

func TestModulus_Degradation(t *testing.T) {
	// normalized modulus 1, 0.95, 0.85: crossing 0.9 between increments 2 and 3
	j := xxJob(job.ModulusDegradation, 0.1)
	h := increment.NewHistory()
	h.Append(1, xx(100, 0.001))
	h.Append(2, xx(190, 0.002))
	h.Append(3, xx(255, 0.003))

	y, m := Modulus{}.Online(j, h)
	if !y {
		t.Fatalf("no yield, metric %g", m)
	}
	chk.Float64(t, "deviation", 1e-12, m, 0.15)

	res, err := Modulus{}.Offline(j, h)
	if err != nil || res == nil {
		t.Fatalf("Offline = %v, %v", res, err)
	}
	chk.Int(t, "before", res.Before, 2)
	chk.Int(t, "after", res.After, 3)
	// (190 + 65x) / (0.002 + 0.001x) = 0.9e5
	chk.Float64(t, "fraction", 1e-6, res.Fraction, 0.4)
}

func TestModulus_Stiffening(t *testing.T) {
	// stiffening: the upper bound 1+t applies
	j := xxJob(job.ModulusDegradation, 0.1)
	h := increment.NewHistory()
	h.Append(1, xx(100, 0.001))
	h.Append(2, xx(210, 0.002))
	h.Append(3, xx(360, 0.003))
	res, err := Modulus{}.Offline(j, h)
	if err != nil || res == nil {
		t.Fatalf("Offline = %v, %v", res, err)
	}
	// (210 + 150x) / (0.002 + 0.001x) = 1.1e5
	chk.Float64(t, "fraction", 1e-6, res.Fraction, 0.25)
}

func TestWork(t *testing.T) {
	j := xxJob(job.PlasticWork, 0.5)
	h := increment.NewHistory()
	for k, w := range []float64{0.1, 0.3, 0.7} {
		s := xx(100*float64(k+1), 0.001*float64(k+1))
		s.PlasticWork = w
		h.Append(k+1, s)
	}
	y, m := Work{}.Online(j, h)
	if !y {
		t.Errorf("no yield at work %g", m)
	}
	chk.Float64(t, "metric", 1e-15, m, 0.7)

	res, err := Work{}.Offline(j, h)
	if err != nil || res == nil {
		t.Fatalf("Offline = %v, %v", res, err)
	}
	chk.Int(t, "after", res.After, 3)
	chk.Float64(t, "fraction", 1e-12, res.Fraction, 0.5)
	chk.Float64(t, "interpolated work", 1e-12, res.PlasticWork, 0.5)

	if y, _ := (Work{}).Online(xxJob(job.PlasticWork, 5), h); y {
		t.Errorf("work below threshold signalled yield")
	}
	if res, _ := (Work{}).Offline(xxJob(job.PlasticWork, 5), h); res != nil {
		t.Errorf("work below threshold interpolated: %+v", res)
	}
}

func TestReference_Restart(t *testing.T) {
	// increments 1..3 predate the restart; the slope comes from 3 -> 4
	j := xxJob(job.StressStrainCurve, 0.002)
	j.ExistingIncrements = 3
	h := increment.NewHistory()
	h.Append(1, xx(50, 0.002))
	h.Append(2, xx(60, 0.004))
	h.Append(3, xx(70, 0.006))
	h.Append(4, xx(170, 0.007))
	h.Append(5, xx(200, 0.012))

	ref, err := reference(j, h)
	if err != nil {
		t.Fatal(err)
	}
	chk.Float64(t, "delta stress", 1e-12, ref.stress[0][0], 100)
	chk.Float64(t, "delta strain", 1e-15, ref.strain[0][0], 0.001)
	chk.Int(t, "scan start", ref.first, 4)

	// a restored accumulator without increment 3 uses 4 -> 5
	online := increment.NewHistory()
	online.Append(4, xx(170, 0.007))
	online.Append(5, xx(200, 0.012))
	if _, err := reference(j, online); err != nil {
		t.Errorf("online reference: %v", err)
	}
	short := increment.NewHistory()
	short.Append(4, xx(170, 0.007))
	if _, err := reference(j, short); err != ErrNotEvaluable {
		t.Errorf("single post-restart entry: %v", err)
	}
}

func TestGoldenSection(t *testing.T) {
	x := goldenSection(func(x float64) float64 { return (x - 0.3) * (x - 0.3) }, 0, 1, 1e-10)
	chk.Float64(t, "interior", 1e-8, x, 0.3)
	x = goldenSection(func(x float64) float64 { return math.Abs(x + 1) }, 0, 1, 1e-10)
	chk.Float64(t, "lower end", 1e-15, x, 0)
	x = goldenSection(func(x float64) float64 { return -x }, 0, 1, 1e-10)
	chk.Float64(t, "upper end", 1e-15, x, 1)
}

func TestYieldFraction_Bounds(t *testing.T) {
	// monotonic brackets always land inside [0,1]
	for _, sa := range []float64{120, 150, 199, 250, 400} {
		x := yieldFraction(1e5, 0.002, 100, 0.001, sa, 0.01)
		if x < 0 || x > 1 {
			t.Errorf("yieldFraction with sa=%g: %g", sa, x)
		}
	}
	chk.Float64(t, "degenerate strain bracket", 1e-15, yieldFraction(1e5, 0.002, 100, 0.001, 120, 0.001), 1)
	chk.Float64(t, "parallel secant", 1e-15, yieldFraction(1e5, 0.002, 100, 0.001, 200, 0.002), 1)
}

func TestRegistry_For(t *testing.T) {
	r := NewRegistry()
	for kind, want := range map[job.Kind]Evaluator{
		job.StressStrainCurve:  PlasticStrain{},
		job.ModulusDegradation: Modulus{},
		job.PlasticWork:        Work{},
	} {
		got, err := r.For(job.Yielding{Kind: kind, Threshold: 1})
		if err != nil || got != want {
			t.Errorf("For(%s) = %T, %v", kind, got, err)
		}
	}
	if _, err := r.For(job.Yielding{Kind: job.Kind(42), Threshold: 1}); err == nil {
		t.Errorf("unknown kind must fail")
	}
	r.Register(job.PlasticWork, None{})
	if got, _ := r.For(job.Yielding{Kind: job.PlasticWork, Threshold: 1}); got != (None{}) {
		t.Errorf("Register did not replace the evaluator")
	}
}
