package stopcond

import (
	"math"

	"github.com/vbluemer/Homogenization-for-Damask/internal/increment"
	"github.com/vbluemer/Homogenization-for-Damask/internal/job"
	"github.com/vbluemer/Homogenization-for-Damask/internal/tensor"
)

// Modulus detects yield by degradation of the linear modulus, the stored
// elastic energy over the squared strain norm, relative to the reference
// increment.
type Modulus struct{}

func refModulus(j *job.Job, h *increment.History) (elastic, float64, error) {
	ref, err := reference(j, h)
	if err != nil {
		return elastic{}, 0, err
	}
	m, ok := tensor.LinearModulus(ref.stress, ref.strain)
	if !ok || math.Abs(m) < tensor.Tiny {
		return elastic{}, 0, ErrNotEvaluable
	}
	return ref, m, nil
}

// deviation is |M/Mref - 1|; ok is false at zero strain.
func deviation(stress, strain tensor.Tensor, mref float64) (float64, bool) {
	m, ok := tensor.LinearModulus(stress, strain)
	if !ok {
		return 0, false
	}
	return math.Abs(m/mref - 1), true
}

func (Modulus) Online(j *job.Job, h *increment.History) (bool, float64) {
	t, err := threshold(j)
	if err != nil {
		return false, 0
	}
	_, mref, err := refModulus(j, h)
	if err != nil {
		return false, 0
	}
	_, s := h.Latest()
	d, ok := deviation(s.Stress, s.Strain, mref)
	if !ok {
		return false, 0
	}
	return d > t, d
}

func (Modulus) Offline(j *job.Job, h *increment.History) (*increment.Interpolated, error) {
	t, err := threshold(j)
	if err != nil {
		return nil, err
	}
	ref, mref, err := refModulus(j, h)
	if err != nil {
		return nil, nil
	}
	for p := ref.first; p < h.Len(); p++ {
		d, ok := deviation(h.Stress[p], h.Strain[p], mref)
		if !ok || d <= t {
			continue
		}
		x := modulusFraction(t, mref,
			h.Stress[p-1], h.Strain[p-1], h.Stress[p], h.Strain[p])
		return increment.Interpolate(h, p-1, p, x)
	}
	return nil, nil
}

// normalized is M/Mref, or 1 where the modulus is undefined.
func normalized(stress, strain tensor.Tensor, mref float64) float64 {
	m, ok := tensor.LinearModulus(stress, strain)
	if !ok {
		return 1
	}
	return m / mref
}

// modulusFraction finds x in [0,1] where the normalized modulus of the
// blended state meets 1+t or 1-t, the bound picked by the direction the
// normalized modulus moves with strain across the bracket.
func modulusFraction(t, mref float64, sb, eb, sa, ea tensor.Tensor) float64 {
	nb := normalized(sb, eb, mref)
	na := normalized(sa, ea, mref)
	bound := 1 - t
	if dn := tensor.StrainNorm(ea) - tensor.StrainNorm(eb); dn != 0 && (na-nb)/dn >= 0 {
		bound = 1 + t
	} else if dn == 0 && na >= nb {
		bound = 1 + t
	}
	objective := func(x float64) float64 {
		n := normalized(tensor.Lerp(sb, sa, x), tensor.Lerp(eb, ea, x), mref)
		return (n - bound) * (n - bound)
	}
	return increment.Clamp(goldenSection(objective, 0, 1, 1e-10))
}
