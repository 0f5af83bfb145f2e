package stopcond

import (
	"math"

	"github.com/vbluemer/Homogenization-for-Damask/internal/increment"
	"github.com/vbluemer/Homogenization-for-Damask/internal/job"
	"github.com/vbluemer/Homogenization-for-Damask/internal/tensor"
)

// PlasticStrain detects yield on the stress-strain curve: the strain left
// after removing the elastic part, σ over the component-wise elastic slope,
// exceeds the threshold in any direction loaded by the first step.
type PlasticStrain struct{}

// slopes returns the component-wise elastic slope and the components of mask
// it could be computed for. A component with no reference stress or strain
// drops out; only when none is left is the history not evaluable.
func slopes(ref elastic, mask tensor.Mask) (tensor.Tensor, tensor.Mask, error) {
	var E tensor.Tensor
	var usable tensor.Mask
	mask.Each(func(i, k int) {
		if math.Abs(ref.strain[i][k]) < tensor.Tiny || math.Abs(ref.stress[i][k]) < tensor.Tiny {
			return
		}
		E[i][k] = ref.stress[i][k] / ref.strain[i][k]
		usable[i][k] = true
	})
	if !usable.Any() {
		return E, usable, ErrNotEvaluable
	}
	return E, usable, nil
}

func implied(E tensor.Tensor, mask tensor.Mask, stress, strain tensor.Tensor) tensor.Tensor {
	var ep tensor.Tensor
	mask.Each(func(i, k int) {
		ep[i][k] = strain[i][k] - stress[i][k]/E[i][k]
	})
	return ep
}

// crossed lists the loaded components with |ep| > t, upper triangle only.
func crossed(ep tensor.Tensor, mask tensor.Mask, t float64) [][2]int {
	var out [][2]int
	mask.Each(func(i, k int) {
		if k >= i && math.Abs(ep[i][k]) > t {
			out = append(out, [2]int{i, k})
		}
	})
	return out
}

func maxLoaded(ep tensor.Tensor, mask tensor.Mask) float64 {
	var m float64
	mask.Each(func(i, k int) {
		m = math.Max(m, math.Abs(ep[i][k]))
	})
	return m
}

func (PlasticStrain) Online(j *job.Job, h *increment.History) (bool, float64) {
	t, err := threshold(j)
	if err != nil {
		return false, 0
	}
	ref, err := reference(j, h)
	if err != nil {
		return false, 0
	}
	E, mask, err := slopes(ref, j.YieldMask())
	if err != nil {
		return false, 0
	}
	_, s := h.Latest()
	ep := implied(E, mask, s.Stress, s.Strain)
	return len(crossed(ep, mask, t)) > 0, maxLoaded(ep, mask)
}

func (PlasticStrain) Offline(j *job.Job, h *increment.History) (*increment.Interpolated, error) {
	t, err := threshold(j)
	if err != nil {
		return nil, err
	}
	ref, err := reference(j, h)
	if err != nil {
		return nil, nil
	}
	E, mask, err := slopes(ref, j.YieldMask())
	if err != nil {
		return nil, nil
	}
	for p := ref.first; p < h.Len(); p++ {
		ep := implied(E, mask, h.Stress[p], h.Strain[p])
		hits := crossed(ep, mask, t)
		if len(hits) == 0 {
			continue
		}
		i, k := hits[0][0], hits[0][1]
		x := yieldFraction(E[i][k], math.Copysign(t, ep[i][k]),
			h.Stress[p-1][i][k], h.Strain[p-1][i][k],
			h.Stress[p][i][k], h.Strain[p][i][k])
		res, err := increment.Interpolate(h, p-1, p, x)
		if err != nil {
			return nil, err
		}
		res.MultiAxial = len(hits) > 1
		return res, nil
	}
	return nil, nil
}

// yieldFraction intersects the elastic line offset by t with the secant
// through (eb, sb) and (ea, sa) and returns where the intersection lies
// between eb and ea.
func yieldFraction(E, t, sb, eb, sa, ea float64) float64 {
	de := ea - eb
	if math.Abs(de) < tensor.Tiny {
		return 1
	}
	k := (sa - sb) / de
	if math.Abs(E-k) < tensor.Tiny {
		return 1
	}
	ey := (sb + E*t - k*eb) / (E - k)
	return increment.Clamp((ey - eb) / de)
}
