package increment

import (
	"fmt"

	"github.com/vbluemer/Homogenization-for-Damask/internal/tensor"
)

// Interpolated is the state between two bracketing increments at the point
// where a stop condition is exactly met.
type Interpolated struct {
	Fraction      float64       `yaml:"fraction"`
	Before        int           `yaml:"before"`
	After         int           `yaml:"after"`
	Stress        tensor.Tensor `yaml:"stress"`
	Strain        tensor.Tensor `yaml:"strain"`
	PlasticStrain tensor.Tensor `yaml:"plastic_strain"`
	PlasticWork   float64       `yaml:"plastic_work"`

	// MultiAxial is set when more than one loaded direction crossed the
	// threshold inside the bracket; Fraction then follows the first one.
	MultiAxial bool `yaml:"multi_axial,omitempty"`
}

// Interpolate blends history entries i and j at fraction x, clamped to
// [0,1]. Before and After carry the solver increment numbers.
func Interpolate(h *History, i, j int, x float64) (*Interpolated, error) {
	if i < 0 || j >= h.Len() || i >= j {
		return nil, fmt.Errorf("interpolate: invalid bracket [%d,%d] of %d entries", i, j, h.Len())
	}
	x = Clamp(x)
	a, b := h.At(i), h.At(j)
	return &Interpolated{
		Fraction:      x,
		Before:        h.Increments[i],
		After:         h.Increments[j],
		Stress:        tensor.Lerp(a.Stress, b.Stress, x),
		Strain:        tensor.Lerp(a.Strain, b.Strain, x),
		PlasticStrain: tensor.Lerp(a.PlasticStrain, b.PlasticStrain, x),
		PlasticWork:   tensor.LerpScalar(a.PlasticWork, b.PlasticWork, x),
	}, nil
}

// Clamp limits x to [0,1]; NaN maps to 1.
func Clamp(x float64) float64 {
	switch {
	case x != x:
		return 1
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
