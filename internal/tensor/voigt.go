package tensor

import "math"

// Vector6 is a symmetric tensor in Voigt order xx, yy, zz, yz, xz, xy.
type Vector6 [6]float64

// StressVoigt maps a stress tensor to Voigt notation (no shear factor).
func StressVoigt(t Tensor) Vector6 {
	return Vector6{t[0][0], t[1][1], t[2][2], t[1][2], t[0][2], t[0][1]}
}

// StrainVoigt maps a strain tensor to Voigt notation with engineering shear.
func StrainVoigt(t Tensor) Vector6 {
	return Vector6{t[0][0], t[1][1], t[2][2], 2 * t[1][2], 2 * t[0][2], 2 * t[0][1]}
}

func (v Vector6) Dot(o Vector6) float64 {
	var s float64
	for k := range v {
		s += v[k] * o[k]
	}
	return s
}

func (v Vector6) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// LinearEnergy is the stored elastic energy density ½ σ·ε assuming Hooke's law.
func LinearEnergy(stress, strain Tensor) float64 {
	return 0.5 * StressVoigt(stress).Dot(StrainVoigt(strain))
}

// LinearModulus is LinearEnergy divided by the squared strain norm. ok is false
// when the strain norm is too small for the ratio to mean anything.
func LinearModulus(stress, strain Tensor) (modulus float64, ok bool) {
	n := StrainVoigt(strain).Norm()
	if n < Tiny {
		return 0, false
	}
	return LinearEnergy(stress, strain) / (n * n), true
}

// StrainNorm is the Voigt strain norm.
func StrainNorm(strain Tensor) float64 {
	return StrainVoigt(strain).Norm()
}
