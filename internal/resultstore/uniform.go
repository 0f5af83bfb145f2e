package resultstore

import (
	"github.com/vbluemer/Homogenization-for-Damask/internal/tensor"
)

// Uniform describes an increment in which every material point carries the
// same state. Gamma and Xi hold one value per slip system and may be nil.
type Uniform struct {
	F, P, Fp  tensor.Tensor
	Gamma, Xi []float64
}

// Fields expands u over points material points.
func (u Uniform) Fields(points int) map[string]Field {
	rep := func(t tensor.Tensor) Field {
		ts := make([]tensor.Tensor, points)
		for p := range ts {
			ts[p] = t
		}
		return TensorField(ts)
	}
	out := map[string]Field{
		FieldF:  rep(u.F),
		FieldP:  rep(u.P),
		FieldFp: rep(u.Fp),
	}
	if u.Gamma != nil && u.Xi != nil {
		g := make([][]float64, points)
		x := make([][]float64, points)
		for p := 0; p < points; p++ {
			g[p] = u.Gamma
			x[p] = u.Xi
		}
		out[FieldGamma], _ = VectorField(g)
		out[FieldXi], _ = VectorField(x)
	}
	return out
}
