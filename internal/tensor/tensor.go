// Package tensor holds the small amount of 3×3 linear algebra the monitor needs:
// homogenization averages, Voigt vectors, interpolation and Seth-Hill strains.
package tensor

import (
	"errors"
	"fmt"
	"math"
)

// Tiny is the magnitude below which norms, slopes and determinants are
// treated as zero.
const Tiny = 1e-14

// ErrSingular is returned when a tensor cannot be inverted.
var ErrSingular = errors.New("tensor: singular")

// Tensor is a second-order tensor in Cartesian components, row-major.
type Tensor [3][3]float64

// Identity returns the second-order identity.
func Identity() Tensor {
	return Tensor{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
}

// FromSlice builds a tensor from 9 row-major values.
func FromSlice(v []float64) (Tensor, error) {
	var t Tensor
	if len(v) != 9 {
		return t, fmt.Errorf("tensor: want 9 components, got %d", len(v))
	}
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			t[i][j] = v[3*i+j]
		}
	}
	return t, nil
}

// Slice returns the 9 row-major components.
func (t Tensor) Slice() []float64 {
	out := make([]float64, 0, 9)
	for i := 0; i < 3; i++ {
		out = append(out, t[i][:]...)
	}
	return out
}

func (t Tensor) Add(o Tensor) Tensor {
	var r Tensor
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = t[i][j] + o[i][j]
		}
	}
	return r
}

func (t Tensor) Sub(o Tensor) Tensor {
	var r Tensor
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = t[i][j] - o[i][j]
		}
	}
	return r
}

func (t Tensor) Scale(s float64) Tensor {
	var r Tensor
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = s * t[i][j]
		}
	}
	return r
}

// Mul returns the matrix product t·o.
func (t Tensor) Mul(o Tensor) Tensor {
	var r Tensor
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				r[i][j] += t[i][k] * o[k][j]
			}
		}
	}
	return r
}

func (t Tensor) Transpose() Tensor {
	var r Tensor
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = t[j][i]
		}
	}
	return r
}

func (t Tensor) Det() float64 {
	return t[0][0]*(t[1][1]*t[2][2]-t[1][2]*t[2][1]) -
		t[0][1]*(t[1][0]*t[2][2]-t[1][2]*t[2][0]) +
		t[0][2]*(t[1][0]*t[2][1]-t[1][1]*t[2][0])
}

// Inverse returns t⁻¹ via the adjugate.
func (t Tensor) Inverse() (Tensor, error) {
	det := t.Det()
	if math.Abs(det) < Tiny {
		return Tensor{}, ErrSingular
	}
	var r Tensor
	r[0][0] = t[1][1]*t[2][2] - t[1][2]*t[2][1]
	r[0][1] = t[0][2]*t[2][1] - t[0][1]*t[2][2]
	r[0][2] = t[0][1]*t[1][2] - t[0][2]*t[1][1]
	r[1][0] = t[1][2]*t[2][0] - t[1][0]*t[2][2]
	r[1][1] = t[0][0]*t[2][2] - t[0][2]*t[2][0]
	r[1][2] = t[0][2]*t[1][0] - t[0][0]*t[1][2]
	r[2][0] = t[1][0]*t[2][1] - t[1][1]*t[2][0]
	r[2][1] = t[0][1]*t[2][0] - t[0][0]*t[2][1]
	r[2][2] = t[0][0]*t[1][1] - t[0][1]*t[1][0]
	return r.Scale(1 / det), nil
}

// Norm is the Frobenius norm.
func (t Tensor) Norm() float64 {
	var s float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s += t[i][j] * t[i][j]
		}
	}
	return math.Sqrt(s)
}

// Lerp interpolates between a (x=0) and b (x=1). Written as (1-x)·a + x·b so
// both endpoints are reproduced exactly.
func Lerp(a, b Tensor, x float64) Tensor {
	var r Tensor
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			r[i][j] = (1-x)*a[i][j] + x*b[i][j]
		}
	}
	return r
}

// LerpScalar is Lerp for scalars.
func LerpScalar(a, b, x float64) float64 {
	return (1-x)*a + x*b
}

// Mean is the arithmetic average over material points.
func Mean(points []Tensor) Tensor {
	var r Tensor
	if len(points) == 0 {
		return r
	}
	for _, p := range points {
		r = r.Add(p)
	}
	return r.Scale(1 / float64(len(points)))
}

// WeightedMean averages points with the given weights, e.g. det F for a
// volume average of true stress.
func WeightedMean(points []Tensor, weights []float64) (Tensor, error) {
	var r Tensor
	if len(points) != len(weights) {
		return r, fmt.Errorf("tensor: %d points but %d weights", len(points), len(weights))
	}
	var total float64
	for k, p := range points {
		r = r.Add(p.Scale(weights[k]))
		total += weights[k]
	}
	if math.Abs(total) < Tiny {
		return r, fmt.Errorf("tensor: weights sum to zero")
	}
	return r.Scale(1 / total), nil
}
