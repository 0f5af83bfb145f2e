package tensor

import (
	"fmt"
	"math"
)

const (
	jacobiSweeps = 50
	jacobiTol    = 1e-15
)

// EigenSym decomposes a symmetric tensor into eigenvalues w and eigenvectors
// stored as the columns of v (cyclic Jacobi rotations).
func EigenSym(a Tensor) (w [3]float64, v Tensor) {
	v = Identity()
	for sweep := 0; sweep < jacobiSweeps; sweep++ {
		off := a[0][1]*a[0][1] + a[0][2]*a[0][2] + a[1][2]*a[1][2]
		if off < jacobiTol*jacobiTol {
			break
		}
		for p := 0; p < 2; p++ {
			for q := p + 1; q < 3; q++ {
				if math.Abs(a[p][q]) < Tiny*Tiny {
					continue
				}
				theta := (a[q][q] - a[p][p]) / (2 * a[p][q])
				t := math.Copysign(1, theta) / (math.Abs(theta) + math.Sqrt(theta*theta+1))
				c := 1 / math.Sqrt(t*t+1)
				s := t * c
				for k := 0; k < 3; k++ {
					akp, akq := a[k][p], a[k][q]
					a[k][p] = c*akp - s*akq
					a[k][q] = s*akp + c*akq
				}
				for k := 0; k < 3; k++ {
					apk, aqk := a[p][k], a[q][k]
					a[p][k] = c*apk - s*aqk
					a[q][k] = s*apk + c*aqk
				}
				for k := 0; k < 3; k++ {
					vkp, vkq := v[k][p], v[k][q]
					v[k][p] = c*vkp - s*vkq
					v[k][q] = s*vkp + c*vkq
				}
			}
		}
	}
	return [3]float64{a[0][0], a[1][1], a[2][2]}, v
}

// SethHill returns the Seth-Hill strain of the left stretch V of F:
// m = 0 gives ln V, otherwise (B^m - I)/(2m) with B = F·Fᵀ.
func SethHill(F Tensor, m float64) (Tensor, error) {
	B := F.Mul(F.Transpose())
	w, v := EigenSym(B)
	var d [3]float64
	for k, wk := range w {
		if wk <= 0 {
			return Tensor{}, fmt.Errorf("tensor: non-positive stretch eigenvalue %g", wk)
		}
		if m == 0 {
			d[k] = 0.5 * math.Log(wk)
		} else {
			d[k] = (math.Pow(wk, m) - 1) / (2 * m)
		}
	}
	var r Tensor
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 3; k++ {
				r[i][j] += v[i][k] * d[k] * v[j][k]
			}
		}
	}
	return r, nil
}
