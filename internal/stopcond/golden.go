package stopcond

import "math"

var invPhi = (math.Sqrt(5) - 1) / 2

// goldenSection minimizes f on [lo,hi] to within tol and returns the
// argument. The interval ends are compared with the interior minimum since
// the shrinking bracket only approaches them.
func goldenSection(f func(float64) float64, lo, hi, tol float64) float64 {
	a, b := lo, hi
	c := b - invPhi*(b-a)
	d := a + invPhi*(b-a)
	fc, fd := f(c), f(d)
	for i := 0; i < 200 && b-a > tol; i++ {
		if fc < fd {
			b, d, fd = d, c, fc
			c = b - invPhi*(b-a)
			fc = f(c)
		} else {
			a, c, fc = c, d, fd
			d = a + invPhi*(b-a)
			fd = f(d)
		}
	}
	best, fbest := (a+b)/2, f((a+b)/2)
	for _, x := range []float64{lo, hi} {
		if fx := f(x); fx < fbest {
			best, fbest = x, fx
		}
	}
	return best
}
