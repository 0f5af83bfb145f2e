package tensor

// Mask flags tensor components, e.g. the directions a load step actively drives.
type Mask [3][3]bool

// Symmetric returns the mask with [j][i] set wherever [i][j] is.
func (m Mask) Symmetric() Mask {
	r := m
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if m[i][j] {
				r[j][i] = true
			}
		}
	}
	return r
}

// Any reports whether at least one component is set.
func (m Mask) Any() bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if m[i][j] {
				return true
			}
		}
	}
	return false
}

// Each calls fn for every set component in row-major order.
func (m Mask) Each(fn func(i, j int)) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if m[i][j] {
				fn(i, j)
			}
		}
	}
}
