package job

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/vbluemer/Homogenization-for-Damask/internal/tensor"
)

// freeToken marks an unconstrained component in load-case files.
const freeToken = "x"

// Entry is one boundary component: either a prescribed value or free.
type Entry struct {
	Value float64
	Free  bool
}

// Free returns an unconstrained entry.
func Free() Entry { return Entry{Free: true} }

// Val returns a prescribed entry.
func Val(v float64) Entry { return Entry{Value: v} }

func (e Entry) String() string {
	if e.Free {
		return freeToken
	}
	return strconv.FormatFloat(e.Value, 'g', -1, 64)
}

func (e Entry) MarshalYAML() (any, error) {
	if e.Free {
		return freeToken, nil
	}
	return e.Value, nil
}

func (e *Entry) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: boundary entry must be a scalar", n.Line)
	}
	if n.Value == freeToken {
		*e = Free()
		return nil
	}
	v, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return fmt.Errorf("line %d: boundary entry %q is neither a number nor %q", n.Line, n.Value, freeToken)
	}
	*e = Val(v)
	return nil
}

// Boundary is a 3×3 load target whose entries may be free.
type Boundary [3][3]Entry

// FreeBoundary returns a boundary with every component unconstrained.
func FreeBoundary() Boundary {
	var b Boundary
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			b[i][j] = Free()
		}
	}
	return b
}

// Prescribed returns the prescribed values as a tensor (free entries are 0)
// together with the mask of prescribed components.
func (b Boundary) Prescribed() (tensor.Tensor, tensor.Mask) {
	var t tensor.Tensor
	var m tensor.Mask
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !b[i][j].Free {
				t[i][j] = b[i][j].Value
				m[i][j] = true
			}
		}
	}
	return t, m
}

// LoadedMask marks every prescribed, non-zero component.
func (b Boundary) LoadedMask() tensor.Mask {
	var m tensor.Mask
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !b[i][j].Free && b[i][j].Value != 0 {
				m[i][j] = true
			}
		}
	}
	return m
}

// LoadStep is one segment of the load case.
type LoadStep struct {
	Stress      Boundary    `yaml:"stress"`
	Deformation Boundary    `yaml:"deformation"`
	Loaded      tensor.Mask `yaml:"loaded"`
	Increments  int         `yaml:"increments"`
}
