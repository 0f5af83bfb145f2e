package resultstore

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/vbluemer/Homogenization-for-Damask/internal/tensor"
)

// Base field names written by the solver.
const (
	FieldF       = "F"
	FieldP       = "P"
	FieldFp      = "F_p"
	FieldXi      = "xi_sl"
	FieldGamma   = "gamma_sl"
	FieldCauchy  = "sigma"
	FieldPK2     = "S"
	FieldDetF    = "det(F)"
	tensorLength = 9
)

// StrainField names the Seth-Hill strain of order m on the left stretch of
// base, e.g. "epsilon_V^0(F)".
func StrainField(m int, base string) string {
	return fmt.Sprintf("epsilon_V^%d(%s)", m, base)
}

// Field is one quantity for every material point of one increment.
type Field struct {
	Components int
	Points     int
	Data       []float64
}

// Row returns the values of material point p.
func (f Field) Row(p int) []float64 {
	return f.Data[p*f.Components : (p+1)*f.Components]
}

// Tensors unpacks a 9-component field.
func (f Field) Tensors() ([]tensor.Tensor, error) {
	if f.Components != tensorLength {
		return nil, fmt.Errorf("field has %d components, want %d", f.Components, tensorLength)
	}
	out := make([]tensor.Tensor, f.Points)
	for p := range out {
		t, err := tensor.FromSlice(f.Row(p))
		if err != nil {
			return nil, err
		}
		out[p] = t
	}
	return out, nil
}

// TensorField packs one tensor per material point.
func TensorField(points []tensor.Tensor) Field {
	f := Field{Components: tensorLength, Points: len(points), Data: make([]float64, 0, tensorLength*len(points))}
	for _, t := range points {
		f.Data = append(f.Data, t.Slice()...)
	}
	return f
}

// ScalarField packs one value per material point.
func ScalarField(values []float64) Field {
	return Field{Components: 1, Points: len(values), Data: append([]float64(nil), values...)}
}

// VectorField packs equally sized rows, e.g. one value per slip system.
func VectorField(rows [][]float64) (Field, error) {
	if len(rows) == 0 {
		return Field{}, nil
	}
	n := len(rows[0])
	f := Field{Components: n, Points: len(rows), Data: make([]float64, 0, n*len(rows))}
	for p, r := range rows {
		if len(r) != n {
			return Field{}, fmt.Errorf("row %d has %d components, want %d", p, len(r), n)
		}
		f.Data = append(f.Data, r...)
	}
	return f, nil
}

func encode(data []float64) []byte {
	buf := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

func decode(buf []byte, components, points int) (Field, error) {
	n := components * points
	if len(buf) != 8*n {
		return Field{}, fmt.Errorf("blob holds %d bytes, want %d", len(buf), 8*n)
	}
	data := make([]float64, n)
	for i := range data {
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
	}
	return Field{Components: components, Points: points, Data: data}, nil
}
