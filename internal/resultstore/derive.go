package resultstore

import (
	"fmt"

	"github.com/vbluemer/Homogenization-for-Damask/internal/tensor"
)

// derivation computes one field point-wise from the named input fields.
type derivation struct {
	inputs []string
	apply  func(in []Field) (Field, error)
}

func derivations() map[string]derivation {
	d := map[string]derivation{
		FieldCauchy: {
			inputs: []string{FieldP, FieldF},
			apply: pointwise(func(t []tensor.Tensor) (tensor.Tensor, error) {
				P, F := t[0], t[1]
				det := F.Det()
				if det == 0 {
					return tensor.Tensor{}, tensor.ErrSingular
				}
				return P.Mul(F.Transpose()).Scale(1 / det), nil
			}),
		},
		FieldPK2: {
			inputs: []string{FieldP, FieldF},
			apply: pointwise(func(t []tensor.Tensor) (tensor.Tensor, error) {
				Fi, err := t[1].Inverse()
				if err != nil {
					return tensor.Tensor{}, err
				}
				return Fi.Mul(t[0]), nil
			}),
		},
		FieldDetF: {
			inputs: []string{FieldF},
			apply: func(in []Field) (Field, error) {
				ts, err := in[0].Tensors()
				if err != nil {
					return Field{}, err
				}
				dets := make([]float64, len(ts))
				for p, F := range ts {
					dets[p] = F.Det()
				}
				return ScalarField(dets), nil
			},
		},
	}
	for _, m := range []int{0, 1} {
		for _, base := range []string{FieldF, FieldFp} {
			order := float64(m)
			d[StrainField(m, base)] = derivation{
				inputs: []string{base},
				apply: pointwise(func(t []tensor.Tensor) (tensor.Tensor, error) {
					return tensor.SethHill(t[0], order)
				}),
			}
		}
	}
	return d
}

func pointwise(fn func([]tensor.Tensor) (tensor.Tensor, error)) func([]Field) (Field, error) {
	return func(in []Field) (Field, error) {
		cols := make([][]tensor.Tensor, len(in))
		for k, f := range in {
			ts, err := f.Tensors()
			if err != nil {
				return Field{}, err
			}
			if k > 0 && len(ts) != len(cols[0]) {
				return Field{}, fmt.Errorf("input %d has %d points, want %d", k, len(ts), len(cols[0]))
			}
			cols[k] = ts
		}
		out := make([]tensor.Tensor, len(cols[0]))
		args := make([]tensor.Tensor, len(in))
		for p := range out {
			for k := range cols {
				args[k] = cols[k][p]
			}
			t, err := fn(args)
			if err != nil {
				return Field{}, fmt.Errorf("point %d: %w", p, err)
			}
			out[p] = t
		}
		return TensorField(out), nil
	}
}

// Derivable reports whether name can be computed from base fields.
func Derivable(name string) bool {
	_, ok := derivations()[name]
	return ok
}

// Derive computes name for the listed increments, or for every increment
// when none are listed, skipping those that already carry it, and caches the
// result in the store. It returns the number of increments derived.
func (s *Store) Derive(name string, incs ...int) (int, error) {
	d, ok := derivations()[name]
	if !ok {
		return 0, fmt.Errorf("derive %s: no derivation known", name)
	}
	if len(incs) == 0 {
		all, err := s.Increments()
		if err != nil {
			return 0, err
		}
		incs = all
	}

	computed := make(map[int]Field)
	for _, inc := range incs {
		if _, have, err := s.Get(name, inc); err != nil {
			return 0, err
		} else if have {
			continue
		}
		in := make([]Field, len(d.inputs))
		for k, input := range d.inputs {
			f, have, err := s.Get(input, inc)
			if err != nil {
				return 0, err
			}
			if !have {
				return 0, fmt.Errorf("derive %s@%d from %s: %w", name, inc, input, ErrFieldAbsent)
			}
			in[k] = f
		}
		out, err := d.apply(in)
		if err != nil {
			return 0, fmt.Errorf("derive %s@%d: %w", name, inc, err)
		}
		computed[inc] = out
	}
	if len(computed) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin derive %s: %w", name, err)
	}
	for inc, f := range computed {
		if err := s.put(tx, inc, name, f, true); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit derive %s: %w", name, err)
	}
	return len(computed), nil
}

// Tensors reads a tensor field, deriving and caching it first when it is
// absent and derivable.
func (s *Store) Tensors(name string, inc int) ([]tensor.Tensor, error) {
	f, err := s.field(name, inc)
	if err != nil {
		return nil, err
	}
	return f.Tensors()
}

func (s *Store) field(name string, inc int) (Field, error) {
	f, ok, err := s.Get(name, inc)
	if err != nil {
		return Field{}, err
	}
	if ok {
		return f, nil
	}
	if !Derivable(name) {
		return Field{}, fmt.Errorf("read %s@%d: %w", name, inc, ErrFieldAbsent)
	}
	if _, err := s.Derive(name, inc); err != nil {
		return Field{}, err
	}
	f, ok, err = s.Get(name, inc)
	if err != nil {
		return Field{}, err
	}
	if !ok {
		return Field{}, fmt.Errorf("read %s@%d after derive: %w", name, inc, ErrFieldAbsent)
	}
	return f, nil
}
