package resultstore

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/vbluemer/Homogenization-for-Damask/internal/increment"
	"github.com/vbluemer/Homogenization-for-Damask/internal/logging"
	"github.com/vbluemer/Homogenization-for-Damask/internal/tensor"
)

// StressMeasure selects the homogenized stress tensor.
type StressMeasure int

const (
	PK1 StressMeasure = iota
	PK2
	Cauchy
)

var stressNames = map[StressMeasure]string{PK1: "PK1", PK2: "PK2", Cauchy: "Cauchy"}

func (m StressMeasure) String() string { return stressNames[m] }

// Field is the result store field holding this measure.
func (m StressMeasure) Field() string {
	switch m {
	case PK2:
		return FieldPK2
	case Cauchy:
		return FieldCauchy
	}
	return FieldP
}

// ParseStressMeasure maps a configuration name to a StressMeasure.
func ParseStressMeasure(s string) (StressMeasure, error) {
	for m, name := range stressNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown stress tensor type %q (want PK1, PK2 or Cauchy)", s)
}

// StrainMeasure selects the Seth-Hill order of the homogenized strain.
type StrainMeasure int

const (
	TrueStrain    StrainMeasure = 0
	GreenLagrange StrainMeasure = 1
)

var strainNames = map[StrainMeasure]string{TrueStrain: "true_strain", GreenLagrange: "Green_Lagrange"}

func (m StrainMeasure) String() string { return strainNames[m] }

// ParseStrainMeasure maps a configuration name to a StrainMeasure.
func ParseStrainMeasure(s string) (StrainMeasure, error) {
	for m, name := range strainNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown strain tensor type %q (want true_strain or Green_Lagrange)", s)
}

// Reader homogenizes result store increments into accumulator samples.
// Log receives derivation chatter; leave it nil to keep the reader silent.
type Reader struct {
	Stress   StressMeasure
	Strain   StrainMeasure
	Parallel int
	Log      *slog.Logger
}

func (r Reader) log() *slog.Logger {
	if r.Log == nil {
		return logging.Discard()
	}
	return r.Log
}

func (r Reader) strainFields() (total, plastic string) {
	m := int(r.Strain)
	return StrainField(m, FieldF), StrainField(m, FieldFp)
}

// prepare derives and caches every field the reader needs, for incs or for
// every increment when incs is empty.
func (r Reader) prepare(st *Store, incs ...int) error {
	total, plastic := r.strainFields()
	needed := []string{total, plastic}
	if f := r.Stress.Field(); f != FieldP {
		needed = append(needed, f)
	}
	if r.Stress == Cauchy {
		needed = append(needed, FieldDetF)
	}
	for _, name := range needed {
		n, err := st.Derive(name, incs...)
		if err != nil {
			return err
		}
		if n > 0 {
			r.log().Debug("derived field", slog.String("field", name), slog.Int("increments", n))
		}
	}
	return nil
}

// Homogenize computes the sample of one increment. Plastic work is the
// cumulative value up to and including inc.
func (r Reader) Homogenize(st *Store, inc int) (increment.Sample, error) {
	if err := r.prepare(st, inc); err != nil {
		return increment.Sample{}, err
	}
	s, err := r.tensors(st, inc)
	if err != nil {
		return increment.Sample{}, err
	}
	incs, err := st.Increments()
	if err != nil {
		return increment.Sample{}, err
	}
	var upTo []int
	for _, i := range incs {
		if i <= inc {
			upTo = append(upTo, i)
		}
	}
	work, err := plasticWork(st, upTo)
	if err != nil {
		return increment.Sample{}, err
	}
	if len(work) > 0 {
		s.PlasticWork = work[len(work)-1]
	}
	return s, nil
}

// History homogenizes every increment after the reference state.
func (r Reader) History(ctx context.Context, st *Store) (*increment.History, error) {
	if err := r.prepare(st); err != nil {
		return nil, err
	}
	incs, err := st.Increments()
	if err != nil {
		return nil, err
	}
	if len(incs) == 0 {
		return nil, increment.ErrNoIncrements
	}
	work, err := plasticWork(st, incs)
	if err != nil {
		return nil, err
	}

	samples := make([]increment.Sample, len(incs))
	parallel := r.Parallel
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, inc := range incs {
		if inc == 0 {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := r.tensors(st, inc)
			if err != nil {
				return err
			}
			s.PlasticWork = work[i]
			samples[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("homogenize history: %w", err)
	}

	h := increment.NewHistory()
	for i, inc := range incs {
		if inc == 0 {
			continue
		}
		h.Append(inc, samples[i])
	}
	r.log().Debug("homogenized history", slog.Int("increments", h.Len()-1))
	return h, nil
}

func (r Reader) tensors(st *Store, inc int) (increment.Sample, error) {
	var s increment.Sample
	stress, err := st.Tensors(r.Stress.Field(), inc)
	if err != nil {
		return s, err
	}
	if r.Stress == Cauchy {
		dets, err := st.field(FieldDetF, inc)
		if err != nil {
			return s, err
		}
		s.Stress, err = tensor.WeightedMean(stress, dets.Data)
		if err != nil {
			return s, fmt.Errorf("volume average stress@%d: %w", inc, err)
		}
	} else {
		s.Stress = tensor.Mean(stress)
	}

	total, plastic := r.strainFields()
	strain, err := st.Tensors(total, inc)
	if err != nil {
		return s, err
	}
	s.Strain = tensor.Mean(strain)
	pstrain, err := st.Tensors(plastic, inc)
	if err != nil {
		return s, err
	}
	s.PlasticStrain = tensor.Mean(pstrain)
	return s, nil
}

// plasticWork returns the cumulative dissipated work after each of incs:
// the sum over increments e of (gamma_e - gamma_{e-1}) * xi_e over all
// points and slip systems, normalized by the point count. Increments missing
// either slip field contribute nothing.
func plasticWork(st *Store, incs []int) ([]float64, error) {
	out := make([]float64, len(incs))
	var prev *Field
	var sum float64
	for k, inc := range incs {
		gamma, okG, err := st.Get(FieldGamma, inc)
		if err != nil {
			return nil, err
		}
		xi, okX, err := st.Get(FieldXi, inc)
		if err != nil {
			return nil, err
		}
		if okG && okX && prev != nil && gamma.Points > 0 {
			if len(gamma.Data) != len(xi.Data) || len(gamma.Data) != len(prev.Data) {
				return nil, fmt.Errorf("plastic work@%d: slip field shapes differ", inc)
			}
			var w float64
			for n := range gamma.Data {
				w += (gamma.Data[n] - prev.Data[n]) * xi.Data[n]
			}
			sum += w / float64(gamma.Points)
		}
		if okG {
			g := gamma
			prev = &g
		} else {
			prev = nil
		}
		out[k] = sum
	}
	return out, nil
}
