// Package stopcond decides, from the homogenized history of a job, whether
// its yield criterion has been met, and pinpoints the yield state between two
// increments once the run is complete.
package stopcond

import (
	"errors"
	"fmt"

	"github.com/vbluemer/Homogenization-for-Damask/internal/increment"
	"github.com/vbluemer/Homogenization-for-Damask/internal/job"
	"github.com/vbluemer/Homogenization-for-Damask/internal/tensor"
)

// ErrNotEvaluable marks histories the criterion cannot judge yet, e.g. a
// zero reference strain.
var ErrNotEvaluable = errors.New("stopcond: not evaluable")

// Evaluator is one yield-detection algorithm.
//
// Online judges the newest history entry and returns the verdict together
// with the criterion's metric. Offline scans a complete history for the
// first entry where Online would have fired and interpolates the crossing
// between it and its predecessor; it returns nil when the criterion never
// fires.
type Evaluator interface {
	Online(j *job.Job, h *increment.History) (yielded bool, metric float64)
	Offline(j *job.Job, h *increment.History) (*increment.Interpolated, error)
}

// Registry dispatches stop conditions to evaluators.
type Registry struct {
	byKind map[job.Kind]Evaluator
}

// NewRegistry returns a registry with the three built-in yield criteria.
func NewRegistry() *Registry {
	return &Registry{byKind: map[job.Kind]Evaluator{
		job.StressStrainCurve:  PlasticStrain{},
		job.ModulusDegradation: Modulus{},
		job.PlasticWork:        Work{},
	}}
}

// Register replaces the evaluator of kind.
func (r *Registry) Register(kind job.Kind, e Evaluator) {
	r.byKind[kind] = e
}

// For returns the evaluator matching c.
func (r *Registry) For(c job.StopCondition) (Evaluator, error) {
	switch c := c.(type) {
	case job.NoCondition:
		return None{}, nil
	case job.Yielding:
		e, ok := r.byKind[c.Kind]
		if !ok {
			return nil, fmt.Errorf("no evaluator registered for %s", c.Kind)
		}
		return e, nil
	}
	return nil, fmt.Errorf("unsupported stop condition %T", c)
}

// None never fires.
type None struct{}

func (None) Online(*job.Job, *increment.History) (bool, float64) { return false, 0 }

func (None) Offline(*job.Job, *increment.History) (*increment.Interpolated, error) {
	return nil, nil
}

func threshold(j *job.Job) (float64, error) {
	y, ok := j.Stop.(job.Yielding)
	if !ok {
		return 0, fmt.Errorf("job %s: stop condition %v has no threshold", j.Name, j.Stop)
	}
	return y.Threshold, nil
}

// elastic is the reference state criteria compare against: the first
// genuine increment, or for a restarted job with pre-existing increments the
// delta across the first post-restart increment.
type elastic struct {
	stress, strain tensor.Tensor
	// first is the history position where scanning for yield starts.
	first int
}

func reference(j *job.Job, h *increment.History) (elastic, error) {
	if j.ExistingIncrements <= 0 {
		if h.Len() < 2 {
			return elastic{}, ErrNotEvaluable
		}
		return elastic{stress: h.Stress[1], strain: h.Strain[1], first: 1}, nil
	}
	base := -1
	for p := 1; p < h.Len(); p++ {
		if h.Increments[p] >= j.ExistingIncrements {
			base = p
			break
		}
	}
	if base < 0 || base+1 >= h.Len() {
		return elastic{}, ErrNotEvaluable
	}
	return elastic{
		stress: h.Stress[base+1].Sub(h.Stress[base]),
		strain: h.Strain[base+1].Sub(h.Strain[base]),
		first:  base + 1,
	}, nil
}
