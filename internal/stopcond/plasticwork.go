package stopcond

import (
	"math"

	"github.com/vbluemer/Homogenization-for-Damask/internal/increment"
	"github.com/vbluemer/Homogenization-for-Damask/internal/job"
	"github.com/vbluemer/Homogenization-for-Damask/internal/tensor"
)

// Work detects yield once the cumulative dissipated plastic work exceeds the
// threshold energy density.
type Work struct{}

func (Work) Online(j *job.Job, h *increment.History) (bool, float64) {
	t, err := threshold(j)
	if err != nil || h.Len() < 2 {
		return false, 0
	}
	_, s := h.Latest()
	return s.PlasticWork > t, s.PlasticWork
}

func (Work) Offline(j *job.Job, h *increment.History) (*increment.Interpolated, error) {
	t, err := threshold(j)
	if err != nil {
		return nil, err
	}
	for p := 1; p < h.Len(); p++ {
		if h.Increments[p] < j.ExistingIncrements || h.PlasticWork[p] <= t {
			continue
		}
		wb, wa := h.PlasticWork[p-1], h.PlasticWork[p]
		x := 1.0
		if math.Abs(wa-wb) > tensor.Tiny {
			x = (t - wb) / (wa - wb)
		}
		return increment.Interpolate(h, p-1, p, x)
	}
	return nil, nil
}
