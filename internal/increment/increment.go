// Package increment holds the per-job time series gathered while a solver
// runs, together with the counters the monitor uses to decide when to read,
// retry or give up.
package increment

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vbluemer/Homogenization-for-Damask/internal/tensor"
)

// ErrNoIncrements is returned when a history has no genuine entry yet.
var ErrNoIncrements = errors.New("increment: no increments recorded")

// Sample is the homogenized state of one increment.
type Sample struct {
	Stress        tensor.Tensor `yaml:"stress"`
	Strain        tensor.Tensor `yaml:"strain"`
	PlasticStrain tensor.Tensor `yaml:"plastic_strain"`
	PlasticWork   float64       `yaml:"plastic_work"`
}

// History is a set of aligned series, one entry per processed increment.
// Index 0 is always the undeformed reference state.
type History struct {
	Increments    []int           `yaml:"increments"`
	Stress        []tensor.Tensor `yaml:"stress"`
	Strain        []tensor.Tensor `yaml:"strain"`
	PlasticStrain []tensor.Tensor `yaml:"plastic_strain"`
	PlasticWork   []float64       `yaml:"plastic_work"`
}

// NewHistory returns a history seeded with the zero reference entry.
func NewHistory() *History {
	h := &History{}
	h.Append(0, Sample{})
	return h
}

// Append adds one entry to every series.
func (h *History) Append(inc int, s Sample) {
	h.Increments = append(h.Increments, inc)
	h.Stress = append(h.Stress, s.Stress)
	h.Strain = append(h.Strain, s.Strain)
	h.PlasticStrain = append(h.PlasticStrain, s.PlasticStrain)
	h.PlasticWork = append(h.PlasticWork, s.PlasticWork)
}

// Len is the number of entries including the reference.
func (h *History) Len() int { return len(h.Increments) }

// At returns the i-th entry.
func (h *History) At(i int) Sample {
	return Sample{
		Stress:        h.Stress[i],
		Strain:        h.Strain[i],
		PlasticStrain: h.PlasticStrain[i],
		PlasticWork:   h.PlasticWork[i],
	}
}

// Latest returns the newest entry and its position.
func (h *History) Latest() (int, Sample) {
	i := h.Len() - 1
	return i, h.At(i)
}

// Reference returns the position of the first genuine entry after skip
// entries that predate a restart. Position 0 is the seeded reference state
// and never qualifies.
func (h *History) Reference(skip int) (int, error) {
	i := 1 + skip
	if i >= h.Len() {
		return 0, ErrNoIncrements
	}
	return i, nil
}

// Accumulator is the mutable monitoring state of one job. It is owned by a
// single supervisor.
type Accumulator struct {
	LastIncrement int           `yaml:"last_increment"`
	Tracked       []int         `yaml:"tracked"`
	LastModified  time.Time     `yaml:"last_modified"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	History       *History      `yaml:"history"`
	ParseErrors   int           `yaml:"parse_errors"`
	StopReached   bool          `yaml:"stop_reached"`
	Succeeded     bool          `yaml:"succeeded"`
	Metric        float64       `yaml:"metric"`
}

// NewAccumulator returns a fresh accumulator polling at interval.
func NewAccumulator(interval time.Duration) *Accumulator {
	return &Accumulator{
		LastIncrement: -1,
		PollInterval:  interval,
		History:       NewHistory(),
		Succeeded:     true,
	}
}

// Observe reports whether newest is strictly beyond the last read increment.
func (a *Accumulator) Observe(newest int) bool {
	return newest > a.LastIncrement
}

// Record appends a completed sample and only then advances the read cursor.
func (a *Accumulator) Record(newest int, s Sample) {
	a.History.Append(newest, s)
	a.Tracked = append(a.Tracked, newest)
	a.LastIncrement = newest
	a.ParseErrors = 0
}

// ParseError counts one more consecutive read failure and returns the count.
func (a *Accumulator) ParseError() int {
	a.ParseErrors++
	return a.ParseErrors
}

// ResetParseErrors clears the consecutive failure count.
func (a *Accumulator) ResetParseErrors() { a.ParseErrors = 0 }

// ExceedsParseErrors reports whether the consecutive failure count is
// strictly above threshold.
func (a *Accumulator) ExceedsParseErrors(threshold int) bool {
	return a.ParseErrors > threshold
}

// Save writes the accumulator as YAML.
func (a *Accumulator) Save(path string) error {
	data, err := yaml.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal accumulator: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write accumulator: %w", err)
	}
	return nil
}

// LoadAccumulator restores an accumulator written by Save. The transient
// fields (error count, verdict, timestamp) start over.
func LoadAccumulator(path string, interval time.Duration) (*Accumulator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accumulator: %w", err)
	}
	a := NewAccumulator(interval)
	if err := yaml.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("parse accumulator %s: %w", path, err)
	}
	if a.History == nil || a.History.Len() == 0 {
		a.History = NewHistory()
	}
	a.PollInterval = interval
	a.ParseErrors = 0
	a.StopReached = false
	a.Succeeded = true
	a.LastModified = time.Time{}
	return a, nil
}
