package job

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// Kind selects the yield-detection algorithm of a Yielding stop condition.
type Kind int

const (
	StressStrainCurve Kind = iota + 1
	ModulusDegradation
	PlasticWork
)

var kindNames = map[Kind]string{
	StressStrainCurve:  "stress_strain_curve",
	ModulusDegradation: "modulus_degradation",
	PlasticWork:        "plastic_work",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps the configuration name of a yield condition to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown yield condition %q", s)
}

func (k Kind) MarshalYAML() (any, error) {
	return k.String(), nil
}

func (k *Kind) UnmarshalYAML(n *yaml.Node) error {
	parsed, err := ParseKind(n.Value)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// StopCondition decides when a running job may be ended early. The set of
// implementations is closed: NoCondition and Yielding.
type StopCondition interface {
	stopCondition()
	String() string
}

// NoCondition never triggers; the solver runs to the end of its load case.
type NoCondition struct{}

func (NoCondition) stopCondition() {}

func (NoCondition) String() string { return "no stop condition" }

// Yielding stops the job once the algorithm selected by Kind detects yield.
// Threshold is a plastic strain, a fractional modulus drop or an energy
// density depending on Kind.
type Yielding struct {
	Kind      Kind
	Threshold float64
}

func (Yielding) stopCondition() {}

func (y Yielding) String() string {
	return fmt.Sprintf("yielding by %s at %g", y.Kind, y.Threshold)
}

func (y Yielding) validate() error {
	if _, ok := kindNames[y.Kind]; !ok {
		return fmt.Errorf("yielding: invalid kind %d", int(y.Kind))
	}
	if !(y.Threshold > 0) || math.IsInf(y.Threshold, 0) {
		return fmt.Errorf("yielding: threshold must be positive and finite, got %g", y.Threshold)
	}
	return nil
}

// stopSpec is the YAML shape of a stop condition: {kind: none} or
// {kind: <yield condition>, threshold: <value>}.
type stopSpec struct {
	Kind      string  `yaml:"kind"`
	Threshold float64 `yaml:"threshold,omitempty"`
}

func decodeStop(s *stopSpec) (StopCondition, error) {
	if s == nil || s.Kind == "" || s.Kind == "none" {
		return NoCondition{}, nil
	}
	k, err := ParseKind(s.Kind)
	if err != nil {
		return nil, err
	}
	return Yielding{Kind: k, Threshold: s.Threshold}, nil
}

func encodeStop(c StopCondition) stopSpec {
	if y, ok := c.(Yielding); ok {
		return stopSpec{Kind: y.Kind.String(), Threshold: y.Threshold}
	}
	return stopSpec{Kind: "none"}
}
