package batch

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/vbluemer/Homogenization-for-Damask/internal/display"
	"github.com/vbluemer/Homogenization-for-Damask/internal/format"
	"github.com/vbluemer/Homogenization-for-Damask/internal/increment"
	"github.com/vbluemer/Homogenization-for-Damask/internal/tensor"
)

func (r *Runner) save(rep *Report) error {
	if r.ResultsFile == "" {
		return nil
	}
	return SaveReport(r.ResultsFile, rep)
}

// SaveReport writes rep as YAML.
func SaveReport(path string, rep *Report) error {
	data, err := yaml.Marshal(rep)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// LoadReport reads a report written by SaveReport.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var rep Report
	if err := yaml.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &rep, nil
}

// Summary renders one row per job.
func Summary(rep *Report, m format.Mode) string {
	tb := format.NewTable(m)
	if rep.Project != "" {
		tb.Title(rep.Project)
	}
	tb.Header("#", "Job", "Type", "Status", "Exit", "Last Inc", "Metric", "Yield", "Duration")
	for _, res := range rep.Results {
		yield := "-"
		if res.Yield != nil {
			yield = fmt.Sprintf("%d→%d @ %s", res.Yield.Before, res.Yield.After, format.FmtFraction(res.Yield.Fraction))
			if res.Yield.MultiAxial {
				yield += " (multi-axial)"
			}
		}
		exit := "-"
		if res.Status != Skipped {
			exit = display.ExitCode(res.ExitCode)
		}
		tb.Row(res.Number, res.Job, display.SimulationType(string(res.SimulationType)), string(res.Status),
			exit, res.LastIncrement, format.FmtSci(res.Metric), yield, format.FmtDuration(res.Duration))
	}
	tb.Footer("", fmt.Sprintf("%d jobs", len(rep.Results)), "",
		fmt.Sprintf("%d failed, %d skipped", rep.Count(Failed), rep.Count(Skipped)), "", "", "", "", "")
	tb.Columns(
		format.ColumnConfig{Number: 6, Right: true},
		format.ColumnConfig{Number: 7, Right: true},
		format.ColumnConfig{Number: 8, MaxWidth: 32},
	)
	return tb.String()
}

// HistoryTable renders the homogenized history, one row per increment,
// with stress and strain in Voigt order.
func HistoryTable(h *increment.History, m format.Mode) string {
	tb := format.NewTable(m)
	tb.Header("Increment", "Stress", "Strain", "Plastic Strain", "Plastic Work")
	for i := 0; i < h.Len(); i++ {
		s := h.At(i)
		tb.Row(h.Increments[i],
			format.FmtVoigt(tensor.StressVoigt(s.Stress)),
			format.FmtVoigt(tensor.StrainVoigt(s.Strain)),
			format.FmtVoigt(tensor.StrainVoigt(s.PlasticStrain)),
			format.FmtSci(s.PlasticWork))
	}
	tb.Columns(format.ColumnConfig{Number: 1, Right: true})
	return tb.String()
}
