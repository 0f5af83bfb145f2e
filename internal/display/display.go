// Package display provides human-readable names for machine codes and the
// operator-facing banners printed at the end of a job.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output, summaries and logs.
// Keep raw codes for YAML fields, map keys, and equality comparisons.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// --- Stop Condition Kinds ---

var stopKinds = map[string]string{
	"stress_strain_curve": "Plastic Strain",
	"modulus_degradation": "Modulus Degradation",
	"plastic_work":        "Plastic Work",
	"none":                "No Stop Condition",
}

// StopKind returns the human-readable name for a stop condition kind.
// Unknown codes are returned as-is.
func StopKind(code string) string {
	if name, ok := stopKinds[code]; ok {
		return name
	}
	return code
}

// StopKindWithCode returns "Plastic Work (plastic_work)" format.
func StopKindWithCode(code string) string {
	if name, ok := stopKinds[code]; ok {
		return name + " (" + code + ")"
	}
	return code
}

// --- Simulation Types ---

var simulationTypes = map[string]string{
	"yield_point":    "Yield Point",
	"yield_surface":  "Yield Surface",
	"elastic_tensor": "Elastic Tensor",
	"load_path":      "Load Path",
}

// SimulationType returns the human-readable name for a simulation type.
func SimulationType(code string) string {
	if name, ok := simulationTypes[code]; ok {
		return name
	}
	return code
}

// --- Monitor States ---

var states = map[string]string{
	"starting":          "Starting",
	"waiting_file":      "Waiting for Result File",
	"waiting_update":    "Waiting for Update",
	"checking_lock":     "Checking Lock",
	"reading_increment": "Reading Increment",
	"evaluating_stop":   "Evaluating Stop Condition",
	"stopping":          "Stopping",
	"terminated":        "Terminated",
}

// State returns the human-readable name for a monitor state code.
// "checking_lock" -> "Checking Lock".
func State(code string) string {
	if name, ok := states[code]; ok {
		return name
	}
	return code
}

// StatePath converts a slice of state codes to a human-readable path.
// ["starting", "waiting_file"] -> "Starting → Waiting for Result File"
func StatePath(codes []string) string {
	names := make([]string, len(codes))
	for i, c := range codes {
		names[i] = State(c)
	}
	return strings.Join(names, " → ")
}

// --- Exit Codes ---

// ExitCode describes a solver exit code: 0 is a clean stop, negative codes
// are signals, positive codes are solver errors.
func ExitCode(code int) string {
	switch {
	case code == 0:
		return "Clean Exit"
	case code < 0:
		return fmt.Sprintf("Terminated (signal %d)", -code)
	}
	return fmt.Sprintf("Solver Error (code %d)", code)
}

// --- Banners ---

var (
	errorTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))
	okTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF"))
	body = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA"))
	box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1)
)

// ErrorBanner frames a fatal job error together with diagnostic lines,
// typically the tail of the solver log.
func ErrorBanner(title string, lines []string) string {
	parts := []string{errorTitle.Render(title)}
	if len(lines) > 0 {
		parts = append(parts, body.Render(strings.Join(lines, "\n")))
	}
	return box.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// DoneBanner summarizes a successful job: elapsed time and final metric.
func DoneBanner(jobName string, elapsed time.Duration, metric float64, stopReached bool) string {
	verdict := "ran to completion"
	if stopReached {
		verdict = "stop condition reached"
	}
	text := fmt.Sprintf("%s %s after %s, metric %.6g", jobName, verdict, elapsed.Round(time.Millisecond), metric)
	return box.Render(okTitle.Render(text))
}
