package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vbluemer/Homogenization-for-Damask/internal/batch"
	"github.com/vbluemer/Homogenization-for-Damask/internal/display"
	"github.com/vbluemer/Homogenization-for-Damask/internal/format"
	"github.com/vbluemer/Homogenization-for-Damask/internal/job"
	"github.com/vbluemer/Homogenization-for-Damask/internal/resultstore"
	"github.com/vbluemer/Homogenization-for-Damask/internal/tensor"
)

var postprocessFlags struct {
	jobsPath string
	jobName  string
	history  bool
}

var postprocessCmd = &cobra.Command{
	Use:   "postprocess",
	Short: "Locate the yield point of finished jobs",
	RunE:  runPostprocess,
}

func init() {
	f := postprocessCmd.Flags()
	f.StringVarP(&postprocessFlags.jobsPath, "jobs", "j", "", "Job batch file (required)")
	f.StringVar(&postprocessFlags.jobName, "job", "", "Only the named job")
	f.BoolVar(&postprocessFlags.history, "history", false, "Also print each job's homogenized history")

	_ = postprocessCmd.MarkFlagRequired("jobs")
}

func runPostprocess(cmd *cobra.Command, _ []string) error {
	jobs, err := job.LoadBatch(postprocessFlags.jobsPath)
	if err != nil {
		return err
	}
	if jobs, err = selectJobs(jobs, postprocessFlags.jobName); err != nil {
		return err
	}
	reader, err := settings.Reader()
	if err != nil {
		return err
	}
	runner := &batch.Runner{Reader: reader}
	out := cmd.OutOrStdout()

	tb := format.NewTable(tableMode())
	tb.Header("Job", "Stop Condition", "Bracket", "Fraction", "Stress", "Strain", "Plastic Work")
	for _, j := range jobs {
		kind := "none"
		if y, ok := j.Stop.(job.Yielding); ok {
			kind = y.Kind.String()
		}
		y, err := runner.Locate(cmd.Context(), j)
		if err != nil {
			tb.Row(j.Name, display.StopKind(kind), "error: "+format.Truncate(err.Error(), 60), "", "", "", "")
			continue
		}
		if y == nil {
			tb.Row(j.Name, display.StopKind(kind), "not reached", "", "", "", "")
			continue
		}
		bracket := fmt.Sprintf("%d→%d", y.Before, y.After)
		if y.MultiAxial {
			bracket += " (multi-axial)"
		}
		tb.Row(j.Name, display.StopKind(kind), bracket, format.FmtFraction(y.Fraction),
			format.FmtVoigt(tensor.StressVoigt(y.Stress)), format.FmtVoigt(tensor.StrainVoigt(y.Strain)), format.FmtSci(y.PlasticWork))
	}
	fmt.Fprintln(out, tb.String())

	if !postprocessFlags.history {
		return nil
	}
	for _, j := range jobs {
		if err := printHistory(cmd, reader, j.Runtime.ResultFile, j.Name); err != nil {
			return fmt.Errorf("history of %s: %w", j.Name, err)
		}
	}
	return nil
}

func printHistory(cmd *cobra.Command, reader resultstore.Reader, path, title string) error {
	st, err := resultstore.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()
	h, err := reader.History(cmd.Context(), st)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), title)
	fmt.Fprintln(cmd.OutOrStdout(), batch.HistoryTable(h, tableMode()))
	return nil
}
