package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vbluemer/Homogenization-for-Damask/internal/batch"
	"github.com/vbluemer/Homogenization-for-Damask/internal/job"
	"github.com/vbluemer/Homogenization-for-Damask/internal/lifecycle"
	"github.com/vbluemer/Homogenization-for-Damask/internal/logging"
	"github.com/vbluemer/Homogenization-for-Damask/internal/monitor"
)

var runFlags struct {
	jobsPath    string
	jobName     string
	resultsPath string
	unattended  bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a job batch under supervision",
	Long: "Run launches the solver for each job in turn. Interrupt once to stop the\n" +
		"current job after its increment; interrupt again to force it down.",
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.jobsPath, "jobs", "j", "", "Job batch file (required)")
	f.StringVar(&runFlags.jobName, "job", "", "Run only the named job")
	f.StringVarP(&runFlags.resultsPath, "results", "o", "", "Report file (default: <batch dir>/results.yaml)")
	f.BoolVarP(&runFlags.unattended, "yes", "y", false, "Continue with remaining jobs after an interrupt without asking")

	_ = runCmd.MarkFlagRequired("jobs")
}

func runRun(cmd *cobra.Command, _ []string) error {
	jobs, err := job.LoadBatch(runFlags.jobsPath)
	if err != nil {
		return err
	}
	if jobs, err = selectJobs(jobs, runFlags.jobName); err != nil {
		return err
	}
	reader, err := settings.Reader()
	if err != nil {
		return err
	}

	var prompter lifecycle.Prompter = lifecycle.StdinPrompter{In: cmd.InOrStdin(), Out: cmd.ErrOrStderr()}
	if runFlags.unattended {
		prompter = lifecycle.FixedPrompter{Answer: true}
	}
	interrupts, stop := lifecycle.NotifyInterrupts()
	defer stop()

	resultsPath := runFlags.resultsPath
	if resultsPath == "" {
		resultsPath = filepath.Join(filepath.Dir(runFlags.jobsPath), "results.yaml")
	}
	runner := &batch.Runner{
		Supervisor: &monitor.Supervisor{
			Settings:   settings.Monitor(),
			Reader:     reader,
			Prompter:   prompter,
			Interrupts: interrupts,
		},
		Reader:      reader,
		Project:     settings.General.ProjectName,
		ResultsFile: resultsPath,
		Out:         cmd.ErrOrStderr(),
		Log:         logging.New("batch"),
	}
	rep, err := runner.Run(cmd.Context(), jobs)
	if rep != nil {
		fmt.Fprintln(cmd.OutOrStdout(), batch.Summary(rep, tableMode()))
	}
	if err != nil {
		return err
	}
	if rep.Aborted {
		return fmt.Errorf("batch aborted, %d of %d jobs skipped, see %s", rep.Count(batch.Skipped), len(rep.Results), resultsPath)
	}
	if n := rep.Count(batch.Failed); n > 0 {
		return fmt.Errorf("%d of %d jobs failed, see %s", n, len(rep.Results), resultsPath)
	}
	return nil
}
