// homogenize supervises crystal-plasticity solver runs: it launches each job
// of a batch, stops the solver once the job's yield criterion is met, and
// locates the yield point between the bracketing increments.
//
// Usage:
//
//	homogenize run --jobs <batch.yaml> [--config <settings.yaml>] [--results <report.yaml>]
//	homogenize postprocess --jobs <batch.yaml> [--job <name>] [--history]
//	homogenize inspect <result-file> [--history]
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vbluemer/Homogenization-for-Damask/internal/config"
	"github.com/vbluemer/Homogenization-for-Damask/internal/logging"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	markdown   bool
}

// settings is resolved once per invocation before any subcommand runs.
var settings *config.Settings

var rootCmd = &cobra.Command{
	Use:   "homogenize",
	Short: "Supervise solver runs and detect yielding",
	Long: "homogenize launches the crystal-plasticity solver for every job of a batch,\n" +
		"follows its result file increment by increment and stops it once the\n" +
		"job's yield criterion is met.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&rootFlags.configPath, "config", "c", "", "Settings file (YAML or JSON)")
	f.StringVar(&rootFlags.logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
	f.StringVar(&rootFlags.logFormat, "log-format", "", "Override log.format (text, json)")
	f.BoolVar(&rootFlags.markdown, "markdown", false, "Render tables as Markdown")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(postprocessCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.Version = version
}

func setup(cmd *cobra.Command, _ []string) error {
	s, err := config.Resolve(rootFlags.configPath, os.Getenv)
	if err != nil {
		return err
	}
	if rootFlags.logLevel != "" {
		s.Log.Level = rootFlags.logLevel
	}
	if rootFlags.logFormat != "" {
		s.Log.Format = rootFlags.logFormat
	}
	if err := logging.Setup(s.Log.Level, s.Log.Format, cmd.ErrOrStderr()); err != nil {
		return err
	}
	settings = s
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
