package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vbluemer/Homogenization-for-Damask/internal/batch"
	"github.com/vbluemer/Homogenization-for-Damask/internal/format"
	"github.com/vbluemer/Homogenization-for-Damask/internal/resultstore"
)

var inspectFlags struct {
	history bool
}

// metaKeys are the result-file metadata entries worth showing.
var metaKeys = []string{"solver", "job", "profile"}

var inspectCmd = &cobra.Command{
	Use:   "inspect <result-file>",
	Short: "Show what a result file holds",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectFlags.history, "history", false, "Print the homogenized history")
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]
	st, err := resultstore.Open(path)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	defer st.Close()

	incs, err := st.Increments()
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	tb := format.NewTable(tableMode())
	tb.Title(path)
	tb.Header("Key", "Value")
	for _, k := range metaKeys {
		v, ok, err := st.Meta(k)
		if err != nil {
			return fmt.Errorf("inspect: %w", err)
		}
		if ok {
			tb.Row(k, v)
		}
	}
	tb.Row("increments", len(incs))
	if len(incs) > 0 {
		tb.Row("first", incs[0])
		tb.Row("latest", incs[len(incs)-1])
	}
	fmt.Fprintln(cmd.OutOrStdout(), tb.String())

	if !inspectFlags.history || len(incs) == 0 {
		return nil
	}
	reader, err := settings.Reader()
	if err != nil {
		return err
	}
	h, err := reader.History(cmd.Context(), st)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), batch.HistoryTable(h, tableMode()))
	return nil
}
