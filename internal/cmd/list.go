package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/relkin/memscan/internal/memio"
	"github.com/relkin/memscan/internal/output"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List running processes that can be attached to",
		Long:  "List every running process on the local host, with its PID, name, and resident set size.",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	procs, err := memio.New().ListProcesses()
	if err != nil {
		if output.IsJSON() {
			output.PrintError(os.Stderr, "list_processes_error", err.Error())
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(output.ExitError)
	}

	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), map[string]any{
			"processes": procs,
		})
	}

	if len(procs) == 0 {
		if !output.IsQuiet() {
			fmt.Fprintln(cmd.OutOrStdout(), "No processes found.")
		}
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PID\tNAME\tRSS\tCMDLINE")
	for _, p := range procs {
		cmdline := p.Cmdline
		if len(cmdline) > 60 {
			cmdline = cmdline[:60] + "..."
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.PID, p.Name, formatRSS(p.RSSBytes), cmdline)
	}
	return w.Flush()
}

func formatRSS(bytes uint64) string {
	const mib = 1 << 20
	if bytes >= mib {
		return fmt.Sprintf("%.1f MiB", float64(bytes)/mib)
	}
	const kib = 1 << 10
	return fmt.Sprintf("%.1f KiB", float64(bytes)/kib)
}
