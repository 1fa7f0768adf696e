package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/relkin/memscan/internal/config"
	"github.com/relkin/memscan/internal/engine"
	"github.com/relkin/memscan/internal/memio"
	"github.com/relkin/memscan/internal/output"
	"github.com/relkin/memscan/internal/session"
	"github.com/relkin/memscan/internal/valuetype"
	"github.com/spf13/cobra"
)

const scanPollInterval = 50 * time.Millisecond

func newScanCmd() *cobra.Command {
	var (
		pid       int
		typeName  string
		value     string
		maxResult int
	)

	cmd := &cobra.Command{
		Use:   "scan --pid <PID> --type <TYPE> --value <VALUE>",
		Short: "Run a single initial scan against a process and print the results",
		Long:  "Attach to a process, run one initial scan for a value of the given type, wait for it to finish, and print the resulting candidate set. A one-shot, scriptable equivalent of the shell's 'type'/'value'/'scan' sequence.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pid == 0 {
				return fmt.Errorf("--pid is required")
			}
			vt, err := valuetype.ParseTypeName(typeName)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			eng := engine.New(memio.New(), engine.Config{
				Workers:          cfg.Workers,
				BlockSizeBytes:   cfg.BlockSizeBytes,
				FreezeTickMillis: cfg.FreezeTickMillis,
				HistoryCap:       cfg.HistoryCap,
				SkipSystemLibs:   cfg.SkipSystemLibs,
				MinRegionBytes:   cfg.MinRegionBytes,
			})
			defer eng.Close()

			if err := eng.SetPID(pid); err != nil {
				if output.IsJSON() {
					output.PrintError(os.Stderr, "attach_failed", err.Error(), output.F("pid", pid))
				}
				os.Exit(output.ExitAttachFail)
			}

			eng.SetValueType(vt)
			eng.SetQueryText(value)
			if err := eng.InitialScan(); err != nil {
				if output.IsJSON() {
					output.PrintError(os.Stderr, "scan_failed", err.Error(), output.F("pid", pid), output.F("type", typeName))
				}
				os.Exit(output.ExitError)
			}

			for {
				snap := eng.ResultsSnapshot()
				if snap.State != session.ScanningRegions {
					break
				}
				time.Sleep(scanPollInterval)
			}

			return printScanResults(cmd, eng.ResultsSnapshot(), maxResult)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&pid, "pid", 0, "Target process id (required)")
	flags.StringVar(&typeName, "type", "int", "Value type: byte|short|int|int64|float|double|string|string_utf16")
	flags.StringVar(&value, "value", "", "Value to search for")
	flags.IntVar(&maxResult, "max-results", 50, "Maximum number of hits to print (0 = all)")
	return cmd
}

func printScanResults(cmd *cobra.Command, snap session.Snapshot, maxResult int) error {
	if output.IsJSON() {
		return output.PrintJSON(cmd.OutOrStdout(), map[string]any{
			"state":         snap.State.String(),
			"scanned_bytes": snap.ScannedBytes,
			"total_bytes":   snap.TotalBytes,
			"result_count":  snap.ResultCount,
			"hits":          snap.Hits,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "state=%s scanned=%d/%d candidates=%d\n",
		snap.State, snap.ScannedBytes, snap.TotalBytes, snap.ResultCount)
	limit := len(snap.Hits)
	if maxResult > 0 && maxResult < limit {
		limit = maxResult
	}
	for _, h := range snap.Hits[:limit] {
		fmt.Fprintf(cmd.OutOrStdout(), "  0x%x\t%s\n", h.Addr, h.Type)
	}
	if limit < len(snap.Hits) {
		fmt.Fprintf(cmd.OutOrStdout(), "... %d more\n", len(snap.Hits)-limit)
	}
	return nil
}
