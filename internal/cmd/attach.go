package cmd

import (
	"os"
	"strconv"

	"github.com/relkin/memscan/internal/config"
	"github.com/relkin/memscan/internal/engine"
	"github.com/relkin/memscan/internal/memio"
	"github.com/relkin/memscan/internal/output"
	"github.com/relkin/memscan/internal/replshell"
	"github.com/spf13/cobra"
)

func newAttachCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach [PID]",
		Short: "Attach to a process and open the interactive shell",
		Long:  "Attach to a running process by PID and drop into a line-oriented shell for scanning, refining and editing memory. With no PID, the shell starts detached and an 'attach <pid>' command can be issued from inside it.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runAttach,
	}
	return cmd
}

func runAttach(cmd *cobra.Command, args []string) error {
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

	if len(args) == 1 {
		pid, err := strconv.Atoi(args[0])
		if err != nil {
			if output.IsJSON() {
				output.PrintError(os.Stderr, "invalid_pid", err.Error())
			}
			os.Exit(output.ExitError)
		}
		if err := eng.SetPID(pid); err != nil {
			if output.IsJSON() {
				output.PrintError(os.Stderr, "attach_failed", err.Error(), output.F("pid", pid))
			}
			os.Exit(output.ExitAttachFail)
		}
	}

	if err := config.EnsureDir(); err != nil {
		return err
	}
	shell := replshell.New(eng, config.HistoryPath(), cmd.OutOrStdout())
	return shell.Run()
}
